package ledgerfile

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/densify/internal/model"
)

const sample = `organization: ACME
fiscal_year_end_month: 6
balance_sheet:
  - name: Cash
    type: asset
    method: curve
    noise_factor: 0.02
    category: Current Assets
    snapshots:
      - {date: 2023-01-31, value: "100000", source: "FY23 BS"}
      - {date: 2023-12-31, value: 125000.50}
  - name: Retained Earnings
    type: Equity
    balancing: true
income_statement:
  - name: Revenue
    type: revenue
    seasonality: retail_peak
    noise_factor: 0.05
    constraints:
      - {period: "2023-01:2023-12", value: "1200000"}
      - {period: "2023-02", value: "90000.25"}
  - name: Rent
    type: Operating Expense
    seasonality: [1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1]
    constraints:
      - {start: 2023-01-01, end: 2023-03-31, value: "3000"}
`

func TestDecode(t *testing.T) {
	l, err := Decode(strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, "ACME", l.Organization)
	assert.Equal(t, time.June, l.FiscalYearEnd())
	require.Len(t, l.Stock, 2)
	require.Len(t, l.Flow, 2)

	cash := l.Stock[0]
	assert.Equal(t, model.AccountTypeAsset, cash.Type)
	assert.Equal(t, model.Curve, cash.Method)
	assert.Equal(t, "Current Assets", cash.Category)
	require.Len(t, cash.Snapshots, 2)
	assert.Equal(t, time.Date(2023, time.January, 31, 0, 0, 0, 0, time.UTC), cash.Snapshots[0].Date)
	assert.Equal(t, 100000.0, cash.Snapshots[0].Value)
	assert.Equal(t, "FY23 BS", cash.Snapshots[0].Source)
	assert.Equal(t, 125000.5, cash.Snapshots[1].Value)

	re := l.Stock[1]
	assert.Equal(t, model.AccountTypeEquity, re.Type)
	assert.Equal(t, model.Linear, re.Method)
	assert.True(t, re.Balancing)
	assert.Empty(t, re.Snapshots)

	rev := l.Flow[0]
	assert.Equal(t, model.ProfileRetailPeak, rev.Seasonality.Profile)
	require.Len(t, rev.Constraints, 2)
	assert.Equal(t, time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC), rev.Constraints[0].Start)
	assert.Equal(t, time.Date(2023, time.December, 31, 0, 0, 0, 0, time.UTC), rev.Constraints[0].End)
	assert.Equal(t, time.Date(2023, time.February, 28, 0, 0, 0, 0, time.UTC), rev.Constraints[1].End)
	assert.Equal(t, 90000.25, rev.Constraints[1].Value)

	rent := l.Flow[1]
	assert.Equal(t, model.AccountTypeOperatingExpense, rent.Type)
	assert.Equal(t, model.ProfileCustom, rent.Seasonality.Profile)
	assert.Len(t, rent.Seasonality.Weights, 12)
	assert.Equal(t, time.Date(2023, time.March, 31, 0, 0, 0, 0, time.UTC), rent.Constraints[0].End)
}

func TestDecodeErrors(t *testing.T) {
	tests := map[string]string{
		"empty":          ``,
		"unknown field":  "organisation: typo\n",
		"bad type":       "balance_sheet:\n  - {name: Cash, type: bogus}\n",
		"bad date":       "balance_sheet:\n  - name: Cash\n    type: asset\n    snapshots:\n      - {date: 31/01/2023, value: 1}\n",
		"bad value":      "balance_sheet:\n  - name: Cash\n    type: asset\n    snapshots:\n      - {date: 2023-01-31, value: lots}\n",
		"bad period":     "income_statement:\n  - name: Sales\n    type: revenue\n    constraints:\n      - {period: 2023-13, value: 1}\n",
		"missing period": "income_statement:\n  - name: Sales\n    type: revenue\n    constraints:\n      - {value: 1}\n",
		"both forms":     "income_statement:\n  - name: Sales\n    type: revenue\n    constraints:\n      - {period: 2023-01, start: 2023-01-01, end: 2023-01-31, value: 1}\n",
		"bad weights":    "income_statement:\n  - name: Sales\n    type: revenue\n    seasonality: {a: 1}\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	want, err := Decode(strings.NewReader(sample))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, want))
	assert.Contains(t, buf.String(), "2023-01:2023-12")

	got, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSaveLoad(t *testing.T) {
	want, err := Decode(strings.NewReader(sample))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "ledger.yaml")
	require.NoError(t, Save(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
