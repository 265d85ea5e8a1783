package engine

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/densify/internal/balance"
	"github.com/cleared-dev/densify/internal/model"
	"github.com/cleared-dev/densify/internal/period"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func monthEnd(y int, m time.Month) time.Time { return period.Of(y, m).End() }

func yearConstraint(v float64) model.PeriodConstraint {
	return model.PeriodConstraint{Start: day(2023, 1, 1), End: day(2023, 12, 31), Value: v}
}

func sampleLedger(noiseFactor float64) *model.Ledger {
	return &model.Ledger{
		Organization: "Test Corp",
		Stock: []model.StockAccount{
			{
				Name: "Cash", Type: model.AccountTypeAsset, Method: model.Linear, NoiseFactor: noiseFactor,
				Snapshots: []model.Snapshot{
					{Date: monthEnd(2023, time.January), Value: 50000},
					{Date: monthEnd(2023, time.December), Value: 75000},
				},
			},
			{
				Name: "Accounts Payable", Type: model.AccountTypeLiability, Method: model.Curve, NoiseFactor: noiseFactor,
				Snapshots: []model.Snapshot{
					{Date: monthEnd(2023, time.January), Value: 20000},
					{Date: monthEnd(2023, time.June), Value: 28000},
					{Date: monthEnd(2023, time.December), Value: 25000},
				},
			},
			{
				Name: "Share Capital", Type: model.AccountTypeEquity, Method: model.Step,
				Snapshots: []model.Snapshot{{Date: monthEnd(2023, time.January), Value: 30000}},
			},
		},
		Flow: []model.FlowAccount{
			{
				Name: "Revenue", Type: model.AccountTypeRevenue, NoiseFactor: noiseFactor,
				Seasonality: model.Seasonality{Profile: model.ProfileRetailPeak},
				Constraints: []model.PeriodConstraint{
					{Start: day(2023, 2, 1), End: day(2023, 2, 28), Value: 2000},
					{Start: day(2023, 1, 1), End: day(2023, 3, 31), Value: 13000},
					yearConstraint(120000),
				},
			},
			{
				Name: "Rent", Type: model.AccountTypeOperatingExpense,
				Constraints: []model.PeriodConstraint{yearConstraint(24000)},
			},
		},
	}
}

func TestRunProducesBalancedDenseLedger(t *testing.T) {
	l := sampleLedger(0.05)
	res, err := Run(l, Options{Seed: 42})
	require.NoError(t, err)

	assert.Equal(t, 12, res.Range.Len())
	assert.Equal(t, model.BalancingAccountName, res.Balancing.Name)
	assert.True(t, res.Balancing.Synthesized)
	assert.Len(t, res.Series, 6)
	assert.Empty(t, res.Conflicts)

	for _, a := range l.Flow {
		s := res.Series[a.Name]
		for _, c := range a.Constraints {
			r, err := period.Span(c.Start, c.End)
			require.NoError(t, err)
			assert.InDelta(t, c.Value, s.Sum(r), 1e-6, "%s %s", a.Name, r)
		}
	}
	for _, a := range l.Stock {
		s := res.Series[a.Name]
		for _, snap := range a.Snapshots {
			assert.Equal(t, snap.Value, s.At(period.FromTime(snap.Date)), a.Name)
		}
	}
	assert.Empty(t, Verify(l, &res.Output, 0))
}

func TestScenarioFlatYearWithFebruary(t *testing.T) {
	l := &model.Ledger{Flow: []model.FlowAccount{{
		Name: "Revenue", Type: model.AccountTypeRevenue,
		Seasonality: model.Seasonality{Profile: model.ProfileFlat},
		Constraints: []model.PeriodConstraint{
			{Start: day(2023, 2, 1), End: day(2023, 2, 28), Value: 2000},
			yearConstraint(120000),
		},
	}}}
	res, err := Run(l, Options{Seed: 1})
	require.NoError(t, err)

	s := res.Series["Revenue"]
	assert.InDelta(t, 2000.0, s.At(period.Of(2023, time.February)), 1e-9)
	assert.InDelta(t, 118000.0/11.0, s.At(period.Of(2023, time.July)), 1e-9)
	assert.InDelta(t, 120000.0, s.Sum(res.Range), 1e-6)
}

func TestScenarioLinearSnapshots(t *testing.T) {
	l := &model.Ledger{Stock: []model.StockAccount{{
		Name: "Cash", Type: model.AccountTypeAsset, Method: model.Linear,
		Snapshots: []model.Snapshot{
			{Date: monthEnd(2023, time.January), Value: 100},
			{Date: monthEnd(2023, time.December), Value: 200},
		},
	}}}
	res, err := Run(l, Options{Seed: 1})
	require.NoError(t, err)

	jun := res.Series["Cash"].At(period.Of(2023, time.June))
	want := 100 + 100*monthEnd(2023, time.June).Sub(monthEnd(2023, time.January)).Hours()/monthEnd(2023, time.December).Sub(monthEnd(2023, time.January)).Hours()
	assert.InDelta(t, want, jun, 1e-9)
	assert.Equal(t, 200.0, res.Series["Cash"].At(period.Of(2023, time.December)))
}

func TestScenarioSynthesizedAdjustment(t *testing.T) {
	snap := func(v float64) []model.Snapshot {
		return []model.Snapshot{{Date: monthEnd(2023, time.March), Value: v}}
	}
	l := &model.Ledger{Stock: []model.StockAccount{
		{Name: "Cash", Type: model.AccountTypeAsset, Method: model.Linear, Snapshots: snap(1000)},
		{Name: "Loan", Type: model.AccountTypeLiability, Method: model.Linear, Snapshots: snap(400)},
		{Name: "Share Capital", Type: model.AccountTypeEquity, Method: model.Linear, Snapshots: snap(500)},
	}}
	res, err := Run(l, Options{Seed: 1})
	require.NoError(t, err)

	adj := res.Series[model.BalancingAccountName]
	assert.InDelta(t, 100, adj.At(period.Of(2023, time.March)), 1e-9)
	assert.Equal(t, 400.0, res.Series["Loan"].At(period.Of(2023, time.March)))
}

func TestScenarioNegativeShare(t *testing.T) {
	l := &model.Ledger{Flow: []model.FlowAccount{{
		Name: "Revenue", Type: model.AccountTypeRevenue,
		Constraints: []model.PeriodConstraint{
			{Start: day(2023, 1, 1), End: day(2023, 3, 31), Value: 13000},
			yearConstraint(10000),
		},
	}}}
	res, err := Run(l, Options{Seed: 1})
	require.NoError(t, err)
	assert.Less(t, res.Series["Revenue"].At(period.Of(2023, time.May)), 0.0)
	assert.InDelta(t, 10000, res.Series["Revenue"].Sum(res.Range), 1e-6)
}

func TestBalancingAccountSignConventions(t *testing.T) {
	build := func(balancing string) *model.Ledger {
		snap := func(v float64) []model.Snapshot {
			return []model.Snapshot{{Date: monthEnd(2023, time.June), Value: v}}
		}
		return &model.Ledger{Stock: []model.StockAccount{
			{Name: "Cash", Type: model.AccountTypeAsset, Method: model.Linear, Snapshots: snap(700), Balancing: balancing == "Cash"},
			{Name: "Receivables", Type: model.AccountTypeAsset, Method: model.Linear, Snapshots: snap(500)},
			{Name: "Loan", Type: model.AccountTypeLiability, Method: model.Linear, Snapshots: snap(400)},
			{Name: "Retained Earnings", Type: model.AccountTypeEquity, Method: model.Linear, Snapshots: snap(500), Balancing: balancing == "Retained Earnings"},
		}}
	}
	jun := period.Of(2023, time.June)

	res, err := Run(build("Cash"), Options{Seed: 1})
	require.NoError(t, err)
	assert.Equal(t, "Cash", res.Balancing.Name)
	assert.InDelta(t, 400, res.Series["Cash"].At(jun), 1e-9)

	res, err = Run(build("Retained Earnings"), Options{Seed: 1})
	require.NoError(t, err)
	assert.Equal(t, "Retained Earnings", res.Balancing.Name)
	assert.InDelta(t, 800, res.Series["Retained Earnings"].At(jun), 1e-9)
	_, synthesized := res.Series[model.BalancingAccountName]
	assert.False(t, synthesized)
}

func TestBalancingAccountWithoutSnapshots(t *testing.T) {
	l := sampleLedger(0)
	l.Stock = append(l.Stock, model.StockAccount{
		Name: "Retained Earnings", Type: model.AccountTypeEquity, Method: model.Linear, Balancing: true,
	})
	res, err := Run(l, Options{Seed: 9})
	require.NoError(t, err)
	assert.Equal(t, "Retained Earnings", res.Balancing.Name)
	assert.Empty(t, Verify(l, &res.Output, 0))
}

func TestDeterministicWithSeed(t *testing.T) {
	a, err := Run(sampleLedger(0.1), Options{Seed: 77, Workers: 1})
	require.NoError(t, err)
	b, err := Run(sampleLedger(0.1), Options{Seed: 77, Workers: 8})
	require.NoError(t, err)
	assert.Equal(t, a.Output, b.Output)

	c, err := Run(sampleLedger(0.1), Options{Seed: 78})
	require.NoError(t, err)
	assert.NotEqual(t, a.Series["Revenue"].Values, c.Series["Revenue"].Values)
}

func TestZeroNoiseIgnoresSeed(t *testing.T) {
	a, err := Run(sampleLedger(0), Options{Seed: 1})
	require.NoError(t, err)
	b, err := Run(sampleLedger(0), Options{})
	require.NoError(t, err)
	assert.Equal(t, a.Output, b.Output)
}

func TestConflictsAreReportedNotFatal(t *testing.T) {
	l := &model.Ledger{Flow: []model.FlowAccount{{
		Name: "Rent", Type: model.AccountTypeOperatingExpense,
		Constraints: []model.PeriodConstraint{
			{Start: day(2023, 1, 1), End: day(2023, 1, 31), Value: 100},
			{Start: day(2023, 1, 1), End: day(2023, 1, 31), Value: 150},
		},
	}}}
	res, err := Run(l, Options{Seed: 1})
	require.NoError(t, err)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, "Rent", res.Conflicts[0].Account)
	assert.InDelta(t, 100, res.Series["Rent"].At(period.Of(2023, time.January)), 0)
}

func TestMalformedInput(t *testing.T) {
	nanWeights := []float64{math.NaN(), 0.2, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.0, 0.0, 0.1}
	tests := map[string]func(l *model.Ledger){
		"no constraints":   func(l *model.Ledger) { l.Flow[0].Constraints = nil },
		"no snapshots":     func(l *model.Ledger) { l.Stock[0].Snapshots = nil },
		"noise too large":  func(l *model.Ledger) { l.Flow[1].NoiseFactor = 1 },
		"negative noise":   func(l *model.Ledger) { l.Stock[1].NoiseFactor = -0.1 },
		"NaN noise":        func(l *model.Ledger) { l.Flow[0].NoiseFactor = math.NaN() },
		"NaN stock noise":  func(l *model.Ledger) { l.Stock[0].NoiseFactor = math.NaN() },
		"NaN weight":       func(l *model.Ledger) { l.Flow[0].Seasonality = model.Seasonality{Profile: model.ProfileCustom, Weights: nanWeights} },
		"custom weights":   func(l *model.Ledger) { l.Flow[0].Seasonality = model.Seasonality{Profile: model.ProfileCustom, Weights: []float64{1, 1}} },
		"unaligned start":  func(l *model.Ledger) { l.Flow[1].Constraints[0].Start = day(2023, 1, 5) },
		"unaligned end":    func(l *model.Ledger) { l.Flow[1].Constraints[0].End = day(2023, 12, 30) },
		"unaligned snap":   func(l *model.Ledger) { l.Stock[0].Snapshots[0].Date = day(2023, 1, 15) },
		"duplicate name":   func(l *model.Ledger) { l.Flow[1].Name = "Cash" },
		"wrong behavior":   func(l *model.Ledger) { l.Stock[0].Type = model.AccountTypeRevenue },
		"unknown method":   func(l *model.Ledger) { l.Stock[0].Method = "spline" },
		"two balancing":    func(l *model.Ledger) { l.Stock[0].Balancing, l.Stock[2].Balancing = true, true },
		"reserved name":    func(l *model.Ledger) { l.Stock[2].Name = model.BalancingAccountName },
		"fiscal month":     func(l *model.Ledger) { l.FiscalYearEndMonth = 13 },
		"duplicate months": func(l *model.Ledger) { l.Stock[0].Snapshots[1].Date = l.Stock[0].Snapshots[0].Date },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			l := sampleLedger(0)
			mutate(l)
			_, err := Run(l, Options{Seed: 1})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedInput)
		})
	}
}

func TestMalformedInputNamesAccount(t *testing.T) {
	l := sampleLedger(0)
	l.Flow[1].NoiseFactor = 2
	err := Validate(l)

	var mie *MalformedInputError
	require.True(t, errors.As(err, &mie))
	assert.Equal(t, "Rent", mie.Account)
}

func TestEmptyLedger(t *testing.T) {
	_, err := Run(&model.Ledger{}, Options{})
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestInputsNotMutated(t *testing.T) {
	l := sampleLedger(0.2)
	before := l.Clone()
	_, err := Run(l, Options{Seed: 3})
	require.NoError(t, err)
	assert.Equal(t, before, l)
}

type fakeRecorder struct {
	mu        sync.Mutex
	accounts  map[model.Behavior]int
	conflicts int
	balanced  model.Balancing
}

func (f *fakeRecorder) AccountDensified(b model.Behavior, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[b]++
}

func (f *fakeRecorder) ConflictsFound(n int) { f.conflicts += n }

func (f *fakeRecorder) Balanced(info model.Balancing, _ float64) { f.balanced = info }

func TestRecorder(t *testing.T) {
	rec := &fakeRecorder{accounts: make(map[model.Behavior]int)}
	_, err := Run(sampleLedger(0), Options{Seed: 1, Recorder: rec})
	require.NoError(t, err)
	assert.Equal(t, 3, rec.accounts[model.Stock])
	assert.Equal(t, 2, rec.accounts[model.Flow])
	assert.Equal(t, model.BalancingAccountName, rec.balanced.Name)
}

func TestVerifyReportsTamperedOutput(t *testing.T) {
	l := sampleLedger(0)
	res, err := Run(l, Options{Seed: 1})
	require.NoError(t, err)

	cash := res.Series["Cash"].Clone()
	cash.Set(period.Of(2023, time.April), cash.At(period.Of(2023, time.April))+10)
	res.Series["Cash"] = cash

	errs := Verify(l, &res.Output, 0)
	require.Len(t, errs, 1)
	assert.Equal(t, period.Of(2023, time.April), errs[0].Month)
	assert.IsType(t, balance.Imbalance{}, errs[0])
}
