package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/densify/internal/model"
	"github.com/cleared-dev/densify/internal/period"
)

// TrialBalanceParser parses account_name,account_type,date,ytd_value,source
// exports.
type TrialBalanceParser struct{}

const (
	tbNumFields = 5
	tbColName   = 0
	tbColType   = 1
	tbColDate   = 2
	tbColValue  = 3
	tbColSource = 4
)

// Format returns the parser name.
func (p *TrialBalanceParser) Format() string { return "trial-balance" }

// Parse reads a trial balance CSV. The header row is required and skipped.
func (p *TrialBalanceParser) Parse(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = tbNumFields
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading trial balance CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var rows []Row
	for i, rec := range records[1:] {
		row, err := parseTrialBalanceRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseTrialBalanceRow(rec []string) (Row, error) {
	name := strings.TrimSpace(rec[tbColName])
	if name == "" {
		return Row{}, fmt.Errorf("empty account_name")
	}

	typ, err := model.ParseAccountType(rec[tbColType])
	if err != nil {
		return Row{}, err
	}

	date, err := period.ParseDate(rec[tbColDate])
	if err != nil {
		return Row{}, err
	}

	value, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(rec[tbColValue]), ",", ""))
	if err != nil {
		return Row{}, fmt.Errorf("parsing ytd_value %q: %w", rec[tbColValue], err)
	}

	return Row{
		Account: name,
		Type:    typ,
		Date:    date,
		YTD:     value,
		Source:  strings.TrimSpace(rec[tbColSource]),
	}, nil
}
