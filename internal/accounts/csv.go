package accounts

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/cleared-dev/densify/internal/model"
)

const (
	numFields    = 5
	colCode      = 0
	colName      = 1
	colType      = 2
	colCategory  = 3
	colBalancing = 4
)

// ReadAccounts reads chart-of-accounts.csv.
func ReadAccounts(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading accounts CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var accounts []Entry
	for i, rec := range records[1:] {
		acct, err := UnmarshalAccount(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

// WriteAccounts writes chart-of-accounts.csv.
func WriteAccounts(w io.Writer, accounts []Entry) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{"account_code", "account_name", "account_type", "category", "balancing"}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, acct := range accounts {
		if err := cw.Write(MarshalAccount(acct)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalAccount converts an Entry to a CSV row.
func MarshalAccount(acct Entry) []string {
	row := make([]string, numFields)
	row[colCode] = strconv.Itoa(acct.Code)
	row[colName] = acct.Name
	row[colType] = string(acct.Type)
	row[colCategory] = acct.Category
	row[colBalancing] = strconv.FormatBool(acct.Balancing)
	return row
}

// UnmarshalAccount converts a CSV row to an Entry.
func UnmarshalAccount(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	code, err := strconv.Atoi(record[colCode])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing account_code %q: %w", record[colCode], err)
	}

	typ, err := model.ParseAccountType(record[colType])
	if err != nil {
		return Entry{}, err
	}

	balancing, err := strconv.ParseBool(record[colBalancing])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing balancing %q: %w", record[colBalancing], err)
	}

	return Entry{
		Code:      code,
		Name:      record[colName],
		Type:      typ,
		Category:  record[colCategory],
		Balancing: balancing,
	}, nil
}
