// Package export writes and reads the dense monthly ledger as a wide CSV:
// one row per month end, one column per account.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/densify/internal/model"
	"github.com/cleared-dev/densify/internal/period"
)

// FileName is the dense output written by a run.
const FileName = "dense.csv"

// DefaultPrecision is the number of decimal places written.
const DefaultPrecision = 2

const colDate = 0

// WriteDense writes out with accounts sorted by name, each value rounded
// half away from zero to precision places.
func WriteDense(w io.Writer, out *model.Output, precision int32) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	names := out.Names()
	if err := cw.Write(append([]string{"date"}, names...)); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, m := range out.Range.Months() {
		row := make([]string, len(names)+1)
		row[colDate] = m.End().Format(period.DateFormat)
		for j, name := range names {
			row[j+1] = FormatValue(out.Series[name].At(m), precision)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// FormatValue renders v with exactly precision decimal places.
func FormatValue(v float64, precision int32) string {
	return decimal.NewFromFloat(v).StringFixed(precision)
}

// ReadDense parses a file written by WriteDense. Rows must be consecutive
// month ends. A column named after the synthesized balancing account is
// reported on Output.Balancing.
func ReadDense(r io.Reader) (*model.Output, error) {
	cr := csv.NewReader(r)

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading dense CSV: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("reading dense CSV: no rows")
	}

	header := records[0]
	if len(header) < 2 || header[colDate] != "date" {
		return nil, fmt.Errorf("reading dense CSV: header must start with date and name at least one account")
	}
	names := header[1:]

	first, err := parseMonthEnd(records[1][colDate])
	if err != nil {
		return nil, fmt.Errorf("row 2: %w", err)
	}
	span := period.Range{First: first, Last: first.Add(len(records) - 2)}

	out := &model.Output{Range: span, Series: make(map[string]model.Series, len(names))}
	for _, name := range names {
		if _, dup := out.Series[name]; dup {
			return nil, fmt.Errorf("reading dense CSV: duplicate column %q", name)
		}
		out.Series[name] = model.NewSeries(span)
		if name == model.BalancingAccountName {
			out.Balancing = model.Balancing{Name: name, Type: model.AccountTypeEquity, Synthesized: true}
		}
	}

	for i, rec := range records[1:] {
		m, err := parseMonthEnd(rec[colDate])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if want := first.Add(i); m != want {
			return nil, fmt.Errorf("row %d: expected %s, got %s", i+2, want.End().Format(period.DateFormat), rec[colDate])
		}
		for j, name := range names {
			v, err := decimal.NewFromString(rec[j+1])
			if err != nil {
				return nil, fmt.Errorf("row %d: parsing %s value %q: %w", i+2, name, rec[j+1], err)
			}
			out.Series[name].Set(m, v.InexactFloat64())
		}
	}
	return out, nil
}

func parseMonthEnd(s string) (period.Month, error) {
	d, err := period.ParseDate(s)
	if err != nil {
		return 0, err
	}
	if !period.IsMonthEnd(d) {
		return 0, fmt.Errorf("date %s is not a month end", s)
	}
	return period.FromTime(d), nil
}

// Save writes out to <dir>/dense.csv.
func Save(dir string, out *model.Output, precision int32) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, FileName))
	if err != nil {
		return fmt.Errorf("creating dense output: %w", err)
	}
	defer f.Close()

	if err := WriteDense(f, out, precision); err != nil {
		return fmt.Errorf("writing dense output: %w", err)
	}
	return nil
}

// Load reads a dense CSV from path.
func Load(path string) (*model.Output, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dense output: %w", err)
	}
	defer f.Close()

	return ReadDense(f)
}
