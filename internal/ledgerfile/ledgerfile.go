// Package ledgerfile reads and writes the YAML description of a sparse ledger.
package ledgerfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/densify/internal/model"
	"github.com/cleared-dev/densify/internal/period"
)

// File is the on-disk shape of a ledger.
type File struct {
	Organization       string       `yaml:"organization,omitempty"`
	FiscalYearEndMonth int          `yaml:"fiscal_year_end_month,omitempty"`
	BalanceSheet       []StockEntry `yaml:"balance_sheet,omitempty"`
	IncomeStatement    []FlowEntry  `yaml:"income_statement,omitempty"`
}

// StockEntry is one balance sheet account.
type StockEntry struct {
	Name        string          `yaml:"name"`
	Type        string          `yaml:"type"`
	Method      string          `yaml:"method,omitempty"`
	NoiseFactor float64         `yaml:"noise_factor,omitempty"`
	Balancing   bool            `yaml:"balancing,omitempty"`
	Category    string          `yaml:"category,omitempty"`
	Snapshots   []SnapshotEntry `yaml:"snapshots,omitempty"`
}

// SnapshotEntry is a reported month-end balance.
type SnapshotEntry struct {
	Date   string          `yaml:"date"`
	Value  decimal.Decimal `yaml:"value"`
	Source string          `yaml:"source,omitempty"`
}

// FlowEntry is one income statement account.
type FlowEntry struct {
	Name        string            `yaml:"name"`
	Type        string            `yaml:"type"`
	Category    string            `yaml:"category,omitempty"`
	Seasonality Seasonality       `yaml:"seasonality,omitempty"`
	NoiseFactor float64           `yaml:"noise_factor,omitempty"`
	Constraints []ConstraintEntry `yaml:"constraints,omitempty"`
}

// ConstraintEntry is a reported total. Either Period ("2023-01" or
// "2023-01:2023-12") or both Start and End dates must be given.
type ConstraintEntry struct {
	Period string          `yaml:"period,omitempty"`
	Start  string          `yaml:"start,omitempty"`
	End    string          `yaml:"end,omitempty"`
	Value  decimal.Decimal `yaml:"value"`
	Source string          `yaml:"source,omitempty"`
}

// Seasonality is either a profile name or a list of twelve weights.
type Seasonality struct {
	Profile string
	Weights []float64
}

// IsZero lets omitempty drop unset seasonality.
func (s Seasonality) IsZero() bool { return s.Profile == "" && len(s.Weights) == 0 }

// UnmarshalYAML accepts a scalar profile name or a sequence of weights.
func (s *Seasonality) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		s.Profile = n.Value
		return nil
	case yaml.SequenceNode:
		s.Profile = string(model.ProfileCustom)
		return n.Decode(&s.Weights)
	default:
		return fmt.Errorf("line %d: seasonality must be a profile name or a list of weights", n.Line)
	}
}

// MarshalYAML writes weights when present, the profile name otherwise.
func (s Seasonality) MarshalYAML() (any, error) {
	if len(s.Weights) > 0 {
		return s.Weights, nil
	}
	return s.Profile, nil
}

// Load reads a ledger file from disk.
func Load(path string) (*model.Ledger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading ledger: %w", err)
	}
	return Decode(bytes.NewReader(data))
}

// Decode parses a ledger document.
func Decode(r io.Reader) (*model.Ledger, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("parsing ledger: empty document")
		}
		return nil, fmt.Errorf("parsing ledger: %w", err)
	}
	return f.Ledger()
}

// Save writes l to path.
func Save(path string, l *model.Ledger) error {
	var buf bytes.Buffer
	if err := Encode(&buf, l); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing ledger: %w", err)
	}
	return nil
}

// Encode writes l as a ledger document.
func Encode(w io.Writer, l *model.Ledger) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(FromLedger(l)); err != nil {
		return fmt.Errorf("encoding ledger: %w", err)
	}
	return enc.Close()
}

// Ledger converts the file into the engine's model. Only syntax is checked
// here; semantic validation is left to the engine.
func (f *File) Ledger() (*model.Ledger, error) {
	var errs []error
	l := &model.Ledger{
		Organization:       f.Organization,
		FiscalYearEndMonth: time.Month(f.FiscalYearEndMonth),
	}

	for _, e := range f.BalanceSheet {
		typ, err := model.ParseAccountType(e.Type)
		if err != nil {
			errs = append(errs, fmt.Errorf("account %q: %w", e.Name, err))
		}
		method := model.Interpolation(e.Method)
		if method == "" {
			method = model.Linear
		}
		a := model.StockAccount{
			Name:        e.Name,
			Type:        typ,
			Category:    e.Category,
			Method:      method,
			NoiseFactor: e.NoiseFactor,
			Balancing:   e.Balancing,
		}
		for i, s := range e.Snapshots {
			date, err := period.ParseDate(s.Date)
			if err != nil {
				errs = append(errs, fmt.Errorf("account %q snapshot %d: %w", e.Name, i, err))
				continue
			}
			a.Snapshots = append(a.Snapshots, model.Snapshot{Date: date, Value: s.Value.InexactFloat64(), Source: s.Source})
		}
		l.Stock = append(l.Stock, a)
	}

	for _, e := range f.IncomeStatement {
		typ, err := model.ParseAccountType(e.Type)
		if err != nil {
			errs = append(errs, fmt.Errorf("account %q: %w", e.Name, err))
		}
		a := model.FlowAccount{
			Name:        e.Name,
			Type:        typ,
			Category:    e.Category,
			NoiseFactor: e.NoiseFactor,
			Seasonality: model.Seasonality{
				Profile: model.ProfileID(e.Seasonality.Profile),
				Weights: e.Seasonality.Weights,
			},
		}
		for i, c := range e.Constraints {
			pc, err := c.constraint()
			if err != nil {
				errs = append(errs, fmt.Errorf("account %q constraint %d: %w", e.Name, i, err))
				continue
			}
			a.Constraints = append(a.Constraints, pc)
		}
		l.Flow = append(l.Flow, a)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return l, nil
}

func (c ConstraintEntry) constraint() (model.PeriodConstraint, error) {
	out := model.PeriodConstraint{Value: c.Value.InexactFloat64(), Source: c.Source}
	switch {
	case c.Period != "" && (c.Start != "" || c.End != ""):
		return out, errors.New("give either period or start/end, not both")
	case c.Period != "":
		r, err := period.Parse(c.Period)
		if err != nil {
			return out, err
		}
		out.Start, out.End = r.First.Start(), r.Last.End()
	case c.Start != "" && c.End != "":
		var err error
		if out.Start, err = period.ParseDate(c.Start); err != nil {
			return out, err
		}
		if out.End, err = period.ParseDate(c.End); err != nil {
			return out, err
		}
	default:
		return out, errors.New("missing period")
	}
	return out, nil
}

// FromLedger converts a model ledger into its file shape. Month-aligned
// constraints are written with the compact period form.
func FromLedger(l *model.Ledger) *File {
	f := &File{
		Organization:       l.Organization,
		FiscalYearEndMonth: int(l.FiscalYearEndMonth),
	}
	for _, a := range l.Stock {
		e := StockEntry{
			Name:        a.Name,
			Type:        string(a.Type),
			Method:      string(a.Method),
			NoiseFactor: a.NoiseFactor,
			Balancing:   a.Balancing,
			Category:    a.Category,
		}
		for _, s := range a.Snapshots {
			e.Snapshots = append(e.Snapshots, SnapshotEntry{
				Date:   s.Date.Format(period.DateFormat),
				Value:  decimal.NewFromFloat(s.Value),
				Source: s.Source,
			})
		}
		f.BalanceSheet = append(f.BalanceSheet, e)
	}
	for _, a := range l.Flow {
		e := FlowEntry{
			Name:        a.Name,
			Type:        string(a.Type),
			Category:    a.Category,
			NoiseFactor: a.NoiseFactor,
			Seasonality: Seasonality{Profile: string(a.Seasonality.Profile), Weights: a.Seasonality.Weights},
		}
		for _, c := range a.Constraints {
			ce := ConstraintEntry{Value: decimal.NewFromFloat(c.Value), Source: c.Source}
			if r, err := period.Span(c.Start, c.End); err == nil {
				ce.Period = r.String()
			} else {
				ce.Start, ce.End = c.Start.Format(period.DateFormat), c.End.Format(period.DateFormat)
			}
			e.Constraints = append(e.Constraints, ce)
		}
		f.IncomeStatement = append(f.IncomeStatement, e)
	}
	return f
}
