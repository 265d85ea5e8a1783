package importer

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/densify/internal/model"
	"github.com/cleared-dev/densify/internal/period"
)

// Row is one trial balance line: a balance or year-to-date total for an
// account as of a date.
type Row struct {
	Account string
	Type    model.AccountType
	Date    time.Time
	YTD     decimal.Decimal
	Source  string
}

// Parser converts an exported trial balance into Rows.
type Parser interface {
	Parse(r io.Reader) ([]Row, error)
	Format() string
}

// Registry holds named parsers.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// Formats lists registered formats in sorted order.
func (r *Registry) Formats() []string {
	out := make([]string, 0, len(r.parsers))
	for k := range r.parsers {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&TrialBalanceParser{})
	return r
}

// ParseFile opens path and runs the parser registered for format.
func (r *Registry) ParseFile(format, path string) ([]Row, error) {
	p := r.Get(format)
	if p == nil {
		return nil, fmt.Errorf("unknown import format %q (have %s)", format, strings.Join(r.Formats(), ", "))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return p.Parse(f)
}

// Convert builds a ledger from rows. Balance sheet rows become snapshots.
// Income statement rows are year-to-date totals and become constraints from
// the first month of their fiscal year through the row's month. Accounts are
// sorted by name and default to linear interpolation and a flat profile.
func Convert(organization string, fyEnd time.Month, rows []Row) *model.Ledger {
	l := &model.Ledger{Organization: organization, FiscalYearEndMonth: fyEnd}
	fy := l.FiscalYearEnd()

	stock := make(map[string]*model.StockAccount)
	flow := make(map[string]*model.FlowAccount)
	for _, row := range rows {
		if row.Type.Behavior() == model.Stock {
			a, ok := stock[row.Account]
			if !ok {
				a = &model.StockAccount{Name: row.Account, Type: row.Type, Method: model.Linear}
				stock[row.Account] = a
			}
			a.Snapshots = append(a.Snapshots, model.Snapshot{Date: row.Date, Value: row.YTD.InexactFloat64(), Source: row.Source})
			continue
		}

		a, ok := flow[row.Account]
		if !ok {
			a = &model.FlowAccount{Name: row.Account, Type: row.Type, Seasonality: model.Seasonality{Profile: model.ProfileFlat}}
			flow[row.Account] = a
		}
		m := period.FromTime(row.Date)
		a.Constraints = append(a.Constraints, model.PeriodConstraint{
			Start:  period.FiscalYearStart(m, fy).Start(),
			End:    m.End(),
			Value:  row.YTD.InexactFloat64(),
			Source: row.Source,
		})
	}

	for _, name := range sortedKeys(stock) {
		l.Stock = append(l.Stock, *stock[name])
	}
	for _, name := range sortedKeys(flow) {
		l.Flow = append(l.Flow, *flow[name])
	}
	return l
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
