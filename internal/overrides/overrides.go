// Package overrides applies an ordered list of manual edits to a ledger
// before densification. The input ledger is never modified.
package overrides

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/densify/internal/ledgerfile"
	"github.com/cleared-dev/densify/internal/model"
	"github.com/cleared-dev/densify/internal/period"
)

// ActionKind names an edit.
type ActionKind string

const (
	AddAccount     ActionKind = "add_account"
	Rename         ActionKind = "rename"
	Merge          ActionKind = "merge"
	UpdateMetadata ActionKind = "update_metadata"
	Delete         ActionKind = "delete"
	ScaleValues    ActionKind = "scale_values"
	SetValue       ActionKind = "set_value"
)

// ErrUnknownAccount is returned when an action targets a missing account.
var ErrUnknownAccount = errors.New("unknown account")

// Action is one edit. Which fields apply depends on Action.
type Action struct {
	Action ActionKind `yaml:"action"`
	Target string     `yaml:"target,omitempty"`

	// add_account: exactly one of these.
	BalanceSheet    *ledgerfile.StockEntry `yaml:"balance_sheet,omitempty"`
	IncomeStatement *ledgerfile.FlowEntry  `yaml:"income_statement,omitempty"`

	// rename
	NewName string `yaml:"new_name,omitempty"`

	// merge: Target is the merged account, created from the first source
	// when it does not exist.
	Sources []string `yaml:"sources,omitempty"`

	// update_metadata
	Category  *string `yaml:"category,omitempty"`
	Type      string  `yaml:"type,omitempty"`
	Balancing *bool   `yaml:"balancing,omitempty"`

	// scale_values
	Factor decimal.Decimal `yaml:"factor,omitempty"`

	// set_value: a YYYY-MM-DD date for stock accounts, a period for flow.
	At    string          `yaml:"at,omitempty"`
	Value decimal.Decimal `yaml:"value,omitempty"`
}

// Load reads an overrides file.
func Load(path string) ([]Action, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading overrides: %w", err)
	}
	return Decode(bytes.NewReader(data))
}

// Decode parses a YAML list of actions. An empty document is no actions.
func Decode(r io.Reader) ([]Action, error) {
	var actions []Action
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&actions); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing overrides: %w", err)
	}
	return actions, nil
}

// Apply returns a copy of l with actions applied in order. It stops at the
// first failing action.
func Apply(l *model.Ledger, actions []Action) (*model.Ledger, error) {
	out := l.Clone()
	for i, a := range actions {
		if err := apply(out, a); err != nil {
			return nil, fmt.Errorf("override %d (%s): %w", i+1, a.Action, err)
		}
	}
	return out, nil
}

func apply(l *model.Ledger, a Action) error {
	switch a.Action {
	case AddAccount:
		return addAccount(l, a)
	case Merge:
		return merge(l, a.Sources, a.Target)
	}

	si, fi := find(l, a.Target)
	if si < 0 && fi < 0 {
		return fmt.Errorf("%w %q", ErrUnknownAccount, a.Target)
	}

	switch a.Action {
	case Rename:
		if a.NewName == "" {
			return errors.New("new_name is required")
		}
		if s, f := find(l, a.NewName); s >= 0 || f >= 0 {
			return fmt.Errorf("account %q already exists", a.NewName)
		}
		if si >= 0 {
			l.Stock[si].Name = a.NewName
		} else {
			l.Flow[fi].Name = a.NewName
		}

	case Delete:
		if si >= 0 {
			l.Stock = slices.Delete(l.Stock, si, si+1)
		} else {
			l.Flow = slices.Delete(l.Flow, fi, fi+1)
		}

	case UpdateMetadata:
		return updateMetadata(l, si, fi, a)

	case ScaleValues:
		if si >= 0 {
			for j := range l.Stock[si].Snapshots {
				l.Stock[si].Snapshots[j].Value = scale(l.Stock[si].Snapshots[j].Value, a.Factor)
			}
		} else {
			for j := range l.Flow[fi].Constraints {
				l.Flow[fi].Constraints[j].Value = scale(l.Flow[fi].Constraints[j].Value, a.Factor)
			}
		}

	case SetValue:
		v := a.Value.InexactFloat64()
		if si >= 0 {
			date, err := period.ParseDate(a.At)
			if err != nil {
				return err
			}
			acc := &l.Stock[si]
			acc.Snapshots = slices.DeleteFunc(acc.Snapshots, func(s model.Snapshot) bool {
				return period.FromTime(s.Date) == period.FromTime(date)
			})
			acc.Snapshots = append(acc.Snapshots, model.Snapshot{Date: date, Value: v, Source: "override"})
			sort.SliceStable(acc.Snapshots, func(i, j int) bool {
				return acc.Snapshots[i].Date.Before(acc.Snapshots[j].Date)
			})
		} else {
			r, err := period.Parse(a.At)
			if err != nil {
				return err
			}
			l.Flow[fi].Constraints = append(l.Flow[fi].Constraints, model.PeriodConstraint{
				Start: r.First.Start(), End: r.Last.End(), Value: v, Source: "override",
			})
		}

	default:
		return fmt.Errorf("unknown action %q", a.Action)
	}
	return nil
}

func find(l *model.Ledger, name string) (stock, flow int) {
	stock = slices.IndexFunc(l.Stock, func(a model.StockAccount) bool { return a.Name == name })
	flow = slices.IndexFunc(l.Flow, func(a model.FlowAccount) bool { return a.Name == name })
	return stock, flow
}

func addAccount(l *model.Ledger, a Action) error {
	var f ledgerfile.File
	switch {
	case a.BalanceSheet != nil && a.IncomeStatement == nil:
		f.BalanceSheet = []ledgerfile.StockEntry{*a.BalanceSheet}
	case a.IncomeStatement != nil && a.BalanceSheet == nil:
		f.IncomeStatement = []ledgerfile.FlowEntry{*a.IncomeStatement}
	default:
		return errors.New("give exactly one of balance_sheet or income_statement")
	}
	parsed, err := f.Ledger()
	if err != nil {
		return err
	}
	for _, s := range parsed.Stock {
		if si, fi := find(l, s.Name); si >= 0 || fi >= 0 {
			return fmt.Errorf("account %q already exists", s.Name)
		}
	}
	for _, s := range parsed.Flow {
		if si, fi := find(l, s.Name); si >= 0 || fi >= 0 {
			return fmt.Errorf("account %q already exists", s.Name)
		}
	}
	l.Stock = append(l.Stock, parsed.Stock...)
	l.Flow = append(l.Flow, parsed.Flow...)
	return nil
}

func updateMetadata(l *model.Ledger, si, fi int, a Action) error {
	var typ model.AccountType
	if a.Type != "" {
		var err error
		if typ, err = model.ParseAccountType(a.Type); err != nil {
			return err
		}
	}

	if si >= 0 {
		acc := &l.Stock[si]
		if typ != "" {
			if typ.Behavior() != model.Stock {
				return fmt.Errorf("cannot change %q to income statement type %q", acc.Name, typ)
			}
			acc.Type = typ
		}
		if a.Category != nil {
			acc.Category = *a.Category
		}
		if a.Balancing != nil {
			acc.Balancing = *a.Balancing
		}
		return nil
	}

	acc := &l.Flow[fi]
	if a.Balancing != nil {
		return fmt.Errorf("%q is not a balance sheet account", acc.Name)
	}
	if typ != "" {
		if typ.Behavior() != model.Flow {
			return fmt.Errorf("cannot change %q to balance sheet type %q", acc.Name, typ)
		}
		acc.Type = typ
	}
	if a.Category != nil {
		acc.Category = *a.Category
	}
	return nil
}

// merge folds sources (and target, if it exists) into one account named
// target, appended at the end. Stock snapshots are summed per month. Flow
// constraints over the same period are summed, the rest concatenated.
func merge(l *model.Ledger, sources []string, target string) error {
	if len(sources) == 0 || target == "" {
		return errors.New("merge needs sources and a target")
	}
	var stock, flow int
	for _, name := range sources {
		si, fi := find(l, name)
		switch {
		case si >= 0:
			stock++
		case fi >= 0:
			flow++
		default:
			return fmt.Errorf("%w %q", ErrUnknownAccount, name)
		}
	}
	if stock > 0 && flow > 0 {
		return errors.New("cannot merge balance sheet and income statement accounts")
	}

	member := func(name string) bool { return name == target || slices.Contains(sources, name) }

	if stock > 0 {
		var merged *model.StockAccount
		sums := make(map[period.Month]float64)
		var kept []model.StockAccount
		for _, a := range l.Stock {
			if !member(a.Name) {
				kept = append(kept, a)
				continue
			}
			if merged == nil {
				m := a
				merged = &m
			}
			for _, s := range a.Snapshots {
				sums[period.FromTime(s.Date)] += s.Value
			}
		}
		merged.Name = target
		merged.Snapshots = nil
		months := make([]period.Month, 0, len(sums))
		for m := range sums {
			months = append(months, m)
		}
		slices.Sort(months)
		for _, m := range months {
			merged.Snapshots = append(merged.Snapshots, model.Snapshot{Date: m.End(), Value: sums[m], Source: "merge"})
		}
		l.Stock = append(kept, *merged)
		return nil
	}

	var merged *model.FlowAccount
	var constraints []model.PeriodConstraint
	var kept []model.FlowAccount
	for _, a := range l.Flow {
		if !member(a.Name) {
			kept = append(kept, a)
			continue
		}
		if merged == nil {
			m := a
			merged = &m
		}
		for _, c := range a.Constraints {
			j := slices.IndexFunc(constraints, func(o model.PeriodConstraint) bool {
				return o.Start.Equal(c.Start) && o.End.Equal(c.End)
			})
			if j < 0 {
				constraints = append(constraints, c)
				continue
			}
			constraints[j].Value += c.Value
			constraints[j].Source = "merge"
		}
	}
	merged.Name = target
	merged.Constraints = constraints
	l.Flow = append(kept, *merged)
	return nil
}

func scale(v float64, factor decimal.Decimal) float64 {
	return decimal.NewFromFloat(v).Mul(factor).InexactFloat64()
}
