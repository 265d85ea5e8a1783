package engine

import (
	"errors"
	"time"

	"github.com/cleared-dev/densify/internal/model"
	"github.com/cleared-dev/densify/internal/period"
	"github.com/cleared-dev/densify/internal/seasonality"
	"github.com/cleared-dev/densify/internal/solver"
)

// Validate checks a ledger before any densification. All problems are
// returned joined; each wraps ErrMalformedInput.
func Validate(l *model.Ledger) error {
	var errs []error

	if l.FiscalYearEndMonth < 0 || l.FiscalYearEndMonth > time.December {
		errs = append(errs, malformed("", "fiscal year end month %d outside 1..12", l.FiscalYearEndMonth))
	}
	if len(l.Stock)+len(l.Flow) == 0 {
		errs = append(errs, malformed("", "no accounts"))
	}

	seen := make(map[string]bool)
	checkName := func(name string) {
		if name == "" {
			errs = append(errs, malformed(name, "account has no name"))
			return
		}
		if seen[name] {
			errs = append(errs, malformed(name, "duplicate account name"))
		}
		seen[name] = true
	}
	checkNoise := func(name string, f float64) {
		if !(f >= 0 && f < 1) {
			errs = append(errs, malformed(name, "noise factor %g outside [0, 1)", f))
		}
	}

	var balancing []string
	for _, a := range l.Stock {
		checkName(a.Name)
		checkNoise(a.Name, a.NoiseFactor)
		if a.Type.Behavior() != model.Stock || !a.Type.Valid() {
			errs = append(errs, malformed(a.Name, "type %q is not a balance sheet classification", a.Type))
		}
		if !a.Method.Valid() {
			errs = append(errs, malformed(a.Name, "unknown interpolation method %q", a.Method))
		}
		if a.Balancing {
			balancing = append(balancing, a.Name)
		}
		if len(a.Snapshots) == 0 && !a.Balancing {
			errs = append(errs, malformed(a.Name, "no snapshots"))
		}
		months := make(map[period.Month]bool)
		for _, s := range a.Snapshots {
			if !period.IsMonthEnd(s.Date) {
				errs = append(errs, malformed(a.Name, "snapshot date %s is not a month end", s.Date.Format(period.DateFormat)))
				continue
			}
			m := period.FromTime(s.Date)
			if months[m] {
				errs = append(errs, malformed(a.Name, "more than one snapshot in %s", m))
			}
			months[m] = true
		}
	}

	provider := seasonality.NewProvider(l.FiscalYearEnd())
	for _, a := range l.Flow {
		checkName(a.Name)
		checkNoise(a.Name, a.NoiseFactor)
		if a.Type.Behavior() != model.Flow || !a.Type.Valid() {
			errs = append(errs, malformed(a.Name, "type %q is not an income statement classification", a.Type))
		}
		if len(a.Constraints) == 0 {
			errs = append(errs, malformed(a.Name, "no period constraints"))
		}
		if _, err := solver.FromModel(a.Constraints); err != nil {
			errs = append(errs, malformed(a.Name, "%v", err))
		}
		if _, err := provider.Weights(a.Seasonality); err != nil {
			errs = append(errs, malformed(a.Name, "%v", err))
		}
	}

	if len(balancing) > 1 {
		for _, name := range balancing[1:] {
			errs = append(errs, malformed(name, "only one balancing account allowed, %q is already flagged", balancing[0]))
		}
	}
	if len(balancing) == 0 && seen[model.BalancingAccountName] {
		errs = append(errs, malformed(model.BalancingAccountName, "name is reserved for the synthesized balancing account"))
	}

	return errors.Join(errs...)
}

// Span returns the month range covering every constraint and snapshot.
func Span(l *model.Ledger) (period.Range, bool) {
	var r period.Range
	found := false
	extend := func(o period.Range) {
		if !found {
			r, found = o, true
			return
		}
		r = r.Union(o)
	}
	for _, a := range l.Stock {
		for _, s := range a.Snapshots {
			extend(period.Single(period.FromTime(s.Date)))
		}
	}
	for _, a := range l.Flow {
		for _, c := range a.Constraints {
			extend(period.Range{First: period.FromTime(c.Start), Last: period.FromTime(c.End)})
		}
	}
	return r, found
}
