// Package solver densifies flow accounts: it resolves overlapping period
// totals into one value per month, finest period first.
package solver

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/cleared-dev/densify/internal/model"
	"github.com/cleared-dev/densify/internal/noise"
	"github.com/cleared-dev/densify/internal/period"
	"github.com/cleared-dev/densify/internal/seasonality"
)

// DefaultTolerance is the relative tolerance of the consistency check.
const DefaultTolerance = 1e-6

// Constraint is a period total on month granularity.
type Constraint struct {
	Period period.Range
	Value  float64
}

// FromModel converts dated constraints to month ranges.
func FromModel(in []model.PeriodConstraint) ([]Constraint, error) {
	out := make([]Constraint, 0, len(in))
	for i, c := range in {
		r, err := period.Span(c.Start, c.End)
		if err != nil {
			return nil, fmt.Errorf("constraint %d: %w", i+1, err)
		}
		out = append(out, Constraint{Period: r, Value: c.Value})
	}
	return out, nil
}

// Conflict reports a period whose months were all fixed by finer periods and
// whose total disagrees with them. The finer values are kept.
type Conflict struct {
	Account  string
	Period   period.Range
	Expected float64 // reported total
	Actual   float64 // sum of the finer periods
}

func (c Conflict) String() string {
	return fmt.Sprintf("%s %s: reported %.2f, finer periods sum to %.2f", c.Account, c.Period, c.Expected, c.Actual)
}

// Options tunes a Solve call.
type Options struct {
	NoiseFactor float64
	Noise       *noise.Injector // nil disables noise
	Tolerance   float64         // 0 means DefaultTolerance
}

type slot struct {
	value  float64
	locked bool
}

// Solve produces one value per month of span for a flow account. Constraints
// are applied shortest first; each distributes only what its finer
// predecessors left over across its still-open months, by seasonal weight.
// Months no constraint touches stay at 0.
func Solve(account string, constraints []Constraint, weights seasonality.Weights, span period.Range, opts Options) (model.Series, []Conflict) {
	tol := opts.Tolerance
	if tol == 0 {
		tol = DefaultTolerance
	}

	grid := make([]slot, span.Len())
	var conflicts []Conflict

	for _, c := range ordered(constraints) {
		first := max(c.Period.First, span.First)
		last := min(c.Period.Last, span.Last)
		if last < first {
			continue
		}

		var lockedSum float64
		var open []period.Month
		for m := first; m <= last; m++ {
			s := grid[span.Index(m)]
			if s.locked {
				lockedSum += s.value
			} else {
				open = append(open, m)
			}
		}

		if len(open) == 0 {
			if math.Abs(lockedSum-c.Value) > tol*math.Max(1, math.Abs(c.Value)) {
				conflicts = append(conflicts, Conflict{
					Account:  account,
					Period:   c.Period,
					Expected: c.Value,
					Actual:   lockedSum,
				})
			}
			continue
		}

		batch := distribute(c.Value-lockedSum, open, weights)
		batch = opts.Noise.Inject(batch, opts.NoiseFactor, noise.SumInvariant)
		for _, v := range batch {
			grid[span.Index(v.Month)] = slot{value: v.Value, locked: true}
		}
	}

	series := model.NewSeries(span)
	for i, s := range grid {
		series.Values[i] = s.value
	}
	return series, conflicts
}

// ordered sorts by month count, then start month. Equal keys keep input order.
func ordered(constraints []Constraint) []Constraint {
	out := slices.Clone(constraints)
	slices.SortStableFunc(out, func(a, b Constraint) int {
		if c := cmp.Compare(a.Period.Len(), b.Period.Len()); c != 0 {
			return c
		}
		return cmp.Compare(a.Period.First, b.Period.First)
	})
	return out
}

// distribute splits remaining over open months by their weights normalized
// over open months only; an all-zero weight set splits evenly.
func distribute(remaining float64, open []period.Month, weights seasonality.Weights) []noise.Value {
	var total float64
	for _, m := range open {
		total += weights.For(m.Month())
	}

	out := make([]noise.Value, len(open))
	for i, m := range open {
		share := 1 / float64(len(open))
		if total != 0 {
			share = weights.For(m.Month()) / total
		}
		out[i] = noise.Value{Month: m, Value: remaining * share}
	}
	return out
}
