// Package engine turns a sparse ledger into dense monthly series: it
// validates the input, densifies every account independently, then runs the
// accounting balancer once over the stock results.
package engine

import (
	"math"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cleared-dev/densify/internal/balance"
	"github.com/cleared-dev/densify/internal/interp"
	"github.com/cleared-dev/densify/internal/model"
	"github.com/cleared-dev/densify/internal/noise"
	"github.com/cleared-dev/densify/internal/period"
	"github.com/cleared-dev/densify/internal/seasonality"
	"github.com/cleared-dev/densify/internal/solver"
)

// Recorder receives run statistics. metrics.Collector implements it.
type Recorder interface {
	AccountDensified(behavior model.Behavior, took time.Duration)
	ConflictsFound(n int)
	Balanced(info model.Balancing, maxAdjustment float64)
}

// Options configures a run. The zero value is usable.
type Options struct {
	// Seed makes noise reproducible. Zero draws a fresh seed per run.
	Seed int64
	// Tolerance is the relative tolerance of the balance post-check.
	Tolerance float64
	// ConflictTolerance is the relative tolerance of the constraint
	// consistency check.
	ConflictTolerance float64
	// Workers bounds parallel densification. Zero uses GOMAXPROCS.
	Workers  int
	Logger   *zerolog.Logger
	Recorder Recorder
}

// Result is the dense ledger plus diagnostics.
type Result struct {
	model.Output
	Conflicts []solver.Conflict
	Seed      int64
}

type job struct {
	name      string
	behavior  model.Behavior
	series    model.Series
	conflicts []solver.Conflict
}

// Run densifies l. It fails fast with ErrMalformedInput before any work and
// with balance.ErrUnresolvedBalance if the equation cannot be closed.
// Conflicting constraints do not fail the run; they are returned on Result.
func Run(l *model.Ledger, opts Options) (*Result, error) {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	if err := Validate(l); err != nil {
		return nil, err
	}
	span, ok := Span(l)
	if !ok {
		return nil, malformed("", "no dated snapshots or constraints")
	}

	seed := opts.Seed
	if seed == 0 {
		seed = noise.FreshSeed()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	provider := seasonality.NewProvider(l.FiscalYearEnd())
	jobs := make([]job, len(l.Stock)+len(l.Flow))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, a := range l.Stock {
		inj := injector(seed, i, a.NoiseFactor)
		g.Go(func() error {
			start := time.Now()
			series, err := interp.Interpolate(a.Name, a.Snapshots, a.Method, span, interp.Options{
				NoiseFactor: a.NoiseFactor,
				Noise:       inj,
			})
			if err != nil {
				return malformed(a.Name, "%v", err)
			}
			jobs[i] = job{name: a.Name, behavior: model.Stock, series: series}
			record(opts.Recorder, model.Stock, time.Since(start))
			return nil
		})
	}
	for j, a := range l.Flow {
		idx := len(l.Stock) + j
		inj := injector(seed, idx, a.NoiseFactor)
		g.Go(func() error {
			start := time.Now()
			weights, err := provider.Weights(a.Seasonality)
			if err != nil {
				return malformed(a.Name, "%v", err)
			}
			constraints, err := solver.FromModel(a.Constraints)
			if err != nil {
				return malformed(a.Name, "%v", err)
			}
			series, conflicts := solver.Solve(a.Name, constraints, weights, span, solver.Options{
				NoiseFactor: a.NoiseFactor,
				Noise:       inj,
				Tolerance:   opts.ConflictTolerance,
			})
			jobs[idx] = job{name: a.Name, behavior: model.Flow, series: series, conflicts: conflicts}
			record(opts.Recorder, model.Flow, time.Since(start))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{
		Output: model.Output{Range: span, Series: make(map[string]model.Series, len(jobs)+1)},
		Seed:   seed,
	}
	for _, j := range jobs {
		res.Series[j.name] = j.series
		res.Conflicts = append(res.Conflicts, j.conflicts...)
		logger.Debug().Str("account", j.name).Str("behavior", string(j.behavior)).Int("months", span.Len()).Msg("densified")
	}
	for _, c := range res.Conflicts {
		logger.Warn().Str("account", c.Account).Str("period", c.Period.String()).
			Float64("reported", c.Expected).Float64("finer_sum", c.Actual).Msg("conflicting constraint")
	}
	if opts.Recorder != nil {
		opts.Recorder.ConflictsFound(len(res.Conflicts))
	}

	stock := make([]balance.Account, len(l.Stock))
	for i, a := range l.Stock {
		stock[i] = balance.Account{Name: a.Name, Type: a.Type, Series: jobs[i].series, Balancing: a.Balancing}
	}
	info, adjusted, err := balance.Balance(stock, span, opts.Tolerance)
	if err != nil {
		return nil, err
	}

	maxAdj := maxAdjustment(res.Series[info.Name], adjusted, span)
	res.Series[info.Name] = adjusted
	res.Balancing = info
	logger.Info().Str("account", info.Name).Bool("synthesized", info.Synthesized).
		Float64("max_adjustment", maxAdj).Str("range", span.String()).Msg("balanced")
	if opts.Recorder != nil {
		opts.Recorder.Balanced(info, maxAdj)
	}

	return res, nil
}

// Verify is the read-only check of a finished output against its ledger.
func Verify(l *model.Ledger, out *model.Output, tol float64) []balance.Imbalance {
	return balance.Verify(l, out, tol)
}

// injector returns nil for noiseless accounts so they never touch randomness.
func injector(seed int64, stream int, factor float64) *noise.Injector {
	if factor == 0 {
		return nil
	}
	return noise.NewStream(seed, uint64(stream))
}

func record(r Recorder, b model.Behavior, took time.Duration) {
	if r != nil {
		r.AccountDensified(b, took)
	}
}

func maxAdjustment(before, after model.Series, span period.Range) float64 {
	var out float64
	for m := span.First; m <= span.Last; m++ {
		out = math.Max(out, math.Abs(after.At(m)-before.At(m)))
	}
	return out
}
