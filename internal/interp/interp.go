// Package interp densifies stock accounts by interpolating between dated
// snapshots. Every snapshot month reproduces its snapshot value exactly.
package interp

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/cleared-dev/densify/internal/model"
	"github.com/cleared-dev/densify/internal/noise"
	"github.com/cleared-dev/densify/internal/period"
)

// Options tunes an Interpolate call.
type Options struct {
	NoiseFactor float64
	Noise       *noise.Injector // nil disables noise
}

type anchor struct {
	month period.Month
	t     float64 // seconds since the epoch of the snapshot date
	value float64
}

// Interpolate produces one value per month of span. Months before the first
// snapshot hold its value, months after the last hold the last value, and
// months in between follow method. An empty snapshot list yields zeros.
func Interpolate(account string, snapshots []model.Snapshot, method model.Interpolation, span period.Range, opts Options) (model.Series, error) {
	series := model.NewSeries(span)
	if len(snapshots) == 0 {
		return series, nil
	}
	if !method.Valid() {
		return model.Series{}, fmt.Errorf("%s: unknown interpolation method %q", account, method)
	}

	anchors, err := anchorsOf(snapshots)
	if err != nil {
		return model.Series{}, fmt.Errorf("%s: %w", account, err)
	}

	first, last := anchors[0], anchors[len(anchors)-1]
	for m := span.First; m <= span.Last; m++ {
		switch {
		case m <= first.month:
			series.Set(m, first.value)
		case m >= last.month:
			series.Set(m, last.value)
		}
	}

	for i := 0; i+1 < len(anchors); i++ {
		segment(series, anchors, i, method, opts)
	}
	return series, nil
}

func anchorsOf(snapshots []model.Snapshot) ([]anchor, error) {
	out := make([]anchor, 0, len(snapshots))
	for _, s := range snapshots {
		if !period.IsMonthEnd(s.Date) {
			return nil, fmt.Errorf("snapshot %s is not a month-end date", s.Date.Format(period.DateFormat))
		}
		out = append(out, anchor{
			month: period.FromTime(s.Date),
			t:     float64(s.Date.Unix()),
			value: s.Value,
		})
	}
	slices.SortStableFunc(out, func(a, b anchor) int { return cmp.Compare(a.month, b.month) })
	for i := 1; i < len(out); i++ {
		if out[i].month == out[i-1].month {
			return nil, fmt.Errorf("two snapshots in %s", out[i].month)
		}
	}
	return out, nil
}

// segment fills the months from anchors[i] to anchors[i+1] inclusive, then
// perturbs the interior months.
func segment(series model.Series, anchors []anchor, i int, method model.Interpolation, opts Options) {
	a, b := anchors[i], anchors[i+1]
	batch := []noise.Value{{Month: a.month, Value: a.value, Anchor: true}}
	for m := a.month + 1; m < b.month; m++ {
		t := float64(m.End().Unix())
		batch = append(batch, noise.Value{Month: m, Value: sample(anchors, i, t, method)})
	}
	batch = append(batch, noise.Value{Month: b.month, Value: b.value, Anchor: true})

	batch = opts.Noise.Inject(batch, opts.NoiseFactor, noise.AnchorInvariant)
	for _, v := range batch {
		if series.Range.Contains(v.Month) {
			series.Set(v.Month, v.Value)
		}
	}
}

// sample evaluates the curve at time t, with anchors[i].t <= t < anchors[i+1].t.
func sample(anchors []anchor, i int, t float64, method model.Interpolation) float64 {
	a, b := anchors[i], anchors[i+1]
	u := (t - a.t) / (b.t - a.t)
	switch method {
	case model.Step:
		return a.value
	case model.Curve:
		p0 := a.value
		if i > 0 {
			p0 = anchors[i-1].value
		}
		p3 := b.value
		if i+2 < len(anchors) {
			p3 = anchors[i+2].value
		}
		return catmullRom(p0, a.value, b.value, p3, u)
	default:
		return a.value + (b.value-a.value)*u
	}
}

// catmullRom evaluates the uniform Catmull-Rom segment between p1 (u=0) and
// p2 (u=1).
func catmullRom(p0, p1, p2, p3, u float64) float64 {
	u2 := u * u
	u3 := u2 * u
	return 0.5 * (2*p1 +
		(-p0+p2)*u +
		(2*p0-5*p1+4*p2-p3)*u2 +
		(-p0+3*p1-3*p2+p3)*u3)
}
