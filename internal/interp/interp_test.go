package interp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/densify/internal/model"
	"github.com/cleared-dev/densify/internal/noise"
	"github.com/cleared-dev/densify/internal/period"
)

func monthEnd(y int, m time.Month) time.Time { return period.Of(y, m).End() }

func snap(y int, m time.Month, v float64) model.Snapshot {
	return model.Snapshot{Date: monthEnd(y, m), Value: v}
}

var year2023 = period.Range{First: period.Of(2023, time.January), Last: period.Of(2023, time.December)}

func TestLinear(t *testing.T) {
	snaps := []model.Snapshot{snap(2023, time.January, 100), snap(2023, time.December, 200)}
	series, err := Interpolate("Cash", snaps, model.Linear, year2023, Options{})
	require.NoError(t, err)
	require.Len(t, series.Values, 12)

	jan, jun, dec := monthEnd(2023, time.January), monthEnd(2023, time.June), monthEnd(2023, time.December)
	frac := jun.Sub(jan).Hours() / dec.Sub(jan).Hours()
	got := series.At(period.Of(2023, time.June))
	assert.InDelta(t, 100+100*frac, got, 1e-9)
	assert.Greater(t, got, 100.0)
	assert.Less(t, got, 200.0)

	assert.Equal(t, 100.0, series.At(period.Of(2023, time.January)))
	assert.Equal(t, 200.0, series.At(period.Of(2023, time.December)))
}

func TestStep(t *testing.T) {
	snaps := []model.Snapshot{snap(2023, time.March, 10), snap(2023, time.September, 50)}
	series, err := Interpolate("Share Capital", snaps, model.Step, year2023, Options{})
	require.NoError(t, err)

	assert.Equal(t, 10.0, series.At(period.Of(2023, time.January)))
	assert.Equal(t, 10.0, series.At(period.Of(2023, time.August)))
	assert.Equal(t, 50.0, series.At(period.Of(2023, time.September)))
	assert.Equal(t, 50.0, series.At(period.Of(2023, time.December)))
}

func TestFlatHoldOutsideSnapshots(t *testing.T) {
	snaps := []model.Snapshot{snap(2023, time.April, 7), snap(2023, time.June, 9)}
	series, err := Interpolate("Loan", snaps, model.Linear, year2023, Options{})
	require.NoError(t, err)

	for _, m := range []time.Month{time.January, time.February, time.March} {
		assert.Equal(t, 7.0, series.At(period.Of(2023, m)))
	}
	for _, m := range []time.Month{time.July, time.November, time.December} {
		assert.Equal(t, 9.0, series.At(period.Of(2023, m)))
	}
}

func TestEveryMethodHitsEverySnapshot(t *testing.T) {
	snaps := []model.Snapshot{
		snap(2023, time.December, 400),
		snap(2023, time.January, 100),
		snap(2023, time.April, 250),
		snap(2023, time.August, 180),
	}
	for _, method := range []model.Interpolation{model.Linear, model.Step, model.Curve} {
		for _, factor := range []float64{0, 0.3} {
			opts := Options{NoiseFactor: factor, Noise: noise.New(5)}
			series, err := Interpolate("Inventory", snaps, method, year2023, opts)
			require.NoError(t, err)
			for _, s := range snaps {
				assert.Equal(t, s.Value, series.At(period.FromTime(s.Date)), "%s noise=%g at %s", method, factor, s.Date.Format(period.DateFormat))
			}
		}
	}
}

func TestCurveIsSmoothBetweenPoints(t *testing.T) {
	snaps := []model.Snapshot{
		snap(2023, time.January, 0),
		snap(2023, time.May, 100),
		snap(2023, time.September, 100),
		snap(2023, time.December, 0),
	}
	series, err := Interpolate("Receivables", snaps, model.Curve, year2023, Options{})
	require.NoError(t, err)

	// Between the two equal middle points the spline overshoots the chord.
	assert.Greater(t, series.At(period.Of(2023, time.July)), 100.0)
	// Near the rising end it stays between its neighbours.
	mar := series.At(period.Of(2023, time.March))
	assert.Greater(t, mar, 0.0)
	assert.Less(t, mar, 100.0)
}

func TestCatmullRomEndpoints(t *testing.T) {
	assert.InDelta(t, 3.0, catmullRom(1, 3, 8, 2, 0), 1e-12)
	assert.InDelta(t, 8.0, catmullRom(1, 3, 8, 2, 1), 1e-12)
	// Collinear control points give a straight line.
	assert.InDelta(t, 2.5, catmullRom(1, 2, 3, 4, 0.5), 1e-12)
}

func TestNoiseOnlyTouchesInterior(t *testing.T) {
	snaps := []model.Snapshot{snap(2023, time.January, 1000), snap(2023, time.December, 2000)}
	plain, err := Interpolate("Cash", snaps, model.Linear, year2023, Options{})
	require.NoError(t, err)
	noisy, err := Interpolate("Cash", snaps, model.Linear, year2023, Options{NoiseFactor: 0.1, Noise: noise.New(8)})
	require.NoError(t, err)

	assert.Equal(t, plain.At(period.Of(2023, time.January)), noisy.At(period.Of(2023, time.January)))
	assert.Equal(t, plain.At(period.Of(2023, time.December)), noisy.At(period.Of(2023, time.December)))
	assert.NotEqual(t, plain.Values, noisy.Values)
}

func TestEmptySnapshots(t *testing.T) {
	series, err := Interpolate("Retained Earnings", nil, model.Linear, year2023, Options{})
	require.NoError(t, err)
	assert.Len(t, series.Values, 12)
	assert.Zero(t, series.Sum(year2023))
}

func TestInvalidSnapshots(t *testing.T) {
	_, err := Interpolate("Cash", []model.Snapshot{{Date: time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC), Value: 1}}, model.Linear, year2023, Options{})
	assert.Error(t, err)

	_, err = Interpolate("Cash", []model.Snapshot{snap(2023, time.January, 1), snap(2023, time.January, 2)}, model.Linear, year2023, Options{})
	assert.Error(t, err)

	_, err = Interpolate("Cash", []model.Snapshot{snap(2023, time.January, 1)}, "spline", year2023, Options{})
	assert.Error(t, err)
}
