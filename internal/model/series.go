package model

import (
	"maps"
	"slices"
	"time"

	"github.com/cleared-dev/densify/internal/period"
)

// Point is one month-end value of a Series.
type Point struct {
	Date  time.Time
	Value float64
}

// Series is a dense monthly series: Values[i] belongs to Range.First+i.
type Series struct {
	Range  period.Range
	Values []float64
}

// NewSeries returns a zero-filled series covering r.
func NewSeries(r period.Range) Series {
	return Series{Range: r, Values: make([]float64, r.Len())}
}

// At returns the value for month m, or 0 outside the range.
func (s Series) At(m period.Month) float64 {
	if !s.Range.Contains(m) {
		return 0
	}
	return s.Values[s.Range.Index(m)]
}

// Set stores v for month m; m must be inside the range.
func (s Series) Set(m period.Month, v float64) {
	s.Values[s.Range.Index(m)] = v
}

// Sum adds the values of every month in r that the series covers.
func (s Series) Sum(r period.Range) float64 {
	var total float64
	for m := r.First; m <= r.Last; m++ {
		total += s.At(m)
	}
	return total
}

// Points lists the series as month-end dated values in date order.
func (s Series) Points() []Point {
	out := make([]Point, len(s.Values))
	for i, v := range s.Values {
		out[i] = Point{Date: s.Range.First.Add(i).End(), Value: v}
	}
	return out
}

// Clone returns a copy that does not share storage with s.
func (s Series) Clone() Series {
	return Series{Range: s.Range, Values: slices.Clone(s.Values)}
}

// BalancingAccountName is used when the engine has to create the balancing
// account itself.
const BalancingAccountName = "Balancing Equity Adjustment"

// Balancing describes the account that absorbed the accounting equation residual.
type Balancing struct {
	Name        string
	Type        AccountType
	Synthesized bool
}

// Output maps account names to dense series for one run.
type Output struct {
	Range     period.Range
	Series    map[string]Series
	Balancing Balancing
}

// Names returns the account names in sorted order.
func (o *Output) Names() []string {
	return slices.Sorted(maps.Keys(o.Series))
}
