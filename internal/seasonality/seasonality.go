// Package seasonality maps seasonality profiles onto calendar-month weights.
package seasonality

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cleared-dev/densify/internal/model"
	"github.com/cleared-dev/densify/internal/period"
)

// ErrInvalidWeights is returned for custom vectors that are not 12
// non-negative weights summing to 1.
var ErrInvalidWeights = errors.New("invalid seasonality weights")

// ErrUnknownProfile is returned for profile names with no built-in table.
var ErrUnknownProfile = errors.New("unknown seasonality profile")

// sumTolerance is how far a custom vector may stray from 1 before rejection.
const sumTolerance = 0.01

// Vector holds 12 non-negative weights summing to 1.
type Vector [12]float64

// Weights is a Vector indexed by calendar month (January first).
type Weights Vector

// For returns the weight of a calendar month.
func (w Weights) For(m time.Month) float64 { return w[m-1] }

// Builtin lists the named profiles in display order.
func Builtin() []model.ProfileID {
	return []model.ProfileID{
		model.ProfileFlat,
		model.ProfileRetailPeak,
		model.ProfileSummerHigh,
		model.ProfileSaasGrowth,
	}
}

// Profile returns the fiscal-month vector of a built-in profile.
func Profile(id model.ProfileID) (Vector, error) {
	switch id {
	case model.ProfileFlat, "":
		var v Vector
		for i := range v {
			v[i] = 1.0 / 12.0
		}
		return v, nil
	case model.ProfileRetailPeak:
		return Vector{0.045, 0.045, 0.045, 0.055, 0.055, 0.060, 0.065, 0.070, 0.075, 0.080, 0.105, 0.300}, nil
	case model.ProfileSummerHigh:
		return Vector{0.05, 0.05, 0.05, 0.12, 0.12, 0.12, 0.12, 0.12, 0.07, 0.07, 0.07, 0.04}, nil
	case model.ProfileSaasGrowth:
		var v Vector
		for i := range v {
			v[i] = 0.06 + float64(i)*0.04/11.0
		}
		return normalize(v), nil
	default:
		return Vector{}, fmt.Errorf("%w: %q", ErrUnknownProfile, id)
	}
}

// NewCustom validates a caller-supplied vector and rescales it to sum to
// exactly 1.
func NewCustom(weights []float64) (Vector, error) {
	if len(weights) != 12 {
		return Vector{}, fmt.Errorf("%w: expected 12 weights, got %d", ErrInvalidWeights, len(weights))
	}
	var v Vector
	var sum float64
	for i, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return Vector{}, fmt.Errorf("%w: weight %d is not a finite number", ErrInvalidWeights, i+1)
		}
		if w < 0 {
			return Vector{}, fmt.Errorf("%w: weight %d is negative (%g)", ErrInvalidWeights, i+1, w)
		}
		v[i] = w
		sum += w
	}
	if !(math.Abs(sum-1) <= sumTolerance) {
		return Vector{}, fmt.Errorf("%w: weights sum to %g, want 1.0", ErrInvalidWeights, sum)
	}
	return normalize(v), nil
}

func normalize(v Vector) Vector {
	var sum float64
	for _, w := range v {
		sum += w
	}
	if sum == 0 {
		return v
	}
	for i := range v {
		v[i] /= sum
	}
	return v
}

// Provider resolves profile references for one ledger. It is built per run
// from the ledger's fiscal year end.
type Provider struct {
	fyEnd time.Month
}

// NewProvider returns a Provider for a fiscal year ending in fyEnd.
func NewProvider(fyEnd time.Month) *Provider {
	if fyEnd < time.January || fyEnd > time.December {
		fyEnd = time.December
	}
	return &Provider{fyEnd: fyEnd}
}

// Vector returns the fiscal-month vector referenced by s.
func (p *Provider) Vector(s model.Seasonality) (Vector, error) {
	if s.Profile == model.ProfileCustom || (s.Profile == "" && len(s.Weights) > 0) {
		return NewCustom(s.Weights)
	}
	return Profile(s.Profile)
}

// Weights resolves s into calendar-month weights. Profile vectors start at
// the first month of the fiscal year.
func (p *Provider) Weights(s model.Seasonality) (Weights, error) {
	v, err := p.Vector(s)
	if err != nil {
		return Weights{}, err
	}
	var w Weights
	for m := time.January; m <= time.December; m++ {
		w[m-1] = v[period.FiscalIndex(m, p.fyEnd)]
	}
	return w, nil
}
