// Package noise perturbs provisional monthly values with Gaussian noise while
// keeping the caller's invariant intact.
//
// An Injector wraps a *rand.Rand and is not safe for concurrent use. Give each
// account its own stream via NewStream so parallel work stays reproducible.
package noise

import (
	"math"
	"math/rand"
	"time"

	"github.com/cleared-dev/densify/internal/period"
)

// Invariant selects what renormalization must preserve.
type Invariant int

const (
	// SumInvariant keeps the batch total unchanged.
	SumInvariant Invariant = iota
	// AnchorInvariant leaves anchor months untouched.
	AnchorInvariant
)

// Value is one provisional month value.
type Value struct {
	Month  period.Month
	Value  float64
	Anchor bool
}

// Injector draws perturbations from a seeded source.
type Injector struct {
	rng *rand.Rand
}

// New returns an Injector seeded with seed.
func New(seed int64) *Injector {
	return &Injector{rng: rand.New(rand.NewSource(seed))}
}

// NewStream returns an Injector whose source is derived from a run seed and
// a stream id, so streams for different accounts are independent.
func NewStream(seed int64, stream uint64) *Injector {
	return New(deriveSeed(seed, stream))
}

// FreshSeed returns a seed for runs that did not ask for reproducibility.
func FreshSeed() int64 {
	return time.Now().UnixNano()
}

// deriveSeed mixes a parent seed and a stream id with a SplitMix64 finalizer.
func deriveSeed(parent int64, stream uint64) int64 {
	x := uint64(parent) ^ (stream + 0x9e3779b97f4a7c15)
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	x ^= x >> 31
	return int64(x)
}

// Inject perturbs values in place and returns them. Each eligible month gets
// a zero-mean draw with standard deviation |value|*factor. A zero factor or a
// nil Injector returns values untouched without consuming randomness.
func (in *Injector) Inject(values []Value, factor float64, inv Invariant) []Value {
	if in == nil || factor == 0 || len(values) == 0 {
		return values
	}

	var target float64
	for _, v := range values {
		target += v.Value
	}

	for i := range values {
		if inv == AnchorInvariant && values[i].Anchor {
			continue
		}
		sd := math.Abs(values[i].Value) * factor
		if sd == 0 {
			continue
		}
		values[i].Value += in.rng.NormFloat64() * sd
	}

	if inv == SumInvariant {
		renormalize(values, target)
	}
	return values
}

// renormalize spreads the gap between the perturbed sum and target over the
// months in proportion to their perturbed magnitude.
func renormalize(values []Value, target float64) {
	var sum, mag float64
	for _, v := range values {
		sum += v.Value
		mag += math.Abs(v.Value)
	}
	delta := target - sum
	if delta == 0 {
		return
	}
	for i := range values {
		share := 1 / float64(len(values))
		if mag != 0 {
			share = math.Abs(values[i].Value) / mag
		}
		values[i].Value += delta * share
	}
}
