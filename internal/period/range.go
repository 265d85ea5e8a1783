package period

import (
	"fmt"
	"strings"
	"time"
)

// Range is an inclusive span of months.
type Range struct {
	First Month
	Last  Month
}

// Single returns the range covering one month.
func Single(m Month) Range { return Range{First: m, Last: m} }

// Len returns the number of months in r.
func (r Range) Len() int { return int(r.Last-r.First) + 1 }

// Contains reports whether m lies inside r.
func (r Range) Contains(m Month) bool { return m >= r.First && m <= r.Last }

// Index returns the offset of m from the start of r.
func (r Range) Index(m Month) int { return int(m - r.First) }

// Months lists every month of r in order.
func (r Range) Months() []Month {
	out := make([]Month, 0, r.Len())
	for m := r.First; m <= r.Last; m++ {
		out = append(out, m)
	}
	return out
}

// Union returns the smallest range covering both r and o.
func (r Range) Union(o Range) Range {
	return Range{First: min(r.First, o.First), Last: max(r.Last, o.Last)}
}

// String formats r as "2006-01" or "2006-01:2006-03".
func (r Range) String() string {
	if r.First == r.Last {
		return r.First.String()
	}
	return r.First.String() + ":" + r.Last.String()
}

// Parse parses "YYYY-MM" (one month) or "YYYY-MM:YYYY-MM" (inclusive range).
func Parse(s string) (Range, error) {
	parts := strings.Split(s, ":")
	switch len(parts) {
	case 1:
		m, err := ParseMonth(parts[0])
		if err != nil {
			return Range{}, err
		}
		return Single(m), nil
	case 2:
		first, err := ParseMonth(parts[0])
		if err != nil {
			return Range{}, err
		}
		last, err := ParseMonth(parts[1])
		if err != nil {
			return Range{}, err
		}
		if last < first {
			return Range{}, fmt.Errorf("%w: %q ends before it starts", ErrInvalidPeriod, s)
		}
		return Range{First: first, Last: last}, nil
	default:
		return Range{}, fmt.Errorf("%w: %q want YYYY-MM or YYYY-MM:YYYY-MM", ErrInvalidPeriod, s)
	}
}

// Span converts a [start, end] date pair into a Range. start must be the
// first day of a month and end the last day of a month.
func Span(start, end time.Time) (Range, error) {
	if !IsMonthStart(start) {
		return Range{}, fmt.Errorf("%w: start %s is not the first day of a month", ErrInvalidPeriod, start.Format(DateFormat))
	}
	if !IsMonthEnd(end) {
		return Range{}, fmt.Errorf("%w: end %s is not the last day of a month", ErrInvalidPeriod, end.Format(DateFormat))
	}
	r := Range{First: FromTime(start), Last: FromTime(end)}
	if r.Last < r.First {
		return Range{}, fmt.Errorf("%w: %s ends before it starts", ErrInvalidPeriod, r)
	}
	return r, nil
}
