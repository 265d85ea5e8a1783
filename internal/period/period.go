package period

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidPeriod is returned for period strings and date pairs that do not
// describe whole calendar months.
var ErrInvalidPeriod = errors.New("invalid period")

const (
	monthFormat = "2006-01"
	// DateFormat is the layout used for month-end dates in files and logs.
	DateFormat = "2006-01-02"
)

// Month is a calendar month encoded as year*12 + (month-1).
type Month int

// Of returns the Month for a year and calendar month.
func Of(year int, month time.Month) Month {
	return Month(year*12 + int(month) - 1)
}

// FromTime returns the Month containing t.
func FromTime(t time.Time) Month {
	return Of(t.Year(), t.Month())
}

// Year returns the calendar year.
func (m Month) Year() int { return int(m) / 12 }

// Month returns the calendar month.
func (m Month) Month() time.Month { return time.Month(int(m)%12 + 1) }

// Start returns midnight UTC on the first day of the month.
func (m Month) Start() time.Time {
	return time.Date(m.Year(), m.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// End returns midnight UTC on the last day of the month.
func (m Month) End() time.Time {
	return time.Date(m.Year(), m.Month()+1, 0, 0, 0, 0, 0, time.UTC)
}

// Add returns the month n months after m.
func (m Month) Add(n int) Month { return m + Month(n) }

// String formats the month as "2006-01".
func (m Month) String() string { return fmt.Sprintf("%04d-%02d", m.Year(), int(m.Month())) }

// IsMonthStart reports whether t falls on the first day of its month.
func IsMonthStart(t time.Time) bool { return t.Day() == 1 }

// IsMonthEnd reports whether t falls on the last day of its month.
func IsMonthEnd(t time.Time) bool { return t.AddDate(0, 0, 1).Day() == 1 }

// ParseMonth parses "2006-01".
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse(monthFormat, strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: month %q want format YYYY-MM", ErrInvalidPeriod, s)
	}
	return FromTime(t), nil
}

// ParseDate parses a "2006-01-02" date as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateFormat, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return t, nil
}

// FiscalIndex returns the 0-based position of a calendar month within a
// fiscal year ending in fyEnd. With fyEnd == December, January is 0.
func FiscalIndex(calendar, fyEnd time.Month) int {
	return (int(calendar) - int(fyEnd) - 1 + 24) % 12
}

// FiscalYearStart returns the first month of the fiscal year containing m.
func FiscalYearStart(m Month, fyEnd time.Month) Month {
	return m.Add(-FiscalIndex(m.Month(), fyEnd))
}
