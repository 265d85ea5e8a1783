package model

import (
	"slices"
	"time"
)

// Snapshot is a reported balance on a month-end date.
type Snapshot struct {
	Date   time.Time
	Value  float64
	Source string // document the figure came from, informational only
}

// PeriodConstraint is a reported total over whole months [Start, End].
type PeriodConstraint struct {
	Start  time.Time // first day of the first month
	End    time.Time // last day of the last month
	Value  float64
	Source string
}

// ProfileID names a built-in seasonality profile.
type ProfileID string

const (
	ProfileFlat       ProfileID = "flat"
	ProfileRetailPeak ProfileID = "retail_peak"
	ProfileSummerHigh ProfileID = "summer_high"
	ProfileSaasGrowth ProfileID = "saas_growth"
	ProfileCustom     ProfileID = "custom"
)

// Seasonality references a built-in profile or carries custom weights,
// indexed by fiscal month.
type Seasonality struct {
	Profile ProfileID
	Weights []float64 // only for ProfileCustom
}

// StockAccount is a balance sheet account densified from snapshots.
type StockAccount struct {
	Name        string
	Type        AccountType
	Category    string
	Method      Interpolation
	Snapshots   []Snapshot
	NoiseFactor float64
	Balancing   bool
}

// FlowAccount is an income statement account densified from period totals.
type FlowAccount struct {
	Name        string
	Type        AccountType
	Category    string
	Seasonality Seasonality
	Constraints []PeriodConstraint
	NoiseFactor float64
}

// Ledger is the sparse description handed to the engine.
type Ledger struct {
	Organization       string
	FiscalYearEndMonth time.Month // zero means December
	Stock              []StockAccount
	Flow               []FlowAccount
}

// FiscalYearEnd returns the fiscal year end month, defaulting to December.
func (l *Ledger) FiscalYearEnd() time.Month {
	if l.FiscalYearEndMonth == 0 {
		return time.December
	}
	return l.FiscalYearEndMonth
}

// TypeOf returns the classification of a named input account.
func (l *Ledger) TypeOf(name string) (AccountType, bool) {
	for _, a := range l.Stock {
		if a.Name == name {
			return a.Type, true
		}
	}
	for _, a := range l.Flow {
		if a.Name == name {
			return a.Type, true
		}
	}
	return "", false
}

// Clone returns a deep copy so callers can edit without touching the original.
func (l *Ledger) Clone() *Ledger {
	out := &Ledger{
		Organization:       l.Organization,
		FiscalYearEndMonth: l.FiscalYearEndMonth,
		Stock:              make([]StockAccount, len(l.Stock)),
		Flow:               make([]FlowAccount, len(l.Flow)),
	}
	for i, a := range l.Stock {
		a.Snapshots = slices.Clone(a.Snapshots)
		out.Stock[i] = a
	}
	for i, a := range l.Flow {
		a.Constraints = slices.Clone(a.Constraints)
		a.Seasonality.Weights = slices.Clone(a.Seasonality.Weights)
		out.Flow[i] = a
	}
	return out
}
