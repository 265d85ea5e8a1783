// Package balance enforces and checks Assets = Liabilities + Equity on dense
// stock series.
package balance

import (
	"errors"
	"fmt"
	"math"

	"github.com/cleared-dev/densify/internal/model"
	"github.com/cleared-dev/densify/internal/period"
)

// DefaultTolerance is the relative tolerance of the equation check.
const DefaultTolerance = 1e-6

// ErrUnresolvedBalance means the equation still does not close after the
// balancing account was adjusted.
var ErrUnresolvedBalance = errors.New("accounting equation unresolved")

// UnresolvedBalanceError names the first month that failed the post-check.
type UnresolvedBalanceError struct {
	Month    period.Month
	Residual float64
}

func (e *UnresolvedBalanceError) Error() string {
	return fmt.Sprintf("%s: residual %g after balancing", e.Month, e.Residual)
}

func (e *UnresolvedBalanceError) Unwrap() error { return ErrUnresolvedBalance }

// Account is one densified stock account.
type Account struct {
	Name      string
	Type      model.AccountType
	Series    model.Series
	Balancing bool
}

// Totals holds one month's balance sheet sums.
type Totals struct {
	Assets      float64
	Liabilities float64
	Equity      float64
}

// Residual returns Assets - (Liabilities + Equity).
func (t Totals) Residual() float64 { return t.Assets - t.Liabilities - t.Equity }

func (t *Totals) add(typ model.AccountType, v float64) {
	switch typ {
	case model.AccountTypeAsset:
		t.Assets += v
	case model.AccountTypeLiability:
		t.Liabilities += v
	case model.AccountTypeEquity:
		t.Equity += v
	}
}

// closes reports whether the residual is within tol relative to the larger side.
func (t Totals) closes(tol float64) bool {
	scale := math.Max(1, math.Max(math.Abs(t.Assets), math.Abs(t.Liabilities+t.Equity)))
	return math.Abs(t.Residual()) <= tol*scale
}

// Balance returns the balancing account and its corrected series. The flagged
// account, if any, absorbs each month's residual with the sign of its
// classification: a liability or equity account grows by the residual, an
// asset shrinks by it. Without a flagged account an equity account named
// model.BalancingAccountName is synthesized holding the residual itself.
// Other accounts are never modified.
func Balance(accounts []Account, span period.Range, tol float64) (model.Balancing, model.Series, error) {
	if tol == 0 {
		tol = DefaultTolerance
	}

	var plug *Account
	for i := range accounts {
		if !accounts[i].Balancing {
			continue
		}
		if plug != nil {
			return model.Balancing{}, model.Series{}, fmt.Errorf("both %q and %q are flagged as balancing accounts", plug.Name, accounts[i].Name)
		}
		if accounts[i].Type.Behavior() != model.Stock {
			return model.Balancing{}, model.Series{}, fmt.Errorf("balancing account %q is not a balance sheet account", accounts[i].Name)
		}
		plug = &accounts[i]
	}

	info := model.Balancing{Name: model.BalancingAccountName, Type: model.AccountTypeEquity, Synthesized: true}
	adjusted := model.NewSeries(span)
	if plug != nil {
		info = model.Balancing{Name: plug.Name, Type: plug.Type}
		for m := span.First; m <= span.Last; m++ {
			adjusted.Set(m, plug.Series.At(m))
		}
	}

	for m := span.First; m <= span.Last; m++ {
		var t Totals
		for _, a := range accounts {
			if plug != nil && a.Name == plug.Name {
				continue
			}
			t.add(a.Type, a.Series.At(m))
		}
		current := adjusted.At(m)
		t.add(info.Type, current)
		discrepancy := t.Residual()

		if info.Type == model.AccountTypeAsset {
			adjusted.Set(m, current-discrepancy)
		} else {
			adjusted.Set(m, current+discrepancy)
		}
	}

	for m := span.First; m <= span.Last; m++ {
		var t Totals
		for _, a := range accounts {
			if plug != nil && a.Name == plug.Name {
				continue
			}
			t.add(a.Type, a.Series.At(m))
		}
		t.add(info.Type, adjusted.At(m))
		if !t.closes(tol) {
			return model.Balancing{}, model.Series{}, &UnresolvedBalanceError{Month: m, Residual: t.Residual()}
		}
	}

	return info, adjusted, nil
}
