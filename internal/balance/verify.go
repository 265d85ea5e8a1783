package balance

import (
	"fmt"
	"time"

	"github.com/cleared-dev/densify/internal/model"
	"github.com/cleared-dev/densify/internal/period"
)

// Classifier looks up the classification of an input account.
type Classifier interface {
	TypeOf(name string) (model.AccountType, bool)
}

// Imbalance describes a month where the equation does not hold.
type Imbalance struct {
	Month period.Month
	Totals
}

// Date returns the month-end date of the failing month.
func (i Imbalance) Date() time.Time { return i.Month.End() }

func (i Imbalance) Error() string {
	return fmt.Sprintf("%s: assets %.2f != liabilities %.2f + equity %.2f (difference %.6f)",
		i.Month.End().Format(period.DateFormat), i.Assets, i.Liabilities, i.Equity, i.Residual())
}

// Verify checks every month of out against the equation without modifying
// anything. Accounts are classified through ledger; the output's own
// balancing account is classified from out.Balancing when the ledger does
// not know it. Unknown accounts are ignored.
func Verify(ledger Classifier, out *model.Output, tol float64) []Imbalance {
	if tol == 0 {
		tol = DefaultTolerance
	}

	types := make(map[string]model.AccountType, len(out.Series))
	for name := range out.Series {
		if typ, ok := ledger.TypeOf(name); ok {
			types[name] = typ
		} else if name == out.Balancing.Name && out.Balancing.Type != "" {
			types[name] = out.Balancing.Type
		}
	}

	var errs []Imbalance
	for m := out.Range.First; m <= out.Range.Last; m++ {
		var t Totals
		for name, s := range out.Series {
			t.add(types[name], s.At(m))
		}
		if !t.closes(tol) {
			errs = append(errs, Imbalance{Month: m, Totals: t})
		}
	}
	return errs
}
