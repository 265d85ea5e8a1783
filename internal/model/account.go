package model

import (
	"fmt"
	"strings"
)

// AccountType classifies accounts in the chart of accounts.
type AccountType string

const (
	AccountTypeRevenue          AccountType = "revenue"
	AccountTypeCostOfSales      AccountType = "cost_of_sales"
	AccountTypeOperatingExpense AccountType = "operating_expense"
	AccountTypeOtherIncome      AccountType = "other_income"
	AccountTypeAsset            AccountType = "asset"
	AccountTypeLiability        AccountType = "liability"
	AccountTypeEquity           AccountType = "equity"
)

// AccountTypes lists every classification in statement order.
var AccountTypes = []AccountType{
	AccountTypeAsset,
	AccountTypeLiability,
	AccountTypeEquity,
	AccountTypeRevenue,
	AccountTypeCostOfSales,
	AccountTypeOperatingExpense,
	AccountTypeOtherIncome,
}

// Behavior tells whether an account's values are period totals or balances.
type Behavior string

const (
	Flow  Behavior = "flow"
	Stock Behavior = "stock"
)

// Behavior derives Flow or Stock from the classification.
func (t AccountType) Behavior() Behavior {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity:
		return Stock
	default:
		return Flow
	}
}

// Valid reports whether t is one of the known classifications.
func (t AccountType) Valid() bool {
	for _, at := range AccountTypes {
		if at == t {
			return true
		}
	}
	return false
}

// ParseAccountType accepts the canonical names plus a few spellings found in
// extracted statements ("Cost of Sales", "OperatingExpense").
func ParseAccountType(s string) (AccountType, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	switch key {
	case "costofsales", "cogs":
		key = string(AccountTypeCostOfSales)
	case "operatingexpense", "opex", "expense":
		key = string(AccountTypeOperatingExpense)
	case "otherincome":
		key = string(AccountTypeOtherIncome)
	}
	t := AccountType(key)
	if !t.Valid() {
		return "", fmt.Errorf("unknown account type %q", s)
	}
	return t, nil
}

// Interpolation selects the curve used between stock snapshots.
type Interpolation string

const (
	Linear Interpolation = "linear"
	Step   Interpolation = "step"
	Curve  Interpolation = "curve"
)

// Valid reports whether i is a known method.
func (i Interpolation) Valid() bool {
	return i == Linear || i == Step || i == Curve
}
