package shared

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Nature classifies the natural balance side of a group.
type Nature string

const (
	NatureAsset     Nature = "asset"
	NatureLiability Nature = "liability"
	NatureEquity    Nature = "equity"
	NatureIncome    Nature = "income"
	NatureExpense   Nature = "expense"
)

// Natures lists every nature in statement order.
var Natures = []Nature{NatureAsset, NatureLiability, NatureEquity, NatureIncome, NatureExpense}

// ParseNature accepts the stored value and the capitalised labels used by imports.
func ParseNature(raw string) (Nature, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "asset", "assets":
		return NatureAsset, true
	case "liability", "liabilities":
		return NatureLiability, true
	case "equity":
		return NatureEquity, true
	case "income":
		return NatureIncome, true
	case "expense", "expenses":
		return NatureExpense, true
	}
	return "", false
}

// Valid reports whether n is one of the five natures.
func (n Nature) Valid() bool {
	switch n {
	case NatureAsset, NatureLiability, NatureEquity, NatureIncome, NatureExpense:
		return true
	}
	return false
}

// DebitNatural reports whether increases are recorded as debits.
func (n Nature) DebitNatural() bool {
	switch n {
	case NatureAsset, NatureExpense:
		return true
	default:
		return false
	}
}

// Present converts a debit-natural net (debit - credit) into the reported
// balance for the nature. It is the only place the sign is flipped.
func Present(n Nature, net decimal.Decimal) decimal.Decimal {
	if n.DebitNatural() {
		return net
	}
	return net.Neg()
}
