package models

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// MoneyPlaces is the number of decimal places stored for every money column.
const MoneyPlaces = 2

// PercentOf returns value * percentage / 100 rounded half away from zero to cents.
func PercentOf(value, percentage decimal.Decimal) decimal.Decimal {
	return value.Mul(percentage).Div(hundred).Round(MoneyPlaces)
}

// ComputeDeposit splits a subtotal into the deposit and the remaining balance.
// It is the only rounding rule used for deposits, so the split always sums back to subtotal.
func ComputeDeposit(subtotal, percentage decimal.Decimal) (deposit, remaining decimal.Decimal) {
	deposit = PercentOf(subtotal, percentage)
	remaining = subtotal.Sub(deposit)
	return deposit, remaining
}

// LineTotal is unit price times quantity, exact.
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}
