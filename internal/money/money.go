// Package money centralizes the decimal arithmetic the ledger and order
// factory need. Every balance, price, and commission in the simulator is a
// decimal.Decimal rather than a float64: a backtest replays thousands of
// ticks, and float64 accumulation error compounds across that many
// settlements in a way a human tester would eventually notice as balance
// drift. BuyCost and SellProceeds round to a fixed Scale of 8 decimal
// places, enough headroom for both fractional crypto quantities and fiat cash.
package money

import "github.com/shopspring/decimal"

// Scale is the number of decimal places BuyCost and SellProceeds round
// their results to.
const Scale = 8

// Round rounds d to Scale decimal places, with halves rounded away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// BuyCost returns the total cash required to buy quantity at price with the
// given commission rate: quantity * price * (1 + commission).
func BuyCost(quantity, price, commission decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	return Round(quantity.Mul(price).Mul(one.Add(commission)))
}

// SellProceeds returns the net cash received from selling quantity at price
// with the given commission rate: quantity * price * (1 - commission).
func SellProceeds(quantity, price, commission decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	return Round(quantity.Mul(price).Mul(one.Sub(commission)))
}

// Max returns the greater of two decimals.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// IsPositive reports whether d is strictly greater than zero.
func IsPositive(d decimal.Decimal) bool {
	return d.GreaterThan(decimal.Zero)
}

// IsNegative reports whether d is strictly less than zero.
func IsNegative(d decimal.Decimal) bool {
	return d.LessThan(decimal.Zero)
}
