// Package money holds the decimal conventions shared by every amount that
// flows through settlement: two fractional digits, round half-up.
package money

import "github.com/shopspring/decimal"

// Places is the number of fractional digits of the currency minor unit.
const Places = 2

var hundred = decimal.NewFromInt(100)

// Round rounds d to the currency minor unit. decimal.Round rounds half away
// from zero, which is half-up for the non-negative amounts used here.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Percent returns pct percent of amount without rounding.
func Percent(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(hundred)
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Clamp limits d to the closed interval [lo, hi].
func Clamp(d, lo, hi decimal.Decimal) decimal.Decimal {
	if d.LessThan(lo) {
		return lo
	}
	if d.GreaterThan(hi) {
		return hi
	}
	return d
}

// String formats d with exactly two fractional digits.
func String(d decimal.Decimal) string {
	return d.StringFixed(Places)
}
