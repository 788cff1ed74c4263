package money

import "github.com/shopspring/decimal"

// Scale is the number of decimal digits carried by every monetary amount.
const Scale int32 = 2

// Round2 rounds a value half-up (away from zero) to exactly two decimal digits.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// Convert applies an exchange rate to an amount and rounds the result.
func Convert(amount, rate decimal.Decimal) decimal.Decimal {
	return Round2(amount.Mul(rate))
}

// Format renders an amount with exactly two decimal digits
func Format(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}
