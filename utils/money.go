package utils

import "github.com/shopspring/decimal"

// Monetary amounts are persisted as float64 but every arithmetic step goes
// through decimals so that repeated allocations never accumulate float
// drift into a stored field.

// AddMoney returns a+b rounded to cents.
func AddMoney(a, b float64) float64 {
	return toFloat(decimal.NewFromFloat(a).Add(decimal.NewFromFloat(b)))
}

// SubMoney returns a-b rounded to cents.
func SubMoney(a, b float64) float64 {
	return toFloat(decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)))
}

// MulMoney returns a*n rounded to cents.
func MulMoney(a float64, n int) float64 {
	return toFloat(decimal.NewFromFloat(a).Mul(decimal.NewFromInt(int64(n))))
}

// MinMoney returns the smaller of a and b, compared as decimals.
func MinMoney(a, b float64) float64 {
	da, db := decimal.NewFromFloat(a), decimal.NewFromFloat(b)
	if da.LessThanOrEqual(db) {
		return toFloat(da)
	}
	return toFloat(db)
}

// RoundMoney normalizes an amount to cents.
func RoundMoney(a float64) float64 {
	return toFloat(decimal.NewFromFloat(a))
}

// MoneyGTE reports a >= b at cent precision.
func MoneyGTE(a, b float64) bool {
	return !decimal.NewFromFloat(a).Round(2).LessThan(decimal.NewFromFloat(b).Round(2))
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}
