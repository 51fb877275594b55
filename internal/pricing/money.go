package pricing

import "github.com/shopspring/decimal"

var (
	zero    = decimal.Zero
	hundred = decimal.NewFromInt(100)
	cent    = decimal.New(1, -2)
)

func money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func toFloat(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// ToCents converts a currency amount to integer minor units.
func ToCents(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(hundred).Round(0).IntPart()
}

func FromCents(cents int64) float64 {
	return decimal.New(cents, -2).InexactFloat64()
}

func minDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
