package handler

import "github.com/shopspring/decimal"

// Request DTOs carry money and rates as float64; the domain works in
// decimal. Conversion happens once, at the handler boundary.

func decimalFrom(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func decimalPtrFrom(f float64) *decimal.Decimal {
	d := decimal.NewFromFloat(f)
	return &d
}
