// Package pricing computes final charges from subtotals and discounts.
// Percent math goes through shopspring/decimal so repeated percent discounts
// never accumulate float drift; everything is rounded half-up to whole cents.
package pricing

import "github.com/shopspring/decimal"

// FinalAmountCents returns the amount actually charged for the given
// subtotal. Fixed discounts are given in cents, percent discounts in percent
// points. A discount <= 0 is a no-op; the result is always in [0, subtotal],
// so a percent discount above 100 clamps the charge to zero.
func FinalAmountCents(subtotalCents int64, discount float64, kind string) int64 {
	if subtotalCents <= 0 {
		return 0
	}
	if discount <= 0 {
		return subtotalCents
	}

	var cut int64
	switch kind {
	case "percent":
		cut = decimal.NewFromInt(subtotalCents).
			Mul(decimal.NewFromFloat(discount)).
			Div(decimal.NewFromInt(100)).
			Round(0).
			IntPart()
	case "fixed":
		cut = decimal.NewFromFloat(discount).Round(0).IntPart()
	default:
		return subtotalCents
	}

	final := subtotalCents - cut
	if final < 0 {
		return 0
	}
	return final
}

// DiscountAmountCents is the complement of FinalAmountCents, clamped to
// [0, subtotal].
func DiscountAmountCents(subtotalCents int64, discount float64, kind string) int64 {
	return subtotalCents - FinalAmountCents(subtotalCents, discount, kind)
}
