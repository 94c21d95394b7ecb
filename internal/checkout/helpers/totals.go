package helpers

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Totals is the money breakdown shared by carts and orders. Total always
// equals Subtotal + Shipping - Discount and is never negative.
type Totals struct {
	Subtotal decimal.Decimal
	Shipping decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// ComputeTotals charges the flat shipping fee only for a non-empty subtotal and
// clamps the discount into [0, subtotal+shipping].
func ComputeTotals(subtotal, shippingFlatFee, discount decimal.Decimal) Totals {
	if subtotal.IsNegative() {
		subtotal = decimal.Zero
	}
	shipping := decimal.Zero
	if subtotal.IsPositive() && shippingFlatFee.IsPositive() {
		shipping = shippingFlatFee
	}
	gross := subtotal.Add(shipping)
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if discount.GreaterThan(gross) {
		discount = gross
	}
	return Totals{
		Subtotal: subtotal.Round(2),
		Shipping: shipping.Round(2),
		Discount: discount.Round(2),
		Total:    gross.Sub(discount).Round(2),
	}
}

// LineTotal is unit price times quantity, rounded to cents.
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}

func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, value := range values {
		total = total.Add(value)
	}
	return total
}

// ToCents converts a money amount to integer minor units.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}
