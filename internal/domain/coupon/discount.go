package coupon

import (
	"github.com/shopspring/decimal"

	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/money"
)

// ComputeDiscount returns the discount c grants on orderAmount, rounded to
// the currency minor unit. The result is always within [0, orderAmount].
// shippingOffset is the amount a FREE_SHIPPING coupon is worth.
func ComputeDiscount(c *Coupon, orderAmount, shippingOffset decimal.Decimal) decimal.Decimal {
	amount := orderAmount
	if !amount.IsPositive() {
		return decimal.Zero
	}

	var raw decimal.Decimal
	switch c.Type {
	case TypePercentage:
		raw = money.Percent(amount, c.Value)
		if c.MaxDiscount.Valid {
			raw = money.Min(raw, c.MaxDiscount.Decimal)
		}
	case TypeFixedAmount:
		raw = c.Value
	case TypeFreeShipping:
		raw = shippingOffset
	default:
		return decimal.Zero
	}

	discount := money.Round(money.Clamp(raw, decimal.Zero, amount))
	if discount.GreaterThan(amount) {
		// Rounding up past a sub-cent amount; fall back to whole cents.
		discount = amount.Truncate(money.Places)
	}
	return discount
}
