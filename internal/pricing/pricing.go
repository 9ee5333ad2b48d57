package pricing

import (
	"time"

	"storefront/internal/models"
)

// Totals is the aggregate a cart or frozen order carries. TotalPrice is
// always FinalItemsPrice minus the coupon discount.
type Totals struct {
	TotalItemCount  int
	TotalQuantity   int
	FinalItemsPrice int64
	TotalPrice      int64
}

func isDiscountActive(discountPercent int, discountExpiry *time.Time, now time.Time) bool {
	return discountPercent > 0 && (discountExpiry == nil || discountExpiry.After(now))
}

// EffectiveUnitPrice returns the base price unless a product discount is
// active, in which case the percentage is taken off the base.
func EffectiveUnitPrice(base int64, discountPercent int, discountExpiry *time.Time, now time.Time) int64 {
	if isDiscountActive(discountPercent, discountExpiry, now) {
		return base - base*int64(discountPercent)/100
	}
	return base
}

// LineTotal is the price of one cart line.
func LineTotal(finalUnitPrice int64, quantity int) int64 {
	return finalUnitPrice * int64(quantity)
}

// Recalculate recomputes the aggregate totals from the lines and the
// currently applied discount amount.
func Recalculate(items []models.CartItem, discountAmount int64) Totals {
	totals := Totals{TotalItemCount: len(items)}
	for _, item := range items {
		totals.TotalQuantity += item.Quantity
		totals.FinalItemsPrice += item.TotalPrice
	}
	totals.TotalPrice = totals.FinalItemsPrice - discountAmount
	return totals
}

// Apply writes the recomputed totals back onto the cart.
func Apply(cart *models.Cart, discountAmount int64) {
	totals := Recalculate(cart.Items, discountAmount)
	cart.TotalItemCount = totals.TotalItemCount
	cart.TotalQuantity = totals.TotalQuantity
	cart.FinalItemsPrice = totals.FinalItemsPrice
	cart.DiscountAmount = discountAmount
	cart.TotalPrice = totals.TotalPrice
}
