package coupon

import (
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
)

var (
	ErrCouponNotFound           = errors.New("coupon not found")
	ErrCouponInactive           = errors.New("coupon is not active")
	ErrCouponExpired            = errors.New("coupon is outside its date window")
	ErrCouponUsageExhausted     = errors.New("coupon usage limit reached")
	ErrCouponNotApplicable      = errors.New("coupon does not apply to any cart item")
	ErrCouponMinimumOrderNotMet = errors.New("cart total is below the coupon minimum")
)

// NormalizeCode is how coupon codes are stored and looked up.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks the coupon itself, independent of any cart.
func Validate(c models.Coupon, now time.Time) error {
	if !c.IsActive {
		return ErrCouponInactive
	}
	if now.Before(c.StartDate) || now.After(c.EndDate) {
		return ErrCouponExpired
	}
	if c.MaxUses > 0 && c.UsesCount >= c.MaxUses {
		return ErrCouponUsageExhausted
	}
	return nil
}

// ComputeDiscount returns the discount amount for the given cart snapshot.
// The basis is the whole cart for cart-wide coupons, or the sum of matching
// line totals for product-subset coupons. The discount never exceeds the
// basis.
func ComputeDiscount(items []models.CartItem, finalItemsPrice int64, c models.Coupon) (int64, error) {
	basis := finalItemsPrice

	if c.Type == models.CouponTypeProduct {
		basis = 0
		eligible := make(map[primitive.ObjectID]bool, len(c.ProductIDs))
		for _, id := range c.ProductIDs {
			eligible[id] = true
		}
		for _, item := range items {
			if eligible[item.ProductID] {
				basis += item.TotalPrice
			}
		}
		if basis == 0 {
			return 0, ErrCouponNotApplicable
		}
	} else if c.MinOrderAmount > 0 && finalItemsPrice < c.MinOrderAmount {
		return 0, ErrCouponMinimumOrderNotMet
	}

	if c.Method == models.DiscountMethodPercentage {
		return basis * c.Value / 100, nil
	}
	if c.Value > basis {
		return basis, nil
	}
	return c.Value, nil
}
