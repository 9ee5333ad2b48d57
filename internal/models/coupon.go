package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	// CouponTypeCart applies to the whole cart total.
	CouponTypeCart = "cart"
	// CouponTypeProduct applies only to lines whose product is in ProductIDs.
	CouponTypeProduct = "product"

	// DiscountMethodPercentage discounts a percentage of the basis amount.
	DiscountMethodPercentage = "percentage"
	// DiscountMethodAmount discounts a fixed amount, capped at the basis.
	DiscountMethodAmount = "amount"
)

// Coupon is looked up by its case-normalized code. UsesCount is written only
// by the settlement transaction; everything else is read-only at apply time.
type Coupon struct {
	ID             primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Code           string               `bson:"code" json:"code"`
	Type           string               `bson:"type" json:"type"`
	Method         string               `bson:"method" json:"method"`
	Value          int64                `bson:"value" json:"value"`
	ProductIDs     []primitive.ObjectID `bson:"productIds,omitempty" json:"productIds,omitempty"`
	MinOrderAmount int64                `bson:"minOrderAmount,omitempty" json:"minOrderAmount,omitempty"`
	MaxUses        int                  `bson:"maxUses" json:"maxUses"`
	UsesCount      int                  `bson:"usesCount" json:"usesCount"`
	StartDate      time.Time            `bson:"startDate" json:"startDate"`
	EndDate        time.Time            `bson:"endDate" json:"endDate"`
	IsActive       bool                 `bson:"isActive" json:"isActive"`
	CreatedAt      time.Time            `bson:"createdAt" json:"createdAt"`
}
