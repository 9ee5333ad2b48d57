package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CartItem snapshots a product at the moment it entered the cart.
// FinalUnitPrice and TotalPrice are derived and rewritten whenever the
// authoritative catalog price is re-read during checkout validation.
type CartItem struct {
	ProductID       primitive.ObjectID `bson:"productId" json:"productId"`
	Name            string             `bson:"name" json:"name"`
	ImagePath       string             `bson:"imagePath,omitempty" json:"imagePath,omitempty"`
	UnitPrice       int64              `bson:"unitPrice" json:"unitPrice"`
	DiscountPercent int                `bson:"discountPercent" json:"discountPercent"`
	DiscountExpiry  *time.Time         `bson:"discountExpiry,omitempty" json:"discountExpiry,omitempty"`
	FinalUnitPrice  int64              `bson:"finalUnitPrice" json:"finalUnitPrice"`
	Quantity        int                `bson:"quantity" json:"quantity"`
	StockAtAdd      int                `bson:"stockAtAdd" json:"stockAtAdd"`
	TotalPrice      int64              `bson:"totalPrice" json:"totalPrice"`
}

// Cart is the single mutable cart per user. Invariants held after every
// mutation: TotalPrice == FinalItemsPrice - DiscountAmount, and
// DiscountAmount == 0 whenever AppliedCouponID is nil.
type Cart struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID          primitive.ObjectID  `bson:"userId" json:"userId"`
	Items           []CartItem          `bson:"items" json:"items"`
	TotalItemCount  int                 `bson:"totalItemCount" json:"totalItemCount"`
	TotalQuantity   int                 `bson:"totalQuantity" json:"totalQuantity"`
	FinalItemsPrice int64               `bson:"finalItemsPrice" json:"finalItemsPrice"`
	AppliedCouponID *primitive.ObjectID `bson:"appliedCouponId,omitempty" json:"appliedCouponId,omitempty"`
	DiscountAmount  int64               `bson:"discountAmount" json:"discountAmount"`
	TotalPrice      int64               `bson:"totalPrice" json:"totalPrice"`
	CreatedAt       time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time           `bson:"updatedAt" json:"updatedAt"`
}
