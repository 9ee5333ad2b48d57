package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrderStatus moves strictly forward along the graph encoded in the orders
// package; Delivered, Canceled and Refunded are terminal.
type OrderStatus string

const (
	OrderAwaitingPayment OrderStatus = "awaiting_payment"
	OrderPaid            OrderStatus = "paid"
	OrderProcessing      OrderStatus = "processing"
	OrderShipped         OrderStatus = "shipped"
	OrderDelivered       OrderStatus = "delivered"
	OrderCanceled        OrderStatus = "canceled"
	OrderRefunded        OrderStatus = "refunded"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// StatusChange is one append-only history entry. Reason is set for Canceled
// and Refunded transitions, CarrierCode for Shipped; the orders package
// rejects transitions missing the field their target status requires.
type StatusChange struct {
	From        OrderStatus `bson:"from" json:"from"`
	To          OrderStatus `bson:"to" json:"to"`
	At          time.Time   `bson:"at" json:"at"`
	Reason      string      `bson:"reason,omitempty" json:"reason,omitempty"`
	CarrierCode string      `bson:"carrierCode,omitempty" json:"carrierCode,omitempty"`
}

// PaymentSummary is written once, by settlement, when the order is paid.
type PaymentSummary struct {
	PaymentID primitive.ObjectID `bson:"paymentId" json:"paymentId"`
	Gateway   string             `bson:"gateway" json:"gateway"`
	RefID     string             `bson:"refId" json:"refId"`
	Fee       int64              `bson:"fee" json:"fee"`
	PaidAt    time.Time          `bson:"paidAt" json:"paidAt"`
}

// Order is frozen at creation: items and totals are deep copies of the cart
// and are never recomputed. Only status, paymentStatus, the payment summary
// and the history log change afterwards.
type Order struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID          primitive.ObjectID  `bson:"userId" json:"userId"`
	Items           []CartItem          `bson:"items" json:"items"`
	TotalItemCount  int                 `bson:"totalItemCount" json:"totalItemCount"`
	TotalQuantity   int                 `bson:"totalQuantity" json:"totalQuantity"`
	FinalItemsPrice int64               `bson:"finalItemsPrice" json:"finalItemsPrice"`
	AppliedCouponID *primitive.ObjectID `bson:"appliedCouponId,omitempty" json:"appliedCouponId,omitempty"`
	DiscountAmount  int64               `bson:"discountAmount" json:"discountAmount"`
	TotalPrice      int64               `bson:"totalPrice" json:"totalPrice"`
	AddressID       string              `bson:"addressId" json:"addressId"`
	Status          OrderStatus         `bson:"status" json:"status"`
	PaymentStatus   PaymentStatus       `bson:"paymentStatus" json:"paymentStatus"`
	TrackingCode    string              `bson:"trackingCode" json:"trackingCode"`
	Payment         *PaymentSummary     `bson:"payment,omitempty" json:"payment,omitempty"`
	History         []StatusChange      `bson:"history" json:"history"`
	CreatedAt       time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time           `bson:"updatedAt" json:"updatedAt"`
}
