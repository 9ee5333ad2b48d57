package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PaymentMeta records what the gateway told us about this attempt. On a
// failed attempt FailureReason and/or CallbackStatus explain why.
type PaymentMeta struct {
	CallbackStatus string `bson:"callbackStatus,omitempty" json:"callbackStatus,omitempty"`
	VerifyCode     int    `bson:"verifyCode,omitempty" json:"verifyCode,omitempty"`
	FailureReason  string `bson:"failureReason,omitempty" json:"failureReason,omitempty"`
}

// Payment is one attempt against the gateway. An order accumulates attempts
// across retries; only one may be pending at a time.
type Payment struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrderID   primitive.ObjectID `bson:"orderId" json:"orderId"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	Amount    int64              `bson:"amount" json:"amount"`
	Gateway   string             `bson:"gateway" json:"gateway"`
	Status    PaymentStatus      `bson:"status" json:"status"`
	Authority string             `bson:"authority" json:"authority"`
	RefID     string             `bson:"refId,omitempty" json:"refId,omitempty"`
	Fee       int64              `bson:"fee" json:"fee"`
	Meta      PaymentMeta        `bson:"meta" json:"meta"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}
