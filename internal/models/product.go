package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Product is the catalog document as this subsystem reads it. The catalog is
// administered elsewhere; here it is only consulted for price/stock and
// decremented at settlement.
type Product struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name            string             `bson:"name" json:"name"`
	Price           int64              `bson:"price" json:"price"`
	DiscountPercent int                `bson:"discountPercent" json:"discountPercent"`
	DiscountExpiry  *time.Time         `bson:"discountExpiry,omitempty" json:"discountExpiry,omitempty"`
	ImagePath       string             `bson:"imagePath,omitempty" json:"imagePath,omitempty"`
	Stock           int                `bson:"stock" json:"stock"`
	IsActive        bool               `bson:"isActive" json:"isActive"`
	IsDeleted       bool               `bson:"isDeleted" json:"isDeleted,omitempty"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
}
