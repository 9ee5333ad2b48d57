package catalog

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/models"
	"storefront/internal/pricing"
)

// ProductInfo is the authoritative price/stock view the cart and settlement
// read. FinalPrice already accounts for an active product discount.
type ProductInfo struct {
	ID              primitive.ObjectID
	Name            string
	ImagePath       string
	Price           int64
	DiscountPercent int
	DiscountExpiry  *time.Time
	FinalPrice      int64
	Stock           int
}

// Catalog is the narrow interface this subsystem has onto the product
// catalog; administration of products lives elsewhere.
type Catalog interface {
	GetProduct(ctx context.Context, id primitive.ObjectID) (ProductInfo, error)
	DecrementStock(ctx context.Context, id primitive.ObjectID, quantity int) error
}

type NotFoundError struct {
	ProductID primitive.ObjectID
}

func (e NotFoundError) Error() string {
	return "product not found"
}

type InsufficientStockError struct {
	ProductID primitive.ObjectID
	Available int
	Requested int
}

func (e InsufficientStockError) Error() string {
	return "product out of stock"
}

type MongoCatalog struct {
	col *mongo.Collection
	now func() time.Time
}

func NewMongoCatalog(db *mongo.Database) *MongoCatalog {
	return &MongoCatalog{col: db.Collection("products"), now: time.Now}
}

func (m *MongoCatalog) GetProduct(ctx context.Context, id primitive.ObjectID) (ProductInfo, error) {
	var product models.Product
	err := m.col.FindOne(ctx, bson.M{
		"_id":       id,
		"isActive":  true,
		"isDeleted": bson.M{"$ne": true},
	}).Decode(&product)
	if err == mongo.ErrNoDocuments {
		return ProductInfo{}, NotFoundError{ProductID: id}
	}
	if err != nil {
		return ProductInfo{}, err
	}

	return ProductInfo{
		ID:              product.ID,
		Name:            product.Name,
		ImagePath:       product.ImagePath,
		Price:           product.Price,
		DiscountPercent: product.DiscountPercent,
		DiscountExpiry:  product.DiscountExpiry,
		FinalPrice:      pricing.EffectiveUnitPrice(product.Price, product.DiscountPercent, product.DiscountExpiry, m.now()),
		Stock:           product.Stock,
	}, nil
}

// DecrementStock takes quantity off the product's stock. The filter guards
// against going negative; a non-match is reported as insufficient stock (or
// not-found when the product is gone entirely).
func (m *MongoCatalog) DecrementStock(ctx context.Context, id primitive.ObjectID, quantity int) error {
	filter := bson.M{
		"_id":       id,
		"isDeleted": bson.M{"$ne": true},
		"stock":     bson.M{"$gte": quantity},
	}
	update := bson.M{"$inc": bson.M{"stock": -quantity}}

	res, err := m.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		var product models.Product
		findErr := m.col.FindOne(ctx, bson.M{"_id": id, "isDeleted": bson.M{"$ne": true}}).Decode(&product)
		if findErr == mongo.ErrNoDocuments {
			return NotFoundError{ProductID: id}
		}
		if findErr != nil {
			return findErr
		}
		return InsufficientStockError{ProductID: id, Available: product.Stock, Requested: quantity}
	}
	return nil
}
