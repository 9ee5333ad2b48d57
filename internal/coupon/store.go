package coupon

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/models"
)

// Store reads coupons and owns the single write path: the usage increment
// that settlement runs inside its transaction.
type Store struct {
	col *mongo.Collection
}

func NewStore(db *mongo.Database) *Store {
	return &Store{col: db.Collection("coupons")}
}

func (s *Store) GetByCode(ctx context.Context, code string) (models.Coupon, error) {
	var c models.Coupon
	err := s.col.FindOne(ctx, bson.M{"code": NormalizeCode(code)}).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return models.Coupon{}, ErrCouponNotFound
	}
	if err != nil {
		return models.Coupon{}, err
	}
	return c, nil
}

// IncrementUsage bumps usesCount, refusing to pass maxUses for capped
// coupons. A non-match means the coupon vanished or the cap was hit between
// validation and settlement.
func (s *Store) IncrementUsage(ctx context.Context, id primitive.ObjectID) error {
	filter := bson.M{
		"_id": id,
		"$or": []bson.M{
			{"maxUses": bson.M{"$lte": 0}},
			{"$expr": bson.M{"$lt": []string{"$usesCount", "$maxUses"}}},
		},
	}
	update := bson.M{"$inc": bson.M{"usesCount": 1}}

	res, err := s.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrCouponUsageExhausted
	}
	return nil
}
