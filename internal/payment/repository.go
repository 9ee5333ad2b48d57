package payment

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/models"
)

var (
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrPaymentNotPending = errors.New("payment is not pending")
)

type Repository interface {
	Insert(ctx context.Context, p *models.Payment) error
	FindByAuthority(ctx context.Context, authority string) (*models.Payment, error)
	// FindPendingByOrder returns (nil, nil) when the order has no pending
	// attempt.
	FindPendingByOrder(ctx context.Context, orderID primitive.ObjectID) (*models.Payment, error)
	// MarkPaid and MarkFailed are both guarded on the pending status so
	// concurrent callbacks for the same authority cannot double-apply or
	// overwrite a settled payment; a non-pending target is ErrPaymentNotPending.
	MarkPaid(ctx context.Context, id primitive.ObjectID, refID string, fee int64, meta models.PaymentMeta) error
	MarkFailed(ctx context.Context, id primitive.ObjectID, meta models.PaymentMeta) error
}

type mongoRepository struct {
	col *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) Repository {
	return &mongoRepository{col: db.Collection("payments")}
}

func (r *mongoRepository) Insert(ctx context.Context, p *models.Payment) error {
	res, err := r.col.InsertOne(ctx, p)
	if err != nil {
		return err
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		p.ID = id
	}
	return nil
}

func (r *mongoRepository) FindByAuthority(ctx context.Context, authority string) (*models.Payment, error) {
	var p models.Payment
	err := r.col.FindOne(ctx, bson.M{"authority": authority}).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *mongoRepository) FindPendingByOrder(ctx context.Context, orderID primitive.ObjectID) (*models.Payment, error) {
	var p models.Payment
	err := r.col.FindOne(ctx, bson.M{"orderId": orderID, "status": models.PaymentPending}).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *mongoRepository) MarkPaid(ctx context.Context, id primitive.ObjectID, refID string, fee int64, meta models.PaymentMeta) error {
	filter := bson.M{"_id": id, "status": models.PaymentPending}
	update := bson.M{"$set": bson.M{
		"status":    models.PaymentPaid,
		"refId":     refID,
		"fee":       fee,
		"meta":      meta,
		"updatedAt": time.Now(),
	}}

	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrPaymentNotPending
	}
	return nil
}

func (r *mongoRepository) MarkFailed(ctx context.Context, id primitive.ObjectID, meta models.PaymentMeta) error {
	filter := bson.M{"_id": id, "status": models.PaymentPending}
	update := bson.M{"$set": bson.M{
		"status":    models.PaymentFailed,
		"meta":      meta,
		"updatedAt": time.Now(),
	}}

	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrPaymentNotPending
	}
	return nil
}
