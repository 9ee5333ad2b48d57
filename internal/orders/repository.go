package orders

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/models"
)

var ErrOrderNotFound = errors.New("order not found")

// ErrOrderNotPayable surfaces when settlement finds the order already moved
// past AwaitingPayment (a replayed callback, or an admin cancellation that
// raced the payment).
var ErrOrderNotPayable = errors.New("order is not awaiting payment")

type Repository interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	FindByTrackingCode(ctx context.Context, code string) (*models.Order, error)
	// FindPendingByUser returns (nil, nil) when the user has no order
	// awaiting payment.
	FindPendingByUser(ctx context.Context, userID primitive.ObjectID) (*models.Order, error)
	FindByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error)
	Insert(ctx context.Context, o *models.Order) error
	Update(ctx context.Context, o *models.Order) error
	// MarkPaid atomically moves an awaiting-payment order to paid and
	// records the payment summary; the guard on the current status makes
	// replays fail rather than double-apply.
	MarkPaid(ctx context.Context, id primitive.ObjectID, summary models.PaymentSummary) error
}

type mongoRepository struct {
	col *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) Repository {
	return &mongoRepository{col: db.Collection("orders")}
}

func (r *mongoRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	var o models.Order
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&o)
	if err == mongo.ErrNoDocuments {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *mongoRepository) FindByTrackingCode(ctx context.Context, code string) (*models.Order, error) {
	var o models.Order
	err := r.col.FindOne(ctx, bson.M{"trackingCode": code}).Decode(&o)
	if err == mongo.ErrNoDocuments {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *mongoRepository) FindPendingByUser(ctx context.Context, userID primitive.ObjectID) (*models.Order, error) {
	var o models.Order
	err := r.col.FindOne(ctx, bson.M{
		"userId":        userID,
		"status":        models.OrderAwaitingPayment,
		"paymentStatus": models.PaymentPending,
	}).Decode(&o)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *mongoRepository) FindByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.col.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []models.Order
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *mongoRepository) Insert(ctx context.Context, o *models.Order) error {
	res, err := r.col.InsertOne(ctx, o)
	if err != nil {
		return err
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		o.ID = id
	}
	return nil
}

func (r *mongoRepository) Update(ctx context.Context, o *models.Order) error {
	update := bson.M{"$set": bson.M{
		"status":        o.Status,
		"paymentStatus": o.PaymentStatus,
		"payment":       o.Payment,
		"history":       o.History,
		"updatedAt":     o.UpdatedAt,
	}}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": o.ID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *mongoRepository) MarkPaid(ctx context.Context, id primitive.ObjectID, summary models.PaymentSummary) error {
	filter := bson.M{"_id": id, "status": models.OrderAwaitingPayment}
	update := bson.M{
		"$set": bson.M{
			"status":        models.OrderPaid,
			"paymentStatus": models.PaymentPaid,
			"payment":       summary,
			"updatedAt":     summary.PaidAt,
		},
		"$push": bson.M{"history": models.StatusChange{
			From: models.OrderAwaitingPayment,
			To:   models.OrderPaid,
			At:   summary.PaidAt,
		}},
	}

	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrOrderNotPayable
	}
	return nil
}
