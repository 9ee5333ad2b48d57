package orders

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
)

var ErrEmptyCart = errors.New("cart is empty, nothing to order")

// Factory freezes a validated cart into an immutable order. At most one
// awaiting-payment order exists per user: re-entry with an unchanged cart
// returns the existing order, so a double-clicked checkout cannot create
// duplicates.
type Factory struct {
	repo Repository

	now             func() time.Time
	newTrackingCode func() string
}

func NewFactory(repo Repository) *Factory {
	return &Factory{
		repo:            repo,
		now:             time.Now,
		newTrackingCode: newTrackingCode,
	}
}

// CreateFromCart freezes the exact snapshot the checkout gate just validated.
// The caller hands it over instead of the factory re-reading the cart, so a
// concurrent mutation between validation and freezing cannot slip an
// unvalidated cart into the order.
func (f *Factory) CreateFromCart(ctx context.Context, c *models.Cart, addressID string) (*models.Order, error) {
	if c == nil || len(c.Items) == 0 {
		return nil, ErrEmptyCart
	}

	pending, err := f.repo.FindPendingByUser(ctx, c.UserID)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		if cartMatchesOrder(c, pending) {
			log.Println("[ORDER] [INFO] returning existing pending order:", pending.TrackingCode)
			return pending, nil
		}
		// the cart changed since this order was frozen; the stale order
		// would charge the wrong amount, so retire it and start over
		if err := ApplyTransition(pending, models.OrderCanceled, f.now(), "superseded by changed cart", ""); err != nil {
			return nil, err
		}
		if err := f.repo.Update(ctx, pending); err != nil {
			return nil, err
		}
		log.Println("[ORDER] [INFO] canceled stale pending order:", pending.TrackingCode)
	}

	now := f.now()
	order := &models.Order{
		UserID:          c.UserID,
		Items:           append([]models.CartItem{}, c.Items...),
		TotalItemCount:  c.TotalItemCount,
		TotalQuantity:   c.TotalQuantity,
		FinalItemsPrice: c.FinalItemsPrice,
		AppliedCouponID: c.AppliedCouponID,
		DiscountAmount:  c.DiscountAmount,
		TotalPrice:      c.TotalPrice,
		AddressID:       addressID,
		Status:          models.OrderAwaitingPayment,
		PaymentStatus:   models.PaymentPending,
		TrackingCode:    f.newTrackingCode(),
		History:         []models.StatusChange{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := f.repo.Insert(ctx, order); err != nil {
		return nil, err
	}
	log.Println("[ORDER] [INFO] order created:", order.TrackingCode)
	return order, nil
}

// Transition is the administrative status change: it enforces the graph and
// the reason/carrier-code requirements, then persists the appended history.
func (f *Factory) Transition(ctx context.Context, orderID primitive.ObjectID, to models.OrderStatus, reason, carrierCode string) (*models.Order, error) {
	o, err := f.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := ApplyTransition(o, to, f.now(), reason, carrierCode); err != nil {
		return nil, err
	}
	if err := f.repo.Update(ctx, o); err != nil {
		return nil, err
	}
	log.Printf("[ORDER] [INFO] order %s moved to %s", o.TrackingCode, to)
	return o, nil
}

// cartMatchesOrder reports whether the cart still matches the frozen order
// line for line.
func cartMatchesOrder(c *models.Cart, o *models.Order) bool {
	if c.TotalPrice != o.TotalPrice || len(c.Items) != len(o.Items) {
		return false
	}
	if (c.AppliedCouponID == nil) != (o.AppliedCouponID == nil) {
		return false
	}
	if c.AppliedCouponID != nil && *c.AppliedCouponID != *o.AppliedCouponID {
		return false
	}
	for i, item := range c.Items {
		frozen := o.Items[i]
		if item.ProductID != frozen.ProductID ||
			item.Quantity != frozen.Quantity ||
			item.FinalUnitPrice != frozen.FinalUnitPrice {
			return false
		}
	}
	return true
}

func newTrackingCode() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "ORD-" + raw[:12]
}
