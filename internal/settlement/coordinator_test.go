package settlement

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
)

// settlementWorld is an in-memory stand-in for the four aggregates. Its
// transaction runner snapshots the whole state and restores it when the
// settlement function errors, mirroring what the Mongo transaction does.
type settlementWorld struct {
	payments     map[primitive.ObjectID]*models.Payment
	orders       map[primitive.ObjectID]*models.Order
	carts        map[primitive.ObjectID]*models.Cart
	stock        map[primitive.ObjectID]int
	couponUses   map[primitive.ObjectID]int
	failStockFor primitive.ObjectID
}

func newWorld() *settlementWorld {
	return &settlementWorld{
		payments:   map[primitive.ObjectID]*models.Payment{},
		orders:     map[primitive.ObjectID]*models.Order{},
		carts:      map[primitive.ObjectID]*models.Cart{},
		stock:      map[primitive.ObjectID]int{},
		couponUses: map[primitive.ObjectID]int{},
	}
}

func (w *settlementWorld) snapshot() *settlementWorld {
	s := newWorld()
	for k, v := range w.payments {
		copied := *v
		s.payments[k] = &copied
	}
	for k, v := range w.orders {
		copied := *v
		s.orders[k] = &copied
	}
	for k, v := range w.carts {
		copied := *v
		s.carts[k] = &copied
	}
	for k, v := range w.stock {
		s.stock[k] = v
	}
	for k, v := range w.couponUses {
		s.couponUses[k] = v
	}
	return s
}

func (w *settlementWorld) restore(s *settlementWorld) {
	w.payments = s.payments
	w.orders = s.orders
	w.carts = s.carts
	w.stock = s.stock
	w.couponUses = s.couponUses
}

func (w *settlementWorld) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	saved := w.snapshot()
	if err := fn(ctx); err != nil {
		w.restore(saved)
		return err
	}
	return nil
}

func (w *settlementWorld) MarkPaid(_ context.Context, id primitive.ObjectID, refID string, fee int64, meta models.PaymentMeta) error {
	p, ok := w.payments[id]
	if !ok || p.Status != models.PaymentPending {
		return errors.New("payment not pending")
	}
	p.Status = models.PaymentPaid
	p.RefID = refID
	p.Fee = fee
	p.Meta = meta
	return nil
}

func (w *settlementWorld) FindByID(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	o, ok := w.orders[id]
	if !ok {
		return nil, errors.New("order not found")
	}
	copied := *o
	return &copied, nil
}

func (w *settlementWorld) markOrderPaid(id primitive.ObjectID, summary models.PaymentSummary) error {
	o, ok := w.orders[id]
	if !ok || o.Status != models.OrderAwaitingPayment {
		return errors.New("order not awaiting payment")
	}
	o.Status = models.OrderPaid
	o.PaymentStatus = models.PaymentPaid
	o.Payment = &summary
	return nil
}

type worldOrders struct{ w *settlementWorld }

func (o worldOrders) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	return o.w.FindByID(ctx, id)
}

func (o worldOrders) MarkPaid(_ context.Context, id primitive.ObjectID, summary models.PaymentSummary) error {
	return o.w.markOrderPaid(id, summary)
}

func (w *settlementWorld) Clear(_ context.Context, userID primitive.ObjectID) (*models.Cart, error) {
	c, ok := w.carts[userID]
	if !ok {
		c = &models.Cart{UserID: userID}
		w.carts[userID] = c
	}
	c.Items = nil
	c.AppliedCouponID = nil
	c.DiscountAmount = 0
	c.FinalItemsPrice = 0
	c.TotalPrice = 0
	c.TotalQuantity = 0
	c.TotalItemCount = 0
	return c, nil
}

func (w *settlementWorld) DecrementStock(_ context.Context, id primitive.ObjectID, qty int) error {
	if id == w.failStockFor {
		return errors.New("forced decrement failure")
	}
	current, ok := w.stock[id]
	if !ok || current < qty {
		return errors.New("insufficient stock")
	}
	w.stock[id] = current - qty
	return nil
}

func (w *settlementWorld) IncrementUsage(_ context.Context, id primitive.ObjectID) error {
	w.couponUses[id]++
	return nil
}

func seedWorld(w *settlementWorld) (Request, primitive.ObjectID, primitive.ObjectID, primitive.ObjectID) {
	userID := primitive.NewObjectID()
	productA := primitive.NewObjectID()
	productB := primitive.NewObjectID()
	couponID := primitive.NewObjectID()
	orderID := primitive.NewObjectID()
	paymentID := primitive.NewObjectID()

	w.orders[orderID] = &models.Order{
		ID:     orderID,
		UserID: userID,
		Items: []models.CartItem{
			{ProductID: productA, Quantity: 2, FinalUnitPrice: 40000000, TotalPrice: 80000000},
			{ProductID: productB, Quantity: 1, FinalUnitPrice: 100000, TotalPrice: 100000},
		},
		AppliedCouponID: &couponID,
		DiscountAmount:  100000,
		FinalItemsPrice: 80100000,
		TotalPrice:      80000000,
		Status:          models.OrderAwaitingPayment,
		PaymentStatus:   models.PaymentPending,
	}
	w.payments[paymentID] = &models.Payment{
		ID:      paymentID,
		OrderID: orderID,
		UserID:  userID,
		Amount:  80000000,
		Status:  models.PaymentPending,
	}
	w.carts[userID] = &models.Cart{
		UserID:     userID,
		Items:      w.orders[orderID].Items,
		TotalPrice: 80000000,
	}
	w.stock[productA] = 10
	w.stock[productB] = 5

	req := Request{
		OrderID:    orderID,
		PaymentID:  paymentID,
		RefID:      "REF-1234",
		Fee:        5000,
		VerifyCode: 100,
		Gateway:    "zarinpal",
	}
	return req, productA, productB, couponID
}

func newTestCoordinator(w *settlementWorld) *Coordinator {
	return NewCoordinator(w, w, worldOrders{w}, w, w, w)
}

func TestSettleHappyPath(t *testing.T) {
	w := newWorld()
	req, productA, productB, couponID := seedWorld(w)
	c := newTestCoordinator(w)

	if err := c.Settle(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := w.payments[req.PaymentID]
	if p.Status != models.PaymentPaid || p.RefID != "REF-1234" {
		t.Fatalf("expected payment paid with ref, got %+v", p)
	}
	o := w.orders[req.OrderID]
	if o.Status != models.OrderPaid || o.PaymentStatus != models.PaymentPaid {
		t.Fatalf("expected order paid, got %s/%s", o.Status, o.PaymentStatus)
	}
	if o.Payment == nil || o.Payment.RefID != "REF-1234" || o.Payment.PaymentID != req.PaymentID {
		t.Fatalf("expected payment summary on order, got %+v", o.Payment)
	}
	if len(w.carts[o.UserID].Items) != 0 {
		t.Fatal("expected cart cleared")
	}
	if w.stock[productA] != 8 || w.stock[productB] != 4 {
		t.Fatalf("expected stock decremented, got %d and %d", w.stock[productA], w.stock[productB])
	}
	if w.couponUses[couponID] != 1 {
		t.Fatalf("expected coupon usage incremented once, got %d", w.couponUses[couponID])
	}
}

func TestSettleStockFailureRollsBackEverything(t *testing.T) {
	w := newWorld()
	req, productA, productB, couponID := seedWorld(w)
	w.failStockFor = productB
	c := newTestCoordinator(w)

	err := c.Settle(context.Background(), req)
	if !errors.Is(err, ErrStockDecrementFailed) {
		t.Fatalf("expected ErrStockDecrementFailed, got %v", err)
	}

	// the first line's decrement must not survive the abort
	if w.stock[productA] != 10 {
		t.Fatalf("expected product A stock untouched, got %d", w.stock[productA])
	}
	if w.payments[req.PaymentID].Status != models.PaymentPending {
		t.Fatalf("expected payment still pending, got %s", w.payments[req.PaymentID].Status)
	}
	o := w.orders[req.OrderID]
	if o.Status != models.OrderAwaitingPayment || o.PaymentStatus != models.PaymentPending {
		t.Fatalf("expected order still awaiting payment, got %s/%s", o.Status, o.PaymentStatus)
	}
	if len(w.carts[o.UserID].Items) == 0 {
		t.Fatal("expected cart untouched after abort")
	}
	if w.couponUses[couponID] != 0 {
		t.Fatal("expected no coupon usage after abort")
	}
}

func TestSettleWithoutCouponSkipsUsage(t *testing.T) {
	w := newWorld()
	req, _, _, couponID := seedWorld(w)
	w.orders[req.OrderID].AppliedCouponID = nil
	c := newTestCoordinator(w)

	if err := c.Settle(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.couponUses[couponID] != 0 {
		t.Fatal("expected no coupon usage for coupon-less order")
	}
}

func TestSettleReplayedRequestAborts(t *testing.T) {
	w := newWorld()
	req, productA, _, _ := seedWorld(w)
	c := newTestCoordinator(w)

	if err := c.Settle(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Settle(context.Background(), req); err == nil {
		t.Fatal("expected replayed settlement to fail")
	}
	if w.stock[productA] != 8 {
		t.Fatalf("expected stock decremented exactly once, got %d", w.stock[productA])
	}
}
