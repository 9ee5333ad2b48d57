package settlement

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
)

// ErrStockDecrementFailed means the catalog and the frozen order disagreed
// at commit time despite the pre-checkout drift check. The whole settlement
// aborts; it is logged as an incident.
var ErrStockDecrementFailed = errors.New("stock decrement failed during settlement")

// Request carries everything a successful gateway verification produced.
type Request struct {
	OrderID    primitive.ObjectID
	PaymentID  primitive.ObjectID
	RefID      string
	Fee        int64
	VerifyCode int
	Gateway    string
}

// The coordinator talks to each aggregate through the narrowest interface
// it needs; every implementation must honor the transaction bound to ctx.
type Payments interface {
	MarkPaid(ctx context.Context, id primitive.ObjectID, refID string, fee int64, meta models.PaymentMeta) error
}

type Orders interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	MarkPaid(ctx context.Context, id primitive.ObjectID, summary models.PaymentSummary) error
}

type Carts interface {
	Clear(ctx context.Context, userID primitive.ObjectID) (*models.Cart, error)
}

type Stock interface {
	DecrementStock(ctx context.Context, id primitive.ObjectID, quantity int) error
}

type Coupons interface {
	IncrementUsage(ctx context.Context, id primitive.ObjectID) error
}

// TxnRunner executes fn atomically: either every write made through the fn's
// ctx lands, or none do.
type TxnRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Coordinator commits the paid outcome as one unit: payment paid, order
// paid, cart cleared, stock decremented per line, coupon usage counted.
// A failure at any step aborts the whole unit; mixed state is never left
// behind.
type Coordinator struct {
	runner   TxnRunner
	payments Payments
	orders   Orders
	carts    Carts
	stock    Stock
	coupons  Coupons

	now func() time.Time
}

func NewCoordinator(runner TxnRunner, payments Payments, orders Orders, carts Carts, stock Stock, coupons Coupons) *Coordinator {
	return &Coordinator{
		runner:   runner,
		payments: payments,
		orders:   orders,
		carts:    carts,
		stock:    stock,
		coupons:  coupons,
		now:      time.Now,
	}
}

func (c *Coordinator) Settle(ctx context.Context, req Request) error {
	err := c.runner.WithTransaction(ctx, func(ctx context.Context) error {
		order, err := c.orders.FindByID(ctx, req.OrderID)
		if err != nil {
			return err
		}

		meta := models.PaymentMeta{VerifyCode: req.VerifyCode}
		if err := c.payments.MarkPaid(ctx, req.PaymentID, req.RefID, req.Fee, meta); err != nil {
			return err
		}

		summary := models.PaymentSummary{
			PaymentID: req.PaymentID,
			Gateway:   req.Gateway,
			RefID:     req.RefID,
			Fee:       req.Fee,
			PaidAt:    c.now(),
		}
		if err := c.orders.MarkPaid(ctx, req.OrderID, summary); err != nil {
			return err
		}

		if _, err := c.carts.Clear(ctx, order.UserID); err != nil {
			return err
		}

		for _, item := range order.Items {
			if err := c.stock.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
				return fmt.Errorf("%w: product %s: %v", ErrStockDecrementFailed, item.ProductID.Hex(), err)
			}
		}

		if order.AppliedCouponID != nil {
			if err := c.coupons.IncrementUsage(ctx, *order.AppliedCouponID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Println("[SETTLEMENT] [ERROR] settlement aborted:", err)
		return err
	}

	log.Println("[SETTLEMENT] [INFO] order settled:", req.OrderID.Hex())
	return nil
}
