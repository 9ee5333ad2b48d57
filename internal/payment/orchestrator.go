package payment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/gateway"
	"storefront/internal/models"
	"storefront/internal/orders"
	"storefront/internal/settlement"
)

// ErrVerificationFailed is terminal for the attempt: the user must start a
// new payment, the system never retries on its own.
var ErrVerificationFailed = errors.New("payment verification failed")

// CallbackStatusOK is the status the gateway redirect carries when the user
// completed the payment page; anything else means they canceled or failed.
const CallbackStatusOK = "OK"

// OrderSource is the slice of the order repository the orchestrator reads.
type OrderSource interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
}

// Settler commits the paid outcome atomically once verification succeeds.
type Settler interface {
	Settle(ctx context.Context, req settlement.Request) error
}

// Orchestrator opens payment attempts against the gateway and verifies the
// callback. It owns the payment record's status; the only other writer is
// the settlement transaction.
type Orchestrator struct {
	payments    Repository
	orders      OrderSource
	gw          gateway.Client
	settler     Settler
	gatewayName string
	callbackURL string

	now func() time.Time
}

func NewOrchestrator(payments Repository, orderSource OrderSource, gw gateway.Client, settler Settler, gatewayName, callbackURL string) *Orchestrator {
	return &Orchestrator{
		payments:    payments,
		orders:      orderSource,
		gw:          gw,
		settler:     settler,
		gatewayName: gatewayName,
		callbackURL: callbackURL,
		now:         time.Now,
	}
}

// Create opens a payment session for the order's frozen total and persists
// the pending attempt. The returned URL is where the caller sends the user.
func (o *Orchestrator) Create(ctx context.Context, orderID primitive.ObjectID) (string, *models.Payment, error) {
	order, err := o.orders.FindByID(ctx, orderID)
	if err != nil {
		return "", nil, err
	}
	if order.Status != models.OrderAwaitingPayment {
		return "", nil, orders.ErrOrderNotPayable
	}

	// a prior attempt the user abandoned mid-redirect; retire it so only
	// one attempt is ever pending per order
	if stale, err := o.payments.FindPendingByOrder(ctx, orderID); err != nil {
		return "", nil, err
	} else if stale != nil {
		meta := stale.Meta
		meta.FailureReason = "superseded by a new payment attempt"
		if err := o.payments.MarkFailed(ctx, stale.ID, meta); err != nil {
			return "", nil, err
		}
		log.Println("[PAYMENT] [INFO] superseded stale pending attempt:", stale.ID.Hex())
	}

	session, err := o.gw.RequestPayment(ctx, gateway.PaymentRequest{
		Amount:      order.TotalPrice,
		Description: fmt.Sprintf("Order %s", order.TrackingCode),
		CallbackURL: o.callbackURL,
		OrderRef:    order.TrackingCode,
	})
	if err != nil {
		log.Println("[PAYMENT] [ERROR] gateway request failed for order:", order.TrackingCode, err)
		return "", nil, err
	}

	now := o.now()
	p := &models.Payment{
		OrderID:   order.ID,
		UserID:    order.UserID,
		Amount:    order.TotalPrice,
		Gateway:   o.gatewayName,
		Status:    models.PaymentPending,
		Authority: session.Authority,
		Fee:       session.Fee,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := o.payments.Insert(ctx, p); err != nil {
		return "", nil, err
	}

	log.Println("[PAYMENT] [INFO] payment attempt opened for order:", order.TrackingCode)
	return o.gw.PaymentURL(session.Authority), p, nil
}

// Verify is the callback entry point. A not-OK callback status fails the
// attempt without a gateway round-trip; a verify code outside the success
// set fails it after one. Success hands off to settlement, and a settlement
// error also fails the attempt, with the cause in its meta.
func (o *Orchestrator) Verify(ctx context.Context, authority, callbackStatus string) (*models.Payment, error) {
	p, err := o.payments.FindByAuthority(ctx, authority)
	if err != nil {
		return nil, err
	}

	switch p.Status {
	case models.PaymentPaid:
		// replayed callback for a settled payment
		return p, nil
	case models.PaymentFailed:
		return p, ErrVerificationFailed
	}

	if callbackStatus != CallbackStatusOK {
		o.fail(ctx, p, models.PaymentMeta{CallbackStatus: callbackStatus})
		log.Println("[PAYMENT] [INFO] callback reported failure for authority:", authority)
		return p, ErrVerificationFailed
	}

	result, err := o.gw.VerifyPayment(ctx, gateway.VerifyRequest{
		Amount:    p.Amount,
		Authority: p.Authority,
	})
	if err != nil {
		o.fail(ctx, p, models.PaymentMeta{CallbackStatus: callbackStatus, FailureReason: err.Error()})
		return p, err
	}
	if !gateway.IsSuccessCode(result.Code) {
		o.fail(ctx, p, models.PaymentMeta{CallbackStatus: callbackStatus, VerifyCode: result.Code})
		log.Println("[PAYMENT] [ERROR] verify refused with code:", result.Code)
		return p, ErrVerificationFailed
	}

	err = o.settler.Settle(ctx, settlement.Request{
		OrderID:    p.OrderID,
		PaymentID:  p.ID,
		RefID:      result.RefID,
		Fee:        result.Fee,
		VerifyCode: result.Code,
		Gateway:    p.Gateway,
	})
	if err != nil {
		o.fail(ctx, p, models.PaymentMeta{
			CallbackStatus: callbackStatus,
			VerifyCode:     result.Code,
			FailureReason:  err.Error(),
		})
		return p, ErrVerificationFailed
	}

	p.Status = models.PaymentPaid
	p.RefID = result.RefID
	p.Fee = result.Fee
	p.Meta.VerifyCode = result.Code
	return p, nil
}

func (o *Orchestrator) fail(ctx context.Context, p *models.Payment, meta models.PaymentMeta) {
	err := o.payments.MarkFailed(ctx, p.ID, meta)
	if errors.Is(err, ErrPaymentNotPending) {
		// a concurrent callback settled or failed this attempt first; its
		// outcome stands
		log.Println("[PAYMENT] [WARN] payment no longer pending, leaving it untouched:", p.ID.Hex())
		return
	}
	if err != nil {
		log.Println("[PAYMENT] [ERROR] could not mark payment failed:", p.ID.Hex(), err)
		return
	}
	p.Status = models.PaymentFailed
	p.Meta = meta
}
