package orders

import (
	"errors"
	"strings"
	"time"

	"storefront/internal/models"
)

// allowedTransitions is the strictly forward-moving status graph. Delivered,
// Canceled and Refunded have no outgoing edges.
var allowedTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderAwaitingPayment: {models.OrderPaid, models.OrderCanceled},
	models.OrderPaid:            {models.OrderProcessing, models.OrderRefunded},
	models.OrderProcessing:      {models.OrderShipped, models.OrderCanceled},
	models.OrderShipped:         {models.OrderDelivered},
}

type InvalidStatusTransitionError struct {
	From models.OrderStatus
	To   models.OrderStatus
}

func (e InvalidStatusTransitionError) Error() string {
	return "order status cannot move from " + string(e.From) + " to " + string(e.To)
}

var (
	ErrReasonRequired      = errors.New("a reason is required for this status change")
	ErrCarrierCodeRequired = errors.New("a carrier tracking code is required to mark shipped")
)

func CanTransition(from, to models.OrderStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ApplyTransition moves the order along the graph and appends the history
// entry. The order is left untouched when the transition is rejected.
func ApplyTransition(o *models.Order, to models.OrderStatus, at time.Time, reason, carrierCode string) error {
	if !CanTransition(o.Status, to) {
		return InvalidStatusTransitionError{From: o.Status, To: to}
	}

	reason = strings.TrimSpace(reason)
	carrierCode = strings.TrimSpace(carrierCode)

	switch to {
	case models.OrderCanceled, models.OrderRefunded:
		if reason == "" {
			return ErrReasonRequired
		}
	case models.OrderShipped:
		if carrierCode == "" {
			return ErrCarrierCodeRequired
		}
	}

	entry := models.StatusChange{
		From: o.Status,
		To:   to,
		At:   at,
	}
	switch to {
	case models.OrderCanceled, models.OrderRefunded:
		entry.Reason = reason
	case models.OrderShipped:
		entry.CarrierCode = carrierCode
	}

	o.History = append(o.History, entry)
	o.Status = to
	if to == models.OrderRefunded {
		o.PaymentStatus = models.PaymentRefunded
	}
	o.UpdatedAt = at
	return nil
}
