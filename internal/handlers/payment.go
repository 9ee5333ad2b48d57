package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/gateway"
	"storefront/internal/orders"
	"storefront/internal/payment"
)

// PaymentCallback is where the gateway redirects the user after the payment
// page. It verifies the attempt and, on success, the settlement has already
// committed by the time the response is written.
func PaymentCallback(payments *payment.Orchestrator, orderRepo orders.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /payment/callback"
		defer handlePanic(c, route)

		authority := c.Query("Authority")
		callbackStatus := c.Query("Status")
		if authority == "" {
			respondWithError(c, http.StatusBadRequest, route, "missing authority")
			return
		}

		ctx, cancel := requestTimeout(c)
		defer cancel()

		p, err := payments.Verify(ctx, authority, callbackStatus)
		if errors.Is(err, payment.ErrPaymentNotFound) {
			respondWithError(c, http.StatusNotFound, route, "payment not found")
			return
		}
		if errors.Is(err, payment.ErrVerificationFailed) || errors.Is(err, gateway.ErrGatewayRequestFailed) {
			c.JSON(http.StatusBadRequest, gin.H{
				"status": "failed",
				"error":  "payment verification failed, you can retry the payment",
			})
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		order, err := orderRepo.FindByID(ctx, p.OrderID)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":       "paid",
			"refId":        p.RefID,
			"trackingCode": order.TrackingCode,
		})
	}
}
