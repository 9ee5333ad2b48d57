package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/cart"
	"storefront/internal/gateway"
	"storefront/internal/orders"
	"storefront/internal/payment"
)

type checkoutRequest struct {
	AddressID string `json:"addressId" binding:"required"`
}

// Checkout runs the cart through the drift gate, freezes it into an order
// and opens a payment session. The response carries the gateway URL the
// client must redirect the user to.
func Checkout(db *mongo.Database, carts *cart.Store, factory *orders.Factory, payments *payment.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /checkout"
		defer handlePanic(c, route)

		if err := ensureDBConnection(c.Request.Context(), db); err != nil {
			respondWithError(c, http.StatusServiceUnavailable, route, "database unavailable")
			return
		}

		userID, ok := userIDFromContext(c)
		if !ok {
			return
		}

		var req checkoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid request body")
			return
		}

		ctx, cancel := requestTimeout(c)
		defer cancel()

		validated, err := carts.ValidateForCheckout(ctx, userID)
		if errors.Is(err, cart.ErrPricesChanged) {
			c.JSON(http.StatusConflict, gin.H{
				"error": "prices changed, please review your cart",
				"cart":  validated,
			})
			return
		}
		if err != nil {
			if respondBusinessError(c, err) {
				return
			}
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		order, err := factory.CreateFromCart(ctx, validated, req.AddressID)
		if err != nil {
			if respondBusinessError(c, err) {
				return
			}
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		paymentURL, _, err := payments.Create(ctx, order.ID)
		if err != nil {
			if errors.Is(err, gateway.ErrGatewayRequestFailed) {
				// the order stays awaiting payment; re-running checkout
				// reuses it and opens a fresh attempt
				respondWithError(c, http.StatusBadGateway, route, "payment gateway unavailable, try again")
				return
			}
			if respondBusinessError(c, err) {
				return
			}
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		log.Println("[CHECKOUT] [INFO] checkout started for order:", order.TrackingCode)
		c.JSON(http.StatusCreated, gin.H{
			"orderId":      order.ID.Hex(),
			"trackingCode": order.TrackingCode,
			"totalPrice":   order.TotalPrice,
			"paymentUrl":   paymentURL,
		})
	}
}
