package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
	"storefront/internal/orders"
)

type updateOrderStatusRequest struct {
	Status      string `json:"status" binding:"required"`
	Reason      string `json:"reason"`
	CarrierCode string `json:"carrierCode"`
}

// UpdateOrderStatus moves an order along its lifecycle. Cancellations and
// refunds must carry a reason, shipping must carry the carrier code.
func UpdateOrderStatus(factory *orders.Factory) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/api/orders/:id/status"
		defer handlePanic(c, route)

		orderID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid order id")
			return
		}

		var req updateOrderStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid request body")
			return
		}

		ctx, cancel := requestTimeout(c)
		defer cancel()

		order, err := factory.Transition(ctx, orderID, models.OrderStatus(req.Status), req.Reason, req.CarrierCode)
		if err != nil {
			if respondBusinessError(c, err) {
				return
			}
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		c.JSON(http.StatusOK, order)
	}
}
