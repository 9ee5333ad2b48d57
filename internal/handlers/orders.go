package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/orders"
)

func GetMyOrders(repo orders.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders"
		defer handlePanic(c, route)

		userID, ok := userIDFromContext(c)
		if !ok {
			return
		}

		ctx, cancel := requestTimeout(c)
		defer cancel()

		list, err := repo.FindByUser(ctx, userID)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func GetOrderByTrackingCode(repo orders.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders/:trackingCode"
		defer handlePanic(c, route)

		userID, ok := userIDFromContext(c)
		if !ok {
			return
		}

		ctx, cancel := requestTimeout(c)
		defer cancel()

		order, err := repo.FindByTrackingCode(ctx, c.Param("trackingCode"))
		if err != nil {
			if respondBusinessError(c, err) {
				return
			}
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if order.UserID != userID {
			respondWithError(c, http.StatusNotFound, route, "order not found")
			return
		}
		c.JSON(http.StatusOK, order)
	}
}
