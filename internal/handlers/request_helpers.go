package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"storefront/internal/cart"
	"storefront/internal/catalog"
	"storefront/internal/coupon"
	"storefront/internal/orders"
)

func handlePanic(c *gin.Context, route string) {
	if r := recover(); r != nil {
		log.Printf("[%s] panic recovered: %v", route, r)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func ensureDBConnection(ctx context.Context, db *mongo.Database) error {
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return db.Client().Ping(checkCtx, readpref.Primary())
}

func respondWithError(c *gin.Context, status int, route string, message string) {
	log.Printf("[%s] returning error %d: %s", route, status, message)
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

func requestTimeout(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), 5*time.Second)
}

func userIDFromContext(c *gin.Context) (primitive.ObjectID, bool) {
	value, exists := c.Get("userId")
	if !exists {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return primitive.NilObjectID, false
	}
	userID, ok := value.(primitive.ObjectID)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return primitive.NilObjectID, false
	}
	return userID, true
}

// respondBusinessError maps the business-rule violations of the cart and
// coupon flow to stable 4xx responses. It reports whether err was handled;
// unhandled errors are the caller's to treat as internal.
func respondBusinessError(c *gin.Context, err error) bool {
	var stockErr catalog.InsufficientStockError
	if errors.As(err, &stockErr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "insufficient stock",
			"productId": stockErr.ProductID.Hex(),
			"available": stockErr.Available,
			"requested": stockErr.Requested,
		})
		return true
	}
	var outErr cart.OutOfStockError
	if errors.As(err, &outErr) {
		c.JSON(http.StatusConflict, gin.H{
			"error":     "product no longer in stock",
			"productId": outErr.ProductID.Hex(),
			"available": outErr.Available,
			"requested": outErr.Requested,
		})
		return true
	}
	var notFoundErr catalog.NotFoundError
	if errors.As(err, &notFoundErr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "product not found",
			"productId": notFoundErr.ProductID.Hex(),
		})
		return true
	}
	var itemErr cart.ItemNotFoundError
	if errors.As(err, &itemErr) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "item not in cart",
			"productId": itemErr.ProductID.Hex(),
		})
		return true
	}
	var transitionErr orders.InvalidStatusTransitionError
	if errors.As(err, &transitionErr) {
		c.JSON(http.StatusConflict, gin.H{
			"error": transitionErr.Error(),
			"from":  transitionErr.From,
			"to":    transitionErr.To,
		})
		return true
	}

	switch {
	case errors.Is(err, cart.ErrCartEmpty),
		errors.Is(err, orders.ErrEmptyCart):
		c.JSON(http.StatusBadRequest, gin.H{"error": "cart is empty or below the checkout minimum"})
	case errors.Is(err, coupon.ErrCouponNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "coupon not found"})
	case errors.Is(err, coupon.ErrCouponInactive),
		errors.Is(err, coupon.ErrCouponExpired),
		errors.Is(err, coupon.ErrCouponUsageExhausted),
		errors.Is(err, coupon.ErrCouponNotApplicable),
		errors.Is(err, coupon.ErrCouponMinimumOrderNotMet):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, orders.ErrReasonRequired),
		errors.Is(err, orders.ErrCarrierCodeRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, orders.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
	case errors.Is(err, orders.ErrOrderNotPayable):
		c.JSON(http.StatusConflict, gin.H{"error": "order is not awaiting payment"})
	default:
		return false
	}
	return true
}
