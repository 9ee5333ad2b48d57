package cart

import (
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrCartEmpty means the cart total is below the checkout minimum.
	ErrCartEmpty = errors.New("cart is empty or below the checkout minimum")
	// ErrPricesChanged means catalog prices drifted since the items were
	// added; the cart has been rewritten and the caller must re-confirm.
	ErrPricesChanged = errors.New("cart prices changed, confirmation required")
)

type ItemNotFoundError struct {
	ProductID primitive.ObjectID
}

func (e ItemNotFoundError) Error() string {
	return "item not in cart"
}

type OutOfStockError struct {
	ProductID primitive.ObjectID
	Available int
	Requested int
}

func (e OutOfStockError) Error() string {
	return "product stock no longer covers the cart line"
}
