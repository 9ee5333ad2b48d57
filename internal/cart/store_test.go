package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/catalog"
	"storefront/internal/coupon"
	"storefront/internal/models"
)

type fakeRepo struct {
	carts map[primitive.ObjectID]*models.Cart
	saves int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{carts: map[primitive.ObjectID]*models.Cart{}}
}

func (r *fakeRepo) FindByUser(_ context.Context, userID primitive.ObjectID) (*models.Cart, error) {
	c, ok := r.carts[userID]
	if !ok {
		return nil, nil
	}
	copied := *c
	copied.Items = append([]models.CartItem{}, c.Items...)
	return &copied, nil
}

func (r *fakeRepo) Save(_ context.Context, c *models.Cart) error {
	r.saves++
	copied := *c
	copied.Items = append([]models.CartItem{}, c.Items...)
	r.carts[c.UserID] = &copied
	return nil
}

type fakeCatalog struct {
	products map[primitive.ObjectID]catalog.ProductInfo
}

func (f *fakeCatalog) GetProduct(_ context.Context, id primitive.ObjectID) (catalog.ProductInfo, error) {
	p, ok := f.products[id]
	if !ok {
		return catalog.ProductInfo{}, catalog.NotFoundError{ProductID: id}
	}
	return p, nil
}

func (f *fakeCatalog) DecrementStock(_ context.Context, id primitive.ObjectID, qty int) error {
	p, ok := f.products[id]
	if !ok {
		return catalog.NotFoundError{ProductID: id}
	}
	if p.Stock < qty {
		return catalog.InsufficientStockError{ProductID: id, Available: p.Stock, Requested: qty}
	}
	p.Stock -= qty
	f.products[id] = p
	return nil
}

type fakeCoupons struct {
	coupons map[string]models.Coupon
}

func (f *fakeCoupons) GetByCode(_ context.Context, code string) (models.Coupon, error) {
	c, ok := f.coupons[coupon.NormalizeCode(code)]
	if !ok {
		return models.Coupon{}, coupon.ErrCouponNotFound
	}
	return c, nil
}

func newTestStore(products map[primitive.ObjectID]catalog.ProductInfo, coupons map[string]models.Coupon) (*Store, *fakeRepo) {
	repo := newFakeRepo()
	store := NewStore(repo, &fakeCatalog{products: products}, &fakeCoupons{coupons: coupons}, nil, 10000)
	return store, repo
}

func checkInvariants(t *testing.T, c *models.Cart) {
	t.Helper()
	var sum int64
	for _, item := range c.Items {
		sum += item.TotalPrice
	}
	if c.FinalItemsPrice != sum {
		t.Fatalf("finalItemsPrice %v != sum of line totals %v", c.FinalItemsPrice, sum)
	}
	if c.TotalPrice != c.FinalItemsPrice-c.DiscountAmount {
		t.Fatalf("totalPrice %v != finalItemsPrice %v - discount %v", c.TotalPrice, c.FinalItemsPrice, c.DiscountAmount)
	}
	if c.AppliedCouponID == nil && c.DiscountAmount != 0 {
		t.Fatalf("discount %v without an applied coupon", c.DiscountAmount)
	}
}

func TestAddItemNewLine(t *testing.T) {
	productID := primitive.NewObjectID()
	userID := primitive.NewObjectID()
	store, _ := newTestStore(map[primitive.ObjectID]catalog.ProductInfo{
		productID: {ID: productID, Name: "TV", Price: 40000000, FinalPrice: 40000000, Stock: 5},
	}, nil)

	c, err := store.AddItem(context.Background(), userID, productID, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.Items) != 1 || c.Items[0].Quantity != 2 {
		t.Fatalf("expected one line with quantity 2, got %+v", c.Items)
	}
	if c.FinalItemsPrice != 80000000 {
		t.Fatalf("expected finalItemsPrice 80000000, got %v", c.FinalItemsPrice)
	}
	if c.Items[0].StockAtAdd != 5 {
		t.Fatalf("expected stock snapshot 5, got %v", c.Items[0].StockAtAdd)
	}
	checkInvariants(t, c)
}

func TestAddItemMergesAndChecksCombinedStock(t *testing.T) {
	productID := primitive.NewObjectID()
	userID := primitive.NewObjectID()
	store, _ := newTestStore(map[primitive.ObjectID]catalog.ProductInfo{
		productID: {ID: productID, Price: 1000, FinalPrice: 1000, Stock: 3},
	}, nil)

	if _, err := store.AddItem(context.Background(), userID, productID, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := store.AddItem(context.Background(), userID, productID, 2)
	var stockErr catalog.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError for combined quantity 4 > stock 3, got %v", err)
	}
	if stockErr.Requested != 4 || stockErr.Available != 3 {
		t.Fatalf("unexpected error detail: %+v", stockErr)
	}

	c, err := store.AddItem(context.Background(), userID, productID, 1)
	if err != nil {
		t.Fatalf("unexpected error merging within stock: %v", err)
	}
	if len(c.Items) != 1 || c.Items[0].Quantity != 3 {
		t.Fatalf("expected merged line with quantity 3, got %+v", c.Items)
	}
	checkInvariants(t, c)
}

func TestMutationInvalidatesCoupon(t *testing.T) {
	productID := primitive.NewObjectID()
	userID := primitive.NewObjectID()
	now := time.Now()
	coup := models.Coupon{
		ID:        primitive.NewObjectID(),
		Code:      "AMOUNT",
		Type:      models.CouponTypeCart,
		Method:    models.DiscountMethodAmount,
		Value:     100000,
		StartDate: now.Add(-time.Hour),
		EndDate:   now.Add(time.Hour),
		IsActive:  true,
	}
	store, _ := newTestStore(map[primitive.ObjectID]catalog.ProductInfo{
		productID: {ID: productID, Price: 40000000, FinalPrice: 40000000, Stock: 10},
	}, map[string]models.Coupon{"AMOUNT": coup})

	ctx := context.Background()
	if _, err := store.AddItem(ctx, userID, productID, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c, err := store.ApplyCoupon(ctx, userID, "amount")
	if err != nil {
		t.Fatalf("unexpected error applying coupon: %v", err)
	}
	if c.AppliedCouponID == nil || c.DiscountAmount != 100000 {
		t.Fatalf("expected applied coupon with discount 100000, got %+v", c)
	}
	if c.TotalPrice != 79900000 {
		t.Fatalf("expected totalPrice 79900000, got %v", c.TotalPrice)
	}
	checkInvariants(t, c)

	c, err = store.AddItem(ctx, userID, productID, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.AppliedCouponID != nil || c.DiscountAmount != 0 {
		t.Fatalf("expected coupon dropped after mutation, got %+v", c)
	}
	checkInvariants(t, c)
}

func TestUpdateQuantityRemovesOnZero(t *testing.T) {
	productID := primitive.NewObjectID()
	userID := primitive.NewObjectID()
	store, _ := newTestStore(map[primitive.ObjectID]catalog.ProductInfo{
		productID: {ID: productID, Price: 1000, FinalPrice: 1000, Stock: 10},
	}, nil)

	ctx := context.Background()
	if _, err := store.AddItem(ctx, userID, productID, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c, err := store.UpdateQuantity(ctx, userID, productID, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.Items) != 0 || c.TotalQuantity != 0 || c.TotalPrice != 0 {
		t.Fatalf("expected emptied cart, got %+v", c)
	}
	checkInvariants(t, c)
}

func TestUpdateQuantityUnknownItem(t *testing.T) {
	userID := primitive.NewObjectID()
	store, _ := newTestStore(nil, nil)

	_, err := store.UpdateQuantity(context.Background(), userID, primitive.NewObjectID(), 1)
	var notFound ItemNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ItemNotFoundError, got %v", err)
	}
}

func TestApplyCouponMinimumNotMetLeavesCartUnchanged(t *testing.T) {
	productID := primitive.NewObjectID()
	userID := primitive.NewObjectID()
	now := time.Now()
	coup := models.Coupon{
		ID:             primitive.NewObjectID(),
		Code:           "BIGSPEND",
		Type:           models.CouponTypeCart,
		Method:         models.DiscountMethodPercentage,
		Value:          10,
		MinOrderAmount: 200000,
		StartDate:      now.Add(-time.Hour),
		EndDate:        now.Add(time.Hour),
		IsActive:       true,
	}
	store, repo := newTestStore(map[primitive.ObjectID]catalog.ProductInfo{
		productID: {ID: productID, Price: 150000, FinalPrice: 150000, Stock: 10},
	}, map[string]models.Coupon{"BIGSPEND": coup})

	ctx := context.Background()
	if _, err := store.AddItem(ctx, userID, productID, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	savesBefore := repo.saves

	_, err := store.ApplyCoupon(ctx, userID, "BIGSPEND")
	if !errors.Is(err, coupon.ErrCouponMinimumOrderNotMet) {
		t.Fatalf("expected ErrCouponMinimumOrderNotMet, got %v", err)
	}
	if repo.saves != savesBefore {
		t.Fatal("expected no persist on failed coupon application")
	}

	c, err := store.Get(ctx, userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.AppliedCouponID != nil || c.DiscountAmount != 0 || c.TotalPrice != 150000 {
		t.Fatalf("expected cart totals unchanged, got %+v", c)
	}
}

func TestValidateForCheckoutBelowMinimum(t *testing.T) {
	userID := primitive.NewObjectID()
	store, _ := newTestStore(nil, nil)

	_, err := store.ValidateForCheckout(context.Background(), userID)
	if !errors.Is(err, ErrCartEmpty) {
		t.Fatalf("expected ErrCartEmpty, got %v", err)
	}
}

func TestValidateForCheckoutStockUndercut(t *testing.T) {
	productID := primitive.NewObjectID()
	userID := primitive.NewObjectID()
	products := map[primitive.ObjectID]catalog.ProductInfo{
		productID: {ID: productID, Price: 50000, FinalPrice: 50000, Stock: 5},
	}
	store, _ := newTestStore(products, nil)

	ctx := context.Background()
	if _, err := store.AddItem(ctx, userID, productID, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// someone else bought most of the stock
	products[productID] = catalog.ProductInfo{ID: productID, Price: 50000, FinalPrice: 50000, Stock: 2}

	_, err := store.ValidateForCheckout(ctx, userID)
	var outErr OutOfStockError
	if !errors.As(err, &outErr) {
		t.Fatalf("expected OutOfStockError, got %v", err)
	}
	if outErr.Available != 2 || outErr.Requested != 3 {
		t.Fatalf("unexpected error detail: %+v", outErr)
	}
}

func TestValidateForCheckoutPriceDrift(t *testing.T) {
	productID := primitive.NewObjectID()
	userID := primitive.NewObjectID()
	products := map[primitive.ObjectID]catalog.ProductInfo{
		productID: {ID: productID, Price: 40000000, FinalPrice: 40000000, Stock: 10},
	}
	store, repo := newTestStore(products, nil)

	ctx := context.Background()
	if _, err := store.AddItem(ctx, userID, productID, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	products[productID] = catalog.ProductInfo{ID: productID, Price: 35000000, FinalPrice: 35000000, Stock: 10}

	c, err := store.ValidateForCheckout(ctx, userID)
	if !errors.Is(err, ErrPricesChanged) {
		t.Fatalf("expected ErrPricesChanged, got %v", err)
	}
	if c.Items[0].FinalUnitPrice != 35000000 || c.TotalPrice != 35000000 {
		t.Fatalf("expected rewritten line at the new price, got %+v", c)
	}
	checkInvariants(t, c)

	saved := repo.carts[userID]
	if saved == nil || saved.Items[0].FinalUnitPrice != 35000000 {
		t.Fatal("expected rewritten cart to be persisted")
	}

	// second attempt with stable prices proceeds
	if _, err := store.ValidateForCheckout(ctx, userID); err != nil {
		t.Fatalf("expected clean validation after rewrite, got %v", err)
	}
}

func TestUserLockTableShrinksWhenIdle(t *testing.T) {
	productID := primitive.NewObjectID()
	store, _ := newTestStore(map[primitive.ObjectID]catalog.ProductInfo{
		productID: {ID: productID, Price: 1000, FinalPrice: 1000, Stock: 100},
	}, nil)

	ctx := context.Background()
	for i := 0; i < 8; i++ {
		userID := primitive.NewObjectID()
		if _, err := store.AddItem(ctx, userID, productID, 1); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	store.mu.Lock()
	held := len(store.locks)
	store.mu.Unlock()
	if held != 0 {
		t.Fatalf("expected lock table empty with no operation in flight, got %d entries", held)
	}
}

func TestClearEmptiesCart(t *testing.T) {
	productID := primitive.NewObjectID()
	userID := primitive.NewObjectID()
	store, _ := newTestStore(map[primitive.ObjectID]catalog.ProductInfo{
		productID: {ID: productID, Price: 1000, FinalPrice: 1000, Stock: 10},
	}, nil)

	ctx := context.Background()
	if _, err := store.AddItem(ctx, userID, productID, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c, err := store.Clear(ctx, userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.Items) != 0 || c.TotalQuantity != 0 || c.TotalPrice != 0 || c.FinalItemsPrice != 0 {
		t.Fatalf("expected zeroed cart, got %+v", c)
	}
	checkInvariants(t, c)
}
