package cart

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/catalog"
	"storefront/internal/coupon"
	"storefront/internal/models"
	"storefront/internal/pricing"
)

// CouponSource is the slice of the coupon store the cart needs at apply time.
type CouponSource interface {
	GetByCode(ctx context.Context, code string) (models.Coupon, error)
}

// Store owns the single mutable cart per user. Mutations for the same user
// are serialized through a per-user mutex; two overlapping requests cannot
// interleave their read-modify-write cycles.
//
// Every mutation follows the same two-phase pattern: apply the item change,
// then drop any applied coupon before recalculating. A coupon's validity
// (minimum order, product subset) may not hold against the changed lines, so
// re-application is the caller's move.
type Store struct {
	repo        Repository
	catalog     catalog.Catalog
	coupons     CouponSource
	cache       Cache
	minCheckout int64

	mu    sync.Mutex
	locks map[primitive.ObjectID]*userLock

	now func() time.Time
}

// userLock is reference-counted: the last holder removes the table entry, so
// the lock table tracks only principals with an operation in flight instead
// of every principal ever seen.
type userLock struct {
	mu   sync.Mutex
	refs int
}

func NewStore(repo Repository, cat catalog.Catalog, coupons CouponSource, cache Cache, minCheckout int64) *Store {
	return &Store{
		repo:        repo,
		catalog:     cat,
		coupons:     coupons,
		cache:       cache,
		minCheckout: minCheckout,
		locks:       map[primitive.ObjectID]*userLock{},
		now:         time.Now,
	}
}

func (s *Store) lockUser(userID primitive.ObjectID) *userLock {
	s.mu.Lock()
	l, ok := s.locks[userID]
	if !ok {
		l = &userLock{}
		s.locks[userID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return l
}

func (s *Store) unlockUser(userID primitive.ObjectID, l *userLock) {
	l.mu.Unlock()

	s.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, userID)
	}
	s.mu.Unlock()
}

// Get returns the user's cart, creating an empty one lazily. Reads go
// through the cache; only a miss touches Mongo.
func (s *Store) Get(ctx context.Context, userID primitive.ObjectID) (*models.Cart, error) {
	if s.cache != nil {
		if c, err := s.cache.Get(ctx, userID.Hex()); err == nil {
			return c, nil
		} else if !errors.Is(err, ErrCacheMiss) {
			log.Println("[CART] [WARN] cache read failed:", err)
		}
	}

	c, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, userID.Hex(), c); err != nil {
			log.Println("[CART] [WARN] cache write failed:", err)
		}
	}
	return c, nil
}

// AddItem merges quantity into an existing line or appends a new snapshot of
// the product as the catalog sees it right now.
func (s *Store) AddItem(ctx context.Context, userID, productID primitive.ObjectID, quantity int) (*models.Cart, error) {
	if quantity <= 0 {
		quantity = 1
	}

	l := s.lockUser(userID)
	defer s.unlockUser(userID, l)

	c, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	info, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	lineIdx := findLine(c.Items, productID)
	newQuantity := quantity
	if lineIdx >= 0 {
		newQuantity += c.Items[lineIdx].Quantity
	}
	if newQuantity > info.Stock {
		return nil, catalog.InsufficientStockError{
			ProductID: productID,
			Available: info.Stock,
			Requested: newQuantity,
		}
	}

	if lineIdx >= 0 {
		c.Items[lineIdx].Quantity = newQuantity
		c.Items[lineIdx].TotalPrice = pricing.LineTotal(c.Items[lineIdx].FinalUnitPrice, newQuantity)
	} else {
		c.Items = append(c.Items, models.CartItem{
			ProductID:       productID,
			Name:            info.Name,
			ImagePath:       info.ImagePath,
			UnitPrice:       info.Price,
			DiscountPercent: info.DiscountPercent,
			DiscountExpiry:  info.DiscountExpiry,
			FinalUnitPrice:  info.FinalPrice,
			Quantity:        quantity,
			StockAtAdd:      info.Stock,
			TotalPrice:      pricing.LineTotal(info.FinalPrice, quantity),
		})
	}

	s.invalidateCouponAndRecalculate(c)
	return c, s.persist(ctx, c)
}

// UpdateQuantity rewrites a line's quantity; zero or less removes the line.
func (s *Store) UpdateQuantity(ctx context.Context, userID, productID primitive.ObjectID, quantity int) (*models.Cart, error) {
	l := s.lockUser(userID)
	defer s.unlockUser(userID, l)

	c, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	lineIdx := findLine(c.Items, productID)
	if lineIdx < 0 {
		return nil, ItemNotFoundError{ProductID: productID}
	}

	if quantity <= 0 {
		c.Items = append(c.Items[:lineIdx], c.Items[lineIdx+1:]...)
	} else {
		c.Items[lineIdx].Quantity = quantity
		c.Items[lineIdx].TotalPrice = pricing.LineTotal(c.Items[lineIdx].FinalUnitPrice, quantity)
	}

	s.invalidateCouponAndRecalculate(c)
	return c, s.persist(ctx, c)
}

// RemoveItem drops the line for the given product.
func (s *Store) RemoveItem(ctx context.Context, userID, productID primitive.ObjectID) (*models.Cart, error) {
	l := s.lockUser(userID)
	defer s.unlockUser(userID, l)

	c, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	lineIdx := findLine(c.Items, productID)
	if lineIdx < 0 {
		return nil, ItemNotFoundError{ProductID: productID}
	}
	c.Items = append(c.Items[:lineIdx], c.Items[lineIdx+1:]...)

	s.invalidateCouponAndRecalculate(c)
	return c, s.persist(ctx, c)
}

// Clear empties the cart. The document stays; only its lines and totals go.
func (s *Store) Clear(ctx context.Context, userID primitive.ObjectID) (*models.Cart, error) {
	l := s.lockUser(userID)
	defer s.unlockUser(userID, l)

	c, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	c.Items = []models.CartItem{}
	s.invalidateCouponAndRecalculate(c)
	return c, s.persist(ctx, c)
}

// ApplyCoupon validates the coupon against the current cart snapshot and,
// on success, records the discount. Applying does not invalidate itself.
func (s *Store) ApplyCoupon(ctx context.Context, userID primitive.ObjectID, code string) (*models.Cart, error) {
	l := s.lockUser(userID)
	defer s.unlockUser(userID, l)

	c, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(c.Items) == 0 {
		return nil, coupon.ErrCouponNotApplicable
	}

	coup, err := s.coupons.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := coupon.Validate(coup, s.now()); err != nil {
		return nil, err
	}
	discount, err := coupon.ComputeDiscount(c.Items, c.FinalItemsPrice, coup)
	if err != nil {
		return nil, err
	}

	c.AppliedCouponID = &coup.ID
	pricing.Apply(c, discount)
	return c, s.persist(ctx, c)
}

// ValidateForCheckout is the drift-detection gate before order creation. It
// re-reads the authoritative product for every line; stale prices rewrite
// the cart and stop the checkout with ErrPricesChanged.
func (s *Store) ValidateForCheckout(ctx context.Context, userID primitive.ObjectID) (*models.Cart, error) {
	l := s.lockUser(userID)
	defer s.unlockUser(userID, l)

	c, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(c.Items) == 0 || c.TotalPrice < s.minCheckout {
		return nil, ErrCartEmpty
	}

	drifted := false
	for i := range c.Items {
		item := &c.Items[i]

		info, err := s.catalog.GetProduct(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		if info.Stock < item.Quantity {
			return nil, OutOfStockError{
				ProductID: item.ProductID,
				Available: info.Stock,
				Requested: item.Quantity,
			}
		}
		if info.FinalPrice != item.FinalUnitPrice {
			item.UnitPrice = info.Price
			item.DiscountPercent = info.DiscountPercent
			item.DiscountExpiry = info.DiscountExpiry
			item.FinalUnitPrice = info.FinalPrice
			item.TotalPrice = pricing.LineTotal(info.FinalPrice, item.Quantity)
			drifted = true
		}
	}

	if drifted {
		s.invalidateCouponAndRecalculate(c)
		if err := s.persist(ctx, c); err != nil {
			return nil, err
		}
		return c, ErrPricesChanged
	}

	return c, nil
}

func (s *Store) load(ctx context.Context, userID primitive.ObjectID) (*models.Cart, error) {
	c, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		c = &models.Cart{UserID: userID, Items: []models.CartItem{}}
	}
	return c, nil
}

func (s *Store) invalidateCouponAndRecalculate(c *models.Cart) {
	c.AppliedCouponID = nil
	pricing.Apply(c, 0)
}

func (s *Store) persist(ctx context.Context, c *models.Cart) error {
	if err := s.repo.Save(ctx, c); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, c.UserID.Hex()); err != nil {
			log.Println("[CART] [WARN] cache invalidation failed:", err)
		}
	}
	return nil
}

func findLine(items []models.CartItem, productID primitive.ObjectID) int {
	for i, item := range items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}
