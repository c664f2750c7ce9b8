package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/storefront-api/internal/catalog"
	"github.com/noah-isme/storefront-api/internal/events"
	"github.com/noah-isme/storefront-api/internal/lock"
	"github.com/noah-isme/storefront-api/internal/obs"
	"github.com/noah-isme/storefront-api/internal/pricing"
)

var (
	// ErrProductNotFound is returned when the referenced product is not in the catalog.
	ErrProductNotFound = errors.New("product not found")
	// ErrInsufficientStock is returned when the requested quantity exceeds stock.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// ProductLookup resolves catalog products by slug or id.
type ProductLookup interface {
	Lookup(ctx context.Context, ref string) (catalog.Product, error)
}

// Service encapsulates cart domain operations.
type Service struct {
	store   Store
	catalog ProductLookup
	locker  lock.Locker
	bus     *events.Bus
	logger  zerolog.Logger
	ttl     time.Duration
	lockTTL time.Duration
	now     func() time.Time
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store   Store
	Catalog ProductLookup
	Locker  lock.Locker
	Events  *events.Bus
	Logger  zerolog.Logger
	TTL     time.Duration
	LockTTL time.Duration
	Now     func() time.Time
}

// QuoteLine pairs a cart line with its VAT computation.
type QuoteLine struct {
	Line
	Computation pricing.LineComputation `json:"computation"`
}

// Quote is a cart priced from scratch.
type Quote struct {
	Cart   Cart               `json:"cart"`
	Lines  []QuoteLine        `json:"lines"`
	Totals pricing.CartTotals `json:"totals"`
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("cart: store is required")
	}
	if cfg.Catalog == nil {
		return nil, errors.New("cart: catalog lookup is required")
	}
	locker := cfg.Locker
	if locker == nil {
		locker = lock.NewLocal()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = 5 * time.Second
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:   cfg.Store,
		catalog: cfg.Catalog,
		locker:  locker,
		bus:     cfg.Events,
		logger:  cfg.Logger,
		ttl:     ttl,
		lockTTL: lockTTL,
		now:     now,
	}, nil
}

// Create stores a new empty cart for the customer.
func (s *Service) Create(ctx context.Context, customerID string) (Cart, error) {
	c := New(strings.TrimSpace(customerID), s.now().UTC(), s.ttl)
	err := s.store.Save(ctx, c)
	obs.ObserveCartOperation("create", err)
	if err != nil {
		return Cart{}, fmt.Errorf("create cart: %w", err)
	}
	return c, nil
}

// Get loads a cart.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Cart, error) {
	return s.store.Get(ctx, id)
}

// AddItem snapshots the product into the cart or increments its quantity.
func (s *Service) AddItem(ctx context.Context, cartID uuid.UUID, productRef string, qty int) (Cart, error) {
	if qty < 1 {
		obs.ObserveCartOperation("add_item", ErrInvalidInput)
		return Cart{}, fmt.Errorf("quantity must be at least 1: %w", ErrInvalidInput)
	}
	product, err := s.lookup(ctx, productRef)
	if err != nil {
		obs.ObserveCartOperation("add_item", err)
		return Cart{}, err
	}
	return s.mutate(ctx, "add_item", cartID, func(c Cart) (Cart, error) {
		existing, _ := c.Line(product.ID)
		if existing.Quantity+qty > product.Stock {
			return c, fmt.Errorf("%s has %d in stock: %w", product.Slug, product.Stock, ErrInsufficientStock)
		}
		return c.AddItem(lineFromProduct(product, qty))
	})
}

// SetQuantity replaces a line quantity. Zero removes the line.
func (s *Service) SetQuantity(ctx context.Context, cartID, productID uuid.UUID, qty int) (Cart, error) {
	var product catalog.Product
	if qty > 0 {
		p, err := s.lookup(ctx, productID.String())
		if err != nil && !errors.Is(err, ErrProductNotFound) {
			obs.ObserveCartOperation("set_quantity", err)
			return Cart{}, err
		}
		if err == nil {
			product = p
		}
	}
	return s.mutate(ctx, "set_quantity", cartID, func(c Cart) (Cart, error) {
		if product.ID != uuid.Nil && qty > product.Stock {
			return c, fmt.Errorf("%s has %d in stock: %w", product.Slug, product.Stock, ErrInsufficientStock)
		}
		return c.SetQuantity(productID, qty)
	})
}

// RemoveItem drops a line.
func (s *Service) RemoveItem(ctx context.Context, cartID, productID uuid.UUID) (Cart, error) {
	return s.mutate(ctx, "remove_item", cartID, func(c Cart) (Cart, error) {
		return c.RemoveItem(productID)
	})
}

// Clear empties the cart and emits cart.cleared.
func (s *Service) Clear(ctx context.Context, cartID uuid.UUID) (Cart, error) {
	c, err := s.mutate(ctx, "clear", cartID, clearLines)
	if err != nil {
		return Cart{}, err
	}
	s.emitCleared(ctx, c)
	return c, nil
}

// ClearLocked empties the cart without taking the cart lock. The caller must
// hold it through WithCartLock; the lock is not reentrant.
func (s *Service) ClearLocked(ctx context.Context, cartID uuid.UUID) (Cart, error) {
	ctx, span := obs.StartSpan(ctx, "cart.clear", attribute.String("cart.id", cartID.String()))
	c, err := s.apply(ctx, cartID, clearLines)
	obs.ObserveCartOperation("clear", err)
	obs.EndSpan(span, err)
	if err != nil {
		return Cart{}, err
	}
	s.emitCleared(ctx, c)
	return c, nil
}

// WithCartLock runs fn while holding the lock that serializes mutations of
// cartID. fn must not call the locking mutators for the same cart.
func (s *Service) WithCartLock(ctx context.Context, cartID uuid.UUID, fn func(context.Context) error) error {
	return s.locker.WithLock(ctx, lockKey(cartID), s.lockTTL, fn)
}

func lockKey(cartID uuid.UUID) string {
	return "lock:cart:" + cartID.String()
}

func clearLines(c Cart) (Cart, error) {
	return c.Clear(), nil
}

func (s *Service) emitCleared(ctx context.Context, c Cart) {
	if s.bus == nil {
		return
	}
	payload := map[string]any{"cartId": c.ID.String(), "customerId": c.CustomerID}
	if _, err := s.bus.Emit(ctx, events.TopicCartCleared, c.ID.String(), payload); err != nil {
		s.logger.Warn().Err(err).Str("cart_id", c.ID.String()).Msg("emit cart.cleared failed")
	}
}

// Quote recomputes VAT for every line and the cart totals.
func (s *Service) Quote(ctx context.Context, cartID uuid.UUID) (Quote, error) {
	c, err := s.store.Get(ctx, cartID)
	if err != nil {
		return Quote{}, err
	}
	return Price(c)
}

// Price computes the quote for a cart value.
func Price(c Cart) (Quote, error) {
	items := c.PricingItems()
	totals, err := pricing.ComputeCartTotals(items)
	if err != nil {
		return Quote{}, fmt.Errorf("price cart %s: %w", c.ID, err)
	}
	lines := make([]QuoteLine, 0, len(items))
	for i, it := range items {
		comp, err := pricing.ComputeLine(it)
		if err != nil {
			return Quote{}, fmt.Errorf("price cart %s line %d: %w", c.ID, i, err)
		}
		lines = append(lines, QuoteLine{Line: c.Lines[i], Computation: comp})
	}
	return Quote{Cart: c, Lines: lines, Totals: totals}, nil
}

func (s *Service) mutate(ctx context.Context, op string, cartID uuid.UUID, fn func(Cart) (Cart, error)) (Cart, error) {
	ctx, span := obs.StartSpan(ctx, "cart."+op, attribute.String("cart.id", cartID.String()))
	var out Cart
	err := s.WithCartLock(ctx, cartID, func(ctx context.Context) error {
		var err error
		out, err = s.apply(ctx, cartID, fn)
		return err
	})
	obs.ObserveCartOperation(op, err)
	obs.EndSpan(span, err)
	if err != nil {
		return Cart{}, err
	}
	return out, nil
}

// apply runs one read-modify-write; callers hold the cart lock.
func (s *Service) apply(ctx context.Context, cartID uuid.UUID, fn func(Cart) (Cart, error)) (Cart, error) {
	c, err := s.store.Get(ctx, cartID)
	if err != nil {
		return Cart{}, err
	}
	next, err := fn(c)
	if err != nil {
		return Cart{}, err
	}
	now := s.now().UTC()
	next.UpdatedAt = now
	next.ExpiresAt = now.Add(s.ttl)
	if err := s.store.Save(ctx, next); err != nil {
		return Cart{}, fmt.Errorf("save cart: %w", err)
	}
	return next, nil
}

func (s *Service) lookup(ctx context.Context, ref string) (catalog.Product, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return catalog.Product{}, fmt.Errorf("product reference is required: %w", ErrInvalidInput)
	}
	product, err := s.catalog.Lookup(ctx, ref)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return catalog.Product{}, fmt.Errorf("%s: %w", ref, ErrProductNotFound)
		}
		return catalog.Product{}, fmt.Errorf("lookup product: %w", err)
	}
	return product, nil
}

func lineFromProduct(p catalog.Product, qty int) Line {
	line := Line{
		ProductID:          p.ID,
		Slug:               p.Slug,
		Name:               p.Name,
		Category:           p.Category,
		Tags:               p.Tags,
		UnitPriceInclusive: p.Price,
		Quantity:           qty,
		Tier:               pricing.ClassifyTier(p.Category, p.Tags),
	}
	if len(p.Images) > 0 {
		line.Image = p.Images[0]
	}
	return line
}
