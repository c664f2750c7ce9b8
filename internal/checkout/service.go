package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/storefront-api/internal/account"
	"github.com/noah-isme/storefront-api/internal/cart"
	"github.com/noah-isme/storefront-api/internal/catalog"
	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/events"
	"github.com/noah-isme/storefront-api/internal/obs"
)

var (
	// ErrCartEmpty is returned when checking out a cart without lines.
	ErrCartEmpty = errors.New("cart is empty")
	// ErrCartForbidden is returned when the cart belongs to another customer.
	ErrCartForbidden = errors.New("cart does not belong to customer")
)

// Carts loads carts and clears them under the cart lock.
type Carts interface {
	Get(ctx context.Context, id uuid.UUID) (cart.Cart, error)
	WithCartLock(ctx context.Context, id uuid.UUID, fn func(context.Context) error) error
	ClearLocked(ctx context.Context, id uuid.UUID) (cart.Cart, error)
}

// Accounts resolves customer addresses and cards and stores orders.
type Accounts interface {
	Address(ctx context.Context, customerID string, id uuid.UUID) (account.Address, error)
	PaymentMethod(ctx context.Context, customerID string, id uuid.UUID) (account.PaymentMethod, error)
	RecordOrder(ctx context.Context, order account.Order) error
}

// Inventory adjusts product stock.
type Inventory interface {
	AdjustStock(ctx context.Context, id uuid.UUID, delta int) error
}

// CacheInvalidator drops cached catalog pages for the given slugs.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, slugs ...string) error
}

// Input is the checkout request.
type Input struct {
	CartID          uuid.UUID  `json:"cartId"`
	AddressID       uuid.UUID  `json:"addressId"`
	PaymentMethodID *uuid.UUID `json:"paymentMethodId"`
	Notes           string     `json:"notes"`
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Carts     Carts
	Accounts  Accounts
	Inventory Inventory
	Catalog   CacheInvalidator
	Events    *events.Bus
	Logger    zerolog.Logger
	Now       func() time.Time
}

// Service turns carts into orders.
type Service struct {
	carts     Carts
	accounts  Accounts
	inventory Inventory
	catalog   CacheInvalidator
	bus       *events.Bus
	logger    zerolog.Logger
	now       func() time.Time
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Carts == nil || cfg.Accounts == nil || cfg.Inventory == nil {
		return nil, errors.New("checkout: carts, accounts and inventory are required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		carts:     cfg.Carts,
		accounts:  cfg.Accounts,
		inventory: cfg.Inventory,
		catalog:   cfg.Catalog,
		bus:       cfg.Events,
		logger:    cfg.Logger,
		now:       now,
	}, nil
}

// Checkout prices the cart, reserves stock, records a PENDING_PAYMENT order and clears the cart.
func (s *Service) Checkout(ctx context.Context, customerID string, in Input) (account.Order, error) {
	ctx, span := obs.StartSpan(ctx, "checkout.place_order", attribute.String("cart.id", in.CartID.String()))
	var order account.Order
	err := s.carts.WithCartLock(ctx, in.CartID, func(ctx context.Context) error {
		var err error
		order, err = s.checkout(ctx, customerID, in)
		return err
	})
	total, _ := order.Totals.TotalInclusive.Float64()
	obs.ObserveCheckout(total, err)
	if err == nil {
		span.SetAttributes(attribute.String("order.id", order.ID), attribute.Float64("order.total", total))
	}
	obs.EndSpan(span, err)
	if err != nil {
		return account.Order{}, err
	}
	return order, nil
}

func (s *Service) checkout(ctx context.Context, customerID string, in Input) (account.Order, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return account.Order{}, common.NewAppError("UNAUTHORIZED", "customer is required for checkout", http.StatusUnauthorized, nil)
	}
	if in.CartID == uuid.Nil {
		return account.Order{}, common.BadRequest("cartId", "cartId is required", nil)
	}
	if in.AddressID == uuid.Nil {
		return account.Order{}, common.BadRequest("addressId", "addressId is required", nil)
	}
	if len(in.Notes) > 500 {
		return account.Order{}, common.BadRequest("notes", "notes must be at most 500 characters", nil)
	}

	c, err := s.carts.Get(ctx, in.CartID)
	if err != nil {
		return account.Order{}, err
	}
	if c.CustomerID != "" && c.CustomerID != customerID {
		return account.Order{}, ErrCartForbidden
	}
	if c.Len() == 0 {
		return account.Order{}, ErrCartEmpty
	}
	address, err := s.accounts.Address(ctx, customerID, in.AddressID)
	if err != nil {
		return account.Order{}, err
	}
	payment, err := s.paymentMethod(ctx, customerID, in.PaymentMethodID)
	if err != nil {
		return account.Order{}, err
	}

	quote, err := cart.Price(c)
	if err != nil {
		return account.Order{}, err
	}

	reserved, err := s.reserve(ctx, quote.Lines)
	if err != nil {
		return account.Order{}, err
	}

	now := s.now().UTC()
	order := account.Order{
		ID:              ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		CustomerID:      customerID,
		CartID:          c.ID,
		Status:          account.StatusPendingPayment,
		Lines:           orderLines(quote.Lines),
		Totals:          quote.Totals,
		ShippingAddress: address,
		PaymentMethod:   payment,
		Notes:           strings.TrimSpace(in.Notes),
		CreatedAt:       now,
	}
	if err := s.accounts.RecordOrder(ctx, order); err != nil {
		s.release(ctx, reserved)
		return account.Order{}, fmt.Errorf("record order: %w", err)
	}

	if _, err := s.carts.ClearLocked(ctx, c.ID); err != nil {
		s.logger.Warn().Err(err).Str("cart_id", c.ID.String()).Str("order_id", order.ID).Msg("clear cart after checkout failed")
	}
	s.invalidate(ctx, quote.Lines)
	s.emit(ctx, order)
	return order, nil
}

// paymentMethod resolves the requested card. Without one, the order waits for payment details.
func (s *Service) paymentMethod(ctx context.Context, customerID string, id *uuid.UUID) (account.PaymentMethod, error) {
	if id == nil || *id == uuid.Nil {
		return account.PaymentMethod{}, nil
	}
	return s.accounts.PaymentMethod(ctx, customerID, *id)
}

type reservation struct {
	productID uuid.UUID
	quantity  int
}

func (s *Service) reserve(ctx context.Context, lines []cart.QuoteLine) ([]reservation, error) {
	reserved := make([]reservation, 0, len(lines))
	for _, line := range lines {
		if err := s.inventory.AdjustStock(ctx, line.ProductID, -line.Quantity); err != nil {
			s.release(ctx, reserved)
			switch {
			case errors.Is(err, catalog.ErrInsufficientStock):
				return nil, fmt.Errorf("%s: %w", line.Slug, cart.ErrInsufficientStock)
			case errors.Is(err, catalog.ErrNotFound):
				return nil, fmt.Errorf("%s: %w", line.Slug, cart.ErrProductNotFound)
			default:
				return nil, fmt.Errorf("reserve stock for %s: %w", line.Slug, err)
			}
		}
		reserved = append(reserved, reservation{productID: line.ProductID, quantity: line.Quantity})
	}
	return reserved, nil
}

func (s *Service) release(ctx context.Context, reserved []reservation) {
	for _, r := range reserved {
		if err := s.inventory.AdjustStock(ctx, r.productID, r.quantity); err != nil {
			s.logger.Error().Err(err).Str("product_id", r.productID.String()).Int("quantity", r.quantity).Msg("release reserved stock failed")
		}
	}
}

func (s *Service) invalidate(ctx context.Context, lines []cart.QuoteLine) {
	if s.catalog == nil {
		return
	}
	slugs := make([]string, 0, len(lines))
	for _, line := range lines {
		slugs = append(slugs, line.Slug)
	}
	if err := s.catalog.Invalidate(ctx, slugs...); err != nil {
		s.logger.Warn().Err(err).Msg("invalidate catalog cache after checkout failed")
	}
}

func (s *Service) emit(ctx context.Context, order account.Order) {
	if s.bus == nil {
		return
	}
	payload := map[string]any{
		"orderId":    order.ID,
		"customerId": order.CustomerID,
		"cartId":     order.CartID.String(),
		"total":      order.Totals.TotalInclusive.StringFixed(2),
		"totalVat":   order.Totals.TotalVAT.StringFixed(2),
		"lines":      len(order.Lines),
	}
	if _, err := s.bus.Emit(ctx, events.TopicOrderCreated, order.ID, payload); err != nil {
		s.logger.Warn().Err(err).Str("order_id", order.ID).Msg("emit order.created failed")
	}
}

func orderLines(lines []cart.QuoteLine) []account.OrderLine {
	out := make([]account.OrderLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, account.OrderLine{
			ProductID:          l.ProductID,
			Slug:               l.Slug,
			Name:               l.Name,
			Quantity:           l.Quantity,
			UnitPriceInclusive: l.UnitPriceInclusive,
			Tier:               l.Tier,
			Computation:        l.Computation,
		})
	}
	return out
}
