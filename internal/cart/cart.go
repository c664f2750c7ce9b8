package cart

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-api/internal/pricing"
)

var (
	// ErrNotFound indicates the requested cart could not be located or has expired.
	ErrNotFound = errors.New("cart not found")
	// ErrItemNotFound indicates the cart has no line for the product.
	ErrItemNotFound = errors.New("cart item not found")
	// ErrInvalidInput is returned when a quantity or price is out of bounds. It is
	// the pricing sentinel so pricing failures map to the same response.
	ErrInvalidInput = pricing.ErrInvalidInput
)

// Line is a product snapshot held in a cart. UnitPriceInclusive includes VAT.
type Line struct {
	ProductID          uuid.UUID       `json:"productId"`
	Slug               string          `json:"slug"`
	Name               string          `json:"name"`
	Image              string          `json:"image,omitempty"`
	Category           string          `json:"category"`
	Tags               []string        `json:"tags"`
	UnitPriceInclusive decimal.Decimal `json:"unitPriceInclusive"`
	Quantity           int             `json:"quantity"`
	Tier               pricing.Tier    `json:"vatTier"`
}

// Cart is an immutable value; every transition returns a new Cart.
type Cart struct {
	ID         uuid.UUID `json:"id"`
	CustomerID string    `json:"customerId,omitempty"`
	Lines      []Line    `json:"lines"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// New returns an empty cart.
func New(customerID string, now time.Time, ttl time.Duration) Cart {
	return Cart{
		ID:         uuid.New(),
		CustomerID: customerID,
		Lines:      []Line{},
		CreatedAt:  now,
		UpdatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
}

// AddItem appends the line or increments the quantity of an existing line for the same product.
func (c Cart) AddItem(line Line) (Cart, error) {
	if line.Quantity < 1 {
		return c, fmt.Errorf("quantity must be at least 1: %w", ErrInvalidInput)
	}
	if line.UnitPriceInclusive.IsNegative() {
		return c, fmt.Errorf("unit price must not be negative: %w", ErrInvalidInput)
	}
	next := c.clone()
	if idx := next.index(line.ProductID); idx >= 0 {
		next.Lines[idx].Quantity += line.Quantity
		return next, nil
	}
	line.Tags = slices.Clone(line.Tags)
	next.Lines = append(next.Lines, line)
	return next, nil
}

// SetQuantity replaces the quantity of a line. Zero removes the line.
func (c Cart) SetQuantity(productID uuid.UUID, qty int) (Cart, error) {
	if qty < 0 {
		return c, fmt.Errorf("quantity must not be negative: %w", ErrInvalidInput)
	}
	idx := c.index(productID)
	if idx < 0 {
		return c, ErrItemNotFound
	}
	if qty == 0 {
		return c.RemoveItem(productID)
	}
	next := c.clone()
	next.Lines[idx].Quantity = qty
	return next, nil
}

// RemoveItem drops the line for the product.
func (c Cart) RemoveItem(productID uuid.UUID) (Cart, error) {
	idx := c.index(productID)
	if idx < 0 {
		return c, ErrItemNotFound
	}
	next := c.clone()
	next.Lines = slices.Delete(next.Lines, idx, idx+1)
	return next, nil
}

// Clear empties the cart.
func (c Cart) Clear() Cart {
	next := c.clone()
	next.Lines = []Line{}
	return next
}

// Len returns the number of distinct lines.
func (c Cart) Len() int { return len(c.Lines) }

// Quantity returns the total item count across lines.
func (c Cart) Quantity() int {
	total := 0
	for _, l := range c.Lines {
		total += l.Quantity
	}
	return total
}

// Line returns the line for productID.
func (c Cart) Line(productID uuid.UUID) (Line, bool) {
	if idx := c.index(productID); idx >= 0 {
		return c.Lines[idx], true
	}
	return Line{}, false
}

// PricingItems maps lines to pricing inputs in display order.
func (c Cart) PricingItems() []pricing.LineItem {
	items := make([]pricing.LineItem, 0, len(c.Lines))
	for _, l := range c.Lines {
		items = append(items, pricing.LineItem{UnitPriceInclusive: l.UnitPriceInclusive, Quantity: l.Quantity, Tier: l.Tier})
	}
	return items
}

// Expired reports whether the cart is past its expiry.
func (c Cart) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

func (c Cart) index(productID uuid.UUID) int {
	return slices.IndexFunc(c.Lines, func(l Line) bool { return l.ProductID == productID })
}

func (c Cart) clone() Cart {
	next := c
	next.Lines = make([]Line, len(c.Lines))
	for i, l := range c.Lines {
		l.Tags = slices.Clone(l.Tags)
		next.Lines[i] = l
	}
	return next
}
