package account

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-api/internal/pricing"
)

// Order statuses.
const (
	StatusPendingPayment = "PENDING_PAYMENT"
)

// Profile is the customer's personal data.
type Profile struct {
	CustomerID string    `json:"customerId"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ProfileInput captures profile updates.
type ProfileInput struct {
	FirstName string `json:"firstName" validate:"required,max=64"`
	LastName  string `json:"lastName" validate:"required,max=64"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"omitempty,e164"`
}

// Address is a customer address book entry.
type Address struct {
	ID           uuid.UUID `json:"id"`
	Label        string    `json:"label,omitempty"`
	ReceiverName string    `json:"receiverName"`
	Phone        string    `json:"phone"`
	Country      string    `json:"country"`
	Province     string    `json:"province,omitempty"`
	City         string    `json:"city"`
	PostalCode   string    `json:"postalCode,omitempty"`
	AddressLine1 string    `json:"addressLine1"`
	AddressLine2 string    `json:"addressLine2,omitempty"`
	IsDefault    bool      `json:"isDefault"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// AddressInput captures payload for creating or updating an address.
type AddressInput struct {
	Label        string `json:"label" validate:"max=32"`
	ReceiverName string `json:"receiverName" validate:"required,max=128"`
	Phone        string `json:"phone" validate:"required,e164"`
	Country      string `json:"country" validate:"omitempty,iso3166_1_alpha2"`
	Province     string `json:"province" validate:"max=64"`
	City         string `json:"city" validate:"required,max=64"`
	PostalCode   string `json:"postalCode" validate:"omitempty,numeric,len=5"`
	AddressLine1 string `json:"addressLine1" validate:"required,max=256"`
	AddressLine2 string `json:"addressLine2" validate:"max=256"`
	IsDefault    bool   `json:"isDefault"`
}

// PaymentMethod is a stored card. Only the brand, last four digits and expiry are kept.
type PaymentMethod struct {
	ID         uuid.UUID `json:"id"`
	Brand      string    `json:"brand"`
	Last4      string    `json:"last4"`
	ExpMonth   int       `json:"expMonth"`
	ExpYear    int       `json:"expYear"`
	HolderName string    `json:"holderName"`
	IsDefault  bool      `json:"isDefault"`
	CreatedAt  time.Time `json:"createdAt"`
}

// PaymentMethodInput captures a card to store.
type PaymentMethodInput struct {
	CardNumber string `json:"cardNumber" validate:"required,min=12,max=23"`
	HolderName string `json:"holderName" validate:"required,max=128"`
	ExpMonth   int    `json:"expMonth" validate:"required,min=1,max=12"`
	ExpYear    int    `json:"expYear" validate:"required,min=2000,max=2100"`
	IsDefault  bool   `json:"isDefault"`
}

// OrderLine is a priced line frozen at checkout.
type OrderLine struct {
	ProductID          uuid.UUID               `json:"productId"`
	Slug               string                  `json:"slug"`
	Name               string                  `json:"name"`
	Quantity           int                     `json:"quantity"`
	UnitPriceInclusive decimal.Decimal         `json:"unitPriceInclusive"`
	Tier               pricing.Tier            `json:"vatTier"`
	Computation        pricing.LineComputation `json:"computation"`
}

// Order is a placed order.
type Order struct {
	ID              string             `json:"id"`
	CustomerID      string             `json:"customerId"`
	CartID          uuid.UUID          `json:"cartId"`
	Status          string             `json:"status"`
	Lines           []OrderLine        `json:"lines"`
	Totals          pricing.CartTotals `json:"totals"`
	ShippingAddress Address            `json:"shippingAddress"`
	PaymentMethod   PaymentMethod      `json:"paymentMethod"`
	Notes           string             `json:"notes,omitempty"`
	CreatedAt       time.Time          `json:"createdAt"`
}
