package account

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sort"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/text/language"

	"github.com/noah-isme/storefront-api/internal/catalog"
	"github.com/noah-isme/storefront-api/internal/common"
)

// ErrNotFound indicates the requested account resource does not exist.
var ErrNotFound = errors.New("account: not found")

// ProductLookup resolves catalog products for the wishlist.
type ProductLookup interface {
	Lookup(ctx context.Context, ref string) (catalog.Product, error)
}

// Service orchestrates profile, address book, wallet, wishlist and order history operations.
type Service struct {
	store    *Store
	catalog  ProductLookup
	validate *validator.Validate
	now      func() time.Time
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store     *Store
	Catalog   ProductLookup
	Validator *validator.Validate
	Now       func() time.Time
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("account: catalog lookup is required")
	}
	store := cfg.Store
	if store == nil {
		store = NewStore()
	}
	v := cfg.Validator
	if v == nil {
		v = common.NewValidator()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, catalog: cfg.Catalog, validate: v, now: now}, nil
}

// Profile returns the customer profile.
func (s *Service) Profile(_ context.Context, customerID string) Profile {
	var p Profile
	s.store.view(customerID, func(d *customerData) { p = d.profile })
	return p
}

// UpdateProfile validates and replaces the profile fields.
func (s *Service) UpdateProfile(_ context.Context, customerID string, input ProfileInput) (Profile, error) {
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Phone = strings.TrimSpace(input.Phone)
	if err := common.ValidateStruct(s.validate, input); err != nil {
		return Profile{}, err
	}
	var out Profile
	err := s.store.update(customerID, func(d *customerData) error {
		d.profile = Profile{
			CustomerID: customerID,
			FirstName:  input.FirstName,
			LastName:   input.LastName,
			Email:      input.Email,
			Phone:      input.Phone,
			UpdatedAt:  s.now().UTC(),
		}
		out = d.profile
		return nil
	})
	return out, err
}

// Addresses lists addresses in creation order.
func (s *Service) Addresses(_ context.Context, customerID string) []Address {
	var out []Address
	s.store.view(customerID, func(d *customerData) { out = slices.Clone(d.addresses) })
	if out == nil {
		out = []Address{}
	}
	return out
}

// Address returns one address.
func (s *Service) Address(_ context.Context, customerID string, id uuid.UUID) (Address, error) {
	var (
		out   Address
		found bool
	)
	s.store.view(customerID, func(d *customerData) {
		if idx := addressIndex(d.addresses, id); idx >= 0 {
			out, found = d.addresses[idx], true
		}
	})
	if !found {
		return Address{}, addressNotFound()
	}
	return out, nil
}

// CreateAddress adds an address. The first address, or one flagged default, becomes the default.
func (s *Service) CreateAddress(_ context.Context, customerID string, input AddressInput) (Address, error) {
	input = normalizeAddress(input)
	if err := common.ValidateStruct(s.validate, input); err != nil {
		return Address{}, err
	}
	now := s.now().UTC()
	addr := addressFromInput(uuid.New(), input, now)
	err := s.store.update(customerID, func(d *customerData) error {
		if len(d.addresses) == 0 {
			addr.IsDefault = true
		}
		if addr.IsDefault {
			for i := range d.addresses {
				d.addresses[i].IsDefault = false
			}
		}
		d.addresses = append(d.addresses, addr)
		return nil
	})
	return addr, err
}

// UpdateAddress replaces an address. Setting is_default moves the default here;
// the current default cannot be unset directly.
func (s *Service) UpdateAddress(_ context.Context, customerID string, id uuid.UUID, input AddressInput) (Address, error) {
	input = normalizeAddress(input)
	if err := common.ValidateStruct(s.validate, input); err != nil {
		return Address{}, err
	}
	var out Address
	err := s.store.update(customerID, func(d *customerData) error {
		idx := addressIndex(d.addresses, id)
		if idx < 0 {
			return addressNotFound()
		}
		current := d.addresses[idx]
		next := addressFromInput(id, input, current.CreatedAt)
		next.UpdatedAt = s.now().UTC()
		next.IsDefault = current.IsDefault || input.IsDefault
		if next.IsDefault {
			for i := range d.addresses {
				d.addresses[i].IsDefault = false
			}
		}
		d.addresses[idx] = next
		out = next
		return nil
	})
	return out, err
}

// DeleteAddress removes an address, promoting the oldest remaining one when the default is deleted.
func (s *Service) DeleteAddress(_ context.Context, customerID string, id uuid.UUID) error {
	return s.store.update(customerID, func(d *customerData) error {
		idx := addressIndex(d.addresses, id)
		if idx < 0 {
			return addressNotFound()
		}
		wasDefault := d.addresses[idx].IsDefault
		d.addresses = slices.Delete(d.addresses, idx, idx+1)
		if wasDefault && len(d.addresses) > 0 {
			d.addresses[0].IsDefault = true
		}
		return nil
	})
}

// PaymentMethods lists stored cards.
func (s *Service) PaymentMethods(_ context.Context, customerID string) []PaymentMethod {
	var out []PaymentMethod
	s.store.view(customerID, func(d *customerData) { out = slices.Clone(d.payments) })
	if out == nil {
		out = []PaymentMethod{}
	}
	return out
}

// PaymentMethod returns one stored card.
func (s *Service) PaymentMethod(_ context.Context, customerID string, id uuid.UUID) (PaymentMethod, error) {
	var (
		out   PaymentMethod
		found bool
	)
	s.store.view(customerID, func(d *customerData) {
		if idx := paymentIndex(d.payments, id); idx >= 0 {
			out, found = d.payments[idx], true
		}
	})
	if !found {
		return PaymentMethod{}, common.NotFound("payment method not found", ErrNotFound)
	}
	return out, nil
}

// AddPaymentMethod validates a card with Luhn and stores its brand, last four digits and expiry.
func (s *Service) AddPaymentMethod(_ context.Context, customerID string, input PaymentMethodInput) (PaymentMethod, error) {
	input.HolderName = strings.TrimSpace(input.HolderName)
	if err := common.ValidateStruct(s.validate, input); err != nil {
		return PaymentMethod{}, err
	}
	digits, err := NormalizeCardNumber(input.CardNumber)
	if err != nil || !Luhn(digits) {
		return PaymentMethod{}, cardError("cardNumber", "card number is invalid", ErrInvalidCard)
	}
	now := s.now().UTC()
	if Expired(input.ExpMonth, input.ExpYear, now) {
		return PaymentMethod{}, cardError("expYear", "card has expired", ErrCardExpired)
	}
	pm := PaymentMethod{
		ID:         uuid.New(),
		Brand:      CardBrand(digits),
		Last4:      digits[len(digits)-4:],
		ExpMonth:   input.ExpMonth,
		ExpYear:    input.ExpYear,
		HolderName: input.HolderName,
		IsDefault:  input.IsDefault,
		CreatedAt:  now,
	}
	err = s.store.update(customerID, func(d *customerData) error {
		if len(d.payments) == 0 {
			pm.IsDefault = true
		}
		if pm.IsDefault {
			for i := range d.payments {
				d.payments[i].IsDefault = false
			}
		}
		d.payments = append(d.payments, pm)
		return nil
	})
	return pm, err
}

// DeletePaymentMethod removes a card, promoting the oldest remaining one when the default is deleted.
func (s *Service) DeletePaymentMethod(_ context.Context, customerID string, id uuid.UUID) error {
	return s.store.update(customerID, func(d *customerData) error {
		idx := paymentIndex(d.payments, id)
		if idx < 0 {
			return common.NotFound("payment method not found", ErrNotFound)
		}
		wasDefault := d.payments[idx].IsDefault
		d.payments = slices.Delete(d.payments, idx, idx+1)
		if wasDefault && len(d.payments) > 0 {
			d.payments[0].IsDefault = true
		}
		return nil
	})
}

// AddToWishlist stores the product slug. Adding an existing product is a no-op.
func (s *Service) AddToWishlist(ctx context.Context, customerID, ref string) (catalog.Product, error) {
	product, err := s.catalog.Lookup(ctx, ref)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return catalog.Product{}, common.NotFound("product not found", err)
		}
		return catalog.Product{}, fmt.Errorf("lookup product: %w", err)
	}
	err = s.store.update(customerID, func(d *customerData) error {
		if !slices.Contains(d.wishlist, product.Slug) {
			d.wishlist = append(d.wishlist, product.Slug)
		}
		return nil
	})
	return product, err
}

// RemoveFromWishlist drops the product slug.
func (s *Service) RemoveFromWishlist(_ context.Context, customerID, slug string) error {
	return s.store.update(customerID, func(d *customerData) error {
		idx := slices.Index(d.wishlist, slug)
		if idx < 0 {
			return common.NotFound("wishlist item not found", ErrNotFound)
		}
		d.wishlist = slices.Delete(d.wishlist, idx, idx+1)
		return nil
	})
}

// Wishlist resolves the saved slugs against the catalog, skipping products that no longer exist.
func (s *Service) Wishlist(ctx context.Context, customerID string, lang language.Tag) ([]catalog.ProductListItem, error) {
	var slugs []string
	s.store.view(customerID, func(d *customerData) { slugs = slices.Clone(d.wishlist) })
	items := make([]catalog.ProductListItem, 0, len(slugs))
	for _, slug := range slugs {
		product, err := s.catalog.Lookup(ctx, slug)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("lookup product %s: %w", slug, err)
		}
		items = append(items, catalog.Summarize(product, lang))
	}
	return items, nil
}

// RecordOrder appends an order to the customer's history.
func (s *Service) RecordOrder(_ context.Context, order Order) error {
	if strings.TrimSpace(order.ID) == "" || strings.TrimSpace(order.CustomerID) == "" {
		return errors.New("account: order id and customer are required")
	}
	return s.store.update(order.CustomerID, func(d *customerData) error {
		d.orders = append(d.orders, order)
		return nil
	})
}

// Orders lists orders newest first with pagination.
func (s *Service) Orders(_ context.Context, customerID string, page, perPage int) ([]Order, int) {
	var all []Order
	s.store.view(customerID, func(d *customerData) { all = slices.Clone(d.orders) })
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	start, end := common.Window(page, perPage, len(all))
	out := all[start:end]
	if out == nil {
		out = []Order{}
	}
	return out, len(all)
}

// Order returns one of the customer's orders.
func (s *Service) Order(_ context.Context, customerID, orderID string) (Order, error) {
	var (
		out   Order
		found bool
	)
	s.store.view(customerID, func(d *customerData) {
		for _, o := range d.orders {
			if o.ID == orderID {
				out, found = o, true
				return
			}
		}
	})
	if !found {
		return Order{}, common.NotFound("order not found", ErrNotFound)
	}
	return out, nil
}

// OrdersBetween returns every customer's orders created in [from, to), oldest first.
func (s *Service) OrdersBetween(_ context.Context, from, to time.Time) []Order {
	var out []Order
	s.store.each(func(_ string, d *customerData) {
		for _, o := range d.orders {
			if !o.CreatedAt.Before(from) && o.CreatedAt.Before(to) {
				out = append(out, o)
			}
		}
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// EnsureDemo seeds the demo customer with a profile, an address and a card when empty.
func (s *Service) EnsureDemo(ctx context.Context, customerID string) error {
	if len(s.Addresses(ctx, customerID)) > 0 {
		return nil
	}
	if _, err := s.UpdateProfile(ctx, customerID, ProfileInput{FirstName: "Ayşe", LastName: "Yılmaz", Email: "ayse.yilmaz@example.com", Phone: "+905551112233"}); err != nil {
		return fmt.Errorf("seed profile: %w", err)
	}
	if _, err := s.CreateAddress(ctx, customerID, AddressInput{
		Label:        "Ev",
		ReceiverName: "Ayşe Yılmaz",
		Phone:        "+905551112233",
		Country:      "TR",
		Province:     "İstanbul",
		City:         "Kadıköy",
		PostalCode:   "34710",
		AddressLine1: "Moda Caddesi No: 12",
	}); err != nil {
		return fmt.Errorf("seed address: %w", err)
	}
	if _, err := s.AddPaymentMethod(ctx, customerID, PaymentMethodInput{
		CardNumber: "4242 4242 4242 4242",
		HolderName: "AYSE YILMAZ",
		ExpMonth:   12,
		ExpYear:    s.now().Year() + 3,
	}); err != nil {
		return fmt.Errorf("seed payment method: %w", err)
	}
	return nil
}

func normalizeAddress(in AddressInput) AddressInput {
	in.Label = strings.TrimSpace(in.Label)
	in.ReceiverName = strings.TrimSpace(in.ReceiverName)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Country = strings.ToUpper(strings.TrimSpace(in.Country))
	if in.Country == "" {
		in.Country = "TR"
	}
	in.Province = strings.TrimSpace(in.Province)
	in.City = strings.TrimSpace(in.City)
	in.PostalCode = strings.TrimSpace(in.PostalCode)
	in.AddressLine1 = strings.TrimSpace(in.AddressLine1)
	in.AddressLine2 = strings.TrimSpace(in.AddressLine2)
	return in
}

func addressFromInput(id uuid.UUID, in AddressInput, createdAt time.Time) Address {
	return Address{
		ID:           id,
		Label:        in.Label,
		ReceiverName: in.ReceiverName,
		Phone:        in.Phone,
		Country:      in.Country,
		Province:     in.Province,
		City:         in.City,
		PostalCode:   in.PostalCode,
		AddressLine1: in.AddressLine1,
		AddressLine2: in.AddressLine2,
		IsDefault:    in.IsDefault,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
}

func addressIndex(addresses []Address, id uuid.UUID) int {
	return slices.IndexFunc(addresses, func(a Address) bool { return a.ID == id })
}

func paymentIndex(payments []PaymentMethod, id uuid.UUID) int {
	return slices.IndexFunc(payments, func(p PaymentMethod) bool { return p.ID == id })
}

func addressNotFound() error {
	return common.NotFound("address not found", ErrNotFound)
}

func cardError(field, message string, err error) error {
	appErr := common.NewAppError("VALIDATION_ERROR", message, http.StatusBadRequest, err)
	appErr.Details = map[string]any{"field": field}
	return appErr
}
