package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-api/internal/catalog"
	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/events"
	"github.com/noah-isme/storefront-api/internal/pricing"
)

const defaultLowStockThreshold = 5

// CacheInvalidator drops storefront cache entries for the given slugs.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, slugs ...string) error
}

// ProductInput is the editable part of a product.
type ProductInput struct {
	Name        string           `json:"name" validate:"required,max=120"`
	Slug        string           `json:"slug" validate:"omitempty,max=80"`
	Description string           `json:"description" validate:"max=10000"`
	Brand       string           `json:"brand" validate:"max=64"`
	Category    string           `json:"category" validate:"required"`
	Tags        []string         `json:"tags" validate:"max=20,dive,required,max=32"`
	Price       decimal.Decimal  `json:"price"`
	CompareAt   *decimal.Decimal `json:"compareAt"`
	CostPrice   decimal.Decimal  `json:"costPrice"`
	Stock       int              `json:"stock" validate:"min=0"`
	Images      []string         `json:"images" validate:"max=10,dive,url"`
	SEO         catalog.SEO      `json:"seo"`
}

// CategoryInput creates a category.
type CategoryInput struct {
	Name   string `json:"name" validate:"required,max=64"`
	Parent string `json:"parent" validate:"omitempty,max=80"`
}

// AdminProduct is a product with its VAT tier and margin for the dashboard list.
type AdminProduct struct {
	catalog.Product
	VATTier pricing.Tier  `json:"vatTier"`
	Margin  *MarginResult `json:"margin,omitempty"`
}

// LowStockItem is a product at or under the low stock threshold.
type LowStockItem struct {
	ID    uuid.UUID `json:"id"`
	Slug  string    `json:"slug"`
	Name  string    `json:"name"`
	Stock int       `json:"stock"`
}

// Overview summarizes the catalog for the dashboard landing page.
type Overview struct {
	Products          int             `json:"products"`
	Categories        int             `json:"categories"`
	OutOfStock        int             `json:"outOfStock"`
	LowStock          []LowStockItem  `json:"lowStock"`
	LowStockThreshold int             `json:"lowStockThreshold"`
	InventoryCost     decimal.Decimal `json:"inventoryCost"`
	InventoryRetail   decimal.Decimal `json:"inventoryRetail"`
	GeneratedAt       time.Time       `json:"generatedAt"`
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Repository        *catalog.Repository
	Cache             CacheInvalidator
	Events            *events.Bus
	Validator         *validator.Validate
	Logger            zerolog.Logger
	LowStockThreshold int
	Now               func() time.Time
}

// Service implements catalog administration.
type Service struct {
	repo     *catalog.Repository
	cache    CacheInvalidator
	bus      *events.Bus
	validate *validator.Validate
	logger   zerolog.Logger
	lowStock int
	now      func() time.Time
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Repository == nil {
		return nil, errors.New("dashboard: repository is required")
	}
	v := cfg.Validator
	if v == nil {
		v = common.NewValidator()
	}
	threshold := cfg.LowStockThreshold
	if threshold <= 0 {
		threshold = defaultLowStockThreshold
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:     cfg.Repository,
		cache:    cfg.Cache,
		bus:      cfg.Events,
		validate: v,
		logger:   cfg.Logger,
		lowStock: threshold,
		now:      now,
	}, nil
}

// ListProducts returns every product with its margin.
func (s *Service) ListProducts(ctx context.Context) ([]AdminProduct, error) {
	products, err := s.repo.Products(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	out := make([]AdminProduct, 0, len(products))
	for _, p := range products {
		out = append(out, adminProduct(p))
	}
	return out, nil
}

// GetProduct loads one product by id.
func (s *Service) GetProduct(ctx context.Context, id uuid.UUID) (AdminProduct, error) {
	p, err := s.repo.ProductByID(ctx, id)
	if err != nil {
		return AdminProduct{}, err
	}
	return adminProduct(p), nil
}

// CreateProduct validates the input, assigns a unique slug and stores the product.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (AdminProduct, error) {
	in = normalizeProduct(in)
	if err := s.validateProduct(ctx, in); err != nil {
		return AdminProduct{}, err
	}
	base := in.Slug
	if base == "" {
		base = in.Name
	}
	sl, err := s.uniqueProductSlug(ctx, base, uuid.Nil)
	if err != nil {
		return AdminProduct{}, err
	}
	now := s.now().UTC()
	p := productFromInput(uuid.New(), sl, in)
	p.CreatedAt = now
	p.UpdatedAt = now
	if err := s.repo.SaveProduct(ctx, p); err != nil {
		return AdminProduct{}, s.saveError(err)
	}
	s.afterWrite(ctx, events.TopicProductCreated, p, p.Slug)
	return adminProduct(p), nil
}

// UpdateProduct replaces the editable fields. The slug changes only when one is supplied.
func (s *Service) UpdateProduct(ctx context.Context, id uuid.UUID, in ProductInput) (AdminProduct, error) {
	current, err := s.repo.ProductByID(ctx, id)
	if err != nil {
		return AdminProduct{}, err
	}
	in = normalizeProduct(in)
	if err := s.validateProduct(ctx, in); err != nil {
		return AdminProduct{}, err
	}
	sl := current.Slug
	if in.Slug != "" && slug.MakeLang(in.Slug, "tr") != current.Slug {
		if sl, err = s.uniqueProductSlug(ctx, in.Slug, id); err != nil {
			return AdminProduct{}, err
		}
	}
	p := productFromInput(id, sl, in)
	p.CreatedAt = current.CreatedAt
	p.UpdatedAt = s.now().UTC()
	if err := s.repo.SaveProduct(ctx, p); err != nil {
		return AdminProduct{}, s.saveError(err)
	}
	s.afterWrite(ctx, events.TopicProductUpdated, p, current.Slug, p.Slug)
	return adminProduct(p), nil
}

// DeleteProduct removes a product.
func (s *Service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	p, err := s.repo.DeleteProduct(ctx, id)
	if err != nil {
		return err
	}
	s.afterWrite(ctx, events.TopicProductDeleted, p, p.Slug)
	return nil
}

// ListCategories returns stored categories.
func (s *Service) ListCategories(ctx context.Context) ([]catalog.CategoryRecord, error) {
	return s.repo.Categories(ctx)
}

// CreateCategory stores a category under a unique slug derived from its name.
func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (catalog.CategoryRecord, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Parent = strings.TrimSpace(in.Parent)
	if err := common.ValidateStruct(s.validate, in); err != nil {
		return catalog.CategoryRecord{}, err
	}
	if _, err := s.repo.CategoryByName(ctx, in.Name); err == nil {
		return catalog.CategoryRecord{}, fieldError("name", "unique")
	}
	if in.Parent != "" {
		if _, err := s.repo.CategoryBySlug(ctx, in.Parent); err != nil {
			return catalog.CategoryRecord{}, fieldError("parent", "exists")
		}
	}
	base := slug.MakeLang(in.Name, "tr")
	sl := base
	for i := 2; ; i++ {
		if _, err := s.repo.CategoryBySlug(ctx, sl); errors.Is(err, catalog.ErrNotFound) {
			break
		}
		sl = base + "-" + strconv.Itoa(i)
	}
	c := catalog.CategoryRecord{ID: uuid.New(), Name: in.Name, Slug: sl, ParentSlug: in.Parent}
	if err := s.repo.SaveCategory(ctx, c); err != nil {
		return catalog.CategoryRecord{}, s.saveError(err)
	}
	s.invalidate(ctx)
	return c, nil
}

// DeleteCategory removes a category that no product or subcategory uses.
func (s *Service) DeleteCategory(ctx context.Context, categorySlug string) error {
	if err := s.repo.DeleteCategory(ctx, categorySlug); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// Overview aggregates stock and inventory value.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	products, err := s.repo.Products(ctx)
	if err != nil {
		return Overview{}, fmt.Errorf("list products: %w", err)
	}
	categories, err := s.repo.Categories(ctx)
	if err != nil {
		return Overview{}, fmt.Errorf("list categories: %w", err)
	}
	ov := Overview{
		Products:          len(products),
		Categories:        len(categories),
		LowStock:          []LowStockItem{},
		LowStockThreshold: s.lowStock,
		InventoryCost:     decimal.Zero,
		InventoryRetail:   decimal.Zero,
		GeneratedAt:       s.now().UTC(),
	}
	for _, p := range products {
		qty := decimal.NewFromInt(int64(p.Stock))
		ov.InventoryCost = ov.InventoryCost.Add(p.CostPrice.Mul(qty))
		ov.InventoryRetail = ov.InventoryRetail.Add(p.Price.Mul(qty))
		switch {
		case p.Stock <= 0:
			ov.OutOfStock++
		case p.Stock <= s.lowStock:
			ov.LowStock = append(ov.LowStock, LowStockItem{ID: p.ID, Slug: p.Slug, Name: p.Name, Stock: p.Stock})
		}
	}
	return ov, nil
}

func (s *Service) validateProduct(ctx context.Context, in ProductInput) error {
	if err := common.ValidateStruct(s.validate, in); err != nil {
		return err
	}
	switch {
	case !in.Price.IsPositive():
		return fieldError("price", "gt=0")
	case in.CostPrice.IsNegative():
		return fieldError("costPrice", "gte=0")
	case in.CompareAt != nil && !in.CompareAt.GreaterThan(in.Price):
		return fieldError("compareAt", "gtfield=price")
	}
	if _, err := s.repo.CategoryByName(ctx, in.Category); err != nil {
		return fieldError("category", "exists")
	}
	return nil
}

func (s *Service) uniqueProductSlug(ctx context.Context, base string, self uuid.UUID) (string, error) {
	root := slug.MakeLang(base, "tr")
	if root == "" {
		return "", fieldError("slug", "required")
	}
	candidate := root
	for i := 2; ; i++ {
		p, err := s.repo.ProductBySlug(ctx, candidate)
		if errors.Is(err, catalog.ErrNotFound) || (err == nil && p.ID == self) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("check slug %s: %w", candidate, err)
		}
		candidate = root + "-" + strconv.Itoa(i)
	}
}

func (s *Service) afterWrite(ctx context.Context, topic string, p catalog.Product, slugs ...string) {
	s.invalidate(ctx, slugs...)
	if s.bus == nil {
		return
	}
	payload := map[string]any{"productId": p.ID.String(), "slug": p.Slug, "name": p.Name}
	if _, err := s.bus.Emit(ctx, topic, p.ID.String(), payload); err != nil {
		s.logger.Warn().Err(err).Str("topic", topic).Str("product_id", p.ID.String()).Msg("emit product event failed")
	}
}

func (s *Service) invalidate(ctx context.Context, slugs ...string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, slugs...); err != nil {
		s.logger.Warn().Err(err).Strs("slugs", slugs).Msg("invalidate catalog cache failed")
	}
}

func (s *Service) saveError(err error) error {
	if errors.Is(err, catalog.ErrConflict) {
		return common.NewAppError("CONFLICT", "slug already exists", http.StatusConflict, err)
	}
	return fmt.Errorf("save: %w", err)
}

func normalizeProduct(in ProductInput) ProductInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Slug = strings.TrimSpace(in.Slug)
	in.Brand = strings.TrimSpace(in.Brand)
	in.Category = strings.TrimSpace(in.Category)
	in.Description = strings.TrimSpace(in.Description)
	tags := make([]string, 0, len(in.Tags))
	for _, t := range in.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	in.Tags = tags
	if in.Images == nil {
		in.Images = []string{}
	}
	return in
}

func productFromInput(id uuid.UUID, sl string, in ProductInput) catalog.Product {
	return catalog.Product{
		ID:          id,
		Slug:        sl,
		Name:        in.Name,
		Description: in.Description,
		Brand:       in.Brand,
		Category:    in.Category,
		Tags:        in.Tags,
		Price:       in.Price,
		CompareAt:   in.CompareAt,
		CostPrice:   in.CostPrice,
		Stock:       in.Stock,
		Images:      in.Images,
		SEO:         in.SEO,
	}
}

func adminProduct(p catalog.Product) AdminProduct {
	tier := pricing.ClassifyTier(p.Category, p.Tags)
	out := AdminProduct{Product: p, VATTier: tier}
	if m, err := Margin(p.Price, p.CostPrice, tier); err == nil {
		out.Margin = &m
	}
	return out
}

func fieldError(field, rule string) error {
	appErr := common.NewAppError("VALIDATION_ERROR", "validation failed", http.StatusBadRequest, nil)
	appErr.Details = map[string]any{"fields": map[string]string{field: rule}}
	return appErr
}
