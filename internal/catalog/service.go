package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"

	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/format"
	"github.com/noah-isme/storefront-api/internal/pricing"
)

const relatedLimit = 4

type productReader interface {
	Products(ctx context.Context) ([]Product, error)
	ProductBySlug(ctx context.Context, slug string) (Product, error)
	ProductByID(ctx context.Context, id uuid.UUID) (Product, error)
	Categories(ctx context.Context) ([]CategoryRecord, error)
}

// Service orchestrates catalog queries, DTO assembly, and caching.
type Service struct {
	repo         productReader
	cache        *Cache
	renderer     *Renderer
	logger       zerolog.Logger
	defaultPage  int
	defaultLimit int
	maxLimit     int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Repository   productReader
	Cache        *Cache
	Logger       zerolog.Logger
	DefaultPage  int
	DefaultLimit int
	MaxLimit     int
}

// ListParams captures filters for product listing.
type ListParams struct {
	Query    string
	Category string
	Tag      string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	InStock  *bool
	Sort     string
	Page     int
	Limit    int
	Locale   language.Tag
}

// ProductListItem represents an entry in list/related responses.
type ProductListItem struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Slug         string           `json:"slug"`
	Category     string           `json:"category"`
	Price        decimal.Decimal  `json:"price"`
	PriceDisplay string           `json:"priceDisplay"`
	CompareAt    *decimal.Decimal `json:"compareAt,omitempty"`
	InStock      bool             `json:"inStock"`
	Thumbnail    *string          `json:"thumbnail,omitempty"`
	Badges       []string         `json:"badges"`
	VATTier      pricing.Tier     `json:"vatTier"`
}

// VATBreakdown splits a VAT-inclusive unit price.
type VATBreakdown struct {
	Tier                  pricing.Tier    `json:"tier"`
	Rate                  decimal.Decimal `json:"rate"`
	RateDisplay           string          `json:"rateDisplay"`
	PriceExclusive        decimal.Decimal `json:"priceExclusive"`
	PriceExclusiveDisplay string          `json:"priceExclusiveDisplay"`
	VAT                   decimal.Decimal `json:"vat"`
	VATDisplay            string          `json:"vatDisplay"`
}

// ProductDetail aggregates the full detail payload.
type ProductDetail struct {
	ProductListItem
	Description     string       `json:"description"`
	DescriptionHTML string       `json:"descriptionHtml"`
	Brand           string       `json:"brand,omitempty"`
	Tags            []string     `json:"tags"`
	Images          []string     `json:"images"`
	Stock           int          `json:"stock"`
	VAT             VATBreakdown `json:"vat"`
	SEO             SEO          `json:"seo"`
	CategoryPath    []string     `json:"categoryPath,omitempty"`
}

// Category represents the public category payload.
type Category struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Slug       string `json:"slug"`
	ParentSlug string `json:"parentSlug,omitempty"`
}

// ProductListResult contains list data and pagination metadata.
type ProductListResult struct {
	Items []ProductListItem
	Total int
	Page  int
	Limit int
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Repository == nil {
		return nil, errors.New("catalog: repository is required")
	}
	defaultPage := cfg.DefaultPage
	if defaultPage < 1 {
		defaultPage = 1
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 20
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 100
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	return &Service{
		repo:         cfg.Repository,
		cache:        cfg.Cache,
		renderer:     NewRenderer(),
		logger:       cfg.Logger,
		defaultPage:  defaultPage,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}, nil
}

// ParseListParams normalises raw query values into strongly typed filters.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{
		Page:   s.defaultPage,
		Limit:  s.defaultLimit,
		Locale: format.Turkish,
	}
	params.Query = strings.TrimSpace(values.Get("q"))
	params.Category = strings.TrimSpace(values.Get("category"))
	params.Tag = strings.TrimSpace(values.Get("tag"))

	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, common.BadRequest("page", "page must be a positive integer", err)
		}
		params.Page = page
	}

	limit := s.defaultLimit
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l < 1 {
			return params, common.BadRequest("limit", "limit must be a positive integer", err)
		}
		limit = l
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	params.Limit = limit

	var err error
	if params.MinPrice, err = parsePrice(values, "minPrice"); err != nil {
		return params, err
	}
	if params.MaxPrice, err = parsePrice(values, "maxPrice"); err != nil {
		return params, err
	}
	if params.MinPrice != nil && params.MaxPrice != nil && params.MinPrice.GreaterThan(*params.MaxPrice) {
		return params, common.BadRequest("price", "minPrice cannot be greater than maxPrice", fmt.Errorf("invalid price range"))
	}

	if v := strings.TrimSpace(values.Get("inStock")); v != "" {
		b, err := parseBool(v)
		if err != nil {
			return params, common.BadRequest("inStock", "inStock must be true or false", err)
		}
		params.InStock = &b
	}

	params.Sort = normalizeSort(values.Get("sort"))
	return params, nil
}

// ListCategories returns all categories with parent linkage.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.repo.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	result := make([]Category, 0, len(rows))
	for _, row := range rows {
		result = append(result, Category{ID: row.ID.String(), Name: row.Name, Slug: row.Slug, ParentSlug: row.ParentSlug})
	}
	return result, nil
}

// ListProducts returns filtered product list with pagination metadata.
func (s *Service) ListProducts(ctx context.Context, params ListParams) (ProductListResult, error) {
	key, shouldUseCache := s.listCacheKey(params)
	if shouldUseCache {
		var cached cachedList
		ok, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache read failed")
		}
		if err == nil && ok {
			return ProductListResult{Items: cached.Items, Total: cached.Total, Page: params.Page, Limit: params.Limit}, nil
		}
	}

	products, err := s.repo.Products(ctx)
	if err != nil {
		return ProductListResult{}, fmt.Errorf("list products: %w", err)
	}
	var categoryNames map[string]struct{}
	if params.Category != "" {
		if categoryNames, err = s.categoryTree(ctx, params.Category); err != nil {
			return ProductListResult{}, err
		}
	}
	filtered := make([]Product, 0, len(products))
	for _, p := range products {
		if matches(p, params, categoryNames) {
			filtered = append(filtered, p)
		}
	}
	sortProducts(filtered, params.Sort)

	start, end := common.Window(params.Page, params.Limit, len(filtered))
	items := make([]ProductListItem, 0, end-start)
	for _, p := range filtered[start:end] {
		items = append(items, Summarize(p, params.Locale))
	}
	result := ProductListResult{Items: items, Total: len(filtered), Page: params.Page, Limit: params.Limit}
	if shouldUseCache {
		if err := s.cache.SetJSON(ctx, key, cachedList{Items: items, Total: len(filtered)}); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache write failed")
		}
	}
	return result, nil
}

// GetProductDetail returns product detail with rendered description and VAT breakdown.
func (s *Service) GetProductDetail(ctx context.Context, slug string, lang language.Tag) (ProductDetail, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return ProductDetail{}, common.BadRequest("slug", "slug is required", nil)
	}
	cacheKey := detailCacheKey(slug, lang)
	var cached ProductDetail
	if ok, err := s.cache.GetJSON(ctx, cacheKey, &cached); err == nil && ok {
		return cached, nil
	}
	product, err := s.repo.ProductBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ProductDetail{}, common.NotFound("product not found", err)
		}
		return ProductDetail{}, fmt.Errorf("get product by slug: %w", err)
	}
	html, err := s.renderer.HTML(product.Description)
	if err != nil {
		return ProductDetail{}, fmt.Errorf("render description: %w", err)
	}
	vat, err := vatBreakdown(product, lang)
	if err != nil {
		return ProductDetail{}, err
	}
	detail := ProductDetail{
		ProductListItem: Summarize(product, lang),
		Description:     product.Description,
		DescriptionHTML: html,
		Brand:           product.Brand,
		Tags:            product.Tags,
		Images:          product.Images,
		Stock:           product.Stock,
		VAT:             vat,
		SEO:             product.SEO,
	}
	if path, err := s.categoryPath(ctx, product.Category); err == nil {
		detail.CategoryPath = path
	}
	if err := s.cache.SetJSON(ctx, cacheKey, detail); err != nil {
		s.logger.Warn().Err(err).Str("key", cacheKey).Msg("catalog cache write failed")
	}
	return detail, nil
}

// ListRelatedProducts fetches products from the same category, excluding the product itself.
func (s *Service) ListRelatedProducts(ctx context.Context, slug string, lang language.Tag) ([]ProductListItem, error) {
	product, err := s.repo.ProductBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, common.NotFound("product not found", err)
		}
		return nil, fmt.Errorf("get product by slug: %w", err)
	}
	products, err := s.repo.Products(ctx)
	if err != nil {
		return nil, fmt.Errorf("list related products: %w", err)
	}
	items := make([]ProductListItem, 0, relatedLimit)
	for _, p := range products {
		if p.ID == product.ID || p.Category != product.Category {
			continue
		}
		items = append(items, Summarize(p, lang))
		if len(items) == relatedLimit {
			break
		}
	}
	return items, nil
}

// Lookup resolves a product by slug or by uuid.
func (s *Service) Lookup(ctx context.Context, ref string) (Product, error) {
	ref = strings.TrimSpace(ref)
	if id, err := uuid.Parse(ref); err == nil {
		return s.repo.ProductByID(ctx, id)
	}
	return s.repo.ProductBySlug(ctx, ref)
}

// Invalidate drops the cached first page and the detail pages of the given slugs.
func (s *Service) Invalidate(ctx context.Context, slugs ...string) error {
	keys := make([]string, 0, len(format.Supported)*(len(slugs)+1))
	for _, lang := range format.Supported {
		keys = append(keys, listCacheKey(lang))
		for _, slug := range slugs {
			keys = append(keys, detailCacheKey(slug, lang))
		}
	}
	return s.cache.Delete(ctx, keys...)
}

func (s *Service) categoryTree(ctx context.Context, slug string) (map[string]struct{}, error) {
	rows, err := s.repo.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	names := map[string]struct{}{}
	include := map[string]bool{slug: true}
	for changed := true; changed; {
		changed = false
		for _, row := range rows {
			if !include[row.Slug] && include[row.ParentSlug] {
				include[row.Slug] = true
				changed = true
			}
		}
	}
	for _, row := range rows {
		if include[row.Slug] {
			names[row.Name] = struct{}{}
		}
	}
	return names, nil
}

func (s *Service) categoryPath(ctx context.Context, name string) ([]string, error) {
	rows, err := s.repo.Categories(ctx)
	if err != nil {
		return nil, err
	}
	bySlug := make(map[string]CategoryRecord, len(rows))
	var current *CategoryRecord
	for i := range rows {
		bySlug[rows[i].Slug] = rows[i]
		if rows[i].Name == name {
			current = &rows[i]
		}
	}
	var path []string
	seen := map[string]struct{}{}
	for current != nil {
		if _, ok := seen[current.Slug]; ok {
			break
		}
		seen[current.Slug] = struct{}{}
		path = append([]string{current.Slug}, path...)
		parent, ok := bySlug[current.ParentSlug]
		if !ok {
			break
		}
		current = &parent
	}
	return path, nil
}

type cachedList struct {
	Items []ProductListItem `json:"items"`
	Total int               `json:"total"`
}

func (s *Service) listCacheKey(params ListParams) (string, bool) {
	if params.Page != s.defaultPage || params.Limit != s.defaultLimit {
		return "", false
	}
	if params.Query != "" || params.Category != "" || params.Tag != "" || params.MinPrice != nil || params.MaxPrice != nil || params.InStock != nil || params.Sort != "" {
		return "", false
	}
	return listCacheKey(params.Locale), true
}

func listCacheKey(lang language.Tag) string {
	return "catalog:products:list:default:" + lang.String()
}

func detailCacheKey(slug string, lang language.Tag) string {
	return "catalog:products:detail:" + lang.String() + ":" + slug
}

func matches(p Product, params ListParams, categories map[string]struct{}) bool {
	if params.Query != "" {
		q := strings.ToLower(params.Query)
		haystack := strings.ToLower(strings.Join(append([]string{p.Name, p.Brand, p.Description}, p.Tags...), " "))
		if !strings.Contains(haystack, q) {
			return false
		}
	}
	if categories != nil {
		if _, ok := categories[p.Category]; !ok {
			return false
		}
	}
	if params.Tag != "" && !slices.Contains(p.Tags, params.Tag) {
		return false
	}
	if params.MinPrice != nil && p.Price.LessThan(*params.MinPrice) {
		return false
	}
	if params.MaxPrice != nil && p.Price.GreaterThan(*params.MaxPrice) {
		return false
	}
	if params.InStock != nil && (p.Stock > 0) != *params.InStock {
		return false
	}
	return true
}

func sortProducts(products []Product, mode string) {
	switch mode {
	case "price:asc":
		sort.SliceStable(products, func(i, j int) bool { return products[i].Price.LessThan(products[j].Price) })
	case "price:desc":
		sort.SliceStable(products, func(i, j int) bool { return products[i].Price.GreaterThan(products[j].Price) })
	case "name:asc":
		sort.SliceStable(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	case "name:desc":
		sort.SliceStable(products, func(i, j int) bool { return products[i].Name > products[j].Name })
	case "newest":
		sort.SliceStable(products, func(i, j int) bool { return products[i].CreatedAt.After(products[j].CreatedAt) })
	}
}

// Summarize builds the list representation of a product for the locale.
func Summarize(p Product, lang language.Tag) ProductListItem {
	item := ProductListItem{
		ID:           p.ID.String(),
		Name:         p.Name,
		Slug:         p.Slug,
		Category:     p.Category,
		Price:        p.Price,
		PriceDisplay: format.Money(p.Price, lang),
		CompareAt:    p.CompareAt,
		InStock:      p.Stock > 0,
		Badges:       Badges(p),
		VATTier:      pricing.ClassifyTier(p.Category, p.Tags),
	}
	if len(p.Images) > 0 {
		thumb := p.Images[0]
		item.Thumbnail = &thumb
	}
	return item
}

// Badges derives display badges from price and stock.
func Badges(p Product) []string {
	badges := []string{}
	if p.CompareAt != nil && p.CompareAt.GreaterThan(p.Price) {
		badges = append(badges, "sale")
	}
	if p.Stock <= 0 {
		badges = append(badges, "out-of-stock")
	}
	return badges
}

func vatBreakdown(p Product, lang language.Tag) (VATBreakdown, error) {
	tier := pricing.ClassifyTier(p.Category, p.Tags)
	line, err := pricing.ComputeLine(pricing.LineItem{UnitPriceInclusive: p.Price, Quantity: 1, Tier: tier})
	if err != nil {
		return VATBreakdown{}, fmt.Errorf("compute vat for %s: %w", p.Slug, err)
	}
	return VATBreakdown{
		Tier:                  tier,
		Rate:                  line.Rate,
		RateDisplay:           format.Percent(line.Rate, lang),
		PriceExclusive:        line.PriceExclusive,
		PriceExclusiveDisplay: format.Money(line.PriceExclusive, lang),
		VAT:                   line.VATPerUnit,
		VATDisplay:            format.Money(line.VATPerUnit, lang),
	}, nil
}

func parsePrice(values url.Values, field string) (*decimal.Decimal, error) {
	v := strings.TrimSpace(values.Get(field))
	if v == "" {
		return nil, nil
	}
	parsed, err := decimal.NewFromString(v)
	if err != nil || parsed.IsNegative() {
		return nil, common.BadRequest(field, field+" must be a non-negative number", err)
	}
	return &parsed, nil
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "y":
		return true, nil
	case "false", "0", "no", "n":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean: %s", value)
	}
}

func normalizeSort(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "price:asc", "price:desc", "name:asc", "name:desc", "newest":
		return s
	default:
		return ""
	}
}
