package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

var (
	// ErrNotFound indicates the requested product or category does not exist.
	ErrNotFound = errors.New("catalog: not found")
	// ErrConflict is returned when a slug is already taken.
	ErrConflict = errors.New("catalog: slug already exists")
	// ErrInsufficientStock is returned when a stock adjustment would go negative.
	ErrInsufficientStock = errors.New("catalog: insufficient stock")
	// ErrCategoryInUse is returned when deleting a category that still has products.
	ErrCategoryInUse = errors.New("catalog: category in use")
)

//go:embed fixtures/catalog.yaml
var defaultFixture []byte

// Product is a catalog entry. Price is VAT-inclusive.
type Product struct {
	ID          uuid.UUID        `json:"id"`
	Slug        string           `json:"slug"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Brand       string           `json:"brand,omitempty"`
	Category    string           `json:"category"`
	Tags        []string         `json:"tags"`
	Price       decimal.Decimal  `json:"price"`
	CompareAt   *decimal.Decimal `json:"compareAt,omitempty"`
	CostPrice   decimal.Decimal  `json:"costPrice"`
	Stock       int              `json:"stock"`
	Images      []string         `json:"images"`
	SEO         SEO              `json:"seo"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// SEO holds search metadata edited from the dashboard.
type SEO struct {
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
}

// CategoryRecord is a stored category.
type CategoryRecord struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Slug       string    `json:"slug"`
	ParentSlug string    `json:"parentSlug,omitempty"`
}

// Repository is a concurrency-safe in-memory catalog shared by storefront and dashboard.
type Repository struct {
	mu         sync.RWMutex
	products   map[uuid.UUID]Product
	bySlug     map[string]uuid.UUID
	categories map[string]CategoryRecord
	now        func() time.Time
}

// NewRepository returns an empty repository.
func NewRepository() *Repository {
	return &Repository{
		products:   map[uuid.UUID]Product{},
		bySlug:     map[string]uuid.UUID{},
		categories: map[string]CategoryRecord{},
		now:        time.Now,
	}
}

// NewSeededRepository returns a repository loaded with the embedded demo catalog.
func NewSeededRepository() (*Repository, error) {
	return LoadFixture(defaultFixture)
}

type fixtureFile struct {
	Categories []struct {
		Name   string `yaml:"name"`
		Slug   string `yaml:"slug"`
		Parent string `yaml:"parent"`
	} `yaml:"categories"`
	Products []struct {
		ID          string   `yaml:"id"`
		Slug        string   `yaml:"slug"`
		Name        string   `yaml:"name"`
		Brand       string   `yaml:"brand"`
		Category    string   `yaml:"category"`
		Tags        []string `yaml:"tags"`
		Price       string   `yaml:"price"`
		CompareAt   string   `yaml:"compareAt"`
		Cost        string   `yaml:"cost"`
		Stock       int      `yaml:"stock"`
		Images      []string `yaml:"images"`
		CreatedAt   string   `yaml:"createdAt"`
		Description string   `yaml:"description"`
		SEO         struct {
			Title       string   `yaml:"title"`
			Description string   `yaml:"description"`
			Keywords    []string `yaml:"keywords"`
		} `yaml:"seo"`
	} `yaml:"products"`
}

// LoadFixture builds a repository from a YAML document.
func LoadFixture(data []byte) (*Repository, error) {
	var file fixtureFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("catalog: decode fixture: %w", err)
	}
	repo := NewRepository()
	ctx := context.Background()
	for _, c := range file.Categories {
		if err := repo.SaveCategory(ctx, CategoryRecord{ID: uuid.New(), Name: c.Name, Slug: c.Slug, ParentSlug: c.Parent}); err != nil {
			return nil, fmt.Errorf("catalog: category %s: %w", c.Slug, err)
		}
	}
	for _, p := range file.Products {
		id, err := uuid.Parse(p.ID)
		if err != nil {
			return nil, fmt.Errorf("catalog: product %s id: %w", p.Slug, err)
		}
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return nil, fmt.Errorf("catalog: product %s price: %w", p.Slug, err)
		}
		cost := decimal.Zero
		if p.Cost != "" {
			if cost, err = decimal.NewFromString(p.Cost); err != nil {
				return nil, fmt.Errorf("catalog: product %s cost: %w", p.Slug, err)
			}
		}
		product := Product{
			ID:          id,
			Slug:        p.Slug,
			Name:        p.Name,
			Description: strings.TrimSpace(p.Description),
			Brand:       p.Brand,
			Category:    p.Category,
			Tags:        nonNil(p.Tags),
			Price:       price,
			CostPrice:   cost,
			Stock:       p.Stock,
			Images:      nonNil(p.Images),
			SEO:         SEO{Title: p.SEO.Title, Description: p.SEO.Description, Keywords: p.SEO.Keywords},
		}
		if p.CompareAt != "" {
			compareAt, err := decimal.NewFromString(p.CompareAt)
			if err != nil {
				return nil, fmt.Errorf("catalog: product %s compareAt: %w", p.Slug, err)
			}
			product.CompareAt = &compareAt
		}
		if p.CreatedAt != "" {
			created, err := time.Parse(time.RFC3339, p.CreatedAt)
			if err != nil {
				return nil, fmt.Errorf("catalog: product %s createdAt: %w", p.Slug, err)
			}
			product.CreatedAt = created
			product.UpdatedAt = created
		}
		if err := repo.SaveProduct(ctx, product); err != nil {
			return nil, fmt.Errorf("catalog: product %s: %w", p.Slug, err)
		}
	}
	return repo, nil
}

// Products returns all products ordered by creation time.
func (r *Repository) Products(_ context.Context) ([]Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, cloneProduct(p))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Slug < out[j].Slug
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// ProductBySlug looks up a product by slug.
func (r *Repository) ProductBySlug(_ context.Context, slug string) (Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.bySlug[slug]
	if !ok {
		return Product{}, ErrNotFound
	}
	return cloneProduct(r.products[id]), nil
}

// ProductByID looks up a product by identifier.
func (r *Repository) ProductByID(_ context.Context, id uuid.UUID) (Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return cloneProduct(p), nil
}

// SaveProduct inserts or replaces a product, keeping slugs unique.
func (r *Repository) SaveProduct(_ context.Context, p Product) error {
	if p.ID == uuid.Nil {
		return fmt.Errorf("catalog: product id is required")
	}
	if strings.TrimSpace(p.Slug) == "" {
		return fmt.Errorf("catalog: product slug is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if owner, ok := r.bySlug[p.Slug]; ok && owner != p.ID {
		return ErrConflict
	}
	now := r.now()
	if existing, ok := r.products[p.ID]; ok {
		if existing.Slug != p.Slug {
			delete(r.bySlug, existing.Slug)
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = existing.CreatedAt
		}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() || p.UpdatedAt.Before(p.CreatedAt) {
		p.UpdatedAt = p.CreatedAt
	}
	r.products[p.ID] = cloneProduct(p)
	r.bySlug[p.Slug] = p.ID
	return nil
}

// DeleteProduct removes a product.
func (r *Repository) DeleteProduct(_ context.Context, id uuid.UUID) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	delete(r.products, id)
	delete(r.bySlug, p.Slug)
	return p, nil
}

// AdjustStock adds delta to the product stock. The result may not drop below zero.
func (r *Repository) AdjustStock(_ context.Context, id uuid.UUID, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return ErrNotFound
	}
	if p.Stock+delta < 0 {
		return ErrInsufficientStock
	}
	p.Stock += delta
	p.UpdatedAt = r.now()
	r.products[id] = p
	return nil
}

// Categories returns all categories ordered by name.
func (r *Repository) Categories(_ context.Context) ([]CategoryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]CategoryRecord, 0, len(r.categories))
	for _, c := range r.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// CategoryBySlug looks up a category.
func (r *Repository) CategoryBySlug(_ context.Context, slug string) (CategoryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.categories[slug]
	if !ok {
		return CategoryRecord{}, ErrNotFound
	}
	return c, nil
}

// CategoryByName looks up a category by display name.
func (r *Repository) CategoryByName(_ context.Context, name string) (CategoryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.categories {
		if c.Name == name {
			return c, nil
		}
	}
	return CategoryRecord{}, ErrNotFound
}

// SaveCategory inserts or replaces a category keyed by slug.
func (r *Repository) SaveCategory(_ context.Context, c CategoryRecord) error {
	if strings.TrimSpace(c.Slug) == "" || strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("catalog: category name and slug are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.categories[c.Slug]; ok && existing.ID != c.ID {
		return ErrConflict
	}
	if c.ParentSlug != "" {
		if _, ok := r.categories[c.ParentSlug]; !ok {
			return fmt.Errorf("catalog: parent %s: %w", c.ParentSlug, ErrNotFound)
		}
	}
	r.categories[c.Slug] = c
	return nil
}

// DeleteCategory removes a category that has no products or child categories.
func (r *Repository) DeleteCategory(_ context.Context, slug string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.categories[slug]
	if !ok {
		return ErrNotFound
	}
	for _, p := range r.products {
		if p.Category == c.Name {
			return ErrCategoryInUse
		}
	}
	for _, other := range r.categories {
		if other.ParentSlug == slug {
			return ErrCategoryInUse
		}
	}
	delete(r.categories, slug)
	return nil
}

func cloneProduct(p Product) Product {
	p.Tags = append([]string{}, p.Tags...)
	p.Images = append([]string{}, p.Images...)
	if p.SEO.Keywords != nil {
		p.SEO.Keywords = append([]string{}, p.SEO.Keywords...)
	}
	if p.CompareAt != nil {
		v := *p.CompareAt
		p.CompareAt = &v
	}
	return p
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
