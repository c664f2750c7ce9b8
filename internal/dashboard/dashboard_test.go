package dashboard_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-api/internal/catalog"
	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/dashboard"
	"github.com/noah-isme/storefront-api/internal/events"
	"github.com/noah-isme/storefront-api/internal/pricing"
)

type fixture struct {
	svc     *dashboard.Service
	catalog *catalog.Service
	repo    *catalog.Repository
	events  *events.MemoryStore
	redis   *miniredis.Miniredis
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo, err := catalog.NewSeededRepository()
	require.NoError(t, err)
	catalogSvc, err := catalog.NewService(catalog.ServiceConfig{Repository: repo, Cache: catalog.NewCache(client, time.Minute)})
	require.NoError(t, err)
	store := events.NewMemoryStore(0)
	svc, err := dashboard.NewService(dashboard.ServiceConfig{
		Repository:        repo,
		Cache:             catalogSvc,
		Events:            &events.Bus{Store: store},
		Logger:            zerolog.Nop(),
		LowStockThreshold: 5,
		Now:               func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) },
	})
	require.NoError(t, err)
	return fixture{svc: svc, catalog: catalogSvc, repo: repo, events: store, redis: mr}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func validationFields(t *testing.T, err error) map[string]string {
	t.Helper()
	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)
	return appErr.Details.(map[string]any)["fields"].(map[string]string)
}

func TestMargin(t *testing.T) {
	res, err := dashboard.Margin(dec("1299.90"), dec("820"), pricing.TierStandard)
	require.NoError(t, err)
	require.Equal(t, "1101.61", res.NetPrice.StringFixed(2))
	require.Equal(t, "198.29", res.VAT.StringFixed(2))
	require.Equal(t, "281.61", res.Profit.StringFixed(2))
	require.Equal(t, "25.56", res.MarginPercent.StringFixed(2))
	require.NotNil(t, res.MarkupPercent)
	require.Equal(t, "34.34", res.MarkupPercent.StringFixed(2))

	res, err = dashboard.Margin(dec("108"), dec("55"), pricing.TierReduced)
	require.NoError(t, err)
	require.True(t, res.NetPrice.Equal(decimal.NewFromInt(100)))
	require.True(t, res.Profit.Equal(decimal.NewFromInt(45)))
	require.Equal(t, "81.82", res.MarkupPercent.StringFixed(2))

	res, err = dashboard.Margin(dec("118"), decimal.Zero, "")
	require.NoError(t, err)
	require.Equal(t, pricing.TierStandard, res.Tier)
	require.Nil(t, res.MarkupPercent)
	require.True(t, res.MarginPercent.Equal(decimal.NewFromInt(100)))

	res, err = dashboard.Margin(dec("0.004"), decimal.Zero, pricing.TierStandard)
	require.NoError(t, err)
	require.True(t, res.NetPrice.IsZero())
	require.True(t, res.MarginPercent.Equal(decimal.NewFromInt(100)))

	res, err = dashboard.Margin(dec("0.004"), dec("0.01"), pricing.TierReduced)
	require.NoError(t, err)
	require.True(t, res.MarginPercent.IsNegative())

	_, err = dashboard.Margin(decimal.Zero, dec("1"), pricing.TierStandard)
	require.ErrorIs(t, err, dashboard.ErrInvalidInput)
	_, err = dashboard.Margin(dec("10"), dec("-1"), pricing.TierStandard)
	require.ErrorIs(t, err, dashboard.ErrInvalidInput)
	_, err = dashboard.Margin(dec("10"), dec("1"), pricing.Tier("luxury"))
	require.ErrorIs(t, err, dashboard.ErrInvalidInput)
}

func TestScoreSEO(t *testing.T) {
	full := dashboard.ScoreSEO(dashboard.SEOInput{
		Title:       "İSTANBUL Seramik Kupa | El Yapımı Hediye",
		Description: "El yapımı İstanbul seramik kupası; bulaşık makinesinde yıkanabilir, hediye için ideal seçim.",
		Keywords:    []string{"istanbul"},
		Slug:        "istanbul-seramik-kupa",
		Content:     strings.Repeat("ş", 300),
		ImageCount:  1,
	})
	require.Equal(t, 100, full.Score)
	require.Len(t, full.Checks, 8)
	for _, c := range full.Checks {
		require.True(t, c.Passed, c.ID)
	}

	empty := dashboard.ScoreSEO(dashboard.SEOInput{})
	require.Zero(t, empty.Score)

	partial := dashboard.ScoreSEO(dashboard.SEOInput{Slug: "kupa", ImageCount: 2, Keywords: []string{" ", "kupa"}, Title: "Kupa"})
	require.Equal(t, 10+10+10+15, partial.Score)
}

func TestCreateProductSlugAndEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	params, err := f.catalog.ParseListParams(url.Values{})
	require.NoError(t, err)
	_, err = f.catalog.ListProducts(ctx, params)
	require.NoError(t, err)
	require.True(t, f.redis.Exists("catalog:products:list:default:tr"))

	in := dashboard.ProductInput{
		Name:      "Çay Bardağı Seti",
		Category:  "Ev & Yaşam",
		Tags:      []string{" mutfak ", ""},
		Price:     dec("150"),
		CostPrice: dec("60"),
		Stock:     10,
		Images:    []string{"https://cdn.example.com/products/cay.jpg"},
	}
	created, err := f.svc.CreateProduct(ctx, in)
	require.NoError(t, err)
	require.Equal(t, "cay-bardagi-seti", created.Slug)
	require.Equal(t, []string{"mutfak"}, created.Tags)
	require.Equal(t, pricing.TierStandard, created.VATTier)
	require.NotNil(t, created.Margin)
	require.False(t, f.redis.Exists("catalog:products:list:default:tr"))

	again, err := f.svc.CreateProduct(ctx, in)
	require.NoError(t, err)
	require.Equal(t, "cay-bardagi-seti-2", again.Slug)

	got, err := f.catalog.Lookup(ctx, "cay-bardagi-seti")
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)
	require.Len(t, f.events.List(ctx, events.TopicProductCreated), 2)

	in.Slug = "Bardak Takımı"
	in.Price = dec("175")
	updated, err := f.svc.UpdateProduct(ctx, again.ID, in)
	require.NoError(t, err)
	require.Equal(t, "bardak-takimi", updated.Slug)
	require.True(t, updated.Price.Equal(decimal.NewFromInt(175)))
	require.Equal(t, again.CreatedAt, updated.CreatedAt)
	require.Len(t, f.events.List(ctx, events.TopicProductUpdated), 1)

	require.NoError(t, f.svc.DeleteProduct(ctx, updated.ID))
	_, err = f.catalog.Lookup(ctx, "bardak-takimi")
	require.ErrorIs(t, err, catalog.ErrNotFound)
	require.Len(t, f.events.List(ctx, events.TopicProductDeleted), 1)
}

func TestCreateProductValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := dashboard.ProductInput{Name: "Defter", Category: "Kitap", Price: dec("45"), Stock: 3}

	in := base
	in.Category = "Yok"
	_, err := f.svc.CreateProduct(ctx, in)
	require.Equal(t, "exists", validationFields(t, err)["category"])

	in = base
	in.Price = decimal.Zero
	_, err = f.svc.CreateProduct(ctx, in)
	require.Contains(t, validationFields(t, err), "price")

	in = base
	compareAt := dec("40")
	in.CompareAt = &compareAt
	_, err = f.svc.CreateProduct(ctx, in)
	require.Contains(t, validationFields(t, err), "compareAt")

	in = base
	in.Name = ""
	in.Stock = -1
	in.Images = []string{"not a url"}
	fields := validationFields(t, func() error { _, err := f.svc.CreateProduct(ctx, in); return err }())
	require.Equal(t, "required", fields["name"])
	require.Equal(t, "min=0", fields["stock"])
}

func TestCategories(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.svc.CreateCategory(ctx, dashboard.CategoryInput{Name: "Oyuncak Hobi"})
	require.NoError(t, err)
	require.Equal(t, "oyuncak-hobi", c.Slug)

	_, err = f.svc.CreateCategory(ctx, dashboard.CategoryInput{Name: "Oyuncak Hobi"})
	require.Equal(t, "unique", validationFields(t, err)["name"])
	_, err = f.svc.CreateCategory(ctx, dashboard.CategoryInput{Name: "Tablet", Parent: "yok"})
	require.Equal(t, "exists", validationFields(t, err)["parent"])

	child, err := f.svc.CreateCategory(ctx, dashboard.CategoryInput{Name: "Tablet", Parent: "elektronik"})
	require.NoError(t, err)
	require.Equal(t, "elektronik", child.ParentSlug)

	require.ErrorIs(t, f.svc.DeleteCategory(ctx, "kitap"), catalog.ErrCategoryInUse)
	require.ErrorIs(t, f.svc.DeleteCategory(ctx, "elektronik"), catalog.ErrCategoryInUse)
	require.NoError(t, f.svc.DeleteCategory(ctx, "oyuncak-hobi"))
	require.ErrorIs(t, f.svc.DeleteCategory(ctx, "oyuncak-hobi"), catalog.ErrNotFound)
}

func TestOverview(t *testing.T) {
	f := newFixture(t)
	ov, err := f.svc.Overview(context.Background())
	require.NoError(t, err)
	require.Equal(t, 9, ov.Products)
	require.Equal(t, 6, ov.Categories)
	require.Equal(t, 1, ov.OutOfStock)
	require.Len(t, ov.LowStock, 2)
	require.Equal(t, "dizustu-bilgisayar", ov.LowStock[0].Slug)
	require.Equal(t, "pamuklu-tisort", ov.LowStock[1].Slug)
	require.Equal(t, "139570.00", ov.InventoryCost.StringFixed(2))
	require.Equal(t, "209925.20", ov.InventoryRetail.StringFixed(2))
}

func newRouter(f fixture) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/v1/admin", (&dashboard.Handler{Svc: f.svc}).Routes)
	return r
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlers(t *testing.T) {
	f := newFixture(t)
	h := newRouter(f)

	rec := do(h, http.MethodPost, "/api/v1/admin/tools/margin", `{"price":"108","cost":"55","category":"Kitap"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"tier":"reduced"`)

	rec = do(h, http.MethodPost, "/api/v1/admin/tools/margin", `{"price":"0","cost":"1"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodPost, "/api/v1/admin/tools/seo-score", `{"slug":"kupa","imageCount":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"score":20`)

	rec = do(h, http.MethodPost, "/api/v1/admin/products", `{"name":"Kalem Seti","category":"Kitap","price":"89.90","costPrice":"30","stock":12}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"slug":"kalem-seti"`)

	rec = do(h, http.MethodGet, "/api/v1/admin/products/not-a-uuid", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodDelete, "/api/v1/admin/products/7f1c2d7e-0b8a-4a37-9f55-0c1b7a3f00ff", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(h, http.MethodDelete, "/api/v1/admin/categories/kitap", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "CATEGORY_IN_USE")

	rec = do(h, http.MethodGet, "/api/v1/admin/overview", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"products":10`)
}

func TestListProductsWithSubKurusPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateProduct(ctx, dashboard.ProductInput{
		Name:     "Promosyon Çıkartma",
		Category: "Ev & Yaşam",
		Price:    dec("0.004"),
		Stock:    1,
	})
	require.NoError(t, err)

	products, err := f.svc.ListProducts(ctx)
	require.NoError(t, err)
	var found bool
	for _, p := range products {
		if p.Slug == "promosyon-cikartma" {
			found = true
			require.NotNil(t, p.Margin)
			require.True(t, p.Margin.MarginPercent.Equal(decimal.NewFromInt(100)))
		}
	}
	require.True(t, found)
}
