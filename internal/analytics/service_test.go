package analytics_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-api/internal/account"
	"github.com/noah-isme/storefront-api/internal/analytics"
	"github.com/noah-isme/storefront-api/internal/pricing"
)

type stubOrders struct {
	orders []account.Order
	calls  int
}

func (s *stubOrders) OrdersBetween(_ context.Context, from, to time.Time) []account.Order {
	s.calls++
	var out []account.Order
	for _, o := range s.orders {
		if !o.CreatedAt.Before(from) && o.CreatedAt.Before(to) {
			out = append(out, o)
		}
	}
	return out
}

var (
	kupa  = uuid.MustParse("7f1c2d7e-0b8a-4a37-9f55-0c1b7a3f0009")
	kitap = uuid.MustParse("7f1c2d7e-0b8a-4a37-9f55-0c1b7a3f0004")
)

func order(at time.Time, lines ...account.OrderLine) account.Order {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Computation.LineTotalInclusive)
	}
	return account.Order{
		ID:        uuid.NewString(),
		CreatedAt: at,
		Lines:     lines,
		Totals:    pricing.CartTotals{TotalInclusive: total, TotalVAT: decimal.NewFromInt(1)},
	}
}

func line(id uuid.UUID, slug string, qty int, total int64) account.OrderLine {
	return account.OrderLine{
		ProductID:   id,
		Slug:        slug,
		Quantity:    qty,
		Computation: pricing.LineComputation{LineTotalInclusive: decimal.NewFromInt(total)},
	}
}

func fixtureOrders() *stubOrders {
	day := time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC)
	return &stubOrders{orders: []account.Order{
		order(day.Add(9*time.Hour), line(kupa, "seramik-kupa", 2, 236)),
		order(day.Add(15*time.Hour), line(kupa, "seramik-kupa", 1, 118), line(kitap, "suc-ve-ceza", 1, 108)),
		order(day.AddDate(0, 0, 2).Add(time.Hour), line(kitap, "suc-ve-ceza", 5, 540)),
	}}
}

func TestSalesRangeFillsDays(t *testing.T) {
	svc := &analytics.Service{Orders: fixtureOrders()}
	from := time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC)
	rows, err := svc.SalesRange(context.Background(), from, from.AddDate(0, 0, 3))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "2025-04-10", rows[0].Day)
	require.Equal(t, 2, rows[0].Orders)
	require.Equal(t, 4, rows[0].Units)
	require.True(t, rows[0].Revenue.Equal(decimal.NewFromInt(462)))
	require.Zero(t, rows[1].Orders)
	require.True(t, rows[2].Revenue.Equal(decimal.NewFromInt(540)))
}

func TestSalesRangeCached(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	orders := fixtureOrders()
	svc := &analytics.Service{Orders: orders, R: rdb, TTL: time.Minute}
	from := time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	first, err := svc.SalesRange(context.Background(), from, to)
	require.NoError(t, err)
	second, err := svc.SalesRange(context.Background(), from, to)
	require.NoError(t, err)
	require.Equal(t, 1, orders.calls)
	require.Equal(t, first[0].Orders, second[0].Orders)
	require.True(t, first[0].Revenue.Equal(second[0].Revenue))
}

func TestTopProducts(t *testing.T) {
	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	svc := &analytics.Service{Orders: fixtureOrders(), Now: func() time.Time { return now }}
	rows, err := svc.TopProducts(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "suc-ve-ceza", rows[0].Slug)
	require.Equal(t, 6, rows[0].Quantity)
	require.True(t, rows[0].Revenue.Equal(decimal.NewFromInt(648)))
	require.Equal(t, 3, rows[1].Quantity)

	rows, err = svc.TopProducts(context.Background(), 1, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "seramik-kupa", rows[0].Slug)
}

func TestHandlerSales(t *testing.T) {
	now := time.Date(2025, 4, 12, 18, 0, 0, 0, time.UTC)
	svc := &analytics.Service{Orders: fixtureOrders(), DefaultRange: 7, Now: func() time.Time { return now }}
	r := chi.NewRouter()
	r.Route("/analytics", (&analytics.Handler{Svc: svc}).Routes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analytics/sales?days=3", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"day":"2025-04-10"`)
	require.Contains(t, rec.Body.String(), `"day":"2025-04-12"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analytics/sales?from=bad&to=2025-04-12T00:00:00Z", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), `"field":"from"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analytics/sales?from=2025-04-11&to=2025-04-12", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"day":"2025-04-11"`)
	require.NotContains(t, rec.Body.String(), `"day":"2025-04-12"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analytics/sales?from=2023-01-01&to=2025-01-01", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analytics/top-products?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "suc-ve-ceza")
}
