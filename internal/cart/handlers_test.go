package cart_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-api/internal/cart"
	"github.com/noah-isme/storefront-api/internal/common"
)

type viewResponse struct {
	Data cart.View `json:"data"`
}

type totalsResponse struct {
	Data cart.TotalsView `json:"data"`
}

type errorResponse struct {
	Error struct {
		Code string `json:"code"`
	} `json:"error"`
}

func newCartRouter(t *testing.T, idem common.Idem) http.Handler {
	t.Helper()
	f := newFixture(t)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(common.WithCustomerID(r.Context(), "demo")))
		})
	})
	r.Route("/api/v1/carts", (&cart.Handler{Svc: f.svc, Idem: idem}).Routes)
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) cart.View {
	t.Helper()
	var body viewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Data
}

func TestCartHandlersFlow(t *testing.T) {
	router := newCartRouter(t, common.Idem{})

	rec := do(t, router, http.MethodPost, "/api/v1/carts/", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeView(t, rec)
	require.Equal(t, "demo", created.CustomerID)
	base := "/api/v1/carts/" + created.ID

	rec = do(t, router, http.MethodPost, base+"/items", `{"product":"seramik-kupa","quantity":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, router, http.MethodPost, base+"/items", `{"product":"suc-ve-ceza"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeView(t, rec)
	require.Len(t, view.Lines, 2)
	require.Equal(t, 3, view.ItemCount)
	require.Equal(t, "tr", view.Locale)
	require.Equal(t, "%18", view.Lines[0].VATRateDisplay)
	require.Equal(t, "₺236,00", view.Lines[0].LineTotalInclusiveDisplay)
	require.True(t, view.Lines[1].UnitPriceExclusive.Equal(decimal.NewFromInt(100)))
	require.Equal(t, "₺344,00", view.Totals.TotalInclusiveDisplay)
	require.Equal(t, "₺300,00", view.Totals.SubtotalExclusiveDisplay)
	require.Len(t, view.Totals.VATByTier, 2)
	require.Equal(t, "standard", string(view.Totals.VATByTier[0].Tier))

	rec = do(t, router, http.MethodGet, base+"/quote/tax", "", "Accept-Language", "en")
	require.Equal(t, http.StatusOK, rec.Code)
	var totals totalsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &totals))
	require.True(t, totals.Data.TotalVAT.Equal(decimal.NewFromInt(44)))
	require.Equal(t, "₺44.00", totals.Data.TotalVATDisplay)

	kupa := view.Lines[0].ProductID
	rec = do(t, router, http.MethodPatch, base+"/items/"+kupa, `{"quantity":0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decodeView(t, rec).Lines, 1)

	rec = do(t, router, http.MethodDelete, base+"/items/"+kupa, "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodDelete, base+"/items", "")
	require.Equal(t, http.StatusOK, rec.Code)
	cleared := decodeView(t, rec)
	require.Empty(t, cleared.Lines)
	require.Equal(t, "₺0,00", cleared.Totals.TotalInclusiveDisplay)
}

func TestCartHandlersErrors(t *testing.T) {
	router := newCartRouter(t, common.Idem{})

	rec := do(t, router, http.MethodGet, "/api/v1/carts/not-a-uuid", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/v1/carts/00000000-0000-0000-0000-000000000001", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	created := decodeView(t, do(t, router, http.MethodPost, "/api/v1/carts/", ""))
	base := "/api/v1/carts/" + created.ID

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"unknown field", http.MethodPost, "/items", `{"sku":"x"}`, http.StatusBadRequest, "BAD_REQUEST"},
		{"missing product", http.MethodPost, "/items", `{"quantity":1}`, http.StatusBadRequest, "BAD_REQUEST"},
		{"negative quantity", http.MethodPost, "/items", `{"product":"seramik-kupa","quantity":-1}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"negative set quantity", http.MethodPatch, "/items/00000000-0000-0000-0000-000000000002", `{"quantity":-2}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown product", http.MethodPost, "/items", `{"product":"yok","quantity":1}`, http.StatusNotFound, "PRODUCT_NOT_FOUND"},
		{"out of stock", http.MethodPost, "/items", `{"product":"filtre-kahve","quantity":1}`, http.StatusConflict, "INSUFFICIENT_STOCK"},
		{"quantity required", http.MethodPatch, "/items/00000000-0000-0000-0000-000000000002", `{}`, http.StatusBadRequest, "BAD_REQUEST"},
		{"missing line", http.MethodPatch, "/items/00000000-0000-0000-0000-000000000002", `{"quantity":1}`, http.StatusNotFound, "ITEM_NOT_FOUND"},
		{"bad product id", http.MethodDelete, "/items/xyz", "", http.StatusBadRequest, "BAD_REQUEST"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, router, tc.method, base+tc.path, tc.body)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			var body errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Equal(t, tc.code, body.Error.Code)
		})
	}
}

func TestCartWritesAreIdempotent(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	router := newCartRouter(t, common.Idem{R: client})

	created := decodeView(t, do(t, router, http.MethodPost, "/api/v1/carts/", ""))
	target := "/api/v1/carts/" + created.ID + "/items"
	body := `{"product":"seramik-kupa","quantity":1}`

	rec := do(t, router, http.MethodPost, target, body, "Idempotency-Key", "add-1")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, router, http.MethodPost, target, body, "Idempotency-Key", "add-1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "true", rec.Header().Get(common.ReplayHeader))

	view := decodeView(t, do(t, router, http.MethodGet, "/api/v1/carts/"+created.ID, ""))
	require.Equal(t, 1, view.ItemCount)
}
