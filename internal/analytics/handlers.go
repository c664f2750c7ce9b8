package analytics

import (
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/storefront-api/internal/common"
)

const (
	maxRangeDays    = 366
	maxTopProducts  = 100
	defaultTopLimit = 10
)

// Handler exposes analytics read endpoints.
type Handler struct {
	Svc *Service
}

// Routes mounts the analytics endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/sales", h.Sales)
	r.Get("/top-products", h.TopProducts)
}

// Sales returns daily totals. The range is from/to (RFC 3339 or YYYY-MM-DD,
// to exclusive) or the last days ending today.
func (h *Handler) Sales(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}
	from, to, err := h.salesRange(r.URL.Query())
	if err != nil {
		common.WriteAppError(w, err)
		return
	}
	rows, err := h.Svc.SalesRange(r.Context(), from, to)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_ERROR", err.Error(), nil)
		return
	}
	common.Data(w, http.StatusOK, rows)
}

// TopProducts returns the best selling products.
func (h *Handler) TopProducts(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}
	q := r.URL.Query()
	limit := common.AtoiDefault(q.Get("limit"), defaultTopLimit)
	if limit <= 0 || limit > maxTopProducts {
		limit = defaultTopLimit
	}
	offset := common.AtoiDefault(q.Get("offset"), 0)
	rows, err := h.Svc.TopProducts(r.Context(), limit, offset)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_ERROR", err.Error(), nil)
		return
	}
	common.Data(w, http.StatusOK, rows)
}

func (h *Handler) configured(w http.ResponseWriter) bool {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_NOT_CONFIGURED", "analytics service not configured", nil)
		return false
	}
	return true
}

func (h *Handler) salesRange(q url.Values) (time.Time, time.Time, error) {
	rawFrom, rawTo := q.Get("from"), q.Get("to")
	if rawFrom == "" && rawTo == "" {
		days := h.Svc.DefaultRange
		if days <= 0 {
			days = 30
		}
		if parsed := common.AtoiDefault(q.Get("days"), days); parsed > 0 && parsed <= maxRangeDays {
			days = parsed
		}
		to := truncateDay(h.Svc.now().UTC()).AddDate(0, 0, 1)
		return to.AddDate(0, 0, -days), to, nil
	}
	from, err := parseBound(rawFrom)
	if err != nil {
		return time.Time{}, time.Time{}, common.BadRequest("from", "from must be RFC 3339 or YYYY-MM-DD", err)
	}
	to, err := parseBound(rawTo)
	if err != nil {
		return time.Time{}, time.Time{}, common.BadRequest("to", "to must be RFC 3339 or YYYY-MM-DD", err)
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, common.BadRequest("from", "from must be before to", nil)
	}
	if to.Sub(from) > maxRangeDays*24*time.Hour {
		return time.Time{}, time.Time{}, common.BadRequest("to", "range must not exceed 366 days", nil)
	}
	return from, to, nil
}

func parseBound(value string) (time.Time, error) {
	if t, err := time.Parse(dayLayout, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}
