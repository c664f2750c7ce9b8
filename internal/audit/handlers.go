package audit

import (
	"net/http"

	"github.com/noah-isme/storefront-api/internal/common"
)

// Handler exposes HTTP endpoints for working with audit logs.
type Handler struct {
	Store Store
}

type listResponse struct {
	Data       []Entry           `json:"data"`
	Pagination common.Pagination `json:"pagination"`
}

// List returns a page of audit entries, newest first.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_NOT_CONFIGURED", "audit store not configured", nil)
		return
	}
	q := r.URL.Query()
	page := common.AtoiDefault(q.Get("page"), 1)
	if page < 1 {
		page = 1
	}
	perPage := common.AtoiDefault(q.Get("per_page"), 50)
	if perPage <= 0 || perPage > 200 {
		perPage = 50
	}

	rows, total, err := h.Store.List(r.Context(), perPage, (page-1)*perPage)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_QUERY_FAILED", "unable to fetch audit logs", nil)
		return
	}
	common.JSON(w, http.StatusOK, listResponse{
		Data:       rows,
		Pagination: common.Pagination{Page: page, PerPage: perPage, TotalItems: total},
	})
}
