package account

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/text/language"

	"github.com/noah-isme/storefront-api/internal/catalog"
	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/format"
)

// Handler exposes REST endpoints for the customer account.
type Handler struct {
	Service       *Service
	DefaultLocale language.Tag
}

// Routes mounts the account endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/profile", h.GetProfile)
	r.Put("/profile", h.UpdateProfile)

	r.Get("/addresses", h.ListAddresses)
	r.Post("/addresses", h.CreateAddress)
	r.Patch("/addresses/{addressID}", h.UpdateAddress)
	r.Delete("/addresses/{addressID}", h.DeleteAddress)

	r.Get("/payment-methods", h.ListPaymentMethods)
	r.Post("/payment-methods", h.AddPaymentMethod)
	r.Delete("/payment-methods/{methodID}", h.DeletePaymentMethod)

	r.Get("/wishlist", h.ListWishlist)
	r.Put("/wishlist/{slug}", h.AddWishlist)
	r.Delete("/wishlist/{slug}", h.RemoveWishlist)

	r.Get("/orders", h.ListOrders)
	r.Get("/orders/{orderID}", h.GetOrder)
}

// GetProfile handles GET /api/v1/account/profile.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customer(w, r)
	if !ok {
		return
	}
	common.Data(w, http.StatusOK, h.Service.Profile(r.Context(), customerID))
}

// UpdateProfile handles PUT /api/v1/account/profile.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customer(w, r)
	if !ok {
		return
	}
	var req ProfileInput
	if err := common.DecodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	profile, err := h.Service.UpdateProfile(r.Context(), customerID, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, profile)
}

// ListAddresses handles GET /api/v1/account/addresses.
func (h *Handler) ListAddresses(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customer(w, r)
	if !ok {
		return
	}
	common.Data(w, http.StatusOK, h.Service.Addresses(r.Context(), customerID))
}

// CreateAddress handles POST /api/v1/account/addresses.
func (h *Handler) CreateAddress(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customer(w, r)
	if !ok {
		return
	}
	var req AddressInput
	if err := common.DecodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	address, err := h.Service.CreateAddress(r.Context(), customerID, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, address)
}

// UpdateAddress handles PATCH /api/v1/account/addresses/{addressID}.
func (h *Handler) UpdateAddress(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customer(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "addressID")
	if !ok {
		return
	}
	var req AddressInput
	if err := common.DecodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	address, err := h.Service.UpdateAddress(r.Context(), customerID, id, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, address)
}

// DeleteAddress handles DELETE /api/v1/account/addresses/{addressID}.
func (h *Handler) DeleteAddress(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customer(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "addressID")
	if !ok {
		return
	}
	if err := h.Service.DeleteAddress(r.Context(), customerID, id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListPaymentMethods handles GET /api/v1/account/payment-methods.
func (h *Handler) ListPaymentMethods(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customer(w, r)
	if !ok {
		return
	}
	common.Data(w, http.StatusOK, h.Service.PaymentMethods(r.Context(), customerID))
}

// AddPaymentMethod handles POST /api/v1/account/payment-methods.
func (h *Handler) AddPaymentMethod(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customer(w, r)
	if !ok {
		return
	}
	var req PaymentMethodInput
	if err := common.DecodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	pm, err := h.Service.AddPaymentMethod(r.Context(), customerID, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, pm)
}

// DeletePaymentMethod handles DELETE /api/v1/account/payment-methods/{methodID}.
func (h *Handler) DeletePaymentMethod(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customer(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "methodID")
	if !ok {
		return
	}
	if err := h.Service.DeletePaymentMethod(r.Context(), customerID, id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListWishlist handles GET /api/v1/account/wishlist.
func (h *Handler) ListWishlist(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customer(w, r)
	if !ok {
		return
	}
	items, err := h.Service.Wishlist(r.Context(), customerID, h.locale(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, items)
}

// AddWishlist handles PUT /api/v1/account/wishlist/{slug}.
func (h *Handler) AddWishlist(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customer(w, r)
	if !ok {
		return
	}
	product, err := h.Service.AddToWishlist(r.Context(), customerID, chi.URLParam(r, "slug"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, catalog.Summarize(product, h.locale(r)))
}

// RemoveWishlist handles DELETE /api/v1/account/wishlist/{slug}.
func (h *Handler) RemoveWishlist(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customer(w, r)
	if !ok {
		return
	}
	if err := h.Service.RemoveFromWishlist(r.Context(), customerID, chi.URLParam(r, "slug")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListOrders handles GET /api/v1/account/orders.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customer(w, r)
	if !ok {
		return
	}
	page := common.AtoiDefault(r.URL.Query().Get("page"), 1)
	perPage := common.AtoiDefault(r.URL.Query().Get("per_page"), 20)
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	orders, total := h.Service.Orders(r.Context(), customerID, page, perPage)
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       orders,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: total},
	})
}

// GetOrder handles GET /api/v1/account/orders/{orderID}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customer(w, r)
	if !ok {
		return
	}
	order, err := h.Service.Order(r.Context(), customerID, strings.TrimSpace(chi.URLParam(r, "orderID")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, order)
}

func (h *Handler) customer(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "account service not configured", nil)
		return "", false
	}
	customerID, ok := common.CustomerID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing customer", nil)
		return "", false
	}
	return customerID, true
}

func (h *Handler) locale(r *http.Request) language.Tag {
	fallback := h.DefaultLocale
	if fallback == language.Und {
		fallback = format.Turkish
	}
	return format.Locale(r.Header.Get("Accept-Language"), fallback)
}

func pathUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid "+param, map[string]any{"field": param})
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if common.WriteAppError(w, err) {
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
