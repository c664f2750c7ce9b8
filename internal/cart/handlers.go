package cart

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/text/language"

	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/format"
)

// Handler wires cart services to HTTP.
type Handler struct {
	Svc           *Service
	Idem          common.Idem
	DefaultLocale language.Tag
}

// Routes mounts the cart endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/{id}", h.Get)
	r.Get("/{id}/quote/tax", h.TaxQuote)
	r.Group(func(r chi.Router) {
		r.Use(h.Idem.Middleware)
		r.Post("/", h.Create)
		r.Post("/{id}/items", h.AddItem)
		r.Patch("/{id}/items/{productId}", h.SetQuantity)
		r.Delete("/{id}/items/{productId}", h.RemoveItem)
		r.Delete("/{id}/items", h.Clear)
	})
}

// Create creates an empty cart for the current customer.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	customerID, _ := common.CustomerID(r.Context())
	c, err := h.Svc.Create(r.Context(), customerID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, r, http.StatusCreated, c)
}

// Get returns cart contents with VAT computation per line and totals.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.cartID(w, r)
	if !ok {
		return
	}
	c, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, r, http.StatusOK, c)
}

// TaxQuote returns only the VAT breakdown of the cart.
func (h *Handler) TaxQuote(w http.ResponseWriter, r *http.Request) {
	id, ok := h.cartID(w, r)
	if !ok {
		return
	}
	q, err := h.Svc.Quote(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, NewTotalsView(q.Totals, h.locale(r)))
}

// AddItem adds or increments a cart line item.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.cartID(w, r)
	if !ok {
		return
	}
	var payload struct {
		Product  string `json:"product"`
		Quantity int    `json:"quantity"`
	}
	if err := common.DecodeJSON(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	if payload.Product == "" {
		h.writeError(w, common.BadRequest("product", "product is required", nil))
		return
	}
	if payload.Quantity == 0 {
		payload.Quantity = 1
	}
	c, err := h.Svc.AddItem(r.Context(), id, payload.Product, payload.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, r, http.StatusOK, c)
}

// SetQuantity replaces a line quantity; zero removes the line.
func (h *Handler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	id, ok := h.cartID(w, r)
	if !ok {
		return
	}
	productID, ok := h.productID(w, r)
	if !ok {
		return
	}
	var payload struct {
		Quantity *int `json:"quantity"`
	}
	if err := common.DecodeJSON(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	if payload.Quantity == nil {
		h.writeError(w, common.BadRequest("quantity", "quantity is required", nil))
		return
	}
	c, err := h.Svc.SetQuantity(r.Context(), id, productID, *payload.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, r, http.StatusOK, c)
}

// RemoveItem deletes a line.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.cartID(w, r)
	if !ok {
		return
	}
	productID, ok := h.productID(w, r)
	if !ok {
		return
	}
	c, err := h.Svc.RemoveItem(r.Context(), id, productID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, r, http.StatusOK, c)
}

// Clear empties the cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	id, ok := h.cartID(w, r)
	if !ok {
		return
	}
	c, err := h.Svc.Clear(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, r, http.StatusOK, c)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, c Cart) {
	q, err := Price(c)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, status, NewView(q, h.locale(r)))
}

func (h *Handler) cartID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", map[string]any{"field": "id"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) productID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "productId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", map[string]any{"field": "productId"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) locale(r *http.Request) language.Tag {
	fallback := h.DefaultLocale
	if fallback == language.Und {
		fallback = format.Turkish
	}
	return format.Locale(r.Header.Get("Accept-Language"), fallback)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if err == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unknown error", nil)
		return
	}
	if common.WriteAppError(w, err) {
		return
	}
	switch {
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart not found", nil)
	case errors.Is(err, ErrItemNotFound):
		common.JSONError(w, http.StatusNotFound, "ITEM_NOT_FOUND", "cart item not found", nil)
	case errors.Is(err, ErrProductNotFound):
		common.JSONError(w, http.StatusNotFound, "PRODUCT_NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrInsufficientStock):
		common.JSONError(w, http.StatusConflict, "INSUFFICIENT_STOCK", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
