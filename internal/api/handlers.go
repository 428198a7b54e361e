package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/example/storefront/internal/api/middleware"
	"github.com/example/storefront/internal/command"
	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/domain/catalog"
	"github.com/example/storefront/internal/domain/checkout"
	"github.com/example/storefront/internal/query"
	"github.com/example/storefront/internal/readmodel"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

type Handlers struct {
	cmdHandler   *command.Handler
	queryHandler *query.Handler
	exponent     int32
	logger       zerolog.Logger
}

func NewHandlers(cmdHandler *command.Handler, queryHandler *query.Handler, exponent int32, logger zerolog.Logger) *Handlers {
	return &Handlers{
		cmdHandler:   cmdHandler,
		queryHandler: queryHandler,
		exponent:     exponent,
		logger:       logger,
	}
}

// Product Handlers

func (h *Handlers) GetProducts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	products, err := h.queryHandler.ListProducts(r.Context(), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.queryHandler.GetProduct(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

// Cart Handlers

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.queryHandler.GetCart(r.Context(), sessionID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *Handlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	var cmd command.AddToCart
	if !decode(w, r, &cmd) {
		return
	}
	cmd.SessionKey = sessionID(r)

	snap, err := h.cmdHandler.AddToCart(r.Context(), cmd)
	h.respondCart(w, r, snap, err)
}

func (h *Handlers) SetQuantity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Quantity int `json:"quantity"`
	}
	if !decode(w, r, &req) {
		return
	}

	snap, err := h.cmdHandler.SetQuantity(r.Context(), command.SetQuantity{
		SessionKey: sessionID(r),
		ProductID:  chi.URLParam(r, "productID"),
		Quantity:   req.Quantity,
	})
	h.respondCart(w, r, snap, err)
}

func (h *Handlers) IncrementQuantity(w http.ResponseWriter, r *http.Request) {
	snap, err := h.cmdHandler.IncrementQuantity(r.Context(), command.IncrementQuantity{
		SessionKey: sessionID(r),
		ProductID:  chi.URLParam(r, "productID"),
	})
	h.respondCart(w, r, snap, err)
}

func (h *Handlers) DecrementQuantity(w http.ResponseWriter, r *http.Request) {
	snap, err := h.cmdHandler.DecrementQuantity(r.Context(), command.DecrementQuantity{
		SessionKey: sessionID(r),
		ProductID:  chi.URLParam(r, "productID"),
	})
	h.respondCart(w, r, snap, err)
}

func (h *Handlers) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	snap, err := h.cmdHandler.RemoveFromCart(r.Context(), command.RemoveFromCart{
		SessionKey: sessionID(r),
		ProductID:  chi.URLParam(r, "productID"),
	})
	h.respondCart(w, r, snap, err)
}

func (h *Handlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	snap, err := h.cmdHandler.ClearCart(r.Context(), command.ClearCart{SessionKey: sessionID(r)})
	h.respondCart(w, r, snap, err)
}

// Checkout Handlers

func (h *Handlers) StartCheckout(w http.ResponseWriter, r *http.Request) {
	sess, err := h.cmdHandler.StartCheckout(r.Context(), command.StartCheckout{SessionKey: sessionID(r)})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"session_id":   sess.ID,
		"redirect_url": sess.RedirectURL,
		"status":       sess.Status.String(),
	})
}

func (h *Handlers) GetCheckout(w http.ResponseWriter, r *http.Request) {
	view, err := h.queryHandler.GetCheckout(r.Context(), sessionID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// CheckoutSuccess is the provider's success return URL.
func (h *Handlers) CheckoutSuccess(w http.ResponseWriter, r *http.Request) {
	err := h.cmdHandler.ConfirmCheckout(r.Context(), command.ConfirmCheckout{
		SessionKey: sessionID(r),
		CheckoutID: r.URL.Query().Get("session_id"),
	})
	h.respondCheckout(w, r, err)
}

// CheckoutCancel is the provider's cancel return URL.
func (h *Handlers) CheckoutCancel(w http.ResponseWriter, r *http.Request) {
	err := h.cmdHandler.CancelCheckout(r.Context(), command.CancelCheckout{
		SessionKey: sessionID(r),
		CheckoutID: r.URL.Query().Get("session_id"),
	})
	h.respondCheckout(w, r, err)
}

// Notification Handlers

func (h *Handlers) GetNotifications(w http.ResponseWriter, r *http.Request) {
	toasts, err := h.queryHandler.Notifications(r.Context(), sessionID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toasts)
}

// Helper functions

func (h *Handlers) respondCart(w http.ResponseWriter, r *http.Request, snap cart.Snapshot, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, readmodel.NewCartView(snap, h.exponent))
}

func (h *Handlers) respondCheckout(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.GetCheckout(w, r)
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, message := errorResponse(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	respondError(w, status, message)
}

// errorResponse maps domain errors to an HTTP status and a shopper-facing
// message.
func errorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, cart.ErrValidation),
		errors.Is(err, checkout.ErrInvalidRequest),
		errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, catalog.ErrInvalidPrice):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, cart.ErrNotFound),
		errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, checkout.ErrUnknownSession):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, checkout.ErrAlreadyInProgress):
		return http.StatusConflict, err.Error()
	case errors.Is(err, checkout.ErrStaleSubmission):
		return http.StatusConflict, checkout.FailureMessage(err)
	case errors.Is(err, checkout.ErrTransport),
		errors.Is(err, checkout.ErrPaymentProvider),
		errors.Is(err, checkout.ErrRedirectFailure):
		return http.StatusBadGateway, checkout.FailureMessage(err)
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func sessionID(r *http.Request) string {
	return middleware.GetSessionID(r.Context())
}
