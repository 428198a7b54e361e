package query

import (
	"context"

	"github.com/example/storefront/internal/domain/catalog"
	"github.com/example/storefront/internal/readmodel"
	"github.com/example/storefront/internal/session"
)

// DefaultProductLimit is the size of the product grid when no limit is given.
const DefaultProductLimit = 4

// MaxProductLimit caps the number of products a single listing returns.
const MaxProductLimit = 100

type Handler struct {
	sessions *session.Manager
	catalog  catalog.Client
	exponent int32
}

func NewHandler(sessions *session.Manager, catalogClient catalog.Client, exponent int32) *Handler {
	return &Handler{sessions: sessions, catalog: catalogClient, exponent: exponent}
}

// Products
func (h *Handler) GetProduct(ctx context.Context, slug string) (readmodel.ProductView, error) {
	p, err := h.catalog.ProductBySlug(ctx, slug)
	if err != nil {
		return readmodel.ProductView{}, err
	}
	return readmodel.NewProductView(p, h.exponent), nil
}

func (h *Handler) ListProducts(ctx context.Context, limit int) ([]readmodel.ProductView, error) {
	if limit <= 0 {
		limit = DefaultProductLimit
	}
	if limit > MaxProductLimit {
		limit = MaxProductLimit
	}
	products, err := h.catalog.ListProducts(ctx, limit)
	if err != nil {
		return nil, err
	}
	views := make([]readmodel.ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, readmodel.NewProductView(p, h.exponent))
	}
	return views, nil
}

// Cart
func (h *Handler) GetCart(ctx context.Context, sessionKey string) (readmodel.CartView, error) {
	s, err := h.sessions.Get(ctx, sessionKey)
	if err != nil {
		return readmodel.CartView{}, err
	}
	return readmodel.NewCartView(s.Snapshot(), h.exponent), nil
}

// Checkout
func (h *Handler) GetCheckout(ctx context.Context, sessionKey string) (readmodel.CheckoutView, error) {
	s, err := h.sessions.Get(ctx, sessionKey)
	if err != nil {
		return readmodel.CheckoutView{}, err
	}
	current, ok := s.CurrentCheckout()
	return readmodel.NewCheckoutView(s.CheckoutState(), current, ok, h.exponent), nil
}

// Notifications returns and clears the shopper's pending toasts.
func (h *Handler) Notifications(ctx context.Context, sessionKey string) ([]readmodel.ToastView, error) {
	s, err := h.sessions.Get(ctx, sessionKey)
	if err != nil {
		return nil, err
	}
	return readmodel.NewToastViews(s.Drain()), nil
}
