package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/domain/catalog"
	"github.com/example/storefront/internal/domain/checkout"
	"github.com/example/storefront/internal/session"
	"github.com/rs/zerolog"
)

// ReasonCancelledByShopper is recorded when the shopper returns through the
// provider's cancel URL.
const ReasonCancelledByShopper = "cancelled by shopper"

var ErrProductRequired = fmt.Errorf("%w: slug or product_id is required", cart.ErrValidation)

// Metrics counts cart mutations by operation.
type Metrics interface {
	IncCartMutation(op string)
}

type nopMetrics struct{}

func (nopMetrics) IncCartMutation(string) {}

type Handler struct {
	sessions *session.Manager
	catalog  catalog.Client
	metrics  Metrics
	logger   zerolog.Logger
}

func NewHandler(sessions *session.Manager, catalogClient catalog.Client, metrics Metrics, logger zerolog.Logger) *Handler {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Handler{
		sessions: sessions,
		catalog:  catalogClient,
		metrics:  metrics,
		logger:   logger,
	}
}

// AddToCart resolves the product in the catalog and adds it to the cart.
// A zero quantity adds one unit.
func (h *Handler) AddToCart(ctx context.Context, cmd AddToCart) (cart.Snapshot, error) {
	if cmd.Quantity == 0 {
		cmd.Quantity = 1
	}

	var (
		p   catalog.ProductSnapshot
		err error
	)
	switch {
	case cmd.Slug != "":
		p, err = h.catalog.ProductBySlug(ctx, cmd.Slug)
	case cmd.ProductID != "":
		p, err = h.catalog.ProductByID(ctx, cmd.ProductID)
	default:
		return cart.Snapshot{}, ErrProductRequired
	}
	if err != nil {
		return cart.Snapshot{}, err
	}

	return h.mutate(ctx, cmd.SessionKey, "add", func(c *cart.Cart) error {
		return c.AddItem(ctx, p, cmd.Quantity)
	})
}

func (h *Handler) RemoveFromCart(ctx context.Context, cmd RemoveFromCart) (cart.Snapshot, error) {
	return h.mutate(ctx, cmd.SessionKey, "remove", func(c *cart.Cart) error {
		c.RemoveItem(cmd.ProductID)
		return nil
	})
}

func (h *Handler) SetQuantity(ctx context.Context, cmd SetQuantity) (cart.Snapshot, error) {
	return h.mutate(ctx, cmd.SessionKey, "set_quantity", func(c *cart.Cart) error {
		return c.SetQuantity(cmd.ProductID, cmd.Quantity)
	})
}

func (h *Handler) IncrementQuantity(ctx context.Context, cmd IncrementQuantity) (cart.Snapshot, error) {
	return h.mutate(ctx, cmd.SessionKey, "increment", func(c *cart.Cart) error {
		return c.IncrementQuantity(cmd.ProductID)
	})
}

func (h *Handler) DecrementQuantity(ctx context.Context, cmd DecrementQuantity) (cart.Snapshot, error) {
	return h.mutate(ctx, cmd.SessionKey, "decrement", func(c *cart.Cart) error {
		return c.DecrementQuantity(cmd.ProductID)
	})
}

func (h *Handler) ClearCart(ctx context.Context, cmd ClearCart) (cart.Snapshot, error) {
	return h.mutate(ctx, cmd.SessionKey, "clear", func(c *cart.Cart) error {
		c.Clear()
		return nil
	})
}

// StartCheckout submits the cart to the payment provider and returns the
// redirected session.
func (h *Handler) StartCheckout(ctx context.Context, cmd StartCheckout) (checkout.Session, error) {
	s, err := h.sessions.Get(ctx, cmd.SessionKey)
	if err != nil {
		return checkout.Session{}, err
	}
	sess, err := s.Checkout(ctx)
	if err != nil {
		h.logger.Info().Err(err).Str("session", cmd.SessionKey).Msg("checkout not started")
		return sess, err
	}
	h.logger.Info().
		Str("session", cmd.SessionKey).
		Str("checkout_id", sess.ID).
		Int64("total", sess.Total).
		Msg("checkout redirected")
	return sess, nil
}

// ConfirmCheckout confirms the shopper's redirected checkout when they
// return through the success URL. A confirmation that already arrived by
// webhook is not an error.
func (h *Handler) ConfirmCheckout(ctx context.Context, cmd ConfirmCheckout) error {
	return h.deliver(ctx, cmd.SessionKey, checkout.Outcome{
		SessionID: cmd.CheckoutID,
		Type:      checkout.OutcomeConfirmed,
	})
}

// CancelCheckout fails the shopper's redirected checkout. Only sessions
// started by the same shopper can be cancelled; already finished sessions
// are left alone.
func (h *Handler) CancelCheckout(ctx context.Context, cmd CancelCheckout) error {
	return h.deliver(ctx, cmd.SessionKey, checkout.Outcome{
		SessionID: cmd.CheckoutID,
		Type:      checkout.OutcomeFailed,
		Reason:    ReasonCancelledByShopper,
	})
}

func (h *Handler) deliver(ctx context.Context, key string, out checkout.Outcome) error {
	s, err := h.sessions.Get(ctx, key)
	if err != nil {
		return err
	}
	err = s.Deliver(ctx, out)
	if errors.Is(err, checkout.ErrSessionFinished) {
		h.logger.Debug().Str("checkout_id", out.SessionID).Msg("checkout already finished")
		return nil
	}
	return err
}

func (h *Handler) mutate(ctx context.Context, key, op string, fn func(c *cart.Cart) error) (cart.Snapshot, error) {
	s, err := h.sessions.Get(ctx, key)
	if err != nil {
		return cart.Snapshot{}, err
	}
	if err := s.Mutate(ctx, fn); err != nil {
		return s.Snapshot(), err
	}
	h.metrics.IncCartMutation(op)
	return s.Snapshot(), nil
}
