package readmodel

import (
	"time"

	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/domain/catalog"
	"github.com/example/storefront/internal/domain/checkout"
	"github.com/example/storefront/internal/notification"
)

// ProductView is the read model for a catalog product
type ProductView struct {
	ID           string `json:"id"`
	Slug         string `json:"slug,omitempty"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	Price        int64  `json:"price"`
	DisplayPrice string `json:"display_price"`
	ImageURL     string `json:"image_url,omitempty"`
	// informational; the cart charges Price
	DiscountPercent int      `json:"discount_percent,omitempty"`
	Tags            []string `json:"tags,omitempty"`
}

// LineItemView represents an item in the cart
type LineItemView struct {
	ProductID       string `json:"product_id"`
	Title           string `json:"title"`
	ImageURL        string `json:"image_url,omitempty"`
	Quantity        int    `json:"quantity"`
	UnitPrice       int64  `json:"unit_price"`
	Subtotal        int64  `json:"subtotal"`
	DisplayPrice    string `json:"display_price"`
	DisplaySubtotal string `json:"display_subtotal"`
}

// CartView is the read model for the shopper's cart
type CartView struct {
	Items        []LineItemView `json:"items"`
	Count        int            `json:"count"`
	Total        int64          `json:"total"`
	DisplayTotal string         `json:"display_total"`
	Version      int            `json:"version"`
	Empty        bool           `json:"empty"`
}

// CheckoutView is the read model for the checkout state
type CheckoutView struct {
	State   string               `json:"state"`
	Session *CheckoutSessionView `json:"session,omitempty"`
}

type CheckoutSessionView struct {
	ID            string    `json:"session_id,omitempty"`
	Status        string    `json:"status"`
	RedirectURL   string    `json:"redirect_url,omitempty"`
	Total         int64     `json:"total"`
	DisplayTotal  string    `json:"display_total"`
	FailureReason string    `json:"failure_reason,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ToastView is a presentation event ready for the UI
type ToastView struct {
	Kind       string    `json:"kind"`
	Level      string    `json:"level"`
	Heading    string    `json:"heading"`
	Message    string    `json:"message,omitempty"`
	CheckoutID string    `json:"checkout_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewProductView(p catalog.ProductSnapshot, exponent int32) ProductView {
	return ProductView{
		ID:           p.ID,
		Slug:         p.Slug,
		Title:        p.Title,
		Description:  p.Description,
		Price:        p.UnitPrice,
		DisplayPrice: catalog.FormatMinorUnits(p.UnitPrice, exponent),
		ImageURL:     p.ImageRef,

		DiscountPercent: p.DiscountPercent,
		Tags:            p.Tags,
	}
}

func NewCartView(snap cart.Snapshot, exponent int32) CartView {
	items := make([]LineItemView, 0, len(snap.Items))
	count := 0
	for _, li := range snap.Items {
		items = append(items, LineItemView{
			ProductID:       li.ProductID,
			Title:           li.Title,
			ImageURL:        li.ImageRef,
			Quantity:        li.Quantity,
			UnitPrice:       li.UnitPrice,
			Subtotal:        li.Subtotal(),
			DisplayPrice:    catalog.FormatMinorUnits(li.UnitPrice, exponent),
			DisplaySubtotal: catalog.FormatMinorUnits(li.Subtotal(), exponent),
		})
		count += li.Quantity
	}
	return CartView{
		Items:        items,
		Count:        count,
		Total:        snap.Total,
		DisplayTotal: catalog.FormatMinorUnits(snap.Total, exponent),
		Version:      snap.Version,
		Empty:        snap.IsEmpty(),
	}
}

// NewCheckoutView builds the view from the orchestrator state and, when one
// exists, its most recent session.
func NewCheckoutView(state checkout.State, sess checkout.Session, ok bool, exponent int32) CheckoutView {
	v := CheckoutView{State: state.String()}
	if !ok {
		return v
	}
	v.Session = &CheckoutSessionView{
		ID:            sess.ID,
		Status:        sess.Status.String(),
		RedirectURL:   sess.RedirectURL,
		Total:         sess.Total,
		DisplayTotal:  catalog.FormatMinorUnits(sess.Total, exponent),
		FailureReason: sess.FailureReason,
		UpdatedAt:     sess.UpdatedAt,
	}
	return v
}

func NewToastViews(events []notification.Event) []ToastView {
	out := make([]ToastView, 0, len(events))
	for _, e := range events {
		out = append(out, ToastView{
			Kind:       string(e.Kind),
			Level:      string(e.Level),
			Heading:    e.Heading,
			Message:    e.Message,
			CheckoutID: e.CheckoutID,
			OccurredAt: e.OccurredAt,
		})
	}
	return out
}
