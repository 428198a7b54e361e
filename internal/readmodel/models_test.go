package readmodel

import (
	"testing"
	"time"

	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/domain/catalog"
	"github.com/example/storefront/internal/domain/checkout"
	"github.com/example/storefront/internal/notification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProductView(t *testing.T) {
	view := NewProductView(catalog.ProductSnapshot{
		ID:              "p1",
		Slug:            "asgaard-sofa",
		Title:           "Asgaard sofa",
		UnitPrice:       25050,
		ImageRef:        "https://cdn.sanity.io/a.png",
		DiscountPercent: 30,
		Tags:            []string{"sofa"},
	}, 2)

	assert.Equal(t, "250.50", view.DisplayPrice)
	assert.Equal(t, int64(25050), view.Price)
	assert.Equal(t, 30, view.DiscountPercent)
	assert.Equal(t, []string{"sofa"}, view.Tags)
}

func TestNewCartView(t *testing.T) {
	snap := cart.Snapshot{
		Items: []cart.LineItem{
			{ProductID: "p1", Title: "Mug", UnitPrice: 1250, Quantity: 2},
			{ProductID: "p2", Title: "Poster", UnitPrice: 2050, Quantity: 1},
		},
		Total:   4550,
		Version: 3,
	}

	view := NewCartView(snap, 2)

	require.Len(t, view.Items, 2)
	assert.Equal(t, 3, view.Count)
	assert.Equal(t, "45.50", view.DisplayTotal)
	assert.Equal(t, int64(2500), view.Items[0].Subtotal)
	assert.Equal(t, "25.00", view.Items[0].DisplaySubtotal)
	assert.Equal(t, "12.50", view.Items[0].DisplayPrice)
	assert.False(t, view.Empty)
}

func TestNewCartView_Empty(t *testing.T) {
	view := NewCartView(cart.Snapshot{}, 2)

	assert.NotNil(t, view.Items)
	assert.True(t, view.Empty)
	assert.Equal(t, "0.00", view.DisplayTotal)
}

func TestNewCheckoutView(t *testing.T) {
	t.Run("no session", func(t *testing.T) {
		v := NewCheckoutView(checkout.StateIdle, checkout.Session{}, false, 2)
		assert.Equal(t, "idle", v.State)
		assert.Nil(t, v.Session)
	})

	t.Run("with session", func(t *testing.T) {
		sess := checkout.Session{
			ID:          "cs_1",
			Status:      checkout.SessionRedirected,
			RedirectURL: "https://pay.example.com/cs_1",
			Total:       4550,
			UpdatedAt:   time.Now(),
		}
		v := NewCheckoutView(checkout.StateRedirected, sess, true, 2)

		require.NotNil(t, v.Session)
		assert.Equal(t, "redirected", v.State)
		assert.Equal(t, "cs_1", v.Session.ID)
		assert.Equal(t, "redirected", v.Session.Status)
		assert.Equal(t, "45.50", v.Session.DisplayTotal)
	})
}

func TestNewToastViews(t *testing.T) {
	views := NewToastViews([]notification.Event{
		notification.ItemAdded("Mug"),
		notification.CheckoutFailed("Something went wrong with the checkout."),
	})

	require.Len(t, views, 2)
	assert.Equal(t, "Added to Cart!", views[0].Heading)
	assert.Equal(t, "Mug has been added to your cart.", views[0].Message)
	assert.Equal(t, "error", views[1].Level)

	assert.NotNil(t, NewToastViews(nil))
}
