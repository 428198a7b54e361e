package sanity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/storefront/internal/domain/catalog"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{
		BaseURL:    srv.URL,
		Dataset:    "production",
		APIVersion: "2023-05-03",
		Token:      "secret-token",
	}, zerolog.Nop())
	require.NoError(t, err)
	return c
}

func TestClient_ProductBySlug(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2023-05-03/data/query/production", r.URL.Path)
		assert.Equal(t, `"asgaard-sofa"`, r.URL.Query().Get("$slug"))
		assert.Contains(t, r.URL.Query().Get("query"), "slug.current == $slug")
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		w.Write([]byte(`{"result":{"_id":"p1","title":"Asgaard sofa","price":250.5,
			"description":"Comfy","imageUrl":"https://cdn.sanity.io/a.png","slug":"asgaard-sofa",
			"discountPercentage":30,"tags":["sofa","living room"]}}`))
	})

	p, err := c.ProductBySlug(context.Background(), "asgaard-sofa")

	require.NoError(t, err)
	assert.Equal(t, catalog.ProductSnapshot{
		ID:              "p1",
		Slug:            "asgaard-sofa",
		Title:           "Asgaard sofa",
		UnitPrice:       25050,
		Description:     "Comfy",
		ImageRef:        "https://cdn.sanity.io/a.png",
		DiscountPercent: 30,
		Tags:            []string{"sofa", "living room"},
	}, p)
}

func TestClient_ProductByID_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, `"missing"`, r.URL.Query().Get("$id"))
		w.Write([]byte(`{"result":null}`))
	})

	_, err := c.ProductByID(context.Background(), "missing")

	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
}

func TestClient_ProductBySlug_InvalidPrice(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"fractional cents", `{"result":{"_id":"p1","title":"x","price":1.005}}`},
		{"zero", `{"result":{"_id":"p1","title":"x","price":0}}`},
		{"missing", `{"result":{"_id":"p1","title":"x"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			})

			_, err := c.ProductBySlug(context.Background(), "x")

			assert.ErrorIs(t, err, catalog.ErrInvalidPrice)
		})
	}
}

func TestClient_ListProducts_SkipsBadPrices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("query")
		assert.Contains(t, query, `*[_type == "product"][0...4]`)
		assert.NotContains(t, query, "order(")
		assert.Contains(t, query, "discountPercentage")
		assert.Contains(t, query, "tags")
		w.Write([]byte(`{"result":[
			{"_id":"p1","title":"One","price":10},
			{"_id":"p2","title":"Two","price":-1},
			{"_id":"p3","title":"Three","price":12.99}
		]}`))
	})

	products, err := c.ListProducts(context.Background(), 4)

	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, int64(1000), products[0].UnitPrice)
	assert.Equal(t, "p3", products[1].ID)
	assert.Equal(t, int64(1299), products[1].UnitPrice)
}

func TestDiscountPercent(t *testing.T) {
	tests := []struct {
		in   json.Number
		want int
	}{
		{"", 0},
		{"15", 15},
		{"12.6", 13},
		{"0", 0},
		{"-5", 0},
		{"150", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, discountPercent(tt.in), string(tt.in))
	}
}

func TestClient_ListProducts_ZeroLimit(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	products, err := c.ListProducts(context.Background(), 0)

	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestClient_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "query error", http.StatusBadRequest)
	})

	_, err := c.ProductBySlug(context.Background(), "x")

	require.Error(t, err)
	assert.NotErrorIs(t, err, catalog.ErrProductNotFound)
	assert.Contains(t, err.Error(), "status=400")
}

func TestNewClient_Hosts(t *testing.T) {
	c, err := NewClient(Config{ProjectID: "abc123", Dataset: "production", UseCDN: true}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "https://abc123.apicdn.sanity.io/v2023-05-03/data/query/production", c.endpoint)

	c, err = NewClient(Config{ProjectID: "abc123", Dataset: "production", APIVersion: "v2021-10-21"}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "https://abc123.api.sanity.io/v2021-10-21/data/query/production", c.endpoint)

	_, err = NewClient(Config{Dataset: "production"}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrNotConfigured)
}
