package catalog

import (
	"context"
	"errors"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidPrice    = errors.New("price cannot be expressed in minor units")
)

// ProductSnapshot is an immutable view of a catalog product. Only catalog
// clients create it; the cart copies what it needs.
type ProductSnapshot struct {
	ID          string `json:"id"`
	Slug        string `json:"slug,omitempty"`
	Title       string `json:"title"`
	UnitPrice   int64  `json:"unit_price"` // minor currency units
	Description string `json:"description,omitempty"`
	ImageRef    string `json:"image_url,omitempty"`
	// DiscountPercent is informational; UnitPrice is what the cart charges.
	DiscountPercent int      `json:"discount_percent,omitempty"`
	Tags            []string `json:"tags,omitempty"`
}

// Client is the read-only catalog port. A missing product is reported as
// ErrProductNotFound; every other error is transport level.
type Client interface {
	ProductBySlug(ctx context.Context, slug string) (ProductSnapshot, error)
	ProductByID(ctx context.Context, id string) (ProductSnapshot, error)
	ListProducts(ctx context.Context, limit int) ([]ProductSnapshot, error)
}
