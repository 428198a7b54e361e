package store

import (
	"context"
	"errors"

	"github.com/example/storefront/internal/domain/cart"
)

var (
	ErrCartNotFound    = errors.New("cart not found")
	ErrVersionConflict = errors.New("cart version conflict")
)

// CartStore persists cart state under an opaque session key.
// Save rejects state older than what is stored with ErrVersionConflict;
// saving the same version again is allowed.
type CartStore interface {
	Load(ctx context.Context, key string) (*cart.State, error)
	Save(ctx context.Context, key string, state cart.State) error
	Delete(ctx context.Context, key string) error
}
