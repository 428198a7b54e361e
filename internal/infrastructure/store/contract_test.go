package store

import (
	"context"
	"testing"

	"github.com/example/storefront/internal/domain/cart"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState(version int) cart.State {
	return cart.State{
		Items: []cart.LineItem{
			{ProductID: "a", Title: "Alpha", UnitPrice: 1000, Quantity: 2, ImageRef: "https://img/a.png"},
			{ProductID: "b", Title: "Beta", UnitPrice: 2550, Quantity: 1},
		},
		Version: version,
		Epoch:   1,
	}
}

// exerciseCartStore runs the CartStore contract against any implementation.
func exerciseCartStore(t *testing.T, s CartStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing cart", func(t *testing.T) {
		_, err := s.Load(ctx, "missing")
		assert.ErrorIs(t, err, ErrCartNotFound)
	})

	t.Run("save and load", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, "k1", sampleState(3)))

		got, err := s.Load(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, sampleState(3), *got)
	})

	t.Run("same version is idempotent", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, "k2", sampleState(4)))
		assert.NoError(t, s.Save(ctx, "k2", sampleState(4)))
	})

	t.Run("older version is rejected", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, "k3", sampleState(5)))

		err := s.Save(ctx, "k3", cart.State{Version: 2})

		assert.ErrorIs(t, err, ErrVersionConflict)
		got, err := s.Load(ctx, "k3")
		require.NoError(t, err)
		assert.Equal(t, 5, got.Version)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, "k4", sampleState(1)))
		require.NoError(t, s.Delete(ctx, "k4"))

		_, err := s.Load(ctx, "k4")
		assert.ErrorIs(t, err, ErrCartNotFound)
		assert.NoError(t, s.Delete(ctx, "k4"))
	})
}
