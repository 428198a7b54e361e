package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/example/storefront/internal/domain/catalog"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCatalog struct {
	bySlug int
	byID   int
	lists  int
	err    error
}

func (c *countingCatalog) ProductBySlug(_ context.Context, slug string) (catalog.ProductSnapshot, error) {
	c.bySlug++
	if c.err != nil {
		return catalog.ProductSnapshot{}, c.err
	}
	return catalog.ProductSnapshot{ID: "id-" + slug, Slug: slug, Title: "T", UnitPrice: 1000}, nil
}

func (c *countingCatalog) ProductByID(_ context.Context, id string) (catalog.ProductSnapshot, error) {
	c.byID++
	if c.err != nil {
		return catalog.ProductSnapshot{}, c.err
	}
	return catalog.ProductSnapshot{ID: id, Title: "T", UnitPrice: 1000}, nil
}

func (c *countingCatalog) ListProducts(_ context.Context, limit int) ([]catalog.ProductSnapshot, error) {
	c.lists++
	if c.err != nil {
		return nil, c.err
	}
	out := make([]catalog.ProductSnapshot, limit)
	for i := range out {
		out[i] = catalog.ProductSnapshot{ID: string(rune('a' + i)), UnitPrice: 100}
	}
	return out, nil
}

// setupTestCache creates a miniredis server and returns a CatalogCache instance
func setupTestCache(t *testing.T) (*CatalogCache, *countingCatalog, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	backend := &countingCatalog{}
	return NewCatalogCache(backend, client, time.Minute, zerolog.Nop()), backend, mr
}

func TestCatalogCache_ProductBySlug_CachesHit(t *testing.T) {
	c, backend, mr := setupTestCache(t)
	ctx := context.Background()

	first, err := c.ProductBySlug(ctx, "sofa")
	require.NoError(t, err)
	second, err := c.ProductBySlug(ctx, "sofa")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, backend.bySlug)
	assert.True(t, mr.Exists("catalog:slug:sofa"))
	assert.Greater(t, mr.TTL("catalog:slug:sofa"), time.Duration(0))
}

func TestCatalogCache_ExpiresEntries(t *testing.T) {
	c, backend, mr := setupTestCache(t)
	ctx := context.Background()

	_, err := c.ProductByID(ctx, "p1")
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, err = c.ProductByID(ctx, "p1")
	require.NoError(t, err)

	assert.Equal(t, 2, backend.byID)
}

func TestCatalogCache_DoesNotCacheErrors(t *testing.T) {
	c, backend, _ := setupTestCache(t)
	backend.err = catalog.ErrProductNotFound
	ctx := context.Background()

	_, err := c.ProductBySlug(ctx, "missing")
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
	_, err = c.ProductBySlug(ctx, "missing")
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)

	assert.Equal(t, 2, backend.bySlug)
}

func TestCatalogCache_ListProducts(t *testing.T) {
	c, backend, _ := setupTestCache(t)
	ctx := context.Background()

	list, err := c.ListProducts(ctx, 4)
	require.NoError(t, err)
	again, err := c.ListProducts(ctx, 4)
	require.NoError(t, err)

	assert.Len(t, list, 4)
	assert.Equal(t, list, again)
	assert.Equal(t, 1, backend.lists)
}

func TestCatalogCache_RedisDownFallsBack(t *testing.T) {
	c, backend, mr := setupTestCache(t)
	mr.Close()

	p, err := c.ProductBySlug(context.Background(), "sofa")

	require.NoError(t, err)
	assert.Equal(t, "id-sofa", p.ID)
	assert.Equal(t, 1, backend.bySlug)
}

func TestCatalogCache_Invalidate(t *testing.T) {
	c, backend, mr := setupTestCache(t)
	ctx := context.Background()
	_, err := c.ProductBySlug(ctx, "sofa")
	require.NoError(t, err)
	require.NoError(t, mr.Set("cart:other", "keep"))

	require.NoError(t, c.Invalidate(ctx))
	_, err = c.ProductBySlug(ctx, "sofa")
	require.NoError(t, err)

	assert.Equal(t, 2, backend.bySlug)
	assert.True(t, mr.Exists("cart:other"))
}

func TestCatalogCache_BackendError(t *testing.T) {
	c, backend, _ := setupTestCache(t)
	backend.err = errors.New("sanity down")

	_, err := c.ListProducts(context.Background(), 2)

	assert.EqualError(t, err, "sanity down")
}
