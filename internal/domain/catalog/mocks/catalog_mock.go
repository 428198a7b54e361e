package mocks

import (
	"context"
	"sync"

	"github.com/example/storefront/internal/domain/catalog"
)

// MockCatalog is a mock implementation of catalog.Client for testing
type MockCatalog struct {
	mu       sync.Mutex
	products []catalog.ProductSnapshot

	// For tracking calls in tests
	SlugCalls []string
	IDCalls   []string
	ListCalls []int
	Err       error
}

func NewMockCatalog(products ...catalog.ProductSnapshot) *MockCatalog {
	return &MockCatalog{products: products}
}

func (m *MockCatalog) ProductBySlug(ctx context.Context, slug string) (catalog.ProductSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SlugCalls = append(m.SlugCalls, slug)
	if m.Err != nil {
		return catalog.ProductSnapshot{}, m.Err
	}
	for _, p := range m.products {
		if p.Slug == slug {
			return p, nil
		}
	}
	return catalog.ProductSnapshot{}, catalog.ErrProductNotFound
}

func (m *MockCatalog) ProductByID(ctx context.Context, id string) (catalog.ProductSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.IDCalls = append(m.IDCalls, id)
	if m.Err != nil {
		return catalog.ProductSnapshot{}, m.Err
	}
	for _, p := range m.products {
		if p.ID == id {
			return p, nil
		}
	}
	return catalog.ProductSnapshot{}, catalog.ErrProductNotFound
}

func (m *MockCatalog) ListProducts(ctx context.Context, limit int) ([]catalog.ProductSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ListCalls = append(m.ListCalls, limit)
	if m.Err != nil {
		return nil, m.Err
	}
	n := len(m.products)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]catalog.ProductSnapshot, n)
	copy(out, m.products[:n])
	return out, nil
}
