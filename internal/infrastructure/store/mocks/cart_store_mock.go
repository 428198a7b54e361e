package mocks

import (
	"context"
	"sync"

	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/infrastructure/store"
)

// MockCartStore is a mock implementation of store.CartStore for testing
type MockCartStore struct {
	mu    sync.RWMutex
	carts map[string]cart.State

	// For tracking calls in tests
	LoadCalls    []string
	SaveCalls    []SaveCall
	DeleteCalls  []string
	LoadErr      error
	SaveErr      error
	SaveCallback func(ctx context.Context, key string, state cart.State) error
}

// SaveCall records parameters passed to Save
type SaveCall struct {
	Key   string
	State cart.State
}

func NewMockCartStore() *MockCartStore {
	return &MockCartStore{
		carts:     make(map[string]cart.State),
		SaveCalls: make([]SaveCall, 0),
	}
}

func (m *MockCartStore) Load(ctx context.Context, key string) (*cart.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LoadCalls = append(m.LoadCalls, key)
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	state, ok := m.carts[key]
	if !ok {
		return nil, store.ErrCartNotFound
	}
	return &state, nil
}

func (m *MockCartStore) Save(ctx context.Context, key string, state cart.State) error {
	m.mu.Lock()
	m.SaveCalls = append(m.SaveCalls, SaveCall{Key: key, State: state})
	callback := m.SaveCallback
	m.mu.Unlock()

	if callback != nil {
		return callback(ctx, key, state)
	}
	if m.SaveErr != nil {
		return m.SaveErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[key] = state
	return nil
}

func (m *MockCartStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeleteCalls = append(m.DeleteCalls, key)
	delete(m.carts, key)
	return nil
}

// Put seeds a stored cart without recording a call.
func (m *MockCartStore) Put(key string, state cart.State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[key] = state
}

// Saved returns the last stored state for key.
func (m *MockCartStore) Saved(key string) (cart.State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.carts[key]
	return state, ok
}

func (m *MockCartStore) SaveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.SaveCalls)
}

// Reset clears all recorded calls and stored carts
func (m *MockCartStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.carts = make(map[string]cart.State)
	m.LoadCalls = nil
	m.SaveCalls = make([]SaveCall, 0)
	m.DeleteCalls = nil
	m.LoadErr = nil
	m.SaveErr = nil
	m.SaveCallback = nil
}
