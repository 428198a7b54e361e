package store

import (
	"context"
	"sync"

	"github.com/example/storefront/internal/domain/cart"
)

// MemoryCartStore keeps carts in process memory. Carts are lost on restart.
type MemoryCartStore struct {
	mu    sync.RWMutex
	carts map[string]cart.State
}

func NewMemoryCartStore() *MemoryCartStore {
	return &MemoryCartStore{
		carts: make(map[string]cart.State),
	}
}

func (s *MemoryCartStore) Load(_ context.Context, key string) (*cart.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.carts[key]
	if !ok {
		return nil, ErrCartNotFound
	}
	out := copyState(state)
	return &out, nil
}

func (s *MemoryCartStore) Save(_ context.Context, key string, state cart.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.carts[key]; ok && current.Version > state.Version {
		return ErrVersionConflict
	}
	s.carts[key] = copyState(state)
	return nil
}

func (s *MemoryCartStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.carts, key)
	return nil
}

func copyState(s cart.State) cart.State {
	items := make([]cart.LineItem, len(s.Items))
	copy(items, s.Items)
	s.Items = items
	return s
}
