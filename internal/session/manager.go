package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/domain/checkout"
	"github.com/example/storefront/internal/infrastructure/store"
	"github.com/example/storefront/internal/notification"
	"github.com/rs/zerolog"
)

// OrchestratorFactory builds the checkout orchestrator for a new session.
type OrchestratorFactory func(c checkout.Cart, n notification.Notifier) *checkout.Orchestrator

type Option func(*Manager)

// WithNotifier adds a notifier that receives every session's events, tagged
// with the session key.
func WithNotifier(n notification.Notifier) Option {
	return func(m *Manager) {
		if n != nil {
			m.external = n
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func WithFeedSize(n int) Option {
	return func(m *Manager) { m.feedSize = n }
}

// Manager keeps live sessions in memory and loads or saves their carts
// through a CartStore.
type Manager struct {
	store    store.CartStore
	factory  OrchestratorFactory
	external notification.Notifier
	logger   zerolog.Logger
	feedSize int

	mu         sync.Mutex
	sessions   map[string]*Session
	byCheckout map[string]*Session
}

func NewManager(cartStore store.CartStore, factory OrchestratorFactory, opts ...Option) *Manager {
	m := &Manager{
		store:      cartStore,
		factory:    factory,
		external:   notification.Discard,
		logger:     zerolog.Nop(),
		feedSize:   notification.DefaultFeedSize,
		sessions:   make(map[string]*Session),
		byCheckout: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the live session for key, restoring its cart from the store or
// starting an empty one.
func (m *Manager) Get(ctx context.Context, key string) (*Session, error) {
	if key == "" {
		return nil, errors.New("empty session key")
	}

	m.mu.Lock()
	s, ok := m.sessions[key]
	m.mu.Unlock()
	if ok {
		return s, nil
	}

	s, err := m.open(ctx, key)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// another request may have opened the session meanwhile
	if existing, ok := m.sessions[key]; ok {
		return existing, nil
	}
	m.sessions[key] = s
	return s, nil
}

func (m *Manager) open(ctx context.Context, key string) (*Session, error) {
	s := &Session{
		key:      key,
		feed:     notification.NewFeed(m.feedSize),
		lastSeen: time.Now(),
		persist:  m.save,
		tracked:  m.track,
	}
	s.notifier = notification.Multi{s.feed, notification.WithSession(key, m.external)}

	state, err := m.store.Load(ctx, key)
	switch {
	case errors.Is(err, store.ErrCartNotFound):
		s.cart = cart.New(bufferNotifier{s})
	case err != nil:
		return nil, fmt.Errorf("load cart: %w", err)
	default:
		c, rerr := cart.Restore(*state, bufferNotifier{s})
		if rerr != nil {
			c = m.discard(ctx, key, *state, rerr, bufferNotifier{s})
		}
		s.cart = c
	}

	s.orch = m.factory(lockedCart{s}, s.notifier)
	return s, nil
}

// discard drops a stored cart that no longer satisfies the cart invariants
// and returns an empty cart that continues its version and epoch, so later
// saves are not rejected as stale.
func (m *Manager) discard(ctx context.Context, key string, state cart.State, cause error, n notification.Notifier) *cart.Cart {
	m.logger.Warn().Err(cause).Str("session", key).Int("version", state.Version).Msg("discarding unreadable cart")
	if err := m.store.Delete(ctx, key); err != nil {
		m.logger.Error().Err(err).Str("session", key).Msg("failed to delete unreadable cart")
	}
	c, err := cart.Restore(cart.State{Version: state.Version, Epoch: state.Epoch}, n)
	if err != nil {
		return cart.New(n)
	}
	return c
}

func (m *Manager) save(ctx context.Context, s *Session) error {
	state := s.State()
	err := m.store.Save(ctx, s.key, state)
	if errors.Is(err, store.ErrVersionConflict) {
		m.logger.Warn().Str("session", s.key).Int("version", state.Version).Msg("stored cart is newer; skipping save")
		return nil
	}
	if err != nil {
		m.logger.Error().Err(err).Str("session", s.key).Msg("failed to save cart")
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func (m *Manager) track(checkoutID string, s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byCheckout[checkoutID] = s
}

// Lookup finds the session that started the checkout with the given provider id.
func (m *Manager) Lookup(checkoutID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byCheckout[checkoutID]
	return s, ok
}

// Deliver routes an outcome to the session that owns the checkout.
func (m *Manager) Deliver(ctx context.Context, out checkout.Outcome) error {
	s, ok := m.Lookup(out.SessionID)
	if !ok {
		return fmt.Errorf("%w: %s", checkout.ErrUnknownSession, out.SessionID)
	}
	return s.Deliver(ctx, out)
}

// Sweep drops sessions idle since before cutoff whose checkout is not in
// flight. Their carts stay in the store.
func (m *Manager) Sweep(cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	var dropped int
	for key, s := range m.sessions {
		if s.idleSince().After(cutoff) {
			continue
		}
		if st := s.CheckoutState(); st == checkout.StateSubmitting || st == checkout.StateRedirected {
			continue
		}
		delete(m.sessions, key)
		for id, owner := range m.byCheckout {
			if owner == s {
				delete(m.byCheckout, id)
			}
		}
		dropped++
	}
	return dropped
}

// RunSweeper sweeps idle sessions every interval until ctx is done.
func (m *Manager) RunSweeper(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := m.Sweep(now.Add(-idle)); n > 0 {
				m.logger.Debug().Int("sessions", n).Msg("swept idle sessions")
			}
		}
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
