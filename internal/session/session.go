package session

import (
	"context"
	"sync"
	"time"

	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/domain/checkout"
	"github.com/example/storefront/internal/notification"
)

// Session owns one shopper's cart, checkout orchestrator and notification
// feed. Cart mutations are serialized by the session mutex; the orchestrator
// never holds it across a network call.
type Session struct {
	key string

	mu       sync.Mutex
	cart     *cart.Cart
	pending  []notification.Event
	lastSeen time.Time

	orch     *checkout.Orchestrator
	feed     *notification.Feed
	notifier notification.Notifier
	persist  func(ctx context.Context, s *Session) error
	tracked  func(checkoutID string, s *Session)
}

func (s *Session) Key() string { return s.key }

// bufferNotifier collects events raised while the session mutex is held so
// they can be delivered after it is released.
type bufferNotifier struct{ s *Session }

func (b bufferNotifier) Notify(_ context.Context, e notification.Event) {
	b.s.pending = append(b.s.pending, e)
}

// Mutate runs fn against the cart under the session lock, then persists the
// cart if it changed and delivers any events fn raised.
func (s *Session) Mutate(ctx context.Context, fn func(c *cart.Cart) error) error {
	s.mu.Lock()
	before := s.cart.Version()
	err := fn(s.cart)
	changed := s.cart.Version() != before
	events := s.pending
	s.pending = nil
	s.lastSeen = time.Now()
	s.mu.Unlock()

	if changed && s.persist != nil {
		if perr := s.persist(ctx, s); perr != nil && err == nil {
			err = perr
		}
	}
	for _, e := range events {
		s.notifier.Notify(ctx, e)
	}
	return err
}

// View runs fn against the cart under the session lock. fn must not keep
// references to the cart.
func (s *Session) View(fn func(c *cart.Cart)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.cart)
}

func (s *Session) Snapshot() cart.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Snapshot()
}

func (s *Session) State() cart.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.State()
}

// Checkout starts a provider checkout for the current cart.
func (s *Session) Checkout(ctx context.Context) (checkout.Session, error) {
	s.touch()
	sess, err := s.orch.Checkout(ctx)
	if err != nil {
		return sess, err
	}
	if s.tracked != nil {
		s.tracked(sess.ID, s)
	}
	return sess, nil
}

// Deliver applies a checkout outcome and persists the cart afterwards.
func (s *Session) Deliver(ctx context.Context, out checkout.Outcome) error {
	s.touch()
	if err := s.orch.Deliver(ctx, out); err != nil {
		return err
	}
	if s.persist != nil {
		return s.persist(ctx, s)
	}
	return nil
}

func (s *Session) CheckoutState() checkout.State { return s.orch.State() }

func (s *Session) CurrentCheckout() (checkout.Session, bool) { return s.orch.Current() }

// Drain returns and clears the pending presentation events.
func (s *Session) Drain() []notification.Event {
	s.touch()
	return s.feed.Drain()
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// lockedCart exposes the session cart to the orchestrator.
type lockedCart struct{ s *Session }

func (l lockedCart) Snapshot() cart.Snapshot { return l.s.Snapshot() }

func (l lockedCart) Epoch() uint64 {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return l.s.cart.Epoch()
}

func (l lockedCart) ClearIfEpoch(epoch uint64) bool {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return l.s.cart.ClearIfEpoch(epoch)
}
