package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/domain/catalog"
	"github.com/example/storefront/internal/domain/checkout"
	"github.com/example/storefront/internal/infrastructure/store"
	"github.com/example/storefront/internal/infrastructure/store/mocks"
	"github.com/example/storefront/internal/notification"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCreator struct {
	mu sync.Mutex
	n  int
}

func (s *stubCreator) CreateSession(context.Context, checkout.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return "cs_" + string(rune('0'+s.n)), nil
}

type stubRedirector struct{}

func (stubRedirector) Redirect(_ context.Context, id string) (string, error) {
	return "https://pay.example.com/" + id, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notification.Event
}

func (r *recordingNotifier) Notify(_ context.Context, e notification.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingNotifier) all() []notification.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notification.Event(nil), r.events...)
}

func newTestManager(t *testing.T, opts ...Option) (*Manager, *mocks.MockCartStore) {
	t.Helper()
	cartStore := mocks.NewMockCartStore()
	creator := &stubCreator{}
	factory := func(c checkout.Cart, n notification.Notifier) *checkout.Orchestrator {
		return checkout.NewOrchestrator(c, creator, stubRedirector{}, n)
	}
	return NewManager(cartStore, factory, opts...), cartStore
}

func addProduct(id string, price int64) func(c *cart.Cart) error {
	return func(c *cart.Cart) error {
		return c.AddItem(context.Background(), catalog.ProductSnapshot{ID: id, Title: "Product " + id, UnitPrice: price}, 1)
	}
}

// ============================================
// Manager Tests
// ============================================

func TestManager_Get_CreatesAndReuses(t *testing.T) {
	m, cartStore := newTestManager(t)
	ctx := context.Background()

	s1, err := m.Get(ctx, "shopper-1")
	require.NoError(t, err)
	s2, err := m.Get(ctx, "shopper-1")
	require.NoError(t, err)

	assert.Same(t, s1, s2)
	assert.True(t, s1.Snapshot().IsEmpty())
	assert.Equal(t, []string{"shopper-1"}, cartStore.LoadCalls)
	assert.Equal(t, 1, m.Len())
}

func TestManager_Get_RestoresFromStore(t *testing.T) {
	m, cartStore := newTestManager(t)
	cartStore.Put("shopper-1", cart.State{
		Items:   []cart.LineItem{{ProductID: "a", Title: "A", UnitPrice: 1000, Quantity: 3}},
		Version: 4,
		Epoch:   2,
	})

	s, err := m.Get(context.Background(), "shopper-1")

	require.NoError(t, err)
	snap := s.Snapshot()
	assert.Equal(t, int64(3000), snap.Total)
	assert.Equal(t, 4, snap.Version)
	assert.Equal(t, uint64(2), snap.Epoch)
}

func TestManager_Get_CorruptStateStartsEmpty(t *testing.T) {
	m, cartStore := newTestManager(t)
	cartStore.Put("shopper-1", cart.State{Items: []cart.LineItem{{ProductID: "a", Quantity: 1}}, Version: 7, Epoch: 2})

	s, err := m.Get(context.Background(), "shopper-1")

	require.NoError(t, err)
	assert.True(t, s.Snapshot().IsEmpty())
	assert.Equal(t, []string{"shopper-1"}, cartStore.DeleteCalls)
	assert.Equal(t, 7, s.Snapshot().Version)
	assert.Equal(t, uint64(2), s.Snapshot().Epoch)
}

func TestManager_Get_CorruptStateIsReplacedOnSave(t *testing.T) {
	cartStore := store.NewMemoryCartStore()
	require.NoError(t, cartStore.Save(context.Background(), "shopper-1", cart.State{
		Items:   []cart.LineItem{{ProductID: "a", UnitPrice: 0, Quantity: 1}},
		Version: 5,
	}))
	factory := func(c checkout.Cart, n notification.Notifier) *checkout.Orchestrator {
		return checkout.NewOrchestrator(c, &stubCreator{}, stubRedirector{}, n)
	}
	m := NewManager(cartStore, factory)

	s, err := m.Get(context.Background(), "shopper-1")
	require.NoError(t, err)
	require.NoError(t, s.Mutate(context.Background(), addProduct("b", 900)))

	stored, err := cartStore.Load(context.Background(), "shopper-1")
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, "b", stored.Items[0].ProductID)
	assert.Equal(t, 6, stored.Version)
}

func TestManager_Get_StoreError(t *testing.T) {
	m, cartStore := newTestManager(t)
	cartStore.LoadErr = errors.New("connection refused")

	_, err := m.Get(context.Background(), "shopper-1")

	assert.ErrorContains(t, err, "connection refused")
	assert.Equal(t, 0, m.Len())
}

func TestManager_Get_EmptyKey(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.Get(context.Background(), "")
	assert.Error(t, err)
}

// ============================================
// Session Tests
// ============================================

func TestSession_Mutate_PersistsAndNotifies(t *testing.T) {
	external := &recordingNotifier{}
	m, cartStore := newTestManager(t, WithNotifier(external))
	ctx := context.Background()
	s, err := m.Get(ctx, "shopper-1")
	require.NoError(t, err)

	require.NoError(t, s.Mutate(ctx, addProduct("a", 1000)))

	saved, ok := cartStore.Saved("shopper-1")
	require.True(t, ok)
	assert.Len(t, saved.Items, 1)

	events := s.Drain()
	require.Len(t, events, 1)
	assert.Equal(t, notification.KindItemAdded, events[0].Kind)
	assert.Empty(t, s.Drain())

	ext := external.all()
	require.Len(t, ext, 1)
	assert.Equal(t, "shopper-1", ext[0].SessionKey)
}

func TestSession_Mutate_NoChangeSkipsSave(t *testing.T) {
	m, cartStore := newTestManager(t)
	ctx := context.Background()
	s, err := m.Get(ctx, "shopper-1")
	require.NoError(t, err)

	require.NoError(t, s.Mutate(ctx, func(c *cart.Cart) error {
		c.RemoveItem("missing")
		return nil
	}))
	err = s.Mutate(ctx, func(c *cart.Cart) error { return c.SetQuantity("missing", 2) })

	assert.ErrorIs(t, err, cart.ErrNotFound)
	assert.Equal(t, 0, cartStore.SaveCount())
}

func TestSession_Mutate_SaveErrorIsReturned(t *testing.T) {
	m, cartStore := newTestManager(t)
	cartStore.SaveErr = errors.New("disk full")
	ctx := context.Background()
	s, err := m.Get(ctx, "shopper-1")
	require.NoError(t, err)

	err = s.Mutate(ctx, addProduct("a", 1000))

	assert.ErrorContains(t, err, "disk full")
	// the in-memory cart keeps the change
	assert.Len(t, s.Snapshot().Items, 1)
}

func TestSession_CheckoutAndConfirm(t *testing.T) {
	m, cartStore := newTestManager(t)
	ctx := context.Background()
	s, err := m.Get(ctx, "shopper-1")
	require.NoError(t, err)
	require.NoError(t, s.Mutate(ctx, addProduct("a", 1000)))
	require.NoError(t, s.Mutate(ctx, addProduct("b", 2550)))

	cs, err := s.Checkout(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3550), cs.Total)
	assert.Equal(t, checkout.StateRedirected, s.CheckoutState())

	owner, ok := m.Lookup(cs.ID)
	require.True(t, ok)
	assert.Same(t, s, owner)

	require.NoError(t, m.Deliver(ctx, checkout.Outcome{SessionID: cs.ID, Type: checkout.OutcomeConfirmed}))

	assert.True(t, s.Snapshot().IsEmpty())
	saved, _ := cartStore.Saved("shopper-1")
	assert.Empty(t, saved.Items)
	assert.Equal(t, uint64(1), saved.Epoch)

	err = m.Deliver(ctx, checkout.Outcome{SessionID: cs.ID, Type: checkout.OutcomeConfirmed})
	assert.ErrorIs(t, err, checkout.ErrSessionFinished)
}

func TestManager_Deliver_UnknownCheckout(t *testing.T) {
	m, _ := newTestManager(t)

	err := m.Deliver(context.Background(), checkout.Outcome{SessionID: "nope", Type: checkout.OutcomeFailed})

	assert.ErrorIs(t, err, checkout.ErrUnknownSession)
}

func TestManager_Sweep(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	_, err := m.Get(ctx, "idle")
	require.NoError(t, err)
	busy, err := m.Get(ctx, "busy")
	require.NoError(t, err)
	require.NoError(t, busy.Mutate(ctx, addProduct("a", 100)))
	cs, err := busy.Checkout(ctx)
	require.NoError(t, err)

	dropped := m.Sweep(time.Now().Add(time.Minute))

	assert.Equal(t, 1, dropped)
	assert.Equal(t, 1, m.Len())
	_, ok := m.Lookup(cs.ID)
	assert.True(t, ok)
}

// ============================================
// Dispatcher Tests
// ============================================

func TestDispatcher_DeliversInOrder(t *testing.T) {
	m, _ := newTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := m.Get(ctx, "shopper-1")
	require.NoError(t, err)
	require.NoError(t, s.Mutate(ctx, addProduct("a", 100)))
	cs, err := s.Checkout(ctx)
	require.NoError(t, err)
	s.Drain()

	d := NewDispatcher(m, 4, zerolog.Nop())
	var mu sync.Mutex
	var results []error
	d.OnDelivered = func(_ checkout.Outcome, err error) {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, err)
	}
	go d.Run(ctx)

	require.NoError(t, d.Submit(ctx, checkout.Outcome{SessionID: cs.ID, Type: checkout.OutcomeFailed, Reason: "expired"}))
	require.NoError(t, d.Submit(ctx, checkout.Outcome{SessionID: cs.ID, Type: checkout.OutcomeConfirmed}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(results) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.NoError(t, results[0])
	assert.ErrorIs(t, results[1], checkout.ErrSessionFinished)
	assert.Len(t, s.Snapshot().Items, 1)

	events := s.Drain()
	require.Len(t, events, 1)
	assert.Equal(t, "expired", events[0].Message)
}

func TestDispatcher_Submit_RejectsInvalidOutcome(t *testing.T) {
	m, _ := newTestManager(t)
	d := NewDispatcher(m, 1, zerolog.Nop())

	assert.Error(t, d.Submit(context.Background(), checkout.Outcome{Type: checkout.OutcomeConfirmed}))
}

func TestDispatcher_Submit_FullQueueHonoursContext(t *testing.T) {
	m, _ := newTestManager(t)
	d := NewDispatcher(m, 1, zerolog.Nop())
	out := checkout.Outcome{SessionID: "cs", Type: checkout.OutcomeConfirmed}
	require.NoError(t, d.Submit(context.Background(), out))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, d.Submit(ctx, out), context.DeadlineExceeded)
}
