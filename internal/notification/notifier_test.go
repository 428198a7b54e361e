package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Notify(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

type publishCall struct {
	key   string
	value any
}

type fakePublisher struct {
	calls []publishCall
	err   error
}

func (p *fakePublisher) Publish(_ context.Context, key string, value any) error {
	p.calls = append(p.calls, publishCall{key: key, value: value})
	return p.err
}

// ============================================
// Feed Tests
// ============================================

func TestFeed_DrainInOrder(t *testing.T) {
	feed := NewFeed(10)
	ctx := context.Background()

	feed.Notify(ctx, ItemAdded("Mug"))
	feed.Notify(ctx, CheckoutStarted())
	assert.Equal(t, 2, feed.Pending())

	events := feed.Drain()

	require.Len(t, events, 2)
	assert.Equal(t, KindItemAdded, events[0].Kind)
	assert.Equal(t, KindCheckoutStarted, events[1].Kind)
	assert.Zero(t, feed.Pending())
	assert.NotNil(t, feed.Drain())
	assert.Empty(t, feed.Drain())
}

func TestFeed_DropsOldestWhenFull(t *testing.T) {
	feed := NewFeed(3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		feed.Notify(ctx, ItemAdded(fmt.Sprintf("item-%d", i)))
	}

	events := feed.Drain()
	require.Len(t, events, 3)
	assert.Equal(t, "item-2", events[0].ProductTitle)
	assert.Equal(t, "item-4", events[2].ProductTitle)
}

func TestNewFeed_DefaultSize(t *testing.T) {
	feed := NewFeed(0)
	for i := 0; i < DefaultFeedSize+5; i++ {
		feed.Notify(context.Background(), CheckoutStarted())
	}
	assert.Equal(t, DefaultFeedSize, feed.Pending())
}

// ============================================
// Fan-out Tests
// ============================================

func TestMulti_FansOutAndSkipsNil(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	multi := Multi{a, nil, b}

	multi.Notify(context.Background(), CheckoutRedirecting("cs_1"))

	require.Len(t, a.events, 1)
	require.Len(t, b.events, 1)
	assert.Equal(t, "cs_1", b.events[0].CheckoutID)
}

func TestWithSession_StampsKey(t *testing.T) {
	rec := &recorder{}
	local := &recorder{}
	n := Multi{local, WithSession("shopper-1", rec)}

	n.Notify(context.Background(), CheckoutConfirmed("cs_1"))

	require.Len(t, rec.events, 1)
	assert.Equal(t, "shopper-1", rec.events[0].SessionKey)
	assert.Empty(t, local.events[0].SessionKey)
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() { Discard.Notify(context.Background(), CheckoutStarted()) })
}

func TestEventTexts(t *testing.T) {
	added := ItemAdded("Poster")
	assert.Equal(t, "Added to Cart!", added.Heading)
	assert.Equal(t, "Poster has been added to your cart.", added.Message)
	assert.Equal(t, LevelSuccess, added.Level)

	failed := CheckoutFailed("Your cart changed during checkout.")
	assert.Equal(t, LevelError, failed.Level)
	assert.Equal(t, "Your cart changed during checkout.", failed.Message)
}

// ============================================
// Kafka Notifier Tests
// ============================================

func TestKafkaNotifier_PublishesKeyedBySession(t *testing.T) {
	pub := &fakePublisher{}
	n := NewKafkaNotifier(pub, zerolog.Nop())

	WithSession("shopper-1", n).Notify(context.Background(), ItemAdded("Mug"))

	require.Len(t, pub.calls, 1)
	assert.Equal(t, "shopper-1", pub.calls[0].key)
	e, ok := pub.calls[0].value.(Event)
	require.True(t, ok)
	assert.Equal(t, KindItemAdded, e.Kind)
}

func TestKafkaNotifier_PublishErrorIsSwallowed(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	n := NewKafkaNotifier(pub, zerolog.Nop())

	assert.NotPanics(t, func() { n.Notify(context.Background(), CheckoutStarted()) })
	assert.Len(t, pub.calls, 1)
}
