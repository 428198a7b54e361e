package notification

import (
	"context"
	"sync"
)

// Notifier receives presentation events. Delivery is best effort: a notifier
// that cannot deliver logs the failure and returns.
type Notifier interface {
	Notify(ctx context.Context, e Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, e Event)

func (f NotifierFunc) Notify(ctx context.Context, e Event) { f(ctx, e) }

// Discard drops every event.
var Discard Notifier = NotifierFunc(func(context.Context, Event) {})

// Multi fans an event out to several notifiers in order.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, e Event) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, e)
		}
	}
}

// WithSession stamps every event with the shopper session key before
// passing it on.
func WithSession(key string, next Notifier) Notifier {
	return NotifierFunc(func(ctx context.Context, e Event) {
		e.SessionKey = key
		next.Notify(ctx, e)
	})
}

// DefaultFeedSize is the number of undelivered events a Feed keeps.
const DefaultFeedSize = 50

// Feed buffers events for a single shopper until the UI drains them.
// When full, the oldest event is dropped.
type Feed struct {
	mu     sync.Mutex
	events []Event
	size   int
}

func NewFeed(size int) *Feed {
	if size <= 0 {
		size = DefaultFeedSize
	}
	return &Feed{size: size}
}

func (f *Feed) Notify(_ context.Context, e Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.events) == f.size {
		f.events = f.events[1:]
	}
	f.events = append(f.events, e)
}

// Drain returns pending events in emission order and empties the feed.
func (f *Feed) Drain() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := f.events
	f.events = nil
	if out == nil {
		return []Event{}
	}
	return out
}

// Pending returns the number of undelivered events.
func (f *Feed) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}
