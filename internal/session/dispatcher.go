package session

import (
	"context"
	"errors"

	"github.com/example/storefront/internal/domain/checkout"
	"github.com/rs/zerolog"
)

// DefaultQueueSize is the number of outcomes a Dispatcher buffers.
const DefaultQueueSize = 256

// Dispatcher delivers checkout outcomes to sessions asynchronously, in the
// order they were submitted.
type Dispatcher struct {
	manager *Manager
	queue   chan checkout.Outcome
	logger  zerolog.Logger

	// OnDelivered, when set, is called after each delivery attempt.
	OnDelivered func(out checkout.Outcome, err error)
}

func NewDispatcher(m *Manager, size int, logger zerolog.Logger) *Dispatcher {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Dispatcher{
		manager: m,
		queue:   make(chan checkout.Outcome, size),
		logger:  logger,
	}
}

// Submit queues an outcome. It blocks while the queue is full and returns
// ctx.Err() if ctx ends first.
func (d *Dispatcher) Submit(ctx context.Context, out checkout.Outcome) error {
	if err := out.Validate(); err != nil {
		return err
	}
	select {
	case d.queue <- out:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run delivers queued outcomes until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info().Msg("outcome dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("outcome dispatcher stopped")
			return
		case out := <-d.queue:
			d.deliver(ctx, out)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, out checkout.Outcome) {
	err := d.manager.Deliver(ctx, out)
	switch {
	case err == nil:
		d.logger.Info().Str("checkout_id", out.SessionID).Str("outcome", string(out.Type)).Msg("outcome delivered")
	case errors.Is(err, checkout.ErrSessionFinished):
		d.logger.Debug().Str("checkout_id", out.SessionID).Msg("duplicate outcome ignored")
	case errors.Is(err, checkout.ErrUnknownSession):
		d.logger.Warn().Str("checkout_id", out.SessionID).Msg("outcome for unknown checkout")
	default:
		d.logger.Error().Err(err).Str("checkout_id", out.SessionID).Msg("failed to deliver outcome")
	}
	if d.OnDelivered != nil {
		d.OnDelivered(out, err)
	}
}
