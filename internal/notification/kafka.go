package notification

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/example/storefront/internal/infrastructure/kafka"
)

// KafkaNotifier publishes presentation events to the storefront events topic,
// keyed by shopper session so one shopper's events stay ordered.
type KafkaNotifier struct {
	publisher kafka.Publisher
	logger    zerolog.Logger
}

func NewKafkaNotifier(publisher kafka.Publisher, logger zerolog.Logger) *KafkaNotifier {
	return &KafkaNotifier{
		publisher: publisher,
		logger:    logger.With().Str("component", "notifier").Logger(),
	}
}

func (n *KafkaNotifier) Notify(ctx context.Context, e Event) {
	if err := n.publisher.Publish(ctx, e.SessionKey, e); err != nil {
		n.logger.Error().Err(err).
			Str("kind", string(e.Kind)).
			Str("session", e.SessionKey).
			Msg("failed to publish presentation event")
	}
}
