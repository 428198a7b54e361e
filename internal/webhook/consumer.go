package webhook

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/storefront/internal/domain/checkout"
	"github.com/example/storefront/internal/infrastructure/kafka"
)

// OutcomeHandler decodes outcomes from the outcomes topic and passes them to
// sink, normally the session dispatcher.
func OutcomeHandler(sink Sink) kafka.MessageHandler {
	return func(ctx context.Context, key, value []byte) error {
		var out checkout.Outcome
		if err := json.Unmarshal(value, &out); err != nil {
			return fmt.Errorf("decode outcome %s: %w", key, err)
		}
		return sink.Submit(ctx, out)
	}
}
