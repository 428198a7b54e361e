package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/example/storefront/internal/domain/checkout"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// IdempotencyKeyHeader carries the per-attempt key to the provider.
const IdempotencyKeyHeader = "Idempotency-Key"

const maxResponseBody = 1 << 20

type createSessionBody struct {
	Products []checkout.RequestItem `json:"products"`
}

type createSessionResponse struct {
	ID    string `json:"id,omitempty"`
	Error string `json:"error,omitempty"`
}

// SessionClient creates checkout sessions over the provider's HTTP API.
// Repeated transport failures and 5xx answers open a circuit breaker, after
// which calls fail fast with checkout.ErrTransport.
type SessionClient struct {
	endpoint string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker[string]
	logger   zerolog.Logger
}

func NewSessionClient(endpoint string, timeout time.Duration, logger zerolog.Logger) *SessionClient {
	c := &SessionClient{
		endpoint: strings.TrimSpace(endpoint),
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "payment-sessions",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: isBreakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Stringer("from", from).Stringer("to", to).Msg("circuit breaker state changed")
		},
	})
	return c
}

// isBreakerSuccess counts provider rejections (4xx) as healthy responses.
func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	var pe *checkout.ProviderError
	if errors.As(err, &pe) {
		return pe.StatusCode < http.StatusInternalServerError
	}
	return false
}

func (c *SessionClient) CreateSession(ctx context.Context, req checkout.Request) (string, error) {
	id, err := c.breaker.Execute(func() (string, error) {
		return c.post(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("%w: %w", checkout.ErrTransport, err)
	}
	return id, err
}

func (c *SessionClient) post(ctx context.Context, req checkout.Request) (string, error) {
	if c.endpoint == "" {
		return "", fmt.Errorf("%w: session endpoint is not configured", checkout.ErrTransport)
	}

	b, err := json.Marshal(createSessionBody{Products: req.Items})
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %w", checkout.ErrTransport, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("%w: %w", checkout.ErrTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if req.IdempotencyKey != "" {
		httpReq.Header.Set(IdempotencyKeyHeader, req.IdempotencyKey)
	}

	res, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %w", checkout.ErrTransport, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBody))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %w", checkout.ErrTransport, err)
	}

	var out createSessionResponse
	decodeErr := json.Unmarshal(body, &out)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		msg := out.Error
		if decodeErr != nil || msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		c.logger.Warn().Int("status", res.StatusCode).Str("error", msg).Msg("payment provider rejected session")
		return "", &checkout.ProviderError{StatusCode: res.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return "", fmt.Errorf("%w: malformed response: %w", checkout.ErrPaymentProvider, decodeErr)
	}

	return out.ID, nil
}
