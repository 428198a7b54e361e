package webhook

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/example/storefront/internal/domain/checkout"
	"github.com/example/storefront/internal/infrastructure/kafka"
	"github.com/example/storefront/internal/payment"
	"github.com/rs/zerolog"
)

// Sink accepts verified checkout outcomes.
type Sink interface {
	Submit(ctx context.Context, out checkout.Outcome) error
}

// KafkaSink publishes outcomes to the outcomes topic keyed by checkout id.
type KafkaSink struct {
	Publisher kafka.Publisher
}

func (k KafkaSink) Submit(ctx context.Context, out checkout.Outcome) error {
	return k.Publisher.Publish(ctx, out.SessionID, out)
}

// Forwarder authenticates provider webhooks and hands the resulting outcome
// to a sink.
type Forwarder struct {
	verifier *payment.WebhookVerifier
	sink     Sink
	logger   zerolog.Logger
}

func NewForwarder(verifier *payment.WebhookVerifier, sink Sink, logger zerolog.Logger) *Forwarder {
	return &Forwarder{
		verifier: verifier,
		sink:     sink,
		logger:   logger.With().Str("component", "webhook").Logger(),
	}
}

// Forward processes one webhook delivery and returns the HTTP status the
// provider should see. A 5xx makes the provider retry.
func (f *Forwarder) Forward(ctx context.Context, body []byte, signature string) (int, error) {
	out, err := f.verifier.Parse(body, signature)
	switch {
	case errors.Is(err, payment.ErrIgnoredEvent):
		f.logger.Debug().Err(err).Msg("webhook ignored")
		return http.StatusOK, nil
	case errors.Is(err, payment.ErrInvalidSignature):
		f.logger.Warn().Err(err).Msg("webhook rejected")
		return http.StatusUnauthorized, err
	case err != nil:
		f.logger.Warn().Err(err).Msg("webhook malformed")
		return http.StatusBadRequest, err
	}

	if err := f.sink.Submit(ctx, out); err != nil {
		f.logger.Error().Err(err).Str("checkout_id", out.SessionID).Msg("failed to forward outcome")
		return http.StatusInternalServerError, fmt.Errorf("forward outcome: %w", err)
	}

	f.logger.Info().Str("checkout_id", out.SessionID).Str("outcome", string(out.Type)).Msg("webhook accepted")
	return http.StatusOK, nil
}

// ServeHTTP lets the forwarder serve webhooks directly.
func (f *Forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		http.Error(w, `{"error":"request body too large"}`, http.StatusRequestEntityTooLarge)
		return
	}
	status, err := f.Forward(r.Context(), body, r.Header.Get(payment.SignatureHeader))
	writeResult(w, status, err)
}

// HandleAPIGateway is the Lambda entry point behind API Gateway.
func (f *Forwarder) HandleAPIGateway(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return response(http.StatusBadRequest, err), nil
		}
		body = decoded
	}

	status, err := f.Forward(ctx, body, header(req.Headers, payment.SignatureHeader))
	return response(status, err), nil
}

// header does a case-insensitive lookup; API Gateway may lowercase names.
func header(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func response(status int, err error) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       resultBody(err),
	}
}

func resultBody(err error) string {
	if err != nil {
		b, _ := json.Marshal(map[string]string{"error": err.Error()})
		return string(b)
	}
	return `{"received":true}`
}
