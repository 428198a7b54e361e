package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/example/storefront/internal/domain/checkout"
)

const (
	SignatureHeader  = "Payment-Signature"
	DefaultTolerance = 5 * time.Minute

	EventSessionCompleted    = "checkout.session.completed"
	EventSessionExpired      = "checkout.session.expired"
	EventAsyncPaymentFailed  = "checkout.session.async_payment_failed"
	ReasonSessionExpired     = "The checkout session expired."
	ReasonAsyncPaymentFailed = "The payment could not be completed."
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedWebhook = errors.New("malformed webhook payload")
	// ErrIgnoredEvent is returned for event types that carry no checkout outcome.
	ErrIgnoredEvent = errors.New("webhook event ignored")
)

type WebhookEvent struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID string `json:"id"`
		} `json:"object"`
	} `json:"data"`
}

// NewWebhookEvent builds the payload the provider sends for a session.
func NewWebhookEvent(eventType, sessionID string) WebhookEvent {
	var e WebhookEvent
	e.Type = eventType
	e.Data.Object.ID = sessionID
	return e
}

// SignWebhook returns the Payment-Signature header value for payload.
func SignWebhook(secret string, payload []byte, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	return fmt.Sprintf("t=%s,v1=%s", ts, computeSignature(secret, ts, payload))
}

func computeSignature(secret, ts string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// WebhookVerifier authenticates provider webhooks and turns them into
// checkout outcomes.
type WebhookVerifier struct {
	secret    string
	tolerance time.Duration
	now       func() time.Time
}

func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: secret, tolerance: DefaultTolerance, now: time.Now}
}

func (v *WebhookVerifier) Verify(payload []byte, header string) error {
	if v.secret == "" {
		return fmt.Errorf("%w: no webhook secret configured", ErrInvalidSignature)
	}

	var ts string
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		k, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = val
		case "v1":
			sigs = append(sigs, val)
		}
	}
	if ts == "" || len(sigs) == 0 {
		return fmt.Errorf("%w: missing timestamp or signature", ErrInvalidSignature)
	}

	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
	}
	age := v.now().Sub(time.Unix(sec, 0))
	if age > v.tolerance || age < -v.tolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
	}

	expected := computeSignature(v.secret, ts, payload)
	for _, sig := range sigs {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// Parse verifies payload and maps it to an outcome. Event types that do not
// finish a session return ErrIgnoredEvent.
func (v *WebhookVerifier) Parse(payload []byte, header string) (checkout.Outcome, error) {
	if err := v.Verify(payload, header); err != nil {
		return checkout.Outcome{}, err
	}
	return OutcomeFromEvent(payload)
}

// OutcomeFromEvent maps an already verified webhook body to an outcome.
func OutcomeFromEvent(payload []byte) (checkout.Outcome, error) {
	var e WebhookEvent
	if err := json.Unmarshal(payload, &e); err != nil {
		return checkout.Outcome{}, fmt.Errorf("%w: %w", ErrMalformedWebhook, err)
	}

	out := checkout.Outcome{SessionID: e.Data.Object.ID}
	switch e.Type {
	case EventSessionCompleted:
		out.Type = checkout.OutcomeConfirmed
	case EventSessionExpired:
		out.Type = checkout.OutcomeFailed
		out.Reason = ReasonSessionExpired
	case EventAsyncPaymentFailed:
		out.Type = checkout.OutcomeFailed
		out.Reason = ReasonAsyncPaymentFailed
	default:
		return checkout.Outcome{}, fmt.Errorf("%w: %s", ErrIgnoredEvent, e.Type)
	}
	if out.SessionID == "" {
		return checkout.Outcome{}, fmt.Errorf("%w: missing session id", ErrMalformedWebhook)
	}
	return out, nil
}
