package checkout

import (
	"fmt"
	"math"
	"time"

	"github.com/example/storefront/internal/domain/cart"
)

// RequestItem is one line of the session-creation request.
type RequestItem struct {
	Name           string `json:"name"`
	UnitPriceMinor int64  `json:"price"`
	Quantity       int    `json:"quantity"`
	ImageRef       string `json:"imageUrl,omitempty"`
}

// Request is what the orchestrator sends to the payment provider.
type Request struct {
	Items          []RequestItem `json:"products"`
	Total          int64         `json:"-"`
	IdempotencyKey string        `json:"-"`
}

// BuildRequest maps a cart snapshot to a session-creation request. It fails
// closed on anything the provider could misread as a different amount.
func BuildRequest(snap cart.Snapshot, idempotencyKey string) (Request, error) {
	if snap.IsEmpty() {
		return Request{}, ErrEmptyCart
	}
	if idempotencyKey == "" {
		return Request{}, fmt.Errorf("%w: idempotency key is required", ErrInvalidRequest)
	}

	items := make([]RequestItem, 0, len(snap.Items))
	var total int64
	for _, li := range snap.Items {
		if li.UnitPrice <= 0 {
			return Request{}, fmt.Errorf("%w: non-positive price for %s", ErrInvalidRequest, li.ProductID)
		}
		if li.Quantity <= 0 {
			return Request{}, fmt.Errorf("%w: non-positive quantity for %s", ErrInvalidRequest, li.ProductID)
		}
		if li.UnitPrice > math.MaxInt64/int64(li.Quantity) {
			return Request{}, fmt.Errorf("%w: line total overflows for %s", ErrInvalidRequest, li.ProductID)
		}
		line := li.UnitPrice * int64(li.Quantity)
		if total > math.MaxInt64-line {
			return Request{}, fmt.Errorf("%w: cart total overflows", ErrInvalidRequest)
		}
		total += line

		items = append(items, RequestItem{
			Name:           li.Title,
			UnitPriceMinor: li.UnitPrice,
			Quantity:       li.Quantity,
			ImageRef:       li.ImageRef,
		})
	}

	return Request{Items: items, Total: total, IdempotencyKey: idempotencyKey}, nil
}

// Session is one attempt to pay for a cart at the provider.
type Session struct {
	ID             string        `json:"id,omitempty"`
	Status         SessionStatus `json:"status"`
	Items          []RequestItem `json:"items"`
	Total          int64         `json:"total"`
	IdempotencyKey string        `json:"idempotency_key"`
	RedirectURL    string        `json:"redirect_url,omitempty"`
	FailureReason  string        `json:"failure_reason,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`

	// cart epoch observed when the request was built
	epoch uint64
}

func (s *Session) moveTo(target SessionStatus, now time.Time) error {
	if !s.Status.CanTransitionTo(target) {
		return transitionError(s.Status, target)
	}
	s.Status = target
	s.UpdatedAt = now
	return nil
}

func (s *Session) fail(reason string, now time.Time) {
	if s.Status.IsFinal() {
		return
	}
	s.Status = SessionFailed
	s.FailureReason = reason
	s.UpdatedAt = now
}

func (s *Session) clone() Session {
	c := *s
	c.Items = make([]RequestItem, len(s.Items))
	copy(c.Items, s.Items)
	return c
}

// OutcomeType is the provider's verdict on a session.
type OutcomeType string

const (
	OutcomeConfirmed OutcomeType = "confirmed"
	OutcomeFailed    OutcomeType = "failed"
)

// Outcome is the external event that finishes a redirected session.
type Outcome struct {
	SessionID string      `json:"session_id"`
	Type      OutcomeType `json:"type"`
	Reason    string      `json:"reason,omitempty"`
}

func (o Outcome) Validate() error {
	if o.SessionID == "" {
		return fmt.Errorf("%w: outcome without session id", ErrUnknownSession)
	}
	switch o.Type {
	case OutcomeConfirmed, OutcomeFailed:
		return nil
	default:
		return fmt.Errorf("%w: unknown outcome type %q", ErrInvalidTransition, o.Type)
	}
}
