package notification

import (
	"fmt"
	"time"
)

// Kind identifies a presentation event.
type Kind string

const (
	KindItemAdded           Kind = "ItemAdded"
	KindCheckoutStarted     Kind = "CheckoutStarted"
	KindCheckoutFailed      Kind = "CheckoutFailed"
	KindCheckoutRedirecting Kind = "CheckoutRedirecting"
	KindCheckoutConfirmed   Kind = "CheckoutConfirmed"
)

// Level tells the UI how to render the event.
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelError   Level = "error"
)

// Event is a structured result emitted by the cart and checkout core for the
// presentation layer. The core never renders anything itself.
type Event struct {
	Kind         Kind      `json:"kind"`
	Level        Level     `json:"level"`
	Heading      string    `json:"heading"`
	Message      string    `json:"message,omitempty"`
	ProductTitle string    `json:"product_title,omitempty"`
	CheckoutID   string    `json:"checkout_id,omitempty"`
	SessionKey   string    `json:"session_key,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

func ItemAdded(title string) Event {
	return Event{
		Kind:         KindItemAdded,
		Level:        LevelSuccess,
		Heading:      "Added to Cart!",
		Message:      fmt.Sprintf("%s has been added to your cart.", title),
		ProductTitle: title,
		OccurredAt:   time.Now().UTC(),
	}
}

func CheckoutStarted() Event {
	return Event{
		Kind:       KindCheckoutStarted,
		Level:      LevelInfo,
		Heading:    "Processing...",
		OccurredAt: time.Now().UTC(),
	}
}

// CheckoutFailed carries a shopper-facing message; the shopper may retry.
func CheckoutFailed(message string) Event {
	return Event{
		Kind:       KindCheckoutFailed,
		Level:      LevelError,
		Heading:    "Checkout failed",
		Message:    message,
		OccurredAt: time.Now().UTC(),
	}
}

func CheckoutRedirecting(checkoutID string) Event {
	return Event{
		Kind:       KindCheckoutRedirecting,
		Level:      LevelInfo,
		Heading:    "Redirecting to payment...",
		CheckoutID: checkoutID,
		OccurredAt: time.Now().UTC(),
	}
}

func CheckoutConfirmed(checkoutID string) Event {
	return Event{
		Kind:       KindCheckoutConfirmed,
		Level:      LevelSuccess,
		Heading:    "Thank you for your order!",
		Message:    "Your payment was received.",
		CheckoutID: checkoutID,
		OccurredAt: time.Now().UTC(),
	}
}
