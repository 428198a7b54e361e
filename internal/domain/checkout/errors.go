package checkout

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyInProgress = errors.New("checkout already in progress")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInvalidRequest    = errors.New("invalid checkout request")
	ErrTransport         = errors.New("payment provider unreachable")
	ErrPaymentProvider   = errors.New("payment provider error")
	ErrRedirectFailure   = errors.New("redirect to payment page failed")
	ErrStaleSubmission   = errors.New("cart changed during checkout")
	ErrUnknownSession    = errors.New("unknown checkout session")
	ErrSessionFinished   = errors.New("checkout session already finished")
	ErrInvalidTransition = errors.New("invalid checkout state transition")
)

// ProviderError is a non-2xx answer from the session-creation endpoint.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("payment provider returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("payment provider returned status %d: %s", e.StatusCode, e.Message)
}

func (e *ProviderError) Is(target error) bool { return target == ErrPaymentProvider }

// Shopper-facing messages carried by CheckoutFailed events.
const (
	MessageProviderFailure  = "Something went wrong with the checkout."
	MessageTransportFailure = "An error occurred during the checkout process."
	MessageRedirectFailure  = "Could not open the payment page."
	MessageStaleSubmission  = "Your cart changed during checkout."
	MessagePaymentFailed    = "The payment was not completed."
)

// FailureMessage maps a checkout error to the text shown to the shopper.
func FailureMessage(err error) string {
	switch {
	case errors.Is(err, ErrStaleSubmission):
		return MessageStaleSubmission
	case errors.Is(err, ErrRedirectFailure):
		return MessageRedirectFailure
	case errors.Is(err, ErrPaymentProvider):
		return MessageProviderFailure
	default:
		return MessageTransportFailure
	}
}

// classify makes sure every error from a SessionCreator is either a transport
// or a provider error.
func classify(err error) error {
	if errors.Is(err, ErrTransport) || errors.Is(err, ErrPaymentProvider) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}
