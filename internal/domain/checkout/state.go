package checkout

import "fmt"

// State is the orchestrator's position in the checkout protocol.
type State string

const (
	StateIdle             State = "idle"
	StateSubmitting       State = "submitting"
	StateRedirected       State = "redirected"
	StateConfirmed        State = "confirmed"
	StateFailed           State = "failed"
	StateSubmissionFailed State = "submission_failed"
)

// validTransitions defines allowed orchestrator transitions.
// Confirmed and Failed are terminal for one attempt and fall back to Idle.
// SubmissionFailed returns to Redirected when an earlier session is still
// awaiting its outcome.
var validTransitions = map[State][]State{
	StateIdle:             {StateSubmitting},
	StateSubmitting:       {StateRedirected, StateSubmissionFailed},
	StateRedirected:       {StateConfirmed, StateFailed, StateSubmitting},
	StateConfirmed:        {StateIdle},
	StateFailed:           {StateIdle},
	StateSubmissionFailed: {StateIdle, StateRedirected},
}

// CanTransitionTo checks if the state machine allows moving to target.
func (s State) CanTransitionTo(target State) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// SessionStatus is the lifecycle of one provider-side checkout session.
type SessionStatus string

const (
	SessionCreated    SessionStatus = "created"
	SessionRedirected SessionStatus = "redirected"
	SessionConfirmed  SessionStatus = "confirmed"
	SessionFailed     SessionStatus = "failed"
)

var validSessionTransitions = map[SessionStatus][]SessionStatus{
	SessionCreated:    {SessionRedirected, SessionFailed},
	SessionRedirected: {SessionConfirmed, SessionFailed},
	SessionConfirmed:  {}, // terminal state
	SessionFailed:     {}, // terminal state
}

func (s SessionStatus) CanTransitionTo(target SessionStatus) bool {
	for _, allowed := range validSessionTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsFinal reports whether no outcome can change the session anymore.
func (s SessionStatus) IsFinal() bool {
	return s == SessionConfirmed || s == SessionFailed
}

func transitionError(from, to fmt.Stringer) error {
	return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, from, to)
}

func (s State) String() string         { return string(s) }
func (s SessionStatus) String() string { return string(s) }
