package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/notification"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultTimeout bounds one session-creation call.
const DefaultTimeout = 15 * time.Second

// ReasonSuperseded marks a redirected session replaced by a newer checkout.
const ReasonSuperseded = "superseded"

// Cart is the part of the cart aggregate the orchestrator needs. The
// implementation must be safe to call from any goroutine.
type Cart interface {
	Snapshot() cart.Snapshot
	Epoch() uint64
	ClearIfEpoch(epoch uint64) bool
}

// SessionCreator opens a checkout session at the payment provider and
// returns its opaque id. Errors should wrap ErrTransport or ErrPaymentProvider.
type SessionCreator interface {
	CreateSession(ctx context.Context, req Request) (string, error)
}

// Redirector hands the shopper over to the provider's hosted payment page and
// returns the URL used.
type Redirector interface {
	Redirect(ctx context.Context, sessionID string) (string, error)
}

// Metrics receives checkout measurements.
type Metrics interface {
	ObserveSubmission(result string, elapsed time.Duration)
	IncOutcome(outcome string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveSubmission(string, time.Duration) {}
func (nopMetrics) IncOutcome(string)                       {}

type Option func(*Orchestrator)

func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithIDGenerator replaces the idempotency key generator.
func WithIDGenerator(gen func() string) Option {
	return func(o *Orchestrator) {
		if gen != nil {
			o.newKey = gen
		}
	}
}

// Orchestrator turns a cart into a provider checkout session and reconciles
// the outcome. One orchestrator serves one shopper session. At most one
// submission is in flight at a time.
type Orchestrator struct {
	cart       Cart
	creator    SessionCreator
	redirector Redirector
	notifier   notification.Notifier
	metrics    Metrics
	logger     zerolog.Logger
	timeout    time.Duration
	now        func() time.Time
	newKey     func() string

	mu       sync.Mutex
	state    State
	current  *Session
	sessions map[string]*Session
	// redirected session awaiting its outcome while a newer attempt is
	// submitting; it is superseded only once the newer one is redirected
	previous *Session
}

func NewOrchestrator(c Cart, creator SessionCreator, redirector Redirector, notifier notification.Notifier, opts ...Option) *Orchestrator {
	if notifier == nil {
		notifier = notification.Discard
	}
	o := &Orchestrator{
		cart:       c,
		creator:    creator,
		redirector: redirector,
		notifier:   notifier,
		metrics:    nopMetrics{},
		logger:     zerolog.Nop(),
		timeout:    DefaultTimeout,
		now:        func() time.Time { return time.Now().UTC() },
		newKey:     func() string { return uuid.New().String() },
		state:      StateIdle,
		sessions:   make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Checkout submits the current cart to the payment provider and redirects the
// shopper. It returns a copy of the redirected session.
func (o *Orchestrator) Checkout(ctx context.Context) (Session, error) {
	sess, snapEpoch, err := o.begin()
	if err != nil {
		return Session{}, err
	}
	o.notifier.Notify(ctx, notification.CheckoutStarted())

	// The provider call outlives the shopper's request.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.timeout)
	start := o.now()
	id, err := o.creator.CreateSession(callCtx, Request{
		Items:          sess.Items,
		Total:          sess.Total,
		IdempotencyKey: sess.IdempotencyKey,
	})
	cancel()
	elapsed := o.now().Sub(start)

	if err == nil && id == "" {
		err = fmt.Errorf("%w: response did not contain a session id", ErrPaymentProvider)
	}
	if err != nil {
		err = classify(err)
		o.abort(sess, err)
		o.metrics.ObserveSubmission(resultLabel(err), elapsed)
		o.logger.Warn().Err(err).Str("idempotency_key", sess.IdempotencyKey).Msg("checkout submission failed")
		o.notifier.Notify(ctx, notification.CheckoutFailed(FailureMessage(err)))
		return Session{}, err
	}

	o.mu.Lock()
	sess.ID = id
	o.sessions[id] = sess
	o.mu.Unlock()

	if o.cart.Epoch() != snapEpoch {
		err = fmt.Errorf("%w: session %s", ErrStaleSubmission, id)
		o.abort(sess, err)
		o.metrics.ObserveSubmission("stale", elapsed)
		o.logger.Info().Str("session_id", id).Msg("discarding stale checkout response")
		o.notifier.Notify(ctx, notification.CheckoutFailed(MessageStaleSubmission))
		return Session{}, err
	}

	o.notifier.Notify(ctx, notification.CheckoutRedirecting(id))
	url, err := o.redirector.Redirect(ctx, id)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrRedirectFailure, err)
		o.abort(sess, err)
		o.metrics.ObserveSubmission("redirect_failed", elapsed)
		o.logger.Warn().Err(err).Str("session_id", id).Msg("redirect failed")
		o.notifier.Notify(ctx, notification.CheckoutFailed(MessageRedirectFailure))
		return Session{}, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if err := sess.moveTo(SessionRedirected, o.now()); err != nil {
		return Session{}, err
	}
	sess.RedirectURL = url
	if err := o.transition(StateRedirected); err != nil {
		return Session{}, err
	}
	if prev := o.previous; prev != nil {
		o.previous = nil
		if !prev.Status.IsFinal() {
			prev.fail(ReasonSuperseded, o.now())
			o.logger.Info().Str("session_id", prev.ID).Msg("redirected session superseded by new checkout")
		}
	}
	o.metrics.ObserveSubmission("redirected", elapsed)
	o.logger.Info().Str("session_id", id).Int64("total", sess.Total).Msg("checkout redirected")
	return sess.clone(), nil
}

// begin moves the orchestrator into Submitting and builds the request from a
// snapshot of the cart taken now.
func (o *Orchestrator) begin() (*Session, uint64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == StateSubmitting {
		return nil, 0, ErrAlreadyInProgress
	}
	snap := o.cart.Snapshot()
	req, err := BuildRequest(snap, o.newKey())
	if err != nil {
		return nil, 0, err
	}

	now := o.now()
	o.previous = nil
	if o.state == StateRedirected && o.current != nil {
		o.previous = o.current
	}

	sess := &Session{
		Status:         SessionCreated,
		Items:          req.Items,
		Total:          req.Total,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
		epoch:          snap.Epoch,
	}
	if err := o.transition(StateSubmitting); err != nil {
		o.previous = nil
		return nil, 0, err
	}
	o.current = sess
	return sess, snap.Epoch, nil
}

// abort records a failed attempt: the session fails and the orchestrator
// passes through SubmissionFailed. If an earlier session is still awaiting
// its outcome it becomes current again and the orchestrator returns to
// Redirected; otherwise it returns to Idle.
func (o *Orchestrator) abort(sess *Session, cause error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	sess.fail(cause.Error(), o.now())
	if err := o.transition(StateSubmissionFailed); err != nil {
		o.logger.Error().Err(err).Msg("abort outside submission")
	}

	prev := o.previous
	o.previous = nil
	if prev != nil && prev.Status == SessionRedirected {
		o.current = prev
		_ = o.transition(StateRedirected)
		o.logger.Info().Str("session_id", prev.ID).Msg("restored redirected session after failed checkout")
		return
	}
	_ = o.transition(StateIdle)
}

// transition moves the state machine along one edge of validTransitions.
func (o *Orchestrator) transition(target State) error {
	if !o.state.CanTransitionTo(target) {
		return transitionError(o.state, target)
	}
	o.logger.Debug().Stringer("from", o.state).Stringer("to", target).Msg("checkout state")
	o.state = target
	return nil
}

// Deliver applies the provider's outcome for a redirected session.
// Delivering the same outcome twice returns ErrSessionFinished and has no
// further effect.
func (o *Orchestrator) Deliver(ctx context.Context, out Outcome) error {
	if err := out.Validate(); err != nil {
		return err
	}

	event, err := o.apply(out)
	if err != nil {
		return err
	}
	o.metrics.IncOutcome(string(out.Type))
	o.notifier.Notify(ctx, event)
	return nil
}

func (o *Orchestrator) apply(out Outcome) (notification.Event, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	sess, ok := o.sessions[out.SessionID]
	if !ok {
		return notification.Event{}, fmt.Errorf("%w: %s", ErrUnknownSession, out.SessionID)
	}
	if sess.Status.IsFinal() {
		return notification.Event{}, fmt.Errorf("%w: %s is %s", ErrSessionFinished, sess.ID, sess.Status)
	}

	now := o.now()
	if sess == o.previous {
		return o.settlePrevious(sess, out, now)
	}
	switch out.Type {
	case OutcomeConfirmed:
		if err := o.finish(sess, SessionConfirmed, StateConfirmed, now); err != nil {
			return notification.Event{}, err
		}
		if !o.cart.ClearIfEpoch(sess.epoch) {
			o.logger.Info().Str("session_id", sess.ID).Msg("cart already cleared since checkout")
		}
		o.logger.Info().Str("session_id", sess.ID).Msg("checkout confirmed")
		return notification.CheckoutConfirmed(sess.ID), nil

	default:
		if err := o.finish(sess, SessionFailed, StateFailed, now); err != nil {
			return notification.Event{}, err
		}
		sess.FailureReason = out.Reason
		o.logger.Info().Str("session_id", sess.ID).Str("reason", out.Reason).Msg("checkout failed")
		msg := out.Reason
		if msg == "" {
			msg = MessagePaymentFailed
		}
		return notification.CheckoutFailed(msg), nil
	}
}

// settlePrevious applies an outcome for the earlier redirected session while
// a newer attempt is submitting. The orchestrator stays in Submitting; a
// confirmation clears the cart, which makes the newer response stale.
func (o *Orchestrator) settlePrevious(sess *Session, out Outcome, now time.Time) (notification.Event, error) {
	o.previous = nil
	if out.Type == OutcomeConfirmed {
		if err := sess.moveTo(SessionConfirmed, now); err != nil {
			return notification.Event{}, err
		}
		if !o.cart.ClearIfEpoch(sess.epoch) {
			o.logger.Info().Str("session_id", sess.ID).Msg("cart already cleared since checkout")
		}
		o.logger.Info().Str("session_id", sess.ID).Msg("checkout confirmed during newer submission")
		return notification.CheckoutConfirmed(sess.ID), nil
	}

	if err := sess.moveTo(SessionFailed, now); err != nil {
		return notification.Event{}, err
	}
	sess.FailureReason = out.Reason
	o.logger.Info().Str("session_id", sess.ID).Str("reason", out.Reason).Msg("earlier checkout failed during newer submission")
	msg := out.Reason
	if msg == "" {
		msg = MessagePaymentFailed
	}
	return notification.CheckoutFailed(msg), nil
}

func (o *Orchestrator) finish(sess *Session, status SessionStatus, state State, now time.Time) error {
	if !o.state.CanTransitionTo(state) {
		return transitionError(o.state, state)
	}
	if err := sess.moveTo(status, now); err != nil {
		return err
	}
	_ = o.transition(state)
	return o.transition(StateIdle)
}

func (o *Orchestrator) OnConfirmed(ctx context.Context, sessionID string) error {
	return o.Deliver(ctx, Outcome{SessionID: sessionID, Type: OutcomeConfirmed})
}

func (o *Orchestrator) OnFailed(ctx context.Context, sessionID, reason string) error {
	return o.Deliver(ctx, Outcome{SessionID: sessionID, Type: OutcomeFailed, Reason: reason})
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Current returns a copy of the most recent session, if any.
func (o *Orchestrator) Current() (Session, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return Session{}, false
	}
	return o.current.clone(), true
}

// Lookup returns a copy of a session by provider id.
func (o *Orchestrator) Lookup(sessionID string) (Session, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	sess, ok := o.sessions[sessionID]
	if !ok {
		return Session{}, false
	}
	return sess.clone(), true
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, ErrPaymentProvider):
		return "provider_error"
	default:
		return "transport_error"
	}
}
