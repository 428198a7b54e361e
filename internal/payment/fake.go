package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/example/storefront/internal/domain/checkout"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// FakeConfig configures the development payment provider.
type FakeConfig struct {
	SuccessURL    string // shopper lands here after paying, with ?session_id=
	CancelURL     string
	WebhookURL    string // optional; receives signed outcome events
	WebhookSecret string
}

type fakeSession struct {
	ID       string
	Products []checkout.RequestItem
	Total    int64
	Status   string
	Created  time.Time
}

// FakeProvider is an in-process stand-in for the hosted payment provider. It
// implements the session-creation API, a hosted payment page and signed
// webhooks, so the storefront can be exercised end to end in development.
type FakeProvider struct {
	cfg    FakeConfig
	client *http.Client
	logger zerolog.Logger
	router http.Handler

	mu       sync.Mutex
	sessions map[string]*fakeSession
	byKey    map[string]string
}

func NewFakeProvider(cfg FakeConfig, logger zerolog.Logger) *FakeProvider {
	p := &FakeProvider{
		cfg:      cfg,
		client:   &http.Client{Timeout: 5 * time.Second},
		logger:   logger,
		sessions: make(map[string]*fakeSession),
		byKey:    make(map[string]string),
	}
	p.router = p.routes()
	return p
}

func (p *FakeProvider) routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/v1/checkout/sessions", p.handleCreate)
	r.Get("/pay/{id}", p.handlePage)
	r.Post("/pay/{id}", p.handleComplete)
	return r
}

func (p *FakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.router.ServeHTTP(w, r)
}

func (p *FakeProvider) handleCreate(w http.ResponseWriter, r *http.Request) {
	var body createSessionBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxResponseBody)).Decode(&body); err != nil {
		writeProviderError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(body.Products) == 0 {
		writeProviderError(w, http.StatusBadRequest, "products must not be empty")
		return
	}

	var total int64
	for _, item := range body.Products {
		if item.UnitPriceMinor <= 0 || item.Quantity <= 0 {
			writeProviderError(w, http.StatusBadRequest, "price and quantity must be positive")
			return
		}
		total += item.UnitPriceMinor * int64(item.Quantity)
	}

	key := r.Header.Get(IdempotencyKeyHeader)

	p.mu.Lock()
	if id, ok := p.byKey[key]; ok && key != "" {
		p.mu.Unlock()
		writeJSON(w, http.StatusOK, createSessionResponse{ID: id})
		return
	}
	sess := &fakeSession{
		ID:       "cs_fake_" + uuid.New().String(),
		Products: body.Products,
		Total:    total,
		Status:   "open",
		Created:  time.Now().UTC(),
	}
	p.sessions[sess.ID] = sess
	if key != "" {
		p.byKey[key] = sess.ID
	}
	p.mu.Unlock()

	p.logger.Info().Str("session_id", sess.ID).Int64("total", total).Msg("fake checkout session created")
	writeJSON(w, http.StatusOK, createSessionResponse{ID: sess.ID})
}

var payPage = template.Must(template.New("pay").Parse(`<!doctype html>
<html><body>
<h1>Fake payment</h1>
<ul>{{range .Products}}<li>{{.Name}} x {{.Quantity}}</li>{{end}}</ul>
<p>Total: {{.Total}}</p>
<form method="post"><button name="result" value="paid">Pay</button>
<button name="result" value="cancelled">Cancel</button>
<button name="result" value="failed">Fail</button></form>
</body></html>`))

func (p *FakeProvider) handlePage(w http.ResponseWriter, r *http.Request) {
	sess, ok := p.session(chi.URLParam(r, "id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := payPage.Execute(w, sess); err != nil {
		p.logger.Error().Err(err).Msg("render fake payment page")
	}
}

func (p *FakeProvider) handleComplete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result := r.FormValue("result")

	p.mu.Lock()
	sess, ok := p.sessions[id]
	if ok && sess.Status == "open" {
		sess.Status = result
	}
	p.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}

	var eventType, target string
	switch result {
	case "paid":
		eventType, target = EventSessionCompleted, p.cfg.SuccessURL
	case "failed":
		eventType, target = EventAsyncPaymentFailed, p.cfg.CancelURL
	default:
		eventType, target = EventSessionExpired, p.cfg.CancelURL
	}

	if err := p.SendWebhook(r.Context(), eventType, id); err != nil {
		p.logger.Error().Err(err).Str("session_id", id).Msg("fake webhook delivery failed")
	}

	if target == "" {
		writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": result})
		return
	}
	http.Redirect(w, r, withSessionID(target, id), http.StatusSeeOther)
}

// SendWebhook posts a signed event for sessionID to the configured webhook
// URL. It is a no-op when no URL is configured.
func (p *FakeProvider) SendWebhook(ctx context.Context, eventType, sessionID string) error {
	if p.cfg.WebhookURL == "" {
		return nil
	}
	e := NewWebhookEvent(eventType, sessionID)
	e.ID = "evt_" + uuid.New().String()
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), http.MethodPost, p.cfg.WebhookURL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, SignWebhook(p.cfg.WebhookSecret, b, time.Now()))

	res, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return fmt.Errorf("webhook call failed status=%d", res.StatusCode)
	}
	return nil
}

func (p *FakeProvider) session(id string) (fakeSession, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sess, ok := p.sessions[id]
	if !ok {
		return fakeSession{}, false
	}
	return *sess, true
}

func withSessionID(target, id string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	q := u.Query()
	q.Set("session_id", id)
	u.RawQuery = q.Encode()
	return u.String()
}

func writeProviderError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, createSessionResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
