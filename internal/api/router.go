package api

import (
	"net/http"
	"time"

	"github.com/example/storefront/internal/api/middleware"
	"github.com/example/storefront/internal/auth"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// RequestMetrics records one served request.
type RequestMetrics interface {
	ObserveRequest(route string, status int, elapsed time.Duration)
}

type RouterConfig struct {
	Handlers     *Handlers
	Tokens       *auth.TokenService
	Webhook      http.Handler // nil disables the webhook route
	Metrics      RequestMetrics
	MetricsPage  http.Handler
	CORSOrigins  []string
	SecureCookie bool
	Logger       zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(withLogging(cfg.Logger, cfg.Metrics))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{middleware.SessionTokenHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.MetricsPage != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsPage)
	}

	// Provider callbacks are authenticated by signature, not by session.
	if cfg.Webhook != nil {
		r.Method(http.MethodPost, "/api/webhooks/payment", cfg.Webhook)
	}

	h := cfg.Handlers
	r.Group(func(r chi.Router) {
		r.Use(middleware.Session(cfg.Tokens, cfg.SecureCookie, cfg.Logger))

		r.Route("/api", func(r chi.Router) {
			// Products
			r.Get("/products", h.GetProducts)
			r.Get("/products/{slug}", h.GetProduct)

			// Cart
			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.GetCart)
				r.Delete("/", h.ClearCart)
				r.Post("/items", h.AddToCart)
				r.Put("/items/{productID}", h.SetQuantity)
				r.Delete("/items/{productID}", h.RemoveFromCart)
				r.Post("/items/{productID}/increment", h.IncrementQuantity)
				r.Post("/items/{productID}/decrement", h.DecrementQuantity)
				r.Post("/checkout", h.StartCheckout)
			})

			// Checkout
			r.Get("/checkout", h.GetCheckout)
			r.Get("/notifications", h.GetNotifications)
		})

		r.Get("/checkout/success", h.CheckoutSuccess)
		r.Get("/checkout/cancel", h.CheckoutCancel)
	})

	return r
}

// withLogging logs each request and records it under its route pattern.
func withLogging(logger zerolog.Logger, metrics RequestMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			elapsed := time.Since(start)
			if metrics != nil {
				metrics.ObserveRequest(route, status, elapsed)
			}
			logger.Info().
				Str("method", r.Method).
				Str("route", route).
				Int("status", status).
				Dur("elapsed", elapsed).
				Str("request_id", chimw.GetReqID(r.Context())).
				Msg("request")
		})
	}
}
