package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/example/storefront/internal/auth"
	"github.com/rs/zerolog"
)

// SessionCookieName is the cookie carrying the signed session token.
const SessionCookieName = "storefront_session"

// SessionTokenHeader returns a freshly issued token to API clients.
const SessionTokenHeader = "X-Session-Token"

// respondError writes a JSON error response
func respondError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// ExtractToken extracts the session token from cookie or Authorization header
func ExtractToken(r *http.Request) string {
	// Try cookie first (for browser)
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return cookie.Value
	}
	// Fall back to Authorization header (for API clients)
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

type contextKey string

const (
	SessionContextKey contextKey = "session"
)

// Session resolves the shopper session for every request. A missing, expired
// or invalid token gets a new session; the new token is set as a cookie and
// echoed in the X-Session-Token header.
func Session(tokens *auth.TokenService, secureCookie bool, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenString := ExtractToken(r); tokenString != "" {
				claims, err := tokens.Validate(tokenString)
				if err == nil {
					next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), claims.SessionID())))
					return
				}
				logger.Debug().Err(err).Msg("replacing session token")
			}

			token, claims, err := tokens.Issue()
			if err != nil {
				logger.Error().Err(err).Msg("failed to issue session token")
				respondError(w, "could not start session", http.StatusInternalServerError)
				return
			}
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookieName,
				Value:    token,
				Path:     "/",
				Expires:  claims.ExpiresAt.Time,
				MaxAge:   int(tokens.TTL().Seconds()),
				HttpOnly: true,
				Secure:   secureCookie,
				SameSite: http.SameSiteLaxMode,
			})
			w.Header().Set(SessionTokenHeader, token)

			next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), claims.SessionID())))
		})
	}
}

// WithSessionID stores the session id in ctx.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, SessionContextKey, id)
}

// GetSessionID retrieves the session id from the request context
func GetSessionID(ctx context.Context) string {
	id, _ := ctx.Value(SessionContextKey).(string)
	return id
}
