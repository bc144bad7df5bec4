package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	identityAdapter "footballeyeq/internal/adapters/identity"
	"footballeyeq/internal/domain/identity"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

const identityContextKey contextKey = "identity"

// TokenVerifier turns a bearer token into an identity.
type TokenVerifier interface {
	Verify(token string) (identity.Identity, error)
}

// BearerFromRequest extracts the bearer token from the Authorization header.
// WebSocket handshakes cannot set headers from a browser, so they may pass
// the token as the access_token query parameter instead.
func BearerFromRequest(r *http.Request) (string, bool) {
	if token, ok := identityAdapter.BearerToken(r.Header.Get("Authorization")); ok {
		return token, true
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		if token := r.URL.Query().Get("access_token"); token != "" {
			return token, true
		}
	}
	return "", false
}

// Identity returns middleware that verifies the bearer token and sets the identity in context.
// Requests without a token pass through anonymously; an invalid token is rejected with 401.
func Identity(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerFromRequest(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			id, err := v.Verify(token)
			if err != nil {
				slog.Warn("auth_event", "event", "token_rejected", "path", r.URL.Path, "error", err)
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), id)))
		})
	}
}

// RequireIdentity blocks anonymous requests.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "sign in required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IdentityFromContext extracts the identity from the request context.
func IdentityFromContext(ctx context.Context) (identity.Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(identity.Identity)
	return id, ok
}

// ContextWithIdentity returns a context with the given identity set.
func ContextWithIdentity(ctx context.Context, id identity.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}
