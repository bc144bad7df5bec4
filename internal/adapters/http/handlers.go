package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"footballeyeq/internal/adapters/http/middleware"
	"footballeyeq/internal/application/workspace"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 64 << 10

// internalError logs the real error and returns a generic message to the client.
// This prevents leaking internal details per OWASP A05.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
func strictDecode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response_encode_failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// workspaceFor returns the caller's workspace, opening it on first use.
// POST: On false a response has been written
func (s *server) workspaceFor(w http.ResponseWriter, r *http.Request) (*workspace.Workspace, bool) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "sign in required")
		return nil, false
	}
	ws, err := s.deps.Registry.Acquire(r.Context(), id)
	if err != nil {
		internalError(w, err)
		return nil, false
	}
	return ws, true
}

// gateError maps workspace gate errors to responses. Authorization failures are
// never reported as 500.
func gateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, workspace.ErrPlannerDenied),
		errors.Is(err, workspace.ErrSessionLocked),
		errors.Is(err, workspace.ErrTypeNotAllowed):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, workspace.ErrClosed):
		writeError(w, http.StatusConflict, "session ended, retry the request")
	default:
		internalError(w, err)
	}
}

func pathInt(r *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(r.PathValue(name))
	return n, err == nil
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Docs.Ping(r.Context()); err != nil {
		slog.Warn("health_event", "event", "store_unreachable", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"online":     s.deps.Registry.Online(),
		"workspaces": s.deps.Registry.Len(),
	})
}

// allowOrigins is the WebSocket origin check: same host, or one of origins.
func allowOrigins(origins []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if slices.Contains(origins, "*") || slices.Contains(origins, origin) {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}

// trustedHosts strips the scheme from each origin for the CSRF referer check.
func trustedHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
		}
	}
	return hosts
}
