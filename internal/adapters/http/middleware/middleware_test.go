package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"footballeyeq/internal/domain/identity"
)

type stubVerifier struct {
	tokens map[string]identity.Identity
}

func (v stubVerifier) Verify(token string) (identity.Identity, error) {
	id, ok := v.tokens[token]
	if !ok {
		return identity.Identity{}, errors.New("bad token")
	}
	return id, nil
}

var coach = identity.Identity{UserID: "u1", Email: "coach@example.com"}

func echoIdentity() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			w.Write([]byte("anonymous"))
			return
		}
		w.Write([]byte(id.UserID))
	})
}

func TestIdentity(t *testing.T) {
	handler := Identity(stubVerifier{tokens: map[string]identity.Identity{"good": coach}})(echoIdentity())

	tests := []struct {
		name       string
		header     string
		query      string
		upgrade    bool
		wantStatus int
		wantBody   string
	}{
		{"no token", "", "", false, http.StatusOK, "anonymous"},
		{"valid bearer", "Bearer good", "", false, http.StatusOK, "u1"},
		{"invalid bearer", "Bearer nope", "", false, http.StatusUnauthorized, ""},
		{"basic auth ignored", "Basic Zm9vOmJhcg==", "", false, http.StatusOK, "anonymous"},
		{"websocket query token", "", "good", true, http.StatusOK, "u1"},
		{"query token needs upgrade", "", "good", false, http.StatusOK, "anonymous"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/api/plan"
			if tt.query != "" {
				target += "?access_token=" + tt.query
			}
			req := httptest.NewRequest("GET", target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.upgrade {
				req.Header.Set("Upgrade", "websocket")
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && rr.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rr.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestRequireIdentity(t *testing.T) {
	handler := RequireIdentity(echoIdentity())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/api/plan", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", rr.Code)
	}

	req := httptest.NewRequest("GET", "/api/plan", nil)
	req = req.WithContext(ContextWithIdentity(req.Context(), coach))
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || rr.Body.String() != "u1" {
		t.Errorf("signed-in status = %d body = %q", rr.Code, rr.Body.String())
	}
}

func TestRateLimiter_RefillsPerInterval(t *testing.T) {
	rl := NewRateLimiter(2, time.Second)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("a") {
		t.Error("third request in the same interval should be limited")
	}
	if !rl.Allow("b") {
		t.Error("other clients have their own bucket")
	}
	now = now.Add(time.Second)
	if !rl.Allow("a") {
		t.Error("bucket should refill after an interval")
	}
}

func TestRateLimiter_SteadyRateUnderLimitIsAllowed(t *testing.T) {
	rl := NewRateLimiter(2, time.Second)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	denied := 0
	for i := 0; i < 20; i++ {
		if !rl.Allow("poller") {
			denied++
		}
		now = now.Add(600 * time.Millisecond)
	}
	if denied != 0 {
		t.Errorf("denied %d of 20 requests at 1.67 req/s with a limit of 2/s", denied)
	}
}

func TestRateLimiter_SustainedOverLimitIsDenied(t *testing.T) {
	rl := NewRateLimiter(2, time.Second)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	allowed := 0
	for i := 0; i < 40; i++ {
		if rl.Allow("burst") {
			allowed++
		}
		now = now.Add(250 * time.Millisecond)
	}
	// 10 seconds at 4 req/s against 2/s: the first bucket plus 2 per elapsed second.
	if allowed < 18 || allowed > 22 {
		t.Errorf("allowed %d of 40, want about 20", allowed)
	}
}

func TestRateLimiter_SweepsIdleVisitors(t *testing.T) {
	rl := NewRateLimiter(2, time.Second)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("idle")
	now = now.Add(visitorTTL + sweepEvery)
	rl.Allow("active")

	rl.mu.Lock()
	_, idleKept := rl.visitors["idle"]
	_, activeKept := rl.visitors["active"]
	rl.mu.Unlock()
	if idleKept || !activeKept {
		t.Errorf("idle kept = %v, active kept = %v", idleKept, activeKept)
	}
}

func TestRateLimit_KeysBySignedInUser(t *testing.T) {
	rl := NewRateLimiter(1, time.Hour)
	handler := RateLimit(rl)(okHandler(http.StatusOK))

	send := func(id *identity.Identity, remote string) int {
		req := httptest.NewRequest("GET", "/api/plan", nil)
		req.RemoteAddr = remote
		if id != nil {
			req = req.WithContext(ContextWithIdentity(req.Context(), *id))
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	if got := send(&coach, "10.0.0.1:1000"); got != http.StatusOK {
		t.Fatalf("first = %d", got)
	}
	if got := send(&coach, "10.0.0.2:1000"); got != http.StatusTooManyRequests {
		t.Errorf("same user from another address = %d, want 429", got)
	}
	if got := send(nil, "10.0.0.1:2000"); got != http.StatusOK {
		t.Errorf("anonymous caller = %d, want 200", got)
	}
}

func TestCSRF_ExemptsJSONAndBearer(t *testing.T) {
	handler := CSRF(CSRFConfig{Key: make([]byte, 32)})(okHandler(http.StatusNoContent))

	tests := []struct {
		name        string
		contentType string
		auth        string
		want        int
	}{
		{"json body", "application/json", "", http.StatusNoContent},
		{"bearer token", "", "Bearer abc", http.StatusNoContent},
		{"form post", "application/x-www-form-urlencoded", "", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/plan/reset", strings.NewReader(""))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	handler := CORS([]string{"https://app.example.com"})(okHandler(http.StatusOK))

	req := httptest.NewRequest("OPTIONS", "/api/plan", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Allow-Origin = %q", got)
	}

	req = httptest.NewRequest("GET", "/api/plan", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unknown origin got Allow-Origin = %q", got)
	}
}

func TestSecurityHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	SecurityHeaders(okHandler(http.StatusOK)).ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	for _, h := range []string{"Content-Security-Policy", "X-Frame-Options", "X-Content-Type-Options", "Referrer-Policy"} {
		if rr.Header().Get(h) == "" {
			t.Errorf("missing %s", h)
		}
	}
}
