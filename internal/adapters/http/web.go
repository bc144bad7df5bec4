package web

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"footballeyeq/internal/adapters/email"
	"footballeyeq/internal/adapters/http/middleware"
	"footballeyeq/internal/adapters/http/perf"
	"footballeyeq/internal/adapters/storage/document"
	"footballeyeq/internal/application/workspace"
)

// Deps holds everything the handlers need.
type Deps struct {
	Registry *workspace.Registry
	Docs     document.Store
	Verifier middleware.TokenVerifier
	Sender   email.Sender
	Perf     *perf.Collector
	AppURL   string
	Now      func() time.Time
}

// Config holds HTTP-level settings.
type Config struct {
	CSRFKey            []byte
	Production         bool
	CORSOrigins        []string
	RateLimitPerSecond int
	SlowRequestMs      int
}

// DefaultRateLimitPerSecond is used when Config.RateLimitPerSecond is not set.
const DefaultRateLimitPerSecond = 20

type server struct {
	deps     Deps
	upgrader websocket.Upgrader
}

// NewMux wires HTTP handlers for the planning API.
// PRE: deps.Registry, deps.Docs and deps.Verifier are non-nil; cfg.CSRFKey is 32 bytes
func NewMux(cfg Config, deps Deps) http.Handler {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Sender == nil {
		deps.Sender = email.NewNoopSender()
	}
	s := &server{
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     allowOrigins(cfg.CORSOrigins),
		},
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	rate := cfg.RateLimitPerSecond
	if rate <= 0 {
		rate = DefaultRateLimitPerSecond
	}
	limiter := middleware.NewRateLimiter(rate, time.Second)

	// Outer to inner: SecurityHeaders -> CORS -> CSRF -> Identity -> RateLimit -> Timing -> Mux
	return middleware.Chain(mux,
		middleware.Timing(deps.Perf, cfg.SlowRequestMs),
		middleware.RateLimit(limiter),
		middleware.Identity(deps.Verifier),
		middleware.CSRF(middleware.CSRFConfig{
			Key:            cfg.CSRFKey,
			Secure:         cfg.Production,
			TrustedOrigins: trustedHosts(cfg.CORSOrigins),
		}),
		middleware.CORS(cfg.CORSOrigins),
		middleware.SecurityHeaders,
	)
}

func (s *server) registerRoutes(mux *http.ServeMux) {
	authed := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireIdentity(h)
	}

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.Handle("GET /api/exercises", authed(s.handleExercises))

	mux.Handle("GET /api/plan", authed(s.handleGetPlan))
	mux.Handle("POST /api/plan/weeks/{week}/exercises", authed(s.handleAddToWeek))
	mux.Handle("DELETE /api/plan/weeks/{week}/exercises/{index}", authed(s.handleRemoveFromWeek))
	mux.Handle("DELETE /api/plan/exercises/{name}", authed(s.handleRemoveExerciseFromAll))
	mux.Handle("POST /api/plan/reset", authed(s.handleResetPlan))
	mux.Handle("GET /api/plan/export", authed(s.handleExportPlan))
	mux.Handle("GET /api/sync", authed(s.handleSync))

	mux.Handle("GET /api/account", authed(s.handleAccount))
	mux.Handle("POST /api/account/refresh", authed(s.handleAccountRefresh))
	mux.Handle("GET /api/exercise-type", authed(s.handleGetExerciseType))
	mux.Handle("PUT /api/exercise-type", authed(s.handleSetExerciseType))

	mux.Handle("GET /api/favorites", authed(s.handleFavorites))
	mux.Handle("POST /api/favorites/toggle", authed(s.handleToggleFavorite))

	mux.Handle("POST /api/invites/redeem", authed(s.handleRedeemInvite))
	mux.Handle("POST /api/session/signout", authed(s.handleSignOut))
	mux.Handle("GET /api/events", authed(s.handleEvents))

	mux.Handle("GET /api/admin/perf", authed(s.handleAdminPerf))
}
