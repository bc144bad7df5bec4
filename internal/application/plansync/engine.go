// Package plansync keeps the local season plan and the user's remote plan
// document in step across sign-in, sign-out, connectivity changes and write failures.
package plansync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"footballeyeq/internal/adapters/storage/document"
	"footballeyeq/internal/application/observe"
	"footballeyeq/internal/application/planstore"
	"footballeyeq/internal/application/schema"
	"footballeyeq/internal/domain/identity"
	"footballeyeq/internal/domain/plan"
)

// Collection holds one plan document per user, keyed by user id.
const Collection = "planners"

// SyncState is the observable state of the engine.
type SyncState struct {
	Status      plan.SyncStatus `json:"status"`
	PendingSave bool            `json:"pendingSave"`
	Online      bool            `json:"online"`
	Ready       bool            `json:"ready"`
	LastError   string          `json:"lastError,omitempty"`
	LastSavedAt time.Time       `json:"lastSavedAt,omitempty"`
}

// Deps holds dependencies for the Engine.
type Deps struct {
	Docs  document.Store
	Plans *planstore.Store
	Clock Clock
	// Async runs remote I/O off the caller's goroutine. Tests run it inline.
	Async func(func())
	// IsOnline reports connectivity at the moment of asking. When nil the engine
	// uses the last value passed to HandleConnectivity.
	IsOnline func() bool
	Now      func() time.Time
	// OnWrite observes every remote write attempt.
	OnWrite     func(userID string, start time.Time, err error)
	RetryBase   time.Duration
	MaxAttempts int
}

// Engine synchronizes one Local Plan Store with the remote plan document of
// whichever identity is current.
type Engine struct {
	deps Deps

	// applyMu serializes replacements of the local plan (load and sign-out).
	applyMu sync.Mutex

	mu         sync.Mutex
	state      SyncState
	published  SyncState
	target     string // user being loaded or loaded
	loadedUser string // user whose plan is in the store
	session    uint64
	sessionCtx context.Context
	cancel     context.CancelFunc
	loading    bool
	lastSaved  string
	inFlight   bool
	dirty      bool
	retry      *RetryPolicy
	unsubPlan  func()

	hub observe.Hub[SyncState]
}

// New creates an Engine and starts watching the plan store.
// PRE: deps.Docs and deps.Plans are non-nil
// POST: The engine is online, signed out, and idle
func New(deps Deps) *Engine {
	if deps.Clock == nil {
		deps.Clock = RealClock
	}
	if deps.Async == nil {
		deps.Async = func(f func()) { go f() }
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.RetryBase <= 0 {
		deps.RetryBase = DefaultRetryBase
	}
	if deps.MaxAttempts <= 0 {
		deps.MaxAttempts = DefaultRetryAttempts
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		deps:       deps,
		state:      SyncState{Status: plan.SyncIdle, Online: true},
		sessionCtx: ctx,
		cancel:     cancel,
		retry:      NewRetryPolicy(deps.RetryBase, deps.MaxAttempts),
	}
	e.published = e.state
	e.unsubPlan = deps.Plans.Subscribe(func(plan.SeasonPlan) { e.handleLocalChange() })
	return e
}

// State returns the current sync state.
func (e *Engine) State() SyncState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Subscribe registers fn for sync state changes.
func (e *Engine) Subscribe(fn func(SyncState)) func() {
	return e.hub.Subscribe(fn)
}

// Retry exposes the retry policy for inspection.
func (e *Engine) Retry() (attempt int, nextDelay time.Duration, pending bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.retry.Attempt(), e.retry.NextDelay(), e.retry.Pending()
}

// Close stops listening to the plan store and cancels any retry or write.
func (e *Engine) Close() {
	e.mu.Lock()
	e.session++
	e.retry.Reset()
	e.cancel()
	e.mu.Unlock()
	e.unsubPlan()
}

// unlock releases e.mu, publishes the state if it changed, and then dispatches jobs.
// PRE: e.mu is held
func (e *Engine) unlock(jobs ...func()) {
	st := e.state
	changed := st != e.published
	e.published = st
	e.mu.Unlock()
	if changed {
		e.hub.Publish(st)
	}
	for _, job := range jobs {
		if job != nil {
			e.deps.Async(job)
		}
	}
}

func (e *Engine) isOnline() bool {
	if e.deps.IsOnline != nil {
		return e.deps.IsOnline()
	}
	return e.state.Online
}

// newSession invalidates everything tied to the previous identity.
// PRE: e.mu is held
func (e *Engine) newSession() uint64 {
	e.session++
	e.cancel()
	e.sessionCtx, e.cancel = context.WithCancel(context.Background())
	e.retry.Reset()
	// A write still running belongs to the old session; its outcome is discarded.
	e.inFlight = false
	e.dirty = false
	e.loadedUser = ""
	e.lastSaved = ""
	e.state.Ready = false
	e.state.PendingSave = false
	e.state.LastError = ""
	e.state.Status = plan.SyncIdle
	if !e.isOnline() {
		e.state.Status = plan.SyncOffline
	}
	return e.session
}

// OnIdentity reacts to an authentication change. A nil identity signs out:
// the local plan is emptied and the remote document is left alone.
// Reloading the identity that is already loaded is a no-op.
func (e *Engine) OnIdentity(id *identity.Identity) {
	e.mu.Lock()
	if id == nil {
		if e.target == "" && e.loadedUser == "" {
			e.unlock()
			return
		}
		e.target = ""
		e.newSession()
		e.loading = true
		e.unlock()

		e.applyMu.Lock()
		e.deps.Plans.Reset()
		e.applyMu.Unlock()

		e.mu.Lock()
		e.loading = false
		e.unlock()
		slog.Info("plan_sync_event", "event", "signed_out")
		return
	}

	if id.UserID == e.target {
		if e.loadedUser == id.UserID {
			e.state.Ready = true
		}
		e.unlock()
		return
	}

	e.target = id.UserID
	sess := e.newSession()
	ctx := e.sessionCtx
	uid := id.UserID
	e.unlock(func() { e.load(ctx, uid, sess) })
}

// load fetches or creates the remote plan and installs it locally.
func (e *Engine) load(ctx context.Context, uid string, sess uint64) {
	created := false
	var createErr error
	p := plan.NewSeasonPlan(plan.DefaultMaxPerWeek)

	snap, err := e.deps.Docs.Get(ctx, Collection, uid)
	switch {
	case errors.Is(err, document.ErrNotFound):
		created = true
		start := e.deps.Now()
		createErr = e.deps.Docs.Set(ctx, Collection, uid, schema.PlanDocument(p))
		e.observeWrite(uid, start, createErr)
	case err != nil:
		e.mu.Lock()
		if e.session == sess {
			e.target = ""
			e.state.Status = plan.SyncError
			e.state.LastError = err.Error()
		}
		e.unlock()
		slog.Error("plan_sync_event", "event", "load_failed", "user_id", uid, "error", err)
		return
	default:
		var clean bool
		p, clean = schema.ParsePlanDocument(uid, snap.Data)
		if !clean {
			slog.Warn("plan_sync_event", "event", "plan_normalized", "user_id", uid)
		}
	}

	e.applyMu.Lock()
	defer e.applyMu.Unlock()

	e.mu.Lock()
	if e.session != sess {
		e.unlock()
		slog.Debug("plan_sync_event", "event", "stale_load_discarded", "user_id", uid)
		return
	}
	e.loading = true
	e.unlock()

	if err := e.deps.Plans.SetAll(p); err != nil {
		slog.Error("plan_sync_event", "event", "load_rejected", "user_id", uid, "error", err)
	}

	e.mu.Lock()
	e.loading = false
	if e.session != sess {
		e.unlock()
		return
	}
	e.loadedUser = uid
	e.state.Ready = true
	if createErr != nil {
		e.state.Status = plan.SyncError
		e.state.PendingSave = true
		e.state.LastError = createErr.Error()
		e.scheduleRetry(sess)
		e.unlock()
		slog.Error("plan_sync_event", "event", "create_failed", "user_id", uid, "error", createErr)
		return
	}
	e.lastSaved = plan.Fingerprint(p)
	e.unlock()
	slog.Info("plan_sync_event", "event", "loaded", "user_id", uid, "created", created)
}

// handleLocalChange runs after every local plan mutation.
func (e *Engine) handleLocalChange() {
	e.mu.Lock()
	if e.loading || e.loadedUser == "" {
		e.unlock()
		return
	}
	// A fresh edit supersedes any backoff in progress.
	e.retry.Reset()

	if e.inFlight {
		e.dirty = true
		e.state.PendingSave = true
		e.unlock()
		return
	}

	if plan.Fingerprint(e.deps.Plans.Snapshot()) == e.lastSaved {
		e.state.PendingSave = false
		e.state.LastError = ""
		e.state.Status = plan.SyncIdle
		if !e.isOnline() {
			e.state.Status = plan.SyncOffline
		}
		e.unlock()
		return
	}
	e.unlock(e.requestSave())
}

// requestSave decides between queuing offline and writing now.
// PRE: e.mu is held
func (e *Engine) requestSave() func() {
	if !e.isOnline() {
		e.state.PendingSave = true
		e.state.Status = plan.SyncOffline
		return nil
	}
	if e.inFlight {
		e.dirty = true
		e.state.PendingSave = true
		return nil
	}
	return e.startWrite()
}

// startWrite marks a write in flight and returns the job that performs it.
// PRE: e.mu is held; no write is in flight
func (e *Engine) startWrite() func() {
	e.inFlight = true
	e.dirty = false
	e.state.Status = plan.SyncSyncing
	e.state.PendingSave = true

	sess := e.session
	ctx := e.sessionCtx
	uid := e.loadedUser
	p := e.deps.Plans.Snapshot()
	fp := plan.Fingerprint(p)
	doc := schema.PlanDocument(p)

	return func() {
		start := e.deps.Now()
		err := e.deps.Docs.Set(ctx, Collection, uid, doc, document.Merge)
		e.observeWrite(uid, start, err)
		e.finishWrite(sess, fp, err)
	}
}

func (e *Engine) observeWrite(uid string, start time.Time, err error) {
	if e.deps.OnWrite != nil {
		e.deps.OnWrite(uid, start, err)
	}
}

// finishWrite records the outcome of a write started in session sess.
func (e *Engine) finishWrite(sess uint64, fp string, err error) {
	e.mu.Lock()
	if sess != e.session {
		e.unlock()
		return
	}
	e.inFlight = false

	if err != nil {
		e.dirty = false
		e.state.Status = plan.SyncError
		e.state.PendingSave = true
		e.state.LastError = err.Error()
		slog.Warn("plan_sync_event", "event", "save_failed", "user_id", e.loadedUser, "attempt", e.retry.Attempt(), "error", err)
		e.scheduleRetry(sess)
		e.unlock()
		return
	}

	e.lastSaved = fp
	e.retry.Reset()
	e.state.LastError = ""
	e.state.LastSavedAt = e.deps.Now()

	if e.dirty && plan.Fingerprint(e.deps.Plans.Snapshot()) != e.lastSaved {
		e.unlock(e.requestSave())
		return
	}
	e.dirty = false
	e.state.Status = plan.SyncIdle
	e.state.PendingSave = false
	e.unlock()
}

// scheduleRetry arms the next backoff step, if any remain.
// PRE: e.mu is held
func (e *Engine) scheduleRetry(sess uint64) {
	delay, ok := e.retry.schedule(e.deps.Clock, func() { e.fireRetry(sess) })
	if !ok {
		slog.Warn("plan_sync_event", "event", "retries_exhausted", "user_id", e.loadedUser)
		return
	}
	slog.Info("plan_sync_event", "event", "retry_scheduled", "user_id", e.loadedUser, "attempt", e.retry.Attempt(), "delay", delay)
}

// fireRetry runs when a backoff timer elapses. Connectivity is checked again here.
func (e *Engine) fireRetry(sess uint64) {
	e.mu.Lock()
	if sess != e.session {
		e.unlock()
		return
	}
	e.retry.fired()
	if !e.isOnline() {
		e.state.Status = plan.SyncOffline
		e.state.PendingSave = true
		e.unlock()
		slog.Info("plan_sync_event", "event", "retry_skipped_offline", "user_id", e.loadedUser)
		return
	}
	if e.inFlight {
		e.dirty = true
		e.unlock()
		return
	}
	e.unlock(e.startWrite())
}

// HandleConnectivity applies an online/offline transition. Coming online with
// unsaved changes writes the latest plan at once.
func (e *Engine) HandleConnectivity(online bool) {
	e.mu.Lock()
	e.state.Online = online
	if e.loadedUser == "" {
		e.unlock()
		return
	}
	if !online {
		e.state.Status = plan.SyncOffline
		e.unlock()
		return
	}
	if !e.state.PendingSave {
		if e.state.Status == plan.SyncOffline {
			e.state.Status = plan.SyncIdle
		}
		e.unlock()
		return
	}
	e.retry.Reset()
	if e.inFlight {
		e.dirty = true
		e.unlock()
		return
	}
	e.unlock(e.startWrite())
}
