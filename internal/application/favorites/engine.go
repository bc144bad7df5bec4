// Package favorites keeps a live, per-type bounded set of favorite exercises
// for the current identity. The local view is a projection of the remote
// records; toggling writes the remote record and waits for the listener.
package favorites

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"footballeyeq/internal/adapters/storage/document"
	"footballeyeq/internal/application/observe"
	"footballeyeq/internal/application/schema"
	"footballeyeq/internal/domain/entitlement"
	"footballeyeq/internal/domain/favorite"
	"footballeyeq/internal/domain/plan"
)

// Collection holds one document per (user, exercise).
const Collection = "favorites"

// Action is the outcome of a toggle.
type Action string

// Toggle outcomes
const (
	ActionAdded        Action = "added"
	ActionRemoved      Action = "removed"
	ActionLimitReached Action = "limit_reached"
	ActionSignedOut    Action = "signed_out"
)

// ToggleResult reports what a toggle did.
type ToggleResult struct {
	Action Action            `json:"action"`
	Type   plan.ExerciseType `json:"type"`
	Count  int               `json:"count"` // favorites of Type before the toggle
	Limit  int               `json:"limit"` // entitlement.Unbounded for no limit
}

// View is the observable favorites state.
type View struct {
	Authenticated bool                      `json:"authenticated"`
	Favorites     []favorite.Record         `json:"favorites"`
	Counts        map[plan.ExerciseType]int `json:"counts"`
	MaxFavorites  int                       `json:"maxFavorites"`
}

// Engine maintains the favorites of one client.
type Engine struct {
	docs document.Store

	// toggleMu serializes toggles so each limit check reads the previous write.
	toggleMu sync.Mutex

	mu      sync.Mutex
	userID  string
	ents    entitlement.Entitlements
	records map[string]favorite.Record // by exercise id
	gen     uint64
	cancel  context.CancelFunc
	unsub   func()

	hub observe.Hub[View]
}

// New creates a signed-out Engine with free-tier limits.
func New(docs document.Store) *Engine {
	return &Engine{
		docs:    docs,
		ents:    entitlement.Free,
		records: make(map[string]favorite.Record),
	}
}

// Subscribe registers fn for view changes.
func (e *Engine) Subscribe(fn func(View)) func() {
	return e.hub.Subscribe(fn)
}

// SetEntitlements changes the limits applied to later toggles.
func (e *Engine) SetEntitlements(ents entitlement.Entitlements) {
	e.mu.Lock()
	if e.ents == ents {
		e.mu.Unlock()
		return
	}
	e.ents = ents
	v := e.viewLocked()
	e.mu.Unlock()
	e.hub.Publish(v)
}

// OnIdentity replaces the live listener with one for userID. An empty
// userID signs out and clears the view.
// POST: No listener of a previous identity delivers after this returns
func (e *Engine) OnIdentity(userID string) error {
	e.mu.Lock()
	if userID != "" && userID == e.userID && e.unsub != nil {
		e.mu.Unlock()
		return nil
	}
	e.stopLocked()
	e.gen++
	gen := e.gen
	e.userID = userID
	e.records = make(map[string]favorite.Record)
	v := e.viewLocked()
	e.mu.Unlock()
	e.hub.Publish(v)

	if userID == "" {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	unsub, err := e.docs.Subscribe(ctx, Collection, document.Filter{Field: "userId", Value: userID}, func(snaps []document.Snapshot) {
		e.apply(gen, userID, snaps)
	})
	if err != nil {
		cancel()
		slog.Error("favorites_event", "event", "subscribe_failed", "user_id", userID, "error", err)
		return fmt.Errorf("failed to subscribe to favorites: %w", err)
	}

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		unsub()
		cancel()
		return nil
	}
	e.cancel, e.unsub = cancel, unsub
	e.mu.Unlock()
	return nil
}

// stopLocked ends the current listener.
// PRE: e.mu is held
func (e *Engine) stopLocked() {
	if e.unsub != nil {
		e.unsub()
		e.unsub = nil
	}
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

// Close ends the listener.
func (e *Engine) Close() {
	e.mu.Lock()
	e.gen++
	e.stopLocked()
	e.mu.Unlock()
}

// apply installs a listener delivery if it belongs to the current identity.
func (e *Engine) apply(gen uint64, userID string, snaps []document.Snapshot) {
	records := make(map[string]favorite.Record, len(snaps))
	for _, r := range schema.ValidateMany(snaps, schema.ParseFavorite) {
		if r.UserID == userID {
			records[r.ExerciseID] = r
		}
	}

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return
	}
	e.records = records
	v := e.viewLocked()
	e.mu.Unlock()
	e.hub.Publish(v)
}

// PRE: e.mu is held
func (e *Engine) viewLocked() View {
	list := make([]favorite.Record, 0, len(e.records))
	for _, r := range e.records {
		list = append(list, r)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ExerciseID < list[j].ExerciseID })
	return View{
		Authenticated: e.userID != "",
		Favorites:     list,
		Counts:        favorite.Counts(list),
		MaxFavorites:  e.ents.MaxFavorites,
	}
}

// Current returns the current view.
func (e *Engine) Current() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewLocked()
}

// IsFavorite reports whether exerciseID is a favorite.
func (e *Engine) IsFavorite(exerciseID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.records[exerciseID]
	return ok
}

// Counts returns the number of favorites per exercise type.
func (e *Engine) Counts() map[plan.ExerciseType]int {
	return e.Current().Counts
}

// Toggle removes exerciseID from the favorites, or adds it as type t when the
// tier allows another favorite of that type. Membership and the per-type
// count come from the remote records, not the listener view, so the limit
// holds however late the listener delivers.
// PRE: t is a valid exercise type
// POST: The local view changes only through the listener
func (e *Engine) Toggle(ctx context.Context, exerciseID string, t plan.ExerciseType) (ToggleResult, error) {
	e.toggleMu.Lock()
	defer e.toggleMu.Unlock()

	e.mu.Lock()
	userID := e.userID
	ents := e.ents
	e.mu.Unlock()

	res := ToggleResult{Type: t, Limit: ents.MaxFavorites}
	if userID == "" {
		res.Action = ActionSignedOut
		return res, nil
	}

	remote, err := e.remoteRecords(ctx, userID)
	if err != nil {
		return res, err
	}
	_, exists := remote[exerciseID]
	count := 0
	for _, r := range remote {
		if r.ExerciseType == t {
			count++
		}
	}
	res.Count = count
	allowed := ents.AllowsAnotherFavorite(count)

	rec := favorite.Record{UserID: userID, ExerciseID: exerciseID, ExerciseType: t}
	if err := rec.Validate(); err != nil {
		return res, err
	}
	id := favorite.DocID(userID, exerciseID)

	if exists {
		if err := e.docs.Delete(ctx, Collection, id); err != nil {
			return res, fmt.Errorf("failed to remove favorite: %w", err)
		}
		res.Action = ActionRemoved
		slog.Info("favorites_event", "event", "removed", "user_id", userID, "exercise_id", exerciseID)
		return res, nil
	}

	if !allowed {
		res.Action = ActionLimitReached
		slog.Info("favorites_event", "event", "limit_reached", "user_id", userID, "type", string(t), "count", count)
		return res, nil
	}
	err = e.docs.Set(ctx, Collection, id, document.Document{
		"userId":       userID,
		"exerciseId":   exerciseID,
		"exerciseType": string(t),
		"createdAt":    document.ServerTimestamp,
	})
	if err != nil {
		return res, fmt.Errorf("failed to add favorite: %w", err)
	}
	res.Action = ActionAdded
	slog.Info("favorites_event", "event", "added", "user_id", userID, "exercise_id", exerciseID, "type", string(t))
	return res, nil
}

// remoteRecords reads the stored favorites of userID keyed by exercise id.
func (e *Engine) remoteRecords(ctx context.Context, userID string) (map[string]favorite.Record, error) {
	snaps, err := e.docs.Query(ctx, Collection, document.Filter{Field: "userId", Value: userID})
	if err != nil {
		return nil, fmt.Errorf("failed to read favorites: %w", err)
	}
	records := make(map[string]favorite.Record, len(snaps))
	for _, r := range schema.ValidateMany(snaps, schema.ParseFavorite) {
		records[r.ExerciseID] = r
	}
	return records, nil
}
