// Package workspace composes the per-identity planning components and keeps
// them in step: entitlement changes feed favorites and exercise-type access,
// and identity changes tear down every listener and timer of the old identity.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"footballeyeq/internal/adapters/storage/document"
	"footballeyeq/internal/application/entitlements"
	"footballeyeq/internal/application/exercisetype"
	"footballeyeq/internal/application/favorites"
	"footballeyeq/internal/application/observe"
	"footballeyeq/internal/application/planstore"
	"footballeyeq/internal/application/plansync"
	"footballeyeq/internal/domain/entitlement"
	"footballeyeq/internal/domain/identity"
	"footballeyeq/internal/domain/plan"
)

// Planning gate errors
var (
	ErrPlannerDenied  = errors.New("planner is not available for this account")
	ErrSessionLocked  = errors.New("session is locked for this account tier")
	ErrTypeNotAllowed = errors.New("exercise type is not allowed for this account")
	ErrClosed         = errors.New("workspace is closed")
)

// Event kinds
const (
	EventPlan         = "plan"
	EventSync         = "sync"
	EventAccount      = "account"
	EventExerciseType = "exerciseType"
	EventFavorites    = "favorites"
	EventClosed       = "closed" // last event of a workspace
)

// Event is one change notification from any component of a workspace.
type Event struct {
	Kind string `json:"kind"`
	Data any    `json:"data"`
}

// Deps holds dependencies shared by every workspace.
type Deps struct {
	Docs            document.Store
	SuperAdminEmail string
	Clock           plansync.Clock
	// Async runs remote plan writes. Nil runs them on new goroutines.
	Async       func(func())
	IsOnline    func() bool
	OnPlanWrite func(userID string, start time.Time, err error)
}

// Workspace is the planning client of one signed-in identity.
type Workspace struct {
	id identity.Identity

	Plans        *planstore.Store
	Sync         *plansync.Engine
	Entitlements *entitlements.Resolver
	ExerciseType *exercisetype.Selector
	Favorites    *favorites.Engine

	mu     sync.Mutex
	closed bool
	unsubs []func()
	events observe.Hub[Event]
}

// Open builds a workspace for id, resolves its entitlements, starts the
// favorites listener, and begins loading the plan.
// PRE: id.UserID is non-empty
// POST: Entitlements are resolved; the plan loads through deps.Async
func Open(ctx context.Context, deps Deps, id identity.Identity) (*Workspace, error) {
	if id.UserID == "" {
		return nil, errors.New("workspace requires a user id")
	}
	plans := planstore.New()
	w := &Workspace{
		id:    id,
		Plans: plans,
		Sync: plansync.New(plansync.Deps{
			Docs:     deps.Docs,
			Plans:    plans,
			Clock:    deps.Clock,
			Async:    deps.Async,
			IsOnline: deps.IsOnline,
			OnWrite:  deps.OnPlanWrite,
		}),
		Entitlements: entitlements.New(entitlements.Deps{Docs: deps.Docs, SuperAdminEmail: deps.SuperAdminEmail}),
		ExerciseType: exercisetype.New(deps.Docs),
		Favorites:    favorites.New(deps.Docs),
	}

	w.unsubs = append(w.unsubs,
		w.Entitlements.Subscribe(func(v entitlement.View) {
			w.applyEntitlements(context.Background(), v)
			w.events.Publish(Event{Kind: EventAccount, Data: v})
		}),
		plans.Subscribe(func(p plan.SeasonPlan) { w.events.Publish(Event{Kind: EventPlan, Data: p}) }),
		w.Sync.Subscribe(func(s plansync.SyncState) { w.events.Publish(Event{Kind: EventSync, Data: s}) }),
		w.ExerciseType.Subscribe(func(s exercisetype.State) { w.events.Publish(Event{Kind: EventExerciseType, Data: s}) }),
		w.Favorites.Subscribe(func(v favorites.View) { w.events.Publish(Event{Kind: EventFavorites, Data: v}) }),
	)

	if deps.IsOnline != nil && !deps.IsOnline() {
		w.Sync.HandleConnectivity(false)
	}
	w.Entitlements.OnIdentity(ctx, &id)
	if err := w.Favorites.OnIdentity(id.UserID); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to open workspace: %w", err)
	}
	w.Sync.OnIdentity(&id)
	return w, nil
}

func (w *Workspace) applyEntitlements(ctx context.Context, v entitlement.View) {
	w.Favorites.SetEntitlements(v.Entitlements)
	w.ExerciseType.Apply(ctx, v.UserID, v.ExerciseType)
}

// Identity returns the identity the workspace belongs to.
func (w *Workspace) Identity() identity.Identity {
	return w.id
}

// Subscribe registers fn for every component event.
func (w *Workspace) Subscribe(fn func(Event)) func() {
	return w.events.Subscribe(fn)
}

// Snapshot is the full read model of a workspace.
type Snapshot struct {
	Plan         plan.SeasonPlan    `json:"plan"`
	Sync         plansync.SyncState `json:"sync"`
	Account      entitlement.View   `json:"account"`
	ExerciseType exercisetype.State `json:"exerciseType"`
	Favorites    favorites.View     `json:"favorites"`
}

// Snapshot returns the current state of every component.
func (w *Workspace) Snapshot() Snapshot {
	return Snapshot{
		Plan:         w.Plans.Snapshot(),
		Sync:         w.Sync.State(),
		Account:      w.Entitlements.Current(),
		ExerciseType: w.ExerciseType.Current(),
		Favorites:    w.Favorites.Current(),
	}
}

// RefreshAccount re-resolves entitlements, e.g. after joining a club.
func (w *Workspace) RefreshAccount(ctx context.Context) entitlement.View {
	return w.Entitlements.Refresh(ctx)
}

// SetOnline forwards a connectivity transition to the sync engine.
func (w *Workspace) SetOnline(online bool) {
	w.Sync.HandleConnectivity(online)
}

// checkPlanner verifies the account may plan in week with type t.
// Weeks outside 1..12 skip the session check; the store rejects them as invalid-week.
func (w *Workspace) checkPlanner(week int, t plan.ExerciseType) error {
	if w.isClosed() {
		return ErrClosed
	}
	v := w.Entitlements.Current()
	if !v.Allows(entitlement.ScreenPlanner) {
		return ErrPlannerDenied
	}
	if plan.ValidWeek(week) && !v.IsSuperAdmin && week > v.Entitlements.MaxSessions {
		return ErrSessionLocked
	}
	if t != "" && !v.ExerciseType.CanChoose && v.ExerciseType.Enforced != "" && t != v.ExerciseType.Enforced {
		return ErrTypeNotAllowed
	}
	return nil
}

// AddToWeek adds an exercise after checking the account may plan that week and type.
// POST: Capacity rejections are reported in the AddResult, not as errors
func (w *Workspace) AddToWeek(week int, name string, t plan.ExerciseType) (plan.AddResult, error) {
	if err := w.checkPlanner(week, t); err != nil {
		return plan.AddResult{}, err
	}
	return w.Plans.AddToWeek(week, name, t), nil
}

// RemoveFromWeek removes an entry by position. Removing is allowed from locked
// sessions so a downgraded account can clean up.
func (w *Workspace) RemoveFromWeek(week, index int) (bool, error) {
	if err := w.checkPlanner(0, ""); err != nil {
		return false, err
	}
	return w.Plans.RemoveFromWeek(week, index), nil
}

// RemoveExerciseFromAll removes every entry named name.
func (w *Workspace) RemoveExerciseFromAll(name string) (int, error) {
	if err := w.checkPlanner(0, ""); err != nil {
		return 0, err
	}
	return w.Plans.RemoveExerciseFromAll(name), nil
}

// ResetPlan empties every week.
func (w *Workspace) ResetPlan() error {
	if err := w.checkPlanner(0, ""); err != nil {
		return err
	}
	w.Plans.Reset()
	return nil
}

// ToggleFavorite toggles a favorite of the currently selected exercise type.
func (w *Workspace) ToggleFavorite(ctx context.Context, exerciseID string, t plan.ExerciseType) (favorites.ToggleResult, error) {
	if w.isClosed() {
		return favorites.ToggleResult{}, ErrClosed
	}
	if t == "" {
		t = w.ExerciseType.Current().Selected
	}
	return w.Favorites.Toggle(ctx, exerciseID, t)
}

// SignOut resets the local plan and every derived state. The remote plan is left alone.
// POST: The workspace is closed
func (w *Workspace) SignOut(ctx context.Context) {
	w.Sync.OnIdentity(nil)
	_ = w.Favorites.OnIdentity("")
	w.Entitlements.OnIdentity(ctx, nil)
	w.Close()
}

func (w *Workspace) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// Close stops every listener, timer and subscription. It is idempotent.
func (w *Workspace) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	unsubs := w.unsubs
	w.unsubs = nil
	w.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
	w.Sync.Close()
	w.Favorites.Close()
	w.events.Publish(Event{Kind: EventClosed})
}
