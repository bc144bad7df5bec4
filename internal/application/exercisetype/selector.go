// Package exercisetype tracks which exercise type a coach is planning with,
// under the constraints of their account and club policy.
package exercisetype

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"footballeyeq/internal/adapters/storage/document"
	"footballeyeq/internal/application/observe"
	"footballeyeq/internal/application/schema"
	"footballeyeq/internal/domain/entitlement"
	"footballeyeq/internal/domain/plan"
)

// PreferenceCollection holds one preference document per user.
const PreferenceCollection = "userPreferences"

// Selector errors
var (
	ErrSelectionLocked = errors.New("exercise type is fixed by account or club policy")
	ErrInvalidType     = errors.New("exercise type must be primary or alternate")
)

// State is the observable selection.
type State struct {
	Selected  plan.ExerciseType `json:"selected"`
	CanChoose bool              `json:"canChoose"`
}

// Selector holds the selected exercise type for one client.
type Selector struct {
	docs document.Store

	mu         sync.Mutex
	userID     string
	state      State
	remembered plan.ExerciseType // last choice made in this process

	hub observe.Hub[State]
}

// New creates a Selector locked to primary until access is applied.
func New(docs document.Store) *Selector {
	return &Selector{
		docs:  docs,
		state: State{Selected: plan.TypePrimary},
	}
}

// Current returns the current selection.
func (s *Selector) Current() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn for selection changes.
func (s *Selector) Subscribe(fn func(State)) func() {
	return s.hub.Subscribe(fn)
}

// Apply installs new access rules for userID. When the type is enforced it is
// selected outright; otherwise the stored preference is loaded, falling back to
// the last choice made in this process.
// PRE: userID is empty for a signed-out client
func (s *Selector) Apply(ctx context.Context, userID string, access entitlement.ExerciseTypeAccess) State {
	if !access.CanChoose {
		enforced := access.Enforced
		if !enforced.IsValid() {
			enforced = plan.TypePrimary
		}
		return s.set(userID, State{Selected: enforced})
	}

	s.mu.Lock()
	selected := s.remembered
	s.mu.Unlock()
	if selected == "" {
		selected = plan.TypePrimary
	}
	if userID != "" {
		if t, ok := s.loadPreference(ctx, userID); ok {
			selected = t
		}
	}
	return s.set(userID, State{Selected: selected, CanChoose: true})
}

func (s *Selector) loadPreference(ctx context.Context, userID string) (plan.ExerciseType, bool) {
	snap, err := s.docs.Get(ctx, PreferenceCollection, userID)
	if errors.Is(err, document.ErrNotFound) {
		return "", false
	}
	if err != nil {
		slog.Warn("exercise_type_event", "event", "preference_load_failed", "user_id", userID, "error", err)
		return "", false
	}
	raw, _ := snap.Data["exerciseType"].(string)
	if raw == "" {
		return "", false
	}
	t, ok := schema.ParseExerciseType(raw)
	if !ok {
		slog.Warn("exercise_type_event", "event", "preference_invalid", "user_id", userID, "value", raw)
	}
	return t, ok
}

func (s *Selector) set(userID string, next State) State {
	s.mu.Lock()
	s.userID = userID
	changed := next != s.state
	s.state = next
	s.mu.Unlock()
	if changed {
		s.hub.Publish(next)
	}
	return next
}

// Select changes the selected type and persists it for a signed-in user.
// A failed write is logged; the selection still applies.
// POST: Returns ErrSelectionLocked when the type is enforced
func (s *Selector) Select(ctx context.Context, t plan.ExerciseType) error {
	if !t.IsValid() {
		return ErrInvalidType
	}
	s.mu.Lock()
	if !s.state.CanChoose {
		s.mu.Unlock()
		return ErrSelectionLocked
	}
	s.remembered = t
	userID := s.userID
	s.mu.Unlock()

	s.set(userID, State{Selected: t, CanChoose: true})

	if userID == "" {
		return nil
	}
	err := s.docs.Set(ctx, PreferenceCollection, userID, document.Document{
		"exerciseType": string(t),
		"updatedAt":    document.ServerTimestamp,
	}, document.Merge)
	if err != nil {
		slog.Warn("exercise_type_event", "event", "preference_save_failed", "user_id", userID, "error", err)
	}
	return nil
}
