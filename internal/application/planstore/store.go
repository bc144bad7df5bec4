// Package planstore holds the in-memory season plan of one user.
package planstore

import (
	"sync"

	"footballeyeq/internal/application/observe"
	"footballeyeq/internal/domain/plan"
)

// Store is the local season plan. Mutators are synchronous; every change
// replaces the touched week slices instead of editing them, so a snapshot handed
// out earlier never changes underneath its holder.
type Store struct {
	mu   sync.Mutex
	plan plan.SeasonPlan
	hub  observe.Hub[plan.SeasonPlan]
}

// New creates a store holding an empty plan with the default weekly cap.
func New() *Store {
	return &Store{plan: plan.NewSeasonPlan(plan.DefaultMaxPerWeek)}
}

// Snapshot returns a deep copy of the current plan.
func (s *Store) Snapshot() plan.SeasonPlan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plan.Clone()
}

// Subscribe registers fn for every committed change. fn receives its own copy.
func (s *Store) Subscribe(fn func(plan.SeasonPlan)) func() {
	return s.hub.Subscribe(fn)
}

// commit installs next and notifies subscribers outside the lock.
// PRE: s.mu is held; it is released by commit
func (s *Store) commit(next plan.SeasonPlan) {
	s.plan = next
	out := next.Clone()
	s.mu.Unlock()
	s.hub.Publish(out)
}

// withWeek returns a copy of the plan whose week slice and target week list are fresh.
func (s *Store) withWeek(week int, exercises []plan.PlannedExercise) plan.SeasonPlan {
	weeks := make([]plan.WeekPlan, len(s.plan.Weeks))
	copy(weeks, s.plan.Weeks)
	weeks[week-1] = plan.WeekPlan{Week: week, Exercises: exercises}
	return plan.SeasonPlan{Weeks: weeks, MaxPerWeek: s.plan.MaxPerWeek}
}

// AddToWeek appends an exercise to a week if it passes the duplicate and capacity rules.
// PRE: none
// POST: On OK the exercise is last in the week; otherwise state is unchanged
func (s *Store) AddToWeek(week int, name string, t plan.ExerciseType) plan.AddResult {
	results := s.AddManyToWeek(week, []plan.PlannedExercise{{Name: name, Type: t}})
	return results[0]
}

// AddManyToWeek adds several exercises in order, each through the same check as AddToWeek.
// Subscribers see one change when at least one entry was added.
// POST: len(result) == len(items)
func (s *Store) AddManyToWeek(week int, items []plan.PlannedExercise) []plan.AddResult {
	results := make([]plan.AddResult, len(items))
	s.mu.Lock()
	if !plan.ValidWeek(week) {
		s.mu.Unlock()
		for i := range results {
			results[i] = plan.AddResult{Reason: plan.ReasonInvalidWeek}
		}
		return results
	}

	current := s.plan.Weeks[week-1]
	working := plan.WeekPlan{Week: week, Exercises: append([]plan.PlannedExercise(nil), current.Exercises...)}
	added := false
	for i, e := range items {
		results[i] = plan.CheckAdd(working, s.plan.MaxPerWeek, e)
		if results[i].OK {
			working.Exercises = append(working.Exercises, e)
			added = true
		}
	}
	if !added {
		s.mu.Unlock()
		return results
	}
	s.commit(s.withWeek(week, working.Exercises))
	return results
}

// RemoveFromWeek removes the entry at index. Invalid weeks or indexes are a no-op.
// POST: Returns true if an entry was removed
func (s *Store) RemoveFromWeek(week, index int) bool {
	s.mu.Lock()
	if !plan.ValidWeek(week) {
		s.mu.Unlock()
		return false
	}
	current := s.plan.Weeks[week-1].Exercises
	if index < 0 || index >= len(current) {
		s.mu.Unlock()
		return false
	}
	next := make([]plan.PlannedExercise, 0, len(current)-1)
	next = append(next, current[:index]...)
	next = append(next, current[index+1:]...)
	s.commit(s.withWeek(week, next))
	return true
}

// RemoveExerciseFromAll removes every entry named name from every week, whatever its type.
// POST: Returns the number of entries removed
func (s *Store) RemoveExerciseFromAll(name string) int {
	s.mu.Lock()
	removed := 0
	weeks := make([]plan.WeekPlan, len(s.plan.Weeks))
	for i, w := range s.plan.Weeks {
		kept := make([]plan.PlannedExercise, 0, len(w.Exercises))
		for _, e := range w.Exercises {
			if e.Name == name {
				removed++
				continue
			}
			kept = append(kept, e)
		}
		weeks[i] = plan.WeekPlan{Week: w.Week, Exercises: kept}
	}
	if removed == 0 {
		s.mu.Unlock()
		return 0
	}
	s.commit(plan.SeasonPlan{Weeks: weeks, MaxPerWeek: s.plan.MaxPerWeek})
	return removed
}

// Reset empties every week and keeps the weekly cap.
func (s *Store) Reset() {
	s.mu.Lock()
	s.commit(plan.NewSeasonPlan(s.plan.MaxPerWeek))
}

// SetAll replaces the whole plan with a deep copy of p.
// PRE: p passes Validate
// POST: Returns the validation error and leaves state unchanged if p is malformed
func (s *Store) SetAll(p plan.SeasonPlan) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.commit(p.Clone())
	return nil
}

// SetMaxPerWeek changes the weekly cap. Entries already above a lowered cap are kept.
// PRE: n >= 1
func (s *Store) SetMaxPerWeek(n int) error {
	if n < 1 {
		return plan.ErrInvalidMaxPerWeek
	}
	s.mu.Lock()
	if s.plan.MaxPerWeek == n {
		s.mu.Unlock()
		return nil
	}
	next := s.plan.Clone()
	next.MaxPerWeek = n
	s.commit(next)
	return nil
}
