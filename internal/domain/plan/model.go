package plan

import (
	"encoding/hex"
	"encoding/json"
	"errors"

	"golang.org/x/crypto/blake2b"
)

// WeeksPerSeason is the fixed number of weeks in a season plan.
const WeeksPerSeason = 12

// DefaultMaxPerWeek is the per-type weekly cap used when a plan has none.
const DefaultMaxPerWeek = 5

// ExerciseType identifies the training-equipment variant an exercise is built for.
type ExerciseType string

// Exercise type constants
const (
	TypePrimary   ExerciseType = "primary"
	TypeAlternate ExerciseType = "alternate"
)

// ValidTypes contains all valid exercise types.
var ValidTypes = []ExerciseType{TypePrimary, TypeAlternate}

// IsValid reports whether t is one of the two supported types.
func (t ExerciseType) IsValid() bool {
	return t == TypePrimary || t == TypeAlternate
}

// Rejection reasons returned by AddToWeek.
const (
	ReasonInvalidWeek = "invalid-week"
	ReasonDuplicate   = "duplicate"
	ReasonFull        = "full"
	ReasonInvalidType = "invalid-type"
)

// Domain errors
var (
	ErrInvalidWeek       = errors.New("week must be between 1 and 12")
	ErrInvalidMaxPerWeek = errors.New("max per week must be at least 1")
	ErrWeekCount         = errors.New("season plan must contain exactly 12 weeks")
)

// PlannedExercise is one entry in a week. The name doubles as the identifier.
type PlannedExercise struct {
	Name string       `json:"name"`
	Type ExerciseType `json:"type"`
}

// WeekPlan holds the ordered exercises for one week.
type WeekPlan struct {
	Week      int               `json:"week"`
	Exercises []PlannedExercise `json:"exercises"`
}

// SeasonPlan is the full 12-week plan for one coach.
type SeasonPlan struct {
	Weeks      []WeekPlan `json:"weeks"`
	MaxPerWeek int        `json:"maxPerWeek"`
}

// AddResult is the typed outcome of an add operation.
type AddResult struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// EmptyWeeks returns 12 empty weeks numbered 1..12.
func EmptyWeeks() []WeekPlan {
	weeks := make([]WeekPlan, WeeksPerSeason)
	for i := range weeks {
		weeks[i] = WeekPlan{Week: i + 1, Exercises: []PlannedExercise{}}
	}
	return weeks
}

// NewSeasonPlan returns an empty plan with the given weekly cap.
// PRE: none
// POST: Returns 12 empty weeks; MaxPerWeek falls back to DefaultMaxPerWeek when maxPerWeek < 1
func NewSeasonPlan(maxPerWeek int) SeasonPlan {
	if maxPerWeek < 1 {
		maxPerWeek = DefaultMaxPerWeek
	}
	return SeasonPlan{Weeks: EmptyWeeks(), MaxPerWeek: maxPerWeek}
}

// Clone returns a deep copy that shares no slices with p.
// INVARIANT: p is not mutated
func (p SeasonPlan) Clone() SeasonPlan {
	out := SeasonPlan{MaxPerWeek: p.MaxPerWeek, Weeks: make([]WeekPlan, len(p.Weeks))}
	for i, w := range p.Weeks {
		ex := make([]PlannedExercise, len(w.Exercises))
		copy(ex, w.Exercises)
		out.Weeks[i] = WeekPlan{Week: w.Week, Exercises: ex}
	}
	return out
}

// Validate checks the structural invariants of a season plan.
// PRE: none
// POST: Returns nil if the plan has 12 correctly numbered weeks and a positive cap
func (p SeasonPlan) Validate() error {
	if len(p.Weeks) != WeeksPerSeason {
		return ErrWeekCount
	}
	for i, w := range p.Weeks {
		if w.Week != i+1 {
			return ErrInvalidWeek
		}
	}
	if p.MaxPerWeek < 1 {
		return ErrInvalidMaxPerWeek
	}
	return nil
}

// ValidWeek reports whether week is within 1..12.
func ValidWeek(week int) bool {
	return week >= 1 && week <= WeeksPerSeason
}

// CheckAdd decides whether an exercise may be appended to a week.
// Every path that adds exercises goes through this check.
// PRE: none
// POST: Returns {OK:true} when the entry fits; a typed rejection otherwise
// INVARIANT: w is not mutated
func CheckAdd(w WeekPlan, maxPerWeek int, e PlannedExercise) AddResult {
	if !e.Type.IsValid() {
		return AddResult{Reason: ReasonInvalidType}
	}
	sameType := 0
	for _, existing := range w.Exercises {
		if existing.Name == e.Name && existing.Type == e.Type {
			return AddResult{Reason: ReasonDuplicate}
		}
		if existing.Type == e.Type {
			sameType++
		}
	}
	if sameType >= maxPerWeek {
		return AddResult{Reason: ReasonFull}
	}
	return AddResult{OK: true}
}

// CountType returns how many entries of type t a week holds.
func (w WeekPlan) CountType(t ExerciseType) int {
	n := 0
	for _, e := range w.Exercises {
		if e.Type == t {
			n++
		}
	}
	return n
}

// Fingerprint returns a deterministic digest of the plan content.
// Two plans with the same weeks and cap always share a fingerprint;
// nil and empty exercise lists are treated alike.
func Fingerprint(p SeasonPlan) string {
	data, err := json.Marshal(p.Clone())
	if err != nil {
		// SeasonPlan holds only strings and ints; Marshal cannot fail.
		return ""
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SyncStatus is the process-local state of plan synchronization.
type SyncStatus string

// Sync status constants
const (
	SyncIdle    SyncStatus = "idle"
	SyncSyncing SyncStatus = "syncing"
	SyncOffline SyncStatus = "offline"
	SyncError   SyncStatus = "error"
)
