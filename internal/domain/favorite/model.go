package favorite

import (
	"errors"
	"time"

	"footballeyeq/internal/domain/plan"
)

// Domain errors
var (
	ErrEmptyUserID     = errors.New("favorite user id cannot be empty")
	ErrEmptyExerciseID = errors.New("favorite exercise id cannot be empty")
	ErrInvalidType     = errors.New("favorite exercise type must be one of: primary, alternate")
)

// Record marks one exercise as a favorite of one user.
// Records are created and deleted, never updated.
type Record struct {
	UserID       string            `json:"userId"`
	ExerciseID   string            `json:"exerciseId"`
	ExerciseType plan.ExerciseType `json:"exerciseType"`
	CreatedAt    time.Time         `json:"createdAt"`
}

// DocID returns the store key of a favorite: one document per (user, exercise).
func DocID(userID, exerciseID string) string {
	return userID + "_" + exerciseID
}

// Validate checks if the Record has valid data.
// PRE: Record struct is populated
// POST: Returns nil if valid, error otherwise
func (r *Record) Validate() error {
	if r.UserID == "" {
		return ErrEmptyUserID
	}
	if r.ExerciseID == "" {
		return ErrEmptyExerciseID
	}
	if !r.ExerciseType.IsValid() {
		return ErrInvalidType
	}
	return nil
}

// Counts tallies records per exercise type.
func Counts(records []Record) map[plan.ExerciseType]int {
	out := make(map[plan.ExerciseType]int, len(plan.ValidTypes))
	for _, t := range plan.ValidTypes {
		out[t] = 0
	}
	for _, r := range records {
		out[r.ExerciseType]++
	}
	return out
}
