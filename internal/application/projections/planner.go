package projections

import (
	"footballeyeq/internal/domain/entitlement"
	"footballeyeq/internal/domain/plan"
)

// PlannerInput is everything the planner view is derived from.
type PlannerInput struct {
	Plan    plan.SeasonPlan
	Account entitlement.View
	Type    plan.ExerciseType // the selected exercise type
}

// PlannerSlot is one exercise of the selected type, with its position in the week.
type PlannerSlot struct {
	Name  string `json:"name"`
	Index int    `json:"index"` // position in the unfiltered week, for removal
}

// PlannerWeek is one session card.
type PlannerWeek struct {
	Week      int           `json:"week"`
	Locked    bool          `json:"locked"`
	Exercises []PlannerSlot `json:"exercises"`
	Capacity  int           `json:"capacity"`
}

// QueryPlanner filters each week to the selected type and marks sessions
// beyond the account's allowance as locked.
// INVARIANT: input.Plan is not mutated
func QueryPlanner(input PlannerInput) []PlannerWeek {
	out := make([]PlannerWeek, 0, len(input.Plan.Weeks))
	for _, w := range input.Plan.Weeks {
		card := PlannerWeek{
			Week:      w.Week,
			Locked:    !input.Account.IsSuperAdmin && w.Week > input.Account.Entitlements.MaxSessions,
			Exercises: []PlannerSlot{},
			Capacity:  input.Plan.MaxPerWeek,
		}
		for i, e := range w.Exercises {
			if e.Type == input.Type {
				card.Exercises = append(card.Exercises, PlannerSlot{Name: e.Name, Index: i})
			}
		}
		out = append(out, card)
	}
	return out
}
