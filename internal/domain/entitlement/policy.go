package entitlement

import (
	"footballeyeq/internal/domain/account"
	"footballeyeq/internal/domain/plan"
)

// ExerciseTypeAccess says whether a coach may pick an exercise type, and which
// type applies when they may not.
type ExerciseTypeAccess struct {
	CanChoose bool              `json:"canChoose"`
	Enforced  plan.ExerciseType `json:"enforced,omitempty"` // empty when CanChoose
}

// AccessFor resolves exercise-type access from an account state.
//
//   - suspended or free: locked to primary
//   - individual premium: free choice
//   - club admin: free choice
//   - club member: the club policy decides; a missing policy means member choice
func AccessFor(s AccountState) ExerciseTypeAccess {
	locked := func(t plan.ExerciseType) ExerciseTypeAccess {
		return ExerciseTypeAccess{Enforced: t}
	}
	if s.IsSuspended() {
		return locked(plan.TypePrimary)
	}
	switch s.AccountType {
	case account.TypeIndividualPremium:
		return ExerciseTypeAccess{CanChoose: true}
	case account.TypeClubMember:
		if s.ClubRole == account.RoleAdmin {
			return ExerciseTypeAccess{CanChoose: true}
		}
		switch s.ExerciseTypePolicy {
		case account.PolicyPrimaryOnly:
			return locked(plan.TypePrimary)
		case account.PolicyAlternateOnly:
			return locked(plan.TypeAlternate)
		default:
			return ExerciseTypeAccess{CanChoose: true}
		}
	default:
		return locked(plan.TypePrimary)
	}
}
