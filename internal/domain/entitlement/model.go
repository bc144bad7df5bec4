package entitlement

import (
	"footballeyeq/internal/domain/account"
)

// Unbounded marks a limit with no ceiling.
const Unbounded = -1

// Entitlements is a derived capability set. It is never stored.
type Entitlements struct {
	MaxSessions    int  `json:"maxSessions"`
	MaxFavorites   int  `json:"maxFavorites"` // Unbounded for no limit
	CanAccessStats bool `json:"canAccessStats"`
	CanExport      bool `json:"canExport"`
}

// Free is the capability set of free and suspended accounts.
var Free = Entitlements{
	MaxSessions:    1,
	MaxFavorites:   10,
	CanAccessStats: false,
	CanExport:      false,
}

// Premium is the capability set of active paying accounts.
var Premium = Entitlements{
	MaxSessions:    12,
	MaxFavorites:   Unbounded,
	CanAccessStats: true,
	CanExport:      true,
}

// AllowsAnotherFavorite reports whether one more favorite fits next to count existing ones.
// INVARIANT: e is not mutated
func (e Entitlements) AllowsAnotherFavorite(count int) bool {
	if e.MaxFavorites == Unbounded {
		return true
	}
	return count < e.MaxFavorites
}

// AccountState is the computed view of an account used for gating.
type AccountState struct {
	AccountType        account.AccountType        `json:"accountType"`
	AccountStatus      account.Status             `json:"accountStatus"`
	ClubID             string                     `json:"clubId,omitempty"`
	ClubRole           account.ClubRole           `json:"clubRole,omitempty"`
	ExerciseTypePolicy account.ExerciseTypePolicy `json:"exerciseTypePolicy,omitempty"`
}

// Fallback is the state used when no profile can be read.
var Fallback = AccountState{
	AccountType:   account.TypeFree,
	AccountStatus: account.StatusActive,
}

// IsSuspended returns true if the derived status is suspended.
func (s AccountState) IsSuspended() bool {
	return s.AccountStatus == account.StatusSuspended
}

// IsClubAdmin returns true if the state belongs to an admin of a club.
func (s AccountState) IsClubAdmin() bool {
	return s.AccountType == account.TypeClubMember && s.ClubRole == account.RoleAdmin
}

// Derive computes the account state from a profile and, for club members, the club.
// Suspension flows from club to member, never the other way, and is never written back.
// PRE: profile may be nil (missing or unparseable); club may be nil
// POST: Returns Fallback when profile is nil
// INVARIANT: profile and club are not mutated
func Derive(profile *account.Profile, club *account.Club) AccountState {
	if profile == nil {
		return Fallback
	}
	state := AccountState{
		AccountType:   profile.AccountType,
		AccountStatus: profile.AccountStatus,
		ClubID:        profile.ClubID,
		ClubRole:      profile.ClubRole,
	}
	if state.AccountStatus == "" {
		state.AccountStatus = account.StatusActive
	}
	if profile.AccountType == account.TypeClubMember && club != nil {
		if club.IsSuspended() {
			state.AccountStatus = account.StatusSuspended
		}
		state.ExerciseTypePolicy = club.ExerciseTypePolicy
	}
	return state
}

// For returns the entitlements of an account state.
// Suspension always demotes to the free tier.
func For(s AccountState) Entitlements {
	if s.IsSuspended() || s.AccountType == account.TypeFree {
		return Free
	}
	return Premium
}

// Screen names a gated area of the application.
type Screen string

// Screen constants
const (
	ScreenPlanner       Screen = "planner"
	ScreenStats         Screen = "stats"
	ScreenExport        Screen = "export"
	ScreenClubDashboard Screen = "clubDashboard"
	ScreenSuperAdmin    Screen = "superAdmin"
)

// View is everything a UI needs to decide what to render for the current identity.
type View struct {
	Authenticated bool               `json:"authenticated"`
	UserID        string             `json:"userId,omitempty"`
	Email         string             `json:"email,omitempty"`
	State         AccountState       `json:"state"`
	Entitlements  Entitlements       `json:"entitlements"`
	ClubName      string             `json:"clubName,omitempty"`
	IsSuperAdmin  bool               `json:"isSuperAdmin"`
	ExerciseType  ExerciseTypeAccess `json:"exerciseType"`
}

// GuestView is the view for a signed-out client.
func GuestView() View {
	return NewView(Fallback)
}

// NewView builds a view from a state, filling the derived fields.
func NewView(s AccountState) View {
	return View{
		State:        s,
		Entitlements: For(s),
		ExerciseType: AccessFor(s),
	}
}

// Allows reports whether the view may open a gated screen.
// The super-admin identity is authorized everywhere regardless of entitlements.
// INVARIANT: v is not mutated
func (v View) Allows(screen Screen) bool {
	if v.IsSuperAdmin {
		return true
	}
	switch screen {
	case ScreenPlanner:
		return v.Authenticated
	case ScreenStats:
		return v.Authenticated && v.Entitlements.CanAccessStats
	case ScreenExport:
		return v.Authenticated && v.Entitlements.CanExport
	case ScreenClubDashboard:
		return v.Authenticated && v.State.IsClubAdmin() && !v.State.IsSuspended()
	default:
		return false
	}
}
