package account

import (
	"errors"
	"strings"
	"time"
)

// AccountType is the canonical kind of account a coach holds.
type AccountType string

// Account type constants
const (
	TypeFree              AccountType = "free"
	TypeClubMember        AccountType = "clubMember"
	TypeIndividualPremium AccountType = "individualPremium"
)

// Status is the stored or derived status of an account or club.
type Status string

// Status constants
const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// ClubRole is a coach's role inside a club.
type ClubRole string

// Club role constants
const (
	RoleAdmin  ClubRole = "admin"
	RoleMember ClubRole = "member"
)

// SubscriptionStatus is the billing state of a club.
type SubscriptionStatus string

// Subscription status constants
const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionInactive SubscriptionStatus = "inactive"
	SubscriptionTrial    SubscriptionStatus = "trial"
)

// ExerciseTypePolicy constrains which exercise type club members plan with.
type ExerciseTypePolicy string

// Exercise type policy constants
const (
	PolicyPrimaryOnly   ExerciseTypePolicy = "primaryOnly"
	PolicyAlternateOnly ExerciseTypePolicy = "alternateOnly"
	PolicyMemberChoice  ExerciseTypePolicy = "memberChoice"
)

// Member status constants for club membership records.
const (
	MemberActive  = "active"
	MemberPending = "pending"
	MemberRemoved = "removed"
)

// Domain errors
var (
	ErrUnknownAccountType = errors.New("account type must be one of: free, clubMember, individualPremium")
	ErrUnknownStatus      = errors.New("status must be one of: active, suspended")
	ErrUnknownRole        = errors.New("club role must be one of: admin, member")
	ErrUnknownPolicy      = errors.New("exercise type policy must be one of: primaryOnly, alternateOnly, memberChoice")
	ErrUnknownSubStatus   = errors.New("subscription status must be one of: active, inactive, trial")
	ErrEmptyUID           = errors.New("uid cannot be empty")
	ErrInvalidEmail       = errors.New("email must contain '@'")
	ErrClubMissingID      = errors.New("club member account requires a club id")
)

// Invite redemption errors
var (
	ErrInviteCodeRequired  = errors.New("invite code is required")
	ErrInviteNotFound      = errors.New("invalid invite code")
	ErrInviteUsed          = errors.New("this invite code has already been used")
	ErrInviteExpired       = errors.New("this invite code has expired")
	ErrInviteEmailMismatch = errors.New("this invite code was created for a different email address")
	ErrClubNotFound        = errors.New("club not found")
)

// Profile holds the stored signup record of a coach.
type Profile struct {
	UID             string
	Email           string
	FirstName       string
	LastName        string
	Organization    string
	AccountType     AccountType
	AccountStatus   Status
	ClubID          string
	ClubRole        ClubRole // empty when not in a club
	Admin           bool
	CreatedAt       time.Time
	SuspendedAt     time.Time
	SuspendedReason string
}

// Club holds the stored record of a club.
type Club struct {
	ID                 string
	Name               string
	ContactEmail       string
	SubscriptionStatus SubscriptionStatus
	Status             Status
	ExerciseTypePolicy ExerciseTypePolicy
	CreatedAt          time.Time
	SuspendedAt        time.Time
	SuspendedReason    string
}

// ClubMember links a coach to a club.
type ClubMember struct {
	ID       string
	UserID   string
	Email    string
	Role     ClubRole
	Status   string
	JoinedAt time.Time
}

// ClubInvite is a single-use code that lets a coach join a club.
type ClubInvite struct {
	ID        string
	ClubID    string
	ClubName  string
	Code      string
	Email     string // optional; restricts redemption to this address
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedBy    string
}

// Validate checks if the Profile has valid data.
// PRE: Profile struct is populated
// POST: Returns nil if valid, error otherwise
func (p *Profile) Validate() error {
	if strings.TrimSpace(p.UID) == "" {
		return ErrEmptyUID
	}
	if p.Email != "" && !strings.Contains(p.Email, "@") {
		return ErrInvalidEmail
	}
	if !p.AccountType.IsValid() {
		return ErrUnknownAccountType
	}
	if !p.AccountStatus.IsValid() {
		return ErrUnknownStatus
	}
	if p.ClubRole != "" && !p.ClubRole.IsValid() {
		return ErrUnknownRole
	}
	if p.AccountType == TypeClubMember && p.ClubID == "" {
		return ErrClubMissingID
	}
	return nil
}

// IsClubAdmin returns true if the profile is an admin of its club.
// INVARIANT: Profile fields are not mutated
func (p *Profile) IsClubAdmin() bool {
	return p.AccountType == TypeClubMember && p.ClubRole == RoleAdmin
}

// IsSuspended returns true if the club is suspended or its subscription lapsed.
// INVARIANT: Club fields are not mutated
func (c *Club) IsSuspended() bool {
	return c.Status == StatusSuspended || c.SubscriptionStatus == SubscriptionInactive
}

// IsExpired returns true if the invite has passed its expiry time.
// A zero ExpiresAt never expires.
func (i *ClubInvite) IsExpired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt)
}

// IsUsed returns true if the invite has already been redeemed.
func (i *ClubInvite) IsUsed() bool {
	return i.UsedBy != ""
}

// AllowsEmail reports whether email may redeem the invite. Addresses compare case-insensitively.
func (i *ClubInvite) AllowsEmail(email string) bool {
	return i.Email == "" || strings.EqualFold(strings.TrimSpace(i.Email), strings.TrimSpace(email))
}

// MemberDocID returns the store key of a club membership: one per (club, user).
func MemberDocID(clubID, userID string) string {
	return clubID + "_" + userID
}

// NormalizeInviteCode trims and upper-cases a user-typed invite code.
func NormalizeInviteCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValid reports whether t is a canonical account type.
func (t AccountType) IsValid() bool {
	return t == TypeFree || t == TypeClubMember || t == TypeIndividualPremium
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	return s == StatusActive || s == StatusSuspended
}

// IsValid reports whether r is a known club role.
func (r ClubRole) IsValid() bool {
	return r == RoleAdmin || r == RoleMember
}

// IsValid reports whether s is a known subscription status.
func (s SubscriptionStatus) IsValid() bool {
	return s == SubscriptionActive || s == SubscriptionInactive || s == SubscriptionTrial
}

// IsValid reports whether p is a known exercise type policy.
func (p ExerciseTypePolicy) IsValid() bool {
	return p == PolicyPrimaryOnly || p == PolicyAlternateOnly || p == PolicyMemberChoice
}

// legacyAccountTypes maps older stored spellings to the canonical type and,
// where the spelling also carried a role, that role.
var legacyAccountTypes = map[string]struct {
	Type AccountType
	Role ClubRole
}{
	"free":               {TypeFree, ""},
	"Free":               {TypeFree, ""},
	"clubMember":         {TypeClubMember, ""},
	"clubCoach":          {TypeClubMember, ""},
	"ClubCoach":          {TypeClubMember, ""},
	"club_coach":         {TypeClubMember, ""},
	"club_admin":         {TypeClubMember, RoleAdmin},
	"ClubAdmin":          {TypeClubMember, RoleAdmin},
	"individualPremium":  {TypeIndividualPremium, ""},
	"IndividualPremium":  {TypeIndividualPremium, ""},
	"individual_premium": {TypeIndividualPremium, ""},
}

// ParseAccountType normalizes a stored account type, including legacy spellings.
// The returned role is non-empty only when the legacy spelling implied one.
// PRE: none
// POST: Returns ErrUnknownAccountType for unrecognized values
func ParseAccountType(raw string) (AccountType, ClubRole, error) {
	if v, ok := legacyAccountTypes[raw]; ok {
		return v.Type, v.Role, nil
	}
	return "", "", ErrUnknownAccountType
}

// ParseClubRole normalizes a stored club role. The older "coach" role is a member.
func ParseClubRole(raw string) (ClubRole, error) {
	switch raw {
	case "admin":
		return RoleAdmin, nil
	case "member", "coach":
		return RoleMember, nil
	}
	return "", ErrUnknownRole
}

// ParseExerciseTypePolicy normalizes a stored policy, including legacy spellings.
func ParseExerciseTypePolicy(raw string) (ExerciseTypePolicy, error) {
	switch raw {
	case "primaryOnly", "eyeq-only", "eyeqOnly":
		return PolicyPrimaryOnly, nil
	case "alternateOnly", "plastic-only", "plasticOnly":
		return PolicyAlternateOnly, nil
	case "memberChoice", "coach-choice", "coachChoice":
		return PolicyMemberChoice, nil
	}
	return "", ErrUnknownPolicy
}
