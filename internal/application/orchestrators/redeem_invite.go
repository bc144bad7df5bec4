package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"footballeyeq/internal/adapters/email"
	"footballeyeq/internal/adapters/storage/document"
	"footballeyeq/internal/application/entitlements"
	"footballeyeq/internal/application/schema"
	"footballeyeq/internal/domain/account"
)

// Collections written by invite redemption.
const (
	InviteCollection = "clubInvites"
	MemberCollection = "clubMembers"
)

// RedeemInviteInput carries the redeeming identity and the code it typed.
type RedeemInviteInput struct {
	UserID string
	Email  string
	Code   string
}

// RedeemInviteDeps holds dependencies for RedeemInvite.
type RedeemInviteDeps struct {
	Docs   document.Store
	Sender email.Sender // optional; nil skips the welcome email
	AppURL string
	Now    func() time.Time
}

// RedeemInviteResult describes the club that was joined.
type RedeemInviteResult struct {
	ClubID   string `json:"clubId"`
	ClubName string `json:"clubName"`
	Message  string `json:"message"`
}

// ExecuteRedeemInvite joins the caller to the club of an invite code.
// PRE: input.UserID is an authenticated user
// POST: The profile is a club member of the invite's club, a membership record
// exists, and the invite is marked used. A failed welcome email does not fail redemption.
func ExecuteRedeemInvite(ctx context.Context, input RedeemInviteInput, deps RedeemInviteDeps) (RedeemInviteResult, error) {
	code := account.NormalizeInviteCode(input.Code)
	if code == "" {
		return RedeemInviteResult{}, account.ErrInviteCodeRequired
	}
	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}

	snaps, err := deps.Docs.Query(ctx, InviteCollection, document.Filter{Field: "code", Value: code})
	if err != nil {
		return RedeemInviteResult{}, fmt.Errorf("failed to look up invite: %w", err)
	}
	invites := schema.ValidateMany(snaps, schema.ParseInvite)
	if len(invites) == 0 {
		return RedeemInviteResult{}, account.ErrInviteNotFound
	}
	inv := invites[0]
	switch {
	case inv.IsUsed():
		return RedeemInviteResult{}, account.ErrInviteUsed
	case inv.IsExpired(now()):
		return RedeemInviteResult{}, account.ErrInviteExpired
	case !inv.AllowsEmail(input.Email):
		return RedeemInviteResult{}, account.ErrInviteEmailMismatch
	}

	club, err := entitlements.LoadClub(ctx, deps.Docs, inv.ClubID)
	if err != nil {
		return RedeemInviteResult{}, err
	}
	if club == nil {
		return RedeemInviteResult{}, account.ErrClubNotFound
	}
	clubName := club.Name
	if clubName == "" {
		clubName = "the club"
	}

	firstName, err := joinProfile(ctx, deps.Docs, input, inv.ClubID)
	if err != nil {
		return RedeemInviteResult{}, err
	}

	err = deps.Docs.Set(ctx, MemberCollection, account.MemberDocID(inv.ClubID, input.UserID), document.Document{
		"clubId":   inv.ClubID,
		"userId":   input.UserID,
		"email":    input.Email,
		"role":     string(account.RoleMember),
		"status":   account.MemberActive,
		"joinedAt": document.ServerTimestamp,
	})
	if err != nil {
		return RedeemInviteResult{}, fmt.Errorf("failed to add club member: %w", err)
	}

	err = deps.Docs.Set(ctx, InviteCollection, inv.ID, document.Document{
		"usedBy": input.UserID,
		"usedAt": document.ServerTimestamp,
	}, document.Merge)
	if err != nil {
		return RedeemInviteResult{}, fmt.Errorf("failed to mark invite used: %w", err)
	}

	slog.Info("invite_event", "event", "redeemed", "user_id", input.UserID, "club_id", inv.ClubID, "invite_id", inv.ID)
	sendWelcome(ctx, deps, input.Email, firstName, clubName)

	return RedeemInviteResult{
		ClubID:   inv.ClubID,
		ClubName: clubName,
		Message:  fmt.Sprintf("Successfully joined %s!", clubName),
	}, nil
}

// joinProfile points the caller's profile at clubID, creating the profile when absent.
// It returns the profile's first name for the welcome email.
func joinProfile(ctx context.Context, docs document.Store, input RedeemInviteInput, clubID string) (string, error) {
	snaps, err := docs.Query(ctx, entitlements.ProfileCollection, document.Filter{Field: "uid", Value: input.UserID})
	if err != nil {
		return "", fmt.Errorf("failed to look up profile: %w", err)
	}
	membership := document.Document{
		"accountType": string(account.TypeClubMember),
		"clubId":      clubID,
		"clubRole":    string(account.RoleMember),
		"updatedAt":   document.ServerTimestamp,
	}
	if len(snaps) > 0 {
		first, _ := snaps[0].Data["fname"].(string)
		if first == "" {
			first, _ = snaps[0].Data["firstName"].(string)
		}
		if err := docs.Set(ctx, entitlements.ProfileCollection, snaps[0].ID, membership, document.Merge); err != nil {
			return "", fmt.Errorf("failed to update profile: %w", err)
		}
		return first, nil
	}

	membership["uid"] = input.UserID
	membership["email"] = input.Email
	membership["createdAt"] = document.ServerTimestamp
	if err := docs.Set(ctx, entitlements.ProfileCollection, input.UserID, membership); err != nil {
		return "", fmt.Errorf("failed to create profile: %w", err)
	}
	return "", nil
}

func sendWelcome(ctx context.Context, deps RedeemInviteDeps, to, firstName, clubName string) {
	if deps.Sender == nil || to == "" {
		return
	}
	msg, err := email.WelcomeMessage(email.WelcomeInput{To: to, FirstName: firstName, ClubName: clubName, AppURL: deps.AppURL})
	if err == nil {
		_, err = deps.Sender.Send(ctx, msg)
	}
	if err != nil {
		slog.Warn("invite_event", "event", "welcome_email_failed", "to", to, "error", err)
	}
}

// IsRedeemRejection reports whether err is a caller-facing redemption failure
// rather than a storage error.
func IsRedeemRejection(err error) bool {
	for _, target := range []error{
		account.ErrInviteCodeRequired,
		account.ErrInviteNotFound,
		account.ErrInviteUsed,
		account.ErrInviteExpired,
		account.ErrInviteEmailMismatch,
		account.ErrClubNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
