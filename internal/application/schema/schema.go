// Package schema turns untrusted store records into domain values.
// Parsers never return errors: a rejected record yields ok == false and a
// warning naming the offending fields.
package schema

import (
	"log/slog"
	"strings"

	"footballeyeq/internal/adapters/storage/document"
	"footballeyeq/internal/domain/account"
	"footballeyeq/internal/domain/exercise"
	"footballeyeq/internal/domain/favorite"
	"footballeyeq/internal/domain/plan"
)

// Parser converts one stored record into a domain value.
type Parser[T any] func(id string, doc document.Document) (T, bool)

// ValidateMany parses every snapshot and keeps the accepted values in order.
func ValidateMany[T any](snaps []document.Snapshot, parse Parser[T]) []T {
	out := make([]T, 0, len(snaps))
	for _, s := range snaps {
		if v, ok := parse(s.ID, s.Data); ok {
			out = append(out, v)
		}
	}
	return out
}

func reject(kind, id string, bad []string) {
	slog.Warn("schema_rejected", "kind", kind, "id", id, "fields", strings.Join(bad, ","))
}

// ParseExerciseType reads a stored exercise type. The older equipment names map
// onto the two canonical types.
func ParseExerciseType(raw string) (plan.ExerciseType, bool) {
	switch raw {
	case "primary", "eyeq":
		return plan.TypePrimary, true
	case "alternate", "plastic":
		return plan.TypeAlternate, true
	}
	return "", false
}

// ParseExercise validates a catalog record, filling defaults for missing text.
func ParseExercise(id string, doc document.Document) (exercise.Exercise, bool) {
	f := newFields(doc)
	e := exercise.Exercise{
		ID:                    id,
		Title:                 f.str("title", exercise.DefaultTitle),
		AgeGroup:              f.str("ageGroup", exercise.DefaultNA),
		DecisionTheme:         f.str("decisionTheme", exercise.DefaultNA),
		PlayerInvolvement:     f.str("playerInvolvement", exercise.DefaultNA),
		GameMoment:            f.str("gameMoment", exercise.DefaultNA),
		Difficulty:            f.str("difficulty", exercise.DefaultDifficulty),
		PracticeFormat:        f.str("practiceFormat", exercise.DefaultPracticeFormat),
		Overview:              f.str("overview", ""),
		Description:           f.str("description", ""),
		ExerciseBreakdownDesc: f.str("exerciseBreakdownDesc", ""),
		Image:                 f.str("image", ""),
		ExerciseType:          plan.TypePrimary,
	}
	if raw := f.str("exerciseType", ""); raw != "" {
		t, ok := ParseExerciseType(raw)
		if !ok {
			f.fail("exerciseType")
		}
		e.ExerciseType = t
	}
	if id == "" {
		f.fail("id")
	}
	if !f.ok() {
		reject("exercise", id, f.bad)
		return exercise.Exercise{}, false
	}
	return e, true
}

// ParseProfile validates a signup record. The uid field is the user id; the
// document id is only used in diagnostics.
func ParseProfile(id string, doc document.Document) (account.Profile, bool) {
	f := newFields(doc)
	p := account.Profile{
		UID:             f.str("uid", ""),
		Email:           f.str("email", ""),
		FirstName:       f.firstStr("fname", "firstName"),
		LastName:        f.firstStr("lname", "lastName"),
		Organization:    f.str("organization", ""),
		AccountType:     account.TypeFree,
		AccountStatus:   account.StatusActive,
		ClubID:          f.str("clubId", ""),
		Admin:           f.boolean("admin"),
		CreatedAt:       f.timestamp("createdAt"),
		SuspendedAt:     f.timestamp("suspendedAt"),
		SuspendedReason: f.str("suspendedReason", ""),
	}

	var impliedRole account.ClubRole
	if raw := f.str("accountType", ""); raw != "" {
		t, role, err := account.ParseAccountType(raw)
		if err != nil {
			f.fail("accountType")
		}
		p.AccountType, impliedRole = t, role
	}
	if raw := f.str("accountStatus", ""); raw != "" {
		p.AccountStatus = account.Status(raw)
		if !p.AccountStatus.IsValid() {
			f.fail("accountStatus")
		}
	}
	p.ClubRole = parseRole(f, "clubRole")
	if p.ClubRole == "" {
		p.ClubRole = impliedRole
	}

	if f.ok() {
		if err := p.Validate(); err != nil {
			f.fail(err.Error())
		}
	}
	if !f.ok() {
		reject("profile", id, f.bad)
		return account.Profile{}, false
	}
	return p, true
}

// parseRole reads a club role, accepting the older boolean form where true meant admin.
func parseRole(f *fields, key string) account.ClubRole {
	v, present := f.doc[key]
	if !present || v == nil {
		return ""
	}
	switch r := v.(type) {
	case bool:
		if r {
			return account.RoleAdmin
		}
		return ""
	case string:
		role, err := account.ParseClubRole(r)
		if err != nil {
			f.fail(key)
		}
		return role
	}
	f.fail(key)
	return ""
}

// ParseClub validates a club record.
func ParseClub(id string, doc document.Document) (account.Club, bool) {
	f := newFields(doc)
	c := account.Club{
		ID:                 id,
		Name:               f.str("name", ""),
		ContactEmail:       f.str("contactEmail", ""),
		SubscriptionStatus: account.SubscriptionActive,
		Status:             account.StatusActive,
		ExerciseTypePolicy: account.PolicyMemberChoice,
		CreatedAt:          f.timestamp("createdAt"),
		SuspendedAt:        f.timestamp("suspendedAt"),
		SuspendedReason:    f.str("suspendedReason", ""),
	}
	if raw := f.str("subscriptionStatus", ""); raw != "" {
		c.SubscriptionStatus = account.SubscriptionStatus(raw)
		if !c.SubscriptionStatus.IsValid() {
			f.fail("subscriptionStatus")
		}
	}
	if raw := f.str("status", ""); raw != "" {
		c.Status = account.Status(raw)
		if !c.Status.IsValid() {
			f.fail("status")
		}
	}
	if raw := f.str("exerciseTypePolicy", ""); raw != "" {
		policy, err := account.ParseExerciseTypePolicy(raw)
		if err != nil {
			f.fail("exerciseTypePolicy")
		}
		c.ExerciseTypePolicy = policy
	}
	if !f.ok() {
		reject("club", id, f.bad)
		return account.Club{}, false
	}
	return c, true
}

// ParseFavorite validates a favorite record.
func ParseFavorite(id string, doc document.Document) (favorite.Record, bool) {
	f := newFields(doc)
	r := favorite.Record{
		UserID:       f.str("userId", ""),
		ExerciseID:   f.str("exerciseId", ""),
		ExerciseType: plan.TypePrimary,
		CreatedAt:    f.timestamp("createdAt"),
	}
	if raw := f.str("exerciseType", ""); raw != "" {
		t, ok := ParseExerciseType(raw)
		if !ok {
			f.fail("exerciseType")
		}
		r.ExerciseType = t
	}
	if r.UserID == "" {
		f.fail("userId")
	}
	if r.ExerciseID == "" {
		f.fail("exerciseId")
	}
	if !f.ok() {
		reject("favorite", id, f.bad)
		return favorite.Record{}, false
	}
	return r, true
}

// ParseInvite validates a club invite record.
func ParseInvite(id string, doc document.Document) (account.ClubInvite, bool) {
	f := newFields(doc)
	inv := account.ClubInvite{
		ID:        id,
		ClubID:    f.str("clubId", ""),
		ClubName:  f.str("clubName", ""),
		Code:      f.str("code", ""),
		Email:     f.str("email", ""),
		CreatedAt: f.timestamp("createdAt"),
		ExpiresAt: f.timestamp("expiresAt"),
		UsedBy:    f.str("usedBy", ""),
	}
	if inv.ClubID == "" {
		f.fail("clubId")
	}
	if inv.Code == "" {
		f.fail("code")
	}
	if !f.ok() {
		reject("invite", id, f.bad)
		return account.ClubInvite{}, false
	}
	return inv, true
}
