// Package entitlements resolves the account state and capabilities of the
// current identity from its profile and club records.
package entitlements

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"footballeyeq/internal/adapters/storage/document"
	"footballeyeq/internal/application/observe"
	"footballeyeq/internal/application/schema"
	"footballeyeq/internal/domain/account"
	"footballeyeq/internal/domain/entitlement"
	"footballeyeq/internal/domain/identity"
)

// Collections read during resolution.
const (
	ProfileCollection = "signups"
	ClubCollection    = "clubs"
)

// Deps holds dependencies for the Resolver.
type Deps struct {
	Docs document.Store
	// SuperAdminEmail is the one identity authorized for every screen. Empty disables it.
	SuperAdminEmail string
}

// Resolver keeps the entitlement view of one client's identity current.
type Resolver struct {
	deps Deps

	mu   sync.Mutex
	id   *identity.Identity
	view entitlement.View
	gen  uint64

	hub observe.Hub[entitlement.View]
}

// New creates a Resolver for a signed-out client.
// POST: Current() returns the guest view
func New(deps Deps) *Resolver {
	return &Resolver{deps: deps, view: entitlement.GuestView()}
}

// Current returns the last published view.
func (r *Resolver) Current() entitlement.View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view
}

// Subscribe registers fn for view changes.
func (r *Resolver) Subscribe(fn func(entitlement.View)) func() {
	return r.hub.Subscribe(fn)
}

// OnIdentity switches the resolver to id and resolves it. A nil id signs out.
func (r *Resolver) OnIdentity(ctx context.Context, id *identity.Identity) entitlement.View {
	r.mu.Lock()
	if id != nil {
		cp := *id
		r.id = &cp
	} else {
		r.id = nil
	}
	r.mu.Unlock()
	return r.Refresh(ctx)
}

// Refresh re-reads the profile and club of the current identity.
// Concurrent calls are safe: only the most recently started one publishes.
// POST: Never fails; read errors resolve to the free/active fallback
func (r *Resolver) Refresh(ctx context.Context) entitlement.View {
	r.mu.Lock()
	r.gen++
	gen := r.gen
	id := r.id
	r.mu.Unlock()

	v := entitlement.GuestView()
	if id != nil {
		v = r.resolve(ctx, *id)
	}

	r.mu.Lock()
	if gen != r.gen {
		cur := r.view
		r.mu.Unlock()
		slog.Debug("entitlement_event", "event", "stale_resolution_discarded", "generation", gen)
		return cur
	}
	changed := v != r.view
	r.view = v
	r.mu.Unlock()

	if changed {
		r.hub.Publish(v)
	}
	return v
}

func (r *Resolver) resolve(ctx context.Context, id identity.Identity) entitlement.View {
	state, clubName, err := r.readState(ctx, id.UserID)
	if err != nil {
		slog.Error("entitlement_event", "event", "resolution_failed", "user_id", id.UserID, "error", err)
		state, clubName = entitlement.Fallback, ""
	}
	v := entitlement.NewView(state)
	v.Authenticated = true
	v.UserID = id.UserID
	v.Email = id.Email
	v.ClubName = clubName
	v.IsSuperAdmin = r.deps.SuperAdminEmail != "" && id.Email == r.deps.SuperAdminEmail
	return v
}

// readState loads the profile and, for club members, the club.
// A missing or malformed record is not an error; a failed read is.
func (r *Resolver) readState(ctx context.Context, uid string) (entitlement.AccountState, string, error) {
	profile, err := LoadProfile(ctx, r.deps.Docs, uid)
	if err != nil {
		return entitlement.AccountState{}, "", err
	}
	if profile == nil || profile.AccountType != account.TypeClubMember {
		return entitlement.Derive(profile, nil), "", nil
	}

	club, err := LoadClub(ctx, r.deps.Docs, profile.ClubID)
	if err != nil {
		return entitlement.AccountState{}, "", err
	}
	name := ""
	if club != nil {
		name = club.Name
	}
	return entitlement.Derive(profile, club), name, nil
}

// LoadProfile finds the signup record of uid. It returns nil when there is
// none or none that parses.
func LoadProfile(ctx context.Context, docs document.Store, uid string) (*account.Profile, error) {
	snaps, err := docs.Query(ctx, ProfileCollection, document.Filter{Field: "uid", Value: uid})
	if err != nil {
		return nil, fmt.Errorf("failed to query profile: %w", err)
	}
	profiles := schema.ValidateMany(snaps, schema.ParseProfile)
	if len(profiles) == 0 {
		return nil, nil
	}
	return &profiles[0], nil
}

// LoadClub reads a club record. It returns nil when the club is missing or malformed.
func LoadClub(ctx context.Context, docs document.Store, clubID string) (*account.Club, error) {
	snap, err := docs.Get(ctx, ClubCollection, clubID)
	if errors.Is(err, document.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read club: %w", err)
	}
	club, ok := schema.ParseClub(snap.ID, snap.Data)
	if !ok {
		return nil, nil
	}
	return &club, nil
}
