package entitlements

import (
	"context"
	"sync/atomic"
	"testing"

	"footballeyeq/internal/adapters/storage/document"
	"footballeyeq/internal/adapters/storage/document/doctest"
	"footballeyeq/internal/domain/account"
	"footballeyeq/internal/domain/entitlement"
	"footballeyeq/internal/domain/identity"
)

var coach = &identity.Identity{UserID: "u1", Email: "coach@club.test"}

func profileDoc(fields document.Document) document.Document {
	d := document.Document{"uid": "u1", "email": "coach@club.test"}
	for k, v := range fields {
		d[k] = v
	}
	return d
}

func TestResolver_SignedOutIsGuest(t *testing.T) {
	r := New(Deps{Docs: doctest.Open(t)})
	v := r.Current()
	if v.Authenticated || v.Entitlements != entitlement.Free {
		t.Errorf("guest view = %+v", v)
	}
	if v.Allows(entitlement.ScreenPlanner) {
		t.Error("guest should not reach the planner")
	}
}

func TestResolver_Tiers(t *testing.T) {
	tests := []struct {
		name    string
		profile document.Document
		club    document.Document
		want    entitlement.Entitlements
		status  account.Status
	}{
		{"free", document.Document{"accountType": "free"}, nil, entitlement.Free, account.StatusActive},
		{"individual premium", document.Document{"accountType": "individualPremium"}, nil, entitlement.Premium, account.StatusActive},
		{"suspended premium", document.Document{"accountType": "individualPremium", "accountStatus": "suspended"}, nil, entitlement.Free, account.StatusSuspended},
		{"club member active club", document.Document{"accountType": "clubMember", "clubId": "c1"}, document.Document{"name": "FC"}, entitlement.Premium, account.StatusActive},
		{"club suspended", document.Document{"accountType": "clubMember", "clubId": "c1"}, document.Document{"status": "suspended"}, entitlement.Free, account.StatusSuspended},
		{"club subscription lapsed", document.Document{"accountType": "clubMember", "clubId": "c1"}, document.Document{"subscriptionStatus": "inactive"}, entitlement.Free, account.StatusSuspended},
		{"club missing", document.Document{"accountType": "clubMember", "clubId": "gone"}, nil, entitlement.Premium, account.StatusActive},
		{"malformed profile", document.Document{"accountType": "gold"}, nil, entitlement.Free, account.StatusActive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs := doctest.Open(t)
			doctest.Put(t, docs, ProfileCollection, "p1", profileDoc(tt.profile))
			if tt.club != nil {
				doctest.Put(t, docs, ClubCollection, "c1", tt.club)
			}
			r := New(Deps{Docs: docs})
			v := r.OnIdentity(context.Background(), coach)
			if v.Entitlements != tt.want {
				t.Errorf("entitlements = %+v, want %+v", v.Entitlements, tt.want)
			}
			if v.State.AccountStatus != tt.status {
				t.Errorf("status = %q, want %q", v.State.AccountStatus, tt.status)
			}
			if !v.Authenticated || v.UserID != "u1" {
				t.Errorf("identity not carried: %+v", v)
			}
		})
	}
}

func TestResolver_SuspensionIsNotWrittenBack(t *testing.T) {
	docs := doctest.Open(t)
	doctest.Put(t, docs, ProfileCollection, "p1", profileDoc(document.Document{"accountType": "clubMember", "clubId": "c1", "accountStatus": "active"}))
	doctest.Put(t, docs, ClubCollection, "c1", document.Document{"status": "suspended"})

	r := New(Deps{Docs: docs})
	if v := r.OnIdentity(context.Background(), coach); !v.State.IsSuspended() {
		t.Fatal("member of a suspended club should resolve suspended")
	}
	snap, err := docs.Get(context.Background(), ProfileCollection, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Data["accountStatus"] != "active" {
		t.Errorf("stored status = %v, want active", snap.Data["accountStatus"])
	}
}

func TestResolver_LegacyClubAdmin(t *testing.T) {
	docs := doctest.Open(t)
	doctest.Put(t, docs, ProfileCollection, "p1", profileDoc(document.Document{"accountType": "club_admin", "clubId": "c1"}))
	doctest.Put(t, docs, ClubCollection, "c1", document.Document{"name": "Harbour FC", "exerciseTypePolicy": "eyeq-only"})

	v := New(Deps{Docs: docs}).OnIdentity(context.Background(), coach)
	if !v.State.IsClubAdmin() {
		t.Errorf("state = %+v, want club admin", v.State)
	}
	if v.ClubName != "Harbour FC" {
		t.Errorf("club name = %q", v.ClubName)
	}
	if !v.Allows(entitlement.ScreenClubDashboard) {
		t.Error("club admin should reach the club dashboard")
	}
	if !v.ExerciseType.CanChoose {
		t.Error("club admins choose their exercise type regardless of policy")
	}
}

func TestResolver_ReadFailureFallsBack(t *testing.T) {
	docs := doctest.NewFailing(doctest.Open(t))
	doctest.Put(t, docs, ProfileCollection, "p1", profileDoc(document.Document{"accountType": "individualPremium"}))
	docs.FailReads(true)

	v := New(Deps{Docs: docs}).OnIdentity(context.Background(), coach)
	if v.State != entitlement.Fallback || v.Entitlements != entitlement.Free {
		t.Errorf("view after failed read = %+v", v)
	}
	if !v.Authenticated {
		t.Error("a failed read keeps the identity authenticated")
	}
}

func TestResolver_SuperAdmin(t *testing.T) {
	docs := doctest.Open(t)
	r := New(Deps{Docs: docs, SuperAdminEmail: "owner@eyeq.test"})

	v := r.OnIdentity(context.Background(), &identity.Identity{UserID: "root", Email: "owner@eyeq.test"})
	if !v.IsSuperAdmin || !v.Allows(entitlement.ScreenStats) || !v.Allows(entitlement.ScreenSuperAdmin) {
		t.Errorf("super admin view = %+v", v)
	}
	if v.Entitlements != entitlement.Free {
		t.Error("super admin does not change entitlements")
	}

	v = r.OnIdentity(context.Background(), &identity.Identity{UserID: "x", Email: "Owner@eyeq.test"})
	if v.IsSuperAdmin {
		t.Error("super admin must match exactly")
	}
}

func TestResolver_PublishesOnChangeOnly(t *testing.T) {
	docs := doctest.Open(t)
	doctest.Put(t, docs, ProfileCollection, "p1", profileDoc(document.Document{"accountType": "free"}))
	r := New(Deps{Docs: docs})
	var views []entitlement.View
	r.Subscribe(func(v entitlement.View) { views = append(views, v) })

	ctx := context.Background()
	r.OnIdentity(ctx, coach)
	r.Refresh(ctx)
	doctest.Put(t, docs, ProfileCollection, "p1", profileDoc(document.Document{"accountType": "individualPremium"}))
	r.Refresh(ctx)
	r.OnIdentity(ctx, nil)

	if len(views) != 3 {
		t.Fatalf("published %d views, want 3", len(views))
	}
	if views[1].Entitlements != entitlement.Premium || views[2].Authenticated {
		t.Errorf("views = %+v", views)
	}
}

// gatedStore blocks the first Query made while hold is set.
type gatedStore struct {
	document.Store
	hold    atomic.Bool
	entered chan struct{}
	gate    chan struct{}
}

func (g *gatedStore) Query(ctx context.Context, collection string, f document.Filter) ([]document.Snapshot, error) {
	if g.hold.CompareAndSwap(true, false) {
		snaps, err := g.Store.Query(ctx, collection, f)
		close(g.entered)
		<-g.gate
		return snaps, err
	}
	return g.Store.Query(ctx, collection, f)
}

func TestResolver_LastStartedRefreshWins(t *testing.T) {
	base := doctest.Open(t)
	doctest.Put(t, base, ProfileCollection, "p1", profileDoc(document.Document{"accountType": "free"}))
	docs := &gatedStore{Store: base, entered: make(chan struct{}), gate: make(chan struct{})}
	r := New(Deps{Docs: docs})
	ctx := context.Background()
	r.OnIdentity(ctx, coach)

	docs.hold.Store(true)
	done := make(chan entitlement.View)
	go func() { done <- r.Refresh(ctx) }()
	<-docs.entered

	doctest.Put(t, base, ProfileCollection, "p1", profileDoc(document.Document{"accountType": "individualPremium"}))
	latest := r.Refresh(ctx)
	close(docs.gate)
	stale := <-done

	if latest.Entitlements != entitlement.Premium {
		t.Fatalf("latest = %+v", latest.Entitlements)
	}
	if stale != latest || r.Current() != latest {
		t.Errorf("stale refresh overwrote the latest result: %+v", r.Current())
	}
}
