package favorites

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"footballeyeq/internal/adapters/storage/document"
	"footballeyeq/internal/adapters/storage/document/doctest"
	"footballeyeq/internal/domain/entitlement"
	"footballeyeq/internal/domain/plan"
)

func signedIn(t *testing.T, docs document.Store, uid string) *Engine {
	t.Helper()
	e := New(docs)
	t.Cleanup(e.Close)
	if err := e.OnIdentity(uid); err != nil {
		t.Fatalf("OnIdentity: %v", err)
	}
	return e
}

func TestToggle_SignedOut(t *testing.T) {
	docs := doctest.NewFailing(doctest.Open(t))
	e := New(docs)
	res, err := e.Toggle(context.Background(), "ex1", plan.TypePrimary)
	if err != nil || res.Action != ActionSignedOut {
		t.Errorf("Toggle = %+v, %v", res, err)
	}
	if docs.Writes() != 0 {
		t.Error("signed-out toggle wrote")
	}
}

func TestToggle_AddThenRemove(t *testing.T) {
	docs := doctest.Open(t)
	e := signedIn(t, docs, "u1")
	ctx := context.Background()

	res, err := e.Toggle(ctx, "ex1", plan.TypeAlternate)
	if err != nil || res.Action != ActionAdded {
		t.Fatalf("first toggle = %+v, %v", res, err)
	}
	if !e.IsFavorite("ex1") {
		t.Fatal("listener should have projected the new favorite")
	}
	if got := e.Counts(); got[plan.TypeAlternate] != 1 || got[plan.TypePrimary] != 0 {
		t.Errorf("counts = %v", got)
	}
	snap, err := docs.Get(ctx, Collection, "u1_ex1")
	if err != nil {
		t.Fatalf("remote record: %v", err)
	}
	if snap.Data["userId"] != "u1" || snap.Data["exerciseType"] != "alternate" {
		t.Errorf("remote record = %v", snap.Data)
	}

	res, err = e.Toggle(ctx, "ex1", plan.TypeAlternate)
	if err != nil || res.Action != ActionRemoved {
		t.Fatalf("second toggle = %+v, %v", res, err)
	}
	if e.IsFavorite("ex1") {
		t.Error("favorite should be gone")
	}
}

func TestToggle_FreeLimitIsPerType(t *testing.T) {
	docs := doctest.NewFailing(doctest.Open(t))
	e := signedIn(t, docs, "u1")
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if res, err := e.Toggle(ctx, fmt.Sprintf("p%d", i), plan.TypePrimary); err != nil || res.Action != ActionAdded {
			t.Fatalf("add %d = %+v, %v", i, res, err)
		}
	}
	writes := docs.Writes()

	res, err := e.Toggle(ctx, "p10", plan.TypePrimary)
	if err != nil || res.Action != ActionLimitReached {
		t.Fatalf("11th primary = %+v, %v", res, err)
	}
	if res.Count != 10 || res.Limit != 10 {
		t.Errorf("result = %+v", res)
	}
	if docs.Writes() != writes {
		t.Error("limit-reached toggle wrote")
	}

	res, err = e.Toggle(ctx, "a0", plan.TypeAlternate)
	if err != nil || res.Action != ActionAdded {
		t.Errorf("first alternate = %+v, %v", res, err)
	}

	// Removing still works at the limit.
	if res, _ := e.Toggle(ctx, "p0", plan.TypePrimary); res.Action != ActionRemoved {
		t.Errorf("remove at limit = %+v", res)
	}
}

// deferredStore holds listener deliveries until flush, like a store that
// delivers snapshots on its own goroutine.
type deferredStore struct {
	document.Store
	mu      sync.Mutex
	pending []func()
}

func (d *deferredStore) Subscribe(ctx context.Context, collection string, f document.Filter, fn document.Listener) (func(), error) {
	return d.Store.Subscribe(ctx, collection, f, func(snaps []document.Snapshot) {
		d.mu.Lock()
		d.pending = append(d.pending, func() { fn(snaps) })
		d.mu.Unlock()
	})
}

func (d *deferredStore) flush() {
	d.mu.Lock()
	jobs := d.pending
	d.pending = nil
	d.mu.Unlock()
	for _, job := range jobs {
		job()
	}
}

func TestToggle_FreeLimitHoldsBeforeListenerDelivers(t *testing.T) {
	docs := &deferredStore{Store: doctest.Open(t)}
	e := signedIn(t, docs, "u1")
	ctx := context.Background()

	added := 0
	for i := 0; i < 12; i++ {
		res, err := e.Toggle(ctx, fmt.Sprintf("p%d", i), plan.TypePrimary)
		if err != nil {
			t.Fatalf("toggle %d: %v", i, err)
		}
		if res.Action == ActionAdded {
			added++
		}
	}
	if added != 10 {
		t.Errorf("added %d primary favorites, want 10", added)
	}

	snaps, err := docs.Query(ctx, Collection, document.Filter{Field: "userId", Value: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 10 {
		t.Errorf("remote favorites = %d, want 10", len(snaps))
	}

	docs.flush()
	if got := e.Counts()[plan.TypePrimary]; got != 10 {
		t.Errorf("projected primary count = %d, want 10", got)
	}
}

func TestToggle_RemoveBeforeListenerDelivers(t *testing.T) {
	docs := &deferredStore{Store: doctest.Open(t)}
	e := signedIn(t, docs, "u1")
	ctx := context.Background()

	if res, _ := e.Toggle(ctx, "ex1", plan.TypePrimary); res.Action != ActionAdded {
		t.Fatalf("add = %+v", res)
	}
	if res, _ := e.Toggle(ctx, "ex1", plan.TypePrimary); res.Action != ActionRemoved {
		t.Errorf("second toggle = %+v, want removed", res)
	}
	docs.flush()
	if e.IsFavorite("ex1") {
		t.Error("favorite should be gone")
	}
}

func TestToggle_ReadError(t *testing.T) {
	docs := doctest.NewFailing(doctest.Open(t))
	e := signedIn(t, docs, "u1")
	docs.FailReads(true)
	writes := docs.Writes()
	if _, err := e.Toggle(context.Background(), "ex1", plan.TypePrimary); err == nil {
		t.Error("expected an error when favorites cannot be read")
	}
	if docs.Writes() != writes {
		t.Error("toggle wrote without reading the current favorites")
	}
}

func TestToggle_PremiumUnbounded(t *testing.T) {
	e := signedIn(t, doctest.Open(t), "u1")
	e.SetEntitlements(entitlement.Premium)
	ctx := context.Background()
	for i := 0; i < 15; i++ {
		if res, err := e.Toggle(ctx, fmt.Sprintf("p%d", i), plan.TypePrimary); err != nil || res.Action != ActionAdded {
			t.Fatalf("add %d = %+v, %v", i, res, err)
		}
	}
	if got := e.Counts()[plan.TypePrimary]; got != 15 {
		t.Errorf("primary count = %d", got)
	}
}

func TestToggle_WriteError(t *testing.T) {
	docs := doctest.NewFailing(doctest.Open(t))
	e := signedIn(t, docs, "u1")
	docs.FailWrites(true)
	if _, err := e.Toggle(context.Background(), "ex1", plan.TypePrimary); err == nil {
		t.Error("expected an error from a failed write")
	}
	if e.IsFavorite("ex1") {
		t.Error("failed write must not show as favorite")
	}
}

func TestListener_ProjectsRemoteChanges(t *testing.T) {
	docs := doctest.Open(t)
	doctest.Put(t, docs, Collection, "u1_old", document.Document{"userId": "u1", "exerciseId": "old"})
	doctest.Put(t, docs, Collection, "u1_bad", document.Document{"userId": "u1", "exerciseId": "bad", "exerciseType": "cones"})
	doctest.Put(t, docs, Collection, "u2_other", document.Document{"userId": "u2", "exerciseId": "other"})
	e := signedIn(t, docs, "u1")

	v := e.Current()
	if len(v.Favorites) != 1 || v.Favorites[0].ExerciseID != "old" || v.Favorites[0].ExerciseType != plan.TypePrimary {
		t.Fatalf("initial view = %+v", v.Favorites)
	}

	// Another device adds one.
	doctest.Put(t, docs, Collection, "u1_new", document.Document{"userId": "u1", "exerciseId": "new", "exerciseType": "alternate"})
	if !e.IsFavorite("new") {
		t.Error("remote addition not projected")
	}
}

func TestOnIdentity_SwitchesListener(t *testing.T) {
	docs := doctest.Open(t)
	doctest.Put(t, docs, Collection, "u1_a", document.Document{"userId": "u1", "exerciseId": "a"})
	e := signedIn(t, docs, "u1")

	var views []View
	e.Subscribe(func(v View) { views = append(views, v) })

	if err := e.OnIdentity(""); err != nil {
		t.Fatal(err)
	}
	if v := e.Current(); v.Authenticated || len(v.Favorites) != 0 {
		t.Errorf("signed-out view = %+v", v)
	}

	doctest.Put(t, docs, Collection, "u1_b", document.Document{"userId": "u1", "exerciseId": "b"})
	if e.IsFavorite("b") {
		t.Error("listener of the previous identity still delivers")
	}
	if len(views) != 1 {
		t.Errorf("published %d views after sign-out, want 1", len(views))
	}

	if err := e.OnIdentity("u1"); err != nil {
		t.Fatal(err)
	}
	if !e.IsFavorite("a") || !e.IsFavorite("b") {
		t.Error("signing back in should load every favorite")
	}
}
