// Package doctest provides document stores for tests: an in-memory SQLite
// store and a wrapper that fails selected operations.
package doctest

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"footballeyeq/internal/adapters/storage"
	"footballeyeq/internal/adapters/storage/document"
)

// Now is the fixed time stamped by stores from Open.
var Now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// ErrUnavailable is returned by Failing for every failed operation.
var ErrUnavailable = errors.New("document store unavailable")

// Open returns an empty SQLite-backed store closed at test cleanup.
func Open(t *testing.T) *document.SQLiteStore {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	if err := storage.InitDB(db); err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	return document.NewSQLiteStore(db).WithClock(func() time.Time { return Now })
}

// Put stores a document or fails the test.
func Put(t *testing.T, s document.Store, collection, id string, data document.Document) {
	t.Helper()
	if err := s.Set(context.Background(), collection, id, data); err != nil {
		t.Fatalf("Set %s/%s: %v", collection, id, err)
	}
}

// Failing wraps a store and fails reads or writes while the flags are set.
type Failing struct {
	document.Store

	mu         sync.Mutex
	failReads  bool
	failWrites bool
	reads      int
	writes     int
}

// NewFailing wraps s. Nothing fails until FailReads or FailWrites is called.
func NewFailing(s document.Store) *Failing {
	return &Failing{Store: s}
}

// FailReads toggles failure of Get and Query.
func (f *Failing) FailReads(on bool) {
	f.mu.Lock()
	f.failReads = on
	f.mu.Unlock()
}

// FailWrites toggles failure of Set and Delete.
func (f *Failing) FailWrites(on bool) {
	f.mu.Lock()
	f.failWrites = on
	f.mu.Unlock()
}

// Reads returns how many Get and Query calls were made.
func (f *Failing) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

// Writes returns how many Set and Delete calls were made.
func (f *Failing) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

func (f *Failing) read() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	return f.failReads
}

func (f *Failing) write() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	return f.failWrites
}

func (f *Failing) Get(ctx context.Context, collection, id string) (document.Snapshot, error) {
	if f.read() {
		return document.Snapshot{}, ErrUnavailable
	}
	return f.Store.Get(ctx, collection, id)
}

func (f *Failing) Query(ctx context.Context, collection string, filter document.Filter) ([]document.Snapshot, error) {
	if f.read() {
		return nil, ErrUnavailable
	}
	return f.Store.Query(ctx, collection, filter)
}

func (f *Failing) Set(ctx context.Context, collection, id string, data document.Document, opts ...document.SetOption) error {
	if f.write() {
		return ErrUnavailable
	}
	return f.Store.Set(ctx, collection, id, data, opts...)
}

func (f *Failing) Delete(ctx context.Context, collection, id string) error {
	if f.write() {
		return ErrUnavailable
	}
	return f.Store.Delete(ctx, collection, id)
}
