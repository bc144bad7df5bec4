package document

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"footballeyeq/internal/adapters/storage"
)

const timeLayout = time.RFC3339Nano

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type subscription struct {
	collection string
	filter     Filter
	fn         Listener

	// mu makes each query-then-deliver atomic, so deliveries arrive in query order.
	mu     sync.Mutex
	closed atomic.Bool
}

// deliver re-runs the live query and hands the result to the listener.
func (sub *subscription) deliver(ctx context.Context, s *SQLiteStore) error {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed.Load() {
		return nil
	}
	snaps, err := s.Query(ctx, sub.collection, sub.filter)
	if err != nil {
		return err
	}
	sub.fn(snaps)
	return nil
}

// SQLiteStore implements Store using a single JSON document table.
// Subscribers are notified synchronously after every write to their collection.
type SQLiteStore struct {
	db  storage.SQLDB
	now func() time.Time

	mu     sync.Mutex
	nextID int
	subs   map[int]*subscription
}

// NewSQLiteStore creates a new SQLiteStore.
// PRE: db has been initialized with storage.InitDB
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now, subs: make(map[int]*subscription)}
}

// WithClock replaces the clock used for update times and server timestamps.
func (s *SQLiteStore) WithClock(now func() time.Time) *SQLiteStore {
	s.now = now
	return s
}

// Get retrieves a document by collection and id.
// PRE: collection and id are non-empty
// POST: Returns the snapshot or ErrNotFound
func (s *SQLiteStore) Get(ctx context.Context, collection, id string) (Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, data, updated_at FROM document WHERE collection = ? AND id = ?`, collection, id)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	return snap, err
}

// Set writes a document. With Merge, only the given top-level fields change.
// PRE: collection and id are non-empty; data values are JSON-encodable
// POST: Document is persisted and subscribers of the collection are notified
func (s *SQLiteStore) Set(ctx context.Context, collection, id string, data Document, opts ...SetOption) error {
	now := s.now().UTC()
	out := make(Document, len(data))
	if hasMerge(opts) {
		existing, err := s.Get(ctx, collection, id)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		for k, v := range existing.Data {
			out[k] = v
		}
	}
	for k, v := range data {
		if _, ok := v.(serverTimestamp); ok {
			v = now
		}
		out[k] = v
	}

	raw, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode document %s/%s: %w", collection, id, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO document (collection, id, data, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(collection, id) DO UPDATE SET data=excluded.data, updated_at=excluded.updated_at`,
		collection, id, string(raw), now.Format(timeLayout))
	if err != nil {
		return err
	}
	s.notify(ctx, collection)
	return nil
}

// Delete removes a document. Deleting a missing document is not an error.
// PRE: collection and id are non-empty
// POST: Document is removed and subscribers of the collection are notified
func (s *SQLiteStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM document WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return err
	}
	s.notify(ctx, collection)
	return nil
}

// Query returns documents whose top-level field equals the filter value, ordered by id.
// An empty filter field returns the whole collection.
// PRE: f.Field is empty or a plain identifier
// POST: Returns matching snapshots
func (s *SQLiteStore) Query(ctx context.Context, collection string, f Filter) ([]Snapshot, error) {
	query := `SELECT id, data, updated_at FROM document WHERE collection = ?`
	args := []any{collection}
	if f.Field != "" {
		if !fieldPattern.MatchString(f.Field) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidField, f.Field)
		}
		query += ` AND json_extract(data, ?) = ?`
		args = append(args, "$."+f.Field, sqlValue(f.Value))
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// Subscribe registers a live query. The current result is delivered before Subscribe returns.
// The subscription is registered before the first query, so no write is missed.
// PRE: fn is non-nil and does not write to collection synchronously
// POST: fn receives the full result after every write to collection until unsubscribed
func (s *SQLiteStore) Subscribe(ctx context.Context, collection string, f Filter, fn Listener) (func(), error) {
	sub := &subscription{collection: collection, filter: f, fn: fn}
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = sub
	s.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			sub.closed.Store(true)
		})
	}

	if err := sub.deliver(ctx, s); err != nil {
		unsub()
		return nil, err
	}
	if done := ctx.Done(); done != nil {
		go func() {
			<-done
			unsub()
		}()
	}
	return unsub, nil
}

// Ping verifies the document table is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	var n int
	return s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM document WHERE 0`).Scan(&n)
}

// notify re-runs every live query on collection and delivers the results outside the store lock.
func (s *SQLiteStore) notify(ctx context.Context, collection string) {
	s.mu.Lock()
	var targets []*subscription
	for _, sub := range s.subs {
		if sub.collection == collection {
			targets = append(targets, sub)
		}
	}
	s.mu.Unlock()

	for _, sub := range targets {
		if err := sub.deliver(context.WithoutCancel(ctx), s); err != nil {
			slog.Error("document_event", "event", "listener_query_failed", "collection", collection, "error", err)
		}
	}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(sc scanner) (Snapshot, error) {
	var snap Snapshot
	var raw, updated string
	if err := sc.Scan(&snap.ID, &raw, &updated); err != nil {
		return Snapshot{}, err
	}
	if err := json.Unmarshal([]byte(raw), &snap.Data); err != nil {
		return Snapshot{}, fmt.Errorf("decode document %s: %w", snap.ID, err)
	}
	if t, err := time.Parse(timeLayout, updated); err == nil {
		snap.UpdateTime = t
	}
	return snap, nil
}

// sqlValue converts a filter value to what json_extract yields for it.
func sqlValue(v any) any {
	switch x := v.(type) {
	case bool:
		if x {
			return 1
		}
		return 0
	case time.Time:
		return x.UTC().Format(timeLayout)
	default:
		return v
	}
}
