// Package document is the remote document store: schemaless records grouped in
// collections, with get, merge-set, equality query and live query subscriptions.
package document

import (
	"context"
	"errors"
	"time"
)

// Document is a schemaless record. Values are JSON-shaped: string, float64/int64,
// bool, nil, []any, map[string]any, or time.Time.
type Document = map[string]any

// ErrNotFound is returned by Get when the document does not exist.
var ErrNotFound = errors.New("document not found")

// ErrInvalidField is returned when a query names a field the store cannot address.
var ErrInvalidField = errors.New("invalid query field")

type serverTimestamp struct{}

// ServerTimestamp as a field value is replaced by the store's clock at write time.
var ServerTimestamp any = serverTimestamp{}

// Snapshot is one document as read from the store.
type Snapshot struct {
	ID         string
	Data       Document
	UpdateTime time.Time
}

// Filter selects documents whose top-level Field equals Value.
type Filter struct {
	Field string
	Value any
}

// SetOption modifies a Set call.
type SetOption int

// Merge makes Set update only the given top-level fields, creating the document if absent.
const Merge SetOption = 1

// Listener receives the full result set of a subscribed query after every change.
type Listener func([]Snapshot)

// Store defines the remote document operations used by the application.
type Store interface {
	Get(ctx context.Context, collection, id string) (Snapshot, error)
	Set(ctx context.Context, collection, id string, data Document, opts ...SetOption) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, f Filter) ([]Snapshot, error)
	// Subscribe delivers the current result first, then again after each change.
	// The returned function stops delivery.
	Subscribe(ctx context.Context, collection string, f Filter, fn Listener) (func(), error)
	Ping(ctx context.Context) error
}

func hasMerge(opts []SetOption) bool {
	for _, o := range opts {
		if o == Merge {
			return true
		}
	}
	return false
}
