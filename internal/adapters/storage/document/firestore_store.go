package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore implements Store on Cloud Firestore.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore wraps an open Firestore client.
// PRE: client is non-nil
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

// OpenFirestore connects to the given project. FIRESTORE_EMULATOR_HOST is honored by the client.
func OpenFirestore(ctx context.Context, projectID string) (*FirestoreStore, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return NewFirestoreStore(client), nil
}

// Close releases the client.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

// Get retrieves a document by collection and id.
// PRE: collection and id are non-empty
// POST: Returns the snapshot or ErrNotFound
func (s *FirestoreStore) Get(ctx context.Context, collection, id string) (Snapshot, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, err
	}
	return fromFirestore(snap), nil
}

// Set writes a document; with Merge only the given top-level fields change.
// PRE: collection and id are non-empty
// POST: Document is persisted
func (s *FirestoreStore) Set(ctx context.Context, collection, id string, data Document, opts ...SetOption) error {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if _, ok := v.(serverTimestamp); ok {
			v = firestore.ServerTimestamp
		}
		out[k] = v
	}
	ref := s.client.Collection(collection).Doc(id)
	var err error
	if hasMerge(opts) {
		_, err = ref.Set(ctx, out, firestore.MergeAll)
	} else {
		_, err = ref.Set(ctx, out)
	}
	return err
}

// Delete removes a document. Deleting a missing document is not an error.
func (s *FirestoreStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.client.Collection(collection).Doc(id).Delete(ctx)
	return err
}

// Query returns documents whose top-level field equals the filter value.
// PRE: f.Field is empty or a top-level field name
// POST: Returns matching snapshots
func (s *FirestoreStore) Query(ctx context.Context, collection string, f Filter) ([]Snapshot, error) {
	docs, err := s.query(collection, f).Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	out := make([]Snapshot, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromFirestore(d))
	}
	return out, nil
}

// Subscribe starts a snapshot listener on the query.
// POST: fn receives the full result after every change until unsubscribed or ctx ends
func (s *FirestoreStore) Subscribe(ctx context.Context, collection string, f Filter, fn Listener) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)
	it := s.query(collection, f).Snapshots(ctx)

	go func() {
		defer it.Stop()
		for {
			qs, err := it.Next()
			if err != nil {
				if status.Code(err) != codes.Canceled && !errors.Is(err, context.Canceled) {
					slog.Error("document_event", "event", "listener_failed", "collection", collection, "error", err)
				}
				return
			}
			docs, err := qs.Documents.GetAll()
			if err != nil {
				slog.Error("document_event", "event", "listener_read_failed", "collection", collection, "error", err)
				continue
			}
			out := make([]Snapshot, 0, len(docs))
			for _, d := range docs {
				out = append(out, fromFirestore(d))
			}
			fn(out)
		}
	}()
	return cancel, nil
}

// Ping performs a cheap read to verify connectivity.
func (s *FirestoreStore) Ping(ctx context.Context) error {
	_, err := s.client.Collection("_health").Doc("ping").Get(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return err
	}
	return nil
}

func (s *FirestoreStore) query(collection string, f Filter) firestore.Query {
	q := s.client.Collection(collection).Query
	if f.Field != "" {
		q = q.Where(f.Field, "==", f.Value)
	}
	return q
}

func fromFirestore(d *firestore.DocumentSnapshot) Snapshot {
	return Snapshot{ID: d.Ref.ID, Data: d.Data(), UpdateTime: d.UpdateTime}
}
