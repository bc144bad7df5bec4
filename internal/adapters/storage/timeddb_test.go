package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"footballeyeq/internal/adapters/http/perf"
)

func openTimedTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db := openTestDB(t)
	if err := InitDB(db); err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	return db
}

const insertDoc = `INSERT INTO document (collection, id, data, updated_at) VALUES (?, ?, '{}', '')`

func TestTimedDB_RecordsExecAndQuery(t *testing.T) {
	collector := perf.NewCollector(100)
	tdb := NewTimedDB(openTimedTestDB(t), collector, 0)
	ctx := context.Background()

	if _, err := tdb.ExecContext(ctx, insertDoc, "planners", "u1"); err != nil {
		t.Fatalf("ExecContext: %v", err)
	}
	rows, err := tdb.QueryContext(ctx, `SELECT id FROM document`)
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	rows.Close()

	if collector.TotalRecorded() != 2 {
		t.Errorf("TotalRecorded = %d, want 2", collector.TotalRecorded())
	}
	snap := collector.Snapshot(time.Time{}, 10)
	ops := map[string]bool{}
	for _, q := range snap.SlowestQueries {
		ops[q.Op] = true
	}
	if !ops["insert"] || !ops["select"] {
		t.Errorf("query ops = %v, want insert and select", ops)
	}
}

func TestTimedDB_NilCollector(t *testing.T) {
	tdb := NewTimedDB(openTimedTestDB(t), nil, 0)

	if _, err := tdb.ExecContext(context.Background(), insertDoc, "planners", "u1"); err != nil {
		t.Fatalf("ExecContext with nil collector: %v", err)
	}
}

func TestTimedDB_ErrorPassthrough(t *testing.T) {
	collector := perf.NewCollector(100)
	tdb := NewTimedDB(openTimedTestDB(t), collector, 0)

	_, err := tdb.ExecContext(context.Background(), "INSERT INTO nonexistent_table VALUES (?)", 1)
	if err == nil {
		t.Fatal("expected error from invalid SQL, got nil")
	}
	snap := collector.Snapshot(time.Time{}, 10)
	if len(snap.SlowestQueries) != 1 || snap.SlowestQueries[0].Failures != 1 {
		t.Errorf("failure not recorded: %+v", snap.SlowestQueries)
	}
}

func TestTimedDB_QueryRowNoRows(t *testing.T) {
	tdb := NewTimedDB(openTimedTestDB(t), nil, 0)

	var id string
	err := tdb.QueryRowContext(context.Background(), `SELECT id FROM document WHERE id = ?`, "missing").Scan(&id)
	if err != sql.ErrNoRows {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestTimedDB_CancelledContext(t *testing.T) {
	collector := perf.NewCollector(100)
	tdb := NewTimedDB(openTimedTestDB(t), collector, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := tdb.ExecContext(ctx, insertDoc, "planners", "u1"); err == nil {
		t.Fatal("expected error from cancelled context, got nil")
	}
	if collector.TotalRecorded() != 1 {
		t.Errorf("TotalRecorded = %d, want 1", collector.TotalRecorded())
	}
}

func TestStatement(t *testing.T) {
	tests := []struct{ in, want string }{
		{"SELECT id FROM document", "select"},
		{"\n\t\tINSERT INTO document", "insert"},
		{"DELETE FROM document WHERE 1", "delete"},
		{"PRAGMA", "pragma"},
	}
	for _, tt := range tests {
		if got := statement(tt.in); got != tt.want {
			t.Errorf("statement(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
