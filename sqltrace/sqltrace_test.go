package sqltrace

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/hazyhaar/whichsocial/kit"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { SetLogger(nil) })
	return &buf
}

func open(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open(DriverName, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func entries(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		var m map[string]any
		if err := dec.Decode(&m); err != nil {
			t.Fatal(err)
		}
		out = append(out, m)
	}
	return out
}

func TestDriver_LogsWithContextIDs(t *testing.T) {
	buf := capture(t)
	db := open(t)

	ctx := kit.WithSessionID(kit.WithTraceID(context.Background(), "trc_1"), "sess_1")
	if _, err := db.ExecContext(ctx, "CREATE TABLE kv (key TEXT PRIMARY KEY, value TEXT)"); err != nil {
		t.Fatal(err)
	}
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM kv").Scan(&n); err != nil {
		t.Fatal(err)
	}

	got := entries(t, buf)
	if len(got) != 2 {
		t.Fatalf("entries: got %d, want 2: %v", len(got), got)
	}
	if got[0]["op"] != "Exec" || got[1]["op"] != "Query" {
		t.Errorf("ops: got %v, %v", got[0]["op"], got[1]["op"])
	}
	if got[1]["trace_id"] != "trc_1" || got[1]["session"] != "sess_1" || got[1]["level"] != "DEBUG" {
		t.Errorf("query entry: got %v", got[1])
	}
}

func TestDriver_ErrorsAndPragmas(t *testing.T) {
	buf := capture(t)
	db := open(t)

	if _, err := db.Exec("PRAGMA user_version = 3"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec("INSERT INTO missing VALUES (1)"); err == nil {
		t.Fatal("insert into a missing table should fail")
	}

	got := entries(t, buf)
	if len(got) != 1 {
		t.Fatalf("entries: got %d, want only the failure: %v", len(got), got)
	}
	if got[0]["level"] != "ERROR" || got[0]["error"] == nil {
		t.Errorf("failure entry: got %v", got[0])
	}
}
