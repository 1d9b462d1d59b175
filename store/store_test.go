package store

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazyhaar/whichsocial/dbopen"
	"github.com/hazyhaar/whichsocial/kit"
)

// exercise runs the Store contract against st.
func exercise(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := st.Get(ctx, "shop.example.com_social"); err != nil || ok {
		t.Fatalf("Get absent: ok=%v err=%v", ok, err)
	}
	if err := st.Set(ctx, "shop.example.com_social", `{"provider":"Google"}`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := st.Set(ctx, "shop.example.com_social", `{"provider":"GitHub"}`); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	v, ok, err := st.Get(ctx, "shop.example.com_social")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if v != `{"provider":"GitHub"}` {
		t.Errorf("Get: got %q, want %q", v, `{"provider":"GitHub"}`)
	}
	if err := st.Delete(ctx, "shop.example.com_social"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := st.Get(ctx, "shop.example.com_social"); ok {
		t.Error("Get after Delete: key still present")
	}
	if err := st.Delete(ctx, "never-set"); err != nil {
		t.Errorf("Delete absent: %v", err)
	}
}

func TestMemory(t *testing.T) {
	var m Memory
	exercise(t, &m)

	seeded := NewMemory(map[string]string{"b": "1", "a": "2"})
	if got := strings.Join(seeded.Keys(), ","); got != "a,b" {
		t.Errorf("Keys: got %q, want %q", got, "a,b")
	}
}

func TestSQLite(t *testing.T) {
	st, err := NewSQLite(dbopen.OpenMemory(t))
	if err != nil {
		t.Fatal(err)
	}
	exercise(t, st)
}

func TestOpenSQLite_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ws.db")
	st, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := st.Set(ctx, "social-providers", `["Google"]`); err != nil {
		t.Fatal(err)
	}
	st.Close()

	st, err = OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	v, ok, err := st.Get(ctx, "social-providers")
	if err != nil || !ok || v != `["Google"]` {
		t.Fatalf("Get after reopen: got %q ok=%v err=%v", v, ok, err)
	}
}

func TestNewSQLite_NilDB(t *testing.T) {
	if _, err := NewSQLite(nil); err == nil {
		t.Fatal("expected error for nil DB")
	}
}

func TestClient_AgainstHandler(t *testing.T) {
	srv := httptest.NewServer(Handler(NewMemory(nil), nil))
	defer srv.Close()
	exercise(t, NewClient(srv.URL, srv.Client()))
}

func TestHandler_CompactsAndValidates(t *testing.T) {
	mem := NewMemory(nil)
	h := Handler(mem, nil)

	req := httptest.NewRequest(http.MethodPut, "/kv/disable-which-social", strings.NewReader(" true \n"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("PUT: got %d, body: %s", rec.Code, rec.Body.String())
	}
	if v, _, _ := mem.Get(context.Background(), "disable-which-social"); v != "true" {
		t.Errorf("stored value: got %q, want %q", v, "true")
	}

	req = httptest.NewRequest(http.MethodPut, "/kv/saved-social-color", strings.NewReader("#008000"))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("PUT non-JSON: got %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/kv/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET missing: got %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET /health: got %d, want 200", rec.Code)
	}
}

func TestHandler_RejectsInvalidKeys(t *testing.T) {
	h := Handler(NewMemory(nil), nil)
	for _, path := range []string{"/kv/a%20b", "/kv/" + strings.Repeat("k", 301)} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("GET %s: got %d, want 400", path[:min(len(path), 20)], rec.Code)
		}
	}
}

func TestClient_ForwardsTraceID(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Trace-ID")
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	ctx := kit.WithSessionID(context.Background(), "sess_42")
	if _, ok, err := NewClient(srv.URL, srv.Client()).Get(ctx, "social-providers"); ok || err != nil {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got != "sess_42" {
		t.Errorf("X-Trace-ID: got %q, want sess_42", got)
	}
}
