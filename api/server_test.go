package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

type fakeHub struct {
	upgraded bool
}

func (f *fakeHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	f.upgraded = true
	w.WriteHeader(http.StatusOK)
}

func TestHealthzReturnsOK(t *testing.T) {
	dir := t.TempDir()
	s := NewServer(&fakeHub{}, dir)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %+v", body)
	}
}

func TestWSRouteDelegatesToHub(t *testing.T) {
	dir := t.TempDir()
	hub := &fakeHub{}
	s := NewServer(hub, dir)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if !hub.upgraded {
		t.Fatal("expected /ws to be routed to the hub")
	}
}

func TestStaticFileServedFromDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "page.html"), []byte("<html>hi</html>"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	s := NewServer(&fakeHub{}, dir)

	req := httptest.NewRequest(http.MethodGet, "/page.html", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "<html>hi</html>" {
		t.Fatalf("unexpected body: %q", rec.Body.String())
	}
}

func TestUnknownStaticPathReturnsNotFound(t *testing.T) {
	dir := t.TempDir()
	s := NewServer(&fakeHub{}, dir)

	req := httptest.NewRequest(http.MethodGet, "/missing.html", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
