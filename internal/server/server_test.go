package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Teradata/teradata-qg-mcp-server/internal/qgm"
)

type fakeManager struct {
	info qgm.APIInfo
	err  error
}

func (f fakeManager) APIInfo(context.Context) (qgm.APIInfo, error) { return f.info, f.err }

func getHealth(t *testing.T, r *Router) (int, map[string]any) {
	t.Helper()
	srv := httptest.NewServer(r.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	var doc map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.StatusCode, doc
}

func TestHealthNotConfigured(t *testing.T) {
	code, doc := getHealth(t, NewRouter(nil, false, nil))
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if doc["app"] != "ok" || doc["querygrid"] != "not-configured" {
		t.Fatalf("doc = %v", doc)
	}
	if _, ok := doc["querygrid_version"]; ok {
		t.Fatalf("version should be absent when not configured")
	}
}

func TestHealthManagerReachable(t *testing.T) {
	mgr := fakeManager{info: qgm.APIInfo{Version: "3.10.00.01"}}
	code, doc := getHealth(t, NewRouter(mgr, true, nil))
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if doc["querygrid"] != "ok" {
		t.Fatalf("doc = %v", doc)
	}
	if doc["querygrid_version"] != "3.10.00.01" {
		t.Fatalf("version = %v", doc["querygrid_version"])
	}
}

func TestHealthManagerUnreachable(t *testing.T) {
	mgr := fakeManager{err: errors.New("connection refused")}
	code, doc := getHealth(t, NewRouter(mgr, true, nil))
	if code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", code)
	}
	if doc["app"] != "ok" {
		t.Fatalf("app should still report ok: %v", doc)
	}
	if doc["querygrid"] != "unreachable" {
		t.Fatalf("doc = %v", doc)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := httptest.NewServer(NewRouter(nil, false, nil).Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
