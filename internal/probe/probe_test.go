package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCheckRelaysHealthDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"app":"ok","querygrid":"ok","querygrid_version":"3.10"}`))
	}))
	defer srv.Close()

	health, err := HTTP{URL: srv.URL + "/health"}.Check(context.Background())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if health["app"] != "ok" || health["querygrid"] != "ok" {
		t.Fatalf("health = %v", health)
	}
	if health["querygrid_version"] != "3.10" {
		t.Fatalf("version = %v", health["querygrid_version"])
	}
}

func TestCheckNon200ReturnsDocumentAndError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"app":"ok","querygrid":"unreachable"}`))
	}))
	defer srv.Close()

	health, err := HTTP{URL: srv.URL + "/health"}.Check(context.Background())
	if err == nil {
		t.Fatalf("expected error on 503")
	}
	if health["querygrid"] != "unreachable" {
		t.Fatalf("degraded document should still be relayed: %v", health)
	}
}

func TestCheckUnreachableServer(t *testing.T) {
	p := HTTP{URL: "http://127.0.0.1:1/health", Timeout: 500 * time.Millisecond}
	if _, err := p.Check(context.Background()); err == nil {
		t.Fatalf("expected error for closed port")
	}
}

func TestCheckHonorsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(5 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	start := time.Now()
	_, err := HTTP{URL: srv.URL, Timeout: 200 * time.Millisecond}.Check(context.Background())
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("probe did not respect timeout: %v", elapsed)
	}
}
