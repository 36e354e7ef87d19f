package qgm

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewTLSServer(handler)
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatalf("split host: %v", err)
	}
	port, _ := strconv.Atoi(portStr)
	return New(Config{
		Host:      host,
		Port:      port,
		Username:  "admin",
		Password:  "secret",
		VerifySSL: false,
		Timeout:   2 * time.Second,
	})
}

func TestAPIInfo(t *testing.T) {
	var gotPath, gotUser string
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, _, _ = r.BasicAuth()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"version":"3.10.00.01","buildTime":"2025-01-15"}`))
	}))

	info, err := client.APIInfo(context.Background())
	if err != nil {
		t.Fatalf("api info: %v", err)
	}
	if info.Version != "3.10.00.01" {
		t.Fatalf("version = %q", info.Version)
	}
	if gotPath != "/api/v2/config/about" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotUser != "admin" {
		t.Fatalf("basic auth user = %q", gotUser)
	}
}

func TestAPIInfoAuthFailure(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	if _, err := client.APIInfo(context.Background()); err == nil {
		t.Fatalf("expected error on 401")
	}
	if client.IsReachable(context.Background()) {
		t.Fatalf("401 should read as unreachable")
	}
}

func TestIsReachableDownManager(t *testing.T) {
	client := New(Config{
		Host:      "127.0.0.1",
		Port:      1, // nothing listens here
		Username:  "admin",
		Password:  "secret",
		VerifySSL: false,
		Timeout:   500 * time.Millisecond,
	})
	if client.IsReachable(context.Background()) {
		t.Fatalf("closed port should read as unreachable")
	}
}

func TestConfigured(t *testing.T) {
	if (Config{}).Configured() {
		t.Fatalf("empty config should not be configured")
	}
	if !(Config{Host: "h", Username: "u", Password: "p"}).Configured() {
		t.Fatalf("full config should be configured")
	}
	if (Config{Host: "h", Username: "u"}).Configured() {
		t.Fatalf("missing password should not be configured")
	}
}
