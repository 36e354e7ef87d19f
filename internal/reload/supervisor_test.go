//go:build !windows

package reload

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 8000\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{ConfigPath: "config.yaml"}); err == nil {
		t.Fatalf("expected error for empty command")
	}
	if _, err := New(Config{Command: []string{"sleep", "1"}}); err == nil {
		t.Fatalf("expected error for empty config path")
	}
}

func TestRunStopsWorkerOnCancel(t *testing.T) {
	s, err := New(Config{
		ConfigPath: writeConfig(t),
		Command:    []string{"sleep", "300"},
		Grace:      time.Second,
		KillWait:   time.Second,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(300 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("supervisor did not stop after cancel")
	}
}

func TestRunRestartsWorkerOnConfigChange(t *testing.T) {
	configPath := writeConfig(t)
	pidLog := filepath.Join(t.TempDir(), "pids")
	s, err := New(Config{
		ConfigPath: configPath,
		Command:    []string{"sh", "-c", "echo $$ >> " + pidLog + "; sleep 300"},
		Debounce:   100 * time.Millisecond,
		Grace:      time.Second,
		KillWait:   time.Second,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(300 * time.Millisecond)
	if err := os.WriteFile(configPath, []byte("server:\n  port: 9000\n"), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for {
		data, _ := os.ReadFile(pidLog)
		if len(strings.Fields(string(data))) >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("worker was not restarted; pid log: %q", string(data))
		}
		time.Sleep(100 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("supervisor did not stop after cancel")
	}
}

func TestRunReturnsWhenWorkerExits(t *testing.T) {
	s, err := New(Config{
		ConfigPath: writeConfig(t),
		Command:    []string{"true"},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("clean worker exit should return nil: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("supervisor did not notice worker exit")
	}
}
