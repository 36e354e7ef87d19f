package lifecycle

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := Store{Path: filepath.Join(dir, "run", "server.pid")}
	if err := s.Write(4242, 1700000000); err != nil {
		t.Fatalf("write: %v", err)
	}
	rec, err := s.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if rec.PID != 4242 || rec.StartUnix != 1700000000 {
		t.Fatalf("record mismatch: %+v", rec)
	}
}

func TestStoreReadsPlainPIDOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.pid")
	if err := os.WriteFile(path, []byte("12345\n"), 0o600); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	rec, err := Store{Path: path}.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if rec.PID != 12345 || rec.StartUnix != 0 {
		t.Fatalf("record mismatch: %+v", rec)
	}
}

func TestStoreReadGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.pid")
	if err := os.WriteFile(path, []byte("not a pid\n"), 0o600); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	if _, err := (Store{Path: path}).Read(); err == nil {
		t.Fatalf("expected error for garbage pid file")
	}
}

func TestStoreRemoveIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	s := Store{Path: filepath.Join(dir, "server.pid")}
	if err := s.Remove(); err != nil {
		t.Fatalf("remove missing file: %v", err)
	}
	if err := s.Write(1, 0); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.Remove(); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if s.Exists() {
		t.Fatalf("file still present after remove")
	}
}
