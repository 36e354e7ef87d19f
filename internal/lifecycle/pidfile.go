package lifecycle

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Record is the on-disk state of the managed server: the PID on the first
// line and, on the second line, JSON meta with the process start time so a
// reused PID is never mistaken for our server.
type Record struct {
	PID       int
	StartUnix int64
}

type recordMeta struct {
	StartUnix int64 `json:"start_unix"`
}

// Store reads and writes the single PID file. Every destructive lifecycle
// action checks existence and signature match before acting on the record.
type Store struct {
	Path string
}

// Write persists pid and its start time, creating the parent directory if
// needed. The file is owner read/write only.
func (s Store) Write(pid int, startUnix int64) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o750); err != nil {
		return err
	}
	meta, err := json.Marshal(recordMeta{StartUnix: startUnix})
	if err != nil {
		return err
	}
	content := strconv.Itoa(pid) + "\n" + string(meta) + "\n"
	return os.WriteFile(s.Path, []byte(content), 0o600)
}

// Read parses the PID file. Files written by older launchers contain only
// the PID line; those parse with a zero StartUnix.
func (s Store) Read() (Record, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return Record{}, err
	}
	pidLine, rest, _ := strings.Cut(string(b), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(pidLine))
	if err != nil {
		return Record{}, err
	}
	rec := Record{PID: pid}
	rest = strings.TrimSpace(rest)
	if rest != "" {
		var meta recordMeta
		if err := json.Unmarshal([]byte(rest), &meta); err == nil {
			rec.StartUnix = meta.StartUnix
		}
	}
	return rec, nil
}

// Exists reports whether the PID file is present.
func (s Store) Exists() bool {
	_, err := os.Stat(s.Path)
	return err == nil
}

// Remove deletes the PID file. Missing files are not an error.
func (s Store) Remove() error {
	err := os.Remove(s.Path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}
