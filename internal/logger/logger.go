package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation settings applied when a field is zero.
const (
	DefaultMaxSizeMB     = 100
	DefaultMaxBackups    = 10
	DefaultRetentionDays = 30
)

// Config describes the server log destination. The server writes into a
// dated file under Dir; rotation parameters follow lumberjack semantics.
type Config struct {
	Dir           string
	Level         string
	MaxSizeMB     int
	MaxBackups    int
	RetentionDays int
}

// FilePath returns the log file for the given day, qg_server_YYYYMMDD.log
// under the configured directory.
func (c Config) FilePath(now time.Time) string {
	return filepath.Join(c.Dir, fmt.Sprintf("qg_server_%s.log", now.Format("20060102")))
}

// Writer opens a rotating writer for today's log file, creating the
// directory if needed.
func (c Config) Writer(now time.Time) (io.WriteCloser, error) {
	if err := os.MkdirAll(c.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	return &lj.Logger{
		Filename:   c.FilePath(now),
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.RetentionDays, DefaultRetentionDays),
	}, nil
}

// New builds a slog.Logger writing text records to w at the configured
// level. Unknown level names fall back to info.
func (c Config) New(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(c.Level)}))
}

// ParseLevel maps a level name to a slog.Level, case-insensitively.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// CleanupAged removes qg_server_*.log files in Dir whose modification time
// is older than the retention window. Lumberjack ages out its own rotated
// backups, but dated files from previous days fall outside a single
// lumberjack logger's view, so they are swept here.
func (c Config) CleanupAged(now time.Time) (int, error) {
	days := valOr(c.RetentionDays, DefaultRetentionDays)
	cutoff := now.AddDate(0, 0, -days)
	matches, err := filepath.Glob(filepath.Join(c.Dir, "qg_server_*.log"))
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

func valOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
