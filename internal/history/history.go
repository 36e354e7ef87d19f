package history

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Teradata/teradata-qg-mcp-server/internal/lifecycle"
)

// Journal appends lifecycle events to a SQLite audit table. It implements
// the lifecycle event sink contract; a journal failure never fails the
// operation that produced the event.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger
}

// Entry is one recorded lifecycle event.
type Entry struct {
	Timestamp   time.Time
	Kind        string
	Mode        string
	PID         int
	Descendants int
}

// Open creates or opens the journal database.
// DSN format:
//   - "sqlite:///path/to/file.db"
//   - "/path/to/file.db" (without prefix)
//   - ":memory:" (in-memory database)
func Open(dsn string, logger *slog.Logger) (*Journal, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("empty history DSN")
	}
	if strings.HasPrefix(strings.ToLower(dsn), "sqlite://") {
		dsn = strings.TrimPrefix(dsn, "sqlite://")
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	j := &Journal{db: db, logger: logger}
	if err := j.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) ensureSchema(ctx context.Context) error {
	stmt := `CREATE TABLE IF NOT EXISTS lifecycle_history(
		timestamp TIMESTAMP NOT NULL DEFAULT (CURRENT_TIMESTAMP),
		kind TEXT NOT NULL,
		mode TEXT NOT NULL,
		pid INTEGER NOT NULL,
		descendants INTEGER NOT NULL DEFAULT 0
	);`
	_, err := j.db.ExecContext(ctx, stmt)
	return err
}

// Record appends one event. Errors are logged and swallowed so journaling
// can never block or fail a start or stop.
func (j *Journal) Record(e lifecycle.Event) {
	_, err := j.db.Exec(
		`INSERT INTO lifecycle_history(timestamp, kind, mode, pid, descendants) VALUES (?, ?, ?, ?, ?)`,
		time.Now().UTC(), string(e.Kind), e.Mode, e.PID, e.Descendants,
	)
	if err != nil {
		j.logger.Warn("history journal write failed", "error", err)
	}
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT timestamp, kind, mode, pid, descendants FROM lifecycle_history ORDER BY timestamp DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Timestamp, &e.Kind, &e.Mode, &e.PID, &e.Descendants); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close releases the database handle.
func (j *Journal) Close() error { return j.db.Close() }
