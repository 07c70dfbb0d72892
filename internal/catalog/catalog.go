// Package catalog is the on-disk store for everything gaze-engine
// knows about a user's media: libraries, media items, frames,
// detections, transcripts, faces, persons, and the user's own
// favorites/tags. It is backed by a single SQLite file
// (modernc.org/sqlite, pure Go, no cgo) in WAL mode, giving a
// single-host deployment an embedded store with no separate database
// process to run.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the catalog's database handle. All methods are safe for
// concurrent use; SQLite serializes writers internally and withRetry
// absorbs the resulting SQLITE_BUSY errors.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open creates (or reuses) the SQLite file at path, applies pragmas,
// creates the schema, migrates older databases, and runs crash repair.
func Open(ctx context.Context, path string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(30000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	// SQLite only allows one writer; a single connection avoids
	// SQLITE_BUSY from this process racing itself.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, log: log}

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 30000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("catalog: %s: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, schemaTables); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: create schema: %w", err)
	}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: migrate: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaIndexes); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: create indexes: %w", err)
	}

	if err := s.repairCrashedState(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: crash repair: %w", err)
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// migrate adds any column listed in migrationColumns that an existing
// database file predates, matching the additive ALTER TABLE approach
// the original engine uses so older catalogs upgrade in place.
func (s *Store) migrate(ctx context.Context) error {
	for table, cols := range migrationColumns {
		rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
		if err != nil {
			return fmt.Errorf("table_info(%s): %w", table, err)
		}
		existing := map[string]bool{}
		for rows.Next() {
			var cid int
			var name, colType string
			var notNull, pk int
			var dflt sql.NullString
			if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
				rows.Close()
				return err
			}
			existing[name] = true
		}
		rows.Close()

		for _, col := range cols {
			name, def := col[0], col[1]
			if existing[name] {
				continue
			}
			stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, name, def)
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				s.log.Warn("migration: failed to add column", "table", table, "column", name, "error", err)
				continue
			}
			s.log.Info("migration: added column", "table", table, "column", name)
		}
	}
	return nil
}

// repairCrashedState resets work an unclean shutdown left half-done:
// media items stuck in an intermediate processing stage go back to
// QUEUED so the scheduler re-admits them, and jobs still marked
// in-progress are failed with CANCELLED so the WebSocket surface
// doesn't show phantom progress forever.
func (s *Store) repairCrashedState(ctx context.Context) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE media SET status = 'QUEUED', progress = 0.0
		WHERE status NOT IN ('QUEUED', 'DONE', 'FAILED', 'CANCELLED')`)
	if err != nil {
		return fmt.Errorf("reset stuck media: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.log.Info("crash repair: requeued media stuck mid-pipeline", "count", n)
	}

	res, err = s.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'FAILED', error_code = 'CANCELLED', error_message = 'interrupted by restart'
		WHERE status IN ('PENDING', 'QUEUED', 'EXTRACTING_AUDIO', 'TRANSCRIBING', 'EXTRACTING_FRAMES', 'EMBEDDING', 'DETECTING', 'DETECTING_FACES')`)
	if err != nil {
		return fmt.Errorf("fail stuck jobs: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.log.Info("crash repair: failed jobs interrupted by restart", "count", n)
	}
	return nil
}

// isBusy reports whether err is a transient SQLITE_BUSY/SQLITE_LOCKED
// condition worth retrying.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// withRetry runs fn up to 5 times in total while SQLite reports the
// database busy, sleeping an additive 100ms backoff (100, 200, 300,
// 400, 500ms) after each busy attempt. A bounded-retry shape adapted from reconnect-loop style
// network backoff to storage-layer write contention instead.
func withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= 5; attempt++ {
		err = fn()
		if err == nil || !isBusy(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
		}
	}
	return err
}

var ErrNotFound = errors.New("catalog: not found")
