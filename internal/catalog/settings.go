package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// GetSetting reads one key from the flat settings table.
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO settings (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
		return err
	})
}

func (s *Store) AllSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// --- Favorites ---

func (s *Store) SetMediaFavorite(ctx context.Context, mediaID string, favorite bool, nowMs int64) error {
	return withRetry(ctx, func() error {
		var err error
		if favorite {
			_, err = s.db.ExecContext(ctx, `INSERT OR IGNORE INTO media_favorites (media_id, created_at_ms) VALUES (?, ?)`, mediaID, nowMs)
		} else {
			_, err = s.db.ExecContext(ctx, `DELETE FROM media_favorites WHERE media_id = ?`, mediaID)
		}
		return err
	})
}

func (s *Store) ListFavoriteMediaIDs(ctx context.Context) ([]string, error) {
	return queryStrings(ctx, s.db, `SELECT media_id FROM media_favorites ORDER BY created_at_ms DESC`)
}

func (s *Store) SetPersonFavorite(ctx context.Context, personID string, favorite bool, nowMs int64) error {
	return withRetry(ctx, func() error {
		var err error
		if favorite {
			_, err = s.db.ExecContext(ctx, `INSERT OR IGNORE INTO person_favorites (person_id, created_at_ms) VALUES (?, ?)`, personID, nowMs)
		} else {
			_, err = s.db.ExecContext(ctx, `DELETE FROM person_favorites WHERE person_id = ?`, personID)
		}
		return err
	})
}

func (s *Store) ListFavoritePersonIDs(ctx context.Context) ([]string, error) {
	return queryStrings(ctx, s.db, `SELECT person_id FROM person_favorites ORDER BY created_at_ms DESC`)
}

// --- Tags ---

func (s *Store) AddMediaTag(ctx context.Context, mediaID, tag string, nowMs int64) error {
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO media_tags (media_id, tag, created_at_ms) VALUES (?, ?, ?)`, mediaID, tag, nowMs)
		return err
	})
}

func (s *Store) RemoveMediaTag(ctx context.Context, mediaID, tag string) error {
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM media_tags WHERE media_id = ? AND tag = ?`, mediaID, tag)
		return err
	})
}

func (s *Store) ListMediaTags(ctx context.Context, mediaID string) ([]string, error) {
	return queryStrings(ctx, s.db, `SELECT tag FROM media_tags WHERE media_id = ? ORDER BY tag`, mediaID)
}

func (s *Store) MediaIDsByTag(ctx context.Context, tag string) ([]string, error) {
	return queryStrings(ctx, s.db, `SELECT media_id FROM media_tags WHERE tag = ?`, tag)
}

func queryStrings(ctx context.Context, db *sql.DB, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query strings: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
