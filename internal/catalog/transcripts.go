package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/your-org/gaze-engine/internal/catalogmodel"
)

// CreateTranscriptSegments stores the transcriber's output and keeps
// the FTS index in lockstep, in a single transaction.
func (s *Store) CreateTranscriptSegments(ctx context.Context, segments []catalogmodel.TranscriptSegment) error {
	if len(segments) == 0 {
		return nil
	}
	return withRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		segStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO transcript_segments (video_id, start_ms, end_ms, text, confidence) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer segStmt.Close()

		ftsStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO transcript_fts (video_id, start_ms, end_ms, text) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer ftsStmt.Close()

		for _, seg := range segments {
			if _, err := segStmt.ExecContext(ctx, seg.VideoID, seg.StartMs, seg.EndMs, seg.Text, nullFloat64(seg.Confidence)); err != nil {
				return err
			}
			if _, err := ftsStmt.ExecContext(ctx, seg.VideoID, seg.StartMs, seg.EndMs, seg.Text); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

func (s *Store) ListTranscriptSegments(ctx context.Context, mediaID string) ([]catalogmodel.TranscriptSegment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT video_id, start_ms, end_ms, text, confidence
		FROM transcript_segments WHERE video_id = ? ORDER BY start_ms`, mediaID)
	if err != nil {
		return nil, fmt.Errorf("list transcript segments: %w", err)
	}
	defer rows.Close()

	var out []catalogmodel.TranscriptSegment
	for rows.Next() {
		var seg catalogmodel.TranscriptSegment
		var conf sql.NullFloat64
		if err := rows.Scan(&seg.VideoID, &seg.StartMs, &seg.EndMs, &seg.Text, &conf); err != nil {
			return nil, fmt.Errorf("scan transcript segment: %w", err)
		}
		seg.Confidence = fromNullFloat64(conf)
		out = append(out, seg)
	}
	return out, rows.Err()
}

func (s *Store) DeleteTranscriptSegments(ctx context.Context, mediaID string) error {
	return withRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()
		if _, err := tx.ExecContext(ctx, `DELETE FROM transcript_segments WHERE video_id = ?`, mediaID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM transcript_fts WHERE video_id = ?`, mediaID); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// TranscriptMatch is one FTS hit, carrying the bm25 rank for
// downstream normalization by the search planner.
type TranscriptMatch struct {
	VideoID string
	StartMs int64
	EndMs   int64
	Text    string
	Rank    float64
}

// EscapeFTSPhrase quotes a user query for fts5 MATCH, doubling any
// embedded double-quote so the phrase can't break out of its quoted
// span (fts5's own escaping convention for quoted string tokens).
func EscapeFTSPhrase(phrase string) string {
	escaped := strings.ReplaceAll(phrase, `"`, `""`)
	return `"` + escaped + `"`
}

// SearchTranscripts runs an FTS5 MATCH query, optionally scoped to one
// media item, ranked by bm25 (more negative is a better match in
// SQLite's fts5, so callers sort ascending on Rank).
func (s *Store) SearchTranscripts(ctx context.Context, query string, mediaID string, limit int) ([]TranscriptMatch, error) {
	sqlQuery := `
		SELECT video_id, start_ms, end_ms, text, bm25(transcript_fts) AS rank
		FROM transcript_fts WHERE transcript_fts MATCH ?`
	args := []any{query}
	if mediaID != "" {
		sqlQuery += ` AND video_id = ?`
		args = append(args, mediaID)
	}
	sqlQuery += ` ORDER BY rank LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("search transcripts: %w", err)
	}
	defer rows.Close()

	var out []TranscriptMatch
	for rows.Next() {
		var m TranscriptMatch
		if err := rows.Scan(&m.VideoID, &m.StartMs, &m.EndMs, &m.Text, &m.Rank); err != nil {
			return nil, fmt.Errorf("scan transcript match: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
