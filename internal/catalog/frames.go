package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/your-org/gaze-engine/internal/catalogmodel"
)

func (s *Store) CreateFrame(ctx context.Context, f *catalogmodel.Frame) error {
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO frames (frame_id, video_id, frame_index, timestamp_ms, thumbnail_path, colors)
			VALUES (?, ?, ?, ?, ?, ?)`,
			f.FrameID, f.VideoID, f.FrameIndex, f.TimestampMs, f.ThumbnailPath, nullString(f.Colors))
		return err
	})
}

// ReplaceFrames deletes every prior frame row for mediaID and
// bulk-inserts frames in the same transaction.
func (s *Store) ReplaceFrames(ctx context.Context, mediaID string, frames []catalogmodel.Frame) error {
	return withRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, `DELETE FROM frames WHERE video_id = ?`, mediaID); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO frames (frame_id, video_id, frame_index, timestamp_ms, thumbnail_path, colors)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i := range frames {
			f := &frames[i]
			if _, err := stmt.ExecContext(ctx, f.FrameID, f.VideoID, f.FrameIndex, f.TimestampMs, f.ThumbnailPath, nullString(f.Colors)); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

func (s *Store) ListFramesByMedia(ctx context.Context, mediaID string) ([]catalogmodel.Frame, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT frame_id, video_id, frame_index, timestamp_ms, thumbnail_path, colors
		FROM frames WHERE video_id = ? ORDER BY timestamp_ms`, mediaID)
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	defer rows.Close()

	var out []catalogmodel.Frame
	for rows.Next() {
		var f catalogmodel.Frame
		var colors sql.NullString
		if err := rows.Scan(&f.FrameID, &f.VideoID, &f.FrameIndex, &f.TimestampMs, &f.ThumbnailPath, &colors); err != nil {
			return nil, fmt.Errorf("scan frame: %w", err)
		}
		f.Colors = fromNullString(colors)
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) GetFrame(ctx context.Context, frameID string) (*catalogmodel.Frame, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT frame_id, video_id, frame_index, timestamp_ms, thumbnail_path, colors
		FROM frames WHERE frame_id = ?`, frameID)
	var f catalogmodel.Frame
	var colors sql.NullString
	err := row.Scan(&f.FrameID, &f.VideoID, &f.FrameIndex, &f.TimestampMs, &f.ThumbnailPath, &colors)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get frame: %w", err)
	}
	f.Colors = fromNullString(colors)
	return &f, nil
}

// FramesWithColor returns frame IDs whose quantized palette contains
// colorName, for the search planner's color-term matching.
func (s *Store) FramesWithColor(ctx context.Context, mediaID, colorName string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT frame_id FROM frames WHERE video_id = ? AND colors LIKE '%' || ? || '%'`,
		mediaID, colorName)
	if err != nil {
		return nil, fmt.Errorf("frames with color: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
