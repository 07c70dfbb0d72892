package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/your-org/gaze-engine/internal/catalogmodel"
)

func (s *Store) CreateDetections(ctx context.Context, dets []catalogmodel.Detection) error {
	if len(dets) == 0 {
		return nil
	}
	return withRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()
		if err := insertDetections(ctx, tx, dets); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// ReplaceDetections deletes every prior detection for mediaID and
// bulk-inserts dets in the same transaction.
func (s *Store) ReplaceDetections(ctx context.Context, mediaID string, dets []catalogmodel.Detection) error {
	return withRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, `DELETE FROM detections WHERE video_id = ?`, mediaID); err != nil {
			return err
		}
		if err := insertDetections(ctx, tx, dets); err != nil {
			return err
		}
		return tx.Commit()
	})
}

func insertDetections(ctx context.Context, tx *sql.Tx, dets []catalogmodel.Detection) error {
	if len(dets) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO detections (detection_id, video_id, frame_id, timestamp_ms, label, confidence, bbox_x, bbox_y, bbox_w, bbox_h)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range dets {
		d := &dets[i]
		if d.DetectionID == "" {
			d.DetectionID = uuid.NewString()
		}
		var x, y, w, h sql.NullFloat64
		if d.BBox != nil {
			x = sql.NullFloat64{Float64: d.BBox.X, Valid: true}
			y = sql.NullFloat64{Float64: d.BBox.Y, Valid: true}
			w = sql.NullFloat64{Float64: d.BBox.W, Valid: true}
			h = sql.NullFloat64{Float64: d.BBox.H, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, d.DetectionID, d.VideoID, d.FrameID, d.TimestampMs, d.Label, d.Confidence, x, y, w, h); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ListDetectionsByMedia(ctx context.Context, mediaID string) ([]catalogmodel.Detection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT detection_id, video_id, frame_id, timestamp_ms, label, confidence, bbox_x, bbox_y, bbox_w, bbox_h
		FROM detections WHERE video_id = ? ORDER BY timestamp_ms`, mediaID)
	if err != nil {
		return nil, fmt.Errorf("list detections: %w", err)
	}
	defer rows.Close()
	return scanDetections(rows)
}

// DetectionsByLabel returns detections across all media matching
// label, the object-term search branch's raw candidate set.
func (s *Store) DetectionsByLabel(ctx context.Context, label string, minConfidence float64) ([]catalogmodel.Detection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT detection_id, video_id, frame_id, timestamp_ms, label, confidence, bbox_x, bbox_y, bbox_w, bbox_h
		FROM detections WHERE label = ? AND confidence >= ? ORDER BY video_id, timestamp_ms`, label, minConfidence)
	if err != nil {
		return nil, fmt.Errorf("detections by label: %w", err)
	}
	defer rows.Close()
	return scanDetections(rows)
}

func scanDetections(rows *sql.Rows) ([]catalogmodel.Detection, error) {
	var out []catalogmodel.Detection
	for rows.Next() {
		var d catalogmodel.Detection
		var x, y, w, h sql.NullFloat64
		if err := rows.Scan(&d.DetectionID, &d.VideoID, &d.FrameID, &d.TimestampMs, &d.Label, &d.Confidence, &x, &y, &w, &h); err != nil {
			return nil, fmt.Errorf("scan detection: %w", err)
		}
		if x.Valid {
			d.BBox = &catalogmodel.BBox{X: x.Float64, Y: y.Float64, W: w.Float64, H: h.Float64}
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
