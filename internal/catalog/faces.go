package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/your-org/gaze-engine/internal/catalogmodel"
)

const faceColumns = `
	face_id, video_id, frame_id, timestamp_ms,
	bbox_x, bbox_y, bbox_w, bbox_h, confidence, embedding, crop_path,
	age, gender, person_id, cluster_id,
	assignment_source, assignment_confidence, assigned_at_ms, created_at_ms`

func (s *Store) CreateFace(ctx context.Context, f *catalogmodel.Face, nowMs int64) error {
	if f.FaceID == "" {
		f.FaceID = uuid.NewString()
	}
	if f.AssignmentSource == "" {
		f.AssignmentSource = catalogmodel.AssignmentAuto
	}
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO faces (`+faceColumns+`)
			VALUES (?,?,?,?, ?,?,?,?,?,?,?, ?,?,?,?, ?,?,?,?)`,
			f.FaceID, f.VideoID, f.FrameID, f.TimestampMs,
			f.BBox.X, f.BBox.Y, f.BBox.W, f.BBox.H, f.Confidence, f.Embedding, f.CropPath,
			nullInt(f.Age), nullString(f.Gender), nullString(f.PersonID), nullString(f.ClusterID),
			f.AssignmentSource, nullFloat64(f.AssignmentConfidence), nullInt64(f.AssignedAtMs), nowMs,
		)
		return err
	})
}

// ReplaceFaces deletes every prior face row for mediaID, bulk-inserts
// faces, and recomputes face_count for every person affected by either
// the deletion or the new assignments, all within one transaction
//.
func (s *Store) ReplaceFaces(ctx context.Context, mediaID string, faces []catalogmodel.Face, nowMs int64) error {
	return withRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		affected := map[string]bool{}
		rows, err := tx.QueryContext(ctx, `SELECT DISTINCT person_id FROM faces WHERE video_id = ? AND person_id IS NOT NULL`, mediaID)
		if err != nil {
			return err
		}
		for rows.Next() {
			var personID string
			if err := rows.Scan(&personID); err != nil {
				rows.Close()
				return err
			}
			affected[personID] = true
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		if _, err := tx.ExecContext(ctx, `DELETE FROM faces WHERE video_id = ?`, mediaID); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO faces (`+faceColumns+`)
			VALUES (?,?,?,?, ?,?,?,?,?,?,?, ?,?,?,?, ?,?,?,?)`)
		if err != nil {
			return err
		}
		for i := range faces {
			f := &faces[i]
			if f.FaceID == "" {
				f.FaceID = uuid.NewString()
			}
			if f.AssignmentSource == "" {
				f.AssignmentSource = catalogmodel.AssignmentAuto
			}
			if _, err := stmt.ExecContext(ctx,
				f.FaceID, f.VideoID, f.FrameID, f.TimestampMs,
				f.BBox.X, f.BBox.Y, f.BBox.W, f.BBox.H, f.Confidence, f.Embedding, f.CropPath,
				nullInt(f.Age), nullString(f.Gender), nullString(f.PersonID), nullString(f.ClusterID),
				f.AssignmentSource, nullFloat64(f.AssignmentConfidence), nullInt64(f.AssignedAtMs), nowMs,
			); err != nil {
				stmt.Close()
				return err
			}
			if f.PersonID != nil {
				affected[*f.PersonID] = true
			}
		}
		stmt.Close()

		for personID := range affected {
			if _, err := tx.ExecContext(ctx, `
				UPDATE persons SET face_count = (SELECT COUNT(*) FROM faces WHERE person_id = ?), updated_at_ms = ?
				WHERE person_id = ?`, personID, nowMs, personID); err != nil {
				return err
			}
		}

		return tx.Commit()
	})
}

func (s *Store) GetFace(ctx context.Context, faceID string) (*catalogmodel.Face, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+faceColumns+` FROM faces WHERE face_id = ?`, faceID)
	return scanFace(row)
}

func (s *Store) ListFacesByMedia(ctx context.Context, mediaID string) ([]catalogmodel.Face, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+faceColumns+` FROM faces WHERE video_id = ? ORDER BY timestamp_ms`, mediaID)
	if err != nil {
		return nil, fmt.Errorf("list faces: %w", err)
	}
	defer rows.Close()
	return scanFaces(rows)
}

// ListUnassignedFaces returns faces with no person_id, oldest first,
// for the review queue and for clustering of unassigned faces.
func (s *Store) ListUnassignedFaces(ctx context.Context, limit int) ([]catalogmodel.Face, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+faceColumns+` FROM faces WHERE person_id IS NULL ORDER BY created_at_ms LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unassigned faces: %w", err)
	}
	defer rows.Close()
	return scanFaces(rows)
}

// ListFacesByPerson returns every face currently assigned to person,
// the input to centroid rebuilding.
func (s *Store) ListFacesByPerson(ctx context.Context, personID string) ([]catalogmodel.Face, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+faceColumns+` FROM faces WHERE person_id = ?`, personID)
	if err != nil {
		return nil, fmt.Errorf("list faces by person: %w", err)
	}
	defer rows.Close()
	return scanFaces(rows)
}

// AssignFace links a face to a person, recording how the assignment
// was made (auto-recognition, manual correction, or reference pick)
// and its confidence.
func (s *Store) AssignFace(ctx context.Context, faceID string, personID *string, source catalogmodel.AssignmentSource, confidence *float64, nowMs int64) error {
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			UPDATE faces SET person_id = ?, assignment_source = ?, assignment_confidence = ?, assigned_at_ms = ?
			WHERE face_id = ?`,
			nullString(personID), source, nullFloat64(confidence), nowMs, faceID)
		return err
	})
}

// SetFaceCluster tags an unassigned face with a cluster id, grouping
// faces the face-learning subsystem believes are the same unidentified
// person without yet committing to a Person row.
func (s *Store) SetFaceCluster(ctx context.Context, faceID, clusterID string) error {
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `UPDATE faces SET cluster_id = ? WHERE face_id = ?`, clusterID, faceID)
		return err
	})
}

func (s *Store) CountFacesForPerson(ctx context.Context, personID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM faces WHERE person_id = ?`, personID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count faces for person: %w", err)
	}
	return n, nil
}

func scanFaces(rows *sql.Rows) ([]catalogmodel.Face, error) {
	var out []catalogmodel.Face
	for rows.Next() {
		f, err := scanFace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

func scanFace(row rowScanner) (*catalogmodel.Face, error) {
	var f catalogmodel.Face
	var age sql.NullInt64
	var gender, personID, clusterID sql.NullString
	var assignConf sql.NullFloat64
	var assignedAt sql.NullInt64
	var createdAt int64

	err := row.Scan(
		&f.FaceID, &f.VideoID, &f.FrameID, &f.TimestampMs,
		&f.BBox.X, &f.BBox.Y, &f.BBox.W, &f.BBox.H, &f.Confidence, &f.Embedding, &f.CropPath,
		&age, &gender, &personID, &clusterID,
		&f.AssignmentSource, &assignConf, &assignedAt, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan face: %w", err)
	}
	f.Age = fromNullInt(age)
	f.Gender = fromNullString(gender)
	f.PersonID = fromNullString(personID)
	f.ClusterID = fromNullString(clusterID)
	f.AssignmentConfidence = fromNullFloat64(assignConf)
	f.AssignedAtMs = fromNullInt64(assignedAt)
	return &f, nil
}
