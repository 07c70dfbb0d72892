package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/your-org/gaze-engine/internal/catalogmodel"
)

func (s *Store) CreatePerson(ctx context.Context, name string, nowMs int64) (*catalogmodel.Person, error) {
	p := &catalogmodel.Person{
		PersonID:        uuid.NewString(),
		Name:            name,
		RecognitionMode: catalogmodel.RecognitionAverage,
		CreatedAtMs:     nowMs,
		UpdatedAtMs:     nowMs,
	}
	err := withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO persons (person_id, name, recognition_mode, created_at_ms, updated_at_ms)
			VALUES (?, ?, ?, ?, ?)`,
			p.PersonID, p.Name, p.RecognitionMode, p.CreatedAtMs, p.UpdatedAtMs)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create person: %w", err)
	}
	return p, nil
}

func (s *Store) GetPerson(ctx context.Context, personID string) (*catalogmodel.Person, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT person_id, name, thumbnail_face_id, face_count, recognition_mode, created_at_ms, updated_at_ms
		FROM persons WHERE person_id = ?`, personID)
	return scanPerson(row)
}

func (s *Store) ListPersons(ctx context.Context) ([]catalogmodel.Person, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT person_id, name, thumbnail_face_id, face_count, recognition_mode, created_at_ms, updated_at_ms
		FROM persons ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	defer rows.Close()

	var out []catalogmodel.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *Store) RenamePerson(ctx context.Context, personID, name string, nowMs int64) error {
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `UPDATE persons SET name = ?, updated_at_ms = ? WHERE person_id = ?`, name, nowMs, personID)
		return err
	})
}

func (s *Store) SetRecognitionMode(ctx context.Context, personID string, mode catalogmodel.RecognitionMode, nowMs int64) error {
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `UPDATE persons SET recognition_mode = ?, updated_at_ms = ? WHERE person_id = ?`, mode, nowMs, personID)
		return err
	})
}

func (s *Store) SetPersonThumbnail(ctx context.Context, personID, faceID string) error {
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `UPDATE persons SET thumbnail_face_id = ? WHERE person_id = ?`, faceID, personID)
		return err
	})
}

func (s *Store) RecountFaces(ctx context.Context, personID string, nowMs int64) error {
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			UPDATE persons SET face_count = (SELECT COUNT(*) FROM faces WHERE person_id = ?), updated_at_ms = ?
			WHERE person_id = ?`, personID, nowMs, personID)
		return err
	})
}

func (s *Store) DeletePerson(ctx context.Context, personID string) error {
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM persons WHERE person_id = ?`, personID)
		return err
	})
}

func scanPerson(row rowScanner) (*catalogmodel.Person, error) {
	var p catalogmodel.Person
	var thumb sql.NullString
	err := row.Scan(&p.PersonID, &p.Name, &thumb, &p.FaceCount, &p.RecognitionMode, &p.CreatedAtMs, &p.UpdatedAtMs)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan person: %w", err)
	}
	p.ThumbnailFaceID = fromNullString(thumb)
	return &p, nil
}

// --- Face references (canonical examples) ---

func (s *Store) AddFaceReference(ctx context.Context, faceID, personID string, weight, nowMs float64) error {
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO face_references (face_id, person_id, weight, created_at_ms) VALUES (?, ?, ?, ?)
			ON CONFLICT(face_id, person_id) DO UPDATE SET weight = excluded.weight`,
			faceID, personID, weight, int64(nowMs))
		return err
	})
}

func (s *Store) ListFaceReferences(ctx context.Context, personID string) ([]catalogmodel.FaceReference, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT face_id, person_id, weight FROM face_references WHERE person_id = ?`, personID)
	if err != nil {
		return nil, fmt.Errorf("list face references: %w", err)
	}
	defer rows.Close()
	var out []catalogmodel.FaceReference
	for rows.Next() {
		var r catalogmodel.FaceReference
		if err := rows.Scan(&r.FaceID, &r.PersonID, &r.Weight); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) RemoveFaceReference(ctx context.Context, faceID, personID string) error {
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM face_references WHERE face_id = ? AND person_id = ?`, faceID, personID)
		return err
	})
}

// --- Face negatives ---

func (s *Store) AddFaceNegative(ctx context.Context, faceID, personID string, nowMs int64) error {
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO face_negatives (face_id, person_id, created_at_ms) VALUES (?, ?, ?)`,
			faceID, personID, nowMs)
		return err
	})
}

func (s *Store) ListFaceNegatives(ctx context.Context, personID string) ([]catalogmodel.FaceNegative, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT face_id, person_id FROM face_negatives WHERE person_id = ?`, personID)
	if err != nil {
		return nil, fmt.Errorf("list face negatives: %w", err)
	}
	defer rows.Close()
	var out []catalogmodel.FaceNegative
	for rows.Next() {
		var n catalogmodel.FaceNegative
		if err := rows.Scan(&n.FaceID, &n.PersonID); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// --- Person pair thresholds ---

// orderedPair returns (a, b) lexicographically sorted so the
// unordered pair always maps to one canonical row regardless of
// which person was corrected against which.
func orderedPair(x, y string) (string, string) {
	if x <= y {
		return x, y
	}
	return y, x
}

func (s *Store) BumpPairThreshold(ctx context.Context, personX, personY string, newThreshold float64, nowMs int64) error {
	a, b := orderedPair(personX, personY)
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO person_pair_thresholds (person_a_id, person_b_id, threshold, correction_count, created_at_ms, updated_at_ms)
			VALUES (?, ?, ?, 1, ?, ?)
			ON CONFLICT(person_a_id, person_b_id) DO UPDATE SET
				threshold = excluded.threshold,
				correction_count = person_pair_thresholds.correction_count + 1,
				updated_at_ms = excluded.updated_at_ms`,
			a, b, newThreshold, nowMs, nowMs)
		return err
	})
}

func (s *Store) GetPairThreshold(ctx context.Context, personX, personY string) (*catalogmodel.PersonPairThreshold, error) {
	a, b := orderedPair(personX, personY)
	row := s.db.QueryRowContext(ctx, `
		SELECT person_a_id, person_b_id, threshold, correction_count
		FROM person_pair_thresholds WHERE person_a_id = ? AND person_b_id = ?`, a, b)
	var t catalogmodel.PersonPairThreshold
	err := row.Scan(&t.PersonAID, &t.PersonBID, &t.Threshold, &t.CorrectionCount)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pair threshold: %w", err)
	}
	return &t, nil
}

func (s *Store) ListPairThresholds(ctx context.Context) ([]catalogmodel.PersonPairThreshold, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT person_a_id, person_b_id, threshold, correction_count FROM person_pair_thresholds`)
	if err != nil {
		return nil, fmt.Errorf("list pair thresholds: %w", err)
	}
	defer rows.Close()
	var out []catalogmodel.PersonPairThreshold
	for rows.Next() {
		var t catalogmodel.PersonPairThreshold
		if err := rows.Scan(&t.PersonAID, &t.PersonBID, &t.Threshold, &t.CorrectionCount); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
