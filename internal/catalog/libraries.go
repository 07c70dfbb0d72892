package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/your-org/gaze-engine/internal/catalogmodel"
)

// CreateLibrary registers a new folder root.
func (s *Store) CreateLibrary(ctx context.Context, folderPath, name string, recursive bool, nowMs int64) (*catalogmodel.Library, error) {
	lib := &catalogmodel.Library{
		LibraryID:   uuid.NewString(),
		FolderPath:  folderPath,
		Name:        name,
		Recursive:   recursive,
		CreatedAtMs: nowMs,
	}
	err := withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO libraries (library_id, folder_path, name, recursive, created_at_ms)
			VALUES (?, ?, ?, ?, ?)`,
			lib.LibraryID, lib.FolderPath, lib.Name, lib.Recursive, lib.CreatedAtMs)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create library: %w", err)
	}
	return lib, nil
}

func (s *Store) GetLibrary(ctx context.Context, libraryID string) (*catalogmodel.Library, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT library_id, folder_path, name, recursive, created_at_ms
		FROM libraries WHERE library_id = ?`, libraryID)
	return scanLibrary(row)
}

func (s *Store) ListLibraries(ctx context.Context) ([]catalogmodel.Library, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT library_id, folder_path, name, recursive, created_at_ms
		FROM libraries ORDER BY created_at_ms`)
	if err != nil {
		return nil, fmt.Errorf("list libraries: %w", err)
	}
	defer rows.Close()

	var out []catalogmodel.Library
	for rows.Next() {
		var l catalogmodel.Library
		var name sql.NullString
		if err := rows.Scan(&l.LibraryID, &l.FolderPath, &name, &l.Recursive, &l.CreatedAtMs); err != nil {
			return nil, fmt.Errorf("scan library: %w", err)
		}
		l.Name = name.String
		out = append(out, l)
	}
	return out, rows.Err()
}

// DeleteLibrary removes a library and cascades to all of its media,
// frames, detections, transcripts, and faces.
func (s *Store) DeleteLibrary(ctx context.Context, libraryID string) error {
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM libraries WHERE library_id = ?`, libraryID)
		return err
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLibrary(row rowScanner) (*catalogmodel.Library, error) {
	var l catalogmodel.Library
	var name sql.NullString
	err := row.Scan(&l.LibraryID, &l.FolderPath, &name, &l.Recursive, &l.CreatedAtMs)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan library: %w", err)
	}
	l.Name = name.String
	return &l, nil
}
