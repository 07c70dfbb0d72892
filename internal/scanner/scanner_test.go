package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/your-org/gaze-engine/internal/artifacts"
	"github.com/your-org/gaze-engine/internal/catalog"
	"github.com/your-org/gaze-engine/internal/catalogmodel"
)

func newTestScanner(t *testing.T) (*Scanner, *catalog.Store, string) {
	t.Helper()
	dir := t.TempDir()

	store, err := catalog.Open(context.Background(), filepath.Join(dir, "catalog.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	art, err := artifacts.Open(filepath.Join(dir, "data"))
	require.NoError(t, err)

	return New(store, art, nil), store, dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestScanDiscoversNewFiles(t *testing.T) {
	s, store, dir := newTestScanner(t)
	ctx := context.Background()

	root := filepath.Join(dir, "library")
	require.NoError(t, os.MkdirAll(root, 0o755))
	writeFile(t, filepath.Join(root, "a.jpg"), "fake-jpeg-a")
	writeFile(t, filepath.Join(root, "b.png"), "fake-png-b")
	writeFile(t, filepath.Join(root, "notes.txt"), "not media")

	lib, err := store.CreateLibrary(ctx, root, "Library", true, 1)
	require.NoError(t, err)

	stats, err := s.Scan(ctx, lib.LibraryID)
	require.NoError(t, err)
	require.Equal(t, 2, stats.FilesFound)
	require.Equal(t, 2, stats.FilesNew)
	require.Zero(t, stats.FilesChanged)
	require.Zero(t, stats.FilesUnchanged)
	require.Zero(t, stats.FilesDeleted)

	rows, err := store.ListMediaByLibrary(ctx, lib.LibraryID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		require.Equal(t, catalogmodel.MediaPhoto, row.MediaType)
		require.Equal(t, catalogmodel.StatusQueued, row.Status)
	}
}

func TestScanSecondPassMarksUnchanged(t *testing.T) {
	s, store, dir := newTestScanner(t)
	ctx := context.Background()

	root := filepath.Join(dir, "library")
	require.NoError(t, os.MkdirAll(root, 0o755))
	writeFile(t, filepath.Join(root, "a.jpg"), "fake-jpeg-a")

	lib, err := store.CreateLibrary(ctx, root, "Library", true, 1)
	require.NoError(t, err)

	_, err = s.Scan(ctx, lib.LibraryID)
	require.NoError(t, err)

	stats, err := s.Scan(ctx, lib.LibraryID)
	require.NoError(t, err)
	require.Equal(t, 1, stats.FilesFound)
	require.Zero(t, stats.FilesNew)
	require.Equal(t, 1, stats.FilesUnchanged)
}

func TestScanDetectsChangedFingerprint(t *testing.T) {
	s, store, dir := newTestScanner(t)
	ctx := context.Background()

	root := filepath.Join(dir, "library")
	require.NoError(t, os.MkdirAll(root, 0o755))
	path := filepath.Join(root, "a.jpg")
	writeFile(t, path, "fake-jpeg-a")

	lib, err := store.CreateLibrary(ctx, root, "Library", true, 1)
	require.NoError(t, err)

	_, err = s.Scan(ctx, lib.LibraryID)
	require.NoError(t, err)

	rows, err := store.ListMediaByLibrary(ctx, lib.LibraryID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NoError(t, store.UpdateMediaStatus(ctx, rows[0].MediaID, catalogmodel.StatusDone, 1.0, strPtr("EMBEDDING"), nil, nil))

	writeFile(t, path, "different-content-entirely")

	stats, err := s.Scan(ctx, lib.LibraryID)
	require.NoError(t, err)
	require.Equal(t, 1, stats.FilesChanged)
	require.Zero(t, stats.FilesNew)
	require.Zero(t, stats.FilesUnchanged)

	updated, err := store.GetMedia(ctx, rows[0].MediaID)
	require.NoError(t, err)
	require.Equal(t, catalogmodel.StatusQueued, updated.Status)
	require.Nil(t, updated.LastCompletedStage)
	require.NotEqual(t, rows[0].Fingerprint, updated.Fingerprint)
}

func TestScanDeletesVanishedFiles(t *testing.T) {
	s, store, dir := newTestScanner(t)
	ctx := context.Background()

	root := filepath.Join(dir, "library")
	require.NoError(t, os.MkdirAll(root, 0o755))
	path := filepath.Join(root, "a.jpg")
	writeFile(t, path, "fake-jpeg-a")

	lib, err := store.CreateLibrary(ctx, root, "Library", true, 1)
	require.NoError(t, err)

	_, err = s.Scan(ctx, lib.LibraryID)
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))

	stats, err := s.Scan(ctx, lib.LibraryID)
	require.NoError(t, err)
	require.Equal(t, 1, stats.FilesDeleted)

	rows, err := store.ListMediaByLibrary(ctx, lib.LibraryID)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestScanResyncsFailedItems(t *testing.T) {
	s, store, dir := newTestScanner(t)
	ctx := context.Background()

	root := filepath.Join(dir, "library")
	require.NoError(t, os.MkdirAll(root, 0o755))
	writeFile(t, filepath.Join(root, "a.jpg"), "fake-jpeg-a")

	lib, err := store.CreateLibrary(ctx, root, "Library", true, 1)
	require.NoError(t, err)

	_, err = s.Scan(ctx, lib.LibraryID)
	require.NoError(t, err)

	rows, err := store.ListMediaByLibrary(ctx, lib.LibraryID)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	errCode, errMsg := "FFMPEG_ERROR", "boom"
	require.NoError(t, store.UpdateMediaStatus(ctx, rows[0].MediaID, catalogmodel.StatusFailed, 0.4, strPtr("EXTRACTING_FRAMES"), &errCode, &errMsg))

	_, err = s.Scan(ctx, lib.LibraryID)
	require.NoError(t, err)

	resynced, err := store.GetMedia(ctx, rows[0].MediaID)
	require.NoError(t, err)
	require.Equal(t, catalogmodel.StatusQueued, resynced.Status)
	require.Nil(t, resynced.ErrorCode)
	// Resync preserves last_completed_stage so the pipeline can resume.
	require.NotNil(t, resynced.LastCompletedStage)
	require.Equal(t, "EXTRACTING_FRAMES", *resynced.LastCompletedStage)
}

func TestScanRejectsConcurrentScanOfSameLibrary(t *testing.T) {
	s, store, dir := newTestScanner(t)
	ctx := context.Background()

	root := filepath.Join(dir, "library")
	require.NoError(t, os.MkdirAll(root, 0o755))
	lib, err := store.CreateLibrary(ctx, root, "Library", true, 1)
	require.NoError(t, err)

	require.NoError(t, s.begin(lib.LibraryID))
	defer s.end(lib.LibraryID)

	_, err = s.Scan(ctx, lib.LibraryID)
	require.ErrorIs(t, err, ErrAlreadyScanning)
}

func strPtr(s string) *string { return &s }
