package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/your-org/gaze-engine/internal/catalogmodel"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gaze.db")
	s, err := Open(context.Background(), path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLibraryAndMediaLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	lib, err := s.CreateLibrary(ctx, "/photos", "Photos", true, 1000)
	require.NoError(t, err)
	require.NotEmpty(t, lib.LibraryID)

	m := &catalogmodel.MediaItem{
		LibraryID:   lib.LibraryID,
		Path:        "2024/a.jpg",
		Filename:    "a.jpg",
		Ext:         ".jpg",
		MediaType:   catalogmodel.MediaPhoto,
		FileSize:    1234,
		MtimeMs:     2000,
		Fingerprint: "deadbeefdeadbeef",
		CreatedAtMs: 2000,
	}
	require.NoError(t, s.CreateMedia(ctx, m))
	require.NotEmpty(t, m.MediaID)

	got, err := s.FindMediaByPath(ctx, lib.LibraryID, "2024/a.jpg")
	require.NoError(t, err)
	require.Equal(t, m.MediaID, got.MediaID)
	require.Equal(t, catalogmodel.StatusQueued, got.Status)

	stage := "EMBEDDING"
	require.NoError(t, s.UpdateMediaStatus(ctx, m.MediaID, catalogmodel.StatusDetecting, 0.5, &stage, nil, nil))
	got, err = s.GetMedia(ctx, m.MediaID)
	require.NoError(t, err)
	require.Equal(t, catalogmodel.StatusDetecting, got.Status)
	require.Equal(t, "EMBEDDING", *got.LastCompletedStage)

	require.NoError(t, s.MarkIndexed(ctx, m.MediaID, 3000))
	got, err = s.GetMedia(ctx, m.MediaID)
	require.NoError(t, err)
	require.Equal(t, catalogmodel.StatusDone, got.Status)
	require.NotNil(t, got.IndexedAtMs)
}

func TestCrashRepairRequeuesStuckMedia(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gaze.db")
	ctx := context.Background()

	s, err := Open(ctx, path, nil)
	require.NoError(t, err)
	lib, err := s.CreateLibrary(ctx, "/photos", "", true, 1000)
	require.NoError(t, err)
	m := &catalogmodel.MediaItem{
		LibraryID: lib.LibraryID, Path: "x.mp4", Filename: "x.mp4", Ext: ".mp4",
		MediaType: catalogmodel.MediaVideo, FileSize: 10, MtimeMs: 10, Fingerprint: "aaaa", CreatedAtMs: 10,
	}
	require.NoError(t, s.CreateMedia(ctx, m))
	require.NoError(t, s.UpdateMediaStatus(ctx, m.MediaID, catalogmodel.StatusEmbedding, 0.3, nil, nil, nil))
	require.NoError(t, s.Close())

	s2, err := Open(ctx, path, nil)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.GetMedia(ctx, m.MediaID)
	require.NoError(t, err)
	require.Equal(t, catalogmodel.StatusQueued, got.Status)
}

func TestTranscriptFullTextSearch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	lib, err := s.CreateLibrary(ctx, "/videos", "", true, 1)
	require.NoError(t, err)
	m := &catalogmodel.MediaItem{
		LibraryID: lib.LibraryID, Path: "v.mp4", Filename: "v.mp4", Ext: ".mp4",
		MediaType: catalogmodel.MediaVideo, FileSize: 1, MtimeMs: 1, Fingerprint: "ffff", CreatedAtMs: 1,
	}
	require.NoError(t, s.CreateMedia(ctx, m))

	require.NoError(t, s.CreateTranscriptSegments(ctx, []catalogmodel.TranscriptSegment{
		{VideoID: m.MediaID, StartMs: 0, EndMs: 2000, Text: "happy birthday to you"},
		{VideoID: m.MediaID, StartMs: 2000, EndMs: 4000, Text: "cut the cake now"},
	}))

	matches, err := s.SearchTranscripts(ctx, EscapeFTSPhrase("happy birthday"), "", 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, m.MediaID, matches[0].VideoID)

	none, err := s.SearchTranscripts(ctx, EscapeFTSPhrase("nonexistent phrase"), "", 10)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestPersonPairThresholdIsOrderIndependent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p1, err := s.CreatePerson(ctx, "Alice", 1)
	require.NoError(t, err)
	p2, err := s.CreatePerson(ctx, "Bob", 1)
	require.NoError(t, err)

	require.NoError(t, s.BumpPairThreshold(ctx, p1.PersonID, p2.PersonID, 0.8, 100))
	t1, err := s.GetPairThreshold(ctx, p1.PersonID, p2.PersonID)
	require.NoError(t, err)
	t2, err := s.GetPairThreshold(ctx, p2.PersonID, p1.PersonID)
	require.NoError(t, err)
	require.Equal(t, t1.Threshold, t2.Threshold)
	require.Equal(t, 1, t1.CorrectionCount)

	require.NoError(t, s.BumpPairThreshold(ctx, p2.PersonID, p1.PersonID, 0.85, 200))
	t3, err := s.GetPairThreshold(ctx, p1.PersonID, p2.PersonID)
	require.NoError(t, err)
	require.InDelta(t, 0.85, t3.Threshold, 1e-9)
	require.Equal(t, 2, t3.CorrectionCount)
}

func TestBackupExportRestoreRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	lib, err := s.CreateLibrary(ctx, "/photos", "Photos", true, 1)
	require.NoError(t, err)
	p, err := s.CreatePerson(ctx, "Alice", 1)
	require.NoError(t, err)
	require.NoError(t, s.SetSetting(ctx, "max_concurrent_jobs", "2"))
	require.NoError(t, s.SetPersonFavorite(ctx, p.PersonID, true, 1))

	doc, err := s.Export(ctx, "test", 42)
	require.NoError(t, err)
	require.Len(t, doc.Libraries, 1)
	require.Len(t, doc.Persons, 1)
	require.Contains(t, doc.PersonFavoriteIDs, p.PersonID)

	s2 := openTestStore(t)
	require.NoError(t, s2.Restore(ctx, doc, RestoreOptions{Mode: RestoreReplace}))

	libs, err := s2.ListLibraries(ctx)
	require.NoError(t, err)
	require.Len(t, libs, 1)
	require.Equal(t, lib.FolderPath, libs[0].FolderPath)

	persons, err := s2.ListPersons(ctx)
	require.NoError(t, err)
	require.Len(t, persons, 1)

	favs, err := s2.ListFavoritePersonIDs(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{p.PersonID}, favs)
}
