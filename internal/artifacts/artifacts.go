// Package artifacts manages the on-disk directory tree that holds
// everything the pipeline produces besides catalog rows: frame
// thumbnails, face crops, per-item vector shards, and transient audio.
// It plays the same "put bytes under a namespaced key, get them back"
// role an object store plays, adapted to a local directory tree so
// everything stays on one host with no cloud upload.
package artifacts

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Store roots every artifact kind under one data directory:
//
//	<dir>/thumbnails/<media_id>/frame_NNNNNN.jpg
//	<dir>/thumbnails/<media_id>/frame_NNNNNN_grid.jpg
//	<dir>/faces/<media_id>/<face_id>.jpg
//	<dir>/faiss/<media_id>.shard
//	<dir>/temp/<media_id>.wav
type Store struct {
	dir string
}

func Open(dataDir string) (*Store, error) {
	s := &Store{dir: dataDir}
	for _, sub := range []string{"thumbnails", "faces", "faiss", "temp", "models"} {
		if err := os.MkdirAll(filepath.Join(dataDir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("artifacts: create %s: %w", sub, err)
		}
	}
	return s, nil
}

func (s *Store) ThumbnailDir(mediaID string) string {
	return filepath.Join(s.dir, "thumbnails", mediaID)
}

func (s *Store) FramePath(mediaID string, frameIndex int) string {
	return filepath.Join(s.ThumbnailDir(mediaID), fmt.Sprintf("frame_%06d.jpg", frameIndex))
}

// GridPath mirrors the first frame's filename with a _grid suffix, as
// is required (`<first_frame_stem>_grid.jpg`).
func (s *Store) GridPath(mediaID string) string {
	return filepath.Join(s.ThumbnailDir(mediaID), "frame_000001_grid.jpg")
}

func (s *Store) FaceDir(mediaID string) string {
	return filepath.Join(s.dir, "faces", mediaID)
}

func (s *Store) FacePath(mediaID, faceID string) string {
	return filepath.Join(s.FaceDir(mediaID), faceID+".jpg")
}

func (s *Store) ShardPath(mediaID string) string {
	return filepath.Join(s.dir, "faiss", mediaID+".shard")
}

func (s *Store) TempAudioPath(mediaID string) string {
	return filepath.Join(s.dir, "temp", mediaID+".wav")
}

func (s *Store) ModelPath(name string) string {
	return filepath.Join(s.dir, "models", name)
}

// WriteFile creates dir and writes data atomically via a temp file +
// rename, so a crash mid-write never leaves a half-written artifact
// that passes an existence check.
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("artifacts: mkdir %s: %w", filepath.Dir(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("artifacts: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("artifacts: rename %s: %w", tmp, err)
	}
	return nil
}

// CopyFile streams src into dst, creating dst's directory.
func CopyFile(dstPath string, src io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return err
	}
	tmp := dstPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dstPath)
}

// Exists reports whether an artifact file is present, the primitive
// the pipeline's resumption check relies on for EXTRACTING_FRAMES.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// HasAnyFrame reports whether at least one frame thumbnail exists for
// an item, per the resumption rule.
func (s *Store) HasAnyFrame(mediaID string) bool {
	entries, err := os.ReadDir(s.ThumbnailDir(mediaID))
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() {
			return true
		}
	}
	return false
}

// DeleteItem removes every artifact for one media item: thumbnails,
// faces, shard, temp audio. Used by "wipe derived" maintenance and by
// the scanner when a file has vanished from its library.
func (s *Store) DeleteItem(mediaID string) error {
	for _, path := range []string{
		s.ThumbnailDir(mediaID),
		s.FaceDir(mediaID),
	} {
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("artifacts: remove %s: %w", path, err)
		}
	}
	for _, path := range []string{s.ShardPath(mediaID), s.TempAudioPath(mediaID)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("artifacts: remove %s: %w", path, err)
		}
	}
	return nil
}
