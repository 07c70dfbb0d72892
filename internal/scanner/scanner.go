// Package scanner discovers media files under a library's root folder
// and reconciles them against the catalog: new files are
// registered, changed files are re-extracted and requeued, vanished
// files are deleted, and live-photo still/motion pairs are linked. It
// plays the same per-ID lifecycle-guard role a stream ingest manager
// plays for camera streams, adapted from "one goroutine per active
// stream" to "one in-flight scan per library".
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/your-org/gaze-engine/internal/artifacts"
	"github.com/your-org/gaze-engine/internal/catalog"
	"github.com/your-org/gaze-engine/internal/catalogmodel"
	"github.com/your-org/gaze-engine/internal/executors"
	"github.com/your-org/gaze-engine/internal/fingerprint"
)

// PhotoExtensions is the recognized still-image set (case-insensitive).
var PhotoExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".heic": true, ".heif": true,
	".webp": true, ".bmp": true, ".gif": true, ".tiff": true, ".tif": true,
}

// VideoExtensions is the recognized video container set, modeled on
// the original engine's VIDEO_EXTENSIONS.
var VideoExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true, ".wmv": true,
	".flv": true, ".webm": true, ".m4v": true, ".mpg": true, ".mpeg": true,
	".3gp": true, ".3g2": true, ".ts": true, ".mts": true,
}

// livePhotoMaxMotionSeconds is the duration ceiling below which a
// stem-matched .mov is treated as a live photo's motion component
// rather than an independent video.
const livePhotoMaxMotionSeconds = 5.0

// ErrAlreadyScanning is returned when a scan is requested for a
// library that already has one in flight.
var ErrAlreadyScanning = fmt.Errorf("scanner: already scanning")

// Scanner reconciles library roots against the catalog, guarding
// against more than one concurrent scan per library_id.
type Scanner struct {
	store     *catalog.Store
	artifacts *artifacts.Store
	log       *slog.Logger

	mu     sync.Mutex
	active map[string]bool
}

func New(store *catalog.Store, art *artifacts.Store, log *slog.Logger) *Scanner {
	if log == nil {
		log = slog.Default()
	}
	return &Scanner{store: store, artifacts: art, log: log, active: make(map[string]bool)}
}

// IsScanning reports whether a scan of the given library is currently
// in flight.
func (s *Scanner) IsScanning(libraryID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[libraryID]
}

func (s *Scanner) begin(libraryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[libraryID] {
		return ErrAlreadyScanning
	}
	s.active[libraryID] = true
	return nil
}

func (s *Scanner) end(libraryID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, libraryID)
}

// discovered is one media file found under a library root, not yet
// reconciled against the catalog. path is library-relative and
// forward-slash normalized; it exists only to key in-memory
// reconciliation (stem grouping, the byPath map, sibling lookup) and
// is never itself persisted — the stored media.Path is always
// absPath, per the catalog's absolute-path contract.
type discovered struct {
	path      string
	absPath   string
	mediaType catalogmodel.MediaType
	size      int64
	mtimeMs   int64
}

// Scan walks library's root, reconciles every discovered file against
// existing catalog rows, and returns reconciliation statistics.
// Returns ErrAlreadyScanning if the library is already being scanned.
func (s *Scanner) Scan(ctx context.Context, libraryID string) (*catalogmodel.ScanStats, error) {
	if err := s.begin(libraryID); err != nil {
		return nil, err
	}
	defer s.end(libraryID)

	lib, err := s.store.GetLibrary(ctx, libraryID)
	if err != nil {
		return nil, fmt.Errorf("scanner: load library %s: %w", libraryID, err)
	}

	s.log.Info("scan started", "library_id", libraryID, "folder", lib.FolderPath)

	found, err := discover(lib.FolderPath, lib.Recursive)
	if err != nil {
		return nil, fmt.Errorf("scanner: discover %s: %w", lib.FolderPath, err)
	}

	existing, err := s.store.ListMediaByLibrary(ctx, libraryID)
	if err != nil {
		return nil, fmt.Errorf("scanner: load existing media: %w", err)
	}
	byPath := make(map[string]*catalogmodel.MediaItem, len(existing))
	for i := range existing {
		byPath[relOf(lib.FolderPath, existing[i].Path)] = &existing[i]
	}
	seen := make(map[string]bool, len(found))

	stats := &catalogmodel.ScanStats{}
	now := time.Now().UnixMilli()

	// Index discovered files by stem so the live-photo heuristic can
	// pair a still with its sibling motion clip in either direction.
	byStem := make(map[string][]discovered)
	for _, d := range found {
		stem := stemOf(d.path)
		byStem[stem] = append(byStem[stem], d)
	}

	for _, d := range found {
		stats.FilesFound++
		seen[d.path] = true

		fp, _, err := fingerprint.File(d.absPath)
		if err != nil {
			s.log.Warn("fingerprint failed, skipping file", "path", d.absPath, "error", err)
			continue
		}

		existingRow, isExisting := byPath[d.path]
		switch {
		case !isExisting:
			if err := s.registerNew(ctx, lib.LibraryID, d, fp, byStem, now); err != nil {
				s.log.Warn("register new media failed", "path", d.absPath, "error", err)
				continue
			}
			stats.FilesNew++
		case existingRow.Fingerprint == fp:
			stats.FilesUnchanged++
		default:
			existingRow.Fingerprint = fp
			if err := s.reExtract(ctx, existingRow, d); err != nil {
				s.log.Warn("re-extract changed media failed", "path", d.absPath, "error", err)
				continue
			}
			if err := s.store.RequeueChanged(ctx, existingRow.MediaID); err != nil {
				return nil, fmt.Errorf("scanner: requeue changed %s: %w", existingRow.MediaID, err)
			}
			stats.FilesChanged++
		}
	}

	for path, row := range byPath {
		if seen[path] {
			continue
		}
		if err := s.store.DeleteMedia(ctx, row.MediaID); err != nil {
			return nil, fmt.Errorf("scanner: delete vanished %s: %w", row.MediaID, err)
		}
		if err := s.artifacts.DeleteItem(row.MediaID); err != nil {
			s.log.Warn("delete artifacts for vanished media failed", "media_id", row.MediaID, "error", err)
		}
		stats.FilesDeleted++
	}

	if err := s.resync(ctx, libraryID); err != nil {
		return nil, fmt.Errorf("scanner: resync: %w", err)
	}

	s.log.Info("scan finished", "library_id", libraryID,
		"found", stats.FilesFound, "new", stats.FilesNew,
		"changed", stats.FilesChanged, "unchanged", stats.FilesUnchanged,
		"deleted", stats.FilesDeleted)

	return stats, nil
}

// resync force-requeues every media row in the library that is
// neither DONE nor mid-pipeline, so a rescan gives failed items
// another chance without disturbing in-progress ones.
func (s *Scanner) resync(ctx context.Context, libraryID string) error {
	rows, err := s.store.ListMediaByLibrary(ctx, libraryID)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if row.Status == catalogmodel.StatusDone || isIntermediateStage(row.Status) {
			continue
		}
		if row.Status == catalogmodel.StatusQueued {
			continue
		}
		if err := s.store.ResyncRequeue(ctx, row.MediaID); err != nil {
			return fmt.Errorf("resync %s: %w", row.MediaID, err)
		}
	}
	return nil
}

func isIntermediateStage(status catalogmodel.Status) bool {
	switch status {
	case catalogmodel.StatusExtractingAudio, catalogmodel.StatusTranscribing,
		catalogmodel.StatusExtractingFrames, catalogmodel.StatusEmbedding,
		catalogmodel.StatusDetecting, catalogmodel.StatusDetectingFaces:
		return true
	}
	return false
}

// registerNew extracts per-type metadata for a newly discovered file,
// resolves live-photo pairing, and inserts its media row.
func (s *Scanner) registerNew(ctx context.Context, libraryID string, d discovered, fp string, byStem map[string][]discovered, nowMs int64) error {
	item := &catalogmodel.MediaItem{
		LibraryID:   libraryID,
		Path:        d.absPath,
		Filename:    filepath.Base(d.path),
		Ext:         strings.ToLower(filepath.Ext(d.path)),
		MediaType:   d.mediaType,
		FileSize:    d.size,
		MtimeMs:     d.mtimeMs,
		Fingerprint: fp,
		Status:      catalogmodel.StatusQueued,
		CreatedAtMs: nowMs,
	}

	extra, err := s.extractMetadata(ctx, d, item)
	if err != nil {
		s.log.Warn("metadata extraction failed, registering with partial metadata", "path", d.absPath, "error", err)
	}

	if err := s.store.CreateMedia(ctx, item); err != nil {
		return fmt.Errorf("create media: %w", err)
	}
	if len(extra) > 0 {
		if err := s.store.ReplaceMediaMetadata(ctx, item.MediaID, extra); err != nil {
			return fmt.Errorf("store extra metadata: %w", err)
		}
	}

	s.linkLivePhoto(ctx, libraryID, d, item, byStem)
	return nil
}

// reExtract overwrites technical/source metadata for a file whose
// fingerprint changed, without touching pipeline status (the caller
// requeues separately).
func (s *Scanner) reExtract(ctx context.Context, existing *catalogmodel.MediaItem, d discovered) error {
	updated := *existing
	extra, err := s.extractMetadata(ctx, d, &updated)
	if err != nil {
		s.log.Warn("metadata re-extraction failed", "path", d.absPath, "error", err)
	}
	if err := s.store.UpdateTechnicalMetadata(ctx, &updated); err != nil {
		return fmt.Errorf("update technical metadata: %w", err)
	}
	return s.store.ReplaceMediaMetadata(ctx, existing.MediaID, extra)
}

// extractMetadata fills item's technical fields in place and returns
// any container/EXIF tags that don't map to a first-class column.
func (s *Scanner) extractMetadata(ctx context.Context, d discovered, item *catalogmodel.MediaItem) (map[string]string, error) {
	switch d.mediaType {
	case catalogmodel.MediaPhoto:
		w, h, err := executors.DecodeImageDimensions(d.absPath)
		if err == nil {
			item.Width, item.Height = &w, &h
		}
		exif, err := executors.ProbePhotoEXIF(d.absPath)
		if err != nil {
			return nil, err
		}
		item.CreationTime = exif.CreationTime
		item.CameraMake = exif.CameraMake
		item.CameraModel = exif.CameraModel
		item.GPSLat = exif.GPSLat
		item.GPSLng = exif.GPSLng
		return nil, nil

	case catalogmodel.MediaVideo:
		meta, err := executors.ProbeMetadata(ctx, d.absPath)
		if err != nil {
			return nil, err
		}
		item.DurationMs = meta.DurationMs
		item.Width = meta.Width
		item.Height = meta.Height
		item.FPS = meta.FPS
		item.VideoCodec = meta.VideoCodec
		item.VideoBitrate = meta.VideoBitrate
		item.AudioCodec = meta.AudioCodec
		item.AudioChannels = meta.AudioChannels
		item.AudioSampleRate = meta.AudioSampleRate
		item.ContainerFormat = meta.ContainerFormat
		item.Rotation = meta.Rotation
		item.CreationTime = meta.CreationTime
		item.CameraMake = meta.CameraMake
		item.CameraModel = meta.CameraModel
		item.GPSLat = meta.GPSLat
		item.GPSLng = meta.GPSLng
		return nil, nil
	}
	return nil, fmt.Errorf("extract metadata: unknown media type %q", d.mediaType)
}

// linkLivePhoto pairs item with a stem-matched sibling, in whichever
// direction applies: a photo looks for a sibling .mov, a short .mov
// looks for a sibling photo. Pairing only fires for the side being
// newly registered; the other side of an already-paired sibling is
// linked by SetLivePhotoPair regardless of which side was inserted
// first.
func (s *Scanner) linkLivePhoto(ctx context.Context, libraryID string, d discovered, item *catalogmodel.MediaItem, byStem map[string][]discovered) {
	stem := stemOf(d.path)
	siblings := byStem[stem]

	isLivePhotoExt := func(ext string) bool {
		switch ext {
		case ".heic", ".heif", ".jpg", ".jpeg":
			return true
		}
		return false
	}

	switch {
	case item.MediaType == catalogmodel.MediaPhoto && isLivePhotoExt(strings.ToLower(filepath.Ext(d.path))):
		for _, sib := range siblings {
			if strings.ToLower(filepath.Ext(sib.path)) != ".mov" || sib.path == d.path {
				continue
			}
			if !s.isShortMotionClip(ctx, sib) {
				continue
			}
			s.pairSiblings(ctx, libraryID, item, sib)
			return
		}

	case item.MediaType == catalogmodel.MediaVideo && strings.ToLower(filepath.Ext(d.path)) == ".mov":
		if !s.isShortMotionClip(ctx, d) {
			return
		}
		for _, sib := range siblings {
			if !isLivePhotoExt(strings.ToLower(filepath.Ext(sib.path))) || sib.path == d.path {
				continue
			}
			s.pairSiblings(ctx, libraryID, item, sib)
			return
		}
	}
}

func (s *Scanner) isShortMotionClip(ctx context.Context, mov discovered) bool {
	meta, err := executors.ProbeMetadata(ctx, mov.absPath)
	if err != nil || meta.DurationMs == nil {
		return false
	}
	return float64(*meta.DurationMs)/1000.0 < livePhotoMaxMotionSeconds
}

// pairSiblings links item (just inserted) with sib by looking sib up
// in the catalog by path; sib may or may not have been registered yet
// within this same scan pass (discovery order is not stem-grouped).
func (s *Scanner) pairSiblings(ctx context.Context, libraryID string, item *catalogmodel.MediaItem, sib discovered) {
	sibRow, err := s.store.FindMediaByPath(ctx, libraryID, sib.absPath)
	if err != nil {
		// Sibling not registered yet this pass (common: discovery order
		// put the motion clip before or after its still). It will be
		// paired from its own registerNew call once reached.
		return
	}
	if err := s.store.SetLivePhotoPair(ctx, item.MediaID, sibRow.MediaID); err != nil {
		s.log.Warn("live photo pairing failed", "still_or_motion", item.MediaID, "sibling", sibRow.MediaID, "error", err)
	}
}

func stemOf(relPath string) string {
	base := filepath.Base(relPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// relOf recomputes a stored absolute media path's library-relative
// form, the same key discover() derives for newly found files, so an
// existing row can be matched against the current scan pass's byPath
// map. Falls back to the absolute path itself if it somehow falls
// outside root, mirroring discover()'s fallback.
func relOf(root, absPath string) string {
	rel, err := filepath.Rel(root, absPath)
	if err != nil {
		return absPath
	}
	return filepath.ToSlash(rel)
}

// discover walks root, yielding every file whose extension falls into
// the photo or video set.
func discover(root string, recursive bool) ([]discovered, error) {
	var out []discovered
	walkFn := func(absPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries rather than aborting the whole scan
		}
		if d.IsDir() {
			if !recursive && absPath != root {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(absPath))
		var mediaType catalogmodel.MediaType
		switch {
		case PhotoExtensions[ext]:
			mediaType = catalogmodel.MediaPhoto
		case VideoExtensions[ext]:
			mediaType = catalogmodel.MediaVideo
		default:
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(root, absPath)
		if err != nil {
			rel = absPath
		}
		out = append(out, discovered{
			path:      filepath.ToSlash(rel),
			absPath:   absPath,
			mediaType: mediaType,
			size:      info.Size(),
			mtimeMs:   info.ModTime().UnixMilli(),
		})
		return nil
	}

	if err := filepath.WalkDir(root, walkFn); err != nil {
		return nil, err
	}
	return out, nil
}
