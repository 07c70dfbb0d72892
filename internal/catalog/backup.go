package catalog

import (
	"context"
	"fmt"

	"github.com/your-org/gaze-engine/internal/catalogmodel"
)

// Document is the full persisted backup format: a single JSON
// document schema_version/app_version plus flat arrays for settings,
// libraries, media and the user-owned tables; derived data (frames,
// detections, faces, transcripts) is not included. The HTTP backup/restore endpoints are
// thin collaborators around this type; the catalog owns reading and
// writing it.
type Document struct {
	SchemaVersion int    `json:"schema_version"`
	AppVersion    string `json:"app_version"`
	CreatedAtMs   int64  `json:"created_at_ms"`

	Settings map[string]string `json:"settings"`

	Libraries            []catalogmodel.Library             `json:"libraries"`
	Media                []catalogmodel.MediaItem            `json:"media"`
	Persons              []catalogmodel.Person               `json:"persons"`
	FaceReferences       []catalogmodel.FaceReference         `json:"face_references"`
	FaceNegatives        []catalogmodel.FaceNegative          `json:"face_negatives"`
	PersonPairThresholds []catalogmodel.PersonPairThreshold   `json:"person_pair_thresholds"`
	MediaFavoriteIDs     []string                             `json:"media_favorites"`
	PersonFavoriteIDs    []string                             `json:"person_favorites"`
	MediaTags            []mediaTagEntry                      `json:"media_tags"`
}

type mediaTagEntry struct {
	MediaID string `json:"media_id"`
	Tag     string `json:"tag"`
}

const schemaVersion = 1

// Export snapshots the full catalog (minus derived, regenerable data
// like frames/detections/faces/transcripts) into a Document.
func (s *Store) Export(ctx context.Context, appVersion string, nowMs int64) (*Document, error) {
	doc := &Document{
		SchemaVersion: schemaVersion,
		AppVersion:    appVersion,
		CreatedAtMs:   nowMs,
	}

	var err error
	if doc.Settings, err = s.AllSettings(ctx); err != nil {
		return nil, err
	}
	if doc.Libraries, err = s.ListLibraries(ctx); err != nil {
		return nil, err
	}
	if doc.Persons, err = s.ListPersons(ctx); err != nil {
		return nil, err
	}
	if doc.PersonPairThresholds, err = s.ListPairThresholds(ctx); err != nil {
		return nil, err
	}
	if doc.MediaFavoriteIDs, err = s.ListFavoriteMediaIDs(ctx); err != nil {
		return nil, err
	}
	if doc.PersonFavoriteIDs, err = s.ListFavoritePersonIDs(ctx); err != nil {
		return nil, err
	}

	for _, lib := range doc.Libraries {
		media, err := s.ListMediaByLibrary(ctx, lib.LibraryID)
		if err != nil {
			return nil, err
		}
		doc.Media = append(doc.Media, media...)
	}
	for _, m := range doc.Media {
		tags, err := s.ListMediaTags(ctx, m.MediaID)
		if err != nil {
			return nil, err
		}
		for _, t := range tags {
			doc.MediaTags = append(doc.MediaTags, mediaTagEntry{MediaID: m.MediaID, Tag: t})
		}
	}
	for _, p := range doc.Persons {
		refs, err := s.ListFaceReferences(ctx, p.PersonID)
		if err != nil {
			return nil, err
		}
		doc.FaceReferences = append(doc.FaceReferences, refs...)
		negs, err := s.ListFaceNegatives(ctx, p.PersonID)
		if err != nil {
			return nil, err
		}
		doc.FaceNegatives = append(doc.FaceNegatives, negs...)
	}

	return doc, nil
}

// RestoreMode selects how Restore reconciles the document against the
// existing catalog.
type RestoreMode string

const (
	RestoreMerge   RestoreMode = "merge"
	RestoreReplace RestoreMode = "replace"
)

// RestoreOptions controls a restore pass.
type RestoreOptions struct {
	Mode             RestoreMode
	SkipMissingPaths bool
	PathExists       func(path string) bool
}

// Restore loads a Document back into the catalog. In replace mode,
// user and derived tables are truncated first; in merge mode existing
// rows win on primary-key conflicts. Libraries whose folder no longer
// exists are skipped with no error when SkipMissingPaths is set.
func (s *Store) Restore(ctx context.Context, doc *Document, opts RestoreOptions) error {
	return withRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if opts.Mode == RestoreReplace {
			for _, table := range []string{
				"media_tags", "person_favorites", "media_favorites",
				"person_pair_thresholds", "face_negatives", "face_references",
				"persons", "media", "libraries", "settings",
			} {
				if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
					return fmt.Errorf("truncate %s: %w", table, err)
				}
			}
		}

		for k, v := range doc.Settings {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO settings (key, value) VALUES (?, ?)
				ON CONFLICT(key) DO UPDATE SET value = excluded.value`, k, v); err != nil {
				return err
			}
		}

		skippedLibs := map[string]bool{}
		for _, lib := range doc.Libraries {
			if opts.SkipMissingPaths && opts.PathExists != nil && !opts.PathExists(lib.FolderPath) {
				skippedLibs[lib.LibraryID] = true
				continue
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO libraries (library_id, folder_path, name, recursive, created_at_ms)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(library_id) DO NOTHING`,
				lib.LibraryID, lib.FolderPath, lib.Name, lib.Recursive, lib.CreatedAtMs); err != nil {
				return err
			}
		}

		skippedMedia := map[string]bool{}
		for i := range doc.Media {
			m := &doc.Media[i]
			if skippedLibs[m.LibraryID] {
				skippedMedia[m.MediaID] = true
				continue
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO media (`+mediaColumns+`)
				VALUES (?,?,?,?,?,?, ?,?,?, ?,?,?, ?,?,?,?,?, ?,?, ?,?,?,?,?,?,?, ?,?,?,?,?,?,?,?, ?)
				ON CONFLICT(media_id) DO NOTHING`,
				m.MediaID, m.LibraryID, m.Path, m.Filename, m.Ext, m.MediaType,
				m.FileSize, m.MtimeMs, m.Fingerprint,
				nullInt64(m.DurationMs), nullInt(m.Width), nullInt(m.Height),
				nullString(m.CreationTime), nullString(m.CameraMake), nullString(m.CameraModel), nullFloat64(m.GPSLat), nullFloat64(m.GPSLng),
				m.IsLivePhotoComponent, nullString(m.LivePhotoPairID),
				m.Status, m.Progress, nullString(m.ErrorCode), nullString(m.ErrorMessage), nullInt64(m.IndexedAtMs), nullString(m.LastCompletedStage), nullString(m.LanguageCode),
				nullFloat64(m.FPS), nullString(m.VideoCodec), nullInt64(m.VideoBitrate), nullString(m.AudioCodec), nullInt(m.AudioChannels), nullInt(m.AudioSampleRate), nullString(m.ContainerFormat), m.Rotation,
				m.CreatedAtMs,
			); err != nil {
				return err
			}
		}

		for _, p := range doc.Persons {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO persons (person_id, name, thumbnail_face_id, face_count, recognition_mode, created_at_ms, updated_at_ms)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(person_id) DO NOTHING`,
				p.PersonID, p.Name, nullString(p.ThumbnailFaceID), p.FaceCount, p.RecognitionMode, p.CreatedAtMs, p.UpdatedAtMs); err != nil {
				return err
			}
		}

		for _, r := range doc.FaceReferences {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO face_references (face_id, person_id, weight, created_at_ms) VALUES (?, ?, ?, ?)
				ON CONFLICT(face_id, person_id) DO NOTHING`, r.FaceID, r.PersonID, r.Weight, doc.CreatedAtMs); err != nil {
				return err
			}
		}
		for _, n := range doc.FaceNegatives {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO face_negatives (face_id, person_id, created_at_ms) VALUES (?, ?, ?)
				ON CONFLICT(face_id, person_id) DO NOTHING`, n.FaceID, n.PersonID, doc.CreatedAtMs); err != nil {
				return err
			}
		}
		for _, t := range doc.PersonPairThresholds {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO person_pair_thresholds (person_a_id, person_b_id, threshold, correction_count, created_at_ms, updated_at_ms)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT(person_a_id, person_b_id) DO NOTHING`,
				t.PersonAID, t.PersonBID, t.Threshold, t.CorrectionCount, doc.CreatedAtMs, doc.CreatedAtMs); err != nil {
				return err
			}
		}
		for _, id := range doc.MediaFavoriteIDs {
			if skippedMedia[id] {
				continue
			}
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO media_favorites (media_id, created_at_ms) VALUES (?, ?)`, id, doc.CreatedAtMs); err != nil {
				return err
			}
		}
		for _, id := range doc.PersonFavoriteIDs {
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO person_favorites (person_id, created_at_ms) VALUES (?, ?)`, id, doc.CreatedAtMs); err != nil {
				return err
			}
		}
		for _, mt := range doc.MediaTags {
			if skippedMedia[mt.MediaID] {
				continue
			}
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO media_tags (media_id, tag, created_at_ms) VALUES (?, ?, ?)`, mt.MediaID, mt.Tag, doc.CreatedAtMs); err != nil {
				return err
			}
		}

		return tx.Commit()
	})
}
