package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/your-org/gaze-engine/internal/catalogmodel"
)

const mediaColumns = `
	media_id, library_id, path, filename, ext, media_type,
	file_size, mtime_ms, fingerprint,
	duration_ms, width, height,
	creation_time, camera_make, camera_model, gps_lat, gps_lng,
	is_live_photo_component, live_photo_pair_id,
	status, progress, error_code, error_message, indexed_at_ms, last_completed_stage, language_code,
	fps, video_codec, video_bitrate, audio_codec, audio_channels, audio_sample_rate, container_format, rotation,
	created_at_ms`

// CreateMedia inserts a newly discovered file as a QUEUED media item.
func (s *Store) CreateMedia(ctx context.Context, m *catalogmodel.MediaItem) error {
	if m.MediaID == "" {
		m.MediaID = uuid.NewString()
	}
	if m.Status == "" {
		m.Status = catalogmodel.StatusQueued
	}
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO media (`+mediaColumns+`)
			VALUES (?,?,?,?,?,?, ?,?,?, ?,?,?, ?,?,?,?,?, ?,?, ?,?,?,?,?,?,?, ?,?,?,?,?,?,?,?, ?)`,
			m.MediaID, m.LibraryID, m.Path, m.Filename, m.Ext, m.MediaType,
			m.FileSize, m.MtimeMs, m.Fingerprint,
			nullInt64(m.DurationMs), nullInt(m.Width), nullInt(m.Height),
			nullString(m.CreationTime), nullString(m.CameraMake), nullString(m.CameraModel), nullFloat64(m.GPSLat), nullFloat64(m.GPSLng),
			m.IsLivePhotoComponent, nullString(m.LivePhotoPairID),
			m.Status, m.Progress, nullString(m.ErrorCode), nullString(m.ErrorMessage), nullInt64(m.IndexedAtMs), nullString(m.LastCompletedStage), nullString(m.LanguageCode),
			nullFloat64(m.FPS), nullString(m.VideoCodec), nullInt64(m.VideoBitrate), nullString(m.AudioCodec), nullInt(m.AudioChannels), nullInt(m.AudioSampleRate), nullString(m.ContainerFormat), m.Rotation,
			m.CreatedAtMs,
		)
		return err
	})
}

func (s *Store) GetMedia(ctx context.Context, mediaID string) (*catalogmodel.MediaItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+mediaColumns+` FROM media WHERE media_id = ?`, mediaID)
	return scanMedia(row)
}

// FindMediaByPath looks up a media item by its absolute path, used by
// the scanner's live-photo sibling lookup.
func (s *Store) FindMediaByPath(ctx context.Context, libraryID, path string) (*catalogmodel.MediaItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+mediaColumns+` FROM media WHERE library_id = ? AND path = ?`, libraryID, path)
	return scanMedia(row)
}

// ListMediaByLibrary returns every media row registered under a
// library, in no particular order, for the scanner's reconciliation
// pass (the scanner indexes them by path).
func (s *Store) ListMediaByLibrary(ctx context.Context, libraryID string) ([]catalogmodel.MediaItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+mediaColumns+` FROM media WHERE library_id = ?`, libraryID)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	defer rows.Close()
	return scanMediaRows(rows)
}

// MediaFilter narrows a ListMedia call. A zero value lists every
// media item across every library, including live-photo motion
// components.
type MediaFilter struct {
	LibraryID         string
	MediaType         catalogmodel.MediaType
	Status            catalogmodel.Status
	ExcludeComponents bool
}

// ListMedia browses media rows for the media-list endpoint, newest
// first, applying whichever of library_id/media_type/status the
// caller set plus the live-photo component filter.
func (s *Store) ListMedia(ctx context.Context, f MediaFilter, limit, offset int) ([]catalogmodel.MediaItem, error) {
	var conds []string
	var args []any
	if f.LibraryID != "" {
		conds = append(conds, "library_id = ?")
		args = append(args, f.LibraryID)
	}
	if f.MediaType != "" {
		conds = append(conds, "media_type = ?")
		args = append(args, f.MediaType)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	if f.ExcludeComponents {
		conds = append(conds, "is_live_photo_component = 0")
	}

	query := `SELECT ` + mediaColumns + ` FROM media ` + filterClause(conds) + ` ORDER BY created_at_ms DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	defer rows.Close()
	return scanMediaRows(rows)
}

// CountMedia mirrors ListMedia's filter for pagination totals.
func (s *Store) CountMedia(ctx context.Context, f MediaFilter) (int, error) {
	var conds []string
	var args []any
	if f.LibraryID != "" {
		conds = append(conds, "library_id = ?")
		args = append(args, f.LibraryID)
	}
	if f.MediaType != "" {
		conds = append(conds, "media_type = ?")
		args = append(args, f.MediaType)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	if f.ExcludeComponents {
		conds = append(conds, "is_live_photo_component = 0")
	}

	var n int
	query := `SELECT COUNT(*) FROM media ` + filterClause(conds)
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count media: %w", err)
	}
	return n, nil
}

// ListQueued returns media items eligible for pipeline admission,
// oldest-created first unless preferRecent reverses the order
// (scheduler's prioritize_recent_media setting).
func (s *Store) ListQueued(ctx context.Context, preferRecent bool, limit int) ([]catalogmodel.MediaItem, error) {
	order := "created_at_ms ASC"
	if preferRecent {
		order = "created_at_ms DESC"
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+mediaColumns+` FROM media WHERE status = 'QUEUED' ORDER BY `+order+` LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list queued: %w", err)
	}
	defer rows.Close()
	return scanMediaRows(rows)
}

// UpdateMediaStatus transitions a media item's pipeline status, optionally
// recording the stage it just finished (for resumption) and clearing
// or setting the error fields.
func (s *Store) UpdateMediaStatus(ctx context.Context, mediaID string, status catalogmodel.Status, progress float64, lastStage *string, errCode, errMsg *string) error {
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			UPDATE media SET status = ?, progress = ?, last_completed_stage = COALESCE(?, last_completed_stage),
				error_code = ?, error_message = ?
			WHERE media_id = ?`,
			status, progress, nullString(lastStage), nullString(errCode), nullString(errMsg), mediaID)
		return err
	})
}

// RequeueChanged resets a media item to QUEUED with a clean slate —
// including last_completed_stage — because its fingerprint changed
// and any previously completed stage's outputs no longer correspond to
// the file's current content.
func (s *Store) RequeueChanged(ctx context.Context, mediaID string) error {
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			UPDATE media SET status = 'QUEUED', progress = 0, error_code = NULL, error_message = NULL, last_completed_stage = NULL
			WHERE media_id = ?`, mediaID)
		return err
	})
}

// RequeueFromStage requeues a media item to resume from just after
// fromStage, for maintenance operations that want to force one
// specific later stage (e.g. face detection) to rerun without redoing
// earlier completed work.
func (s *Store) RequeueFromStage(ctx context.Context, mediaID string, fromStage *string) error {
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			UPDATE media SET status = 'QUEUED', progress = 0, error_code = NULL, error_message = NULL, last_completed_stage = ?
			WHERE media_id = ?`, fromStage, mediaID)
		return err
	})
}

// ResyncRequeue force-requeues a non-DONE, non-intermediate media item
// on rescan, preserving last_completed_stage so the pipeline can
// resume a previously failed item rather than redo finished stages.
func (s *Store) ResyncRequeue(ctx context.Context, mediaID string) error {
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			UPDATE media SET status = 'QUEUED', progress = 0, error_code = NULL, error_message = NULL
			WHERE media_id = ?`, mediaID)
		return err
	})
}

func (s *Store) MarkIndexed(ctx context.Context, mediaID string, nowMs int64) error {
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			UPDATE media SET status = 'DONE', progress = 1.0, indexed_at_ms = ? WHERE media_id = ?`,
			nowMs, mediaID)
		return err
	})
}

// UpdateTechnicalMetadata fills in the ffprobe/EXIF-derived fields and
// the fingerprint once they're known, without disturbing pipeline state.
func (s *Store) UpdateTechnicalMetadata(ctx context.Context, m *catalogmodel.MediaItem) error {
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			UPDATE media SET
				fingerprint = ?, duration_ms = ?, width = ?, height = ?,
				creation_time = ?, camera_make = ?, camera_model = ?, gps_lat = ?, gps_lng = ?,
				fps = ?, video_codec = ?, video_bitrate = ?, audio_codec = ?, audio_channels = ?,
				audio_sample_rate = ?, container_format = ?, rotation = ?, language_code = ?
			WHERE media_id = ?`,
			m.Fingerprint, nullInt64(m.DurationMs), nullInt(m.Width), nullInt(m.Height),
			nullString(m.CreationTime), nullString(m.CameraMake), nullString(m.CameraModel), nullFloat64(m.GPSLat), nullFloat64(m.GPSLng),
			nullFloat64(m.FPS), nullString(m.VideoCodec), nullInt64(m.VideoBitrate), nullString(m.AudioCodec), nullInt(m.AudioChannels),
			nullInt(m.AudioSampleRate), nullString(m.ContainerFormat), m.Rotation, nullString(m.LanguageCode),
			m.MediaID,
		)
		return err
	})
}

func (s *Store) DeleteMedia(ctx context.Context, mediaID string) error {
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM media WHERE media_id = ?`, mediaID)
		return err
	})
}

// SetLivePhotoPair links two media rows as the still/motion halves of
// one live photo. The two ids may be passed in either order: the video
// row is flagged as the live-photo component, and both rows get the
// still's fingerprint as their live_photo_pair_id.
func (s *Store) SetLivePhotoPair(ctx context.Context, stillID, motionID string) error {
	return withRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()
		if _, err := tx.ExecContext(ctx, `
			UPDATE media SET is_live_photo_component = (media_type = ?),
				live_photo_pair_id = (SELECT fingerprint FROM media WHERE media_id IN (?, ?) AND media_type <> ? LIMIT 1)
			WHERE media_id IN (?, ?)`,
			catalogmodel.MediaVideo, stillID, motionID, catalogmodel.MediaVideo, stillID, motionID); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// ReplaceMediaMetadata overwrites a media item's key→value extra
// metadata (container tags like title/encoder/copyright ffprobe or
// EXIF surfaced but that don't map to a first-class column).
func (s *Store) ReplaceMediaMetadata(ctx context.Context, mediaID string, kv map[string]string) error {
	return withRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()
		if _, err := tx.ExecContext(ctx, `DELETE FROM media_metadata WHERE media_id = ?`, mediaID); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO media_metadata (media_id, key, value) VALUES (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for k, v := range kv {
			if _, err := stmt.ExecContext(ctx, mediaID, k, v); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// ListMediaMetadata returns a media item's extra key→value metadata.
func (s *Store) ListMediaMetadata(ctx context.Context, mediaID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM media_metadata WHERE media_id = ?`, mediaID)
	if err != nil {
		return nil, fmt.Errorf("list media metadata: %w", err)
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var k string
		var v sql.NullString
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("list media metadata: %w", err)
		}
		out[k] = v.String
	}
	return out, rows.Err()
}

func scanMediaRows(rows *sql.Rows) ([]catalogmodel.MediaItem, error) {
	var out []catalogmodel.MediaItem
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func scanMedia(row rowScanner) (*catalogmodel.MediaItem, error) {
	var m catalogmodel.MediaItem
	var durationMs, videoBitrate, indexedAtMs sql.NullInt64
	var width, height, audioChannels, audioSampleRate sql.NullInt64
	var creationTime, cameraMake, cameraModel, livePhotoPairID sql.NullString
	var errorCode, errorMessage, lastCompletedStage, languageCode sql.NullString
	var videoCodec, audioCodec, containerFormat sql.NullString
	var gpsLat, gpsLng, fps sql.NullFloat64

	err := row.Scan(
		&m.MediaID, &m.LibraryID, &m.Path, &m.Filename, &m.Ext, &m.MediaType,
		&m.FileSize, &m.MtimeMs, &m.Fingerprint,
		&durationMs, &width, &height,
		&creationTime, &cameraMake, &cameraModel, &gpsLat, &gpsLng,
		&m.IsLivePhotoComponent, &livePhotoPairID,
		&m.Status, &m.Progress, &errorCode, &errorMessage, &indexedAtMs, &lastCompletedStage, &languageCode,
		&fps, &videoCodec, &videoBitrate, &audioCodec, &audioChannels, &audioSampleRate, &containerFormat, &m.Rotation,
		&m.CreatedAtMs,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan media: %w", err)
	}

	m.DurationMs = fromNullInt64(durationMs)
	m.Width = fromNullInt(width)
	m.Height = fromNullInt(height)
	m.CreationTime = fromNullString(creationTime)
	m.CameraMake = fromNullString(cameraMake)
	m.CameraModel = fromNullString(cameraModel)
	m.GPSLat = fromNullFloat64(gpsLat)
	m.GPSLng = fromNullFloat64(gpsLng)
	m.LivePhotoPairID = fromNullString(livePhotoPairID)
	m.ErrorCode = fromNullString(errorCode)
	m.ErrorMessage = fromNullString(errorMessage)
	m.IndexedAtMs = fromNullInt64(indexedAtMs)
	m.LastCompletedStage = fromNullString(lastCompletedStage)
	m.LanguageCode = fromNullString(languageCode)
	m.FPS = fromNullFloat64(fps)
	m.VideoCodec = fromNullString(videoCodec)
	m.VideoBitrate = fromNullInt64(videoBitrate)
	m.AudioCodec = fromNullString(audioCodec)
	m.AudioChannels = fromNullInt(audioChannels)
	m.AudioSampleRate = fromNullInt(audioSampleRate)
	m.ContainerFormat = fromNullString(containerFormat)

	return &m, nil
}

// filterClause builds a "WHERE ... AND ..." fragment for optional
// equality filters, used by search and listing endpoints that accept
// zero or more of library_id/media_type/status.
func filterClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(conds, " AND ")
}
