package catalog

// schemaTables creates every table gaze-engine needs in one script.
// Unlike the original media server this schema was distilled from,
// there is no legacy per-type "videos" table kept around for
// migration compatibility: MediaItem already unifies photo and video
// rows, carrying every technical/source column either kind can have.
const schemaTables = `
CREATE TABLE IF NOT EXISTS libraries (
    library_id TEXT PRIMARY KEY,
    folder_path TEXT NOT NULL UNIQUE,
    name TEXT,
    recursive INTEGER NOT NULL DEFAULT 1,
    created_at_ms INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS media (
    media_id TEXT PRIMARY KEY,
    library_id TEXT NOT NULL,
    path TEXT NOT NULL,
    filename TEXT NOT NULL,
    ext TEXT NOT NULL,
    media_type TEXT NOT NULL,
    file_size INTEGER NOT NULL,
    mtime_ms INTEGER NOT NULL,
    fingerprint TEXT NOT NULL,
    duration_ms INTEGER,
    width INTEGER,
    height INTEGER,
    creation_time TEXT,
    camera_make TEXT,
    camera_model TEXT,
    gps_lat REAL,
    gps_lng REAL,
    is_live_photo_component INTEGER NOT NULL DEFAULT 0,
    live_photo_pair_id TEXT,
    status TEXT NOT NULL DEFAULT 'QUEUED',
    progress REAL NOT NULL DEFAULT 0.0,
    error_code TEXT,
    error_message TEXT,
    indexed_at_ms INTEGER,
    last_completed_stage TEXT,
    language_code TEXT,
    fps REAL,
    video_codec TEXT,
    video_bitrate INTEGER,
    audio_codec TEXT,
    audio_channels INTEGER,
    audio_sample_rate INTEGER,
    container_format TEXT,
    rotation INTEGER NOT NULL DEFAULT 0,
    created_at_ms INTEGER NOT NULL,
    UNIQUE(library_id, path),
    FOREIGN KEY(library_id) REFERENCES libraries(library_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS media_metadata (
    media_id TEXT NOT NULL,
    key TEXT NOT NULL,
    value TEXT,
    PRIMARY KEY(media_id, key),
    FOREIGN KEY(media_id) REFERENCES media(media_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS transcript_segments (
    segment_id INTEGER PRIMARY KEY AUTOINCREMENT,
    video_id TEXT NOT NULL,
    start_ms INTEGER NOT NULL,
    end_ms INTEGER NOT NULL,
    text TEXT NOT NULL,
    confidence REAL,
    FOREIGN KEY(video_id) REFERENCES media(media_id) ON DELETE CASCADE
);

CREATE VIRTUAL TABLE IF NOT EXISTS transcript_fts USING fts5(
    video_id UNINDEXED,
    start_ms UNINDEXED,
    end_ms UNINDEXED,
    text,
    tokenize="unicode61"
);

CREATE TABLE IF NOT EXISTS frames (
    frame_id TEXT PRIMARY KEY,
    video_id TEXT NOT NULL,
    frame_index INTEGER NOT NULL,
    timestamp_ms INTEGER NOT NULL,
    thumbnail_path TEXT NOT NULL,
    colors TEXT,
    FOREIGN KEY(video_id) REFERENCES media(media_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS detections (
    detection_id TEXT PRIMARY KEY,
    video_id TEXT NOT NULL,
    frame_id TEXT NOT NULL,
    timestamp_ms INTEGER NOT NULL,
    label TEXT NOT NULL,
    confidence REAL NOT NULL,
    bbox_x REAL,
    bbox_y REAL,
    bbox_w REAL,
    bbox_h REAL,
    FOREIGN KEY(video_id) REFERENCES media(media_id) ON DELETE CASCADE,
    FOREIGN KEY(frame_id) REFERENCES frames(frame_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS jobs (
    job_id TEXT PRIMARY KEY,
    video_id TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'PENDING',
    current_stage TEXT,
    progress REAL NOT NULL DEFAULT 0.0,
    message TEXT,
    error_code TEXT,
    error_message TEXT,
    created_at_ms INTEGER NOT NULL,
    updated_at_ms INTEGER NOT NULL,
    FOREIGN KEY(video_id) REFERENCES media(media_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS persons (
    person_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    thumbnail_face_id TEXT,
    face_count INTEGER NOT NULL DEFAULT 0,
    recognition_mode TEXT NOT NULL DEFAULT 'average',
    created_at_ms INTEGER NOT NULL,
    updated_at_ms INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS faces (
    face_id TEXT PRIMARY KEY,
    video_id TEXT NOT NULL,
    frame_id TEXT NOT NULL,
    timestamp_ms INTEGER NOT NULL,
    bbox_x REAL NOT NULL,
    bbox_y REAL NOT NULL,
    bbox_w REAL NOT NULL,
    bbox_h REAL NOT NULL,
    confidence REAL NOT NULL,
    embedding BLOB NOT NULL,
    crop_path TEXT NOT NULL,
    age INTEGER,
    gender TEXT,
    person_id TEXT,
    cluster_id TEXT,
    assignment_source TEXT NOT NULL DEFAULT 'legacy',
    assignment_confidence REAL,
    assigned_at_ms INTEGER,
    created_at_ms INTEGER NOT NULL,
    FOREIGN KEY(video_id) REFERENCES media(media_id) ON DELETE CASCADE,
    FOREIGN KEY(frame_id) REFERENCES frames(frame_id) ON DELETE CASCADE,
    FOREIGN KEY(person_id) REFERENCES persons(person_id) ON DELETE SET NULL
);

CREATE TABLE IF NOT EXISTS face_references (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    face_id TEXT NOT NULL,
    person_id TEXT NOT NULL,
    weight REAL NOT NULL DEFAULT 1.0,
    created_at_ms INTEGER NOT NULL,
    UNIQUE(face_id, person_id),
    FOREIGN KEY(face_id) REFERENCES faces(face_id) ON DELETE CASCADE,
    FOREIGN KEY(person_id) REFERENCES persons(person_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS face_negatives (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    face_id TEXT NOT NULL,
    person_id TEXT NOT NULL,
    created_at_ms INTEGER NOT NULL,
    UNIQUE(face_id, person_id),
    FOREIGN KEY(face_id) REFERENCES faces(face_id) ON DELETE CASCADE,
    FOREIGN KEY(person_id) REFERENCES persons(person_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS person_pair_thresholds (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    person_a_id TEXT NOT NULL,
    person_b_id TEXT NOT NULL,
    threshold REAL NOT NULL DEFAULT 0.70,
    correction_count INTEGER NOT NULL DEFAULT 1,
    created_at_ms INTEGER NOT NULL,
    updated_at_ms INTEGER NOT NULL,
    UNIQUE(person_a_id, person_b_id),
    FOREIGN KEY(person_a_id) REFERENCES persons(person_id) ON DELETE CASCADE,
    FOREIGN KEY(person_b_id) REFERENCES persons(person_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS media_favorites (
    media_id TEXT NOT NULL PRIMARY KEY,
    created_at_ms INTEGER NOT NULL,
    FOREIGN KEY(media_id) REFERENCES media(media_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS person_favorites (
    person_id TEXT NOT NULL PRIMARY KEY,
    created_at_ms INTEGER NOT NULL,
    FOREIGN KEY(person_id) REFERENCES persons(person_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS media_tags (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    media_id TEXT NOT NULL,
    tag TEXT NOT NULL,
    created_at_ms INTEGER NOT NULL,
    UNIQUE(media_id, tag),
    FOREIGN KEY(media_id) REFERENCES media(media_id) ON DELETE CASCADE
);
`

const schemaIndexes = `
CREATE INDEX IF NOT EXISTS idx_media_library ON media(library_id);
CREATE INDEX IF NOT EXISTS idx_media_type ON media(media_type);
CREATE INDEX IF NOT EXISTS idx_media_fingerprint ON media(fingerprint);
CREATE INDEX IF NOT EXISTS idx_media_status ON media(status);
CREATE INDEX IF NOT EXISTS idx_media_creation_time ON media(creation_time);
CREATE INDEX IF NOT EXISTS idx_media_camera ON media(camera_make, camera_model);
CREATE INDEX IF NOT EXISTS idx_media_created_at ON media(created_at_ms);
CREATE INDEX IF NOT EXISTS idx_segments_video ON transcript_segments(video_id, start_ms);
CREATE INDEX IF NOT EXISTS idx_frames_video ON frames(video_id, timestamp_ms);
CREATE INDEX IF NOT EXISTS idx_frames_colors ON frames(colors);
CREATE INDEX IF NOT EXISTS idx_detections_video ON detections(video_id, timestamp_ms);
CREATE INDEX IF NOT EXISTS idx_detections_label ON detections(label);
CREATE INDEX IF NOT EXISTS idx_jobs_video ON jobs(video_id);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_faces_video ON faces(video_id);
CREATE INDEX IF NOT EXISTS idx_faces_person ON faces(person_id);
CREATE INDEX IF NOT EXISTS idx_faces_cluster ON faces(cluster_id);
CREATE INDEX IF NOT EXISTS idx_face_references_person ON face_references(person_id);
CREATE INDEX IF NOT EXISTS idx_face_negatives_person ON face_negatives(person_id);
CREATE INDEX IF NOT EXISTS idx_media_tags_media ON media_tags(media_id);
CREATE INDEX IF NOT EXISTS idx_media_tags_tag ON media_tags(tag);
`

// migrationColumns lists columns added after the initial schema, so
// existing on-disk databases from earlier gaze-engine versions pick
// them up via ALTER TABLE rather than requiring a fresh database.
// Mirrors the additive-migration contract of the system this was
// distilled from.
var migrationColumns = map[string][][2]string{
	"media": {
		{"language_code", "TEXT"},
	},
}
