// Package catalogmodel defines the catalog's data model:
// libraries, media items, frames, detections, transcript segments,
// faces, persons and their learning tables, jobs, settings, and user
// data. These are plain structs with `db`/`json` tags.
package catalogmodel

// MediaType enumerates the two kinds of media item.
type MediaType string

const (
	MediaPhoto MediaType = "photo"
	MediaVideo MediaType = "video"
)

// Status is the media/job processing state machine.
type Status string

const (
	StatusQueued           Status = "QUEUED"
	StatusExtractingAudio  Status = "EXTRACTING_AUDIO"
	StatusTranscribing     Status = "TRANSCRIBING"
	StatusExtractingFrames Status = "EXTRACTING_FRAMES"
	StatusEmbedding        Status = "EMBEDDING"
	StatusDetecting        Status = "DETECTING"
	StatusDetectingFaces   Status = "DETECTING_FACES"
	StatusDone             Status = "DONE"
	StatusFailed           Status = "FAILED"
	StatusCancelled        Status = "CANCELLED"
	StatusPending          Status = "PENDING" // job-only: before a stage has started
)

// IndexingPreset selects which stages run for a media item.
type IndexingPreset string

const (
	PresetQuick IndexingPreset = "quick"
	PresetDeep  IndexingPreset = "deep"
)

// ErrorCode is the closed error taxonomy shared by media rows, job
// rows, and emitted events.
type ErrorCode string

const (
	ErrFileNotFound       ErrorCode = "FILE_NOT_FOUND"
	ErrFFmpeg             ErrorCode = "FFMPEG_ERROR"
	ErrTranscription      ErrorCode = "TRANSCRIPTION_ERROR"
	ErrEmbedding          ErrorCode = "EMBEDDING_ERROR"
	ErrDetection          ErrorCode = "DETECTION_ERROR"
	ErrFaceDetection      ErrorCode = "FACE_DETECTION_ERROR"
	ErrCancelled          ErrorCode = "CANCELLED"
	ErrUnknown            ErrorCode = "UNKNOWN_ERROR"
)

// RecognitionMode controls how a person's auto-recognition score is
// computed.
type RecognitionMode string

const (
	RecognitionAverage        RecognitionMode = "average"
	RecognitionReferenceOnly  RecognitionMode = "reference_only"
	RecognitionWeighted       RecognitionMode = "weighted"
)

// AssignmentSource records what caused a face's current person
// assignment.
type AssignmentSource string

const (
	AssignmentLegacy   AssignmentSource = "legacy"
	AssignmentAuto     AssignmentSource = "auto"
	AssignmentManual   AssignmentSource = "manual"
	AssignmentRef      AssignmentSource = "reference"
)

// Library is a registered root folder.
type Library struct {
	LibraryID   string `db:"library_id" json:"library_id"`
	FolderPath  string `db:"folder_path" json:"folder_path"`
	Name        string `db:"name" json:"name,omitempty"`
	Recursive   bool   `db:"recursive" json:"recursive"`
	CreatedAtMs int64  `db:"created_at_ms" json:"created_at_ms"`
}

// MediaItem is the unified record for one discovered file.
type MediaItem struct {
	MediaID   string    `db:"media_id" json:"media_id"`
	LibraryID string    `db:"library_id" json:"library_id"`
	Path      string    `db:"path" json:"path"`
	Filename  string    `db:"filename" json:"filename"`
	Ext       string    `db:"ext" json:"ext"`
	MediaType MediaType `db:"media_type" json:"media_type"`

	FileSize    int64  `db:"file_size" json:"file_size"`
	MtimeMs     int64  `db:"mtime_ms" json:"mtime_ms"`
	Fingerprint string `db:"fingerprint" json:"fingerprint"`

	DurationMs *int64 `db:"duration_ms" json:"duration_ms,omitempty"`
	Width      *int   `db:"width" json:"width,omitempty"`
	Height     *int   `db:"height" json:"height,omitempty"`

	CreationTime *string  `db:"creation_time" json:"creation_time,omitempty"`
	CameraMake   *string  `db:"camera_make" json:"camera_make,omitempty"`
	CameraModel  *string  `db:"camera_model" json:"camera_model,omitempty"`
	GPSLat       *float64 `db:"gps_lat" json:"gps_lat,omitempty"`
	GPSLng       *float64 `db:"gps_lng" json:"gps_lng,omitempty"`

	IsLivePhotoComponent bool    `db:"is_live_photo_component" json:"is_live_photo_component"`
	LivePhotoPairID      *string `db:"live_photo_pair_id" json:"live_photo_pair_id,omitempty"`

	Status             Status  `db:"status" json:"status"`
	Progress           float64 `db:"progress" json:"progress"`
	ErrorCode          *string `db:"error_code" json:"error_code,omitempty"`
	ErrorMessage       *string `db:"error_message" json:"error_message,omitempty"`
	IndexedAtMs        *int64  `db:"indexed_at_ms" json:"indexed_at_ms,omitempty"`
	LastCompletedStage *string `db:"last_completed_stage" json:"last_completed_stage,omitempty"`
	LanguageCode       *string `db:"language_code" json:"language_code,omitempty"`

	// Video-only technical fields.
	FPS             *float64 `db:"fps" json:"fps,omitempty"`
	VideoCodec      *string  `db:"video_codec" json:"video_codec,omitempty"`
	VideoBitrate    *int64   `db:"video_bitrate" json:"video_bitrate,omitempty"`
	AudioCodec      *string  `db:"audio_codec" json:"audio_codec,omitempty"`
	AudioChannels   *int     `db:"audio_channels" json:"audio_channels,omitempty"`
	AudioSampleRate *int     `db:"audio_sample_rate" json:"audio_sample_rate,omitempty"`
	ContainerFormat *string  `db:"container_format" json:"container_format,omitempty"`
	Rotation        int      `db:"rotation" json:"rotation"`

	CreatedAtMs int64 `db:"created_at_ms" json:"created_at_ms"`
}

// Frame is a sampled still image tied to a video (or the single still
// of a photo).
type Frame struct {
	FrameID       string  `db:"frame_id" json:"frame_id"`
	VideoID       string  `db:"video_id" json:"video_id"`
	FrameIndex    int     `db:"frame_index" json:"frame_index"`
	TimestampMs   int64   `db:"timestamp_ms" json:"timestamp_ms"`
	ThumbnailPath string  `db:"thumbnail_path" json:"thumbnail_path"`
	Colors        *string `db:"colors" json:"colors,omitempty"` // comma-joined
}

// BBox is a pixel-space bounding box.
type BBox struct {
	X float64
	Y float64
	W float64
	H float64
}

// Detection is an object-detector output.
type Detection struct {
	DetectionID string   `db:"detection_id" json:"detection_id"`
	VideoID     string   `db:"video_id" json:"video_id"`
	FrameID     string   `db:"frame_id" json:"frame_id"`
	TimestampMs int64    `db:"timestamp_ms" json:"timestamp_ms"`
	Label       string   `db:"label" json:"label"`
	Confidence  float64  `db:"confidence" json:"confidence"`
	BBox        *BBox    `db:"-" json:"bbox,omitempty"`
}

// TranscriptSegment is a speech segment.
type TranscriptSegment struct {
	VideoID    string   `db:"video_id" json:"video_id"`
	StartMs    int64    `db:"start_ms" json:"start_ms"`
	EndMs      int64    `db:"end_ms" json:"end_ms"`
	Text       string   `db:"text" json:"text"`
	Confidence *float64 `db:"confidence" json:"confidence,omitempty"`
}

// Face is a detected face crop plus its embedding.
type Face struct {
	FaceID     string  `db:"face_id" json:"face_id"`
	VideoID    string  `db:"video_id" json:"video_id"`
	FrameID    string  `db:"frame_id" json:"frame_id"`
	TimestampMs int64  `db:"timestamp_ms" json:"timestamp_ms"`
	BBox       BBox    `db:"-" json:"bbox"`
	Confidence float64 `db:"confidence" json:"confidence"`
	Embedding  []byte  `db:"embedding" json:"-"`
	CropPath   string  `db:"crop_path" json:"crop_path"`

	Age    *int    `db:"age" json:"age,omitempty"`
	Gender *string `db:"gender" json:"gender,omitempty"`

	PersonID  *string `db:"person_id" json:"person_id,omitempty"`
	ClusterID *string `db:"cluster_id" json:"cluster_id,omitempty"`

	AssignmentSource     AssignmentSource `db:"assignment_source" json:"assignment_source"`
	AssignmentConfidence *float64         `db:"assignment_confidence" json:"assignment_confidence,omitempty"`
	AssignedAtMs         *int64           `db:"assigned_at_ms" json:"assigned_at_ms,omitempty"`
}

// Person is a named identity.
type Person struct {
	PersonID        string          `db:"person_id" json:"person_id"`
	Name            string          `db:"name" json:"name"`
	ThumbnailFaceID *string         `db:"thumbnail_face_id" json:"thumbnail_face_id,omitempty"`
	FaceCount       int             `db:"face_count" json:"face_count"`
	RecognitionMode RecognitionMode `db:"recognition_mode" json:"recognition_mode"`
	CreatedAtMs     int64           `db:"created_at_ms" json:"created_at_ms"`
	UpdatedAtMs     int64           `db:"updated_at_ms" json:"updated_at_ms"`
}

// FaceReference is an explicit canonical example marked by the user.
type FaceReference struct {
	FaceID   string  `db:"face_id" json:"face_id"`
	PersonID string  `db:"person_id" json:"person_id"`
	Weight   float64 `db:"weight" json:"weight"`
}

// FaceNegative is an explicit "not this person" marker.
type FaceNegative struct {
	FaceID   string `db:"face_id" json:"face_id"`
	PersonID string `db:"person_id" json:"person_id"`
}

// PersonPairThreshold is a learned minimum similarity between two
// frequently-confused persons. PersonAID < PersonBID lexicographically.
type PersonPairThreshold struct {
	PersonAID       string  `db:"person_a_id" json:"person_a_id"`
	PersonBID       string  `db:"person_b_id" json:"person_b_id"`
	Threshold       float64 `db:"threshold" json:"threshold"`
	CorrectionCount int     `db:"correction_count" json:"correction_count"`
}

// Job is a per-pipeline-run record, the WebSocket-visible surface of
// indexing progress.
type Job struct {
	JobID        string  `db:"job_id" json:"job_id"`
	VideoID      string  `db:"video_id" json:"video_id"`
	Status       string  `db:"status" json:"status"`
	CurrentStage *string `db:"current_stage" json:"current_stage,omitempty"`
	Progress     float64 `db:"progress" json:"progress"`
	Message      *string `db:"message" json:"message,omitempty"`
	ErrorCode    *string `db:"error_code" json:"error_code,omitempty"`
	ErrorMessage *string `db:"error_message" json:"error_message,omitempty"`
	CreatedAtMs  int64   `db:"created_at_ms" json:"created_at_ms"`
	UpdatedAtMs  int64   `db:"updated_at_ms" json:"updated_at_ms"`
}

// ScanStats is returned by the scanner after reconciling a library.
type ScanStats struct {
	FilesFound     int `json:"files_found"`
	FilesNew       int `json:"files_new"`
	FilesChanged   int `json:"files_changed"`
	FilesUnchanged int `json:"files_unchanged"`
	FilesDeleted   int `json:"files_deleted"`
}
