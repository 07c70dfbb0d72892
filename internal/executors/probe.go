package executors

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// TechnicalMetadata is the set of fields ffprobe can recover from a
// media file's container and stream headers.
type TechnicalMetadata struct {
	DurationMs      *int64
	Width           *int
	Height          *int
	FPS             *float64
	VideoCodec      *string
	VideoBitrate    *int64
	AudioCodec      *string
	AudioChannels   *int
	AudioSampleRate *int
	ContainerFormat *string
	Rotation        int
	CreationTime    *string
	CameraMake      *string
	CameraModel     *string
	GPSLat          *float64
	GPSLng          *float64
}

type ffprobeFormat struct {
	Duration string            `json:"duration"`
	FormatName string          `json:"format_name"`
	BitRate  string            `json:"bit_rate"`
	Tags     map[string]string `json:"tags"`
}

type ffprobeSideData struct {
	SideDataType string `json:"side_data_type"`
	Rotation     int    `json:"rotation"`
}

type ffprobeStream struct {
	CodecType     string            `json:"codec_type"`
	CodecName     string            `json:"codec_name"`
	Width         int               `json:"width"`
	Height        int               `json:"height"`
	BitRate       string            `json:"bit_rate"`
	AvgFrameRate  string            `json:"avg_frame_rate"`
	RFrameRate    string            `json:"r_frame_rate"`
	Channels      int               `json:"channels"`
	SampleRate    string            `json:"sample_rate"`
	Tags          map[string]string `json:"tags"`
	SideDataList  []ffprobeSideData `json:"side_data_list"`
}

type ffprobeOutput struct {
	Format  ffprobeFormat    `json:"format"`
	Streams []ffprobeStream  `json:"streams"`
}

var gpsPairPattern = regexp.MustCompile(`([+-]\d+\.?\d*)([+-]\d+\.?\d*)`)

// ProbeMetadata shells out to ffprobe and parses its JSON report into a
// TechnicalMetadata record. Probe failures (missing binary, unreadable
// file, malformed JSON) are returned as an error rather than a
// partially-filled zero value, leaving the caller's retry/fallback
// decision to the pipeline stage that invoked it.
func ProbeMetadata(ctx context.Context, path string) (*TechnicalMetadata, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_format",
		"-show_streams",
		"-of", "json",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe: %w", err)
	}

	var raw ffprobeOutput
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, fmt.Errorf("ffprobe: parse json: %w", err)
	}

	meta := &TechnicalMetadata{}

	if d, err := strconv.ParseFloat(raw.Format.Duration, 64); err == nil {
		ms := int64(d * 1000)
		meta.DurationMs = &ms
	}
	if raw.Format.FormatName != "" {
		meta.ContainerFormat = &raw.Format.FormatName
	}

	tags := raw.Format.Tags
	meta.CreationTime = firstNonEmpty(tags, "creation_time", "date", "DATE", "com.apple.quicktime.creationdate")
	meta.CameraMake = firstNonEmpty(tags, "make", "MAKE", "com.apple.quicktime.make", "manufacturer")
	meta.CameraModel = firstNonEmpty(tags, "model", "MODEL", "com.apple.quicktime.model", "product")

	if loc := firstNonEmptyString(tags, "location", "LOCATION", "com.apple.quicktime.location.ISO6709"); loc != "" {
		if m := gpsPairPattern.FindStringSubmatch(loc); m != nil {
			if lat, err := strconv.ParseFloat(m[1], 64); err == nil {
				meta.GPSLat = &lat
			}
			if lng, err := strconv.ParseFloat(m[2], 64); err == nil {
				meta.GPSLng = &lng
			}
		}
	}

	sawVideo, sawAudio := false, false
	for _, s := range raw.Streams {
		switch s.CodecType {
		case "video":
			if sawVideo {
				continue
			}
			sawVideo = true
			if s.Width > 0 {
				meta.Width = &s.Width
			}
			if s.Height > 0 {
				meta.Height = &s.Height
			}
			if s.CodecName != "" {
				meta.VideoCodec = &s.CodecName
			}
			if br, err := strconv.ParseInt(s.BitRate, 10, 64); err == nil {
				meta.VideoBitrate = &br
			} else if br, err := strconv.ParseInt(raw.Format.BitRate, 10, 64); err == nil {
				meta.VideoBitrate = &br
			}
			if fps := parseFrameRate(s.AvgFrameRate); fps != nil {
				meta.FPS = fps
			} else if fps := parseFrameRate(s.RFrameRate); fps != nil {
				meta.FPS = fps
			}
			meta.Rotation = parseRotation(s)
			if meta.CreationTime == nil {
				if ct, ok := s.Tags["creation_time"]; ok && ct != "" {
					meta.CreationTime = &ct
				}
			}
		case "audio":
			if sawAudio {
				continue
			}
			sawAudio = true
			if s.CodecName != "" {
				meta.AudioCodec = &s.CodecName
			}
			if s.Channels > 0 {
				meta.AudioChannels = &s.Channels
			}
			if sr, err := strconv.Atoi(s.SampleRate); err == nil {
				meta.AudioSampleRate = &sr
			}
		}
	}

	return meta, nil
}

func parseFrameRate(s string) *float64 {
	if s == "" {
		return nil
	}
	parts := strings.SplitN(s, "/", 2)
	if len(parts) == 2 {
		num, errN := strconv.ParseFloat(parts[0], 64)
		den, errD := strconv.ParseFloat(parts[1], 64)
		if errN == nil && errD == nil && den > 0 {
			fps := num / den
			return &fps
		}
		return nil
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return &v
	}
	return nil
}

func parseRotation(s ffprobeStream) int {
	for _, sd := range s.SideDataList {
		if sd.SideDataType == "Display Matrix" {
			return ((sd.Rotation % 360) + 360) % 360
		}
	}
	if rot, ok := s.Tags["rotate"]; ok && rot != "" {
		if v, err := strconv.Atoi(rot); err == nil {
			return ((v % 360) + 360) % 360
		}
	}
	if rot, ok := s.Tags["ROTATE"]; ok && rot != "" {
		if v, err := strconv.Atoi(rot); err == nil {
			return ((v % 360) + 360) % 360
		}
	}
	return 0
}

func firstNonEmpty(tags map[string]string, keys ...string) *string {
	v := firstNonEmptyString(tags, keys...)
	if v == "" {
		return nil
	}
	return &v
}

func firstNonEmptyString(tags map[string]string, keys ...string) string {
	for _, k := range keys {
		if v, ok := tags[k]; ok && v != "" {
			return v
		}
	}
	return ""
}
