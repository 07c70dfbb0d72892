package executors

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/png"
	"os"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ThumbnailPreset is a named (dimension, quality) pair. The full
// preset produces the browsable single-item view; grid is a much
// smaller, more aggressively compressed variant for library grids.
type ThumbnailPreset struct {
	MaxDimension int
	Quality      int
}

var (
	ThumbnailPresetFull = ThumbnailPreset{MaxDimension: 1280, Quality: 85}
	ThumbnailPresetGrid = ThumbnailPreset{MaxDimension: 256, Quality: 50}
)

// BuildThumbnail decodes an image (auto-correcting EXIF orientation so
// the output never needs its own orientation tag), downsamples it to
// fit within preset.MaxDimension on its long edge, and re-encodes as a
// JPEG at preset.Quality. The source's EXIF/XMP metadata is dropped in
// the process, which is intentional: thumbnails are a derived
// artifact, not a copy of the original.
func BuildThumbnail(srcPath string, preset ThumbnailPreset) ([]byte, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return nil, fmt.Errorf("build thumbnail: open: %w", err)
	}
	defer f.Close()

	img, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("build thumbnail: decode: %w", err)
	}

	resized := imaging.Fit(img, preset.MaxDimension, preset.MaxDimension, imaging.Lanczos)

	var buf bytes.Buffer
	err = imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(preset.Quality))
	if err != nil {
		return nil, fmt.Errorf("build thumbnail: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeImageDimensions reads just enough of a file to report its
// pixel dimensions, used for photo technical metadata without doing a
// full ffprobe round trip.
func DecodeImageDimensions(srcPath string) (width, height int, err error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return 0, 0, fmt.Errorf("decode image dimensions: open: %w", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("decode image dimensions: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// PhotoEXIF is the subset of EXIF tags the cataloger cares about for a
// still photo, mirroring the fields ffprobe supplies for video.
type PhotoEXIF struct {
	CreationTime *string
	CameraMake   *string
	CameraModel  *string
	GPSLat       *float64
	GPSLng       *float64
}

// ProbePhotoEXIF reads EXIF tags directly, since ffprobe's format/tags
// view is built for container metadata and misses fields (GPS in
// particular) that common JPEG EXIF blocks carry reliably.
func ProbePhotoEXIF(srcPath string) (*PhotoEXIF, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return nil, fmt.Errorf("probe photo exif: open: %w", err)
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		// No EXIF block is common (PNG, screenshots, stripped JPEGs)
		// and not an error condition.
		return &PhotoEXIF{}, nil
	}

	out := &PhotoEXIF{}

	if tag, err := x.Get(exif.DateTimeOriginal); err == nil {
		if s, err := tag.StringVal(); err == nil {
			out.CreationTime = &s
		}
	}
	if tag, err := x.Get(exif.Make); err == nil {
		if s, err := tag.StringVal(); err == nil {
			out.CameraMake = &s
		}
	}
	if tag, err := x.Get(exif.Model); err == nil {
		if s, err := tag.StringVal(); err == nil {
			out.CameraModel = &s
		}
	}
	if lat, lng, err := x.LatLong(); err == nil {
		out.GPSLat = &lat
		out.GPSLng = &lng
	}

	return out, nil
}
