package executors

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
)

// DecodeImage opens and decodes any image format registered with the
// image package (jpeg, png, gif, bmp, webp — the blank imports in
// thumbnail.go and this file register the decoders).
func DecodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("decode image: open: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// PreprocessCHW resizes img to targetW×targetH with a nearest-neighbour
// sample and converts it to CHW float32, normalizing each channel as
// (pixel - mean) / std. Every ONNX executor in this package expects
// its input in this layout; only the mean/std pair differs per model.
func PreprocessCHW(img image.Image, targetW, targetH int, mean, std [3]float32) []float32 {
	data := make([]float32, 3*targetH*targetW)
	planeSize := targetH * targetW

	bounds := img.Bounds()
	srcW := bounds.Dx()
	srcH := bounds.Dy()
	minX := bounds.Min.X
	minY := bounds.Min.Y

	switch src := img.(type) {
	case *image.RGBA:
		for y := 0; y < targetH; y++ {
			srcY := minY + y*srcH/targetH
			for x := 0; x < targetW; x++ {
				srcX := minX + x*srcW/targetW
				off := src.PixOffset(srcX, srcY)
				pix := src.Pix[off : off+3 : off+3]
				idx := y*targetW + x
				data[idx] = (float32(pix[0]) - mean[0]) / std[0]
				data[planeSize+idx] = (float32(pix[1]) - mean[1]) / std[1]
				data[2*planeSize+idx] = (float32(pix[2]) - mean[2]) / std[2]
			}
		}
	case *image.YCbCr:
		for y := 0; y < targetH; y++ {
			srcY := minY + y*srcH/targetH
			for x := 0; x < targetW; x++ {
				srcX := minX + x*srcW/targetW
				yi := src.YOffset(srcX, srcY)
				ci := src.COffset(srcX, srcY)
				r8, g8, b8 := color.YCbCrToRGB(src.Y[yi], src.Cb[ci], src.Cr[ci])
				idx := y*targetW + x
				data[idx] = (float32(r8) - mean[0]) / std[0]
				data[planeSize+idx] = (float32(g8) - mean[1]) / std[1]
				data[2*planeSize+idx] = (float32(b8) - mean[2]) / std[2]
			}
		}
	default:
		for y := 0; y < targetH; y++ {
			srcY := minY + y*srcH/targetH
			for x := 0; x < targetW; x++ {
				srcX := minX + x*srcW/targetW
				r, g, b, _ := img.At(srcX, srcY).RGBA()
				idx := y*targetW + x
				data[idx] = (float32(r>>8) - mean[0]) / std[0]
				data[planeSize+idx] = (float32(g>>8) - mean[1]) / std[1]
				data[2*planeSize+idx] = (float32(b>>8) - mean[2]) / std[2]
			}
		}
	}

	return data
}

// meanStdCentered128 is the [-1,1]-ish normalization most of these
// detector/embedder models were exported with.
var meanStdCentered128 = [2][3]float32{{127.5, 127.5, 127.5}, {128.0, 128.0, 128.0}}
var meanStdCentered127 = [2][3]float32{{127.5, 127.5, 127.5}, {127.5, 127.5, 127.5}}
var meanStdUnit = [2][3]float32{{0, 0, 0}, {1, 1, 1}}

// PreprocessForDetection prepares an image for ObjectDetector or
// FaceDetector input.
func PreprocessForDetection(img image.Image, targetW, targetH int) []float32 {
	return PreprocessCHW(img, targetW, targetH, meanStdCentered128[0], meanStdCentered128[1])
}

// PreprocessForEmbedding prepares a face crop for FaceEmbedder input.
func PreprocessForEmbedding(img image.Image, targetW, targetH int) []float32 {
	return PreprocessCHW(img, targetW, targetH, meanStdCentered127[0], meanStdCentered127[1])
}

// PreprocessForAttributes prepares a face crop for AttributePredictor
// input.
func PreprocessForAttributes(img image.Image, targetW, targetH int) []float32 {
	return PreprocessCHW(img, targetW, targetH, meanStdUnit[0], meanStdUnit[1])
}

// PreprocessForImageEmbed prepares a full frame for ImageEmbedder's
// vision tower, which was exported with the same centering as the
// face embedder.
func PreprocessForImageEmbed(img image.Image, targetW, targetH int) []float32 {
	return PreprocessCHW(img, targetW, targetH, meanStdCentered127[0], meanStdCentered127[1])
}

// CropBBox extracts the region bbox (x1,y1,x2,y2 in pixel space) from
// img, padded by paddingFrac on every side and clamped to the image's
// bounds. Returns nil if the box degenerates to zero area.
func CropBBox(img image.Image, bbox [4]float32, paddingFrac float32) image.Image {
	bounds := img.Bounds()

	x1 := int(bbox[0])
	y1 := int(bbox[1])
	x2 := int(bbox[2])
	y2 := int(bbox[3])

	x1, y1, x2, y2 = clampBox(bounds, x1, y1, x2, y2)
	w := x2 - x1
	h := y2 - y1
	if w <= 0 || h <= 0 {
		return nil
	}

	padW := int(float32(w) * paddingFrac)
	padH := int(float32(h) * paddingFrac)
	x1, y1, x2, y2 = clampBox(bounds, x1-padW, y1-padH, x2+padW, y2+padH)

	rect := image.Rect(x1, y1, x2, y2)

	type subImager interface {
		SubImage(r image.Rectangle) image.Image
	}
	if si, ok := img.(subImager); ok {
		return si.SubImage(rect)
	}

	crop := image.NewRGBA(image.Rect(0, 0, x2-x1, y2-y1))
	for cy := y1; cy < y2; cy++ {
		for cx := x1; cx < x2; cx++ {
			crop.Set(cx-x1, cy-y1, img.At(cx, cy))
		}
	}
	return crop
}

func clampBox(bounds image.Rectangle, x1, y1, x2, y2 int) (int, int, int, int) {
	if x1 < bounds.Min.X {
		x1 = bounds.Min.X
	}
	if y1 < bounds.Min.Y {
		y1 = bounds.Min.Y
	}
	if x2 > bounds.Max.X {
		x2 = bounds.Max.X
	}
	if y2 > bounds.Max.Y {
		y2 = bounds.Max.Y
	}
	return x1, y1, x2, y2
}

// EncodeJPEG encodes img as a JPEG at the given quality, the format
// every face crop and frame thumbnail is persisted in.
func EncodeJPEG(img image.Image, quality int) []byte {
	var buf bytes.Buffer
	_ = jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality})
	return buf.Bytes()
}
