package executors

import (
	"image"
	"math"
	"os"
	"sort"

	"github.com/disintegration/imaging"
)

// CanonicalColors is the fixed 11-name palette every frame's dominant
// colors are classified into.
var CanonicalColors = []string{
	"red", "orange", "yellow", "green", "cyan", "blue", "purple", "pink", "black", "gray", "white",
}

// hueBand maps a hue range (OpenCV 0-180 scale) to a canonical color
// name. Bands are checked in order; the first match wins.
type hueBand struct {
	lo, hi int
	name   string
}

var hueBands = []hueBand{
	{0, 8, "red"},
	{8, 20, "orange"},
	{20, 33, "yellow"},
	{33, 78, "green"},
	{78, 100, "cyan"},
	{100, 130, "blue"},
	{130, 155, "purple"},
	{155, 172, "pink"},
	{172, 180, "red"},
}

// QuantizeColors samples a downscaled copy of the image at path and
// returns up to k canonical color names ordered by pixel-count
// frequency. This is the histogram fallback: pixels are bucketed
// directly into the fixed palette via hue/saturation/value thresholds
// rather than run through k-means first, trading a small amount of
// cluster precision for a single linear pass with no centroid
// iteration.
func QuantizeColors(path string, k int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}

	// Sample on a small grid; full-resolution scanning buys nothing
	// for an 11-bucket histogram.
	sample := imaging.Resize(img, 64, 0, imaging.Box)

	counts := make(map[string]int, len(CanonicalColors))
	bounds := sample.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			name := classifyPixel(sample, x, y)
			counts[name]++
		}
	}

	type bucket struct {
		name  string
		count int
	}
	buckets := make([]bucket, 0, len(counts))
	for name, c := range counts {
		buckets = append(buckets, bucket{name, c})
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].count > buckets[j].count })

	if k > len(buckets) {
		k = len(buckets)
	}
	out := make([]string, 0, k)
	for i := 0; i < k; i++ {
		out = append(out, buckets[i].name)
	}
	return out, nil
}

func classifyPixel(img image.Image, x, y int) string {
	r, g, b, _ := img.At(x, y).RGBA()
	// At() returns 16-bit channels; scale to 8-bit.
	rf, gf, bf := float64(r>>8)/255, float64(g>>8)/255, float64(b>>8)/255

	maxC := math.Max(rf, math.Max(gf, bf))
	minC := math.Min(rf, math.Min(gf, bf))
	delta := maxC - minC

	value := maxC
	saturation := 0.0
	if maxC > 0 {
		saturation = delta / maxC
	}

	if saturation < 30.0/255.0 {
		switch {
		case value < 0.25:
			return "black"
		case value > 0.75:
			return "white"
		default:
			return "gray"
		}
	}

	var hueDeg float64
	switch {
	case delta == 0:
		hueDeg = 0
	case maxC == rf:
		hueDeg = 60 * math.Mod((gf-bf)/delta, 6)
	case maxC == gf:
		hueDeg = 60 * ((bf-rf)/delta + 2)
	default:
		hueDeg = 60 * ((rf-gf)/delta + 4)
	}
	if hueDeg < 0 {
		hueDeg += 360
	}
	// Convert to OpenCV's 0-180 hue scale used by the palette table.
	hue := int(hueDeg / 2)

	for _, band := range hueBands {
		if hue >= band.lo && hue < band.hi {
			return band.name
		}
	}
	return "gray"
}
