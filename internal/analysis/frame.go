package analysis

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"
)

// Lighting thresholds on the 0-255 luma scale.
const (
	darkThreshold         = 50
	brightThreshold       = 200
	highContrastThreshold = 50
)

// paletteSize is how many dominant colors each frame reports.
const paletteSize = 5

// motionGridSize is the edge length of the luma grid used for
// inter-frame motion estimation.
const motionGridSize = 16

// lumaGrid is a coarse grayscale downsample of one frame.
type lumaGrid [motionGridSize * motionGridSize]float64

// analyzeFrame loads one extracted frame and computes its color and
// lighting profile plus the luma grid used for motion estimation.
func analyzeFrame(path string, frameID int, timestamp float64) (FrameAnalysis, lumaGrid, error) {
	img, err := imgio.Open(path)
	if err != nil {
		return FrameAnalysis{}, lumaGrid{}, fmt.Errorf("analysis: decode frame %s: %w", path, err)
	}
	rgba := asRGBA(img)

	fa := FrameAnalysis{
		FrameID:        frameID,
		Timestamp:      timestamp,
		FramePath:      path,
		DominantColors: dominantColors(rgba),
		Lighting:       analyzeLighting(rgba),
	}
	fa.Depth, fa.Objects = loadSidecar(path)
	return fa, computeLumaGrid(img), nil
}

func asRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			rgba.Set(x, y, img.At(x, y))
		}
	}
	return rgba
}

// dominantColors quantises each channel to 8 levels and reports the
// most populated buckets by pixel share.
func dominantColors(img *image.RGBA) []ColorShare {
	counts := map[int]int{}
	total := 0

	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x++ {
			r := img.Pix[row] >> 5
			g := img.Pix[row+1] >> 5
			bl := img.Pix[row+2] >> 5
			counts[int(r)<<6|int(g)<<3|int(bl)]++
			total++
			row += 4
		}
	}
	if total == 0 {
		return nil
	}

	type bucket struct {
		key   int
		count int
	}
	buckets := make([]bucket, 0, len(counts))
	for k, c := range counts {
		buckets = append(buckets, bucket{k, c})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].count != buckets[j].count {
			return buckets[i].count > buckets[j].count
		}
		return buckets[i].key < buckets[j].key
	})

	n := paletteSize
	if len(buckets) < n {
		n = len(buckets)
	}
	colors := make([]ColorShare, 0, n)
	for _, bk := range buckets[:n] {
		// Bucket centers: level*32 + 16.
		colors = append(colors, ColorShare{
			RGB: [3]int{
				(bk.key>>6&7)*32 + 16,
				(bk.key>>3&7)*32 + 16,
				(bk.key&7)*32 + 16,
			},
			Percentage: float64(bk.count) / float64(total) * 100,
		})
	}
	return colors
}

// analyzeLighting computes luma statistics and mean saturation.
func analyzeLighting(img *image.RGBA) Lighting {
	b := img.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return Lighting{}
	}

	var sum, sumSq, satSum float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x++ {
			r := float64(img.Pix[row])
			g := float64(img.Pix[row+1])
			bl := float64(img.Pix[row+2])

			luma := 0.299*r + 0.587*g + 0.114*bl
			sum += luma
			sumSq += luma * luma
			satSum += math.Max(r, math.Max(g, bl)) - math.Min(r, math.Min(g, bl))
			row += 4
		}
	}

	mean := sum / float64(total)
	variance := sumSq/float64(total) - mean*mean
	if variance < 0 {
		variance = 0
	}
	contrast := math.Sqrt(variance)

	return Lighting{
		Brightness:     mean,
		Contrast:       contrast,
		Saturation:     satSum / float64(total),
		IsDark:         mean < darkThreshold,
		IsBright:       mean > brightThreshold,
		IsHighContrast: contrast > highContrastThreshold,
	}
}

// computeLumaGrid downsamples a frame to a coarse grayscale grid.
func computeLumaGrid(img image.Image) lumaGrid {
	small := transform.Resize(img, motionGridSize, motionGridSize, transform.Linear)

	var grid lumaGrid
	for y := 0; y < motionGridSize; y++ {
		row := small.PixOffset(0, y)
		for x := 0; x < motionGridSize; x++ {
			r := float64(small.Pix[row])
			g := float64(small.Pix[row+1])
			b := float64(small.Pix[row+2])
			grid[y*motionGridSize+x] = 0.299*r + 0.587*g + 0.114*b
			row += 4
		}
	}
	return grid
}

// motionMagnitude is the mean absolute luma difference between two
// grids, normalised to 0-1.
func motionMagnitude(a, b lumaGrid) float64 {
	var sum float64
	for i := range a {
		sum += math.Abs(a[i] - b[i])
	}
	return sum / float64(len(a)) / 255
}
