package colour

import (
	"fmt"
	"image"
	"image/color"
	"sort"
)

// BucketExtractor ranks quantised colour buckets by hit count.
// Each swatch is the average of the original pixels in its bucket, so the
// output carries no quantisation banding.
type BucketExtractor struct {
	alphaThreshold int
	levels         int
	maxSamples     int
}

// NewBucketExtractor creates a BucketExtractor. Zero-valued options select defaults.
func NewBucketExtractor(opts ExtractorOptions) *BucketExtractor {
	opts = opts.resolved()
	return &BucketExtractor{
		alphaThreshold: *opts.AlphaThreshold,
		levels:         opts.QuantizationLevels,
		maxSamples:     opts.MaxSamples,
	}
}

type bucket struct {
	count   int
	r, g, b uint64
}

func (b bucket) average() RGB {
	half := uint64(b.count) / 2
	n := uint64(b.count)
	return RGB{
		R: uint8((b.r + half) / n),
		G: uint8((b.g + half) / n),
		B: uint8((b.b + half) / n),
	}
}

// Extract returns at most count swatches ordered by descending frequency.
// Ties keep the order in which buckets were first seen during sampling.
func (e *BucketExtractor) Extract(img image.Image, count int) (*Palette, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: color count must be at least 1, got %d", ErrInvalidRequest, count)
	}

	pixels, err := samplePixels(img, e.maxSamples, e.alphaThreshold)
	if err != nil {
		return nil, err
	}

	buckets := e.rank(pixels)
	if count > len(buckets) {
		count = len(buckets)
	}

	colors := make([]color.Color, count)
	weights := make([]float64, count)
	total := float64(len(pixels))
	for i, b := range buckets[:count] {
		colors[i] = b.average()
		weights[i] = float64(b.count) / total
	}

	return NewPaletteWithWeights(colors, weights), nil
}

// rank groups pixels into buckets and returns them by descending count.
func (e *BucketExtractor) rank(pixels []color.NRGBA) []bucket {
	index := make(map[int]int)
	buckets := make([]bucket, 0, 64)

	for _, px := range pixels {
		key := e.key(px)
		i, ok := index[key]
		if !ok {
			i = len(buckets)
			index[key] = i
			buckets = append(buckets, bucket{})
		}
		b := &buckets[i]
		b.count++
		b.r += uint64(px.R)
		b.g += uint64(px.G)
		b.b += uint64(px.B)
	}

	sort.SliceStable(buckets, func(i, j int) bool {
		return buckets[i].count > buckets[j].count
	})
	return buckets
}

func (e *BucketExtractor) key(px color.NRGBA) int {
	q := func(c uint8) int { return int(c) * e.levels / 256 }
	return (q(px.R)*e.levels+q(px.G))*e.levels + q(px.B)
}
