package colour

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/EdlinOrg/prominentcolor"
)

// ProminentExtractor delegates clustering to prominentcolor's k-means++.
// Unlike the bucket and kmeans extractors its seeding is not fixed, so
// repeated runs may order near-equal clusters differently.
type ProminentExtractor struct {
	alphaThreshold int
	maxSamples     int
}

// NewProminentExtractor creates a ProminentExtractor. Zero-valued options select defaults.
func NewProminentExtractor(opts ExtractorOptions) *ProminentExtractor {
	opts = opts.resolved()
	return &ProminentExtractor{
		alphaThreshold: *opts.AlphaThreshold,
		maxSamples:     opts.MaxSamples,
	}
}

// Extract returns at most count swatches ordered by cluster size.
func (e *ProminentExtractor) Extract(img image.Image, count int) (*Palette, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: color count must be at least 1, got %d", ErrInvalidRequest, count)
	}
	pixels, err := samplePixels(img, e.maxSamples, e.alphaThreshold)
	if err != nil {
		return nil, err
	}
	if count > len(pixels) {
		count = len(pixels)
	}

	// Cluster only the visible samples: pack them into a square tile so
	// transparent regions never reach prominentcolor.
	tile, side := packPixels(pixels)
	items, err := prominentcolor.KmeansWithAll(count, tile, prominentcolor.ArgumentNoCropping, uint(side), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Cnt > items[j].Cnt
	})

	total := 0
	for _, it := range items {
		total += it.Cnt
	}

	colors := make([]color.Color, 0, len(items))
	weights := make([]float64, 0, len(items))
	seen := make(map[RGB]bool)
	for _, it := range items {
		rgb := RGB{R: uint8(it.Color.R), G: uint8(it.Color.G), B: uint8(it.Color.B)}
		if it.Cnt == 0 || seen[rgb] {
			continue
		}
		seen[rgb] = true
		colors = append(colors, rgb)
		weights = append(weights, float64(it.Cnt)/float64(total))
	}
	if len(colors) == 0 {
		return nil, fmt.Errorf("%w: no prominent colours found", ErrInvalidImage)
	}
	return NewPaletteWithWeights(colors, weights), nil
}

// packPixels lays pixels out row by row in the smallest square that holds
// them, repeating from the start to fill the last row.
func packPixels(pixels []color.NRGBA) (*image.NRGBA, int) {
	side := int(math.Ceil(math.Sqrt(float64(len(pixels)))))
	tile := image.NewNRGBA(image.Rect(0, 0, side, side))
	for i := range side * side {
		px := pixels[i%len(pixels)]
		px.A = 0xff
		tile.SetNRGBA(i%side, i/side, px)
	}
	return tile, side
}
