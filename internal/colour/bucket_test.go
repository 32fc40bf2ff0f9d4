package colour

import (
	"errors"
	"image"
	"image/color"
	"slices"
	"testing"
)

// solidImage returns a w x h image filled with c.
func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// splitImage returns an image whose left half is left and right half is right.
func splitImage(w, h int, left, right color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			if x < w/2 {
				img.SetNRGBA(x, y, left)
			} else {
				img.SetNRGBA(x, y, right)
			}
		}
	}
	return img
}

// stripesImage paints vertical stripes, one column range per colour,
// with widths given in the same order.
func stripesImage(h int, colors []color.NRGBA, widths []int) *image.NRGBA {
	w := 0
	for _, cw := range widths {
		w += cw
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	x := 0
	for i, c := range colors {
		for dx := range widths[i] {
			for y := range h {
				img.SetNRGBA(x+dx, y, c)
			}
		}
		x += widths[i]
	}
	return img
}

var (
	red   = color.NRGBA{R: 255, A: 255}
	green = color.NRGBA{G: 255, A: 255}
	blue  = color.NRGBA{B: 255, A: 255}
	black = color.NRGBA{A: 255}
	white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

func TestBucketExtractSolidRed(t *testing.T) {
	e := NewBucketExtractor(ExtractorOptions{})

	palette, err := e.Extract(solidImage(10, 10, red), 6)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	got := palette.ToHex()
	if !slices.Equal(got, []string{"#ff0000"}) {
		t.Errorf("Extract() = %v, want [#ff0000]", got)
	}
	if palette.Weight(0) != 1 {
		t.Errorf("Weight(0) = %v, want 1", palette.Weight(0))
	}
}

func TestBucketExtractHalfBlackHalfWhite(t *testing.T) {
	e := NewBucketExtractor(ExtractorOptions{})
	img := splitImage(10, 10, black, white)

	first, err := e.Extract(img, 6)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	want := []string{"#000000", "#ffffff"}
	if got := first.ToHex(); !slices.Equal(got, want) {
		t.Fatalf("Extract() = %v, want %v", got, want)
	}

	for range 5 {
		again, err := e.Extract(img, 6)
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if !slices.Equal(again.ToHex(), want) {
			t.Errorf("repeated Extract() = %v, want %v", again.ToHex(), want)
		}
	}
}

func TestBucketExtractInvalidCount(t *testing.T) {
	e := NewBucketExtractor(ExtractorOptions{})
	img := solidImage(4, 4, red)

	for _, k := range []int{0, -1, -100} {
		_, err := e.Extract(img, k)
		if !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("Extract(k=%d) error = %v, want ErrInvalidRequest", k, err)
		}
	}
}

func TestBucketExtractInvalidImage(t *testing.T) {
	e := NewBucketExtractor(ExtractorOptions{})

	tests := []struct {
		name string
		img  image.Image
	}{
		{name: "nil image", img: nil},
		{name: "zero width", img: image.NewNRGBA(image.Rect(0, 0, 0, 10))},
		{name: "zero area", img: image.NewNRGBA(image.Rect(5, 5, 5, 5))},
		{name: "fully transparent", img: solidImage(8, 8, color.NRGBA{R: 255, A: 0})},
		{name: "below alpha threshold", img: solidImage(8, 8, color.NRGBA{G: 255, A: 100})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Extract(tt.img, 6)
			if !errors.Is(err, ErrInvalidImage) {
				t.Errorf("Extract() error = %v, want ErrInvalidImage", err)
			}
		})
	}
}

func TestBucketExtractSkipsTransparentPixels(t *testing.T) {
	// Transparent red dominates by area but must not appear.
	img := stripesImage(4,
		[]color.NRGBA{{R: 255, A: 0}, blue},
		[]int{30, 2},
	)

	palette, err := NewBucketExtractor(ExtractorOptions{}).Extract(img, 6)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got := palette.ToHex(); !slices.Equal(got, []string{"#0000ff"}) {
		t.Errorf("Extract() = %v, want [#0000ff]", got)
	}
}

func TestBucketExtractZeroThresholdKeepsTransparent(t *testing.T) {
	zero := 0
	img := solidImage(4, 4, color.NRGBA{R: 255, A: 0})

	palette, err := NewBucketExtractor(ExtractorOptions{AlphaThreshold: &zero}).Extract(img, 1)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if palette.Len() != 1 {
		t.Errorf("Len() = %d, want 1", palette.Len())
	}
}

func TestBucketExtractOrdersByFrequency(t *testing.T) {
	img := stripesImage(3,
		[]color.NRGBA{green, red, blue},
		[]int{2, 5, 3},
	)

	palette, err := NewBucketExtractor(ExtractorOptions{}).Extract(img, 6)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	want := []string{"#ff0000", "#0000ff", "#00ff00"}
	if got := palette.ToHex(); !slices.Equal(got, want) {
		t.Errorf("Extract() = %v, want %v", got, want)
	}

	wantWeights := []float64{0.5, 0.3, 0.2}
	for i, w := range wantWeights {
		if diff := palette.Weight(i) - w; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("Weight(%d) = %v, want %v", i, palette.Weight(i), w)
		}
	}
}

func TestBucketExtractTiesKeepFirstSeen(t *testing.T) {
	img := stripesImage(2,
		[]color.NRGBA{blue, green, red},
		[]int{3, 3, 3},
	)

	palette, err := NewBucketExtractor(ExtractorOptions{}).Extract(img, 3)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	want := []string{"#0000ff", "#00ff00", "#ff0000"}
	if got := palette.ToHex(); !slices.Equal(got, want) {
		t.Errorf("Extract() = %v, want %v", got, want)
	}
}

func TestBucketExtractAveragesBucket(t *testing.T) {
	// Both shades fall into the same 32-wide bucket on every channel.
	img := stripesImage(1,
		[]color.NRGBA{{R: 200, G: 10, B: 100, A: 255}, {R: 210, G: 20, B: 110, A: 255}},
		[]int{1, 1},
	)

	palette, err := NewBucketExtractor(ExtractorOptions{}).Extract(img, 6)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got := palette.ToHex(); !slices.Equal(got, []string{"#cd0f69"}) {
		t.Errorf("Extract() = %v, want [#cd0f69]", got)
	}
}

func TestBucketExtractQuantizationLevels(t *testing.T) {
	img := stripesImage(1,
		[]color.NRGBA{{R: 10, A: 255}, {R: 40, A: 255}},
		[]int{1, 1},
	)

	tests := []struct {
		name   string
		levels int
		want   int
	}{
		{name: "coarse merges", levels: 2, want: 1},
		{name: "default separates", levels: 8, want: 2},
		{name: "full resolution", levels: 256, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewBucketExtractor(ExtractorOptions{QuantizationLevels: tt.levels})
			palette, err := e.Extract(img, 6)
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if palette.Len() != tt.want {
				t.Errorf("Len() = %d, want %d", palette.Len(), tt.want)
			}
		})
	}
}

func TestBucketExtractPrefixMonotonic(t *testing.T) {
	img := stripesImage(4,
		[]color.NRGBA{red, green, blue, black, white},
		[]int{9, 7, 5, 3, 1},
	)
	e := NewBucketExtractor(ExtractorOptions{})

	full, err := e.Extract(img, 10)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if full.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", full.Len())
	}

	for k := 1; k <= 6; k++ {
		p, err := e.Extract(img, k)
		if err != nil {
			t.Fatalf("Extract(k=%d) error = %v", k, err)
		}
		want := full.ToHex()[:min(k, full.Len())]
		if got := p.ToHex(); !slices.Equal(got, want) {
			t.Errorf("Extract(k=%d) = %v, want prefix %v", k, got, want)
		}
	}
}

func TestBucketExtractNoDuplicates(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for y := range 64 {
		for x := range 64 {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 4), G: uint8(y * 4), B: uint8((x + y) * 2), A: 255})
		}
	}

	palette, err := NewBucketExtractor(ExtractorOptions{}).Extract(img, 200)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	seen := make(map[string]bool)
	for _, hex := range palette.ToHex() {
		if seen[hex] {
			t.Errorf("duplicate swatch %s", hex)
		}
		seen[hex] = true
	}
}

func TestBucketExtractRespectsSampleBudget(t *testing.T) {
	img := solidImage(500, 300, green)
	e := NewBucketExtractor(ExtractorOptions{MaxSamples: 1000})

	palette, err := e.Extract(img, 1)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got := palette.ToHex(); !slices.Equal(got, []string{"#00ff00"}) {
		t.Errorf("Extract() = %v, want [#00ff00]", got)
	}
}

func TestBucketExtractNonZeroOrigin(t *testing.T) {
	base := splitImage(20, 10, black, white)
	sub := base.SubImage(image.Rect(10, 0, 20, 10))

	palette, err := NewBucketExtractor(ExtractorOptions{}).Extract(sub, 6)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got := palette.ToHex(); !slices.Equal(got, []string{"#ffffff"}) {
		t.Errorf("Extract() = %v, want [#ffffff]", got)
	}
}

func TestSampleStride(t *testing.T) {
	tests := []struct {
		name       string
		w, h, max  int
		wantStride int
	}{
		{name: "fits budget", w: 10, h: 10, max: 5000, wantStride: 1},
		{name: "exact budget", w: 50, h: 100, max: 5000, wantStride: 1},
		{name: "large square", w: 1000, h: 1000, max: 5000, wantStride: 15},
		{name: "single row", w: 20000, h: 1, max: 5000, wantStride: 4},
		{name: "single sample", w: 7, h: 7, max: 1, wantStride: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sampleStride(tt.w, tt.h, tt.max)
			if got != tt.wantStride {
				t.Errorf("sampleStride() = %d, want %d", got, tt.wantStride)
			}
			if n := ceilDiv(tt.w, got) * ceilDiv(tt.h, got); n > tt.max {
				t.Errorf("stride %d reads %d samples, budget %d", got, n, tt.max)
			}
		})
	}
}
