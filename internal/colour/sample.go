package colour

import (
	"fmt"
	"image"
	"image/color"
)

// sampleStride returns the smallest stride that keeps a w x h grid walk
// within maxSamples reads.
func sampleStride(width, height, maxSamples int) int {
	step := 1
	for ceilDiv(width, step)*ceilDiv(height, step) > maxSamples {
		step++
	}
	return step
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// checkImage rejects images that cannot yield any pixel data.
func checkImage(img image.Image) error {
	if img == nil {
		return fmt.Errorf("%w: image cannot be nil", ErrInvalidImage)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return fmt.Errorf("%w: image has zero area (%dx%d)", ErrInvalidImage, b.Dx(), b.Dy())
	}
	return nil
}

// samplePixels walks the image on an even grid and returns the
// non-premultiplied colour of every sampled pixel at or above alphaThreshold.
func samplePixels(img image.Image, maxSamples, alphaThreshold int) ([]color.NRGBA, error) {
	if err := checkImage(img); err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	step := sampleStride(bounds.Dx(), bounds.Dy(), maxSamples)

	pixels := make([]color.NRGBA, 0, ceilDiv(bounds.Dx(), step)*ceilDiv(bounds.Dy(), step))
	for y := bounds.Min.Y; y < bounds.Max.Y; y += step {
		for x := bounds.Min.X; x < bounds.Max.X; x += step {
			px := nrgbaAt(img, x, y)
			if int(px.A) < alphaThreshold {
				continue
			}
			pixels = append(pixels, px)
		}
	}

	if len(pixels) == 0 {
		return nil, fmt.Errorf("%w: no visible pixels (alpha threshold %d)", ErrInvalidImage, alphaThreshold)
	}
	return pixels, nil
}

// nrgbaAt reads a pixel without the interface round trip when the
// concrete type allows it.
func nrgbaAt(img image.Image, x, y int) color.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		return n.NRGBAAt(x, y)
	}
	return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
}
