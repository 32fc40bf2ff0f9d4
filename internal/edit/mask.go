package edit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"

	"github.com/anthonynsimon/bild/transform"
	"github.com/disintegration/imaging"

	imgutil "github.com/jmylchreest/swatch/internal/image"
	"github.com/jmylchreest/swatch/internal/security"
)

// segment is one entry of an image-segmentation response.
type segment struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
	Mask  string  `json:"mask"`
}

func parseMasks(body []byte) ([]segment, error) {
	var segments []segment
	if err := json.Unmarshal(body, &segments); err != nil {
		return nil, fmt.Errorf("unexpected segmentation response: %w", err)
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("segmentation response contained no masks")
	}
	return segments, nil
}

// foreground picks the masks that describe the subject. Segments labelled
// as background are skipped unless nothing else is present.
func foreground(segments []segment) []segment {
	var keep []segment
	for _, s := range segments {
		if !strings.EqualFold(strings.TrimSpace(s.Label), "background") {
			keep = append(keep, s)
		}
	}
	if len(keep) == 0 {
		return segments
	}
	return keep
}

// cutOut applies the union of the foreground masks as alpha over the source
// image and returns the result as PNG.
func cutOut(source []byte, segments []segment) ([]byte, error) {
	src, _, err := imgutil.Decode(source)
	if err != nil {
		return nil, err
	}
	out := imaging.Clone(src)
	b := out.Bounds()

	alpha := image.NewGray(b)
	for _, s := range foreground(segments) {
		mask, err := decodeMask(s.Mask, b.Dx(), b.Dy())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUndecodableResult, err)
		}
		mb := mask.Bounds()
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				v := color.GrayModel.Convert(mask.At(mb.Min.X+x, mb.Min.Y+y)).(color.Gray).Y
				if v > alpha.GrayAt(x, y).Y {
					alpha.SetGray(x, y, color.Gray{Y: v})
				}
			}
		}
	}

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			px := out.NRGBAAt(x, y)
			px.A = security.SafeUint8(int(px.A) * int(alpha.GrayAt(x, y).Y) / 255)
			out.SetNRGBA(x, y, px)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("failed to encode cut-out: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeMask decodes a base64 mask image and scales it to w x h.
func decodeMask(encoded string, w, h int) (image.Image, error) {
	_, data, err := imgutil.DecodeDataURL(encoded)
	if err != nil {
		return nil, fmt.Errorf("mask is not base64: %w", err)
	}
	mask, _, err := imgutil.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("mask is not an image: %w", err)
	}
	if mb := mask.Bounds(); mb.Dx() != w || mb.Dy() != h {
		return transform.Resize(mask, w, h, transform.Linear), nil
	}
	return mask, nil
}

