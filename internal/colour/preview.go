package colour

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/disintegration/imaging"
)

// ANSI escape codes for terminal colours.
const (
	ansiReset    = "\033[0m"
	ansiFgPrefix = "\033[38;2;"
	ansiBgPrefix = "\033[48;2;"
	ansiSuffix   = "m"
	defaultWidth = 8
)

// DisableColourOutput turns terminal previews into plain hex codes.
var DisableColourOutput = false

// ColourPreview returns a solid ANSI background block for a colour.
func ColourPreview(c RGB, width int) string {
	if width <= 0 {
		width = defaultWidth
	}
	if DisableColourOutput {
		return strings.Repeat(" ", width)
	}
	bg := fmt.Sprintf("%s%d;%d;%d%s", ansiBgPrefix, c.R, c.G, c.B, ansiSuffix)
	return bg + strings.Repeat(" ", width) + ansiReset
}

// ColourPreviewWithText centres text on the swatch in black or white,
// whichever contrasts more.
func ColourPreviewWithText(c RGB, text string, width int) string {
	if width <= 0 {
		width = defaultWidth
	}
	if len(text) > width {
		text = text[:width]
	}
	pad := (width - len(text)) / 2
	text = strings.Repeat(" ", pad) + text + strings.Repeat(" ", width-len(text)-pad)
	if DisableColourOutput {
		return text
	}

	fg := RGB{R: 255, G: 255, B: 255}
	if Luminance(c) > 0.179 {
		fg = RGB{}
	}
	bgCode := fmt.Sprintf("%s%d;%d;%d%s", ansiBgPrefix, c.R, c.G, c.B, ansiSuffix)
	fgCode := fmt.Sprintf("%s%d;%d;%d%s", ansiFgPrefix, fg.R, fg.G, fg.B, ansiSuffix)
	return bgCode + fgCode + text + ansiReset
}

// FormatColourWithPreview formats a colour with its preview and hex code.
func FormatColourWithPreview(rgb RGB, width int) string {
	return fmt.Sprintf("%s %s", ColourPreview(rgb, width), rgb.Hex())
}

// RenderStrip draws the palette as a horizontal strip. Swatch widths follow
// the palette weights; an unweighted palette is split evenly.
func RenderStrip(p *Palette, width, height int) (*image.NRGBA, error) {
	if p == nil || p.Len() == 0 {
		return nil, fmt.Errorf("%w: empty palette", ErrInvalidRequest)
	}
	if width < p.Len() || height < 1 {
		return nil, fmt.Errorf("%w: strip %dx%d too small for %d swatches", ErrInvalidRequest, width, height, p.Len())
	}

	total := 0.0
	for i := range p.Len() {
		total += p.Weight(i)
	}

	strip := imaging.New(width, height, color.Transparent)
	x := 0
	for i, c := range p.All() {
		w := width / p.Len()
		if total > 0 {
			w = max(1, int(float64(width)*p.Weight(i)/total+0.5))
		}
		// Leave at least one pixel for every swatch still to come.
		remaining := p.Len() - 1 - i
		if i == p.Len()-1 || x+w > width-remaining {
			w = width - x - remaining
		}
		swatch := imaging.New(w, height, ToRGB(c))
		strip = imaging.Paste(strip, swatch, image.Pt(x, 0))
		x += w
	}
	return strip, nil
}
