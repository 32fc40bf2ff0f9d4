package colour

import "errors"

var (
	// ErrInvalidImage indicates the image could not be decoded into pixel data,
	// has zero area, or has no pixel visible above the alpha threshold.
	ErrInvalidImage = errors.New("invalid image")

	// ErrInvalidRequest indicates an out-of-range swatch count or extractor option.
	ErrInvalidRequest = errors.New("invalid request")
)
