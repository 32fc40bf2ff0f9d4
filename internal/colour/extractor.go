package colour

import (
	"fmt"
	"image"
)

// Extractor defines the interface for color extraction algorithms.
type Extractor interface {
	// Extract extracts a color palette from an image.
	// The count parameter is the maximum number of swatches to return.
	Extract(img image.Image, count int) (*Palette, error)
}

// Algorithm represents the color extraction algorithm type.
type Algorithm string

const (
	// AlgorithmBucket ranks coarse colour buckets by frequency.
	AlgorithmBucket Algorithm = "bucket"

	// AlgorithmKMeans uses k-means clustering in L*a*b* space.
	AlgorithmKMeans Algorithm = "kmeans"

	// AlgorithmProminent uses the prominentcolor k-means++ implementation.
	AlgorithmProminent Algorithm = "prominent"
)

const (
	// DefaultCount is the number of swatches requested when none is given.
	DefaultCount = 6

	// DefaultAlphaThreshold excludes pixels that are mostly transparent.
	DefaultAlphaThreshold = 125

	// DefaultQuantizationLevels splits each channel into 8 ranges of 32 values.
	DefaultQuantizationLevels = 8

	// DefaultMaxSamples bounds the number of pixels read per extraction.
	DefaultMaxSamples = 5000

	// defaultSeed keeps k-means output stable between runs.
	defaultSeed int64 = 0x5eed
)

// ValidAlgorithms returns a list of valid algorithm names.
func ValidAlgorithms() []Algorithm {
	return []Algorithm{
		AlgorithmBucket,
		AlgorithmKMeans,
		AlgorithmProminent,
	}
}

// IsValidAlgorithm checks if the given algorithm name is valid.
func IsValidAlgorithm(alg Algorithm) bool {
	for _, valid := range ValidAlgorithms() {
		if alg == valid {
			return true
		}
	}
	return false
}

// ExtractorOptions tunes sampling and quantisation.
// A zero value is valid and selects the defaults.
type ExtractorOptions struct {
	// AlphaThreshold excludes pixels whose alpha is below it (0-255).
	// Nil selects DefaultAlphaThreshold; zero keeps every pixel.
	AlphaThreshold *int

	// QuantizationLevels is the number of ranges per channel (2-256).
	QuantizationLevels int

	// MaxSamples caps the number of pixels read.
	MaxSamples int

	// Seed for k-means initialisation. Nil selects a fixed default seed.
	Seed *int64
}

// resolved returns a copy with defaults filled in.
func (o ExtractorOptions) resolved() ExtractorOptions {
	if o.AlphaThreshold == nil {
		t := DefaultAlphaThreshold
		o.AlphaThreshold = &t
	}
	if o.QuantizationLevels == 0 {
		o.QuantizationLevels = DefaultQuantizationLevels
	}
	if o.MaxSamples == 0 {
		o.MaxSamples = DefaultMaxSamples
	}
	if o.Seed == nil {
		s := defaultSeed
		o.Seed = &s
	}
	return o
}

// Validate reports options outside their recognised ranges.
func (o ExtractorOptions) Validate() error {
	r := o.resolved()
	if *r.AlphaThreshold < 0 || *r.AlphaThreshold > 255 {
		return fmt.Errorf("%w: alpha threshold must be 0-255, got %d", ErrInvalidRequest, *r.AlphaThreshold)
	}
	if r.QuantizationLevels < 2 || r.QuantizationLevels > 256 {
		return fmt.Errorf("%w: quantization levels must be 2-256, got %d", ErrInvalidRequest, r.QuantizationLevels)
	}
	if r.MaxSamples < 1 {
		return fmt.Errorf("%w: max samples must be at least 1, got %d", ErrInvalidRequest, r.MaxSamples)
	}
	return nil
}

// NewExtractor creates a new Extractor based on the specified algorithm.
// Returns an error if the algorithm is not recognized or the options are invalid.
func NewExtractor(alg Algorithm, opts ExtractorOptions) (Extractor, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.resolved()

	switch alg {
	case AlgorithmBucket, "":
		return NewBucketExtractor(opts), nil
	case AlgorithmKMeans:
		return NewKMeansExtractor(opts), nil
	case AlgorithmProminent:
		return NewProminentExtractor(opts), nil
	default:
		return nil, fmt.Errorf("%w: unknown algorithm: %s (valid algorithms: %v)", ErrInvalidRequest, alg, ValidAlgorithms())
	}
}

// ExtractorConfig holds configuration for color extraction.
type ExtractorConfig struct {
	Algorithm  Algorithm
	ColorCount int
	Options    ExtractorOptions
}

// DefaultExtractorConfig returns the default extractor configuration.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		Algorithm:  AlgorithmBucket,
		ColorCount: DefaultCount,
	}
}

// Validate validates the extractor configuration.
func (c ExtractorConfig) Validate() error {
	if !IsValidAlgorithm(c.Algorithm) {
		return fmt.Errorf("%w: invalid algorithm: %s", ErrInvalidRequest, c.Algorithm)
	}
	if c.ColorCount < 1 {
		return fmt.Errorf("%w: color count must be at least 1, got %d", ErrInvalidRequest, c.ColorCount)
	}
	return c.Options.Validate()
}

// Extract validates the configuration and runs the configured algorithm.
func (c ExtractorConfig) Extract(img image.Image) (*Palette, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	extractor, err := NewExtractor(c.Algorithm, c.Options)
	if err != nil {
		return nil, err
	}
	return extractor.Extract(img, c.ColorCount)
}
