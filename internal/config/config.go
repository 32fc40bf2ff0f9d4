// Package config assembles runtime configuration from defaults and SWATCH_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/jmylchreest/swatch/internal/colour"
	"github.com/jmylchreest/swatch/internal/edit"
	"github.com/jmylchreest/swatch/internal/image"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "SWATCH_"

// Backend names.
const (
	BackendInference = "inference"
	BackendGenAI     = "genai"
)

// Config holds all runtime settings.
type Config struct {
	Listen    string
	Backend   string
	Timeout   time.Duration
	MaxUpload int64

	InferenceURL    string
	RemixModel      string
	BackgroundModel string
	GenAIModel      string

	// StateDB is the credential database path. Empty selects the default location.
	StateDB string

	// CacheDir enables the edit result cache when set.
	CacheDir string

	PaletteCount   int
	AlphaThreshold int
	QuantLevels    int
	MaxSamples     int
	WorkingSize    int

	LogLevel string
	LogJSON  bool

	// Credential seeds the credential store for this process only.
	Credential string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Listen:          "127.0.0.1:8080",
		Backend:         BackendInference,
		Timeout:         edit.DefaultTimeout,
		MaxUpload:       20 << 20,
		InferenceURL:    edit.DefaultInferenceURL,
		RemixModel:      edit.DefaultRemixModel,
		BackgroundModel: edit.DefaultBackgroundModel,
		GenAIModel:      edit.DefaultGenAIModel,
		PaletteCount:    colour.DefaultCount,
		AlphaThreshold:  colour.DefaultAlphaThreshold,
		QuantLevels:     colour.DefaultQuantizationLevels,
		MaxSamples:      colour.DefaultMaxSamples,
		WorkingSize:     image.DefaultWorkingSize,
		LogLevel:        "info",
	}
}

// ExtractorOptions returns the palette options described by c.
func (c Config) ExtractorOptions() colour.ExtractorOptions {
	alpha := c.AlphaThreshold
	return colour.ExtractorOptions{
		AlphaThreshold:     &alpha,
		QuantizationLevels: c.QuantLevels,
		MaxSamples:         c.MaxSamples,
	}
}

// Validate rejects out-of-range values.
func (c Config) Validate() error {
	var errs []error

	if c.Listen == "" {
		errs = append(errs, errors.New("listen address must not be empty"))
	}
	if c.Backend != BackendInference && c.Backend != BackendGenAI {
		errs = append(errs, fmt.Errorf("backend must be %q or %q, got %q", BackendInference, BackendGenAI, c.Backend))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	if c.MaxUpload < 1 {
		errs = append(errs, fmt.Errorf("max upload must be positive, got %d", c.MaxUpload))
	}
	if c.PaletteCount < 1 {
		errs = append(errs, fmt.Errorf("palette count must be at least 1, got %d", c.PaletteCount))
	}
	if c.WorkingSize < 1 {
		errs = append(errs, fmt.Errorf("working size must be at least 1, got %d", c.WorkingSize))
	}
	if err := c.ExtractorOptions().Validate(); err != nil {
		errs = append(errs, err)
	}
	if hclog.LevelFromString(c.LogLevel) == hclog.NoLevel {
		errs = append(errs, fmt.Errorf("unknown log level %q", c.LogLevel))
	}

	return errors.Join(errs...)
}

// Builder provides a fluent interface for constructing a Config.
type Builder struct {
	config Config
	useEnv bool
	lookup func(string) (string, bool)
}

// NewBuilder creates a new Config builder with default settings.
func NewBuilder() *Builder {
	return &Builder{
		config: Default(),
		lookup: os.LookupEnv,
	}
}

// WithConfig replaces the base configuration.
func (b *Builder) WithConfig(config Config) *Builder {
	b.config = config
	return b
}

// WithEnvConfig loads configuration from SWATCH_* environment variables.
func (b *Builder) WithEnvConfig() *Builder {
	b.useEnv = true
	return b
}

// WithLookup replaces the environment lookup (useful for testing).
func (b *Builder) WithLookup(lookup func(string) (string, bool)) *Builder {
	b.lookup = lookup
	return b
}

// Build constructs and validates the Config.
func (b *Builder) Build() (Config, error) {
	config := b.config

	if b.useEnv {
		env := envReader{lookup: b.lookup}
		env.str("LISTEN", &config.Listen)
		env.str("BACKEND", &config.Backend)
		env.duration("TIMEOUT", &config.Timeout)
		env.int64("MAX_UPLOAD", &config.MaxUpload)
		env.str("INFERENCE_URL", &config.InferenceURL)
		env.str("REMIX_MODEL", &config.RemixModel)
		env.str("BACKGROUND_MODEL", &config.BackgroundModel)
		env.str("GENAI_MODEL", &config.GenAIModel)
		env.str("STATE_DB", &config.StateDB)
		env.str("CACHE_DIR", &config.CacheDir)
		env.int("PALETTE_COUNT", &config.PaletteCount)
		env.int("ALPHA_THRESHOLD", &config.AlphaThreshold)
		env.int("QUANT_LEVELS", &config.QuantLevels)
		env.int("MAX_SAMPLES", &config.MaxSamples)
		env.int("WORKING_SIZE", &config.WorkingSize)
		env.str("LOG_LEVEL", &config.LogLevel)
		env.bool("LOG_JSON", &config.LogJSON)
		env.str("CREDENTIAL", &config.Credential)

		if len(env.errs) > 0 {
			return Config{}, errors.Join(env.errs...)
		}
	}

	config.Backend = strings.ToLower(config.Backend)
	if err := config.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) get(name string) (string, bool) {
	v, ok := e.lookup(EnvPrefix + name)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e *envReader) str(name string, dst *string) {
	if v, ok := e.get(name); ok {
		*dst = v
	}
}

func (e *envReader) int(name string, dst *int) {
	if v, ok := e.get(name); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return
		}
		*dst = n
	}
}

func (e *envReader) int64(name string, dst *int64) {
	if v, ok := e.get(name); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return
		}
		*dst = n
	}
}

func (e *envReader) bool(name string, dst *bool) {
	if v, ok := e.get(name); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return
		}
		*dst = b
	}
}

func (e *envReader) duration(name string, dst *time.Duration) {
	if v, ok := e.get(name); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return
		}
		*dst = d
	}
}
