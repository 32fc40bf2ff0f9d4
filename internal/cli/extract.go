package cli

import (
	"bytes"
	"fmt"
	"image/png"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/swatch/internal/colour"
	"github.com/jmylchreest/swatch/internal/image"
)

const (
	previewWidth  = 600
	previewHeight = 120
)

type extractOptions struct {
	colours        int
	algorithm      string
	format         string
	output         string
	alphaThreshold int
	levels         int
	maxSamples     int
	workingSize    int
	showPreview    bool
	previewPath    string
}

func newExtractCmd() *cobra.Command {
	opts := &extractOptions{}

	cmd := &cobra.Command{
		Use:   "extract <image>",
		Short: "Extract colour palette from an image",
		Long: `Extract a colour palette from an image.

The default bucket algorithm groups visible pixels into coarse colour
buckets, ranks the buckets by how many pixels fell into each and reports the
average colour of the most common ones. It is deterministic: the same image
always yields the same palette.

Supported image formats: JPEG, PNG, GIF, WebP, BMP, TIFF

Examples:
  # Extract 6 colours (default) from an image
  swatch extract photo.jpg

  # Extract 8 colours with terminal previews
  swatch extract --preview --colours 8 photo.png

  # Extract colours as JSON with weights
  swatch extract --format json photo.jpg

  # Write a PNG swatch strip alongside the text output
  swatch extract --strip palette.png photo.jpg

  # Keep semi-transparent pixels and use finer buckets
  swatch extract --alpha-threshold 0 --levels 16 logo.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, args[0], opts)
		},
	}

	cmd.Flags().IntVarP(&opts.colours, "colours", "c", colour.DefaultCount, "number of colours to extract")
	cmd.Flags().StringVarP(&opts.algorithm, "algorithm", "a", string(colour.AlgorithmBucket), "extraction algorithm (bucket, kmeans, prominent)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "hex", "output format (hex, rgb, json)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().IntVar(&opts.alphaThreshold, "alpha-threshold", -1, "skip pixels with alpha below this value (0-255, default from config)")
	cmd.Flags().IntVar(&opts.levels, "levels", 0, "quantization levels per channel (2-256, default from config)")
	cmd.Flags().IntVar(&opts.maxSamples, "max-samples", 0, "maximum number of pixels to sample (default from config)")
	cmd.Flags().IntVar(&opts.workingSize, "working-size", 0, "downscale so the longest side is at most this many pixels (default from config)")
	cmd.Flags().BoolVar(&opts.showPreview, "preview", false, "show colour previews in terminal")
	cmd.Flags().StringVar(&opts.previewPath, "strip", "", "write a PNG swatch strip to this file")

	return cmd
}

// runExtract executes the extract command.
func runExtract(cmd *cobra.Command, imagePath string, opts *extractOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg).Named("extract")
	out := progress(cmd)

	// Validate the image path
	if err := image.ValidateImagePath(imagePath); err != nil {
		return fmt.Errorf("invalid image path: %w", err)
	}

	// Flags override configuration
	options := cfg.ExtractorOptions()
	if opts.alphaThreshold >= 0 {
		options.AlphaThreshold = &opts.alphaThreshold
	}
	if opts.levels > 0 {
		options.QuantizationLevels = opts.levels
	}
	if opts.maxSamples > 0 {
		options.MaxSamples = opts.maxSamples
	}
	workingSize := cfg.WorkingSize
	if opts.workingSize > 0 {
		workingSize = opts.workingSize
	}

	extractConfig := colour.ExtractorConfig{
		Algorithm:  colour.Algorithm(strings.ToLower(opts.algorithm)),
		ColorCount: opts.colours,
		Options:    options,
	}
	if err := extractConfig.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	fmt.Fprintf(out, "Loading image: %s\n", imagePath)

	loader := image.NewSmartLoader(httpOptions(cfg))
	img, err := loader.Load(imagePath)
	if err != nil {
		return fmt.Errorf("failed to load image: %w", err)
	}

	bounds := img.Bounds()
	logger.Debug("image loaded", "width", bounds.Dx(), "height", bounds.Dy())
	fmt.Fprintf(out, "Extracting %d colours using %s algorithm...\n", opts.colours, extractConfig.Algorithm)

	palette, err := extractConfig.Extract(image.Normalize(img, workingSize))
	if err != nil {
		return fmt.Errorf("failed to extract colours: %w", err)
	}

	fmt.Fprintf(out, "Successfully extracted %d colours\n", palette.Len())

	output, err := formatPalette(palette, opts.format, opts.showPreview)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	if opts.previewPath != "" {
		if err := writeStrip(palette, opts.previewPath); err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote swatch strip to %s\n", opts.previewPath)
	}

	// Write output to file or stdout
	if opts.output != "" {
		if err := os.WriteFile(opts.output, []byte(output), 0o644); err != nil { // #nosec G306 - palette output is not sensitive
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Fprintf(out, "Successfully wrote palette to %s\n", opts.output)
		return nil
	}

	fmt.Fprint(cmd.OutOrStdout(), output)
	return nil
}

func writeStrip(palette *colour.Palette, path string) error {
	strip, err := colour.RenderStrip(palette, previewWidth, previewHeight)
	if err != nil {
		return fmt.Errorf("failed to render swatch strip: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, strip); err != nil {
		return fmt.Errorf("failed to encode swatch strip: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil { // #nosec G306 - preview image is not sensitive
		return fmt.Errorf("failed to write swatch strip: %w", err)
	}
	return nil
}

// formatPalette formats the palette according to the specified format.
func formatPalette(palette *colour.Palette, format string, showPreview bool) (string, error) {
	switch format {
	case "hex":
		return formatHex(palette, showPreview), nil
	case "rgb":
		return formatRGB(palette, showPreview), nil
	case "json":
		jsonBytes, err := palette.ToJSON()
		if err != nil {
			return "", fmt.Errorf("failed to convert to JSON: %w", err)
		}
		return string(jsonBytes) + "\n", nil
	default:
		return "", fmt.Errorf("unsupported format: %s (supported: hex, rgb, json)", format)
	}
}

// formatHex formats the palette as hex colour codes.
func formatHex(palette *colour.Palette, showPreview bool) string {
	var sb strings.Builder
	for _, rgb := range palette.ToRGBSlice() {
		if showPreview {
			sb.WriteString(colour.FormatColourWithPreview(rgb, 8))
		} else {
			sb.WriteString(rgb.Hex())
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// formatRGB formats the palette as RGB values.
func formatRGB(palette *colour.Palette, showPreview bool) string {
	var sb strings.Builder
	for _, rgb := range palette.ToRGBSlice() {
		if showPreview {
			sb.WriteString(colour.FormatColourWithPreview(rgb, 8) + "  ")
		}
		sb.WriteString(rgb.String())
		sb.WriteString("\n")
	}
	return sb.String()
}
