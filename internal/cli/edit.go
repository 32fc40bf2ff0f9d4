package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/swatch/internal/edit"
	"github.com/jmylchreest/swatch/internal/image"
)

type editOptions struct {
	mode       string
	prompt     string
	guidance   float64
	output     string
	credential string
}

func newEditCmd() *cobra.Command {
	opts := &editOptions{}

	cmd := &cobra.Command{
		Use:   "edit <image>",
		Short: "Remix an image or remove its background",
		Long: `Send an image to the configured inference service.

Modes:
  remix       restyle the image according to --prompt
  background  remove the background, producing a transparent PNG

The credential is taken from --credential, SWATCH_CREDENTIAL or the stored
credential (see "swatch credential set").

Examples:
  swatch edit --mode remix --prompt "as a watercolour" photo.jpg
  swatch edit --mode background -o cutout.png portrait.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdit(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.mode, "mode", "m", string(edit.ModeRemix), "edit mode (remix, background)")
	cmd.Flags().StringVarP(&opts.prompt, "prompt", "p", "", "text prompt for remix mode")
	cmd.Flags().Float64Var(&opts.guidance, "guidance", edit.DefaultGuidance, "guidance scale for remix mode (0-20)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: <image>-<mode>.<ext>)")
	cmd.Flags().StringVar(&opts.credential, "credential", "", "inference credential for this call")

	return cmd
}

func runEdit(cmd *cobra.Command, imagePath string, opts *editOptions) error {
	ctx := contextOrBackground(cmd)
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)
	out := progress(cmd)

	data, err := image.NewSmartLoader(httpOptions(cfg)).ReadBytes(ctx, imagePath)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	credential := opts.credential
	if credential == "" {
		store, err := openCredentials(ctx, cfg, logger)
		if err != nil {
			return err
		}
		credential = store.Get()
		store.Close()
	}

	orchestrator, err := newOrchestrator(cfg, logger)
	if err != nil {
		return err
	}

	req := edit.Request{
		Image:      data,
		Mode:       edit.Mode(opts.mode),
		Prompt:     opts.prompt,
		Credential: credential,
	}
	if cmd.Flags().Changed("guidance") {
		req.Guidance = &opts.guidance
	}

	fmt.Fprintf(out, "Submitting %s edit for %s...\n", opts.mode, imagePath)

	res, err := orchestrator.Submit(ctx, req)
	if err != nil {
		return fmt.Errorf("edit failed: %w", err)
	}

	outPath := opts.output
	if outPath == "" {
		outPath = defaultEditOutput(imagePath, res)
	}
	if err := os.WriteFile(outPath, res.Image, 0o644); err != nil { // #nosec G306 - edited image is not sensitive
		return fmt.Errorf("failed to write output file: %w", err)
	}

	if res.Cached {
		fmt.Fprintf(out, "Served from cache\n")
	}
	fmt.Fprintln(cmd.OutOrStdout(), outPath)
	return nil
}

// defaultEditOutput derives "<base>-<mode>.<ext>" next to the input, or in
// the working directory for URLs.
func defaultEditOutput(imagePath string, res *edit.Result) string {
	ext := image.MIMEExtension(res.MIMEType)

	base := filepath.Base(imagePath)
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == "/" {
		base = "image"
	}

	dir := filepath.Dir(imagePath)
	if strings.Contains(imagePath, "://") {
		dir = "."
	}
	return filepath.Join(dir, fmt.Sprintf("%s-%s%s", base, res.Mode, ext))
}
