// Package cli provides the command-line interface for swatch.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/swatch/internal/config"
	"github.com/jmylchreest/swatch/internal/version"
)

// NewRootCmd builds the full command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "swatch",
		Short: "Extract colour palettes and edit images",
		Long: `Swatch extracts a small representative colour palette from an image and
can forward images to a remote inference service for prompt-driven remixing
or background removal.

Run "swatch serve" to expose the same operations over HTTP.`,
		Version:      version.Short(),
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress non-error output")

	// Set version template
	rootCmd.SetVersionTemplate(version.String() + "\n")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newExtractCmd())
	rootCmd.AddCommand(newEditCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newCredentialCmd())

	return rootCmd
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print detailed version information including build date, commit hash, and Go version.`,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

// loadConfig reads SWATCH_* settings.
func loadConfig() (config.Config, error) {
	return config.NewBuilder().WithEnvConfig().Build()
}

// newLogger builds the root logger. --verbose and --quiet override the
// configured level.
func newLogger(cmd *cobra.Command, cfg config.Config) hclog.Logger {
	level := hclog.LevelFromString(cfg.LogLevel)
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = hclog.Debug
	}
	if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
		level = hclog.Error
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       "swatch",
		Output:     cmd.ErrOrStderr(),
		Level:      level,
		JSONFormat: cfg.LogJSON,
	})
}

// progress prints user-facing progress to stderr unless --quiet is set.
func progress(cmd *cobra.Command) io.Writer {
	if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
		return io.Discard
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); !verbose {
		return io.Discard
	}
	return cmd.ErrOrStderr()
}

// contextOrBackground guards against commands executed without a context.
func contextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
