package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/swatch/internal/server"
)

func newServeCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the palette and edit API over HTTP",
		Long: `Start the HTTP service.

Routes:
  POST   /api/palette     extract a palette (JSON, or ?format=png for a strip)
  POST   /api/edit        remix an image or remove its background
  GET    /api/session     latest accepted palette and edit
  GET    /api/credential  credential status
  PUT    /api/credential  set the credential ({"credential": "...", "persist": true})
  DELETE /api/credential  forget the credential
  GET    /healthz         liveness
  GET    /version         build information

Configuration is read from SWATCH_* environment variables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}
			logger := newLogger(cmd, cfg)

			ctx, stop := signal.NotifyContext(contextOrBackground(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			credentials, err := openCredentials(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer credentials.Close()

			orchestrator, err := newOrchestrator(cfg, logger)
			if err != nil {
				return err
			}

			srv := server.New(cfg, orchestrator, credentials, server.WithLogger(logger.Named("http")))
			logger.Info("starting", "backend", cfg.Backend, "listen", cfg.Listen)
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "listen address (default from SWATCH_LISTEN)")
	return cmd
}

