package cli

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/jmylchreest/swatch/internal/config"
	"github.com/jmylchreest/swatch/internal/credential"
	"github.com/jmylchreest/swatch/internal/edit"
	httputil "github.com/jmylchreest/swatch/internal/util/http"
	"github.com/jmylchreest/swatch/internal/util/imagecache"
)

func httpOptions(cfg config.Config) httputil.FetchOptions {
	return httputil.FetchOptions{
		Timeout:  cfg.Timeout,
		MaxBytes: cfg.MaxUpload,
	}
}

// newBackend selects the edit backend named by the configuration.
func newBackend(cfg config.Config, logger hclog.Logger) edit.Backend {
	switch cfg.Backend {
	case config.BackendGenAI:
		return edit.NewGenAIBackend(edit.GenAIConfig{
			Model:  cfg.GenAIModel,
			Logger: logger.Named("genai"),
		})
	default:
		return edit.NewInferenceBackend(edit.InferenceConfig{
			BaseURL:         cfg.InferenceURL,
			RemixModel:      cfg.RemixModel,
			BackgroundModel: cfg.BackgroundModel,
			Timeout:         cfg.Timeout,
			Logger:          logger.Named("inference"),
		})
	}
}

// newOrchestrator builds the edit orchestrator, with the result cache when
// a cache directory is configured.
func newOrchestrator(cfg config.Config, logger hclog.Logger) (*edit.Orchestrator, error) {
	opts := []edit.Option{edit.WithLogger(logger.Named("edit"))}
	if cfg.CacheDir != "" {
		cache, err := imagecache.New(imagecache.CacheOptions{CacheDir: cfg.CacheDir})
		if err != nil {
			return nil, err
		}
		logger.Debug("edit result cache enabled", "dir", cache.Dir())
		opts = append(opts, edit.WithCache(cache))
	}
	return edit.NewOrchestrator(newBackend(cfg, logger), opts...), nil
}

// openCredentials opens the persisted credential store and applies the
// SWATCH_CREDENTIAL seed for this process only.
func openCredentials(ctx context.Context, cfg config.Config, logger hclog.Logger) (*credential.Store, error) {
	path := cfg.StateDB
	if path == "" {
		var err error
		path, err = credential.DefaultStatePath()
		if err != nil {
			return nil, err
		}
	}

	backend, err := credential.OpenSQLite(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	store, err := credential.Open(ctx, backend, logger.Named("credential"))
	if err != nil {
		backend.Close()
		return nil, err
	}

	if cfg.Credential != "" && store.Get() == "" {
		if err := store.Set(ctx, cfg.Credential, false); err != nil {
			store.Close()
			return nil, err
		}
	}
	return store, nil
}
