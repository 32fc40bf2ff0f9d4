package edit

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	httputil "github.com/jmylchreest/swatch/internal/util/http"
)

const (
	// DefaultInferenceURL is the base URL of the hosted inference API.
	DefaultInferenceURL = "https://api-inference.huggingface.co/models"

	// DefaultRemixModel is the instruction-following image-to-image model.
	DefaultRemixModel = "timbrooks/instruct-pix2pix"

	// DefaultBackgroundModel is the background segmentation model.
	DefaultBackgroundModel = "briaai/RMBG-1.4"

	// DefaultTimeout bounds a single inference call.
	DefaultTimeout = 120 * time.Second
)

// InferenceConfig configures an InferenceBackend.
type InferenceConfig struct {
	BaseURL         string
	RemixModel      string
	BackgroundModel string
	Timeout         time.Duration
	Client          *http.Client
	Logger          hclog.Logger
}

// InferenceBackend talks to a Hugging Face style inference API:
// POST <base>/<model> with a bearer credential.
type InferenceBackend struct {
	baseURL         string
	remixModel      string
	backgroundModel string
	fetch           httputil.FetchOptions
	logger          hclog.Logger
}

// NewInferenceBackend creates an InferenceBackend. Empty fields select defaults.
func NewInferenceBackend(cfg InferenceConfig) *InferenceBackend {
	b := &InferenceBackend{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		remixModel:      cfg.RemixModel,
		backgroundModel: cfg.BackgroundModel,
		fetch: httputil.FetchOptions{
			Timeout: cfg.Timeout,
			Client:  cfg.Client,
		},
		logger: cfg.Logger,
	}
	if b.baseURL == "" {
		b.baseURL = DefaultInferenceURL
	}
	if b.remixModel == "" {
		b.remixModel = DefaultRemixModel
	}
	if b.backgroundModel == "" {
		b.backgroundModel = DefaultBackgroundModel
	}
	if b.fetch.Timeout == 0 {
		b.fetch.Timeout = DefaultTimeout
	}
	if b.logger == nil {
		b.logger = hclog.NewNullLogger()
	}
	return b
}

// Name implements Backend.
func (b *InferenceBackend) Name() string {
	return "inference"
}

type remixPayload struct {
	Inputs     string          `json:"inputs"`
	Parameters remixParameters `json:"parameters"`
}

type remixParameters struct {
	Prompt        string  `json:"prompt"`
	GuidanceScale float64 `json:"guidance_scale"`
}

// Process implements Backend.
func (b *InferenceBackend) Process(ctx context.Context, req Request) ([]byte, error) {
	var (
		model       string
		body        []byte
		contentType string
	)

	switch req.Mode {
	case ModeRemix:
		model = b.remixModel
		payload, err := json.Marshal(remixPayload{
			Inputs: base64.StdEncoding.EncodeToString(req.Image),
			Parameters: remixParameters{
				Prompt:        req.Prompt,
				GuidanceScale: req.GuidanceOrDefault(),
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to encode remix request: %w", err)
		}
		body = payload
		contentType = "application/json"
	case ModeBackground:
		model = b.backgroundModel
		body = req.Image
		contentType = http.DetectContentType(req.Image)
	default:
		return nil, fmt.Errorf("%w: unsupported mode %q", ErrInvalidRequest, req.Mode)
	}

	opts := b.fetch
	opts.Headers = map[string]string{
		"Authorization": "Bearer " + req.Credential,
		"Content-Type":  contentType,
		"Accept":        "image/png, image/*, application/json",
	}

	url := b.baseURL + "/" + model
	b.logger.Debug("calling inference service", "url", url, "mode", req.Mode, "bytes", len(body))

	resp, err := httputil.Do(ctx, http.MethodPost, url, body, opts)
	if err != nil {
		return nil, fmt.Errorf("inference request failed: %w", err)
	}
	if !resp.OK() {
		rerr := newRemoteError(resp.StatusCode, resp.Body)
		b.logger.Warn("inference service rejected request", "status", resp.StatusCode, "message", rerr.Message)
		return nil, rerr
	}

	if req.Mode == ModeBackground && isJSON(resp.Header.Get("Content-Type")) {
		masks, err := parseMasks(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUndecodableResult, err)
		}
		b.logger.Debug("applying segmentation masks", "count", len(masks))
		return cutOut(req.Image, masks)
	}

	return resp.Body, nil
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && (mt == "application/json" || strings.HasSuffix(mt, "+json"))
}
