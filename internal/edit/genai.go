package edit

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-hclog"
	"google.golang.org/genai"
)

const (
	// DefaultGenAIModel is the Gemini model used for image edits.
	DefaultGenAIModel = "gemini-2.5-flash-image"

	backgroundInstruction = "Remove the background from this image. Keep the subject unchanged " +
		"and return the result as a PNG with a transparent background."
)

// GenAIConfig configures a GenAIBackend.
type GenAIConfig struct {
	Model string

	// BaseURL overrides the Gemini API endpoint.
	BaseURL string

	Client *http.Client
	Logger hclog.Logger
}

// GenAIBackend edits images with Gemini through the Google Gen AI SDK.
// The guidance scale has no Gemini equivalent and is ignored.
type GenAIBackend struct {
	model   string
	baseURL string
	client  *http.Client
	logger  hclog.Logger
}

// NewGenAIBackend creates a GenAIBackend.
func NewGenAIBackend(cfg GenAIConfig) *GenAIBackend {
	b := &GenAIBackend{
		model:   cfg.Model,
		baseURL: cfg.BaseURL,
		client:  cfg.Client,
		logger:  cfg.Logger,
	}
	if b.model == "" {
		b.model = DefaultGenAIModel
	}
	if b.logger == nil {
		b.logger = hclog.NewNullLogger()
	}
	return b
}

// Name implements Backend.
func (b *GenAIBackend) Name() string {
	return "genai"
}

// clientSetup creates a Gemini API client for one credential.
func (b *GenAIBackend) clientSetup(ctx context.Context, credential string) (*genai.Client, error) {
	clientConfig := &genai.ClientConfig{
		Backend:    genai.BackendGeminiAPI,
		APIKey:     credential,
		HTTPClient: b.client,
	}
	if b.baseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: b.baseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gen AI client: %w", err)
	}
	return client, nil
}

// Process implements Backend.
func (b *GenAIBackend) Process(ctx context.Context, req Request) ([]byte, error) {
	var instruction string
	switch req.Mode {
	case ModeRemix:
		instruction = req.Prompt
	case ModeBackground:
		instruction = backgroundInstruction
	default:
		return nil, fmt.Errorf("%w: unsupported mode %q", ErrInvalidRequest, req.Mode)
	}

	client, err := b.clientSetup(ctx, req.Credential)
	if err != nil {
		return nil, err
	}

	parts := []*genai.Part{
		genai.NewPartFromBytes(req.Image, http.DetectContentType(req.Image)),
		genai.NewPartFromText(instruction),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	genConfig := &genai.GenerateContentConfig{
		ResponseModalities: []string{"Text", "Image"},
	}

	b.logger.Debug("calling GenerateContent", "model", b.model, "mode", req.Mode)

	response, err := client.Models.GenerateContent(ctx, b.model, contents, genConfig)
	if err != nil {
		return nil, genAIError(err)
	}

	if len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return nil, fmt.Errorf("%w: no candidates in response", ErrUndecodableResult)
	}

	for _, part := range response.Candidates[0].Content.Parts {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return part.InlineData.Data, nil
		}
	}

	return nil, fmt.Errorf("%w: no inline image data found in response", ErrUndecodableResult)
}

// genAIError maps SDK API errors onto RemoteError.
func genAIError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return remoteFromAPI(apiErr)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return remoteFromAPI(*apiErrPtr)
	}
	return fmt.Errorf("image edit failed: %w", err)
}

func remoteFromAPI(apiErr genai.APIError) *RemoteError {
	if apiErr.Message != "" {
		return &RemoteError{StatusCode: apiErr.Code, Message: apiErr.Message}
	}
	return &RemoteError{StatusCode: apiErr.Code, Message: statusMessage(apiErr.Code, nil)}
}
