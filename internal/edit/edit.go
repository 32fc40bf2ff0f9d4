// Package edit forwards image edit requests to a remote inference service and
// returns the edited image.
package edit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Mode selects the kind of edit.
type Mode string

const (
	// ModeRemix restyles the image according to a text prompt.
	ModeRemix Mode = "remix"

	// ModeBackground removes the image background.
	ModeBackground Mode = "background"
)

const (
	// DefaultGuidance is the guidance scale used when a remix request omits it.
	DefaultGuidance = 7.5

	// MaxGuidance is the largest accepted guidance scale.
	MaxGuidance = 20.0

	// MaxPromptLength bounds remix prompts.
	MaxPromptLength = 1000
)

var (
	// ErrInvalidRequest indicates a malformed edit request.
	ErrInvalidRequest = errors.New("invalid edit request")

	// ErrMissingCredential indicates no credential was available for the remote service.
	ErrMissingCredential = errors.New("missing inference credential")

	// ErrUndecodableResult indicates the remote service returned something that is not an image.
	ErrUndecodableResult = errors.New("remote service returned an undecodable image")
)

// ValidModes returns all supported edit modes.
func ValidModes() []Mode {
	return []Mode{ModeRemix, ModeBackground}
}

// Request is a single edit submission.
type Request struct {
	Image      []byte   `validate:"required,min=1"`
	Mode       Mode     `validate:"required,oneof=remix background"`
	Prompt     string   `validate:"required_if=Mode remix,max=1000"`
	Guidance   *float64 `validate:"omitempty,gte=0,lte=20"`
	Credential string   `validate:"-"`
}

// GuidanceOrDefault returns the requested guidance scale, or DefaultGuidance.
func (r Request) GuidanceOrDefault() float64 {
	if r.Guidance == nil {
		return DefaultGuidance
	}
	return *r.Guidance
}

// Result is the outcome of a submission.
type Result struct {
	Image      []byte
	MIMEType   string
	Mode       Mode
	Submission uint64

	// Stale is set when a newer submission began before this one finished.
	Stale bool

	// Cached is set when the image came from the local result cache.
	Cached bool
}

// Backend performs one edit against a remote service.
type Backend interface {
	// Name identifies the backend in logs.
	Name() string

	// Process returns the edited image bytes.
	Process(ctx context.Context, req Request) ([]byte, error)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate normalises and checks the request.
func (r *Request) Validate() error {
	r.Mode = Mode(strings.ToLower(strings.TrimSpace(string(r.Mode))))
	r.Prompt = strings.TrimSpace(r.Prompt)

	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("%w: %s", ErrInvalidRequest, describe(verrs))
		}
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

func describe(verrs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required", "min":
			if field == "image" {
				msgs = append(msgs, "image is required")
			} else {
				msgs = append(msgs, field+" is required")
			}
		case "required_if":
			msgs = append(msgs, field+" is required for remix")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("mode must be one of %v, got %q", ValidModes(), fe.Value()))
		case "gte", "lte":
			msgs = append(msgs, fmt.Sprintf("guidance must be between 0 and %g", MaxGuidance))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %d characters", field, MaxPromptLength))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
