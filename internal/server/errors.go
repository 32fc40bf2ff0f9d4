package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jmylchreest/swatch/internal/colour"
	"github.com/jmylchreest/swatch/internal/edit"
)

// errBadRequest marks malformed HTTP input.
var errBadRequest = errors.New("bad request")

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// statusFor maps an error to an HTTP status and a message safe to show.
func statusFor(err error) (int, string) {
	var remote *edit.RemoteError
	var tooLarge *http.MaxBytesError

	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "upload exceeds the size limit"
	case errors.As(err, &remote):
		return http.StatusBadGateway, remote.Message
	case errors.Is(err, edit.ErrUndecodableResult):
		return http.StatusBadGateway, err.Error()
	case errors.Is(err, edit.ErrMissingCredential):
		return http.StatusUnauthorized, "an inference credential is required"
	case errors.Is(err, colour.ErrInvalidImage):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, colour.ErrInvalidRequest),
		errors.Is(err, edit.ErrInvalidRequest),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	logger := s.requestLogger(r)
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		logger.Error("request failed", "error", err)
	} else {
		logger.Debug("request rejected", "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: msg, RequestID: RequestID(r.Context())})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
