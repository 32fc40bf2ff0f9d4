package edit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// RemoteError is a non-2xx response from the inference service, carrying a
// message suitable for showing to a user.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("inference service error (HTTP %d): %s", e.StatusCode, e.Message)
}

// remoteErrorBody covers the error shapes inference services return.
type remoteErrorBody struct {
	Error         json.RawMessage `json:"error"`
	EstimatedTime float64         `json:"estimated_time"`
}

// newRemoteError turns a failed response into a RemoteError.
func newRemoteError(status int, body []byte) *RemoteError {
	var parsed remoteErrorBody
	if json.Unmarshal(body, &parsed) == nil {
		if status == http.StatusServiceUnavailable && parsed.EstimatedTime > 0 {
			return &RemoteError{
				StatusCode: status,
				Message:    fmt.Sprintf("model is loading, try again in about %.0f seconds", parsed.EstimatedTime),
			}
		}
		if msg := errorText(parsed.Error); msg != "" {
			return &RemoteError{StatusCode: status, Message: msg}
		}
	}

	return &RemoteError{StatusCode: status, Message: statusMessage(status, body)}
}

// errorText accepts "error": "msg", "error": ["a", "b"] and
// "error": {"message": "msg"}.
func errorText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}

	var list []string
	if json.Unmarshal(raw, &list) == nil {
		return strings.TrimSpace(strings.Join(list, "; "))
	}

	var obj struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &obj) == nil {
		return strings.TrimSpace(obj.Message)
	}
	return ""
}

func statusMessage(status int, body []byte) string {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return "the credential was rejected by the inference service"
	case http.StatusNotFound:
		return "the requested model was not found"
	case http.StatusRequestEntityTooLarge:
		return "the image is too large for the inference service"
	case http.StatusTooManyRequests:
		return "rate limit reached, wait a moment and try again"
	case http.StatusServiceUnavailable:
		return "the model is currently unavailable, try again shortly"
	}

	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	if text == "" {
		text = http.StatusText(status)
	}
	if text == "" {
		text = "unexpected response"
	}
	return text
}
