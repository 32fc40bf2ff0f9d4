package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	imgutil "github.com/jmylchreest/swatch/internal/image"
	"github.com/jmylchreest/swatch/internal/security"
)

// requestBody is the union of the fields accepted by /api/palette and
// /api/edit, in JSON or multipart form.
type requestBody struct {
	Image     string   `json:"image"`
	URL       string   `json:"url"`
	Count     *int     `json:"count"`
	Algorithm string   `json:"algorithm"`
	Mode      string   `json:"mode"`
	Prompt    string   `json:"prompt"`
	Guidance  *float64 `json:"guidance"`
}

// readInput parses the request and resolves the image bytes from an
// uploaded file, a data URL or a remote URL.
func (s *Server) readInput(w http.ResponseWriter, r *http.Request) (requestBody, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUpload)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var (
		body requestBody
		data []byte
		err  error
	)
	switch mediaType {
	case "multipart/form-data":
		body, data, err = readMultipart(r, s.cfg.MaxUpload)
	case "application/json", "":
		err = jsonDecode(r, &body)
	default:
		err = fmt.Errorf("%w: unsupported content type %q", errBadRequest, mediaType)
	}
	if err != nil {
		return requestBody{}, nil, err
	}

	if data == nil {
		data, err = s.resolveImage(r, body)
		if err != nil {
			return requestBody{}, nil, err
		}
	}
	return body, data, nil
}

func jsonDecode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty request body", errBadRequest)
		}
		return fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
	}
	return nil
}

func readMultipart(r *http.Request, maxMemory int64) (requestBody, []byte, error) {
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return requestBody{}, nil, err
		}
		return requestBody{}, nil, fmt.Errorf("%w: invalid multipart form: %v", errBadRequest, err)
	}

	body := requestBody{
		Image:     r.FormValue("image"),
		URL:       r.FormValue("url"),
		Algorithm: r.FormValue("algorithm"),
		Mode:      r.FormValue("mode"),
		Prompt:    r.FormValue("prompt"),
	}
	if v := strings.TrimSpace(r.FormValue("count")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return requestBody{}, nil, fmt.Errorf("%w: count must be an integer", errBadRequest)
		}
		body.Count = &n
	}
	if v := strings.TrimSpace(r.FormValue("guidance")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return requestBody{}, nil, fmt.Errorf("%w: guidance must be a number", errBadRequest)
		}
		body.Guidance = &f
	}

	file, _, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return body, nil, nil
	}
	if err != nil {
		return requestBody{}, nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return requestBody{}, nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return body, data, nil
}

func (s *Server) resolveImage(r *http.Request, body requestBody) ([]byte, error) {
	switch {
	case body.Image != "":
		_, data, err := imgutil.DecodeDataURL(body.Image)
		return data, err
	case body.URL != "":
		if err := security.ValidateHTTPURL(body.URL, s.urlPolicy); err != nil {
			return nil, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		data, err := s.loader.ReadBytes(r.Context(), body.URL)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to fetch image: %v", errBadRequest, err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w: an image is required", errBadRequest)
	}
}
