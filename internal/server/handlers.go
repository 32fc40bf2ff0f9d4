package server

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"net/http"
	"strconv"
	"strings"

	"github.com/jmylchreest/swatch/internal/colour"
	"github.com/jmylchreest/swatch/internal/edit"
	imgutil "github.com/jmylchreest/swatch/internal/image"
	"github.com/jmylchreest/swatch/internal/version"
)

const (
	stripWidth  = 600
	stripHeight = 120
)

type paletteResponse struct {
	Submission uint64 `json:"submission"`
	Stale      bool   `json:"stale"`
	colour.PaletteJSON
}

type editResponse struct {
	Submission uint64 `json:"submission"`
	Stale      bool   `json:"stale"`
	Cached     bool   `json:"cached"`
	Mode       string `json:"mode"`
	MIME       string `json:"mime"`
	Image      string `json:"image"`
}

type sessionResponse struct {
	Edit    *editResponse    `json:"edit"`
	Palette *paletteResponse `json:"palette"`
}

type credentialStatus struct {
	Set       bool `json:"set"`
	Persisted bool `json:"persisted"`
}

type credentialUpdate struct {
	Credential string `json:"credential"`
	Persist    bool   `json:"persist"`
}

func newEditResponse(res *edit.Result) *editResponse {
	return &editResponse{
		Submission: res.Submission,
		Stale:      res.Stale,
		Cached:     res.Cached,
		Mode:       string(res.Mode),
		MIME:       res.MIMEType,
		Image:      imgutil.EncodeDataURL(res.MIMEType, res.Image),
	}
}

func (s *Server) handlePalette(w http.ResponseWriter, r *http.Request) {
	body, data, err := s.readInput(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	count := s.cfg.PaletteCount
	if body.Count != nil {
		count = *body.Count
	}
	if v := r.URL.Query().Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w: count must be an integer", errBadRequest))
			return
		}
		count = n
	}
	if count < 1 {
		s.writeError(w, r, fmt.Errorf("%w: count must be at least 1, got %d", colour.ErrInvalidRequest, count))
		return
	}

	algorithm := colour.Algorithm(strings.ToLower(body.Algorithm))
	if q := r.URL.Query().Get("algorithm"); q != "" {
		algorithm = colour.Algorithm(strings.ToLower(q))
	}
	extractor, err := colour.NewExtractor(algorithm, s.cfg.ExtractorOptions())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	img, format, err := imgutil.Decode(data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	id := s.palettes.Begin()
	palette, err := extractor.Extract(imgutil.Normalize(img, s.cfg.WorkingSize), count)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	stale := !s.palettes.Complete(id, palette)

	s.requestLogger(r).Info("extracted palette",
		"submission", id, "format", format, "algorithm", algorithm, "count", palette.Len(), "stale", stale)

	if r.URL.Query().Get("format") == "png" {
		s.writeStrip(w, r, palette, id, stale)
		return
	}

	writeJSON(w, http.StatusOK, paletteResponse{
		Submission:  id,
		Stale:       stale,
		PaletteJSON: palette.JSON(),
	})
}

func (s *Server) writeStrip(w http.ResponseWriter, r *http.Request, palette *colour.Palette, id uint64, stale bool) {
	strip, err := colour.RenderStrip(palette, stripWidth, stripHeight)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, strip); err != nil {
		s.writeError(w, r, fmt.Errorf("failed to encode strip: %w", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Submission", strconv.FormatUint(id, 10))
	w.Header().Set("X-Stale", strconv.FormatBool(stale))
	w.Write(buf.Bytes())
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	body, data, err := s.readInput(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.edits.Submit(r.Context(), edit.Request{
		Image:      data,
		Mode:       edit.Mode(body.Mode),
		Prompt:     body.Prompt,
		Guidance:   body.Guidance,
		Credential: s.credentialFor(r),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newEditResponse(res))
}

// credentialFor prefers a bearer token on the request over the stored credential.
func (s *Server) credentialFor(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		scheme, token, ok := strings.Cut(auth, " ")
		if ok && strings.EqualFold(scheme, "Bearer") && strings.TrimSpace(token) != "" {
			return strings.TrimSpace(token)
		}
	}
	if s.credentials == nil {
		return ""
	}
	return s.credentials.Get()
}

func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	var resp sessionResponse
	if res, ok := s.edits.Latest(); ok {
		resp.Edit = newEditResponse(res)
	}
	if id, palette, ok := s.palettes.Latest(); ok {
		resp.Palette = &paletteResponse{Submission: id, PaletteJSON: palette.JSON()}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) credentialStatus() credentialStatus {
	if s.credentials == nil {
		return credentialStatus{}
	}
	return credentialStatus{
		Set:       s.credentials.Get() != "",
		Persisted: s.credentials.Persisted(),
	}
}

func (s *Server) handleCredentialStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.credentialStatus())
}

func (s *Server) handleCredentialSet(w http.ResponseWriter, r *http.Request) {
	if s.credentials == nil {
		s.writeError(w, r, errors.New("credential store unavailable"))
		return
	}

	var update credentialUpdate
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := jsonDecode(r, &update); err != nil {
		s.writeError(w, r, err)
		return
	}
	update.Credential = strings.TrimSpace(update.Credential)
	if update.Credential == "" {
		s.writeError(w, r, fmt.Errorf("%w: credential must not be empty", errBadRequest))
		return
	}

	if err := s.credentials.Set(r.Context(), update.Credential, update.Persist); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.credentialStatus())
}

func (s *Server) handleCredentialForget(w http.ResponseWriter, r *http.Request) {
	if s.credentials == nil {
		s.writeError(w, r, errors.New("credential store unavailable"))
		return
	}
	if err := s.credentials.Forget(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.credentialStatus())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, version.GetInfo())
}
