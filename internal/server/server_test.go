package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jmylchreest/swatch/internal/config"
	"github.com/jmylchreest/swatch/internal/credential"
	"github.com/jmylchreest/swatch/internal/edit"
	imgutil "github.com/jmylchreest/swatch/internal/image"
	"github.com/jmylchreest/swatch/internal/security"
)

type stubBackend struct {
	data    []byte
	err     error
	lastReq edit.Request
}

func (b *stubBackend) Name() string { return "stub" }

func (b *stubBackend) Process(_ context.Context, req edit.Request) ([]byte, error) {
	b.lastReq = req
	return b.data, b.err
}

func pngBytes(t *testing.T, w, h int, fill func(x, y int) color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, fill(x, y))
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func solidRed(t *testing.T) []byte {
	return pngBytes(t, 10, 10, func(int, int) color.NRGBA { return color.NRGBA{R: 255, A: 255} })
}

func blackWhite(t *testing.T) []byte {
	return pngBytes(t, 10, 10, func(x, _ int) color.NRGBA {
		if x < 5 {
			return color.NRGBA{A: 255}
		}
		return color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	})
}

type fixture struct {
	server  *Server
	backend *stubBackend
	creds   *credential.Store
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.MaxUpload = 1 << 20

	backend := &stubBackend{data: pngBytes(t, 2, 2, func(int, int) color.NRGBA { return color.NRGBA{B: 255, A: 255} })}
	creds, err := credential.Open(context.Background(), credential.NewMemoryBackend(), nil)
	if err != nil {
		t.Fatalf("credential.Open() error = %v", err)
	}
	return &fixture{
		server:  New(cfg, edit.NewOrchestrator(backend), creds, opts...),
		backend: backend,
		creds:   creds,
	}
}

func (f *fixture) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestPaletteJSON(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, jsonRequest(t, http.MethodPost, "/api/palette", map[string]any{
		"image": imgutil.EncodeDataURL("image/png", solidRed(t)),
		"count": 6,
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	resp := decode[paletteResponse](t, rec)
	if resp.Count != 1 || resp.Colors[0].Hex != "#ff0000" {
		t.Errorf("palette = %+v, want single #ff0000", resp.PaletteJSON)
	}
	if resp.Submission != 1 || resp.Stale {
		t.Errorf("submission = %d stale = %v", resp.Submission, resp.Stale)
	}
}

func TestPaletteMultipart(t *testing.T) {
	f := newFixture(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("image", "split.png")
	part.Write(blackWhite(t))
	mw.WriteField("count", "6")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/palette", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := f.do(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	resp := decode[paletteResponse](t, rec)
	if resp.Count != 2 || resp.Colors[0].Hex != "#000000" || resp.Colors[1].Hex != "#ffffff" {
		t.Errorf("palette = %+v, want [#000000 #ffffff]", resp.Colors)
	}
}

func TestPaletteStrip(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, jsonRequest(t, http.MethodPost, "/api/palette?format=png", map[string]any{
		"image": imgutil.EncodeDataURL("image/png", blackWhite(t)),
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	img, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatalf("png.Decode() error = %v", err)
	}
	if b := img.Bounds(); b.Dx() != stripWidth || b.Dy() != stripHeight {
		t.Errorf("strip bounds = %v", b)
	}
}

func TestPaletteErrors(t *testing.T) {
	f := newFixture(t)
	red := imgutil.EncodeDataURL("image/png", solidRed(t))
	transparent := imgutil.EncodeDataURL("image/png", pngBytes(t, 4, 4, func(int, int) color.NRGBA { return color.NRGBA{} }))

	tests := []struct {
		name       string
		path       string
		body       map[string]any
		wantStatus int
	}{
		{name: "zero count", path: "/api/palette", body: map[string]any{"image": red, "count": 0}, wantStatus: http.StatusBadRequest},
		{name: "negative query count", path: "/api/palette?count=-2", body: map[string]any{"image": red}, wantStatus: http.StatusBadRequest},
		{name: "bad algorithm", path: "/api/palette", body: map[string]any{"image": red, "algorithm": "median"}, wantStatus: http.StatusBadRequest},
		{name: "missing image", path: "/api/palette", body: map[string]any{"count": 3}, wantStatus: http.StatusBadRequest},
		{name: "unknown field", path: "/api/palette", body: map[string]any{"image": red, "colours": 3}, wantStatus: http.StatusBadRequest},
		{name: "not an image", path: "/api/palette", body: map[string]any{"image": "data:image/png;base64,aGVsbG8="}, wantStatus: http.StatusUnprocessableEntity},
		{name: "fully transparent", path: "/api/palette", body: map[string]any{"image": transparent}, wantStatus: http.StatusUnprocessableEntity},
		{name: "private url", path: "/api/palette", body: map[string]any{"url": "https://127.0.0.1/a.png"}, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, jsonRequest(t, http.MethodPost, tt.path, tt.body))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body)
			}
			resp := decode[errorResponse](t, rec)
			if resp.Error == "" || resp.RequestID == "" {
				t.Errorf("error body = %+v", resp)
			}
		})
	}
}

func TestPaletteTooLarge(t *testing.T) {
	f := newFixture(t)
	f.server.cfg.MaxUpload = 64

	rec := f.do(t, jsonRequest(t, http.MethodPost, "/api/palette", map[string]any{
		"image": imgutil.EncodeDataURL("image/png", solidRed(t)),
	}))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestPaletteFromURL(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(solidRed(t))
	}))
	defer remote.Close()

	f := newFixture(t, WithURLPolicy(security.URLPolicy{AllowHTTP: true, AllowPrivate: true}))
	rec := f.do(t, jsonRequest(t, http.MethodPost, "/api/palette", map[string]any{"url": remote.URL + "/red.png"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if resp := decode[paletteResponse](t, rec); resp.Colors[0].Hex != "#ff0000" {
		t.Errorf("palette = %+v", resp.Colors)
	}
}

func TestEdit(t *testing.T) {
	f := newFixture(t)

	// No credential anywhere.
	rec := f.do(t, jsonRequest(t, http.MethodPost, "/api/edit", map[string]any{
		"image": imgutil.EncodeDataURL("image/png", solidRed(t)),
		"mode":  "background",
	}))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 (body %s)", rec.Code, rec.Body)
	}

	// Bearer header.
	req := jsonRequest(t, http.MethodPost, "/api/edit", map[string]any{
		"image":    imgutil.EncodeDataURL("image/png", solidRed(t)),
		"mode":     "remix",
		"prompt":   "make it blue",
		"guidance": 3.5,
	})
	req.Header.Set("Authorization", "Bearer header-token")
	rec = f.do(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	resp := decode[editResponse](t, rec)
	if resp.MIME != "image/png" || !strings.HasPrefix(resp.Image, "data:image/png;base64,") || resp.Mode != "remix" {
		t.Errorf("edit response = %+v", resp)
	}
	if f.backend.lastReq.Credential != "header-token" || *f.backend.lastReq.Guidance != 3.5 {
		t.Errorf("backend request = %+v", f.backend.lastReq)
	}

	// Stored credential.
	if err := f.creds.Set(context.Background(), "stored-token", false); err != nil {
		t.Fatal(err)
	}
	rec = f.do(t, jsonRequest(t, http.MethodPost, "/api/edit", map[string]any{
		"image": imgutil.EncodeDataURL("image/png", solidRed(t)),
		"mode":  "background",
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if f.backend.lastReq.Credential != "stored-token" {
		t.Errorf("credential = %q, want stored-token", f.backend.lastReq.Credential)
	}
}

func TestEditErrors(t *testing.T) {
	tests := []struct {
		name       string
		backendErr error
		backendOut []byte
		body       map[string]any
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "remote error",
			backendErr: &edit.RemoteError{StatusCode: 429, Message: "rate limit reached"},
			body:       map[string]any{"mode": "background"},
			wantStatus: http.StatusBadGateway,
			wantMsg:    "rate limit reached",
		},
		{
			name:       "undecodable result",
			backendOut: []byte("nope"),
			body:       map[string]any{"mode": "background"},
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "remix without prompt",
			body:       map[string]any{"mode": "remix"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "guidance out of range",
			body:       map[string]any{"mode": "remix", "prompt": "x", "guidance": 50},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.backend.err = tt.backendErr
			if tt.backendOut != nil {
				f.backend.data = tt.backendOut
			}

			tt.body["image"] = imgutil.EncodeDataURL("image/png", solidRed(t))
			req := jsonRequest(t, http.MethodPost, "/api/edit", tt.body)
			req.Header.Set("Authorization", "Bearer k")
			rec := f.do(t, req)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body)
			}
			if tt.wantMsg != "" {
				if resp := decode[errorResponse](t, rec); resp.Error != tt.wantMsg {
					t.Errorf("error = %q, want %q", resp.Error, tt.wantMsg)
				}
			}
		})
	}
}

func TestSession(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/api/session", nil))
	empty := decode[sessionResponse](t, rec)
	if empty.Edit != nil || empty.Palette != nil {
		t.Errorf("empty session = %+v", empty)
	}

	f.do(t, jsonRequest(t, http.MethodPost, "/api/palette", map[string]any{"image": imgutil.EncodeDataURL("image/png", solidRed(t))}))
	req := jsonRequest(t, http.MethodPost, "/api/edit", map[string]any{
		"image": imgutil.EncodeDataURL("image/png", solidRed(t)),
		"mode":  "background",
	})
	req.Header.Set("Authorization", "Bearer k")
	f.do(t, req)

	got := decode[sessionResponse](t, f.do(t, httptest.NewRequest(http.MethodGet, "/api/session", nil)))
	if got.Palette == nil || got.Palette.Colors[0].Hex != "#ff0000" {
		t.Errorf("session palette = %+v", got.Palette)
	}
	if got.Edit == nil || got.Edit.Submission != 1 {
		t.Errorf("session edit = %+v", got.Edit)
	}
}

func TestCredentialRoutes(t *testing.T) {
	f := newFixture(t)

	status := decode[credentialStatus](t, f.do(t, httptest.NewRequest(http.MethodGet, "/api/credential", nil)))
	if status.Set || status.Persisted {
		t.Errorf("initial status = %+v", status)
	}

	rec := f.do(t, jsonRequest(t, http.MethodPut, "/api/credential", credentialUpdate{Credential: "tok", Persist: true}))
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d, body = %s", rec.Code, rec.Body)
	}
	if status = decode[credentialStatus](t, rec); !status.Set || !status.Persisted {
		t.Errorf("after PUT = %+v", status)
	}
	if f.creds.Get() != "tok" {
		t.Errorf("store value = %q", f.creds.Get())
	}

	rec = f.do(t, jsonRequest(t, http.MethodPut, "/api/credential", credentialUpdate{Credential: "  "}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty PUT status = %d, want 400", rec.Code)
	}

	rec = f.do(t, httptest.NewRequest(http.MethodDelete, "/api/credential", nil))
	if status = decode[credentialStatus](t, rec); status.Set || status.Persisted {
		t.Errorf("after DELETE = %+v", status)
	}
}

func TestRequestID(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Header().Get(RequestIDHeader) == "" {
		t.Errorf("healthz status = %d, request id = %q", rec.Code, rec.Header().Get(RequestIDHeader))
	}

	const id = "6f1c1a57-2b3c-4d5e-8f90-0123456789ab"
	req := httptest.NewRequest(http.MethodGet, "/version", nil)
	req.Header.Set(RequestIDHeader, id)
	rec = f.do(t, req)
	if got := rec.Header().Get(RequestIDHeader); got != id {
		t.Errorf("request id = %q, want %q", got, id)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "not-a-uuid\r\n")
	rec = f.do(t, req)
	if got := rec.Header().Get(RequestIDHeader); got == "not-a-uuid\r\n" || got == "" {
		t.Errorf("malformed request id was echoed: %q", got)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/api/palette", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestServeShutdown(t *testing.T) {
	f := newFixture(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.server.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}
