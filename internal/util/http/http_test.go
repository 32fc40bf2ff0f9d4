package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFetchSetsHeaders(t *testing.T) {
	var gotUA, gotCustom string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotCustom = r.Header.Get("X-Test")
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	data, err := Fetch(context.Background(), server.URL, FetchOptions{
		Headers: map[string]string{"X-Test": "yes"},
	})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(data) != "ok" {
		t.Errorf("Fetch() = %q, want ok", data)
	}
	if !strings.HasPrefix(gotUA, UserAgentName+"/") {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if gotCustom != "yes" {
		t.Errorf("X-Test = %q, want yes", gotCustom)
	}
}

func TestFetchNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	if _, err := Fetch(context.Background(), server.URL, FetchOptions{}); err == nil {
		t.Error("Fetch() expected error for 404")
	}
}

func TestDoReturnsErrorResponses(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"loading"}`))
	}))
	defer server.Close()

	resp, err := Do(context.Background(), http.MethodPost, server.URL, []byte("payload"), FetchOptions{})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if resp.OK() || resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d", resp.StatusCode)
	}
	if string(resp.Body) != `{"error":"loading"}` {
		t.Errorf("Body = %q", resp.Body)
	}
	if gotBody != "payload" {
		t.Errorf("server received %q", gotBody)
	}
}

func TestDoMaxBytes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer server.Close()

	if _, err := Do(context.Background(), http.MethodGet, server.URL, nil, FetchOptions{MaxBytes: 10}); err == nil {
		t.Error("Do() expected error for oversized body")
	}
	if _, err := Do(context.Background(), http.MethodGet, server.URL, nil, FetchOptions{MaxBytes: 100}); err != nil {
		t.Errorf("Do() error = %v", err)
	}
}

func TestDoTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	if _, err := Do(context.Background(), http.MethodGet, server.URL, nil, FetchOptions{Timeout: 20 * time.Millisecond}); err == nil {
		t.Error("Do() expected timeout error")
	}
}
