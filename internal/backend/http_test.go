package backend_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rohmanhakim/docsmith/internal/backend"
	"github.com/rohmanhakim/docsmith/internal/config"
	"github.com/rohmanhakim/docsmith/internal/metadata"
	"github.com/rohmanhakim/docsmith/internal/urlinfo"
)

func parseLocal(t *testing.T, raw string) urlinfo.URLInfo {
	t.Helper()
	info := urlinfo.ParseWith(raw, nil, urlinfo.Options{AllowPrivateHosts: true})
	if !info.IsValid() {
		t.Fatalf("test URL %q invalid: %s", raw, info.InvalidReason())
	}
	return info
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.WithDefault().Build()
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestHTTPBackend_Success(t *testing.T) {
	var gotUserAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body>hello</body></html>"))
	}))
	defer server.Close()

	recorder := metadata.NewRecorder("test")
	b := backend.NewHTTPBackend(&recorder)
	defer b.Close()

	result := b.Crawl(context.Background(), parseLocal(t, server.URL+"/docs"), testConfig(t))
	if !result.IsSuccess() {
		t.Fatalf("expected success, got status %d error %q", result.Status(), result.Error())
	}
	if !strings.Contains(string(result.Body()), "hello") {
		t.Error("body not returned")
	}
	if !strings.HasPrefix(result.ContentType(), "text/html") {
		t.Errorf("contentType: got %q", result.ContentType())
	}
	if gotUserAgent == "" {
		t.Error("user agent header not sent")
	}
	if !b.Validate(result) {
		t.Error("successful non-empty result must validate")
	}
	if len(recorder.Fetches()) != 1 {
		t.Errorf("expected 1 fetch event, got %d", len(recorder.Fetches()))
	}
}

func TestHTTPBackend_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	recorder := metadata.NewRecorder("test")
	b := backend.NewHTTPBackend(&recorder)
	defer b.Close()

	result := b.Crawl(context.Background(), parseLocal(t, server.URL+"/missing"), testConfig(t))
	if result.Status() != http.StatusNotFound {
		t.Errorf("expected 404, got %d", result.Status())
	}
	if result.Error() == "" {
		t.Error("non-2xx result must carry an error message")
	}
	if b.Validate(result) {
		t.Error("404 result must not validate")
	}
	if len(recorder.Errors()) != 1 {
		t.Errorf("expected 1 error record, got %d", len(recorder.Errors()))
	}
}

func TestHTTPBackend_RedirectFinalURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>moved here</body></html>"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	recorder := metadata.NewRecorder("test")
	b := backend.NewHTTPBackend(&recorder)
	defer b.Close()

	result := b.Crawl(context.Background(), parseLocal(t, server.URL+"/old"), testConfig(t))
	if !result.IsSuccess() {
		t.Fatalf("expected success after redirect, got %d", result.Status())
	}
	if !strings.HasSuffix(result.FinalURL(), "/new") {
		t.Errorf("expected final URL at /new, got %q", result.FinalURL())
	}
}

func TestHTTPBackend_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte("late"))
	}))
	defer server.Close()

	cfg, err := config.WithDefault().WithTimeout(30 * time.Millisecond).Build()
	if err != nil {
		t.Fatal(err)
	}

	recorder := metadata.NewRecorder("test")
	b := backend.NewHTTPBackend(&recorder)
	defer b.Close()

	result := b.Crawl(context.Background(), parseLocal(t, server.URL+"/slow"), cfg)
	if result.Status() != backend.StatusTimeout {
		t.Errorf("expected synthetic 504, got %d (%s)", result.Status(), result.Error())
	}
}

func TestHTTPBackend_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	recorder := metadata.NewRecorder("test")
	b := backend.NewHTTPBackend(&recorder)
	defer b.Close()

	result := b.Crawl(context.Background(), parseLocal(t, url+"/gone"), testConfig(t))
	if result.Status() != backend.StatusConnectionError {
		t.Errorf("expected synthetic 503, got %d (%s)", result.Status(), result.Error())
	}
}

func TestHTTPBackend_Process(t *testing.T) {
	result := backend.NewResult("https://example.com/docs", 200,
		http.Header{"Content-Type": []string{"text/html"}}, []byte("body"))

	recorder := metadata.NewRecorder("test")
	b := backend.NewHTTPBackend(&recorder)
	defer b.Close()

	meta := b.Process(result)
	if meta["backend"] != "http" {
		t.Errorf("backend: got %q", meta["backend"])
	}
	if meta["status"] != "200" {
		t.Errorf("status: got %q", meta["status"])
	}
	if meta["size"] != "4" {
		t.Errorf("size: got %q", meta["size"])
	}
}
