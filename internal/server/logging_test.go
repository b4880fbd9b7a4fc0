package server

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestRequestLogger_RecordsGalleryFields(t *testing.T) {
	buf := captureLogs(t)

	h := requestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("body"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/videos?view=trending&order=views", nil))

	out := buf.String()
	for _, want := range []string{"status=418", "bytes=4", "view=trending", "order=views", "path=/api/videos"} {
		if !strings.Contains(out, want) {
			t.Errorf("log line missing %q: %s", want, out)
		}
	}
}

func TestRequestLogger_OmitsAbsentQueryParams(t *testing.T) {
	buf := captureLogs(t)

	h := requestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/videos", nil))

	out := buf.String()
	if strings.Contains(out, "view=") || strings.Contains(out, "order=") {
		t.Errorf("log line should not carry empty gallery params: %s", out)
	}
	if !strings.Contains(out, "status=200") {
		t.Errorf("expected default 200 status in log line: %s", out)
	}
}

func TestRequestLogger_SkipsHealth(t *testing.T) {
	buf := captureLogs(t)

	h := requestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if buf.Len() != 0 {
		t.Errorf("health checks must not be logged, got: %s", buf.String())
	}
}
