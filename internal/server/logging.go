package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// responseMeta captures what the handler wrote so the request log can
// carry status and payload size.
type responseMeta struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (m *responseMeta) WriteHeader(code int) {
	m.status = code
	m.ResponseWriter.WriteHeader(code)
}

func (m *responseMeta) Write(b []byte) (int, error) {
	n, err := m.ResponseWriter.Write(b)
	m.bytes += n
	return n, err
}

func (m *responseMeta) Unwrap() http.ResponseWriter {
	return m.ResponseWriter
}

// requestLogger logs one line per request. Health checks are skipped to
// keep probe noise out of the logs. Gallery requests additionally carry
// their view and order parameters, which is usually the first thing
// worth knowing when a listing misbehaves.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/health" {
			next.ServeHTTP(w, r)
			return
		}

		meta := &responseMeta{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(meta, r)

		attrs := []any{
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", meta.status,
			"bytes", meta.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote_addr", r.RemoteAddr,
		}
		if view := r.URL.Query().Get("view"); view != "" {
			attrs = append(attrs, "view", view)
		}
		if order := r.URL.Query().Get("order"); order != "" {
			attrs = append(attrs, "order", order)
		}
		slog.Info("http request", attrs...)
	})
}
