package api

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/pdfconv/internal/logging"
	"github.com/go-chi/chi/v5/middleware"
)

// RequestLogger logs one line per request. 4xx answers are warnings,
// 5xx are errors.
func RequestLogger(l logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)

			next.ServeHTTP(rec, r)

			args := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start),
				"bytes", rec.written,
				"remote_addr", r.RemoteAddr,
			}
			if id := middleware.GetReqID(r.Context()); id != "" {
				args = append(args, "request_id", id)
			}

			switch {
			case rec.status >= http.StatusInternalServerError:
				l.Error(r.Context(), "http request", args...)
			case rec.status >= http.StatusBadRequest:
				l.Warn(r.Context(), "http request", args...)
			default:
				l.Info(r.Context(), "http request", args...)
			}
		})
	}
}
