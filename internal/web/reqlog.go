package web

import (
	"net/http"
	"time"

	"github.com/FairportRobotics/scouting-sync/internal/logging"
)

// requestLogger logs one line per request with the chi request ID, so a
// submission's access line and any pipeline error lines correlate.
//
// Log fields:
//   - method: HTTP method
//   - path: request URL path
//   - status: HTTP response status code
//   - duration_ms: request processing time in milliseconds
//   - ip: client IP (RemoteAddr, rewritten by the RealIP middleware)
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		logging.FromContext(r.Context()).Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", r.RemoteAddr,
		)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.status = status
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// Unwrap provides access to the underlying ResponseWriter for middleware
// that need to inspect it.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
