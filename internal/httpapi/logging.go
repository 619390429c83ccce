package httpapi

import (
	"log"
	"net/http"
	"time"

	"branchq/queue-service/internal/metrics"
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		writer := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(writer, r)
		duration := time.Since(start)
		metrics.RequestsTotal.Inc()
		if writer.status >= http.StatusBadRequest {
			metrics.RequestErrors.Inc()
		}
		log.Printf("request method=%s path=%s status=%d duration_ms=%d", r.Method, r.URL.Path, writer.status, duration.Milliseconds())
	})
}
