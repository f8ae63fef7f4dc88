package middleware

import (
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// responseRecorder wraps http.ResponseWriter to capture the status code
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
}

func newResponseRecorder(w http.ResponseWriter) *responseRecorder {
	return &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

// Logging logs request and response metadata on separate lines
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		log.Printf("→ %s %s %s", r.Method, r.URL.Path, r.RemoteAddr)

		recorder := newResponseRecorder(w)
		next.ServeHTTP(recorder, r)

		log.Printf("← %s %s → %d (%s)", r.Method, r.URL.Path, recorder.statusCode, time.Since(start))
	})
}

// CompactLogging logs requests in a single line (like nginx)
func CompactLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		recorder := newResponseRecorder(w)
		next.ServeHTTP(recorder, r)

		log.Printf("%s %s %d %s %s",
			r.Method,
			r.URL.Path,
			recorder.statusCode,
			time.Since(start),
			r.RemoteAddr,
		)
	})
}

// StructuredLogging logs in JSON format
func StructuredLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		recorder := newResponseRecorder(w)
		next.ServeHTTP(recorder, r)

		entry := map[string]interface{}{
			"timestamp":      start.Format(time.RFC3339),
			"method":         r.Method,
			"path":           r.URL.Path,
			"status":         recorder.statusCode,
			"duration_ms":    time.Since(start).Milliseconds(),
			"remote_addr":    r.RemoteAddr,
			"user_agent":     r.UserAgent(),
			"content_length": r.ContentLength,
		}

		logJSON, _ := json.Marshal(entry)
		log.Println(string(logJSON))
	})
}
