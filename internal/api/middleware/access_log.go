package middleware

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cloo-solutions/companion/internal/api"
	"github.com/go-chi/chi/v5"
)

// accessLogEntry never carries the query string or body; both may hold the
// owner's questions.
type accessLogEntry struct {
	Timestamp    string `json:"ts"`
	Method       string `json:"method"`
	Route        string `json:"route,omitempty"`
	Path         string `json:"path"`
	Status       int    `json:"status"`
	Bytes        int    `json:"bytes"`
	DurationMS   int64  `json:"duration_ms"`
	Slow         bool   `json:"slow,omitempty"`
	ContextLevel string `json:"context_level,omitempty"`
	Cache        string `json:"cache,omitempty"`
	RequestID    string `json:"request_id,omitempty"`
	ClientID     string `json:"client_id,omitempty"`
	RemoteAddr   string `json:"remote_addr,omitempty"`
}

// SlowRequestThreshold marks requests worth a second look, typically a
// model call that ran close to its timeout.
const SlowRequestThreshold = 10 * time.Second

type responseRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// AccessLog emits one JSON line per request, including the context level
// and cache outcome reported by the ask handler.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w}

		next.ServeHTTP(rec, r)

		log.Println(formatAccessLog(buildAccessLogEntry(rec, r, start, time.Since(start))))
	})
}

func buildAccessLogEntry(rec *responseRecorder, r *http.Request, start time.Time, elapsed time.Duration) accessLogEntry {
	status := rec.status
	if status == 0 {
		status = http.StatusOK
	}

	entry := accessLogEntry{
		Timestamp:    start.UTC().Format(time.RFC3339Nano),
		Method:       r.Method,
		Path:         r.URL.Path,
		Status:       status,
		Bytes:        rec.bytes,
		DurationMS:   elapsed.Milliseconds(),
		Slow:         elapsed >= SlowRequestThreshold,
		ContextLevel: rec.Header().Get(api.HeaderContextLevel),
		Cache:        rec.Header().Get(api.HeaderCache),
		RequestID:    GetRequestID(r.Context()),
		ClientID:     GetClientID(r.Context()),
		RemoteAddr:   clientIP(r),
	}
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		entry.Route = rctx.RoutePattern()
	}
	return entry
}

func formatAccessLog(entry accessLogEntry) string {
	payload, err := json.Marshal(entry)
	if err != nil {
		return "access_log: marshal failed: " + err.Error()
	}
	return string(payload)
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
