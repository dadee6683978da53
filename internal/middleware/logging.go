package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"audio-compressor/internal/logging"
)

// LoggingConfig holds configuration for the logging middleware
type LoggingConfig struct {
	SkipPaths       []string
	LogHealthChecks bool
}

// DefaultLoggingConfig returns a sensible default configuration
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		SkipPaths:       []string{},
		LogHealthChecks: true,
	}
}

var healthCheckPaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/livez":   true,
	"/readyz":  true,
}

// w3cFields is the #Fields directive matching accessEntry.w3c.
const w3cFields = "date time c-ip cs-method cs-uri-stem cs-uri-query sc-status sc-bytes cs-bytes time-taken cs(User-Agent)"

// accessEntry is one finished request.
type accessEntry struct {
	at        time.Time
	clientIP  string
	method    string
	stem      string
	query     string
	status    int
	bytesOut  int64
	bytesIn   int64
	took      time.Duration
	userAgent string
	requestID string
}

func newAccessEntry(r *http.Request, rw *responseWriter, took time.Duration) accessEntry {
	return accessEntry{
		at:        time.Now().UTC(),
		clientIP:  sanitizeLogField(getClientIP(r)),
		method:    sanitizeLogField(r.Method),
		stem:      sanitizeLogField(r.URL.Path),
		query:     orDash(sanitizeLogField(r.URL.RawQuery)),
		status:    rw.statusCode,
		bytesOut:  rw.bytesWritten,
		bytesIn:   r.ContentLength,
		took:      took,
		userAgent: orDash(escapeW3CField(sanitizeLogField(r.Header.Get("User-Agent")))),
		requestID: sanitizeLogField(chimw.GetReqID(r.Context())),
	}
}

// w3c renders the entry in W3C Extended Log Format. An unknown request
// length is written as "-".
func (e accessEntry) w3c() string {
	bytesIn := "-"
	if e.bytesIn >= 0 {
		bytesIn = fmt.Sprint(e.bytesIn)
	}
	return fmt.Sprintf("%s %s %s %s %s %s %d %d %s %d %s",
		e.at.Format("2006-01-02"),
		e.at.Format("15:04:05"),
		e.clientIP,
		e.method,
		e.stem,
		e.query,
		e.status,
		e.bytesOut,
		bytesIn,
		e.took.Milliseconds(),
		e.userAgent,
	)
}

// Logger returns HTTP logging middleware using W3C Extended Log Format.
// Server errors are logged at warn level. It expects chi's RequestID
// middleware to run first.
func Logger(config LoggingConfig, serviceName string) func(http.Handler) http.Handler {
	logging.Debug("Access log fields: %s", w3cFields)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if shouldSkip(r.URL.Path, config) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := newResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			entry := newAccessEntry(r, wrapped, time.Since(start))

			var event *zerolog.Event
			if entry.status >= http.StatusInternalServerError {
				event = logging.L().Warn()
			} else {
				event = logging.L().Info()
			}
			event = event.
				Str("service", serviceName).
				Int("status", entry.status).
				Int64("duration_ms", entry.took.Milliseconds())
			if entry.requestID != "" {
				event = event.Str("request_id", entry.requestID)
			}
			event.Msg(entry.w3c())
		})
	}
}

func shouldSkip(path string, config LoggingConfig) bool {
	for _, skipPath := range config.SkipPaths {
		if strings.HasPrefix(path, skipPath) {
			return true
		}
	}

	return !config.LogHealthChecks && healthCheckPaths[path]
}

// sanitizeLogField removes control characters that could be used for log injection.
func sanitizeLogField(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r':
			b.WriteRune(' ')
		case r < 0x20 && r != '\t', r == 0x7f:
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// getClientIP returns the remote host. chi's RealIP middleware has already
// replaced RemoteAddr with X-Forwarded-For / X-Real-IP when present.
func getClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// escapeW3CField quotes a field value containing spaces or quotes
func escapeW3CField(s string) string {
	if strings.ContainsAny(s, " \t\"") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
