package common

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LoggingTransport wraps an http.RoundTripper and logs every request with a
// correlation id. Sensitive headers are never logged in clear.
type LoggingTransport struct {
	Transport http.RoundTripper
	Log       *slog.Logger
}

// NewLoggingTransport wraps transport, defaulting to http.DefaultTransport.
func NewLoggingTransport(transport http.RoundTripper, log *slog.Logger) *LoggingTransport {
	if transport == nil {
		transport = http.DefaultTransport
	}
	if log == nil {
		log = slog.Default()
	}
	return &LoggingTransport{Transport: transport, Log: log}
}

func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	id := uuid.NewString()
	start := time.Now()

	t.Log.Debug("http request",
		"request_id", id,
		"method", req.Method,
		"url", req.URL.String(),
		"headers", RedactHeaders(req.Header),
	)

	resp, err := t.Transport.RoundTrip(req)
	elapsed := time.Since(start)
	if err != nil {
		t.Log.Warn("http request failed",
			"request_id", id,
			"method", req.Method,
			"url", req.URL.String(),
			"duration", elapsed,
			"error", err,
		)
		return nil, err
	}

	level := slog.LevelDebug
	if resp.StatusCode >= 400 {
		level = slog.LevelWarn
	}
	t.Log.Log(req.Context(), level, "http response",
		"request_id", id,
		"method", req.Method,
		"url", req.URL.Path,
		"status", resp.StatusCode,
		"duration", elapsed,
	)
	return resp, nil
}

var sensitiveHeaders = map[string]bool{
	"authorization":       true,
	"proxy-authorization": true,
	"private-token":       true,
	"x-api-key":           true,
	"api-key":             true,
	"x-auth-token":        true,
	"cookie":              true,
	"set-cookie":          true,
}

// IsSensitiveHeader reports whether a header value must be redacted.
func IsSensitiveHeader(name string) bool {
	return sensitiveHeaders[strings.ToLower(name)]
}

// RedactHeaders flattens h for logging with sensitive values replaced.
func RedactHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		if IsSensitiveHeader(name) {
			out[name] = "[REDACTED]"
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}
