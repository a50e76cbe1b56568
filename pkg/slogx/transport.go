package slogx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/autocheck/pkg/idx"
)

// RequestIDHeader carries the ULID correlating a client attempt with the
// server's log line.
const RequestIDHeader = "X-Request-ID"

// Transport wraps next so every outbound request gets a request ID and a debug
// log line. Headers and bodies are never logged, they carry credentials.
func Transport(next http.RoundTripper, logger *slog.Logger) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &loggingTransport{next: next, logger: logger}
}

type loggingTransport struct {
	next   http.RoundTripper
	logger *slog.Logger
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	reqID := req.Header.Get(RequestIDHeader)
	if reqID == "" {
		reqID = idx.New().String()

		// RoundTrippers must not mutate the caller's request.
		req = req.Clone(req.Context())
		req.Header.Set(RequestIDHeader, reqID)
	}

	log := t.logger.With(
		"req_id", reqID,
		"method", req.Method,
		"path", req.URL.Path,
	)

	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	duration := time.Since(start).Milliseconds()

	if err != nil {
		log.Debug("http_request_failed", "duration_ms", duration, "error", err)
		return nil, err
	}

	log.Debug("http_request", "status", resp.StatusCode, "duration_ms", duration)
	return resp, nil
}
