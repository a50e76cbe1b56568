package apisdk

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds each network attempt.
const DefaultTimeout = 30 * time.Second

// SDKClient talks to the vehicle-service tracker backend.
// It provides the unauthenticated endpoints (sign-in, refresh, logout) and
// creates authenticated Sessions.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client

	// Timeout applies to every single network attempt. A call that refreshes
	// and retries gets the full budget for each attempt.
	Timeout time.Duration

	Logger *slog.Logger

	wrappers []func(http.RoundTripper) http.RoundTripper
}

// Option configures an SDKClient.
type Option func(*SDKClient)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *SDKClient) { c.HTTPClient = hc }
}

// WithTimeout sets the per-attempt timeout. Non-positive values keep the
// default.
func WithTimeout(d time.Duration) Option {
	return func(c *SDKClient) {
		if d > 0 {
			c.Timeout = d
		}
	}
}

// WithTransport wraps the HTTP client's round tripper, e.g. with
// slogx.Transport or httpx.RateLimitedTransport. Wrappers apply in order, the
// first given ends up outermost.
func WithTransport(wrap func(http.RoundTripper) http.RoundTripper) Option {
	return func(c *SDKClient) { c.wrappers = append(c.wrappers, wrap) }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *SDKClient) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// NewSDKClient creates a client for the backend rooted at baseURL
// (e.g. "http://127.0.0.1:8000/api").
func NewSDKClient(baseURL string, opts ...Option) *SDKClient {
	c := &SDKClient{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{},
		Timeout:    DefaultTimeout,
		Logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if len(c.wrappers) > 0 {
		// Copy so a caller supplied client is not mutated.
		hc := *c.HTTPClient
		rt := hc.Transport
		if rt == nil {
			rt = http.DefaultTransport
		}
		for i := len(c.wrappers) - 1; i >= 0; i-- {
			rt = c.wrappers[i](rt)
		}
		hc.Transport = rt
		c.HTTPClient = &hc
		c.wrappers = nil
	}

	return c
}
