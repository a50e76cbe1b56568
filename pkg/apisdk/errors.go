package apisdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"unicode/utf8"
)

// Kind classifies a failed call.
type Kind int

const (
	// KindAPI is any non-2xx status without a more specific kind.
	KindAPI Kind = iota
	// KindNetwork covers unreachable hosts, transport failures and timeouts.
	KindNetwork
	// KindSessionExpired is a 401 that could not be recovered by a refresh.
	KindSessionExpired
	// KindValidation is a 400 from the backend's validation layer.
	KindValidation
	// KindNotFound is a 404.
	KindNotFound
	// KindServer is any 5xx.
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network error"
	case KindSessionExpired:
		return "session expired"
	case KindValidation:
		return "validation error"
	case KindNotFound:
		return "not found"
	case KindServer:
		return "server error"
	default:
		return "api error"
	}
}

// APIError is the single error type returned for every failed call.
// Use errors.Is against the Err* sentinels to branch on Kind, and errors.As to
// reach the status code and body.
type APIError struct {
	Kind       Kind
	StatusCode int

	// Body is the raw response body text.
	Body string

	// Detail is the backend's {"detail": "..."} message, when present.
	Detail string

	// Fields holds per-field validation messages, e.g. {"status": ["..."]}.
	Fields map[string][]string

	Method string
	Path   string

	// Err is the underlying cause (transport error, refresh failure).
	Err error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString("apisdk: ")
	if e.Method != "" {
		fmt.Fprintf(&b, "%s %s: ", e.Method, e.Path)
	}
	b.WriteString(e.Kind.String())
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (%d)", e.StatusCode)
	}

	switch {
	case e.Detail != "":
		b.WriteString(": " + e.Detail)
	case len(e.Fields) > 0:
		b.WriteString(": " + e.fieldSummary())
	case e.Err != nil:
		b.WriteString(": " + e.Err.Error())
	case e.Body != "":
		b.WriteString(": " + truncate(e.Body, 200))
	}
	return b.String()
}

func (e *APIError) Unwrap() error { return e.Err }

// Is matches sentinels by Kind, and by StatusCode when the sentinel sets one.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.StatusCode == 0 || t.StatusCode == e.StatusCode
}

func (e *APIError) fieldSummary() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], " "))
	}
	return strings.Join(parts, "; ")
}

// ============================================================================
// Predefined errors
// ============================================================================

var (
	ErrNetwork        = &APIError{Kind: KindNetwork}
	ErrSessionExpired = &APIError{Kind: KindSessionExpired}
	ErrValidation     = &APIError{Kind: KindValidation}
	ErrNotFound       = &APIError{Kind: KindNotFound}
	ErrServer         = &APIError{Kind: KindServer}
	ErrAPI            = &APIError{Kind: KindAPI}

	// ErrNoSession is returned by Refresh when no refresh credential is held.
	ErrNoSession = errors.New("apisdk: no session to refresh")

	// ErrUnsupportedMethod rejects methods other than GET, POST, PATCH, PUT
	// and DELETE before anything is sent.
	ErrUnsupportedMethod = errors.New("apisdk: unsupported method")
)

// ============================================================================
// Classification
// ============================================================================

// classifyStatus builds the error for a non-2xx response. A 401 lands in
// KindAPI here; only the session decides when a 401 means the session expired.
func classifyStatus(method, path string, status int, body []byte) *APIError {
	e := &APIError{
		StatusCode: status,
		Body:       string(body),
		Method:     method,
		Path:       path,
	}

	switch {
	case status == http.StatusBadRequest:
		e.Kind = KindValidation
	case status == http.StatusNotFound:
		e.Kind = KindNotFound
	case status >= 500:
		e.Kind = KindServer
	default:
		e.Kind = KindAPI
	}

	e.Detail, e.Fields = parseErrorBody(body)
	return e
}

func networkError(method, path string, err error) *APIError {
	return &APIError{
		Kind:   KindNetwork,
		Method: method,
		Path:   path,
		Err:    err,
	}
}

// parseErrorBody understands the backend's two error shapes:
// {"detail": "..."} and {"field": ["msg", ...], "other": "msg"}.
func parseErrorBody(body []byte) (string, map[string][]string) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", nil
	}

	var detail string
	fields := make(map[string][]string)
	for key, value := range raw {
		var s string
		if err := json.Unmarshal(value, &s); err == nil {
			if key == "detail" {
				detail = s
				continue
			}
			fields[key] = []string{s}
			continue
		}

		var list []string
		if err := json.Unmarshal(value, &list); err == nil {
			fields[key] = list
		}
	}

	if len(fields) == 0 {
		fields = nil
	}
	return detail, fields
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
