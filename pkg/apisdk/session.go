package apisdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/autocheck/pkg/credstore"
	"github.com/aussiebroadwan/autocheck/pkg/jwtx"
	"golang.org/x/sync/singleflight"
)

// DefaultRefreshBuffer is how close to its exp claim an access token may get
// before the session refreshes it ahead of the call.
const DefaultRefreshBuffer = 30 * time.Second

// Session holds the signed-in user's credentials and makes authenticated
// calls. A 401 triggers one refresh and one retry; if the refresh fails the
// session is cleared and the call fails with ErrSessionExpired.
//
// A Session is safe for concurrent use.
type Session struct {
	client *SDKClient
	store  credstore.Store
	logger *slog.Logger

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	username     string
	expired      []func(error)

	coalesce      bool
	refreshBuffer time.Duration
	group         singleflight.Group
	now           func() time.Time
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithCoalescedRefresh controls whether concurrent refreshes share one
// in-flight request. On by default.
func WithCoalescedRefresh(on bool) SessionOption {
	return func(s *Session) { s.coalesce = on }
}

// WithRefreshBuffer sets the proactive refresh margin. A negative value turns
// proactive refresh off; the 401 path still refreshes.
func WithRefreshBuffer(d time.Duration) SessionOption {
	return func(s *Session) { s.refreshBuffer = d }
}

// WithExpiredHandler registers fn to run when the session expires. It runs
// after the credentials have been cleared.
func WithExpiredHandler(fn func(error)) SessionOption {
	return func(s *Session) {
		if fn != nil {
			s.expired = append(s.expired, fn)
		}
	}
}

// NewSession creates a session backed by store and loads any credentials
// already in it. A nil store keeps credentials in memory only.
func (c *SDKClient) NewSession(ctx context.Context, store credstore.Store, opts ...SessionOption) (*Session, error) {
	if store == nil {
		store = credstore.NewMemory()
	}

	s := &Session{
		client:        c,
		store:         store,
		logger:        c.Logger,
		coalesce:      true,
		refreshBuffer: DefaultRefreshBuffer,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	if s.accessToken, err = credstore.GetOptional(ctx, store, credstore.KeyAccessToken); err != nil {
		return nil, fmt.Errorf("failed to load access token: %w", err)
	}
	if s.refreshToken, err = credstore.GetOptional(ctx, store, credstore.KeyRefreshToken); err != nil {
		return nil, fmt.Errorf("failed to load refresh token: %w", err)
	}
	if s.username, err = credstore.GetOptional(ctx, store, credstore.KeyUsername); err != nil {
		return nil, fmt.Errorf("failed to load username: %w", err)
	}

	return s, nil
}

// ============================================================================
// State
// ============================================================================

// Authenticated reports whether the session holds any credential.
func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken != "" || s.refreshToken != ""
}

// Username returns the name the session signed in with.
func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

// Credential returns a snapshot of the current tokens.
func (s *Session) Credential() Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Credential{AccessToken: s.accessToken, RefreshToken: s.refreshToken}
}

// OnExpired registers fn like WithExpiredHandler.
func (s *Session) OnExpired(fn func(error)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expired = append(s.expired, fn)
}

// ============================================================================
// Auth flows
// ============================================================================

// SignIn authenticates with username and password and stores the new tokens.
func (s *Session) SignIn(ctx context.Context, username, password string) error {
	pair, err := s.client.SignInGrant(ctx, username, password)
	if err != nil {
		return err
	}
	return s.adopt(ctx, username, pair)
}

// SignUp registers an account and signs the session in as it.
func (s *Session) SignUp(ctx context.Context, req SignUpRequest) (*SignedUpUser, error) {
	resp, err := s.client.SignUp(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.adopt(ctx, resp.User.Username, &resp.Tokens); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// adopt replaces the session's credentials with a freshly issued pair.
func (s *Session) adopt(ctx context.Context, username string, pair *TokenPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Put(ctx, map[string]string{
		credstore.KeyAccessToken:  pair.Access,
		credstore.KeyRefreshToken: pair.Refresh,
		credstore.KeyUsername:     username,
	}); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	s.accessToken = pair.Access
	s.refreshToken = pair.Refresh
	s.username = username

	s.logger.InfoContext(ctx, "signed in", "username", username)
	return nil
}

// Logout blacklists the refresh token on the backend, best effort, then clears
// the session. A backend failure is logged and never blocks the local logout.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.revoke(ctx); err != nil {
		s.logger.WarnContext(ctx, "logout: failed to revoke refresh token", "error", err)
	}
	return s.Clear(ctx)
}

var errUnauthorized = &APIError{Kind: KindAPI, StatusCode: http.StatusUnauthorized}

// revoke blacklists the refresh token. The route wants a live access token,
// so the session refreshes once when it holds none (a restored session) or
// when the backend turns the current one away.
func (s *Session) revoke(ctx context.Context) error {
	cred := s.Credential()
	if cred.RefreshToken == "" {
		return nil
	}

	refreshed := false
	if cred.AccessToken == "" {
		next, err := s.Refresh(ctx)
		if err != nil {
			return err
		}
		cred, refreshed = next, true
	}

	err := s.client.RevokeRefresh(ctx, cred.AccessToken, cred.RefreshToken)
	if refreshed || !errors.Is(err, errUnauthorized) {
		return err
	}

	next, err := s.Refresh(ctx)
	if err != nil {
		return err
	}
	return s.client.RevokeRefresh(ctx, next.AccessToken, next.RefreshToken)
}

// Clear drops the credentials from memory and from the store. Clearing an
// empty session is not an error.
func (s *Session) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accessToken = ""
	s.refreshToken = ""
	s.username = ""

	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}

// ============================================================================
// Refresh
// ============================================================================

// Refresh exchanges the refresh token for a new access token and replaces the
// stored credential. Without a refresh token it returns ErrNoSession and does
// not touch the network.
func (s *Session) Refresh(ctx context.Context) (Credential, error) {
	s.mu.RLock()
	refreshToken := s.refreshToken
	s.mu.RUnlock()

	if refreshToken == "" {
		return Credential{}, ErrNoSession
	}

	if !s.coalesce {
		return s.refreshWith(ctx, refreshToken)
	}

	// Waiters share the leader's request, so it must not die with the
	// leader's context. The attempt keeps its own timeout.
	shared := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do(refreshToken, func() (any, error) {
		return s.refreshWith(shared, refreshToken)
	})
	if err != nil {
		return Credential{}, err
	}
	return v.(Credential), nil
}

func (s *Session) refreshWith(ctx context.Context, refreshToken string) (Credential, error) {
	pair, err := s.client.RefreshGrant(ctx, refreshToken)
	if err != nil {
		return Credential{}, fmt.Errorf("failed to refresh token: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Cleared or replaced while the request was in flight.
	if s.refreshToken != refreshToken {
		if s.refreshToken == "" {
			return Credential{}, ErrNoSession
		}
		return Credential{AccessToken: s.accessToken, RefreshToken: s.refreshToken}, nil
	}

	next := Credential{AccessToken: pair.Access, RefreshToken: refreshToken}
	if pair.Refresh != "" {
		next.RefreshToken = pair.Refresh
	}

	if err := s.store.Put(ctx, map[string]string{
		credstore.KeyAccessToken:  next.AccessToken,
		credstore.KeyRefreshToken: next.RefreshToken,
	}); err != nil {
		return Credential{}, fmt.Errorf("failed to store refreshed credentials: %w", err)
	}

	s.accessToken = next.AccessToken
	s.refreshToken = next.RefreshToken

	s.logger.InfoContext(ctx, "access token refreshed", "rotated", pair.Refresh != "")
	return next, nil
}

// refreshIfExpiring refreshes ahead of a call when the access token is a JWT
// about to expire, or when only a refresh token is held (e.g. after a
// restart). It reports whether a refresh was attempted and how it ended;
// failures are left for the 401 path to handle.
func (s *Session) refreshIfExpiring(ctx context.Context) (bool, error) {
	if s.refreshBuffer < 0 {
		return false, nil
	}

	cred := s.Credential()
	if cred.RefreshToken == "" {
		return false, nil
	}

	if cred.AccessToken != "" {
		exp, err := jwtx.PeekExpiry(cred.AccessToken)
		if err != nil {
			return false, nil
		}
		if s.now().Add(s.refreshBuffer).Before(exp) {
			return false, nil
		}
	}

	_, err := s.Refresh(ctx)
	if err != nil {
		s.logger.DebugContext(ctx, "proactive refresh failed", "error", err)
	}
	return true, err
}

// expire clears the session after an unrecoverable 401 and notifies the
// expired handlers.
func (s *Session) expire(ctx context.Context, method, path string, resp *response, cause error) error {
	if err := s.Clear(ctx); err != nil {
		s.logger.ErrorContext(ctx, "failed to clear expired session", "error", err)
	}

	apiErr := &APIError{
		Kind:       KindSessionExpired,
		StatusCode: resp.status,
		Body:       string(resp.body),
		Method:     method,
		Path:       path,
		Err:        refreshFailure(cause),
	}
	apiErr.Detail, apiErr.Fields = parseErrorBody(resp.body)

	s.logger.WarnContext(ctx, "session expired", "method", method, "path", path, "error", cause)

	s.mu.RLock()
	handlers := slices.Clone(s.expired)
	s.mu.RUnlock()

	for _, fn := range handlers {
		fn(apiErr)
	}
	return apiErr
}

// refreshFailure keeps the text of a failed refresh but drops its
// classification, so an expired session matches ErrSessionExpired only.
func refreshFailure(cause error) error {
	var apiErr *APIError
	if errors.As(cause, &apiErr) {
		return errors.New(cause.Error())
	}
	return cause
}

// ============================================================================
// Calls
// ============================================================================

func allowedMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

// Call performs one logical call: at most one refresh and at most two network
// attempts, the second only after a 401 and a successful refresh. The result
// is the raw JSON body, or nil when the response is empty or not JSON.
func (s *Session) Call(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	method = strings.ToUpper(method)
	if !allowedMethod(method) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, method)
	}

	payload, err := encodeBody(body)
	if err != nil {
		return nil, err
	}

	refreshed, refreshErr := s.refreshIfExpiring(ctx)

	resp, err := s.attempt(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}

	// A 401 after a successful proactive refresh is final: the call has
	// spent its refresh.
	if resp.status == http.StatusUnauthorized && (!refreshed || refreshErr != nil) {
		if !refreshed {
			_, refreshErr = s.Refresh(ctx)
		}
		if refreshErr != nil {
			// The caller gave up; that says nothing about the session.
			if ctx.Err() != nil {
				return nil, networkError(method, path, ctx.Err())
			}
			return nil, s.expire(ctx, method, path, resp, refreshErr)
		}

		// One retry only. A second 401 is reported as is.
		resp, err = s.attempt(ctx, method, path, payload)
		if err != nil {
			return nil, err
		}
	}

	if !resp.ok() {
		return nil, classifyStatus(method, path, resp.status, resp.body)
	}
	return resp.payload(), nil
}

// attempt sends with whatever access token is current at send time.
func (s *Session) attempt(ctx context.Context, method, path string, payload []byte) (*response, error) {
	s.mu.RLock()
	token := s.accessToken
	s.mu.RUnlock()

	return s.client.send(ctx, method, path, payload, token)
}

func (s *Session) do(ctx context.Context, method, path string, body, out any) error {
	raw, err := s.Call(ctx, method, path, body)
	if err != nil {
		return err
	}
	return decodePayload(raw, out)
}

// Get calls GET path and decodes a JSON reply into out (which may be nil).
func (s *Session) Get(ctx context.Context, path string, out any) error {
	return s.do(ctx, http.MethodGet, path, nil, out)
}

func (s *Session) Post(ctx context.Context, path string, body, out any) error {
	return s.do(ctx, http.MethodPost, path, body, out)
}

func (s *Session) Patch(ctx context.Context, path string, body, out any) error {
	return s.do(ctx, http.MethodPatch, path, body, out)
}

func (s *Session) Put(ctx context.Context, path string, body, out any) error {
	return s.do(ctx, http.MethodPut, path, body, out)
}

func (s *Session) Delete(ctx context.Context, path string, out any) error {
	return s.do(ctx, http.MethodDelete, path, nil, out)
}
