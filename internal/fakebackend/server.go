// Package fakebackend is an in-process double of the vehicle-service tracker
// backend. It serves the same routes, token formats and response envelopes so
// the client can be exercised end to end without the real service.
package fakebackend

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aussiebroadwan/autocheck/pkg/cryptox"
	"github.com/aussiebroadwan/autocheck/pkg/httpx"
	"github.com/aussiebroadwan/autocheck/pkg/jwtx"
	"github.com/aussiebroadwan/autocheck/pkg/slogx"
)

// BasePath is where the API is mounted, matching the real deployment.
const BasePath = "/api"

// Server is the fake backend. The zero value is not usable; call New.
type Server struct {
	mux         *http.ServeMux
	handler     http.Handler
	middlewares []httpx.Middleware

	tokens *jwtx.HS256
	logger *slog.Logger

	accessTTL     time.Duration
	refreshTTL    time.Duration
	rotateRefresh bool
	signInLimit   httpx.RateLimitConfig

	failRefresh atomic.Bool
	stats       counters

	mu   sync.Mutex
	data *dataset
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAccessTTL sets the lifetime of issued access tokens.
func WithAccessTTL(d time.Duration) Option {
	return func(s *Server) { s.accessTTL = d }
}

// WithRefreshTTL sets the lifetime of issued refresh tokens.
func WithRefreshTTL(d time.Duration) Option {
	return func(s *Server) { s.refreshTTL = d }
}

// WithRotateRefresh makes the refresh endpoint issue a new refresh token and
// blacklist the old one.
func WithRotateRefresh(on bool) Option {
	return func(s *Server) { s.rotateRefresh = on }
}

// WithSignInLimit throttles the sign-in route. A zero config disables it.
func WithSignInLimit(cfg httpx.RateLimitConfig) Option {
	return func(s *Server) { s.signInLimit = cfg }
}

// New builds a server with an empty dataset and a random signing secret.
func New(opts ...Option) (*Server, error) {
	secret, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}
	tokens, err := jwtx.NewHS256([]byte(secret))
	if err != nil {
		return nil, err
	}

	s := &Server{
		mux:         http.NewServeMux(),
		tokens:      tokens,
		logger:      slog.Default(),
		accessTTL:   jwtx.DefaultAccessTokenTTL,
		refreshTTL:  jwtx.DefaultRefreshTokenTTL,
		signInLimit: httpx.SignInLimit,
		data:        newDataset(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(s.logger),
		s.countRequests,
	}
	s.routes()
	s.handler = httpx.Chain(s.mux, s.middlewares...)

	return s, nil
}

// ServeHTTP implements http.Handler and applies the global middleware chain.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() {
	authn := httpx.AuthnMiddleware(accessVerifier{s})
	optional := optionalAuthn(accessVerifier{s})

	route := func(pattern string, h http.HandlerFunc, mws ...httpx.Middleware) {
		s.mux.Handle(pattern, httpx.Chain(h, mws...))
	}

	// Auth
	route("POST "+BasePath+"/auth/signup/{$}", s.handleSignUp)
	route("POST "+BasePath+"/auth/signin/{$}", s.handleSignIn, httpx.RateLimitByIP(s.signInLimit))
	route("POST "+BasePath+"/auth/token/refresh/{$}", s.handleRefresh)
	route("POST "+BasePath+"/auth/logout/{$}", s.handleLogout, authn)

	// Users
	route("GET "+BasePath+"/users/current/{$}", s.handleCurrentUser, authn)
	route("GET "+BasePath+"/users/profile/{$}", s.handleCurrentUser, authn)
	route("PATCH "+BasePath+"/users/profile/{$}", s.handleUpdateProfile, authn)

	// Reference data is readable anonymously, like the backend's
	// IsAuthenticatedOrReadOnly. A bad token is still rejected.
	route("GET "+BasePath+"/cars/brands/{$}", s.handleListBrands, optional)
	route("GET "+BasePath+"/cars/models/{$}", s.handleListModels, optional)

	// Cars
	route("GET "+BasePath+"/cars/{$}", s.handleListCars, authn)
	route("POST "+BasePath+"/cars/{$}", s.handleCreateCar, authn)
	route("DELETE "+BasePath+"/cars/{id}/{$}", s.handleDeleteCar, authn)

	// Services
	route("GET "+BasePath+"/cars/services/{$}", s.handleListServices, authn)
	route("POST "+BasePath+"/cars/services/{$}", s.handleCreateService, authn)
	route("PATCH "+BasePath+"/cars/services/{id}/{$}", s.handleUpdateService, authn)
	route("PUT "+BasePath+"/cars/services/{id}/{$}", s.handleReplaceService, authn)
	route("DELETE "+BasePath+"/cars/services/{id}/{$}", s.handleDeleteService, authn)

	s.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteDetail(w, http.StatusNotFound, "Not found.")
	})
}

// ============================================================================
// Test controls
// ============================================================================

// SetFailRefresh makes every refresh request fail with 401 while on.
func (s *Server) SetFailRefresh(on bool) { s.failRefresh.Store(on) }

// InvalidateAccessTokens makes every access token issued so far answer 401,
// as if they had all expired.
func (s *Server) InvalidateAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.data.activeAccess)
}

// IsBlacklisted reports whether refreshToken was revoked by logout or
// rotation.
func (s *Server) IsBlacklisted(refreshToken string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data.blacklist[cryptox.FingerprintToken(refreshToken)]
	return ok
}

// Stats is a snapshot of request counters.
type Stats struct {
	Requests        int64
	SignUps         int64
	SignIns         int64
	Refreshes       int64
	RefreshFailures int64
	Logouts         int64
}

type counters struct {
	requests        atomic.Int64
	signUps         atomic.Int64
	signIns         atomic.Int64
	refreshes       atomic.Int64
	refreshFailures atomic.Int64
	logouts         atomic.Int64
}

func (s *Server) Stats() Stats {
	return Stats{
		Requests:        s.stats.requests.Load(),
		SignUps:         s.stats.signUps.Load(),
		SignIns:         s.stats.signIns.Load(),
		Refreshes:       s.stats.refreshes.Load(),
		RefreshFailures: s.stats.refreshFailures.Load(),
		Logouts:         s.stats.logouts.Load(),
	}
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.stats.requests.Add(1)
		next.ServeHTTP(w, r)
	})
}

// ============================================================================
// Authentication
// ============================================================================

var errAccessRevoked = errors.New("fakebackend: access token no longer active")

// accessVerifier checks the signature and additionally that the token has not
// been invalidated through InvalidateAccessTokens.
type accessVerifier struct{ s *Server }

func (v accessVerifier) Verify(token, wantType string) (*jwtx.Claims, error) {
	claims, err := v.s.tokens.Verify(token, wantType)
	if err != nil {
		return nil, err
	}

	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if _, ok := v.s.data.activeAccess[claims.ID]; !ok {
		return nil, errAccessRevoked
	}
	return claims, nil
}

// optionalAuthn authenticates the request only when it carries an
// Authorization header.
func optionalAuthn(v httpx.AccessVerifier) httpx.Middleware {
	authn := httpx.AuthnMiddleware(v)
	return func(next http.Handler) http.Handler {
		withAuth := authn(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}
			withAuth.ServeHTTP(w, r)
		})
	}
}
