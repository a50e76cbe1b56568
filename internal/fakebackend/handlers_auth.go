package fakebackend

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/autocheck/pkg/cryptox"
	"github.com/aussiebroadwan/autocheck/pkg/httpx"
	"github.com/aussiebroadwan/autocheck/pkg/jwtx"
	"github.com/aussiebroadwan/autocheck/pkg/slogx"
	"github.com/golang-jwt/jwt/v5"
)

const (
	detailBadCredentials = "No active account found with the given credentials"
	detailTokenInvalid   = "Token is invalid or expired"
)

type tokenPair struct {
	Refresh string `json:"refresh,omitempty"`
	Access  string `json:"access"`
}

// issueAccess signs an access token and marks it active. Callers hold s.mu.
func (s *Server) issueAccess(u *user) (string, error) {
	claims := jwtx.NewAccessClaims(u.ID, u.Username, s.accessTTL, time.Now())
	token, err := s.tokens.Sign(claims)
	if err != nil {
		return "", err
	}
	s.data.activeAccess[claims.ID] = struct{}{}
	return token, nil
}

func (s *Server) issueRefresh(u *user) (string, error) {
	now := time.Now()
	return s.tokens.Sign(jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.refreshTTL)),
			ID:        jwtx.NewJTI(),
		},
		TokenType: jwtx.TokenTypeRefresh,
		UserID:    u.ID,
	})
}

const minPasswordLength = 8

type signUpRequest struct {
	Username       string `json:"username"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	RepeatPassword string `json:"repeatPassword"`
}

func (req signUpRequest) validate() fieldErrors {
	errs := fieldErrors{}
	errs.required("username", req.Username == "")
	errs.required("email", req.Email == "")
	errs.required("password", req.Password == "")
	errs.required("repeatPassword", req.RepeatPassword == "")

	if req.Email != "" && !strings.Contains(req.Email, "@") {
		errs.add("email", "Enter a valid email address.")
	}
	for field, v := range map[string]string{"password": req.Password, "repeatPassword": req.RepeatPassword} {
		if v != "" && len(v) < minPasswordLength {
			errs.add(field, fmt.Sprintf("Ensure this field has at least %d characters.", minPasswordLength))
		}
	}
	if errs.any() {
		return errs
	}

	if req.Password != req.RepeatPassword {
		errs.add("password", "Passwords must match.")
	} else if strings.Trim(req.Password, "0123456789") == "" {
		errs.add("password", "This password is entirely numeric.")
	}
	return errs
}

// POST /auth/signup/ {username, first_name, last_name, email, password, repeatPassword}
// -> 201 {status, user{id, username, email}, tokens{refresh, access}}
func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())
	s.stats.signUps.Add(1)

	var req signUpRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteDetail(w, http.StatusBadRequest, "JSON parse error")
		return
	}
	if errs := req.validate(); errs.any() {
		httpx.WriteJSON(w, http.StatusBadRequest, errs)
		return
	}

	hash, err := cryptox.HashPassword(req.Password)
	if err != nil {
		log.Error("failed to hash password", "err", err)
		httpx.WriteDetail(w, http.StatusInternalServerError, "A server error occurred.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.data.addUser(req.Username, hash, WithEmail(req.Email), WithName(req.FirstName, req.LastName))
	if u == nil {
		httpx.WriteJSON(w, http.StatusBadRequest, fieldErrors{
			"username": {"A user with that username already exists."},
		})
		return
	}

	access, err := s.issueAccess(u)
	if err != nil {
		log.Error("failed to issue access token", "err", err)
		httpx.WriteDetail(w, http.StatusInternalServerError, "A server error occurred.")
		return
	}
	refresh, err := s.issueRefresh(u)
	if err != nil {
		log.Error("failed to issue refresh token", "err", err)
		httpx.WriteDetail(w, http.StatusInternalServerError, "A server error occurred.")
		return
	}

	log.Info("user signed up", "username", u.Username)
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"status": "ok",
		"user": map[string]any{
			"id":       u.ID,
			"username": u.Username,
			"email":    u.Email,
		},
		"tokens": tokenPair{Refresh: refresh, Access: access},
	})
}

// POST /auth/signin/ {username, password} -> {refresh, access}
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())
	s.stats.signIns.Add(1)

	var req struct {
		Username *string `json:"username"`
		Password *string `json:"password"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteDetail(w, http.StatusBadRequest, "JSON parse error")
		return
	}

	errs := fieldErrors{}
	errs.required("username", req.Username == nil || *req.Username == "")
	errs.required("password", req.Password == nil || *req.Password == "")
	if errs.any() {
		httpx.WriteJSON(w, http.StatusBadRequest, errs)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.data.userByName(*req.Username)
	if u == nil {
		httpx.WriteDetail(w, http.StatusUnauthorized, detailBadCredentials)
		return
	}
	if err := cryptox.VerifyPassword(*req.Password, u.PasswordHash); err != nil {
		log.Info("sign-in rejected", "username", u.Username)
		httpx.WriteDetail(w, http.StatusUnauthorized, detailBadCredentials)
		return
	}

	access, err := s.issueAccess(u)
	if err != nil {
		log.Error("failed to issue access token", "err", err)
		httpx.WriteDetail(w, http.StatusInternalServerError, "A server error occurred.")
		return
	}
	refresh, err := s.issueRefresh(u)
	if err != nil {
		log.Error("failed to issue refresh token", "err", err)
		httpx.WriteDetail(w, http.StatusInternalServerError, "A server error occurred.")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokenPair{Refresh: refresh, Access: access})
}

// POST /auth/token/refresh/ {refresh} -> {access[, refresh]}
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())
	s.stats.refreshes.Add(1)

	var req struct {
		Refresh *string `json:"refresh"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteDetail(w, http.StatusBadRequest, "JSON parse error")
		return
	}
	if req.Refresh == nil || *req.Refresh == "" {
		errs := fieldErrors{}
		errs.required("refresh", true)
		httpx.WriteJSON(w, http.StatusBadRequest, errs)
		return
	}

	reject := func(reason string) {
		s.stats.refreshFailures.Add(1)
		log.Info("refresh rejected", "reason", reason)
		httpx.WriteJSON(w, http.StatusUnauthorized, map[string]string{
			"detail": detailTokenInvalid,
			"code":   "token_not_valid",
		})
	}

	if s.failRefresh.Load() {
		reject("forced")
		return
	}

	claims, err := s.tokens.Verify(*req.Refresh, jwtx.TokenTypeRefresh)
	if err != nil {
		reject(err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fingerprint := cryptox.FingerprintToken(*req.Refresh)
	if _, revoked := s.data.blacklist[fingerprint]; revoked {
		reject("blacklisted")
		return
	}

	u, ok := s.data.users[claims.UserID]
	if !ok {
		reject("unknown user")
		return
	}

	access, err := s.issueAccess(u)
	if err != nil {
		log.Error("failed to issue access token", "err", err)
		httpx.WriteDetail(w, http.StatusInternalServerError, "A server error occurred.")
		return
	}

	resp := tokenPair{Access: access}
	if s.rotateRefresh {
		refresh, err := s.issueRefresh(u)
		if err != nil {
			log.Error("failed to issue refresh token", "err", err)
			httpx.WriteDetail(w, http.StatusInternalServerError, "A server error occurred.")
			return
		}
		s.data.blacklist[fingerprint] = time.Now()
		resp.Refresh = refresh
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}

// POST /auth/logout/ {refresh} -> {"status": "ok"}
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.stats.logouts.Add(1)

	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Refresh == "" {
		httpx.WriteDetail(w, http.StatusBadRequest, "Refresh token is required")
		return
	}

	if _, err := s.tokens.Verify(req.Refresh, jwtx.TokenTypeRefresh); err != nil {
		httpx.WriteDetail(w, http.StatusBadRequest, "Invalid refresh token")
		return
	}

	s.mu.Lock()
	s.data.blacklist[cryptox.FingerprintToken(req.Refresh)] = time.Now()
	s.mu.Unlock()

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
