package apisdk

import (
	"context"
	"errors"
	"net/http"
)

// Backend auth routes, relative to the base URL.
const (
	PathSignUp       = "/auth/signup/"
	PathSignIn       = "/auth/signin/"
	PathTokenRefresh = "/auth/token/refresh/"
	PathLogout       = "/auth/logout/"
)

var errEmptyAccess = errors.New("apisdk: token response carries no access token")

// SignUp registers an account. The reply carries a token pair for it.
func (c *SDKClient) SignUp(ctx context.Context, req SignUpRequest) (*SignUpResponse, error) {
	var resp SignUpResponse
	if err := c.sendJSON(ctx, http.MethodPost, PathSignUp, req, "", &resp); err != nil {
		return nil, err
	}
	if resp.Tokens.Access == "" {
		return nil, errEmptyAccess
	}
	return &resp, nil
}

// SignInGrant exchanges a username and password for a token pair.
// A rejected login (401) is an ordinary KindAPI error.
func (c *SDKClient) SignInGrant(ctx context.Context, username, password string) (*TokenPair, error) {
	var pair TokenPair
	err := c.sendJSON(ctx, http.MethodPost, PathSignIn, SignInRequest{
		Username: username,
		Password: password,
	}, "", &pair)
	if err != nil {
		return nil, err
	}
	if pair.Access == "" {
		return nil, errEmptyAccess
	}
	return &pair, nil
}

// RefreshGrant requests a new access token using a refresh token. The reply
// carries a new refresh token only when the backend rotates them.
func (c *SDKClient) RefreshGrant(ctx context.Context, refreshToken string) (*TokenPair, error) {
	var pair TokenPair
	err := c.sendJSON(ctx, http.MethodPost, PathTokenRefresh, RefreshRequest{
		Refresh: refreshToken,
	}, "", &pair)
	if err != nil {
		return nil, err
	}
	if pair.Access == "" {
		return nil, errEmptyAccess
	}
	return &pair, nil
}

// RevokeRefresh blacklists a refresh token. The backend requires a valid
// access token for this route.
func (c *SDKClient) RevokeRefresh(ctx context.Context, accessToken, refreshToken string) error {
	return c.sendJSON(ctx, http.MethodPost, PathLogout, RefreshRequest{
		Refresh: refreshToken,
	}, accessToken, nil)
}
