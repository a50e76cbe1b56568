/*
Package apisdk is the client for the vehicle-service tracker backend.

# SDKClient vs Session

  - SDKClient: the transport plus the auth endpoints
    (sign-up, sign-in, token refresh, logout)
  - Session: the signed-in user's credentials and every authenticated call

	client := apisdk.NewSDKClient("http://127.0.0.1:8000/api",
		apisdk.WithTimeout(30*time.Second),
	)

	session, err := client.NewSession(ctx, store)
	if err != nil {
		return err
	}

	if err := session.SignIn(ctx, "alice", "secret"); err != nil {
		return err
	}

	cars, err := session.ListCars(ctx)

# Refresh and retry

Every Session call attaches "Authorization: Bearer <access>" when an access
token is held. When the backend answers 401 the session refreshes once and
retries the call once with the new token. If the refresh fails, or there is no
refresh token, the credentials are cleared from memory and from the store, the
expired handlers run, and the call fails with ErrSessionExpired. A 401 on the
retry is returned as a plain ErrAPI and never starts another refresh.

Concurrent refreshes are coalesced into one request unless
WithCoalescedRefresh(false) is given. An access token that is a JWT close to its
exp claim is refreshed before the call is sent. That counts as the call's one
refresh: a 401 afterwards is final, or means the session expired when that
refresh failed.

An expired session matches ErrSessionExpired only. The refresh failure behind
it is kept as text in APIError.Err.

Logout revokes the refresh token on the backend. The revoke route wants an
access token, so a restored session refreshes first.

# Errors

Every failure is an *APIError. Branch on its kind with errors.Is:

	err := session.Patch(ctx, "/cars/services/7/", body, &svc)
	switch {
	case errors.Is(err, apisdk.ErrSessionExpired):
		// credentials are gone, sign in again
	case errors.Is(err, apisdk.ErrValidation):
		var apiErr *apisdk.APIError
		errors.As(err, &apiErr)
		fmt.Println(apiErr.Fields)
	case errors.Is(err, apisdk.ErrNetwork):
		// unreachable or timed out
	}
*/
package apisdk
