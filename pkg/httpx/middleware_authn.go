package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/autocheck/pkg/jwtx"
	"github.com/aussiebroadwan/autocheck/pkg/slogx"
)

// AccessVerifier validates an access token and returns its claims.
type AccessVerifier interface {
	Verify(token, wantType string) (*jwtx.Claims, error)
}

// AuthnMiddleware rejects requests without a valid bearer access token with
// 401 and the backend's {"detail": ...} body.
func AuthnMiddleware(v AccessVerifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			authz := r.Header.Get("Authorization")
			if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
				writeBearerError(w, "Authentication credentials were not provided.")
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))

			claims, err := v.Verify(raw, jwtx.TokenTypeAccess)
			if err != nil {
				log.Debug("jwt verify failed", "err", err)
				writeBearerError(w, "Given token not valid for any token type")
				return
			}

			next.ServeHTTP(w, r.WithContext(contextWithAuth(ctx, claims)))
		})
	}
}

func contextWithAuth(ctx context.Context, c *jwtx.Claims) context.Context {
	ctx = context.WithValue(ctx, CtxKeyUserID, c.UserID)
	ctx = context.WithValue(ctx, CtxKeyUsername, c.Username)
	return ctx
}

// RFC 6750-compliant challenge plus the backend's JSON detail body.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	WriteDetail(w, http.StatusUnauthorized, desc)
}
