package httpx

import (
	"context"
	"net/http"

	"github.com/aussiebroadwan/mentorlink/pkg/slogx"
)

// Authenticator resolves a bearer token to a Principal. Implementations are
// expected to check signature, expiry and revocation.
type Authenticator interface {
	AuthenticateBearer(ctx context.Context, token string) (Principal, error)
}

// AuthnMiddleware rejects requests without a valid bearer token and stores
// the Principal in the request context.
func AuthnMiddleware(a Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			raw, ok := BearerToken(r)
			if !ok {
				writeBearerError(w, "missing bearer token")
				return
			}

			p, err := a.AuthenticateBearer(ctx, raw)
			if err != nil {
				slogx.FromContext(ctx).Warn("bearer authentication failed", "err", err)
				writeBearerError(w, "the access token is invalid, expired or revoked")
				return
			}

			ctx = slogx.With(WithPrincipal(ctx, p), "user_id", p.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RFC 6750 error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteJSON(w, http.StatusUnauthorized, map[string]string{
		"error":             "invalid_token",
		"error_description": desc,
	})
}
