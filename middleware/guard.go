package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/hybridAuth/jwt"
)

// Verifier checks a bearer token. *jwt.Manager satisfies it.
type Verifier interface {
	Verify(token string) (*jwt.IDClaims, error)
}

type claimsContextKey struct{}
type tokenContextKey struct{}

// ClaimsFromContext returns the claims stored by [RequireBearer].
func ClaimsFromContext(ctx context.Context) (*jwt.IDClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*jwt.IDClaims)
	return claims, ok
}

// TokenFromContext returns the raw bearer token accepted by [RequireBearer].
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenContextKey{}).(string)
	return token, ok
}

// RequireBearer rejects requests without a well-formed bearer token with 401.
// When verifier is non-nil the token must also verify, and the resulting
// claims are placed in the request context.
func RequireBearer(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), tokenContextKey{}, token)
			if verifier != nil {
				claims, err := verifier.Verify(token)
				if err != nil {
					unauthorized(w)
					return
				}
				ctx = context.WithValue(ctx, claimsContextKey{}, claims)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}

	return token, true
}
