package erptest

import (
	"context"
	"net/http"
	"strings"

	"github.com/anujChoudhary-1712/erp-fn-sub001/jwt"
)

type claimsContextKey struct{}

// ClaimsFromContext returns the claims of the authenticated caller.
func ClaimsFromContext(ctx context.Context) (*jwt.AccessClaims, bool) {
	c, ok := ctx.Value(claimsContextKey{}).(*jwt.AccessClaims)
	return c, ok
}

// guard records every /api request and rejects those without a live token.
func (b *Backend) guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.record(r)

		if b.alwaysUnauthorized.Load() {
			writeUnauthorized(w, "unauthorized")
			return
		}

		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeUnauthorized(w, "missing bearer token")
			return
		}
		claims, err := b.manager.ParseAccess(token)
		if err != nil {
			writeUnauthorized(w, "invalid token")
			return
		}
		if b.isRevoked(claims.ID) {
			writeUnauthorized(w, "token revoked")
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}
	token := value[len(bearer):]
	if token == "" {
		return "", false
	}
	return token, true
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusUnauthorized, map[string]string{"error": msg})
}
