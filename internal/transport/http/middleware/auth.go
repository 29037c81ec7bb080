package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/fitgrid/auth-service/internal/service/session"
	"github.com/fitgrid/auth-service/pkg/auth"
	"github.com/fitgrid/auth-service/pkg/httputil"
)

type contextKey string

const claimsKey contextKey = "auth_claims"

// AuthMiddleware wraps the next handler and validates the bearer access
// token. Access tokens are stateless; signature + expiry + issuer/audience
// is the whole check, no store lookup.
func AuthMiddleware(next http.HandlerFunc, svc *session.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			httputil.WriteError(w, http.StatusUnauthorized, "unauthorized", "Missing or malformed authorization header")
			return
		}

		claims, err := svc.VerifyAccessToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			httputil.WriteError(w, http.StatusUnauthorized, "invalid_token", "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// ClaimsFromContext returns the access claims injected by AuthMiddleware.
func ClaimsFromContext(ctx context.Context) (*auth.AccessClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(*auth.AccessClaims)
	return claims, ok
}
