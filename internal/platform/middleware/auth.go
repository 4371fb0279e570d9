package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	id "participation/pkg/domain"
	"participation/pkg/requestcontext"
)

// JWTValidator defines the interface for validating JWT bearer tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator.
type JWTClaims struct {
	ActorID string
	Role    string
}

// RequireAuth rejects requests without a valid bearer token and places the
// actor ID in the request context for services and the change ledger.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const bearerPrefix = "Bearer "
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok || token == "" {
				logger.WarnContext(r.Context(), "missing bearer token",
					"request_id", requestcontext.RequestID(r.Context()),
					"path", r.URL.Path,
				)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(r.Context(), "invalid bearer token",
					"request_id", requestcontext.RequestID(r.Context()),
					"error", err.Error(),
				)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := requestcontext.WithActorID(r.Context(), id.ActorID(claims.ActorID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
