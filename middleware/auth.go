package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"go-storefront/utils"
)

// Key type for context
type contextKey string

const UserContextKey = contextKey("user")

// ClaimsFromContext returns the claims stored by AuthMiddleware.
func ClaimsFromContext(ctx context.Context) (*utils.Claims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*utils.Claims)
	return claims, ok && claims != nil
}

// AuthMiddleware verifies JWT tokens and attaches user information to the context
func AuthMiddleware(tokens *utils.JWTManager) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				utils.WriteError(w, http.StatusUnauthorized, "unauthorized", "Access token required", nil)
				return
			}

			parts := strings.Fields(authHeader)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				utils.WriteError(w, http.StatusUnauthorized, "unauthorized", "Invalid Authorization header format", nil)
				return
			}

			claims, err := tokens.ParseJWT(parts[1])
			if err != nil {
				LoggerFromContext(r.Context()).WithError(err).Debug("rejected bearer token")
				utils.WriteError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token", nil)
				return
			}

			// Attach user information to the request context
			ctx := context.WithValue(r.Context(), UserContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminMiddleware ensures that the user has admin privileges. It must run after AuthMiddleware.
func AdminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			utils.WriteError(w, http.StatusUnauthorized, "unauthorized", "Access token required", nil)
			return
		}
		if !claims.IsAdmin {
			utils.WriteError(w, http.StatusForbidden, "forbidden", "Admin access required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
