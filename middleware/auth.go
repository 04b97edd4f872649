package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Dr-xiaoming/tasks/utils"
)

// AuthMiddleware requires a valid Bearer access token and injects the
// authenticated (userID, username) pair into the request context.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authz := r.Header.Get("Authorization")
		if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
			utils.WriteError(w, http.StatusUnauthorized, utils.CodeUnauthorized, "Unauthorized")
			return
		}
		tokenStr := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
		claims, err := utils.ValidateAccessToken(tokenStr)
		if err != nil {
			if strings.Contains(err.Error(), "expired") {
				utils.WriteError(w, http.StatusUnauthorized, utils.CodeUnauthorized, "Session expired, please log in again")
				return
			}
			utils.WriteError(w, http.StatusUnauthorized, utils.CodeUnauthorized, "Invalid token")
			return
		}

		userID, ok := utils.ClaimsUserID(claims)
		if !ok || userID == 0 {
			utils.WriteError(w, http.StatusUnauthorized, utils.CodeUnauthorized, "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), utils.UserIDKey, userID)
		if username, ok := claims["username"].(string); ok {
			ctx = context.WithValue(ctx, utils.UsernameKey, username)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuthMiddleware injects the user id when a valid token is present
// and otherwise lets the request through anonymously. Used on read paths
// that behave differently for a known viewer (task list, requirement list).
func OptionalAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authz := r.Header.Get("Authorization")
		if authz != "" && strings.HasPrefix(authz, "Bearer ") {
			tokenStr := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
			if claims, err := utils.ValidateAccessToken(tokenStr); err == nil {
				if userID, ok := utils.ClaimsUserID(claims); ok && userID != 0 {
					ctx := context.WithValue(r.Context(), utils.UserIDKey, userID)
					if username, ok := claims["username"].(string); ok {
						ctx = context.WithValue(ctx, utils.UsernameKey, username)
					}
					r = r.WithContext(ctx)
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}
