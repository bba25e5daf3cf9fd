package middleware

import (
	"context"
	"net/http"
	"strings"

	"talk-lab/auth"
)

type contextKey string

const (
	UserIDKey      contextKey = "user_id"
	DisplayNameKey contextKey = "display_name"
)

// RequireAuth validates the Bearer token and injects the user identity into
// the request context for downstream handlers.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFrom(r)
		if !ok {
			http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), claims)))
	})
}

// OptionalAuth injects the user identity when a valid token is present and
// lets the request through as an anonymous guest otherwise. Room access
// rules decide what a guest may see.
func OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims, ok := claimsFrom(r); ok {
			r = r.WithContext(withIdentity(r.Context(), claims))
		}
		next.ServeHTTP(w, r)
	})
}

func claimsFrom(r *http.Request) (*auth.CustomClaims, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, false
	}
	// Expecting the standard "Bearer <token>" format
	tokenStr := strings.TrimPrefix(header, "Bearer ")

	claims, err := auth.ValidateToken(tokenStr)
	if err != nil {
		return nil, false
	}
	return claims, true
}

func withIdentity(ctx context.Context, claims *auth.CustomClaims) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
	return context.WithValue(ctx, DisplayNameKey, claims.DisplayName)
}

// UserID returns the authenticated user id, empty for guests.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(UserIDKey).(string)
	return id
}
