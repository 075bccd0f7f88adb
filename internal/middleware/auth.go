// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// AuthUserIDKey is the context key for the verified auth user ID.
	AuthUserIDKey ContextKey = "auth_user_id"
	// AuthEmailKey is the context key for the verified email.
	AuthEmailKey ContextKey = "auth_email"
)

// Claims represents JWT claims. Subject carries the auth user ID.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

func parseToken(jwtSecret, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// OptionalAuth verifies a Bearer token when one is supplied and attaches
// the identity to the context. Anonymous requests pass through; an
// invalid token is treated as anonymous, never trusted.
func OptionalAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := bearerToken(r); token != "" {
				if claims, err := parseToken(jwtSecret, token); err == nil {
					ctx := context.WithValue(r.Context(), AuthUserIDKey, claims.Subject)
					ctx = context.WithValue(ctx, AuthEmailKey, claims.Email)
					r = r.WithContext(ctx)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth rejects requests without a valid Bearer token.
func RequireAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				http.Error(w, `{"error":"Unauthorized - Please log in first"}`, http.StatusUnauthorized)
				return
			}
			claims, err := parseToken(jwtSecret, token)
			if err != nil {
				http.Error(w, `{"error":"Unauthorized - Please log in first"}`, http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), AuthUserIDKey, claims.Subject)
			ctx = context.WithValue(ctx, AuthEmailKey, claims.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAuthUserID gets the verified auth user ID from context.
func GetAuthUserID(ctx context.Context) string {
	if v := ctx.Value(AuthUserIDKey); v != nil {
		return v.(string)
	}
	return ""
}

// GetAuthEmail gets the verified email from context.
func GetAuthEmail(ctx context.Context) string {
	if v := ctx.Value(AuthEmailKey); v != nil {
		return v.(string)
	}
	return ""
}
