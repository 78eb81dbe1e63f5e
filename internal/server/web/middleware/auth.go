package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/openlearn/tenantd/internal/server/auth"
	"github.com/openlearn/tenantd/pkg/logger"
)

type contextKey string

const (
	claimsContextKey contextKey = "claims"
	apiKeyContextKey contextKey = "api_key"
)

// Claims represents JWT claims for an admin session.
type Claims struct {
	Email  string `json:"email"`
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// AuthMiddleware authenticates management API calls, either with an admin
// JWT or with a machine API key.
type AuthMiddleware struct {
	jwtSecret []byte
	apiKeys   *auth.APIKeyService
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(jwtSecret string, apiKeys *auth.APIKeyService) *AuthMiddleware {
	return &AuthMiddleware{
		jwtSecret: []byte(jwtSecret),
		apiKeys:   apiKeys,
	}
}

// Protect wraps a handler with authentication. Machine clients send an
// X-API-Key header and must carry the given scope; humans send a Bearer JWT
// from the login endpoint.
func (m *AuthMiddleware) Protect(scope string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key := r.Header.Get("X-API-Key"); key != "" {
			m.protectWithAPIKey(scope, key, next, w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid authorization header", http.StatusUnauthorized)
			return
		}

		token, err := jwt.ParseWithClaims(parts[1], &Claims{}, func(token *jwt.Token) (interface{}, error) {
			return m.jwtSecret, nil
		})
		if err != nil || !token.Valid {
			logger.ErrorEvent().Err(err).Msg("Invalid token")
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		claims, ok := token.Claims.(*Claims)
		if !ok {
			http.Error(w, "Invalid token claims", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) protectWithAPIKey(scope, key string, next http.Handler, w http.ResponseWriter, r *http.Request) {
	apiKey, err := m.apiKeys.ValidateKey(r.Context(), key)
	if err != nil {
		http.Error(w, "Invalid API key", http.StatusUnauthorized)
		return
	}
	if scope != "" && !apiKey.HasScope(scope) {
		http.Error(w, "Insufficient scope", http.StatusForbidden)
		return
	}

	ctx := context.WithValue(r.Context(), apiKeyContextKey, apiKey.Name)
	next.ServeHTTP(w, r.WithContext(ctx))
}

// GenerateToken generates a JWT for an authenticated admin.
func (m *AuthMiddleware) GenerateToken(userID, email string) (string, error) {
	claims := &Claims{
		Email:  email,
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.jwtSecret)
}

// ClaimsFromContext retrieves admin claims from a request context, or nil
// for API key callers.
func ClaimsFromContext(ctx context.Context) *Claims {
	if claims, ok := ctx.Value(claimsContextKey).(*Claims); ok {
		return claims
	}
	return nil
}

// CallerFromContext returns a caller identity usable in logs, for both
// admin and API key callers.
func CallerFromContext(ctx context.Context) string {
	if claims := ClaimsFromContext(ctx); claims != nil {
		return claims.Email
	}
	if name, ok := ctx.Value(apiKeyContextKey).(string); ok {
		return "api-key:" + name
	}
	return ""
}
