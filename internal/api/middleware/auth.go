package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/adityaxdubey/whisper-rebellion/internal/auth"
)

type contextKey string

const userIDContextKey contextKey = "user_id"

// AuthMiddleware validates bearer tokens on authenticated endpoints.
type AuthMiddleware struct {
	tokens *auth.Tokens
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(tokens *auth.Tokens) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// RequireAuth verifies the Authorization header and stores the user id in
// the request context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			jsonError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		userID, err := m.tokens.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			jsonError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		if u, ok := r.Context().Value(logUserKey).(*logUser); ok {
			u.id = userID
		}

		ctx := context.WithValue(r.Context(), userIDContextKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserID retrieves the authenticated user id from the request context.
// Returns 0 when the request was not authenticated.
func GetUserID(ctx context.Context) int64 {
	userID, ok := ctx.Value(userIDContextKey).(int64)
	if !ok {
		return 0
	}
	return userID
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
