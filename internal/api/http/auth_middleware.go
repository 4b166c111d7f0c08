package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type contextKey string

const authUserKey contextKey = "authUser"

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
			return
		}
		userID, err := s.verifier.Verify(r.Context(), token)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), authUserKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func authUserID(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(authUserKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

func extractToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	}
	// EventSource cannot set headers; allow the token in the query for the
	// stream endpoint.
	return r.URL.Query().Get("token")
}
