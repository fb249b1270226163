package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// HeaderXUserID carries the authenticated user identity, set by the edge
// proxy after token verification.
const HeaderXUserID = "X-User-ID"

// Auth returns a middleware that requires an X-User-ID header and stores
// the parsed user ID in context. Requests without a valid header get 401.
func Auth() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(HeaderXUserID)
			if raw == "" {
				writeError(w, http.StatusUnauthorized,
					"authentication required", "UNAUTHORIZED")
				return
			}

			userID, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusUnauthorized,
					"invalid user identity", "UNAUTHORIZED")
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
