package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// TokenValidator checks whether an admin session token is live.
// service.AdminService satisfies it.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (bool, error)
}

// AdminAuth returns middleware that gates the admin surface on a valid
// session token, taken from the X-Admin-Token header or an Authorization
// Bearer value.
func AdminAuth(tokens TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				writeUnauthorized(w, "missing admin token")
				return
			}

			ok, err := tokens.Validate(r.Context(), token)
			if err != nil {
				logger.ErrorContext(r.Context(), "admin token validation failed",
					slog.String("error", err.Error()),
				)
				writeUnauthorized(w, "token validation unavailable")
				return
			}
			if !ok {
				writeUnauthorized(w, "invalid admin token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractToken looks for a token in the X-Admin-Token header or in the
// Authorization header (Bearer scheme).
func extractToken(r *http.Request) string {
	if key := r.Header.Get("X-Admin-Token"); key != "" {
		return strings.TrimSpace(key)
	}
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return ""
}

// writeUnauthorized sends a 401 response with a JSON error body.
func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
