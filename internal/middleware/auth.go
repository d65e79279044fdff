package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/bryanwahyu/codescan/internal/domain/apperr"
	"github.com/bryanwahyu/codescan/internal/domain/users"
)

type contextKey string

const userIDKey contextKey = "user_id"

// TokenValidator resolves a bearer token to its user.
type TokenValidator interface {
	Validate(token string) (users.UserID, error)
}

// BearerAuth requires "Authorization: Bearer <token>". A missing header is
// 401, a token that does not validate is 403.
func BearerAuth(v TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := strings.TrimSpace(r.Header.Get("Authorization"))
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				WriteError(w, http.StatusUnauthorized, "missing bearer token", "")
				return
			}

			uid, err := v.Validate(strings.TrimSpace(token))
			if err != nil {
				status := http.StatusForbidden
				if apperr.KindOf(err) == apperr.KindUnauthorized {
					status = http.StatusUnauthorized
				}
				WriteError(w, status, "invalid or expired token", "")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), uid)))
		})
	}
}

func WithUserID(ctx context.Context, id users.UserID) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFromContext returns the authenticated user set by BearerAuth.
func UserIDFromContext(ctx context.Context) (users.UserID, bool) {
	id, ok := ctx.Value(userIDKey).(users.UserID)
	return id, ok && id != ""
}
