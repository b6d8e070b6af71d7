package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// ctxKey is the type for context keys to avoid collisions.
type ctxKey string

// userIDKey is the context key for the authenticated user ID.
const userIDKey ctxKey = "userID"

// GetUserID returns the authenticated user ID from context, or a 401 error.
func GetUserID(ctx context.Context) (string, error) {
	userID := userIDFrom(ctx)
	if userID == "" {
		return "", huma.Error401Unauthorized("authentication required")
	}
	return userID, nil
}

// WithUserID returns ctx carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func userIDFrom(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}

// authenticate resolves the caller from a bearer token or, failing that, the
// session cookie. Requests without valid credentials continue anonymously
// and handlers reject them through GetUserID.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
			user, err := s.services.Auth.VerifyAccessToken(ctx, strings.TrimSpace(token))
			if err != nil {
				s.logger.Debug("rejected bearer token", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(ctx, user.ID)))
			return
		}

		if s.opts.Sessions != nil {
			if userID, ok := s.opts.Sessions.UserID(r); ok {
				if user, err := s.services.Auth.CurrentUser(ctx, userID); err == nil {
					ctx = WithUserID(ctx, user.ID)
				}
			}
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
