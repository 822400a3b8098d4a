package rbac

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/barq-desk/barq/internal/platform/httpx"
	"github.com/barq-desk/barq/internal/shared"
)

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Gate   *Gate
	Logger *slog.Logger
}

// RequireAny ensures the current user has at least one of the required permissions.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	return m.require(perms, m.Gate.Check)
}

// RequireAll ensures the current user has all required permissions.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	return m.require(perms, m.Gate.CheckAll)
}

type checkFunc func(ctx context.Context, userID int64, required ...string) (Subject, bool, error)

func (m Middleware) require(perms []string, check checkFunc) func(http.Handler) http.Handler {
	required := NewPermissionSet(perms...).Slice()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(required) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			userID, ok := shared.CurrentUserID(r.Context())
			if !ok {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			_, allowed, err := check(r.Context(), userID, required...)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("rbac check", slog.Int64("user_id", userID), slog.Any("error", err))
				}
				httpx.RespondError(w, err)
				return
			}
			if !allowed {
				httpx.RespondError(w, httpx.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
