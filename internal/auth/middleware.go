package auth

import (
	"net/http"
	"net/url"

	"github.com/barq-desk/barq/internal/platform/httpx"
	"github.com/barq-desk/barq/internal/shared"
)

// RequireSession answers 401 for requests without a signed-in session.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := shared.CurrentUserID(r.Context()); !ok {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RedirectAnonymous sends page visitors without a session to the sign-in
// page, remembering where they were headed.
func RedirectAnonymous(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := shared.CurrentUserID(r.Context()); !ok {
			target := "/?from=" + url.QueryEscape(r.URL.RequestURI())
			http.Redirect(w, r, target, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}
