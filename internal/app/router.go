package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/barq-desk/barq/internal/auth"
	"github.com/barq-desk/barq/internal/notifications"
	"github.com/barq-desk/barq/internal/observability"
	"github.com/barq-desk/barq/internal/platform/httpx"
	"github.com/barq-desk/barq/internal/rbac"
	"github.com/barq-desk/barq/internal/requests"
	"github.com/barq-desk/barq/internal/roles"
	"github.com/barq-desk/barq/internal/shared"
	"github.com/barq-desk/barq/internal/users"
	"github.com/barq-desk/barq/internal/view"
	"github.com/barq-desk/barq/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger               *slog.Logger
	Config               *Config
	SessionManager       *shared.SessionManager
	CSRFManager          *shared.CSRFManager
	AuthHandler          *auth.Handler
	RequestsHandler      *requests.Handler
	DashboardHandler     *view.Handler
	RolesHandler         *roles.Handler
	UsersHandler         *users.Handler
	PermissionsHandler   *rbac.PermissionsHandler
	NotificationsHandler *notifications.Handler
	JobHandler           *jobs.Handler
	Metrics              *observability.Metrics
	// Ready reports dependency health for /healthz. Nil means always ready.
	Ready func(r *http.Request) error
}

type landing struct {
	Service       string `json:"service"`
	Authenticated bool   `json:"authenticated"`
	Login         string `json:"login"`
	From          string `json:"from,omitempty"`
}

// NewRouter constructs the chi.Router with barq defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	if !InTestMode() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if params.Ready != nil {
			if err := params.Ready(r); err != nil {
				params.Logger.Warn("health check failed", slog.Any("error", err))
				httpx.Problem(w, http.StatusServiceUnavailable, http.StatusText(http.StatusServiceUnavailable), "dependency unavailable")
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Sign-in entry point; page routes send anonymous visitors here.
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		_, signedIn := shared.CurrentUserID(r.Context())
		httpx.JSON(w, http.StatusOK, landing{
			Service:       "barq",
			Authenticated: signedIn,
			Login:         "/auth/login",
			From:          r.URL.Query().Get("from"),
		})
	})

	csrf := CSRFProtect(params.Logger, params.CSRFManager)

	r.Route("/auth", func(r chi.Router) {
		r.Use(csrf)
		params.AuthHandler.MountRoutes(r)
	})

	if params.DashboardHandler != nil {
		r.Route("/dashboard", func(r chi.Router) {
			r.Use(auth.RedirectAnonymous)
			params.DashboardHandler.MountRoutes(r)
		})
	}

	perMinute := 30
	if params.Config != nil && params.Config.RateLimitPerMinute > 0 {
		perMinute = params.Config.RateLimitPerMinute / 4
		if perMinute == 0 {
			perMinute = 1
		}
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireSession)
		r.Use(csrf)
		r.Use(MutationLimiter(perMinute))
		r.Route("/requests", params.RequestsHandler.MountRoutes)
		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
		if params.RolesHandler != nil {
			r.Route("/roles", params.RolesHandler.MountRoutes)
		}
		if params.PermissionsHandler != nil {
			r.Route("/permissions", params.PermissionsHandler.MountRoutes)
		}
		if params.NotificationsHandler != nil {
			r.Route("/notifications", params.NotificationsHandler.MountRoutes)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpx.RespondError(w, httpx.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed), "")
	})

	return r
}
