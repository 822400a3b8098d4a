package notifications

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/barq-desk/barq/internal/platform/httpx"
	"github.com/barq-desk/barq/internal/rbac"
	"github.com/barq-desk/barq/internal/shared"
)

// Handler exposes the inbox endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers notification routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermNotificationReadAll))
		r.Get("/", h.inbox)
		r.Post("/read-all", h.readAll)
	})
}

func (h *Handler) inbox(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.CurrentUserID(r.Context())
	inbox, err := h.service.Inbox(r.Context(), userID)
	if err != nil {
		h.logger.Error("load inbox", slog.Int64("user_id", userID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inbox)
}

func (h *Handler) readAll(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.CurrentUserID(r.Context())
	marked, err := h.service.MarkAllRead(r.Context(), userID)
	if err != nil {
		h.logger.Error("mark notifications read", slog.Int64("user_id", userID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"marked": marked})
}
