package users

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/barq-desk/barq/internal/auth"
	"github.com/barq-desk/barq/internal/platform/httpx"
	"github.com/barq-desk/barq/internal/rbac"
	"github.com/barq-desk/barq/internal/shared"
)

// Handler manages user management endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	rbac     rbac.Middleware
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, validate: validator.New()}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAny(shared.PermUserRead)).Get("/", h.listUsers)
	r.With(h.rbac.RequireAny(shared.PermUserCreate)).Post("/", h.createUser)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("list users failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, users)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in.Username = auth.NormalizeUsername(in.Username)
	if err := h.validate.Struct(in); err != nil {
		httpx.RespondError(w, httpx.NewError(httpx.ErrValidation, validationMessage(err)))
		return
	}
	actorID, _ := shared.CurrentUserID(r.Context())
	user, err := h.service.CreateUser(r.Context(), actorID, in)
	if err != nil {
		if httpx.StatusOf(err) >= http.StatusInternalServerError {
			h.logger.Error("create user failed", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Location", "/users/"+strconv.FormatInt(user.ID, 10))
	httpx.JSON(w, http.StatusCreated, user)
}

func validationMessage(err error) string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return "Invalid user."
	}
	switch errs[0].Field() {
	case "Username":
		return "Username must be 3 to 64 characters."
	case "Password":
		return "Password must be 8 to 72 characters."
	default:
		return "Role is required."
	}
}
