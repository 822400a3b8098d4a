package requests

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/barq-desk/barq/internal/platform/httpx"
	"github.com/barq-desk/barq/internal/shared"
)

// IdempotencyKeyHeader lets clients make POST /requests retry-safe.
const IdempotencyKeyHeader = "Idempotency-Key"

const idempotencyScope = "requests:create"

// Handler exposes the lifecycle manager over JSON.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	idempotency *shared.IdempotencyStore
	validate    *validator.Validate
}

// NewHandler builds the requests handler. idempotency may be nil.
func NewHandler(logger *slog.Logger, service *Service, idempotency *shared.IdempotencyStore) *Handler {
	return &Handler{
		logger:      logger,
		service:     service,
		idempotency: idempotency,
		validate:    validator.New(),
	}
}

// MountRoutes registers request routes. Authorization happens in the service.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.show)
	r.Get("/{id}/history", h.history)
	r.Patch("/{id}", h.decide)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	page := shared.PageFromQuery(r)
	result, err := h.service.List(r.Context(), userID, page)
	if err != nil {
		h.fail(w, "list requests", err)
		return
	}
	if page.Enabled() {
		shared.NewPagination(page.Page, page.Limit(), result.Total).WriteHeaders(w)
	}
	httpx.JSON(w, http.StatusOK, result.Requests)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, ErrFieldRequired)
		return
	}
	in.Normalize()

	succeeded := false
	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if key != "" && h.idempotency != nil {
		scopedKey := strconv.FormatInt(userID, 10) + ":" + key
		if err := h.idempotency.CheckAndInsert(r.Context(), scopedKey, idempotencyScope); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.RespondError(w, ErrDuplicateKey)
				return
			}
			h.fail(w, "idempotency check", err)
			return
		}
		// A failed create releases the key so the client may retry.
		defer func() {
			if !succeeded {
				_ = h.idempotency.Delete(r.Context(), scopedKey, idempotencyScope)
			}
		}()
	}

	created, err := h.service.Create(r.Context(), userID, in.Field)
	if err != nil {
		h.fail(w, "create request", err)
		return
	}
	succeeded = true
	w.Header().Set("Location", "/requests/"+strconv.FormatInt(created.ID, 10))
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := requestID(w, r)
	if !ok {
		return
	}
	req, err := h.service.Get(r.Context(), userID, id)
	if err != nil {
		h.fail(w, "get request", err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := requestID(w, r)
	if !ok {
		return
	}
	logs, err := h.service.History(r.Context(), userID, id)
	if err != nil {
		h.fail(w, "request history", err)
		return
	}
	httpx.JSON(w, http.StatusOK, logs)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := requestID(w, r)
	if !ok {
		return
	}
	var in DecideInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, ErrInvalidAction)
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.RespondError(w, ErrInvalidAction)
		return
	}
	updated, err := h.service.Decide(r.Context(), id, in.Action, userID)
	if err != nil {
		h.fail(w, "decide request", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status := httpx.StatusOf(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	} else {
		h.logger.Debug(op, slog.Int("status", status), slog.String("reason", err.Error()))
	}
	httpx.RespondError(w, err)
}

func currentUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := shared.CurrentUserID(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.NewError(httpx.ErrUnauthorized, "Unauthorized"))
		return 0, false
	}
	return userID, true
}

func requestID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, ErrInvalidID)
		return 0, false
	}
	return id, true
}
