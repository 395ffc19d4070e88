package users

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/cadastro-api/cadastro-api/internal/platform/httpx"
)

// UseCases exposes the user operations consumed by the HTTP layer.
type UseCases interface {
	CreateUser(ctx context.Context, params CreateUserParams) Response
	GetUser(ctx context.Context, params GetUserParams) Response
	UpdateUser(ctx context.Context, params UpdateUserParams) Response
	DeleteUser(ctx context.Context, params DeleteUserParams) Response
	ListUsers(ctx context.Context, params ListUsersParams) Response
}

// Handler manages the /users endpoints. Use case failures still answer with
// the route's success status and a {success:false} body; only malformed
// payloads get a problem response.
type Handler struct {
	logger   *slog.Logger
	service  UseCases
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service UseCases) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers the user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listUsers)
	r.Post("/", h.createUser)
	r.Get("/{id}", h.getUser)
	r.Put("/{id}", h.updateUser)
	r.Delete("/{id}", h.deleteUser)
}

type userPayload struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	LastName string `json:"last_name" validate:"required"`
	CPF      string `json:"cpf" validate:"required"`
}

// listUsers serves GET /users. Only the name filter is wired at this
// boundary; the remaining list parameters exist on the use case but are not
// exposed by the route.
func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	resp := h.service.ListUsers(r.Context(), ListUsersParams{
		Name: r.URL.Query().Get("name"),
	})
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	resp := h.service.GetUser(r.Context(), GetUserParams{ID: chi.URLParam(r, "id")})
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.decodePayload(w, r)
	if !ok {
		return
	}
	resp := h.service.CreateUser(r.Context(), CreateUserParams{
		Name:     payload.Name,
		Email:    payload.Email,
		LastName: payload.LastName,
		CPF:      payload.CPF,
	})
	httpx.JSON(w, http.StatusCreated, resp)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.decodePayload(w, r)
	if !ok {
		return
	}
	resp := h.service.UpdateUser(r.Context(), UpdateUserParams{
		ID:       chi.URLParam(r, "id"),
		Name:     payload.Name,
		Email:    payload.Email,
		LastName: payload.LastName,
		CPF:      payload.CPF,
	})
	httpx.JSON(w, http.StatusOK, resp)
}

// decodePayload reads and validates the JSON body shared by create and
// update. Rejections stay at this boundary; the use case never runs.
func (h *Handler) decodePayload(w http.ResponseWriter, r *http.Request) (userPayload, bool) {
	var payload userPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		h.logger.Warn("reject malformed body", slog.String("path", r.URL.Path))
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "request body must be valid JSON")
		return payload, false
	}
	if err := h.validate.Struct(payload); err != nil {
		h.logger.Warn("reject invalid payload", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return payload, false
	}
	return payload, true
}

// deleteUser answers 200 with the pre-deletion snapshot. The envelope body
// is the contract; a 204 would force Go's http server to drop it.
func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	resp := h.service.DeleteUser(r.Context(), DeleteUserParams{ID: chi.URLParam(r, "id")})
	httpx.JSON(w, http.StatusOK, resp)
}
