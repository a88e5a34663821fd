package identity

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tillbook/tillbook/internal/platform/httpx"
	"github.com/tillbook/tillbook/internal/shared"
)

// Handler wires HTTP endpoints for operator account flows.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	sessions *shared.SessionManager
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		sessions: sessions,
		validate: validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Post("/register", h.handleRegister)
	r.Post("/change-secret", h.handleChangeSecret)
	r.Get("/operators", h.listOperators)
	r.Delete("/operators/{id}", h.deleteOperator)
	r.Put("/operators/{id}/role", h.setRole)
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Secret   string `json:"secret" validate:"required"`
}

type operatorResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func toResponse(op *Operator) operatorResponse {
	return operatorResponse{ID: op.ID, Username: op.Username, Role: op.Role, CreatedAt: op.CreatedAt}
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.Missing("username and secret"))
		return
	}

	op, err := h.service.Login(r.Context(), req.Username, req.Secret)
	if err != nil {
		h.logger.Warn("login failed", slog.String("username", req.Username))
		httpx.RespondError(w, err)
		return
	}

	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.SetActor(shared.Actor{ID: op.ID, Username: op.Username, Role: string(op.Role)})
	}
	httpx.JSON(w, http.StatusOK, toResponse(op))
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		h.sessions.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}

type registerRequest struct {
	Username string `json:"username" validate:"required"`
	Secret   string `json:"secret" validate:"required"`
	Confirm  string `json:"confirm" validate:"required"`
	Role     Role   `json:"role"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}

	// Only an admin may grant a role other than user.
	actor := shared.ActorFromContext(r.Context())
	role := req.Role
	if !actor.IsAdmin() {
		role = RoleUser
	}

	op, err := h.service.Register(r.Context(), RegisterInput{
		Username: req.Username,
		Secret:   req.Secret,
		Confirm:  req.Confirm,
		Role:     role,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(op))
}

type changeSecretRequest struct {
	Current string `json:"current" validate:"required"`
	Next    string `json:"next" validate:"required"`
	Confirm string `json:"confirm" validate:"required"`
}

func (h *Handler) handleChangeSecret(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if actor.ID == 0 {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "sign in first")
		return
	}

	var req changeSecretRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}

	err := h.service.ChangeSecret(r.Context(), ChangeSecretInput{
		OperatorID: actor.ID,
		Current:    req.Current,
		Next:       req.Next,
		Confirm:    req.Confirm,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listOperators(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if actor.ID == 0 {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "sign in first")
		return
	}

	operators, err := h.service.ListOperators(r.Context())
	if err != nil {
		h.logger.Error("list operators", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]operatorResponse, 0, len(operators))
	for i := range operators {
		out = append(out, toResponse(&operators[i]))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) deleteOperator(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if !actor.IsAdmin() {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "admin role required")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, shared.Invalid("operator id"))
		return
	}

	if err := h.service.DeleteOperator(r.Context(), actor, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setRoleRequest struct {
	Role Role `json:"role" validate:"required"`
}

func (h *Handler) setRole(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if !actor.IsAdmin() {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "admin role required")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, shared.Invalid("operator id"))
		return
	}

	var req setRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}

	if err := h.service.SetRole(r.Context(), actor, id, req.Role); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
