package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/carvis-cloud/lambda-auth/internal/observability"
	"github.com/carvis-cloud/lambda-auth/middleware"
	"github.com/carvis-cloud/lambda-auth/utils"
)

// UserHandler serves the authenticated caller's identity.
type UserHandler struct {
	logger observability.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(logger *zap.Logger) *UserHandler {
	return &UserHandler{
		logger: observability.NewContextLogger(logger, middleware.GetRequestIDFromContext),
	}
}

// HandleMe handles GET /api/v1/me
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		// RequireAuth was not mounted in front of this handler
		h.logger.Error(r.Context(), "user not found in context")
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	_ = utils.WriteOK(w, user)
}

// HandleHasRole handles GET /api/v1/me/roles/{role}
// Responds 204 when the caller holds the role, 403 otherwise
func (h *UserHandler) HandleHasRole(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.logger.Error(r.Context(), "user not found in context")
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	role := chi.URLParam(r, "role")
	if !user.HasRole(role) {
		h.logger.Debug(r.Context(), "role not held", zap.String("role", role))
		_ = utils.WriteForbidden(w, "Role not held")
		return
	}

	utils.WriteNoContent(w)
}

// WhoAmIResponse is the response body for GET /api/v1/admin/whoami
type WhoAmIResponse struct {
	Username  string   `json:"username"`
	Roles     []string `json:"roles"`
	RequestID string   `json:"request_id,omitempty"`
}

// HandleWhoAmI handles GET /api/v1/admin/whoami
// Mounted behind RequireRole("admin")
func (h *UserHandler) HandleWhoAmI(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	h.logger.Info(r.Context(), "admin identity requested")
	_ = utils.WriteOK(w, WhoAmIResponse{
		Username:  user.Username,
		Roles:     user.Roles,
		RequestID: middleware.GetRequestIDFromContext(r.Context()),
	})
}
