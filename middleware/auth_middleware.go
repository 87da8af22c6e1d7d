package middleware

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/carvis-cloud/lambda-auth/auth"
	"github.com/carvis-cloud/lambda-auth/utils"
)

// Authenticator defines the interface for authenticating requests
type Authenticator interface {
	// Authenticate returns the user behind the request's bearer token
	Authenticate(ctx context.Context, r *http.Request) (*auth.User, error)
}

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	authenticator Authenticator
	logger        *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(authenticator Authenticator, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{
		authenticator: authenticator,
		logger:        logger,
	}
}

// RequireAuth is a middleware that requires a valid bearer token. Failures
// are rendered with the status code chosen by the failing stage.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		user, err := m.authenticator.Authenticate(ctx, r)
		if err != nil {
			authErr := auth.AsAuthError(err)
			fields := []zap.Field{
				zap.String("request_id", requestID),
				zap.String("kind", string(authErr.Kind())),
				zap.Int("status", authErr.StatusCode),
				zap.Error(err),
			}
			if authErr.StatusCode >= http.StatusInternalServerError {
				m.logger.Error("authentication failed", fields...)
			} else {
				m.logger.Warn("authentication failed", fields...)
			}
			_ = utils.WriteAuthError(w, authErr)
			return
		}

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("username", user.Username),
			zap.Strings("roles", user.Roles))

		next.ServeHTTP(w, r.WithContext(WithUser(ctx, user)))
	})
}

// RequireRole is a middleware that requires a specific role
// This should be called after RequireAuth
func (m *AuthMiddleware) RequireRole(role string) func(http.Handler) http.Handler {
	return m.RequireAnyRole(role)
}

// RequireAnyRole lets the request through when the user holds at least one
// of roles.
func (m *AuthMiddleware) RequireAnyRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestIDFromContext(ctx)

			user := GetUserFromContext(ctx)
			if user == nil {
				m.logger.Error("user not found in context",
					zap.String("request_id", requestID))
				_ = utils.WriteUnauthorized(w, "Authentication required")
				return
			}

			if !user.HasAnyRole(roles...) {
				m.logger.Warn("insufficient permissions",
					zap.String("request_id", requestID),
					zap.Strings("required_roles", roles),
					zap.Strings("user_roles", user.Roles))
				_ = utils.WriteForbidden(w, "Insufficient permissions")
				return
			}

			m.logger.Debug("role check passed",
				zap.String("request_id", requestID),
				zap.Strings("required_roles", roles))

			next.ServeHTTP(w, r)
		})
	}
}
