package middleware

import (
	"net/http"
	"strings"
	"time"

	"sentinela/internal/auth"
	"sentinela/internal/authz"
	"sentinela/internal/models"
	"sentinela/internal/repository"
	"sentinela/internal/security"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware authenticates requests and gates them on permissions.
type AuthMiddleware struct {
	authService *auth.Service
	userRepo    repository.UserRepository
	sessions    *security.SessionManager
	resolver    *authz.Resolver
}

// NewAuthMiddleware creates the authentication middleware
func NewAuthMiddleware(authService *auth.Service, userRepo repository.UserRepository, sessions *security.SessionManager, resolver *authz.Resolver) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		userRepo:    userRepo,
		sessions:    sessions,
		resolver:    resolver,
	}
}

// AuthRequired validates the bearer token, loads the user and checks that the
// token's session is still the live one. Tokens minted before the last login
// or password change fail here even though their signature is valid.
func (m *AuthMiddleware) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "no authorization header"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "invalid authorization header"})
			c.Abort()
			return
		}

		claims, err := m.authService.ValidateToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: err.Error()})
			c.Abort()
			return
		}

		user, err := m.userRepo.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user not found"})
			c.Abort()
			return
		}

		if !user.Active {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "account is disabled"})
			c.Abort()
			return
		}

		if user.IsLocked(time.Now()) {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "account is locked"})
			c.Abort()
			return
		}

		if !m.sessions.Validate(user, claims.SessionID) {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "session has been revoked"})
			c.Abort()
			return
		}

		c.Set("user", user)
		c.Set("session_id", claims.SessionID)
		c.Next()
	}
}

// RequirePermission rejects the request with 403 unless the authenticated
// user holds the permission. The denied slug is echoed in the response so
// clients can explain what is missing.
func (m *AuthMiddleware) RequirePermission(slug string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := auth.GetUserFromContext(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "authentication required"})
			c.Abort()
			return
		}

		has, err := m.resolver.HasPermission(c.Request.Context(), user.ID, slug)
		if err != nil {
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to resolve permissions"})
			c.Abort()
			return
		}
		if !has {
			c.JSON(http.StatusForbidden, models.ErrorResponse{
				Error:      "permission denied",
				Permission: slug,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// AdminRequired rejects the request unless the user holds the admin role.
func (m *AuthMiddleware) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := auth.GetUserFromContext(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "authentication required"})
			c.Abort()
			return
		}

		isAdmin, err := m.resolver.IsAdmin(c.Request.Context(), user.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to resolve permissions"})
			c.Abort()
			return
		}
		if !isAdmin {
			c.JSON(http.StatusForbidden, models.ErrorResponse{Error: "admin access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}
