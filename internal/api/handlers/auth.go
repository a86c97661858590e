package handlers

import (
	"errors"
	"net/http"

	"sentinela/internal/auth"
	"sentinela/internal/models"
	"sentinela/internal/repository"
	"sentinela/internal/security"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles HTTP requests for authentication
type AuthHandler struct {
	authn *security.Authenticator
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authn *security.Authenticator) *AuthHandler {
	return &AuthHandler{authn: authn}
}

// Login godoc
// @Summary User login
// @Description Authenticate with email and password and receive an access token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Login credentials"
// @Success 200 {object} models.LoginResponse "Login successful"
// @Failure 400 {object} models.ErrorResponse "Invalid request format"
// @Failure 401 {object} models.ErrorResponse "Invalid credentials"
// @Failure 403 {object} models.ErrorResponse "Account locked, disabled or not approved"
// @Failure 429 {object} models.ErrorResponse "Rate limit exceeded"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	result, err := h.authn.Login(c.Request.Context(), req.Email, req.Password, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		if lockErr, ok := security.IsAccountLocked(err); ok {
			c.JSON(http.StatusForbidden, models.ErrorResponse{Error: lockErr.Error()})
			return
		}
		switch {
		case errors.Is(err, security.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "invalid credentials"})
		case errors.Is(err, security.ErrAccountDisabled),
			errors.Is(err, security.ErrApprovalPending),
			errors.Is(err, security.ErrApprovalRejected):
			c.JSON(http.StatusForbidden, models.ErrorResponse{Error: err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to process login"})
		}
		return
	}

	c.JSON(http.StatusOK, models.LoginResponse{
		AccessToken:     result.Token,
		User:            result.User,
		PasswordExpired: result.PasswordExpired,
	})
}

// Logout godoc
// @Summary Log out
// @Description Invalidate every outstanding token for the authenticated user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.SuccessResponse
// @Failure 401 {object} models.ErrorResponse "Not authenticated"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	user := auth.GetUserFromContext(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "authentication required"})
		return
	}

	if err := h.authn.Logout(c.Request.Context(), user, c.ClientIP(), c.Request.UserAgent()); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to log out"})
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse{Message: "logged out"})
}

// LogoutOthers godoc
// @Summary Log out other sessions
// @Description Revoke every other token and return a fresh one for this client
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.LoginResponse
// @Failure 401 {object} models.ErrorResponse "Not authenticated"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /auth/logout-others [post]
func (h *AuthHandler) LogoutOthers(c *gin.Context) {
	user := auth.GetUserFromContext(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "authentication required"})
		return
	}

	token, err := h.authn.LogoutOthers(c.Request.Context(), user, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to revoke sessions"})
		return
	}
	c.JSON(http.StatusOK, models.LoginResponse{AccessToken: token, User: user})
}

// ChangePassword godoc
// @Summary Change own password
// @Description Change the authenticated user's password; revokes other sessions
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.ChangePasswordRequest true "Current and new password"
// @Success 200 {object} models.LoginResponse "Password changed, fresh token returned"
// @Failure 400 {object} models.ErrorResponse "Invalid request format"
// @Failure 401 {object} models.ErrorResponse "Wrong current password"
// @Failure 422 {object} models.ErrorResponse "New password violates the reuse policy"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /auth/password [put]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	user := auth.GetUserFromContext(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "authentication required"})
		return
	}

	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	token, err := h.authn.ChangePassword(c.Request.Context(), user, req.CurrentPassword, req.NewPassword, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, security.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "current password is incorrect"})
		case errors.Is(err, security.ErrSamePassword),
			errors.Is(err, repository.ErrPasswordReuse):
			c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{Error: err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to change password"})
		}
		return
	}

	c.JSON(http.StatusOK, models.LoginResponse{AccessToken: token, User: user})
}
