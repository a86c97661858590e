package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"sentinela/internal/audit"
	"sentinela/internal/auth"
	"sentinela/internal/authz"
	"sentinela/internal/config"
	"sentinela/internal/models"
	"sentinela/internal/repository"
	"sentinela/internal/security"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UserHandler handles HTTP requests for user management
type UserHandler struct {
	userRepo    repository.UserRepository
	roleRepo    repository.RoleRepository
	permRepo    repository.PermissionRepository
	historyRepo repository.PasswordHistoryRepository
	authService *auth.Service
	policy      *security.PasswordPolicy
	resolver    *authz.Resolver
	auditSvc    *audit.Service
	cfg         *config.Config
}

// NewUserHandler creates a new user management handler
func NewUserHandler(
	userRepo repository.UserRepository,
	roleRepo repository.RoleRepository,
	permRepo repository.PermissionRepository,
	historyRepo repository.PasswordHistoryRepository,
	authService *auth.Service,
	policy *security.PasswordPolicy,
	resolver *authz.Resolver,
	auditSvc *audit.Service,
	cfg *config.Config,
) *UserHandler {
	return &UserHandler{
		userRepo:    userRepo,
		roleRepo:    roleRepo,
		permRepo:    permRepo,
		historyRepo: historyRepo,
		authService: authService,
		policy:      policy,
		resolver:    resolver,
		auditSvc:    auditSvc,
		cfg:         cfg,
	}
}

func actorID(c *gin.Context) *uuid.UUID {
	if user := auth.GetUserFromContext(c); user != nil {
		return &user.ID
	}
	return nil
}

func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

// ListUsers godoc
// @Summary List users
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param search query string false "Match against email or name"
// @Param approval_status query string false "pending, approved or rejected"
// @Param active query bool false "Filter on active flag"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {array} models.User
// @Failure 403 {object} models.ErrorResponse "Permission denied"
// @Router /users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	filter := repository.UserFilter{OrderBy: "created_at", OrderDesc: true}

	if search := c.Query("search"); search != "" {
		filter.Search = &search
	}
	if status := c.Query("approval_status"); status != "" {
		s := models.ApprovalStatus(status)
		filter.ApprovalStatus = &s
	}
	if activeStr := c.Query("active"); activeStr != "" {
		if active, err := strconv.ParseBool(activeStr); err == nil {
			filter.Active = &active
		}
	}
	if limitStr := c.Query("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			filter.Limit = &limit
		}
	}
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			filter.Offset = &offset
		}
	}

	users, err := h.userRepo.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to list users"})
		return
	}
	c.JSON(http.StatusOK, users)
}

// CreateUser godoc
// @Summary Create a user
// @Description Create a user account. With approval enabled the account starts pending.
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CreateUserRequest true "New user"
// @Success 201 {object} models.User
// @Failure 400 {object} models.ErrorResponse "Invalid request format"
// @Failure 409 {object} models.ErrorResponse "Email already in use"
// @Router /users [post]
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	hash, err := h.authService.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to create user"})
		return
	}

	status := models.ApprovalApproved
	if h.cfg.Auth.RequireApproval {
		status = models.ApprovalPending
	}

	user := &models.User{
		Email:             req.Email,
		Name:              req.Name,
		Password:          hash,
		Active:            true,
		ApprovalStatus:    status,
		PasswordExpiresAt: h.policy.ExpiryDeadline(time.Now()),
	}

	if err := h.userRepo.Create(c.Request.Context(), user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			c.JSON(http.StatusConflict, models.ErrorResponse{Error: "email already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to create user"})
		return
	}

	// Seed the history so the initial password counts against reuse checks.
	if err := h.historyRepo.Add(c.Request.Context(), user.ID, hash); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to create user"})
		return
	}

	h.auditSvc.LogChange(c.Request.Context(), actorID(c), models.EventUserCreated,
		models.CategoryUserManagement, "user", user.ID.String(), nil,
		map[string]string{"email": user.Email, "name": user.Name})

	c.JSON(http.StatusCreated, user)
}

// GetUser godoc
// @Summary Get a user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} models.User
// @Failure 404 {object} models.ErrorResponse "User not found"
// @Router /users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	user, err := h.userRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "user not found"})
		return
	}

	roles, err := h.roleRepo.GetRolesForUser(c.Request.Context(), id)
	if err == nil {
		user.Roles = roles
	}
	c.JSON(http.StatusOK, user)
}

// UpdateUser godoc
// @Summary Update a user
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param request body models.UpdateUserRequest true "Fields to update"
// @Success 200 {object} models.User
// @Failure 404 {object} models.ErrorResponse "User not found"
// @Failure 409 {object} models.ErrorResponse "Email already in use"
// @Router /users/{id} [put]
func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req models.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}
	// Check for invalid email
	if req.Email != nil && !auth.IsValidEmail(*req.Email) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid email address"})
		return
	}

	user, err := h.userRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "user not found"})
		return
	}

	old := map[string]interface{}{"email": user.Email, "name": user.Name, "active": user.Active}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Active != nil {
		user.Active = *req.Active
	}

	if err := h.userRepo.Update(c.Request.Context(), user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			c.JSON(http.StatusConflict, models.ErrorResponse{Error: "email already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to update user"})
		return
	}

	h.auditSvc.LogChange(c.Request.Context(), actorID(c), models.EventUserUpdated,
		models.CategoryUserManagement, "user", user.ID.String(), old,
		map[string]interface{}{"email": user.Email, "name": user.Name, "active": user.Active})

	c.JSON(http.StatusOK, user)
}

// DeleteUser godoc
// @Summary Delete a user
// @Description Soft-delete a user. Admin accounts and your own account are refused.
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 403 {object} models.ErrorResponse "Refused"
// @Failure 404 {object} models.ErrorResponse "User not found"
// @Router /users/{id} [delete]
func (h *UserHandler) DeleteUser(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if actor := auth.GetUserFromContext(c); actor != nil && actor.ID == id {
		c.JSON(http.StatusForbidden, models.ErrorResponse{Error: "cannot delete your own account"})
		return
	}

	isAdmin, err := h.resolver.IsAdmin(c.Request.Context(), id)
	if err == nil && isAdmin {
		c.JSON(http.StatusForbidden, models.ErrorResponse{Error: repository.ErrAdminDelete.Error()})
		return
	}

	if err := h.userRepo.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to delete user"})
		return
	}

	h.resolver.InvalidateUser(id)
	h.auditSvc.LogChange(c.Request.Context(), actorID(c), models.EventUserDeleted,
		models.CategoryUserManagement, "user", id.String(), nil, nil)

	c.JSON(http.StatusOK, models.SuccessResponse{Message: "user deleted"})
}

// ApproveUser godoc
// @Summary Approve a pending account
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param request body models.ApprovalRequest false "Optional notes"
// @Success 200 {object} models.SuccessResponse
// @Failure 404 {object} models.ErrorResponse "User not found"
// @Router /users/{id}/approve [post]
func (h *UserHandler) ApproveUser(c *gin.Context) {
	h.setApproval(c, models.ApprovalApproved, models.EventUserApproved, "user approved")
}

// RejectUser godoc
// @Summary Reject a pending account
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param request body models.ApprovalRequest false "Optional notes"
// @Success 200 {object} models.SuccessResponse
// @Failure 404 {object} models.ErrorResponse "User not found"
// @Router /users/{id}/reject [post]
func (h *UserHandler) RejectUser(c *gin.Context) {
	h.setApproval(c, models.ApprovalRejected, models.EventUserRejected, "user rejected")
}

func (h *UserHandler) setApproval(c *gin.Context, status models.ApprovalStatus, eventType, message string) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req models.ApprovalRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.userRepo.SetApprovalStatus(c.Request.Context(), id, status); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to update approval status"})
		return
	}

	h.auditSvc.LogChange(c.Request.Context(), actorID(c), eventType,
		models.CategoryUserManagement, "user", id.String(), nil,
		map[string]string{"status": string(status), "notes": req.Notes})

	c.JSON(http.StatusOK, models.SuccessResponse{Message: message})
}

// UnlockUser godoc
// @Summary Clear an account lockout
// @Description Lift a login lockout before its deadline expires
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 404 {object} models.ErrorResponse "User not found"
// @Router /users/{id}/unlock [post]
func (h *UserHandler) UnlockUser(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.userRepo.ClearLock(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to unlock user"})
		return
	}

	h.auditSvc.LogChange(c.Request.Context(), actorID(c), models.EventAccountUnlocked,
		models.CategorySecurity, "user", id.String(), nil,
		map[string]string{"action": "lock cleared"})

	c.JSON(http.StatusOK, models.SuccessResponse{Message: "account unlocked"})
}

// GrantRole godoc
// @Summary Grant a role to a user
// @Description Idempotent: granting an already-held role succeeds
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param roleId path string true "Role ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 404 {object} models.ErrorResponse "User or role not found"
// @Router /users/{id}/roles/{roleId} [post]
func (h *UserHandler) GrantRole(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	roleID, ok := parseIDParam(c, "roleId")
	if !ok {
		return
	}

	if _, err := h.userRepo.GetByID(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "user not found"})
		return
	}

	if err := h.roleRepo.GrantToUser(c.Request.Context(), roleID, userID); err != nil {
		if errors.Is(err, repository.ErrRoleNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "role not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to grant role"})
		return
	}

	h.resolver.InvalidateUser(userID)
	h.auditSvc.LogChange(c.Request.Context(), actorID(c), models.EventRoleGranted,
		models.CategoryAuthorization, "user", userID.String(), nil,
		map[string]string{"role_id": roleID.String()})

	c.JSON(http.StatusOK, models.SuccessResponse{Message: "role granted"})
}

// RevokeRole godoc
// @Summary Revoke a role from a user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param roleId path string true "Role ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 404 {object} models.ErrorResponse "User not found"
// @Router /users/{id}/roles/{roleId} [delete]
func (h *UserHandler) RevokeRole(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	roleID, ok := parseIDParam(c, "roleId")
	if !ok {
		return
	}

	if _, err := h.userRepo.GetByID(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "user not found"})
		return
	}

	if err := h.roleRepo.RevokeFromUser(c.Request.Context(), roleID, userID); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to revoke role"})
		return
	}

	h.resolver.InvalidateUser(userID)
	h.auditSvc.LogChange(c.Request.Context(), actorID(c), models.EventRoleRevoked,
		models.CategoryAuthorization, "user", userID.String(), nil,
		map[string]string{"role_id": roleID.String()})

	c.JSON(http.StatusOK, models.SuccessResponse{Message: "role revoked"})
}

// GrantPermission godoc
// @Summary Grant a permission directly to a user
// @Description Idempotent: granting an already-held permission succeeds
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param permissionId path string true "Permission ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 404 {object} models.ErrorResponse "User or permission not found"
// @Router /users/{id}/permissions/{permissionId} [post]
func (h *UserHandler) GrantPermission(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	permID, ok := parseIDParam(c, "permissionId")
	if !ok {
		return
	}

	if _, err := h.userRepo.GetByID(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "user not found"})
		return
	}

	if err := h.permRepo.GrantToUser(c.Request.Context(), permID, userID); err != nil {
		if errors.Is(err, repository.ErrPermissionNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "permission not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to grant permission"})
		return
	}

	h.resolver.InvalidateUser(userID)
	h.auditSvc.LogChange(c.Request.Context(), actorID(c), models.EventPermissionGrant,
		models.CategoryAuthorization, "user", userID.String(), nil,
		map[string]string{"permission_id": permID.String()})

	c.JSON(http.StatusOK, models.SuccessResponse{Message: "permission granted"})
}

// RevokePermission godoc
// @Summary Revoke a direct permission from a user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param permissionId path string true "Permission ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 404 {object} models.ErrorResponse "User not found"
// @Router /users/{id}/permissions/{permissionId} [delete]
func (h *UserHandler) RevokePermission(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	permID, ok := parseIDParam(c, "permissionId")
	if !ok {
		return
	}

	if _, err := h.userRepo.GetByID(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "user not found"})
		return
	}

	if err := h.permRepo.RevokeFromUser(c.Request.Context(), permID, userID); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to revoke permission"})
		return
	}

	h.resolver.InvalidateUser(userID)
	h.auditSvc.LogChange(c.Request.Context(), actorID(c), models.EventPermissionRevoked,
		models.CategoryAuthorization, "user", userID.String(), nil,
		map[string]string{"permission_id": permID.String()})

	c.JSON(http.StatusOK, models.SuccessResponse{Message: "permission revoked"})
}

// ListUserPermissions godoc
// @Summary List a user's effective permissions
// @Description Union of role permissions and direct grants; the full catalog for admins
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {array} string
// @Failure 404 {object} models.ErrorResponse "User not found"
// @Router /users/{id}/permissions [get]
func (h *UserHandler) ListUserPermissions(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if _, err := h.userRepo.GetByID(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "user not found"})
		return
	}

	slugs, err := h.resolver.ListPermissions(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to resolve permissions"})
		return
	}
	c.JSON(http.StatusOK, slugs)
}
