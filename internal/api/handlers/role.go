package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"sentinela/internal/audit"
	"sentinela/internal/authz"
	"sentinela/internal/models"
	"sentinela/internal/repository"

	"github.com/gin-gonic/gin"
)

// RoleHandler handles HTTP requests for role management
type RoleHandler struct {
	roleRepo repository.RoleRepository
	resolver *authz.Resolver
	auditSvc *audit.Service
}

// NewRoleHandler creates a new role management handler
func NewRoleHandler(roleRepo repository.RoleRepository, resolver *authz.Resolver, auditSvc *audit.Service) *RoleHandler {
	return &RoleHandler{
		roleRepo: roleRepo,
		resolver: resolver,
		auditSvc: auditSvc,
	}
}

// ListRoles godoc
// @Summary List roles
// @Tags roles
// @Produce json
// @Security BearerAuth
// @Param search query string false "Match against slug or name"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {array} models.Role
// @Failure 403 {object} models.ErrorResponse "Permission denied"
// @Router /roles [get]
func (h *RoleHandler) ListRoles(c *gin.Context) {
	filter := repository.RoleFilter{OrderBy: "name"}

	if search := c.Query("search"); search != "" {
		filter.Search = &search
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

	roles, err := h.roleRepo.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to list roles"})
		return
	}
	c.JSON(http.StatusOK, roles)
}

// CreateRole godoc
// @Summary Create a role
// @Tags roles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CreateRoleRequest true "New role"
// @Success 201 {object} models.Role
// @Failure 400 {object} models.ErrorResponse "Invalid request format"
// @Failure 409 {object} models.ErrorResponse "Slug already in use"
// @Router /roles [post]
func (h *RoleHandler) CreateRole(c *gin.Context) {
	var req models.CreateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	role := &models.Role{Slug: req.Slug, Name: req.Name}
	if err := h.roleRepo.Create(c.Request.Context(), role); err != nil {
		if errors.Is(err, repository.ErrRoleExists) {
			c.JSON(http.StatusConflict, models.ErrorResponse{Error: "role already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to create role"})
		return
	}

	h.auditSvc.LogChange(c.Request.Context(), actorID(c), "authz.role_created",
		models.CategoryAuthorization, "role", role.ID.String(), nil,
		map[string]string{"slug": role.Slug, "name": role.Name})

	c.JSON(http.StatusCreated, role)
}

// GetRole godoc
// @Summary Get a role with its permissions
// @Tags roles
// @Produce json
// @Security BearerAuth
// @Param id path string true "Role ID"
// @Success 200 {object} models.Role
// @Failure 404 {object} models.ErrorResponse "Role not found"
// @Router /roles/{id} [get]
func (h *RoleHandler) GetRole(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	role, err := h.roleRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "role not found"})
		return
	}

	perms, err := h.roleRepo.GetPermissions(c.Request.Context(), id)
	if err == nil {
		role.Permissions = perms
	}
	c.JSON(http.StatusOK, role)
}

// UpdateRole godoc
// @Summary Rename a role
// @Description The slug is immutable; only the display name can change
// @Tags roles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Role ID"
// @Param request body models.UpdateRoleRequest true "New name"
// @Success 200 {object} models.Role
// @Failure 403 {object} models.ErrorResponse "Role is protected"
// @Failure 404 {object} models.ErrorResponse "Role not found"
// @Router /roles/{id} [put]
func (h *RoleHandler) UpdateRole(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req models.UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	role, err := h.roleRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "role not found"})
		return
	}

	old := role.Name
	role.Name = req.Name
	if err := h.roleRepo.Update(c.Request.Context(), role); err != nil {
		if errors.Is(err, repository.ErrProtectedRole) {
			c.JSON(http.StatusForbidden, models.ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to update role"})
		return
	}

	h.auditSvc.LogChange(c.Request.Context(), actorID(c), "authz.role_updated",
		models.CategoryAuthorization, "role", role.ID.String(),
		map[string]string{"name": old}, map[string]string{"name": role.Name})

	c.JSON(http.StatusOK, role)
}

// DeleteRole godoc
// @Summary Delete a role
// @Description Protected roles and roles still granted to users are refused
// @Tags roles
// @Produce json
// @Security BearerAuth
// @Param id path string true "Role ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 403 {object} models.ErrorResponse "Role is protected"
// @Failure 404 {object} models.ErrorResponse "Role not found"
// @Failure 409 {object} models.ErrorResponse "Role still in use"
// @Router /roles/{id} [delete]
func (h *RoleHandler) DeleteRole(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.roleRepo.Delete(c.Request.Context(), id); err != nil {
		switch {
		case errors.Is(err, repository.ErrRoleNotFound):
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "role not found"})
		case errors.Is(err, repository.ErrProtectedRole):
			c.JSON(http.StatusForbidden, models.ErrorResponse{Error: err.Error()})
		case errors.Is(err, repository.ErrRoleInUse):
			c.JSON(http.StatusConflict, models.ErrorResponse{Error: err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to delete role"})
		}
		return
	}

	h.resolver.InvalidateRole(c.Request.Context(), id)
	h.auditSvc.LogChange(c.Request.Context(), actorID(c), "authz.role_deleted",
		models.CategoryAuthorization, "role", id.String(), nil, nil)

	c.JSON(http.StatusOK, models.SuccessResponse{Message: "role deleted"})
}

// AddPermission godoc
// @Summary Attach a permission to a role
// @Description Idempotent: attaching an already-attached permission succeeds.
// @Description Every user holding the role picks up the permission on their next check.
// @Tags roles
// @Produce json
// @Security BearerAuth
// @Param id path string true "Role ID"
// @Param permissionId path string true "Permission ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 404 {object} models.ErrorResponse "Role or permission not found"
// @Router /roles/{id}/permissions/{permissionId} [post]
func (h *RoleHandler) AddPermission(c *gin.Context) {
	roleID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	permID, ok := parseIDParam(c, "permissionId")
	if !ok {
		return
	}

	if err := h.roleRepo.AddPermission(c.Request.Context(), roleID, permID); err != nil {
		switch {
		case errors.Is(err, repository.ErrRoleNotFound):
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "role not found"})
		case errors.Is(err, repository.ErrPermissionNotFound):
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "permission not found"})
		default:
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to attach permission"})
		}
		return
	}

	h.resolver.InvalidateRole(c.Request.Context(), roleID)
	h.auditSvc.LogChange(c.Request.Context(), actorID(c), models.EventPermissionGrant,
		models.CategoryAuthorization, "role", roleID.String(), nil,
		map[string]string{"permission_id": permID.String()})

	c.JSON(http.StatusOK, models.SuccessResponse{Message: "permission attached"})
}

// RemovePermission godoc
// @Summary Detach a permission from a role
// @Tags roles
// @Produce json
// @Security BearerAuth
// @Param id path string true "Role ID"
// @Param permissionId path string true "Permission ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 404 {object} models.ErrorResponse "Role not found"
// @Router /roles/{id}/permissions/{permissionId} [delete]
func (h *RoleHandler) RemovePermission(c *gin.Context) {
	roleID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	permID, ok := parseIDParam(c, "permissionId")
	if !ok {
		return
	}

	if err := h.roleRepo.RemovePermission(c.Request.Context(), roleID, permID); err != nil {
		if errors.Is(err, repository.ErrRoleNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "role not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to detach permission"})
		return
	}

	h.resolver.InvalidateRole(c.Request.Context(), roleID)
	h.auditSvc.LogChange(c.Request.Context(), actorID(c), models.EventPermissionRevoked,
		models.CategoryAuthorization, "role", roleID.String(), nil,
		map[string]string{"permission_id": permID.String()})

	c.JSON(http.StatusOK, models.SuccessResponse{Message: "permission detached"})
}
