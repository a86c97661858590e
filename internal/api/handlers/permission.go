package handlers

import (
	"errors"
	"net/http"

	"sentinela/internal/audit"
	"sentinela/internal/authz"
	"sentinela/internal/models"
	"sentinela/internal/repository"

	"github.com/gin-gonic/gin"
)

// PermissionHandler handles HTTP requests for the permission catalog
type PermissionHandler struct {
	permRepo repository.PermissionRepository
	resolver *authz.Resolver
	auditSvc *audit.Service
}

// NewPermissionHandler creates a new permission catalog handler
func NewPermissionHandler(permRepo repository.PermissionRepository, resolver *authz.Resolver, auditSvc *audit.Service) *PermissionHandler {
	return &PermissionHandler{
		permRepo: permRepo,
		resolver: resolver,
		auditSvc: auditSvc,
	}
}

// ListPermissions godoc
// @Summary List the permission catalog
// @Tags permissions
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Permission
// @Failure 403 {object} models.ErrorResponse "Permission denied"
// @Router /permissions [get]
func (h *PermissionHandler) ListPermissions(c *gin.Context) {
	permissions, err := h.permRepo.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to list permissions"})
		return
	}
	c.JSON(http.StatusOK, permissions)
}

// CreatePermission godoc
// @Summary Register a permission
// @Tags permissions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CreatePermissionRequest true "New permission"
// @Success 201 {object} models.Permission
// @Failure 400 {object} models.ErrorResponse "Invalid request format"
// @Failure 409 {object} models.ErrorResponse "Slug already in use"
// @Router /permissions [post]
func (h *PermissionHandler) CreatePermission(c *gin.Context) {
	var req models.CreatePermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	permission := &models.Permission{
		Slug:        req.Slug,
		Name:        req.Name,
		Description: req.Description,
	}
	if err := h.permRepo.Create(c.Request.Context(), permission); err != nil {
		if errors.Is(err, repository.ErrPermissionExists) {
			c.JSON(http.StatusConflict, models.ErrorResponse{Error: "permission already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to create permission"})
		return
	}

	h.auditSvc.LogChange(c.Request.Context(), actorID(c), "authz.permission_created",
		models.CategoryAuthorization, "permission", permission.ID.String(), nil,
		map[string]string{"slug": permission.Slug, "name": permission.Name})

	c.JSON(http.StatusCreated, permission)
}

// GetPermission godoc
// @Summary Get a permission
// @Tags permissions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Permission ID"
// @Success 200 {object} models.Permission
// @Failure 404 {object} models.ErrorResponse "Permission not found"
// @Router /permissions/{id} [get]
func (h *PermissionHandler) GetPermission(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	permission, err := h.permRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "permission not found"})
		return
	}
	c.JSON(http.StatusOK, permission)
}

// DeletePermission godoc
// @Summary Delete a permission
// @Description Removes the permission from the catalog along with every role
// @Description attachment and direct grant that references it.
// @Tags permissions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Permission ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 404 {object} models.ErrorResponse "Permission not found"
// @Router /permissions/{id} [delete]
func (h *PermissionHandler) DeletePermission(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.permRepo.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrPermissionNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "permission not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to delete permission"})
		return
	}

	// Grants referencing the permission are gone; cached snapshots may still
	// carry the slug until they are rebuilt.
	h.resolver.InvalidateAll()
	h.auditSvc.LogChange(c.Request.Context(), actorID(c), "authz.permission_deleted",
		models.CategoryAuthorization, "permission", id.String(), nil, nil)

	c.JSON(http.StatusOK, models.SuccessResponse{Message: "permission deleted"})
}
