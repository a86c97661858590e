package repository

import (
	"context"

	"sentinela/internal/models"

	"github.com/google/uuid"
)

// RoleRepository defines the interface for role storage, including the
// user<->role and role<->permission join edges. Edge writes are idempotent:
// re-adding an existing pair succeeds without creating a duplicate.
type RoleRepository interface {
	Repository
	Create(ctx context.Context, role *models.Role) error
	Update(ctx context.Context, role *models.Role) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Role, error)
	GetBySlug(ctx context.Context, slug string) (*models.Role, error)
	List(ctx context.Context, filter RoleFilter) ([]models.Role, error)

	GetRolesForUser(ctx context.Context, userID uuid.UUID) ([]models.Role, error)
	GrantToUser(ctx context.Context, roleID, userID uuid.UUID) error
	RevokeFromUser(ctx context.Context, roleID, userID uuid.UUID) error

	GetPermissions(ctx context.Context, roleID uuid.UUID) ([]models.Permission, error)
	AddPermission(ctx context.Context, roleID, permissionID uuid.UUID) error
	RemovePermission(ctx context.Context, roleID, permissionID uuid.UUID) error

	// ListUserIDsWithRole supports cache invalidation cascades when a role's
	// permission set changes.
	ListUserIDsWithRole(ctx context.Context, roleID uuid.UUID) ([]uuid.UUID, error)
}

// RoleFilter defines the filter options for listing roles
type RoleFilter struct {
	Search    *string
	Protected *bool
	OrderBy   string
	OrderDesc bool
	Limit     *int
	Offset    *int
}
