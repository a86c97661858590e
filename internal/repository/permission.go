package repository

import (
	"context"

	"sentinela/internal/models"

	"github.com/google/uuid"
)

// PermissionRepository defines the interface for the permission catalog and
// direct user grants.
type PermissionRepository interface {
	Repository
	Create(ctx context.Context, permission *models.Permission) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Permission, error)
	GetBySlug(ctx context.Context, slug string) (*models.Permission, error)
	List(ctx context.Context) ([]models.Permission, error)

	GetDirectForUser(ctx context.Context, userID uuid.UUID) ([]models.Permission, error)
	GrantToUser(ctx context.Context, permissionID, userID uuid.UUID) error
	RevokeFromUser(ctx context.Context, permissionID, userID uuid.UUID) error
}
