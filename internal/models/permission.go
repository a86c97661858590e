package models

import (
	"time"

	"github.com/google/uuid"
)

// Permission represents a named capability. Slugs may be hierarchical by naming
// convention ("users.create", "reports.export") but no structure is enforced.
type Permission struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	Slug        string     `json:"slug" db:"slug"`
	Name        string     `json:"name" db:"name"`
	Description string     `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// CreatePermissionRequest represents the request to create a new permission
type CreatePermissionRequest struct {
	Slug        string `json:"slug" binding:"required,min=3,max=100,slug"`
	Name        string `json:"name" binding:"required,min=3,max=100"`
	Description string `json:"description" binding:"max=255"`
}
