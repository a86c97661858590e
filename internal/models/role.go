package models

import (
	"time"

	"github.com/google/uuid"
)

// AdminRoleSlug is the reserved role slug that bypasses permission resolution.
const AdminRoleSlug = "admin"

// Role represents a named group of permissions
type Role struct {
	ID          uuid.UUID    `json:"id" db:"id"`
	Slug        string       `json:"slug" db:"slug"`
	Name        string       `json:"name" db:"name"`
	IsProtected bool         `json:"is_protected" db:"is_protected"`
	Permissions []Permission `json:"permissions,omitempty"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at" db:"updated_at"`
	DeletedAt   *time.Time   `json:"deleted_at,omitempty" db:"deleted_at"`
}

// IsAdmin reports whether this role carries the reserved admin slug.
func (r *Role) IsAdmin() bool {
	return r.Slug == AdminRoleSlug
}

// CreateRoleRequest represents the request to create a new role
type CreateRoleRequest struct {
	Slug string `json:"slug" binding:"required,min=3,max=50,slug"`
	Name string `json:"name" binding:"required,min=3,max=100"`
}

// UpdateRoleRequest represents the request to update a role
type UpdateRoleRequest struct {
	Name string `json:"name" binding:"required,min=3,max=100"`
}
