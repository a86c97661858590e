package models

import (
	"time"

	"github.com/google/uuid"
)

// ApprovalStatus represents the administrative approval state of an account
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// User represents an account with its security state
type User struct {
	ID                  uuid.UUID      `json:"id"`
	Email               string         `json:"email"`
	Name                string         `json:"name"`
	Password            string         `json:"-"`
	Active              bool           `json:"active"`
	ApprovalStatus      ApprovalStatus `json:"approval_status"`
	FailedLoginAttempts int            `json:"-"`
	AccountLockedUntil  *time.Time     `json:"account_locked_until,omitempty"`
	LastLoginAt         *time.Time     `json:"last_login_at"`
	LastLoginIP         *string        `json:"last_login_ip,omitempty"`
	CurrentSessionID    *string        `json:"-"`
	PasswordChangedAt   *time.Time     `json:"password_changed_at,omitempty"`
	PasswordExpiresAt   *time.Time     `json:"password_expires_at,omitempty"`
	Roles               []Role         `json:"roles,omitempty"`
	DeletedAt           *time.Time     `json:"deleted_at,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// IsLocked reports whether the account lock deadline is set and still in the future.
func (u *User) IsLocked(now time.Time) bool {
	return u.AccountLockedUntil != nil && now.Before(*u.AccountLockedUntil)
}

// PasswordExpired reports whether the password expiry deadline has passed.
// A nil expiry means the password never expires.
func (u *User) PasswordExpired(now time.Time) bool {
	return u.PasswordExpiresAt != nil && now.After(*u.PasswordExpiresAt)
}

// CreateUserRequest represents the request to create a new user
type CreateUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required,min=3,max=100"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

// UpdateUserRequest represents the request to update a user
type UpdateUserRequest struct {
	Email  *string `json:"email,omitempty" binding:"omitempty,email"`
	Name   *string `json:"name,omitempty" binding:"omitempty,min=3,max=100"`
	Active *bool   `json:"active,omitempty"`
}

// ChangePasswordRequest represents the request to change a user's password
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=72"`
}
