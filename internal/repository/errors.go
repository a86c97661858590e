package repository

import "errors"

var (
	// Common errors
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("conflict")
	ErrInUse     = errors.New("has associated records")
	ErrDuplicate = errors.New("duplicate entry")

	// User errors
	ErrUserNotFound = errors.New("user not found")
	ErrEmailExists  = errors.New("email already exists")
	ErrAdminDelete  = errors.New("cannot delete admin user")

	// Role / permission errors
	ErrRoleNotFound       = errors.New("role not found")
	ErrRoleExists         = errors.New("role already exists")
	ErrRoleInUse          = errors.New("role is in use")
	ErrProtectedRole      = errors.New("cannot modify protected role")
	ErrPermissionNotFound = errors.New("permission not found")
	ErrPermissionExists   = errors.New("permission already exists")

	// Password errors
	ErrPasswordReuse = errors.New("password was used recently")

	// Alert errors
	ErrAlertNotFound = errors.New("alert not found")
)
