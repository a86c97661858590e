package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditCategory groups audit events by domain
type AuditCategory string

const (
	CategoryAuthentication AuditCategory = "authentication"
	CategoryAuthorization  AuditCategory = "authorization"
	CategoryUserManagement AuditCategory = "user_management"
	CategorySecurity       AuditCategory = "security"
	CategorySystem         AuditCategory = "system"
)

// AuditSeverity ranks audit events
type AuditSeverity string

const (
	SeverityInfo     AuditSeverity = "info"
	SeverityWarning  AuditSeverity = "warning"
	SeverityCritical AuditSeverity = "critical"
)

// Audit event types recorded by the service. Free-form strings are accepted
// too; these constants cover the built-in helpers.
const (
	EventUserCreated     = "user.created"
	EventUserUpdated     = "user.updated"
	EventUserDeleted     = "user.deleted"
	EventUserApproved    = "user.approved"
	EventUserRejected    = "user.rejected"
	EventUserDeactivated = "user.deactivated"
	EventPasswordChanged = "user.password_changed"
	EventLoginSuccess    = "auth.login_success"
	EventLoginFailed     = "auth.login_failed"
	EventLogout          = "auth.logout"
	EventAccountLocked     = "auth.account_locked"
	EventAccountUnlocked   = "auth.account_unlocked"
	EventSessionRevoked    = "auth.session_revoked"
	EventPermissionGrant   = "authz.permission_granted"
	EventPermissionRevoked = "authz.permission_revoked"
	EventRoleGranted     = "authz.role_granted"
	EventRoleRevoked     = "authz.role_revoked"
	EventAlertRaised     = "security.alert_raised"
	EventAlertResolved   = "security.alert_resolved"
	EventDataPruned      = "system.data_pruned"
)

// AuditLog is an append-only record of a state change or security event
type AuditLog struct {
	ID              uuid.UUID     `json:"id" db:"id"`
	ActorID         *uuid.UUID    `json:"actor_id" db:"actor_id"` // nil for system-generated events
	EventType       string        `json:"event_type" db:"event_type"`
	Category        AuditCategory `json:"category" db:"category"`
	Severity        AuditSeverity `json:"severity" db:"severity"`
	Description     string        `json:"description" db:"description"`
	SubjectType     *string       `json:"subject_type,omitempty" db:"subject_type"`
	SubjectID       *string       `json:"subject_id,omitempty" db:"subject_id"`
	OldValues       string        `json:"old_values,omitempty" db:"old_values"` // JSON snapshot
	NewValues       string        `json:"new_values,omitempty" db:"new_values"` // JSON snapshot
	Metadata        string        `json:"metadata,omitempty" db:"metadata"`     // JSON context
	IPAddress       string        `json:"ip_address" db:"ip_address"`
	UserAgent       string        `json:"user_agent" db:"user_agent"`
	IsSecurityAlert bool          `json:"is_security_alert" db:"is_security_alert"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
}

// CreateAuditLogRequest represents the request to append a new audit log entry
type CreateAuditLogRequest struct {
	ActorID         *uuid.UUID    `json:"actor_id"`
	EventType       string        `json:"event_type" binding:"required"`
	Category        AuditCategory `json:"category" binding:"required"`
	Severity        AuditSeverity `json:"severity"`
	Description     string        `json:"description" binding:"required"`
	SubjectType     *string       `json:"subject_type"`
	SubjectID       *string       `json:"subject_id"`
	OldValues       string        `json:"old_values"`
	NewValues       string        `json:"new_values"`
	Metadata        string        `json:"metadata"`
	IPAddress       string        `json:"ip_address"`
	UserAgent       string        `json:"user_agent"`
	IsSecurityAlert bool          `json:"is_security_alert"`
}
