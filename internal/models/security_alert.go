package models

import (
	"time"

	"github.com/google/uuid"
)

// Security alert types raised by the monitoring heuristics
const (
	AlertBruteForce         = "brute_force"
	AlertAccountEnumeration = "account_enumeration"
	AlertAccountLockout     = "account_lockout"
	AlertSuspiciousActivity = "suspicious_activity"
)

// SecurityAlert is raised when a monitoring heuristic crosses its threshold.
// It is the only audit-owned record that is mutated after creation, and only
// through resolution.
type SecurityAlert struct {
	ID              uuid.UUID     `json:"id" db:"id"`
	AlertType       string        `json:"alert_type" db:"alert_type"`
	Severity        AuditSeverity `json:"severity" db:"severity"`
	SubjectUserID   *uuid.UUID    `json:"subject_user_id" db:"subject_user_id"`
	Identifier      string        `json:"identifier" db:"identifier"` // email or IP the heuristic keyed on
	Description     string        `json:"description" db:"description"`
	Metadata        string        `json:"metadata,omitempty" db:"metadata"`
	Resolved        bool          `json:"resolved" db:"resolved"`
	ResolvedBy      *uuid.UUID    `json:"resolved_by,omitempty" db:"resolved_by"`
	ResolutionNotes *string       `json:"resolution_notes,omitempty" db:"resolution_notes"`
	ResolvedAt      *time.Time    `json:"resolved_at,omitempty" db:"resolved_at"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
}

// ResolveAlertRequest represents the request to resolve a security alert
type ResolveAlertRequest struct {
	Notes string `json:"notes" binding:"max=1000"`
}

// SecurityMetrics is the JSON-serializable snapshot consumed by dashboards
type SecurityMetrics struct {
	WindowDays       int       `json:"window_days"`
	TotalAttempts    int       `json:"total_attempts"`
	FailedAttempts   int       `json:"failed_attempts"`
	UniqueFailedIPs  int       `json:"unique_failed_ips"`
	LockedAccounts   int       `json:"locked_accounts"`
	OpenAlerts       int       `json:"open_alerts"`
	ResolvedAlerts   int       `json:"resolved_alerts"`
	PendingApprovals int       `json:"pending_approvals"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// SIEMAlertExport is one exported alert row in the SIEM snapshot
type SIEMAlertExport struct {
	ID          uuid.UUID  `json:"id"`
	AlertType   string     `json:"alert_type"`
	Severity    string     `json:"severity"`
	Identifier  string     `json:"identifier"`
	SubjectUser *uuid.UUID `json:"subject_user,omitempty"`
	Description string     `json:"description"`
	Resolved    bool       `json:"resolved"`
	RaisedAt    time.Time  `json:"raised_at"`
}
