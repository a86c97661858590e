package repository

import (
	"context"
	"time"

	"sentinela/internal/models"

	"github.com/google/uuid"
)

// AuditLogRepository stores the append-only audit trail.
type AuditLogRepository interface {
	Repository
	Create(ctx context.Context, log *models.CreateAuditLogRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.AuditLog, error)
	List(ctx context.Context, filter AuditLogFilter) ([]models.AuditLog, error)

	// DeleteOlderThan prunes entries older than the cutoff. An empty category
	// list means all categories.
	DeleteOlderThan(ctx context.Context, cutoff time.Time, categories []string) (int64, error)
}

// AuditLogFilter defines the filter options for querying audit logs
type AuditLogFilter struct {
	ActorID            *uuid.UUID
	EventTypes         []string
	Categories         []string
	Severities         []string
	SubjectType        *string
	SubjectID          *string
	IPAddress          *string
	SecurityAlertsOnly bool
	CreatedBefore      *time.Time
	CreatedAfter       *time.Time
	SearchTerm         *string
	OrderBy            string
	OrderDesc          bool
	Limit              *int
	Offset             *int
}
