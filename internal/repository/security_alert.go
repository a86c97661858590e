package repository

import (
	"context"
	"time"

	"sentinela/internal/models"

	"github.com/google/uuid"
)

// SecurityAlertRepository stores security alerts raised by the monitoring
// heuristics.
type SecurityAlertRepository interface {
	Repository
	Create(ctx context.Context, alert *models.SecurityAlert) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.SecurityAlert, error)
	List(ctx context.Context, filter AlertFilter) ([]models.SecurityAlert, error)

	// Resolve marks an open alert resolved. Resolving an alert that is already
	// resolved is a no-op and returns nil.
	Resolve(ctx context.Context, id uuid.UUID, resolvedBy uuid.UUID, notes string, at time.Time) error

	// HasRecentOpen reports whether an unresolved alert of the given type
	// already exists for the identifier since the given time, so heuristics do
	// not raise duplicates on every attempt past the threshold.
	HasRecentOpen(ctx context.Context, alertType, identifier string, since time.Time) (bool, error)

	CountOpen(ctx context.Context) (int, error)
	CountResolvedSince(ctx context.Context, since time.Time) (int, error)
	DeleteResolvedOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// AlertFilter defines the filter options for listing security alerts
type AlertFilter struct {
	OnlyUnresolved bool
	AlertTypes     []string
	OrderBy        string
	OrderDesc      bool
	Limit          *int
	Offset         *int
}
