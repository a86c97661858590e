package repository

import (
	"context"
	"time"

	"sentinela/internal/models"
)

// LoginAttemptRepository stores the append-only authentication attempt log.
// Rows are never updated; retention pruning is the only delete path.
type LoginAttemptRepository interface {
	Repository
	Create(ctx context.Context, attempt *models.LoginAttempt) error

	CountFailuresByEmail(ctx context.Context, email string, since time.Time) (int, error)
	CountFailuresByIP(ctx context.Context, ip string, since time.Time) (int, error)
	CountSince(ctx context.Context, since time.Time) (int, error)
	CountFailuresSince(ctx context.Context, since time.Time) (int, error)
	CountDistinctFailedIPs(ctx context.Context, since time.Time) (int, error)

	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
