package repository

import (
	"context"

	"sentinela/internal/models"

	"github.com/google/uuid"
)

// PasswordHistoryRepository stores retained prior password hashes per user.
type PasswordHistoryRepository interface {
	Repository
	Add(ctx context.Context, userID uuid.UUID, passwordHash string) error
	// ListRecent returns up to limit entries, newest first.
	ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]models.PasswordHistory, error)
	// Prune removes entries beyond the newest keep entries for the user.
	Prune(ctx context.Context, userID uuid.UUID, keep int) error
}
