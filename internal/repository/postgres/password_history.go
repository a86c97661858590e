package postgres

import (
	"context"
	"database/sql"
	"time"

	"sentinela/internal/models"
	"sentinela/internal/repository"

	"github.com/google/uuid"
)

type passwordHistoryRepository struct {
	repository.BaseRepository
}

// NewPasswordHistoryRepository creates a new PostgreSQL password history repository
func NewPasswordHistoryRepository(db *sql.DB) repository.PasswordHistoryRepository {
	return &passwordHistoryRepository{
		BaseRepository: repository.NewBaseRepository(db),
	}
}

func (r *passwordHistoryRepository) Add(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	query := `
		INSERT INTO password_history (id, user_id, password_hash, created_at)
		VALUES ($1, $2, $3, $4)`

	_, err := r.DB().ExecContext(ctx, query, uuid.New(), userID, passwordHash, time.Now())
	return err
}

func (r *passwordHistoryRepository) ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]models.PasswordHistory, error) {
	query := `
		SELECT id, user_id, password_hash, created_at
		FROM password_history
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.DB().QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var histories []models.PasswordHistory
	for rows.Next() {
		var history models.PasswordHistory
		if err := rows.Scan(
			&history.ID,
			&history.UserID,
			&history.PasswordHash,
			&history.CreatedAt,
		); err != nil {
			return nil, err
		}
		histories = append(histories, history)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}
	return histories, nil
}

func (r *passwordHistoryRepository) Prune(ctx context.Context, userID uuid.UUID, keep int) error {
	query := `
		DELETE FROM password_history
		WHERE user_id = $1
		AND id NOT IN (
			SELECT id FROM password_history
			WHERE user_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		)`

	_, err := r.DB().ExecContext(ctx, query, userID, keep)
	return err
}
