package postgres

import (
	"context"
	"database/sql"
	"time"

	"sentinela/internal/models"
	"sentinela/internal/repository"

	"github.com/google/uuid"
)

type loginAttemptRepository struct {
	repository.BaseRepository
}

// NewLoginAttemptRepository creates a new PostgreSQL login attempt repository
func NewLoginAttemptRepository(db *sql.DB) repository.LoginAttemptRepository {
	return &loginAttemptRepository{
		BaseRepository: repository.NewBaseRepository(db),
	}
}

func (r *loginAttemptRepository) Create(ctx context.Context, attempt *models.LoginAttempt) error {
	query := `
		INSERT INTO login_attempts (id, user_id, email, ip_address, user_agent, success, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	attempt.ID = uuid.New()
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now()
	}

	return r.DB().QueryRowContext(ctx, query,
		attempt.ID,
		attempt.UserID,
		attempt.Email,
		attempt.IPAddress,
		attempt.UserAgent,
		attempt.Success,
		attempt.CreatedAt,
	).Scan(&attempt.ID, &attempt.CreatedAt)
}

func (r *loginAttemptRepository) CountFailuresByEmail(ctx context.Context, email string, since time.Time) (int, error) {
	var count int
	query := `
		SELECT COUNT(*)
		FROM login_attempts
		WHERE email = $1
		AND success = false
		AND created_at >= $2`

	err := r.DB().QueryRowContext(ctx, query, email, since).Scan(&count)
	return count, err
}

func (r *loginAttemptRepository) CountFailuresByIP(ctx context.Context, ip string, since time.Time) (int, error) {
	var count int
	query := `
		SELECT COUNT(*)
		FROM login_attempts
		WHERE ip_address = $1
		AND success = false
		AND created_at >= $2`

	err := r.DB().QueryRowContext(ctx, query, ip, since).Scan(&count)
	return count, err
}

func (r *loginAttemptRepository) CountSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.DB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM login_attempts WHERE created_at >= $1",
		since,
	).Scan(&count)
	return count, err
}

func (r *loginAttemptRepository) CountFailuresSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.DB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM login_attempts WHERE success = false AND created_at >= $1",
		since,
	).Scan(&count)
	return count, err
}

func (r *loginAttemptRepository) CountDistinctFailedIPs(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.DB().QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT ip_address) FROM login_attempts WHERE success = false AND created_at >= $1",
		since,
	).Scan(&count)
	return count, err
}

func (r *loginAttemptRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.DB().ExecContext(ctx,
		"DELETE FROM login_attempts WHERE created_at < $1",
		cutoff,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
