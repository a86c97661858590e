package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"sentinela/internal/models"
	"sentinela/internal/repository"

	"github.com/google/uuid"
)

type userRepository struct {
	repository.BaseRepository
}

// NewUserRepository creates a new PostgreSQL user repository
func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &userRepository{
		BaseRepository: repository.NewBaseRepository(db),
	}
}

const userColumns = `
	id, email, name, password, active, approval_status,
	failed_login_attempts, account_locked_until,
	last_login_at, last_login_ip, current_session_id,
	password_changed_at, password_expires_at,
	deleted_at, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Password,
		&user.Active,
		&user.ApprovalStatus,
		&user.FailedLoginAttempts,
		&user.AccountLockedUntil,
		&user.LastLoginAt,
		&user.LastLoginIP,
		&user.CurrentSessionID,
		&user.PasswordChangedAt,
		&user.PasswordExpiresAt,
		&user.DeletedAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, repository.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	var count int
	err := r.DB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE email = $1 AND deleted_at IS NULL",
		user.Email,
	).Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		return repository.ErrEmailExists
	}

	query := `
		INSERT INTO users (
			id, email, name, password, active, approval_status,
			failed_login_attempts, account_locked_until,
			last_login_at, last_login_ip, current_session_id,
			password_changed_at, password_expires_at,
			deleted_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NULL, $14, $14
		)
		RETURNING id, created_at, updated_at`

	now := time.Now()
	user.ID = uuid.New()
	if user.ApprovalStatus == "" {
		user.ApprovalStatus = models.ApprovalPending
	}

	return r.DB().QueryRowContext(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		user.Password,
		user.Active,
		user.ApprovalStatus,
		user.FailedLoginAttempts,
		user.AccountLockedUntil,
		user.LastLoginAt,
		user.LastLoginIP,
		user.CurrentSessionID,
		user.PasswordChangedAt,
		user.PasswordExpiresAt,
		now,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	var count int
	err := r.DB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE email = $1 AND id != $2 AND deleted_at IS NULL",
		user.Email,
		user.ID,
	).Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		return repository.ErrEmailExists
	}

	query := `
		UPDATE users
		SET email = $1, name = $2, active = $3, updated_at = $4
		WHERE id = $5 AND deleted_at IS NULL
		RETURNING updated_at`

	if err := r.DB().QueryRowContext(ctx, query,
		user.Email,
		user.Name,
		user.Active,
		time.Now(),
		user.ID,
	).Scan(&user.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return repository.ErrUserNotFound
		}
		return err
	}
	return nil
}

func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	// Admins cannot be deleted through this path
	var isAdmin bool
	err := r.DB().QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM user_roles ur
			JOIN roles r ON ur.role_id = r.id
			WHERE ur.user_id = $1 AND r.slug = $2 AND r.deleted_at IS NULL
		)`,
		id, models.AdminRoleSlug,
	).Scan(&isAdmin)
	if err != nil {
		return err
	}
	if isAdmin {
		return repository.ErrAdminDelete
	}

	query := `
		UPDATE users
		SET deleted_at = $1, updated_at = $1
		WHERE id = $2 AND deleted_at IS NULL
		RETURNING deleted_at`

	var deletedAt time.Time
	if err := r.DB().QueryRowContext(ctx, query, time.Now(), id).Scan(&deletedAt); err != nil {
		if err == sql.ErrNoRows {
			return repository.ErrUserNotFound
		}
		return err
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND deleted_at IS NULL`
	return scanUser(r.DB().QueryRowContext(ctx, query, id))
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 AND deleted_at IS NULL`
	return scanUser(r.DB().QueryRowContext(ctx, query, email))
}

func (r *userRepository) List(ctx context.Context, filter repository.UserFilter) ([]models.User, error) {
	conditions := make([]string, 0)
	args := make([]interface{}, 0)
	argCount := 1

	if filter.Search != nil {
		conditions = append(conditions, fmt.Sprintf("(email ILIKE $%d OR name ILIKE $%d)", argCount, argCount))
		args = append(args, "%"+*filter.Search+"%")
		argCount++
	}

	if filter.ApprovalStatus != nil {
		conditions = append(conditions, fmt.Sprintf("approval_status = $%d", argCount))
		args = append(args, *filter.ApprovalStatus)
		argCount++
	}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", argCount))
		args = append(args, *filter.Active)
		argCount++
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE deleted_at IS NULL`
	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}

	if filter.OrderBy != "" {
		query += fmt.Sprintf(" ORDER BY %s", filter.OrderBy)
		if filter.OrderDesc {
			query += " DESC"
		} else {
			query += " ASC"
		}
	} else {
		query += " ORDER BY email ASC"
	}

	if filter.Limit != nil {
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, *filter.Limit)
		argCount++
	}

	if filter.Offset != nil {
		query += fmt.Sprintf(" OFFSET $%d", argCount)
		args = append(args, *filter.Offset)
	}

	rows, err := r.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) RecordLoginFailure(ctx context.Context, id uuid.UUID, threshold int, lockUntil time.Time) (*time.Time, error) {
	// Single atomic statement so two concurrent failures at threshold-1 cannot
	// both miss the lock. The counter resets to zero at the moment of locking.
	query := `
		UPDATE users
		SET failed_login_attempts = CASE
				WHEN failed_login_attempts + 1 >= $2 THEN 0
				ELSE failed_login_attempts + 1
			END,
			account_locked_until = CASE
				WHEN failed_login_attempts + 1 >= $2 THEN $3
				ELSE account_locked_until
			END,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING account_locked_until`

	var lockedUntil *time.Time
	if err := r.DB().QueryRowContext(ctx, query, id, threshold, lockUntil).Scan(&lockedUntil); err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrUserNotFound
		}
		return nil, err
	}
	return lockedUntil, nil
}

func (r *userRepository) RecordLoginSuccess(ctx context.Context, id uuid.UUID, at time.Time, ip string) error {
	query := `
		UPDATE users
		SET failed_login_attempts = 0,
			account_locked_until = NULL,
			last_login_at = $1,
			last_login_ip = $2,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $3 AND deleted_at IS NULL`

	result, err := r.DB().ExecContext(ctx, query, at, ip, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return repository.ErrUserNotFound
	}
	return nil
}

func (r *userRepository) ClearLock(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE users
		SET failed_login_attempts = 0,
			account_locked_until = NULL,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.DB().ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return repository.ErrUserNotFound
	}
	return nil
}

func (r *userRepository) UpdatePassword(ctx context.Context, id uuid.UUID, hashedPassword string, expiresAt *time.Time, historyLimit int) error {
	tx, err := r.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE users
		SET password = $1,
			password_changed_at = CURRENT_TIMESTAMP,
			password_expires_at = $2,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $3 AND deleted_at IS NULL`,
		hashedPassword, expiresAt, id,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return repository.ErrUserNotFound
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO password_history (id, user_id, password_hash, created_at)
		VALUES ($1, $2, $3, CURRENT_TIMESTAMP)`,
		uuid.New(), id, hashedPassword,
	); err != nil {
		return err
	}

	// Prune oldest entries beyond the retention cap
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM password_history
		WHERE user_id = $1
		AND id NOT IN (
			SELECT id FROM password_history
			WHERE user_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		)`,
		id, historyLimit,
	); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *userRepository) UpdateSessionID(ctx context.Context, id uuid.UUID, sessionID *string) error {
	query := `
		UPDATE users
		SET current_session_id = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND deleted_at IS NULL`

	result, err := r.DB().ExecContext(ctx, query, sessionID, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return repository.ErrUserNotFound
	}
	return nil
}

func (r *userRepository) SetApprovalStatus(ctx context.Context, id uuid.UUID, status models.ApprovalStatus) error {
	query := `
		UPDATE users
		SET approval_status = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND deleted_at IS NULL`

	result, err := r.DB().ExecContext(ctx, query, status, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return repository.ErrUserNotFound
	}
	return nil
}

func (r *userRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	query := `
		UPDATE users
		SET active = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND deleted_at IS NULL`

	result, err := r.DB().ExecContext(ctx, query, active, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return repository.ErrUserNotFound
	}
	return nil
}

func (r *userRepository) DeactivateInactiveSince(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		UPDATE users
		SET active = false, updated_at = CURRENT_TIMESTAMP
		WHERE active = true
		AND deleted_at IS NULL
		AND last_login_at IS NOT NULL
		AND last_login_at < $1`

	result, err := r.DB().ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *userRepository) CountLocked(ctx context.Context, now time.Time) (int, error) {
	var count int
	err := r.DB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE account_locked_until > $1 AND deleted_at IS NULL",
		now,
	).Scan(&count)
	return count, err
}

func (r *userRepository) CountPendingApproval(ctx context.Context) (int, error) {
	var count int
	err := r.DB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE approval_status = $1 AND deleted_at IS NULL",
		models.ApprovalPending,
	).Scan(&count)
	return count, err
}
