package postgres

import (
	"context"
	"database/sql"
	"time"

	"sentinela/internal/models"
	"sentinela/internal/repository"

	"github.com/google/uuid"
)

type permissionRepository struct {
	repository.BaseRepository
}

// NewPermissionRepository creates a new PostgreSQL permission repository
func NewPermissionRepository(db *sql.DB) repository.PermissionRepository {
	return &permissionRepository{
		BaseRepository: repository.NewBaseRepository(db),
	}
}

func scanPermissions(rows *sql.Rows) ([]models.Permission, error) {
	var permissions []models.Permission
	for rows.Next() {
		var p models.Permission
		if err := rows.Scan(
			&p.ID,
			&p.Slug,
			&p.Name,
			&p.Description,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		permissions = append(permissions, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return permissions, nil
}

func (r *permissionRepository) Create(ctx context.Context, permission *models.Permission) error {
	var count int
	err := r.DB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM permissions WHERE slug = $1 AND deleted_at IS NULL",
		permission.Slug,
	).Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		return repository.ErrPermissionExists
	}

	query := `
		INSERT INTO permissions (id, slug, name, description, created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $5, NULL)
		RETURNING id, created_at, updated_at`

	now := time.Now()
	permission.ID = uuid.New()

	return r.DB().QueryRowContext(ctx, query,
		permission.ID,
		permission.Slug,
		permission.Name,
		permission.Description,
		now,
	).Scan(&permission.ID, &permission.CreatedAt, &permission.UpdatedAt)
}

func (r *permissionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE permissions
		SET deleted_at = $1, updated_at = $1
		WHERE id = $2 AND deleted_at IS NULL
		RETURNING deleted_at`

	var deletedAt time.Time
	if err := r.DB().QueryRowContext(ctx, query, time.Now(), id).Scan(&deletedAt); err != nil {
		if err == sql.ErrNoRows {
			return repository.ErrPermissionNotFound
		}
		return err
	}
	return nil
}

func (r *permissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Permission, error) {
	p := &models.Permission{}
	query := `
		SELECT id, slug, name, description, created_at, updated_at
		FROM permissions
		WHERE id = $1 AND deleted_at IS NULL`

	err := r.DB().QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.Slug,
		&p.Name,
		&p.Description,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, repository.ErrPermissionNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *permissionRepository) GetBySlug(ctx context.Context, slug string) (*models.Permission, error) {
	p := &models.Permission{}
	query := `
		SELECT id, slug, name, description, created_at, updated_at
		FROM permissions
		WHERE slug = $1 AND deleted_at IS NULL`

	err := r.DB().QueryRowContext(ctx, query, slug).Scan(
		&p.ID,
		&p.Slug,
		&p.Name,
		&p.Description,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, repository.ErrPermissionNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *permissionRepository) List(ctx context.Context) ([]models.Permission, error) {
	query := `
		SELECT id, slug, name, description, created_at, updated_at
		FROM permissions
		WHERE deleted_at IS NULL
		ORDER BY slug ASC`

	rows, err := r.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPermissions(rows)
}

func (r *permissionRepository) GetDirectForUser(ctx context.Context, userID uuid.UUID) ([]models.Permission, error) {
	query := `
		SELECT p.id, p.slug, p.name, p.description, p.created_at, p.updated_at
		FROM permissions p
		JOIN user_permissions up ON up.permission_id = p.id
		WHERE up.user_id = $1 AND p.deleted_at IS NULL
		ORDER BY p.slug ASC`

	rows, err := r.DB().QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPermissions(rows)
}

func (r *permissionRepository) GrantToUser(ctx context.Context, permissionID, userID uuid.UUID) error {
	var exists bool
	err := r.DB().QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM permissions WHERE id = $1 AND deleted_at IS NULL)",
		permissionID,
	).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return repository.ErrPermissionNotFound
	}

	query := `
		INSERT INTO user_permissions (user_id, permission_id, created_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (user_id, permission_id) DO NOTHING`

	_, err = r.DB().ExecContext(ctx, query, userID, permissionID)
	return err
}

func (r *permissionRepository) RevokeFromUser(ctx context.Context, permissionID, userID uuid.UUID) error {
	query := `DELETE FROM user_permissions WHERE user_id = $1 AND permission_id = $2`
	_, err := r.DB().ExecContext(ctx, query, userID, permissionID)
	return err
}
