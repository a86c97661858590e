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

type roleRepository struct {
	repository.BaseRepository
}

// NewRoleRepository creates a new PostgreSQL role repository
func NewRoleRepository(db *sql.DB) repository.RoleRepository {
	return &roleRepository{
		BaseRepository: repository.NewBaseRepository(db),
	}
}

func (r *roleRepository) Create(ctx context.Context, role *models.Role) error {
	var count int
	err := r.DB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM roles WHERE slug = $1 AND deleted_at IS NULL",
		role.Slug,
	).Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		return repository.ErrRoleExists
	}

	query := `
		INSERT INTO roles (id, slug, name, is_protected, created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $5, NULL)
		RETURNING id, created_at, updated_at`

	now := time.Now()
	role.ID = uuid.New()

	return r.DB().QueryRowContext(ctx, query,
		role.ID,
		role.Slug,
		role.Name,
		role.IsProtected,
		now,
	).Scan(&role.ID, &role.CreatedAt, &role.UpdatedAt)
}

func (r *roleRepository) Update(ctx context.Context, role *models.Role) error {
	var isProtected bool
	err := r.DB().QueryRowContext(ctx,
		"SELECT is_protected FROM roles WHERE id = $1 AND deleted_at IS NULL",
		role.ID,
	).Scan(&isProtected)
	if err == sql.ErrNoRows {
		return repository.ErrRoleNotFound
	}
	if err != nil {
		return err
	}
	if isProtected {
		return repository.ErrProtectedRole
	}

	query := `
		UPDATE roles
		SET name = $1, updated_at = $2
		WHERE id = $3 AND deleted_at IS NULL
		RETURNING updated_at`

	if err := r.DB().QueryRowContext(ctx, query,
		role.Name,
		time.Now(),
		role.ID,
	).Scan(&role.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return repository.ErrRoleNotFound
		}
		return err
	}
	return nil
}

func (r *roleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	var isProtected bool
	err := r.DB().QueryRowContext(ctx,
		"SELECT is_protected FROM roles WHERE id = $1 AND deleted_at IS NULL",
		id,
	).Scan(&isProtected)
	if err == sql.ErrNoRows {
		return repository.ErrRoleNotFound
	}
	if err != nil {
		return err
	}
	if isProtected {
		return repository.ErrProtectedRole
	}

	var inUse bool
	err = r.DB().QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM user_roles WHERE role_id = $1)",
		id,
	).Scan(&inUse)
	if err != nil {
		return err
	}
	if inUse {
		return repository.ErrRoleInUse
	}

	query := `
		UPDATE roles
		SET deleted_at = $1, updated_at = $1
		WHERE id = $2 AND deleted_at IS NULL
		RETURNING deleted_at`

	var deletedAt time.Time
	if err := r.DB().QueryRowContext(ctx, query, time.Now(), id).Scan(&deletedAt); err != nil {
		if err == sql.ErrNoRows {
			return repository.ErrRoleNotFound
		}
		return err
	}
	return nil
}

func (r *roleRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Role, error) {
	role := &models.Role{}
	query := `
		SELECT id, slug, name, is_protected, created_at, updated_at, deleted_at
		FROM roles
		WHERE id = $1 AND deleted_at IS NULL`

	err := r.DB().QueryRowContext(ctx, query, id).Scan(
		&role.ID,
		&role.Slug,
		&role.Name,
		&role.IsProtected,
		&role.CreatedAt,
		&role.UpdatedAt,
		&role.DeletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, repository.ErrRoleNotFound
	}
	if err != nil {
		return nil, err
	}
	return role, nil
}

func (r *roleRepository) GetBySlug(ctx context.Context, slug string) (*models.Role, error) {
	role := &models.Role{}
	query := `
		SELECT id, slug, name, is_protected, created_at, updated_at, deleted_at
		FROM roles
		WHERE slug = $1 AND deleted_at IS NULL`

	err := r.DB().QueryRowContext(ctx, query, slug).Scan(
		&role.ID,
		&role.Slug,
		&role.Name,
		&role.IsProtected,
		&role.CreatedAt,
		&role.UpdatedAt,
		&role.DeletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, repository.ErrRoleNotFound
	}
	if err != nil {
		return nil, err
	}
	return role, nil
}

func (r *roleRepository) List(ctx context.Context, filter repository.RoleFilter) ([]models.Role, error) {
	conditions := make([]string, 0)
	args := make([]interface{}, 0)
	argCount := 1

	if filter.Search != nil {
		conditions = append(conditions, fmt.Sprintf("(slug ILIKE $%d OR name ILIKE $%d)", argCount, argCount))
		args = append(args, "%"+*filter.Search+"%")
		argCount++
	}

	if filter.Protected != nil {
		conditions = append(conditions, fmt.Sprintf("is_protected = $%d", argCount))
		args = append(args, *filter.Protected)
		argCount++
	}

	query := `
		SELECT id, slug, name, is_protected, created_at, updated_at
		FROM roles
		WHERE deleted_at IS NULL`

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
		query += " ORDER BY slug ASC"
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

	var roles []models.Role
	for rows.Next() {
		var role models.Role
		if err := rows.Scan(
			&role.ID,
			&role.Slug,
			&role.Name,
			&role.IsProtected,
			&role.CreatedAt,
			&role.UpdatedAt,
		); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *roleRepository) GetRolesForUser(ctx context.Context, userID uuid.UUID) ([]models.Role, error) {
	query := `
		SELECT r.id, r.slug, r.name, r.is_protected, r.created_at, r.updated_at
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1 AND r.deleted_at IS NULL
		ORDER BY r.slug ASC`

	rows, err := r.DB().QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []models.Role
	for rows.Next() {
		var role models.Role
		if err := rows.Scan(
			&role.ID,
			&role.Slug,
			&role.Name,
			&role.IsProtected,
			&role.CreatedAt,
			&role.UpdatedAt,
		); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *roleRepository) GrantToUser(ctx context.Context, roleID, userID uuid.UUID) error {
	if err := r.exists(ctx, roleID); err != nil {
		return err
	}

	query := `
		INSERT INTO user_roles (user_id, role_id, created_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (user_id, role_id) DO NOTHING`

	_, err := r.DB().ExecContext(ctx, query, userID, roleID)
	return err
}

func (r *roleRepository) RevokeFromUser(ctx context.Context, roleID, userID uuid.UUID) error {
	query := `DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`
	_, err := r.DB().ExecContext(ctx, query, userID, roleID)
	return err
}

func (r *roleRepository) GetPermissions(ctx context.Context, roleID uuid.UUID) ([]models.Permission, error) {
	query := `
		SELECT p.id, p.slug, p.name, p.description, p.created_at, p.updated_at
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = $1 AND p.deleted_at IS NULL
		ORDER BY p.slug ASC`

	rows, err := r.DB().QueryContext(ctx, query, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPermissions(rows)
}

func (r *roleRepository) AddPermission(ctx context.Context, roleID, permissionID uuid.UUID) error {
	if err := r.exists(ctx, roleID); err != nil {
		return err
	}

	query := `
		INSERT INTO role_permissions (role_id, permission_id, created_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (role_id, permission_id) DO NOTHING`

	_, err := r.DB().ExecContext(ctx, query, roleID, permissionID)
	return err
}

func (r *roleRepository) RemovePermission(ctx context.Context, roleID, permissionID uuid.UUID) error {
	query := `DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`
	_, err := r.DB().ExecContext(ctx, query, roleID, permissionID)
	return err
}

func (r *roleRepository) ListUserIDsWithRole(ctx context.Context, roleID uuid.UUID) ([]uuid.UUID, error) {
	query := `SELECT user_id FROM user_roles WHERE role_id = $1`

	rows, err := r.DB().QueryContext(ctx, query, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *roleRepository) exists(ctx context.Context, roleID uuid.UUID) error {
	var exists bool
	err := r.DB().QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM roles WHERE id = $1 AND deleted_at IS NULL)",
		roleID,
	).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return repository.ErrRoleNotFound
	}
	return nil
}
