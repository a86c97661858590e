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
	"github.com/lib/pq"
)

type securityAlertRepository struct {
	repository.BaseRepository
}

// NewSecurityAlertRepository creates a new PostgreSQL security alert repository
func NewSecurityAlertRepository(db *sql.DB) repository.SecurityAlertRepository {
	return &securityAlertRepository{
		BaseRepository: repository.NewBaseRepository(db),
	}
}

func (r *securityAlertRepository) Create(ctx context.Context, alert *models.SecurityAlert) error {
	query := `
		INSERT INTO security_alerts (
			id, alert_type, severity, subject_user_id, identifier,
			description, metadata, resolved, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, false, $8
		)
		RETURNING id, created_at`

	alert.ID = uuid.New()
	if alert.Severity == "" {
		alert.Severity = models.SeverityWarning
	}

	return r.DB().QueryRowContext(ctx, query,
		alert.ID,
		alert.AlertType,
		alert.Severity,
		alert.SubjectUserID,
		alert.Identifier,
		alert.Description,
		alert.Metadata,
		time.Now(),
	).Scan(&alert.ID, &alert.CreatedAt)
}

func (r *securityAlertRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SecurityAlert, error) {
	alert := &models.SecurityAlert{}
	query := `
		SELECT id, alert_type, severity, subject_user_id, identifier,
			   description, metadata, resolved, resolved_by, resolution_notes,
			   resolved_at, created_at
		FROM security_alerts
		WHERE id = $1`

	err := r.DB().QueryRowContext(ctx, query, id).Scan(
		&alert.ID,
		&alert.AlertType,
		&alert.Severity,
		&alert.SubjectUserID,
		&alert.Identifier,
		&alert.Description,
		&alert.Metadata,
		&alert.Resolved,
		&alert.ResolvedBy,
		&alert.ResolutionNotes,
		&alert.ResolvedAt,
		&alert.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, repository.ErrAlertNotFound
	}
	if err != nil {
		return nil, err
	}
	return alert, nil
}

func (r *securityAlertRepository) List(ctx context.Context, filter repository.AlertFilter) ([]models.SecurityAlert, error) {
	conditions := make([]string, 0)
	args := make([]interface{}, 0)
	argCount := 1

	if filter.OnlyUnresolved {
		conditions = append(conditions, "resolved = false")
	}

	if len(filter.AlertTypes) > 0 {
		conditions = append(conditions, fmt.Sprintf("alert_type = ANY($%d)", argCount))
		args = append(args, pq.Array(filter.AlertTypes))
		argCount++
	}

	query := `
		SELECT id, alert_type, severity, subject_user_id, identifier,
			   description, metadata, resolved, resolved_by, resolution_notes,
			   resolved_at, created_at
		FROM security_alerts`

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	if filter.OrderBy != "" {
		query += fmt.Sprintf(" ORDER BY %s", filter.OrderBy)
		if filter.OrderDesc {
			query += " DESC"
		}
	} else {
		query += " ORDER BY created_at DESC"
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

	var alerts []models.SecurityAlert
	for rows.Next() {
		var alert models.SecurityAlert
		if err := rows.Scan(
			&alert.ID,
			&alert.AlertType,
			&alert.Severity,
			&alert.SubjectUserID,
			&alert.Identifier,
			&alert.Description,
			&alert.Metadata,
			&alert.Resolved,
			&alert.ResolvedBy,
			&alert.ResolutionNotes,
			&alert.ResolvedAt,
			&alert.CreatedAt,
		); err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}
	return alerts, nil
}

func (r *securityAlertRepository) Resolve(ctx context.Context, id uuid.UUID, resolvedBy uuid.UUID, notes string, at time.Time) error {
	// The resolved = false guard makes re-resolution a no-op without touching
	// the first resolution's fields.
	query := `
		UPDATE security_alerts
		SET resolved = true,
			resolved_by = $1,
			resolution_notes = $2,
			resolved_at = $3
		WHERE id = $4 AND resolved = false`

	result, err := r.DB().ExecContext(ctx, query, resolvedBy, notes, at, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		// Either already resolved (fine) or missing (error)
		var exists bool
		if err := r.DB().QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM security_alerts WHERE id = $1)", id,
		).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return repository.ErrAlertNotFound
		}
	}
	return nil
}

func (r *securityAlertRepository) HasRecentOpen(ctx context.Context, alertType, identifier string, since time.Time) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS(
			SELECT 1 FROM security_alerts
			WHERE alert_type = $1
			AND identifier = $2
			AND resolved = false
			AND created_at >= $3
		)`

	err := r.DB().QueryRowContext(ctx, query, alertType, identifier, since).Scan(&exists)
	return exists, err
}

func (r *securityAlertRepository) CountOpen(ctx context.Context) (int, error) {
	var count int
	err := r.DB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM security_alerts WHERE resolved = false",
	).Scan(&count)
	return count, err
}

func (r *securityAlertRepository) CountResolvedSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.DB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM security_alerts WHERE resolved = true AND resolved_at >= $1",
		since,
	).Scan(&count)
	return count, err
}

func (r *securityAlertRepository) DeleteResolvedOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.DB().ExecContext(ctx,
		"DELETE FROM security_alerts WHERE resolved = true AND created_at < $1",
		cutoff,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
