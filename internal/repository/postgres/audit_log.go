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

type auditLogRepository struct {
	repository.BaseRepository
}

// NewAuditLogRepository creates a new PostgreSQL audit log repository
func NewAuditLogRepository(db *sql.DB) repository.AuditLogRepository {
	return &auditLogRepository{
		BaseRepository: repository.NewBaseRepository(db),
	}
}

func (r *auditLogRepository) Create(ctx context.Context, log *models.CreateAuditLogRequest) error {
	query := `
		INSERT INTO audit_logs (
			id, actor_id, event_type, category, severity, description,
			subject_type, subject_id, old_values, new_values, metadata,
			ip_address, user_agent, is_security_alert, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)`

	severity := log.Severity
	if severity == "" {
		severity = models.SeverityInfo
	}

	_, err := r.DB().ExecContext(ctx, query,
		uuid.New(),
		log.ActorID,
		log.EventType,
		log.Category,
		severity,
		log.Description,
		log.SubjectType,
		log.SubjectID,
		log.OldValues,
		log.NewValues,
		log.Metadata,
		log.IPAddress,
		log.UserAgent,
		log.IsSecurityAlert,
		time.Now(),
	)
	return err
}

func (r *auditLogRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AuditLog, error) {
	query := `
		SELECT id, actor_id, event_type, category, severity, description,
			   subject_type, subject_id, old_values, new_values, metadata,
			   ip_address, user_agent, is_security_alert, created_at
		FROM audit_logs
		WHERE id = $1`

	var log models.AuditLog
	err := r.DB().QueryRowContext(ctx, query, id).Scan(
		&log.ID,
		&log.ActorID,
		&log.EventType,
		&log.Category,
		&log.Severity,
		&log.Description,
		&log.SubjectType,
		&log.SubjectID,
		&log.OldValues,
		&log.NewValues,
		&log.Metadata,
		&log.IPAddress,
		&log.UserAgent,
		&log.IsSecurityAlert,
		&log.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &log, nil
}

func (r *auditLogRepository) buildListQuery(filter repository.AuditLogFilter) (string, []interface{}) {
	var conditions []string
	var params []interface{}
	paramCount := 1

	query := `
		SELECT id, actor_id, event_type, category, severity, description,
			   subject_type, subject_id, old_values, new_values, metadata,
			   ip_address, user_agent, is_security_alert, created_at
		FROM audit_logs`

	if filter.ActorID != nil {
		conditions = append(conditions, fmt.Sprintf("actor_id = $%d", paramCount))
		params = append(params, filter.ActorID)
		paramCount++
	}

	if len(filter.EventTypes) > 0 {
		conditions = append(conditions, fmt.Sprintf("event_type = ANY($%d)", paramCount))
		params = append(params, pq.Array(filter.EventTypes))
		paramCount++
	}

	if len(filter.Categories) > 0 {
		conditions = append(conditions, fmt.Sprintf("category = ANY($%d)", paramCount))
		params = append(params, pq.Array(filter.Categories))
		paramCount++
	}

	if len(filter.Severities) > 0 {
		conditions = append(conditions, fmt.Sprintf("severity = ANY($%d)", paramCount))
		params = append(params, pq.Array(filter.Severities))
		paramCount++
	}

	if filter.SubjectType != nil {
		conditions = append(conditions, fmt.Sprintf("subject_type = $%d", paramCount))
		params = append(params, filter.SubjectType)
		paramCount++
	}

	if filter.SubjectID != nil {
		conditions = append(conditions, fmt.Sprintf("subject_id = $%d", paramCount))
		params = append(params, filter.SubjectID)
		paramCount++
	}

	if filter.IPAddress != nil {
		conditions = append(conditions, fmt.Sprintf("ip_address = $%d", paramCount))
		params = append(params, filter.IPAddress)
		paramCount++
	}

	if filter.SecurityAlertsOnly {
		conditions = append(conditions, "is_security_alert = true")
	}

	if filter.CreatedBefore != nil {
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", paramCount))
		params = append(params, filter.CreatedBefore)
		paramCount++
	}

	if filter.CreatedAfter != nil {
		conditions = append(conditions, fmt.Sprintf("created_at > $%d", paramCount))
		params = append(params, filter.CreatedAfter)
		paramCount++
	}

	if filter.SearchTerm != nil {
		conditions = append(conditions, fmt.Sprintf("(description ILIKE $%d OR metadata::text ILIKE $%d)", paramCount, paramCount))
		params = append(params, "%"+*filter.SearchTerm+"%")
		paramCount++
	}

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
		query += fmt.Sprintf(" LIMIT $%d", paramCount)
		params = append(params, filter.Limit)
		paramCount++
	}

	if filter.Offset != nil {
		query += fmt.Sprintf(" OFFSET $%d", paramCount)
		params = append(params, filter.Offset)
	}

	return query, params
}

func (r *auditLogRepository) List(ctx context.Context, filter repository.AuditLogFilter) ([]models.AuditLog, error) {
	query, params := r.buildListQuery(filter)

	rows, err := r.DB().QueryContext(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.AuditLog
	for rows.Next() {
		var log models.AuditLog
		if err := rows.Scan(
			&log.ID,
			&log.ActorID,
			&log.EventType,
			&log.Category,
			&log.Severity,
			&log.Description,
			&log.SubjectType,
			&log.SubjectID,
			&log.OldValues,
			&log.NewValues,
			&log.Metadata,
			&log.IPAddress,
			&log.UserAgent,
			&log.IsSecurityAlert,
			&log.CreatedAt,
		); err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *auditLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time, categories []string) (int64, error) {
	var result sql.Result
	var err error

	if len(categories) > 0 {
		result, err = r.DB().ExecContext(ctx,
			"DELETE FROM audit_logs WHERE created_at < $1 AND category = ANY($2)",
			cutoff, pq.Array(categories),
		)
	} else {
		result, err = r.DB().ExecContext(ctx,
			"DELETE FROM audit_logs WHERE created_at < $1",
			cutoff,
		)
	}
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
