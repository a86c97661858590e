package maintenance

import (
	"context"
	"fmt"
	"time"

	"sentinela/internal/audit"
	"sentinela/internal/config"
	"sentinela/internal/models"
	"sentinela/internal/repository"

	"go.uber.org/zap"
)

// prunableCategories are the audit categories subject to retention. Security
// events are kept indefinitely.
var prunableCategories = []string{
	string(models.CategoryAuthentication),
	string(models.CategoryAuthorization),
	string(models.CategoryUserManagement),
	string(models.CategorySystem),
}

func logPruned(ctx context.Context, auditSvc *audit.Service, what string, removed int64) {
	if removed == 0 {
		return
	}
	auditSvc.Log(ctx, &models.CreateAuditLogRequest{
		EventType:   models.EventDataPruned,
		Category:    models.CategorySystem,
		Description: fmt.Sprintf("pruned %d %s", removed, what),
	})
}

// AuditLogPruneJob deletes routine audit entries past the retention window.
type AuditLogPruneJob struct {
	auditRepo repository.AuditLogRepository
	auditSvc  *audit.Service
	cfg       *config.Config
	log       *zap.SugaredLogger
}

// NewAuditLogPruneJob creates the audit log retention job
func NewAuditLogPruneJob(auditRepo repository.AuditLogRepository, auditSvc *audit.Service, cfg *config.Config, log *zap.SugaredLogger) *AuditLogPruneJob {
	return &AuditLogPruneJob{auditRepo: auditRepo, auditSvc: auditSvc, cfg: cfg, log: log}
}

func (j *AuditLogPruneJob) Name() string { return "prune_audit_logs" }

func (j *AuditLogPruneJob) Run(ctx context.Context) error {
	if j.cfg.Retention.AuditLogDays <= 0 {
		return nil
	}
	cutoff := time.Now().AddDate(0, 0, -j.cfg.Retention.AuditLogDays)
	removed, err := j.auditRepo.DeleteOlderThan(ctx, cutoff, prunableCategories)
	if err != nil {
		return fmt.Errorf("failed to prune audit logs: %w", err)
	}
	j.log.Infow("pruned audit logs", "removed", removed, "cutoff", cutoff)
	logPruned(ctx, j.auditSvc, "audit log entries", removed)
	return nil
}

// LoginAttemptPruneJob deletes login attempt rows past the retention window.
type LoginAttemptPruneJob struct {
	attemptRepo repository.LoginAttemptRepository
	auditSvc    *audit.Service
	cfg         *config.Config
	log         *zap.SugaredLogger
}

// NewLoginAttemptPruneJob creates the login attempt retention job
func NewLoginAttemptPruneJob(attemptRepo repository.LoginAttemptRepository, auditSvc *audit.Service, cfg *config.Config, log *zap.SugaredLogger) *LoginAttemptPruneJob {
	return &LoginAttemptPruneJob{attemptRepo: attemptRepo, auditSvc: auditSvc, cfg: cfg, log: log}
}

func (j *LoginAttemptPruneJob) Name() string { return "prune_login_attempts" }

func (j *LoginAttemptPruneJob) Run(ctx context.Context) error {
	if j.cfg.Retention.LoginAttemptDays <= 0 {
		return nil
	}
	cutoff := time.Now().AddDate(0, 0, -j.cfg.Retention.LoginAttemptDays)
	removed, err := j.attemptRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune login attempts: %w", err)
	}
	j.log.Infow("pruned login attempts", "removed", removed, "cutoff", cutoff)
	logPruned(ctx, j.auditSvc, "login attempts", removed)
	return nil
}

// ResolvedAlertPruneJob deletes resolved security alerts past the retention
// window. Open alerts are never pruned.
type ResolvedAlertPruneJob struct {
	alertRepo repository.SecurityAlertRepository
	auditSvc  *audit.Service
	cfg       *config.Config
	log       *zap.SugaredLogger
}

// NewResolvedAlertPruneJob creates the resolved alert retention job
func NewResolvedAlertPruneJob(alertRepo repository.SecurityAlertRepository, auditSvc *audit.Service, cfg *config.Config, log *zap.SugaredLogger) *ResolvedAlertPruneJob {
	return &ResolvedAlertPruneJob{alertRepo: alertRepo, auditSvc: auditSvc, cfg: cfg, log: log}
}

func (j *ResolvedAlertPruneJob) Name() string { return "prune_resolved_alerts" }

func (j *ResolvedAlertPruneJob) Run(ctx context.Context) error {
	if j.cfg.Retention.ResolvedAlertDays <= 0 {
		return nil
	}
	cutoff := time.Now().AddDate(0, 0, -j.cfg.Retention.ResolvedAlertDays)
	removed, err := j.alertRepo.DeleteResolvedOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune resolved alerts: %w", err)
	}
	j.log.Infow("pruned resolved alerts", "removed", removed, "cutoff", cutoff)
	logPruned(ctx, j.auditSvc, "resolved security alerts", removed)
	return nil
}

// InactiveUserJob deactivates accounts that have not logged in for the
// configured number of days. Disabled by default.
type InactiveUserJob struct {
	userRepo repository.UserRepository
	auditSvc *audit.Service
	cfg      *config.Config
	log      *zap.SugaredLogger
}

// NewInactiveUserJob creates the inactive account deactivation job
func NewInactiveUserJob(userRepo repository.UserRepository, auditSvc *audit.Service, cfg *config.Config, log *zap.SugaredLogger) *InactiveUserJob {
	return &InactiveUserJob{userRepo: userRepo, auditSvc: auditSvc, cfg: cfg, log: log}
}

func (j *InactiveUserJob) Name() string { return "deactivate_inactive_users" }

func (j *InactiveUserJob) Run(ctx context.Context) error {
	if j.cfg.Retention.InactiveUserDays <= 0 {
		return nil
	}
	cutoff := time.Now().AddDate(0, 0, -j.cfg.Retention.InactiveUserDays)
	changed, err := j.userRepo.DeactivateInactiveSince(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to deactivate inactive users: %w", err)
	}
	if changed > 0 {
		j.log.Infow("deactivated inactive users", "count", changed, "cutoff", cutoff)
		j.auditSvc.Log(ctx, &models.CreateAuditLogRequest{
			EventType:   models.EventUserDeactivated,
			Category:    models.CategoryUserManagement,
			Description: fmt.Sprintf("deactivated %d accounts inactive since %s", changed, cutoff.Format(time.RFC3339)),
		})
	}
	return nil
}
