// Package audit records the append-only audit trail and raises security
// alerts from login monitoring heuristics.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"sentinela/internal/config"
	"sentinela/internal/models"
	"sentinela/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service writes audit entries and security alerts. Log never returns an
// error: auditing is a side effect of the calling operation and must not be
// able to fail it. Write failures go to the operational logger instead.
type Service struct {
	auditRepo   repository.AuditLogRepository
	alertRepo   repository.SecurityAlertRepository
	attemptRepo repository.LoginAttemptRepository
	userRepo    repository.UserRepository
	cfg         *config.Config
	log         *zap.SugaredLogger
}

// NewService creates a new audit service
func NewService(
	auditRepo repository.AuditLogRepository,
	alertRepo repository.SecurityAlertRepository,
	attemptRepo repository.LoginAttemptRepository,
	userRepo repository.UserRepository,
	cfg *config.Config,
	log *zap.SugaredLogger,
) *Service {
	return &Service{
		auditRepo:   auditRepo,
		alertRepo:   alertRepo,
		attemptRepo: attemptRepo,
		userRepo:    userRepo,
		cfg:         cfg,
		log:         log,
	}
}

// Log appends an audit entry. Failures are swallowed after logging them.
func (s *Service) Log(ctx context.Context, req *models.CreateAuditLogRequest) {
	if err := s.auditRepo.Create(ctx, req); err != nil {
		s.log.Errorw("failed to write audit log",
			"event_type", req.EventType,
			"category", req.Category,
			"error", err)
	}
}

// LogAuth records an authentication event for the given actor.
func (s *Service) LogAuth(ctx context.Context, actorID *uuid.UUID, eventType, description, ip, userAgent string) {
	s.Log(ctx, &models.CreateAuditLogRequest{
		ActorID:     actorID,
		EventType:   eventType,
		Category:    models.CategoryAuthentication,
		Description: description,
		IPAddress:   ip,
		UserAgent:   userAgent,
	})
}

// LogChange records a state change with before/after snapshots. The snapshots
// are marshalled to JSON; a marshal failure degrades to an empty snapshot
// rather than dropping the entry.
func (s *Service) LogChange(ctx context.Context, actorID *uuid.UUID, eventType string, category models.AuditCategory, subjectType string, subjectID string, oldValues, newValues interface{}) {
	s.Log(ctx, &models.CreateAuditLogRequest{
		ActorID:     actorID,
		EventType:   eventType,
		Category:    category,
		Description: fmt.Sprintf("%s %s", eventType, subjectID),
		SubjectType: &subjectType,
		SubjectID:   &subjectID,
		OldValues:   s.marshal(oldValues),
		NewValues:   s.marshal(newValues),
	})
}

func (s *Service) marshal(v interface{}) string {
	if v == nil {
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Warnw("failed to marshal audit snapshot", "error", err)
		return ""
	}
	return string(data)
}

// RaiseAlert creates a security alert unless an open alert of the same type
// for the same identifier already exists inside the dedupe window. The raise
// is also mirrored into the audit trail.
func (s *Service) RaiseAlert(ctx context.Context, alertType string, severity models.AuditSeverity, subjectUserID *uuid.UUID, identifier, description string, metadata interface{}) {
	since := time.Now().Add(-s.cfg.Security.AlertDedupeWindow)
	open, err := s.alertRepo.HasRecentOpen(ctx, alertType, identifier, since)
	if err != nil {
		s.log.Errorw("failed to check for duplicate alert", "alert_type", alertType, "error", err)
		return
	}
	if open {
		return
	}

	alert := &models.SecurityAlert{
		AlertType:     alertType,
		Severity:      severity,
		SubjectUserID: subjectUserID,
		Identifier:    identifier,
		Description:   description,
		Metadata:      s.marshal(metadata),
	}
	if err := s.alertRepo.Create(ctx, alert); err != nil {
		s.log.Errorw("failed to create security alert", "alert_type", alertType, "error", err)
		return
	}

	s.Log(ctx, &models.CreateAuditLogRequest{
		EventType:       models.EventAlertRaised,
		Category:        models.CategorySecurity,
		Severity:        severity,
		Description:     description,
		Metadata:        alert.Metadata,
		IsSecurityAlert: true,
	})
}

// MonitorFailedLogin runs the brute-force heuristics after a failed attempt.
// A burst of failures against one email raises a brute_force alert; a burst
// from one IP across any accounts raises an account_enumeration alert.
func (s *Service) MonitorFailedLogin(ctx context.Context, email, ip string, subjectUserID *uuid.UUID) {
	since := time.Now().Add(-s.cfg.Security.AlertWindow)
	threshold := s.cfg.Security.AlertFailureThreshold

	byEmail, err := s.attemptRepo.CountFailuresByEmail(ctx, email, since)
	if err != nil {
		s.log.Errorw("failed to count failures by email", "error", err)
	} else if byEmail >= threshold {
		s.RaiseAlert(ctx, models.AlertBruteForce, models.SeverityCritical, subjectUserID, email,
			fmt.Sprintf("%d failed login attempts for %s within %s", byEmail, email, s.cfg.Security.AlertWindow),
			map[string]interface{}{"failures": byEmail, "email": email, "ip": ip})
	}

	byIP, err := s.attemptRepo.CountFailuresByIP(ctx, ip, since)
	if err != nil {
		s.log.Errorw("failed to count failures by ip", "error", err)
	} else if byIP >= threshold {
		s.RaiseAlert(ctx, models.AlertAccountEnumeration, models.SeverityCritical, nil, ip,
			fmt.Sprintf("%d failed login attempts from %s within %s", byIP, ip, s.cfg.Security.AlertWindow),
			map[string]interface{}{"failures": byIP, "ip": ip})
	}
}

// NotifyAccountLocked records the lockout in the audit trail and raises an
// account_lockout alert for the security team.
func (s *Service) NotifyAccountLocked(ctx context.Context, userID uuid.UUID, email, ip, userAgent string, until time.Time) {
	s.Log(ctx, &models.CreateAuditLogRequest{
		ActorID:         &userID,
		EventType:       models.EventAccountLocked,
		Category:        models.CategoryAuthentication,
		Severity:        models.SeverityWarning,
		Description:     fmt.Sprintf("account %s locked until %s", email, until.Format(time.RFC3339)),
		IPAddress:       ip,
		UserAgent:       userAgent,
		IsSecurityAlert: true,
	})
	s.RaiseAlert(ctx, models.AlertAccountLockout, models.SeverityWarning, &userID, email,
		fmt.Sprintf("account %s locked after repeated failures", email),
		map[string]interface{}{"locked_until": until, "ip": ip})
}

// ResolveAlert marks an alert resolved. Resolving an already-resolved alert
// succeeds without overwriting the first resolution.
func (s *Service) ResolveAlert(ctx context.Context, alertID, resolvedBy uuid.UUID, notes string) error {
	if err := s.alertRepo.Resolve(ctx, alertID, resolvedBy, notes, time.Now()); err != nil {
		return err
	}

	s.Log(ctx, &models.CreateAuditLogRequest{
		ActorID:     &resolvedBy,
		EventType:   models.EventAlertResolved,
		Category:    models.CategorySecurity,
		Description: fmt.Sprintf("security alert %s resolved", alertID),
		Metadata:    s.marshal(map[string]string{"notes": notes}),
	})
	return nil
}

// GetSecurityMetrics builds the dashboard snapshot over the given window.
func (s *Service) GetSecurityMetrics(ctx context.Context, windowDays int) (*models.SecurityMetrics, error) {
	if windowDays <= 0 {
		windowDays = s.cfg.Security.MetricsWindowDays
	}
	now := time.Now()
	since := now.AddDate(0, 0, -windowDays)

	total, err := s.attemptRepo.CountSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count login attempts: %w", err)
	}
	failed, err := s.attemptRepo.CountFailuresSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count failed attempts: %w", err)
	}
	uniqueIPs, err := s.attemptRepo.CountDistinctFailedIPs(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count failing IPs: %w", err)
	}
	locked, err := s.userRepo.CountLocked(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to count locked accounts: %w", err)
	}
	open, err := s.alertRepo.CountOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count open alerts: %w", err)
	}
	resolved, err := s.alertRepo.CountResolvedSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count resolved alerts: %w", err)
	}
	pending, err := s.userRepo.CountPendingApproval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending approvals: %w", err)
	}

	return &models.SecurityMetrics{
		WindowDays:       windowDays,
		TotalAttempts:    total,
		FailedAttempts:   failed,
		UniqueFailedIPs:  uniqueIPs,
		LockedAccounts:   locked,
		OpenAlerts:       open,
		ResolvedAlerts:   resolved,
		PendingApprovals: pending,
		GeneratedAt:      now,
	}, nil
}

// ExportAlertsForSIEM returns alerts in the flat export shape consumed by
// external collectors. A limit of zero or less exports everything.
func (s *Service) ExportAlertsForSIEM(ctx context.Context, limit int, onlyUnresolved bool) ([]models.SIEMAlertExport, error) {
	filter := repository.AlertFilter{OnlyUnresolved: onlyUnresolved, OrderBy: "created_at", OrderDesc: true}
	if limit > 0 {
		filter.Limit = &limit
	}

	alerts, err := s.alertRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	out := make([]models.SIEMAlertExport, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, models.SIEMAlertExport{
			ID:          a.ID,
			AlertType:   a.AlertType,
			Severity:    string(a.Severity),
			Identifier:  a.Identifier,
			SubjectUser: a.SubjectUserID,
			Description: a.Description,
			Resolved:    a.Resolved,
			RaisedAt:    a.CreatedAt,
		})
	}
	return out, nil
}
