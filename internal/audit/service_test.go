package audit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"sentinela/internal/audit"
	"sentinela/internal/config"
	"sentinela/internal/logger"
	"sentinela/internal/models"
	"sentinela/internal/repository"
	"sentinela/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type auditFixture struct {
	auditRepo   *testutil.FakeAuditLogRepo
	alertRepo   *testutil.FakeSecurityAlertRepo
	attemptRepo *testutil.FakeLoginAttemptRepo
	userRepo    *testutil.FakeUserRepo
	cfg         *config.Config
	svc         *audit.Service
}

func newAuditFixture(t *testing.T) *auditFixture {
	t.Helper()

	cfg := &config.Config{}
	cfg.Security.AlertFailureThreshold = 3
	cfg.Security.AlertWindow = time.Hour
	cfg.Security.AlertDedupeWindow = time.Hour
	cfg.Security.MetricsWindowDays = 7

	f := &auditFixture{
		auditRepo:   testutil.NewFakeAuditLogRepo(),
		alertRepo:   testutil.NewFakeSecurityAlertRepo(),
		attemptRepo: testutil.NewFakeLoginAttemptRepo(),
		userRepo:    testutil.NewFakeUserRepo(testutil.NewFakePasswordHistoryRepo()),
		cfg:         cfg,
	}
	f.svc = audit.NewService(f.auditRepo, f.alertRepo, f.attemptRepo, f.userRepo, cfg, logger.NewNop())
	return f
}

func (f *auditFixture) recordFailures(t *testing.T, email, ip string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, f.attemptRepo.Create(context.Background(), &models.LoginAttempt{
			Email:     email,
			IPAddress: ip,
			Success:   false,
		}))
	}
}

func TestLogSwallowsRepositoryFailure(t *testing.T) {
	f := newAuditFixture(t)
	f.auditRepo.FailNext = errors.New("disk full")

	// Must not panic and must not propagate anything.
	f.svc.Log(context.Background(), &models.CreateAuditLogRequest{
		EventType:   models.EventLoginFailed,
		Category:    models.CategoryAuthentication,
		Description: "failed login",
	})

	require.Empty(t, f.auditRepo.Logs())

	// Subsequent writes land normally.
	f.svc.Log(context.Background(), &models.CreateAuditLogRequest{
		EventType:   models.EventLoginSuccess,
		Category:    models.CategoryAuthentication,
		Description: "login",
	})
	require.Len(t, f.auditRepo.Logs(), 1)
}

func TestLogDefaultsSeverityToInfo(t *testing.T) {
	f := newAuditFixture(t)

	f.svc.Log(context.Background(), &models.CreateAuditLogRequest{
		EventType:   models.EventUserCreated,
		Category:    models.CategoryUserManagement,
		Description: "created",
	})

	logs := f.auditRepo.Logs()
	require.Len(t, logs, 1)
	require.Equal(t, models.SeverityInfo, logs[0].Severity)
}

func TestMonitorFailedLoginRaisesBruteForceAlert(t *testing.T) {
	f := newAuditFixture(t)
	ctx := context.Background()

	f.recordFailures(t, "victim@example.com", "10.0.0.1", 3)
	f.svc.MonitorFailedLogin(ctx, "victim@example.com", "10.0.0.1", nil)

	alerts, err := f.alertRepo.List(ctx, repository.AlertFilter{})
	require.NoError(t, err)

	types := alertTypes(alerts)
	require.Contains(t, types, models.AlertBruteForce)
	// Same 3 failures also trip the per-IP heuristic.
	require.Contains(t, types, models.AlertAccountEnumeration)

	// The raise is mirrored into the audit trail.
	var raised int
	for _, log := range f.auditRepo.Logs() {
		if log.EventType == models.EventAlertRaised {
			raised++
			require.True(t, log.IsSecurityAlert)
		}
	}
	require.Equal(t, 2, raised)
}

func TestMonitorFailedLoginBelowThresholdIsQuiet(t *testing.T) {
	f := newAuditFixture(t)
	ctx := context.Background()

	f.recordFailures(t, "victim@example.com", "10.0.0.1", 2)
	f.svc.MonitorFailedLogin(ctx, "victim@example.com", "10.0.0.1", nil)

	alerts, err := f.alertRepo.List(ctx, repository.AlertFilter{})
	require.NoError(t, err)
	require.Empty(t, alerts)
}

func TestRaiseAlertDeduplicatesOpenAlerts(t *testing.T) {
	f := newAuditFixture(t)
	ctx := context.Background()

	f.svc.RaiseAlert(ctx, models.AlertBruteForce, models.SeverityCritical, nil, "victim@example.com", "burst", nil)
	f.svc.RaiseAlert(ctx, models.AlertBruteForce, models.SeverityCritical, nil, "victim@example.com", "burst again", nil)

	alerts, err := f.alertRepo.List(ctx, repository.AlertFilter{})
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	// A different identifier is its own alert.
	f.svc.RaiseAlert(ctx, models.AlertBruteForce, models.SeverityCritical, nil, "other@example.com", "burst", nil)
	alerts, err = f.alertRepo.List(ctx, repository.AlertFilter{})
	require.NoError(t, err)
	require.Len(t, alerts, 2)
}

func TestResolveAlertIsIdempotent(t *testing.T) {
	f := newAuditFixture(t)
	ctx := context.Background()

	f.svc.RaiseAlert(ctx, models.AlertSuspiciousActivity, models.SeverityWarning, nil, "10.0.0.9", "odd traffic", nil)
	alerts, err := f.alertRepo.List(ctx, repository.AlertFilter{})
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	firstResolver := uuid.New()
	require.NoError(t, f.svc.ResolveAlert(ctx, alerts[0].ID, firstResolver, "handled"))

	resolved, err := f.alertRepo.GetByID(ctx, alerts[0].ID)
	require.NoError(t, err)
	require.True(t, resolved.Resolved)
	require.Equal(t, firstResolver, *resolved.ResolvedBy)

	// Second resolve succeeds but does not overwrite the first resolution.
	require.NoError(t, f.svc.ResolveAlert(ctx, alerts[0].ID, uuid.New(), "me too"))
	resolved, err = f.alertRepo.GetByID(ctx, alerts[0].ID)
	require.NoError(t, err)
	require.Equal(t, firstResolver, *resolved.ResolvedBy)
	require.Equal(t, "handled", *resolved.ResolutionNotes)
}

func TestResolveUnknownAlertFails(t *testing.T) {
	f := newAuditFixture(t)
	err := f.svc.ResolveAlert(context.Background(), uuid.New(), uuid.New(), "")
	require.Error(t, err)
}

func TestGetSecurityMetrics(t *testing.T) {
	f := newAuditFixture(t)
	ctx := context.Background()

	f.recordFailures(t, "a@example.com", "10.0.0.1", 2)
	f.recordFailures(t, "b@example.com", "10.0.0.2", 1)
	require.NoError(t, f.attemptRepo.Create(ctx, &models.LoginAttempt{
		Email:     "a@example.com",
		IPAddress: "10.0.0.1",
		Success:   true,
	}))

	lockedUser := &models.User{Email: "locked@example.com", Name: "Locked Out", Active: true}
	require.NoError(t, f.userRepo.Create(ctx, lockedUser))
	_, err := f.userRepo.RecordLoginFailure(ctx, lockedUser.ID, 1, time.Now().Add(30*time.Minute))
	require.NoError(t, err)

	pendingUser := &models.User{
		Email:          "pending@example.com",
		Name:           "Pending User",
		Active:         true,
		ApprovalStatus: models.ApprovalPending,
	}
	require.NoError(t, f.userRepo.Create(ctx, pendingUser))

	metrics, err := f.svc.GetSecurityMetrics(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, 7, metrics.WindowDays)
	require.Equal(t, 4, metrics.TotalAttempts)
	require.Equal(t, 3, metrics.FailedAttempts)
	require.Equal(t, 2, metrics.UniqueFailedIPs)
	require.Equal(t, 1, metrics.LockedAccounts)
	require.Equal(t, 1, metrics.PendingApprovals)
}

func TestExportAlertsForSIEM(t *testing.T) {
	f := newAuditFixture(t)
	ctx := context.Background()

	f.svc.RaiseAlert(ctx, models.AlertBruteForce, models.SeverityCritical, nil, "victim@example.com", "burst", nil)
	f.svc.RaiseAlert(ctx, models.AlertAccountEnumeration, models.SeverityCritical, nil, "10.0.0.1", "probing", nil)

	alerts, err := f.alertRepo.List(ctx, repository.AlertFilter{})
	require.NoError(t, err)
	require.NoError(t, f.svc.ResolveAlert(ctx, alerts[0].ID, uuid.New(), "done"))

	all, err := f.svc.ExportAlertsForSIEM(ctx, 0, false)
	require.NoError(t, err)
	require.Len(t, all, 2)

	open, err := f.svc.ExportAlertsForSIEM(ctx, 0, true)
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.False(t, open[0].Resolved)

	capped, err := f.svc.ExportAlertsForSIEM(ctx, 1, false)
	require.NoError(t, err)
	require.Len(t, capped, 1)
}

func alertTypes(alerts []models.SecurityAlert) []string {
	types := make([]string, 0, len(alerts))
	for _, a := range alerts {
		types = append(types, a.AlertType)
	}
	return types
}
