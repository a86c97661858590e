package maintenance_test

import (
	"context"
	"testing"
	"time"

	"sentinela/internal/audit"
	"sentinela/internal/config"
	"sentinela/internal/logger"
	"sentinela/internal/maintenance"
	"sentinela/internal/models"
	"sentinela/internal/repository"
	"sentinela/internal/testutil"

	"github.com/stretchr/testify/require"
)

type maintenanceFixture struct {
	cfg         *config.Config
	userRepo    *testutil.FakeUserRepo
	attemptRepo *testutil.FakeLoginAttemptRepo
	auditRepo   *testutil.FakeAuditLogRepo
	alertRepo   *testutil.FakeSecurityAlertRepo
	auditSvc    *audit.Service
}

func newMaintenanceFixture(t *testing.T) *maintenanceFixture {
	t.Helper()

	cfg := &config.Config{}
	cfg.Retention.AuditLogDays = 30
	cfg.Retention.LoginAttemptDays = 30
	cfg.Retention.ResolvedAlertDays = 30
	cfg.Retention.InactiveUserDays = 90
	cfg.Security.AlertDedupeWindow = time.Hour

	f := &maintenanceFixture{
		cfg:         cfg,
		userRepo:    testutil.NewFakeUserRepo(testutil.NewFakePasswordHistoryRepo()),
		attemptRepo: testutil.NewFakeLoginAttemptRepo(),
		auditRepo:   testutil.NewFakeAuditLogRepo(),
		alertRepo:   testutil.NewFakeSecurityAlertRepo(),
	}
	f.auditSvc = audit.NewService(f.auditRepo, f.alertRepo, f.attemptRepo, f.userRepo, cfg, logger.NewNop())
	return f
}

func TestLoginAttemptPruneJob(t *testing.T) {
	f := newMaintenanceFixture(t)
	ctx := context.Background()

	old := &models.LoginAttempt{Email: "a@example.com", IPAddress: "10.0.0.1", CreatedAt: time.Now().AddDate(0, 0, -60)}
	recent := &models.LoginAttempt{Email: "b@example.com", IPAddress: "10.0.0.2"}
	require.NoError(t, f.attemptRepo.Create(ctx, old))
	require.NoError(t, f.attemptRepo.Create(ctx, recent))

	job := maintenance.NewLoginAttemptPruneJob(f.attemptRepo, f.auditSvc, f.cfg, logger.NewNop())
	require.Equal(t, "prune_login_attempts", job.Name())
	require.NoError(t, job.Run(ctx))

	attempts := f.attemptRepo.Attempts()
	require.Len(t, attempts, 1)
	require.Equal(t, "b@example.com", attempts[0].Email)

	// The prune itself is audited.
	logs := f.auditRepo.Logs()
	require.Len(t, logs, 1)
	require.Equal(t, models.EventDataPruned, logs[0].EventType)

	// Re-running with nothing to prune is a quiet no-op.
	require.NoError(t, job.Run(ctx))
	require.Len(t, f.auditRepo.Logs(), 1)
}

func TestResolvedAlertPruneJobKeepsOpenAlerts(t *testing.T) {
	f := newMaintenanceFixture(t)
	ctx := context.Background()

	f.cfg.Retention.ResolvedAlertDays = 0 // disabled
	job := maintenance.NewResolvedAlertPruneJob(f.alertRepo, f.auditSvc, f.cfg, logger.NewNop())
	require.NoError(t, job.Run(ctx))

	f.cfg.Retention.ResolvedAlertDays = 30

	// One open, one resolved; both would be past the cutoff if the fake let
	// us backdate, so use the disabled path above for the config check and
	// verify here that open alerts survive a prune.
	openAlert := &models.SecurityAlert{AlertType: models.AlertBruteForce, Identifier: "x"}
	require.NoError(t, f.alertRepo.Create(ctx, openAlert))
	require.NoError(t, job.Run(ctx))

	alerts, err := f.alertRepo.List(ctx, repository.AlertFilter{})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
}

func TestInactiveUserJob(t *testing.T) {
	f := newMaintenanceFixture(t)
	ctx := context.Background()

	stale := &models.User{Email: "stale@example.com", Name: "Stale User", Active: true}
	require.NoError(t, f.userRepo.Create(ctx, stale))
	longAgo := time.Now().AddDate(0, 0, -120)
	require.NoError(t, f.userRepo.RecordLoginSuccess(ctx, stale.ID, longAgo, "10.0.0.1"))

	fresh := &models.User{Email: "fresh@example.com", Name: "Fresh User", Active: true}
	require.NoError(t, f.userRepo.Create(ctx, fresh))
	require.NoError(t, f.userRepo.RecordLoginSuccess(ctx, fresh.ID, time.Now(), "10.0.0.1"))

	job := maintenance.NewInactiveUserJob(f.userRepo, f.auditSvc, f.cfg, logger.NewNop())
	require.NoError(t, job.Run(ctx))

	staleStored, err := f.userRepo.GetByID(ctx, stale.ID)
	require.NoError(t, err)
	require.False(t, staleStored.Active)

	freshStored, err := f.userRepo.GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	require.True(t, freshStored.Active)

	// Idempotent: a second run changes nothing and audits nothing new.
	before := len(f.auditRepo.Logs())
	require.NoError(t, job.Run(ctx))
	require.Len(t, f.auditRepo.Logs(), before)
}

func TestManagerRunJobByName(t *testing.T) {
	f := newMaintenanceFixture(t)
	mgr := maintenance.NewManager(logger.NewNop())
	mgr.Register(maintenance.NewLoginAttemptPruneJob(f.attemptRepo, f.auditSvc, f.cfg, logger.NewNop()), "0 3 * * *")

	require.Equal(t, []string{"prune_login_attempts"}, mgr.JobNames())
	require.NoError(t, mgr.RunJob(context.Background(), "prune_login_attempts"))
	require.ErrorIs(t, mgr.RunJob(context.Background(), "nope"), maintenance.ErrJobNotFound)
}
