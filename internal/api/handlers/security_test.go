package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"sentinela/internal/api/handlers"
	"sentinela/internal/logger"
	"sentinela/internal/maintenance"
	"sentinela/internal/models"
	"sentinela/internal/repository"
	"sentinela/internal/testutil"
)

func securityRouter(tc *testutil.TestContext) (*gin.Engine, *maintenance.Manager) {
	log := logger.NewNop()
	jobs := maintenance.NewManager(log)
	jobs.Register(maintenance.NewLoginAttemptPruneJob(tc.LoginAttemptRepo, tc.AuditService, tc.Config, log), "0 4 * * *")

	handler := handlers.NewSecurityHandler(tc.AuditService, tc.AlertRepo, jobs)

	router := gin.New()
	sec := router.Group("/api/v1/security", tc.AuthMiddleware.AuthRequired(), tc.AuthMiddleware.AdminRequired())
	sec.GET("/metrics", handler.GetMetrics)
	sec.GET("/alerts", handler.ListAlerts)
	sec.GET("/alerts/export", handler.ExportAlerts)
	sec.GET("/alerts/:id", handler.GetAlert)
	sec.POST("/alerts/:id/resolve", handler.ResolveAlert)
	sec.GET("/jobs", handler.ListJobs)
	sec.POST("/jobs/:name/run", handler.RunJob)
	return router, jobs
}

func TestSecurityHandler_Metrics(t *testing.T) {
	tc := testutil.NewTestContext(t)
	admin := tc.CreateTestUser("admin@example.com", "Admin User", "password1234")
	tc.MakeAdmin(admin.ID)
	token := tc.GetTestJWT(admin.ID)

	ctx := context.Background()
	tc.CreateTestUser("nurse@example.com", "Test Nurse", "password1234")
	for i := 0; i < 3; i++ {
		_, err := tc.Authenticator.Login(ctx, "nurse@example.com", "wrong password", "10.0.0.9", "test")
		require.Error(t, err)
	}
	_, err := tc.Authenticator.Login(ctx, "nurse@example.com", "password1234", "10.0.0.9", "test")
	require.NoError(t, err)

	router, _ := securityRouter(tc)
	w := authedRequest(t, router, http.MethodGet, "/api/v1/security/metrics", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var metrics models.SecurityMetrics
	require.NoError(t, json.NewDecoder(w.Body).Decode(&metrics))
	require.Equal(t, 4, metrics.TotalAttempts)
	require.Equal(t, 3, metrics.FailedAttempts)
	require.Equal(t, 1, metrics.UniqueFailedIPs)
	require.Equal(t, 0, metrics.LockedAccounts)
}

func TestSecurityHandler_ResolveAlert(t *testing.T) {
	tc := testutil.NewTestContext(t)
	admin := tc.CreateTestUser("admin@example.com", "Admin User", "password1234")
	tc.MakeAdmin(admin.ID)
	token := tc.GetTestJWT(admin.ID)

	ctx := context.Background()
	tc.AuditService.RaiseAlert(ctx, models.AlertSuspiciousActivity, models.SeverityWarning, nil,
		"10.0.0.9", "odd request pattern", nil)
	alerts, err := tc.AlertRepo.List(ctx, repository.AlertFilter{})
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	router, _ := securityRouter(tc)
	w := authedRequest(t, router, http.MethodPost,
		fmt.Sprintf("/api/v1/security/alerts/%s/resolve", alerts[0].ID), token,
		models.ResolveAlertRequest{Notes: "false positive"})
	require.Equal(t, http.StatusOK, w.Code)

	resolved, err := tc.AlertRepo.GetByID(ctx, alerts[0].ID)
	require.NoError(t, err)
	require.True(t, resolved.Resolved)
	require.Equal(t, admin.ID, *resolved.ResolvedBy)

	// Resolving twice still succeeds
	w = authedRequest(t, router, http.MethodPost,
		fmt.Sprintf("/api/v1/security/alerts/%s/resolve", alerts[0].ID), token,
		models.ResolveAlertRequest{Notes: "second look"})
	require.Equal(t, http.StatusOK, w.Code)

	// Unknown alerts are a 404
	w = authedRequest(t, router, http.MethodPost,
		fmt.Sprintf("/api/v1/security/alerts/%s/resolve", uuid.New()), token,
		models.ResolveAlertRequest{})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestSecurityHandler_ExportAlertsHonorsLimit(t *testing.T) {
	tc := testutil.NewTestContext(t)
	admin := tc.CreateTestUser("admin@example.com", "Admin User", "password1234")
	tc.MakeAdmin(admin.ID)
	token := tc.GetTestJWT(admin.ID)

	ctx := context.Background()
	tc.AuditService.RaiseAlert(ctx, models.AlertBruteForce, models.SeverityCritical, nil,
		"victim@example.com", "burst of failures", nil)
	tc.AuditService.RaiseAlert(ctx, models.AlertAccountEnumeration, models.SeverityCritical, nil,
		"10.0.0.9", "probing accounts", nil)

	router, _ := securityRouter(tc)
	w := authedRequest(t, router, http.MethodGet, "/api/v1/security/alerts/export", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var export []models.SIEMAlertExport
	require.NoError(t, json.NewDecoder(w.Body).Decode(&export))
	require.Len(t, export, 2)

	w = authedRequest(t, router, http.MethodGet, "/api/v1/security/alerts/export?limit=1", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	export = nil
	require.NoError(t, json.NewDecoder(w.Body).Decode(&export))
	require.Len(t, export, 1)
}

func TestSecurityHandler_RunJob(t *testing.T) {
	tc := testutil.NewTestContext(t)
	admin := tc.CreateTestUser("admin@example.com", "Admin User", "password1234")
	tc.MakeAdmin(admin.ID)
	token := tc.GetTestJWT(admin.ID)

	// A stale attempt beyond the retention window
	stale := &models.LoginAttempt{
		Email:     "old@example.com",
		IPAddress: "10.0.0.9",
		CreatedAt: time.Now().AddDate(0, 0, -tc.Config.Retention.LoginAttemptDays-1),
	}
	require.NoError(t, tc.LoginAttemptRepo.Create(context.Background(), stale))

	router, _ := securityRouter(tc)
	w := authedRequest(t, router, http.MethodPost, "/api/v1/security/jobs/prune_login_attempts/run", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, tc.LoginAttemptRepo.Attempts())

	w = authedRequest(t, router, http.MethodPost, "/api/v1/security/jobs/unknown_job/run", token, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestSecurityHandler_NonAdminForbidden(t *testing.T) {
	tc := testutil.NewTestContext(t)
	user := tc.CreateTestUser("plain@example.com", "Plain User", "password1234")
	token := tc.GetTestJWT(user.ID)

	router, _ := securityRouter(tc)
	w := authedRequest(t, router, http.MethodGet, "/api/v1/security/metrics", token, nil)
	require.Equal(t, http.StatusForbidden, w.Code)
}
