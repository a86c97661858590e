// Package testutil provides utilities for testing
package testutil

import (
	"context"
	"testing"

	"sentinela/internal/api/handlers"
	"sentinela/internal/api/middleware"
	"sentinela/internal/audit"
	"sentinela/internal/auth"
	"sentinela/internal/authz"
	"sentinela/internal/config"
	"sentinela/internal/logger"
	"sentinela/internal/models"
	"sentinela/internal/security"
	"sentinela/internal/validation"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// LoadTestConfig builds a configuration from defaults plus a test JWT secret.
func LoadTestConfig(t *testing.T) *config.Config {
	t.Helper()

	t.Setenv("JWT_SECRET", "test-secret-key-for-tests-only")
	t.Setenv("REQUIRE_APPROVAL", "false")

	cfg := &config.Config{}
	require.NoError(t, cfg.LoadFromEnv())
	return cfg
}

// TestContext holds common test dependencies, wired against in-memory fakes so
// handler tests run without a database.
type TestContext struct {
	T      *testing.T
	Config *config.Config

	UserRepo            *FakeUserRepo
	RoleRepo            *FakeRoleRepo
	PermissionRepo      *FakePermissionRepo
	PasswordHistoryRepo *FakePasswordHistoryRepo
	LoginAttemptRepo    *FakeLoginAttemptRepo
	AuditRepo           *FakeAuditLogRepo
	AlertRepo           *FakeSecurityAlertRepo

	AuthService    *auth.Service
	Resolver       *authz.Resolver
	AuditService   *audit.Service
	Guard          *security.LockoutGuard
	Policy         *security.PasswordPolicy
	Sessions       *security.SessionManager
	Authenticator  *security.Authenticator
	AuthMiddleware *middleware.AuthMiddleware

	AuthHandler       *handlers.AuthHandler
	UserHandler       *handlers.UserHandler
	RoleHandler       *handlers.RoleHandler
	PermissionHandler *handlers.PermissionHandler
	AuditHandler      *handlers.AuditLogHandler
}

// NewTestContext creates a new test context with all dependencies
func NewTestContext(t *testing.T) *TestContext {
	t.Helper()

	gin.SetMode(gin.TestMode)
	validation.Initialize()

	cfg := LoadTestConfig(t)
	log := logger.NewNop()

	historyRepo := NewFakePasswordHistoryRepo()
	userRepo := NewFakeUserRepo(historyRepo)
	permRepo := NewFakePermissionRepo()
	roleRepo := NewFakeRoleRepo(permRepo)
	attemptRepo := NewFakeLoginAttemptRepo()
	auditRepo := NewFakeAuditLogRepo()
	alertRepo := NewFakeSecurityAlertRepo()

	authService := auth.NewService(cfg)
	resolver := authz.NewResolver(roleRepo, permRepo, authz.NewMemoryCache(), log)
	auditService := audit.NewService(auditRepo, alertRepo, attemptRepo, userRepo, cfg, log)
	guard := security.NewLockoutGuard(userRepo, auditService, cfg, log)
	policy := security.NewPasswordPolicy(userRepo, historyRepo, authService, cfg)
	sessions := security.NewSessionManager(userRepo, cfg)
	authenticator := security.NewAuthenticator(userRepo, attemptRepo, guard, policy, sessions, authService, auditService, cfg, log)

	return &TestContext{
		T:                   t,
		Config:              cfg,
		UserRepo:            userRepo,
		RoleRepo:            roleRepo,
		PermissionRepo:      permRepo,
		PasswordHistoryRepo: historyRepo,
		LoginAttemptRepo:    attemptRepo,
		AuditRepo:           auditRepo,
		AlertRepo:           alertRepo,
		AuthService:         authService,
		Resolver:            resolver,
		AuditService:        auditService,
		Guard:               guard,
		Policy:              policy,
		Sessions:            sessions,
		Authenticator:       authenticator,
		AuthMiddleware:      middleware.NewAuthMiddleware(authService, userRepo, sessions, resolver),
		AuthHandler:         handlers.NewAuthHandler(authenticator),
		UserHandler: handlers.NewUserHandler(
			userRepo, roleRepo, permRepo, historyRepo,
			authService, policy, resolver, auditService, cfg),
		RoleHandler:       handlers.NewRoleHandler(roleRepo, resolver, auditService),
		PermissionHandler: handlers.NewPermissionHandler(permRepo, resolver, auditService),
		AuditHandler:      handlers.NewAuditLogHandler(auditRepo),
	}
}

// CreateTestUser creates an active approved user and returns it. The initial
// password hash is seeded into the history like the creation endpoint does.
func (tc *TestContext) CreateTestUser(email, name, password string) *models.User {
	tc.T.Helper()

	hash, err := tc.AuthService.HashPassword(password)
	require.NoError(tc.T, err, "Failed to hash password")

	user := &models.User{
		Email:          email,
		Name:           name,
		Password:       hash,
		Active:         true,
		ApprovalStatus: models.ApprovalApproved,
	}
	require.NoError(tc.T, tc.UserRepo.Create(context.Background(), user), "Failed to create test user")
	require.NoError(tc.T, tc.PasswordHistoryRepo.Add(context.Background(), user.ID, hash))

	return user
}

// CreateTestRole creates a role and returns it.
func (tc *TestContext) CreateTestRole(slug, name string) *models.Role {
	tc.T.Helper()

	role := &models.Role{Slug: slug, Name: name}
	require.NoError(tc.T, tc.RoleRepo.Create(context.Background(), role), "Failed to create test role")
	return role
}

// CreateTestPermission registers a permission and returns it.
func (tc *TestContext) CreateTestPermission(slug, name string) *models.Permission {
	tc.T.Helper()

	permission := &models.Permission{Slug: slug, Name: name}
	require.NoError(tc.T, tc.PermissionRepo.Create(context.Background(), permission), "Failed to create test permission")
	return permission
}

// MakeAdmin grants the protected admin role to the user, creating the role on
// first use.
func (tc *TestContext) MakeAdmin(userID uuid.UUID) {
	tc.T.Helper()

	role, err := tc.RoleRepo.GetBySlug(context.Background(), models.AdminRoleSlug)
	if err != nil {
		role = &models.Role{Slug: models.AdminRoleSlug, Name: "Administrator", IsProtected: true}
		require.NoError(tc.T, tc.RoleRepo.Create(context.Background(), role))
	}
	require.NoError(tc.T, tc.RoleRepo.GrantToUser(context.Background(), role.ID, userID))
	tc.Resolver.InvalidateUser(userID)
}

// GetTestJWT logs the user in through the real flow and returns a token bound
// to their live session.
func (tc *TestContext) GetTestJWT(userID uuid.UUID) string {
	tc.T.Helper()

	user, err := tc.UserRepo.GetByID(context.Background(), userID)
	require.NoError(tc.T, err, "Failed to get user")

	sessionID, err := tc.Sessions.Rotate(context.Background(), user.ID)
	require.NoError(tc.T, err, "Failed to rotate session")

	token, err := tc.AuthService.GenerateToken(user, sessionID)
	require.NoError(tc.T, err, "Failed to generate test JWT")
	return token
}
