// Package routes handles the setup and configuration of API routes
package routes

import (
	"database/sql"

	_ "sentinela/docs" // Import swagger docs
	"sentinela/internal/api/handlers"
	"sentinela/internal/api/middleware"
	"sentinela/internal/audit"
	"sentinela/internal/auth"
	"sentinela/internal/authz"
	"sentinela/internal/config"
	"sentinela/internal/maintenance"
	"sentinela/internal/repository/postgres"
	"sentinela/internal/security"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// Permission slugs guarding the management surface. Admins bypass all of them.
const (
	PermUsersManage       = "users.manage"
	PermRolesManage       = "roles.manage"
	PermPermissionsManage = "permissions.manage"
	PermAuditView         = "audit.view"
	PermSecurityView      = "security.view"
)

// SetupRoutes configures all API routes and their handlers
func SetupRoutes(cfg *config.Config, db *sql.DB, log *zap.SugaredLogger, jobs *maintenance.Manager) *gin.Engine {
	// Create router
	r := gin.Default()

	// Initialize health handler for basic routes
	healthHandler := handlers.NewHealthHandler(db)

	// Routes without rate limiting
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Apply rate limiting to all other routes
	r.Use(middleware.NewRateLimiter(cfg).Middleware())

	// Initialize repositories
	userRepo := postgres.NewUserRepository(db)
	roleRepo := postgres.NewRoleRepository(db)
	permRepo := postgres.NewPermissionRepository(db)
	historyRepo := postgres.NewPasswordHistoryRepository(db)
	attemptRepo := postgres.NewLoginAttemptRepository(db)
	auditRepo := postgres.NewAuditLogRepository(db)
	alertRepo := postgres.NewSecurityAlertRepository(db)

	// Initialize services
	authService := auth.NewService(cfg)
	resolver := authz.NewResolver(roleRepo, permRepo, authz.NewMemoryCache(), log)
	auditService := audit.NewService(auditRepo, alertRepo, attemptRepo, userRepo, cfg, log)
	guard := security.NewLockoutGuard(userRepo, auditService, cfg, log)
	policy := security.NewPasswordPolicy(userRepo, historyRepo, authService, cfg)
	sessions := security.NewSessionManager(userRepo, cfg)
	authenticator := security.NewAuthenticator(userRepo, attemptRepo, guard, policy, sessions, authService, auditService, cfg, log)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(authService, userRepo, sessions, resolver)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authenticator)
	userHandler := handlers.NewUserHandler(userRepo, roleRepo, permRepo, historyRepo, authService, policy, resolver, auditService, cfg)
	roleHandler := handlers.NewRoleHandler(roleRepo, resolver, auditService)
	permissionHandler := handlers.NewPermissionHandler(permRepo, resolver, auditService)
	securityHandler := handlers.NewSecurityHandler(auditService, alertRepo, jobs)
	auditHandler := handlers.NewAuditLogHandler(auditRepo)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Health check (no authentication required)
		v1.GET("/health", healthHandler.Health)

		// Auth routes
		authRoutes := v1.Group("/auth")
		{
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/logout", authMiddleware.AuthRequired(), authHandler.Logout)
			authRoutes.POST("/logout-others", authMiddleware.AuthRequired(), authHandler.LogoutOthers)
			authRoutes.PUT("/password", authMiddleware.AuthRequired(), authHandler.ChangePassword)
		}

		// User routes
		users := v1.Group("/users")
		users.Use(authMiddleware.AuthRequired(), authMiddleware.RequirePermission(PermUsersManage))
		{
			users.GET("", userHandler.ListUsers)
			users.POST("", userHandler.CreateUser)
			users.GET("/:id", userHandler.GetUser)
			users.PUT("/:id", userHandler.UpdateUser)
			users.DELETE("/:id", userHandler.DeleteUser)
			users.POST("/:id/approve", userHandler.ApproveUser)
			users.POST("/:id/reject", userHandler.RejectUser)
			users.POST("/:id/unlock", userHandler.UnlockUser)
			users.GET("/:id/permissions", userHandler.ListUserPermissions)

			// Grant edges touch authorization, not just user records
			grants := users.Group("", authMiddleware.RequirePermission(PermRolesManage))
			{
				grants.POST("/:id/roles/:roleId", userHandler.GrantRole)
				grants.DELETE("/:id/roles/:roleId", userHandler.RevokeRole)
				grants.POST("/:id/permissions/:permissionId", userHandler.GrantPermission)
				grants.DELETE("/:id/permissions/:permissionId", userHandler.RevokePermission)
			}
		}

		// Role routes
		roles := v1.Group("/roles")
		roles.Use(authMiddleware.AuthRequired(), authMiddleware.RequirePermission(PermRolesManage))
		{
			roles.GET("", roleHandler.ListRoles)
			roles.POST("", roleHandler.CreateRole)
			roles.GET("/:id", roleHandler.GetRole)
			roles.PUT("/:id", roleHandler.UpdateRole)
			roles.DELETE("/:id", roleHandler.DeleteRole)
			roles.POST("/:id/permissions/:permissionId", roleHandler.AddPermission)
			roles.DELETE("/:id/permissions/:permissionId", roleHandler.RemovePermission)
		}

		// Permission catalog routes
		permissions := v1.Group("/permissions")
		permissions.Use(authMiddleware.AuthRequired(), authMiddleware.RequirePermission(PermPermissionsManage))
		{
			permissions.GET("", permissionHandler.ListPermissions)
			permissions.POST("", permissionHandler.CreatePermission)
			permissions.GET("/:id", permissionHandler.GetPermission)
			permissions.DELETE("/:id", permissionHandler.DeletePermission)
		}

		// Audit trail routes
		auditLogs := v1.Group("/audit-logs")
		auditLogs.Use(authMiddleware.AuthRequired(), authMiddleware.RequirePermission(PermAuditView))
		{
			auditLogs.GET("", auditHandler.ListAuditLogs)
			auditLogs.GET("/:id", auditHandler.GetAuditLog)
		}

		// Security dashboard routes
		sec := v1.Group("/security")
		sec.Use(authMiddleware.AuthRequired())
		{
			view := sec.Group("", authMiddleware.RequirePermission(PermSecurityView))
			{
				view.GET("/metrics", securityHandler.GetMetrics)
				view.GET("/alerts", securityHandler.ListAlerts)
				view.GET("/alerts/export", securityHandler.ExportAlerts)
				view.GET("/alerts/:id", securityHandler.GetAlert)
				view.POST("/alerts/:id/resolve", securityHandler.ResolveAlert)
			}

			// Manual maintenance runs are admin-only
			ops := sec.Group("/jobs", authMiddleware.AdminRequired())
			{
				ops.GET("", securityHandler.ListJobs)
				ops.POST("/:name/run", securityHandler.RunJob)
			}
		}
	}

	return r
}
