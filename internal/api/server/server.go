// Package server provides the HTTP server implementation
package server

// @title           Sentinela API
// @version         1.0
// @description     Access control and account security API with global rate limiting.
// @x-skip-model-definitions true
//
// @description.markdown
// All API endpoints are subject to rate limiting:
// * Default rate: 100 requests per 60 seconds
// * Burst allowance: 5 additional requests
// * Rate limits are applied per IP address
//
// When rate limit is exceeded:
// * Status code 429 (Too Many Requests) is returned
// * Headers:
//   - X-RateLimit-Limit: Maximum requests allowed
//   - X-RateLimit-Reset: Unix timestamp when the rate limit resets
//   - Retry-After: Seconds to wait before retrying
//
// @host            localhost:8080
// @BasePath        /api/v1
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Bearer token authentication
//
// @response 429 {object} models.ErrorResponse "Rate limit exceeded"

import (
	"database/sql"
	"fmt"
	"strconv"

	"sentinela/internal/api/routes"
	"sentinela/internal/config"
	"sentinela/internal/maintenance"

	"go.uber.org/zap"
)

// Server represents the HTTP server
type Server struct {
	cfg  *config.Config
	db   *sql.DB
	log  *zap.SugaredLogger
	jobs *maintenance.Manager
}

// New creates a new server instance
func New(cfg *config.Config, db *sql.DB, log *zap.SugaredLogger, jobs *maintenance.Manager) *Server {
	return &Server{
		cfg:  cfg,
		db:   db,
		log:  log,
		jobs: jobs,
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	router := routes.SetupRoutes(s.cfg, s.db, s.log, s.jobs)

	port, err := strconv.Atoi(s.cfg.API.Port)
	if err != nil {
		return fmt.Errorf("invalid port number: %w", err)
	}

	addr := fmt.Sprintf(":%d", port)
	s.log.Infow("starting server", "addr", addr)
	return router.Run(addr)
}
