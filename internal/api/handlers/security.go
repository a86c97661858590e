package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"sentinela/internal/audit"
	"sentinela/internal/auth"
	"sentinela/internal/maintenance"
	"sentinela/internal/models"
	"sentinela/internal/repository"

	"github.com/gin-gonic/gin"
)

// SecurityHandler exposes the security dashboard: metrics, alerts and manual
// maintenance runs.
type SecurityHandler struct {
	auditSvc  *audit.Service
	alertRepo repository.SecurityAlertRepository
	jobs      *maintenance.Manager
}

// NewSecurityHandler creates a new security dashboard handler
func NewSecurityHandler(auditSvc *audit.Service, alertRepo repository.SecurityAlertRepository, jobs *maintenance.Manager) *SecurityHandler {
	return &SecurityHandler{
		auditSvc:  auditSvc,
		alertRepo: alertRepo,
		jobs:      jobs,
	}
}

// GetMetrics godoc
// @Summary Security metrics snapshot
// @Description Aggregated login, lockout and alert counters over a rolling window
// @Tags security
// @Produce json
// @Security BearerAuth
// @Param window_days query int false "Window size in days (default from configuration)"
// @Success 200 {object} models.SecurityMetrics
// @Failure 403 {object} models.ErrorResponse "Permission denied"
// @Router /security/metrics [get]
func (h *SecurityHandler) GetMetrics(c *gin.Context) {
	windowDays := 0
	if s := c.Query("window_days"); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			windowDays = v
		}
	}

	metrics, err := h.auditSvc.GetSecurityMetrics(c.Request.Context(), windowDays)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to build security metrics"})
		return
	}
	c.JSON(http.StatusOK, metrics)
}

// ListAlerts godoc
// @Summary List security alerts
// @Tags security
// @Produce json
// @Security BearerAuth
// @Param unresolved query bool false "Only open alerts"
// @Param type query []string false "Filter on alert types"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {array} models.SecurityAlert
// @Failure 403 {object} models.ErrorResponse "Permission denied"
// @Router /security/alerts [get]
func (h *SecurityHandler) ListAlerts(c *gin.Context) {
	filter := repository.AlertFilter{OrderBy: "created_at", OrderDesc: true}

	if s := c.Query("unresolved"); s != "" {
		if v, err := strconv.ParseBool(s); err == nil {
			filter.OnlyUnresolved = v
		}
	}
	if types := c.QueryArray("type"); len(types) > 0 {
		filter.AlertTypes = types
	}
	if s := c.Query("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			filter.Limit = &v
		}
	}
	if s := c.Query("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			filter.Offset = &v
		}
	}

	alerts, err := h.alertRepo.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to list alerts"})
		return
	}
	c.JSON(http.StatusOK, alerts)
}

// GetAlert godoc
// @Summary Get a security alert
// @Tags security
// @Produce json
// @Security BearerAuth
// @Param id path string true "Alert ID"
// @Success 200 {object} models.SecurityAlert
// @Failure 404 {object} models.ErrorResponse "Alert not found"
// @Router /security/alerts/{id} [get]
func (h *SecurityHandler) GetAlert(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	alert, err := h.alertRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "alert not found"})
		return
	}
	c.JSON(http.StatusOK, alert)
}

// ResolveAlert godoc
// @Summary Resolve a security alert
// @Description Idempotent: resolving an already-resolved alert succeeds without
// @Description overwriting the original resolution.
// @Tags security
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Alert ID"
// @Param request body models.ResolveAlertRequest false "Resolution notes"
// @Success 200 {object} models.SuccessResponse
// @Failure 404 {object} models.ErrorResponse "Alert not found"
// @Router /security/alerts/{id}/resolve [post]
func (h *SecurityHandler) ResolveAlert(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	user := auth.GetUserFromContext(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "authentication required"})
		return
	}

	var req models.ResolveAlertRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.auditSvc.ResolveAlert(c.Request.Context(), id, user.ID, req.Notes); err != nil {
		if errors.Is(err, repository.ErrAlertNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "alert not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to resolve alert"})
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse{Message: "alert resolved"})
}

// ExportAlerts godoc
// @Summary Export alerts for a SIEM collector
// @Tags security
// @Produce json
// @Security BearerAuth
// @Param unresolved query bool false "Only open alerts"
// @Param limit query int false "Maximum number of alerts to export"
// @Success 200 {array} models.SIEMAlertExport
// @Failure 403 {object} models.ErrorResponse "Permission denied"
// @Router /security/alerts/export [get]
func (h *SecurityHandler) ExportAlerts(c *gin.Context) {
	onlyUnresolved := false
	if s := c.Query("unresolved"); s != "" {
		if v, err := strconv.ParseBool(s); err == nil {
			onlyUnresolved = v
		}
	}
	limit := 0
	if s := c.Query("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}

	export, err := h.auditSvc.ExportAlertsForSIEM(c.Request.Context(), limit, onlyUnresolved)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to export alerts"})
		return
	}
	c.JSON(http.StatusOK, export)
}

// ListJobs godoc
// @Summary List maintenance jobs
// @Tags security
// @Produce json
// @Security BearerAuth
// @Success 200 {array} string
// @Failure 403 {object} models.ErrorResponse "Permission denied"
// @Router /security/jobs [get]
func (h *SecurityHandler) ListJobs(c *gin.Context) {
	c.JSON(http.StatusOK, h.jobs.JobNames())
}

// RunJob godoc
// @Summary Run a maintenance job immediately
// @Description Trigger a retention job outside its schedule, e.g. after
// @Description lowering a retention window.
// @Tags security
// @Produce json
// @Security BearerAuth
// @Param name path string true "Job name"
// @Success 200 {object} models.SuccessResponse
// @Failure 404 {object} models.ErrorResponse "Unknown job"
// @Router /security/jobs/{name}/run [post]
func (h *SecurityHandler) RunJob(c *gin.Context) {
	name := c.Param("name")

	if err := h.jobs.RunJob(c.Request.Context(), name); err != nil {
		if errors.Is(err, maintenance.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "unknown job"})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "job failed"})
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse{Message: "job completed"})
}
