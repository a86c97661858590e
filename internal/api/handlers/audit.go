package handlers

import (
	"net/http"
	"strconv"
	"time"

	"sentinela/internal/models"
	"sentinela/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditLogHandler handles HTTP requests for querying the audit trail
type AuditLogHandler struct {
	auditRepo repository.AuditLogRepository
}

// NewAuditLogHandler creates a new audit trail handler
func NewAuditLogHandler(auditRepo repository.AuditLogRepository) *AuditLogHandler {
	return &AuditLogHandler{auditRepo: auditRepo}
}

// ListAuditLogs godoc
// @Summary Query the audit trail
// @Tags audit
// @Produce json
// @Security BearerAuth
// @Param actor_id query string false "Filter on acting user"
// @Param event_type query []string false "Filter on event types"
// @Param category query []string false "Filter on categories"
// @Param severity query []string false "Filter on severities"
// @Param subject_type query string false "Filter on subject type"
// @Param subject_id query string false "Filter on subject ID"
// @Param ip query string false "Filter on source IP"
// @Param security_alerts query bool false "Only entries flagged as security alerts"
// @Param after query string false "RFC3339 lower bound on created_at"
// @Param before query string false "RFC3339 upper bound on created_at"
// @Param search query string false "Match against description and metadata"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {array} models.AuditLog
// @Failure 400 {object} models.ErrorResponse "Invalid filter"
// @Failure 403 {object} models.ErrorResponse "Permission denied"
// @Router /audit-logs [get]
func (h *AuditLogHandler) ListAuditLogs(c *gin.Context) {
	filter := repository.AuditLogFilter{OrderBy: "created_at", OrderDesc: true}

	if s := c.Query("actor_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid actor_id"})
			return
		}
		filter.ActorID = &id
	}
	if v := c.QueryArray("event_type"); len(v) > 0 {
		filter.EventTypes = v
	}
	if v := c.QueryArray("category"); len(v) > 0 {
		filter.Categories = v
	}
	if v := c.QueryArray("severity"); len(v) > 0 {
		filter.Severities = v
	}
	if s := c.Query("subject_type"); s != "" {
		filter.SubjectType = &s
	}
	if s := c.Query("subject_id"); s != "" {
		filter.SubjectID = &s
	}
	if s := c.Query("ip"); s != "" {
		filter.IPAddress = &s
	}
	if s := c.Query("security_alerts"); s != "" {
		if v, err := strconv.ParseBool(s); err == nil {
			filter.SecurityAlertsOnly = v
		}
	}
	if s := c.Query("after"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid after timestamp"})
			return
		}
		filter.CreatedAfter = &t
	}
	if s := c.Query("before"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid before timestamp"})
			return
		}
		filter.CreatedBefore = &t
	}
	if s := c.Query("search"); s != "" {
		filter.SearchTerm = &s
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

	logs, err := h.auditRepo.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to query audit logs"})
		return
	}
	c.JSON(http.StatusOK, logs)
}

// GetAuditLog godoc
// @Summary Get a single audit entry
// @Tags audit
// @Produce json
// @Security BearerAuth
// @Param id path string true "Audit log ID"
// @Success 200 {object} models.AuditLog
// @Failure 404 {object} models.ErrorResponse "Entry not found"
// @Router /audit-logs/{id} [get]
func (h *AuditLogHandler) GetAuditLog(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	entry, err := h.auditRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "audit log entry not found"})
		return
	}
	c.JSON(http.StatusOK, entry)
}
