package api

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/permit-dashboard-api/internal/config"
	"github.com/permit-dashboard-api/internal/models"
	"github.com/permit-dashboard-api/internal/service"
	"github.com/rs/zerolog"
)

// AdminHandler handles the admin console endpoints
type AdminHandler struct {
	services *service.Services
	cfg      *config.Config
	log      zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(services *service.Services, cfg *config.Config, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		services: services,
		cfg:      cfg,
		log:      log.With().Str("handler", "admin").Logger(),
	}
}

// ListUsers handles GET /v1/admin/users
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.services.Admin.ListUsers(c.Request.Context(), caller(c), queryInt(c, "limit", 100))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// UpdateUser handles PATCH /v1/admin/users/:id
func (h *AdminHandler) UpdateUser(c *gin.Context) {
	var req models.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := h.services.Admin.UpdateUser(c.Request.Context(), caller(c), c.Param("id"), &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// ResetUserLayout handles DELETE /v1/admin/users/:id/layout
func (h *AdminHandler) ResetUserLayout(c *gin.Context) {
	if err := h.services.Admin.ResetUserLayout(c.Request.Context(), caller(c), c.Param("id")); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Layout reset"})
}

// ListAudit handles GET /v1/admin/audit?actor=&action=&limit=
func (h *AdminHandler) ListAudit(c *gin.Context) {
	filter := models.AuditFilter{
		ActorID: c.Query("actor"),
		Action:  c.Query("action"),
		Limit:   queryInt(c, "limit", 100),
	}

	events, err := h.services.Admin.ListAudit(c.Request.Context(), caller(c), filter)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// ListJobRuns handles GET /v1/admin/job-runs?job=&limit=
func (h *AdminHandler) ListJobRuns(c *gin.Context) {
	runs, err := h.services.Admin.ListJobRuns(c.Request.Context(), caller(c), c.Query("job"), queryInt(c, "limit", 100))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// RunCleanup handles POST /v1/admin/cleanup
func (h *AdminHandler) RunCleanup(c *gin.Context) {
	result, err := h.services.Admin.RunCleanup(c.Request.Context(), caller(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ImportPermits handles POST /v1/admin/permits/import
// Accepts a multipart CSV upload under the "file" field
func (h *AdminHandler) ImportPermits(c *gin.Context) {
	if !caller(c).IsAdmin() {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin role required"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file upload is required"})
		return
	}
	defer file.Close()

	// Validate file size
	if header.Size > h.cfg.Server.MaxUploadSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("file too large, max size is %d MB", h.cfg.Server.MaxUploadSize/(1024*1024)),
		})
		return
	}

	if ext := strings.ToLower(filepath.Ext(header.Filename)); ext != ".csv" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "permits import requires a CSV file"})
		return
	}

	result, err := h.services.Admin.ImportPermits(c.Request.Context(), caller(c), file, header.Filename)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	h.log.Info().
		Str("source", header.Filename).
		Int("imported", result.Imported).
		Int("failed", result.Failed).
		Msg("Permits imported")

	c.JSON(http.StatusOK, result)
}
