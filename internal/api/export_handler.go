package api

import (
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/permit-dashboard-api/internal/models"
	"github.com/permit-dashboard-api/internal/service"
	"github.com/rs/zerolog"
)

const defaultListLimit = 50

// ExportHandler handles export endpoints
type ExportHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewExportHandler creates a new ExportHandler
func NewExportHandler(services *service.Services, log zerolog.Logger) *ExportHandler {
	return &ExportHandler{
		services: services,
		log:      log.With().Str("handler", "export").Logger(),
	}
}

// CreateExport handles POST /v1/exports
// Generates the file inline, or queues a job when async is set
func (h *ExportHandler) CreateExport(c *gin.Context) {
	ctx := c.Request.Context()

	var req models.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if req.Async {
		job, err := h.services.Export.Enqueue(ctx, caller(c), &req)
		if err != nil {
			respondError(c, h.log, err)
			return
		}
		c.JSON(http.StatusAccepted, job)
		return
	}

	result, err := h.services.Export.Export(ctx, caller(c), &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	h.log.Info().
		Str("user_id", result.Record.UserID).
		Str("format", string(result.Record.Format)).
		Int("rows", result.Record.RowCount).
		Msg("Export generated")

	c.JSON(http.StatusCreated, result)
}

// ListExports handles GET /v1/exports?all=&limit=
func (h *ExportHandler) ListExports(c *gin.Context) {
	all, _ := strconv.ParseBool(c.Query("all"))
	limit := queryInt(c, "limit", defaultListLimit)

	records, err := h.services.Export.ListLogs(c.Request.Context(), caller(c), all, limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exports": records, "count": len(records)})
}

// GetExportJob handles GET /v1/exports/jobs/:job_id
func (h *ExportHandler) GetExportJob(c *gin.Context) {
	jobID := c.Param("job_id")

	job, err := h.services.Job.GetJob(c.Request.Context(), caller(c), jobID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// Download handles GET /exports/:user_id/:filename
// Only the owner of the path may read it; every refusal looks like a missing file
func (h *ExportHandler) Download(c *gin.Context) {
	path, err := h.services.Export.Download(c.Request.Context(), caller(c), c.Param("user_id"), c.Param("filename"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}

// queryInt parses an integer query parameter, falling back to def
func queryInt(c *gin.Context, key string, def int) int {
	if v := c.Query(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
