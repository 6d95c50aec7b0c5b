package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/permit-dashboard-api/internal/models"
	"github.com/permit-dashboard-api/internal/service"
	"github.com/rs/zerolog"
)

// DashboardHandler handles dashboard data endpoints
type DashboardHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewDashboardHandler creates a new DashboardHandler
func NewDashboardHandler(services *service.Services, log zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{
		services: services,
		log:      log.With().Str("handler", "dashboard").Logger(),
	}
}

// Stats handles GET /v1/stats
func (h *DashboardHandler) Stats(c *gin.Context) {
	stats, err := h.services.Dashboard.Stats(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetDashboard handles GET /v1/dashboard?year=&month=&department=
// Returns the caller's composed layout with every widget rendered
func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	var filter models.PermitFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "year and month must be numbers"})
		return
	}

	composed, err := h.services.Dashboard.Dashboard(c.Request.Context(), caller(c).UserID, filter)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, composed)
}

// GetFilters handles GET /v1/dashboard/filters
func (h *DashboardHandler) GetFilters(c *gin.Context) {
	options, err := h.services.Dashboard.FilterOptions(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, options)
}
