package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/permit-dashboard-api/internal/models"
	"github.com/permit-dashboard-api/internal/service"
	"github.com/permit-dashboard-api/internal/validation"
	"github.com/rs/zerolog"
)

const (
	msgLayoutSaved      = "Layout saved"
	msgLayoutSaveFailed = "Failed to save layout, try again"
)

// LayoutHandler handles layout endpoints
type LayoutHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewLayoutHandler creates a new LayoutHandler
func NewLayoutHandler(services *service.Services, log zerolog.Logger) *LayoutHandler {
	return &LayoutHandler{
		services: services,
		log:      log.With().Str("handler", "layout").Logger(),
	}
}

// GetLayout handles GET /v1/layout
func (h *LayoutHandler) GetLayout(c *gin.Context) {
	composed, err := h.services.Layout.Compose(c.Request.Context(), caller(c).UserID, nil)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"placements": composed.Placements,
		"is_default": composed.IsDefault,
		"grid":       composed.Grid,
	})
}

// SaveLayout handles PUT /v1/layout
func (h *LayoutHandler) SaveLayout(c *gin.Context) {
	var req models.SaveLayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(req.Placements) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgLayoutSaveFailed, "details": "placements are required"})
		return
	}
	placements, err := validation.PlacementsFromRequest(req.Placements)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgLayoutSaveFailed, "details": err.Error()})
		return
	}

	if !h.services.Layout.Save(c.Request.Context(), caller(c).UserID, placements) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgLayoutSaveFailed})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msgLayoutSaved})
}

// ResetLayout handles DELETE /v1/layout
func (h *LayoutHandler) ResetLayout(c *gin.Context) {
	if !h.services.Layout.Reset(c.Request.Context(), caller(c).UserID) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset layout, try again"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Layout reset"})
}

// GetCatalog handles GET /v1/layout/catalog
func (h *LayoutHandler) GetCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"components": h.services.Layout.Catalog()})
}
