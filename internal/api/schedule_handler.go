package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/permit-dashboard-api/internal/models"
	"github.com/permit-dashboard-api/internal/service"
	"github.com/rs/zerolog"
)

// ScheduleHandler handles export schedule and preset endpoints
type ScheduleHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewScheduleHandler creates a new ScheduleHandler
func NewScheduleHandler(services *service.Services, log zerolog.Logger) *ScheduleHandler {
	return &ScheduleHandler{
		services: services,
		log:      log.With().Str("handler", "schedule").Logger(),
	}
}

// ListSchedules handles GET /v1/export-schedules
func (h *ScheduleHandler) ListSchedules(c *gin.Context) {
	schedules, err := h.services.Schedule.ListSchedules(c.Request.Context(), caller(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedules": schedules})
}

// CreateSchedule handles POST /v1/export-schedules
func (h *ScheduleHandler) CreateSchedule(c *gin.Context) {
	var req models.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	schedule, err := h.services.Schedule.CreateSchedule(c.Request.Context(), caller(c), &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, schedule)
}

// UpdateSchedule handles PATCH /v1/export-schedules/:id
// Setting active to false pauses the schedule without deleting it
func (h *ScheduleHandler) UpdateSchedule(c *gin.Context) {
	var req models.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	schedule, err := h.services.Schedule.UpdateSchedule(c.Request.Context(), caller(c), c.Param("id"), &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, schedule)
}

// DeleteSchedule handles DELETE /v1/export-schedules/:id
func (h *ScheduleHandler) DeleteSchedule(c *gin.Context) {
	if err := h.services.Schedule.DeleteSchedule(c.Request.Context(), caller(c), c.Param("id")); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListPresets handles GET /v1/export-presets
func (h *ScheduleHandler) ListPresets(c *gin.Context) {
	presets, err := h.services.Schedule.ListPresets(c.Request.Context(), caller(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"presets": presets})
}

// SavePreset handles POST /v1/export-presets
func (h *ScheduleHandler) SavePreset(c *gin.Context) {
	var req models.PresetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	preset, err := h.services.Schedule.SavePreset(c.Request.Context(), caller(c), &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, preset)
}

// DeletePreset handles DELETE /v1/export-presets/:id
func (h *ScheduleHandler) DeletePreset(c *gin.Context) {
	if err := h.services.Schedule.DeletePreset(c.Request.Context(), caller(c), c.Param("id")); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}
