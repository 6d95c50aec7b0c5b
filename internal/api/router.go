package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/permit-dashboard-api/internal/config"
	"github.com/permit-dashboard-api/internal/metrics"
	"github.com/permit-dashboard-api/internal/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const serviceName = "permit-dashboard-api"

// NewRouter creates and configures the Gin router
func NewRouter(services *service.Services, cfg *config.Config, log zerolog.Logger) *gin.Engine {
	// Tests set TestMode before building the router
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.MaxMultipartMemory = 8 << 20

	// Middleware
	router.Use(requestIDMiddleware())
	router.Use(recoveryMiddleware(log))
	router.Use(loggingMiddleware(log))
	router.Use(corsMiddleware(cfg.Auth))

	// Handlers
	dashboardHandler := NewDashboardHandler(services, log)
	layoutHandler := NewLayoutHandler(services, log)
	exportHandler := NewExportHandler(services, log)
	scheduleHandler := NewScheduleHandler(services, log)
	adminHandler := NewAdminHandler(services, cfg, log)

	// Health check
	router.GET("/health", healthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	identity := identityMiddleware(services.Users, cfg.Auth, log)

	// Export gateway
	router.GET("/exports/:user_id/:filename", identity, exportHandler.Download)

	// API v1
	v1 := router.Group("/v1", identity)
	{
		v1.GET("/stats", dashboardHandler.Stats)

		dashboard := v1.Group("/dashboard")
		{
			dashboard.GET("", dashboardHandler.GetDashboard)
			dashboard.GET("/filters", dashboardHandler.GetFilters)
		}

		layouts := v1.Group("/layout")
		{
			layouts.GET("", layoutHandler.GetLayout)
			layouts.PUT("", layoutHandler.SaveLayout)
			layouts.DELETE("", layoutHandler.ResetLayout)
			layouts.GET("/catalog", layoutHandler.GetCatalog)
		}

		exports := v1.Group("/exports")
		{
			exports.POST("", exportHandler.CreateExport)
			exports.GET("", exportHandler.ListExports)
			exports.GET("/jobs/:job_id", exportHandler.GetExportJob)
		}

		schedules := v1.Group("/export-schedules")
		{
			schedules.GET("", scheduleHandler.ListSchedules)
			schedules.POST("", scheduleHandler.CreateSchedule)
			schedules.PATCH("/:id", scheduleHandler.UpdateSchedule)
			schedules.DELETE("/:id", scheduleHandler.DeleteSchedule)
		}

		presets := v1.Group("/export-presets")
		{
			presets.GET("", scheduleHandler.ListPresets)
			presets.POST("", scheduleHandler.SavePreset)
			presets.DELETE("/:id", scheduleHandler.DeletePreset)
		}

		admin := v1.Group("/admin")
		{
			admin.GET("/users", adminHandler.ListUsers)
			admin.PATCH("/users/:id", adminHandler.UpdateUser)
			admin.DELETE("/users/:id/layout", adminHandler.ResetUserLayout)
			admin.GET("/audit", adminHandler.ListAudit)
			admin.GET("/job-runs", adminHandler.ListJobRuns)
			admin.POST("/cleanup", adminHandler.RunCleanup)
			admin.POST("/permits/import", adminHandler.ImportPermits)
		}
	}

	return router
}

// healthCheck returns the health status
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"service":   serviceName,
	})
}

// requestIDMiddleware propagates or assigns an X-Request-ID
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// recoveryMiddleware handles panics
func recoveryMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().
					Interface("error", err).
					Str("request_id", c.GetString("request_id")).
					Msg("Panic recovered")
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "Internal server error",
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}

// loggingMiddleware logs requests and observes their latency
func loggingMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(statusCode)).
			Observe(duration.Seconds())

		event := log.Info()
		if statusCode >= 400 {
			event = log.Warn()
		}
		if statusCode >= 500 {
			event = log.Error()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", statusCode).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Str("user_id", c.GetString(userIDKey)).
			Str("request_id", c.GetString("request_id")).
			Msg("Request completed")
	}
}

// corsMiddleware handles CORS
func corsMiddleware(auth config.AuthConfig) gin.HandlerFunc {
	allowHeaders := "Content-Type, X-Request-ID, " + auth.UserHeader + ", " + auth.RoleHeader
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", allowHeaders)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
