package service

import (
	"context"
	"strconv"
	"time"

	"github.com/permit-dashboard-api/internal/config"
	"github.com/permit-dashboard-api/internal/export"
	"github.com/permit-dashboard-api/internal/metrics"
	"github.com/permit-dashboard-api/internal/models"
	"github.com/permit-dashboard-api/internal/repository"
	"github.com/rs/zerolog"
)

// SystemActor is the audit actor of scheduler-triggered work
const SystemActor = "system"

// cleanupService is the concrete implementation of CleanupService
type cleanupService struct {
	exportLogs    repository.ExportLogRepository
	root          string
	retentionDays int
	audit         *auditLog
	now           func() time.Time
	log           zerolog.Logger
}

// newCleanupService creates a new CleanupService
func newCleanupService(exportLogs repository.ExportLogRepository, cfg config.ExportConfig, audit *auditLog, log zerolog.Logger) *cleanupService {
	return &cleanupService{
		exportLogs:    exportLogs,
		root:          cfg.Root,
		retentionDays: cfg.RetentionDays,
		audit:         audit,
		now:           time.Now,
		log:           log.With().Str("service", "cleanup").Logger(),
	}
}

// Run deletes expired export files and marks their log rows purged. The log
// rows themselves are kept.
func (s *cleanupService) Run(ctx context.Context, actorID string) (*export.CleanupResult, error) {
	if actorID == "" {
		actorID = SystemActor
	}
	now := s.now()

	result, err := export.Cleanup(ctx, s.root, s.retentionDays, now, s.log)
	if result == nil {
		return nil, err
	}
	metrics.CleanupDeletedTotal.Add(float64(result.DeletedCount))
	metrics.CleanupErrorsTotal.Add(float64(len(result.Errors)))

	// Mark whatever was deleted, even when the sweep was cut short
	if len(result.DeletedPaths) > 0 {
		purged, markErr := s.exportLogs.MarkPurged(context.WithoutCancel(ctx), result.DeletedPaths, now.UTC())
		if markErr != nil {
			s.log.Error().Err(markErr).Int("paths", len(result.DeletedPaths)).Msg("Failed to mark export logs purged")
		} else {
			s.log.Debug().Int64("purged_logs", purged).Msg("Export logs marked purged")
		}
	}

	s.audit.record(context.WithoutCancel(ctx), actorID, models.AuditCleanupRun, s.root, map[string]string{
		"deleted":        strconv.Itoa(result.DeletedCount),
		"errors":         strconv.Itoa(len(result.Errors)),
		"retention_days": strconv.Itoa(s.retentionDays),
	})

	return result, err
}
