package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/permit-dashboard-api/internal/apperr"
	"github.com/permit-dashboard-api/internal/export"
	"github.com/permit-dashboard-api/internal/metrics"
	"github.com/permit-dashboard-api/internal/models"
	"github.com/permit-dashboard-api/internal/repository"
	"github.com/rs/zerolog"
)

// DownloadPrefix is the URL prefix under which the gateway serves exports
const DownloadPrefix = "/exports/"

// exportService is the concrete implementation of ExportService
type exportService struct {
	repos     *repository.Repositories
	generator *export.Generator
	gateway   *export.Gateway
	audit     *auditLog
	log       zerolog.Logger
}

// newExportService creates a new ExportService
func newExportService(repos *repository.Repositories, generator *export.Generator, gateway *export.Gateway, audit *auditLog, log zerolog.Logger) *exportService {
	return &exportService{
		repos:     repos,
		generator: generator,
		gateway:   gateway,
		audit:     audit,
		log:       log.With().Str("service", "export").Logger(),
	}
}

// exportPlan is a validated export request with its preset applied
type exportPlan struct {
	format   models.ExportFormat
	baseName string
	columns  []string
	filters  models.PermitFilter
}

// Export generates the file synchronously and logs it
func (s *exportService) Export(ctx context.Context, caller models.Identity, req *models.ExportRequest) (*models.ExportResult, error) {
	plan, err := s.plan(ctx, caller, req)
	if err != nil {
		return nil, err
	}

	record, url, err := s.generate(ctx, caller.UserID, caller.Role, plan)
	if err != nil {
		return nil, err
	}

	return &models.ExportResult{
		Record:      record,
		DownloadURL: url,
		Message:     "Export ready",
	}, nil
}

// Enqueue validates the request and stores a pending job for the processor
func (s *exportService) Enqueue(ctx context.Context, caller models.Identity, req *models.ExportRequest) (*models.ExportJob, error) {
	plan, err := s.plan(ctx, caller, req)
	if err != nil {
		return nil, err
	}

	job := &models.ExportJob{
		ID:        uuid.New().String(),
		UserID:    caller.UserID,
		Role:      caller.Role,
		Format:    plan.format,
		BaseName:  plan.baseName,
		Columns:   plan.columns,
		Filters:   plan.filters,
		Status:    models.JobStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repos.Job.Create(ctx, job); err != nil {
		return nil, apperr.Storage("create export job", err)
	}

	s.log.Info().
		Str("job_id", job.ID).
		Str("user_id", job.UserID).
		Str("format", string(job.Format)).
		Msg("Export job queued")

	return job, nil
}

// RunJob executes a claimed job and stores its outcome
func (s *exportService) RunJob(ctx context.Context, job *models.ExportJob) error {
	if job.StartedAt == nil {
		now := time.Now().UTC()
		job.StartedAt = &now
	}

	plan := &exportPlan{
		format:   job.Format,
		baseName: job.BaseName,
		columns:  job.Columns,
		filters:  job.Filters,
	}
	record, url, err := s.generate(ctx, job.UserID, job.Role, plan)

	// The outcome must be stored even when the processor is shutting down
	storeCtx := context.WithoutCancel(ctx)
	if err != nil && ctx.Err() != nil {
		// Interrupted, not failed: hand the job back for the next run
		job.Status = models.JobStatusPending
		job.StartedAt = nil
		if _, reqErr := s.repos.Job.Requeue(storeCtx, job.ID); reqErr != nil {
			s.log.Error().Err(reqErr).Str("job_id", job.ID).Msg("Failed to requeue interrupted job")
		}
		return err
	}

	completedAt := time.Now().UTC()
	job.CompletedAt = &completedAt
	if err != nil {
		job.Status = models.JobStatusFailed
		job.Error = apperr.Message(err)
	} else {
		job.Status = models.JobStatusCompleted
		job.FilePath = record.FilePath
		job.DownloadURL = url
		job.RowCount = record.RowCount
	}

	if updErr := s.repos.Job.Update(storeCtx, job); updErr != nil {
		s.log.Error().Err(updErr).Str("job_id", job.ID).Msg("Failed to store job outcome")
	}
	return err
}

// ListLogs returns the caller's export history, or everyone's when all is set
// and the caller may audit
func (s *exportService) ListLogs(ctx context.Context, caller models.Identity, all bool, limit int) ([]*models.ExportRecord, error) {
	userID := caller.UserID
	if all {
		if !caller.CanAudit() {
			return nil, apperr.Forbidden("only admins and auditors can list every export")
		}
		userID = ""
	}
	records, err := s.repos.ExportLog.List(ctx, userID, limit)
	if err != nil {
		return nil, apperr.Storage("list exports", err)
	}
	return records, nil
}

// Download resolves a file for the gateway endpoint
func (s *exportService) Download(ctx context.Context, caller models.Identity, pathUserID, filename string) (string, error) {
	path, err := s.gateway.Resolve(caller.UserID, pathUserID, filename)
	if err != nil {
		metrics.DownloadsTotal.WithLabelValues("not_found").Inc()
		s.log.Warn().
			Str("caller_id", caller.UserID).
			Str("path_user_id", pathUserID).
			Str("filename", filename).
			Msg("Export download refused")
		return "", err
	}

	metrics.DownloadsTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	s.audit.record(ctx, caller.UserID, models.AuditExportDownload, filepath.Base(path), nil)
	return path, nil
}

// plan validates req and applies the referenced preset
func (s *exportService) plan(ctx context.Context, caller models.Identity, req *models.ExportRequest) (*exportPlan, error) {
	if caller.UserID == "" {
		return nil, apperr.Validation("user id is required")
	}
	if req == nil {
		return nil, apperr.Validation("request body is required")
	}
	if req.Format == "" {
		return nil, apperr.Validation("format is required")
	}
	if !models.ValidFormats[req.Format] {
		return nil, apperr.UnsupportedFormat(string(req.Format))
	}

	baseName := strings.TrimSpace(req.Filename)
	if baseName == "" {
		return nil, apperr.Validation("filename is required")
	}
	if export.Sanitize(baseName) == "" {
		return nil, apperr.Validation("filename contains no usable characters")
	}

	plan := &exportPlan{
		format:   req.Format,
		baseName: baseName,
		columns:  req.Columns,
		filters:  req.Filters,
	}

	if req.PresetID != "" {
		preset, err := s.repos.Preset.GetByID(ctx, req.PresetID)
		if err != nil {
			return nil, apperr.Storage("load preset", err)
		}
		if preset == nil || preset.UserID != caller.UserID {
			return nil, apperr.NotFound("preset")
		}
		if len(plan.columns) == 0 {
			plan.columns = preset.Columns
		}
		if plan.filters == (models.PermitFilter{}) {
			plan.filters = preset.Filters
		}
	}

	if err := validateColumns(plan.columns); err != nil {
		return nil, err
	}
	if err := validateFilter(plan.filters); err != nil {
		return nil, err
	}
	return plan, nil
}

// generate queries the permits, writes the file and logs the export
func (s *exportService) generate(ctx context.Context, userID, role string, plan *exportPlan) (*models.ExportRecord, string, error) {
	start := time.Now()
	format := string(plan.format)

	permits, err := s.repos.Permit.Query(ctx, plan.filters)
	if err != nil {
		metrics.ExportsTotal.WithLabelValues(format, metrics.ResultFailure).Inc()
		return nil, "", apperr.Storage("query permits", err)
	}

	table, err := export.SelectColumns(models.PermitsTable(permits), plan.columns)
	if err != nil {
		metrics.ExportsTotal.WithLabelValues(format, metrics.ResultFailure).Inc()
		return nil, "", err
	}
	if table.Len() > 0 && len(export.VisibleColumns(role, table.Columns)) == 0 {
		metrics.ExportsTotal.WithLabelValues(format, metrics.ResultFailure).Inc()
		return nil, "", apperr.Validation("none of the selected columns are visible to role %q", role)
	}

	path, err := s.generator.Generate(ctx, table, userID, plan.baseName, plan.format, role)
	metrics.ExportsTotal.WithLabelValues(format, metrics.Result(err)).Inc()
	if err != nil {
		return nil, "", err
	}
	metrics.ExportDuration.WithLabelValues(format).Observe(time.Since(start).Seconds())
	metrics.ExportRows.Observe(float64(table.Len()))

	relPath, err := s.relativePath(path)
	if err != nil {
		return nil, "", apperr.ExportWrite(format, err)
	}

	record := &models.ExportRecord{
		ID:        uuid.New().String(),
		UserID:    userID,
		Format:    plan.format,
		FilePath:  relPath,
		CreatedAt: time.Now().UTC(),
		RowCount:  table.Len(),
		Metadata: models.ExportMetadata{
			Filename: plan.baseName,
			Columns:  export.VisibleColumns(role, table.Columns),
			Role:     role,
		},
	}
	// The file is already in place; a lost log row is reported but does not fail the export
	if err := s.repos.ExportLog.Create(ctx, record); err != nil {
		s.log.Error().Err(err).
			Str("user_id", userID).
			Str("path", relPath).
			Msg("Failed to write export log")
	}

	s.audit.record(ctx, userID, models.AuditExportGenerate, relPath, map[string]string{
		"format": format,
		"role":   role,
	})

	return record, DownloadPrefix + relPath, nil
}

// relativePath returns path relative to the export root in slash form
func (s *exportService) relativePath(path string) (string, error) {
	root, err := filepath.Abs(s.generator.Root())
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(rel, "..") {
		return "", errors.New("export written outside the export root")
	}
	return filepath.ToSlash(rel), nil
}

// validateColumns rejects column names outside the permit dataset
func validateColumns(columns []string) error {
	known := make(map[string]bool, len(models.PermitColumns))
	for _, c := range models.PermitColumns {
		known[c] = true
	}
	for _, c := range columns {
		if !known[c] {
			return apperr.Validation("unknown column %q", c)
		}
	}
	return nil
}
