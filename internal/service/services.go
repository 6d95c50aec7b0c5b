package service

import (
	"context"
	"io"
	"time"

	"github.com/permit-dashboard-api/internal/config"
	"github.com/permit-dashboard-api/internal/export"
	"github.com/permit-dashboard-api/internal/layout"
	"github.com/permit-dashboard-api/internal/models"
	"github.com/permit-dashboard-api/internal/repository"
	"github.com/rs/zerolog"
)

// LayoutService defines the interface for per-user dashboard layouts
type LayoutService interface {
	LoadPlacements(ctx context.Context, userID string) ([]models.LayoutPlacement, error)
	Save(ctx context.Context, userID string, placements []models.LayoutPlacement) bool
	Reset(ctx context.Context, userID string) bool
	Compose(ctx context.Context, userID string, data *models.DashboardData) (*models.ComposedLayout, error)
	Catalog() []layout.CatalogEntry
}

// DashboardService defines the interface for dashboard data
type DashboardService interface {
	Data(ctx context.Context, filter models.PermitFilter) (*models.DashboardData, error)
	Dashboard(ctx context.Context, userID string, filter models.PermitFilter) (*models.ComposedLayout, error)
	FilterOptions(ctx context.Context) (*models.FilterOptions, error)
	Stats(ctx context.Context) (*models.Stats, error)
}

// ExportService defines the interface for export operations
type ExportService interface {
	Export(ctx context.Context, caller models.Identity, req *models.ExportRequest) (*models.ExportResult, error)
	Enqueue(ctx context.Context, caller models.Identity, req *models.ExportRequest) (*models.ExportJob, error)
	RunJob(ctx context.Context, job *models.ExportJob) error
	ListLogs(ctx context.Context, caller models.Identity, all bool, limit int) ([]*models.ExportRecord, error)
	Download(ctx context.Context, caller models.Identity, pathUserID, filename string) (string, error)
}

// JobService defines the interface for background export jobs
type JobService interface {
	StartProcessor(ctx context.Context)
	StopProcessor()
	RequeueInterrupted(ctx context.Context) (int64, error)
	GetJob(ctx context.Context, caller models.Identity, id string) (*models.ExportJob, error)
	SetExportService(exportService ExportService)
}

// ScheduleService defines the interface for recurring exports and presets
type ScheduleService interface {
	CreateSchedule(ctx context.Context, caller models.Identity, req *models.ScheduleRequest) (*models.ExportSchedule, error)
	ListSchedules(ctx context.Context, caller models.Identity) ([]*models.ExportSchedule, error)
	UpdateSchedule(ctx context.Context, caller models.Identity, id string, req *models.ScheduleRequest) (*models.ExportSchedule, error)
	DeleteSchedule(ctx context.Context, caller models.Identity, id string) error
	RunDue(ctx context.Context, now time.Time) (int, error)

	SavePreset(ctx context.Context, caller models.Identity, req *models.PresetRequest) (*models.ExportPreset, error)
	ListPresets(ctx context.Context, caller models.Identity) ([]*models.ExportPreset, error)
	DeletePreset(ctx context.Context, caller models.Identity, id string) error
}

// ETLService defines the interface for permit imports
type ETLService interface {
	Import(ctx context.Context, r io.Reader, source string) (*models.ETLResult, error)
	ImportFile(ctx context.Context, path string) (*models.ETLResult, error)
}

// CleanupService defines the interface for the export retention sweep
type CleanupService interface {
	Run(ctx context.Context, actorID string) (*export.CleanupResult, error)
}

// AdminService defines the interface for the admin console
type AdminService interface {
	ListUsers(ctx context.Context, caller models.Identity, limit int) ([]*models.User, error)
	UpdateUser(ctx context.Context, caller models.Identity, userID string, req *models.UpdateUserRequest) (*models.User, error)
	ResetUserLayout(ctx context.Context, caller models.Identity, userID string) error
	ListAudit(ctx context.Context, caller models.Identity, filter models.AuditFilter) ([]*models.AuditEvent, error)
	ListJobRuns(ctx context.Context, caller models.Identity, jobName string, limit int) ([]*models.JobRun, error)
	RunCleanup(ctx context.Context, caller models.Identity) (*export.CleanupResult, error)
	ImportPermits(ctx context.Context, caller models.Identity, r io.Reader, source string) (*models.ETLResult, error)
}

// UserDirectory resolves request identities against the users table
type UserDirectory interface {
	Resolve(ctx context.Context, userID, claimedRole string) (models.Identity, error)
	Invalidate(userID string)
}

// Services holds all service interfaces
type Services struct {
	Layout    LayoutService
	Dashboard DashboardService
	Export    ExportService
	Job       JobService
	Schedule  ScheduleService
	ETL       ETLService
	Cleanup   CleanupService
	Admin     AdminService
	Users     UserDirectory
}

// NewServices creates all services
func NewServices(repos *repository.Repositories, cfg *config.Config, log zerolog.Logger) *Services {
	audit := newAuditLog(repos.Audit, log)
	users := newUserDirectory(repos.User, cfg.Auth, log)

	layoutSvc := newLayoutService(repos.Layout, layout.DefaultCatalog(), audit, log)
	dashboardSvc := newDashboardService(repos, layoutSvc, log)
	generator := export.NewGenerator(cfg.Export, log)
	exportSvc := newExportService(repos, generator, export.NewGateway(cfg.Export.Root), audit, log)
	jobSvc := newJobService(repos.Job, cfg.Scheduler, log)
	scheduleSvc := newScheduleService(repos, users, log)
	etlSvc := newETLService(repos.Permit, cfg.Scheduler.ETLBatchSize, log)
	cleanupSvc := newCleanupService(repos.ExportLog, cfg.Export, audit, log)
	adminSvc := newAdminService(repos, layoutSvc, cleanupSvc, etlSvc, users, audit, log)

	// Wire up job processor to export service
	jobSvc.SetExportService(exportSvc)

	return &Services{
		Layout:    layoutSvc,
		Dashboard: dashboardSvc,
		Export:    exportSvc,
		Job:       jobSvc,
		Schedule:  scheduleSvc,
		ETL:       etlSvc,
		Cleanup:   cleanupSvc,
		Admin:     adminSvc,
		Users:     users,
	}
}
