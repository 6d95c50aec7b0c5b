package mocks

import (
	"context"
	"io"
	"time"

	"github.com/permit-dashboard-api/internal/apperr"
	"github.com/permit-dashboard-api/internal/export"
	"github.com/permit-dashboard-api/internal/layout"
	"github.com/permit-dashboard-api/internal/models"
	"github.com/permit-dashboard-api/internal/service"
)

// MockLayoutService is a mock implementation of LayoutService
type MockLayoutService struct {
	Placements  map[string][]models.LayoutPlacement
	SaveResult  bool
	ResetResult bool
	ComposeFunc func(ctx context.Context, userID string, data *models.DashboardData) (*models.ComposedLayout, error)
	SavedUsers  []string
	ResetUsers  []string
}

// Verify interface compliance
var _ service.LayoutService = (*MockLayoutService)(nil)

func NewMockLayoutService() *MockLayoutService {
	return &MockLayoutService{
		Placements:  make(map[string][]models.LayoutPlacement),
		SaveResult:  true,
		ResetResult: true,
	}
}

func (m *MockLayoutService) LoadPlacements(ctx context.Context, userID string) ([]models.LayoutPlacement, error) {
	return m.Placements[userID], nil
}

func (m *MockLayoutService) Save(ctx context.Context, userID string, placements []models.LayoutPlacement) bool {
	m.SavedUsers = append(m.SavedUsers, userID)
	if m.SaveResult {
		m.Placements[userID] = placements
	}
	return m.SaveResult
}

func (m *MockLayoutService) Reset(ctx context.Context, userID string) bool {
	m.ResetUsers = append(m.ResetUsers, userID)
	if m.ResetResult {
		delete(m.Placements, userID)
	}
	return m.ResetResult
}

func (m *MockLayoutService) Compose(ctx context.Context, userID string, data *models.DashboardData) (*models.ComposedLayout, error) {
	if m.ComposeFunc != nil {
		return m.ComposeFunc(ctx, userID, data)
	}
	return &models.ComposedLayout{
		Placements: m.Placements[userID],
		Rendered:   []models.Widget{},
		Grid:       models.GridMeta{Columns: models.GridColumns, RowHeight: models.GridRowHeight},
		IsDefault:  len(m.Placements[userID]) == 0,
	}, nil
}

func (m *MockLayoutService) Catalog() []layout.CatalogEntry {
	return layout.DefaultCatalog().Entries()
}

// MockDashboardService is a mock implementation of DashboardService
type MockDashboardService struct {
	Layout  service.LayoutService
	Options *models.FilterOptions
	Counts  models.Stats
	Filters []models.PermitFilter
}

// Verify interface compliance
var _ service.DashboardService = (*MockDashboardService)(nil)

func NewMockDashboardService(layoutSvc service.LayoutService) *MockDashboardService {
	return &MockDashboardService{
		Layout:  layoutSvc,
		Options: &models.FilterOptions{Years: []int{}, Months: []int{}, Departments: []string{}},
	}
}

func (m *MockDashboardService) Data(ctx context.Context, filter models.PermitFilter) (*models.DashboardData, error) {
	m.Filters = append(m.Filters, filter)
	return service.Aggregate(filter, nil), nil
}

func (m *MockDashboardService) Dashboard(ctx context.Context, userID string, filter models.PermitFilter) (*models.ComposedLayout, error) {
	data, err := m.Data(ctx, filter)
	if err != nil {
		return nil, err
	}
	return m.Layout.Compose(ctx, userID, data)
}

func (m *MockDashboardService) FilterOptions(ctx context.Context) (*models.FilterOptions, error) {
	return m.Options, nil
}

func (m *MockDashboardService) Stats(ctx context.Context) (*models.Stats, error) {
	stats := m.Counts
	return &stats, nil
}

// MockExportService is a mock implementation of ExportService
type MockExportService struct {
	ExportFunc   func(ctx context.Context, caller models.Identity, req *models.ExportRequest) (*models.ExportResult, error)
	EnqueueFunc  func(ctx context.Context, caller models.Identity, req *models.ExportRequest) (*models.ExportJob, error)
	RunJobFunc   func(ctx context.Context, job *models.ExportJob) error
	DownloadFunc func(ctx context.Context, caller models.Identity, pathUserID, filename string) (string, error)
	Logs         []*models.ExportRecord
	RunJobs      []*models.ExportJob
}

// Verify interface compliance
var _ service.ExportService = (*MockExportService)(nil)

func NewMockExportService() *MockExportService {
	return &MockExportService{}
}

func (m *MockExportService) Export(ctx context.Context, caller models.Identity, req *models.ExportRequest) (*models.ExportResult, error) {
	if m.ExportFunc != nil {
		return m.ExportFunc(ctx, caller, req)
	}
	return &models.ExportResult{
		Record:      &models.ExportRecord{ID: "export-1", UserID: caller.UserID, Format: req.Format},
		DownloadURL: "/exports/" + caller.UserID + "/" + req.Filename + "." + req.Format.Extension(),
		Message:     "Export ready",
	}, nil
}

func (m *MockExportService) Enqueue(ctx context.Context, caller models.Identity, req *models.ExportRequest) (*models.ExportJob, error) {
	if m.EnqueueFunc != nil {
		return m.EnqueueFunc(ctx, caller, req)
	}
	return &models.ExportJob{
		ID:       "job-1",
		UserID:   caller.UserID,
		Format:   req.Format,
		BaseName: req.Filename,
		Status:   models.JobStatusPending,
	}, nil
}

func (m *MockExportService) RunJob(ctx context.Context, job *models.ExportJob) error {
	m.RunJobs = append(m.RunJobs, job)
	if m.RunJobFunc != nil {
		return m.RunJobFunc(ctx, job)
	}
	job.Status = models.JobStatusCompleted
	return nil
}

func (m *MockExportService) ListLogs(ctx context.Context, caller models.Identity, all bool, limit int) ([]*models.ExportRecord, error) {
	if all && !caller.CanAudit() {
		return nil, apperr.Forbidden("only admins and auditors can list every export")
	}
	return m.Logs, nil
}

func (m *MockExportService) Download(ctx context.Context, caller models.Identity, pathUserID, filename string) (string, error) {
	if m.DownloadFunc != nil {
		return m.DownloadFunc(ctx, caller, pathUserID, filename)
	}
	return "", apperr.NotFound("export file")
}

// MockJobService is a mock implementation of JobService
type MockJobService struct {
	Jobs          map[string]*models.ExportJob
	ExportService service.ExportService
}

// Verify interface compliance
var _ service.JobService = (*MockJobService)(nil)

func NewMockJobService() *MockJobService {
	return &MockJobService{
		Jobs: make(map[string]*models.ExportJob),
	}
}

func (m *MockJobService) StartProcessor(ctx context.Context) {}

func (m *MockJobService) StopProcessor() {}

func (m *MockJobService) RequeueInterrupted(ctx context.Context) (int64, error) {
	var n int64
	for _, job := range m.Jobs {
		if job.Status == models.JobStatusProcessing {
			job.Status = models.JobStatusPending
			n++
		}
	}
	return n, nil
}

func (m *MockJobService) GetJob(ctx context.Context, caller models.Identity, id string) (*models.ExportJob, error) {
	job, ok := m.Jobs[id]
	if !ok || job.UserID != caller.UserID {
		return nil, apperr.NotFound("export job")
	}
	return job, nil
}

func (m *MockJobService) SetExportService(exportService service.ExportService) {
	m.ExportService = exportService
}

// MockScheduleService is a mock implementation of ScheduleService
type MockScheduleService struct {
	Schedules map[string]*models.ExportSchedule
	Presets   map[string]*models.ExportPreset
	DueRuns   []time.Time
}

// Verify interface compliance
var _ service.ScheduleService = (*MockScheduleService)(nil)

func NewMockScheduleService() *MockScheduleService {
	return &MockScheduleService{
		Schedules: make(map[string]*models.ExportSchedule),
		Presets:   make(map[string]*models.ExportPreset),
	}
}

func (m *MockScheduleService) CreateSchedule(ctx context.Context, caller models.Identity, req *models.ScheduleRequest) (*models.ExportSchedule, error) {
	if req.Name == nil || req.Format == nil || req.Frequency == nil {
		return nil, apperr.Validation("name, format and frequency are required")
	}
	schedule := &models.ExportSchedule{
		ID:        "schedule-" + *req.Name,
		UserID:    caller.UserID,
		Name:      *req.Name,
		Format:    *req.Format,
		Frequency: *req.Frequency,
		Active:    true,
	}
	m.Schedules[schedule.ID] = schedule
	return schedule, nil
}

func (m *MockScheduleService) ListSchedules(ctx context.Context, caller models.Identity) ([]*models.ExportSchedule, error) {
	out := []*models.ExportSchedule{}
	for _, s := range m.Schedules {
		if s.UserID == caller.UserID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MockScheduleService) UpdateSchedule(ctx context.Context, caller models.Identity, id string, req *models.ScheduleRequest) (*models.ExportSchedule, error) {
	schedule, ok := m.Schedules[id]
	if !ok || schedule.UserID != caller.UserID {
		return nil, apperr.NotFound("schedule")
	}
	if req.Active != nil {
		schedule.Active = *req.Active
	}
	return schedule, nil
}

func (m *MockScheduleService) DeleteSchedule(ctx context.Context, caller models.Identity, id string) error {
	schedule, ok := m.Schedules[id]
	if !ok || schedule.UserID != caller.UserID {
		return apperr.NotFound("schedule")
	}
	delete(m.Schedules, id)
	return nil
}

func (m *MockScheduleService) RunDue(ctx context.Context, now time.Time) (int, error) {
	m.DueRuns = append(m.DueRuns, now)
	return 0, nil
}

func (m *MockScheduleService) SavePreset(ctx context.Context, caller models.Identity, req *models.PresetRequest) (*models.ExportPreset, error) {
	preset := &models.ExportPreset{
		ID:      "preset-" + req.Name,
		UserID:  caller.UserID,
		Name:    req.Name,
		Columns: req.Columns,
		Filters: req.Filters,
	}
	m.Presets[preset.ID] = preset
	return preset, nil
}

func (m *MockScheduleService) ListPresets(ctx context.Context, caller models.Identity) ([]*models.ExportPreset, error) {
	out := []*models.ExportPreset{}
	for _, p := range m.Presets {
		if p.UserID == caller.UserID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MockScheduleService) DeletePreset(ctx context.Context, caller models.Identity, id string) error {
	preset, ok := m.Presets[id]
	if !ok || preset.UserID != caller.UserID {
		return apperr.NotFound("preset")
	}
	delete(m.Presets, id)
	return nil
}

// MockETLService is a mock implementation of ETLService
type MockETLService struct {
	Sources []string
	Result  *models.ETLResult
}

// Verify interface compliance
var _ service.ETLService = (*MockETLService)(nil)

func NewMockETLService() *MockETLService {
	return &MockETLService{Result: &models.ETLResult{}}
}

func (m *MockETLService) Import(ctx context.Context, r io.Reader, source string) (*models.ETLResult, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return nil, err
	}
	m.Sources = append(m.Sources, source)
	result := *m.Result
	result.Source = source
	return &result, nil
}

func (m *MockETLService) ImportFile(ctx context.Context, path string) (*models.ETLResult, error) {
	m.Sources = append(m.Sources, path)
	result := *m.Result
	result.Source = path
	return &result, nil
}

// MockCleanupService is a mock implementation of CleanupService
type MockCleanupService struct {
	Actors []string
	Err    error
}

// Verify interface compliance
var _ service.CleanupService = (*MockCleanupService)(nil)

func NewMockCleanupService() *MockCleanupService {
	return &MockCleanupService{}
}

func (m *MockCleanupService) Run(ctx context.Context, actorID string) (*export.CleanupResult, error) {
	m.Actors = append(m.Actors, actorID)
	if m.Err != nil {
		return nil, m.Err
	}
	return &export.CleanupResult{DeletedPaths: []string{}}, nil
}

// MockAdminService is a mock implementation of AdminService
type MockAdminService struct {
	Users   []*models.User
	Cleanup *MockCleanupService
	ETL     *MockETLService
}

// Verify interface compliance
var _ service.AdminService = (*MockAdminService)(nil)

func NewMockAdminService() *MockAdminService {
	return &MockAdminService{
		Cleanup: NewMockCleanupService(),
		ETL:     NewMockETLService(),
	}
}

var errAdminOnly = apperr.Forbidden("admin role required")

func (m *MockAdminService) ListUsers(ctx context.Context, caller models.Identity, limit int) ([]*models.User, error) {
	if !caller.IsAdmin() {
		return nil, errAdminOnly
	}
	return m.Users, nil
}

func (m *MockAdminService) UpdateUser(ctx context.Context, caller models.Identity, userID string, req *models.UpdateUserRequest) (*models.User, error) {
	if !caller.IsAdmin() {
		return nil, errAdminOnly
	}
	for _, u := range m.Users {
		if u.ID == userID {
			if req.Role != nil {
				u.Role = *req.Role
			}
			if req.IsActive != nil {
				u.IsActive = *req.IsActive
			}
			return u, nil
		}
	}
	return nil, apperr.NotFound("user")
}

func (m *MockAdminService) ResetUserLayout(ctx context.Context, caller models.Identity, userID string) error {
	if !caller.IsAdmin() {
		return errAdminOnly
	}
	return nil
}

func (m *MockAdminService) ListAudit(ctx context.Context, caller models.Identity, filter models.AuditFilter) ([]*models.AuditEvent, error) {
	if !caller.CanAudit() {
		return nil, apperr.Forbidden("admin or auditor role required")
	}
	return []*models.AuditEvent{}, nil
}

func (m *MockAdminService) ListJobRuns(ctx context.Context, caller models.Identity, jobName string, limit int) ([]*models.JobRun, error) {
	if !caller.CanAudit() {
		return nil, apperr.Forbidden("admin or auditor role required")
	}
	return []*models.JobRun{}, nil
}

func (m *MockAdminService) RunCleanup(ctx context.Context, caller models.Identity) (*export.CleanupResult, error) {
	if !caller.IsAdmin() {
		return nil, errAdminOnly
	}
	return m.Cleanup.Run(ctx, caller.UserID)
}

func (m *MockAdminService) ImportPermits(ctx context.Context, caller models.Identity, r io.Reader, source string) (*models.ETLResult, error) {
	if !caller.IsAdmin() {
		return nil, errAdminOnly
	}
	return m.ETL.Import(ctx, r, source)
}

// MockUserDirectory is a mock implementation of UserDirectory. Users not in
// Roles keep their claimed role; ids in Inactive are refused.
type MockUserDirectory struct {
	Roles       map[string]string
	Inactive    map[string]bool
	Invalidated []string
}

// Verify interface compliance
var _ service.UserDirectory = (*MockUserDirectory)(nil)

func NewMockUserDirectory() *MockUserDirectory {
	return &MockUserDirectory{
		Roles:    make(map[string]string),
		Inactive: make(map[string]bool),
	}
}

func (m *MockUserDirectory) Resolve(ctx context.Context, userID, claimedRole string) (models.Identity, error) {
	if m.Inactive[userID] {
		return models.Identity{}, apperr.Forbidden("user is inactive")
	}
	if role, ok := m.Roles[userID]; ok {
		return models.Identity{UserID: userID, Role: role}, nil
	}
	if !models.ValidRoles[claimedRole] {
		claimedRole = models.RoleUser
	}
	return models.Identity{UserID: userID, Role: claimedRole}, nil
}

func (m *MockUserDirectory) Invalidate(userID string) {
	m.Invalidated = append(m.Invalidated, userID)
}

// NewMockServices returns a Services value built entirely from mocks
func NewMockServices() *service.Services {
	layoutSvc := NewMockLayoutService()
	return &service.Services{
		Layout:    layoutSvc,
		Dashboard: NewMockDashboardService(layoutSvc),
		Export:    NewMockExportService(),
		Job:       NewMockJobService(),
		Schedule:  NewMockScheduleService(),
		ETL:       NewMockETLService(),
		Cleanup:   NewMockCleanupService(),
		Admin:     NewMockAdminService(),
		Users:     NewMockUserDirectory(),
	}
}
