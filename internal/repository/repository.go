package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/permit-dashboard-api/internal/database"
	"github.com/permit-dashboard-api/internal/models"
)

// LayoutRepository defines the interface for per-user layout placements
type LayoutRepository interface {
	GetPlacements(ctx context.Context, userID string) ([]models.LayoutPlacement, error)
	ReplaceAll(ctx context.Context, userID string, placements []models.LayoutPlacement) error
	DeleteAll(ctx context.Context, userID string) (int64, error)
	CountUsers(ctx context.Context) (int, error)
}

// ExportLogRepository defines the interface for export log rows
type ExportLogRepository interface {
	Create(ctx context.Context, record *models.ExportRecord) error
	GetByID(ctx context.Context, id string) (*models.ExportRecord, error)
	List(ctx context.Context, userID string, limit int) ([]*models.ExportRecord, error)
	MarkPurged(ctx context.Context, filePaths []string, at time.Time) (int64, error)
	Count(ctx context.Context) (int, error)
}

// JobRepository defines the interface for export job operations
type JobRepository interface {
	Create(ctx context.Context, job *models.ExportJob) error
	Update(ctx context.Context, job *models.ExportJob) error
	GetByID(ctx context.Context, id string) (*models.ExportJob, error)
	GetPendingJobs(ctx context.Context, limit int) ([]*models.ExportJob, error)
	MarkJobAsProcessing(ctx context.Context, jobID string) (bool, error)
	Requeue(ctx context.Context, jobID string) (bool, error)
	RequeueProcessing(ctx context.Context) (int64, error)
}

// ScheduleRepository defines the interface for recurring export schedules
type ScheduleRepository interface {
	Create(ctx context.Context, schedule *models.ExportSchedule) error
	Update(ctx context.Context, schedule *models.ExportSchedule) error
	GetByID(ctx context.Context, id string) (*models.ExportSchedule, error)
	List(ctx context.Context, userID string, activeOnly bool) ([]*models.ExportSchedule, error)
	ListDue(ctx context.Context, now time.Time) ([]*models.ExportSchedule, error)
	Delete(ctx context.Context, id, userID string) (bool, error)
}

// PresetRepository defines the interface for export presets
type PresetRepository interface {
	Save(ctx context.Context, preset *models.ExportPreset) (*models.ExportPreset, error)
	GetByID(ctx context.Context, id string) (*models.ExportPreset, error)
	List(ctx context.Context, userID string) ([]*models.ExportPreset, error)
	Delete(ctx context.Context, id, userID string) (bool, error)
}

// UserRepository defines the interface for user data operations
type UserRepository interface {
	Upsert(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, limit int) ([]*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Count(ctx context.Context) (int, error)
}

// AuditRepository defines the interface for audit events and job runs
type AuditRepository interface {
	Record(ctx context.Context, event *models.AuditEvent) error
	List(ctx context.Context, filter models.AuditFilter) ([]*models.AuditEvent, error)
	RecordRun(ctx context.Context, run *models.JobRun) error
	ListRuns(ctx context.Context, jobName string, limit int) ([]*models.JobRun, error)
}

// PermitRepository defines the interface for the permit dataset
type PermitRepository interface {
	BatchUpsert(ctx context.Context, permits []*models.Permit) (int, error)
	Query(ctx context.Context, filter models.PermitFilter) ([]*models.Permit, error)
	FilterOptions(ctx context.Context) (*models.FilterOptions, error)
	Count(ctx context.Context) (int, error)
}

// Repositories holds all repository interfaces
type Repositories struct {
	Layout    LayoutRepository
	ExportLog ExportLogRepository
	Job       JobRepository
	Schedule  ScheduleRepository
	Preset    PresetRepository
	User      UserRepository
	Audit     AuditRepository
	Permit    PermitRepository
}

// New creates all repositories with the given database connection
func New(db *database.DB) *Repositories {
	return &Repositories{
		Layout:    NewLayoutRepo(db),
		ExportLog: NewExportLogRepo(db),
		Job:       NewJobRepo(db),
		Schedule:  NewScheduleRepo(db),
		Preset:    NewPresetRepo(db),
		User:      NewUserRepo(db),
		Audit:     NewAuditRepo(db),
		Permit:    NewPermitRepo(db),
	}
}

// helper to convert empty string to NULL
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// helper to convert an optional time to NULL
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

// encodeJSON marshals v for a TEXT column
func encodeJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeJSON unmarshals a TEXT column; empty input leaves v untouched
func decodeJSON(s string, v interface{}) error {
	if s == "" {
		return nil
	}
	return json.Unmarshal([]byte(s), v)
}

// countRows runs a COUNT(*) query
func countRows(ctx context.Context, db *database.DB, query string, args ...interface{}) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, db.Rebind(query), args...).Scan(&count)
	return count, err
}
