package models

import (
	"time"
)

// JobStatus represents the status of an export job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// ExportJob is an export request processed in the background, either because
// the client asked for it or because a schedule came due
type ExportJob struct {
	ID          string       `json:"job_id" db:"id"`
	UserID      string       `json:"user_id" db:"user_id"`
	Role        string       `json:"-" db:"role"`
	Format      ExportFormat `json:"format" db:"format"`
	BaseName    string       `json:"filename" db:"base_name"`
	Columns     []string     `json:"columns,omitempty" db:"columns"`
	Filters     PermitFilter `json:"filters" db:"filters"`
	ScheduleID  string       `json:"schedule_id,omitempty" db:"schedule_id"`
	Status      JobStatus    `json:"status" db:"status"`
	FilePath    string       `json:"-" db:"file_path"`
	DownloadURL string       `json:"download_url,omitempty" db:"download_url"`
	RowCount    int          `json:"row_count" db:"row_count"`
	Error       string       `json:"error,omitempty" db:"error"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
	StartedAt   *time.Time   `json:"started_at,omitempty" db:"started_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty" db:"completed_at"`
}

// ValidationError represents a single validation error in an imported file
type ValidationError struct {
	Line    int         `json:"line"`
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// ETLResult summarises one permit import run
type ETLResult struct {
	Source     string            `json:"source"`
	Total      int               `json:"total"`
	Imported   int               `json:"imported"`
	Failed     int               `json:"failed"`
	DurationMs int64             `json:"duration_ms"`
	Errors     []ValidationError `json:"errors,omitempty"`
}
