package models

import (
	"time"
)

// ExportFormat is an export file format
type ExportFormat string

const (
	FormatCSV   ExportFormat = "csv"
	FormatExcel ExportFormat = "excel"
	FormatPDF   ExportFormat = "pdf"
	FormatZIP   ExportFormat = "zip"
)

// ValidFormats defines allowed export formats
var ValidFormats = map[ExportFormat]bool{
	FormatCSV:   true,
	FormatExcel: true,
	FormatPDF:   true,
	FormatZIP:   true,
}

// Extension returns the file extension written for the format
func (f ExportFormat) Extension() string {
	switch f {
	case FormatExcel:
		return "xlsx"
	default:
		return string(f)
	}
}

// ExportMetadata is stored alongside every export log row
type ExportMetadata struct {
	Filename string   `json:"filename"`
	Columns  []string `json:"columns"`
	Role     string   `json:"role"`
}

// ExportRecord logs one completed export. The row outlives the file: cleanup
// marks it purged instead of deleting it.
type ExportRecord struct {
	ID        string         `json:"id" db:"id"`
	UserID    string         `json:"user_id" db:"user_id"`
	Format    ExportFormat   `json:"format" db:"format"`
	FilePath  string         `json:"file_path" db:"file_path"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	RowCount  int            `json:"row_count" db:"row_count"`
	Metadata  ExportMetadata `json:"metadata" db:"metadata"`
	PurgedAt  *time.Time     `json:"purged_at,omitempty" db:"purged_at"`
}

// ExportRequest is the body of POST /v1/exports
type ExportRequest struct {
	Format   ExportFormat `json:"format"`
	Filename string       `json:"filename"`
	Columns  []string     `json:"columns,omitempty"`
	Filters  PermitFilter `json:"filters"`
	PresetID string       `json:"preset_id,omitempty"`
	Async    bool         `json:"async,omitempty"`
}

// ExportResult is returned for a synchronous export
type ExportResult struct {
	Record      *ExportRecord `json:"export"`
	DownloadURL string        `json:"download_url"`
	Message     string        `json:"message"`
}

// Frequency of a recurring export
type Frequency string

const (
	FrequencyHourly  Frequency = "hourly"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// ValidFrequencies defines allowed schedule frequencies
var ValidFrequencies = map[Frequency]bool{
	FrequencyHourly:  true,
	FrequencyDaily:   true,
	FrequencyWeekly:  true,
	FrequencyMonthly: true,
}

// ExportSchedule is a recurring export owned by one user
type ExportSchedule struct {
	ID        string       `json:"id" db:"id"`
	UserID    string       `json:"user_id" db:"user_id"`
	Name      string       `json:"name" db:"name"`
	Format    ExportFormat `json:"format" db:"format"`
	Frequency Frequency    `json:"frequency" db:"frequency"`
	Columns   []string     `json:"columns,omitempty" db:"columns"`
	Filters   PermitFilter `json:"filters" db:"filters"`
	LastRun   *time.Time   `json:"last_run,omitempty" db:"last_run"`
	NextRun   time.Time    `json:"next_run" db:"next_run"`
	Active    bool         `json:"active" db:"active"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt time.Time    `json:"updated_at" db:"updated_at"`
}

// ScheduleRequest is the body for creating or updating a schedule
type ScheduleRequest struct {
	Name      *string       `json:"name,omitempty"`
	Format    *ExportFormat `json:"format,omitempty"`
	Frequency *Frequency    `json:"frequency,omitempty"`
	Columns   []string      `json:"columns,omitempty"`
	Filters   *PermitFilter `json:"filters,omitempty"`
	StartAt   *time.Time    `json:"start_at,omitempty"`
	Active    *bool         `json:"active,omitempty"`
}

// ExportPreset is a named column/filter selection owned by one user
type ExportPreset struct {
	ID        string       `json:"id" db:"id"`
	UserID    string       `json:"user_id" db:"user_id"`
	Name      string       `json:"name" db:"name"`
	Columns   []string     `json:"columns" db:"columns"`
	Filters   PermitFilter `json:"filters" db:"filters"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt time.Time    `json:"updated_at" db:"updated_at"`
}

// PresetRequest is the body of POST /v1/export-presets
type PresetRequest struct {
	Name    string       `json:"name" validate:"required,max=100"`
	Columns []string     `json:"columns" validate:"required,min=1,dive,required"`
	Filters PermitFilter `json:"filters"`
}
