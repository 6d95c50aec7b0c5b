package models

import (
	"time"
)

// Audit actions
const (
	AuditLayoutSave     = "layout.save"
	AuditLayoutReset    = "layout.reset"
	AuditExportGenerate = "export.generate"
	AuditExportDownload = "export.download"
	AuditUserUpdate     = "user.update"
	AuditCleanupRun     = "cleanup.run"
	AuditPermitImport   = "permits.import"
)

// AuditEvent records an action taken by a user or the system
type AuditEvent struct {
	ID        string            `json:"id" db:"id"`
	ActorID   string            `json:"actor_id" db:"actor_id"`
	Action    string            `json:"action" db:"action"`
	Target    string            `json:"target" db:"target"`
	Details   map[string]string `json:"details,omitempty" db:"-"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
}

// AuditFilter narrows an audit event listing
type AuditFilter struct {
	ActorID string
	Action  string
	Limit   int
}

// Job run statuses
const (
	JobRunSuccess = "success"
	JobRunFailed  = "failed"
)

// JobRun records one execution of a background job
type JobRun struct {
	ID         string                 `json:"id" db:"id"`
	JobName    string                 `json:"job_name" db:"job_name"`
	Status     string                 `json:"status" db:"status"`
	RanAt      time.Time              `json:"ran_at" db:"ran_at"`
	DurationMs int64                  `json:"duration_ms" db:"duration_ms"`
	Error      string                 `json:"error,omitempty" db:"error"`
	Details    map[string]interface{} `json:"details,omitempty" db:"-"`
}
