package repository

import (
	"context"
	"database/sql"

	"github.com/permit-dashboard-api/internal/database"
	"github.com/permit-dashboard-api/internal/models"
)

// auditRepo stores audit events and background job runs
type auditRepo struct {
	db *database.DB
}

// NewAuditRepo creates a new audit repository
func NewAuditRepo(db *database.DB) AuditRepository {
	return &auditRepo{db: db}
}

func (r *auditRepo) Record(ctx context.Context, event *models.AuditEvent) error {
	details, err := encodeJSON(event.Details)
	if err != nil {
		return err
	}
	query := r.db.Rebind(`
		INSERT INTO audit_events (id, actor_id, action, target, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	_, err = r.db.ExecContext(ctx, query,
		event.ID, event.ActorID, event.Action, event.Target, details, event.CreatedAt.UTC(),
	)
	return err
}

// List returns the newest audit events matching filter
func (r *auditRepo) List(ctx context.Context, filter models.AuditFilter) ([]*models.AuditEvent, error) {
	query := `SELECT id, actor_id, action, target, details, created_at FROM audit_events WHERE 1 = 1`
	var args []interface{}
	if filter.ActorID != "" {
		query += ` AND actor_id = ?`
		args = append(args, filter.ActorID)
	}
	if filter.Action != "" {
		query += ` AND action = ?`
		args = append(args, filter.Action)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]*models.AuditEvent, 0)
	for rows.Next() {
		var event models.AuditEvent
		var details string
		if err := rows.Scan(&event.ID, &event.ActorID, &event.Action, &event.Target, &details, &event.CreatedAt); err != nil {
			return nil, err
		}
		event.CreatedAt = event.CreatedAt.UTC()
		if err := decodeJSON(details, &event.Details); err != nil {
			return nil, err
		}
		events = append(events, &event)
	}
	return events, rows.Err()
}

// RecordRun stores the outcome of one background job execution
func (r *auditRepo) RecordRun(ctx context.Context, run *models.JobRun) error {
	details, err := encodeJSON(run.Details)
	if err != nil {
		return err
	}
	query := r.db.Rebind(`
		INSERT INTO job_runs (id, job_name, status, ran_at, duration_ms, error, details)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	_, err = r.db.ExecContext(ctx, query,
		run.ID, run.JobName, run.Status, run.RanAt.UTC(), run.DurationMs, nullString(run.Error), details,
	)
	return err
}

// ListRuns returns the newest job runs, optionally for one job name
func (r *auditRepo) ListRuns(ctx context.Context, jobName string, limit int) ([]*models.JobRun, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, job_name, status, ran_at, duration_ms, error, details FROM job_runs`
	var args []interface{}
	if jobName != "" {
		query += ` WHERE job_name = ?`
		args = append(args, jobName)
	}
	query += ` ORDER BY ran_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]*models.JobRun, 0)
	for rows.Next() {
		var run models.JobRun
		var errMsg sql.NullString
		var details string
		if err := rows.Scan(&run.ID, &run.JobName, &run.Status, &run.RanAt, &run.DurationMs, &errMsg, &details); err != nil {
			return nil, err
		}
		run.RanAt = run.RanAt.UTC()
		run.Error = errMsg.String
		if err := decodeJSON(details, &run.Details); err != nil {
			return nil, err
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}
