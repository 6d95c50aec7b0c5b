package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/permit-dashboard-api/internal/database"
	"github.com/permit-dashboard-api/internal/models"
)

// jobRepo is the concrete implementation of JobRepository
type jobRepo struct {
	db *database.DB
}

// NewJobRepo creates a new job repository
func NewJobRepo(db *database.DB) JobRepository {
	return &jobRepo{db: db}
}

const exportJobColumns = `id, user_id, role, format, base_name, columns, filters, schedule_id, status,
	file_path, download_url, row_count, error, created_at, started_at, completed_at`

// Create inserts a new job
func (r *jobRepo) Create(ctx context.Context, job *models.ExportJob) error {
	columns, err := encodeJSON(job.Columns)
	if err != nil {
		return err
	}
	filters, err := encodeJSON(job.Filters)
	if err != nil {
		return err
	}

	query := r.db.Rebind(`
		INSERT INTO export_jobs (` + exportJobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err = r.db.ExecContext(ctx, query,
		job.ID, job.UserID, job.Role, string(job.Format), job.BaseName, columns, filters,
		nullString(job.ScheduleID), string(job.Status), nullString(job.FilePath),
		nullString(job.DownloadURL), job.RowCount, nullString(job.Error),
		job.CreatedAt.UTC(), nullTime(job.StartedAt), nullTime(job.CompletedAt),
	)
	return err
}

// Update updates job status and result fields
func (r *jobRepo) Update(ctx context.Context, job *models.ExportJob) error {
	query := r.db.Rebind(`
		UPDATE export_jobs SET
			status = ?, file_path = ?, download_url = ?, row_count = ?, error = ?,
			started_at = ?, completed_at = ?
		WHERE id = ?
	`)
	_, err := r.db.ExecContext(ctx, query,
		string(job.Status), nullString(job.FilePath), nullString(job.DownloadURL), job.RowCount,
		nullString(job.Error), nullTime(job.StartedAt), nullTime(job.CompletedAt), job.ID,
	)
	return err
}

// GetByID retrieves a job by ID
func (r *jobRepo) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	query := r.db.Rebind(`SELECT ` + exportJobColumns + ` FROM export_jobs WHERE id = ?`)
	job, err := scanExportJob(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return job, err
}

// GetPendingJobs retrieves the oldest pending jobs
func (r *jobRepo) GetPendingJobs(ctx context.Context, limit int) ([]*models.ExportJob, error) {
	if limit <= 0 {
		limit = 10
	}
	query := r.db.Rebind(`
		SELECT ` + exportJobColumns + `
		FROM export_jobs WHERE status = 'pending'
		ORDER BY created_at
		LIMIT ?
	`)
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.ExportJob
	for rows.Next() {
		job, err := scanExportJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// MarkJobAsProcessing atomically marks a pending job as processing.
// It returns false when another worker claimed the job first.
func (r *jobRepo) MarkJobAsProcessing(ctx context.Context, jobID string) (bool, error) {
	query := r.db.Rebind(`
		UPDATE export_jobs SET status = 'processing', started_at = ?
		WHERE id = ? AND status = 'pending'
	`)
	result, err := r.db.ExecContext(ctx, query, time.Now().UTC(), jobID)
	if err != nil {
		return false, err
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// Requeue returns a processing job to pending. It returns false when the job
// is no longer processing.
func (r *jobRepo) Requeue(ctx context.Context, jobID string) (bool, error) {
	query := r.db.Rebind(`
		UPDATE export_jobs SET status = 'pending', started_at = NULL
		WHERE id = ? AND status = 'processing'
	`)
	result, err := r.db.ExecContext(ctx, query, jobID)
	if err != nil {
		return false, err
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// RequeueProcessing returns every processing job to pending. Called at
// startup, before any worker runs, to recover jobs claimed by a previous process.
func (r *jobRepo) RequeueProcessing(ctx context.Context) (int64, error) {
	query := r.db.Rebind(`
		UPDATE export_jobs SET status = 'pending', started_at = NULL
		WHERE status = 'processing'
	`)
	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanExportJob(row rowScanner) (*models.ExportJob, error) {
	var job models.ExportJob
	var format, status, columns, filters string
	var scheduleID, filePath, downloadURL, errMsg sql.NullString
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&job.ID, &job.UserID, &job.Role, &format, &job.BaseName, &columns, &filters,
		&scheduleID, &status, &filePath, &downloadURL, &job.RowCount, &errMsg,
		&job.CreatedAt, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Format = models.ExportFormat(format)
	job.Status = models.JobStatus(status)
	job.ScheduleID = scheduleID.String
	job.FilePath = filePath.String
	job.DownloadURL = downloadURL.String
	job.Error = errMsg.String
	job.CreatedAt = job.CreatedAt.UTC()
	job.StartedAt = timePtr(startedAt)
	job.CompletedAt = timePtr(completedAt)
	if err := decodeJSON(columns, &job.Columns); err != nil {
		return nil, err
	}
	if err := decodeJSON(filters, &job.Filters); err != nil {
		return nil, err
	}
	return &job, nil
}
