package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/permit-dashboard-api/internal/database"
	"github.com/permit-dashboard-api/internal/models"
)

// scheduleRepo is the concrete implementation of ScheduleRepository
type scheduleRepo struct {
	db *database.DB
}

// NewScheduleRepo creates a new schedule repository
func NewScheduleRepo(db *database.DB) ScheduleRepository {
	return &scheduleRepo{db: db}
}

const scheduleColumns = `id, user_id, name, format, frequency, columns, filters, last_run, next_run,
	active, created_at, updated_at`

func (r *scheduleRepo) Create(ctx context.Context, s *models.ExportSchedule) error {
	columns, err := encodeJSON(s.Columns)
	if err != nil {
		return err
	}
	filters, err := encodeJSON(s.Filters)
	if err != nil {
		return err
	}

	query := r.db.Rebind(`
		INSERT INTO export_schedules (` + scheduleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err = r.db.ExecContext(ctx, query,
		s.ID, s.UserID, s.Name, string(s.Format), string(s.Frequency), columns, filters,
		nullTime(s.LastRun), s.NextRun.UTC(), s.Active, s.CreatedAt.UTC(), s.UpdatedAt.UTC(),
	)
	return err
}

func (r *scheduleRepo) Update(ctx context.Context, s *models.ExportSchedule) error {
	columns, err := encodeJSON(s.Columns)
	if err != nil {
		return err
	}
	filters, err := encodeJSON(s.Filters)
	if err != nil {
		return err
	}

	query := r.db.Rebind(`
		UPDATE export_schedules SET
			name = ?, format = ?, frequency = ?, columns = ?, filters = ?,
			last_run = ?, next_run = ?, active = ?, updated_at = ?
		WHERE id = ?
	`)
	_, err = r.db.ExecContext(ctx, query,
		s.Name, string(s.Format), string(s.Frequency), columns, filters,
		nullTime(s.LastRun), s.NextRun.UTC(), s.Active, s.UpdatedAt.UTC(), s.ID,
	)
	return err
}

func (r *scheduleRepo) GetByID(ctx context.Context, id string) (*models.ExportSchedule, error) {
	query := r.db.Rebind(`SELECT ` + scheduleColumns + ` FROM export_schedules WHERE id = ?`)
	s, err := scanSchedule(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

// List returns a user's schedules, or every schedule when userID is empty
func (r *scheduleRepo) List(ctx context.Context, userID string, activeOnly bool) ([]*models.ExportSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM export_schedules WHERE 1 = 1`
	var args []interface{}
	if userID != "" {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}
	if activeOnly {
		query += ` AND active = ?`
		args = append(args, true)
	}
	query += ` ORDER BY created_at`

	return r.query(ctx, query, args...)
}

// ListDue returns active schedules whose next run is at or before now
func (r *scheduleRepo) ListDue(ctx context.Context, now time.Time) ([]*models.ExportSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM export_schedules
		WHERE active = ? AND next_run <= ?
		ORDER BY next_run`
	return r.query(ctx, query, true, now.UTC())
}

// Delete removes a schedule owned by userID
func (r *scheduleRepo) Delete(ctx context.Context, id, userID string) (bool, error) {
	query := r.db.Rebind(`DELETE FROM export_schedules WHERE id = ? AND user_id = ?`)
	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return false, err
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

func (r *scheduleRepo) query(ctx context.Context, query string, args ...interface{}) ([]*models.ExportSchedule, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	schedules := make([]*models.ExportSchedule, 0)
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, s)
	}
	return schedules, rows.Err()
}

func scanSchedule(row rowScanner) (*models.ExportSchedule, error) {
	var s models.ExportSchedule
	var format, frequency, columns, filters string
	var lastRun sql.NullTime

	err := row.Scan(&s.ID, &s.UserID, &s.Name, &format, &frequency, &columns, &filters,
		&lastRun, &s.NextRun, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}

	s.Format = models.ExportFormat(format)
	s.Frequency = models.Frequency(frequency)
	s.LastRun = timePtr(lastRun)
	s.NextRun = s.NextRun.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	if err := decodeJSON(columns, &s.Columns); err != nil {
		return nil, err
	}
	if err := decodeJSON(filters, &s.Filters); err != nil {
		return nil, err
	}
	return &s, nil
}
