package repository

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/permit-dashboard-api/internal/database"
	"github.com/permit-dashboard-api/internal/models"
)

// permitRepo is the concrete implementation of PermitRepository
type permitRepo struct {
	db *database.DB
}

// NewPermitRepo creates a new permit repository
func NewPermitRepo(db *database.DB) PermitRepository {
	return &permitRepo{db: db}
}

const permitColumns = `permit_number, permit_type, permit_subtype, status, description, valuation,
	date_filed, date_issued, date_completed, action_by_dept, address, contractor, updated_at`

// BatchUpsert inserts or refreshes permits keyed by permit number inside one transaction
func (r *permitRepo) BatchUpsert(ctx context.Context, permits []*models.Permit) (int, error) {
	if len(permits) == 0 {
		return 0, nil
	}

	upserted := 0
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, r.db.Rebind(`
			INSERT INTO permits (`+permitColumns+`, filed_year, filed_month)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (permit_number) DO UPDATE SET
				permit_type = excluded.permit_type,
				permit_subtype = excluded.permit_subtype,
				status = excluded.status,
				description = excluded.description,
				valuation = excluded.valuation,
				date_filed = excluded.date_filed,
				date_issued = excluded.date_issued,
				date_completed = excluded.date_completed,
				action_by_dept = excluded.action_by_dept,
				address = excluded.address,
				contractor = excluded.contractor,
				updated_at = excluded.updated_at,
				filed_year = excluded.filed_year,
				filed_month = excluded.filed_month
		`))
		if err != nil {
			return err
		}
		defer stmt.Close()

		now := time.Now().UTC()
		for _, p := range permits {
			year, month := filedPeriod(p.DateFiled)
			updatedAt := p.UpdatedAt
			if updatedAt.IsZero() {
				updatedAt = now
			}
			_, err := stmt.ExecContext(ctx,
				p.PermitNumber, p.PermitType, p.PermitSubtype, p.Status, p.Description, p.Valuation,
				p.DateFiled, p.DateIssued, p.DateCompleted, p.ActionByDept, p.Address, p.Contractor,
				updatedAt.UTC(), year, month,
			)
			if err != nil {
				return err
			}
			upserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return upserted, nil
}

// Query returns permits matching filter, newest filing first
func (r *permitRepo) Query(ctx context.Context, filter models.PermitFilter) ([]*models.Permit, error) {
	query := `SELECT ` + permitColumns + ` FROM permits WHERE 1 = 1`
	var args []interface{}
	if filter.Year > 0 {
		query += ` AND filed_year = ?`
		args = append(args, filter.Year)
	}
	if filter.Month > 0 {
		query += ` AND filed_month = ?`
		args = append(args, filter.Month)
	}
	if filter.Department != "" {
		query += ` AND action_by_dept = ?`
		args = append(args, filter.Department)
	}
	query += ` ORDER BY date_filed DESC, permit_number`

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	permits := make([]*models.Permit, 0)
	for rows.Next() {
		var p models.Permit
		err := rows.Scan(
			&p.PermitNumber, &p.PermitType, &p.PermitSubtype, &p.Status, &p.Description, &p.Valuation,
			&p.DateFiled, &p.DateIssued, &p.DateCompleted, &p.ActionByDept, &p.Address, &p.Contractor,
			&p.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		p.UpdatedAt = p.UpdatedAt.UTC()
		permits = append(permits, &p)
	}
	return permits, rows.Err()
}

// FilterOptions returns the distinct years, months and departments in the dataset
func (r *permitRepo) FilterOptions(ctx context.Context) (*models.FilterOptions, error) {
	opts := &models.FilterOptions{Years: []int{}, Months: []int{}, Departments: []string{}}

	years, err := r.distinctInts(ctx, `SELECT DISTINCT filed_year FROM permits WHERE filed_year > 0 ORDER BY filed_year DESC`)
	if err != nil {
		return nil, err
	}
	opts.Years = years

	months, err := r.distinctInts(ctx, `SELECT DISTINCT filed_month FROM permits WHERE filed_month > 0 ORDER BY filed_month`)
	if err != nil {
		return nil, err
	}
	opts.Months = months

	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT action_by_dept FROM permits WHERE action_by_dept <> '' ORDER BY action_by_dept`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var dept string
		if err := rows.Scan(&dept); err != nil {
			return nil, err
		}
		opts.Departments = append(opts.Departments, dept)
	}
	return opts, rows.Err()
}

// Count returns the number of permits
func (r *permitRepo) Count(ctx context.Context) (int, error) {
	return countRows(ctx, r.db, `SELECT COUNT(*) FROM permits`)
}

func (r *permitRepo) distinctInts(ctx context.Context, query string) ([]int, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make([]int, 0)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// filedPeriod extracts year and month from a YYYY-MM-DD date; unparseable dates yield zeros
func filedPeriod(date string) (int, int) {
	if len(date) < 7 || date[4] != '-' {
		return 0, 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0, 0
	}
	month, err := strconv.Atoi(date[5:7])
	if err != nil || month < 1 || month > 12 {
		return 0, 0
	}
	return year, month
}
