package repository

import (
	"context"
	"database/sql"

	"github.com/permit-dashboard-api/internal/database"
	"github.com/permit-dashboard-api/internal/models"
)

// presetRepo is the concrete implementation of PresetRepository
type presetRepo struct {
	db *database.DB
}

// NewPresetRepo creates a new preset repository
func NewPresetRepo(db *database.DB) PresetRepository {
	return &presetRepo{db: db}
}

const presetColumns = `id, user_id, name, columns, filters, created_at, updated_at`

// Save inserts a preset, or overwrites the columns and filters of the user's
// preset with the same name. It returns the stored row.
func (r *presetRepo) Save(ctx context.Context, p *models.ExportPreset) (*models.ExportPreset, error) {
	columns, err := encodeJSON(p.Columns)
	if err != nil {
		return nil, err
	}
	filters, err := encodeJSON(p.Filters)
	if err != nil {
		return nil, err
	}

	query := r.db.Rebind(`
		INSERT INTO export_presets (` + presetColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, name) DO UPDATE SET
			columns = excluded.columns,
			filters = excluded.filters,
			updated_at = excluded.updated_at
	`)
	_, err = r.db.ExecContext(ctx, query,
		p.ID, p.UserID, p.Name, columns, filters, p.CreatedAt.UTC(), p.UpdatedAt.UTC(),
	)
	if err != nil {
		return nil, err
	}

	stored, err := scanPreset(r.db.QueryRowContext(ctx,
		r.db.Rebind(`SELECT `+presetColumns+` FROM export_presets WHERE user_id = ? AND name = ?`),
		p.UserID, p.Name,
	))
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (r *presetRepo) GetByID(ctx context.Context, id string) (*models.ExportPreset, error) {
	query := r.db.Rebind(`SELECT ` + presetColumns + ` FROM export_presets WHERE id = ?`)
	p, err := scanPreset(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (r *presetRepo) List(ctx context.Context, userID string) ([]*models.ExportPreset, error) {
	query := r.db.Rebind(`SELECT ` + presetColumns + ` FROM export_presets WHERE user_id = ? ORDER BY name`)
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	presets := make([]*models.ExportPreset, 0)
	for rows.Next() {
		p, err := scanPreset(rows)
		if err != nil {
			return nil, err
		}
		presets = append(presets, p)
	}
	return presets, rows.Err()
}

func (r *presetRepo) Delete(ctx context.Context, id, userID string) (bool, error) {
	query := r.db.Rebind(`DELETE FROM export_presets WHERE id = ? AND user_id = ?`)
	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return false, err
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

func scanPreset(row rowScanner) (*models.ExportPreset, error) {
	var p models.ExportPreset
	var columns, filters string
	if err := row.Scan(&p.ID, &p.UserID, &p.Name, &columns, &filters, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	if err := decodeJSON(columns, &p.Columns); err != nil {
		return nil, err
	}
	if err := decodeJSON(filters, &p.Filters); err != nil {
		return nil, err
	}
	return &p, nil
}
