package repository

import (
	"context"
	"database/sql"

	"github.com/permit-dashboard-api/internal/database"
	"github.com/permit-dashboard-api/internal/models"
)

// layoutRepo is the concrete implementation of LayoutRepository
type layoutRepo struct {
	db *database.DB
}

// NewLayoutRepo creates a new layout repository
func NewLayoutRepo(db *database.DB) LayoutRepository {
	return &layoutRepo{db: db}
}

// GetPlacements returns a user's placements in saved order
func (r *layoutRepo) GetPlacements(ctx context.Context, userID string) ([]models.LayoutPlacement, error) {
	query := r.db.Rebind(`
		SELECT component_id, x, y, w, h
		FROM user_layouts WHERE user_id = ?
		ORDER BY position, component_id
	`)
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	placements := make([]models.LayoutPlacement, 0)
	for rows.Next() {
		var p models.LayoutPlacement
		if err := rows.Scan(&p.ComponentID, &p.X, &p.Y, &p.W, &p.H); err != nil {
			return nil, err
		}
		placements = append(placements, p)
	}
	return placements, rows.Err()
}

// ReplaceAll deletes every placement of the user and inserts the new set in one transaction
func (r *layoutRepo) ReplaceAll(ctx context.Context, userID string, placements []models.LayoutPlacement) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, r.db.Rebind(`DELETE FROM user_layouts WHERE user_id = ?`), userID); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, r.db.Rebind(`
			INSERT INTO user_layouts (user_id, component_id, x, y, w, h, position)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`))
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, p := range placements {
			if _, err := stmt.ExecContext(ctx, userID, p.ComponentID, p.X, p.Y, p.W, p.H, i); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteAll removes every placement of the user
func (r *layoutRepo) DeleteAll(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM user_layouts WHERE user_id = ?`), userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CountUsers returns the number of users with a saved layout
func (r *layoutRepo) CountUsers(ctx context.Context) (int, error) {
	return countRows(ctx, r.db, `SELECT COUNT(DISTINCT user_id) FROM user_layouts`)
}
