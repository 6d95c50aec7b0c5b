package repository

import (
	"context"
	"database/sql"

	"github.com/permit-dashboard-api/internal/database"
	"github.com/permit-dashboard-api/internal/models"
)

// userRepo is the concrete implementation of UserRepository
type userRepo struct {
	db *database.DB
}

// NewUserRepo creates a new user repository
func NewUserRepo(db *database.DB) UserRepository {
	return &userRepo{db: db}
}

const userColumns = `user_id, email, full_name, role, is_active, created_at, last_login`

// Upsert inserts or updates a user by ID
func (r *userRepo) Upsert(ctx context.Context, user *models.User) error {
	query := r.db.Rebind(`
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			email = excluded.email,
			full_name = excluded.full_name,
			role = excluded.role,
			is_active = excluded.is_active,
			last_login = excluded.last_login
	`)
	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.FullName, user.Role, user.IsActive,
		user.CreatedAt.UTC(), nullTime(user.LastLogin),
	)
	return err
}

// GetByID retrieves a user by ID
func (r *userRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE user_id = ?`)
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return user, err
}

// List returns users ordered by ID
func (r *userRepo) List(ctx context.Context, limit int) ([]*models.User, error) {
	if limit <= 0 {
		limit = 100
	}
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users ORDER BY user_id LIMIT ?`)
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// Update writes the role and activation flag of a user
func (r *userRepo) Update(ctx context.Context, user *models.User) error {
	query := r.db.Rebind(`UPDATE users SET role = ?, is_active = ?, last_login = ? WHERE user_id = ?`)
	_, err := r.db.ExecContext(ctx, query, user.Role, user.IsActive, nullTime(user.LastLogin), user.ID)
	return err
}

// Count returns total user count
func (r *userRepo) Count(ctx context.Context) (int, error) {
	return countRows(ctx, r.db, `SELECT COUNT(*) FROM users`)
}

func scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	var lastLogin sql.NullTime
	err := row.Scan(&user.ID, &user.Email, &user.FullName, &user.Role, &user.IsActive,
		&user.CreatedAt, &lastLogin)
	if err != nil {
		return nil, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	user.LastLogin = timePtr(lastLogin)
	return &user, nil
}
