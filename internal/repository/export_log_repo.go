package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/permit-dashboard-api/internal/database"
	"github.com/permit-dashboard-api/internal/models"
)

// exportLogRepo is the concrete implementation of ExportLogRepository
type exportLogRepo struct {
	db *database.DB
}

// NewExportLogRepo creates a new export log repository
func NewExportLogRepo(db *database.DB) ExportLogRepository {
	return &exportLogRepo{db: db}
}

const exportLogColumns = `id, user_id, format, file_path, row_count, metadata, created_at, purged_at`

// Create inserts a new export log row
func (r *exportLogRepo) Create(ctx context.Context, record *models.ExportRecord) error {
	metadata, err := encodeJSON(record.Metadata)
	if err != nil {
		return err
	}
	query := r.db.Rebind(`
		INSERT INTO export_logs (` + exportLogColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err = r.db.ExecContext(ctx, query,
		record.ID, record.UserID, string(record.Format), record.FilePath, record.RowCount,
		metadata, record.CreatedAt.UTC(), nullTime(record.PurgedAt),
	)
	return err
}

// GetByID retrieves an export log row by ID
func (r *exportLogRepo) GetByID(ctx context.Context, id string) (*models.ExportRecord, error) {
	query := r.db.Rebind(`SELECT ` + exportLogColumns + ` FROM export_logs WHERE id = ?`)
	record, err := scanExportRecord(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return record, err
}

// List returns the newest export logs, optionally restricted to one user
func (r *exportLogRepo) List(ctx context.Context, userID string, limit int) ([]*models.ExportRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows *sql.Rows
	var err error
	if userID != "" {
		query := r.db.Rebind(`SELECT ` + exportLogColumns + ` FROM export_logs WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`)
		rows, err = r.db.QueryContext(ctx, query, userID, limit)
	} else {
		query := r.db.Rebind(`SELECT ` + exportLogColumns + ` FROM export_logs ORDER BY created_at DESC LIMIT ?`)
		rows, err = r.db.QueryContext(ctx, query, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]*models.ExportRecord, 0)
	for rows.Next() {
		record, err := scanExportRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// MarkPurged stamps purged_at on the log rows whose file was deleted
func (r *exportLogRepo) MarkPurged(ctx context.Context, filePaths []string, at time.Time) (int64, error) {
	if len(filePaths) == 0 {
		return 0, nil
	}

	var total int64
	// Chunk to stay under bind-parameter limits
	const chunkSize = 500
	for start := 0; start < len(filePaths); start += chunkSize {
		end := start + chunkSize
		if end > len(filePaths) {
			end = len(filePaths)
		}
		chunk := filePaths[start:end]

		args := make([]interface{}, 0, len(chunk)+1)
		args = append(args, at.UTC())
		for _, p := range chunk {
			args = append(args, p)
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		query := r.db.Rebind(`UPDATE export_logs SET purged_at = ? WHERE purged_at IS NULL AND file_path IN (` + placeholders + `)`)

		result, err := r.db.ExecContext(ctx, query, args...)
		if err != nil {
			return total, err
		}
		n, _ := result.RowsAffected()
		total += n
	}
	return total, nil
}

// Count returns the number of export log rows
func (r *exportLogRepo) Count(ctx context.Context) (int, error) {
	return countRows(ctx, r.db, `SELECT COUNT(*) FROM export_logs`)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanExportRecord(row rowScanner) (*models.ExportRecord, error) {
	var record models.ExportRecord
	var format, metadata string
	var purgedAt sql.NullTime

	err := row.Scan(&record.ID, &record.UserID, &format, &record.FilePath, &record.RowCount,
		&metadata, &record.CreatedAt, &purgedAt)
	if err != nil {
		return nil, err
	}
	record.Format = models.ExportFormat(format)
	record.CreatedAt = record.CreatedAt.UTC()
	record.PurgedAt = timePtr(purgedAt)
	if err := decodeJSON(metadata, &record.Metadata); err != nil {
		return nil, err
	}
	return &record, nil
}
