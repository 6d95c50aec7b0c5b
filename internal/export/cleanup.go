package export

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/permit-dashboard-api/internal/apperr"
	"github.com/rs/zerolog"
)

// CleanupResult reports one retention sweep. Paths are relative to the export root.
type CleanupResult struct {
	DeletedCount int       `json:"deleted_count"`
	DeletedPaths []string  `json:"deleted_paths"`
	Errors       []string  `json:"errors,omitempty"`
	Cutoff       time.Time `json:"cutoff"`
}

// Cleanup deletes every regular file under root whose modification time is
// older than retentionDays before now. Per-file failures are logged and
// collected; the sweep carries on. Empty directories are left in place.
// A cancelled context stops the sweep and returns the partial result.
func Cleanup(ctx context.Context, root string, retentionDays int, now time.Time, log zerolog.Logger) (*CleanupResult, error) {
	if retentionDays < 1 {
		return nil, apperr.Validation("retention days must be at least 1")
	}

	cutoff := now.Add(-time.Duration(retentionDays) * 24 * time.Hour)
	result := &CleanupResult{DeletedPaths: []string{}, Cutoff: cutoff.UTC()}
	log = log.With().Str("root", root).Logger()

	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		log.Warn().Msg("Export root does not exist, nothing to clean")
		return result, nil
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			log.Warn().Err(walkErr).Str("path", path).Msg("Skipping unreadable entry")
			result.Errors = append(result.Errors, walkErr.Error())
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			// Removed by someone else between listing and stat
			if !errors.Is(err, fs.ErrNotExist) {
				log.Warn().Err(err).Str("path", path).Msg("Failed to stat export file")
				result.Errors = append(result.Errors, err.Error())
			}
			return nil
		}
		if !info.ModTime().Before(cutoff) {
			return nil
		}

		if err := os.Remove(path); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				log.Warn().Err(err).Str("path", path).Msg("Failed to delete expired export")
				result.Errors = append(result.Errors, err.Error())
			}
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		result.DeletedCount++
		result.DeletedPaths = append(result.DeletedPaths, filepath.ToSlash(rel))
		log.Debug().Str("path", rel).Time("modified", info.ModTime()).Msg("Deleted expired export")
		return nil
	})
	if err != nil {
		return result, err
	}

	log.Info().
		Int("deleted", result.DeletedCount).
		Int("errors", len(result.Errors)).
		Int("retention_days", retentionDays).
		Msg("Export cleanup finished")

	return result, nil
}
