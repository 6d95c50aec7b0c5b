package service

import (
	"context"
	"strconv"

	"github.com/permit-dashboard-api/internal/apperr"
	"github.com/permit-dashboard-api/internal/layout"
	"github.com/permit-dashboard-api/internal/metrics"
	"github.com/permit-dashboard-api/internal/models"
	"github.com/permit-dashboard-api/internal/repository"
	"github.com/permit-dashboard-api/internal/validation"
	"github.com/rs/zerolog"
)

// layoutService is the concrete implementation of LayoutService
type layoutService struct {
	repo     repository.LayoutRepository
	composer *layout.Composer
	audit    *auditLog
	log      zerolog.Logger
}

// newLayoutService creates a new LayoutService composing against catalog
func newLayoutService(repo repository.LayoutRepository, catalog *layout.Catalog, audit *auditLog, log zerolog.Logger) *layoutService {
	s := &layoutService{
		repo:  repo,
		audit: audit,
		log:   log.With().Str("service", "layout").Logger(),
	}
	s.composer = layout.NewComposer(catalog, s, log)
	return s
}

// LoadPlacements returns the user's saved placements, empty when none are saved
func (s *layoutService) LoadPlacements(ctx context.Context, userID string) ([]models.LayoutPlacement, error) {
	if userID == "" {
		return nil, apperr.Validation("user id is required")
	}
	placements, err := s.repo.GetPlacements(ctx, userID)
	if err != nil {
		return nil, apperr.Storage("load layout", err)
	}
	return placements, nil
}

// Save replaces the user's whole layout. It returns false without writing
// anything when the input is empty or any placement is malformed, and false
// after logging when storage fails.
func (s *layoutService) Save(ctx context.Context, userID string, placements []models.LayoutPlacement) bool {
	if userID == "" || len(placements) == 0 {
		metrics.LayoutWritesTotal.WithLabelValues("save", metrics.ResultFailure).Inc()
		return false
	}
	if err := validation.ValidatePlacements(placements); err != nil {
		s.log.Debug().Err(err).Str("user_id", userID).Msg("Rejected invalid layout")
		metrics.LayoutWritesTotal.WithLabelValues("save", metrics.ResultFailure).Inc()
		return false
	}

	if err := s.repo.ReplaceAll(ctx, userID, placements); err != nil {
		s.log.Error().Err(err).
			Str("user_id", userID).
			Int("placements", len(placements)).
			Msg("Failed to save layout")
		metrics.LayoutWritesTotal.WithLabelValues("save", metrics.ResultFailure).Inc()
		return false
	}

	metrics.LayoutWritesTotal.WithLabelValues("save", metrics.ResultSuccess).Inc()
	s.audit.record(ctx, userID, models.AuditLayoutSave, userID, map[string]string{
		"placements": strconv.Itoa(len(placements)),
	})
	s.log.Info().Str("user_id", userID).Int("placements", len(placements)).Msg("Layout saved")
	return true
}

// Reset deletes every saved placement of the user. Resetting a user without
// a saved layout succeeds.
func (s *layoutService) Reset(ctx context.Context, userID string) bool {
	if userID == "" {
		metrics.LayoutWritesTotal.WithLabelValues("reset", metrics.ResultFailure).Inc()
		return false
	}

	deleted, err := s.repo.DeleteAll(ctx, userID)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to reset layout")
		metrics.LayoutWritesTotal.WithLabelValues("reset", metrics.ResultFailure).Inc()
		return false
	}

	metrics.LayoutWritesTotal.WithLabelValues("reset", metrics.ResultSuccess).Inc()
	s.audit.record(ctx, userID, models.AuditLayoutReset, userID, map[string]string{
		"deleted": strconv.FormatInt(deleted, 10),
	})
	s.log.Info().Str("user_id", userID).Int64("deleted", deleted).Msg("Layout reset")
	return true
}

// Compose builds the user's grid rendered over data
func (s *layoutService) Compose(ctx context.Context, userID string, data *models.DashboardData) (*models.ComposedLayout, error) {
	return s.composer.Compose(ctx, userID, data)
}

// Catalog returns the registered widgets
func (s *layoutService) Catalog() []layout.CatalogEntry {
	return s.composer.Catalog().Entries()
}
