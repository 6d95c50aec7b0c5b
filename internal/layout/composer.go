package layout

import (
	"context"

	"github.com/permit-dashboard-api/internal/apperr"
	"github.com/permit-dashboard-api/internal/models"
	"github.com/rs/zerolog"
)

// PlacementLoader returns the saved placements of a user, empty when none are saved
type PlacementLoader interface {
	LoadPlacements(ctx context.Context, userID string) ([]models.LayoutPlacement, error)
}

// Composer merges saved placements with the catalog into a renderable grid
type Composer struct {
	catalog  *Catalog
	loader   PlacementLoader
	defaults []models.LayoutPlacement
	log      zerolog.Logger
}

// NewComposer creates a composer that falls back to DefaultPlacements
func NewComposer(catalog *Catalog, loader PlacementLoader, log zerolog.Logger) *Composer {
	return &Composer{
		catalog:  catalog,
		loader:   loader,
		defaults: DefaultPlacements(),
		log:      log.With().Str("service", "composer").Logger(),
	}
}

// Catalog returns the catalog the composer resolves against
func (c *Composer) Catalog() *Catalog {
	return c.catalog
}

// Compose loads the user's placements, or the defaults when none are saved,
// and resolves each against the catalog. Unknown component ids are dropped,
// sizes are clamped into the catalog bounds and the input order is kept.
// A nil data renders every widget over an empty data set.
func (c *Composer) Compose(ctx context.Context, userID string, data *models.DashboardData) (*models.ComposedLayout, error) {
	if userID == "" {
		return nil, apperr.Validation("user id is required")
	}

	result := &models.ComposedLayout{
		Placements: []models.LayoutPlacement{},
		Rendered:   []models.Widget{},
		Grid:       models.GridMeta{Columns: models.GridColumns, RowHeight: models.GridRowHeight},
		IsDefault:  true,
	}
	if c.catalog == nil || c.catalog.Len() == 0 {
		return result, nil
	}

	placements, err := c.loader.LoadPlacements(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(placements) == 0 {
		placements = c.defaults
	} else {
		result.IsDefault = false
	}

	if data == nil {
		data = &models.DashboardData{}
	}

	for _, p := range placements {
		entry, ok := c.catalog.Lookup(p.ComponentID)
		if !ok {
			c.log.Warn().
				Str("user_id", userID).
				Str("component_id", p.ComponentID).
				Msg("Dropping placement for unknown component")
			continue
		}

		placed := Clamp(p, entry)
		result.Placements = append(result.Placements, placed)
		result.Rendered = append(result.Rendered, models.Widget{
			ComponentID: entry.ComponentID,
			Title:       entry.Title,
			Kind:        entry.Kind,
			X:           placed.X,
			Y:           placed.Y,
			W:           placed.W,
			H:           placed.H,
			MinW:        entry.MinW,
			MinH:        entry.MinH,
			MaxW:        entry.MaxW,
			MaxH:        entry.MaxH,
			Data:        render(entry, data),
		})
	}

	return result, nil
}

// Clamp fits a placement into the bounds of its catalog entry and the grid.
// A zero width or height takes the catalog default.
func Clamp(p models.LayoutPlacement, entry CatalogEntry) models.LayoutPlacement {
	if p.W <= 0 {
		p.W = entry.DefaultW
	}
	if p.H <= 0 {
		p.H = entry.DefaultH
	}
	p.W = clamp(p.W, entry.MinW, entry.MaxW)
	p.H = clamp(p.H, entry.MinH, entry.MaxH)
	if p.W > models.GridColumns {
		p.W = models.GridColumns
	}

	if p.X < 0 {
		p.X = 0
	}
	if p.Y < 0 {
		p.Y = 0
	}
	if p.X+p.W > models.GridColumns {
		p.X = models.GridColumns - p.W
	}
	return p
}

func clamp(v, lo, hi int) int {
	if lo > 0 && v < lo {
		v = lo
	}
	if hi > 0 && v > hi {
		v = hi
	}
	return v
}

func render(entry CatalogEntry, data *models.DashboardData) interface{} {
	if entry.Render == nil {
		return nil
	}
	return entry.Render(data)
}
