// Package layout holds the dashboard widget catalog and the composer that
// merges a user's saved placements with it.
package layout

import (
	"fmt"

	"github.com/permit-dashboard-api/internal/models"
)

// Component identifiers of the built-in widgets
const (
	ComponentKPI          = "kpi-1"
	ComponentTrendChart   = "chart-trend"
	ComponentStatusChart  = "chart-status"
	ComponentPermitsTable = "table-permits"
)

// Widget kinds understood by the client
const (
	KindKPI   = "kpi"
	KindChart = "chart"
	KindTable = "table"
)

// tableWidgetRows caps the rows embedded in the table widget; exports carry the full set
const tableWidgetRows = 500

// RenderFunc turns dashboard data into the payload of one widget
type RenderFunc func(data *models.DashboardData) interface{}

// CatalogEntry describes one widget the dashboard can show
type CatalogEntry struct {
	ComponentID string     `json:"id"`
	Title       string     `json:"title"`
	Kind        string     `json:"kind"`
	DefaultW    int        `json:"default_w"`
	DefaultH    int        `json:"default_h"`
	MinW        int        `json:"min_w"`
	MinH        int        `json:"min_h"`
	MaxW        int        `json:"max_w"`
	MaxH        int        `json:"max_h"`
	Render      RenderFunc `json:"-"`
}

// Catalog is the immutable registry of widgets, built once at startup
type Catalog struct {
	entries map[string]CatalogEntry
	order   []string
}

// NewCatalog registers entries in order. It panics on a duplicate or empty
// component id since that can only be a programming error.
func NewCatalog(entries ...CatalogEntry) *Catalog {
	c := &Catalog{entries: make(map[string]CatalogEntry, len(entries))}
	for _, e := range entries {
		if e.ComponentID == "" {
			panic("layout: catalog entry without component id")
		}
		if _, exists := c.entries[e.ComponentID]; exists {
			panic(fmt.Sprintf("layout: component %q registered twice", e.ComponentID))
		}
		c.entries[e.ComponentID] = e
		c.order = append(c.order, e.ComponentID)
	}
	return c
}

// Lookup returns the entry for a component id
func (c *Catalog) Lookup(componentID string) (CatalogEntry, bool) {
	e, ok := c.entries[componentID]
	return e, ok
}

// Entries returns the entries in registration order
func (c *Catalog) Entries() []CatalogEntry {
	out := make([]CatalogEntry, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.entries[id])
	}
	return out
}

// Len returns the number of registered widgets
func (c *Catalog) Len() int {
	return len(c.order)
}

// Bounds shared by every built-in widget
const (
	minWidgetSize = 2
	maxWidgetSize = models.GridColumns
)

func widget(id, title, kind string, w, h int, render RenderFunc) CatalogEntry {
	return CatalogEntry{
		ComponentID: id,
		Title:       title,
		Kind:        kind,
		DefaultW:    w,
		DefaultH:    h,
		MinW:        minWidgetSize,
		MinH:        minWidgetSize,
		MaxW:        maxWidgetSize,
		MaxH:        maxWidgetSize,
		Render:      render,
	}
}

// DefaultCatalog returns the catalog of the permit dashboard
func DefaultCatalog() *Catalog {
	return NewCatalog(
		widget(ComponentKPI, "Key Performance Indicators", KindKPI, 12, 2, renderKPIs),
		widget(ComponentTrendChart, "Permit Trends Over Time", KindChart, 6, 3, renderTrend),
		widget(ComponentStatusChart, "Status Distribution", KindChart, 6, 3, renderStatuses),
		widget(ComponentPermitsTable, "Permit Details", KindTable, 12, 4, renderTable),
	)
}

// DefaultPlacements returns the grid shown to users without a saved layout
func DefaultPlacements() []models.LayoutPlacement {
	return []models.LayoutPlacement{
		{ComponentID: ComponentKPI, X: 0, Y: 0, W: 12, H: 2},
		{ComponentID: ComponentTrendChart, X: 0, Y: 2, W: 6, H: 3},
		{ComponentID: ComponentStatusChart, X: 6, Y: 2, W: 6, H: 3},
		{ComponentID: ComponentPermitsTable, X: 0, Y: 5, W: 12, H: 4},
	}
}

func renderKPIs(data *models.DashboardData) interface{} {
	return data.KPIs
}

func renderTrend(data *models.DashboardData) interface{} {
	if data.Trend == nil {
		return []models.TrendPoint{}
	}
	return data.Trend
}

func renderStatuses(data *models.DashboardData) interface{} {
	if data.Statuses == nil {
		return []models.StatusCount{}
	}
	return data.Statuses
}

// TableWidget is the payload of the permits table widget
type TableWidget struct {
	Columns   []string   `json:"columns"`
	Rows      [][]string `json:"rows"`
	TotalRows int        `json:"total_rows"`
	Truncated bool       `json:"truncated"`
}

func renderTable(data *models.DashboardData) interface{} {
	if data.Table == nil {
		return TableWidget{Columns: models.PermitColumns, Rows: [][]string{}}
	}
	rows := data.Table.Rows
	truncated := false
	if len(rows) > tableWidgetRows {
		rows = rows[:tableWidgetRows]
		truncated = true
	}
	return TableWidget{
		Columns:   data.Table.Columns,
		Rows:      rows,
		TotalRows: data.Table.Len(),
		Truncated: truncated,
	}
}
