package models

// GridColumns is the width of the dashboard grid
const GridColumns = 12

// GridRowHeight is the pixel height of one grid row
const GridRowHeight = 30

// LayoutPlacement is a component's grid position and size for a user.
// Identity is (user_id, component_id).
type LayoutPlacement struct {
	ComponentID string `json:"i" db:"component_id" validate:"required,max=64,componentid"`
	X           int    `json:"x" db:"x" validate:"min=0"`
	Y           int    `json:"y" db:"y" validate:"min=0"`
	W           int    `json:"w" db:"w" validate:"min=1,max=12"`
	H           int    `json:"h" db:"h" validate:"min=1"`
}

// Widget is a rendered catalog component ready for the client grid
type Widget struct {
	ComponentID string      `json:"id"`
	Title       string      `json:"title"`
	Kind        string      `json:"kind"`
	X           int         `json:"x"`
	Y           int         `json:"y"`
	W           int         `json:"w"`
	H           int         `json:"h"`
	MinW        int         `json:"min_w"`
	MinH        int         `json:"min_h"`
	MaxW        int         `json:"max_w"`
	MaxH        int         `json:"max_h"`
	Data        interface{} `json:"data,omitempty"`
}

// GridMeta describes the grid the widgets are laid out on
type GridMeta struct {
	Columns   int `json:"columns"`
	RowHeight int `json:"row_height"`
}

// ComposedLayout is the merged result of a user's placements and the catalog.
// It is built on every load and never persisted.
type ComposedLayout struct {
	Placements []LayoutPlacement `json:"placements"`
	Rendered   []Widget          `json:"rendered"`
	Grid       GridMeta          `json:"grid"`
	IsDefault  bool              `json:"is_default"`
}

// PlacementInput is one placement as submitted by the client. Pointer fields
// tell a missing coordinate apart from zero.
type PlacementInput struct {
	ComponentID string `json:"i" validate:"required"`
	X           *int   `json:"x" validate:"required"`
	Y           *int   `json:"y" validate:"required"`
	W           *int   `json:"w" validate:"required"`
	H           *int   `json:"h" validate:"required"`
}

// SaveLayoutRequest is the body of PUT /v1/layout
type SaveLayoutRequest struct {
	Placements []PlacementInput `json:"placements"`
}
