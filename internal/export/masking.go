package export

import (
	"github.com/permit-dashboard-api/internal/apperr"
	"github.com/permit-dashboard-api/internal/models"
)

// restrictedColumns are hidden from roles without full access
var restrictedColumns = map[string]bool{
	"valuation":  true,
	"address":    true,
	"contractor": true,
}

// fullAccessRoles see every column
var fullAccessRoles = map[string]bool{
	models.RoleAdmin:   true,
	models.RoleAuditor: true,
}

// VisibleColumns filters columns down to the ones role may see, keeping order.
// Unknown roles get the restricted view.
func VisibleColumns(role string, columns []string) []string {
	visible := make([]string, 0, len(columns))
	for _, col := range columns {
		if fullAccessRoles[role] || !restrictedColumns[col] {
			visible = append(visible, col)
		}
	}
	return visible
}

// Mask returns a copy of table holding only the columns role may see
func Mask(table *models.Table, role string) *models.Table {
	return project(table, VisibleColumns(role, table.Columns))
}

// SelectColumns projects table onto the requested columns in the requested
// order. An empty selection keeps every column; unknown or repeated names are
// a validation error.
func SelectColumns(table *models.Table, columns []string) (*models.Table, error) {
	if len(columns) == 0 {
		return table, nil
	}

	known := make(map[string]bool, len(table.Columns))
	for _, col := range table.Columns {
		known[col] = true
	}
	seen := make(map[string]bool, len(columns))
	for _, col := range columns {
		if !known[col] {
			return nil, apperr.Validation("unknown column %q", col)
		}
		if seen[col] {
			return nil, apperr.Validation("column %q selected twice", col)
		}
		seen[col] = true
	}
	return project(table, columns), nil
}

func project(table *models.Table, columns []string) *models.Table {
	index := make(map[string]int, len(table.Columns))
	for i, col := range table.Columns {
		index[col] = i
	}

	out := &models.Table{
		Columns: append([]string(nil), columns...),
		Rows:    make([][]string, 0, len(table.Rows)),
	}
	for _, row := range table.Rows {
		projected := make([]string, len(columns))
		for i, col := range columns {
			if j := index[col]; j < len(row) {
				projected[i] = row[j]
			}
		}
		out.Rows = append(out.Rows, projected)
	}
	return out
}
