package models

import (
	"strconv"
	"time"
)

// Permit is one row of the municipal permits dataset
type Permit struct {
	PermitNumber  string    `json:"permit_number" db:"permit_number"`
	PermitType    string    `json:"permit_type" db:"permit_type"`
	PermitSubtype string    `json:"permit_subtype" db:"permit_subtype"`
	Status        string    `json:"status" db:"status"`
	Description   string    `json:"description" db:"description"`
	Valuation     float64   `json:"valuation" db:"valuation"`
	DateFiled     string    `json:"date_filed" db:"date_filed"` // YYYY-MM-DD
	DateIssued    string    `json:"date_issued" db:"date_issued"`
	DateCompleted string    `json:"date_completed" db:"date_completed"`
	ActionByDept  string    `json:"action_by_dept" db:"action_by_dept"`
	Address       string    `json:"address" db:"address"`
	Contractor    string    `json:"contractor" db:"contractor"`
	UpdatedAt     time.Time `json:"-" db:"updated_at"`
}

// PermitColumns lists the dataset columns in table order
var PermitColumns = []string{
	"permit_number",
	"permit_type",
	"permit_subtype",
	"status",
	"description",
	"valuation",
	"date_filed",
	"date_issued",
	"date_completed",
	"action_by_dept",
	"address",
	"contractor",
}

// Record returns the permit as a row aligned with PermitColumns
func (p *Permit) Record() []string {
	return []string{
		p.PermitNumber,
		p.PermitType,
		p.PermitSubtype,
		p.Status,
		p.Description,
		strconv.FormatFloat(p.Valuation, 'f', 2, 64),
		p.DateFiled,
		p.DateIssued,
		p.DateCompleted,
		p.ActionByDept,
		p.Address,
		p.Contractor,
	}
}

// PermitFilter narrows the permit dataset. Zero values mean "any".
type PermitFilter struct {
	Year       int    `json:"year,omitempty" form:"year"`
	Month      int    `json:"month,omitempty" form:"month"`
	Department string `json:"department,omitempty" form:"department"`
}

// Table is a tabular result set: a header and rows aligned with it
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Len returns the number of data rows
func (t *Table) Len() int {
	return len(t.Rows)
}

// PermitsTable converts permits into a Table with every dataset column
func PermitsTable(permits []*Permit) *Table {
	rows := make([][]string, 0, len(permits))
	for _, p := range permits {
		rows = append(rows, p.Record())
	}
	columns := make([]string, len(PermitColumns))
	copy(columns, PermitColumns)
	return &Table{Columns: columns, Rows: rows}
}

// PermitCSV represents a permit record from a CSV source file
type PermitCSV struct {
	PermitNumber  string `csv:"permit_number"`
	PermitType    string `csv:"permit_type"`
	PermitSubtype string `csv:"permit_subtype"`
	Status        string `csv:"status"`
	Description   string `csv:"description"`
	Valuation     string `csv:"valuation"` // may carry a leading '$'
	DateFiled     string `csv:"date_filed"`
	DateIssued    string `csv:"date_issued"`
	DateCompleted string `csv:"date_completed"`
	ActionByDept  string `csv:"action_by_dept"`
	Address       string `csv:"address"`
	Contractor    string `csv:"contractor"`
}

// KPISummary holds the headline numbers of the dashboard
type KPISummary struct {
	TotalPermits    int     `json:"total_permits"`
	TotalValuation  float64 `json:"total_valuation"`
	DepartmentCount int     `json:"department_count"`
}

// TrendPoint is the permit count for one YYYY-MM period
type TrendPoint struct {
	Period string `json:"period"`
	Count  int    `json:"count"`
}

// StatusCount is the permit count for one status
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// DashboardData is the input every catalog render function receives
type DashboardData struct {
	Filter   PermitFilter  `json:"filter"`
	KPIs     KPISummary    `json:"kpis"`
	Trend    []TrendPoint  `json:"trend"`
	Statuses []StatusCount `json:"statuses"`
	Table    *Table        `json:"table"`
}

// FilterOptions lists the values available to the dashboard filters
type FilterOptions struct {
	Years       []int    `json:"years"`
	Months      []int    `json:"months"`
	Departments []string `json:"departments"`
}

// Stats holds row counts reported by GET /v1/stats
type Stats struct {
	Permits     int `json:"permits"`
	ExportLogs  int `json:"export_logs"`
	LayoutUsers int `json:"layout_users"`
	Users       int `json:"users"`
}
