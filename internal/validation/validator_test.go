package validation

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/permit-dashboard-api/internal/apperr"
	"github.com/permit-dashboard-api/internal/models"
)

func TestValidatePermit(t *testing.T) {
	validator := NewValidator()

	tests := []struct {
		name       string
		permit     *models.PermitCSV
		wantErrors int
		wantFields []string
	}{
		{
			name: "valid permit with all fields",
			permit: &models.PermitCSV{
				PermitNumber:  "2024-000123",
				PermitType:    "Building",
				Status:        "issued",
				Valuation:     "$12,500.00",
				DateFiled:     "2024-01-15",
				DateIssued:    "2024-02-01T00:00:00.000",
				DateCompleted: "",
				ActionByDept:  "BLDG",
			},
			wantErrors: 0,
		},
		{
			name:       "missing permit number and date filed",
			permit:     &models.PermitCSV{Status: "filed"},
			wantErrors: 2,
			wantFields: []string{"permit_number", "date_filed"},
		},
		{
			name: "bad dates",
			permit: &models.PermitCSV{
				PermitNumber:  "P-1",
				DateFiled:     "15/01/2024",
				DateCompleted: "soon",
			},
			wantErrors: 2,
			wantFields: []string{"date_filed", "date_completed"},
		},
		{
			name: "non numeric valuation",
			permit: &models.PermitCSV{
				PermitNumber: "P-2",
				DateFiled:    "2024-01-15",
				Valuation:    "a lot",
			},
			wantErrors: 1,
			wantFields: []string{"valuation"},
		},
		{
			name: "negative valuation",
			permit: &models.PermitCSV{
				PermitNumber: "P-3",
				DateFiled:    "2024-01-15",
				Valuation:    "-5",
			},
			wantErrors: 1,
			wantFields: []string{"valuation"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := validator.ValidatePermit(tt.permit, 1)
			if len(errs) != tt.wantErrors {
				t.Errorf("ValidatePermit() got %d errors, want %d. Errors: %v", len(errs), tt.wantErrors, errs)
			}

			for _, wantField := range tt.wantFields {
				found := false
				for _, err := range errs {
					if err.Field == wantField {
						found = true
						break
					}
				}
				if !found {
					t.Errorf("Expected error for field '%s' but not found", wantField)
				}
			}
		})
	}
}

func TestDuplicatePermitNumberDetection(t *testing.T) {
	validator := NewValidator()

	permit := &models.PermitCSV{PermitNumber: "p-100", DateFiled: "2024-03-01"}
	if errs := validator.ValidatePermit(permit, 1); len(errs) != 0 {
		t.Fatalf("first occurrence should be valid, got %v", errs)
	}
	validator.AddPermitNumber(permit.PermitNumber)

	// Permit numbers are compared case-insensitively
	dup := &models.PermitCSV{PermitNumber: "P-100", DateFiled: "2024-03-02"}
	errs := validator.ValidatePermit(dup, 2)
	if len(errs) != 1 || errs[0].Message != "duplicate permit number" {
		t.Errorf("expected duplicate permit number error, got %v", errs)
	}
}

func TestParseValuation(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"", 0},
		{"100", 100},
		{"$1,250.50", 1250.50},
		{"  42.1 ", 42.1},
	}
	for _, tt := range tests {
		got, err := ParseValuation(tt.in)
		if err != nil {
			t.Errorf("ParseValuation(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseValuation(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2024-02-29T13:45:00.000")
	if err != nil || got != "2024-02-29" {
		t.Errorf("ParseDate() = %q, %v", got, err)
	}
	if _, err := ParseDate("2023-02-29"); err == nil {
		t.Error("expected error for non-existent date")
	}
}

func TestValidatePlacements(t *testing.T) {
	tests := []struct {
		name       string
		placements []models.LayoutPlacement
		wantErr    string
	}{
		{
			name: "valid layout",
			placements: []models.LayoutPlacement{
				{ComponentID: "kpi-1", X: 0, Y: 0, W: 12, H: 2},
				{ComponentID: "chart-trend", X: 6, Y: 2, W: 6, H: 3},
			},
		},
		{
			name:       "empty layout is valid",
			placements: nil,
		},
		{
			name:       "missing component id",
			placements: []models.LayoutPlacement{{X: 0, Y: 0, W: 4, H: 2}},
			wantErr:    "componentid is required",
		},
		{
			name:       "negative x",
			placements: []models.LayoutPlacement{{ComponentID: "kpi-1", X: -1, W: 4, H: 2}},
			wantErr:    "x must be at least 0",
		},
		{
			name:       "width above grid",
			placements: []models.LayoutPlacement{{ComponentID: "kpi-1", W: 13, H: 2}},
			wantErr:    "w must be at most 12",
		},
		{
			name:       "overflowing the grid",
			placements: []models.LayoutPlacement{{ComponentID: "kpi-1", X: 8, W: 6, H: 2}},
			wantErr:    "x+w must not exceed 12",
		},
		{
			name: "duplicate component",
			placements: []models.LayoutPlacement{
				{ComponentID: "kpi-1", W: 4, H: 2},
				{ComponentID: "kpi-1", X: 4, W: 4, H: 2},
			},
			wantErr: "duplicate component id",
		},
		{
			name:       "invalid characters",
			placements: []models.LayoutPlacement{{ComponentID: "../etc", W: 4, H: 2}},
			wantErr:    "invalid characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePlacements(tt.placements)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("expected validation error, got %T", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestPlacementsFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name: "all fields present, zero coordinates",
			body: `{"placements":[{"i":"kpi-1","x":0,"y":0,"w":12,"h":2}]}`,
		},
		{
			name:    "missing x",
			body:    `{"placements":[{"i":"kpi-1","y":0,"w":12,"h":2}]}`,
			wantErr: "x is required",
		},
		{
			name:    "missing y",
			body:    `{"placements":[{"i":"kpi-1","x":0,"w":12,"h":2}]}`,
			wantErr: "y is required",
		},
		{
			name:    "missing h",
			body:    `{"placements":[{"i":"kpi-1","x":0,"y":0,"w":12}]}`,
			wantErr: "h is required",
		},
		{
			name:    "range checks still apply",
			body:    `{"placements":[{"i":"kpi-1","x":8,"y":0,"w":6,"h":2}]}`,
			wantErr: "x+w must not exceed 12",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req models.SaveLayoutRequest
			if err := json.Unmarshal([]byte(tt.body), &req); err != nil {
				t.Fatalf("decode: %v", err)
			}

			placements, err := PlacementsFromRequest(req.Placements)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				want := models.LayoutPlacement{ComponentID: "kpi-1", X: 0, Y: 0, W: 12, H: 2}
				if len(placements) != 1 || placements[0] != want {
					t.Errorf("got %+v, want [%+v]", placements, want)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("expected validation error, got %T", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}
