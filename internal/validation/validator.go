package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/permit-dashboard-api/internal/apperr"
	"github.com/permit-dashboard-api/internal/models"
)

// DateLayout is the date format of the permit dataset
const DateLayout = "2006-01-02"

var (
	componentIDRegex  = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)
	permitNumberRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_./-]*$`)
)

// structValidate checks the validate tags of placement and request types.
// Initialized in init() with the custom tags below.
var structValidate *validator.Validate

func init() {
	structValidate = validator.New()
	_ = structValidate.RegisterValidation("componentid", func(fl validator.FieldLevel) bool {
		return componentIDRegex.MatchString(fl.Field().String())
	})
}

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Validator provides row validation for permit imports. It remembers the
// permit numbers seen in the current batch so duplicates inside one file are
// reported.
type Validator struct {
	permitNumberCache map[string]bool
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{
		permitNumberCache: make(map[string]bool),
	}
}

// AddPermitNumber adds a permit number to the uniqueness cache
func (v *Validator) AddPermitNumber(number string) {
	v.permitNumberCache[strings.ToUpper(number)] = true
}

// ValidatePermit validates a permit record read from a source file
func (v *Validator) ValidatePermit(permit *models.PermitCSV, lineNum int) []ValidationError {
	var errs []ValidationError

	// Validate permit number
	if permit.PermitNumber == "" {
		errs = append(errs, ValidationError{Field: "permit_number", Message: "permit_number is required"})
	} else if !permitNumberRegex.MatchString(permit.PermitNumber) {
		errs = append(errs, ValidationError{Field: "permit_number", Message: "invalid permit number format", Value: permit.PermitNumber})
	} else if v.permitNumberCache[strings.ToUpper(permit.PermitNumber)] {
		errs = append(errs, ValidationError{Field: "permit_number", Message: "duplicate permit number", Value: permit.PermitNumber})
	}

	// Validate date_filed; dashboards group by it so it is mandatory
	if permit.DateFiled == "" {
		errs = append(errs, ValidationError{Field: "date_filed", Message: "date_filed is required"})
	} else if _, err := ParseDate(permit.DateFiled); err != nil {
		errs = append(errs, ValidationError{Field: "date_filed", Message: "invalid date format, expected YYYY-MM-DD", Value: permit.DateFiled})
	}

	for field, value := range map[string]string{
		"date_issued":    permit.DateIssued,
		"date_completed": permit.DateCompleted,
	} {
		if value == "" {
			continue
		}
		if _, err := ParseDate(value); err != nil {
			errs = append(errs, ValidationError{Field: field, Message: "invalid date format, expected YYYY-MM-DD", Value: value})
		}
	}

	// Validate valuation
	if permit.Valuation != "" {
		val, err := ParseValuation(permit.Valuation)
		if err != nil {
			errs = append(errs, ValidationError{Field: "valuation", Message: "valuation must be a number", Value: permit.Valuation})
		} else if val < 0 {
			errs = append(errs, ValidationError{Field: "valuation", Message: "valuation must not be negative", Value: permit.Valuation})
		}
	}

	return errs
}

// ParseDate normalises a dataset date. Timestamps such as
// 2024-01-15T00:00:00.000 are truncated to the date part.
func ParseDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", err
	}
	return t.Format(DateLayout), nil
}

// ParseValuation parses a currency amount such as "$1,250.00"
func ParseValuation(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// ValidatePlacements checks a layout before it is persisted. Every placement
// must satisfy its field constraints, stay inside the grid and name a
// component at most once. The returned error wraps apperr.ErrValidation.
func ValidatePlacements(placements []models.LayoutPlacement) error {
	seen := make(map[string]bool, len(placements))
	for i, p := range placements {
		if err := structValidate.Struct(p); err != nil {
			return apperr.Validation("placement %d: %s", i, describe(err))
		}
		if p.X+p.W > models.GridColumns {
			return apperr.Validation("placement %d (%s): x+w must not exceed %d", i, p.ComponentID, models.GridColumns)
		}
		if seen[p.ComponentID] {
			return apperr.Validation("duplicate component id %q", p.ComponentID)
		}
		seen[p.ComponentID] = true
	}
	return nil
}

// PlacementsFromRequest converts submitted placements, rejecting any item
// that leaves out one of its five fields, then validates the result like
// ValidatePlacements.
func PlacementsFromRequest(inputs []models.PlacementInput) ([]models.LayoutPlacement, error) {
	placements := make([]models.LayoutPlacement, 0, len(inputs))
	for i, in := range inputs {
		if err := structValidate.Struct(in); err != nil {
			return nil, apperr.Validation("placement %d: %s", i, describe(err))
		}
		placements = append(placements, models.LayoutPlacement{
			ComponentID: in.ComponentID,
			X:           *in.X,
			Y:           *in.Y,
			W:           *in.W,
			H:           *in.H,
		})
	}
	if err := ValidatePlacements(placements); err != nil {
		return nil, err
	}
	return placements, nil
}

// ValidateStruct checks the validate tags of any request type
func ValidateStruct(v interface{}) error {
	if err := structValidate.Struct(v); err != nil {
		return apperr.Validation("%s", describe(err))
	}
	return nil
}

// describe turns validator errors into a short message naming the first failing field
func describe(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err.Error()
	}
	fe := fieldErrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "componentid":
		return fmt.Sprintf("%s %q contains invalid characters", field, fe.Value())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
