package service

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/permit-dashboard-api/internal/apperr"
	"github.com/permit-dashboard-api/internal/metrics"
	"github.com/permit-dashboard-api/internal/models"
	"github.com/permit-dashboard-api/internal/repository"
	"github.com/permit-dashboard-api/internal/validation"
	"github.com/rs/zerolog"
)

// maxReportedErrors caps the row errors kept in an ETLResult
const maxReportedErrors = 100

// etlService is the concrete implementation of ETLService
type etlService struct {
	permitRepo repository.PermitRepository
	batchSize  int
	log        zerolog.Logger
}

// newETLService creates a new ETLService
func newETLService(permitRepo repository.PermitRepository, batchSize int, log zerolog.Logger) *etlService {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &etlService{
		permitRepo: permitRepo,
		batchSize:  batchSize,
		log:        log.With().Str("service", "etl").Logger(),
	}
}

// ImportFile imports the permits CSV at path
func (s *etlService) ImportFile(ctx context.Context, path string) (*models.ETLResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return s.Import(ctx, file, filepath.Base(path))
}

// Import reads a permits CSV and upserts the valid rows in batches. Invalid
// rows are counted and reported; they never abort the run.
func (s *etlService) Import(ctx context.Context, r io.Reader, source string) (*models.ETLResult, error) {
	startTime := time.Now()
	result := &models.ETLResult{Source: source}

	reader := csv.NewReader(bufio.NewReaderSize(r, 64*1024))
	reader.FieldsPerRecord = -1
	validator := validation.NewValidator()

	// Read header
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, apperr.Validation("permits file is empty")
	}
	if err != nil {
		return nil, apperr.Validation("invalid CSV header: %v", err)
	}
	headerMap := make(map[string]int)
	for i, h := range header {
		headerMap[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := headerMap["permit_number"]; !ok {
		return nil, apperr.Validation("CSV header must include permit_number")
	}

	batch := make([]*models.Permit, 0, s.batchSize)
	lineNum := 1

	flush := func() {
		if len(batch) == 0 {
			return
		}
		upserted, err := s.permitRepo.BatchUpsert(ctx, batch)
		if err != nil {
			s.log.Error().Err(err).Int("batch_size", len(batch)).Msg("Batch upsert failed")
			result.Failed += len(batch)
		} else {
			result.Imported += upserted
		}
		batch = batch[:0]

		s.log.Debug().
			Str("source", source).
			Int("imported", result.Imported).
			Float64("rows_per_sec", float64(result.Imported)/time.Since(startTime).Seconds()).
			Msg("Batch processed")
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		lineNum++
		if err != nil {
			result.Total++
			result.Failed++
			s.addError(result, models.ValidationError{Line: lineNum, Field: "row", Message: err.Error()})
			continue
		}
		result.Total++

		// Respect context cancellation for long-running imports
		if lineNum%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return result, err
			}
		}

		row := &models.PermitCSV{
			PermitNumber:  getField(record, headerMap, "permit_number"),
			PermitType:    getField(record, headerMap, "permit_type"),
			PermitSubtype: getField(record, headerMap, "permit_subtype"),
			Status:        getField(record, headerMap, "status"),
			Description:   getField(record, headerMap, "description"),
			Valuation:     getField(record, headerMap, "valuation"),
			DateFiled:     getField(record, headerMap, "date_filed"),
			DateIssued:    getField(record, headerMap, "date_issued"),
			DateCompleted: getField(record, headerMap, "date_completed"),
			ActionByDept:  getField(record, headerMap, "action_by_dept"),
			Address:       getField(record, headerMap, "address"),
			Contractor:    getField(record, headerMap, "contractor"),
		}

		if errs := validator.ValidatePermit(row, lineNum); len(errs) > 0 {
			result.Failed++
			for _, e := range errs {
				s.addError(result, models.ValidationError{
					Line:    lineNum,
					Field:   e.Field,
					Message: e.Message,
					Value:   e.Value,
				})
			}
			continue
		}

		batch = append(batch, convertCSVToPermit(row))
		validator.AddPermitNumber(row.PermitNumber)

		if len(batch) >= s.batchSize {
			flush()
		}
	}
	flush()

	result.DurationMs = time.Since(startTime).Milliseconds()
	metrics.PermitsImportedTotal.Add(float64(result.Imported))

	s.log.Info().
		Str("source", source).
		Int("total", result.Total).
		Int("imported", result.Imported).
		Int("failed", result.Failed).
		Int64("duration_ms", result.DurationMs).
		Msg("Permit import completed")

	return result, nil
}

func (s *etlService) addError(result *models.ETLResult, e models.ValidationError) {
	if len(result.Errors) < maxReportedErrors {
		result.Errors = append(result.Errors, e)
	}
}

// Helper functions

func getField(record []string, headerMap map[string]int, field string) string {
	if idx, ok := headerMap[field]; ok && idx < len(record) {
		return strings.TrimSpace(record[idx])
	}
	return ""
}

// convertCSVToPermit converts a validated row; parse errors were ruled out by ValidatePermit
func convertCSVToPermit(row *models.PermitCSV) *models.Permit {
	valuation, _ := validation.ParseValuation(row.Valuation)
	dateFiled, _ := validation.ParseDate(row.DateFiled)
	return &models.Permit{
		PermitNumber:  row.PermitNumber,
		PermitType:    row.PermitType,
		PermitSubtype: row.PermitSubtype,
		Status:        row.Status,
		Description:   row.Description,
		Valuation:     valuation,
		DateFiled:     dateFiled,
		DateIssued:    optionalDate(row.DateIssued),
		DateCompleted: optionalDate(row.DateCompleted),
		ActionByDept:  row.ActionByDept,
		Address:       row.Address,
		Contractor:    row.Contractor,
	}
}

func optionalDate(s string) string {
	if s == "" {
		return ""
	}
	d, _ := validation.ParseDate(s)
	return d
}
