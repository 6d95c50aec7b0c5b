package benchmark

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/permit-dashboard-api/internal/config"
	"github.com/permit-dashboard-api/internal/export"
	"github.com/permit-dashboard-api/internal/layout"
	"github.com/permit-dashboard-api/internal/mocks"
	"github.com/permit-dashboard-api/internal/models"
	"github.com/permit-dashboard-api/internal/service"
	"github.com/permit-dashboard-api/internal/validation"
	"github.com/rs/zerolog"
)

// testPermits builds n permits spread over two years and three departments
func testPermits(n int) []*models.Permit {
	depts := []string{"BLDG", "FIRE", "PLAN"}
	permits := make([]*models.Permit, n)
	for i := 0; i < n; i++ {
		permits[i] = &models.Permit{
			PermitNumber: fmt.Sprintf("P-%06d", i),
			PermitType:   "Building",
			Status:       "Issued",
			Description:  "Test permit",
			Valuation:    float64(i) * 10.5,
			DateFiled:    fmt.Sprintf("%d-%02d-15", 2023+i%2, 1+i%12),
			ActionByDept: depts[i%len(depts)],
			Address:      fmt.Sprintf("%d Main St", i),
			Contractor:   "Acme Builders",
		}
	}
	return permits
}

// BenchmarkCompose benchmarks composing a saved layout with rendered widgets
func BenchmarkCompose(b *testing.B) {
	loader := mocks.NewMockLayoutService()
	loader.Placements["alice"] = layout.DefaultPlacements()
	composer := layout.NewComposer(layout.DefaultCatalog(), loader, zerolog.Nop())
	data := service.Aggregate(models.PermitFilter{}, testPermits(1000))

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := composer.Compose(context.Background(), "alice", data); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkAggregate benchmarks building dashboard data from permits
func BenchmarkAggregate(b *testing.B) {
	permits := testPermits(10000)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		service.Aggregate(models.PermitFilter{Year: 2024}, permits)
	}

	b.ReportMetric(float64(10000*b.N)/b.Elapsed().Seconds(), "rows/sec")
}

// BenchmarkMask benchmarks hiding restricted columns for a viewer
func BenchmarkMask(b *testing.B) {
	table := models.PermitsTable(testPermits(10000))

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		export.Mask(table, models.RoleViewer)
	}
}

// BenchmarkGenerateCSV benchmarks writing a CSV export to disk
func BenchmarkGenerateCSV(b *testing.B) {
	cfg := config.ExportConfig{Root: b.TempDir(), Timeout: time.Minute, PDFMaxRows: 1000}
	table := models.PermitsTable(testPermits(1000))

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		gen := export.NewGenerator(cfg, zerolog.Nop())
		if _, err := gen.Generate(context.Background(), table, "alice", "bench", models.FormatCSV, models.RoleUser); err != nil {
			b.Fatal(err)
		}
	}

	b.ReportMetric(float64(1000*b.N)/b.Elapsed().Seconds(), "rows/sec")
}

// BenchmarkValidatePermit benchmarks import row validation
func BenchmarkValidatePermit(b *testing.B) {
	row := &models.PermitCSV{
		PermitNumber: "P-000001",
		DateFiled:    "2024-01-15",
		DateIssued:   "2024-02-01T00:00:00.000",
		Valuation:    "$1,250.00",
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		v := validation.NewValidator()
		v.ValidatePermit(row, i+2)
	}
}

// BenchmarkValidatePlacements benchmarks layout validation before a save
func BenchmarkValidatePlacements(b *testing.B) {
	placements := layout.DefaultPlacements()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if err := validation.ValidatePlacements(placements); err != nil {
			b.Fatal(err)
		}
	}
}
