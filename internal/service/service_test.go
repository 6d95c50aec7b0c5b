package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/permit-dashboard-api/internal/apperr"
	"github.com/permit-dashboard-api/internal/config"
	"github.com/permit-dashboard-api/internal/database"
	"github.com/permit-dashboard-api/internal/mocks"
	"github.com/permit-dashboard-api/internal/models"
	"github.com/permit-dashboard-api/internal/repository"
	"github.com/permit-dashboard-api/internal/service"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice   = models.Identity{UserID: "alice", Role: models.RoleUser}
	bob     = models.Identity{UserID: "bob", Role: models.RoleUser}
	admin   = models.Identity{UserID: "root", Role: models.RoleAdmin}
	auditor = models.Identity{UserID: "carol", Role: models.RoleAuditor}
)

type fixture struct {
	svcs  *service.Services
	repos *repository.Repositories
	cfg   *config.Config
}

// newFixture wires real services over an in-memory sqlite database. Options
// may swap repositories for mocks before the services are built.
func newFixture(t *testing.T, opts ...func(*repository.Repositories)) *fixture {
	t.Helper()
	db, err := database.NewSQLiteMemory(zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repos := repository.New(db)
	for _, opt := range opts {
		opt(repos)
	}

	cfg := &config.Config{
		Export: config.ExportConfig{
			Root:          t.TempDir(),
			RetentionDays: 30,
			Timeout:       time.Minute,
			PDFMaxRows:    100,
		},
		Scheduler: config.SchedulerConfig{
			ETLBatchSize:      2,
			JobPollInterval:   10 * time.Millisecond,
			MaxConcurrentJobs: 2,
		},
		Auth: config.AuthConfig{
			UserCacheTTL: time.Minute,
			UserCacheMax: 16,
		},
	}

	return &fixture{
		svcs:  service.NewServices(repos, cfg, zerolog.Nop()),
		repos: repos,
		cfg:   cfg,
	}
}

func (f *fixture) seedPermits(t *testing.T) {
	t.Helper()
	_, err := f.repos.Permit.BatchUpsert(context.Background(), []*models.Permit{
		{PermitNumber: "P-1", PermitType: "Building", Status: "issued", DateFiled: "2024-01-15", ActionByDept: "BLDG", Valuation: 1000, Address: "1 Main St", Contractor: "Acme"},
		{PermitNumber: "P-2", PermitType: "Electrical", Status: "filed", DateFiled: "2024-02-03", ActionByDept: "FIRE", Valuation: 250.5, Address: "2 Oak Ave", Contractor: "Volt"},
		{PermitNumber: "P-3", PermitType: "Building", Status: "issued", DateFiled: "2024-02-20", ActionByDept: "BLDG", Valuation: 75},
	})
	require.NoError(t, err)
}

func TestLayoutService_SaveAndLoad(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	placements := []models.LayoutPlacement{
		{ComponentID: "table-permits", X: 0, Y: 0, W: 12, H: 4},
		{ComponentID: "kpi-1", X: 0, Y: 4, W: 6, H: 2},
	}
	require.True(t, f.svcs.Layout.Save(ctx, "alice", placements))

	loaded, err := f.svcs.Layout.LoadPlacements(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, placements, loaded)

	events, err := f.repos.Audit.List(ctx, models.AuditFilter{ActorID: "alice", Action: models.AuditLayoutSave})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "2", events[0].Details["placements"])
}

func TestLayoutService_SaveRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	original := []models.LayoutPlacement{{ComponentID: "kpi-1", X: 0, Y: 0, W: 12, H: 2}}
	require.True(t, f.svcs.Layout.Save(ctx, "alice", original))

	tests := []struct {
		name       string
		userID     string
		placements []models.LayoutPlacement
	}{
		{"empty list", "alice", nil},
		{"empty user", "", original},
		{"outside grid", "alice", []models.LayoutPlacement{{ComponentID: "kpi-1", X: 8, W: 6, H: 2}}},
		{"negative x", "alice", []models.LayoutPlacement{{ComponentID: "kpi-1", X: -1, W: 6, H: 2}}},
		{"zero height", "alice", []models.LayoutPlacement{{ComponentID: "kpi-1", W: 6, H: 0}}},
		{"duplicate id", "alice", []models.LayoutPlacement{
			{ComponentID: "kpi-1", W: 6, H: 2},
			{ComponentID: "kpi-1", X: 6, W: 6, H: 2},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, f.svcs.Layout.Save(ctx, tt.userID, tt.placements))
		})
	}

	// Nothing above touched the stored layout
	loaded, err := f.svcs.Layout.LoadPlacements(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, original, loaded)
}

func TestLayoutService_SaveStorageFailure(t *testing.T) {
	layouts := mocks.NewMockLayoutRepository()
	layouts.ReplaceError = errors.New("disk full")
	f := newFixture(t, func(r *repository.Repositories) { r.Layout = layouts })

	ok := f.svcs.Layout.Save(context.Background(), "alice", []models.LayoutPlacement{{ComponentID: "kpi-1", W: 12, H: 2}})
	assert.False(t, ok)
	assert.Equal(t, 1, layouts.ReplaceCalls)
	assert.Empty(t, layouts.Layouts)
}

func TestLayoutService_ResetIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.True(t, f.svcs.Layout.Reset(ctx, "alice"))

	require.True(t, f.svcs.Layout.Save(ctx, "alice", []models.LayoutPlacement{{ComponentID: "kpi-1", W: 12, H: 2}}))
	assert.True(t, f.svcs.Layout.Reset(ctx, "alice"))
	assert.True(t, f.svcs.Layout.Reset(ctx, "alice"))

	loaded, err := f.svcs.Layout.LoadPlacements(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, loaded)

	assert.False(t, f.svcs.Layout.Reset(ctx, ""))
}

func TestDashboardService_DefaultAndSavedLayouts(t *testing.T) {
	f := newFixture(t)
	f.seedPermits(t)
	ctx := context.Background()

	composed, err := f.svcs.Dashboard.Dashboard(ctx, "alice", models.PermitFilter{})
	require.NoError(t, err)
	assert.True(t, composed.IsDefault)
	assert.Len(t, composed.Rendered, len(f.svcs.Layout.Catalog()))

	require.True(t, f.svcs.Layout.Save(ctx, "alice", []models.LayoutPlacement{{ComponentID: "kpi-1", W: 4, H: 2}}))
	composed, err = f.svcs.Dashboard.Dashboard(ctx, "alice", models.PermitFilter{Department: "BLDG"})
	require.NoError(t, err)
	assert.False(t, composed.IsDefault)
	require.Len(t, composed.Rendered, 1)
	assert.Equal(t, models.KPISummary{TotalPermits: 2, TotalValuation: 1075, DepartmentCount: 1}, composed.Rendered[0].Data)

	// Another user still gets the defaults
	composed, err = f.svcs.Dashboard.Dashboard(ctx, "bob", models.PermitFilter{})
	require.NoError(t, err)
	assert.True(t, composed.IsDefault)
}

func TestDashboardService_RejectsBadFilter(t *testing.T) {
	f := newFixture(t)

	_, err := f.svcs.Dashboard.Data(context.Background(), models.PermitFilter{Month: 13})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestDashboardService_Stats(t *testing.T) {
	f := newFixture(t)
	f.seedPermits(t)
	ctx := context.Background()
	require.True(t, f.svcs.Layout.Save(ctx, "alice", []models.LayoutPlacement{{ComponentID: "kpi-1", W: 4, H: 2}}))

	stats, err := f.svcs.Dashboard.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Permits)
	assert.Equal(t, 1, stats.LayoutUsers)
	assert.Equal(t, 0, stats.ExportLogs)
}

func TestAggregate(t *testing.T) {
	permits := []*models.Permit{
		{PermitNumber: "A", Status: "issued", DateFiled: "2024-02-01", ActionByDept: "BLDG", Valuation: 10},
		{PermitNumber: "B", Status: "filed", DateFiled: "2024-01-10", ActionByDept: "BLDG", Valuation: 5},
		{PermitNumber: "C", Status: "issued", DateFiled: "2024-02-11", ActionByDept: "FIRE"},
		{PermitNumber: "D", DateFiled: "2024-01-30"},
	}

	data := service.Aggregate(models.PermitFilter{Year: 2024}, permits)

	assert.Equal(t, models.KPISummary{TotalPermits: 4, TotalValuation: 15, DepartmentCount: 2}, data.KPIs)
	assert.Equal(t, []models.TrendPoint{{Period: "2024-01", Count: 2}, {Period: "2024-02", Count: 2}}, data.Trend)
	assert.Equal(t, []models.StatusCount{
		{Status: "issued", Count: 2},
		{Status: "filed", Count: 1},
		{Status: "unknown", Count: 1},
	}, data.Statuses)
	assert.Equal(t, 4, data.Table.Len())
}

func TestAggregate_Empty(t *testing.T) {
	data := service.Aggregate(models.PermitFilter{}, nil)

	assert.Zero(t, data.KPIs.TotalPermits)
	assert.Empty(t, data.Trend)
	assert.Empty(t, data.Statuses)
	assert.Equal(t, models.PermitColumns, data.Table.Columns)
}

func TestUserDirectory_Resolve(t *testing.T) {
	users := mocks.NewMockUserRepository()
	users.Users["alice"] = &models.User{ID: "alice", Role: models.RoleViewer, IsActive: true}
	users.Users["mallory"] = &models.User{ID: "mallory", Role: models.RoleAdmin, IsActive: false}
	f := newFixture(t, func(r *repository.Repositories) { r.User = users })
	ctx := context.Background()

	// Stored role wins over the claimed one
	id, err := f.svcs.Users.Resolve(ctx, "alice", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleViewer, id.Role)

	_, err = f.svcs.Users.Resolve(ctx, "alice", "")
	require.NoError(t, err)
	assert.Equal(t, 1, users.GetByIDCalls, "second lookup should hit the cache")

	id, err = f.svcs.Users.Resolve(ctx, "stranger", models.RoleAuditor)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAuditor, id.Role)

	id, err = f.svcs.Users.Resolve(ctx, "someone", "root")
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, id.Role)

	_, err = f.svcs.Users.Resolve(ctx, "mallory", models.RoleAdmin)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.svcs.Users.Resolve(ctx, "", models.RoleUser)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	users.GetError = errors.New("connection refused")
	_, err = f.svcs.Users.Resolve(ctx, "newcomer", "")
	assert.ErrorIs(t, err, apperr.ErrStorage)
}
