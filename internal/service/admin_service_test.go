package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/permit-dashboard-api/internal/apperr"
	"github.com/permit-dashboard-api/internal/mocks"
	"github.com/permit-dashboard-api/internal/models"
	"github.com/permit-dashboard-api/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const permitsCSV = `permit_number,permit_type,status,valuation,date_filed,action_by_dept,address
P-1,Building,issued,"$1,000.00",2024-01-15,BLDG,1 Main St
P-2,Electrical,filed,abc,2024-02-01,FIRE,2 Oak Ave
,Building,filed,10,2024-02-01,FIRE,3 Elm St
P-3,Building,issued,5,2024-03-01T00:00:00.000,BLDG,4 Pine Rd
P-1,Building,issued,7,2024-03-02,BLDG,1 Main St
`

func TestETLService_Import(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.svcs.ETL.Import(ctx, strings.NewReader(permitsCSV), "permits.csv")
	require.NoError(t, err)
	assert.Equal(t, "permits.csv", result.Source)
	assert.Equal(t, 5, result.Total)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 3, result.Failed)

	lines := map[int]string{}
	for _, e := range result.Errors {
		lines[e.Line] = e.Field
	}
	assert.Equal(t, map[int]string{3: "valuation", 4: "permit_number", 6: "permit_number"}, lines)

	permits, err := f.repos.Permit.Query(ctx, models.PermitFilter{})
	require.NoError(t, err)
	require.Len(t, permits, 2)
	assert.Equal(t, "P-3", permits[0].PermitNumber)
	assert.Equal(t, "2024-03-01", permits[0].DateFiled)
	assert.Equal(t, 1000.0, permits[1].Valuation)
}

func TestETLService_ImportRejectsBadHeader(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svcs.ETL.Import(ctx, strings.NewReader(""), "empty.csv")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svcs.ETL.Import(ctx, strings.NewReader("id,name\n1,x\n"), "wrong.csv")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestETLService_BatchFailureCountsRows(t *testing.T) {
	permits := mocks.NewMockPermitRepository()
	permits.BatchUpsertFunc = func(ctx context.Context, batch []*models.Permit) (int, error) {
		return 0, errors.New("deadlock")
	}
	f := newFixture(t, func(r *repository.Repositories) { r.Permit = permits })

	result, err := f.svcs.ETL.Import(context.Background(), strings.NewReader(permitsCSV), "permits.csv")
	require.NoError(t, err)
	assert.Zero(t, result.Imported)
	assert.Equal(t, 5, result.Failed)
	assert.Equal(t, 1, permits.BatchUpsertCalls, "two valid rows fit one batch")
}

func TestAdminService_RequiresAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svcs.Admin.ListUsers(ctx, alice, 10)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.svcs.Admin.UpdateUser(ctx, auditor, "alice", &models.UpdateUserRequest{Role: ptr(models.RoleAdmin)})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	assert.ErrorIs(t, f.svcs.Admin.ResetUserLayout(ctx, alice, "bob"), apperr.ErrForbidden)
	_, err = f.svcs.Admin.RunCleanup(ctx, auditor)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.svcs.Admin.ImportPermits(ctx, alice, strings.NewReader(permitsCSV), "x.csv")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	// Auditors may read the audit trail but not change anything
	_, err = f.svcs.Admin.ListAudit(ctx, auditor, models.AuditFilter{})
	assert.NoError(t, err)
	_, err = f.svcs.Admin.ListJobRuns(ctx, auditor, "", 10)
	assert.NoError(t, err)
	_, err = f.svcs.Admin.ListAudit(ctx, alice, models.AuditFilter{})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestAdminService_UpdateUserInvalidatesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.repos.User.Upsert(ctx, &models.User{
		ID: "alice", Email: "alice@example.com", Role: models.RoleUser, IsActive: true, CreatedAt: time.Now().UTC(),
	}))

	id, err := f.svcs.Users.Resolve(ctx, "alice", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, id.Role)

	updated, err := f.svcs.Admin.UpdateUser(ctx, admin, "alice", &models.UpdateUserRequest{Role: ptr(models.RoleAuditor)})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAuditor, updated.Role)

	id, err = f.svcs.Users.Resolve(ctx, "alice", "")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAuditor, id.Role)

	_, err = f.svcs.Admin.UpdateUser(ctx, admin, "alice", &models.UpdateUserRequest{IsActive: ptr(false)})
	require.NoError(t, err)
	_, err = f.svcs.Users.Resolve(ctx, "alice", "")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.svcs.Admin.UpdateUser(ctx, admin, "alice", &models.UpdateUserRequest{Role: ptr("superuser")})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.svcs.Admin.UpdateUser(ctx, admin, "ghost", &models.UpdateUserRequest{Role: ptr(models.RoleUser)})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.svcs.Admin.UpdateUser(ctx, admin, "root", &models.UpdateUserRequest{IsActive: ptr(false)})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	events, err := f.svcs.Admin.ListAudit(ctx, admin, models.AuditFilter{Action: models.AuditUserUpdate})
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestAdminService_ResetUserLayout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.True(t, f.svcs.Layout.Save(ctx, "bob", []models.LayoutPlacement{{ComponentID: "kpi-1", W: 12, H: 2}}))

	require.NoError(t, f.svcs.Admin.ResetUserLayout(ctx, admin, "bob"))

	loaded, err := f.svcs.Layout.LoadPlacements(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestAdminService_ImportPermitsAudits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.svcs.Admin.ImportPermits(ctx, admin, strings.NewReader(permitsCSV), "upload.csv")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)

	events, err := f.svcs.Admin.ListAudit(ctx, admin, models.AuditFilter{Action: models.AuditPermitImport})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "upload.csv", events[0].Target)
	assert.Equal(t, "2", events[0].Details["imported"])
}
