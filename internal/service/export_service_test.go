package service_test

import (
	"context"
	"encoding/csv"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/permit-dashboard-api/internal/apperr"
	"github.com/permit-dashboard-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSVHeader(t *testing.T, file string) []string {
	t.Helper()
	f, err := os.Open(file)
	require.NoError(t, err)
	defer f.Close()
	header, err := csv.NewReader(f).Read()
	require.NoError(t, err)
	return header
}

func TestExportService_ExportCSV(t *testing.T) {
	f := newFixture(t)
	f.seedPermits(t)
	ctx := context.Background()

	result, err := f.svcs.Export.Export(ctx, alice, &models.ExportRequest{
		Format:   models.FormatCSV,
		Filename: "Q1 Report",
	})
	require.NoError(t, err)

	record := result.Record
	assert.Equal(t, "alice", record.UserID)
	assert.Equal(t, 3, record.RowCount)
	assert.True(t, strings.HasPrefix(record.FilePath, "alice/Q1_Report_"), record.FilePath)
	assert.True(t, strings.HasSuffix(record.FilePath, ".csv"))
	assert.Equal(t, "/exports/"+record.FilePath, result.DownloadURL)
	assert.Equal(t, models.RoleUser, record.Metadata.Role)
	assert.NotContains(t, record.Metadata.Columns, "valuation")

	onDisk := filepath.Join(f.cfg.Export.Root, filepath.FromSlash(record.FilePath))
	header := readCSVHeader(t, onDisk)
	assert.Equal(t, record.Metadata.Columns, header)
	assert.NotContains(t, header, "address")

	logs, err := f.svcs.Export.ListLogs(ctx, alice, false, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, record.ID, logs[0].ID)

	events, err := f.repos.Audit.List(ctx, models.AuditFilter{Action: models.AuditExportGenerate})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, record.FilePath, events[0].Target)
}

func TestExportService_AdminSeesRestrictedColumns(t *testing.T) {
	f := newFixture(t)
	f.seedPermits(t)

	result, err := f.svcs.Export.Export(context.Background(), admin, &models.ExportRequest{
		Format:   models.FormatCSV,
		Filename: "full",
		Columns:  []string{"permit_number", "valuation", "contractor"},
	})
	require.NoError(t, err)

	onDisk := filepath.Join(f.cfg.Export.Root, filepath.FromSlash(result.Record.FilePath))
	assert.Equal(t, []string{"permit_number", "valuation", "contractor"}, readCSVHeader(t, onDisk))
}

func TestExportService_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		caller  models.Identity
		req     *models.ExportRequest
		kind    error
		message string
	}{
		{
			name:    "unsupported format",
			caller:  alice,
			req:     &models.ExportRequest{Format: "xml", Filename: "r"},
			kind:    apperr.ErrUnsupportedFormat,
			message: "unsupported format: xml",
		},
		{
			name:    "missing filename",
			caller:  alice,
			req:     &models.ExportRequest{Format: models.FormatCSV, Filename: "  "},
			kind:    apperr.ErrValidation,
			message: "filename is required",
		},
		{
			name:    "no data",
			caller:  alice,
			req:     &models.ExportRequest{Format: models.FormatCSV, Filename: "r"},
			kind:    apperr.ErrValidation,
			message: "no data to export",
		},
		{
			name:   "unknown column",
			caller: alice,
			req:    &models.ExportRequest{Format: models.FormatCSV, Filename: "r", Columns: []string{"owner_ssn"}},
			kind:   apperr.ErrValidation,
		},
		{
			name:   "missing caller",
			caller: models.Identity{},
			req:    &models.ExportRequest{Format: models.FormatCSV, Filename: "r"},
			kind:   apperr.ErrValidation,
		},
		{
			name:   "unknown preset",
			caller: alice,
			req:    &models.ExportRequest{Format: models.FormatCSV, Filename: "r", PresetID: "nope"},
			kind:   apperr.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svcs.Export.Export(ctx, tt.caller, tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
			if tt.message != "" {
				assert.Equal(t, tt.message, apperr.Message(err))
			}
		})
	}

	logs, err := f.svcs.Export.ListLogs(ctx, admin, true, 10)
	require.NoError(t, err)
	assert.Empty(t, logs, "failed exports must not be logged")
}

func TestExportService_RestrictedOnlySelection(t *testing.T) {
	f := newFixture(t)
	f.seedPermits(t)

	_, err := f.svcs.Export.Export(context.Background(), alice, &models.ExportRequest{
		Format:   models.FormatCSV,
		Filename: "secret",
		Columns:  []string{"valuation", "address"},
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestExportService_Download(t *testing.T) {
	f := newFixture(t)
	f.seedPermits(t)
	ctx := context.Background()

	result, err := f.svcs.Export.Export(ctx, alice, &models.ExportRequest{Format: models.FormatExcel, Filename: "sheet"})
	require.NoError(t, err)
	name := path.Base(result.Record.FilePath)

	got, err := f.svcs.Export.Download(ctx, alice, "alice", name)
	require.NoError(t, err)
	assert.Equal(t, name, filepath.Base(got))

	_, err = f.svcs.Export.Download(ctx, bob, "alice", name)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svcs.Export.Download(ctx, alice, "alice", "..")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	events, err := f.repos.Audit.List(ctx, models.AuditFilter{Action: models.AuditExportDownload})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestExportService_ListLogsScope(t *testing.T) {
	f := newFixture(t)
	f.seedPermits(t)
	ctx := context.Background()

	for _, caller := range []models.Identity{alice, bob} {
		_, err := f.svcs.Export.Export(ctx, caller, &models.ExportRequest{Format: models.FormatCSV, Filename: "r"})
		require.NoError(t, err)
	}

	own, err := f.svcs.Export.ListLogs(ctx, bob, false, 10)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "bob", own[0].UserID)

	_, err = f.svcs.Export.ListLogs(ctx, bob, true, 10)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	all, err := f.svcs.Export.ListLogs(ctx, auditor, true, 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestExportService_PresetSuppliesColumns(t *testing.T) {
	f := newFixture(t)
	f.seedPermits(t)
	ctx := context.Background()

	preset, err := f.svcs.Schedule.SavePreset(ctx, alice, &models.PresetRequest{
		Name:    "status only",
		Columns: []string{"permit_number", "status"},
		Filters: models.PermitFilter{Department: "BLDG"},
	})
	require.NoError(t, err)

	result, err := f.svcs.Export.Export(ctx, alice, &models.ExportRequest{
		Format:   models.FormatCSV,
		Filename: "preset",
		PresetID: preset.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Record.RowCount)

	onDisk := filepath.Join(f.cfg.Export.Root, filepath.FromSlash(result.Record.FilePath))
	assert.Equal(t, []string{"permit_number", "status"}, readCSVHeader(t, onDisk))

	// Presets are private to their owner
	_, err = f.svcs.Export.Export(ctx, bob, &models.ExportRequest{
		Format:   models.FormatCSV,
		Filename: "preset",
		PresetID: preset.ID,
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestExportService_EnqueueAndRunJob(t *testing.T) {
	f := newFixture(t)
	f.seedPermits(t)
	ctx := context.Background()

	job, err := f.svcs.Export.Enqueue(ctx, alice, &models.ExportRequest{Format: models.FormatPDF, Filename: "later"})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, job.Status)

	_, err = f.svcs.Export.Enqueue(ctx, alice, &models.ExportRequest{Format: "doc", Filename: "later"})
	assert.ErrorIs(t, err, apperr.ErrUnsupportedFormat)

	require.NoError(t, f.svcs.Export.RunJob(ctx, job))

	stored, err := f.svcs.Job.GetJob(ctx, alice, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, stored.Status)
	assert.Equal(t, 3, stored.RowCount)
	assert.True(t, strings.HasPrefix(stored.DownloadURL, "/exports/alice/later_"), stored.DownloadURL)
	assert.NotNil(t, stored.CompletedAt)
}

func TestExportService_RunJobRecordsFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job, err := f.svcs.Export.Enqueue(ctx, alice, &models.ExportRequest{Format: models.FormatCSV, Filename: "empty"})
	require.NoError(t, err)

	err = f.svcs.Export.RunJob(ctx, job)
	require.ErrorIs(t, err, apperr.ErrValidation)

	stored, err := f.svcs.Job.GetJob(ctx, alice, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, stored.Status)
	assert.Equal(t, "no data to export", stored.Error)
}

func TestExportService_RunJobInterruptedIsRequeued(t *testing.T) {
	f := newFixture(t)
	f.seedPermits(t)
	ctx := context.Background()

	job, err := f.svcs.Export.Enqueue(ctx, alice, &models.ExportRequest{Format: models.FormatCSV, Filename: "interrupted"})
	require.NoError(t, err)
	claimed, err := f.repos.Job.MarkJobAsProcessing(ctx, job.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	require.Error(t, f.svcs.Export.RunJob(cancelled, job))

	stored, err := f.svcs.Job.GetJob(ctx, alice, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, stored.Status)
	assert.Nil(t, stored.StartedAt)
	assert.Empty(t, stored.Error)
}

func TestJobService_RequeueInterruptedThenProcess(t *testing.T) {
	f := newFixture(t)
	f.seedPermits(t)
	ctx := context.Background()

	job, err := f.svcs.Export.Enqueue(ctx, alice, &models.ExportRequest{Format: models.FormatCSV, Filename: "resumed"})
	require.NoError(t, err)
	claimed, err := f.repos.Job.MarkJobAsProcessing(ctx, job.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	n, err := f.svcs.Job.RequeueInterrupted(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	go f.svcs.Job.StartProcessor(ctx)
	defer f.svcs.Job.StopProcessor()

	require.Eventually(t, func() bool {
		stored, err := f.svcs.Job.GetJob(ctx, alice, job.ID)
		return err == nil && stored.Status == models.JobStatusCompleted
	}, 5*time.Second, 20*time.Millisecond)
}

func TestJobService_GetJobIsOwnerScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job, err := f.svcs.Export.Enqueue(ctx, alice, &models.ExportRequest{Format: models.FormatCSV, Filename: "x"})
	require.NoError(t, err)

	_, err = f.svcs.Job.GetJob(ctx, bob, job.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svcs.Job.GetJob(ctx, admin, job.ID)
	assert.NoError(t, err)

	_, err = f.svcs.Job.GetJob(ctx, alice, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestJobService_ProcessorRunsPendingJobs(t *testing.T) {
	f := newFixture(t)
	f.seedPermits(t)
	ctx := context.Background()

	job, err := f.svcs.Export.Enqueue(ctx, alice, &models.ExportRequest{Format: models.FormatZIP, Filename: "bundle"})
	require.NoError(t, err)

	go f.svcs.Job.StartProcessor(ctx)
	defer f.svcs.Job.StopProcessor()

	require.Eventually(t, func() bool {
		stored, err := f.svcs.Job.GetJob(ctx, alice, job.ID)
		return err == nil && stored.Status == models.JobStatusCompleted
	}, 5*time.Second, 20*time.Millisecond)

	stored, err := f.svcs.Job.GetJob(ctx, alice, job.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(stored.DownloadURL, ".zip"))
}

func TestCleanupService_MarksLogsPurged(t *testing.T) {
	f := newFixture(t)
	f.seedPermits(t)
	ctx := context.Background()

	old, err := f.svcs.Export.Export(ctx, alice, &models.ExportRequest{Format: models.FormatCSV, Filename: "old"})
	require.NoError(t, err)
	fresh, err := f.svcs.Export.Export(ctx, alice, &models.ExportRequest{Format: models.FormatCSV, Filename: "fresh"})
	require.NoError(t, err)

	oldPath := filepath.Join(f.cfg.Export.Root, filepath.FromSlash(old.Record.FilePath))
	stale := time.Now().Add(-40 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(oldPath, stale, stale))

	result, err := f.svcs.Cleanup.Run(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, result.DeletedCount)
	assert.Equal(t, []string{old.Record.FilePath}, result.DeletedPaths)
	assert.NoFileExists(t, oldPath)

	purged, err := f.repos.ExportLog.GetByID(ctx, old.Record.ID)
	require.NoError(t, err)
	assert.NotNil(t, purged.PurgedAt)

	kept, err := f.repos.ExportLog.GetByID(ctx, fresh.Record.ID)
	require.NoError(t, err)
	assert.Nil(t, kept.PurgedAt)

	events, err := f.repos.Audit.List(ctx, models.AuditFilter{Action: models.AuditCleanupRun})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "system", events[0].ActorID)

	// The purged file can no longer be downloaded
	_, err = f.svcs.Export.Download(ctx, alice, "alice", path.Base(old.Record.FilePath))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
