package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/permit-dashboard-api/internal/apperr"
	"github.com/permit-dashboard-api/internal/models"
	"github.com/permit-dashboard-api/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T {
	return &v
}

func TestNextRun(t *testing.T) {
	base := time.Date(2024, 1, 31, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		freq models.Frequency
		from time.Time
		want time.Time
	}{
		{models.FrequencyHourly, base, time.Date(2024, 1, 31, 11, 30, 0, 0, time.UTC)},
		{models.FrequencyDaily, base, time.Date(2024, 2, 1, 10, 30, 0, 0, time.UTC)},
		{models.FrequencyWeekly, base, time.Date(2024, 2, 7, 10, 30, 0, 0, time.UTC)},
		{models.FrequencyMonthly, base, time.Date(2024, 2, 1, 10, 30, 0, 0, time.UTC)},
		{models.FrequencyMonthly, time.Date(2024, 12, 15, 8, 0, 0, 0, time.UTC), time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(string(tt.freq)+"/"+tt.from.Format(time.DateOnly), func(t *testing.T) {
			assert.Equal(t, tt.want, service.NextRun(tt.from, tt.freq))
		})
	}
}

func TestScheduleService_CreateValidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  *models.ScheduleRequest
		kind error
	}{
		{"missing name", &models.ScheduleRequest{Format: ptr(models.FormatCSV), Frequency: ptr(models.FrequencyDaily)}, apperr.ErrValidation},
		{"missing format", &models.ScheduleRequest{Name: ptr("weekly"), Frequency: ptr(models.FrequencyDaily)}, apperr.ErrValidation},
		{"bad format", &models.ScheduleRequest{Name: ptr("weekly"), Format: ptr(models.ExportFormat("xml")), Frequency: ptr(models.FrequencyDaily)}, apperr.ErrUnsupportedFormat},
		{"bad frequency", &models.ScheduleRequest{Name: ptr("weekly"), Format: ptr(models.FormatCSV), Frequency: ptr(models.Frequency("yearly"))}, apperr.ErrValidation},
		{"bad column", &models.ScheduleRequest{Name: ptr("weekly"), Format: ptr(models.FormatCSV), Frequency: ptr(models.FrequencyDaily), Columns: []string{"nope"}}, apperr.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svcs.Schedule.CreateSchedule(ctx, alice, tt.req)
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestScheduleService_CRUDIsOwnerScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	schedule, err := f.svcs.Schedule.CreateSchedule(ctx, alice, &models.ScheduleRequest{
		Name:      ptr("weekly permits"),
		Format:    ptr(models.FormatExcel),
		Frequency: ptr(models.FrequencyWeekly),
	})
	require.NoError(t, err)
	assert.True(t, schedule.Active)
	assert.True(t, schedule.NextRun.After(time.Now().Add(6*24*time.Hour)))

	list, err := f.svcs.Schedule.ListSchedules(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = f.svcs.Schedule.UpdateSchedule(ctx, bob, schedule.ID, &models.ScheduleRequest{Active: ptr(false)})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	updated, err := f.svcs.Schedule.UpdateSchedule(ctx, alice, schedule.ID, &models.ScheduleRequest{Active: ptr(false)})
	require.NoError(t, err)
	assert.False(t, updated.Active)

	assert.ErrorIs(t, f.svcs.Schedule.DeleteSchedule(ctx, bob, schedule.ID), apperr.ErrNotFound)
	require.NoError(t, f.svcs.Schedule.DeleteSchedule(ctx, alice, schedule.ID))

	list, err = f.svcs.Schedule.ListSchedules(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestScheduleService_RunDue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, f.repos.User.Upsert(ctx, &models.User{
		ID: "alice", Email: "alice@example.com", Role: models.RoleAuditor, IsActive: true, CreatedAt: now,
	}))

	due, err := f.svcs.Schedule.CreateSchedule(ctx, alice, &models.ScheduleRequest{
		Name:      ptr("daily"),
		Format:    ptr(models.FormatCSV),
		Frequency: ptr(models.FrequencyDaily),
		Columns:   []string{"permit_number", "valuation"},
		StartAt:   ptr(now.Add(-time.Hour)),
	})
	require.NoError(t, err)
	_, err = f.svcs.Schedule.CreateSchedule(ctx, bob, &models.ScheduleRequest{
		Name:      ptr("later"),
		Format:    ptr(models.FormatCSV),
		Frequency: ptr(models.FrequencyDaily),
		StartAt:   ptr(now.Add(time.Hour)),
	})
	require.NoError(t, err)

	n, err := f.svcs.Schedule.RunDue(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	jobs, err := f.repos.Job.GetPendingJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, due.ID, jobs[0].ScheduleID)
	assert.Equal(t, "alice", jobs[0].UserID)
	assert.Equal(t, models.RoleAuditor, jobs[0].Role, "jobs run with the owner's stored role")
	assert.Equal(t, []string{"permit_number", "valuation"}, jobs[0].Columns)

	stored, err := f.repos.Schedule.GetByID(ctx, due.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastRun)
	assert.True(t, stored.LastRun.Equal(now))
	assert.True(t, stored.NextRun.Equal(now.Add(24*time.Hour)))

	// Nothing is due a second time
	n, err = f.svcs.Schedule.RunDue(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestScheduleService_Presets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svcs.Schedule.SavePreset(ctx, alice, &models.PresetRequest{
		Name:    "basic",
		Columns: []string{"permit_number"},
	})
	require.NoError(t, err)

	second, err := f.svcs.Schedule.SavePreset(ctx, alice, &models.PresetRequest{
		Name:    "basic",
		Columns: []string{"permit_number", "status"},
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "saving an existing name updates it")
	assert.Equal(t, []string{"permit_number", "status"}, second.Columns)

	_, err = f.svcs.Schedule.SavePreset(ctx, alice, &models.PresetRequest{Name: "bad", Columns: []string{"ssn"}})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.svcs.Schedule.SavePreset(ctx, alice, &models.PresetRequest{Name: "", Columns: []string{"status"}})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.svcs.Schedule.SavePreset(ctx, alice, &models.PresetRequest{Name: "none"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	presets, err := f.svcs.Schedule.ListPresets(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, presets, 1)

	assert.ErrorIs(t, f.svcs.Schedule.DeletePreset(ctx, bob, first.ID), apperr.ErrNotFound)
	require.NoError(t, f.svcs.Schedule.DeletePreset(ctx, alice, first.ID))
}
