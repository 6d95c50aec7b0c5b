package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/permit-dashboard-api/internal/apperr"
	"github.com/permit-dashboard-api/internal/models"
	"github.com/permit-dashboard-api/internal/repository"
	"github.com/permit-dashboard-api/internal/validation"
	"github.com/rs/zerolog"
)

// scheduleService is the concrete implementation of ScheduleService
type scheduleService struct {
	repos *repository.Repositories
	users UserDirectory
	now   func() time.Time
	log   zerolog.Logger
}

// newScheduleService creates a new ScheduleService
func newScheduleService(repos *repository.Repositories, users UserDirectory, log zerolog.Logger) *scheduleService {
	return &scheduleService{
		repos: repos,
		users: users,
		now:   func() time.Time { return time.Now().UTC() },
		log:   log.With().Str("service", "schedule").Logger(),
	}
}

// NextRun returns the run following from for the given frequency. Monthly
// schedules run on the first day of the next month at the same clock time.
func NextRun(from time.Time, freq models.Frequency) time.Time {
	switch freq {
	case models.FrequencyHourly:
		return from.Add(time.Hour)
	case models.FrequencyWeekly:
		return from.AddDate(0, 0, 7)
	case models.FrequencyMonthly:
		return time.Date(from.Year(), from.Month()+1, 1,
			from.Hour(), from.Minute(), from.Second(), 0, from.Location())
	default:
		return from.AddDate(0, 0, 1)
	}
}

// CreateSchedule validates req and stores an active schedule for the caller
func (s *scheduleService) CreateSchedule(ctx context.Context, caller models.Identity, req *models.ScheduleRequest) (*models.ExportSchedule, error) {
	if req == nil || req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		return nil, apperr.Validation("name is required")
	}
	if req.Format == nil {
		return nil, apperr.Validation("format is required")
	}
	if req.Frequency == nil {
		return nil, apperr.Validation("frequency is required")
	}

	now := s.now()
	schedule := &models.ExportSchedule{
		ID:        uuid.New().String(),
		UserID:    caller.UserID,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := applyScheduleRequest(schedule, req); err != nil {
		return nil, err
	}
	if req.StartAt != nil {
		schedule.NextRun = req.StartAt.UTC()
	} else {
		schedule.NextRun = NextRun(now, schedule.Frequency)
	}

	if err := s.repos.Schedule.Create(ctx, schedule); err != nil {
		return nil, apperr.Storage("create schedule", err)
	}

	s.log.Info().
		Str("schedule_id", schedule.ID).
		Str("user_id", schedule.UserID).
		Str("frequency", string(schedule.Frequency)).
		Time("next_run", schedule.NextRun).
		Msg("Export schedule created")

	return schedule, nil
}

// ListSchedules returns the caller's schedules
func (s *scheduleService) ListSchedules(ctx context.Context, caller models.Identity) ([]*models.ExportSchedule, error) {
	schedules, err := s.repos.Schedule.List(ctx, caller.UserID, false)
	if err != nil {
		return nil, apperr.Storage("list schedules", err)
	}
	return schedules, nil
}

// UpdateSchedule applies the set fields of req. Setting active=false pauses
// the schedule without deleting it.
func (s *scheduleService) UpdateSchedule(ctx context.Context, caller models.Identity, id string, req *models.ScheduleRequest) (*models.ExportSchedule, error) {
	if req == nil {
		return nil, apperr.Validation("request body is required")
	}
	schedule, err := s.owned(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	freq := schedule.Frequency
	if err := applyScheduleRequest(schedule, req); err != nil {
		return nil, err
	}

	now := s.now()
	switch {
	case req.StartAt != nil:
		schedule.NextRun = req.StartAt.UTC()
	case schedule.Frequency != freq:
		schedule.NextRun = NextRun(now, schedule.Frequency)
	}
	schedule.UpdatedAt = now

	if err := s.repos.Schedule.Update(ctx, schedule); err != nil {
		return nil, apperr.Storage("update schedule", err)
	}
	return schedule, nil
}

// DeleteSchedule removes one of the caller's schedules
func (s *scheduleService) DeleteSchedule(ctx context.Context, caller models.Identity, id string) error {
	deleted, err := s.repos.Schedule.Delete(ctx, id, caller.UserID)
	if err != nil {
		return apperr.Storage("delete schedule", err)
	}
	if !deleted {
		return apperr.NotFound("schedule")
	}
	return nil
}

// RunDue enqueues an export job for every active schedule due at now and
// returns how many were enqueued
func (s *scheduleService) RunDue(ctx context.Context, now time.Time) (int, error) {
	now = now.UTC()
	due, err := s.repos.Schedule.ListDue(ctx, now)
	if err != nil {
		return 0, apperr.Storage("list due schedules", err)
	}

	enqueued := 0
	for _, schedule := range due {
		if err := ctx.Err(); err != nil {
			return enqueued, err
		}

		if err := s.enqueue(ctx, schedule, now); err != nil {
			s.log.Error().Err(err).
				Str("schedule_id", schedule.ID).
				Str("user_id", schedule.UserID).
				Msg("Failed to enqueue scheduled export")
		} else {
			enqueued++
		}

		// Advance even on failure so one broken schedule cannot run every tick
		last := now
		schedule.LastRun = &last
		schedule.NextRun = NextRun(now, schedule.Frequency)
		schedule.UpdatedAt = now
		if err := s.repos.Schedule.Update(ctx, schedule); err != nil {
			s.log.Error().Err(err).Str("schedule_id", schedule.ID).Msg("Failed to advance schedule")
		}
	}

	return enqueued, nil
}

func (s *scheduleService) enqueue(ctx context.Context, schedule *models.ExportSchedule, now time.Time) error {
	identity, err := s.users.Resolve(ctx, schedule.UserID, "")
	if err != nil {
		return err
	}

	job := &models.ExportJob{
		ID:         uuid.New().String(),
		UserID:     schedule.UserID,
		Role:       identity.Role,
		Format:     schedule.Format,
		BaseName:   schedule.Name,
		Columns:    schedule.Columns,
		Filters:    schedule.Filters,
		ScheduleID: schedule.ID,
		Status:     models.JobStatusPending,
		CreatedAt:  now,
	}
	if err := s.repos.Job.Create(ctx, job); err != nil {
		return apperr.Storage("create export job", err)
	}

	s.log.Info().
		Str("schedule_id", schedule.ID).
		Str("job_id", job.ID).
		Msg("Scheduled export enqueued")
	return nil
}

// SavePreset creates the caller's preset or overwrites the one with the same name
func (s *scheduleService) SavePreset(ctx context.Context, caller models.Identity, req *models.PresetRequest) (*models.ExportPreset, error) {
	if req == nil {
		return nil, apperr.Validation("request body is required")
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := validation.ValidateStruct(req); err != nil {
		return nil, err
	}
	if err := validateColumns(req.Columns); err != nil {
		return nil, err
	}
	if err := validateFilter(req.Filters); err != nil {
		return nil, err
	}

	now := s.now()
	preset, err := s.repos.Preset.Save(ctx, &models.ExportPreset{
		ID:        uuid.New().String(),
		UserID:    caller.UserID,
		Name:      req.Name,
		Columns:   req.Columns,
		Filters:   req.Filters,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, apperr.Storage("save preset", err)
	}
	return preset, nil
}

// ListPresets returns the caller's presets
func (s *scheduleService) ListPresets(ctx context.Context, caller models.Identity) ([]*models.ExportPreset, error) {
	presets, err := s.repos.Preset.List(ctx, caller.UserID)
	if err != nil {
		return nil, apperr.Storage("list presets", err)
	}
	return presets, nil
}

// DeletePreset removes one of the caller's presets
func (s *scheduleService) DeletePreset(ctx context.Context, caller models.Identity, id string) error {
	deleted, err := s.repos.Preset.Delete(ctx, id, caller.UserID)
	if err != nil {
		return apperr.Storage("delete preset", err)
	}
	if !deleted {
		return apperr.NotFound("preset")
	}
	return nil
}

// owned loads a schedule and hides it from anyone but its owner
func (s *scheduleService) owned(ctx context.Context, caller models.Identity, id string) (*models.ExportSchedule, error) {
	schedule, err := s.repos.Schedule.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Storage("load schedule", err)
	}
	if schedule == nil || schedule.UserID != caller.UserID {
		return nil, apperr.NotFound("schedule")
	}
	return schedule, nil
}

// applyScheduleRequest copies the set fields of req onto schedule
func applyScheduleRequest(schedule *models.ExportSchedule, req *models.ScheduleRequest) error {
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return apperr.Validation("name must not be empty")
		}
		schedule.Name = name
	}
	if req.Format != nil {
		if !models.ValidFormats[*req.Format] {
			return apperr.UnsupportedFormat(string(*req.Format))
		}
		schedule.Format = *req.Format
	}
	if req.Frequency != nil {
		if !models.ValidFrequencies[*req.Frequency] {
			return apperr.Validation("frequency must be one of: hourly, daily, weekly, monthly")
		}
		schedule.Frequency = *req.Frequency
	}
	if req.Columns != nil {
		if err := validateColumns(req.Columns); err != nil {
			return err
		}
		schedule.Columns = req.Columns
	}
	if req.Filters != nil {
		if err := validateFilter(*req.Filters); err != nil {
			return err
		}
		schedule.Filters = *req.Filters
	}
	if req.Active != nil {
		schedule.Active = *req.Active
	}
	return nil
}
