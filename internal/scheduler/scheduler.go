// Package scheduler runs the background jobs: export retention cleanup, due
// export schedules and the permits ETL.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/permit-dashboard-api/internal/config"
	"github.com/permit-dashboard-api/internal/metrics"
	"github.com/permit-dashboard-api/internal/models"
	"github.com/permit-dashboard-api/internal/repository"
	"github.com/permit-dashboard-api/internal/service"
	"github.com/rs/zerolog"
)

// Job names as recorded in job_runs
const (
	JobCleanup         = "cleanup"
	JobExportSchedules = "export_schedules"
	JobETL             = "etl"
)

type runFunc func(ctx context.Context) (map[string]interface{}, error)

type job struct {
	name       string
	interval   time.Duration
	runAtStart bool
	run        runFunc
}

// Scheduler runs each registered job on its own ticker
type Scheduler struct {
	jobs   []job
	runs   repository.AuditRepository
	now    func() time.Time
	log    zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	active bool
}

// New registers the jobs enabled by cfg. Cleanup runs at start and then every
// cleanup interval; ETL is only registered when a source path is configured.
func New(cfg config.SchedulerConfig, svcs *service.Services, runs repository.AuditRepository, log zerolog.Logger) *Scheduler {
	s := &Scheduler{
		runs: runs,
		now:  func() time.Time { return time.Now().UTC() },
		log:  log.With().Str("component", "scheduler").Logger(),
	}

	s.register(JobCleanup, cfg.CleanupInterval, true, func(ctx context.Context) (map[string]interface{}, error) {
		result, err := svcs.Cleanup.Run(ctx, service.SystemActor)
		if result == nil {
			return nil, err
		}
		return map[string]interface{}{
			"deleted": result.DeletedCount,
			"errors":  len(result.Errors),
		}, err
	})

	s.register(JobExportSchedules, cfg.ScheduleInterval, false, func(ctx context.Context) (map[string]interface{}, error) {
		enqueued, err := svcs.Schedule.RunDue(ctx, s.now())
		return map[string]interface{}{"enqueued": enqueued}, err
	})

	if cfg.PermitsSourcePath != "" {
		source := cfg.PermitsSourcePath
		s.register(JobETL, cfg.ETLInterval, true, func(ctx context.Context) (map[string]interface{}, error) {
			result, err := svcs.ETL.ImportFile(ctx, source)
			if err != nil {
				return map[string]interface{}{"source": source}, err
			}
			return map[string]interface{}{
				"source":   source,
				"total":    result.Total,
				"imported": result.Imported,
				"failed":   result.Failed,
			}, nil
		})
	}

	return s
}

func (s *Scheduler) register(name string, interval time.Duration, runAtStart bool, run runFunc) {
	if interval <= 0 {
		s.log.Warn().Str("job", name).Msg("Job disabled: interval must be positive")
		return
	}
	s.jobs = append(s.jobs, job{name: name, interval: interval, runAtStart: runAtStart, run: run})
}

// Jobs returns the names of the registered jobs
func (s *Scheduler) Jobs() []string {
	names := make([]string, 0, len(s.jobs))
	for _, j := range s.jobs {
		names = append(names, j.name)
	}
	return names
}

// Start launches one goroutine per job and returns immediately
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return
	}
	s.active = true
	s.ctx, s.cancel = context.WithCancel(ctx)

	for _, j := range s.jobs {
		s.wg.Add(1)
		go s.loop(j)
	}

	s.log.Info().Strs("jobs", s.Jobs()).Msg("Scheduler started")
}

// Stop cancels every job and waits for running ones to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}

	s.cancel()
	s.wg.Wait()
	s.active = false
	s.log.Info().Msg("Scheduler stopped")
}

func (s *Scheduler) loop(j job) {
	defer s.wg.Done()

	if j.runAtStart {
		s.runOnce(j)
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(j)
		}
	}
}

// runOnce executes a job and records its JobRun. A panic fails the run
// instead of the process.
func (s *Scheduler) runOnce(j job) {
	started := s.now()
	var details map[string]interface{}
	var err error

	func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error().Interface("panic", r).Str("job", j.name).Msg("Scheduled job panicked - recovered")
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		details, err = j.run(s.ctx)
	}()

	run := &models.JobRun{
		ID:         uuid.New().String(),
		JobName:    j.name,
		Status:     models.JobRunSuccess,
		RanAt:      started,
		DurationMs: time.Since(started).Milliseconds(),
		Details:    details,
	}
	if err != nil {
		run.Status = models.JobRunFailed
		run.Error = err.Error()
		s.log.Error().Err(err).Str("job", j.name).Msg("Scheduled job failed")
	} else {
		s.log.Debug().Str("job", j.name).Int64("duration_ms", run.DurationMs).Msg("Scheduled job finished")
	}
	metrics.JobRunsTotal.WithLabelValues(j.name, run.Status).Inc()

	// Recorded even when shutdown cancelled the job
	if recErr := s.runs.RecordRun(context.WithoutCancel(s.ctx), run); recErr != nil {
		s.log.Error().Err(recErr).Str("job", j.name).Msg("Failed to record job run")
	}
}
