package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/permit-dashboard-api/internal/apperr"
	"github.com/permit-dashboard-api/internal/config"
	"github.com/permit-dashboard-api/internal/models"
	"github.com/permit-dashboard-api/internal/repository"
	"github.com/rs/zerolog"
)

// pendingBatch caps how many pending jobs are claimed per tick
const pendingBatch = 20

// jobService is the concrete implementation of JobService
type jobService struct {
	jobRepo       repository.JobRepository
	exportService ExportService
	pollInterval  time.Duration
	log           zerolog.Logger
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	running       bool
	mu            sync.Mutex
	// Semaphore: buffered channel limiting concurrent exports
	sem chan struct{}
}

// newJobService creates a new JobService with a worker pool sized for file generation
func newJobService(jobRepo repository.JobRepository, cfg config.SchedulerConfig, log zerolog.Logger) *jobService {
	maxWorkers := cfg.MaxConcurrentJobs
	if maxWorkers <= 0 {
		// Exports are mostly CPU-bound encoding with some database I/O
		maxWorkers = runtime.NumCPU() * 2
		if maxWorkers < 2 {
			maxWorkers = 2
		}
		if maxWorkers > 16 {
			maxWorkers = 16
		}
	}

	pollInterval := cfg.JobPollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}

	log.Info().Int("max_workers", maxWorkers).Msg("Initializing export job worker pool")

	return &jobService{
		jobRepo:      jobRepo,
		pollInterval: pollInterval,
		log:          log.With().Str("service", "job").Logger(),
		sem:          make(chan struct{}, maxWorkers),
	}
}

// SetExportService sets the export service for job processing
func (s *jobService) SetExportService(exportService ExportService) {
	s.exportService = exportService
}

// StartProcessor runs the job processor until ctx is cancelled or StopProcessor is called
func (s *jobService) StartProcessor(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.log.Info().Dur("poll_interval", s.pollInterval).Msg("Job processor started")

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.log.Info().Msg("Job processor stopping")
			return
		case <-ticker.C:
			s.processPendingJobs()
		}
	}
}

// StopProcessor stops the processor and waits for in-flight jobs
func (s *jobService) StopProcessor() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.cancel()
	s.wg.Wait()
	s.running = false
	s.log.Info().Msg("Job processor stopped")
}

// RequeueInterrupted returns jobs left processing by a previous run to the
// queue. It must be called before StartProcessor.
func (s *jobService) RequeueInterrupted(ctx context.Context) (int64, error) {
	n, err := s.jobRepo.RequeueProcessing(ctx)
	if err != nil {
		return 0, apperr.Storage("requeue interrupted jobs", err)
	}
	if n > 0 {
		s.log.Warn().Int64("jobs", n).Msg("Requeued jobs interrupted by a previous shutdown")
	}
	return n, nil
}

// processPendingJobs claims pending jobs and runs each on the worker pool
func (s *jobService) processPendingJobs() {
	jobs, err := s.jobRepo.GetPendingJobs(s.ctx, pendingBatch)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to get pending jobs")
		return
	}

	for _, job := range jobs {
		// Blocks while every worker is busy
		select {
		case s.sem <- struct{}{}:
		case <-s.ctx.Done():
			return
		}

		marked, err := s.jobRepo.MarkJobAsProcessing(s.ctx, job.ID)
		if err != nil || !marked {
			<-s.sem
			continue // claimed elsewhere
		}
		now := time.Now().UTC()
		job.Status = models.JobStatusProcessing
		job.StartedAt = &now

		s.wg.Add(1)
		go func(j *models.ExportJob) {
			defer s.wg.Done()
			defer func() { <-s.sem }()

			defer func() {
				if r := recover(); r != nil {
					s.log.Error().
						Interface("panic", r).
						Str("job_id", j.ID).
						Msg("Job processing panicked - recovered")
					completedAt := time.Now().UTC()
					j.Status = models.JobStatusFailed
					j.Error = fmt.Sprintf("internal error: %v", r)
					j.CompletedAt = &completedAt
					if err := s.jobRepo.Update(context.Background(), j); err != nil {
						s.log.Error().Err(err).Str("job_id", j.ID).Msg("Failed to mark job failed")
					}
				}
			}()
			s.processJob(j)
		}(job)
	}
}

// processJob runs a single claimed job
func (s *jobService) processJob(job *models.ExportJob) {
	select {
	case <-s.ctx.Done():
		s.log.Warn().Str("job_id", job.ID).Msg("Job processing cancelled due to shutdown")
		if _, err := s.jobRepo.Requeue(context.WithoutCancel(s.ctx), job.ID); err != nil {
			s.log.Error().Err(err).Str("job_id", job.ID).Msg("Failed to requeue job")
		}
		return
	default:
	}

	if s.exportService == nil {
		s.log.Error().Str("job_id", job.ID).Msg("No export service configured")
		return
	}

	s.log.Info().
		Str("job_id", job.ID).
		Str("user_id", job.UserID).
		Str("format", string(job.Format)).
		Msg("Processing export job")

	if err := s.exportService.RunJob(s.ctx, job); err != nil {
		s.log.Error().Err(err).Str("job_id", job.ID).Msg("Export job failed")
		return
	}

	s.log.Info().
		Str("job_id", job.ID).
		Int("rows", job.RowCount).
		Msg("Export job completed")
}

// GetJob returns a job owned by the caller. Admins may read any job.
func (s *jobService) GetJob(ctx context.Context, caller models.Identity, id string) (*models.ExportJob, error) {
	job, err := s.jobRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Storage("load export job", err)
	}
	if job == nil || (job.UserID != caller.UserID && !caller.IsAdmin()) {
		return nil, apperr.NotFound("export job")
	}
	return job, nil
}
