package updater

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Scheduler runs the update job on a cron schedule. Runs never overlap: a
// tick that fires while a run is still in progress is dropped.
type Scheduler struct {
	scheduler gocron.Scheduler
	updater   *Updater
	cron      string
	logger    *zap.Logger

	runMu sync.Mutex // serialises the initial run with cron ticks

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	runs    int
	last    *Result
	lastErr error
}

// NewScheduler creates a new update scheduler
func NewScheduler(u *Updater, cron string, logger *zap.Logger) (*Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		scheduler: scheduler,
		updater:   u,
		cron:      cron,
		logger:    logger,
	}, nil
}

// Start registers the job, starts the scheduler and triggers an immediate run.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	_, err := s.scheduler.NewJob(
		gocron.CronJob(s.cron, false),
		gocron.NewTask(func() { s.runOnce(ctx) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("proxy-update"),
	)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to create update job: %w", err)
	}

	s.scheduler.Start()
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})

	// Initial run, outside the cron cadence.
	go func(done chan struct{}) {
		defer close(done)
		s.runOnce(ctx)
	}(s.done)

	s.logger.Info("scheduler started", zap.String("cron", s.cron))
	return nil
}

// Stop cancels the in-flight run and shuts the scheduler down.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is not running")
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	s.logger.Info("scheduler stopped")
	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Last returns the number of completed runs and the outcome of the latest.
func (s *Scheduler) Last() (runs int, res *Result, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs, s.last, s.lastErr
}

func (s *Scheduler) runOnce(ctx context.Context) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if ctx.Err() != nil {
		return
	}

	res, err := s.updater.Run(ctx, Options{})
	if err != nil {
		s.logger.Error("scheduled update failed", zap.Error(err))
	}

	s.mu.Lock()
	s.runs++
	s.last, s.lastErr = res, err
	s.mu.Unlock()
}
