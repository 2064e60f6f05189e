package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/lgu-admin-api/pkg/errors"
)

type cleanupProcessor interface {
	Process(ctx context.Context, opts CleanupOptions) ([]CleanupOutcome, error)
}

// SchedulerConfig is the runtime-adjustable part of the cleanup schedule.
type SchedulerConfig struct {
	Interval  time.Duration `json:"interval" validate:"required,min=1s,max=24h"`
	BatchSize int           `json:"batch_size" validate:"required,min=1,max=100"`
}

// SchedulerStatus is a point-in-time view of the scheduler.
type SchedulerStatus struct {
	Running      bool            `json:"running"`
	Processing   bool            `json:"processing"`
	Interval     string          `json:"interval"`
	BatchSize    int             `json:"batch_size"`
	LastRunAt    *time.Time      `json:"last_run_at,omitempty"`
	NextRunAt    *time.Time      `json:"next_run_at,omitempty"`
	LastSummary  *CleanupSummary `json:"last_summary,omitempty"`
	LastError    string          `json:"last_error,omitempty"`
	SkippedTicks uint64          `json:"skipped_ticks"`
}

// CleanupScheduler runs cleanup passes on an interval. At most one pass runs at a time; a tick that
// fires while a pass is still running is skipped and counted.
type CleanupScheduler struct {
	processor    cleanupProcessor
	validator    *validator.Validate
	metrics      *MetricsService
	logger       *zap.Logger
	restartDelay time.Duration

	mu        sync.Mutex
	cfg       SchedulerConfig
	cancel    context.CancelFunc
	loopDone  chan struct{}
	nextRunAt *time.Time

	passes      sync.WaitGroup
	processing  atomic.Bool
	skipped     atomic.Uint64
	lastRunAt   *time.Time
	lastSummary *CleanupSummary
	lastError   string
}

// NewCleanupScheduler constructs a stopped scheduler.
func NewCleanupScheduler(processor cleanupProcessor, cfg SchedulerConfig, restartDelay time.Duration, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *CleanupScheduler {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if restartDelay < 0 {
		restartDelay = 0
	}
	return &CleanupScheduler{
		processor:    processor,
		validator:    validate,
		metrics:      metrics,
		logger:       logger,
		restartDelay: restartDelay,
		cfg:          cfg,
	}
}

// Start launches the ticker loop. The loop outlives ctx, which usually belongs to a request,
// and only ends on Stop.
func (s *CleanupScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return appErrors.Clone(appErrors.ErrConflict, "cleanup scheduler is already running")
	}
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.loopDone = make(chan struct{})
	interval := s.cfg.Interval
	next := time.Now().Add(interval).UTC()
	s.nextRunAt = &next

	go s.loop(loopCtx, interval, s.loopDone)
	s.logger.Sugar().Infow("cleanup scheduler started", "interval", interval.String(), "batch_size", s.cfg.BatchSize)
	return nil
}

func (s *CleanupScheduler) loop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			next := time.Now().Add(interval).UTC()
			s.nextRunAt = &next
			s.mu.Unlock()
			s.tick(ctx)
		}
	}
}

// tick starts a pass in the background unless one is already running.
func (s *CleanupScheduler) tick(ctx context.Context) {
	if !s.processing.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		s.metrics.RecordSkippedTick()
		s.logger.Sugar().Warnw("cleanup tick skipped, previous pass still running")
		return
	}
	s.passes.Add(1)
	go func() {
		defer s.passes.Done()
		defer s.processing.Store(false)
		// Stop prevents future ticks only; a running pass finishes its batch.
		_, _ = s.runPass(context.WithoutCancel(ctx), CleanupOptions{Limit: s.batchSize()})
	}()
}

func (s *CleanupScheduler) runPass(ctx context.Context, opts CleanupOptions) ([]CleanupOutcome, error) {
	outcomes, err := s.processor.Process(ctx, opts)

	now := time.Now().UTC()
	s.mu.Lock()
	s.lastRunAt = &now
	if err != nil {
		s.lastError = err.Error()
	} else {
		summary := Summarize(outcomes)
		s.lastSummary = &summary
		s.lastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Sugar().Errorw("cleanup pass failed", "error", err)
	}
	return outcomes, err
}

// Stop ends the loop and waits for an in-flight pass to complete. Stopping a stopped scheduler is a no-op.
func (s *CleanupScheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.loopDone
	s.cancel, s.loopDone, s.nextRunAt = nil, nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.passes.Wait()
	s.logger.Sugar().Infow("cleanup scheduler stopped")
}

// Restart stops the loop, waits the restart delay and starts it again.
func (s *CleanupScheduler) Restart(ctx context.Context) error {
	s.Stop()
	if s.restartDelay > 0 {
		timer := time.NewTimer(s.restartDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return s.Start(ctx)
}

// Configure validates and applies a new schedule, restarting the loop when it is running.
func (s *CleanupScheduler) Configure(ctx context.Context, cfg SchedulerConfig) error {
	if err := s.validator.Struct(cfg); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid scheduler configuration")
	}
	s.mu.Lock()
	s.cfg = cfg
	running := s.cancel != nil
	s.mu.Unlock()

	s.logger.Sugar().Infow("cleanup scheduler reconfigured", "interval", cfg.Interval.String(), "batch_size", cfg.BatchSize)
	if running {
		return s.Restart(ctx)
	}
	return nil
}

// ForceRun executes one pass immediately on the caller's goroutine. It fails with a conflict when a
// pass is already in progress.
func (s *CleanupScheduler) ForceRun(ctx context.Context, opts CleanupOptions) ([]CleanupOutcome, error) {
	if !s.processing.CompareAndSwap(false, true) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a cleanup pass is already running")
	}
	defer s.processing.Store(false)
	if opts.Limit <= 0 {
		opts.Limit = s.batchSize()
	}
	return s.runPass(ctx, opts)
}

// Status snapshots the scheduler state.
func (s *CleanupScheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := SchedulerStatus{
		Running:      s.cancel != nil,
		Processing:   s.processing.Load(),
		Interval:     s.cfg.Interval.String(),
		BatchSize:    s.cfg.BatchSize,
		LastError:    s.lastError,
		SkippedTicks: s.skipped.Load(),
	}
	if s.lastRunAt != nil {
		t := *s.lastRunAt
		status.LastRunAt = &t
	}
	if s.nextRunAt != nil {
		t := *s.nextRunAt
		status.NextRunAt = &t
	}
	if s.lastSummary != nil {
		summary := *s.lastSummary
		status.LastSummary = &summary
	}
	return status
}

func (s *CleanupScheduler) batchSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.BatchSize
}
