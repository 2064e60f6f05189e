package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lgu-admin-api/internal/models"
	appErrors "github.com/noah-isme/lgu-admin-api/pkg/errors"
)

type blockingProcessor struct {
	calls   atomic.Int32
	limits  chan int
	release chan struct{}
	started chan struct{}
}

func newBlockingProcessor() *blockingProcessor {
	return &blockingProcessor{
		limits:  make(chan int, 16),
		release: make(chan struct{}),
		started: make(chan struct{}, 16),
	}
}

func (p *blockingProcessor) Process(ctx context.Context, opts CleanupOptions) ([]CleanupOutcome, error) {
	p.calls.Add(1)
	p.limits <- opts.Limit
	p.started <- struct{}{}
	<-p.release
	return []CleanupOutcome{{QueueID: "q1", Status: models.CleanupCompleted}}, nil
}

type countingProcessor struct {
	calls atomic.Int32
}

func (p *countingProcessor) Process(ctx context.Context, opts CleanupOptions) ([]CleanupOutcome, error) {
	p.calls.Add(1)
	return nil, nil
}

func TestSchedulerSkipsOverlappingTicks(t *testing.T) {
	proc := newBlockingProcessor()
	s := NewCleanupScheduler(proc, SchedulerConfig{Interval: time.Hour, BatchSize: 4}, 0, validator.New(), nil, zap.NewNop())

	s.tick(context.Background())
	<-proc.started
	s.tick(context.Background())
	s.tick(context.Background())

	status := s.Status()
	assert.True(t, status.Processing)
	assert.Equal(t, uint64(2), status.SkippedTicks)
	assert.Equal(t, int32(1), proc.calls.Load())
	assert.Equal(t, 4, <-proc.limits)

	close(proc.release)
	require.Eventually(t, func() bool { return !s.Status().Processing }, time.Second, 5*time.Millisecond)
	status = s.Status()
	require.NotNil(t, status.LastSummary)
	assert.Equal(t, 1, status.LastSummary.Completed)
	assert.NotNil(t, status.LastRunAt)
}

func TestSchedulerForceRunConflictsWithRunningPass(t *testing.T) {
	proc := newBlockingProcessor()
	s := NewCleanupScheduler(proc, SchedulerConfig{Interval: time.Hour, BatchSize: 4}, 0, nil, nil, nil)

	s.tick(context.Background())
	<-proc.started

	_, err := s.ForceRun(context.Background(), CleanupOptions{})
	require.ErrorIs(t, err, appErrors.ErrConflict)

	close(proc.release)
	require.Eventually(t, func() bool { return !s.Status().Processing }, time.Second, 5*time.Millisecond)

	outcomes, err := s.ForceRun(context.Background(), CleanupOptions{Limit: 9})
	require.NoError(t, err)
	assert.Len(t, outcomes, 1)
	<-proc.limits
	assert.Equal(t, 9, <-proc.limits)
}

func TestSchedulerStartStop(t *testing.T) {
	proc := &countingProcessor{}
	s := NewCleanupScheduler(proc, SchedulerConfig{Interval: 10 * time.Millisecond, BatchSize: 2}, 0, nil, nil, zap.NewNop())

	require.NoError(t, s.Start(context.Background()))
	err := s.Start(context.Background())
	require.ErrorIs(t, err, appErrors.ErrConflict)

	status := s.Status()
	assert.True(t, status.Running)
	assert.Equal(t, "10ms", status.Interval)
	assert.NotNil(t, status.NextRunAt)

	require.Eventually(t, func() bool { return proc.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	s.Stop()
	s.Stop()
	assert.False(t, s.Status().Running)
	assert.Nil(t, s.Status().NextRunAt)

	calls := proc.calls.Load()
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, calls, proc.calls.Load())
}

func TestSchedulerSurvivesRequestContextCancel(t *testing.T) {
	proc := &countingProcessor{}
	s := NewCleanupScheduler(proc, SchedulerConfig{Interval: 10 * time.Millisecond, BatchSize: 2}, 0, nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()

	require.Eventually(t, func() bool { return proc.calls.Load() >= 1 }, time.Second, 5*time.Millisecond)
	s.Stop()
}

func TestSchedulerConfigure(t *testing.T) {
	proc := &countingProcessor{}
	s := NewCleanupScheduler(proc, SchedulerConfig{Interval: time.Hour, BatchSize: 2}, 0, validator.New(), nil, nil)

	err := s.Configure(context.Background(), SchedulerConfig{Interval: 0, BatchSize: 2})
	require.ErrorIs(t, err, appErrors.ErrValidation)
	err = s.Configure(context.Background(), SchedulerConfig{Interval: time.Minute, BatchSize: 500})
	require.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Equal(t, "1h0m0s", s.Status().Interval)

	require.NoError(t, s.Configure(context.Background(), SchedulerConfig{Interval: 2 * time.Minute, BatchSize: 20}))
	status := s.Status()
	assert.False(t, status.Running)
	assert.Equal(t, "2m0s", status.Interval)
	assert.Equal(t, 20, status.BatchSize)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	require.NoError(t, s.Configure(context.Background(), SchedulerConfig{Interval: 3 * time.Minute, BatchSize: 5}))
	status = s.Status()
	assert.True(t, status.Running)
	assert.Equal(t, "3m0s", status.Interval)
}

func TestSchedulerRestart(t *testing.T) {
	s := NewCleanupScheduler(&countingProcessor{}, SchedulerConfig{Interval: time.Hour, BatchSize: 2}, 5*time.Millisecond, nil, nil, nil)

	require.NoError(t, s.Restart(context.Background()))
	assert.True(t, s.Status().Running)
	require.NoError(t, s.Restart(context.Background()))
	assert.True(t, s.Status().Running)
	s.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Restart(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, s.Status().Running)
}
