package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is where a tracked job is in its lifecycle.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateRetrying  State = "retrying"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

var (
	// ErrNotStarted is returned by Enqueue before Start or after Stop.
	ErrNotStarted = errors.New("queue not started")
	// ErrFull is returned when the buffer has no room. Enqueue never blocks the caller.
	ErrFull = errors.New("queue is full")
	// ErrDuplicate is returned when a job with the same key is queued, running or waiting to retry.
	ErrDuplicate = errors.New("a job with the same key is already pending")
)

// Job represents a queued background task. Jobs sharing a non-empty Key never overlap.
type Job struct {
	ID       string
	Type     string
	Key      string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Status is a point-in-time view of a job.
type Status struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	State      State      `json:"state"`
	Attempts   int        `json:"attempts"`
	LastError  string     `json:"last_error,omitempty"`
	EnqueuedAt time.Time  `json:"enqueued_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Handler processes a job.
type Handler func(context.Context, Job) error

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	// History is how many finished jobs stay queryable through Status.
	History int
	Logger  *zap.Logger
}

// Queue is an in-memory job dispatcher backed by goroutines that remembers recent job outcomes.
type Queue struct {
	name    string
	handler Handler

	workers    int
	maxRetries int
	retryDelay time.Duration
	history    int
	logger     *zap.Logger

	jobs    chan Job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool

	statuses map[string]*Status
	keys     map[string]string
	finished []string
}

// NewQueue builds a new queue with the provided handler.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.History <= 0 {
		cfg.History = 100
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue{
		name:       name,
		handler:    handler,
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		history:    cfg.History,
		logger:     cfg.Logger,
		jobs:       make(chan Job, cfg.BufferSize),
		statuses:   make(map[string]*Status),
		keys:       make(map[string]string),
	}
}

// Start begins worker consumption. Safe to call once.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.started = true
	q.logger.Sugar().Infow("queue started", "queue", q.name, "workers", q.workers)
}

// Stop cancels workers and waits for them to exit. Jobs still buffered are abandoned.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.started = false
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()
	q.logger.Sugar().Infow("queue stopped", "queue", q.name)
}

// Enqueue admits a job and returns its id. A missing id is generated.
func (q *Queue) Enqueue(job Job) (string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.started {
		return "", fmt.Errorf("%s: %w", q.name, ErrNotStarted)
	}
	if job.Key != "" {
		if owner, busy := q.keys[job.Key]; busy && owner != job.ID {
			return "", fmt.Errorf("%s: %w (job %s)", q.name, ErrDuplicate, owner)
		}
	}
	select {
	case q.jobs <- job:
	default:
		return "", fmt.Errorf("%s: %w", q.name, ErrFull)
	}

	if job.Key != "" {
		q.keys[job.Key] = job.ID
	}
	if st, ok := q.statuses[job.ID]; ok {
		st.State = StateQueued
	} else {
		q.statuses[job.ID] = &Status{ID: job.ID, Type: job.Type, State: StateQueued, EnqueuedAt: job.Enqueued}
	}
	return job.ID, nil
}

// Status returns a copy of the job's last known status.
func (q *Queue) Status(id string) (Status, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	st, ok := q.statuses[id]
	if !ok {
		return Status{}, false
	}
	return *st, true
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			q.markRunning(job.ID)
			if err := q.handler(q.ctx, job); err != nil {
				q.handleFailure(job, err)
				continue
			}
			q.finish(job, StateSucceeded, nil)
		}
	}
}

func (q *Queue) handleFailure(job Job, err error) {
	job.Attempt++
	if job.Attempt > q.maxRetries {
		q.logger.Sugar().Errorw("job failed", "queue", q.name, "job_id", job.ID, "type", job.Type, "attempts", job.Attempt, "error", err)
		q.finish(job, StateFailed, err)
		return
	}
	q.logger.Sugar().Warnw("job failed, retrying", "queue", q.name, "job_id", job.ID, "type", job.Type, "attempt", job.Attempt, "error", err)
	q.setState(job.ID, StateRetrying, err)

	go func(j Job) {
		timer := time.NewTimer(q.retryDelay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			q.finish(j, StateFailed, q.ctx.Err())
		case <-timer.C:
			if _, err := q.Enqueue(j); err != nil {
				q.logger.Sugar().Errorw("failed to requeue job", "queue", q.name, "job_id", j.ID, "error", err)
				q.finish(j, StateFailed, err)
			}
		}
	}(job)
}

func (q *Queue) markRunning(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if st, ok := q.statuses[id]; ok {
		now := time.Now().UTC()
		st.State = StateRunning
		st.Attempts++
		if st.StartedAt == nil {
			st.StartedAt = &now
		}
	}
}

func (q *Queue) setState(id string, state State, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if st, ok := q.statuses[id]; ok {
		st.State = state
		if err != nil {
			st.LastError = err.Error()
		}
	}
}

func (q *Queue) finish(job Job, state State, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if job.Key != "" && q.keys[job.Key] == job.ID {
		delete(q.keys, job.Key)
	}
	st, ok := q.statuses[job.ID]
	if !ok {
		return
	}
	now := time.Now().UTC()
	st.State = state
	st.FinishedAt = &now
	if err != nil {
		st.LastError = err.Error()
	}

	q.finished = append(q.finished, job.ID)
	for len(q.finished) > q.history {
		delete(q.statuses, q.finished[0])
		q.finished = q.finished[1:]
	}
}
