package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrQueueFull is returned when the queue is at capacity.
	ErrQueueFull = errors.New("queue is full")
	// ErrQueueClosed is returned when attempting to enqueue to a closed queue.
	ErrQueueClosed = errors.New("queue is closed")
	// ErrDuplicateJob is returned when a job with the same dedupe key exists.
	ErrDuplicateJob = errors.New("duplicate job")
)

// JobHandler is called by the worker to synthesize a job.
// It must return promptly once ctx is cancelled.
type JobHandler func(ctx context.Context, job *SynthesisJob) error

// IdleCallback is called when the queue becomes idle.
type IdleCallback func()

// JobCompletedCallback is called after each dequeued job finishes, is
// cancelled, fails, or is skipped for lack of a handler.
type JobCompletedCallback func(job *SynthesisJob)

// JobExpiredCallback is called for each job dropped because its TTL
// passed while it waited in the queue.
type JobExpiredCallback func(job *SynthesisJob)

// ShutdownCallback is called once by Stop after the worker has exited.
type ShutdownCallback func()

// Queue is a bounded queue with a single synthesis worker, so at most one
// request to the speech service is outstanding at a time.
type Queue struct {
	mu            sync.Mutex
	jobs          []*SynthesisJob
	capacity      int
	dedupeKeys    map[string]bool
	logger        *slog.Logger
	closed        bool
	idleTimeout   time.Duration
	idleCallback  IdleCallback
	completedFunc JobCompletedCallback
	expiredFunc   JobExpiredCallback
	shutdownFunc  ShutdownCallback
	handler       JobHandler
	current       *SynthesisJob
	cancelCurrent context.CancelFunc
	wg            sync.WaitGroup
	stopCh        chan struct{}
	enqueueCh     chan struct{}
}

// NewQueue creates a new bounded queue.
func NewQueue(capacity int, idleTimeout time.Duration, logger *slog.Logger) *Queue {
	return &Queue{
		jobs:        make([]*SynthesisJob, 0, capacity),
		capacity:    capacity,
		dedupeKeys:  make(map[string]bool),
		logger:      logger,
		idleTimeout: idleTimeout,
		stopCh:      make(chan struct{}),
		enqueueCh:   make(chan struct{}, 1),
	}
}

// SetJobHandler sets the function called to synthesize each job.
func (q *Queue) SetJobHandler(fn JobHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handler = fn
}

// SetIdleCallback sets the function called when the queue becomes idle.
func (q *Queue) SetIdleCallback(fn IdleCallback) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.idleCallback = fn
}

// SetJobCompletedCallback sets the function called after each job.
func (q *Queue) SetJobCompletedCallback(fn JobCompletedCallback) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.completedFunc = fn
}

// SetJobExpiredCallback sets the function called for each expired job.
func (q *Queue) SetJobExpiredCallback(fn JobExpiredCallback) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.expiredFunc = fn
}

// SetShutdownCallback sets the function called after the worker stops.
func (q *Queue) SetShutdownCallback(fn ShutdownCallback) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.shutdownFunc = fn
}

// Enqueue adds a job to the queue.
func (q *Queue) Enqueue(job *SynthesisJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	if len(q.jobs) >= q.capacity {
		return ErrQueueFull
	}

	if job.DedupeKey != "" && q.dedupeKeys[job.DedupeKey] {
		return ErrDuplicateJob
	}

	q.jobs = append(q.jobs, job)
	if job.DedupeKey != "" {
		q.dedupeKeys[job.DedupeKey] = true
	}

	q.logger.Debug("job enqueued",
		"job_id", job.ID,
		"message_id", job.MessageID,
		"queue_depth", len(q.jobs),
	)

	select {
	case q.enqueueCh <- struct{}{}:
	default:
	}

	return nil
}

// Interrupt cancels the in-flight synthesis and clears pending jobs.
// It returns the pending jobs that were dropped.
func (q *Queue) Interrupt() []*SynthesisJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.cancelCurrent != nil {
		q.cancelCurrent()
		q.cancelCurrent = nil
	}

	dropped := make([]*SynthesisJob, len(q.jobs))
	copy(dropped, q.jobs)

	q.jobs = q.jobs[:0]
	q.dedupeKeys = make(map[string]bool)

	q.logger.Info("queue interrupted", "jobs_cleared", len(dropped))
	return dropped
}

// Len returns the current queue length.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Current returns the job being synthesized, if any.
func (q *Queue) Current() *SynthesisJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.current
}

// Start begins the worker goroutine.
func (q *Queue) Start() {
	q.wg.Add(1)
	go q.worker()
}

// Stop cancels in-flight work, waits for the worker, then runs the
// shutdown callback.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	if q.cancelCurrent != nil {
		q.cancelCurrent()
	}
	q.mu.Unlock()

	close(q.stopCh)
	q.wg.Wait()

	q.mu.Lock()
	shutdown := q.shutdownFunc
	q.mu.Unlock()

	if shutdown != nil {
		shutdown()
	}
}

// worker is the single synthesis goroutine.
func (q *Queue) worker() {
	defer q.wg.Done()

	var idleTimer *time.Timer
	var idleTimerCh <-chan time.Time

	stopIdleTimer := func() {
		if idleTimer != nil {
			idleTimer.Stop()
			idleTimerCh = nil
		}
	}

	for {
		select {
		case <-q.stopCh:
			stopIdleTimer()
			return
		default:
		}

		job, expired := q.dequeue()
		q.reportExpired(expired)

		if job != nil {
			stopIdleTimer()
			q.processJob(job)
			continue
		}

		if idleTimerCh == nil && q.idleTimeout > 0 {
			idleTimer = time.NewTimer(q.idleTimeout)
			idleTimerCh = idleTimer.C
		}

		select {
		case <-q.stopCh:
			stopIdleTimer()
			return
		case <-q.enqueueCh:
			continue
		case <-idleTimerCh:
			q.mu.Lock()
			callback := q.idleCallback
			q.mu.Unlock()

			if callback != nil {
				q.logger.Debug("idle timeout reached")
				callback()
			}
			idleTimerCh = nil
		}
	}
}

// dequeue removes and returns the next unexpired job, along with any
// expired jobs it skipped on the way.
func (q *Queue) dequeue() (*SynthesisJob, []*SynthesisJob) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var expired []*SynthesisJob
	for len(q.jobs) > 0 {
		job := q.jobs[0]
		q.jobs = q.jobs[1:]

		if job.DedupeKey != "" {
			delete(q.dedupeKeys, job.DedupeKey)
		}

		if job.IsExpired() {
			q.logger.Debug("skipping expired job", "job_id", job.ID, "message_id", job.MessageID)
			expired = append(expired, job)
			continue
		}

		return job, expired
	}

	return nil, expired
}

// reportExpired runs the expired callback outside the lock.
func (q *Queue) reportExpired(jobs []*SynthesisJob) {
	if len(jobs) == 0 {
		return
	}

	q.mu.Lock()
	callback := q.expiredFunc
	q.mu.Unlock()

	if callback == nil {
		return
	}
	for _, job := range jobs {
		callback(job)
	}
}

// processJob runs a single job with cancellation support.
func (q *Queue) processJob(job *SynthesisJob) {
	q.mu.Lock()
	handler := q.handler
	ctx, cancel := context.WithCancel(context.Background())
	q.cancelCurrent = cancel
	q.current = job
	q.mu.Unlock()

	defer func() {
		cancel()
		q.mu.Lock()
		q.cancelCurrent = nil
		q.current = nil
		completed := q.completedFunc
		q.mu.Unlock()

		if completed != nil {
			completed(job)
		}
	}()

	if handler == nil {
		q.logger.Warn("no job handler set, skipping job", "job_id", job.ID)
		return
	}

	q.logger.Info("processing job",
		"job_id", job.ID,
		"message_id", job.MessageID,
		"text_length", len(job.Text),
	)

	if err := handler(ctx, job); err != nil {
		if errors.Is(err, context.Canceled) {
			q.logger.Info("job cancelled", "job_id", job.ID, "message_id", job.MessageID)
		} else {
			q.logger.Error("job failed", "job_id", job.ID, "message_id", job.MessageID, "error", err)
		}
	} else {
		q.logger.Info("job completed", "job_id", job.ID, "message_id", job.MessageID)
	}
}
