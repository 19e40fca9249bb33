package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"weathernotify.app/metrics"
)

// Processor handles one job type. Handle does the work; Completed and
// Failed are lifecycle hooks invoked after success and after retry
// exhaustion respectively.
type Processor interface {
	Handle(ctx context.Context, job *Job) error
	Completed(job *Job)
	Failed(job *Job, err error)
}

// WorkerPool runs concurrent workers that claim due jobs from the store
// and route them to processors by job name. A job claimed by one worker
// is invisible to the others; failures are retried with backoff until the
// job's retry budget is exhausted.
type WorkerPool struct {
	store        Store
	queues       []string
	processors   map[string]Processor
	concurrency  int
	pollInterval time.Duration
	backoff      Backoff
	metrics      *metrics.Metrics

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// WorkerPoolOption configures a WorkerPool.
type WorkerPoolOption func(*WorkerPool)

// WithConcurrency sets the number of worker goroutines.
func WithConcurrency(n int) WorkerPoolOption {
	return func(p *WorkerPool) { p.concurrency = n }
}

// WithPollInterval sets how long an idle worker sleeps between polls.
func WithPollInterval(d time.Duration) WorkerPoolOption {
	return func(p *WorkerPool) { p.pollInterval = d }
}

// WithBackoff sets the retry delay strategy.
func WithBackoff(b Backoff) WorkerPoolOption {
	return func(p *WorkerPool) { p.backoff = b }
}

// WithMetrics records job outcomes on the given collectors.
func WithMetrics(m *metrics.Metrics) WorkerPoolOption {
	return func(p *WorkerPool) { p.metrics = m }
}

// NewWorkerPool creates a pool polling the given queues
func NewWorkerPool(store Store, queues []string, opts ...WorkerPoolOption) *WorkerPool {
	pool := &WorkerPool{
		store:        store,
		queues:       queues,
		processors:   make(map[string]Processor),
		concurrency:  4,
		pollInterval: time.Second,
		backoff:      DefaultBackoff(),
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(pool)
	}
	return pool
}

// Register routes jobs with the given name to the processor. Must be
// called before Start.
func (p *WorkerPool) Register(jobName string, processor Processor) {
	p.processors[jobName] = processor
}

// Start launches the worker goroutines. It returns immediately.
func (p *WorkerPool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}
	p.running = true

	slog.Info("worker pool starting", "concurrency", p.concurrency, "queues", p.queues)

	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go p.pollLoop()
	}
}

// Stop signals workers to stop pulling new jobs and waits for in-flight
// jobs to finish.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	close(p.stopCh)
	p.wg.Wait()
	slog.Info("worker pool stopped")
}

func (p *WorkerPool) pollLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		job, err := p.store.DequeueJob(context.Background(), p.queues)
		if err != nil {
			slog.Error("dequeue error", "error", err)
			p.sleep()
			continue
		}
		if job == nil {
			p.sleep()
			continue
		}

		p.execute(job)
	}
}

func (p *WorkerPool) sleep() {
	select {
	case <-p.stopCh:
	case <-time.After(p.pollInterval):
	}
}

// execute runs a claimed job through its processor and settles the
// outcome: completed, retrying with backoff, or terminally failed.
func (p *WorkerPool) execute(job *Job) {
	ctx := context.Background()

	processor, ok := p.processors[job.Name]
	if !ok {
		// No handler in this process; make the job visible again so a
		// process that owns the handler can claim it.
		job.State = StateRetrying
		job.RunAt = time.Now().UTC().Add(p.pollInterval)
		job.LastError = fmt.Sprintf("no processor registered for job %q", job.Name)
		if err := p.store.RequeueJob(ctx, job); err != nil {
			slog.Error("failed to requeue unroutable job", "job", job.Name, "id", job.ID, "error", err)
		}
		return
	}

	start := time.Now()
	err := processor.Handle(ctx, job)
	elapsed := time.Since(start)

	if p.metrics != nil {
		p.metrics.JobDuration.WithLabelValues(job.Queue, job.Name).Observe(elapsed.Seconds())
	}

	if err == nil {
		p.settleSuccess(ctx, job, processor, elapsed)
		return
	}
	p.settleFailure(ctx, job, processor, err)
}

func (p *WorkerPool) settleSuccess(ctx context.Context, job *Job, processor Processor, elapsed time.Duration) {
	job.State = StateCompleted
	job.LastError = ""
	if err := p.store.SaveJob(ctx, job); err != nil {
		slog.Error("failed to save completed job", "id", job.ID, "error", err)
	}

	if p.metrics != nil {
		p.metrics.JobsProcessed.WithLabelValues(job.Queue, job.Name).Inc()
	}

	slog.Info("job completed", "queue", job.Queue, "job", job.Name, "id", job.ID, "duration", elapsed)
	processor.Completed(job)
}

func (p *WorkerPool) settleFailure(ctx context.Context, job *Job, processor Processor, handlerErr error) {
	job.RetryCount++
	job.LastError = handlerErr.Error()

	if job.RetryCount <= job.MaxRetries {
		delay := p.backoff.Delay(job.RetryCount)
		job.State = StateRetrying
		job.RunAt = time.Now().UTC().Add(delay)

		if err := p.store.RequeueJob(ctx, job); err != nil {
			slog.Error("failed to requeue job for retry", "id", job.ID, "error", err)
			return
		}

		slog.Warn("job scheduled for retry",
			"queue", job.Queue,
			"job", job.Name,
			"id", job.ID,
			"attempt", job.RetryCount,
			"max_retries", job.MaxRetries,
			"delay", delay,
			"error", handlerErr,
		)
		return
	}

	job.State = StateFailed
	if err := p.store.SaveJob(ctx, job); err != nil {
		slog.Error("failed to save failed job", "id", job.ID, "error", err)
	}

	if p.metrics != nil {
		p.metrics.JobsFailed.WithLabelValues(job.Queue, job.Name).Inc()
	}

	slog.Error("job failed terminally", "queue", job.Queue, "job", job.Name, "id", job.ID, "error", handlerErr)
	processor.Failed(job, handlerErr)
}
