package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Scheduler ticks at a fixed interval, fires every due schedule as a
// fire-once job, and advances each schedule's NextRunAt from its cron
// expression. A schedule that missed several ticks fires once, not once
// per missed occurrence.
type Scheduler struct {
	store      Store
	interval   time.Duration
	maxRetries int
	now        func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler polling the store every interval
func NewScheduler(store Store, interval time.Duration, maxRetries int) *Scheduler {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Scheduler{
		store:      store,
		interval:   interval,
		maxRetries: maxRetries,
		now:        time.Now,
		stopCh:     make(chan struct{}),
	}
}

// Start launches the tick loop. It returns immediately.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true

	slog.Info("scheduler starting", "interval", s.interval)

	s.wg.Add(1)
	go s.run()
}

// Stop halts the tick loop and waits for an in-progress tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	slog.Info("scheduler stopped")
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Tick(context.Background())
		}
	}
}

// Tick fires all due schedules once. Exported so tests can drive the
// scheduler without waiting on the ticker.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now().UTC()

	due, err := s.store.DueSchedules(ctx, now)
	if err != nil {
		slog.Error("failed to list due schedules", "error", err)
		return
	}

	for _, schedule := range due {
		s.fire(ctx, schedule, now)
	}
}

// fire enqueues one job for the schedule and advances NextRunAt past now.
func (s *Scheduler) fire(ctx context.Context, schedule *Schedule, now time.Time) {
	job := &Job{
		ID:         uuid.New().String(),
		Queue:      schedule.Queue,
		Name:       schedule.JobName,
		Payload:    schedule.Payload,
		State:      StatePending,
		MaxRetries: s.maxRetries,
		RunAt:      now,
	}
	if err := s.store.EnqueueJob(ctx, job); err != nil {
		// Leave NextRunAt in the past so the next tick retries the fire.
		slog.Error("failed to enqueue scheduled job",
			"queue", schedule.Queue, "key", schedule.Key, "error", err)
		return
	}

	parsed, err := ParseCron(schedule.Spec)
	if err != nil {
		slog.Error("schedule has invalid cron expression, removing",
			"queue", schedule.Queue, "key", schedule.Key, "cron", schedule.Spec)
		if err := s.store.RemoveSchedule(ctx, schedule.Queue, schedule.Key); err != nil {
			slog.Error("failed to remove broken schedule",
				"queue", schedule.Queue, "key", schedule.Key, "error", err)
		}
		return
	}

	schedule.NextRunAt = parsed.Next(now)
	if err := s.store.UpsertSchedule(ctx, schedule); err != nil {
		slog.Error("failed to advance schedule",
			"queue", schedule.Queue, "key", schedule.Key, "error", err)
		return
	}

	slog.Debug("schedule fired",
		"queue", schedule.Queue,
		"key", schedule.Key,
		"job", schedule.JobName,
		"id", job.ID,
		"next_run_at", schedule.NextRunAt,
	)
}
