package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"weathernotify.app/errors"
)

// DefaultMaxRetries is the retry budget applied to fire-once jobs.
const DefaultMaxRetries = 3

// cronParser accepts standard 5-field cron expressions.
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// ParseCron parses a 5-field cron expression.
func ParseCron(expr string) (cron.Schedule, error) {
	return cronParser.Parse(expr)
}

// Pipeline is the enqueue/schedule facade over the Store. Workers and the
// scheduler consume what it produces.
type Pipeline struct {
	store      Store
	maxRetries int
	now        func() time.Time
}

// NewPipeline creates a pipeline over the given store
func NewPipeline(store Store, maxRetries int) *Pipeline {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Pipeline{
		store:      store,
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

// Enqueue adds a fire-once job to the queue with at-least-once delivery
// and the default retry policy.
func (p *Pipeline) Enqueue(ctx context.Context, queue, jobName string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.NewQueueError("failed to marshal job payload", err)
	}

	job := &Job{
		ID:         uuid.New().String(),
		Queue:      queue,
		Name:       jobName,
		Payload:    data,
		State:      StatePending,
		MaxRetries: p.maxRetries,
		RunAt:      p.now().UTC(),
	}

	if err := p.store.EnqueueJob(ctx, job); err != nil {
		return errors.NewQueueError("failed to enqueue job", err)
	}

	slog.Debug("job enqueued", "queue", queue, "job", jobName, "id", job.ID)
	return nil
}

// Schedule upserts a recurring trigger identified by key. Re-scheduling
// the same key replaces the prior cadence.
func (p *Pipeline) Schedule(ctx context.Context, queue, key, cronExpr, jobName string, payload interface{}) error {
	schedule, err := ParseCron(cronExpr)
	if err != nil {
		return errors.NewValidationError("invalid cron expression: " + cronExpr)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return errors.NewQueueError("failed to marshal schedule payload", err)
	}

	entry := &Schedule{
		Key:       key,
		Queue:     queue,
		JobName:   jobName,
		Spec:      cronExpr,
		Payload:   data,
		NextRunAt: schedule.Next(p.now().UTC()),
	}

	if err := p.store.UpsertSchedule(ctx, entry); err != nil {
		return errors.NewQueueError("failed to upsert schedule", err)
	}

	slog.Info("schedule upserted", "queue", queue, "key", key, "cron", cronExpr, "next_run_at", entry.NextRunAt)
	return nil
}

// CancelSchedule removes the recurring trigger identified by key.
// Cancelling an unknown key is a no-op.
func (p *Pipeline) CancelSchedule(ctx context.Context, queue, key string) error {
	if err := p.store.RemoveSchedule(ctx, queue, key); err != nil {
		return errors.NewQueueError("failed to remove schedule", err)
	}

	slog.Info("schedule removed", "queue", queue, "key", key)
	return nil
}
