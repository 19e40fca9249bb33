package queue

import (
	"context"
	"time"
)

// Store is the durability layer beneath the pipeline. Jobs move through
// a per-queue ready index ordered by RunAt; schedules live in a single
// index ordered by NextRunAt.
type Store interface {
	// EnqueueJob persists a new job and makes it claimable at its RunAt.
	EnqueueJob(ctx context.Context, job *Job) error
	// DequeueJob claims one due job from the given queues. Exactly one
	// caller wins a given job; nil is returned when nothing is due.
	DequeueJob(ctx context.Context, queues []string) (*Job, error)
	// SaveJob persists the job's current state without re-queueing it.
	SaveJob(ctx context.Context, job *Job) error
	// RequeueJob persists the job and makes it claimable again at its
	// (updated) RunAt. Used for retries.
	RequeueJob(ctx context.Context, job *Job) error
	// GetJob loads a job by id.
	GetJob(ctx context.Context, id string) (*Job, error)

	// UpsertSchedule creates or replaces the schedule stored under
	// (queue, key). Replacing resets the cadence.
	UpsertSchedule(ctx context.Context, schedule *Schedule) error
	// RemoveSchedule deletes the schedule under (queue, key). Removing a
	// missing schedule is not an error.
	RemoveSchedule(ctx context.Context, queue, key string) error
	// GetSchedule loads a schedule; nil when absent.
	GetSchedule(ctx context.Context, queue, key string) (*Schedule, error)
	// DueSchedules lists schedules whose NextRunAt is at or before now.
	DueSchedules(ctx context.Context, now time.Time) ([]*Schedule, error)
}
