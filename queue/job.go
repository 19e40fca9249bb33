// Package queue implements the durable job pipeline: a Redis-backed
// store of jobs and recurring schedules, a worker pool with retry and
// backoff, and a cron scheduler that turns due schedules into jobs.
// Delivery is at-least-once; handlers must tolerate redelivery.
package queue

import (
	"encoding/json"
	"time"
)

// State represents the lifecycle state of a job.
type State string

const (
	// StatePending means the job is waiting to be picked up by a worker.
	StatePending State = "pending"
	// StateRunning means a worker is currently executing the job.
	StateRunning State = "running"
	// StateRetrying means the job failed but is scheduled for retry.
	StateRetrying State = "retrying"
	// StateCompleted means the job finished successfully.
	StateCompleted State = "completed"
	// StateFailed means the job exhausted its retries and will not run again.
	StateFailed State = "failed"
)

// Job is a unit of work on a queue. Name discriminates handler routing
// within the queue; Payload is always JSON.
type Job struct {
	ID         string          `json:"id"`
	Queue      string          `json:"queue"`
	Name       string          `json:"name"`
	Payload    json.RawMessage `json:"payload"`
	State      State           `json:"state"`
	MaxRetries int             `json:"max_retries"`
	RetryCount int             `json:"retry_count"`
	LastError  string          `json:"last_error,omitempty"`
	RunAt      time.Time       `json:"run_at"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Schedule is a recurring trigger. Key identifies it for idempotent
// upsert and cancellation; firing a schedule enqueues a copy of the
// configured job and advances NextRunAt along the cron expression.
type Schedule struct {
	Key       string          `json:"key"`
	Queue     string          `json:"queue"`
	JobName   string          `json:"job_name"`
	Spec      string          `json:"spec"`
	Payload   json.RawMessage `json:"payload"`
	NextRunAt time.Time       `json:"next_run_at"`
}
