package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis key layout. Everything is prefixed with "queue:" to avoid
// collisions with the weather cache sharing the same database.
//
//	queue:job:{id}              job record (JSON)
//	queue:ready:{queue}         sorted set of job ids scored by RunAt
//	queue:schedule:{queue}:{key} schedule record (JSON)
//	queue:schedules             sorted set of "{queue}|{key}" scored by NextRunAt

const (
	jobKeyPrefix      = "queue:job:"
	readyKeyPrefix    = "queue:ready:"
	scheduleKeyPrefix = "queue:schedule:"
	scheduleIndexKey  = "queue:schedules"
)

func jobKey(id string) string          { return jobKeyPrefix + id }
func readyKey(queue string) string     { return readyKeyPrefix + queue }
func scheduleKey(q, key string) string { return fmt.Sprintf("%s%s:%s", scheduleKeyPrefix, q, key) }
func scheduleMember(q, key string) string {
	return q + "|" + key
}

// RedisStore implements Store on a shared Redis instance so every worker
// process pulls from the same durable queue.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a queue store backed by the given Redis client
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// EnqueueJob stores the job record and indexes it in its queue's ready set
func (s *RedisStore) EnqueueJob(ctx context.Context, job *Job) error {
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.RunAt.IsZero() {
		job.RunAt = now
	}
	job.UpdatedAt = now
	if job.State == "" {
		job.State = StatePending
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, jobKey(job.ID), data, 0)
	pipe.ZAdd(ctx, readyKey(job.Queue), &redis.Z{
		Score:  float64(job.RunAt.UnixMilli()),
		Member: job.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

// DequeueJob claims one due job across the given queues. The ZRem on the
// ready set is the claim: only the caller that removes the member owns
// the job.
func (s *RedisStore) DequeueJob(ctx context.Context, queues []string) (*Job, error) {
	now := time.Now().UTC()
	maxScore := fmt.Sprintf("%d", now.UnixMilli())

	for _, q := range queues {
		ids, err := s.client.ZRangeByScore(ctx, readyKey(q), &redis.ZRangeBy{
			Min:   "-inf",
			Max:   maxScore,
			Count: 8,
		}).Result()
		if err != nil {
			return nil, fmt.Errorf("scan ready jobs: %w", err)
		}

		for _, id := range ids {
			removed, err := s.client.ZRem(ctx, readyKey(q), id).Result()
			if err != nil {
				return nil, fmt.Errorf("claim job: %w", err)
			}
			if removed == 0 {
				continue // another worker won this job
			}

			job, err := s.GetJob(ctx, id)
			if err != nil {
				return nil, err
			}
			if job == nil {
				continue
			}

			job.State = StateRunning
			job.UpdatedAt = now
			if err := s.SaveJob(ctx, job); err != nil {
				return nil, err
			}
			return job, nil
		}
	}

	return nil, nil
}

// SaveJob persists the job record without touching the ready index
func (s *RedisStore) SaveJob(ctx context.Context, job *Job) error {
	job.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	if err := s.client.Set(ctx, jobKey(job.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	return nil
}

// RequeueJob persists the job and re-indexes it at its RunAt
func (s *RedisStore) RequeueJob(ctx context.Context, job *Job) error {
	job.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, jobKey(job.ID), data, 0)
	pipe.ZAdd(ctx, readyKey(job.Queue), &redis.Z{
		Score:  float64(job.RunAt.UnixMilli()),
		Member: job.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("requeue job: %w", err)
	}
	return nil
}

// GetJob loads a job record by id; nil when absent
func (s *RedisStore) GetJob(ctx context.Context, id string) (*Job, error) {
	val, err := s.client.Get(ctx, jobKey(id)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("get job: %w", err)
	}

	var job Job
	if err := json.Unmarshal([]byte(val), &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return &job, nil
}

// UpsertSchedule creates or replaces the schedule under (queue, key)
func (s *RedisStore) UpsertSchedule(ctx context.Context, schedule *Schedule) error {
	data, err := json.Marshal(schedule)
	if err != nil {
		return fmt.Errorf("marshal schedule: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, scheduleKey(schedule.Queue, schedule.Key), data, 0)
	pipe.ZAdd(ctx, scheduleIndexKey, &redis.Z{
		Score:  float64(schedule.NextRunAt.UnixMilli()),
		Member: scheduleMember(schedule.Queue, schedule.Key),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("upsert schedule: %w", err)
	}
	return nil
}

// RemoveSchedule deletes the schedule under (queue, key)
func (s *RedisStore) RemoveSchedule(ctx context.Context, queue, key string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, scheduleKey(queue, key))
	pipe.ZRem(ctx, scheduleIndexKey, scheduleMember(queue, key))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remove schedule: %w", err)
	}
	return nil
}

// GetSchedule loads a schedule; nil when absent
func (s *RedisStore) GetSchedule(ctx context.Context, queue, key string) (*Schedule, error) {
	val, err := s.client.Get(ctx, scheduleKey(queue, key)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("get schedule: %w", err)
	}

	var schedule Schedule
	if err := json.Unmarshal([]byte(val), &schedule); err != nil {
		return nil, fmt.Errorf("unmarshal schedule: %w", err)
	}
	return &schedule, nil
}

// DueSchedules lists schedules whose NextRunAt is at or before now
func (s *RedisStore) DueSchedules(ctx context.Context, now time.Time) ([]*Schedule, error) {
	members, err := s.client.ZRangeByScore(ctx, scheduleIndexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now.UnixMilli()),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("scan due schedules: %w", err)
	}

	schedules := make([]*Schedule, 0, len(members))
	for _, member := range members {
		queue, key, ok := splitScheduleMember(member)
		if !ok {
			continue
		}

		schedule, err := s.GetSchedule(ctx, queue, key)
		if err != nil {
			return nil, err
		}
		if schedule == nil {
			// Index entry outlived its record; drop it.
			_ = s.client.ZRem(ctx, scheduleIndexKey, member).Err()
			continue
		}
		schedules = append(schedules, schedule)
	}

	return schedules, nil
}

func splitScheduleMember(member string) (queue, key string, ok bool) {
	idx := strings.Index(member, "|")
	if idx < 0 {
		return "", "", false
	}
	return member[:idx], member[idx+1:], true
}
