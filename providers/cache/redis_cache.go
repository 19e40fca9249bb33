package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"
	"weathernotify.app/models"
)

// RedisStore keeps weather cache entries in Redis so all worker
// processes observe the same last-fetched reading per city.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a weather cache backed by the given Redis client
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func weatherKey(city string) string {
	return fmt.Sprintf("weather:%s", city)
}

// FindByCity returns the stored entry for the city, if any. Read errors
// are treated as cache misses so a degraded Redis never blocks a fetch.
func (s *RedisStore) FindByCity(ctx context.Context, city string) (*models.WeatherCacheEntry, bool) {
	val, err := s.client.Get(ctx, weatherKey(city)).Result()
	if err != nil {
		if err != redis.Nil {
			slog.Error("weather cache get error", "error", err, "city", city)
		}
		return nil, false
	}

	var entry models.WeatherCacheEntry
	if err := json.Unmarshal([]byte(val), &entry); err != nil {
		slog.Error("weather cache unmarshal error", "error", err, "city", city)
		return nil, false
	}

	return &entry, true
}

// Upsert overwrites the entry for the city. No broker-side expiry is set;
// staleness is decided by the reader from FetchedAt.
func (s *RedisStore) Upsert(ctx context.Context, entry *models.WeatherCacheEntry) error {
	if entry == nil {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal weather cache entry: %w", err)
	}

	if err := s.client.Set(ctx, weatherKey(entry.City), data, 0).Err(); err != nil {
		return fmt.Errorf("write weather cache entry: %w", err)
	}

	return nil
}
