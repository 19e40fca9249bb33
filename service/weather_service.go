// Package service implements the application's business logic on top of
// the repositories, providers, and the job pipeline.
package service

import (
	"context"
	"log/slog"
	"time"

	"weathernotify.app/errors"
	"weathernotify.app/metrics"
	"weathernotify.app/models"
	"weathernotify.app/providers"
	"weathernotify.app/providers/cache"
)

// WeatherService serves current weather with a read-through cache in
// front of the provider chain. A cached reading is fresh while
// now - FetchedAt is below the configured TTL; stale entries stay in
// place until overwritten by the next successful fetch.
type WeatherService struct {
	provider providers.WeatherProvider
	cache    cache.Store
	ttl      time.Duration
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewWeatherService creates a weather service over the given provider and cache
func NewWeatherService(provider providers.WeatherProvider, store cache.Store, ttl time.Duration, m *metrics.Metrics) *WeatherService {
	return &WeatherService{
		provider: provider,
		cache:    store,
		ttl:      ttl,
		metrics:  m,
		now:      time.Now,
	}
}

// GetWeather returns current weather for the city, from cache when fresh.
func (s *WeatherService) GetWeather(ctx context.Context, city string) (*models.WeatherResponse, error) {
	if city == "" {
		return nil, errors.NewValidationError("city cannot be empty")
	}

	now := s.now().UTC()

	if entry, ok := s.cache.FindByCity(ctx, city); ok && now.Sub(entry.FetchedAt) < s.ttl {
		if s.metrics != nil {
			s.metrics.CacheHits.Inc()
		}
		return &models.WeatherResponse{
			Temperature: entry.Temperature,
			Humidity:    entry.Humidity,
			Description: entry.Description,
		}, nil
	}

	if s.metrics != nil {
		s.metrics.CacheMisses.Inc()
	}

	weather, err := s.provider.GetWeatherData(ctx, city)
	if err != nil {
		return nil, err
	}

	entry := &models.WeatherCacheEntry{
		City:        city,
		Temperature: weather.Temperature,
		Humidity:    weather.Humidity,
		Description: weather.Description,
		FetchedAt:   now,
	}
	if err := s.cache.Upsert(ctx, entry); err != nil {
		// A write-through failure only costs the next caller a fetch.
		slog.Error("failed to cache weather reading", "city", city, "error", err)
	}

	return weather, nil
}
