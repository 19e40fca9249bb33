package providers

import (
	"context"
	"fmt"
	"log/slog"

	"weathernotify.app/errors"
	"weathernotify.app/metrics"
	"weathernotify.app/models"
)

// ProviderChain tries an ordered list of weather providers and returns
// the first successful result. Each provider is expected to already be
// wrapped in its CircuitBreaker, so a fast-failed open-breaker call just
// moves the chain along.
type ProviderChain struct {
	providers []WeatherProvider
	metrics   *metrics.Metrics
}

// NewProviderChain builds a fallback chain over the given providers in
// declared order. Per-provider attempt and failure counters are recorded
// on the given collectors; metrics may be nil.
func NewProviderChain(m *metrics.Metrics, providers ...WeatherProvider) *ProviderChain {
	return &ProviderChain{providers: providers, metrics: m}
}

// Name describes the chain for logs
func (c *ProviderChain) Name() string {
	names := ""
	for i, p := range c.providers {
		if i > 0 {
			names += ","
		}
		names += p.Name()
	}
	return fmt.Sprintf("chain(%s)", names)
}

// GetWeatherData tries providers in order, short-circuiting on the first
// success. When every provider fails a terminal external API error is
// returned; there is no partial result.
func (c *ProviderChain) GetWeatherData(ctx context.Context, city string) (*models.WeatherResponse, error) {
	if len(c.providers) == 0 {
		return nil, errors.NewConfigurationError("no weather providers configured", nil)
	}

	var lastErr error
	for _, provider := range c.providers {
		if c.metrics != nil {
			c.metrics.ProviderRequests.WithLabelValues(provider.Name()).Inc()
		}

		weather, err := provider.GetWeatherData(ctx, city)
		if err == nil {
			return weather, nil
		}

		if c.metrics != nil {
			c.metrics.ProviderFailures.WithLabelValues(provider.Name()).Inc()
		}
		slog.Warn("weather provider failed, trying next",
			"provider", provider.Name(),
			"city", city,
			"error", err,
		)
		lastErr = err
	}

	return nil, errors.NewExternalAPIError(fmt.Sprintf("all weather providers failed for city: %s", city), lastErr)
}
