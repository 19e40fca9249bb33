package providers

import (
	"context"

	"weathernotify.app/models"
)

// WeatherProvider defines the interface for weather data providers
type WeatherProvider interface {
	GetWeatherData(ctx context.Context, city string) (*models.WeatherResponse, error)
	Name() string
}

// EmailProvider defines the interface for email providers
type EmailProvider interface {
	SendEmail(to, subject, body string, isHTML bool) error
}
