package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"weathernotify.app/config"
	"weathernotify.app/errors"
	"weathernotify.app/models"
)

// WeatherAPIProvider implements WeatherProvider for WeatherAPI.com
type WeatherAPIProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewWeatherAPIProvider creates a new WeatherAPI.com provider
func NewWeatherAPIProvider(config *config.WeatherConfig) *WeatherAPIProvider {
	return &WeatherAPIProvider{
		apiKey:  config.APIKey,
		baseURL: config.BaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Name identifies the provider in chain and breaker logs
func (p *WeatherAPIProvider) Name() string {
	return "weatherapi"
}

// GetWeatherData retrieves current weather data from WeatherAPI.com
func (p *WeatherAPIProvider) GetWeatherData(ctx context.Context, city string) (*models.WeatherResponse, error) {
	if city == "" {
		return nil, errors.NewValidationError("city cannot be empty")
	}

	requestURL := fmt.Sprintf("%s/current.json?key=%s&q=%s&aqi=no", p.baseURL, p.apiKey, url.QueryEscape(city))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, errors.NewExternalAPIError("failed to build weather request", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errors.NewExternalAPIError("failed to get weather data", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			// Ignore close error as it's not critical for the main operation
			_ = closeErr
		}
	}()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.NewNotFoundError("city not found")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewExternalAPIError(fmt.Sprintf("weather API returned status code %d", resp.StatusCode), nil)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.NewExternalAPIError("failed to decode weather data", err)
	}

	current, ok := result["current"].(map[string]interface{})
	if !ok {
		return nil, errors.NewValidationError("invalid weather data format: missing current field")
	}

	weatherCondition, ok := current["condition"].(map[string]interface{})
	if !ok {
		return nil, errors.NewValidationError("invalid weather data format: missing condition field")
	}

	temperature, ok := current["temp_c"].(float64)
	if !ok {
		return nil, errors.NewValidationError("invalid weather data format: missing temperature")
	}

	humidity, ok := current["humidity"].(float64)
	if !ok {
		return nil, errors.NewValidationError("invalid weather data format: missing humidity")
	}

	description, ok := weatherCondition["text"].(string)
	if !ok {
		return nil, errors.NewValidationError("invalid weather data format: missing description")
	}

	return &models.WeatherResponse{
		Temperature: temperature,
		Humidity:    humidity,
		Description: description,
	}, nil
}
