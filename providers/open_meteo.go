package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"weathernotify.app/errors"
	"weathernotify.app/models"
)

// OpenMeteoProvider implements WeatherProvider using the free Open-Meteo
// APIs. Cities are resolved through the geocoding endpoint first, then
// current conditions are read from the forecast endpoint.
type OpenMeteoProvider struct {
	geocodingURL string
	forecastURL  string
	client       *http.Client
}

// NewOpenMeteoProvider creates a new Open-Meteo provider. No API key is
// required.
func NewOpenMeteoProvider() *OpenMeteoProvider {
	return &OpenMeteoProvider{
		geocodingURL: "https://geocoding-api.open-meteo.com/v1/search",
		forecastURL:  "https://api.open-meteo.com/v1/forecast",
		client:       &http.Client{Timeout: 10 * time.Second},
	}
}

// NewOpenMeteoProviderWithURLs creates a provider against custom endpoints.
// Used by tests to point at a local server.
func NewOpenMeteoProviderWithURLs(geocodingURL, forecastURL string) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		geocodingURL: geocodingURL,
		forecastURL:  forecastURL,
		client:       &http.Client{Timeout: 10 * time.Second},
	}
}

// Name identifies the provider in chain and breaker logs
func (p *OpenMeteoProvider) Name() string {
	return "openmeteo"
}

type geocodingResponse struct {
	Results []struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"results"`
}

type forecastResponse struct {
	Current struct {
		Temperature      *float64 `json:"temperature_2m"`
		RelativeHumidity *float64 `json:"relative_humidity_2m"`
		WeatherCode      *int     `json:"weather_code"`
	} `json:"current"`
}

// GetWeatherData resolves the city to coordinates and fetches current conditions
func (p *OpenMeteoProvider) GetWeatherData(ctx context.Context, city string) (*models.WeatherResponse, error) {
	if city == "" {
		return nil, errors.NewValidationError("city cannot be empty")
	}

	lat, lon, err := p.geocode(ctx, city)
	if err != nil {
		return nil, err
	}

	return p.fetchCurrent(ctx, lat, lon)
}

func (p *OpenMeteoProvider) geocode(ctx context.Context, city string) (float64, float64, error) {
	requestURL := fmt.Sprintf("%s?name=%s&count=1", p.geocodingURL, url.QueryEscape(city))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return 0, 0, errors.NewExternalAPIError("failed to build geocoding request", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, 0, errors.NewExternalAPIError("geocoding request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, 0, errors.NewExternalAPIError(fmt.Sprintf("geocoding API returned status code %d", resp.StatusCode), nil)
	}

	var geo geocodingResponse
	if err := json.NewDecoder(resp.Body).Decode(&geo); err != nil {
		return 0, 0, errors.NewExternalAPIError("failed to decode geocoding response", err)
	}

	if len(geo.Results) == 0 {
		return 0, 0, errors.NewNotFoundError("city not found")
	}

	return geo.Results[0].Latitude, geo.Results[0].Longitude, nil
}

func (p *OpenMeteoProvider) fetchCurrent(ctx context.Context, lat, lon float64) (*models.WeatherResponse, error) {
	requestURL := fmt.Sprintf("%s?latitude=%f&longitude=%f&current=temperature_2m,relative_humidity_2m,weather_code",
		p.forecastURL, lat, lon)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, errors.NewExternalAPIError("failed to build forecast request", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errors.NewExternalAPIError("forecast request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewExternalAPIError(fmt.Sprintf("forecast API returned status code %d", resp.StatusCode), nil)
	}

	var forecast forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&forecast); err != nil {
		return nil, errors.NewExternalAPIError("failed to decode forecast response", err)
	}

	current := forecast.Current
	if current.Temperature == nil || current.RelativeHumidity == nil || current.WeatherCode == nil {
		return nil, errors.NewValidationError("invalid forecast data format: missing current fields")
	}

	return &models.WeatherResponse{
		Temperature: *current.Temperature,
		Humidity:    *current.RelativeHumidity,
		Description: describeWeatherCode(*current.WeatherCode),
	}, nil
}

// describeWeatherCode maps WMO weather interpretation codes to readable text
func describeWeatherCode(code int) string {
	switch {
	case code == 0:
		return "Clear sky"
	case code <= 2:
		return "Partly cloudy"
	case code == 3:
		return "Overcast"
	case code == 45 || code == 48:
		return "Fog"
	case code >= 51 && code <= 57:
		return "Drizzle"
	case code >= 61 && code <= 67:
		return "Rain"
	case code >= 71 && code <= 77:
		return "Snow"
	case code >= 80 && code <= 82:
		return "Rain showers"
	case code == 85 || code == 86:
		return "Snow showers"
	case code >= 95:
		return "Thunderstorm"
	default:
		return "Unknown"
	}
}
