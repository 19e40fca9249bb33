package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"weathernotify.app/config"
	apperrors "weathernotify.app/errors"
)

func TestWeatherAPIProvider_GetWeatherData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/current.json", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "London", r.URL.Query().Get("q"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"current":{"temp_c":15.5,"humidity":76,"condition":{"text":"Partly cloudy"}}}`))
	}))
	defer server.Close()

	provider := NewWeatherAPIProvider(&config.WeatherConfig{APIKey: "test-key", BaseURL: server.URL})

	weather, err := provider.GetWeatherData(context.Background(), "London")
	require.NoError(t, err)
	assert.Equal(t, 15.5, weather.Temperature)
	assert.Equal(t, 76.0, weather.Humidity)
	assert.Equal(t, "Partly cloudy", weather.Description)
}

func TestWeatherAPIProvider_CityNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	provider := NewWeatherAPIProvider(&config.WeatherConfig{APIKey: "test-key", BaseURL: server.URL})

	_, err := provider.GetWeatherData(context.Background(), "Atlantis")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.New(apperrors.NotFoundError, ""))
}

func TestWeatherAPIProvider_MalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"current":{"humidity":76}}`))
	}))
	defer server.Close()

	provider := NewWeatherAPIProvider(&config.WeatherConfig{APIKey: "test-key", BaseURL: server.URL})

	_, err := provider.GetWeatherData(context.Background(), "London")
	require.Error(t, err)

	// Malformed upstream data is fatal for this provider call, which lets
	// the chain move to the next provider.
	assert.ErrorIs(t, err, apperrors.New(apperrors.ValidationError, ""))
}

func TestWeatherAPIProvider_EmptyCity(t *testing.T) {
	provider := NewWeatherAPIProvider(&config.WeatherConfig{APIKey: "test-key", BaseURL: "http://localhost"})

	_, err := provider.GetWeatherData(context.Background(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.New(apperrors.ValidationError, ""))
}

func TestOpenMeteoProvider_GetWeatherData(t *testing.T) {
	geocoding := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Kyiv", r.URL.Query().Get("name"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"latitude":50.45,"longitude":30.52}]}`))
	}))
	defer geocoding.Close()

	forecast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"current":{"temperature_2m":-2.5,"relative_humidity_2m":81,"weather_code":73}}`))
	}))
	defer forecast.Close()

	provider := NewOpenMeteoProviderWithURLs(geocoding.URL, forecast.URL)

	weather, err := provider.GetWeatherData(context.Background(), "Kyiv")
	require.NoError(t, err)
	assert.Equal(t, -2.5, weather.Temperature)
	assert.Equal(t, 81.0, weather.Humidity)
	assert.Equal(t, "Snow", weather.Description)
}

func TestOpenMeteoProvider_UnknownCity(t *testing.T) {
	geocoding := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer geocoding.Close()

	provider := NewOpenMeteoProviderWithURLs(geocoding.URL, "http://unused")

	_, err := provider.GetWeatherData(context.Background(), "Nowhere")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.New(apperrors.NotFoundError, ""))
}

func TestDescribeWeatherCode(t *testing.T) {
	assert.Equal(t, "Clear sky", describeWeatherCode(0))
	assert.Equal(t, "Fog", describeWeatherCode(45))
	assert.Equal(t, "Rain", describeWeatherCode(63))
	assert.Equal(t, "Thunderstorm", describeWeatherCode(95))
	assert.Equal(t, "Unknown", describeWeatherCode(42))
}

func smtpTestProvider() *SMTPEmailProvider {
	return NewSMTPEmailProvider(&config.EmailConfig{
		SMTPHost:    "smtp.example.com",
		SMTPPort:    587,
		FromName:    "Weather Notify",
		FromAddress: "no-reply@weathernotify.app",
	})
}

func TestSMTPEmailProvider_RejectsEmptyRecipient(t *testing.T) {
	err := smtpTestProvider().SendEmail("", "subject", "body", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.New(apperrors.ValidationError, ""))
}

func TestSMTPEmailProvider_RejectsEmptySubject(t *testing.T) {
	err := smtpTestProvider().SendEmail("user@example.com", "", "body", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.New(apperrors.ValidationError, ""))
}

func TestSMTPEmailProvider_BuildMessage(t *testing.T) {
	provider := smtpTestProvider()

	message := string(provider.buildMessage("user@example.com", "Hello\r\nBcc: evil@example.com", "<p>hi</p>", true))

	assert.Contains(t, message, "Subject: HelloBcc: evil@example.com\r\n", "line breaks are stripped from the subject")
	assert.Contains(t, message, "From: Weather Notify <no-reply@weathernotify.app>\r\n")
	assert.Contains(t, message, "Content-Type: text/html; charset=UTF-8\r\n")
	assert.True(t, strings.HasSuffix(message, "\r\n<p>hi</p>"))
}
