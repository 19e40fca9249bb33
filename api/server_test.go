package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "weathernotify.app/errors"
	"weathernotify.app/metrics"
	"weathernotify.app/models"
)

type mockSubscriptionManager struct {
	mock.Mock
}

func (m *mockSubscriptionManager) Subscribe(ctx context.Context, req *models.SubscriptionRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *mockSubscriptionManager) Confirm(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *mockSubscriptionManager) Unsubscribe(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

type mockWeatherGetter struct {
	mock.Mock
}

func (m *mockWeatherGetter) GetWeather(ctx context.Context, city string) (*models.WeatherResponse, error) {
	args := m.Called(ctx, city)
	if w := args.Get(0); w != nil {
		return w.(*models.WeatherResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func setupTestServer(t *testing.T) (*Server, *mockSubscriptionManager, *mockWeatherGetter) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	subscriptions := new(mockSubscriptionManager)
	weather := new(mockWeatherGetter)
	server := NewServer(subscriptions, weather, metrics.New())
	return server, subscriptions, weather
}

func postForm(server *Server, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, req)
	return recorder
}

func get(server *Server, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, req)
	return recorder
}

func TestSubscribeEndpoint(t *testing.T) {
	server, subscriptions, _ := setupTestServer(t)

	subscriptions.On("Subscribe", mock.Anything, mock.MatchedBy(func(req *models.SubscriptionRequest) bool {
		return req.Email == "user@example.com" && req.City == "Kyiv" && req.Frequency == "hourly"
	})).Return(nil)

	recorder := postForm(server, "/api/subscribe", url.Values{
		"email":     {"user@example.com"},
		"city":      {"Kyiv"},
		"frequency": {"hourly"},
	})

	assert.Equal(t, http.StatusOK, recorder.Code)
	subscriptions.AssertExpectations(t)
}

func TestSubscribeEndpointAcceptsJSON(t *testing.T) {
	server, subscriptions, _ := setupTestServer(t)

	subscriptions.On("Subscribe", mock.Anything, mock.Anything).Return(nil)

	body := `{"email":"user@example.com","city":"Kyiv","frequency":"daily"}`
	req := httptest.NewRequest(http.MethodPost, "/api/subscribe", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestSubscribeEndpointValidation(t *testing.T) {
	server, subscriptions, _ := setupTestServer(t)

	tests := []struct {
		name string
		form url.Values
	}{
		{"missing email", url.Values{"city": {"Kyiv"}, "frequency": {"hourly"}}},
		{"invalid email", url.Values{"email": {"not-an-email"}, "city": {"Kyiv"}, "frequency": {"hourly"}}},
		{"missing city", url.Values{"email": {"user@example.com"}, "frequency": {"hourly"}}},
		{"invalid frequency", url.Values{"email": {"user@example.com"}, "city": {"Kyiv"}, "frequency": {"weekly"}}},
		{"city with control characters", url.Values{"email": {"user@example.com"}, "city": {"Kyiv\nevil"}, "frequency": {"hourly"}}},
		{"city too long", url.Values{"email": {"user@example.com"}, "city": {strings.Repeat("x", 101)}, "frequency": {"hourly"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := postForm(server, "/api/subscribe", tt.form)
			assert.Equal(t, http.StatusBadRequest, recorder.Code)
		})
	}

	subscriptions.AssertNotCalled(t, "Subscribe", mock.Anything, mock.Anything)
}

func TestSubscribeEndpointConflict(t *testing.T) {
	server, subscriptions, _ := setupTestServer(t)

	subscriptions.On("Subscribe", mock.Anything, mock.Anything).
		Return(apperrors.NewAlreadyExistsError("email already subscribed for this city"))

	recorder := postForm(server, "/api/subscribe", url.Values{
		"email":     {"user@example.com"},
		"city":      {"Kyiv"},
		"frequency": {"hourly"},
	})

	assert.Equal(t, http.StatusConflict, recorder.Code)
}

func TestConfirmEndpoint(t *testing.T) {
	server, subscriptions, _ := setupTestServer(t)

	subscriptions.On("Confirm", mock.Anything, "tok123").Return(nil)

	recorder := get(server, "/api/confirm/tok123")
	assert.Equal(t, http.StatusOK, recorder.Code)
	subscriptions.AssertExpectations(t)
}

func TestConfirmEndpointUnknownToken(t *testing.T) {
	server, subscriptions, _ := setupTestServer(t)

	subscriptions.On("Confirm", mock.Anything, "bad").
		Return(apperrors.NewNotFoundError("token not found or expired"))

	recorder := get(server, "/api/confirm/bad")
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestUnsubscribeEndpoint(t *testing.T) {
	server, subscriptions, _ := setupTestServer(t)

	subscriptions.On("Unsubscribe", mock.Anything, "unsub123").Return(nil)

	recorder := get(server, "/api/unsubscribe/unsub123")
	assert.Equal(t, http.StatusOK, recorder.Code)
	subscriptions.AssertExpectations(t)
}

func TestUnsubscribeEndpointUnknownToken(t *testing.T) {
	server, subscriptions, _ := setupTestServer(t)

	subscriptions.On("Unsubscribe", mock.Anything, "bad").
		Return(apperrors.NewNotFoundError("token not found"))

	recorder := get(server, "/api/unsubscribe/bad")
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestWeatherEndpoint(t *testing.T) {
	server, _, weather := setupTestServer(t)

	weather.On("GetWeather", mock.Anything, "Kyiv").
		Return(&models.WeatherResponse{Temperature: 21.5, Humidity: 60, Description: "Partly cloudy"}, nil)

	recorder := get(server, "/api/weather?city=Kyiv")
	require.Equal(t, http.StatusOK, recorder.Code)

	var response models.WeatherResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, 21.5, response.Temperature)
	assert.Equal(t, "Partly cloudy", response.Description)
}

func TestWeatherEndpointRequiresCity(t *testing.T) {
	server, _, weather := setupTestServer(t)

	recorder := get(server, "/api/weather")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	weather.AssertNotCalled(t, "GetWeather", mock.Anything, mock.Anything)
}

func TestWeatherEndpointUpstreamFailure(t *testing.T) {
	server, _, weather := setupTestServer(t)

	weather.On("GetWeather", mock.Anything, "Kyiv").
		Return(nil, apperrors.NewExternalAPIError("all weather providers failed for city: Kyiv", nil))

	recorder := get(server, "/api/weather?city=Kyiv")
	assert.Equal(t, http.StatusBadGateway, recorder.Code)
}

func TestWeatherEndpointUnknownCity(t *testing.T) {
	server, _, weather := setupTestServer(t)

	weather.On("GetWeather", mock.Anything, "Nowhereville").
		Return(nil, apperrors.NewNotFoundError("city not found: Nowhereville"))

	recorder := get(server, "/api/weather?city=Nowhereville")
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	server, _, _ := setupTestServer(t)

	recorder := get(server, "/metrics")
	assert.Equal(t, http.StatusOK, recorder.Code)
}
