// Package api exposes the HTTP surface of the application.
package api

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"weathernotify.app/errors"
	"weathernotify.app/metrics"
	"weathernotify.app/models"
)

// SubscriptionManager drives the subscription lifecycle.
type SubscriptionManager interface {
	Subscribe(ctx context.Context, req *models.SubscriptionRequest) error
	Confirm(ctx context.Context, token string) error
	Unsubscribe(ctx context.Context, token string) error
}

// WeatherGetter returns current weather for a city.
type WeatherGetter interface {
	GetWeather(ctx context.Context, city string) (*models.WeatherResponse, error)
}

// Server wires the HTTP routes to the services.
type Server struct {
	router        *gin.Engine
	subscriptions SubscriptionManager
	weather       WeatherGetter
	metrics       *metrics.Metrics
}

// NewServer creates the HTTP server and registers all routes
func NewServer(subscriptions SubscriptionManager, weather WeatherGetter, m *metrics.Metrics) *Server {
	registerValidations()

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	server := &Server{
		router:        router,
		subscriptions: subscriptions,
		weather:       weather,
		metrics:       m,
	}
	server.registerRoutes()
	return server
}

// registerValidations installs the custom "city" rule on gin's binding
// validator: printable characters only, at most 100 of them.
func registerValidations() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	_ = v.RegisterValidation("city", func(fl validator.FieldLevel) bool {
		city := strings.TrimSpace(fl.Field().String())
		if city == "" || len(city) > 100 {
			return false
		}
		for _, r := range city {
			if unicode.IsControl(r) {
				return false
			}
		}
		return true
	})
}

func (s *Server) registerRoutes() {
	api := s.router.Group("/api")
	{
		api.POST("/subscribe", s.handleSubscribe)
		api.GET("/confirm/:token", s.handleConfirm)
		api.GET("/unsubscribe/:token", s.handleUnsubscribe)
		api.GET("/weather", s.handleWeather)
	}

	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(
			promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})))
	}
}

// Router exposes the gin engine for tests and embedding.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run starts serving on the given address, blocking until shutdown.
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

func (s *Server) handleSubscribe(c *gin.Context) {
	var req models.SubscriptionRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid input: " + err.Error()})
		return
	}

	if err := s.subscriptions.Subscribe(c.Request.Context(), &req); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Subscription successful. Confirmation email sent."})
}

func (s *Server) handleConfirm(c *gin.Context) {
	token := c.Param("token")
	if err := s.subscriptions.Confirm(c.Request.Context(), token); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Subscription confirmed successfully"})
}

func (s *Server) handleUnsubscribe(c *gin.Context) {
	token := c.Param("token")
	if err := s.subscriptions.Unsubscribe(c.Request.Context(), token); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Unsubscribed successfully"})
}

func (s *Server) handleWeather(c *gin.Context) {
	city := c.Query("city")
	if city == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "city query parameter is required"})
		return
	}

	weather, err := s.weather.GetWeather(c.Request.Context(), city)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, weather)
}

// respondError maps application error types to HTTP statuses.
func respondError(c *gin.Context, err error) {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		slog.Error("unhandled error", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "internal server error"})
		return
	}

	switch appErr.Type {
	case errors.ValidationError:
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: appErr.Message})
	case errors.NotFoundError, errors.TokenError:
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: appErr.Message})
	case errors.AlreadyExistsError:
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: appErr.Message})
	case errors.ExternalAPIError, errors.CircuitOpenError:
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: "weather data is temporarily unavailable"})
	default:
		slog.Error("request failed", "path", c.Request.URL.Path, "error", appErr)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "internal server error"})
	}
}

// requestLogger logs each request with its status and latency.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		slog.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", fmt.Sprintf("%.2fms", float64(time.Since(start).Microseconds())/1000),
		)
	}
}
