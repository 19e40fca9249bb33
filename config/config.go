package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"weathernotify.app/errors"
)

// Config represents the application configuration structure
type Config struct {
	Server     ServerConfig  `split_words:"true"`
	Database   DatabaseConfig `split_words:"true"`
	Redis      RedisConfig    `split_words:"true"`
	Weather    WeatherConfig  `split_words:"true"`
	Email      EmailConfig    `split_words:"true"`
	Queue      QueueConfig    `split_words:"true"`
	AppBaseURL string         `envconfig:"APP_URL" default:"http://localhost:8080"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port int `envconfig:"SERVER_PORT" default:"8080"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASSWORD" default:"postgres"`
	Name     string `envconfig:"DB_NAME" default:"weathernotify"`
	SSLMode  string `envconfig:"DB_SSL_MODE" default:"disable"`
}

// GetDSN returns a formatted database connection string
func (c DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// RedisConfig contains the connection settings for the queue store and
// the weather cache, which share one Redis instance.
type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// WeatherConfig contains settings for the weather data providers
type WeatherConfig struct {
	APIKey   string        `envconfig:"WEATHER_API_KEY" required:"true"`
	BaseURL  string        `envconfig:"WEATHER_API_BASE_URL" default:"https://api.weatherapi.com/v1"`
	CacheTTL time.Duration `envconfig:"WEATHER_CACHE_TTL" default:"10m"`
}

// EmailConfig contains email server and sending settings
type EmailConfig struct {
	SMTPHost     string `envconfig:"EMAIL_SMTP_HOST" default:"smtp.gmail.com"`
	SMTPPort     int    `envconfig:"EMAIL_SMTP_PORT" default:"587"`
	SMTPUsername string `envconfig:"EMAIL_SMTP_USERNAME" required:"true"`
	SMTPPassword string `envconfig:"EMAIL_SMTP_PASSWORD" required:"true"`
	FromName     string `envconfig:"EMAIL_FROM_NAME" default:"Weather Notify"`
	FromAddress  string `envconfig:"EMAIL_FROM_ADDRESS" default:"no-reply@weathernotify.app"`
}

// QueueConfig contains settings for the background job pipeline
type QueueConfig struct {
	Concurrency       int           `envconfig:"QUEUE_CONCURRENCY" default:"4"`
	PollInterval      time.Duration `envconfig:"QUEUE_POLL_INTERVAL" default:"1s"`
	SchedulerInterval time.Duration `envconfig:"QUEUE_SCHEDULER_INTERVAL" default:"15s"`
	MaxRetries        int           `envconfig:"QUEUE_MAX_RETRIES" default:"3"`
	RetryBackoff      time.Duration `envconfig:"QUEUE_RETRY_BACKOFF" default:"1s"`
}

// LoadConfig loads and validates application configuration from environment variables
func LoadConfig() (*Config, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return nil, errors.NewConfigurationError("error processing config", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if err := c.Redis.Validate(); err != nil {
		return err
	}
	if err := c.Weather.Validate(); err != nil {
		return err
	}
	if err := c.Email.Validate(); err != nil {
		return err
	}
	if err := c.Queue.Validate(); err != nil {
		return err
	}
	if err := c.validateAppBaseURL(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAppBaseURL() error {
	if c.AppBaseURL == "" {
		return errors.NewConfigurationError("APP_URL cannot be empty", nil)
	}
	if !strings.HasPrefix(c.AppBaseURL, "http://") && !strings.HasPrefix(c.AppBaseURL, "https://") {
		return errors.NewConfigurationError("APP_URL must start with http:// or https://", nil)
	}
	return nil
}

// Validate checks server configuration
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return errors.NewConfigurationError("SERVER_PORT must be between 1 and 65535", nil)
	}
	return nil
}

// ValidateSSLMode validates the SSL mode configuration
func (d *DatabaseConfig) ValidateSSLMode() error {
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	for _, mode := range validSSLModes {
		if d.SSLMode == mode {
			return nil
		}
	}
	return errors.NewConfigurationError(
		fmt.Sprintf("DB_SSL_MODE must be one of: %s", strings.Join(validSSLModes, ", ")), nil)
}

// Validate checks database configuration
func (d *DatabaseConfig) Validate() error {
	if d.Host == "" {
		return errors.NewConfigurationError("DB_HOST cannot be empty", nil)
	}
	if d.Port < 1 || d.Port > 65535 {
		return errors.NewConfigurationError("DB_PORT must be between 1 and 65535", nil)
	}
	if d.User == "" {
		return errors.NewConfigurationError("DB_USER cannot be empty", nil)
	}
	if d.Name == "" {
		return errors.NewConfigurationError("DB_NAME cannot be empty", nil)
	}
	if err := d.ValidateSSLMode(); err != nil {
		return err
	}
	return nil
}

// Validate checks the Redis connection settings
func (r *RedisConfig) Validate() error {
	if r.Addr == "" {
		return errors.NewConfigurationError("REDIS_ADDR cannot be empty", nil)
	}
	if r.DB < 0 {
		return errors.NewConfigurationError("REDIS_DB cannot be negative", nil)
	}
	return nil
}

// Validate checks weather provider configuration
func (w *WeatherConfig) Validate() error {
	if w.APIKey == "" {
		return errors.NewConfigurationError("WEATHER_API_KEY is required", nil)
	}
	if w.BaseURL == "" {
		return errors.NewConfigurationError("WEATHER_API_BASE_URL cannot be empty", nil)
	}
	if !strings.HasPrefix(w.BaseURL, "http://") && !strings.HasPrefix(w.BaseURL, "https://") {
		return errors.NewConfigurationError("WEATHER_API_BASE_URL must start with http:// or https://", nil)
	}
	if w.CacheTTL < time.Second {
		return errors.NewConfigurationError("WEATHER_CACHE_TTL must be at least 1 second", nil)
	}
	return nil
}

// Validate checks email configuration
func (e *EmailConfig) Validate() error {
	if e.SMTPHost == "" {
		return errors.NewConfigurationError("EMAIL_SMTP_HOST cannot be empty", nil)
	}
	if e.SMTPPort < 1 || e.SMTPPort > 65535 {
		return errors.NewConfigurationError("EMAIL_SMTP_PORT must be between 1 and 65535", nil)
	}
	if e.SMTPUsername == "" {
		return errors.NewConfigurationError("EMAIL_SMTP_USERNAME is required", nil)
	}
	if e.SMTPPassword == "" {
		return errors.NewConfigurationError("EMAIL_SMTP_PASSWORD is required", nil)
	}
	if e.FromName == "" {
		return errors.NewConfigurationError("EMAIL_FROM_NAME cannot be empty", nil)
	}
	if e.FromAddress == "" {
		return errors.NewConfigurationError("EMAIL_FROM_ADDRESS cannot be empty", nil)
	}
	if !strings.Contains(e.FromAddress, "@") {
		return errors.NewConfigurationError("EMAIL_FROM_ADDRESS must be a valid email address", nil)
	}
	return nil
}

// Validate checks queue configuration
func (q *QueueConfig) Validate() error {
	if q.Concurrency < 1 {
		return errors.NewConfigurationError("QUEUE_CONCURRENCY must be at least 1", nil)
	}
	if q.PollInterval < 100*time.Millisecond {
		return errors.NewConfigurationError("QUEUE_POLL_INTERVAL must be at least 100ms", nil)
	}
	if q.SchedulerInterval < time.Second {
		return errors.NewConfigurationError("QUEUE_SCHEDULER_INTERVAL must be at least 1 second", nil)
	}
	if q.MaxRetries < 0 {
		return errors.NewConfigurationError("QUEUE_MAX_RETRIES cannot be negative", nil)
	}
	if q.RetryBackoff < 100*time.Millisecond {
		return errors.NewConfigurationError("QUEUE_RETRY_BACKOFF must be at least 100ms", nil)
	}
	return nil
}
