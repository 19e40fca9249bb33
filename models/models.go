// Package models defines data structures used throughout the application
package models

import (
	"fmt"
	"time"
)

// Subscription frequencies supported by the service.
const (
	FrequencyHourly = "hourly"
	FrequencyDaily  = "daily"
)

// Email log entry types.
const (
	EmailTypeConfirmation  = "subscription_confirmation"
	EmailTypeWeatherUpdate = "weather_update"
)

// Email log entry statuses.
const (
	EmailStatusSent   = "sent"
	EmailStatusFailed = "failed"
)

// Subscription represents a user's weather notification subscription.
// The (email, city) pair is unique. While pending the record carries a
// live confirmation token; confirming clears the confirm fields.
type Subscription struct {
	ID                    uint       `json:"id" gorm:"primaryKey"`
	Email                 string     `json:"email" gorm:"uniqueIndex:idx_email_city;not null"`
	City                  string     `json:"city" gorm:"uniqueIndex:idx_email_city;not null"`
	Frequency             string     `json:"frequency" gorm:"not null"`
	Confirmed             bool       `json:"confirmed" gorm:"default:false"`
	ConfirmToken          *string    `json:"-" gorm:"index"`
	ConfirmTokenExpiresAt *time.Time `json:"-"`
	UnsubscribeToken      string     `json:"-" gorm:"uniqueIndex;not null"`
	LastSentAt            *time.Time `json:"last_sent_at"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// ScheduleKey returns the stable identifier of the subscription's
// recurring weather update schedule.
func (s *Subscription) ScheduleKey() string {
	return fmt.Sprintf("sub-%d", s.ID)
}

// WeatherCacheEntry is the last fetched weather reading for a city.
// At most one entry exists per city; it is overwritten in place and
// considered fresh while now - FetchedAt < the configured TTL.
type WeatherCacheEntry struct {
	City        string    `json:"city"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Description string    `json:"description"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// EmailLog is an append-only audit record of delivery attempt outcomes.
type EmailLog struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	SubscriptionID uint      `json:"subscription_id" gorm:"index;not null"`
	Type           string    `json:"type" gorm:"not null"`
	Status         string    `json:"status" gorm:"not null"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	SentAt         time.Time `json:"sent_at"`
}

// WeatherResponse represents weather data returned to callers and
// carried inside weather update job payloads.
type WeatherResponse struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Description string  `json:"description"`
}

// SubscriptionRequest represents data required to create a subscription
type SubscriptionRequest struct {
	Email     string `json:"email" form:"email" binding:"required,email"`
	City      string `json:"city" form:"city" binding:"required,city"`
	Frequency string `json:"frequency" form:"frequency" binding:"required,oneof=hourly daily"`
}

// ErrorResponse represents an error message structure for API responses
type ErrorResponse struct {
	Error string `json:"error"`
}
