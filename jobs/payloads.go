// Package jobs defines the background job types of the application and
// the processors that execute them. Queue and job names are part of the
// persisted job records, so renaming them breaks jobs already in Redis.
package jobs

import "weathernotify.app/models"

// Queue names. Each job type lives on its own queue.
const (
	QueueConfirmEmail           = "confirm_email_queue"
	QueueSendWeatherUpdateEmail = "send_weather_update_email_queue"
	QueueUpdateWeatherData      = "update_weather_data_queue"
)

// Job names routed to processors within their queue.
const (
	JobConfirmEmail           = "confirm_email"
	JobSendWeatherUpdateEmail = "send_weather_update_email"
	JobUpdateWeatherData      = "update_weather_data"
)

// Queues lists every queue the worker pool must poll.
func Queues() []string {
	return []string{
		QueueConfirmEmail,
		QueueSendWeatherUpdateEmail,
		QueueUpdateWeatherData,
	}
}

// ConfirmEmailPayload asks for a confirmation email with the given token.
type ConfirmEmailPayload struct {
	SubscriptionID uint   `json:"subscriptionId"`
	Email          string `json:"email"`
	City           string `json:"city"`
	ConfirmToken   string `json:"confirmToken"`
}

// SendWeatherUpdateEmailPayload carries an already fetched weather
// reading to be delivered to one subscriber.
type SendWeatherUpdateEmailPayload struct {
	SubscriptionID   uint                   `json:"subscriptionId"`
	Email            string                 `json:"email"`
	City             string                 `json:"city"`
	Weather          models.WeatherResponse `json:"weather"`
	UnsubscribeToken string                 `json:"unsubscribeToken"`
}

// UpdateWeatherDataPayload asks for a fresh weather fetch for one
// subscription, fanned out from its recurring schedule.
type UpdateWeatherDataPayload struct {
	SubscriptionID uint `json:"subscriptionId"`
}
