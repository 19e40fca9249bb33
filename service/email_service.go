package service

import (
	"fmt"

	"weathernotify.app/config"
	"weathernotify.app/errors"
	"weathernotify.app/models"
	"weathernotify.app/providers"
)

// EmailService composes and sends the application's transactional emails
// through the configured email provider.
type EmailService struct {
	provider   providers.EmailProvider
	appBaseURL string
}

// NewEmailService creates an email service using the given provider
func NewEmailService(provider providers.EmailProvider, cfg *config.Config) *EmailService {
	return &EmailService{
		provider:   provider,
		appBaseURL: cfg.AppBaseURL,
	}
}

// SendConfirmationEmail sends the subscription confirmation email with a
// link carrying the confirmation token.
func (s *EmailService) SendConfirmationEmail(email, city, confirmToken string) error {
	confirmURL := fmt.Sprintf("%s/api/confirm/%s", s.appBaseURL, confirmToken)
	subject := fmt.Sprintf("Confirm your weather subscription for %s", city)
	body := fmt.Sprintf(`
		<h1>Weather Subscription Confirmation</h1>
		<p>Thank you for subscribing to weather updates for <strong>%s</strong>!</p>
		<p>Please confirm your subscription by clicking the link below:</p>
		<p><a href="%s">Confirm Subscription</a></p>
		<p>The link is valid for 24 hours. If you did not request this subscription, you can ignore this email.</p>
	`, city, confirmURL)

	if err := s.provider.SendEmail(email, subject, body, true); err != nil {
		return errors.NewEmailError("failed to send confirmation email", err)
	}
	return nil
}

// SendWeatherUpdateEmail sends a weather update with an unsubscribe link.
func (s *EmailService) SendWeatherUpdateEmail(email, city string, weather *models.WeatherResponse, unsubscribeToken string) error {
	if weather == nil {
		return errors.NewValidationError("weather data cannot be nil")
	}

	unsubscribeURL := fmt.Sprintf("%s/api/unsubscribe/%s", s.appBaseURL, unsubscribeToken)
	subject := fmt.Sprintf("Weather update for %s", city)
	body := fmt.Sprintf(`
		<h1>Weather Update for %s</h1>
		<p><strong>Temperature:</strong> %.1f&deg;C</p>
		<p><strong>Humidity:</strong> %.0f%%</p>
		<p><strong>Conditions:</strong> %s</p>
		<hr>
		<p><a href="%s">Unsubscribe from these updates</a></p>
	`, city, weather.Temperature, weather.Humidity, weather.Description, unsubscribeURL)

	if err := s.provider.SendEmail(email, subject, body, true); err != nil {
		return errors.NewEmailError("failed to send weather update email", err)
	}
	return nil
}
