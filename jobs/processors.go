package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"weathernotify.app/metrics"
	"weathernotify.app/models"
	"weathernotify.app/queue"
)

// EmailSender sends the application's transactional emails.
type EmailSender interface {
	SendConfirmationEmail(email, city, confirmToken string) error
	SendWeatherUpdateEmail(email, city string, weather *models.WeatherResponse, unsubscribeToken string) error
}

// WeatherFetcher returns current weather for a city.
type WeatherFetcher interface {
	GetWeather(ctx context.Context, city string) (*models.WeatherResponse, error)
}

// Enqueuer adds fire-once jobs to the pipeline.
type Enqueuer interface {
	Enqueue(ctx context.Context, queueName, jobName string, payload interface{}) error
}

// SubscriptionStore is the slice of the subscription repository the
// processors need.
type SubscriptionStore interface {
	FindByID(id uint) (*models.Subscription, error)
	UpdateLastSentAt(id uint, sentAt time.Time) error
}

// DeliveryLog appends email delivery attempt outcomes.
type DeliveryLog interface {
	Create(entry *models.EmailLog) error
}

// ConfirmEmailProcessor sends subscription confirmation emails and
// records each attempt in the delivery log.
type ConfirmEmailProcessor struct {
	emails  EmailSender
	log     DeliveryLog
	metrics *metrics.Metrics
}

// NewConfirmEmailProcessor creates the confirm email processor
func NewConfirmEmailProcessor(emails EmailSender, log DeliveryLog, m *metrics.Metrics) *ConfirmEmailProcessor {
	return &ConfirmEmailProcessor{emails: emails, log: log, metrics: m}
}

func (p *ConfirmEmailProcessor) Handle(_ context.Context, job *queue.Job) error {
	var payload ConfirmEmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		// A payload that never parses will never parse on retry either.
		slog.Warn("dropping confirm email job with malformed payload", "id", job.ID, "error", err)
		return nil
	}
	if payload.Email == "" || payload.ConfirmToken == "" {
		slog.Warn("dropping confirm email job with incomplete payload", "id", job.ID)
		return nil
	}

	if err := p.emails.SendConfirmationEmail(payload.Email, payload.City, payload.ConfirmToken); err != nil {
		if p.metrics != nil {
			p.metrics.EmailsFailed.WithLabelValues(models.EmailTypeConfirmation).Inc()
		}
		if payload.SubscriptionID != 0 {
			p.appendLog(payload.SubscriptionID, models.EmailStatusFailed, err.Error())
		}
		return err
	}

	if p.metrics != nil {
		p.metrics.EmailsSent.WithLabelValues(models.EmailTypeConfirmation).Inc()
	}
	p.appendLog(payload.SubscriptionID, models.EmailStatusSent, "")
	return nil
}

func (p *ConfirmEmailProcessor) Completed(job *queue.Job) {
	slog.Debug("confirmation email delivered", "id", job.ID)
}

func (p *ConfirmEmailProcessor) Failed(job *queue.Job, err error) {
	slog.Error("confirmation email permanently failed", "id", job.ID, "error", err)
}

func (p *ConfirmEmailProcessor) appendLog(subscriptionID uint, status, errorMessage string) {
	if subscriptionID == 0 {
		return
	}
	entry := &models.EmailLog{
		SubscriptionID: subscriptionID,
		Type:           models.EmailTypeConfirmation,
		Status:         status,
		ErrorMessage:   errorMessage,
	}
	if err := p.log.Create(entry); err != nil {
		slog.Error("failed to append delivery log entry", "subscription_id", subscriptionID, "error", err)
	}
}

// SendWeatherUpdateProcessor delivers a weather update email and records
// the attempt. On success it stamps the subscription's last_sent_at.
type SendWeatherUpdateProcessor struct {
	emails        EmailSender
	subscriptions SubscriptionStore
	log           DeliveryLog
	metrics       *metrics.Metrics
}

// NewSendWeatherUpdateProcessor creates the weather update email processor
func NewSendWeatherUpdateProcessor(emails EmailSender, subscriptions SubscriptionStore, log DeliveryLog, m *metrics.Metrics) *SendWeatherUpdateProcessor {
	return &SendWeatherUpdateProcessor{emails: emails, subscriptions: subscriptions, log: log, metrics: m}
}

func (p *SendWeatherUpdateProcessor) Handle(_ context.Context, job *queue.Job) error {
	var payload SendWeatherUpdateEmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		slog.Warn("dropping weather update job with malformed payload", "id", job.ID, "error", err)
		return nil
	}
	if payload.SubscriptionID == 0 || payload.Email == "" || payload.City == "" ||
		payload.UnsubscribeToken == "" || payload.Weather == (models.WeatherResponse{}) {
		slog.Warn("dropping weather update job with incomplete payload", "id", job.ID)
		return nil
	}

	err := p.emails.SendWeatherUpdateEmail(payload.Email, payload.City, &payload.Weather, payload.UnsubscribeToken)
	if err != nil {
		if p.metrics != nil {
			p.metrics.EmailsFailed.WithLabelValues(models.EmailTypeWeatherUpdate).Inc()
		}
		p.appendLog(payload.SubscriptionID, models.EmailStatusFailed, err.Error())
		return err
	}

	if p.metrics != nil {
		p.metrics.EmailsSent.WithLabelValues(models.EmailTypeWeatherUpdate).Inc()
	}
	p.appendLog(payload.SubscriptionID, models.EmailStatusSent, "")

	if err := p.subscriptions.UpdateLastSentAt(payload.SubscriptionID, time.Now().UTC()); err != nil {
		// The email went out; a stale last_sent_at is not worth a resend.
		slog.Error("failed to update last_sent_at", "subscription_id", payload.SubscriptionID, "error", err)
	}
	return nil
}

func (p *SendWeatherUpdateProcessor) Completed(job *queue.Job) {
	slog.Debug("weather update email delivered", "id", job.ID)
}

func (p *SendWeatherUpdateProcessor) Failed(job *queue.Job, err error) {
	slog.Error("weather update email permanently failed", "id", job.ID, "error", err)
}

func (p *SendWeatherUpdateProcessor) appendLog(subscriptionID uint, status, errorMessage string) {
	if subscriptionID == 0 {
		return
	}
	entry := &models.EmailLog{
		SubscriptionID: subscriptionID,
		Type:           models.EmailTypeWeatherUpdate,
		Status:         status,
		ErrorMessage:   errorMessage,
	}
	if err := p.log.Create(entry); err != nil {
		slog.Error("failed to append delivery log entry", "subscription_id", subscriptionID, "error", err)
	}
}

// UpdateWeatherDataProcessor fetches current weather for a subscription
// and fans out a send job carrying the reading. Subscriptions that were
// deleted or are no longer confirmed when the schedule fires are skipped.
type UpdateWeatherDataProcessor struct {
	subscriptions SubscriptionStore
	weather       WeatherFetcher
	pipeline      Enqueuer
}

// NewUpdateWeatherDataProcessor creates the weather refresh processor
func NewUpdateWeatherDataProcessor(subscriptions SubscriptionStore, weather WeatherFetcher, pipeline Enqueuer) *UpdateWeatherDataProcessor {
	return &UpdateWeatherDataProcessor{subscriptions: subscriptions, weather: weather, pipeline: pipeline}
}

func (p *UpdateWeatherDataProcessor) Handle(ctx context.Context, job *queue.Job) error {
	var payload UpdateWeatherDataPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		slog.Warn("dropping weather refresh job with malformed payload", "id", job.ID, "error", err)
		return nil
	}

	subscription, err := p.subscriptions.FindByID(payload.SubscriptionID)
	if err != nil {
		return err
	}
	if subscription == nil || !subscription.Confirmed {
		slog.Warn("skipping weather refresh for missing or unconfirmed subscription",
			"subscription_id", payload.SubscriptionID)
		return nil
	}

	weather, err := p.weather.GetWeather(ctx, subscription.City)
	if err != nil {
		return err
	}

	return p.pipeline.Enqueue(ctx, QueueSendWeatherUpdateEmail, JobSendWeatherUpdateEmail, SendWeatherUpdateEmailPayload{
		SubscriptionID:   subscription.ID,
		Email:            subscription.Email,
		City:             subscription.City,
		Weather:          *weather,
		UnsubscribeToken: subscription.UnsubscribeToken,
	})
}

func (p *UpdateWeatherDataProcessor) Completed(job *queue.Job) {
	slog.Debug("weather refresh completed", "id", job.ID)
}

func (p *UpdateWeatherDataProcessor) Failed(job *queue.Job, err error) {
	slog.Error("weather refresh permanently failed", "id", job.ID, "error", err)
}
