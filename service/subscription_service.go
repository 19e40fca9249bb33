package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"time"

	"weathernotify.app/errors"
	"weathernotify.app/jobs"
	"weathernotify.app/models"
	"weathernotify.app/repository"
)

// ConfirmTokenTTL is how long a confirmation token stays valid.
const ConfirmTokenTTL = 24 * time.Hour

const tokenBytes = 32

// SchedulingPipeline is the slice of the job pipeline the subscription
// lifecycle needs.
type SchedulingPipeline interface {
	Enqueue(ctx context.Context, queueName, jobName string, payload interface{}) error
	Schedule(ctx context.Context, queueName, key, cronExpr, jobName string, payload interface{}) error
	CancelSchedule(ctx context.Context, queueName, key string) error
}

// SubscriptionService drives the subscription lifecycle: pending on
// subscribe, active on confirm, gone on unsubscribe. Confirming starts
// the recurring weather update schedule; unsubscribing cancels it.
type SubscriptionService struct {
	repo     *repository.SubscriptionRepository
	pipeline SchedulingPipeline
	now      func() time.Time
}

// NewSubscriptionService creates the subscription service
func NewSubscriptionService(repo *repository.SubscriptionRepository, pipeline SchedulingPipeline) *SubscriptionService {
	return &SubscriptionService{
		repo:     repo,
		pipeline: pipeline,
		now:      time.Now,
	}
}

// Subscribe registers a pending subscription for (email, city) and queues
// the confirmation email. Re-subscribing while pending issues a fresh
// token; re-subscribing while confirmed is rejected.
func (s *SubscriptionService) Subscribe(ctx context.Context, req *models.SubscriptionRequest) error {
	existing, err := s.repo.FindByEmailAndCity(req.Email, req.City)
	if err != nil {
		return errors.NewDatabaseError("failed to look up subscription", err)
	}
	if existing != nil && existing.Confirmed {
		return errors.NewAlreadyExistsError("email already subscribed for this city")
	}

	confirmToken, err := generateToken()
	if err != nil {
		return err
	}
	expiresAt := s.now().UTC().Add(ConfirmTokenTTL)

	subscription := existing
	if subscription != nil {
		subscription.Frequency = req.Frequency
		subscription.ConfirmToken = &confirmToken
		subscription.ConfirmTokenExpiresAt = &expiresAt
		if err := s.repo.Update(subscription); err != nil {
			return errors.NewDatabaseError("failed to update pending subscription", err)
		}
	} else {
		unsubscribeToken, err := generateToken()
		if err != nil {
			return err
		}
		subscription = &models.Subscription{
			Email:                 req.Email,
			City:                  req.City,
			Frequency:             req.Frequency,
			Confirmed:             false,
			ConfirmToken:          &confirmToken,
			ConfirmTokenExpiresAt: &expiresAt,
			UnsubscribeToken:      unsubscribeToken,
		}
		if err := s.repo.Create(subscription); err != nil {
			return errors.NewDatabaseError("failed to create subscription", err)
		}
	}

	err = s.pipeline.Enqueue(ctx, jobs.QueueConfirmEmail, jobs.JobConfirmEmail, jobs.ConfirmEmailPayload{
		SubscriptionID: subscription.ID,
		Email:          subscription.Email,
		City:           subscription.City,
		ConfirmToken:   confirmToken,
	})
	if err != nil {
		return err
	}

	slog.Info("subscription created, confirmation pending",
		"subscription_id", subscription.ID, "city", subscription.City, "frequency", subscription.Frequency)
	return nil
}

// Confirm activates the subscription behind a live confirmation token and
// starts its recurring weather update schedule. Expired and unknown
// tokens are indistinguishable.
func (s *SubscriptionService) Confirm(ctx context.Context, token string) error {
	if token == "" {
		return errors.NewValidationError("token cannot be empty")
	}

	subscription, err := s.repo.FindByConfirmToken(token, s.now().UTC())
	if err != nil {
		return errors.NewDatabaseError("failed to look up confirmation token", err)
	}
	if subscription == nil {
		return errors.NewNotFoundError("token not found or expired")
	}

	subscription.Confirmed = true
	subscription.ConfirmToken = nil
	subscription.ConfirmTokenExpiresAt = nil
	if err := s.repo.Update(subscription); err != nil {
		return errors.NewDatabaseError("failed to confirm subscription", err)
	}

	cronExpr := frequencyToCron(subscription.Frequency)
	err = s.pipeline.Schedule(ctx, jobs.QueueUpdateWeatherData, subscription.ScheduleKey(),
		cronExpr, jobs.JobUpdateWeatherData, jobs.UpdateWeatherDataPayload{
			SubscriptionID: subscription.ID,
		})
	if err != nil {
		return err
	}

	slog.Info("subscription confirmed",
		"subscription_id", subscription.ID, "city", subscription.City, "cron", cronExpr)
	return nil
}

// Unsubscribe removes the subscription behind the token and cancels its
// schedule. The unsubscribe token never expires.
func (s *SubscriptionService) Unsubscribe(ctx context.Context, token string) error {
	if token == "" {
		return errors.NewValidationError("token cannot be empty")
	}

	subscription, err := s.repo.FindByUnsubscribeToken(token)
	if err != nil {
		return errors.NewDatabaseError("failed to look up unsubscribe token", err)
	}
	if subscription == nil {
		return errors.NewNotFoundError("token not found")
	}

	if err := s.pipeline.CancelSchedule(ctx, jobs.QueueUpdateWeatherData, subscription.ScheduleKey()); err != nil {
		// The orphaned schedule fires into a deleted subscription, which
		// the refresh processor skips.
		slog.Error("failed to cancel schedule on unsubscribe",
			"subscription_id", subscription.ID, "error", err)
	}

	if err := s.repo.Delete(subscription); err != nil {
		return errors.NewDatabaseError("failed to delete subscription", err)
	}

	slog.Info("subscription removed", "subscription_id", subscription.ID, "city", subscription.City)
	return nil
}

// frequencyToCron maps a subscription frequency to its cron expression.
// Hourly fires on the hour; daily fires at 09:00.
func frequencyToCron(frequency string) string {
	if frequency == models.FrequencyDaily {
		return "0 9 * * *"
	}
	return "0 * * * *"
}

// generateToken returns a cryptographically random hex token.
func generateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(errors.ConfigurationError, "failed to generate token", err)
	}
	return hex.EncodeToString(buf), nil
}
