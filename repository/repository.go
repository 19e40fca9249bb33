// Package repository implements data access layer for the application
package repository

import (
	"errors"
	"log"
	"time"

	"gorm.io/gorm"
	"weathernotify.app/models"
)

// SubscriptionRepository handles data access operations for subscriptions
type SubscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new repository for subscription data
func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// FindByEmailAndCity retrieves a subscription by its unique (email, city) pair
func (r *SubscriptionRepository) FindByEmailAndCity(email, city string) (*models.Subscription, error) {
	var subscription models.Subscription
	result := r.db.Where("email = ? AND city = ?", email, city).First(&subscription)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		log.Printf("[ERROR] Database error when finding subscription: %v\n", result.Error)
		return nil, result.Error
	}

	return &subscription, nil
}

// FindByID retrieves a subscription by its ID
func (r *SubscriptionRepository) FindByID(id uint) (*models.Subscription, error) {
	var subscription models.Subscription
	result := r.db.First(&subscription, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		log.Printf("[ERROR] Database error when finding subscription by ID: %v\n", result.Error)
		return nil, result.Error
	}

	return &subscription, nil
}

// FindByConfirmToken retrieves a subscription whose confirmation token
// matches and has not expired at the given instant. An expired token is
// indistinguishable from an unknown one: both return nil.
func (r *SubscriptionRepository) FindByConfirmToken(token string, now time.Time) (*models.Subscription, error) {
	var subscription models.Subscription
	result := r.db.Where("confirm_token = ? AND confirm_token_expires_at > ?", token, now).First(&subscription)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		log.Printf("[ERROR] Database error when finding subscription by confirm token: %v\n", result.Error)
		return nil, result.Error
	}

	return &subscription, nil
}

// FindByUnsubscribeToken retrieves a subscription by its permanent unsubscribe token
func (r *SubscriptionRepository) FindByUnsubscribeToken(token string) (*models.Subscription, error) {
	var subscription models.Subscription
	result := r.db.Where("unsubscribe_token = ?", token).First(&subscription)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		log.Printf("[ERROR] Database error when finding subscription by unsubscribe token: %v\n", result.Error)
		return nil, result.Error
	}

	return &subscription, nil
}

// Create persists a new subscription to the database
func (r *SubscriptionRepository) Create(subscription *models.Subscription) error {
	result := r.db.Create(subscription)
	if result.Error != nil {
		log.Printf("[ERROR] Database error when creating subscription: %v\n", result.Error)
		return result.Error
	}

	return nil
}

// Update modifies an existing subscription
func (r *SubscriptionRepository) Update(subscription *models.Subscription) error {
	result := r.db.Save(subscription)
	if result.Error != nil {
		log.Printf("[ERROR] Database error when updating subscription: %v\n", result.Error)
		return result.Error
	}

	return nil
}

// UpdateLastSentAt records the timestamp of the most recent successful delivery
func (r *SubscriptionRepository) UpdateLastSentAt(id uint, sentAt time.Time) error {
	result := r.db.Model(&models.Subscription{}).Where("id = ?", id).Update("last_sent_at", sentAt)
	if result.Error != nil {
		log.Printf("[ERROR] Database error when updating last_sent_at: %v\n", result.Error)
		return result.Error
	}

	return nil
}

// Delete removes a subscription from the database
func (r *SubscriptionRepository) Delete(subscription *models.Subscription) error {
	result := r.db.Unscoped().Delete(subscription)
	if result.Error != nil {
		log.Printf("[ERROR] Database error when deleting subscription: %v\n", result.Error)
		return result.Error
	}

	return nil
}

// EmailLogRepository handles the append-only delivery audit trail
type EmailLogRepository struct {
	db *gorm.DB
}

// NewEmailLogRepository creates a new repository for email log entries
func NewEmailLogRepository(db *gorm.DB) *EmailLogRepository {
	return &EmailLogRepository{db: db}
}

// Create appends a delivery attempt outcome. Entries are never updated
// or retracted afterwards.
func (r *EmailLogRepository) Create(entry *models.EmailLog) error {
	if entry.SentAt.IsZero() {
		entry.SentAt = time.Now()
	}

	result := r.db.Create(entry)
	if result.Error != nil {
		log.Printf("[ERROR] Database error when creating email log entry: %v\n", result.Error)
		return result.Error
	}

	return nil
}

// FindBySubscriptionID returns the delivery history of a subscription,
// most recent first.
func (r *EmailLogRepository) FindBySubscriptionID(subscriptionID uint) ([]models.EmailLog, error) {
	var entries []models.EmailLog
	result := r.db.Where("subscription_id = ?", subscriptionID).Order("sent_at DESC").Find(&entries)
	if result.Error != nil {
		log.Printf("[ERROR] Database error when listing email log entries: %v\n", result.Error)
		return nil, result.Error
	}

	return entries, nil
}
