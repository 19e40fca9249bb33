package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"weathernotify.app/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&models.Subscription{}, &models.EmailLog{}))
	return db
}

func pendingSubscription(token string, expiresAt time.Time) *models.Subscription {
	return &models.Subscription{
		Email:                 "test@example.com",
		City:                  "London",
		Frequency:             models.FrequencyDaily,
		ConfirmToken:          &token,
		ConfirmTokenExpiresAt: &expiresAt,
		UnsubscribeToken:      "unsub-" + token,
	}
}

func TestSubscriptionRepository_CreateAndFind(t *testing.T) {
	repo := NewSubscriptionRepository(setupTestDB(t))

	sub := pendingSubscription("tok-1", time.Now().Add(24*time.Hour))
	require.NoError(t, repo.Create(sub))
	assert.NotZero(t, sub.ID)

	found, err := repo.FindByEmailAndCity("test@example.com", "London")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, sub.ID, found.ID)

	missing, err := repo.FindByEmailAndCity("other@example.com", "London")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSubscriptionRepository_FindByConfirmToken(t *testing.T) {
	repo := NewSubscriptionRepository(setupTestDB(t))

	sub := pendingSubscription("tok-live", time.Now().Add(24*time.Hour))
	require.NoError(t, repo.Create(sub))

	found, err := repo.FindByConfirmToken("tok-live", time.Now())
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, sub.ID, found.ID)

	unknown, err := repo.FindByConfirmToken("tok-unknown", time.Now())
	require.NoError(t, err)
	assert.Nil(t, unknown)
}

func TestSubscriptionRepository_FindByConfirmToken_Expired(t *testing.T) {
	repo := NewSubscriptionRepository(setupTestDB(t))

	sub := pendingSubscription("tok-old", time.Now().Add(-time.Hour))
	require.NoError(t, repo.Create(sub))

	// Expired lookup behaves exactly like an unknown token.
	found, err := repo.FindByConfirmToken("tok-old", time.Now())
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestSubscriptionRepository_FindByUnsubscribeToken(t *testing.T) {
	repo := NewSubscriptionRepository(setupTestDB(t))

	sub := pendingSubscription("tok-2", time.Now().Add(24*time.Hour))
	require.NoError(t, repo.Create(sub))

	found, err := repo.FindByUnsubscribeToken("unsub-tok-2")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, sub.ID, found.ID)

	missing, err := repo.FindByUnsubscribeToken("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSubscriptionRepository_UpdateClearsConfirmFields(t *testing.T) {
	repo := NewSubscriptionRepository(setupTestDB(t))

	sub := pendingSubscription("tok-3", time.Now().Add(24*time.Hour))
	require.NoError(t, repo.Create(sub))

	sub.Confirmed = true
	sub.ConfirmToken = nil
	sub.ConfirmTokenExpiresAt = nil
	require.NoError(t, repo.Update(sub))

	found, err := repo.FindByID(sub.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, found.Confirmed)
	assert.Nil(t, found.ConfirmToken)
	assert.Nil(t, found.ConfirmTokenExpiresAt)
}

func TestSubscriptionRepository_UpdateLastSentAt(t *testing.T) {
	repo := NewSubscriptionRepository(setupTestDB(t))

	sub := pendingSubscription("tok-4", time.Now().Add(24*time.Hour))
	require.NoError(t, repo.Create(sub))

	sentAt := time.Now().Truncate(time.Second)
	require.NoError(t, repo.UpdateLastSentAt(sub.ID, sentAt))

	found, err := repo.FindByID(sub.ID)
	require.NoError(t, err)
	require.NotNil(t, found.LastSentAt)
	assert.WithinDuration(t, sentAt, *found.LastSentAt, time.Second)
}

func TestSubscriptionRepository_Delete(t *testing.T) {
	repo := NewSubscriptionRepository(setupTestDB(t))

	sub := pendingSubscription("tok-5", time.Now().Add(24*time.Hour))
	require.NoError(t, repo.Create(sub))
	require.NoError(t, repo.Delete(sub))

	found, err := repo.FindByID(sub.ID)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestEmailLogRepository_AppendOnly(t *testing.T) {
	db := setupTestDB(t)
	logRepo := NewEmailLogRepository(db)

	require.NoError(t, logRepo.Create(&models.EmailLog{
		SubscriptionID: 7,
		Type:           models.EmailTypeConfirmation,
		Status:         models.EmailStatusSent,
	}))
	require.NoError(t, logRepo.Create(&models.EmailLog{
		SubscriptionID: 7,
		Type:           models.EmailTypeWeatherUpdate,
		Status:         models.EmailStatusFailed,
		ErrorMessage:   "smtp: connection reset",
	}))

	entries, err := logRepo.FindBySubscriptionID(7)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	statuses := []string{entries[0].Status, entries[1].Status}
	assert.Contains(t, statuses, models.EmailStatusSent)
	assert.Contains(t, statuses, models.EmailStatusFailed)
}
