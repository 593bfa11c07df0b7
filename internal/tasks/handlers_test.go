package tasks_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/courseloop/backend/internal/database/models"
	"github.com/courseloop/backend/internal/tasks"
	"github.com/courseloop/backend/internal/testutil"
)

const testTTL = 90 * 24 * time.Hour

func makeLink(t *testing.T, db *gorm.DB, age time.Duration) *models.ReferralLink {
	t.Helper()

	link := &models.ReferralLink{
		AffiliateID: uuid.New(),
		CourseID:    uuid.New(),
		Link:        "https://courseloop.io/r/" + uuid.New().String()[:12],
	}
	require.NoError(t, db.Create(link).Error)
	require.NoError(t, db.Model(link).Update("created_at", time.Now().Add(-age)).Error)
	return link
}

func makeToken(t *testing.T, db *gorm.DB, expiresAt time.Time, revoked bool) *models.RefreshToken {
	t.Helper()

	token := &models.RefreshToken{
		UserID:    uuid.New(),
		TokenHash: uuid.New().String() + uuid.New().String()[:28],
		ExpiresAt: expiresAt,
		Revoked:   revoked,
	}
	require.NoError(t, db.Create(token).Error)
	return token
}

func TestHandleReferralSweep(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := tasks.NewHandler(db, testutil.NewTestLogger(), testTTL)

	fresh := makeLink(t, db, time.Hour)
	stale := makeLink(t, db, testTTL+time.Hour)

	require.NoError(t, handler.HandleReferralSweep(context.Background(), tasks.NewReferralSweepTask()))

	var got models.ReferralLink
	require.NoError(t, db.First(&got, "id = ?", stale.ID).Error)
	assert.True(t, got.Expired)
	assert.NotNil(t, got.ExpiredAt)

	var gotFresh models.ReferralLink
	require.NoError(t, db.First(&gotFresh, "id = ?", fresh.ID).Error)
	assert.False(t, gotFresh.Expired)

	t.Run("second sweep touches nothing new", func(t *testing.T) {
		require.NoError(t, handler.HandleReferralSweep(context.Background(), tasks.NewReferralSweepTask()))

		var count int64
		require.NoError(t, db.Model(&models.ReferralLink{}).Where("expired = ?", true).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("zero ttl disables the sweep", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := tasks.NewHandler(db, testutil.NewTestLogger(), 0)
		makeLink(t, db, 365*24*time.Hour)

		require.NoError(t, handler.HandleReferralSweep(context.Background(), tasks.NewReferralSweepTask()))

		var count int64
		require.NoError(t, db.Model(&models.ReferralLink{}).Where("expired = ?", true).Count(&count).Error)
		assert.Zero(t, count)
	})
}

func TestHandleTokenPurge(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := tasks.NewHandler(db, testutil.NewTestLogger(), testTTL)

	// Expired long ago: purged.
	gone := makeToken(t, db, time.Now().Add(-45*24*time.Hour), false)
	// Recently expired: inside the retention window, kept.
	recent := makeToken(t, db, time.Now().Add(-time.Hour), false)
	// Live: kept.
	live := makeToken(t, db, time.Now().Add(24*time.Hour), false)
	// Revoked long ago: purged.
	revoked := makeToken(t, db, time.Now().Add(24*time.Hour), true)
	require.NoError(t, db.Model(revoked).Update("updated_at", time.Now().Add(-45*24*time.Hour)).Error)

	require.NoError(t, handler.HandleTokenPurge(context.Background(), tasks.NewTokenPurgeTask()))

	var remaining []models.RefreshToken
	require.NoError(t, db.Find(&remaining).Error)

	ids := make([]uuid.UUID, 0, len(remaining))
	for _, tok := range remaining {
		ids = append(ids, tok.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{recent.ID, live.ID}, ids)
	assert.NotContains(t, ids, gone.ID)
}

func TestOtpEmailHandlers(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := tasks.NewHandler(db, testutil.NewTestLogger(), testTTL)

	payload := tasks.OtpEmailPayload{
		UserID: uuid.New(),
		Email:  "ada@example.com",
		Name:   "Ada",
		Code:   "123456",
	}

	t.Run("verification email", func(t *testing.T) {
		task, err := tasks.NewVerificationEmailTask(payload)
		require.NoError(t, err)
		assert.NoError(t, handler.HandleVerificationEmail(context.Background(), task))
	})

	t.Run("password reset email", func(t *testing.T) {
		task, err := tasks.NewPasswordResetEmailTask(payload)
		require.NoError(t, err)
		assert.NoError(t, handler.HandlePasswordResetEmail(context.Background(), task))
	})
}
