package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"github.com/courseloop/backend/internal/database/models"
)

// tokenRetention is how long expired or revoked refresh tokens are kept
// before the purge removes them. Long enough for abuse investigation.
const tokenRetention = 30 * 24 * time.Hour

type Handler struct {
	db     *gorm.DB
	logger *slog.Logger
	// referralTTL is the issuance window after which links expire; the
	// sweep persists the flag that reads already evaluate lazily.
	referralTTL time.Duration
}

func NewHandler(db *gorm.DB, logger *slog.Logger, referralTTL time.Duration) *Handler {
	return &Handler{db: db, logger: logger, referralTTL: referralTTL}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeVerificationEmail, h.HandleVerificationEmail)
	mux.HandleFunc(TypePasswordResetEmail, h.HandlePasswordResetEmail)
	mux.HandleFunc(TypeReferralSweep, h.HandleReferralSweep)
	mux.HandleFunc(TypeTokenPurge, h.HandleTokenPurge)
}

// HandleReferralSweep persists the expired flag on links whose issuance
// window elapsed. Reads do not depend on the sweep; it keeps reporting
// queries on the stored flag honest.
func (h *Handler) HandleReferralSweep(ctx context.Context, t *asynq.Task) error {
	if h.referralTTL <= 0 {
		return nil
	}
	cutoff := time.Now().Add(-h.referralTTL)

	res := h.db.WithContext(ctx).Model(&models.ReferralLink{}).
		Where("expired = ? AND created_at <= ?", false, cutoff).
		Updates(map[string]interface{}{"expired": true, "expired_at": time.Now()})
	if res.Error != nil {
		return fmt.Errorf("sweeping referral links: %w", res.Error)
	}

	if res.RowsAffected > 0 {
		h.logger.Info("referral sweep marked links expired", "count", res.RowsAffected)
	}
	return nil
}

// HandleTokenPurge deletes refresh tokens long past any possible use.
func (h *Handler) HandleTokenPurge(ctx context.Context, t *asynq.Task) error {
	cutoff := time.Now().Add(-tokenRetention)

	res := h.db.WithContext(ctx).
		Where("expires_at < ?", cutoff).
		Or("revoked = ? AND updated_at < ?", true, cutoff).
		Delete(&models.RefreshToken{})
	if res.Error != nil {
		return fmt.Errorf("purging refresh tokens: %w", res.Error)
	}

	if res.RowsAffected > 0 {
		h.logger.Info("purged refresh tokens", "count", res.RowsAffected)
	}
	return nil
}

func (h *Handler) HandleVerificationEmail(ctx context.Context, t *asynq.Task) error {
	return h.deliverOtpEmail(t, "verify your email address")
}

func (h *Handler) HandlePasswordResetEmail(ctx context.Context, t *asynq.Task) error {
	return h.deliverOtpEmail(t, "reset your password")
}

// deliverOtpEmail hands the message to the mail transport. SMTP wiring is a
// deployment concern; here delivery is logged so the flow stays observable.
func (h *Handler) deliverOtpEmail(t *asynq.Task, subject string) error {
	var payload OtpEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	h.logger.Info("sending one-time code email",
		"type", t.Type(),
		"user_id", payload.UserID,
		"email", payload.Email,
		"subject", subject,
	)
	return nil
}
