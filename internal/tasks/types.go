package tasks

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type names
const (
	TypeVerificationEmail  = "email:verification"
	TypePasswordResetEmail = "email:password_reset"
	TypeReferralSweep      = "referral:expire_sweep"
	TypeTokenPurge         = "auth:token_purge"
)

// OtpEmailPayload carries a one-time code to be delivered by email.
type OtpEmailPayload struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Name   string    `json:"name"`
	Code   string    `json:"code"`
}

func NewVerificationEmailTask(payload OtpEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeVerificationEmail, data), nil
}

func NewPasswordResetEmailTask(payload OtpEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePasswordResetEmail, data), nil
}

// NewReferralSweepTask persists the expired flag on referral links whose
// issuance window has elapsed. Reads do not depend on it running.
func NewReferralSweepTask() *asynq.Task {
	return asynq.NewTask(TypeReferralSweep, nil, asynq.Queue("low"))
}

// NewTokenPurgeTask deletes refresh tokens that are long past use.
func NewTokenPurgeTask() *asynq.Task {
	return asynq.NewTask(TypeTokenPurge, nil, asynq.Queue("low"))
}
