package models

import (
	"time"

	"github.com/google/uuid"
)

// OtpPurpose scopes a one-time code to a single flow.
type OtpPurpose string

const (
	OtpPurposeResetPassword OtpPurpose = "reset_password"
	OtpPurposeVerifyEmail   OtpPurpose = "verify_email"
)

// Otp is a short-lived one-time code delivered by email. The code itself is
// never stored, only its SHA-256 hash.
type Otp struct {
	Base
	UserID    uuid.UUID  `gorm:"type:uuid;index;not null" json:"user_id"`
	Purpose   OtpPurpose `gorm:"index;not null" json:"purpose"`
	CodeHash  string     `gorm:"size:64;not null" json:"-"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	Consumed  bool       `gorm:"default:false" json:"consumed"`
}

func (Otp) TableName() string {
	return "otps"
}
