package models

import (
	"time"

	"github.com/google/uuid"
)

// ReferralLink associates one affiliate with one course for attribution.
// Records are never hard-deleted; removal sets IsSoftDeleted and expiry sets
// Expired/ExpiredAt, so history stays queryable.
type ReferralLink struct {
	Base
	AffiliateID   uuid.UUID  `gorm:"type:uuid;index;not null" json:"affiliate_id"`
	CourseID      uuid.UUID  `gorm:"type:uuid;index;not null" json:"course_id"`
	Link          string     `gorm:"not null" json:"link"`
	Expired       bool       `gorm:"default:false" json:"expired"`
	ExpiredAt     *time.Time `json:"expired_at,omitempty"`
	IsSoftDeleted bool       `gorm:"default:false" json:"is_soft_deleted"`
}

func (ReferralLink) TableName() string {
	return "referral_links"
}

// ExpiredBy reports whether the link should be treated as expired at now,
// given the issuance TTL. The stored flag never overrides an elapsed TTL.
func (l *ReferralLink) ExpiredBy(now time.Time, ttl time.Duration) bool {
	if l.Expired {
		return true
	}
	return ttl > 0 && !now.Before(l.CreatedAt.Add(ttl))
}

// Active reports whether the link counts for "active links" queries.
func (l *ReferralLink) Active(now time.Time, ttl time.Duration) bool {
	return !l.IsSoftDeleted && !l.ExpiredBy(now, ttl)
}
