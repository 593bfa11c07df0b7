package dto

import (
	"time"

	"github.com/courseloop/backend/internal/api/validation"
	"github.com/courseloop/backend/internal/database/models"
)

type CreateReferralLinkRequest struct {
	CourseID string `json:"courseId"`
}

func (r CreateReferralLinkRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.CourseID == "" {
		errors["courseId"] = "Course id is required"
	} else if !validation.IsValidUUID(r.CourseID) {
		errors["courseId"] = "Course id must be a UUID"
	}

	return errors
}

type ReferralLinkResponse struct {
	ID            string  `json:"id"`
	AffiliateID   string  `json:"affiliateId"`
	CourseID      string  `json:"courseId"`
	Link          string  `json:"link"`
	Expired       bool    `json:"expired"`
	ExpiredAt     *string `json:"expiredAt,omitempty"`
	IsSoftDeleted bool    `json:"isSoftDeleted"`
	CreatedAt     string  `json:"createdAt"`
}

func ReferralLinkToResponse(l *models.ReferralLink) ReferralLinkResponse {
	resp := ReferralLinkResponse{
		ID:            l.ID.String(),
		AffiliateID:   l.AffiliateID.String(),
		CourseID:      l.CourseID.String(),
		Link:          l.Link,
		Expired:       l.Expired,
		IsSoftDeleted: l.IsSoftDeleted,
		CreatedAt:     l.CreatedAt.Format(time.RFC3339),
	}
	if l.ExpiredAt != nil {
		s := l.ExpiredAt.Format(time.RFC3339)
		resp.ExpiredAt = &s
	}
	return resp
}
