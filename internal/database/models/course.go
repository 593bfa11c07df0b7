package models

import "github.com/google/uuid"

// Course is a catalog entry. The catalog has no lifecycle of its own here;
// it exists as the target of referral links and AUTHOR ownership.
type Course struct {
	Base
	Title       string    `gorm:"not null" json:"title"`
	Description string    `json:"description,omitempty"`
	AuthorID    uuid.UUID `gorm:"type:uuid;index;not null" json:"author_id"`
	Published   bool      `gorm:"default:true" json:"published"`
}

func (Course) TableName() string {
	return "courses"
}
