package dto

import (
	"time"

	"github.com/courseloop/backend/internal/database/models"
)

type CreateCourseRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

func (r CreateCourseRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Title == "" {
		errors["title"] = "Title is required"
	}

	return errors
}

type CourseResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	AuthorID    string `json:"authorId"`
	Published   bool   `json:"published"`
	CreatedAt   string `json:"createdAt"`
}

func CourseToResponse(c *models.Course) CourseResponse {
	return CourseResponse{
		ID:          c.ID.String(),
		Title:       c.Title,
		Description: c.Description,
		AuthorID:    c.AuthorID.String(),
		Published:   c.Published,
		CreatedAt:   c.CreatedAt.Format(time.RFC3339),
	}
}
