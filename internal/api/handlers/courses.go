package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/courseloop/backend/internal/api/dto"
	"github.com/courseloop/backend/internal/api/middleware"
	"github.com/courseloop/backend/internal/database/models"
)

// CourseHandler serves the catalog. The catalog is read/list plus an
// AUTHOR-gated create; courses have no further lifecycle here.
type CourseHandler struct {
	db *gorm.DB
}

func NewCourseHandler(db *gorm.DB) *CourseHandler {
	return &CourseHandler{db: db}
}

// List handles GET /api/v1/courses
func (h *CourseHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	pagination := dto.PaginationParams{Page: page, PerPage: perPage}
	pagination.Normalize()

	query := h.db.WithContext(r.Context()).Model(&models.Course{}).Where("published = ?", true)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to count courses"})
		return
	}

	var courses []models.Course
	err := query.
		Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.PerPage).
		Find(&courses).Error
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list courses"})
		return
	}

	data := make([]dto.CourseResponse, len(courses))
	for i := range courses {
		data[i] = dto.CourseToResponse(&courses[i])
	}

	totalPages := int((total + int64(pagination.PerPage) - 1) / int64(pagination.PerPage))
	writeJSON(w, http.StatusOK, dto.PaginatedResponse{
		Data:       data,
		Total:      total,
		Page:       pagination.Page,
		PerPage:    pagination.PerPage,
		TotalPages: totalPages,
	})
}

// Get handles GET /api/v1/courses/{id}
func (h *CourseHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid course id"})
		return
	}

	var course models.Course
	if err := h.db.WithContext(r.Context()).First(&course, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Course not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load course"})
		return
	}

	writeJSON(w, http.StatusOK, dto.CourseToResponse(&course))
}

// Create handles POST /api/v1/courses (courses:manage_own capability).
func (h *CourseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateCourseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	course := models.Course{
		Title:       req.Title,
		Description: req.Description,
		AuthorID:    middleware.GetUserID(r.Context()),
		Published:   true,
	}
	if err := h.db.WithContext(r.Context()).Create(&course).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create course"})
		return
	}

	writeJSON(w, http.StatusCreated, dto.CourseToResponse(&course))
}
