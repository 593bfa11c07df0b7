package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/courseloop/backend/internal/api/dto"
	"github.com/courseloop/backend/internal/api/middleware"
	"github.com/courseloop/backend/internal/authz"
	"github.com/courseloop/backend/internal/referral"
)

type ReferralHandler struct {
	service *referral.Service
}

func NewReferralHandler(service *referral.Service) *ReferralHandler {
	return &ReferralHandler{service: service}
}

// Create handles POST /api/v1/referralLinks. Idempotent: an existing active
// link for the pair is returned with 200 instead of creating a duplicate.
func (h *ReferralHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateReferralLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	courseID, _ := uuid.Parse(req.CourseID)
	affiliateID := middleware.GetUserID(r.Context())

	link, created, err := h.service.CreateLink(r.Context(), affiliateID, courseID)
	if err != nil {
		if errors.Is(err, referral.ErrCourseNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Course not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create link"})
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, dto.ReferralLinkToResponse(link))
}

// List handles GET /api/v1/referralLinks, returning the caller's active
// links. Admins may inspect another affiliate with ?affiliateId=.
func (h *ReferralHandler) List(w http.ResponseWriter, r *http.Request) {
	affiliateID := middleware.GetUserID(r.Context())

	if q := r.URL.Query().Get("affiliateId"); q != "" {
		if !authz.CanAccess(middleware.GetUserRole(r.Context()), authz.CapManageAnyReferralLink) {
			writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden"})
			return
		}
		id, err := uuid.Parse(q)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid affiliate id"})
			return
		}
		affiliateID = id
	}

	links, err := h.service.ListActiveLinks(r.Context(), affiliateID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list links"})
		return
	}

	resp := make([]dto.ReferralLinkResponse, len(links))
	for i := range links {
		resp[i] = dto.ReferralLinkToResponse(&links[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/v1/referralLinks/{id}; soft-deleted and expired
// records stay fetchable for audit.
func (h *ReferralHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid link id"})
		return
	}

	link, err := h.service.GetLink(r.Context(), id)
	if err != nil {
		if errors.Is(err, referral.ErrLinkNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Link not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load link"})
		return
	}

	if link.AffiliateID != middleware.GetUserID(r.Context()) &&
		!authz.CanAccess(middleware.GetUserRole(r.Context()), authz.CapManageAnyReferralLink) {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden"})
		return
	}

	writeJSON(w, http.StatusOK, dto.ReferralLinkToResponse(link))
}

// Expire handles POST /api/v1/referralLinks/{id}/expire.
func (h *ReferralHandler) Expire(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid link id"})
		return
	}

	admin := authz.CanAccess(middleware.GetUserRole(r.Context()), authz.CapManageAnyReferralLink)
	link, err := h.service.ExpireLink(r.Context(), id, middleware.GetUserID(r.Context()), admin)
	if err != nil {
		writeReferralError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ReferralLinkToResponse(link))
}

// Delete handles DELETE /api/v1/referralLinks/{id} (soft delete).
func (h *ReferralHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid link id"})
		return
	}

	admin := authz.CanAccess(middleware.GetUserRole(r.Context()), authz.CapManageAnyReferralLink)
	if err := h.service.SoftDeleteLink(r.Context(), id, middleware.GetUserID(r.Context()), admin); err != nil {
		writeReferralError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeReferralError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, referral.ErrLinkNotFound):
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Link not found"})
	case errors.Is(err, referral.ErrNotOwner):
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden"})
	default:
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Operation failed"})
	}
}
