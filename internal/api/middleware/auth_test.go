package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courseloop/backend/internal/api/middleware"
	"github.com/courseloop/backend/internal/auth"
	"github.com/courseloop/backend/internal/authz"
	"github.com/courseloop/backend/internal/database/models"
)

func TestAuth(t *testing.T) {
	jwtService := auth.NewJWTService("test-secret", 30*time.Minute)
	userID := uuid.New()

	var gotID uuid.UUID
	var gotRole models.AccessRole
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = middleware.GetUserID(r.Context())
		gotRole = middleware.GetUserRole(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := middleware.Auth(jwtService)(next)

	t.Run("valid token populates the context", func(t *testing.T) {
		token, err := jwtService.GenerateAccessToken(userID, models.RoleAffiliator)
		require.NoError(t, err)

		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, userID, gotID)
		assert.Equal(t, models.RoleAffiliator, gotRole)
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("non-bearer scheme", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer garbage")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		expired := auth.NewJWTService("test-secret", -time.Minute)
		token, err := expired.GenerateAccessToken(userID, models.RoleUser)
		require.NoError(t, err)

		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestRequireCapability(t *testing.T) {
	jwtService := auth.NewJWTService("test-secret", 30*time.Minute)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	serve := func(t *testing.T, role models.AccessRole, capability authz.Capability) int {
		t.Helper()
		handler := middleware.Auth(jwtService)(middleware.RequireCapability(capability)(next))

		token, err := jwtService.GenerateAccessToken(uuid.New(), role)
		require.NoError(t, err)

		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	t.Run("role with the capability passes", func(t *testing.T) {
		code := serve(t, models.RoleAffiliator, authz.CapManageOwnReferralLinks)
		assert.Equal(t, http.StatusOK, code)
	})

	t.Run("role without the capability is forbidden", func(t *testing.T) {
		code := serve(t, models.RoleUser, authz.CapManageOwnReferralLinks)
		assert.Equal(t, http.StatusForbidden, code)
	})

	t.Run("admin passes everywhere", func(t *testing.T) {
		code := serve(t, models.RoleAdmin, authz.CapManageAnyUserRole)
		assert.Equal(t, http.StatusOK, code)
	})

	t.Run("no identity in context is unauthorized", func(t *testing.T) {
		handler := middleware.RequireCapability(authz.CapViewOwnProfile)(next)
		req := httptest.NewRequest("GET", "/", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}
