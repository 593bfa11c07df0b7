package authz_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/courseloop/backend/internal/authz"
	"github.com/courseloop/backend/internal/database/models"
)

func TestCanAccess(t *testing.T) {
	cases := []struct {
		role       models.AccessRole
		capability authz.Capability
		want       bool
	}{
		{models.RoleUser, authz.CapViewOwnProfile, true},
		{models.RoleUser, authz.CapEnrollCourses, true},
		{models.RoleUser, authz.CapManageOwnReferralLinks, false},
		{models.RoleUser, authz.CapManageOwnCourses, false},
		{models.RoleAuthor, authz.CapManageOwnCourses, true},
		{models.RoleAuthor, authz.CapManageOwnReferralLinks, false},
		{models.RoleAffiliator, authz.CapManageOwnReferralLinks, true},
		{models.RoleAffiliator, authz.CapManageAnyReferralLink, false},
		{models.RoleAffiliator, authz.CapEnrollCourses, true},
		{models.RoleAdmin, authz.CapManageOwnCourses, true},
		{models.RoleAdmin, authz.CapManageOwnReferralLinks, true},
		{models.RoleAdmin, authz.CapManageAnyReferralLink, true},
		{models.RoleAdmin, authz.CapManageAnyUserRole, true},
	}

	for _, tc := range cases {
		got := authz.CanAccess(tc.role, tc.capability)
		assert.Equal(t, tc.want, got, "role %s capability %s", tc.role, tc.capability)
	}
}

func TestCanAccess_UnknownRole(t *testing.T) {
	assert.False(t, authz.CanAccess(models.AccessRole("SUPERUSER"), authz.CapViewOwnProfile))
	assert.Empty(t, authz.CapabilitiesFor(models.AccessRole("")))
}

func TestCanAccess_Deterministic(t *testing.T) {
	first := authz.CanAccess(models.RoleAffiliator, authz.CapManageOwnReferralLinks)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, authz.CanAccess(models.RoleAffiliator, authz.CapManageOwnReferralLinks))
	}
}
