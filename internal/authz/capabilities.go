// Package authz holds the static role/capability table. It is the single
// source of truth for what a role may do; the HTTP middleware and any
// client-side view gating both derive from it.
package authz

import "github.com/courseloop/backend/internal/database/models"

type Capability string

const (
	CapViewOwnProfile         Capability = "profile:view_own"
	CapEnrollCourses          Capability = "courses:enroll"
	CapManageOwnCourses       Capability = "courses:manage_own"
	CapManageOwnReferralLinks Capability = "referral_links:manage_own"
	CapManageAnyReferralLink  Capability = "referral_links:manage_any"
	CapManageAnyUserRole      Capability = "users:manage_role"
)

var baseCapabilities = []Capability{
	CapViewOwnProfile,
	CapEnrollCourses,
}

var roleCapabilities = map[models.AccessRole][]Capability{
	models.RoleUser:       {},
	models.RoleAuthor:     {CapManageOwnCourses},
	models.RoleAffiliator: {CapManageOwnReferralLinks},
	models.RoleAdmin: {
		CapManageOwnCourses,
		CapManageOwnReferralLinks,
		CapManageAnyReferralLink,
		CapManageAnyUserRole,
	},
}

// CapabilitiesFor returns the full capability set of a role. Every known
// role carries the base capabilities; unknown roles get nothing.
func CapabilitiesFor(role models.AccessRole) []Capability {
	extra, ok := roleCapabilities[role]
	if !ok {
		return nil
	}
	caps := make([]Capability, 0, len(baseCapabilities)+len(extra))
	caps = append(caps, baseCapabilities...)
	caps = append(caps, extra...)
	return caps
}

// CanAccess reports whether role holds capability. Pure and deterministic.
func CanAccess(role models.AccessRole, capability Capability) bool {
	for _, c := range CapabilitiesFor(role) {
		if c == capability {
			return true
		}
	}
	return false
}
