package models

// AccessRole determines which capabilities a user may reach.
type AccessRole string

const (
	RoleUser       AccessRole = "USER"
	RoleAuthor     AccessRole = "AUTHOR"
	RoleAffiliator AccessRole = "AFFILIATOR"
	RoleAdmin      AccessRole = "ADMIN"
)

// ValidRole reports whether r is one of the four enumerated roles.
func ValidRole(r AccessRole) bool {
	switch r {
	case RoleUser, RoleAuthor, RoleAffiliator, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	Base
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`
	Name         string `json:"name"`
	// Phone number is stored age-encrypted; decrypted only for the owner's profile.
	PhoneEncrypted string     `json:"-"`
	AccessRole     AccessRole `gorm:"default:'USER';index" json:"access_role"`
	EmailVerified  bool       `gorm:"default:false" json:"email_verified"`
	// Deactivation flag instead of hard deletion, so referral links and
	// course authorship keep valid references.
	IsActive bool `gorm:"default:true" json:"is_active"`
}

func (User) TableName() string {
	return "users"
}
