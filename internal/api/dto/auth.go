package dto

import (
	"time"

	"github.com/courseloop/backend/internal/api/validation"
	"github.com/courseloop/backend/internal/database/models"
)

// Request schemas mirror the operations of the auth surface. Validate
// returns field -> violated rule; empty map means the shape is acceptable.

type RegisterRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
	Name            string `json:"name"`
	PhoneNumber     string `json:"phoneNumber"`
	AccessRole      string `json:"accessRole,omitempty"`
}

func (r RegisterRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Email == "" {
		errors["email"] = "Email is required"
	} else if !validation.IsValidEmail(r.Email) {
		errors["email"] = "Email format is invalid"
	}

	if r.Password == "" {
		errors["password"] = "Password is required"
	} else if ok, reason := validation.IsValidPassword(r.Password); !ok {
		errors["password"] = reason
	}

	if r.PasswordConfirm == "" {
		errors["passwordConfirm"] = "Password confirmation is required"
	} else if r.Password != "" && r.Password != r.PasswordConfirm {
		errors["passwordConfirm"] = "Passwords do not match"
	}

	if r.Name == "" {
		errors["name"] = "Name is required"
	}

	if r.PhoneNumber == "" {
		errors["phoneNumber"] = "Phone number is required"
	} else if !validation.IsValidPhone(r.PhoneNumber) {
		errors["phoneNumber"] = "Phone number format is invalid"
	}

	if r.AccessRole != "" && !models.ValidRole(models.AccessRole(r.AccessRole)) {
		errors["accessRole"] = "Access role must be one of USER, AUTHOR, AFFILIATOR, ADMIN"
	}

	return errors
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Email == "" {
		errors["email"] = "Email is required"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	}

	return errors
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (r RefreshTokenRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.RefreshToken == "" {
		errors["refreshToken"] = "Refresh token is required"
	}

	return errors
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

func (r ForgotPasswordRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Email == "" {
		errors["email"] = "Email is required"
	} else if !validation.IsValidEmail(r.Email) {
		errors["email"] = "Email format is invalid"
	}

	return errors
}

type ResetPasswordRequest struct {
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
	Otp             string `json:"otp"`
}

func (r ResetPasswordRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Password == "" {
		errors["password"] = "Password is required"
	} else if ok, reason := validation.IsValidPassword(r.Password); !ok {
		errors["password"] = reason
	}

	if r.PasswordConfirm == "" {
		errors["passwordConfirm"] = "Password confirmation is required"
	} else if r.Password != "" && r.Password != r.PasswordConfirm {
		errors["passwordConfirm"] = "Passwords do not match"
	}

	if r.Otp == "" {
		errors["otp"] = "One-time code is required"
	}

	return errors
}

type VerifyEmailRequest struct {
	ID  string `json:"id"`
	Otp string `json:"otp"`
}

func (r VerifyEmailRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.ID == "" {
		errors["id"] = "User id is required"
	} else if !validation.IsValidUUID(r.ID) {
		errors["id"] = "User id must be a UUID"
	}
	if r.Otp == "" {
		errors["otp"] = "One-time code is required"
	}

	return errors
}

type UpdateRoleRequest struct {
	AccessRole string `json:"accessRole"`
}

func (r UpdateRoleRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.AccessRole == "" {
		errors["accessRole"] = "Access role is required"
	} else if !models.ValidRole(models.AccessRole(r.AccessRole)) {
		errors["accessRole"] = "Access role must be one of USER, AUTHOR, AFFILIATOR, ADMIN"
	}

	return errors
}

type TokenPairDTO struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type UserDTO struct {
	ID            string   `json:"id"`
	Email         string   `json:"email"`
	Name          string   `json:"name"`
	PhoneNumber   string   `json:"phoneNumber,omitempty"`
	AccessRole    string   `json:"accessRole"`
	EmailVerified bool     `json:"emailVerified"`
	Capabilities  []string `json:"capabilities,omitempty"`
	CreatedAt     string   `json:"createdAt"`
}

type AuthResponse struct {
	Tokens TokenPairDTO `json:"tokens"`
	User   UserDTO      `json:"user"`
}

// UserToDTO serializes a user without the password hash or phone ciphertext.
// phone is the decrypted number, included only for the owner's own profile.
func UserToDTO(u *models.User, phone string, capabilities []string) UserDTO {
	return UserDTO{
		ID:            u.ID.String(),
		Email:         u.Email,
		Name:          u.Name,
		PhoneNumber:   phone,
		AccessRole:    string(u.AccessRole),
		EmailVerified: u.EmailVerified,
		Capabilities:  capabilities,
		CreatedAt:     u.CreatedAt.Format(time.RFC3339),
	}
}
