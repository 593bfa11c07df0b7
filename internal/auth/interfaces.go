package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/courseloop/backend/internal/database/models"
)

// Authenticator defines the credential-store and session operations.
type Authenticator interface {
	Register(ctx context.Context, input RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, input LoginInput) (*AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Revoke(ctx context.Context, refreshToken string) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetRole(ctx context.Context, userID uuid.UUID, role models.AccessRole) (*models.User, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, code, newPassword string) error
	VerifyEmail(ctx context.Context, userID uuid.UUID, code string) error
}

// TokenValidator defines access-token verification.
type TokenValidator interface {
	GenerateAccessToken(userID uuid.UUID, role models.AccessRole) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
}

// Compile-time interface satisfaction checks
var (
	_ Authenticator  = (*Service)(nil)
	_ TokenValidator = (*JWTService)(nil)
)
