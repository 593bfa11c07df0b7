package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/courseloop/backend/internal/database/models"
	"github.com/courseloop/backend/internal/tasks"
	"github.com/courseloop/backend/pkg/crypto"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveUser       = errors.New("user is inactive")
	ErrInvalidRole        = errors.New("invalid access role")
	ErrInvalidOtp         = errors.New("invalid or expired one-time code")
)

const otpExpiry = 15 * time.Minute

// TaskEnqueuer is the slice of asynq.Client the service needs to hand off
// email delivery. Nil disables enqueuing (tests, redis-less deployments).
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type Service struct {
	db            *gorm.DB
	jwt           *JWTService
	encryptor     *crypto.Encryptor
	enqueuer      TaskEnqueuer
	logger        *slog.Logger
	refreshExpiry time.Duration
}

func NewService(db *gorm.DB, jwt *JWTService, encryptor *crypto.Encryptor, enqueuer TaskEnqueuer, logger *slog.Logger, refreshExpiry time.Duration) *Service {
	return &Service{
		db:            db,
		jwt:           jwt,
		encryptor:     encryptor,
		enqueuer:      enqueuer,
		logger:        logger,
		refreshExpiry: refreshExpiry,
	}
}

type RegisterInput struct {
	Email       string
	Password    string
	Name        string
	PhoneNumber string
	AccessRole  models.AccessRole
}

type LoginInput struct {
	Email    string
	Password string
}

// TokenPair is one issued session: a self-verifying access token and a
// store-tracked refresh token.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type AuthResult struct {
	User   *models.User
	Tokens TokenPair
}

func (s *Service) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	role := input.AccessRole
	if role == "" {
		role = models.RoleUser
	}
	if !models.ValidRole(role) {
		return nil, ErrInvalidRole
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	phoneEnc, err := s.encryptor.EncryptString(input.PhoneNumber)
	if err != nil {
		return nil, fmt.Errorf("encrypting phone number: %w", err)
	}

	user := models.User{
		Email:          NormalizeEmail(input.Email),
		PasswordHash:   hash,
		Name:           input.Name,
		PhoneEncrypted: phoneEnc,
		AccessRole:     role,
		EmailVerified:  false,
		IsActive:       true,
	}

	// The unique index on email is the authority; no check-then-insert.
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	if err := s.sendVerificationOtp(ctx, &user); err != nil {
		// Registration stands even if the verification mail could not be
		// queued; the client can re-request it.
		s.logger.Warn("could not queue verification email", "user_id", user.ID, "error", err)
	}

	tokens, err := s.issueTokens(ctx, s.db, &user)
	if err != nil {
		return nil, err
	}

	return &AuthResult{User: &user, Tokens: *tokens}, nil
}

func (s *Service) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("email = ?", NormalizeEmail(input.Email)).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Burn the same bcrypt cost as a real mismatch.
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(input.Password))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("loading user: %w", err)
	}

	if !CheckPassword(input.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, ErrInactiveUser
	}

	tokens, err := s.issueTokens(ctx, s.db, &user)
	if err != nil {
		return nil, err
	}

	return &AuthResult{User: &user, Tokens: *tokens}, nil
}

// Refresh rotates a refresh token: the old token is consumed and a new pair
// is issued. The consume is a single guarded UPDATE, so two concurrent calls
// on the same token cannot both succeed.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	hash := hashToken(refreshToken)

	var pair *TokenPair
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec models.RefreshToken
		if err := tx.Where("token_hash = ?", hash).First(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidToken
			}
			return fmt.Errorf("loading refresh token: %w", err)
		}

		res := tx.Model(&models.RefreshToken{}).
			Where("token_hash = ? AND revoked = ? AND expires_at > ?", hash, false, time.Now()).
			Update("revoked", true)
		if res.Error != nil {
			return fmt.Errorf("consuming refresh token: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrInvalidToken
		}

		var user models.User
		if err := tx.First(&user, "id = ?", rec.UserID).Error; err != nil {
			return ErrInvalidToken
		}
		if !user.IsActive {
			return ErrInvalidToken
		}

		p, err := s.issueTokens(ctx, tx, &user)
		if err != nil {
			return err
		}
		pair = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// Revoke marks a refresh token unusable. Idempotent: unknown or already
// revoked tokens are not an error.
func (s *Service) Revoke(ctx context.Context, refreshToken string) error {
	err := s.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token_hash = ?", hashToken(refreshToken)).
		Update("revoked", true).Error
	if err != nil {
		return fmt.Errorf("revoking refresh token: %w", err)
	}
	return nil
}

func (s *Service) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("loading user: %w", err)
	}
	return &user, nil
}

// SetRole changes a user's access role. ADMIN-only; the capability check
// lives in the HTTP layer.
func (s *Service) SetRole(ctx context.Context, userID uuid.UUID, role models.AccessRole) (*models.User, error) {
	if !models.ValidRole(role) {
		return nil, ErrInvalidRole
	}

	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(user).Update("access_role", role).Error; err != nil {
		return nil, fmt.Errorf("updating role: %w", err)
	}
	user.AccessRole = role
	return user, nil
}

// ForgotPassword issues a reset code for the account, if one exists. The
// caller learns nothing about account existence either way.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("email = ?", NormalizeEmail(email)).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("loading user: %w", err)
	}

	code, err := s.createOtp(ctx, user.ID, models.OtpPurposeResetPassword)
	if err != nil {
		return err
	}

	task, err := tasks.NewPasswordResetEmailTask(tasks.OtpEmailPayload{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
		Code:   code,
	})
	if err != nil {
		return fmt.Errorf("building reset email task: %w", err)
	}
	return s.enqueue(task)
}

// ResetPassword consumes a reset code, stores the new hash, and revokes all
// outstanding refresh tokens so stolen sessions do not survive the reset.
func (s *Service) ResetPassword(ctx context.Context, code, newPassword string) error {
	hash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		otp, err := consumeOtp(tx, models.OtpPurposeResetPassword, code)
		if err != nil {
			return err
		}

		if err := tx.Model(&models.User{}).
			Where("id = ?", otp.UserID).
			Update("password_hash", hash).Error; err != nil {
			return fmt.Errorf("updating password: %w", err)
		}

		if err := tx.Model(&models.RefreshToken{}).
			Where("user_id = ?", otp.UserID).
			Update("revoked", true).Error; err != nil {
			return fmt.Errorf("revoking sessions: %w", err)
		}
		return nil
	})
}

// VerifyEmail consumes a verification code for the given user.
func (s *Service) VerifyEmail(ctx context.Context, userID uuid.UUID, code string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		otp, err := consumeOtp(tx, models.OtpPurposeVerifyEmail, code)
		if err != nil {
			return err
		}
		if otp.UserID != userID {
			return ErrInvalidOtp
		}

		res := tx.Model(&models.User{}).
			Where("id = ?", userID).
			Update("email_verified", true)
		if res.Error != nil {
			return fmt.Errorf("marking verified: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrUserNotFound
		}
		return nil
	})
}

// PhoneNumber decrypts a user's stored phone number.
func (s *Service) PhoneNumber(user *models.User) (string, error) {
	if user.PhoneEncrypted == "" {
		return "", nil
	}
	return s.encryptor.DecryptString(user.PhoneEncrypted)
}

func (s *Service) issueTokens(ctx context.Context, tx *gorm.DB, user *models.User) (*TokenPair, error) {
	access, err := s.jwt.GenerateAccessToken(user.ID, user.AccessRole)
	if err != nil {
		return nil, fmt.Errorf("signing access token: %w", err)
	}

	raw, err := crypto.GenerateRandomBytes(32)
	if err != nil {
		return nil, err
	}
	refresh := base64.RawURLEncoding.EncodeToString(raw)

	rec := models.RefreshToken{
		UserID:    user.ID,
		TokenHash: hashToken(refresh),
		ExpiresAt: time.Now().Add(s.refreshExpiry),
	}
	if err := tx.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, fmt.Errorf("recording refresh token: %w", err)
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) sendVerificationOtp(ctx context.Context, user *models.User) error {
	code, err := s.createOtp(ctx, user.ID, models.OtpPurposeVerifyEmail)
	if err != nil {
		return err
	}
	task, err := tasks.NewVerificationEmailTask(tasks.OtpEmailPayload{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
		Code:   code,
	})
	if err != nil {
		return fmt.Errorf("building verification email task: %w", err)
	}
	return s.enqueue(task)
}

func (s *Service) createOtp(ctx context.Context, userID uuid.UUID, purpose models.OtpPurpose) (string, error) {
	code, err := generateOtpCode()
	if err != nil {
		return "", err
	}

	otp := models.Otp{
		UserID:    userID,
		Purpose:   purpose,
		CodeHash:  hashToken(code),
		ExpiresAt: time.Now().Add(otpExpiry),
	}
	if err := s.db.WithContext(ctx).Create(&otp).Error; err != nil {
		return "", fmt.Errorf("storing otp: %w", err)
	}
	return code, nil
}

func (s *Service) enqueue(task *asynq.Task) error {
	if s.enqueuer == nil {
		s.logger.Debug("task enqueuer not configured, dropping task", "type", task.Type())
		return nil
	}
	if _, err := s.enqueuer.Enqueue(task); err != nil {
		return fmt.Errorf("enqueuing %s: %w", task.Type(), err)
	}
	return nil
}

// consumeOtp marks a matching unconsumed, unexpired code as used. The guard
// on the UPDATE keeps a code single-use under concurrent attempts.
func consumeOtp(tx *gorm.DB, purpose models.OtpPurpose, code string) (*models.Otp, error) {
	var otp models.Otp
	err := tx.Where("purpose = ? AND code_hash = ? AND consumed = ? AND expires_at > ?",
		purpose, hashToken(code), false, time.Now()).
		First(&otp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidOtp
		}
		return nil, fmt.Errorf("loading otp: %w", err)
	}

	res := tx.Model(&models.Otp{}).
		Where("id = ? AND consumed = ?", otp.ID, false).
		Update("consumed", true)
	if res.Error != nil {
		return nil, fmt.Errorf("consuming otp: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrInvalidOtp
	}
	return &otp, nil
}

// NormalizeEmail lowercases and trims an address. Uniqueness is
// case-insensitive because every write goes through this.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func generateOtpCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generating otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
