package auth_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courseloop/backend/internal/auth"
	"github.com/courseloop/backend/internal/database/models"
	"github.com/courseloop/backend/internal/tasks"
	"github.com/courseloop/backend/internal/testutil"
)

func registerInput(email string) auth.RegisterInput {
	return auth.RegisterInput{
		Email:       email,
		Password:    "Abc123!!",
		Name:        "Ada Lovelace",
		PhoneNumber: "+49 151 1234567",
	}
}

func TestService_Register(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()
	ctx := context.Background()

	t.Run("creates user with defaults", func(t *testing.T) {
		result, err := tc.Auth.Register(ctx, registerInput("ada@example.com"))
		require.NoError(t, err)

		assert.Equal(t, "ada@example.com", result.User.Email)
		assert.Equal(t, models.RoleUser, result.User.AccessRole)
		assert.False(t, result.User.EmailVerified)
		assert.True(t, result.User.IsActive)
		assert.NotEmpty(t, result.Tokens.AccessToken)
		assert.NotEmpty(t, result.Tokens.RefreshToken)
	})

	t.Run("never stores the plaintext password or phone", func(t *testing.T) {
		result, err := tc.Auth.Register(ctx, registerInput("grace@example.com"))
		require.NoError(t, err)

		var user models.User
		require.NoError(t, tc.DB.First(&user, "id = ?", result.User.ID).Error)
		assert.NotContains(t, user.PasswordHash, "Abc123!!")
		assert.NotEmpty(t, user.PhoneEncrypted)
		assert.NotEqual(t, "+49 151 1234567", user.PhoneEncrypted)

		phone, err := tc.Auth.PhoneNumber(&user)
		require.NoError(t, err)
		assert.Equal(t, "+49 151 1234567", phone)
	})

	t.Run("duplicate email conflicts case-insensitively", func(t *testing.T) {
		_, err := tc.Auth.Register(ctx, registerInput("dup@example.com"))
		require.NoError(t, err)

		_, err = tc.Auth.Register(ctx, registerInput("DUP@Example.COM"))
		assert.ErrorIs(t, err, auth.ErrUserExists)
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		input := registerInput("role@example.com")
		input.AccessRole = "SUPERUSER"
		_, err := tc.Auth.Register(ctx, input)
		assert.ErrorIs(t, err, auth.ErrInvalidRole)
	})

	t.Run("enqueues a verification email", func(t *testing.T) {
		result, err := tc.Auth.Register(ctx, registerInput("verify@example.com"))
		require.NoError(t, err)

		var payload tasks.OtpEmailPayload
		tc.Enqueuer.LastPayload(t, tasks.TypeVerificationEmail, &payload)
		assert.Equal(t, result.User.ID, payload.UserID)
		assert.Len(t, payload.Code, 6)
	})
}

func TestService_Login(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()
	ctx := context.Background()

	_, err := tc.Auth.Register(ctx, registerInput("login@example.com"))
	require.NoError(t, err)

	t.Run("succeeds with correct credentials", func(t *testing.T) {
		result, err := tc.Auth.Login(ctx, auth.LoginInput{Email: "login@example.com", Password: "Abc123!!"})
		require.NoError(t, err)
		assert.NotEmpty(t, result.Tokens.AccessToken)
	})

	t.Run("email matching is case-insensitive", func(t *testing.T) {
		_, err := tc.Auth.Login(ctx, auth.LoginInput{Email: "LOGIN@example.com", Password: "Abc123!!"})
		require.NoError(t, err)
	})

	t.Run("wrong password and unknown email fail identically", func(t *testing.T) {
		_, err := tc.Auth.Login(ctx, auth.LoginInput{Email: "login@example.com", Password: "wrong"})
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

		_, err = tc.Auth.Login(ctx, auth.LoginInput{Email: "ghost@example.com", Password: "Abc123!!"})
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("inactive account is rejected", func(t *testing.T) {
		result, err := tc.Auth.Register(ctx, registerInput("inactive@example.com"))
		require.NoError(t, err)
		require.NoError(t, tc.DB.Model(result.User).Update("is_active", false).Error)

		_, err = tc.Auth.Login(ctx, auth.LoginInput{Email: "inactive@example.com", Password: "Abc123!!"})
		assert.ErrorIs(t, err, auth.ErrInactiveUser)
	})
}

func TestService_Refresh(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()
	ctx := context.Background()

	result, err := tc.Auth.Register(ctx, registerInput("refresh@example.com"))
	require.NoError(t, err)

	t.Run("rotation: a token refreshes at most once", func(t *testing.T) {
		pair, err := tc.Auth.Refresh(ctx, result.Tokens.RefreshToken)
		require.NoError(t, err)
		assert.NotEmpty(t, pair.AccessToken)
		assert.NotEqual(t, result.Tokens.RefreshToken, pair.RefreshToken)

		// Replay of the consumed token must fail.
		_, err = tc.Auth.Refresh(ctx, result.Tokens.RefreshToken)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)

		// The rotated token works.
		_, err = tc.Auth.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)
	})

	t.Run("unknown token fails", func(t *testing.T) {
		_, err := tc.Auth.Refresh(ctx, "bogus-refresh-token")
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("concurrent refreshes succeed exactly once", func(t *testing.T) {
		result, err := tc.Auth.Register(ctx, registerInput("race@example.com"))
		require.NoError(t, err)

		const attempts = 8
		var wg sync.WaitGroup
		errs := make([]error, attempts)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = tc.Auth.Refresh(ctx, result.Tokens.RefreshToken)
			}(i)
		}
		wg.Wait()

		var successes int
		for _, err := range errs {
			if err == nil {
				successes++
			} else {
				assert.ErrorIs(t, err, auth.ErrInvalidToken)
			}
		}
		assert.Equal(t, 1, successes)
	})
}

func TestService_Revoke(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()
	ctx := context.Background()

	result, err := tc.Auth.Register(ctx, registerInput("logout@example.com"))
	require.NoError(t, err)

	t.Run("revoked token cannot refresh", func(t *testing.T) {
		require.NoError(t, tc.Auth.Revoke(ctx, result.Tokens.RefreshToken))

		_, err := tc.Auth.Refresh(ctx, result.Tokens.RefreshToken)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("revoke is idempotent", func(t *testing.T) {
		assert.NoError(t, tc.Auth.Revoke(ctx, result.Tokens.RefreshToken))
		assert.NoError(t, tc.Auth.Revoke(ctx, "never-issued"))
	})
}

func TestService_PasswordReset(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()
	ctx := context.Background()

	result, err := tc.Auth.Register(ctx, registerInput("reset@example.com"))
	require.NoError(t, err)

	require.NoError(t, tc.Auth.ForgotPassword(ctx, "reset@example.com"))

	var payload tasks.OtpEmailPayload
	tc.Enqueuer.LastPayload(t, tasks.TypePasswordResetEmail, &payload)

	t.Run("unknown email leaks nothing", func(t *testing.T) {
		assert.NoError(t, tc.Auth.ForgotPassword(ctx, "ghost@example.com"))
	})

	t.Run("reset consumes the code and revokes sessions", func(t *testing.T) {
		require.NoError(t, tc.Auth.ResetPassword(ctx, payload.Code, "NewPass1!"))

		// Old password no longer works, new one does.
		_, err := tc.Auth.Login(ctx, auth.LoginInput{Email: "reset@example.com", Password: "Abc123!!"})
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
		_, err = tc.Auth.Login(ctx, auth.LoginInput{Email: "reset@example.com", Password: "NewPass1!"})
		require.NoError(t, err)

		// Pre-reset refresh tokens are dead.
		_, err = tc.Auth.Refresh(ctx, result.Tokens.RefreshToken)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)

		// The code is single-use.
		err = tc.Auth.ResetPassword(ctx, payload.Code, "Another1!")
		assert.ErrorIs(t, err, auth.ErrInvalidOtp)
	})

	t.Run("bogus code is rejected", func(t *testing.T) {
		err := tc.Auth.ResetPassword(ctx, "000000x", "Another1!")
		assert.ErrorIs(t, err, auth.ErrInvalidOtp)
	})
}

func TestService_VerifyEmail(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()
	ctx := context.Background()

	result, err := tc.Auth.Register(ctx, registerInput("confirm@example.com"))
	require.NoError(t, err)

	var payload tasks.OtpEmailPayload
	tc.Enqueuer.LastPayload(t, tasks.TypeVerificationEmail, &payload)

	t.Run("wrong user cannot consume the code", func(t *testing.T) {
		other := testutil.CreateTestUser(t, tc.DB, models.RoleUser)
		err := tc.Auth.VerifyEmail(ctx, other.ID, payload.Code)
		assert.ErrorIs(t, err, auth.ErrInvalidOtp)
	})

	t.Run("marks the account verified", func(t *testing.T) {
		require.NoError(t, tc.Auth.VerifyEmail(ctx, result.User.ID, payload.Code))

		user, err := tc.Auth.GetUserByID(ctx, result.User.ID)
		require.NoError(t, err)
		assert.True(t, user.EmailVerified)
	})
}

func TestService_SetRole(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()
	ctx := context.Background()

	user := testutil.CreateTestUser(t, tc.DB, models.RoleUser)

	t.Run("changes the role", func(t *testing.T) {
		updated, err := tc.Auth.SetRole(ctx, user.ID, models.RoleAffiliator)
		require.NoError(t, err)
		assert.Equal(t, models.RoleAffiliator, updated.AccessRole)
	})

	t.Run("unknown user", func(t *testing.T) {
		ghost := testutil.CreateTestUser(t, tc.DB, models.RoleUser)
		require.NoError(t, tc.DB.Delete(ghost).Error)

		_, err := tc.Auth.SetRole(ctx, ghost.ID, models.RoleAdmin)
		assert.ErrorIs(t, err, auth.ErrUserNotFound)
	})

	t.Run("invalid role", func(t *testing.T) {
		_, err := tc.Auth.SetRole(ctx, user.ID, "OWNER")
		assert.ErrorIs(t, err, auth.ErrInvalidRole)
	})
}
