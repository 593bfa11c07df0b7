package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courseloop/backend/pkg/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, 30*time.Minute, cfg.JWT.AccessExpiry())
	assert.Equal(t, 30*24*time.Hour, cfg.JWT.RefreshExpiry())
	assert.Equal(t, 90*24*time.Hour, cfg.Referral.TTL())
	assert.Equal(t, "https://courseloop.io/r", cfg.Referral.BaseURL)
	assert.Empty(t, cfg.CORS.AllowedOrigins)
}

func TestLoad_CORSOrigins(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.courseloop.io, https://admin.courseloop.io,")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t,
		[]string{"https://app.courseloop.io", "https://admin.courseloop.io"},
		cfg.CORS.AllowedOrigins,
	)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("REFERRAL_TTL_DAYS", "7")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 7*24*time.Hour, cfg.Referral.TTL())
}
