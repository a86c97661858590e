package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestLoadFromEnv tests loading configuration from environment variables
func TestLoadFromEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "test_secret_key")
	t.Setenv("DB_NAME", "sentinela_test")

	cfg := &Config{}
	err := cfg.LoadFromEnv()
	require.NoError(t, err)

	// Verify configuration values
	require.Equal(t, "8080", cfg.API.Port)
	require.Equal(t, "localhost", cfg.Database.Host)
	require.Equal(t, 5432, cfg.Database.Port)
	require.Equal(t, "sentinela_test", cfg.Database.DBName)
	require.Equal(t, "disable", cfg.Database.SSLMode)
	require.Equal(t, "test_secret_key", cfg.Auth.JWTSecret)
	require.Equal(t, 24, cfg.Auth.JWTExpiration)
	require.True(t, cfg.Auth.RequireApproval)
	require.True(t, cfg.Auth.SingleSession)
	require.Equal(t, 5, cfg.Security.MaxFailedLogins)
	require.Equal(t, 30*time.Minute, cfg.Security.LockoutDuration)
	require.Equal(t, 10, cfg.Security.PasswordHistoryLimit)
	require.Equal(t, 0, cfg.Security.PasswordExpiryDays)
	require.Equal(t, 365, cfg.Retention.AuditLogDays)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test_secret_key")
	t.Setenv("MAX_FAILED_LOGINS", "3")
	t.Setenv("LOCKOUT_DURATION", "15m")
	t.Setenv("PASSWORD_EXPIRY_DAYS", "90")
	t.Setenv("SINGLE_SESSION", "false")

	cfg := &Config{}
	err := cfg.LoadFromEnv()
	require.NoError(t, err)

	require.Equal(t, 3, cfg.Security.MaxFailedLogins)
	require.Equal(t, 15*time.Minute, cfg.Security.LockoutDuration)
	require.Equal(t, 90, cfg.Security.PasswordExpiryDays)
	require.False(t, cfg.Auth.SingleSession)
}

func TestLoadFromEnvRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	cfg := &Config{}
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	require.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadFromEnvRejectsBadThresholds(t *testing.T) {
	t.Setenv("JWT_SECRET", "test_secret_key")
	t.Setenv("MAX_FAILED_LOGINS", "0")

	cfg := &Config{}
	err := cfg.LoadFromEnv()
	require.Error(t, err)
}
