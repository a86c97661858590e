// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents the application configuration
type Config struct {
	// API contains API server configuration
	API APIConfig
	// Auth contains authentication configuration
	Auth AuthConfig
	// Database contains database configuration
	Database DatabaseConfig
	// Security contains lockout, password policy and alerting settings
	Security SecurityConfig
	// Retention contains data retention settings for maintenance jobs
	Retention RetentionConfig

	// Rate Limiting Configuration
	RateLimit struct {
		Requests int // Number of requests allowed per window
		Window   int // Time window in seconds
		Burst    int // Maximum burst size
	}
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname
	Host string
	// Port is the database server port
	Port int
	// User is the database username
	User string
	// Password is the database password
	Password string
	// DBName is the database name
	DBName string
	// SSLMode is the SSL mode for the database connection
	SSLMode string
	// MigrationsPath is the path to database migrations
	MigrationsPath string
}

// APIConfig contains API server settings
type APIConfig struct {
	// Port is the server port to listen on
	Port string
}

// AuthConfig contains authentication settings
type AuthConfig struct {
	// JWTSecret is the secret key used to sign JWT tokens
	JWTSecret string
	// JWTExpiration is the JWT token expiration time in hours
	JWTExpiration int
	// RequireApproval gates login on admin approval of the account
	RequireApproval bool
	// SingleSession invalidates older tokens when a new login succeeds
	SingleSession bool
}

// SecurityConfig contains account lockout, password policy and alert settings
type SecurityConfig struct {
	// MaxFailedLogins is the number of consecutive failures before lockout
	MaxFailedLogins int
	// LockoutDuration is how long a locked account stays locked
	LockoutDuration time.Duration
	// PasswordHistoryLimit is how many previous hashes a new password is checked against
	PasswordHistoryLimit int
	// PasswordExpiryDays forces a password change after this many days (0 disables)
	PasswordExpiryDays int
	// AlertFailureThreshold is the failure count per identifier that raises an alert
	AlertFailureThreshold int
	// AlertWindow is the sliding window the failure thresholds are evaluated over
	AlertWindow time.Duration
	// AlertDedupeWindow suppresses duplicate open alerts for the same identifier
	AlertDedupeWindow time.Duration
	// MetricsWindowDays is the default window for the security metrics report
	MetricsWindowDays int
}

// RetentionConfig controls what the maintenance jobs prune and when
type RetentionConfig struct {
	// AuditLogDays is how long routine audit logs are kept (0 keeps forever)
	AuditLogDays int
	// LoginAttemptDays is how long login attempt rows are kept
	LoginAttemptDays int
	// ResolvedAlertDays is how long resolved security alerts are kept
	ResolvedAlertDays int
	// InactiveUserDays deactivates accounts with no login for this many days (0 disables)
	InactiveUserDays int
}

// LoadFromEnv retrieves configuration from environment variables
func (c *Config) LoadFromEnv() error {
	c.API = APIConfig{
		Port: getEnvOrDefault("API_PORT", "8080"),
	}
	c.Database = DatabaseConfig{
		Host:           getEnvOrDefault("DB_HOST", "localhost"),
		Port:           getEnvAsInt("DB_PORT", 5432),
		User:           getEnvOrDefault("DB_USER", "postgres"),
		Password:       getEnvOrDefault("DB_PASSWORD", "postgres"),
		DBName:         getEnvOrDefault("DB_NAME", "sentinela"),
		SSLMode:        getEnvOrDefault("DB_SSL_MODE", "disable"),
		MigrationsPath: "migrations",
	}
	c.Auth = AuthConfig{
		JWTSecret:       os.Getenv("JWT_SECRET"),
		JWTExpiration:   getEnvAsInt("JWT_EXPIRATION_HOURS", 24),
		RequireApproval: getEnvAsBool("REQUIRE_APPROVAL", true),
		SingleSession:   getEnvAsBool("SINGLE_SESSION", true),
	}
	c.Security = SecurityConfig{
		MaxFailedLogins:       getEnvAsInt("MAX_FAILED_LOGINS", 5),
		LockoutDuration:       getEnvAsDuration("LOCKOUT_DURATION", 30*time.Minute),
		PasswordHistoryLimit:  getEnvAsInt("PASSWORD_HISTORY_LIMIT", 10),
		PasswordExpiryDays:    getEnvAsInt("PASSWORD_EXPIRY_DAYS", 0),
		AlertFailureThreshold: getEnvAsInt("ALERT_FAILURE_THRESHOLD", 10),
		AlertWindow:           getEnvAsDuration("ALERT_WINDOW", time.Hour),
		AlertDedupeWindow:     getEnvAsDuration("ALERT_DEDUPE_WINDOW", time.Hour),
		MetricsWindowDays:     getEnvAsInt("METRICS_WINDOW_DAYS", 7),
	}
	c.Retention = RetentionConfig{
		AuditLogDays:      getEnvAsInt("RETENTION_AUDIT_LOG_DAYS", 365),
		LoginAttemptDays:  getEnvAsInt("RETENTION_LOGIN_ATTEMPT_DAYS", 90),
		ResolvedAlertDays: getEnvAsInt("RETENTION_RESOLVED_ALERT_DAYS", 90),
		InactiveUserDays:  getEnvAsInt("INACTIVE_USER_DAYS", 0),
	}

	// Load rate limit configuration
	c.RateLimit.Requests = getEnvAsInt("RATE_LIMIT_REQUESTS", 1000)
	c.RateLimit.Window = getEnvAsInt("RATE_LIMIT_WINDOW", 60)
	c.RateLimit.Burst = getEnvAsInt("RATE_LIMIT_BURST", 50)

	// Validate required fields
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Security.MaxFailedLogins < 1 {
		return fmt.Errorf("MAX_FAILED_LOGINS must be at least 1")
	}
	if c.Security.PasswordHistoryLimit < 0 {
		return fmt.Errorf("PASSWORD_HISTORY_LIMIT must not be negative")
	}

	return nil
}

// getEnvAsInt retrieves an environment variable and converts it to an integer
func getEnvAsInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvAsBool retrieves an environment variable and converts it to a boolean
func getEnvAsBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

// getEnvAsDuration retrieves an environment variable and parses it as a duration
func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvOrDefault(key string, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
