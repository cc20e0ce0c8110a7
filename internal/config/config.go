// Package config loads runtime configuration from the environment. The
// returned Config is injected into every component that needs it; there
// is no package-level mutable state and no "not yet loaded" limbo:
// construction either succeeds or the process does not start.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr        string
	DatabaseURL string
	JWTSecret   string
	Environment string

	// Role thresholds gate every permission predicate. They are
	// configuration, not code: a deployment may redraw the lines without
	// a rebuild.
	AdminRoleThreshold     int
	ModeratorRoleThreshold int
	UserRoleThreshold      int
	// RosterAdminThreshold gates editing/deleting other users' roster
	// definitions on the authoring side.
	RosterAdminThreshold int

	SignupCooldown    time.Duration
	RememberedNameTTL time.Duration
	SessionTTL        time.Duration
	AutoLockAfter     time.Duration
}

func (c *Config) IsProduction() bool { return c.Environment == "production" }

// Load reads a .env file when present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	c := &Config{
		Addr:        envStr("ROSTER_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("ROSTER_JWT_SECRET"),
		Environment: envStr("ROSTER_ENV", "development"),

		AdminRoleThreshold:     97,
		ModeratorRoleThreshold: 97,
		UserRoleThreshold:      90,
		RosterAdminThreshold:   98,

		SignupCooldown:    3 * time.Minute,
		RememberedNameTTL: time.Hour,
		SessionTTL:        time.Hour,
		AutoLockAfter:     24 * time.Hour,
	}

	var err error
	if c.AdminRoleThreshold, err = envInt("ROSTER_ADMIN_ROLE_THRESHOLD", c.AdminRoleThreshold); err != nil {
		return nil, err
	}
	if c.ModeratorRoleThreshold, err = envInt("ROSTER_MODERATOR_ROLE_THRESHOLD", c.ModeratorRoleThreshold); err != nil {
		return nil, err
	}
	if c.UserRoleThreshold, err = envInt("ROSTER_USER_ROLE_THRESHOLD", c.UserRoleThreshold); err != nil {
		return nil, err
	}
	if c.RosterAdminThreshold, err = envInt("ROSTER_ROSTER_ADMIN_THRESHOLD", c.RosterAdminThreshold); err != nil {
		return nil, err
	}
	if c.SignupCooldown, err = envDur("ROSTER_SIGNUP_COOLDOWN", c.SignupCooldown); err != nil {
		return nil, err
	}
	if c.RememberedNameTTL, err = envDur("ROSTER_USERNAME_TOKEN_TTL", c.RememberedNameTTL); err != nil {
		return nil, err
	}
	if c.SessionTTL, err = envDur("ROSTER_SESSION_TTL", c.SessionTTL); err != nil {
		return nil, err
	}
	if c.AutoLockAfter, err = envDur("ROSTER_AUTO_LOCK_AFTER", c.AutoLockAfter); err != nil {
		return nil, err
	}

	return c, c.validate()
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("config: DATABASE_URL is required")
	}
	if c.JWTSecret == "" {
		if c.IsProduction() {
			return fmt.Errorf("config: ROSTER_JWT_SECRET is required in production")
		}
		c.JWTSecret = "dev-insecure-secret"
	}
	if c.UserRoleThreshold > c.ModeratorRoleThreshold {
		return fmt.Errorf("config: user threshold %d above moderator threshold %d",
			c.UserRoleThreshold, c.ModeratorRoleThreshold)
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func envDur(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
