package identity

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// Config configures token issuing and verification.
type Config struct {
	// Secret signs and verifies HS256 tokens.
	Secret         string        `yaml:"secret"`
	Issuer         string        `yaml:"issuer"`
	TokenTTL       time.Duration `yaml:"token_ttl"`
	AllowAnonymous bool          `yaml:"allow_anonymous"`
}

// DefaultConfig returns the default identity configuration.
func DefaultConfig() Config {
	return Config{
		Issuer:         "docflow",
		TokenTTL:       time.Hour,
		AllowAnonymous: true,
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()
	if c.Issuer == "" {
		c.Issuer = defaults.Issuer
	}
	if c.TokenTTL == 0 {
		c.TokenTTL = defaults.TokenTTL
	}
}

// ApplyEnvOverrides applies DOCFLOW_IDENTITY_* variables.
func (c *Config) ApplyEnvOverrides() {
	if val := os.Getenv("DOCFLOW_IDENTITY_SECRET"); val != "" {
		c.Secret = val
	}
	if val := os.Getenv("DOCFLOW_IDENTITY_TOKEN_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.TokenTTL = d
		}
	}
	if val := os.Getenv("DOCFLOW_IDENTITY_ALLOW_ANONYMOUS"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			c.AllowAnonymous = b
		}
	}
}

// Validate returns an error if the configuration cannot issue tokens.
func (c *Config) Validate() error {
	if len(c.Secret) < 16 {
		return errors.New("identity.secret must be at least 16 characters")
	}
	if c.TokenTTL <= 0 {
		return errors.New("identity.token_ttl must be positive")
	}
	return nil
}
