package server

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/syntrixbase/docflow/internal/server/ratelimit"
)

// Config holds the configuration for the unified server module.
type Config struct {
	Host string `yaml:"host"`

	// HTTP Configuration
	HTTPPort         int           `yaml:"http_port"`
	HTTPReadTimeout  time.Duration `yaml:"http_read_timeout"`
	HTTPWriteTimeout time.Duration `yaml:"http_write_timeout"`
	HTTPIdleTimeout  time.Duration `yaml:"http_idle_timeout"`

	// CORS Configuration
	EnableCORS       bool     `yaml:"enable_cors"`
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowedMethods   []string `yaml:"allowed_methods"`
	AllowedHeaders   []string `yaml:"allowed_headers"`
	AllowCredentials bool     `yaml:"allow_credentials"`
	CORSMaxAge       int      `yaml:"cors_max_age"`

	RateLimit ratelimit.Config `yaml:"rate_limit"`

	// gRPC Configuration
	GRPCPort          int  `yaml:"grpc_port"`
	GRPCMaxConcurrent uint `yaml:"grpc_max_concurrent"`
	EnableReflection  bool `yaml:"enable_reflection"`

	// Lifecycle Configuration
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DefaultConfig returns safe defaults for development.
func DefaultConfig() Config {
	return Config{
		Host:              "localhost",
		HTTPPort:          7512,
		HTTPReadTimeout:   10 * time.Second,
		HTTPWriteTimeout:  30 * time.Second,
		HTTPIdleTimeout:   60 * time.Second,
		AllowedMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:    []string{"Content-Type", "Authorization", "X-Request-ID"},
		CORSMaxAge:        86400,
		GRPCPort:          7513,
		GRPCMaxConcurrent: 100,
		ShutdownTimeout:   10 * time.Second,
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()
	if c.Host == "" {
		c.Host = defaults.Host
	}
	if c.HTTPPort == 0 {
		c.HTTPPort = defaults.HTTPPort
	}
	if c.HTTPReadTimeout == 0 {
		c.HTTPReadTimeout = defaults.HTTPReadTimeout
	}
	if c.HTTPWriteTimeout == 0 {
		c.HTTPWriteTimeout = defaults.HTTPWriteTimeout
	}
	if c.HTTPIdleTimeout == 0 {
		c.HTTPIdleTimeout = defaults.HTTPIdleTimeout
	}
	if len(c.AllowedMethods) == 0 {
		c.AllowedMethods = defaults.AllowedMethods
	}
	if len(c.AllowedHeaders) == 0 {
		c.AllowedHeaders = defaults.AllowedHeaders
	}
	if c.CORSMaxAge == 0 {
		c.CORSMaxAge = defaults.CORSMaxAge
	}
	if c.RateLimit.Enabled {
		rl := ratelimit.DefaultConfig()
		if c.RateLimit.Requests == 0 {
			c.RateLimit.Requests = rl.Requests
		}
		if c.RateLimit.Window == 0 {
			c.RateLimit.Window = rl.Window
		}
	}
	if c.GRPCPort == 0 {
		c.GRPCPort = defaults.GRPCPort
	}
	if c.GRPCMaxConcurrent == 0 {
		c.GRPCMaxConcurrent = defaults.GRPCMaxConcurrent
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaults.ShutdownTimeout
	}
}

// ApplyEnvOverrides applies DOCFLOW_SERVER_* variables.
func (c *Config) ApplyEnvOverrides() {
	if val := os.Getenv("DOCFLOW_SERVER_HOST"); val != "" {
		c.Host = val
	}
	if val := os.Getenv("DOCFLOW_SERVER_HTTP_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.HTTPPort = port
		}
	}
	if val := os.Getenv("DOCFLOW_SERVER_GRPC_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.GRPCPort = port
		}
	}
}

// ResolvePaths resolves relative paths using the given base directory.
// No paths to resolve in server config.
func (c *Config) ResolvePaths(_ string) { _ = c }

// Validate returns an error if the configuration is invalid.
func (c *Config) Validate() error {
	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port out of range: %d", c.HTTPPort)
	}
	if c.GRPCPort < 0 || c.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port out of range: %d", c.GRPCPort)
	}
	if c.HTTPPort != 0 && c.HTTPPort == c.GRPCPort {
		return errors.New("server.http_port and server.grpc_port must differ")
	}
	if c.RateLimit.Enabled && (c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0) {
		return errors.New("server.rate_limit needs positive requests and window")
	}
	return nil
}
