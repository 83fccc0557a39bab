// Package config loads the layered YAML configuration of a docflow node.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/syntrixbase/docflow/internal/identity"
	server "github.com/syntrixbase/docflow/internal/server"
	"gopkg.in/yaml.v3"
)

// DefaultDir is the configuration directory used when none is given.
const DefaultDir = "config"

// Config holds the application configuration
type Config struct {
	Server  server.Config `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`

	Storage    StorageConfig    `yaml:"storage"`
	PubSub     PubSubConfig     `yaml:"pubsub"`
	Realtime   RealtimeConfig   `yaml:"realtime"`
	Identity   identity.Config  `yaml:"identity"`
	Validation ValidationConfig `yaml:"validation"`
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	return &Config{
		Server:     server.DefaultConfig(),
		Logging:    DefaultLoggingConfig(),
		Storage:    DefaultStorageConfig(),
		PubSub:     DefaultPubSubConfig(),
		Realtime:   DefaultRealtimeConfig(),
		Identity:   identity.DefaultConfig(),
		Validation: DefaultValidationConfig(),
	}
}

// LoadConfig loads configuration from files and environment variables.
// Order: defaults -> config.yml -> config.local.yml -> ApplyEnvOverrides -> ResolvePaths -> Validate
func LoadConfig(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultDir
	}

	// Start with default values so YAML can override them, bool fields included
	cfg := Default()

	loadFile(filepath.Join(configDir, "config.yml"), cfg)
	loadFile(filepath.Join(configDir, "config.local.yml"), cfg)

	if err := ApplyServiceConfigs(configDir, cfg.sections()...); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

func (c *Config) sections() []ServiceConfig {
	return []ServiceConfig{
		&c.Server,
		&c.Logging,
		&c.Storage,
		&c.PubSub,
		&c.Realtime,
		identitySection{&c.Identity},
		&c.Validation,
	}
}

func loadFile(filename string, cfg *Config) {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		log.Printf("Warning: Error reading %s: %v", filename, err)
		return
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		log.Printf("Warning: Error parsing %s: %v", filename, err)
	}
}

// identitySection checks the token settings only when tokens are in use:
// an anonymous-only node runs without a secret.
type identitySection struct {
	*identity.Config
}

func (s identitySection) ResolvePaths(string) {}

func (s identitySection) Validate() error {
	if s.Secret == "" && s.AllowAnonymous {
		return nil
	}
	return s.Config.Validate()
}
