package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/syntrixbase/docflow/internal/core/pubsub"
	natspubsub "github.com/syntrixbase/docflow/internal/core/pubsub/nats"
	"github.com/syntrixbase/docflow/internal/matching"
	"github.com/syntrixbase/docflow/internal/storage/mongo"
)

// Storage backends.
const (
	StorageMemory = "memory"
	StorageMongo  = "mongo"
)

// StorageConfig selects and configures the document store.
type StorageConfig struct {
	Backend string       `yaml:"backend"`
	Mongo   mongo.Config `yaml:"mongo"`
}

// DefaultStorageConfig returns the in-memory store.
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		Backend: StorageMemory,
		Mongo: mongo.Config{
			URI:            "mongodb://localhost:27017",
			Database:       mongo.DefaultDatabase,
			Collection:     mongo.DefaultCollection,
			ConnectTimeout: 10 * time.Second,
		},
	}
}

func (c *StorageConfig) ApplyDefaults() {
	d := DefaultStorageConfig()
	if c.Backend == "" {
		c.Backend = d.Backend
	}
	if c.Mongo.URI == "" {
		c.Mongo.URI = d.Mongo.URI
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = d.Mongo.Database
	}
	if c.Mongo.Collection == "" {
		c.Mongo.Collection = d.Mongo.Collection
	}
	if c.Mongo.ConnectTimeout == 0 {
		c.Mongo.ConnectTimeout = d.Mongo.ConnectTimeout
	}
}

func (c *StorageConfig) ApplyEnvOverrides() {
	if val := os.Getenv("DOCFLOW_STORAGE_BACKEND"); val != "" {
		c.Backend = val
	}
	if val := os.Getenv("DOCFLOW_MONGO_URI"); val != "" {
		c.Mongo.URI = val
	}
	if val := os.Getenv("DOCFLOW_MONGO_DATABASE"); val != "" {
		c.Mongo.Database = val
	}
}

func (c *StorageConfig) ResolvePaths(string) {}

func (c *StorageConfig) Validate() error {
	switch c.Backend {
	case StorageMemory:
	case StorageMongo:
		if c.Mongo.URI == "" {
			return fmt.Errorf("storage.mongo.uri is required for the mongo backend")
		}
	default:
		return fmt.Errorf("unknown storage backend: %s (must be memory or mongo)", c.Backend)
	}
	return nil
}

// Pub/sub providers.
const (
	PubSubMemory = "memory"
	PubSubNATS   = "nats"
)

// PubSubConfig selects the message-passing layer between nodes.
type PubSubConfig struct {
	Provider string        `yaml:"provider"`
	Stream   string        `yaml:"stream"`
	Storage  string        `yaml:"storage"` // memory or file
	MaxAge   time.Duration `yaml:"max_age"`
	NATS     NATSConfig    `yaml:"nats"`
}

// NATSConfig holds the NATS connection settings.
type NATSConfig struct {
	URL            string        `yaml:"url"`
	Name           string        `yaml:"name"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	MaxReconnects  int           `yaml:"max_reconnects"`
}

// DefaultPubSubConfig returns the in-process broker.
func DefaultPubSubConfig() PubSubConfig {
	return PubSubConfig{
		Provider: PubSubMemory,
		Stream:   matching.DefaultStream,
		Storage:  "memory",
		MaxAge:   time.Hour,
		NATS: NATSConfig{
			URL:            "nats://localhost:4222",
			Name:           "docflow",
			ConnectTimeout: 5 * time.Second,
			MaxReconnects:  -1,
		},
	}
}

func (c *PubSubConfig) ApplyDefaults() {
	d := DefaultPubSubConfig()
	if c.Provider == "" {
		c.Provider = d.Provider
	}
	if c.Stream == "" {
		c.Stream = d.Stream
	}
	if c.Storage == "" {
		c.Storage = d.Storage
	}
	if c.NATS.URL == "" {
		c.NATS.URL = d.NATS.URL
	}
	if c.NATS.Name == "" {
		c.NATS.Name = d.NATS.Name
	}
	if c.NATS.ConnectTimeout == 0 {
		c.NATS.ConnectTimeout = d.NATS.ConnectTimeout
	}
}

func (c *PubSubConfig) ApplyEnvOverrides() {
	if val := os.Getenv("DOCFLOW_PUBSUB_PROVIDER"); val != "" {
		c.Provider = val
	}
	if val := os.Getenv("DOCFLOW_NATS_URL"); val != "" {
		c.NATS.URL = val
	}
	if val := os.Getenv("DOCFLOW_NATS_MAX_RECONNECTS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.NATS.MaxReconnects = n
		}
	}
}

func (c *PubSubConfig) ResolvePaths(string) {}

func (c *PubSubConfig) Validate() error {
	switch c.Provider {
	case PubSubMemory:
	case PubSubNATS:
		if c.NATS.URL == "" {
			return fmt.Errorf("pubsub.nats.url is required for the nats provider")
		}
	default:
		return fmt.Errorf("unknown pubsub provider: %s (must be memory or nats)", c.Provider)
	}
	if c.Storage != "memory" && c.Storage != "file" {
		return fmt.Errorf("invalid pubsub storage: %s (must be memory or file)", c.Storage)
	}
	if c.MaxAge < 0 {
		return fmt.Errorf("pubsub.max_age must not be negative")
	}
	return nil
}

// PublisherOptions returns the stream settings shared by every node.
func (c *PubSubConfig) PublisherOptions() pubsub.PublisherOptions {
	return pubsub.PublisherOptions{
		StreamName:    c.Stream,
		RetryAttempts: 3,
		Storage:       pubsub.ParseStorageType(c.Storage),
		MaxAge:        c.MaxAge,
	}
}

// NATSOptions returns the NATS provider options.
func (c *PubSubConfig) NATSOptions() natspubsub.Options {
	return natspubsub.Options{
		URL:            c.NATS.URL,
		Name:           c.NATS.Name,
		ConnectTimeout: c.NATS.ConnectTimeout,
		MaxReconnects:  c.NATS.MaxReconnects,
	}
}
