package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/syntrixbase/docflow/internal/gateway/ws"
	"github.com/syntrixbase/docflow/internal/notify"
)

// RealtimeConfig configures rooms, notification dispatch and the websocket
// endpoint of a node.
type RealtimeConfig struct {
	// NodeID names this node to its peers. Empty uses the hostname.
	NodeID     string           `yaml:"node_id"`
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	WebSocket  ws.Config        `yaml:"websocket"`
}

// DispatcherConfig mirrors notify.Config.
type DispatcherConfig struct {
	QueueSize    int           `yaml:"queue_size"`
	Rate         float64       `yaml:"rate"`
	Burst        int           `yaml:"burst"`
	Timeout      time.Duration `yaml:"timeout"`
	DrainTimeout time.Duration `yaml:"drain_timeout"`
}

// DefaultRealtimeConfig returns the default realtime configuration.
func DefaultRealtimeConfig() RealtimeConfig {
	d := notify.DefaultConfig()
	return RealtimeConfig{
		Dispatcher: DispatcherConfig{
			QueueSize: d.QueueSize,
			Timeout:   d.Timeout,
		},
		WebSocket: ws.DefaultConfig(),
	}
}

func (c *RealtimeConfig) ApplyDefaults() {
	if c.NodeID == "" {
		if host, err := os.Hostname(); err == nil {
			c.NodeID = host
		}
	}
	d := DefaultRealtimeConfig()
	if c.Dispatcher.QueueSize == 0 {
		c.Dispatcher.QueueSize = d.Dispatcher.QueueSize
	}
	if c.Dispatcher.Timeout == 0 {
		c.Dispatcher.Timeout = d.Dispatcher.Timeout
	}
	if c.Dispatcher.DrainTimeout == 0 {
		c.Dispatcher.DrainTimeout = d.Dispatcher.DrainTimeout
	}
	if c.Dispatcher.Rate > 0 && c.Dispatcher.Burst == 0 {
		c.Dispatcher.Burst = max(1, int(c.Dispatcher.Rate))
	}
	c.WebSocket.ApplyDefaults()
}

func (c *RealtimeConfig) ApplyEnvOverrides() {
	if val := os.Getenv("DOCFLOW_NODE_ID"); val != "" {
		c.NodeID = val
	}
	if val := os.Getenv("DOCFLOW_DISPATCHER_QUEUE_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Dispatcher.QueueSize = n
		}
	}
	if val := os.Getenv("DOCFLOW_DISPATCHER_RATE"); val != "" {
		if r, err := strconv.ParseFloat(val, 64); err == nil {
			c.Dispatcher.Rate = r
		}
	}
}

func (c *RealtimeConfig) ResolvePaths(string) {}

func (c *RealtimeConfig) Validate() error {
	if c.NodeID == "" {
		return fmt.Errorf("realtime.node_id is required")
	}
	if c.Dispatcher.QueueSize <= 0 {
		return fmt.Errorf("realtime.dispatcher.queue_size must be positive")
	}
	if c.Dispatcher.Rate < 0 {
		return fmt.Errorf("realtime.dispatcher.rate must not be negative")
	}
	return nil
}

// NotifyConfig returns the dispatcher settings.
func (c *RealtimeConfig) NotifyConfig() notify.Config {
	return notify.Config{
		QueueSize:    c.Dispatcher.QueueSize,
		Rate:         c.Dispatcher.Rate,
		Burst:        c.Dispatcher.Burst,
		Timeout:      c.Dispatcher.Timeout,
		DrainTimeout: c.Dispatcher.DrainTimeout,
	}
}

// ValidationConfig points at the collection schemas.
type ValidationConfig struct {
	// SchemaFile is a YAML file of collection specs. Empty disables
	// validation.
	SchemaFile string `yaml:"schema_file"`
	// Watch reloads SchemaFile when it changes.
	Watch bool `yaml:"watch"`
}

// DefaultValidationConfig returns a configuration without schemas.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{}
}

func (c *ValidationConfig) ApplyDefaults() {}

func (c *ValidationConfig) ApplyEnvOverrides() {
	if val := os.Getenv("DOCFLOW_VALIDATION_SCHEMA_FILE"); val != "" {
		c.SchemaFile = val
	}
	if val := os.Getenv("DOCFLOW_VALIDATION_WATCH"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Watch = b
		}
	}
}

// ResolvePaths makes a relative schema file relative to configDir.
func (c *ValidationConfig) ResolvePaths(configDir string) {
	if c.SchemaFile != "" && !filepath.IsAbs(c.SchemaFile) {
		c.SchemaFile = filepath.Join(configDir, c.SchemaFile)
	}
}

func (c *ValidationConfig) Validate() error {
	if c.Watch && c.SchemaFile == "" {
		return fmt.Errorf("validation.watch needs validation.schema_file")
	}
	return nil
}
