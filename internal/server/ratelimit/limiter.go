// Package ratelimit throttles HTTP and websocket handshakes per client.
package ratelimit

import (
	"time"
)

// Limiter decides whether a keyed request may proceed.
type Limiter interface {
	// Allow reports whether a request from key may proceed now.
	Allow(key string) bool

	// Reset forgets the history of key.
	Reset(key string)
}

// Stoppable extends Limiter with a Stop method releasing its goroutines.
type Stoppable interface {
	Limiter
	Stop()
}

// Config holds the configuration for rate limiting.
type Config struct {
	Enabled bool `yaml:"enabled"`

	// Requests is the number of requests a client may burst, refilled
	// evenly over Window.
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// DefaultConfig returns the default rate limiting configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:  true,
		Requests: 600,
		Window:   time.Minute,
	}
}
