// Package memory provides an in-memory pubsub provider for standalone nodes
// and tests. Every named consumer receives its own copy of each message.
package memory

import "errors"

var (
	// ErrEngineClosed is returned when operating on a closed engine.
	ErrEngineClosed = errors.New("engine is closed")

	// ErrConsumerSubscribed is returned when a consumer name already
	// subscribes to the same pattern.
	ErrConsumerSubscribed = errors.New("consumer already subscribed to pattern")
)
