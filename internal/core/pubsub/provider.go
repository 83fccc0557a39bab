package pubsub

import (
	"context"
	"io"
)

// Provider provides factory methods for creating publishers and consumers.
// Standalone nodes use the in-memory provider, clusters use NATS.
type Provider interface {
	io.Closer

	// NewPublisher creates a new Publisher with the given options.
	NewPublisher(opts PublisherOptions) (Publisher, error)

	// NewConsumer creates a new Consumer with the given options.
	NewConsumer(opts ConsumerOptions) (Consumer, error)
}

// Connectable is an optional interface for providers that need to establish
// a connection before they can be used.
type Connectable interface {
	Connect(ctx context.Context) error
}
