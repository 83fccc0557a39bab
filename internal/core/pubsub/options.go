package pubsub

import "time"

// StorageType defines the storage backend for streams.
type StorageType int

const (
	// MemoryStorage stores data in memory (default).
	MemoryStorage StorageType = iota
	// FileStorage stores data on disk.
	FileStorage
)

// ParseStorageType maps a configuration value to a StorageType.
// Anything but "file" is memory storage.
func ParseStorageType(s string) StorageType {
	if s == "file" {
		return FileStorage
	}
	return MemoryStorage
}

// PublisherOptions configures publisher behavior.
type PublisherOptions struct {
	// StreamName is the name of the stream to publish to. Subjects are
	// published under "<StreamName>.".
	StreamName string

	// RetryAttempts is the number of retry attempts for publishing.
	RetryAttempts int

	// Storage is the storage type for the stream.
	Storage StorageType

	// MaxAge bounds how long the stream keeps messages. Zero keeps them
	// until the stream limits are reached.
	MaxAge time.Duration

	// OnPublish is called after each publish attempt.
	OnPublish func(subject string, err error, latency time.Duration)
}

// ConsumerOptions configures consumer behavior.
type ConsumerOptions struct {
	// StreamName is the name of the stream to consume from.
	StreamName string

	// ConsumerName is the durable consumer name. Consumers with different
	// names each receive every message.
	ConsumerName string

	// FilterSubject filters messages by subject pattern, relative to the
	// stream. Empty means every subject of the stream.
	FilterSubject string

	// ChannelBufSize is the buffer size for the message channel.
	ChannelBufSize int

	// Storage is the storage type for the stream.
	Storage StorageType

	// DeliverNew skips messages published before the consumer was created.
	DeliverNew bool

	// InactiveThreshold removes the durable consumer after this much
	// inactivity. Zero keeps it forever.
	InactiveThreshold time.Duration
}

// DefaultConsumerOptions returns ConsumerOptions with sensible defaults.
func DefaultConsumerOptions() ConsumerOptions {
	return ConsumerOptions{
		ChannelBufSize: 100,
	}
}
