package nats

import (
	"context"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/syntrixbase/docflow/internal/core/pubsub"
)

// JetStream is the subset of jetstream.JetStream used by this package.
type JetStream interface {
	Stream(ctx context.Context, stream string) (jetstream.Stream, error)
	CreateOrUpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	CreateOrUpdateConsumer(ctx context.Context, stream string, cfg jetstream.ConsumerConfig) (jetstream.Consumer, error)
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

var _ JetStream = (jetstream.JetStream)(nil)

// NewJetStream wraps a connection in a JetStream context.
func NewJetStream(nc *nats.Conn) (JetStream, error) {
	return jetstream.New(nc)
}

func streamConfig(name string, storage pubsub.StorageType, maxAge time.Duration) jetstream.StreamConfig {
	st := jetstream.MemoryStorage
	if storage == pubsub.FileStorage {
		st = jetstream.FileStorage
	}
	return jetstream.StreamConfig{
		Name:     name,
		Subjects: []string{name + ".>"},
		Storage:  st,
		MaxAge:   maxAge,
	}
}

// ensureStream creates the stream when it does not exist yet. An existing
// stream keeps the configuration its publisher gave it.
func ensureStream(ctx context.Context, js JetStream, cfg jetstream.StreamConfig) error {
	_, err := js.Stream(ctx, cfg.Name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return err
	}
	_, err = js.CreateOrUpdateStream(ctx, cfg)
	return err
}
