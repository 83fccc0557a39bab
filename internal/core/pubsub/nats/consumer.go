package nats

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/syntrixbase/docflow/internal/core/pubsub"
)

type jetStreamConsumer struct {
	js   JetStream
	opts pubsub.ConsumerOptions
}

// NewConsumer creates a Consumer backed by a durable JetStream consumer.
func NewConsumer(js JetStream, opts pubsub.ConsumerOptions) (pubsub.Consumer, error) {
	if js == nil {
		return nil, fmt.Errorf("jetstream cannot be nil")
	}
	if opts.StreamName == "" {
		return nil, fmt.Errorf("stream name is required")
	}
	if opts.ConsumerName == "" {
		return nil, fmt.Errorf("consumer name is required")
	}
	if opts.ChannelBufSize <= 0 {
		opts.ChannelBufSize = pubsub.DefaultConsumerOptions().ChannelBufSize
	}
	return &jetStreamConsumer{js: js, opts: opts}, nil
}

func (c *jetStreamConsumer) Subscribe(ctx context.Context) (<-chan pubsub.Message, error) {
	if err := ensureStream(ctx, c.js, streamConfig(c.opts.StreamName, c.opts.Storage, 0)); err != nil {
		return nil, fmt.Errorf("failed to ensure stream: %w", err)
	}

	cfg := jetstream.ConsumerConfig{
		Durable:           c.opts.ConsumerName,
		AckPolicy:         jetstream.AckExplicitPolicy,
		FilterSubject:     pubsub.FullSubject(c.opts.StreamName, c.opts.FilterSubject),
		InactiveThreshold: c.opts.InactiveThreshold,
	}
	if c.opts.DeliverNew {
		cfg.DeliverPolicy = jetstream.DeliverNewPolicy
	}

	consumer, err := c.js.CreateOrUpdateConsumer(ctx, c.opts.StreamName, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	msgCh := make(chan pubsub.Message, c.opts.ChannelBufSize)
	var closing atomic.Bool

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		if closing.Load() {
			_ = msg.Nak()
			return
		}
		select {
		case msgCh <- wrapMessage(msg):
		case <-ctx.Done():
			_ = msg.Nak()
		}
	})
	if err != nil {
		close(msgCh)
		return nil, fmt.Errorf("failed to start consumer: %w", err)
	}

	slog.Info("Consumer subscribed", "stream", c.opts.StreamName, "consumer", c.opts.ConsumerName, "filter", cfg.FilterSubject)

	go func() {
		<-ctx.Done()
		closing.Store(true)
		cc.Stop()
		// Stop returns before in-flight handlers finish
		<-cc.Closed()
		close(msgCh)
		slog.Info("Consumer stopped", "stream", c.opts.StreamName, "consumer", c.opts.ConsumerName)
	}()

	return msgCh, nil
}
