package memory

import (
	"context"

	"github.com/syntrixbase/docflow/internal/core/pubsub"
)

type memoryConsumer struct {
	broker *broker
	opts   pubsub.ConsumerOptions
}

// Subscribe only sees messages published after it returns, whatever
// DeliverNew says: the engine keeps no history.
func (c *memoryConsumer) Subscribe(ctx context.Context) (<-chan pubsub.Message, error) {
	if c.broker.closed.Load() {
		return nil, ErrEngineClosed
	}

	pattern := pubsub.FullSubject(c.opts.StreamName, c.opts.FilterSubject)
	if pattern == "" {
		pattern = ">"
	}

	bufSize := c.opts.ChannelBufSize
	if bufSize <= 0 {
		bufSize = pubsub.DefaultConsumerOptions().ChannelBufSize
	}

	key := subscriptionKey{consumer: c.opts.ConsumerName, pattern: pattern}
	msgCh, unsubscribe, err := c.broker.subscribe(ctx, key, bufSize)
	if err != nil {
		return nil, err
	}

	go func() {
		<-ctx.Done()
		unsubscribe()
	}()

	return msgCh, nil
}
