package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/syntrixbase/docflow/internal/core/pubsub"
)

type subscriptionKey struct {
	consumer string
	pattern  string
}

type subscription struct {
	key    subscriptionKey
	msgCh  chan pubsub.Message
	ctx    context.Context
	cancel context.CancelFunc
}

type broker struct {
	engine        *Engine
	mu            sync.RWMutex
	subscriptions map[subscriptionKey]*subscription
	closed        atomic.Bool
}

func newBroker(engine *Engine) *broker {
	return &broker{
		engine:        engine,
		subscriptions: make(map[subscriptionKey]*subscription),
	}
}

// publish delivers a copy of the message to every matching subscription.
// It blocks while a subscriber's buffer is full.
func (b *broker) publish(ctx context.Context, subject string, data []byte) error {
	if b.closed.Load() {
		return ErrEngineClosed
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	now := time.Now()
	for key, sub := range b.subscriptions {
		if !matchSubject(key.pattern, subject) {
			continue
		}
		msg := &memoryMessage{
			data:         data,
			subject:      subject,
			consumer:     key.consumer,
			timestamp:    now,
			numDelivered: 1,
			sub:          sub,
		}
		select {
		case sub.msgCh <- msg:
		case <-ctx.Done():
			return ctx.Err()
		case <-sub.ctx.Done():
		}
	}
	return nil
}

func (b *broker) subscribe(ctx context.Context, key subscriptionKey, bufSize int) (<-chan pubsub.Message, func(), error) {
	if b.closed.Load() {
		return nil, nil, ErrEngineClosed
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscriptions[key] != nil {
		return nil, nil, ErrConsumerSubscribed
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		key:    key,
		msgCh:  make(chan pubsub.Message, bufSize),
		ctx:    subCtx,
		cancel: cancel,
	}
	b.subscriptions[key] = sub

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.subscriptions[key] == sub {
			delete(b.subscriptions, key)
			cancel()
			close(sub.msgCh)
		}
	}
	return sub.msgCh, unsubscribe, nil
}

func (b *broker) close() error {
	if b.closed.Swap(true) {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subscriptions {
		sub.cancel()
		close(sub.msgCh)
	}
	b.subscriptions = map[subscriptionKey]*subscription{}
	return nil
}
