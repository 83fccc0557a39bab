package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syntrixbase/docflow/internal/core/pubsub"
)

func receive(t *testing.T, ch <-chan pubsub.Message) pubsub.Message {
	t.Helper()
	select {
	case msg, ok := <-ch:
		require.True(t, ok, "channel closed")
		return msg
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
		return nil
	}
}

func assertNoMessage(t *testing.T, ch <-chan pubsub.Message) {
	t.Helper()
	select {
	case msg := <-ch:
		t.Fatalf("unexpected message on %s", msg.Subject())
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEngine_Lifecycle(t *testing.T) {
	engine := New()
	assert.False(t, engine.IsClosed())

	require.NoError(t, engine.Close())
	assert.True(t, engine.IsClosed())
	require.NoError(t, engine.Close())

	_, err := engine.NewPublisher(pubsub.PublisherOptions{})
	assert.ErrorIs(t, err, ErrEngineClosed)
	_, err = engine.NewConsumer(pubsub.ConsumerOptions{})
	assert.ErrorIs(t, err, ErrEngineClosed)
}

func TestEngine_PublishSubscribe(t *testing.T) {
	engine := New()
	defer engine.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer, err := engine.NewConsumer(pubsub.ConsumerOptions{
		StreamName:    "DOCFLOW",
		ConsumerName:  "node-1",
		FilterSubject: "notifications.>",
	})
	require.NoError(t, err)
	ch, err := consumer.Subscribe(ctx)
	require.NoError(t, err)

	pub, err := engine.NewPublisher(pubsub.PublisherOptions{StreamName: "DOCFLOW"})
	require.NoError(t, err)

	require.NoError(t, pub.Publish(ctx, "notifications.nyc.users", []byte("hello")))
	require.NoError(t, pub.Publish(ctx, "rooms.node-2", []byte("ignored")))

	msg := receive(t, ch)
	assert.Equal(t, "DOCFLOW.notifications.nyc.users", msg.Subject())
	assert.Equal(t, []byte("hello"), msg.Data())
	require.NoError(t, msg.Ack())

	md, err := msg.Metadata()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), md.NumDelivered)
	assert.Equal(t, "node-1", md.Consumer)

	assertNoMessage(t, ch)
}

func TestEngine_EachConsumerGetsACopy(t *testing.T) {
	engine := New()
	defer engine.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var chans []<-chan pubsub.Message
	for _, name := range []string{"node-1", "node-2"} {
		c, err := engine.NewConsumer(pubsub.ConsumerOptions{StreamName: "S", ConsumerName: name})
		require.NoError(t, err)
		ch, err := c.Subscribe(ctx)
		require.NoError(t, err)
		chans = append(chans, ch)
	}

	pub, err := engine.NewPublisher(pubsub.PublisherOptions{StreamName: "S"})
	require.NoError(t, err)
	require.NoError(t, pub.Publish(ctx, "rooms.node-1", []byte("x")))

	for _, ch := range chans {
		assert.Equal(t, "S.rooms.node-1", receive(t, ch).Subject())
	}
}

func TestEngine_DuplicateConsumer(t *testing.T) {
	engine := New()
	defer engine.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := pubsub.ConsumerOptions{StreamName: "S", ConsumerName: "node-1"}
	c1, _ := engine.NewConsumer(opts)
	_, err := c1.Subscribe(ctx)
	require.NoError(t, err)

	c2, _ := engine.NewConsumer(opts)
	_, err = c2.Subscribe(ctx)
	assert.ErrorIs(t, err, ErrConsumerSubscribed)
}

func TestConsumer_ContextCancelClosesChannel(t *testing.T) {
	engine := New()
	defer engine.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c, _ := engine.NewConsumer(pubsub.ConsumerOptions{})
	ch, err := c.Subscribe(ctx)
	require.NoError(t, err)

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)

	// The key is free again
	c2, _ := engine.NewConsumer(pubsub.ConsumerOptions{})
	_, err = c2.Subscribe(context.Background())
	assert.NoError(t, err)
}

func TestMessage_Nak(t *testing.T) {
	engine := New()
	defer engine.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, _ := engine.NewConsumer(pubsub.ConsumerOptions{FilterSubject: "a"})
	ch, err := c.Subscribe(ctx)
	require.NoError(t, err)
	pub, _ := engine.NewPublisher(pubsub.PublisherOptions{})
	require.NoError(t, pub.Publish(ctx, "a", []byte("1")))

	msg := receive(t, ch)
	require.NoError(t, msg.Nak())

	again := receive(t, ch)
	md, _ := again.Metadata()
	assert.Equal(t, uint64(2), md.NumDelivered)
	require.NoError(t, again.Ack())
	require.NoError(t, again.Nak())
	assertNoMessage(t, ch)
}

func TestPublisher_ClosedAndCallback(t *testing.T) {
	engine := New()
	defer engine.Close()

	var mu sync.Mutex
	var subjects []string
	pub, err := engine.NewPublisher(pubsub.PublisherOptions{
		StreamName: "S",
		OnPublish: func(subject string, err error, _ time.Duration) {
			mu.Lock()
			defer mu.Unlock()
			subjects = append(subjects, subject)
		},
	})
	require.NoError(t, err)

	require.NoError(t, pub.Publish(context.Background(), "x", nil))
	mu.Lock()
	assert.Equal(t, []string{"S.x"}, subjects)
	mu.Unlock()

	require.NoError(t, pub.Close())
	assert.ErrorIs(t, pub.Publish(context.Background(), "x", nil), ErrEngineClosed)
}

func TestPublisher_EngineClosed(t *testing.T) {
	engine := New()
	pub, _ := engine.NewPublisher(pubsub.PublisherOptions{})
	require.NoError(t, engine.Close())

	assert.ErrorIs(t, pub.Publish(context.Background(), "x", nil), ErrEngineClosed)
}

func TestPublisher_ContextCancelWhileBlocked(t *testing.T) {
	engine := New()
	defer engine.Close()

	c, _ := engine.NewConsumer(pubsub.ConsumerOptions{ChannelBufSize: 1})
	_, err := c.Subscribe(context.Background())
	require.NoError(t, err)

	pub, _ := engine.NewPublisher(pubsub.PublisherOptions{})
	require.NoError(t, pub.Publish(context.Background(), "x", nil))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, pub.Publish(ctx, "x", nil), context.DeadlineExceeded)
}

func TestConcurrent_Publishers(t *testing.T) {
	engine := New()
	defer engine.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, _ := engine.NewConsumer(pubsub.ConsumerOptions{ChannelBufSize: 200})
	ch, err := c.Subscribe(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pub, _ := engine.NewPublisher(pubsub.PublisherOptions{})
			for j := 0; j < 10; j++ {
				_ = pub.Publish(ctx, "load", []byte("x"))
			}
		}()
	}
	wg.Wait()

	for i := 0; i < 100; i++ {
		receive(t, ch)
	}
}
