package memory

import (
	"sync"
	"time"

	"github.com/syntrixbase/docflow/internal/core/pubsub"
)

type memoryMessage struct {
	data      []byte
	subject   string
	consumer  string
	timestamp time.Time
	sub       *subscription

	mu           sync.Mutex
	numDelivered uint64
	settled      bool
}

func (m *memoryMessage) Data() []byte {
	return m.data
}

func (m *memoryMessage) Subject() string {
	return m.subject
}

// Ack is idempotent.
func (m *memoryMessage) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settled = true
	return nil
}

// Nak requeues the message to the same subscription. The message is
// dropped when the subscription buffer is full or already closed.
func (m *memoryMessage) Nak() error {
	m.mu.Lock()
	if m.settled {
		m.mu.Unlock()
		return nil
	}
	m.numDelivered++
	m.mu.Unlock()

	defer func() {
		// The subscription may have closed its channel meanwhile
		_ = recover()
	}()

	select {
	case <-m.sub.ctx.Done():
	case m.sub.msgCh <- m:
	default:
	}
	return nil
}

func (m *memoryMessage) Metadata() (pubsub.MessageMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return pubsub.MessageMetadata{
		NumDelivered: m.numDelivered,
		Timestamp:    m.timestamp,
		Subject:      m.subject,
		Consumer:     m.consumer,
	}, nil
}
