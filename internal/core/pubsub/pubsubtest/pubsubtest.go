// Package pubsubtest provides pubsub doubles for tests of pubsub users.
package pubsubtest

import (
	"context"
	"sync"
	"time"

	"github.com/syntrixbase/docflow/internal/core/pubsub"
)

// Published is one recorded publish call.
type Published struct {
	Subject string
	Data    []byte
}

// Publisher records published messages and can be told to fail.
type Publisher struct {
	mu       sync.Mutex
	messages []Published
	err      error
	closed   bool
}

var _ pubsub.Publisher = (*Publisher)(nil)

func (p *Publisher) Publish(_ context.Context, subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, Published{Subject: subject, Data: append([]byte(nil), data...)})
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Messages returns a copy of the recorded messages.
func (p *Publisher) Messages() []Published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Published(nil), p.messages...)
}

// SetError makes later Publish calls fail with err.
func (p *Publisher) SetError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// IsClosed reports whether Close was called.
func (p *Publisher) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Message is a settled-state recording pubsub.Message.
type Message struct {
	subject string
	data    []byte

	mu    sync.Mutex
	acked bool
	naked bool
}

var _ pubsub.Message = (*Message)(nil)

// NewMessage creates a message.
func NewMessage(subject string, data []byte) *Message {
	return &Message{subject: subject, data: data}
}

func (m *Message) Data() []byte    { return m.data }
func (m *Message) Subject() string { return m.subject }

func (m *Message) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acked = true
	return nil
}

func (m *Message) Nak() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.naked = true
	return nil
}

func (m *Message) Metadata() (pubsub.MessageMetadata, error) {
	return pubsub.MessageMetadata{NumDelivered: 1, Timestamp: time.Now(), Subject: m.subject}, nil
}

// IsAcked reports whether Ack was called.
func (m *Message) IsAcked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acked
}

// IsNaked reports whether Nak was called.
func (m *Message) IsNaked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.naked
}

// Provider hands out Pub for every publisher and delegates consumers.
type Provider struct {
	Pub       *Publisher
	Consumers pubsub.Provider
}

var _ pubsub.Provider = (*Provider)(nil)

func (p *Provider) NewPublisher(pubsub.PublisherOptions) (pubsub.Publisher, error) {
	return p.Pub, nil
}

func (p *Provider) NewConsumer(opts pubsub.ConsumerOptions) (pubsub.Consumer, error) {
	return p.Consumers.NewConsumer(opts)
}

func (p *Provider) Close() error {
	return p.Consumers.Close()
}
