// Package nats provides the clustered pubsub provider on NATS JetStream.
package nats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/syntrixbase/docflow/internal/core/pubsub"
)

// Options configures the connection.
type Options struct {
	URL            string
	Name           string
	ConnectTimeout time.Duration
	// MaxReconnects is passed to nats.MaxReconnects, -1 retries forever.
	MaxReconnects int
}

// Provider implements pubsub.Provider using NATS JetStream.
type Provider struct {
	opts Options
	nc   *nats.Conn
	js   JetStream

	// injectable for testing
	connect      func(url string, opts ...nats.Option) (*nats.Conn, error)
	newJetStream func(nc *nats.Conn) (JetStream, error)
}

var (
	_ pubsub.Provider    = (*Provider)(nil)
	_ pubsub.Connectable = (*Provider)(nil)
)

// NewProvider creates a provider. Connect must be called before use.
func NewProvider(opts Options) *Provider {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	return &Provider{
		opts:         opts,
		connect:      nats.Connect,
		newJetStream: NewJetStream,
	}
}

// Connect establishes the NATS connection and initializes JetStream.
func (p *Provider) Connect(ctx context.Context) error {
	natsOpts := []nats.Option{
		nats.Timeout(p.opts.ConnectTimeout),
		nats.MaxReconnects(p.opts.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("Disconnected from NATS", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("Reconnected to NATS", "url", nc.ConnectedUrl())
		}),
	}
	if p.opts.Name != "" {
		natsOpts = append(natsOpts, nats.Name(p.opts.Name))
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	nc, err := p.connect(p.opts.URL, natsOpts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", p.opts.URL, err)
	}

	js, err := p.newJetStream(nc)
	if err != nil {
		if nc != nil {
			nc.Close()
		}
		return fmt.Errorf("failed to create JetStream: %w", err)
	}
	p.nc = nc
	p.js = js

	slog.Info("Connected to NATS", "url", p.opts.URL)
	return nil
}

// NewPublisher creates a new Publisher backed by NATS JetStream.
func (p *Provider) NewPublisher(opts pubsub.PublisherOptions) (pubsub.Publisher, error) {
	if p.js == nil {
		return nil, fmt.Errorf("NATS not connected, call Connect first")
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.opts.ConnectTimeout)
	defer cancel()
	return NewPublisher(ctx, p.js, opts)
}

// NewConsumer creates a new Consumer backed by NATS JetStream.
func (p *Provider) NewConsumer(opts pubsub.ConsumerOptions) (pubsub.Consumer, error) {
	if p.js == nil {
		return nil, fmt.Errorf("NATS not connected, call Connect first")
	}
	return NewConsumer(p.js, opts)
}

// Close drains and closes the NATS connection.
func (p *Provider) Close() error {
	if p.nc == nil {
		return nil
	}
	slog.Info("Closing NATS connection...")
	err := p.nc.Drain()
	if err != nil {
		p.nc.Close()
	}
	p.nc = nil
	p.js = nil
	return err
}
