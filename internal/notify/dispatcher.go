package notify

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/syntrixbase/docflow/internal/extractor"
	"github.com/syntrixbase/docflow/internal/request"
	"github.com/syntrixbase/docflow/pkg/model"
	"golang.org/x/time/rate"
)

// DefaultQueueSize is the default capacity of the dispatch queue.
const DefaultQueueSize = 1024

// Config tunes a Dispatcher.
type Config struct {
	// QueueSize bounds the envelopes waiting for the sink.
	QueueSize int
	// Rate caps envelopes handed to the sink per second. Zero disables it.
	Rate float64
	// Burst is the limiter burst, at least 1 when Rate is set.
	Burst int
	// Timeout bounds a single sink call.
	Timeout time.Duration
	// DrainTimeout bounds the delivery of the envelopes still queued when
	// Run stops.
	DrainTimeout time.Duration
}

// DefaultConfig returns the default dispatcher configuration.
func DefaultConfig() Config {
	return Config{
		QueueSize:    DefaultQueueSize,
		Timeout:      5 * time.Second,
		DrainTimeout: 5 * time.Second,
	}
}

// Dispatcher queues envelopes and feeds them to a Sink from a single
// background loop, so envelopes reach the sink in dispatch order.
// Enqueueing never blocks: a full queue or a stopped dispatcher drops the
// envelope.
type Dispatcher struct {
	sink         Sink
	queue        chan Envelope
	limiter      *rate.Limiter
	timeout      time.Duration
	drainTimeout time.Duration
	logger       *slog.Logger

	stopped    atomic.Bool
	dispatched atomic.Int64
	dropped    atomic.Int64
	failed     atomic.Int64
}

// NewDispatcher creates a dispatcher delivering to sink.
func NewDispatcher(sink Sink, cfg Config, logger *slog.Logger) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		sink:         sink,
		queue:        make(chan Envelope, cfg.QueueSize),
		timeout:      cfg.Timeout,
		drainTimeout: cfg.DrainTimeout,
		logger:       logger.With("component", "notify-dispatcher"),
	}
	if d.drainTimeout <= 0 {
		d.drainTimeout = DefaultConfig().DrainTimeout
	}
	if cfg.Rate > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), burst)
	}
	return d
}

// Dispatch enqueues env. It reports false when the envelope was dropped
// because the queue is full or Run has stopped.
func (d *Dispatcher) Dispatch(env Envelope) bool {
	if d.stopped.Load() {
		d.dropped.Add(1)
		d.logger.Warn("Notification dropped, dispatcher stopped",
			"writeAction", env.WriteAction.String(),
			"index", env.Request.Index,
			"collection", env.Request.Collection,
			"documents", len(env.Documents))
		return false
	}
	select {
	case d.queue <- env:
		return true
	default:
		d.dropped.Add(1)
		d.logger.Warn("Notification dropped, queue full",
			"writeAction", env.WriteAction.String(),
			"index", env.Request.Index,
			"collection", env.Request.Collection,
			"documents", len(env.Documents))
		return false
	}
}

// NotifyDocuments extracts the written documents from the result of req and
// enqueues them tagged with action. Documents the result reports by id only
// take their content from stored. Extraction failures are integration
// defects and are returned, the write itself is not affected.
func (d *Dispatcher) NotifyDocuments(action model.WriteAction, req *request.Request, stored ...model.CanonicalDocument) error {
	docs, err := extractor.Extract(req)
	if err != nil {
		d.logger.Error("Failed to extract notified documents", "action", req.Action, "error", err)
		return err
	}
	docs = FillSources(docs, stored)
	if len(docs) == 0 {
		return nil
	}
	return d.Notify(action, docs, req)
}

// Notify enqueues an envelope for docs.
func (d *Dispatcher) Notify(action model.WriteAction, docs []model.CanonicalDocument, req *request.Request) error {
	if !action.IsValid() {
		return model.AssertionFailed("invalid write action %d", int(action))
	}
	d.Dispatch(NewEnvelope(action, docs, req))
	return nil
}

// Run delivers queued envelopes until ctx is done. It then stops accepting
// envelopes and delivers the queued ones within the drain timeout.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("Notification dispatcher started", "queueSize", cap(d.queue))
	for {
		select {
		case <-ctx.Done():
			d.stop(ctx)
			return nil
		case env := <-d.queue:
			if d.limiter != nil {
				if err := d.limiter.Wait(ctx); err != nil {
					d.stop(ctx, env)
					return nil
				}
			}
			d.deliver(ctx, env)
		}
	}
}

// stop rejects new envelopes, then delivers held and the queued envelopes
// without throttling until the queue is empty or the drain timeout expires.
func (d *Dispatcher) stop(ctx context.Context, held ...Envelope) {
	d.stopped.Store(true)

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.drainTimeout)
	defer cancel()

	for _, env := range held {
		d.deliver(drainCtx, env)
	}
drain:
	for drainCtx.Err() == nil {
		select {
		case env := <-d.queue:
			d.deliver(drainCtx, env)
		default:
			break drain
		}
	}

	d.logger.Info("Notification dispatcher stopped",
		"dispatched", d.dispatched.Load(),
		"dropped", d.dropped.Load(),
		"failed", d.failed.Load(),
		"pending", len(d.queue))
}

func (d *Dispatcher) deliver(ctx context.Context, env Envelope) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	if err := d.sink.NotifyDocuments(ctx, env); err != nil {
		d.failed.Add(1)
		d.logger.Warn("Failed to deliver notification",
			"writeAction", env.WriteAction.String(),
			"index", env.Request.Index,
			"collection", env.Request.Collection,
			"error", err)
		return
	}
	d.dispatched.Add(1)
}

// Stats is a counter snapshot.
type Stats struct {
	Dispatched int64
	Dropped    int64
	Failed     int64
	Pending    int
}

// Stats returns the current counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Dispatched: d.dispatched.Load(),
		Dropped:    d.dropped.Load(),
		Failed:     d.failed.Load(),
		Pending:    len(d.queue),
	}
}
