package sheets

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Stats counts dispatcher activity since start.
type Stats struct {
	Queued    int64 `json:"queued"`
	Delivered int64 `json:"delivered"`
	Skipped   int64 `json:"skipped"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
}

// Dispatcher ships records on a single background worker so callers never wait on the
// webhook.
type Dispatcher struct {
	client    Deliverer
	queue     chan Record
	onOutcome func(Record, Outcome)

	mu     sync.RWMutex
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	queued    atomic.Int64
	delivered atomic.Int64
	skipped   atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// Option customises a Dispatcher.
type Option func(*Dispatcher)

// WithOutcomeHook registers a callback invoked on the worker after every delivery.
func WithOutcomeHook(fn func(Record, Outcome)) Option {
	return func(d *Dispatcher) { d.onOutcome = fn }
}

// NewDispatcher starts the worker. size is the queue capacity.
func NewDispatcher(client Deliverer, size int, opts ...Option) *Dispatcher {
	if size <= 0 {
		size = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		client: client,
		queue:  make(chan Record, size),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	go d.run()
	return d
}

// Enqueue schedules a record without blocking. It returns false when the record was
// dropped because the queue is full or the dispatcher is closed.
func (d *Dispatcher) Enqueue(rec Record) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped.Add(1)
		return false
	}
	select {
	case d.queue <- rec:
		d.queued.Add(1)
		return true
	default:
		d.dropped.Add(1)
		logrus.WithField("analysis_id", rec.AnalysisID).Warn("sheets queue full, dropping record")
		return false
	}
}

// Close stops accepting records and waits for the queue to drain. When ctx expires first
// the in-flight delivery is cancelled and the remaining records are discarded.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-d.done
		return ctx.Err()
	}
}

// Stats returns a snapshot of the counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Queued:    d.queued.Load(),
		Delivered: d.delivered.Load(),
		Skipped:   d.skipped.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for rec := range d.queue {
		if d.ctx.Err() != nil {
			d.dropped.Add(1)
			continue
		}
		out := d.client.Deliver(d.ctx, rec)
		entry := logrus.WithFields(logrus.Fields{
			"analysis_id": rec.AnalysisID,
			"attempts":    out.Attempts,
			"status":      out.Status,
		})
		switch {
		case out.Delivered:
			d.delivered.Add(1)
			entry.Debug("sheets record delivered")
		case out.Skipped:
			d.skipped.Add(1)
		default:
			d.failed.Add(1)
			entry.WithError(out.Err).Warn("sheets delivery failed")
		}
		if d.onOutcome != nil {
			d.onOutcome(rec, out)
		}
	}
}
