package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// Dispatcher decouples auth operations from sink latency: Emit hands the
// event to a buffered queue and returns, a single forwarder goroutine feeds
// the sink. Closing the dispatcher stops intake first and then drains the
// queue, so every accepted event reaches the sink exactly once.
type Dispatcher struct {
	sink       Sink
	queue      chan Event
	dropIfFull bool

	producers sync.WaitGroup
	accepting atomic.Bool
	dropped   atomic.Uint64
	drained   chan struct{}
	stopOnce  sync.Once
}

// NewDispatcher returns nil when auditing is disabled; a nil *Dispatcher is a
// safe no-op receiver for Emit, Close, and Dropped.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		sink:       sink,
		queue:      make(chan Event, cfg.BufferSize),
		dropIfFull: cfg.DropIfFull,
		drained:    make(chan struct{}),
	}
	d.accepting.Store(true)

	go d.forward()

	return d
}

// forward runs until the queue is closed, which only happens after intake has
// stopped and every in-flight Emit has returned. Ranging the closed channel
// is the drain.
func (d *Dispatcher) forward() {
	defer close(d.drained)
	for event := range d.queue {
		d.sink.Emit(context.Background(), event)
	}
}

// Emit enqueues one event. In drop mode a full queue increments the drop
// counter instead of blocking the auth operation; otherwise Emit blocks until
// there is room or ctx is done.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || !d.accepting.Load() {
		return
	}

	d.producers.Add(1)
	defer d.producers.Done()

	// Close stops intake before waiting out producers; re-checking after
	// registering guarantees no send can race the queue close.
	if !d.accepting.Load() {
		return
	}

	if d.dropIfFull {
		select {
		case d.queue <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- event:
	case <-ctx.Done():
	}
}

// Close stops intake, waits for in-flight Emit calls, and blocks until the
// forwarder has delivered everything still queued. Idempotent.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.stopOnce.Do(func() {
		d.accepting.Store(false)
		d.producers.Wait()
		close(d.queue)
		<-d.drained
	})
}

// Dropped reports how many events were discarded because the queue was full.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
