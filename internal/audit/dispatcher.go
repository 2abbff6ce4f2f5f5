package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// Stats counts what happened to emitted events. Every accepted event ends up delivered or
// in SinkPanics once the dispatcher is closed.
type Stats struct {
	Delivered  uint64
	Dropped    uint64
	SinkPanics uint64
}

// Dispatcher forwards events to a sink on its own goroutine so a slow sink never delays the
// request that produced the event.
type Dispatcher struct {
	cfg   Config
	sink  Sink
	queue chan Event
	stop  chan struct{}
	wg    sync.WaitGroup

	delivered atomic.Uint64
	dropped   atomic.Uint64
	panics    atomic.Uint64

	closing   atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher starts a dispatcher, or returns nil when cfg is disabled. A nil Dispatcher is
// safe to use and discards everything.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = Discard
	}

	d := &Dispatcher{
		cfg:   cfg,
		sink:  sink,
		queue: make(chan Event, cfg.BufferSize),
		stop:  make(chan struct{}),
	}
	d.wg.Add(1)
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer d.wg.Done()
	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		case <-d.stop:
			d.drain()
			return
		}
	}
}

// drain flushes whatever was queued before Close.
func (d *Dispatcher) drain() {
	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(event Event) {
	defer func() {
		if recover() != nil {
			d.panics.Add(1)
		}
	}()
	d.sink.Emit(context.Background(), event)
	d.delivered.Add(1)
}

// Emit queues event. With DropIfFull a full buffer drops the event and counts it; otherwise
// Emit waits for space or for ctx to end, counting the event as dropped if ctx ends first.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closing.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.queue <- event:
		case <-d.stop:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.stop:
	}
}

// Close drains queued events and stops the worker. It is idempotent.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closing.Store(true)
		close(d.stop)
		d.wg.Wait()
	})
}

// Stats is safe to call concurrently with Emit. A nil Dispatcher reports zeros.
func (d *Dispatcher) Stats() Stats {
	if d == nil {
		return Stats{}
	}
	return Stats{
		Delivered:  d.delivered.Load(),
		Dropped:    d.dropped.Load(),
		SinkPanics: d.panics.Load(),
	}
}
