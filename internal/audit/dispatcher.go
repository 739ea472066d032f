package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Config controls dispatcher buffering.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// SinkTimeout bounds a single sink call. Zero means no bound.
	SinkTimeout time.Duration
}

// Dispatcher forwards events to a sink on its own goroutine.
type Dispatcher struct {
	cfg       Config
	sink      Sink
	logger    *zap.Logger
	ch        chan Event
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher starts a dispatcher. It returns nil when auditing is disabled;
// every method is safe on a nil receiver.
func NewDispatcher(cfg Config, sink Sink, logger *zap.Logger) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Dispatcher{
		cfg:    cfg,
		sink:   sink,
		logger: logger,
		ch:     make(chan Event, cfg.BufferSize),
		done:   make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case event := <-d.ch:
			d.deliver(event)
		case <-d.done:
			for {
				select {
				case event := <-d.ch:
					d.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(event Event) {
	ctx := context.Background()
	if d.cfg.SinkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.SinkTimeout)
		defer cancel()
	}
	defer func() {
		if p := recover(); p != nil {
			d.logger.Error("audit sink panicked", zap.String("event_type", event.EventType), zap.Any("panic", p))
		}
	}()
	d.sink.Emit(ctx, event)
}

// Emit queues an event. With DropIfFull a full buffer drops the event and
// bumps Dropped; otherwise Emit waits for room or for ctx.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- event:
		case <-d.done:
		default:
			if d.dropped.Add(1) == 1 {
				d.logger.Warn("audit buffer full, dropping events", zap.Int("buffer_size", d.cfg.BufferSize))
			}
		}
		return
	}

	select {
	case d.ch <- event:
	case <-ctx.Done():
	case <-d.done:
	}
}

// Close drains queued events and stops the goroutine.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped returns the number of events discarded because the buffer was full.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
