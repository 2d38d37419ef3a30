package erpclient

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// auditDispatcher hands events to the sink on a single worker goroutine so request
// paths never wait on a slow sink.
type auditDispatcher struct {
	sink       AuditSink
	dropIfFull bool
	logger     *zap.Logger

	queue   chan AuditEvent
	stop    chan struct{}
	stopped sync.WaitGroup
	once    sync.Once
	dropped atomic.Uint64

	// mu orders sends against Close; closing is set under the write lock so no
	// send lands after the worker has drained.
	mu      sync.RWMutex
	closing bool
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink, logger *zap.Logger) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}

	d := &auditDispatcher{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		logger:     logger,
		queue:      make(chan AuditEvent, size),
		stop:       make(chan struct{}),
	}
	d.stopped.Add(1)
	go d.loop()
	return d
}

func (d *auditDispatcher) loop() {
	defer d.stopped.Done()
	ctx := context.Background()

	for {
		select {
		case ev := <-d.queue:
			d.sink.Emit(ctx, ev)
		case <-d.stop:
			d.drain(ctx)
			return
		}
	}
}

func (d *auditDispatcher) drain(ctx context.Context) {
	for {
		select {
		case ev := <-d.queue:
			d.sink.Emit(ctx, ev)
		default:
			return
		}
	}
}

// Emit queues event and reports whether it was accepted. With dropIfFull a full
// queue drops the event and counts it; otherwise Emit waits for room or ctx.
// Events emitted after Close are discarded.
func (d *auditDispatcher) Emit(ctx context.Context, ev AuditEvent) bool {
	if d == nil {
		return false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closing {
		return false
	}

	if d.dropIfFull {
		select {
		case d.queue <- ev:
			return true
		default:
			if d.dropped.Add(1) == 1 {
				d.logger.Warn("audit queue full, dropping events", zap.String("event_type", ev.EventType))
			}
			return false
		}
	}

	select {
	case d.queue <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// Close stops accepting events, flushes the queue and waits for the worker.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		d.mu.Lock()
		d.closing = true
		d.mu.Unlock()
		close(d.stop)
		d.stopped.Wait()
	})
}

// Dropped counts events discarded on a full queue.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
