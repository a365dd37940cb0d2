package audit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// ErrDispatcherFull is returned when an entry is dropped because the buffer
// is full.
var ErrDispatcherFull = errors.New("audit dispatcher buffer full")

// ErrDispatcherClosed is returned for entries written after Close.
var ErrDispatcherClosed = errors.New("audit dispatcher closed")

// Dispatcher forwards entries to a slow sink on a background goroutine so
// request paths never wait on audit persistence.
type Dispatcher struct {
	sink      Sink
	fallback  *zap.Logger
	ch        chan Entry
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// NewDispatcher starts a dispatcher with the given buffer size. Errors from
// sink are reported on fallback.
func NewDispatcher(sink Sink, buffer int, fallback *zap.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = 1
	}
	if fallback == nil {
		fallback = zap.NewNop()
	}
	d := &Dispatcher{
		sink:     sink,
		fallback: fallback,
		ch:       make(chan Entry, buffer),
		done:     make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case entry := <-d.ch:
			d.deliver(entry)
		case <-d.done:
			for {
				select {
				case entry := <-d.ch:
					d.deliver(entry)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(entry Entry) {
	defer func() {
		if r := recover(); r != nil {
			d.fallback.Error("audit sink panicked", zap.String("audit_message", entry.Message), zap.Any("panic", r))
		}
	}()
	if err := d.sink.Write(context.Background(), entry); err != nil {
		d.fallback.Error("audit sink write failed", zap.String("audit_message", entry.Message), zap.Error(err))
	}
}

// Write enqueues entry without blocking. Entries accepted before Close
// returns are always delivered.
func (d *Dispatcher) Write(_ context.Context, entry Entry) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.ch <- entry:
		return nil
	default:
		d.dropped.Add(1)
		return ErrDispatcherFull
	}
}

// Close stops accepting entries and drains the buffer.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped returns how many entries were dropped.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}
