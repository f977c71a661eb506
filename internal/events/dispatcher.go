package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"arbiter/pkg/utils/logger"
)

const defaultQueueSize = 256

// Dispatcher fans events out to registered handlers from a single goroutine,
// preserving publish order per publisher.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers []Handler
	queue    chan Event
	done     chan struct{}
	once     sync.Once
}

func NewDispatcher(queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Dispatcher{
		queue: make(chan Event, queueSize),
		done:  make(chan struct{}),
	}
}

// Subscribe registers a handler. Handlers added after Start still receive
// subsequent events.
func (d *Dispatcher) Subscribe(h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, h)
}

// Publish enqueues an event, stamping the time if unset. Events published
// after Stop, or while the queue is full, are dropped with a warning.
func (d *Dispatcher) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	select {
	case <-d.done:
		return
	default:
	}
	select {
	case d.queue <- ev:
	default:
		logger.Warn(context.Background(), "event queue full, dropping event",
			zap.String("kind", string(ev.Kind)))
	}
}

// Start runs the dispatch loop until ctx is cancelled or Stop is called.
func (d *Dispatcher) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-d.done:
				return
			case ev := <-d.queue:
				d.dispatch(ev)
			}
		}
	}()
}

func (d *Dispatcher) dispatch(ev Event) {
	d.mu.RLock()
	handlers := make([]Handler, len(d.handlers))
	copy(handlers, d.handlers)
	d.mu.RUnlock()
	for _, h := range handlers {
		h.HandleEvent(ev)
	}
}

// Stop shuts the dispatcher down. Safe to call more than once.
func (d *Dispatcher) Stop() {
	d.once.Do(func() { close(d.done) })
}
