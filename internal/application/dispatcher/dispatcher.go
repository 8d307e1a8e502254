// Package dispatcher fans mutation and query lifecycle events out to the
// audit log and metrics.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/garyjia/billing-console/internal/domain/event"
)

// DefaultQueueSize bounds the async queue
const DefaultQueueSize = 256

// Handler reacts to a lifecycle event
type Handler func(ctx context.Context, evt *event.Event) error

// Dispatcher delivers events to named subscribers. Async deliveries keep
// publication order, so subscribers see OPTIMISTIC_APPLIED before the state
// that settles the same mutation.
type Dispatcher interface {
	// Subscribe registers handler under name for every listed type. A second
	// subscription with the same name and type replaces the first.
	Subscribe(name string, handler Handler, types ...event.Type)

	// Dispatch runs the handlers of evt in subscription order and returns the
	// first error; later handlers still run.
	Dispatch(ctx context.Context, evt *event.Event) error

	// DispatchAsync queues evt. It blocks while the queue is full.
	DispatchAsync(ctx context.Context, evt *event.Event)

	// Pending is the number of queued events not yet delivered
	Pending() int

	// Close stops accepting events and waits for the queue to drain
	Close() error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type subscription struct {
	name    string
	handler Handler
}

type delivery struct {
	ctx context.Context
	evt *event.Event
}

type eventDispatcher struct {
	mu          sync.RWMutex
	subscribers map[event.Type][]subscription
	logger      Logger
	queueSize   int

	// sendMu orders queue sends against Close
	sendMu sync.RWMutex
	closed bool
	queue  chan delivery
	done   chan struct{}
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) {
		d.logger = logger
	}
}

// WithQueueSize sets the async queue capacity
func WithQueueSize(n int) Option {
	return func(d *eventDispatcher) {
		if n > 0 {
			d.queueSize = n
		}
	}
}

// NewDispatcher creates a dispatcher and starts its delivery loop
func NewDispatcher(opts ...Option) Dispatcher {
	d := &eventDispatcher{
		subscribers: make(map[event.Type][]subscription),
		queueSize:   DefaultQueueSize,
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.queue = make(chan delivery, d.queueSize)

	go d.loop()
	return d
}

func (d *eventDispatcher) Subscribe(name string, handler Handler, types ...event.Type) {
	d.mu.Lock()
	for _, t := range types {
		subs := d.subscribers[t]
		replaced := false
		for i := range subs {
			if subs[i].name == name {
				subs[i].handler = handler
				replaced = true
			}
		}
		if !replaced {
			subs = append(subs, subscription{name: name, handler: handler})
		}
		d.subscribers[t] = subs
	}
	d.mu.Unlock()

	if d.logger != nil {
		d.logger.Info("Handler registered", "handler_name", name, "event_types", len(types))
	}
}

func (d *eventDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	d.sendMu.RLock()
	closed := d.closed
	d.sendMu.RUnlock()
	if closed {
		return fmt.Errorf("dispatcher is closed")
	}
	return d.deliver(ctx, evt)
}

func (d *eventDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	d.sendMu.RLock()
	defer d.sendMu.RUnlock()

	if d.closed {
		d.logf("Dropped event, dispatcher is closed", evt, nil)
		return
	}
	select {
	case d.queue <- delivery{ctx: ctx, evt: evt}:
	case <-ctx.Done():
		d.logf("Dropped event, context done", evt, ctx.Err())
	}
}

func (d *eventDispatcher) Pending() int {
	return len(d.queue)
}

func (d *eventDispatcher) Close() error {
	d.sendMu.Lock()
	if d.closed {
		d.sendMu.Unlock()
		return fmt.Errorf("dispatcher already closed")
	}
	d.closed = true
	close(d.queue)
	d.sendMu.Unlock()

	<-d.done
	if d.logger != nil {
		d.logger.Info("Dispatcher closed")
	}
	return nil
}

func (d *eventDispatcher) loop() {
	defer close(d.done)
	for del := range d.queue {
		// errors are already logged per handler
		_ = d.deliver(del.ctx, del.evt)
	}
}

func (d *eventDispatcher) deliver(ctx context.Context, evt *event.Event) error {
	d.mu.RLock()
	subs := append([]subscription(nil), d.subscribers[evt.Type]...)
	d.mu.RUnlock()

	var first error
	for _, s := range subs {
		if err := d.safeExecute(ctx, evt, s); err != nil {
			d.logf("Handler error", evt, err, "handler_name", s.name)
			if first == nil {
				first = fmt.Errorf("handler %s failed: %w", s.name, err)
			}
		}
	}
	return first
}

// safeExecute runs a handler with panic recovery
func (d *eventDispatcher) safeExecute(ctx context.Context, evt *event.Event, s subscription) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return s.handler(ctx, evt)
}

func (d *eventDispatcher) logf(msg string, evt *event.Event, err error, extra ...interface{}) {
	if d.logger == nil {
		return
	}
	kv := []interface{}{"event_type", evt.Type, "event_id", evt.ID, "mutation_id", evt.MutationID}
	if err != nil {
		kv = append(kv, "error", err)
	}
	d.logger.Error(msg, append(kv, extra...)...)
}
