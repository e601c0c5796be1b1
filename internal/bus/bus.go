package bus

import (
	"context"
	"errors"
	"sync"

	"pulse/internal/logger"
)

var (
	ErrQueueFull      = errors.New("event queue is full")
	ErrAlreadyStarted = errors.New("event bus is already started")
	ErrNotStarted     = errors.New("event bus is not started")
)

// Bus represents an asynchronous event queue with fan-out to subscribers.
type Bus struct {
	mu      sync.RWMutex
	logger  *logger.Logger
	metrics *Metrics
	ctx     context.Context
	cancel  context.CancelFunc
	started bool

	eventCh chan Event

	subscribers  map[int64]chan Event
	subscriberID int64
}

// New creates a new Bus with the specified queue capacity.
func New(capacity int, log *logger.Logger) *Bus {
	return &Bus{
		logger:      log,
		metrics:     newMetrics(),
		eventCh:     make(chan Event, capacity),
		subscribers: make(map[int64]chan Event),
	}
}

// Start starts the event distribution goroutine.
func (b *Bus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return ErrAlreadyStarted
	}

	b.ctx, b.cancel = context.WithCancel(ctx)
	b.started = true

	go b.distribute()

	b.logger.Info("event bus started", logger.Field{Key: "capacity", Value: cap(b.eventCh)})
	return nil
}

// Stop gracefully stops the event bus and closes all channels.
func (b *Bus) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.started {
		return ErrNotStarted
	}

	if b.cancel != nil {
		b.cancel()
	}

	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
	b.metrics.subscribers.Set(0)

	close(b.eventCh)
	b.started = false

	b.logger.Info("event bus stopped")
	return nil
}

// Publish enqueues an event for distribution.
func (b *Bus) Publish(event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.started {
		return ErrNotStarted
	}

	select {
	case b.eventCh <- event:
		b.metrics.eventsPublished.WithLabelValues(string(event.Type)).Inc()
		b.logger.DebugCtx(b.ctx, "event published",
			logger.Field{Key: "type", Value: event.Type},
			logger.Field{Key: "task_id", Value: event.TaskID})
		return nil
	default:
		b.metrics.eventsDropped.Inc()
		b.logger.WarnCtx(b.ctx, "event queue full",
			logger.Field{Key: "capacity", Value: cap(b.eventCh)})
		return ErrQueueFull
	}
}

// Subscribe registers a new subscriber and returns its event channel.
// Returns nil if the bus is not started.
func (b *Bus) Subscribe(ctx context.Context) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.started {
		return nil
	}

	ch := make(chan Event, 10)
	b.subscriberID++
	id := b.subscriberID
	b.subscribers[id] = ch
	b.metrics.subscribers.Inc()

	b.logger.DebugCtx(ctx, "event subscriber added",
		logger.Field{Key: "subscriber_id", Value: id})

	return ch
}

// distribute fans out events to all subscribers.
func (b *Bus) distribute() {
	for {
		select {
		case <-b.ctx.Done():
			return
		case event, ok := <-b.eventCh:
			if !ok {
				return
			}
			b.mu.RLock()
			for _, ch := range b.subscribers {
				select {
				case ch <- event:
				default:
					// Subscriber channel is full, skip
					b.logger.WarnCtx(b.ctx, "subscriber channel full, skipping event")
				}
			}
			b.mu.RUnlock()
		}
	}
}

// IsStarted returns true if the event bus is started.
func (b *Bus) IsStarted() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.started
}

// Metrics returns the bus metrics collectors.
func (b *Bus) Metrics() *Metrics {
	return b.metrics
}
