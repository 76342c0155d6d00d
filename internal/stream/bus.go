package stream

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"autoguard/internal/model"
)

const DefaultSubscriberBuffer = 64

// Bus fans events out to current subscribers. Delivery is best effort: a
// subscriber whose buffer is full misses the event, and new subscribers get
// no backlog.
type Bus struct {
	logger *slog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]*Subscription
}

func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		logger: logger,
		now:    time.Now,
		subs:   map[uint64]*Subscription{},
	}
}

type Subscription struct {
	id     uint64
	bus    *Bus
	events chan model.Envelope
	once   sync.Once
}

func (s *Subscription) Events() <-chan model.Envelope {
	return s.events
}

// Close detaches the subscription and closes its channel. Safe to call twice.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s.id)
		close(s.events)
		s.bus.mu.Unlock()
	})
}

func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub := &Subscription{id: b.nextID, bus: b, events: make(chan model.Envelope, buffer)}
	b.subs[sub.id] = sub
	return sub
}

func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus) Publish(event model.EventName, payload any) {
	env := model.Envelope{
		ID:        uuid.NewString(),
		Event:     event,
		Timestamp: b.now().UTC(),
		Payload:   payload,
	}

	dropped := 0
	b.mu.RLock()
	for _, sub := range b.subs {
		select {
		case sub.events <- env:
		default:
			dropped++
		}
	}
	b.mu.RUnlock()

	if dropped > 0 {
		b.logger.Debug("dropped event for slow subscribers", "event", event, "dropped", dropped)
	}
}
