package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Bus is a small in-process publish/subscribe fanout. Subscribers get
// buffered channels; a slow subscriber drops events rather than
// blocking publishers.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[int]chan Event
	nextID      int
	log         zerolog.Logger
}

// NewBus creates an event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		subscribers: make(map[int]chan Event),
		log:         log.With().Str("component", "event_bus").Logger(),
	}
}

// Publish delivers an event to every subscriber without blocking
func (b *Bus) Publish(data EventData) {
	event := Event{
		OccurredAt: time.Now().UTC(),
		Type:       data.EventType(),
		Data:       data,
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			b.log.Warn().Int("subscriber", id).Str("type", string(event.Type)).Msg("Dropped event for slow subscriber")
		}
	}
}

// Subscribe registers a new subscriber. The returned cancel function
// must be called to release the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subscribers[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}
