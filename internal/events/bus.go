// Package events provides the in-process event bus that carries price
// changes from the aggregation core to push consumers such as the
// WebSocket stream.
package events

import (
	"sync"

	"github.com/rs/zerolog"
)

// Type classifies an event.
type Type string

const (
	// PriceChanged fires when a pricing round moves an asset past the
	// change threshold.
	PriceChanged Type = "price.changed"
	// RentalRefreshed fires after a rental refresh cycle completes.
	RentalRefreshed Type = "rental.refreshed"
)

// Event is one bus message.
type Event struct {
	Type      Type    `json:"type"`
	AssetID   string  `json:"assetId,omitempty"`
	Price     float64 `json:"price,omitempty"`
	PriceInt  int64   `json:"priceInt,omitempty"`
	Timestamp int64   `json:"timestamp"`
}

// Bus is a fan-out pub/sub hub. Publishing never blocks: subscribers that
// fall behind their buffer lose events rather than stalling the publisher.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	log    zerolog.Logger
}

// NewBus creates an empty bus.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		subs: make(map[int]chan Event),
		log:  log.With().Str("component", "events").Logger(),
	}
}

// Subscribe registers a new subscriber with the given channel buffer. The
// returned cancel func must be called exactly once; it closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, buffer)
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish fans the event out to all current subscribers.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.log.Debug().Str("type", string(e.Type)).Msg("Subscriber buffer full, event dropped")
		}
	}
}

// Subscribers returns the current subscriber count.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
