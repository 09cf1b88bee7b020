package status

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/jogardn/restaurant-storefront/pkg/models"
)

const subscriberBuffer = 16

// Subscription receives every event published after Subscribe returned.
// C is closed by Unsubscribe or when the broadcaster closes.
type Subscription struct {
	C  <-chan models.StatusEvent
	id uint64
}

// Broadcaster fans status events out to in-process subscribers. Slow
// subscribers lose events instead of blocking publishers.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[uint64]chan models.StatusEvent
	nextID uint64
	closed bool
	logger *logrus.Logger
}

func NewBroadcaster(logger *logrus.Logger) *Broadcaster {
	return &Broadcaster{
		subs:   make(map[uint64]chan models.StatusEvent),
		logger: logger,
	}
}

func (b *Broadcaster) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan models.StatusEvent, subscriberBuffer)
	if b.closed {
		close(ch)
		return &Subscription{C: ch}
	}
	b.nextID++
	b.subs[b.nextID] = ch
	return &Subscription{C: ch, id: b.nextID}
}

func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subs[sub.id]; ok {
		delete(b.subs, sub.id)
		close(ch)
	}
}

func (b *Broadcaster) Publish(event models.StatusEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.logger.WithFields(logrus.Fields{
				"subscriber": id,
				"kind":       event.Kind,
			}).Warn("Status subscriber is full, dropping event")
		}
	}
}

func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
