package realtime

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

const subscriptionBuffer = 64

var (
	ErrHubClosed           = errors.New("change hub closed")
	ErrSubscriptionDropped = errors.New("change subscription dropped")
)

// Subscription receives the change events of one table.
type Subscription struct {
	table  string
	events chan ChangeEvent
}

// Events is closed when the hub drops the subscription or shuts down. A
// dropped subscriber has missed events and must resubscribe.
func (s *Subscription) Events() <-chan ChangeEvent {
	return s.events
}

// Hub fans change events out to every subscription on the event's table.
type Hub struct {
	// Registered subscriptions by table
	rooms map[string]map[*Subscription]bool

	register   chan *Subscription
	unregister chan *Subscription
	broadcast  chan ChangeEvent
	done       chan struct{}

	mu     sync.RWMutex
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Subscription]bool),
		register:   make(chan *Subscription),
		unregister: make(chan *Subscription),
		broadcast:  make(chan ChangeEvent, 256),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run is the hub's main loop. It returns when ctx is cancelled, closing
// every remaining subscription.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for table, subs := range h.rooms {
				for sub := range subs {
					close(sub.events)
				}
				delete(h.rooms, table)
			}
			h.mu.Unlock()
			return

		case sub := <-h.register:
			h.mu.Lock()
			if h.rooms[sub.table] == nil {
				h.rooms[sub.table] = make(map[*Subscription]bool)
			}
			h.rooms[sub.table][sub] = true
			h.mu.Unlock()

		case sub := <-h.unregister:
			h.mu.Lock()
			if subs, ok := h.rooms[sub.table]; ok {
				if _, exists := subs[sub]; exists {
					delete(subs, sub)
					close(sub.events)
					if len(subs) == 0 {
						delete(h.rooms, sub.table)
					}
				}
			}
			h.mu.Unlock()

		case evt := <-h.broadcast:
			h.mu.Lock()
			for sub := range h.rooms[evt.Table] {
				select {
				case sub.events <- evt:
				default:
					// Subscriber is not keeping up; drop it.
					h.logger.Warn("dropping slow change subscriber", zap.String("table", evt.Table))
					close(sub.events)
					delete(h.rooms[evt.Table], sub)
					if len(h.rooms[evt.Table]) == 0 {
						delete(h.rooms, evt.Table)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) Subscribe(ctx context.Context, table string) (*Subscription, error) {
	sub := &Subscription{
		table:  table,
		events: make(chan ChangeEvent, subscriptionBuffer),
	}
	select {
	case h.register <- sub:
		return sub, nil
	case <-h.done:
		return nil, ErrHubClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Unsubscribe is safe to call on a subscription the hub already dropped.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	select {
	case h.unregister <- sub:
	case <-h.done:
	}
}

// Publish queues evt for delivery. It is a no-op once the hub has stopped.
func (h *Hub) Publish(evt ChangeEvent) {
	select {
	case h.broadcast <- evt:
	case <-h.done:
	}
}

// Subscribers reports how many subscriptions are registered for table.
func (h *Hub) Subscribers(table string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[table])
}
