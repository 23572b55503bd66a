package ws

import (
	"context"
	"sync"
)

// Registry tracks live websocket clients so they can be counted and shut
// down together.
type Registry struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	clients map[*Client]bool
}

func NewRegistry() *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		ctx:     ctx,
		cancel:  cancel,
		clients: make(map[*Client]bool),
	}
}

// Context is the parent of every session; it ends on Shutdown.
func (r *Registry) Context() context.Context { return r.ctx }

func (r *Registry) Add(c *Client) {
	r.mu.Lock()
	r.clients[c] = true
	r.mu.Unlock()
}

// Remove is safe to call for a client that was never added.
func (r *Registry) Remove(c *Client) {
	r.mu.Lock()
	delete(r.clients, c)
	r.mu.Unlock()
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Shutdown ends every session. Their connections close as the pumps exit.
func (r *Registry) Shutdown() {
	r.cancel()

	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.clients))
	for c := range r.clients {
		sessions = append(sessions, c.session)
	}
	r.mu.RUnlock()

	for _, s := range sessions {
		s.Close()
	}
}
