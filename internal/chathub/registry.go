package chathub

import (
	"sync"

	"astrona/backend/internal/models"
)

// Registry maps a user ID to that user's single live connection. It is the
// only holder of connection handles and the source of truth for whether a
// user is reachable.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]Client)}
}

// Register stores c for userID and returns the connection it replaced, if
// any. The latest connection always wins; closing the previous one is up to
// the caller.
func (r *Registry) Register(userID string, c Client) Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.clients[userID]
	r.clients[userID] = c
	if prev == c {
		return nil
	}
	return prev
}

// Unregister removes userID only while c is still the stored connection, so
// a late close of a replaced connection cannot evict its successor.
func (r *Registry) Unregister(userID string, c Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.clients[userID]; !ok || cur != c {
		return false
	}
	delete(r.clients, userID)
	return true
}

func (r *Registry) Lookup(userID string) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[userID]
	return c, ok
}

func (r *Registry) IsOnline(userID string) bool {
	_, ok := r.Lookup(userID)
	return ok
}

// Send pushes frame to userID's connection. Best effort: an offline user or a
// connection that refuses the frame results in a silent drop.
func (r *Registry) Send(userID string, frame models.Envelope) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[userID]
	if !ok {
		return false
	}
	return c.Send(frame)
}

// Broadcast pushes frame to every registered connection and returns how many
// accepted it.
func (r *Registry) Broadcast(frame models.Envelope) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, c := range r.clients {
		if c.Send(frame) {
			n++
		}
	}
	return n
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
