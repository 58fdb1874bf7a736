// Package ws holds the realtime side of the chat: the presence registry of
// live authenticated connections, the delivery dispatcher that fans messages
// out to them, and the websocket transport.
package ws

import (
	"sync"
)

type session struct {
	client *Client
	userID int64
}

// Registry maps live connection handles to authenticated user ids. It is
// process-wide shared state owned by the Hub and reset only on restart; all
// access is serialized under one lock. A user may hold several simultaneous
// handles (multi-device), a handle maps to exactly one user.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]session)}
}

// Add registers a handle for a user.
func (r *Registry) Add(handleID string, c *Client, userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[handleID] = session{client: c, userID: userID}
}

// Remove deregisters a handle. Idempotent: removing an unknown handle is a
// no-op. Reports whether the handle was registered.
func (r *Registry) Remove(handleID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[handleID]
	delete(r.sessions, handleID)
	return ok
}

// UserFor returns the user id a handle is registered to.
func (r *Registry) UserFor(handleID string) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[handleID]
	return s.userID, ok
}

// ClientFor returns the client for a handle.
func (r *Registry) ClientFor(handleID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[handleID]
	return s.client, ok
}

// ConnectionsFor returns a snapshot of every client registered for userID.
// The snapshot is taken under the lock; callers write to the clients after
// it is released.
func (r *Registry) ConnectionsFor(userID int64) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var clients []*Client
	for _, s := range r.sessions {
		if s.userID == userID {
			clients = append(clients, s.client)
		}
	}
	return clients
}

// Len returns the number of registered handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
