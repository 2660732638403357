package acipsession

import (
	"sync"
	"sync/atomic"

	"github.com/ascii-chat/acip-core/internal/acerrors"
)

// Registry is the server's live-clients map: the one globally shared
// writable structure in the whole engine, guarded by a single RWMutex whose
// write lock is held only across insertion/removal (lookups, snapshots and
// Count take the read lock). Once
// a *Client is retrieved from a snapshot, all further access to it goes
// through its own lock-free atomics and its SendQueue's internal lock, not
// this one.
type Registry struct {
	mu      sync.RWMutex
	clients map[ClientID]*Client
	nextID  atomic.Uint32
}

// NewRegistry returns an empty registry. Client ids start at 1; 0 is
// reserved for "no client yet", the client_id a frame carries before join.
func NewRegistry() *Registry {
	r := &Registry{clients: make(map[ClientID]*Client)}
	r.nextID.Store(0)
	return r
}

// NextID allocates a client id that is never reused for this registry's
// lifetime.
func (r *Registry) NextID() ClientID {
	return r.nextID.Add(1)
}

// Join inserts a client into the live set. Returns ErrSessionFull if maxClients
// is positive and already reached (maxClients<=0 means unbounded).
func (r *Registry) Join(c *Client, maxClients int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if maxClients > 0 && len(r.clients) >= maxClients {
		return acerrors.Wrap(acerrors.StageSession, acerrors.CodeSessionFull, nil)
	}
	r.clients[c.ID] = c
	return nil
}

// Leave removes a client from the live set. Safe to call more than once.
func (r *Registry) Leave(id ClientID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, id)
}

// Get returns the client for id, if still live.
func (r *Registry) Get(id ClientID) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[id]
	return c, ok
}

// Snapshot returns a stable slice of all currently-live clients, safe to
// range over without holding the registry lock; new joins/leaves during a
// fan-out do not retroactively affect an in-flight snapshot.
func (r *Registry) Snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}

// Count returns the number of live clients.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
