// Package acipsession implements the ACIP session / fan-out engine: per-client
// state (capabilities, subscriptions, bounded send queue, rate limiter,
// heartbeat), the receive/send worker pair, and the live-clients registry
// that routes each inbound media packet to every other subscribed client.
//
// The live-clients map is the only globally shared writable structure,
// guarded by one lock that is write-held only for insertion/removal; each
// per-client queue has one consumer (its send worker) and any number of
// producers, serialized by the queue's own lock.
package acipsession

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ascii-chat/acip-core/pkg/acip"
)

// ClientID uniquely identifies a joined client for the lifetime of the server process.
type ClientID = uint32

// Client is one joined participant's server-side state: its encrypted
// session, negotiated capabilities, subscribed stream kinds, bounded send
// queue, and liveness tracking.
//
// Invariant: at most one send worker and one receive worker
// operate on a Client at a time. The receive worker owns decryption/parsing
// state; the send worker owns queue draining. Both share only the fields
// below, each of which is safe for that single-writer pattern (atomics or
// the queue's own internal locking).
type Client struct {
	ID          ClientID
	DisplayName string

	Session *acip.Session

	capabilities atomic.Uint32 // acip.Capability bitmask
	subscribed   atomic.Uint32 // bitmask of (1 << acip.StreamKind)

	Queue *SendQueue
	Rate  *RateLimiter

	lastHeartbeat atomic.Int64 // UnixNano
	joinedAt      time.Time

	closeOnce sync.Once
	done      chan struct{}
}

// NewClient creates server-side state for a newly handshaken connection.
// The caller (the accept loop) assigns id after the handshake completes.
func NewClient(id ClientID, displayName string, caps acip.Capability, sess *acip.Session) *Client {
	c := &Client{
		ID:          id,
		DisplayName: displayName,
		Session:     sess,
		Queue:       NewSendQueue(),
		Rate:        NewRateLimiter(),
		joinedAt:    time.Now(),
		done:        make(chan struct{}),
	}
	c.capabilities.Store(uint32(caps))
	c.Touch()
	return c
}

// Capabilities returns the client's negotiated capability bitmask.
func (c *Client) Capabilities() acip.Capability {
	return acip.Capability(c.capabilities.Load())
}

// SetCapabilities updates the capability bitmask (CLIENT_CAPABILITIES renegotiation).
func (c *Client) SetCapabilities(caps acip.Capability) {
	c.capabilities.Store(uint32(caps))
}

// Subscribe marks kind as one the client wants to receive (STREAM_START).
func (c *Client) Subscribe(kind acip.StreamKind) {
	for {
		old := c.subscribed.Load()
		next := old | (1 << uint(kind))
		if c.subscribed.CompareAndSwap(old, next) {
			return
		}
	}
}

// Unsubscribe stops routing kind to the client (STREAM_STOP).
func (c *Client) Unsubscribe(kind acip.StreamKind) {
	for {
		old := c.subscribed.Load()
		next := old &^ (1 << uint(kind))
		if c.subscribed.CompareAndSwap(old, next) {
			return
		}
	}
}

// SubscribedTo reports whether the client currently wants kind delivered.
func (c *Client) SubscribedTo(kind acip.StreamKind) bool {
	return c.subscribed.Load()&(1<<uint(kind)) != 0
}

// Touch records a liveness signal (a received PING or any successfully
// parsed packet), resetting the no-heartbeat death clock.
func (c *Client) Touch() {
	c.lastHeartbeat.Store(time.Now().UnixNano())
}

// LastHeartbeat returns the last time Touch was called.
func (c *Client) LastHeartbeat() time.Time {
	return time.Unix(0, c.lastHeartbeat.Load())
}

// IsDead reports whether more than deathTimeout has elapsed since the last
// liveness signal.
func (c *Client) IsDead(deathTimeout time.Duration) bool {
	return time.Since(c.LastHeartbeat()) > deathTimeout
}

// Done returns a channel closed once the client's workers should exit.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// MarkDone signals both workers to exit and is idempotent.
func (c *Client) MarkDone() {
	c.closeOnce.Do(func() { close(c.done) })
}

// JoinedAt returns when the client's session was constructed.
func (c *Client) JoinedAt() time.Time {
	return c.joinedAt
}
