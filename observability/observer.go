// Package observability holds the runtime-swappable observer wrapper used
// to wire a metrics backend into the session engine without every caller
// needing to know whether metrics are enabled.
package observability

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ascii-chat/acip-core/pkg/acipsession"
)

type observerHolder struct {
	obs acipsession.Observer
}

// AtomicObserver swaps its delegate acipsession.Observer at runtime, so a
// server can start with NoopObserver and attach a Prometheus-backed one once
// metrics init completes, without the accept loop or workers blocking on it.
type AtomicObserver struct {
	once sync.Once
	v    atomic.Value
}

// NewAtomicObserver returns an observer initialized to acipsession.NoopObserver.
func NewAtomicObserver() *AtomicObserver {
	a := &AtomicObserver{}
	a.init()
	return a
}

func (a *AtomicObserver) init() {
	a.once.Do(func() { a.v.Store(&observerHolder{obs: acipsession.NoopObserver}) })
}

// Set replaces the delegate, falling back to the no-op observer on nil.
func (a *AtomicObserver) Set(obs acipsession.Observer) {
	if obs == nil {
		obs = acipsession.NoopObserver
	}
	a.init()
	a.v.Store(&observerHolder{obs: obs})
}

func (a *AtomicObserver) load() acipsession.Observer {
	a.init()
	return a.v.Load().(*observerHolder).obs
}

func (a *AtomicObserver) Join(id acipsession.ClientID, displayName string) { a.load().Join(id, displayName) }
func (a *AtomicObserver) Leave(id acipsession.ClientID, reason acipsession.LeaveReason) {
	a.load().Leave(id, reason)
}
func (a *AtomicObserver) HandshakeResult(ok bool, d time.Duration) { a.load().HandshakeResult(ok, d) }
func (a *AtomicObserver) FanoutDrop(kind string, count int)        { a.load().FanoutDrop(kind, count) }
func (a *AtomicObserver) RateLimited(id acipsession.ClientID, kind acipsession.EventKind) {
	a.load().RateLimited(id, kind)
}
func (a *AtomicObserver) ConnCount(n int)    { a.load().ConnCount(n) }
func (a *AtomicObserver) SessionCount(n int) { a.load().SessionCount(n) }

var _ acipsession.Observer = (*AtomicObserver)(nil)
