package observability

import (
	"sync"
	"testing"
	"time"

	"github.com/ascii-chat/acip-core/pkg/acipsession"
)

type countingObserver struct {
	mu    sync.Mutex
	joins int
}

func (c *countingObserver) Join(acipsession.ClientID, string) {
	c.mu.Lock()
	c.joins++
	c.mu.Unlock()
}
func (c *countingObserver) Leave(acipsession.ClientID, acipsession.LeaveReason)     {}
func (c *countingObserver) HandshakeResult(bool, time.Duration)                     {}
func (c *countingObserver) FanoutDrop(string, int)                                  {}
func (c *countingObserver) RateLimited(acipsession.ClientID, acipsession.EventKind) {}
func (c *countingObserver) ConnCount(int)                                           {}
func (c *countingObserver) SessionCount(int)                                        {}

func TestAtomicObserverDefaultsToNoop(t *testing.T) {
	a := NewAtomicObserver()
	// Must not panic with no delegate set.
	a.Join(1, "x")
	a.Leave(1, acipsession.LeaveReasonGraceful)
	a.ConnCount(0)
}

func TestAtomicObserverSwapsDelegate(t *testing.T) {
	a := NewAtomicObserver()
	c := &countingObserver{}

	a.Join(1, "before-swap")
	a.Set(c)
	a.Join(2, "after-swap")
	a.Join(3, "after-swap")

	if c.joins != 2 {
		t.Fatalf("delegate saw %d joins, want 2", c.joins)
	}

	a.Set(nil) // falls back to noop, must not panic
	a.Join(4, "after-reset")
	if c.joins != 2 {
		t.Fatalf("delegate saw %d joins after reset, want 2", c.joins)
	}
}
