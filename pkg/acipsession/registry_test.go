package acipsession

import (
	"testing"

	"github.com/ascii-chat/acip-core/internal/acerrors"
	"github.com/ascii-chat/acip-core/pkg/acip"
)

func TestRegistryIDsNeverReused(t *testing.T) {
	reg := NewRegistry()
	seen := make(map[ClientID]bool)
	for i := 0; i < 1000; i++ {
		id := reg.NextID()
		if id == 0 {
			t.Fatal("allocated the reserved id 0")
		}
		if seen[id] {
			t.Fatalf("id %d allocated twice", id)
		}
		seen[id] = true
	}
}

func TestRegistryJoinLeave(t *testing.T) {
	reg := NewRegistry()
	c := NewClient(reg.NextID(), "alice", acip.CapVideo, nil)
	if err := reg.Join(c, 0); err != nil {
		t.Fatalf("join: %v", err)
	}
	if got, ok := reg.Get(c.ID); !ok || got != c {
		t.Fatal("joined client not retrievable")
	}
	if reg.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", reg.Count())
	}
	reg.Leave(c.ID)
	reg.Leave(c.ID) // second leave is a no-op
	if _, ok := reg.Get(c.ID); ok {
		t.Fatal("client still retrievable after leave")
	}
}

func TestRegistryRejectsJoinWhenFull(t *testing.T) {
	reg := NewRegistry()
	for i := 0; i < 2; i++ {
		c := NewClient(reg.NextID(), "peer", acip.CapVideo, nil)
		if err := reg.Join(c, 2); err != nil {
			t.Fatalf("join %d: %v", i, err)
		}
	}
	c := NewClient(reg.NextID(), "late", acip.CapVideo, nil)
	err := reg.Join(c, 2)
	if err == nil {
		t.Fatal("third join succeeded with maxClients=2")
	}
	if !acerrors.Is(err, acerrors.CodeSessionFull) {
		t.Fatalf("err = %v, want session-full code", err)
	}
}

func TestRegistrySnapshotIsStable(t *testing.T) {
	reg := NewRegistry()
	a := NewClient(reg.NextID(), "a", 0, nil)
	b := NewClient(reg.NextID(), "b", 0, nil)
	reg.Join(a, 0)
	reg.Join(b, 0)

	snap := reg.Snapshot()
	reg.Leave(a.ID)
	if len(snap) != 2 {
		t.Fatalf("snapshot mutated by a later leave: len = %d", len(snap))
	}
	if len(reg.Snapshot()) != 1 {
		t.Fatal("fresh snapshot did not observe the leave")
	}
}
