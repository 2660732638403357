package acipsession

import (
	"testing"
	"time"
)

// slowConfigs gives every bucket a tiny capacity and a refill rate slow
// enough that a test never accrues a new token mid-run.
func slowConfigs(capacity float64) map[EventKind]BucketConfig {
	return map[EventKind]BucketConfig{
		EventImageFrame: {Capacity: capacity, RatePerSecond: 0.0001},
		EventClientJoin: {Capacity: capacity, RatePerSecond: 0.0001},
	}
}

func TestRateLimiterExhaustsBucket(t *testing.T) {
	rl := NewRateLimiterWithConfig(slowConfigs(5))
	for i := 0; i < 5; i++ {
		if !rl.Allow(EventImageFrame) {
			t.Fatalf("request %d denied before bucket exhausted", i)
		}
	}
	if rl.Allow(EventImageFrame) {
		t.Fatal("request allowed after bucket exhausted")
	}
}

func TestRateLimiterUnconfiguredKindAlwaysAllowed(t *testing.T) {
	rl := NewRateLimiterWithConfig(slowConfigs(1))
	for i := 0; i < 100; i++ {
		if !rl.Allow(EventPing) {
			t.Fatal("unconfigured event kind was denied")
		}
	}
}

func TestRateLimiterRefillsOverTime(t *testing.T) {
	rl := NewRateLimiterWithConfig(map[EventKind]BucketConfig{
		EventPing: {Capacity: 1, RatePerSecond: 50},
	})
	if !rl.Allow(EventPing) {
		t.Fatal("first request denied")
	}
	if rl.Allow(EventPing) {
		t.Fatal("second immediate request allowed")
	}
	time.Sleep(60 * time.Millisecond)
	if !rl.Allow(EventPing) {
		t.Fatal("request denied after refill window")
	}
}

// One flooding IP must not consume another IP's join budget.
func TestIPLimitersIsolatePerIP(t *testing.T) {
	l := NewIPLimiters(slowConfigs(3), time.Minute)

	denied := 0
	for i := 0; i < 200; i++ {
		if !l.Allow("203.0.113.7", EventClientJoin) {
			denied++
		}
	}
	if denied != 197 {
		t.Fatalf("flooding IP: denied %d of 200, want 197", denied)
	}
	if !l.Allow("198.51.100.2", EventClientJoin) {
		t.Fatal("well-behaved IP denied because another IP flooded")
	}
}

func TestIPLimitersEvictIdleResetsBudget(t *testing.T) {
	l := NewIPLimiters(slowConfigs(1), -time.Second)
	if !l.Allow("203.0.113.7", EventClientJoin) {
		t.Fatal("first join denied")
	}
	if l.Allow("203.0.113.7", EventClientJoin) {
		t.Fatal("second join allowed with capacity 1")
	}
	l.EvictIdle()
	if !l.Allow("203.0.113.7", EventClientJoin) {
		t.Fatal("join denied after limiter state was evicted")
	}
}
