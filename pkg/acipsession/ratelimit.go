package acipsession

import (
	"sync"
	"time"
)

// EventKind identifies the category of traffic a token bucket governs.
type EventKind uint8

const (
	EventImageFrame EventKind = iota
	EventAudio
	EventPing
	EventClientJoin
	EventControl
	numEventKinds
)

var eventKindNames = [numEventKinds]string{
	EventImageFrame: "image_frame",
	EventAudio:      "audio",
	EventPing:       "ping",
	EventClientJoin: "client_join",
	EventControl:    "control",
}

func (k EventKind) String() string {
	if int(k) < len(eventKindNames) {
		return eventKindNames[k]
	}
	return "unknown"
}

// BucketConfig parameterizes one token bucket: capacity tokens, refilled at
// rate tokens/sec.
type BucketConfig struct {
	Capacity float64
	RatePerSecond float64
}

// DefaultBucketConfigs returns reasonable per-event-kind defaults: generous
// enough for steady-state media/heartbeat traffic, tight enough to catch a
// CLIENT_JOIN flood from a single IP.
func DefaultBucketConfigs() map[EventKind]BucketConfig {
	return map[EventKind]BucketConfig{
		EventImageFrame: {Capacity: 120, RatePerSecond: 60},  // ~60fps steady-state, 2s burst
		EventAudio:      {Capacity: 200, RatePerSecond: 100}, // Opus batches run faster than video
		EventPing:       {Capacity: 4, RatePerSecond: 1},     // 5s cadence; a handful of bursts tolerated
		EventClientJoin: {Capacity: 5, RatePerSecond: 1},     // a handful of retries/sec per IP, not 200
		EventControl:    {Capacity: 20, RatePerSecond: 10},
	}
}

// tokenBucket is a classic token-bucket limiter: tokens accrue continuously
// at RatePerSecond up to Capacity, and each Allow() call withdraws one.
type tokenBucket struct {
	cfg       BucketConfig
	mu        sync.Mutex
	tokens    float64
	lastCheck time.Time
}

func newTokenBucket(cfg BucketConfig) *tokenBucket {
	return &tokenBucket{cfg: cfg, tokens: cfg.Capacity, lastCheck: time.Now()}
}

func (b *tokenBucket) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	elapsed := now.Sub(b.lastCheck).Seconds()
	b.lastCheck = now
	b.tokens += elapsed * b.cfg.RatePerSecond
	if b.tokens > b.cfg.Capacity {
		b.tokens = b.cfg.Capacity
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// RateLimiter holds one token bucket per EventKind for a single (client, IP)
// identity: rates are per-IP for pre-join events and per-client post-join.
type RateLimiter struct {
	buckets map[EventKind]*tokenBucket
}

// NewRateLimiter constructs a limiter with DefaultBucketConfigs.
func NewRateLimiter() *RateLimiter {
	return NewRateLimiterWithConfig(DefaultBucketConfigs())
}

// NewRateLimiterWithConfig constructs a limiter with explicit bucket configs,
// for tests that need to exhaust a bucket deterministically.
func NewRateLimiterWithConfig(cfgs map[EventKind]BucketConfig) *RateLimiter {
	rl := &RateLimiter{buckets: make(map[EventKind]*tokenBucket, numEventKinds)}
	for k, c := range cfgs {
		rl.buckets[k] = newTokenBucket(c)
	}
	return rl
}

// Allow withdraws one token for kind, reporting whether the event is
// permitted. An EventKind with no configured bucket is always allowed.
func (rl *RateLimiter) Allow(kind EventKind) bool {
	b, ok := rl.buckets[kind]
	if !ok {
		return true
	}
	return b.allow()
}

// IPLimiters tracks one RateLimiter per source IP for pre-join traffic,
// evicting idle entries so memory does not grow unbounded across the
// server's lifetime.
type IPLimiters struct {
	mu      sync.Mutex
	byIP    map[string]*ipEntry
	cfgs    map[EventKind]BucketConfig
	idleTTL time.Duration
}

type ipEntry struct {
	limiter  *RateLimiter
	lastSeen time.Time
}

// NewIPLimiters creates a per-IP limiter pool using cfgs for each new bucket set.
func NewIPLimiters(cfgs map[EventKind]BucketConfig, idleTTL time.Duration) *IPLimiters {
	return &IPLimiters{byIP: make(map[string]*ipEntry), cfgs: cfgs, idleTTL: idleTTL}
}

// Allow checks and consumes one token from ip's bucket for kind, creating a
// fresh limiter for previously-unseen IPs.
func (l *IPLimiters) Allow(ip string, kind EventKind) bool {
	l.mu.Lock()
	e, ok := l.byIP[ip]
	if !ok {
		e = &ipEntry{limiter: NewRateLimiterWithConfig(l.cfgs)}
		l.byIP[ip] = e
	}
	e.lastSeen = time.Now()
	l.mu.Unlock()
	return e.limiter.Allow(kind)
}

// EvictIdle removes per-IP limiter state untouched for longer than idleTTL.
func (l *IPLimiters) EvictIdle() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := time.Now().Add(-l.idleTTL)
	for ip, e := range l.byIP {
		if e.lastSeen.Before(cutoff) {
			delete(l.byIP, ip)
		}
	}
}
