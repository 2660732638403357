// Package acds implements the ACDS discovery registry: a
// short-lived mapping from a human-friendly three-word session string to a
// host's contact info, gated by an optional Argon2id password and an
// IP-disclosure policy, with optional TURN credential issuance for WebRTC
// sessions.
//
// Persistence is JSON lines on disk, appended per create and compacted via
// internal/securefile's atomic rewrite when expired records are swept.
package acds

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ascii-chat/acip-core/internal/acerrors"
	"github.com/ascii-chat/acip-core/internal/securefile"
	"github.com/ascii-chat/acip-core/internal/timeutil"
	"github.com/ascii-chat/acip-core/pkg/acip"
)

// Record is one registered discovery session, plus a creation timestamp
// for TTL eviction.
type Record struct {
	SessionString   string            `json:"session_string"`
	Type            acip.SessionType  `json:"type"`
	Capabilities    acip.Capability   `json:"capabilities"`
	MaxParticipants uint16            `json:"max_participants"`
	PasswordHash    string            `json:"password_hash,omitempty"`
	ExposeIP        bool              `json:"expose_ip"`
	ServerAddr      string            `json:"server_addr"`
	ServerPort      uint16            `json:"server_port"`
	CreatedAt       time.Time         `json:"created_at"`
	TTL             time.Duration     `json:"ttl"`
}

func (r Record) expired(now time.Time) bool {
	return now.Sub(r.CreatedAt) > r.TTL
}

// CreateParams groups create_session's arguments. PasswordHash, if set, must
// already be an Argon2id hash produced by HashPassword: the registry never
// sees a session's plaintext password, matching the host CLI hashing it
// locally before SESSION_CREATE crosses the wire.
type CreateParams struct {
	Type            acip.SessionType
	Capabilities    acip.Capability
	MaxParticipants uint16
	ServerAddr      string
	ServerPort      uint16
	ExposeIP        bool
	PasswordHash    string
	TTL             time.Duration
}

// JoinResult is join_session's result, mirroring acip.SessionJoinedPayload.
type JoinResult struct {
	Success      bool
	ErrCode      acip.ErrorCode
	Type         acip.SessionType
	ServerAddr   string
	ServerPort   uint16
	TurnUsername string
	TurnPassword string
}

// Registry is the discovery service's live session table: one RWMutex
// guards every read and write, so concurrent join lookups proceed in
// parallel while creates and expiry sweeps serialize against each other.
type Registry struct {
	mu         sync.RWMutex
	path       string
	turnSecret string
	records    map[string]Record
	notifier   *Notifier
}

// NewRegistry returns an empty, non-persisted registry (used by tests and
// by OpenRegistry below).
func NewRegistry(turnSecret string) *Registry {
	return &Registry{turnSecret: turnSecret, records: make(map[string]Record)}
}

// OpenRegistry loads session records from a JSON-lines file at path (one
// Record per line), creating it lazily on first write if it does not yet
// exist. A missing file is treated as an empty registry.
func OpenRegistry(path, turnSecret string) (*Registry, error) {
	r := &Registry{path: path, turnSecret: turnSecret, records: make(map[string]Record)}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return r, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("acds: malformed registry line: %w", err)
		}
		r.records[rec.SessionString] = rec
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return r, nil
}

// SetNotifier attaches a push notifier; joins and expirations of any
// session are published to it from then on. Optional.
func (r *Registry) SetNotifier(n *Notifier) {
	r.notifier = n
}

func (r *Registry) publish(sessionString, kind string) {
	if r.notifier != nil {
		r.notifier.Publish(NotifyEvent{SessionString: sessionString, Kind: kind, At: time.Now()})
	}
}

// CreateSession registers a new session, generating a unique session string
// via rejection sampling against the live record set.
func (r *Registry) CreateSession(p CreateParams) (sessionString string, ttl time.Duration, err error) {
	if p.TTL <= 0 {
		p.TTL = time.Hour
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var s string
	for attempt := 0; ; attempt++ {
		if attempt >= maxGenerateAttempts {
			return "", 0, acerrors.Wrap(acerrors.StageDiscovery, acerrors.CodeResourceExhausted, nil)
		}
		candidate, genErr := generateSessionString()
		if genErr != nil {
			return "", 0, acerrors.Wrap(acerrors.StageDiscovery, acerrors.CodeInternal, genErr)
		}
		if _, exists := r.records[candidate]; !exists {
			s = candidate
			break
		}
	}

	rec := Record{
		SessionString:   s,
		Type:            p.Type,
		Capabilities:    p.Capabilities,
		MaxParticipants: p.MaxParticipants,
		PasswordHash:    p.PasswordHash,
		ExposeIP:        p.ExposeIP,
		ServerAddr:      p.ServerAddr,
		ServerPort:      p.ServerPort,
		CreatedAt:       time.Now(),
		TTL:             p.TTL,
	}
	r.records[s] = rec
	if err := r.appendLocked(rec); err != nil {
		return "", 0, acerrors.Wrap(acerrors.StageDiscovery, acerrors.CodeIONetwork, err)
	}
	return s, p.TTL, nil
}

// JoinSession looks up sessionString and applies the IP disclosure policy:
// server_addr/server_port (and TURN credentials, for
// WEBRTC sessions) are only returned when either the session has no
// password and expose_ip is true, or password verifies against the stored
// hash.
func (r *Registry) JoinSession(sessionString, password string) (JoinResult, error) {
	r.mu.RLock()
	rec, ok := r.records[sessionString]
	r.mu.RUnlock()

	if !ok || rec.expired(time.Now()) {
		return JoinResult{Success: false, ErrCode: acip.ErrorSessionNotFound}, nil
	}

	disclose := false
	if rec.PasswordHash == "" {
		if rec.ExposeIP {
			disclose = true
		}
	} else {
		ok, err := VerifyPassword(rec.PasswordHash, password)
		if err != nil {
			return JoinResult{}, acerrors.Wrap(acerrors.StageDiscovery, acerrors.CodeInternal, err)
		}
		if !ok {
			return JoinResult{Success: false, ErrCode: acip.ErrorInvalidPassword}, nil
		}
		disclose = true
	}

	r.publish(sessionString, NotifyJoined)

	if !disclose {
		return JoinResult{Success: true, ErrCode: acip.ErrorIPWithheld, Type: rec.Type}, nil
	}

	result := JoinResult{
		Success:    true,
		Type:       rec.Type,
		ServerAddr: rec.ServerAddr,
		ServerPort: rec.ServerPort,
	}
	if rec.Type == acip.SessionTypeWebRTC && r.turnSecret != "" {
		// Derived from the record's own CreatedAt/TTL rather than time.Now():
		// two join_session calls for the same session must return
		// byte-identical TURN credentials within the session's validity
		// window, which requires expirationEpoch be a pure
		// function of the stored record, not of wall-clock time at call time.
		// A skew grace keeps the credentials usable for a relay whose clock
		// runs slightly behind the registry's.
		expiry := timeutil.AddSkewUnix(rec.CreatedAt.Add(rec.TTL).Unix(), turnExpirySkew)
		result.TurnUsername, result.TurnPassword = turnCredentials(sessionString, r.turnSecret, expiry)
	}
	return result, nil
}

// ExpireSessions evicts every record older than its TTL and, if path was
// set, compacts the on-disk file to drop them permanently. Returns the
// number of records evicted.
func (r *Registry) ExpireSessions() int {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for s, rec := range r.records {
		if rec.expired(now) {
			delete(r.records, s)
			r.publish(s, NotifyExpired)
			evicted++
		}
	}
	if evicted > 0 && r.path != "" {
		_ = r.rewriteLocked()
	}
	return evicted
}

// Count returns the number of live (not-yet-expired-by-sweep) records.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

func (r *Registry) appendLocked(rec Record) error {
	if r.path == "" {
		return nil
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(line, '\n'))
	return err
}

func (r *Registry) rewriteLocked() error {
	var buf []byte
	for _, rec := range r.records {
		line, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}
	return securefile.WriteFileAtomic(r.path, buf, 0o600)
}

// RunExpirySweeper periodically calls ExpireSessions until ctx is canceled.
func RunExpirySweeper(ctx context.Context, r *Registry, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.ExpireSessions()
		}
	}
}
