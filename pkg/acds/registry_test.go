package acds

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/ascii-chat/acip-core/pkg/acip"
)

func mustCreate(t *testing.T, r *Registry, p CreateParams) string {
	t.Helper()
	s, _, err := r.CreateSession(p)
	if err != nil {
		t.Fatalf("create_session: %v", err)
	}
	return s
}

func TestJoinWithheldWhenExposeIPFalse(t *testing.T) {
	r := NewRegistry("")
	s := mustCreate(t, r, CreateParams{
		Type:       acip.SessionTypeDirectTCP,
		ServerAddr: "192.168.1.100",
		ServerPort: 27224,
		ExposeIP:   false,
	})

	res, err := r.JoinSession(s, "")
	if err != nil {
		t.Fatalf("join_session: %v", err)
	}
	if !res.Success {
		t.Fatal("join failed outright; want success with withheld contact info")
	}
	if res.ErrCode != acip.ErrorIPWithheld {
		t.Fatalf("err code = %v, want IP withheld", res.ErrCode)
	}
	if res.ServerAddr != "" || res.ServerPort != 0 {
		t.Fatalf("contact info leaked: %s:%d", res.ServerAddr, res.ServerPort)
	}
}

func TestJoinDisclosesWhenExposeIPTrue(t *testing.T) {
	r := NewRegistry("")
	s := mustCreate(t, r, CreateParams{
		Type:       acip.SessionTypeDirectTCP,
		ServerAddr: "192.168.1.100",
		ServerPort: 27224,
		ExposeIP:   true,
	})

	res, err := r.JoinSession(s, "")
	if err != nil {
		t.Fatalf("join_session: %v", err)
	}
	if !res.Success || res.ServerAddr != "192.168.1.100" || res.ServerPort != 27224 {
		t.Fatalf("join = %+v, want disclosed 192.168.1.100:27224", res)
	}
}

func TestJoinPasswordGate(t *testing.T) {
	hash, err := HashPassword("test-password-123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	r := NewRegistry("")
	s := mustCreate(t, r, CreateParams{
		Type:         acip.SessionTypeDirectTCP,
		ServerAddr:   "192.168.1.100",
		ServerPort:   27224,
		PasswordHash: hash,
	})

	res, err := r.JoinSession(s, "test-password-123")
	if err != nil {
		t.Fatalf("join with correct password: %v", err)
	}
	if !res.Success || res.ServerAddr != "192.168.1.100" {
		t.Fatalf("correct password: %+v", res)
	}

	res, err = r.JoinSession(s, "wrong")
	if err != nil {
		t.Fatalf("join with wrong password: %v", err)
	}
	if res.Success {
		t.Fatal("wrong password accepted")
	}
	if res.ErrCode != acip.ErrorInvalidPassword {
		t.Fatalf("err code = %v, want invalid password", res.ErrCode)
	}
	if res.ServerAddr != "" || res.ServerPort != 0 {
		t.Fatalf("contact info leaked on wrong password: %s:%d", res.ServerAddr, res.ServerPort)
	}
}

func TestJoinUnknownSession(t *testing.T) {
	r := NewRegistry("")
	res, err := r.JoinSession("no-such-session", "")
	if err != nil {
		t.Fatalf("join_session: %v", err)
	}
	if res.Success || res.ErrCode != acip.ErrorSessionNotFound {
		t.Fatalf("join = %+v, want session-not-found", res)
	}
}

func TestTurnCredentialsDeterministicAndVerifiable(t *testing.T) {
	r := NewRegistry("turn-secret-xyz")
	s := mustCreate(t, r, CreateParams{
		Type:       acip.SessionTypeWebRTC,
		ServerAddr: "192.168.1.100",
		ServerPort: 27224,
		ExposeIP:   true,
		TTL:        time.Hour,
	})

	first, err := r.JoinSession(s, "")
	if err != nil {
		t.Fatalf("first join: %v", err)
	}
	second, err := r.JoinSession(s, "")
	if err != nil {
		t.Fatalf("second join: %v", err)
	}
	if first.TurnUsername == "" || first.TurnPassword == "" {
		t.Fatal("no TURN credentials issued for a WEBRTC session")
	}
	if first.TurnUsername != second.TurnUsername || first.TurnPassword != second.TurnPassword {
		t.Fatal("two joins returned different TURN credentials")
	}

	var epoch int64
	var gotSession string
	if _, err := fmt.Sscanf(first.TurnUsername, "%d:%s", &epoch, &gotSession); err != nil || gotSession != s {
		t.Fatalf("username %q does not match {epoch}:{session}", first.TurnUsername)
	}
	mac := hmac.New(sha1.New, []byte("turn-secret-xyz"))
	mac.Write([]byte(first.TurnUsername))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if first.TurnPassword != want {
		t.Fatalf("password = %q, want HMAC-SHA1 of username", first.TurnPassword)
	}
}

func TestNoTurnCredentialsForDirectTCP(t *testing.T) {
	r := NewRegistry("turn-secret-xyz")
	s := mustCreate(t, r, CreateParams{
		Type:       acip.SessionTypeDirectTCP,
		ServerAddr: "192.168.1.100",
		ServerPort: 27224,
		ExposeIP:   true,
	})
	res, err := r.JoinSession(s, "")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if res.TurnUsername != "" || res.TurnPassword != "" {
		t.Fatal("TURN credentials issued for a direct TCP session")
	}
}

func TestCreateSessionStringsAreUniqueAndWellFormed(t *testing.T) {
	pattern := regexp.MustCompile(`^[a-z]+-[a-z]+-[a-z]+$`)
	r := NewRegistry("")
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		s := mustCreate(t, r, CreateParams{Type: acip.SessionTypeDirectTCP, ServerAddr: "10.0.0.1", ServerPort: 1})
		if !pattern.MatchString(s) {
			t.Fatalf("malformed session string %q", s)
		}
		if seen[s] {
			t.Fatalf("duplicate session string %q", s)
		}
		seen[s] = true
	}
}

func TestExpireSessions(t *testing.T) {
	r := NewRegistry("")
	s := mustCreate(t, r, CreateParams{
		Type:       acip.SessionTypeDirectTCP,
		ServerAddr: "10.0.0.1",
		ServerPort: 1,
		ExposeIP:   true,
		TTL:        time.Nanosecond,
	})
	time.Sleep(time.Millisecond)

	// An expired record is unjoinable even before the sweep removes it.
	res, err := r.JoinSession(s, "")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if res.Success || res.ErrCode != acip.ErrorSessionNotFound {
		t.Fatalf("joined an expired session: %+v", res)
	}

	if n := r.ExpireSessions(); n != 1 {
		t.Fatalf("ExpireSessions() = %d, want 1", n)
	}
	if r.Count() != 0 {
		t.Fatalf("Count() = %d after sweep, want 0", r.Count())
	}
}

func TestRegistryPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.jsonl")

	r1, err := OpenRegistry(path, "")
	if err != nil {
		t.Fatalf("open fresh: %v", err)
	}
	s := mustCreate(t, r1, CreateParams{
		Type:       acip.SessionTypeDirectTCP,
		ServerAddr: "192.168.1.100",
		ServerPort: 27224,
		ExposeIP:   true,
		TTL:        time.Hour,
	})

	r2, err := OpenRegistry(path, "")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if r2.Count() != 1 {
		t.Fatalf("reloaded Count() = %d, want 1", r2.Count())
	}
	res, err := r2.JoinSession(s, "")
	if err != nil {
		t.Fatalf("join after reload: %v", err)
	}
	if !res.Success || res.ServerAddr != "192.168.1.100" {
		t.Fatalf("join after reload = %+v", res)
	}
}
