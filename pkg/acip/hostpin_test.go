package acip

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ascii-chat/acip-core/pkg/acipcrypto"
)

func newServerIdentity(t *testing.T) *IdentityKeypair {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	return &IdentityKeypair{Public: pub, Private: priv}
}

// runPinnedHandshake drives one full handshake where the client pins the
// server against kh, returning the client-side error.
func runPinnedHandshake(t *testing.T, kh *acipcrypto.KnownHosts, serverIdentity *IdentityKeypair, strict bool) error {
	t.Helper()
	clientTr, serverTr := newMemTransportPair()
	defer clientTr.Close()
	defer serverTr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go func() {
		_, _ = ServerHandshake(ctx, serverTr, ServerHandshakeOptions{
			SessionID: "pinned-session",
			ClientID:  1,
			Identity:  serverIdentity,
		})
	}()

	_, err := ClientHandshake(ctx, clientTr, ClientHandshakeOptions{
		Capabilities:    CapVideo,
		SessionID:       "pinned-session",
		KnownHosts:      kh,
		ServerHost:      "198.51.100.9",
		ServerPort:      27224,
		StrictHostCheck: strict,
	})
	return err
}

func TestHandshakePinsServerIdentityOnFirstUse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "known_hosts")
	kh, err := acipcrypto.LoadKnownHosts(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	identity := newServerIdentity(t)

	if err := runPinnedHandshake(t, kh, identity, false); err != nil {
		t.Fatalf("first-use handshake: %v", err)
	}

	// Strict mode now succeeds against the pinned key, including after a
	// reload from disk.
	if err := runPinnedHandshake(t, kh, identity, true); err != nil {
		t.Fatalf("strict handshake against pinned key: %v", err)
	}
	reloaded, err := acipcrypto.LoadKnownHosts(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if err := runPinnedHandshake(t, reloaded, identity, true); err != nil {
		t.Fatalf("strict handshake after reload: %v", err)
	}
}

func TestHandshakeRejectsImpersonatingServer(t *testing.T) {
	kh, err := acipcrypto.LoadKnownHosts(filepath.Join(t.TempDir(), "known_hosts"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := runPinnedHandshake(t, kh, newServerIdentity(t), false); err != nil {
		t.Fatalf("first-use handshake: %v", err)
	}

	err = runPinnedHandshake(t, kh, newServerIdentity(t), false)
	if !errors.Is(err, acipcrypto.ErrHostKeyMismatch) {
		t.Fatalf("want host key mismatch, got %v", err)
	}
}

func TestHandshakeStrictRejectsUnknownServer(t *testing.T) {
	kh, err := acipcrypto.LoadKnownHosts(filepath.Join(t.TempDir(), "known_hosts"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	err = runPinnedHandshake(t, kh, newServerIdentity(t), true)
	if !errors.Is(err, acipcrypto.ErrHostUnknown) {
		t.Fatalf("want host unknown, got %v", err)
	}
}

func TestHandshakeRequiresServerIdentityWhenPinning(t *testing.T) {
	kh, err := acipcrypto.LoadKnownHosts(filepath.Join(t.TempDir(), "known_hosts"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	err = runPinnedHandshake(t, kh, nil, false)
	if !errors.Is(err, ErrServerIdentityMissing) {
		t.Fatalf("want server identity missing, got %v", err)
	}
}
