package acip

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ascii-chat/acip-core/internal/acerrors"
	"github.com/ascii-chat/acip-core/pkg/acipcrypto"
)

func handshakedPair(t *testing.T, ctx context.Context) (client, server *Session) {
	t.Helper()
	clientTr, serverTr := newMemTransportPair()
	t.Cleanup(func() { clientTr.Close(); serverTr.Close() })

	type result struct {
		session *Session
		err     error
	}
	resultCh := make(chan result, 1)
	go func() {
		s, err := ClientHandshake(ctx, clientTr, ClientHandshakeOptions{
			Capabilities: CapVideo,
			SessionID:    "pair-session",
		})
		resultCh <- result{s, err}
	}()
	server, err := ServerHandshake(ctx, serverTr, ServerHandshakeOptions{SessionID: "pair-session", ClientID: 9})
	if err != nil {
		t.Fatalf("server handshake: %v", err)
	}
	cr := <-resultCh
	if cr.err != nil {
		t.Fatalf("client handshake: %v", cr.err)
	}
	return cr.session, server
}

func TestSessionRejectsPlaintextAfterHandshake(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	clientSession, serverSession := handshakedPair(t, ctx)

	// Bypass the session and push an unencrypted PING onto the wire.
	go func() {
		_ = SendPacket(ctx, clientSession.Transport, TypePing, 9, PingPayload{Nonce: 1}.Encode())
	}()

	_, _, err := serverSession.Recv(ctx)
	if err == nil {
		t.Fatal("plaintext frame decrypted successfully")
	}
	if !acerrors.Is(err, acerrors.CodeEncryptionPolicyViolation) {
		t.Fatalf("err = %v, want encryption policy violation", err)
	}
}

func TestSessionTamperedCiphertextFailsAuth(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	clientSession, serverSession := handshakedPair(t, ctx)

	// Encrypt a legitimate packet, then flip one payload byte on the wire.
	payload := []byte("image frame bytes image frame bytes")
	ciphertext, err := acipcrypto.Encrypt(clientSession.sendKey, 0, clientSession.salt, payload)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	ciphertext[len(ciphertext)-1] ^= 0x01
	go func() {
		_ = SendPacket(ctx, clientSession.Transport, TypeImageFrame, 9, ciphertext)
	}()

	_, _, err = serverSession.Recv(ctx)
	if !errors.Is(err, acipcrypto.ErrAuthFail) {
		t.Fatalf("err = %v, want auth fail", err)
	}
}

func TestSessionOriginatorStamping(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	clientSession, serverSession := handshakedPair(t, ctx)

	go func() {
		_ = serverSession.SendAs(ctx, TypeImageFrame, 42, []byte("relayed"))
	}()
	pt, originator, payload, err := clientSession.RecvFrom(ctx)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if pt != TypeImageFrame || originator != 42 || string(payload) != "relayed" {
		t.Fatalf("got type=%v originator=%d payload=%q", pt, originator, payload)
	}
}

func TestSessionNonceExhaustionForcesRekey(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	clientSession, _ := handshakedPair(t, ctx)

	clientSession.mu.Lock()
	clientSession.sendCount = acipcrypto.MaxCounter
	clientSession.mu.Unlock()

	if !clientSession.ShouldRekey() {
		t.Fatal("ShouldRekey() false at counter budget")
	}
	err := clientSession.Send(ctx, TypePing, PingPayload{Nonce: 1}.Encode())
	if !errors.Is(err, acipcrypto.ErrNonceWrap) {
		t.Fatalf("send at exhausted counter: err = %v, want nonce wrap", err)
	}
}

func TestSessionCloseZeroesKeys(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	clientSession, _ := handshakedPair(t, ctx)

	clientSession.Close()
	clientSession.mu.Lock()
	defer clientSession.mu.Unlock()
	if clientSession.sendKey != [32]byte{} || clientSession.recvKey != [32]byte{} {
		t.Fatal("key material survived Close")
	}
}
