package acip

import (
	"context"
	"testing"
	"time"
)

func TestRekeyRoundTrip(t *testing.T) {
	clientTr, serverTr := newMemTransportPair()
	defer clientTr.Close()
	defer serverTr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	type result struct {
		session *Session
		err     error
	}
	resultCh := make(chan result, 1)
	go func() {
		s, err := ClientHandshake(ctx, clientTr, ClientHandshakeOptions{
			Capabilities: CapVideo,
			SessionID:    "rekey-session",
		})
		resultCh <- result{s, err}
	}()
	serverSession, err := ServerHandshake(ctx, serverTr, ServerHandshakeOptions{
		SessionID: "rekey-session",
		ClientID:  5,
	})
	if err != nil {
		t.Fatalf("server handshake: %v", err)
	}
	cr := <-resultCh
	if cr.err != nil {
		t.Fatalf("client handshake: %v", cr.err)
	}
	clientSession := cr.session

	// Server side answers the REKEY_REQUEST when it arrives.
	serverDone := make(chan error, 1)
	go func() {
		pt, payload, err := serverSession.Recv(ctx)
		if err != nil {
			serverDone <- err
			return
		}
		if pt != TypeRekeyRequest {
			serverDone <- ErrUnexpectedPacketType
			return
		}
		serverDone <- RespondToRekey(ctx, serverSession, payload, "rekey-session", RoleServer)
	}()

	if err := InitiateRekey(ctx, clientSession, "rekey-session", RoleClient); err != nil {
		t.Fatalf("initiate rekey: %v", err)
	}
	if err := <-serverDone; err != nil {
		t.Fatalf("respond to rekey: %v", err)
	}

	// Both directions still decrypt under the fresh keys.
	go func() {
		_ = clientSession.Send(ctx, TypePing, PingPayload{Nonce: 42}.Encode())
	}()
	pt, payload, err := serverSession.Recv(ctx)
	if err != nil {
		t.Fatalf("server recv after rekey: %v", err)
	}
	if pt != TypePing {
		t.Fatalf("got %v, want PING", pt)
	}
	ping, err := DecodePing(payload)
	if err != nil || ping.Nonce != 42 {
		t.Fatalf("ping after rekey = %+v, err %v", ping, err)
	}

	go func() {
		_ = serverSession.Send(ctx, TypePong, PongPayload{Nonce: 42}.Encode())
	}()
	pt, payload, err = clientSession.Recv(ctx)
	if err != nil {
		t.Fatalf("client recv after rekey: %v", err)
	}
	if pt != TypePong {
		t.Fatalf("got %v, want PONG", pt)
	}
	pong, err := DecodePong(payload)
	if err != nil || pong.Nonce != 42 {
		t.Fatalf("pong after rekey = %+v, err %v", pong, err)
	}
}
