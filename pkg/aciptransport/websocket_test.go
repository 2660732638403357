package aciptransport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func websocketPipe(t *testing.T) (*WebSocketTransport, *WebSocketTransport, func()) {
	t.Helper()

	serverCh := make(chan *WebSocketTransport, 1)
	cfg := Config{ConnectTimeout: 2 * time.Second, IOTimeout: 2 * time.Second}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		transport, err := UpgradeWebSocket(w, r, UpgradeOptions{CheckOrigin: func(*http.Request) bool { return true }}, cfg)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		serverCh <- transport
	}))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, err := DialWebSocket(context.Background(), wsURL, nil, cfg)
	if err != nil {
		srv.Close()
		t.Fatalf("dial: %v", err)
	}
	server := <-serverCh

	return client, server, srv.Close
}

func TestWebSocketTransportSendRecvRoundTrip(t *testing.T) {
	client, server, closeSrv := websocketPipe(t)
	defer closeSrv()
	defer client.Close()
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	payload := []byte("hello over websocket")
	result, err := client.Send(ctx, payload)
	if err != nil || result != SendOK {
		t.Fatalf("send: result=%v err=%v", result, err)
	}

	got, err := server.Recv(ctx)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("payload mismatch: %q", got)
	}
}

func TestWebSocketTransportRejectsTextFrames(t *testing.T) {
	client, server, closeSrv := websocketPipe(t)
	defer closeSrv()
	defer client.Close()
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Write a text frame directly through the underlying connection, the
	// way a non-ACIP peer would.
	if err := client.conn.WriteMessage(websocket.TextMessage, []byte("not acip")); err != nil {
		t.Fatalf("write text: %v", err)
	}
	_, err := server.Recv(ctx)
	if !errors.Is(err, ErrTextFrame) {
		t.Fatalf("err = %v, want text-frame rejection", err)
	}
	if server.IsConnected() {
		t.Fatal("connection still marked usable after a text frame")
	}
}

func TestWebSocketTransportRecvContextCancellation(t *testing.T) {
	client, server, closeSrv := websocketPipe(t)
	defer closeSrv()
	defer client.Close()
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if _, err := server.Recv(ctx); err == nil {
		t.Fatal("expected recv to fail when nothing is sent before the deadline")
	}
}

func TestWebSocketTransportSocketNotExposed(t *testing.T) {
	client, server, closeSrv := websocketPipe(t)
	defer closeSrv()
	defer client.Close()
	defer server.Close()

	if _, ok := client.Socket(); ok {
		t.Fatalf("expected websocket transport to never expose a raw socket")
	}
}

func TestWebSocketTransportCloseMarksDisconnected(t *testing.T) {
	client, server, closeSrv := websocketPipe(t)
	defer closeSrv()
	defer server.Close()

	if !client.IsConnected() {
		t.Fatalf("expected connected before close")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if client.IsConnected() {
		t.Fatalf("expected not connected after close")
	}
}
