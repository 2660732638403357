package acds

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ascii-chat/acip-core/pkg/acip"
)

func TestNotifierPublishesToSubscribers(t *testing.T) {
	n := NewNotifier()
	events, cancel := n.Subscribe("quiet-bright-calm")
	defer cancel()

	n.Publish(NotifyEvent{SessionString: "quiet-bright-calm", Kind: NotifyJoined, At: time.Now()})
	n.Publish(NotifyEvent{SessionString: "some-other-session", Kind: NotifyJoined, At: time.Now()})

	select {
	case ev := <-events:
		if ev.Kind != NotifyJoined || ev.SessionString != "quiet-bright-calm" {
			t.Fatalf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
	select {
	case ev := <-events:
		t.Fatalf("received event for another session: %+v", ev)
	default:
	}
}

func TestNotifierCancelClosesChannel(t *testing.T) {
	n := NewNotifier()
	events, cancel := n.Subscribe("s")
	cancel()
	cancel() // idempotent
	if _, ok := <-events; ok {
		t.Fatal("channel still open after cancel")
	}
	// Publishing after cancel must not panic.
	n.Publish(NotifyEvent{SessionString: "s", Kind: NotifyExpired, At: time.Now()})
}

func TestRegistryPublishesJoinAndExpiry(t *testing.T) {
	r := NewRegistry("")
	n := NewNotifier()
	r.SetNotifier(n)

	s := mustCreate(t, r, CreateParams{
		Type:       acip.SessionTypeDirectTCP,
		ServerAddr: "10.0.0.1",
		ServerPort: 1,
		ExposeIP:   true,
		TTL:        50 * time.Millisecond,
	})
	events, cancel := n.Subscribe(s)
	defer cancel()

	if _, err := r.JoinSession(s, ""); err != nil {
		t.Fatalf("join: %v", err)
	}
	select {
	case ev := <-events:
		if ev.Kind != NotifyJoined {
			t.Fatalf("first event = %+v, want joined", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no joined event")
	}

	time.Sleep(60 * time.Millisecond)
	r.ExpireSessions()
	select {
	case ev := <-events:
		if ev.Kind != NotifyExpired {
			t.Fatalf("second event = %+v, want expired", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no expired event")
	}
}

func TestNotifierHTTPHandlerStreamsEvents(t *testing.T) {
	ctx, cancelCtx := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancelCtx()

	n := NewNotifier()
	srv := httptest.NewServer(n.HTTPHandler(ctx, nil))
	defer srv.Close()

	url := strings.Replace(srv.URL, "http", "ws", 1) + "?session=quiet-bright-calm"
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Give the handler a moment to register the subscription before publishing.
	deadline := time.Now().Add(time.Second)
	for {
		n.mu.Lock()
		subscribed := len(n.subs["quiet-bright-calm"]) > 0
		n.mu.Unlock()
		if subscribed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("handler never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	n.Publish(NotifyEvent{SessionString: "quiet-bright-calm", Kind: NotifyJoined, At: time.Now()})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev NotifyEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		t.Fatalf("unmarshal %q: %v", payload, err)
	}
	if ev.Kind != NotifyJoined || ev.SessionString != "quiet-bright-calm" {
		t.Fatalf("event = %+v", ev)
	}
}
