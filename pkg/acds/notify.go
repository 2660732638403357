package acds

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// NotifyEvent is one session lifecycle observation pushed to a subscribed
// host: its session string was looked up by a joiner, or expired out of the
// registry.
type NotifyEvent struct {
	SessionString string    `json:"session_string"`
	Kind          string    `json:"kind"` // "joined" or "expired"
	At            time.Time `json:"at"`
}

// Event kinds published by the registry.
const (
	NotifyJoined  = "joined"
	NotifyExpired = "expired"
)

// notifyWriteTimeout bounds one event write to a subscriber, so a stalled
// host cannot hold a handler goroutine forever.
const notifyWriteTimeout = 10 * time.Second

// Notifier fans session lifecycle events out to hosts holding a websocket
// open for their session string, so a host learns about joins and expiry
// immediately instead of polling. Purely additive: the registry works
// identically with no notifier attached.
type Notifier struct {
	mu   sync.Mutex
	subs map[string]map[chan NotifyEvent]struct{}
}

// NewNotifier returns an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[string]map[chan NotifyEvent]struct{})}
}

// Subscribe registers interest in sessionString. The returned channel is
// buffered; events are dropped rather than blocking the registry if the
// subscriber stops draining. cancel unregisters and closes the channel.
func (n *Notifier) Subscribe(sessionString string) (<-chan NotifyEvent, func()) {
	ch := make(chan NotifyEvent, 16)
	n.mu.Lock()
	set, ok := n.subs[sessionString]
	if !ok {
		set = make(map[chan NotifyEvent]struct{})
		n.subs[sessionString] = set
	}
	set[ch] = struct{}{}
	n.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			if set, ok := n.subs[sessionString]; ok {
				delete(set, ch)
				if len(set) == 0 {
					delete(n.subs, sessionString)
				}
			}
			n.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers ev to every subscriber of its session string without
// blocking: a full subscriber buffer loses the event.
func (n *Notifier) Publish(ev NotifyEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subs[ev.SessionString] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// HTTPHandler upgrades each request to a websocket and streams the
// subscribed session's events as JSON text messages. The session string is
// taken from the "session" query parameter; the connection closes when the
// client goes away or ctx is canceled. checkOrigin may be nil, which
// applies gorilla's default same-origin rule (non-browser clients send no
// Origin header and always pass).
func (n *Notifier) HTTPHandler(ctx context.Context, checkOrigin func(r *http.Request) bool) http.Handler {
	up := websocket.Upgrader{CheckOrigin: checkOrigin}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionString := r.URL.Query().Get("session")
		if sessionString == "" {
			http.Error(w, "missing session parameter", http.StatusBadRequest)
			return
		}
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		events, cancel := n.Subscribe(sessionString)
		defer cancel()

		// Drain inbound frames so close/ping control messages are processed
		// and a vanished client unblocks the event loop below; subscribers
		// have nothing meaningful to send.
		readDone := make(chan struct{})
		go func() {
			defer close(readDone)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case <-readDone:
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				payload, err := json.Marshal(ev)
				if err != nil {
					continue
				}
				_ = conn.SetWriteDeadline(time.Now().Add(notifyWriteTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
					return
				}
			}
		}
	})
}
