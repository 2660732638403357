package aciptransport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ascii-chat/acip-core/internal/contextutil"
)

// ErrTextFrame indicates the peer sent a text websocket message. ACIP is a
// binary protocol; a text frame can only come from something that is not an
// ACIP endpoint, so the connection is treated as failed.
var ErrTextFrame = errors.New("aciptransport: text message on binary-only connection")

// WebSocketTransport carries ACIP frames as binary websocket messages, one
// frame per message. gorilla/websocket already preserves message boundaries,
// so unlike the TCP transport there is no internal reassembly: a received
// binary message IS one complete frame.
type WebSocketTransport struct {
	conn      *websocket.Conn
	cfg       Config
	connected bool
}

// UpgradeOptions controls the server-side HTTP upgrade for inbound
// websocket ACIP connections.
type UpgradeOptions struct {
	// CheckOrigin accepts or rejects the browser Origin header; nil applies
	// gorilla's default same-origin rule. See OriginPolicy for the
	// allow-list implementation the servers use.
	CheckOrigin func(r *http.Request) bool

	ReadBufferSize  int
	WriteBufferSize int
}

// DialWebSocket opens a websocket ACIP connection to urlStr.
func DialWebSocket(ctx context.Context, urlStr string, header http.Header, cfg Config) (*WebSocketTransport, error) {
	dialCtx, cancel := contextutil.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	var d websocket.Dialer
	if deadline, ok := dialCtx.Deadline(); ok {
		d.HandshakeTimeout = time.Until(deadline)
	}
	c, _, err := d.DialContext(dialCtx, urlStr, header)
	if err != nil {
		return nil, err
	}
	return &WebSocketTransport{conn: c, cfg: cfg, connected: true}, nil
}

// UpgradeWebSocket upgrades an inbound HTTP request to a websocket ACIP
// connection.
func UpgradeWebSocket(w http.ResponseWriter, r *http.Request, opts UpgradeOptions, cfg Config) (*WebSocketTransport, error) {
	up := websocket.Upgrader{
		ReadBufferSize:  opts.ReadBufferSize,
		WriteBufferSize: opts.WriteBufferSize,
		CheckOrigin:     opts.CheckOrigin,
	}
	c, err := up.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return &WebSocketTransport{conn: c, cfg: cfg, connected: true}, nil
}

// Send writes frame as a single binary websocket message.
func (t *WebSocketTransport) Send(ctx context.Context, frame []byte) (SendResult, error) {
	if !t.connected {
		return SendFatal, ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return SendFatal, err
	}
	_ = t.conn.SetWriteDeadline(ioDeadline(ctx, t.cfg.IOTimeout))
	defer armCancelWake(ctx, t.conn.SetWriteDeadline)()

	if err := t.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		if isTimeout(err) {
			if cerr := ctx.Err(); cerr != nil {
				return SendFatal, cerr
			}
			return SendWouldBlock, err
		}
		t.connected = false
		return SendFatal, err
	}
	return SendOK, nil
}

// Recv blocks for the next binary websocket message, skipping control-only
// message types and failing the connection on a text frame.
func (t *WebSocketTransport) Recv(ctx context.Context) ([]byte, error) {
	if !t.connected {
		return nil, ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_ = t.conn.SetReadDeadline(ioDeadline(ctx, t.cfg.IOTimeout))
	defer armCancelWake(ctx, t.conn.SetReadDeadline)()

	for {
		mt, b, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.connected = false
				return nil, ErrEOF
			}
			if isTimeout(err) {
				if cerr := ctx.Err(); cerr != nil {
					return nil, cerr
				}
				return nil, err
			}
			t.connected = false
			return nil, err
		}
		switch mt {
		case websocket.BinaryMessage:
			return b, nil
		case websocket.TextMessage:
			t.connected = false
			return nil, ErrTextFrame
		default:
			continue
		}
	}
}

// SetReadLimit caps the size of a single inbound websocket message, so a
// peer cannot force unbounded buffering before the ACIP frame length check
// in acipframe even runs. Server-side callers set this right after
// UpgradeWebSocket using wsutil.ReadLimit.
func (t *WebSocketTransport) SetReadLimit(n int64) {
	t.conn.SetReadLimit(n)
}

// IsConnected reports whether the websocket is still believed usable.
func (t *WebSocketTransport) IsConnected() bool {
	return t.connected
}

// Socket never exposes a raw socket for websocket transports: gorilla/websocket
// does not expose the underlying net.Conn through a stable public API.
func (t *WebSocketTransport) Socket() (net.Conn, bool) {
	return nil, false
}

// Close closes the underlying websocket connection.
func (t *WebSocketTransport) Close() error {
	t.connected = false
	return t.conn.Close()
}
