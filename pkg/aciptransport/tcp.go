package aciptransport

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ascii-chat/acip-core/pkg/acipframe"
)

const (
	// chunkSize caps a single underlying Write call.
	chunkSize = 64 << 10
	// socketBufferSize is the requested send/recv OS socket buffer size.
	socketBufferSize = 1 << 20
)

// TCPTransport implements Transport over a plain net.TCPConn. Send performs
// internal retry on partial writes within the call's timeout; Recv buffers
// until one complete acipframe.Packet arrives.
type TCPTransport struct {
	conn      *net.TCPConn
	cfg       Config
	connected atomic.Bool

	readMu sync.Mutex
}

// DialTCP connects to addr and configures the socket for interactive
// media: TCP_NODELAY set, keepalive enabled, 1 MiB send/recv buffers where
// the OS permits it.
func DialTCP(ctx context.Context, addr string, cfg Config) (*TCPTransport, error) {
	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		conn.Close()
		return nil, errors.New("aciptransport: dialed connection is not TCP")
	}
	return newTCPTransport(tcpConn, cfg)
}

// WrapTCP adapts an already-accepted *net.TCPConn (e.g. from a listener's
// Accept loop) into a TCPTransport, applying the same socket options.
func WrapTCP(conn *net.TCPConn, cfg Config) (*TCPTransport, error) {
	return newTCPTransport(conn, cfg)
}

func newTCPTransport(conn *net.TCPConn, cfg Config) (*TCPTransport, error) {
	if err := conn.SetNoDelay(true); err != nil {
		conn.Close()
		return nil, err
	}
	if err := conn.SetKeepAlive(true); err != nil {
		conn.Close()
		return nil, err
	}
	if cfg.KeepaliveInterval > 0 {
		_ = conn.SetKeepAlivePeriod(cfg.KeepaliveInterval)
	}
	_ = conn.SetReadBuffer(socketBufferSize)
	_ = conn.SetWriteBuffer(socketBufferSize)

	t := &TCPTransport{conn: conn, cfg: cfg}
	t.connected.Store(true)
	return t, nil
}

// Send writes one already-framed ACIP packet, chunking writes at 64 KiB and
// retrying internally until the whole frame lands or the context/timeout
// expires.
func (t *TCPTransport) Send(ctx context.Context, frame []byte) (SendResult, error) {
	if !t.connected.Load() {
		return SendFatal, ErrNotConnected
	}
	deadline := ioDeadline(ctx, t.cfg.IOTimeout)
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return SendFatal, err
	}
	defer armCancelWake(ctx, t.conn.SetWriteDeadline)()

	written := 0
	for written < len(frame) {
		end := written + chunkSize
		if end > len(frame) {
			end = len(frame)
		}
		n, err := t.conn.Write(frame[written:end])
		written += n
		if err != nil {
			if isTimeout(err) {
				if ctx.Err() != nil {
					if written > 0 {
						t.markDead()
					}
					return SendFatal, ctx.Err()
				}
				if written == 0 {
					return SendWouldBlock, err
				}
			}
			// Part of the frame may already be on the wire, so the stream
			// cannot be resumed.
			t.markDead()
			return SendFatal, err
		}
	}
	return SendOK, nil
}

// Recv reads the next complete ACIP frame from the connection.
func (t *TCPTransport) Recv(ctx context.Context) ([]byte, error) {
	if !t.connected.Load() {
		return nil, ErrNotConnected
	}
	t.readMu.Lock()
	defer t.readMu.Unlock()

	deadline := ioDeadline(ctx, t.cfg.IOTimeout)
	if err := t.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	defer armCancelWake(ctx, t.conn.SetReadDeadline)()

	pkt, err := acipframe.Decode(t.conn)
	if err != nil {
		if errors.Is(err, acipframe.ErrShortRead) || errors.Is(err, io.EOF) {
			t.markDead()
			return nil, ErrEOF
		}
		if isTimeout(err) {
			if cerr := ctx.Err(); cerr != nil {
				return nil, cerr
			}
			return nil, err
		}
		t.markDead()
		return nil, err
	}
	raw, encErr := acipframe.Encode(pkt.Type, pkt.ClientID, pkt.Payload)
	if encErr != nil {
		return nil, encErr
	}
	return raw, nil
}

// IsConnected reports whether the transport is still believed usable.
func (t *TCPTransport) IsConnected() bool {
	return t.connected.Load()
}

// Socket exposes the underlying TCP connection.
func (t *TCPTransport) Socket() (net.Conn, bool) {
	return t.conn, true
}

// Close closes the underlying socket.
func (t *TCPTransport) Close() error {
	t.markDead()
	return t.conn.Close()
}

func (t *TCPTransport) markDead() {
	t.connected.Store(false)
}

// ioDeadline picks the wake-up deadline for one blocking I/O call: the
// context's own deadline when it has one, otherwise ioTimeout from now.
func ioDeadline(ctx context.Context, ioTimeout time.Duration) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	if ioTimeout > 0 {
		return time.Now().Add(ioTimeout)
	}
	return time.Time{}
}

// armCancelWake forces a blocked read/write to wake up promptly when ctx is
// canceled, by pulling the relevant deadline forward. Both the TCP and
// websocket transports use it, since neither net.Conn nor gorilla/websocket
// natively unblocks on context cancellation.
func armCancelWake(ctx context.Context, setDeadline func(time.Time) error) func() {
	if ctx.Done() == nil {
		return func() {}
	}
	var active atomic.Bool
	active.Store(true)
	stop := context.AfterFunc(ctx, func() {
		if active.Load() {
			_ = setDeadline(time.Now())
		}
	})
	return func() {
		active.Store(false)
		stop()
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
