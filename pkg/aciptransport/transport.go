// Package aciptransport implements the ACIP transport abstraction: a small
// capability interface (send/recv/is_connected/get_socket) with concrete TCP
// and WebSocket variants, so the protocol and session layers never depend on
// a specific socket API.
package aciptransport

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/ascii-chat/acip-core/internal/defaults"
)

// SendResult reports the outcome of a Send call.
type SendResult int

const (
	// SendOK indicates the entire frame was transmitted.
	SendOK SendResult = iota
	// SendWouldBlock indicates the call could not complete within its
	// timeout without blocking further; the caller may retry.
	SendWouldBlock
	// SendFatal indicates the transport is no longer usable.
	SendFatal
)

var (
	// ErrNotConnected indicates an operation was attempted on a closed transport.
	ErrNotConnected = errors.New("aciptransport: not connected")
	// ErrEOF indicates the peer closed the connection cleanly.
	ErrEOF = errors.New("aciptransport: eof")
)

// Transport is the pluggable send/recv contract every ACIP connection
// (client or server-side) is built on. Send either transmits the entire
// frame, returns SendWouldBlock when its I/O timeout expires (the TCP
// transport does so only if no byte of the frame was written), or returns
// SendFatal; Recv returns only complete frames, buffering internally until
// one is available.
type Transport interface {
	// Send transmits one already-framed ACIP packet, retrying internally on
	// partial writes up to the per-call I/O timeout.
	Send(ctx context.Context, frame []byte) (SendResult, error)
	// Recv blocks until one complete frame is available, the context is
	// canceled, or the transport fails.
	Recv(ctx context.Context) ([]byte, error)
	// IsConnected reports whether the transport believes it can still send/recv.
	IsConnected() bool
	// Socket optionally exposes the underlying net.Conn for diagnostics
	// (e.g. setting socket options from a caller that knows it holds a TCP
	// transport). Returns nil, false when no raw socket is exposed.
	Socket() (net.Conn, bool)
	// Close releases the transport's underlying resources.
	Close() error
}

// Config holds the shared timeout knobs every transport implementation honors.
type Config struct {
	ConnectTimeout    time.Duration
	IOTimeout         time.Duration
	KeepaliveInterval time.Duration
}

// DefaultConfig returns spec-mandated defaults, shortened automatically
// under TESTING per internal/defaults.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:    defaults.Timeout(defaults.ConnectTimeout),
		IOTimeout:         defaults.Timeout(defaults.IOTimeout),
		KeepaliveInterval: defaults.KeepaliveInterval(int32(defaults.Timeout(defaults.IOTimeout) / time.Second)),
	}
}
