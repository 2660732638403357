// Package acclient is the client-side counterpart to acserver: it dials a
// transport, drives acip.ClientHandshake, sends CLIENT_JOIN, and then runs
// the same receive/send worker shape the server uses, exposing incoming
// media/control packets on a channel for an external renderer/player to
// consume. Run sends PING on a fixed interval and drops incoming PONGs; every
// other packet, including a PING from the peer, is delivered on the channel
// unanswered. Stream subscriptions change only when the caller calls
// Subscribe or Unsubscribe.
package acclient

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/ascii-chat/acip-core/internal/defaults"
	"github.com/ascii-chat/acip-core/pkg/acip"
	"github.com/ascii-chat/acip-core/pkg/acipcrypto"
	"github.com/ascii-chat/acip-core/pkg/aciptransport"
)

// Config parameterizes one client connection.
type Config struct {
	Addr         string // dialed transport address (host:port or discovery-resolved contact)
	SessionID    string // bound into the handshake transcript
	DisplayName  string
	Capabilities acip.Capability
	Identity     *acip.IdentityKeypair
	Password     string
	UseWebSocket bool // dial a WebSocket transport instead of raw TCP
	Logger       *slog.Logger

	// KnownHosts, when set, pins the server's identity key against the
	// host and port parsed from Addr. StrictHostCheck rejects servers not
	// already pinned; when false, an unknown server is pinned on first use.
	KnownHosts      *acipcrypto.KnownHosts
	StrictHostCheck bool
}

// Event is one decrypted, post-join packet delivered to the caller.
type Event struct {
	Type       acip.PacketType
	Originator uint32
	Payload    []byte
}

// Client is an established, joined ACIP connection.
type Client struct {
	cfg     Config
	session *acip.Session
	events  chan Event
	log     *slog.Logger
}

// Dial connects to cfg.Addr, completes the handshake, and sends CLIENT_JOIN.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	var tr aciptransport.Transport
	var err error
	if cfg.UseWebSocket {
		tr, err = aciptransport.DialWebSocket(ctx, cfg.Addr, nil, aciptransport.DefaultConfig())
	} else {
		tr, err = aciptransport.DialTCP(ctx, cfg.Addr, aciptransport.DefaultConfig())
	}
	if err != nil {
		return nil, err
	}

	hsOpts := acip.ClientHandshakeOptions{
		Capabilities: cfg.Capabilities,
		SessionID:    cfg.SessionID,
		Identity:     cfg.Identity,
		Password:     cfg.Password,
	}
	if cfg.KnownHosts != nil {
		host, portStr, splitErr := net.SplitHostPort(cfg.Addr)
		if splitErr != nil {
			tr.Close()
			return nil, fmt.Errorf("acclient: addr %q not host:port, cannot pin identity: %w", cfg.Addr, splitErr)
		}
		port, parseErr := strconv.ParseUint(portStr, 10, 16)
		if parseErr != nil {
			tr.Close()
			return nil, fmt.Errorf("acclient: addr %q not host:port, cannot pin identity: %w", cfg.Addr, parseErr)
		}
		hsOpts.KnownHosts = cfg.KnownHosts
		hsOpts.ServerHost = host
		hsOpts.ServerPort = uint16(port)
		hsOpts.StrictHostCheck = cfg.StrictHostCheck
	}

	hctx, cancel := context.WithTimeout(ctx, defaults.Timeout(defaults.HandshakeTimeout))
	defer cancel()
	sess, err := acip.ClientHandshake(hctx, tr, hsOpts)
	if err != nil {
		tr.Close()
		return nil, err
	}

	join := acip.ClientJoinPayload{DisplayName: cfg.DisplayName, Capabilities: cfg.Capabilities}
	if err := sess.Send(ctx, acip.TypeClientJoin, join.Encode()); err != nil {
		sess.Close()
		return nil, err
	}

	return &Client{cfg: cfg, session: sess, events: make(chan Event, 256), log: cfg.Logger}, nil
}

// Events returns the channel of decrypted post-join packets; closed when Run returns.
func (c *Client) Events() <-chan Event { return c.events }

// Send encrypts and transmits one packet (media or control) to the server.
func (c *Client) Send(ctx context.Context, t acip.PacketType, payload []byte) error {
	return c.session.Send(ctx, t, payload)
}

// Close tears down the underlying session.
func (c *Client) Close() error {
	return c.session.Close()
}

// Run drives the receive loop and the periodic PING heartbeat until ctx is
// canceled or the transport fails; it closes the Events channel on return.
// The caller is responsible for reading Events() concurrently.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.events)

	pingTicker := time.NewTicker(defaults.Timeout(defaults.HeartbeatPingInterval))
	defer pingTicker.Stop()

	errCh := make(chan error, 1)
	go func() {
		for {
			t, originator, payload, err := c.session.RecvFrom(ctx)
			if err != nil {
				errCh <- err
				return
			}
			if t == acip.TypePong {
				continue
			}
			if c.session.ShouldRekey() {
				if err := acip.InitiateRekey(ctx, c.session, c.cfg.SessionID, acip.RoleClient); err != nil {
					c.log.Warn("rekey failed", "err", err)
				}
			}
			select {
			case c.events <- Event{Type: t, Originator: originator, Payload: payload}:
			case <-ctx.Done():
				return
			}
		}
	}()

	var pingNonce uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case <-pingTicker.C:
			pingNonce++
			ping := acip.PingPayload{Nonce: pingNonce}
			if err := c.session.Send(ctx, acip.TypePing, ping.Encode()); err != nil {
				return err
			}
		}
	}
}

// Subscribe sends STREAM_START for kind.
func (c *Client) Subscribe(ctx context.Context, kind acip.StreamKind) error {
	return c.session.Send(ctx, acip.TypeStreamStart, acip.StreamStartPayload{Kind: kind}.Encode())
}

// Unsubscribe sends STREAM_STOP for kind.
func (c *Client) Unsubscribe(ctx context.Context, kind acip.StreamKind) error {
	return c.session.Send(ctx, acip.TypeStreamStop, acip.StreamStopPayload{Kind: kind}.Encode())
}

// Leave sends CLIENT_LEAVE for a graceful disconnect.
func (c *Client) Leave(ctx context.Context) error {
	return c.session.Send(ctx, acip.TypeClientLeave, acip.ClientJoinPayload{}.Encode())
}
