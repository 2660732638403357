// Package acserver wires the leaf packages (acipframe, acipcrypto,
// aciptransport, acip, acipsession) into one server instance: an accept
// loop that hands each new connection through the crypto handshake, a
// CLIENT_JOIN exchange, and then a receive/send worker pair registered in
// the shared client registry.
//
// The cmd/acichat-server binary owns process lifecycle (flags, signals,
// metrics endpoint); this package owns the accept-loop and
// connection-handling logic.
package acserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/ascii-chat/acip-core/internal/defaults"
	"github.com/ascii-chat/acip-core/internal/wsutil"
	"github.com/ascii-chat/acip-core/pkg/acip"
	"github.com/ascii-chat/acip-core/pkg/acipsession"
	"github.com/ascii-chat/acip-core/pkg/aciptransport"
)

// Config parameterizes one server instance.
type Config struct {
	SessionID string // bound into the handshake transcript; typically "host:port" or a discovery session string

	MaxClients int // 0 means unbounded

	RequireIdentity       bool
	RequirePassword       bool
	ExpectedPassword      string
	Identity              *acip.IdentityKeypair
	VerifyClientSignature func(signedData, sig []byte) bool

	DeathTimeout               time.Duration
	GracefulDisconnectDeadline time.Duration

	Observer acipsession.Observer
	Logger   *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.DeathTimeout <= 0 {
		c.DeathTimeout = defaults.Timeout(defaults.HeartbeatDeathTimeout)
	}
	if c.GracefulDisconnectDeadline <= 0 {
		c.GracefulDisconnectDeadline = defaults.Timeout(defaults.GracefulDisconnectDeadline)
	}
	if c.Observer == nil {
		c.Observer = acipsession.NoopObserver
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Server is one running ACIP media-distribution server: the live client
// registry plus the handshake/join policy every accepted connection goes
// through before it is allowed to fan out media.
type Server struct {
	cfg      Config
	Reg      *acipsession.Registry
	ipLimits *acipsession.IPLimiters

	// servCtx is the context passed to Serve, kept so HTTPHandler (which
	// runs each upgraded session past the lifetime of its own HTTP request)
	// has something other than the request context to hang the session on.
	servCtx context.Context
}

// New constructs a Server. Call Serve to run its accept loop.
func New(cfg Config) *Server {
	return &Server{
		cfg:      cfg.withDefaults(),
		Reg:      acipsession.NewRegistry(),
		ipLimits: acipsession.NewIPLimiters(acipsession.DefaultBucketConfigs(), 10*time.Minute),
		servCtx:  context.Background(),
	}
}

// Serve accepts connections from ln until ctx is canceled, spawning the
// handshake/join/worker pipeline for each in its own goroutine. It also runs
// the liveness sweeper for the lifetime of the call. Serve returns once ctx
// is canceled and the listener is closed.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.servCtx = ctx
	go acipsession.RunLivenessSweeper(ctx, s.Reg, s.cfg.DeathTimeout, s.cfg.Observer)
	go s.runIPLimiterSweeper(ctx)

	stopAccept := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stopAccept()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return err
		}
		go s.handleConn(ctx, conn)
	}
}

// HTTPHandler returns an http.Handler that upgrades each request to a
// WebSocket and runs it through the same handshake/join/worker pipeline as
// a raw TCP connection. Mount
// it on whatever path the caller wants clients to dial (typically "/").
//
// The per-IP connection flood control is applied here exactly as it is in
// handleConn, before the handshake starts.
func (s *Server) HTTPHandler(opts aciptransport.UpgradeOptions) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := s.cfg.Logger.With("remote_addr", r.RemoteAddr)

		host, _, splitErr := net.SplitHostPort(r.RemoteAddr)
		if splitErr != nil {
			host = r.RemoteAddr
		}
		if !s.ipLimits.Allow(host, acipsession.EventClientJoin) {
			log.Warn("rate limited: too many connection attempts", "ip", host)
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}

		tr, err := aciptransport.UpgradeWebSocket(w, r, opts, aciptransport.DefaultConfig())
		if err != nil {
			log.Warn("websocket upgrade failed", "err", err)
			return
		}
		tr.SetReadLimit(wsutil.ReadLimit())
		s.runSession(s.servCtx, tr, r.RemoteAddr, log)
	})
}

// runIPLimiterSweeper periodically evicts idle per-IP rate-limiter state so
// the pre-join limiter pool does not grow unbounded over a long-running
// server's lifetime.
func (s *Server) runIPLimiterSweeper(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ipLimits.EvictIdle()
		}
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	log := s.cfg.Logger.With("remote_addr", conn.RemoteAddr().String())

	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		log.Error("non-tcp connection rejected")
		conn.Close()
		return
	}

	// Pre-join flood control is per source IP: a connection attempt itself
	// is gated here, before the
	// (comparatively expensive) crypto handshake runs, so a flood from one
	// IP cannot starve handshake capacity for everyone else.
	host, _, splitErr := net.SplitHostPort(conn.RemoteAddr().String())
	if splitErr != nil {
		host = conn.RemoteAddr().String()
	}
	if !s.ipLimits.Allow(host, acipsession.EventClientJoin) {
		log.Warn("rate limited: too many connection attempts", "ip", host)
		if tr, err := aciptransport.WrapTCP(tcpConn, aciptransport.DefaultConfig()); err == nil {
			errPayload, _ := acip.ErrorPayload{Code: acip.ErrorRateLimited, Message: "rate limited"}.Encode()
			_ = acip.SendPacket(ctx, tr, acip.TypeError, 0, errPayload)
			tr.Close()
		} else {
			conn.Close()
		}
		return
	}

	tr, err := aciptransport.WrapTCP(tcpConn, aciptransport.DefaultConfig())
	if err != nil {
		log.Error("wrap transport failed", "err", err)
		conn.Close()
		return
	}

	s.runSession(ctx, tr, conn.RemoteAddr().String(), log)
}

// runSession drives one already-rate-limited transport through the
// handshake, CLIENT_JOIN, and receive/send worker pair, regardless of
// whether it arrived over raw TCP or an upgraded WebSocket.
func (s *Server) runSession(ctx context.Context, tr aciptransport.Transport, remoteAddr string, log *slog.Logger) {
	id := s.Reg.NextID()
	start := time.Now()

	hctx, cancel := context.WithTimeout(ctx, defaults.Timeout(defaults.HandshakeTimeout))
	sess, err := acip.ServerHandshake(hctx, tr, acip.ServerHandshakeOptions{
		SessionID:             s.cfg.SessionID,
		RequireIdentity:       s.cfg.RequireIdentity,
		RequirePassword:       s.cfg.RequirePassword,
		ExpectedPassword:      s.cfg.ExpectedPassword,
		Identity:              s.cfg.Identity,
		VerifyClientSignature: s.cfg.VerifyClientSignature,
		ClientID:              id,
	})
	cancel()
	if err != nil {
		s.cfg.Observer.HandshakeResult(false, time.Since(start))
		log.Warn("handshake failed", "err", err, "client_id", id)
		tr.Close()
		return
	}
	s.cfg.Observer.HandshakeResult(true, time.Since(start))

	jctx, jcancel := context.WithTimeout(ctx, defaults.Timeout(defaults.HandshakeTimeout))
	t, payload, err := sess.Recv(jctx)
	jcancel()
	if err != nil || t != acip.TypeClientJoin {
		log.Warn("expected client_join after handshake", "client_id", id, "err", err, "type", t)
		sess.Close()
		return
	}
	join, err := acip.DecodeClientJoin(payload)
	if err != nil {
		log.Warn("malformed client_join", "client_id", id, "err", err)
		sess.Close()
		return
	}

	client := acipsession.NewClient(id, join.DisplayName, join.Capabilities, sess)
	if err := s.Reg.Join(client, s.cfg.MaxClients); err != nil {
		log.Info("rejected join: session full", "client_id", id)
		errPayload, _ := acip.ErrorPayload{Code: acip.ErrorSessionFull, Message: "session full"}.Encode()
		_ = sess.Send(ctx, acip.TypeError, errPayload)
		sess.Close()
		return
	}

	log.Info("client joined", "client_id", id, "display_name", join.DisplayName, "remote_addr", remoteAddr)
	s.cfg.Observer.Join(id, join.DisplayName)
	s.cfg.Observer.ConnCount(s.Reg.Count())
	acipsession.BroadcastJoin(s.Reg, client)

	table := acipsession.BuildServerHandlerTable(ctx, s.Reg, client, s.cfg.Observer, s.cfg.SessionID)

	sendDone := make(chan acipsession.LeaveReason, 1)
	go func() { sendDone <- acipsession.SendWorker(ctx, client) }()

	reason := acipsession.ReceiveWorker(ctx, s.Reg, client, table, s.cfg.Observer)

	s.Reg.Leave(id)
	client.MarkDone()

	// Graceful disconnect: let the send worker flush what's already queued
	// (e.g. a final CLIENT_LEAVE ack or in-flight media) up to the
	// configured deadline before forcing the transport closed.
	client.Queue.Close()
	select {
	case <-sendDone:
	case <-time.After(s.cfg.GracefulDisconnectDeadline):
	}

	sess.Close()
	log.Info("client left", "client_id", id, "reason", reason)
	s.cfg.Observer.Leave(id, reason)
	s.cfg.Observer.ConnCount(s.Reg.Count())
	acipsession.BroadcastLeave(s.Reg, id)
}
