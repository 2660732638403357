// Command acichat-discovery runs the ACDS discovery registry: it binds one
// or more addresses, accepts ACIP SESSION_CREATE/
// SESSION_JOIN connections, and periodically sweeps expired sessions.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ascii-chat/acip-core/internal/cmdutil"
	"github.com/ascii-chat/acip-core/internal/defaults"
	fsversion "github.com/ascii-chat/acip-core/internal/version"
	"github.com/ascii-chat/acip-core/pkg/acds"
	"github.com/ascii-chat/acip-core/pkg/aciptransport"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Exit codes: 0 success, 1 configuration error, 2 network error, 3 crypto
// failure (unused by this binary, which never encrypts).
const (
	exitOK            = 0
	exitConfigError   = 1
	exitNetworkError  = 2
	exitCryptoFailure = 3
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var (
		port         int
		databasePath string
		turnSecret   string
		notifyAddr   string
		showVersion  bool
	)

	databasePath = cmdutil.EnvString("ASCII_CHAT_DISCOVERY_DB", "")
	turnSecret = cmdutil.EnvString("ASCII_CHAT_TURN_SECRET", "")

	fs := flag.NewFlagSet("acichat-discovery", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.IntVar(&port, "port", 27500, "listen port")
	fs.StringVar(&databasePath, "database", databasePath, "path to the session-record store (env: ASCII_CHAT_DISCOVERY_DB)")
	fs.StringVar(&turnSecret, "turn-secret", turnSecret, "shared secret for TURN credential derivation (env: ASCII_CHAT_TURN_SECRET)")
	fs.StringVar(&notifyAddr, "notify-addr", cmdutil.EnvString("ASCII_CHAT_NOTIFY_ADDR", ""), "if set, serve websocket push notifications of session joins/expiry on this address")
	fs.BoolVar(&showVersion, "version", false, "print version and exit")
	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintln(out, "Usage:")
		fmt.Fprintln(out, "  acichat-discovery <bind-addrs> --port P [--database PATH] [--turn-secret SECRET]")
		fmt.Fprintln(out, "")
		fmt.Fprintln(out, "<bind-addrs> is a comma-separated list of interface addresses (default: 0.0.0.0).")
		fmt.Fprintln(out, "")
		fmt.Fprintln(out, "Exit codes:")
		fmt.Fprintln(out, "  0 success, 1 configuration error, 2 network error, 3 crypto failure")
		fmt.Fprintln(out, "")
		fmt.Fprintln(out, "Flags:")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitConfigError
	}
	if showVersion {
		fmt.Fprintln(stdout, fsversion.String(version, commit, date))
		return exitOK
	}

	bindAddrs := []string{"0.0.0.0"}
	if rest := fs.Args(); len(rest) > 0 {
		bindAddrs = strings.Split(rest[0], ",")
	}
	if port <= 0 || port > 65535 {
		fmt.Fprintln(stderr, "invalid --port")
		return exitConfigError
	}

	var reg *acds.Registry
	if databasePath == "" {
		reg = acds.NewRegistry(turnSecret)
	} else {
		var err error
		reg, err = acds.OpenRegistry(databasePath, turnSecret)
		if err != nil {
			fmt.Fprintln(stderr, fmt.Errorf("open registry: %w", err))
			return exitConfigError
		}
	}

	log := slog.New(slog.NewJSONHandler(stderr, nil))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if notifyAddr != "" {
		notifier := acds.NewNotifier()
		reg.SetNotifier(notifier)
		mux := http.NewServeMux()
		mux.Handle("/notify", notifier.HTTPHandler(ctx, nil))
		notifySrv := &http.Server{Addr: notifyAddr, Handler: mux}
		go func() {
			if err := notifySrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("notify server failed", "err", err)
			}
		}()
		context.AfterFunc(ctx, func() {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			_ = notifySrv.Shutdown(sctx)
		})
		log.Info("notify endpoint listening", "addr", notifyAddr)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var listeners []net.Listener
	var firstErr error

	for _, addr := range bindAddrs {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", addr, port))
		if err != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
			continue
		}
		listeners = append(listeners, ln)
		log.Info("discovery listening", "addr", ln.Addr().String())
		wg.Add(1)
		go func(ln net.Listener) {
			defer wg.Done()
			serveDiscovery(ctx, ln, reg, log)
		}(ln)
	}
	if len(listeners) == 0 {
		fmt.Fprintln(stderr, fmt.Errorf("no listener bound: %w", firstErr))
		return exitNetworkError
	}

	go acds.RunExpirySweeper(ctx, reg, defaults.DiscoverySweepInterval)

	<-ctx.Done()
	log.Info("shutting down")
	for _, ln := range listeners {
		_ = ln.Close()
	}
	wg.Wait()
	return exitOK
}

func serveDiscovery(ctx context.Context, ln net.Listener, reg *acds.Registry, log *slog.Logger) {
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		go func(conn net.Conn) {
			defer conn.Close()
			tcpConn, ok := conn.(*net.TCPConn)
			if !ok {
				return
			}
			tr, err := aciptransport.WrapTCP(tcpConn, aciptransport.DefaultConfig())
			if err != nil {
				return
			}
			defer tr.Close()
			cctx, cancel := context.WithTimeout(ctx, defaults.Timeout(defaults.IOTimeout))
			defer cancel()
			if err := acds.HandleConnection(cctx, tr, reg); err != nil {
				log.Debug("discovery connection closed", "err", err, "remote_addr", conn.RemoteAddr().String())
			}
		}(conn)
	}
}
