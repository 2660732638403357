// Command acichat-server runs one ACIP media-distribution server: it
// accepts client connections, fans out video/audio/control packets among
// them, and optionally registers a discoverable session string with an
// ACDS discovery-service instance.
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
	"syscall"
	"time"

	"github.com/ascii-chat/acip-core/internal/base64url"
	"github.com/ascii-chat/acip-core/internal/cmdutil"
	"github.com/ascii-chat/acip-core/internal/defaults"
	fsversion "github.com/ascii-chat/acip-core/internal/version"
	"github.com/ascii-chat/acip-core/observability"
	"github.com/ascii-chat/acip-core/observability/prom"
	"github.com/ascii-chat/acip-core/pkg/acds"
	"github.com/ascii-chat/acip-core/pkg/acip"
	"github.com/ascii-chat/acip-core/pkg/acserver"
	"github.com/ascii-chat/acip-core/pkg/aciptransport"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Exit codes reported to the shell.
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
		bindAddr           string
		port               int
		metricsAddr        string
		maxClients         int
		requirePassword    bool
		password           string
		useDiscovery       bool
		discoveryAddr      string
		discoveryExposeIP  bool
		discoveryMaxPeople int
		showVersion        bool
		wsAddr             string
		wsAllowedOrigins   string
		requireIdentity    bool
		identityFile       string
		forceIdentityFile  bool
		metricsShutdown    time.Duration
		showConfig         bool
	)

	defaultRequirePassword, err := cmdutil.EnvBool("ASCII_CHAT_REQUIRE_PASSWORD", false)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitConfigError
	}
	defaultMaxClients, err := cmdutil.EnvInt("ASCII_CHAT_MAX_CLIENTS", 8)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitConfigError
	}
	defaultMetricsShutdown, err := cmdutil.EnvDuration("ASCII_CHAT_METRICS_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitConfigError
	}

	fs := flag.NewFlagSet("acichat-server", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&bindAddr, "bind", cmdutil.EnvString("ASCII_CHAT_BIND", "0.0.0.0"), "address to listen on")
	fs.IntVar(&port, "port", 27224, "listen port")
	fs.StringVar(&metricsAddr, "metrics-addr", cmdutil.EnvString("ASCII_CHAT_METRICS_ADDR", ""), "if set, serve /metrics and /healthz on this address")
	fs.IntVar(&maxClients, "max-clients", defaultMaxClients, "maximum simultaneous clients (0 = unbounded)")
	fs.BoolVar(&requirePassword, "require-password", defaultRequirePassword, "require AUTH_RESPONSE to carry a matching password")
	fs.StringVar(&password, "password", cmdutil.EnvString("ASCII_CHAT_PASSWORD", ""), "expected password when --require-password is set")
	fs.BoolVar(&useDiscovery, "discovery", false, "register this server's session with a discovery service")
	fs.StringVar(&discoveryAddr, "discovery-service", cmdutil.EnvString("ASCII_CHAT_DISCOVERY_ADDR", ""), "host:port of the discovery service")
	fs.BoolVar(&discoveryExposeIP, "discovery-expose-ip", false, "allow the discovery service to disclose this server's IP to joiners")
	fs.IntVar(&discoveryMaxPeople, "max-participants", 8, "max_participants advertised to the discovery service")
	fs.BoolVar(&showVersion, "version", false, "print version and exit")
	fs.StringVar(&wsAddr, "ws-addr", cmdutil.EnvString("ASCII_CHAT_WS_ADDR", ""), "if set, also accept WebSocket connections on this address")
	fs.StringVar(&wsAllowedOrigins, "ws-allowed-origins", cmdutil.EnvString("ASCII_CHAT_WS_ALLOWED_ORIGINS", ""), "comma-separated Origin allow-list for --ws-addr (empty allows any origin)")
	fs.BoolVar(&requireIdentity, "require-identity", false, "require clients to authenticate with a signed Ed25519 identity challenge")
	fs.StringVar(&identityFile, "identity-file", cmdutil.EnvString("ASCII_CHAT_IDENTITY_FILE", ""), "path to this server's persisted Ed25519 identity keypair; generated on first run")
	fs.BoolVar(&forceIdentityFile, "force-identity-file", false, "overwrite an existing --identity-file instead of loading it")
	fs.DurationVar(&metricsShutdown, "metrics-shutdown-timeout", defaultMetricsShutdown, "grace period for the metrics/healthz server to drain on shutdown")
	fs.BoolVar(&showConfig, "show-config", false, "print the resolved configuration as JSON and exit, without binding any listener")
	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintln(out, "Usage:")
		fmt.Fprintln(out, "  acichat-server --port P [--discovery --discovery-service HOST:P [--discovery-expose-ip]]")
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
	if port <= 0 || port > 65535 {
		fmt.Fprintln(stderr, "invalid --port")
		return exitConfigError
	}
	if useDiscovery && discoveryAddr == "" {
		fmt.Fprintln(stderr, "--discovery requires --discovery-service HOST:P")
		return exitConfigError
	}

	if showConfig {
		cfg := serverConfigSummary{
			Bind:               fmt.Sprintf("%s:%d", bindAddr, port),
			MaxClients:         maxClients,
			RequirePassword:    requirePassword,
			RequireIdentity:    requireIdentity,
			Discovery:          useDiscovery,
			DiscoveryService:   discoveryAddr,
			DiscoveryExposeIP:  discoveryExposeIP,
			DiscoveryMaxPeople: discoveryMaxPeople,
			WebSocketAddr:      wsAddr,
			WebSocketOrigins:   wsAllowedOrigins,
			IdentityFile:       identityFile,
			MetricsAddr:        metricsAddr,
		}
		if err := cmdutil.WriteJSON(stdout, cfg, true); err != nil {
			fmt.Fprintln(stderr, err)
			return exitConfigError
		}
		return exitOK
	}

	log := slog.New(slog.NewJSONHandler(stderr, nil))

	var identity *acip.IdentityKeypair
	if identityFile != "" {
		identity, err = cmdutil.LoadOrCreateIdentity(identityFile, forceIdentityFile)
		if err != nil {
			fmt.Fprintln(stderr, fmt.Errorf("identity file: %w", err))
			if cmdutil.IsUsage(err) {
				return exitConfigError
			}
			return exitCryptoFailure
		}
		log.Info("loaded identity", "identity_file", identityFile, "public_key", base64url.Encode(identity.Public))
	} else if requireIdentity {
		fmt.Fprintln(stderr, "--require-identity requires --identity-file")
		return exitConfigError
	}

	promReg := prom.NewRegistry()
	obsHolder := observability.NewAtomicObserver()
	obsHolder.Set(prom.NewServerObserver(promReg))

	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", bindAddr, port))
	if err != nil {
		fmt.Fprintln(stderr, fmt.Errorf("listen: %w", err))
		return exitNetworkError
	}

	sessionID := ln.Addr().String()

	srv := acserver.New(acserver.Config{
		SessionID:        sessionID,
		MaxClients:       maxClients,
		RequirePassword:  requirePassword,
		ExpectedPassword: password,
		RequireIdentity:  requireIdentity,
		Identity:         identity,
		Observer:         obsHolder,
		Logger:           log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", prom.Handler(promReg))
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		metricsSrv := &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", "err", err)
			}
		}()
		context.AfterFunc(ctx, func() {
			sctx, scancel := context.WithTimeout(context.Background(), metricsShutdown)
			defer scancel()
			_ = metricsSrv.Shutdown(sctx)
		})
	}

	if wsAddr != "" {
		origins := cmdutil.SplitCSVEnv("ASCII_CHAT_WS_ALLOWED_ORIGINS")
		if wsAllowedOrigins != "" {
			origins = nil
			for _, o := range strings.Split(wsAllowedOrigins, ",") {
				if o = strings.TrimSpace(o); o != "" {
					origins = append(origins, o)
				}
			}
		}
		originPolicy := aciptransport.NewOriginPolicy(origins, len(origins) == 0)
		wsMux := http.NewServeMux()
		wsMux.Handle("/", srv.HTTPHandler(aciptransport.UpgradeOptions{CheckOrigin: originPolicy.Allow}))
		wsSrv := &http.Server{Addr: wsAddr, Handler: wsMux}
		go func() {
			if err := wsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("websocket server failed", "err", err)
			}
		}()
		context.AfterFunc(ctx, func() {
			sctx, scancel := context.WithTimeout(context.Background(), metricsShutdown)
			defer scancel()
			_ = wsSrv.Shutdown(sctx)
		})
		log.Info("websocket listening", "addr", wsAddr, "allowed_origins", origins)
	}

	var sessionString string
	if useDiscovery {
		sessionString, err = registerWithDiscovery(ctx, discoveryAddr, sessionID, uint16(port), discoveryMaxPeople, discoveryExposeIP, requirePassword, password)
		if err != nil {
			fmt.Fprintln(stderr, fmt.Errorf("discovery registration: %w", err))
			return exitNetworkError
		}
		fmt.Fprintf(stdout, "session: %s\n", sessionString)
	}

	log.Info("server listening", "addr", ln.Addr().String(), "session_string", sessionString)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx, ln) }()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		return exitOK
	case err := <-errCh:
		if err != nil {
			fmt.Fprintln(stderr, fmt.Errorf("serve: %w", err))
			return exitNetworkError
		}
		return exitOK
	}
}

// registerWithDiscovery dials the discovery service in plaintext (discovery
// connections precede any ACIP handshake) and sends SESSION_CREATE,
// returning the assigned session string.
func registerWithDiscovery(ctx context.Context, discoveryAddr, serverAddr string, port uint16, maxParticipants int, exposeIP, hasPassword bool, password string) (string, error) {
	dctx, cancel := context.WithTimeout(ctx, defaults.Timeout(defaults.ConnectTimeout))
	defer cancel()
	tr, err := aciptransport.DialTCP(dctx, discoveryAddr, aciptransport.DefaultConfig())
	if err != nil {
		return "", err
	}
	defer tr.Close()

	var passwordHash string
	if hasPassword {
		var err error
		passwordHash, err = acds.HashPassword(password)
		if err != nil {
			return "", err
		}
	}

	create := acip.SessionCreatePayload{
		Type:            acip.SessionTypeDirectTCP,
		MaxParticipants: uint16(maxParticipants),
		ServerAddr:      serverAddr,
		ServerPort:      port,
		ExposeIP:        exposeIP,
		PasswordHash:    passwordHash,
	}
	if err := acip.SendPacket(ctx, tr, acip.TypeSessionCreate, 0, create.Encode()); err != nil {
		return "", err
	}
	t, _, payload, err := acip.RecvPacket(ctx, tr)
	if err != nil {
		return "", err
	}
	if t != acip.TypeSessionCreated {
		return "", fmt.Errorf("unexpected response type %s", t)
	}
	created, err := acip.DecodeSessionCreated(payload)
	if err != nil {
		return "", err
	}
	return created.SessionString, nil
}
