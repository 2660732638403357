// Command acichat-client dials an ACIP server directly or via a discovery
// session string, completes the handshake, joins, and streams received
// events as JSON lines to stdout. Capture/render/playback live in separate
// front-end programs; this binary is the protocol-level driver they would
// sit behind.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/ascii-chat/acip-core/internal/cmdutil"
	"github.com/ascii-chat/acip-core/internal/defaults"
	fsversion "github.com/ascii-chat/acip-core/internal/version"
	"github.com/ascii-chat/acip-core/pkg/acclient"
	"github.com/ascii-chat/acip-core/pkg/acip"
	"github.com/ascii-chat/acip-core/pkg/acipcrypto"
	"github.com/ascii-chat/acip-core/pkg/aciptransport"
)

// sessionStringPattern matches ACDS's three-hyphenated-word session strings
// (e.g. "quietotter-brightwolf-calmfox"), distinguishing them on the command
// line from a plain "host:port" target.
var sessionStringPattern = regexp.MustCompile(`^[a-z]+-[a-z]+-[a-z]+$`)

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
		displayName   string
		password      string
		useWebSocket  bool
		preferWebRTC  bool
		noEncrypt     bool
		discoveryAddr  string
		wantVideo      bool
		wantAudio      bool
		showVersion    bool
		knownHostsPath string
	)

	fs := flag.NewFlagSet("acichat-client", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&displayName, "display-name", cmdutil.EnvString("ASCII_CHAT_DISPLAY_NAME", "anonymous"), "display name announced in CLIENT_JOIN")
	fs.StringVar(&password, "password", cmdutil.EnvString("ASCII_CHAT_PASSWORD", ""), "session password, if the server requires one")
	fs.BoolVar(&useWebSocket, "websocket", false, "dial over WebSocket instead of raw TCP")
	fs.BoolVar(&preferWebRTC, "prefer-webrtc", false, "dial over the WebRTC-substitute transport (WebSocket); also turned on when a discovery session is of type WEBRTC")
	fs.BoolVar(&noEncrypt, "no-encrypt", false, "accepted for CLI compatibility; rejected at startup, since ACIP requires a completed crypto handshake before any post-join traffic")
	fs.StringVar(&discoveryAddr, "discovery-service", cmdutil.EnvString("ASCII_CHAT_DISCOVERY_ADDR", ""), "host:port of the discovery service, required when the target is a session string rather than host:port")
	fs.BoolVar(&wantVideo, "video", true, "subscribe to the video stream")
	fs.BoolVar(&wantAudio, "audio", true, "subscribe to the audio stream")
	fs.StringVar(&knownHostsPath, "known-hosts", cmdutil.EnvString("ASCII_CHAT_KNOWN_HOSTS", ""), "path to the known-hosts file pinning server identity keys; empty disables pinning")
	fs.BoolVar(&showVersion, "version", false, "print version and exit")
	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintln(out, "Usage:")
		fmt.Fprintln(out, "  acichat-client <session-string-or-host> [--prefer-webrtc] [--no-encrypt]")
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
	rest := fs.Args()
	if len(rest) != 1 {
		fs.Usage()
		return exitConfigError
	}
	target := rest[0]

	if noEncrypt {
		fmt.Fprintln(stderr, "--no-encrypt is not supported: ACIP requires a completed crypto handshake before CLIENT_JOIN")
		return exitConfigError
	}

	var caps acip.Capability
	if wantVideo {
		caps |= acip.CapVideo
	}
	if wantAudio {
		caps |= acip.CapAudio
	}

	log := slog.New(slog.NewJSONHandler(stderr, nil))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := target
	if sessionStringPattern.MatchString(target) {
		if discoveryAddr == "" {
			fmt.Fprintln(stderr, "--discovery-service HOST:P is required when the target is a session string")
			return exitConfigError
		}
		joined, err := resolveSessionString(ctx, discoveryAddr, target, password)
		if err != nil {
			fmt.Fprintln(stderr, fmt.Errorf("discovery lookup: %w", err))
			return exitNetworkError
		}
		if !joined.Success {
			fmt.Fprintln(stderr, fmt.Errorf("discovery lookup rejected: %s", joined.ErrCode))
			return exitNetworkError
		}
		if joined.ServerAddr == "" || joined.ServerPort == 0 {
			fmt.Fprintln(stderr, "discovery lookup did not disclose a server address (wrong password, or withheld by policy)")
			return exitNetworkError
		}
		addr = fmt.Sprintf("%s:%d", joined.ServerAddr, joined.ServerPort)
		if joined.Type == acip.SessionTypeWebRTC {
			preferWebRTC = true
		}
	}
	if preferWebRTC {
		useWebSocket = true
	}

	var err error
	var knownHosts *acipcrypto.KnownHosts
	if knownHostsPath != "" {
		knownHosts, err = acipcrypto.LoadKnownHosts(knownHostsPath)
		if err != nil {
			fmt.Fprintln(stderr, fmt.Errorf("known-hosts: %w", err))
			return exitConfigError
		}
	}

	c, err := acclient.Dial(ctx, acclient.Config{
		Addr:         addr,
		SessionID:    addr,
		DisplayName:  displayName,
		Capabilities: caps,
		Password:     password,
		UseWebSocket: useWebSocket,
		Logger:       log,
		KnownHosts:   knownHosts,
		// The insecure escape hatch downgrades strict pinning to
		// trust-on-first-use for test runs.
		StrictHostCheck: cmdutil.EnvString("ASCII_CHAT_INSECURE_NO_HOST_IDENTITY_CHECK", "") == "",
	})
	if err != nil {
		fmt.Fprintln(stderr, fmt.Errorf("dial: %w", err))
		if errors.Is(err, acip.ErrAuthRejected) || errors.Is(err, acip.ErrIncompatibleVersion) || errors.Is(err, acip.ErrIdentityRequired) ||
			errors.Is(err, acip.ErrServerIdentityMissing) || errors.Is(err, acipcrypto.ErrHostKeyMismatch) || errors.Is(err, acipcrypto.ErrHostUnknown) {
			return exitCryptoFailure
		}
		return exitNetworkError
	}

	if wantVideo {
		if err := c.Subscribe(ctx, acip.StreamKindVideo); err != nil {
			fmt.Fprintln(stderr, fmt.Errorf("subscribe video: %w", err))
			return exitNetworkError
		}
	}
	if wantAudio {
		if err := c.Subscribe(ctx, acip.StreamKindAudio); err != nil {
			fmt.Fprintln(stderr, fmt.Errorf("subscribe audio: %w", err))
			return exitNetworkError
		}
	}

	out := bufio.NewWriter(stdout)
	defer out.Flush()

	runErr := make(chan error, 1)
	go func() { runErr <- c.Run(ctx) }()

	events := c.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if err := cmdutil.WriteJSON(out, eventRecord{Type: ev.Type.String(), Originator: ev.Originator, Bytes: len(ev.Payload)}, false); err != nil {
				log.Error("write event", "err", err)
			}
			out.Flush()
		case err := <-runErr:
			_ = c.Close()
			if err != nil && ctx.Err() == nil {
				fmt.Fprintln(stderr, fmt.Errorf("client run: %w", err))
				return exitNetworkError
			}
			return exitOK
		case <-ctx.Done():
			_ = c.Leave(context.Background())
			_ = c.Close()
			return exitOK
		}
	}
}

// resolveSessionString dials the discovery service in plaintext and sends
// SESSION_JOIN, returning the server contact info the disclosure policy
// permits. password is forwarded as-is; the registry compares it
// against the session's stored Argon2id hash.
func resolveSessionString(ctx context.Context, discoveryAddr, sessionString, password string) (acip.SessionJoinedPayload, error) {
	dctx, cancel := context.WithTimeout(ctx, defaults.Timeout(defaults.ConnectTimeout))
	defer cancel()
	tr, err := aciptransport.DialTCP(dctx, discoveryAddr, aciptransport.DefaultConfig())
	if err != nil {
		return acip.SessionJoinedPayload{}, err
	}
	defer tr.Close()

	join := acip.SessionJoinPayload{SessionString: sessionString, Password: password}
	if err := acip.SendPacket(ctx, tr, acip.TypeSessionJoin, 0, join.Encode()); err != nil {
		return acip.SessionJoinedPayload{}, err
	}
	t, _, payload, err := acip.RecvPacket(ctx, tr)
	if err != nil {
		return acip.SessionJoinedPayload{}, err
	}
	if t != acip.TypeSessionJoined {
		return acip.SessionJoinedPayload{}, fmt.Errorf("unexpected response type %s", t)
	}
	return acip.DecodeSessionJoined(payload)
}

type eventRecord struct {
	Type       string `json:"type"`
	Originator uint32 `json:"originator"`
	Bytes      int    `json:"bytes"`
}
