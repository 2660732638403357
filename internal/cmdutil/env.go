// Package cmdutil holds small flag/env/file helpers shared by acichat-server,
// acichat-client, and acichat-discovery's main.go: every ACIP CLI reads its
// ASCII_CHAT_* env vars and --flag defaults through the same small surface,
// so the three binaries stay consistent about precedence (flag overrides
// env overrides built-in default) and error reporting (exitConfigError).
package cmdutil

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvString returns the trimmed ASCII_CHAT_* env value if present; otherwise
// it returns fallback. Used for the string-valued flags (--bind, --password,
// --discovery-service, ...) every acichat-* command exposes.
func EnvString(key string, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// EnvBool parses a boolean ASCII_CHAT_* env value (e.g. ASCII_CHAT_REQUIRE_PASSWORD);
// when unset or blank, it returns fallback.
func EnvBool(key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, envParseError(key, raw, err)
	}
	return v, nil
}

// EnvInt parses an integer ASCII_CHAT_* env value (e.g. ASCII_CHAT_MAX_CLIENTS);
// when unset or blank, it returns fallback.
func EnvInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, envParseError(key, raw, err)
	}
	return v, nil
}

// EnvInt64 parses an int64 ASCII_CHAT_* env value (e.g. a TTL in seconds);
// when unset or blank, it returns fallback.
func EnvInt64(key string, fallback int64) (int64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, envParseError(key, raw, err)
	}
	return v, nil
}

// EnvDuration parses a time.Duration ASCII_CHAT_* env value (e.g.
// ASCII_CHAT_METRICS_SHUTDOWN_TIMEOUT); when unset or blank, it returns
// fallback.
func EnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, envParseError(key, raw, err)
	}
	return d, nil
}

// SplitCSVEnv splits a comma-separated ASCII_CHAT_* env value into trimmed,
// non-empty parts, used for ASCII_CHAT_WS_ALLOWED_ORIGINS, the fallback
// origin allow-list aciptransport.NewOriginPolicy is built from when
// --ws-allowed-origins is not given on the command line.
func SplitCSVEnv(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		v := strings.TrimSpace(p)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}

// envParseError wraps a malformed env value as a UsageError so acichat-*
// main()s can map it to exitConfigError the same way they do
// for a malformed --flag.
func envParseError(key, raw string, cause error) error {
	return &UsageError{Msg: "invalid " + key + "=" + raw + ": " + cause.Error()}
}
