// Package acerrors is the structured error type used across the ACIP
// server, client, and discovery service: a stable Stage + Code pair plus
// the wrapped cause, so logs and ERROR packets can report "what failed" and
// "at which step" without parsing message strings.
package acerrors

import "fmt"

// Stage identifies which part of the protocol stack failed.
type Stage string

const (
	StageFraming    Stage = "framing"
	StageCrypto     Stage = "crypto"
	StageTransport  Stage = "transport"
	StageProtocol   Stage = "protocol"
	StageSession    Stage = "session"
	StageDiscovery  Stage = "discovery"
)

// Code is the stable, programmatic error taxonomy.
type Code string

const (
	CodeInvalidParam               Code = "invalid_param"
	CodeIONetwork                  Code = "io_network"
	CodeNetworkTimeout              Code = "network_timeout"
	CodeProtocolViolation           Code = "protocol_violation"
	CodeBadMagic                    Code = "bad_magic"
	CodeChecksumMismatch            Code = "checksum_mismatch"
	CodeCryptoHandshakeFailed       Code = "crypto_handshake_failed"
	CodeCryptoAuthFailed            Code = "crypto_auth_failed"
	CodeEncryptionPolicyViolation   Code = "encryption_policy_violation"
	CodeRateLimited                 Code = "rate_limited"
	CodeInvalidPassword             Code = "invalid_password"
	CodeSessionNotFound             Code = "session_not_found"
	CodeSessionFull                 Code = "session_full"
	CodeResourceExhausted           Code = "resource_exhausted"
	CodeIncompatibleVersion         Code = "incompatible_version"
	CodeInternal                    Code = "internal"
	CodeIPWithheld                  Code = "ip_withheld"
)

// Error is a structured, programmatically identifiable protocol error.
type Error struct {
	Stage Stage
	Code  Code
	Err   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %v", e.Stage, e.Code, e.Err)
	}
	return fmt.Sprintf("%s (%s)", e.Stage, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap builds a structured Error for the given stage/code, optionally wrapping a cause.
func Wrap(stage Stage, code Code, err error) error {
	return &Error{Stage: stage, Code: code, Err: err}
}

// Is reports whether err itself is an *Error with the given code. It does
// not unwrap: an *Error wrapped inside another error is not matched.
func Is(err error, code Code) bool {
	e, ok := err.(*Error)
	return ok && e.Code == code
}
