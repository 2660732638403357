package acip

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"

	"github.com/ascii-chat/acip-core/pkg/acipcrypto"
	"github.com/ascii-chat/acip-core/pkg/aciptransport"
)

// ProtocolVersion is the ACIP wire protocol version this package speaks.
const ProtocolVersion uint8 = 1

var (
	// ErrIncompatibleVersion indicates the peer advertised an unsupported protocol version.
	ErrIncompatibleVersion = errors.New("acip: incompatible protocol version")
	// ErrUnexpectedPacketType indicates a handshake packet arrived out of sequence.
	ErrUnexpectedPacketType = errors.New("acip: unexpected packet type during handshake")
	// ErrIdentityRequired indicates the server demanded identity auth the client cannot provide.
	ErrIdentityRequired = errors.New("acip: server requires identity authentication")
	// ErrAuthRejected indicates AUTH_RESPONSE failed server-side verification.
	ErrAuthRejected = errors.New("acip: authentication rejected")
	// ErrServerIdentityMissing indicates known-hosts pinning was requested
	// but the server presented no identity key to pin.
	ErrServerIdentityMissing = errors.New("acip: server presented no identity key")
)

// IdentityKeypair is the local long-term Ed25519 identity, used to answer
// an AUTH_CHALLENGE / sign the key-exchange response when the peer requests it.
type IdentityKeypair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// ClientHandshakeOptions configures the client side of the ACIP handshake.
type ClientHandshakeOptions struct {
	Capabilities Capability
	SessionID    string // ACDS session string or direct host:port, bound into the transcript
	Identity     *IdentityKeypair
	Password     string

	// KnownHosts, when set, pins the server's identity key against the
	// (ServerHost, ServerPort) endpoint. StrictHostCheck rejects endpoints
	// with no pinned key; when false (the insecure escape hatch), an unknown
	// endpoint's key is accepted and pinned on first use.
	KnownHosts      *acipcrypto.KnownHosts
	ServerHost      string
	ServerPort      uint16
	StrictHostCheck bool
}

// ServerHandshakeOptions configures the server side of the ACIP handshake.
type ServerHandshakeOptions struct {
	SessionID        string
	RequireIdentity  bool
	RequirePassword  bool
	ExpectedPassword string
	Identity *IdentityKeypair // server's own identity, for signing the key-exchange init if desired
	// VerifyClientSignature checks the client's KEY_EXCHANGE_RESP signature
	// over signedData (client_eph || server_eph || challenge_nonce) against
	// whatever identity store the caller maintains (e.g. acipcrypto.KnownHosts).
	VerifyClientSignature func(signedData, sig []byte) bool
	ClientID              uint32 // id assigned to this connection by the session layer
}

// ClientHandshake drives INIT → AWAIT_KEY_EXCHANGE → AWAIT_AUTH → READY from
// the client's perspective.
func ClientHandshake(ctx context.Context, tr aciptransport.Transport, opts ClientHandshakeOptions) (*Session, error) {
	hello := ClientHelloPayload{ProtocolVersion: ProtocolVersion, Capabilities: opts.Capabilities}
	if err := SendPacket(ctx, tr, TypeClientHello, 0, hello.Encode()); err != nil {
		return nil, err
	}

	t, _, payload, err := RecvPacket(ctx, tr)
	if err != nil {
		return nil, err
	}
	if t != TypeKeyExchangeInit {
		return nil, ErrUnexpectedPacketType
	}
	init, err := DecodeKeyExchangeInit(payload)
	if err != nil {
		return nil, err
	}

	if opts.KnownHosts != nil {
		if len(init.IdentityPub) != ed25519.PublicKeySize {
			return nil, ErrServerIdentityMissing
		}
		signed := make([]byte, 0, 64)
		signed = append(signed, init.EphemeralPub[:]...)
		signed = append(signed, init.ChallengeNonce[:]...)
		serverPub := ed25519.PublicKey(init.IdentityPub)
		if err := acipcrypto.VerifySignature(serverPub, signed, init.Signature); err != nil {
			return nil, err
		}
		if err := opts.KnownHosts.Verify(opts.ServerHost, opts.ServerPort, serverPub, opts.StrictHostCheck); err != nil {
			return nil, err
		}
	}

	eph, err := acipcrypto.GenerateEphemeral()
	if err != nil {
		return nil, err
	}

	var sig []byte
	challengeRequested := init.ChallengeNonce != [32]byte{}
	if challengeRequested {
		if opts.Identity == nil {
			return nil, ErrIdentityRequired
		}
		signed := make([]byte, 0, 64+32)
		signed = append(signed, eph.Pub...)
		signed = append(signed, init.EphemeralPub[:]...)
		signed = append(signed, init.ChallengeNonce[:]...)
		sig = acipcrypto.SignChallenge(opts.Identity.Private, signed)
	}

	resp := KeyExchangeRespPayload{Signature: sig}
	copy(resp.EphemeralPub[:], eph.Pub)
	if err := SendPacket(ctx, tr, TypeKeyExchangeResp, 0, resp.Encode()); err != nil {
		return nil, err
	}

	peerPub, err := acipcrypto.ParsePublicKey(init.EphemeralPub[:])
	if err != nil {
		return nil, err
	}
	shared, err := acipcrypto.DeriveShared(eph.Priv, peerPub)
	if err != nil {
		return nil, err
	}
	transcript, err := TranscriptHashForHandshake(opts.SessionID, uint32(hello.Capabilities), 0, eph.Pub, init.EphemeralPub[:])
	if err != nil {
		return nil, err
	}
	keys, err := acipcrypto.DeriveSessionKeys(shared, transcript)
	if err != nil {
		return nil, err
	}

	var assignedID uint32
	t, assignedID, payload, err = RecvPacket(ctx, tr)
	if err != nil {
		return nil, err
	}
	switch t {
	case TypeHandshakeComplete:
		// fall through to READY below
	case TypeAuthChallenge:
		challenge, err := DecodeAuthChallenge(payload)
		if err != nil {
			return nil, err
		}
		authResp := AuthResponsePayload{Password: opts.Password}
		if opts.Identity != nil {
			authResp.Signature = acipcrypto.SignChallenge(opts.Identity.Private, challenge.Nonce[:])
		}
		if err := SendPacket(ctx, tr, TypeAuthResponse, 0, authResp.Encode()); err != nil {
			return nil, err
		}
		t, assignedID, _, err = RecvPacket(ctx, tr)
		if err != nil {
			return nil, err
		}
		if t != TypeHandshakeComplete {
			return nil, ErrAuthRejected
		}
	default:
		return nil, ErrUnexpectedPacketType
	}

	salt, err := acipcrypto.DeriveNonceSalt(shared, transcript)
	if err != nil {
		return nil, err
	}
	// assignedID is the server-assigned client id carried in HANDSHAKE_COMPLETE's
	// frame header; the session stamps every subsequent outgoing frame with it.
	return NewSession(tr, assignedID, keys, salt, RoleClient), nil
}

// ServerHandshake drives the mirrored server-side state machine.
func ServerHandshake(ctx context.Context, tr aciptransport.Transport, opts ServerHandshakeOptions) (*Session, error) {
	t, _, payload, err := RecvPacket(ctx, tr)
	if err != nil {
		return nil, err
	}
	if t != TypeClientHello {
		return nil, ErrUnexpectedPacketType
	}
	hello, err := DecodeClientHello(payload)
	if err != nil {
		return nil, err
	}
	if hello.ProtocolVersion != ProtocolVersion {
		return nil, ErrIncompatibleVersion
	}

	eph, err := acipcrypto.GenerateEphemeral()
	if err != nil {
		return nil, err
	}

	var challengeNonce [32]byte
	if opts.RequireIdentity {
		if _, err := rand.Read(challengeNonce[:]); err != nil {
			return nil, err
		}
	}
	init := KeyExchangeInitPayload{ChallengeNonce: challengeNonce}
	copy(init.EphemeralPub[:], eph.Pub)
	if opts.Identity != nil {
		signed := make([]byte, 0, 64)
		signed = append(signed, eph.Pub...)
		signed = append(signed, challengeNonce[:]...)
		init.IdentityPub = opts.Identity.Public
		init.Signature = acipcrypto.SignChallenge(opts.Identity.Private, signed)
	}
	if err := SendPacket(ctx, tr, TypeKeyExchangeInit, opts.ClientID, init.Encode()); err != nil {
		return nil, err
	}

	t, _, payload, err = RecvPacket(ctx, tr)
	if err != nil {
		return nil, err
	}
	if t != TypeKeyExchangeResp {
		return nil, ErrUnexpectedPacketType
	}
	resp, err := DecodeKeyExchangeResp(payload)
	if err != nil {
		return nil, err
	}

	if opts.RequireIdentity {
		if opts.VerifyClientSignature == nil {
			return nil, ErrIdentityRequired
		}
		signed := make([]byte, 0, 64+32)
		signed = append(signed, resp.EphemeralPub[:]...)
		signed = append(signed, eph.Pub...)
		signed = append(signed, challengeNonce[:]...)
		if !opts.VerifyClientSignature(signed, resp.Signature) {
			return nil, ErrAuthRejected
		}
	}

	peerPub, err := acipcrypto.ParsePublicKey(resp.EphemeralPub[:])
	if err != nil {
		return nil, err
	}
	shared, err := acipcrypto.DeriveShared(eph.Priv, peerPub)
	if err != nil {
		return nil, err
	}
	transcript, err := TranscriptHashForHandshake(opts.SessionID, uint32(hello.Capabilities), 0, resp.EphemeralPub[:], eph.Pub)
	if err != nil {
		return nil, err
	}
	keys, err := acipcrypto.DeriveSessionKeys(shared, transcript)
	if err != nil {
		return nil, err
	}

	if opts.RequirePassword {
		var nonce [32]byte
		if _, err := rand.Read(nonce[:]); err != nil {
			return nil, err
		}
		challenge := AuthChallengePayload{RequiresPassword: true, Nonce: nonce}
		if err := SendPacket(ctx, tr, TypeAuthChallenge, opts.ClientID, challenge.Encode()); err != nil {
			return nil, err
		}
		t, _, payload, err = RecvPacket(ctx, tr)
		if err != nil {
			return nil, err
		}
		if t != TypeAuthResponse {
			return nil, ErrUnexpectedPacketType
		}
		authResp, err := DecodeAuthResponse(payload)
		if err != nil {
			return nil, err
		}
		if authResp.Password != opts.ExpectedPassword {
			return nil, ErrAuthRejected
		}
	}

	if err := SendPacket(ctx, tr, TypeHandshakeComplete, opts.ClientID, nil); err != nil {
		return nil, err
	}

	salt, err := acipcrypto.DeriveNonceSalt(shared, transcript)
	if err != nil {
		return nil, err
	}
	return NewSession(tr, opts.ClientID, keys, salt, RoleServer), nil
}

// TranscriptHashForHandshake adapts acipcrypto.TranscriptHash to the ACIP
// handshake's field set. Nonces are omitted from the transcript (ACIP binds
// transcripts via the ephemeral keys and session id, not separate handshake
// nonces) by passing zero values, keeping one canonical transcript function
// shared with the rekey exchange in rekey.go. The identity-challenge
// signatures do not use it; they sign the raw ephemeral keys and nonce.
//
// clientPub is always the client-role side's ephemeral key regardless of
// which endpoint is computing the hash: both peers must produce the
// identical transcript or the derived keys will not match. The Role field
// is pinned to zero for the same reason.
func TranscriptHashForHandshake(sessionID string, clientFeatures, serverFeatures uint32, clientPub, serverPub []byte) ([32]byte, error) {
	return acipcrypto.TranscriptHash(acipcrypto.TranscriptInputs{
		Version:        ProtocolVersion,
		Suite:          uint16(acipcrypto.SuiteX25519XSalsa20Poly1305),
		ClientFeatures: clientFeatures,
		ServerFeatures: serverFeatures,
		SessionID:      sessionID,
		ClientEphPub:   clientPub,
		ServerEphPub:   serverPub,
	})
}
