package acipcrypto

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
)

// ErrInvalidTranscriptInput signals a missing or oversized transcript field.
var ErrInvalidTranscriptInput = errors.New("acipcrypto: invalid transcript input")

// TranscriptInputs captures the deterministic fields bound into the
// handshake transcript hash, preventing downgrade and key-substitution
// attacks by committing both peers to the exact handshake they negotiated.
type TranscriptInputs struct {
	Version        uint8    // ACIP protocol version byte.
	Suite          uint16   // Numeric crypto suite identifier.
	Role           uint8    // 0 = client, 1 = server.
	ClientFeatures uint32   // Client capability bitset.
	ServerFeatures uint32   // Server capability bitset.
	SessionID      string   // ACDS session string or direct-connect identifier.
	NonceC         [32]byte // Client handshake nonce.
	NonceS         [32]byte // Server handshake nonce.
	ClientEphPub   []byte   // Client ephemeral X25519 public key.
	ServerEphPub   []byte   // Server ephemeral X25519 public key.
}

// TranscriptHash computes the SHA-256 hash of the canonical handshake
// transcript. Both peers compute this independently and feed it into key
// derivation; if the two transcripts differ, the peers derive different keys
// and the first decrypt fails with ErrAuthFail.
//
// Layout:
//
//	"acip-handshake-v1" || version:u8 || suite:u16be || role:u8 ||
//	client_features:u32be || server_features:u32be ||
//	session_id_len:u16be || session_id ||
//	nonce_c(32) || nonce_s(32) ||
//	client_pub_len:u16be || client_pub || server_pub_len:u16be || server_pub
func TranscriptHash(in TranscriptInputs) ([32]byte, error) {
	if in.SessionID == "" {
		return [32]byte{}, ErrInvalidTranscriptInput
	}
	if len(in.ClientEphPub) == 0 || len(in.ServerEphPub) == 0 {
		return [32]byte{}, ErrInvalidTranscriptInput
	}
	sessionIDBytes := []byte(in.SessionID)
	if len(sessionIDBytes) > 0xffff || len(in.ClientEphPub) > 0xffff || len(in.ServerEphPub) > 0xffff {
		return [32]byte{}, ErrInvalidTranscriptInput
	}

	prefix := []byte("acip-handshake-v1")
	size := len(prefix) + 1 + 2 + 1 + 4 + 4 + 2 + len(sessionIDBytes) + 32 + 32 + 2 + len(in.ClientEphPub) + 2 + len(in.ServerEphPub)
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	buf = append(buf, in.Version)

	var u16 [2]byte
	var u32 [4]byte

	binary.BigEndian.PutUint16(u16[:], in.Suite)
	buf = append(buf, u16[:]...)
	buf = append(buf, in.Role)
	binary.BigEndian.PutUint32(u32[:], in.ClientFeatures)
	buf = append(buf, u32[:]...)
	binary.BigEndian.PutUint32(u32[:], in.ServerFeatures)
	buf = append(buf, u32[:]...)
	binary.BigEndian.PutUint16(u16[:], uint16(len(sessionIDBytes)))
	buf = append(buf, u16[:]...)
	buf = append(buf, sessionIDBytes...)
	buf = append(buf, in.NonceC[:]...)
	buf = append(buf, in.NonceS[:]...)
	binary.BigEndian.PutUint16(u16[:], uint16(len(in.ClientEphPub)))
	buf = append(buf, u16[:]...)
	buf = append(buf, in.ClientEphPub...)
	binary.BigEndian.PutUint16(u16[:], uint16(len(in.ServerEphPub)))
	buf = append(buf, u16[:]...)
	buf = append(buf, in.ServerEphPub...)

	return sha256.Sum256(buf), nil
}
