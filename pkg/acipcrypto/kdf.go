package acipcrypto

import (
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// EphemeralKeypair is a per-handshake X25519 keypair.
type EphemeralKeypair struct {
	Priv *ecdh.PrivateKey
	Pub  []byte // 32-byte X25519 public key.
}

// GenerateEphemeral creates a fresh X25519 keypair for one handshake attempt.
func GenerateEphemeral() (*EphemeralKeypair, error) {
	priv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &EphemeralKeypair{Priv: priv, Pub: priv.PublicKey().Bytes()}, nil
}

// ParsePublicKey parses a 32-byte peer X25519 public key.
func ParsePublicKey(pub []byte) (*ecdh.PublicKey, error) {
	return ecdh.X25519().NewPublicKey(pub)
}

// DeriveShared computes the raw X25519 shared secret.
func DeriveShared(priv *ecdh.PrivateKey, peerPub *ecdh.PublicKey) ([]byte, error) {
	return priv.ECDH(peerPub)
}

// SessionKeys holds the derived bidirectional AEAD keys for a connection.
type SessionKeys struct {
	C2SKey [32]byte
	S2CKey [32]byte
}

// DeriveSessionKeys expands an X25519 shared secret (bound to the handshake
// transcript) into distinct client-to-server and server-to-client keys using
// a labeled HKDF-SHA256: extract once, expand per label.
func DeriveSessionKeys(sharedSecret []byte, transcriptHash [32]byte) (SessionKeys, error) {
	ikm := make([]byte, 0, len(sharedSecret)+len(transcriptHash))
	ikm = append(ikm, sharedSecret...)
	ikm = append(ikm, transcriptHash[:]...)

	var out SessionKeys
	if err := expandLabel(ikm, "acip-v1:c2s:key", out.C2SKey[:]); err != nil {
		return SessionKeys{}, err
	}
	if err := expandLabel(ikm, "acip-v1:s2c:key", out.S2CKey[:]); err != nil {
		return SessionKeys{}, err
	}
	return out, nil
}

func expandLabel(ikm []byte, label string, out []byte) error {
	r := hkdf.New(sha256.New, ikm, nil, []byte(label))
	_, err := io.ReadFull(r, out)
	return err
}

// DeriveNonceSalt derives the shared 16-byte per-session nonce salt from
// the same secret and transcript the session keys come from, so both peers
// hold an identical salt without transmitting it. Combined with distinct
// per-direction keys, a shared salt never yields a (key, nonce) collision.
func DeriveNonceSalt(sharedSecret []byte, transcriptHash [32]byte) (NonceSalt, error) {
	ikm := make([]byte, 0, len(sharedSecret)+len(transcriptHash))
	ikm = append(ikm, sharedSecret...)
	ikm = append(ikm, transcriptHash[:]...)

	var salt NonceSalt
	if err := expandLabel(ikm, "acip-v1:nonce:salt", salt[:]); err != nil {
		return NonceSalt{}, err
	}
	return salt, nil
}

// RandomSalt returns a fresh 16-byte nonce salt, for contexts with no
// shared transcript to derive one from.
func RandomSalt() ([16]byte, error) {
	var salt [16]byte
	_, err := rand.Read(salt[:])
	return salt, err
}
