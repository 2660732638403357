// Package acipcrypto implements the ACIP crypto engine: X25519 ephemeral key
// agreement, a labeled HKDF deriving distinct per-direction record keys,
// XSalsa20-Poly1305 AEAD sealing with a 64-bit monotonic counter + random
// session salt nonce, and Ed25519 (or SSH/GPG-derived) identity signatures.
package acipcrypto

import "errors"

var (
	// ErrInvalidKeySize indicates a key or nonce component had the wrong length.
	ErrInvalidKeySize = errors.New("acipcrypto: invalid key size")
	// ErrAuthFail indicates AEAD decryption failed (tampered or wrong key).
	ErrAuthFail = errors.New("acipcrypto: auth fail")
	// ErrNonceWrap indicates the send counter would wrap; caller must rekey first.
	ErrNonceWrap = errors.New("acipcrypto: nonce counter exhausted, rekey required")
	// ErrUnsupportedSuite indicates an unrecognized suite identifier.
	ErrUnsupportedSuite = errors.New("acipcrypto: unsupported suite")
)

// Suite identifies the key-agreement curve. ACIP currently defines one.
type Suite uint16

const (
	// SuiteX25519XSalsa20Poly1305 is the only defined suite: X25519 ECDH +
	// XSalsa20-Poly1305 AEAD.
	SuiteX25519XSalsa20Poly1305 Suite = 1
)

// rekeyThresholdNum/rekeyThresholdDen is the fraction of the nonce counter
// budget that triggers a REKEY_REQUEST: 75% = 3/4.
const rekeyThresholdNum, rekeyThresholdDen = 3, 4

// MaxCounter is the largest nonce counter value before a rekey is mandatory.
const MaxCounter uint64 = 1<<63 - 1

// ShouldRekey reports whether the send counter has crossed the 75% high-water mark.
func ShouldRekey(counter uint64) bool {
	// counter >= MaxCounter * 3/4, computed to avoid overflow.
	return counter >= (MaxCounter/rekeyThresholdDen)*rekeyThresholdNum
}
