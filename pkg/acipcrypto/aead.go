package acipcrypto

import (
	"encoding/binary"

	"golang.org/x/crypto/nacl/secretbox"
)

// NonceSalt is the random per-session component of every nonce, shared by
// both directions but combined with a per-direction monotonic counter so
// send and receive nonces never collide even though the salt repeats.
type NonceSalt [16]byte

// nonce builds the 24-byte XSalsa20-Poly1305 nonce: 8-byte big-endian
// counter || 16-byte session salt. The counter is monotonically increasing
// per direction and must never repeat for a given key.
func nonce(counter uint64, salt NonceSalt) [24]byte {
	var n [24]byte
	binary.BigEndian.PutUint64(n[0:8], counter)
	copy(n[8:24], salt[:])
	return n
}

// Encrypt seals plaintext under key using the given send counter and salt.
// It fails with ErrNonceWrap if counter has reached MaxCounter; the caller
// must rekey before sending further data.
func Encrypt(key [32]byte, counter uint64, salt NonceSalt, plaintext []byte) ([]byte, error) {
	if counter >= MaxCounter {
		return nil, ErrNonceWrap
	}
	n := nonce(counter, salt)
	return secretbox.Seal(nil, plaintext, &n, &key), nil
}

// MinCiphertextLen is the smallest valid sealed message: the Poly1305 tag
// alone. Anything shorter on an encrypted channel was necessarily produced
// outside it.
const MinCiphertextLen = secretbox.Overhead

// Decrypt opens ciphertext under key using the given receive counter and salt.
func Decrypt(key [32]byte, counter uint64, salt NonceSalt, ciphertext []byte) ([]byte, error) {
	n := nonce(counter, salt)
	plain, ok := secretbox.Open(nil, ciphertext, &n, &key)
	if !ok {
		return nil, ErrAuthFail
	}
	return plain, nil
}
