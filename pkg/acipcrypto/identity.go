package acipcrypto

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/openpgp"
	"golang.org/x/crypto/openpgp/packet"
	"golang.org/x/crypto/ssh"
)

// IdentityFormat names the encoding a long-term identity public key arrived
// in. All three formats collapse to the same 32-byte Ed25519 representation
// used for challenge signing and verification.
type IdentityFormat string

const (
	IdentityFormatRaw IdentityFormat = "ed25519-raw" // bare 32-byte Ed25519 public key
	IdentityFormatSSH IdentityFormat = "ssh"         // "ssh-ed25519 AAAA..." authorized_keys line
	IdentityFormatGPG IdentityFormat = "gpg"         // ASCII-armored OpenPGP public key, EdDSA primary key
)

var (
	// ErrUnsupportedIdentityFormat indicates an IdentityFormat this package cannot parse.
	ErrUnsupportedIdentityFormat = errors.New("acipcrypto: unsupported identity format")
	// ErrNotEd25519Key indicates a parsed key used an algorithm other than Ed25519.
	ErrNotEd25519Key = errors.New("acipcrypto: identity key is not Ed25519")
	// ErrSignatureInvalid indicates sign_challenge verification failed.
	ErrSignatureInvalid = errors.New("acipcrypto: identity signature invalid")
)

// ParseIdentityPublicKey normalizes a long-term identity public key, however
// it was configured, into ed25519.PublicKey for use with VerifySignature.
func ParseIdentityPublicKey(format IdentityFormat, data []byte) (ed25519.PublicKey, error) {
	switch format {
	case IdentityFormatRaw:
		if len(data) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("acipcrypto: raw identity key must be %d bytes", ed25519.PublicKeySize)
		}
		return ed25519.PublicKey(data), nil

	case IdentityFormatSSH:
		pk, _, _, _, err := ssh.ParseAuthorizedKey(data)
		if err != nil {
			return nil, fmt.Errorf("acipcrypto: parse ssh identity key: %w", err)
		}
		cpk, ok := pk.(ssh.CryptoPublicKey)
		if !ok {
			return nil, ErrNotEd25519Key
		}
		edPub, ok := cpk.CryptoPublicKey().(ed25519.PublicKey)
		if !ok {
			return nil, ErrNotEd25519Key
		}
		return edPub, nil

	case IdentityFormatGPG:
		keyring, err := openpgp.ReadArmoredKeyRing(strings.NewReader(string(data)))
		if err != nil {
			return nil, fmt.Errorf("acipcrypto: parse gpg identity key: %w", err)
		}
		if len(keyring) == 0 || keyring[0].PrimaryKey == nil {
			return nil, errors.New("acipcrypto: gpg keyring has no primary key")
		}
		pubKey := keyring[0].PrimaryKey
		if pubKey.PubKeyAlgo != packet.PubKeyAlgoEdDSA {
			return nil, ErrNotEd25519Key
		}
		edPub, ok := pubKey.PublicKey.(ed25519.PublicKey)
		if !ok {
			return nil, ErrNotEd25519Key
		}
		return edPub, nil

	default:
		return nil, ErrUnsupportedIdentityFormat
	}
}

// SignChallenge signs a server- or client-issued handshake nonce with the
// local long-term identity key, proving possession of the private key
// without revealing it.
func SignChallenge(priv ed25519.PrivateKey, nonce []byte) []byte {
	return ed25519.Sign(priv, nonce)
}

// VerifySignature checks a sign_challenge signature against the peer's
// long-term identity public key.
func VerifySignature(pub ed25519.PublicKey, nonce, sig []byte) error {
	if !ed25519.Verify(pub, nonce, sig) {
		return ErrSignatureInvalid
	}
	return nil
}
