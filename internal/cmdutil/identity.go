package cmdutil

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ascii-chat/acip-core/internal/base64url"
	"github.com/ascii-chat/acip-core/internal/securefile"
	"github.com/ascii-chat/acip-core/pkg/acip"
)

// identityFileV1 is the on-disk JSON encoding of a persisted Ed25519
// identity keypair, used by acichat-server's --identity-file flag.
type identityFileV1 struct {
	Public  string `json:"public"`  // base64url, no padding
	Private string `json:"private"` // base64url, no padding
}

// LoadOrCreateIdentity loads the Ed25519 identity keypair stored at path,
// generating and persisting a fresh one if the file does not exist. When
// force is true, an existing file is overwritten with a freshly generated
// keypair instead of being loaded.
//
// An empty path is a configuration error: callers that offer an
// --identity-file flag should validate it is set before calling this.
func LoadOrCreateIdentity(path string, force bool) (*acip.IdentityKeypair, error) {
	if path == "" {
		return nil, &UsageError{Msg: "identity file path must not be empty"}
	}

	if !force {
		if kp, err := loadIdentity(path); err == nil {
			return kp, nil
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if err := RefuseOverwrite(path, force); err != nil {
		return nil, err
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate identity: %w", err)
	}
	if err := saveIdentity(path, pub, priv); err != nil {
		return nil, err
	}
	return &acip.IdentityKeypair{Public: pub, Private: priv}, nil
}

func loadIdentity(path string) (*acip.IdentityKeypair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec identityFileV1
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse identity file %s: %w", path, err)
	}
	pub, err := base64url.Decode(rec.Public)
	if err != nil {
		return nil, fmt.Errorf("decode identity public key: %w", err)
	}
	priv, err := base64url.Decode(rec.Private)
	if err != nil {
		return nil, fmt.Errorf("decode identity private key: %w", err)
	}
	if len(pub) != ed25519.PublicKeySize || len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("identity file %s: malformed key sizes", path)
	}
	return &acip.IdentityKeypair{Public: ed25519.PublicKey(pub), Private: ed25519.PrivateKey(priv)}, nil
}

func saveIdentity(path string, pub ed25519.PublicKey, priv ed25519.PrivateKey) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := securefile.MkdirAllOwnerOnly(dir); err != nil {
			return fmt.Errorf("create identity directory: %w", err)
		}
	}
	rec := identityFileV1{
		Public:  base64url.Encode(pub),
		Private: base64url.Encode(priv),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	// 0600: the private key must not be world- or group-readable.
	if err := securefile.WriteFileAtomic(path, data, 0o600); err != nil {
		return fmt.Errorf("write identity file %s: %w", path, err)
	}
	return nil
}
