// Package base64url encodes binary key material for this module's on-disk
// JSON records (identity keypairs). Unpadded URL-safe base64 keeps the
// values greppable and safe to paste into shells and URLs.
package base64url

import "encoding/base64"

// Encode returns the unpadded URL-safe base64 form of b.
func Encode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// Decode reverses Encode. Padded or standard-alphabet input is rejected.
func Decode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}
