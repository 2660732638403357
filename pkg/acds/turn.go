package acds

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // TURN's long-term credential mechanism (RFC 5766 §10.2) mandates HMAC-SHA1.
	"encoding/base64"
	"fmt"
	"time"
)

// turnExpirySkew pads TURN credential expiry past the session TTL so a
// relay with a slightly slow clock does not reject still-valid sessions.
const turnExpirySkew = 5 * time.Minute

// turnCredentials derives ephemeral TURN username/password from sessionString
// and secret, following the coturn/RFC 5766 long-term credential convention:
// username is "{expiration_epoch}:{session_string}" and password is the
// base64 encoding of HMAC-SHA1(secret, username). Two calls with the same
// inputs always return identical credentials, since both are a pure function
// of their arguments.
func turnCredentials(sessionString, secret string, expirationEpoch int64) (username, password string) {
	username = fmt.Sprintf("%d:%s", expirationEpoch, sessionString)
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(username))
	password = base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return username, password
}
