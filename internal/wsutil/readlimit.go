// Package wsutil computes websocket read limits for ACIP connections.
package wsutil

import "github.com/ascii-chat/acip-core/pkg/acipframe"

// ReadLimit returns the per-message websocket read limit in bytes: one full
// ACIP frame, header plus the largest permitted payload. A larger message
// cannot be a legal frame, so gorilla/websocket can abort the read before
// buffering it all.
func ReadLimit() int64 {
	return int64(acipframe.HeaderLen + acipframe.MaxPayloadLen)
}
