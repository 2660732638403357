package acip

import "github.com/ascii-chat/acip-core/internal/acerrors"

// Handler processes one decrypted packet's payload for a given session.
// senderID is the originating client id (0 for server-originated packets
// before a client has joined).
type Handler func(senderID uint32, payload []byte) error

// HandlerTable is a per-role dispatch table keyed by packet type.
type HandlerTable struct {
	role     Role
	handlers map[PacketType]Handler
}

// NewHandlerTable creates an empty dispatch table for the given endpoint role.
func NewHandlerTable(role Role) *HandlerTable {
	return &HandlerTable{role: role, handlers: make(map[PacketType]Handler)}
}

// On registers a handler for a packet type.
func (h *HandlerTable) On(t PacketType, fn Handler) {
	h.handlers[t] = fn
}

// Dispatch routes one decrypted packet to its registered handler.
//
// A type below ForwardCompatThreshold with no registered handler is a
// protocol violation; a type at or above the threshold is silently ignored,
// to allow forward-compatible extensions.
func (h *HandlerTable) Dispatch(t PacketType, senderID uint32, payload []byte) error {
	fn, ok := h.handlers[t]
	if !ok {
		if t.IsForwardCompatible() {
			return nil
		}
		return acerrors.Wrap(acerrors.StageProtocol, acerrors.CodeProtocolViolation, nil)
	}
	return fn(senderID, payload)
}
