package acip

import (
	"testing"

	"github.com/ascii-chat/acip-core/internal/acerrors"
)

func TestDispatchRoutesRegisteredHandler(t *testing.T) {
	table := NewHandlerTable(RoleServer)
	var gotSender uint32
	var gotPayload []byte
	table.On(TypePing, func(senderID uint32, payload []byte) error {
		gotSender = senderID
		gotPayload = payload
		return nil
	})
	if err := table.Dispatch(TypePing, 42, []byte("nonce")); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if gotSender != 42 || string(gotPayload) != "nonce" {
		t.Fatalf("handler did not receive expected args: sender=%d payload=%q", gotSender, gotPayload)
	}
}

func TestDispatchUnknownLowTypeIsProtocolViolation(t *testing.T) {
	table := NewHandlerTable(RoleServer)
	err := table.Dispatch(PacketType(0x0099), 1, nil)
	if !acerrors.Is(err, acerrors.CodeProtocolViolation) {
		t.Fatalf("want protocol violation, got %v", err)
	}
}

func TestDispatchForwardCompatibleTypeIgnored(t *testing.T) {
	table := NewHandlerTable(RoleServer)
	if err := table.Dispatch(PacketType(0x9000), 1, nil); err != nil {
		t.Fatalf("expected forward-compatible type to be silently ignored, got %v", err)
	}
}
