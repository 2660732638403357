package acip

import (
	"context"

	"github.com/ascii-chat/acip-core/pkg/acipframe"
	"github.com/ascii-chat/acip-core/pkg/aciptransport"
)

// SendPacket frames and sends one plaintext (pre-READY) handshake packet.
func SendPacket(ctx context.Context, tr aciptransport.Transport, t PacketType, clientID uint32, payload []byte) error {
	frame, err := acipframe.Encode(uint16(t), clientID, payload)
	if err != nil {
		return err
	}
	result, err := tr.Send(ctx, frame)
	if err != nil {
		return err
	}
	if result != aciptransport.SendOK {
		return aciptransport.ErrNotConnected
	}
	return nil
}

// RecvPacket blocks for the next plaintext (pre-READY) handshake packet.
func RecvPacket(ctx context.Context, tr aciptransport.Transport) (PacketType, uint32, []byte, error) {
	frame, err := tr.Recv(ctx)
	if err != nil {
		return 0, 0, nil, err
	}
	pkt, err := acipframe.DecodeBytes(frame)
	if err != nil {
		return 0, 0, nil, err
	}
	return PacketType(pkt.Type), pkt.ClientID, pkt.Payload, nil
}
