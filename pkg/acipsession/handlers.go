package acipsession

import (
	"context"

	"github.com/ascii-chat/acip-core/pkg/acip"
)

// BuildServerHandlerTable wires the packet types a joined client exchanges
// with the server outside of media fan-out: PING/PONG, STREAM_START/STOP
// subscription changes, CLIENT_CAPABILITIES renegotiation, CLIENT_LEAVE,
// and REKEY_REQUEST. The PING handler enqueues its PONG onto the client's
// own send queue rather than writing the transport directly. The
// REKEY_REQUEST handler does not: acip.RespondToRekey sends REKEY_RESPONSE
// on client.Session itself, from the receive worker's goroutine.
func BuildServerHandlerTable(ctx context.Context, reg *Registry, client *Client, obs Observer, sessionID string) *acip.HandlerTable {
	if obs == nil {
		obs = NoopObserver
	}
	table := acip.NewHandlerTable(acip.RoleServer)

	table.On(acip.TypePing, func(senderID uint32, payload []byte) error {
		ping, err := acip.DecodePing(payload)
		if err != nil {
			return err
		}
		pong := acip.PongPayload{Nonce: ping.Nonce}
		client.Queue.PushControl(Envelope{Type: acip.TypePong, Payload: pong.Encode()})
		return nil
	})

	table.On(acip.TypeStreamStart, func(senderID uint32, payload []byte) error {
		p, err := acip.DecodeStreamStart(payload)
		if err != nil {
			return err
		}
		client.Subscribe(p.Kind)
		return nil
	})

	table.On(acip.TypeStreamStop, func(senderID uint32, payload []byte) error {
		p, err := acip.DecodeStreamStop(payload)
		if err != nil {
			return err
		}
		client.Unsubscribe(p.Kind)
		return nil
	})

	table.On(acip.TypeClientCapabilities, func(senderID uint32, payload []byte) error {
		p, err := acip.DecodeClientCapabilities(payload)
		if err != nil {
			return err
		}
		client.SetCapabilities(p.Capabilities)
		return nil
	})

	table.On(acip.TypeClientLeave, func(senderID uint32, payload []byte) error {
		client.MarkDone()
		return nil
	})

	table.On(acip.TypeRekeyRequest, func(senderID uint32, payload []byte) error {
		return acip.RespondToRekey(ctx, client.Session, payload, sessionID, acip.RoleServer)
	})

	return table
}

// BroadcastLeave synthesizes a CLIENT_LEAVE notification to every remaining
// live client when leftID disconnects, gracefully or otherwise.
func BroadcastLeave(reg *Registry, leftID ClientID) {
	payload := acip.ClientJoinPayload{}.Encode() // empty display-name/caps carrier for the leave notice
	for _, c := range reg.Snapshot() {
		if c.ID == leftID {
			continue
		}
		c.Queue.PushControl(Envelope{Type: acip.TypeClientLeave, Payload: payload, Originator: leftID})
	}
}

// BroadcastJoin announces a newly-joined client to every other live client,
// the counterpart of BroadcastLeave, so existing participants learn a new
// peer's display name/capabilities without polling the registry.
func BroadcastJoin(reg *Registry, joined *Client) {
	payload := acip.ClientJoinPayload{DisplayName: joined.DisplayName, Capabilities: joined.Capabilities()}.Encode()
	for _, c := range reg.Snapshot() {
		if c.ID == joined.ID {
			continue
		}
		c.Queue.PushControl(Envelope{Type: acip.TypeClientJoin, Payload: payload, Originator: joined.ID})
	}
}
