package acipsession

import (
	"context"
	"errors"

	"github.com/ascii-chat/acip-core/internal/acerrors"
	"github.com/ascii-chat/acip-core/pkg/acip"
	"github.com/ascii-chat/acip-core/pkg/acipcrypto"
	"github.com/ascii-chat/acip-core/pkg/aciptransport"
)

// eventKindForType maps a packet type to the rate-limiter bucket it draws
// from.
func eventKindForType(t acip.PacketType) EventKind {
	switch t {
	case acip.TypeImageFrame:
		return EventImageFrame
	case acip.TypeAudioBatch, acip.TypeAudioOpusBatch:
		return EventAudio
	case acip.TypePing, acip.TypePong:
		return EventPing
	case acip.TypeClientJoin:
		return EventClientJoin
	default:
		return EventControl
	}
}

// ReceiveWorker is the sole reader of client's encrypted session: it
// decrypts and parses each packet, enforces the client's rate limiter,
// fans out media packets, and dispatches everything else through table.
// It owns client's decryption counters exclusively, so nonces cannot be
// racily consumed. It returns when the context is canceled, the client is
// marked done, or the transport fails.
func ReceiveWorker(ctx context.Context, reg *Registry, client *Client, table *acip.HandlerTable, obs Observer) LeaveReason {
	if obs == nil {
		obs = NoopObserver
	}
	for {
		select {
		case <-client.Done():
			return LeaveReasonGraceful
		case <-ctx.Done():
			return LeaveReasonServerShutdown
		default:
		}

		t, payload, err := client.Session.Recv(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return LeaveReasonServerShutdown
			}
			if errors.Is(err, aciptransport.ErrEOF) || errors.Is(err, aciptransport.ErrNotConnected) {
				return LeaveReasonIOError
			}
			if acerrors.Is(err, acerrors.CodeEncryptionPolicyViolation) {
				sendErrorPacket(client, acip.ErrorEncryptionPolicyViolation, "plaintext on encrypted channel")
				return LeaveReasonProtocolViolation
			}
			if errors.Is(err, acipcrypto.ErrAuthFail) {
				return LeaveReasonCryptoFailure
			}
			return LeaveReasonIOError
		}

		client.Touch()

		if !client.Rate.Allow(eventKindForType(t)) {
			obs.RateLimited(client.ID, eventKindForType(t))
			sendErrorPacket(client, acip.ErrorRateLimited, "rate limited")
			continue
		}

		if kind, ok := streamKindForType(t); ok {
			_, _ = FanOut(reg, client, Envelope{Type: t, Payload: payload, Originator: client.ID, Kind: kind}, obs)
			continue
		}

		if err := table.Dispatch(t, client.ID, payload); err != nil {
			if acerrors.Is(err, acerrors.CodeProtocolViolation) {
				sendErrorPacket(client, acip.ErrorProtocolViolation, "unknown packet type")
				return LeaveReasonProtocolViolation
			}
			return LeaveReasonIOError
		}
	}
}

// sendErrorPacket enqueues an ERROR packet for the client on the reserved
// control queue. Control packets are never dropped, so when that queue is
// full the receive loop waits in PushControl until the send worker frees a
// slot or the queue is closed.
func sendErrorPacket(client *Client, code acip.ErrorCode, msg string) {
	errPayload, err := acip.ErrorPayload{Code: code, Message: msg}.Encode()
	if err != nil {
		return
	}
	client.Queue.PushControl(Envelope{Type: acip.TypeError, Payload: errPayload, Originator: 0})
}

// SendWorker drains client.Queue and transmits each envelope in order. It is
// the only writer of client's encrypted session apart from REKEY_RESPONSE,
// which the handler table sends directly. It returns when the
// queue is closed or the transport fails fatally.
func SendWorker(ctx context.Context, client *Client) LeaveReason {
	for {
		env, ok := client.Queue.Pop()
		if !ok {
			return LeaveReasonGraceful
		}
		originator := env.Originator
		if originator == 0 {
			originator = client.ID
		}
		if err := client.Session.SendAs(ctx, env.Type, originator, env.Payload); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return LeaveReasonServerShutdown
			}
			return LeaveReasonIOError
		}
	}
}
