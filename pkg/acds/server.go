package acds

import (
	"context"

	"github.com/ascii-chat/acip-core/pkg/acip"
	"github.com/ascii-chat/acip-core/pkg/aciptransport"
)

// HandleConnection services one discovery-service client connection: it
// expects exactly one SESSION_CREATE or SESSION_JOIN packet, performs the
// corresponding registry operation, replies with SESSION_CREATED or
// SESSION_JOINED, and returns. Discovery exchanges are single-shot lookups
// rather than a long-lived encrypted session, so they ride the plaintext
// ACIP framing (acip.SendPacket/RecvPacket) used for the pre-handshake
// phase elsewhere in this module.
func HandleConnection(ctx context.Context, tr aciptransport.Transport, reg *Registry) error {
	t, _, payload, err := acip.RecvPacket(ctx, tr)
	if err != nil {
		return err
	}

	switch t {
	case acip.TypeSessionCreate:
		return handleCreate(ctx, tr, reg, payload)
	case acip.TypeSessionJoin:
		return handleJoin(ctx, tr, reg, payload)
	default:
		errPayload, _ := acip.ErrorPayload{Code: acip.ErrorProtocolViolation, Message: "expected SESSION_CREATE or SESSION_JOIN"}.Encode()
		return acip.SendPacket(ctx, tr, acip.TypeError, 0, errPayload)
	}
}

func handleCreate(ctx context.Context, tr aciptransport.Transport, reg *Registry, payload []byte) error {
	req, err := acip.DecodeSessionCreate(payload)
	if err != nil {
		errPayload, _ := acip.ErrorPayload{Code: acip.ErrorInvalidParam, Message: err.Error()}.Encode()
		return acip.SendPacket(ctx, tr, acip.TypeError, 0, errPayload)
	}

	sessionString, ttl, err := reg.CreateSession(CreateParams{
		Type:            req.Type,
		Capabilities:    req.Capabilities,
		MaxParticipants: req.MaxParticipants,
		ServerAddr:      req.ServerAddr,
		ServerPort:      req.ServerPort,
		ExposeIP:        req.ExposeIP,
		PasswordHash:    req.PasswordHash,
	})
	if err != nil {
		errPayload, _ := acip.ErrorPayload{Code: acip.ErrorInternal, Message: err.Error()}.Encode()
		return acip.SendPacket(ctx, tr, acip.TypeError, 0, errPayload)
	}

	resp := acip.SessionCreatedPayload{SessionString: sessionString, TTLSeconds: uint32(ttl.Seconds())}
	return acip.SendPacket(ctx, tr, acip.TypeSessionCreated, 0, resp.Encode())
}

func handleJoin(ctx context.Context, tr aciptransport.Transport, reg *Registry, payload []byte) error {
	req, err := acip.DecodeSessionJoin(payload)
	if err != nil {
		errPayload, _ := acip.ErrorPayload{Code: acip.ErrorInvalidParam, Message: err.Error()}.Encode()
		return acip.SendPacket(ctx, tr, acip.TypeError, 0, errPayload)
	}

	result, err := reg.JoinSession(req.SessionString, req.Password)
	if err != nil {
		errPayload, _ := acip.ErrorPayload{Code: acip.ErrorInternal, Message: err.Error()}.Encode()
		return acip.SendPacket(ctx, tr, acip.TypeError, 0, errPayload)
	}

	resp := acip.SessionJoinedPayload{
		Success:      result.Success,
		ErrCode:      result.ErrCode,
		Type:         result.Type,
		ServerAddr:   result.ServerAddr,
		ServerPort:   result.ServerPort,
		TurnUsername: result.TurnUsername,
		TurnPassword: result.TurnPassword,
	}
	return acip.SendPacket(ctx, tr, acip.TypeSessionJoined, 0, resp.Encode())
}
