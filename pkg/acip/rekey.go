package acip

import (
	"context"
	"crypto/ecdh"

	"github.com/ascii-chat/acip-core/pkg/acipcrypto"
)

// InitiateRekey runs the initiator side of a REKEY_REQUEST/RESPONSE
// exchange: a fresh ephemeral key agreement conducted inside the still-live
// encrypted channel, typically once the send counter reaches 75% of its
// safe budget. On success it installs the new keys on sess and resets both
// nonce counters.
func InitiateRekey(ctx context.Context, sess *Session, sessionID string, role Role) error {
	eph, err := acipcrypto.GenerateEphemeral()
	if err != nil {
		return err
	}
	if err := sess.Send(ctx, TypeRekeyRequest, eph.Pub); err != nil {
		return err
	}
	t, payload, err := sess.Recv(ctx)
	if err != nil {
		return err
	}
	if t != TypeRekeyResponse {
		return ErrUnexpectedPacketType
	}
	peerPub, err := acipcrypto.ParsePublicKey(payload)
	if err != nil {
		return err
	}
	return installRekeyedSession(sess, eph, peerPub, sessionID, role)
}

// RespondToRekey runs the responder side of the same exchange: it is called
// once the receive loop observes a REKEY_REQUEST packet, whose payload is
// the initiator's fresh ephemeral public key.
func RespondToRekey(ctx context.Context, sess *Session, requestPayload []byte, sessionID string, role Role) error {
	eph, err := acipcrypto.GenerateEphemeral()
	if err != nil {
		return err
	}
	peerPub, err := acipcrypto.ParsePublicKey(requestPayload)
	if err != nil {
		return err
	}
	if err := sess.Send(ctx, TypeRekeyResponse, eph.Pub); err != nil {
		return err
	}
	return installRekeyedSession(sess, eph, peerPub, sessionID, role)
}

func installRekeyedSession(sess *Session, eph *acipcrypto.EphemeralKeypair, peerPub *ecdh.PublicKey, sessionID string, role Role) error {
	shared, err := acipcrypto.DeriveShared(eph.Priv, peerPub)
	if err != nil {
		return err
	}
	// The transcript orders ephemerals by role, not by who initiated, so
	// both peers hash the identical byte string.
	clientPub, serverPub := eph.Pub, peerPub.Bytes()
	if role == RoleServer {
		clientPub, serverPub = serverPub, clientPub
	}
	transcript, err := TranscriptHashForHandshake(sessionID, 0, 0, clientPub, serverPub)
	if err != nil {
		return err
	}
	keys, err := acipcrypto.DeriveSessionKeys(shared, transcript)
	if err != nil {
		return err
	}
	salt, err := acipcrypto.DeriveNonceSalt(shared, transcript)
	if err != nil {
		return err
	}
	sess.Rekey(keys, salt, role)
	return nil
}
