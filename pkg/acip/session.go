package acip

import (
	"context"
	"sync"

	"github.com/ascii-chat/acip-core/internal/acerrors"
	"github.com/ascii-chat/acip-core/pkg/acipcrypto"
	"github.com/ascii-chat/acip-core/pkg/acipframe"
	"github.com/ascii-chat/acip-core/pkg/aciptransport"
)

// Session is a READY ACIP connection: a transport plus the derived
// per-direction AEAD keys, nonce counters, and session salt. All packets
// sent/received through a Session after the handshake are encrypted.
//
// Invariants: nonces are monotonic and never
// reused; keys are zeroed on Close; at most one sender and one receiver use
// a Session's counters at a time (callers must serialize per direction,
// matching the per-client receive/send worker pair in pkg/acipsession).
type Session struct {
	Transport aciptransport.Transport
	ClientID  uint32

	// sendMu serializes entire send operations so counter assignment and
	// the frame write stay in the same order on the wire; mu alone only
	// protects field access.
	sendMu sync.Mutex

	mu         sync.Mutex
	sendKey    [32]byte
	recvKey    [32]byte
	salt       acipcrypto.NonceSalt
	sendCount  uint64
	recvCount  uint64
	rekeyCount int
}

// NewSession wraps a transport with derived session keys after a successful handshake.
func NewSession(tr aciptransport.Transport, clientID uint32, keys acipcrypto.SessionKeys, salt acipcrypto.NonceSalt, role Role) *Session {
	s := &Session{Transport: tr, ClientID: clientID, salt: salt}
	if role == RoleClient {
		s.sendKey = keys.C2SKey
		s.recvKey = keys.S2CKey
	} else {
		s.sendKey = keys.S2CKey
		s.recvKey = keys.C2SKey
	}
	return s
}

// ShouldRekey reports whether the send counter has crossed the rekey
// threshold and a REKEY_REQUEST should be issued before further sends.
func (s *Session) ShouldRekey() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return acipcrypto.ShouldRekey(s.sendCount)
}

// Rekey installs a freshly derived key pair and resets both nonce counters,
// following a successful REKEY_REQUEST/RESPONSE exchange performed inside
// the still-live encrypted channel.
func (s *Session) Rekey(keys acipcrypto.SessionKeys, salt acipcrypto.NonceSalt, role Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if role == RoleClient {
		s.sendKey = keys.C2SKey
		s.recvKey = keys.S2CKey
	} else {
		s.sendKey = keys.S2CKey
		s.recvKey = keys.C2SKey
	}
	s.salt = salt
	s.sendCount = 0
	s.recvCount = 0
	s.rekeyCount++
}

// Send encrypts payload and transmits it as packet type t, stamping the
// frame header's client_id with this Session's own connection id.
func (s *Session) Send(ctx context.Context, t PacketType, payload []byte) error {
	return s.SendAs(ctx, t, s.ClientID, payload)
}

// SendAs encrypts payload and transmits it as packet type t, stamping the
// frame header's client_id with originatorID rather than this Session's own
// id. The fan-out engine uses this to relay a media packet to a subscriber
// while preserving the id of the peer that produced it.
func (s *Session) SendAs(ctx context.Context, t PacketType, originatorID uint32, payload []byte) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.mu.Lock()
	counter := s.sendCount
	s.sendCount++
	key := s.sendKey
	salt := s.salt
	s.mu.Unlock()

	ciphertext, err := acipcrypto.Encrypt(key, counter, salt, payload)
	if err != nil {
		return err
	}
	frame, err := acipframe.Encode(uint16(t), originatorID, ciphertext)
	if err != nil {
		return err
	}
	result, err := s.Transport.Send(ctx, frame)
	if err != nil {
		return err
	}
	if result != aciptransport.SendOK {
		return aciptransport.ErrNotConnected
	}
	return nil
}

// Recv blocks for the next frame and decrypts its payload.
func (s *Session) Recv(ctx context.Context) (PacketType, []byte, error) {
	t, _, payload, err := s.RecvFrom(ctx)
	return t, payload, err
}

// RecvFrom is Recv plus the frame header's originating client id, which the
// fan-out engine preserves when relaying another participant's media.
func (s *Session) RecvFrom(ctx context.Context) (PacketType, uint32, []byte, error) {
	frame, err := s.Transport.Recv(ctx)
	if err != nil {
		return 0, 0, nil, err
	}
	pkt, err := acipframe.DecodeBytes(frame)
	if err != nil {
		return 0, 0, nil, err
	}

	s.mu.Lock()
	counter := s.recvCount
	key := s.recvKey
	salt := s.salt
	s.mu.Unlock()

	plaintext, err := acipcrypto.Decrypt(key, counter, salt, pkt.Payload)
	if err != nil {
		// A payload too short to carry the AEAD tag cannot be ciphertext at
		// all: the peer sent plaintext on an encrypted channel.
		if len(pkt.Payload) < acipcrypto.MinCiphertextLen {
			return 0, 0, nil, acerrors.Wrap(acerrors.StageCrypto, acerrors.CodeEncryptionPolicyViolation, err)
		}
		return 0, 0, nil, err
	}
	s.mu.Lock()
	s.recvCount++
	s.mu.Unlock()

	return PacketType(pkt.Type), pkt.ClientID, plaintext, nil
}

// Close tears down the underlying transport and zeroes key material.
func (s *Session) Close() error {
	s.mu.Lock()
	for i := range s.sendKey {
		s.sendKey[i] = 0
	}
	for i := range s.recvKey {
		s.recvKey[i] = 0
	}
	s.mu.Unlock()
	return s.Transport.Close()
}
