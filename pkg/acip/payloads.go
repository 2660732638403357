package acip

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrTruncatedPayload indicates a payload was shorter than its fixed layout requires.
var ErrTruncatedPayload = errors.New("acip: truncated payload")

// ErrMessageTooLong indicates an ERROR message exceeded the 255-byte wire limit.
var ErrMessageTooLong = errors.New("acip: error message exceeds 255 bytes")

// ClientHelloPayload is CLIENT_HELLO's payload: protocol version and capability set.
type ClientHelloPayload struct {
	ProtocolVersion uint8
	Capabilities    Capability
}

func (p ClientHelloPayload) Encode() []byte {
	buf := make([]byte, 5)
	buf[0] = p.ProtocolVersion
	binary.BigEndian.PutUint32(buf[1:5], uint32(p.Capabilities))
	return buf
}

func DecodeClientHello(b []byte) (ClientHelloPayload, error) {
	if len(b) < 5 {
		return ClientHelloPayload{}, ErrTruncatedPayload
	}
	return ClientHelloPayload{
		ProtocolVersion: b[0],
		Capabilities:    Capability(binary.BigEndian.Uint32(b[1:5])),
	}, nil
}

// KeyExchangeInitPayload is sent by the server with its ephemeral public
// key, a challenge nonce when client identity enforcement is configured,
// and the server's own long-term identity key plus a signature over the
// ephemeral key and nonce, so clients can pin the server against their
// known-hosts store.
type KeyExchangeInitPayload struct {
	EphemeralPub   [32]byte
	ChallengeNonce [32]byte // zero when no identity challenge is requested
	IdentityPub    []byte   // server Ed25519 identity public key; empty when the server has none
	Signature      []byte   // signature over EphemeralPub || ChallengeNonce by IdentityPub
}

func (p KeyExchangeInitPayload) Encode() []byte {
	buf := make([]byte, 0, 64+2+len(p.IdentityPub)+2+len(p.Signature))
	buf = append(buf, p.EphemeralPub[:]...)
	buf = append(buf, p.ChallengeNonce[:]...)
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(p.IdentityPub)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, p.IdentityPub...)
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(p.Signature)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, p.Signature...)
	return buf
}

func DecodeKeyExchangeInit(b []byte) (KeyExchangeInitPayload, error) {
	if len(b) < 68 {
		return KeyExchangeInitPayload{}, ErrTruncatedPayload
	}
	var p KeyExchangeInitPayload
	copy(p.EphemeralPub[:], b[0:32])
	copy(p.ChallengeNonce[:], b[32:64])
	off := 64
	idLen := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	if len(b) < off+idLen+2 {
		return KeyExchangeInitPayload{}, ErrTruncatedPayload
	}
	if idLen > 0 {
		p.IdentityPub = append([]byte(nil), b[off:off+idLen]...)
	}
	off += idLen
	sigLen := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	if len(b) < off+sigLen {
		return KeyExchangeInitPayload{}, ErrTruncatedPayload
	}
	if sigLen > 0 {
		p.Signature = append([]byte(nil), b[off:off+sigLen]...)
	}
	return p, nil
}

// KeyExchangeRespPayload is the client's reply: its ephemeral public key and,
// if an identity challenge was issued, a signature over both ephemerals and
// the nonce.
type KeyExchangeRespPayload struct {
	EphemeralPub [32]byte
	Signature    []byte // ed25519.SignatureSize bytes, or empty when no identity challenge was issued
}

func (p KeyExchangeRespPayload) Encode() []byte {
	buf := make([]byte, 0, 32+2+len(p.Signature))
	buf = append(buf, p.EphemeralPub[:]...)
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(p.Signature)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, p.Signature...)
	return buf
}

func DecodeKeyExchangeResp(b []byte) (KeyExchangeRespPayload, error) {
	if len(b) < 34 {
		return KeyExchangeRespPayload{}, ErrTruncatedPayload
	}
	var p KeyExchangeRespPayload
	copy(p.EphemeralPub[:], b[0:32])
	sigLen := binary.BigEndian.Uint16(b[32:34])
	if len(b) < 34+int(sigLen) {
		return KeyExchangeRespPayload{}, ErrTruncatedPayload
	}
	if sigLen > 0 {
		p.Signature = append([]byte(nil), b[34:34+int(sigLen)]...)
	}
	return p, nil
}

// AuthChallengePayload requests password and/or additional identity proof.
type AuthChallengePayload struct {
	RequiresPassword bool
	Nonce            [32]byte
}

func (p AuthChallengePayload) Encode() []byte {
	buf := make([]byte, 33)
	if p.RequiresPassword {
		buf[0] = 1
	}
	copy(buf[1:33], p.Nonce[:])
	return buf
}

func DecodeAuthChallenge(b []byte) (AuthChallengePayload, error) {
	if len(b) < 33 {
		return AuthChallengePayload{}, ErrTruncatedPayload
	}
	var p AuthChallengePayload
	p.RequiresPassword = b[0] != 0
	copy(p.Nonce[:], b[1:33])
	return p, nil
}

// AuthResponsePayload carries the password and/or identity signature requested by AuthChallengePayload.
type AuthResponsePayload struct {
	Password  string
	Signature []byte
}

func (p AuthResponsePayload) Encode() []byte {
	pwBytes := []byte(p.Password)
	buf := make([]byte, 0, 2+len(pwBytes)+2+len(p.Signature))
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(pwBytes)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, pwBytes...)
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(p.Signature)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, p.Signature...)
	return buf
}

func DecodeAuthResponse(b []byte) (AuthResponsePayload, error) {
	if len(b) < 2 {
		return AuthResponsePayload{}, ErrTruncatedPayload
	}
	pwLen := int(binary.BigEndian.Uint16(b[0:2]))
	if len(b) < 2+pwLen+2 {
		return AuthResponsePayload{}, ErrTruncatedPayload
	}
	pw := string(b[2 : 2+pwLen])
	rest := b[2+pwLen:]
	sigLen := int(binary.BigEndian.Uint16(rest[0:2]))
	if len(rest) < 2+sigLen {
		return AuthResponsePayload{}, ErrTruncatedPayload
	}
	var sig []byte
	if sigLen > 0 {
		sig = append([]byte(nil), rest[2:2+sigLen]...)
	}
	return AuthResponsePayload{Password: pw, Signature: sig}, nil
}

// ClientJoinPayload announces a client's display name and capabilities on join.
type ClientJoinPayload struct {
	DisplayName  string
	Capabilities Capability
}

func (p ClientJoinPayload) Encode() []byte {
	nameBytes := []byte(p.DisplayName)
	buf := make([]byte, 0, 1+len(nameBytes)+4)
	buf = append(buf, byte(len(nameBytes)))
	buf = append(buf, nameBytes...)
	var capBuf [4]byte
	binary.BigEndian.PutUint32(capBuf[:], uint32(p.Capabilities))
	buf = append(buf, capBuf[:]...)
	return buf
}

func DecodeClientJoin(b []byte) (ClientJoinPayload, error) {
	if len(b) < 1 {
		return ClientJoinPayload{}, ErrTruncatedPayload
	}
	nameLen := int(b[0])
	if len(b) < 1+nameLen+4 {
		return ClientJoinPayload{}, ErrTruncatedPayload
	}
	name := string(b[1 : 1+nameLen])
	caps := Capability(binary.BigEndian.Uint32(b[1+nameLen : 1+nameLen+4]))
	return ClientJoinPayload{DisplayName: name, Capabilities: caps}, nil
}

// ClientCapabilitiesPayload updates a joined client's capability bitmask (e.g. after renegotiation).
type ClientCapabilitiesPayload struct {
	Capabilities Capability
}

func (p ClientCapabilitiesPayload) Encode() []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(p.Capabilities))
	return buf
}

func DecodeClientCapabilities(b []byte) (ClientCapabilitiesPayload, error) {
	if len(b) < 4 {
		return ClientCapabilitiesPayload{}, ErrTruncatedPayload
	}
	return ClientCapabilitiesPayload{Capabilities: Capability(binary.BigEndian.Uint32(b[0:4]))}, nil
}

// StreamStartPayload / StreamStopPayload subscribe/unsubscribe a client to a stream kind.
type StreamStartPayload struct {
	Kind StreamKind
}

func (p StreamStartPayload) Encode() []byte { return []byte{byte(p.Kind)} }

func DecodeStreamStart(b []byte) (StreamStartPayload, error) {
	if len(b) < 1 {
		return StreamStartPayload{}, ErrTruncatedPayload
	}
	return StreamStartPayload{Kind: StreamKind(b[0])}, nil
}

type StreamStopPayload struct {
	Kind StreamKind
}

func (p StreamStopPayload) Encode() []byte { return []byte{byte(p.Kind)} }

func DecodeStreamStop(b []byte) (StreamStopPayload, error) {
	if len(b) < 1 {
		return StreamStopPayload{}, ErrTruncatedPayload
	}
	return StreamStopPayload{Kind: StreamKind(b[0])}, nil
}

// ImageFramePayload is IMAGE_FRAME's payload: a header describing the
// pixels, followed by the pixel (or codec-encoded) bytes.
type ImageFramePayload struct {
	Width          uint32
	Height         uint32
	Format         PixelFormat
	CompressedSize uint32
	Timestamp      uint64
	Checksum       uint32
	Pixels         []byte
}

const imageFrameHeaderLen = 4 + 4 + 4 + 4 + 8 + 4

func (p ImageFramePayload) Encode() []byte {
	buf := make([]byte, imageFrameHeaderLen+len(p.Pixels))
	binary.BigEndian.PutUint32(buf[0:4], p.Width)
	binary.BigEndian.PutUint32(buf[4:8], p.Height)
	binary.BigEndian.PutUint32(buf[8:12], uint32(p.Format))
	binary.BigEndian.PutUint32(buf[12:16], p.CompressedSize)
	binary.BigEndian.PutUint64(buf[16:24], p.Timestamp)
	binary.BigEndian.PutUint32(buf[24:28], p.Checksum)
	copy(buf[imageFrameHeaderLen:], p.Pixels)
	return buf
}

func DecodeImageFrame(b []byte) (ImageFramePayload, error) {
	if len(b) < imageFrameHeaderLen {
		return ImageFramePayload{}, ErrTruncatedPayload
	}
	p := ImageFramePayload{
		Width:          binary.BigEndian.Uint32(b[0:4]),
		Height:         binary.BigEndian.Uint32(b[4:8]),
		Format:         PixelFormat(binary.BigEndian.Uint32(b[8:12])),
		CompressedSize: binary.BigEndian.Uint32(b[12:16]),
		Timestamp:      binary.BigEndian.Uint64(b[16:24]),
		Checksum:       binary.BigEndian.Uint32(b[24:28]),
	}
	p.Pixels = append([]byte(nil), b[imageFrameHeaderLen:]...)
	return p, nil
}

// OpusPacket is one length-prefixed Opus frame within an AUDIO_OPUS_BATCH.
type OpusPacket struct {
	Data []byte
}

// AudioOpusBatchPayload is AUDIO_OPUS_BATCH's payload.
type AudioOpusBatchPayload struct {
	SampleRate uint32
	Channels   uint8
	Packets    []OpusPacket
}

func (p AudioOpusBatchPayload) Encode() []byte {
	size := 4 + 1 + 2
	for _, pkt := range p.Packets {
		size += 4 + len(pkt.Data)
	}
	buf := make([]byte, size)
	binary.BigEndian.PutUint32(buf[0:4], p.SampleRate)
	buf[4] = p.Channels
	binary.BigEndian.PutUint16(buf[5:7], uint16(len(p.Packets)))
	off := 7
	for _, pkt := range p.Packets {
		binary.BigEndian.PutUint32(buf[off:off+4], uint32(len(pkt.Data)))
		off += 4
		copy(buf[off:], pkt.Data)
		off += len(pkt.Data)
	}
	return buf
}

func DecodeAudioOpusBatch(b []byte) (AudioOpusBatchPayload, error) {
	if len(b) < 7 {
		return AudioOpusBatchPayload{}, ErrTruncatedPayload
	}
	p := AudioOpusBatchPayload{
		SampleRate: binary.BigEndian.Uint32(b[0:4]),
		Channels:   b[4],
	}
	count := int(binary.BigEndian.Uint16(b[5:7]))
	off := 7
	for i := 0; i < count; i++ {
		if len(b) < off+4 {
			return AudioOpusBatchPayload{}, ErrTruncatedPayload
		}
		n := int(binary.BigEndian.Uint32(b[off : off+4]))
		off += 4
		if len(b) < off+n {
			return AudioOpusBatchPayload{}, ErrTruncatedPayload
		}
		p.Packets = append(p.Packets, OpusPacket{Data: append([]byte(nil), b[off:off+n]...)})
		off += n
	}
	return p, nil
}

// AudioBatchPayload carries raw (uncompressed) PCM audio, for endpoints that
// negotiated no Opus capability.
type AudioBatchPayload struct {
	SampleRate uint32
	Channels   uint8
	PCM        []byte
}

func (p AudioBatchPayload) Encode() []byte {
	buf := make([]byte, 5+len(p.PCM))
	binary.BigEndian.PutUint32(buf[0:4], p.SampleRate)
	buf[4] = p.Channels
	copy(buf[5:], p.PCM)
	return buf
}

func DecodeAudioBatch(b []byte) (AudioBatchPayload, error) {
	if len(b) < 5 {
		return AudioBatchPayload{}, ErrTruncatedPayload
	}
	p := AudioBatchPayload{
		SampleRate: binary.BigEndian.Uint32(b[0:4]),
		Channels:   b[4],
	}
	p.PCM = append([]byte(nil), b[5:]...)
	return p, nil
}

// PingPayload / PongPayload carry a nonce the receiver must echo back.
type PingPayload struct {
	Nonce uint64
}

func (p PingPayload) Encode() []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, p.Nonce)
	return buf
}

func DecodePing(b []byte) (PingPayload, error) {
	if len(b) < 8 {
		return PingPayload{}, ErrTruncatedPayload
	}
	return PingPayload{Nonce: binary.BigEndian.Uint64(b[0:8])}, nil
}

type PongPayload struct {
	Nonce uint64
}

func (p PongPayload) Encode() []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, p.Nonce)
	return buf
}

func DecodePong(b []byte) (PongPayload, error) {
	if len(b) < 8 {
		return PongPayload{}, ErrTruncatedPayload
	}
	return PongPayload{Nonce: binary.BigEndian.Uint64(b[0:8])}, nil
}

// ErrorPayload is ERROR's payload: a taxonomy code plus a short UTF-8 message.
type ErrorPayload struct {
	Code    ErrorCode
	Message string
}

func (p ErrorPayload) Encode() ([]byte, error) {
	msgBytes := []byte(p.Message)
	if len(msgBytes) > 255 {
		return nil, ErrMessageTooLong
	}
	buf := make([]byte, 2+1+len(msgBytes))
	binary.BigEndian.PutUint16(buf[0:2], uint16(p.Code))
	buf[2] = byte(len(msgBytes))
	copy(buf[3:], msgBytes)
	return buf, nil
}

func DecodeError(b []byte) (ErrorPayload, error) {
	if len(b) < 3 {
		return ErrorPayload{}, ErrTruncatedPayload
	}
	code := ErrorCode(binary.BigEndian.Uint16(b[0:2]))
	msgLen := int(b[2])
	if len(b) < 3+msgLen {
		return ErrorPayload{}, ErrTruncatedPayload
	}
	return ErrorPayload{Code: code, Message: string(b[3 : 3+msgLen])}, nil
}

func (p ErrorPayload) Error() string {
	return fmt.Sprintf("acip: %s: %s", p.Code, p.Message)
}

// lpString/readLPString encode/decode a 1-byte-length-prefixed UTF-8 string,
// the same layout ClientJoinPayload uses for DisplayName, reused for every
// discovery-message string field below (none exceed 255 bytes in practice:
// host/port strings, session strings, and Argon2id's encoded hash format).
func lpString(buf []byte, s string) []byte {
	b := []byte(s)
	buf = append(buf, byte(len(b)))
	buf = append(buf, b...)
	return buf
}

func readLPString(b []byte, off int) (string, int, error) {
	if off >= len(b) {
		return "", 0, ErrTruncatedPayload
	}
	n := int(b[off])
	off++
	if off+n > len(b) {
		return "", 0, ErrTruncatedPayload
	}
	return string(b[off : off+n]), off + n, nil
}

// SessionCreatePayload is SESSION_CREATE's payload: a host registering a new
// discovery session.
type SessionCreatePayload struct {
	Type            SessionType
	Capabilities    Capability
	MaxParticipants uint16
	ServerAddr      string
	ServerPort      uint16
	ExposeIP        bool
	PasswordHash    string // empty when the session is unprotected
}

func (p SessionCreatePayload) Encode() []byte {
	buf := make([]byte, 0, 16+len(p.ServerAddr)+len(p.PasswordHash))
	buf = append(buf, byte(p.Type))
	var capBuf [4]byte
	binary.BigEndian.PutUint32(capBuf[:], uint32(p.Capabilities))
	buf = append(buf, capBuf[:]...)
	var u16 [2]byte
	binary.BigEndian.PutUint16(u16[:], p.MaxParticipants)
	buf = append(buf, u16[:]...)
	buf = lpString(buf, p.ServerAddr)
	binary.BigEndian.PutUint16(u16[:], p.ServerPort)
	buf = append(buf, u16[:]...)
	if p.ExposeIP {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = lpString(buf, p.PasswordHash)
	return buf
}

func DecodeSessionCreate(b []byte) (SessionCreatePayload, error) {
	if len(b) < 9 {
		return SessionCreatePayload{}, ErrTruncatedPayload
	}
	p := SessionCreatePayload{Type: SessionType(b[0])}
	p.Capabilities = Capability(binary.BigEndian.Uint32(b[1:5]))
	p.MaxParticipants = binary.BigEndian.Uint16(b[5:7])
	off := 7
	addr, off, err := readLPString(b, off)
	if err != nil {
		return SessionCreatePayload{}, err
	}
	p.ServerAddr = addr
	if off+3 > len(b) {
		return SessionCreatePayload{}, ErrTruncatedPayload
	}
	p.ServerPort = binary.BigEndian.Uint16(b[off : off+2])
	off += 2
	p.ExposeIP = b[off] != 0
	off++
	hash, _, err := readLPString(b, off)
	if err != nil {
		return SessionCreatePayload{}, err
	}
	p.PasswordHash = hash
	return p, nil
}

// SessionCreatedPayload is SESSION_CREATED's payload: the assigned session
// string and its TTL in seconds.
type SessionCreatedPayload struct {
	SessionString string
	TTLSeconds    uint32
}

func (p SessionCreatedPayload) Encode() []byte {
	buf := lpString(nil, p.SessionString)
	var u32 [4]byte
	binary.BigEndian.PutUint32(u32[:], p.TTLSeconds)
	return append(buf, u32[:]...)
}

func DecodeSessionCreated(b []byte) (SessionCreatedPayload, error) {
	s, off, err := readLPString(b, 0)
	if err != nil {
		return SessionCreatedPayload{}, err
	}
	if off+4 > len(b) {
		return SessionCreatedPayload{}, ErrTruncatedPayload
	}
	return SessionCreatedPayload{SessionString: s, TTLSeconds: binary.BigEndian.Uint32(b[off : off+4])}, nil
}

// SessionJoinPayload is SESSION_JOIN's payload: a joiner looking up a
// session string, with an optional plaintext password to verify.
type SessionJoinPayload struct {
	SessionString string
	Password      string
}

func (p SessionJoinPayload) Encode() []byte {
	buf := lpString(nil, p.SessionString)
	return lpString(buf, p.Password)
}

func DecodeSessionJoin(b []byte) (SessionJoinPayload, error) {
	s, off, err := readLPString(b, 0)
	if err != nil {
		return SessionJoinPayload{}, err
	}
	pw, _, err := readLPString(b, off)
	if err != nil {
		return SessionJoinPayload{}, err
	}
	return SessionJoinPayload{SessionString: s, Password: pw}, nil
}

// SessionJoinedPayload is SESSION_JOINED's payload. Under the IP disclosure
// policy, ServerAddr/ServerPort/TurnUsername/TurnPassword are only
// populated when Success is true AND disclosure is permitted; ErrCode
// distinguishes SESSION_NOT_FOUND, INVALID_PASSWORD, and IP_WITHHELD when
// Success is false (or, for IP_WITHHELD, even when the lookup itself
// succeeded but policy withholds the contact fields).
type SessionJoinedPayload struct {
	Success      bool
	ErrCode      ErrorCode
	Type         SessionType
	ServerAddr   string
	ServerPort   uint16
	TurnUsername string
	TurnPassword string
}

func (p SessionJoinedPayload) Encode() []byte {
	buf := make([]byte, 0, 32+len(p.ServerAddr)+len(p.TurnUsername)+len(p.TurnPassword))
	if p.Success {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	var u16 [2]byte
	binary.BigEndian.PutUint16(u16[:], uint16(p.ErrCode))
	buf = append(buf, u16[:]...)
	buf = append(buf, byte(p.Type))
	buf = lpString(buf, p.ServerAddr)
	binary.BigEndian.PutUint16(u16[:], p.ServerPort)
	buf = append(buf, u16[:]...)
	buf = lpString(buf, p.TurnUsername)
	buf = lpString(buf, p.TurnPassword)
	return buf
}

func DecodeSessionJoined(b []byte) (SessionJoinedPayload, error) {
	if len(b) < 4 {
		return SessionJoinedPayload{}, ErrTruncatedPayload
	}
	p := SessionJoinedPayload{Success: b[0] != 0, ErrCode: ErrorCode(binary.BigEndian.Uint16(b[1:3])), Type: SessionType(b[3])}
	off := 4
	addr, off, err := readLPString(b, off)
	if err != nil {
		return SessionJoinedPayload{}, err
	}
	p.ServerAddr = addr
	if off+2 > len(b) {
		return SessionJoinedPayload{}, ErrTruncatedPayload
	}
	p.ServerPort = binary.BigEndian.Uint16(b[off : off+2])
	off += 2
	user, off, err := readLPString(b, off)
	if err != nil {
		return SessionJoinedPayload{}, err
	}
	p.TurnUsername = user
	pass, _, err := readLPString(b, off)
	if err != nil {
		return SessionJoinedPayload{}, err
	}
	p.TurnPassword = pass
	return p, nil
}
