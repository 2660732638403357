// Package acip implements the ACIP packet protocol: the typed catalog laid
// over acipframe's wire frames, per-type payload encoding, the handshake
// state machine driving acipcrypto and aciptransport, and handler dispatch
// keyed by packet type and endpoint role.
package acip

// PacketType identifies the payload schema of an ACIP packet. Values below
// 0x8000 are defined by this package and MUST be understood by a conforming
// endpoint; an unrecognized type in that range is a protocol violation.
// Values >= 0x8000 are reserved for forward-compatible extensions and are
// silently ignored when unrecognized.
type PacketType uint16

const (
	TypeProtocolVersion PacketType = 0x0001
	TypeClientHello     PacketType = 0x0002
	TypeKeyExchangeInit PacketType = 0x0003
	TypeKeyExchangeResp PacketType = 0x0004
	TypeAuthChallenge   PacketType = 0x0005
	TypeAuthResponse    PacketType = 0x0006
	TypeHandshakeComplete PacketType = 0x0007
	TypeRekeyRequest    PacketType = 0x0008
	TypeRekeyResponse   PacketType = 0x0009

	TypeClientJoin         PacketType = 0x0010
	TypeClientLeave        PacketType = 0x0011
	TypeClientCapabilities PacketType = 0x0012

	TypeStreamStart PacketType = 0x0020
	TypeStreamStop  PacketType = 0x0021

	TypeImageFrame     PacketType = 0x0030
	TypeAudioBatch     PacketType = 0x0031
	TypeAudioOpusBatch PacketType = 0x0032

	TypePing  PacketType = 0x0040
	TypePong  PacketType = 0x0041
	TypeError PacketType = 0x0042

	// Discovery wire messages, carried as ACIP packets between a
	// host/joiner and the discovery service.
	TypeSessionCreate PacketType = 0x0050
	TypeSessionCreated PacketType = 0x0051
	TypeSessionJoin    PacketType = 0x0052
	TypeSessionJoined  PacketType = 0x0053
)

// ForwardCompatThreshold is the type value at and above which an unknown
// PacketType is ignored rather than treated as PROTOCOL_VIOLATION.
const ForwardCompatThreshold PacketType = 0x8000

// IsForwardCompatible reports whether t falls in the silently-ignorable
// extension range.
func (t PacketType) IsForwardCompatible() bool {
	return t >= ForwardCompatThreshold
}

// String returns a human-readable name for known packet types.
func (t PacketType) String() string {
	if name, ok := packetTypeNames[t]; ok {
		return name
	}
	if t.IsForwardCompatible() {
		return "EXTENSION"
	}
	return "UNKNOWN"
}

var packetTypeNames = map[PacketType]string{
	TypeProtocolVersion:   "PROTOCOL_VERSION",
	TypeClientHello:       "CLIENT_HELLO",
	TypeKeyExchangeInit:   "KEY_EXCHANGE_INIT",
	TypeKeyExchangeResp:   "KEY_EXCHANGE_RESP",
	TypeAuthChallenge:     "AUTH_CHALLENGE",
	TypeAuthResponse:      "AUTH_RESPONSE",
	TypeHandshakeComplete: "HANDSHAKE_COMPLETE",
	TypeRekeyRequest:      "REKEY_REQUEST",
	TypeRekeyResponse:     "REKEY_RESPONSE",
	TypeClientJoin:         "CLIENT_JOIN",
	TypeClientLeave:        "CLIENT_LEAVE",
	TypeClientCapabilities: "CLIENT_CAPABILITIES",
	TypeStreamStart: "STREAM_START",
	TypeStreamStop:  "STREAM_STOP",
	TypeImageFrame:     "IMAGE_FRAME",
	TypeAudioBatch:     "AUDIO_BATCH",
	TypeAudioOpusBatch: "AUDIO_OPUS_BATCH",
	TypePing:  "PING",
	TypePong:  "PONG",
	TypeError: "ERROR",
	TypeSessionCreate:  "SESSION_CREATE",
	TypeSessionCreated: "SESSION_CREATED",
	TypeSessionJoin:    "SESSION_JOIN",
	TypeSessionJoined:  "SESSION_JOINED",
}

// Capability is a bitmask flag describing what media kinds a client can send/receive.
type Capability uint32

const (
	CapVideo         Capability = 1 << 0
	CapAudio         Capability = 1 << 1
	CapVideoEncoding Capability = 1 << 2
)

// StreamKind identifies the media kind carried by a fan-out-eligible packet.
type StreamKind uint8

const (
	StreamKindVideo StreamKind = iota
	StreamKindAudio
)

// PixelFormat tags the encoding of IMAGE_FRAME pixel bytes.
type PixelFormat uint32

const (
	PixelFormatRGB24 PixelFormat = iota
	PixelFormatYUV420
	PixelFormatCodecBlob // opaque codec-encoded blob, e.g. H.264 NAL units
)

// Role distinguishes client-side and server-side handshake/dispatch behavior.
type Role uint8

const (
	RoleClient Role = iota
	RoleServer
)

// SessionType distinguishes a discovery session's transport: a direct TCP
// media connection versus a WebRTC session mediated by TURN credentials.
type SessionType uint8

const (
	SessionTypeDirectTCP SessionType = iota
	SessionTypeWebRTC
)

func (s SessionType) String() string {
	if s == SessionTypeWebRTC {
		return "WEBRTC"
	}
	return "DIRECT_TCP"
}
