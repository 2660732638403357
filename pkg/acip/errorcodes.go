package acip

import "github.com/ascii-chat/acip-core/internal/acerrors"

// ErrorCode is the wire-level numeric identifier carried by an ERROR packet.
type ErrorCode uint16

const (
	ErrorInvalidParam             ErrorCode = 1
	ErrorIONetwork                ErrorCode = 2
	ErrorNetworkTimeout            ErrorCode = 3
	ErrorProtocolViolation         ErrorCode = 4
	ErrorBadMagic                  ErrorCode = 5
	ErrorChecksumMismatch          ErrorCode = 6
	ErrorCryptoHandshakeFailed     ErrorCode = 7
	ErrorCryptoAuthFailed          ErrorCode = 8
	ErrorEncryptionPolicyViolation ErrorCode = 9
	ErrorRateLimited               ErrorCode = 10
	ErrorInvalidPassword           ErrorCode = 11
	ErrorSessionNotFound           ErrorCode = 12
	ErrorSessionFull               ErrorCode = 13
	ErrorResourceExhausted         ErrorCode = 14
	ErrorIncompatibleVersion       ErrorCode = 15
	ErrorInternal                  ErrorCode = 16
	ErrorIPWithheld                ErrorCode = 17
)

var errorCodeNames = map[ErrorCode]string{
	ErrorInvalidParam:             "INVALID_PARAM",
	ErrorIONetwork:                "IO_NETWORK",
	ErrorNetworkTimeout:           "NETWORK_TIMEOUT",
	ErrorProtocolViolation:        "PROTOCOL_VIOLATION",
	ErrorBadMagic:                 "BAD_MAGIC",
	ErrorChecksumMismatch:         "CHECKSUM_MISMATCH",
	ErrorCryptoHandshakeFailed:    "CRYPTO_HANDSHAKE_FAILED",
	ErrorCryptoAuthFailed:         "CRYPTO_AUTH_FAILED",
	ErrorEncryptionPolicyViolation: "ENCRYPTION_POLICY_VIOLATION",
	ErrorRateLimited:              "RATE_LIMITED",
	ErrorInvalidPassword:          "INVALID_PASSWORD",
	ErrorSessionNotFound:          "SESSION_NOT_FOUND",
	ErrorSessionFull:              "SESSION_FULL",
	ErrorResourceExhausted:        "RESOURCE_EXHAUSTED",
	ErrorIncompatibleVersion:      "INCOMPATIBLE_VERSION",
	ErrorInternal:                 "INTERNAL",
	ErrorIPWithheld:               "IP_WITHHELD",
}

func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return "UNKNOWN_ERROR_CODE"
}

// acerrorsStageCode maps an acerrors.Code to the wire ErrorCode an ERROR
// packet should carry, so the session layer can translate an internal
// structured error straight into a packet.
var acerrorsStageCode = map[acerrors.Code]ErrorCode{
	acerrors.CodeInvalidParam:             ErrorInvalidParam,
	acerrors.CodeIONetwork:                ErrorIONetwork,
	acerrors.CodeNetworkTimeout:           ErrorNetworkTimeout,
	acerrors.CodeProtocolViolation:        ErrorProtocolViolation,
	acerrors.CodeBadMagic:                 ErrorBadMagic,
	acerrors.CodeChecksumMismatch:         ErrorChecksumMismatch,
	acerrors.CodeCryptoHandshakeFailed:    ErrorCryptoHandshakeFailed,
	acerrors.CodeCryptoAuthFailed:         ErrorCryptoAuthFailed,
	acerrors.CodeEncryptionPolicyViolation: ErrorEncryptionPolicyViolation,
	acerrors.CodeRateLimited:              ErrorRateLimited,
	acerrors.CodeInvalidPassword:          ErrorInvalidPassword,
	acerrors.CodeSessionNotFound:          ErrorSessionNotFound,
	acerrors.CodeSessionFull:              ErrorSessionFull,
	acerrors.CodeResourceExhausted:        ErrorResourceExhausted,
	acerrors.CodeIncompatibleVersion:      ErrorIncompatibleVersion,
	acerrors.CodeInternal:                 ErrorInternal,
	acerrors.CodeIPWithheld:               ErrorIPWithheld,
}

// FromAcerrorsCode translates an internal structured error code to its wire
// representation, defaulting to INTERNAL for anything unmapped.
func FromAcerrorsCode(c acerrors.Code) ErrorCode {
	if code, ok := acerrorsStageCode[c]; ok {
		return code
	}
	return ErrorInternal
}
