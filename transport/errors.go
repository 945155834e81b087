package transport

import "fmt"

// ErrorCode is a QUIC transport error code.
// https://www.rfc-editor.org/rfc/rfc9000#section-20.1
type ErrorCode uint64

// Transport error codes.
const (
	NoError                 ErrorCode = 0x0
	InternalError           ErrorCode = 0x1
	ConnectionRefused       ErrorCode = 0x2
	FlowControlError        ErrorCode = 0x3
	StreamLimitError        ErrorCode = 0x4
	StreamStateError        ErrorCode = 0x5
	FinalSizeError          ErrorCode = 0x6
	FrameEncodingError      ErrorCode = 0x7
	TransportParameterError ErrorCode = 0x8
	ConnectionIDLimitError  ErrorCode = 0x9
	ProtocolViolation       ErrorCode = 0xa
	InvalidToken            ErrorCode = 0xb
	ApplicationError        ErrorCode = 0xc
	CryptoBufferExceeded    ErrorCode = 0xd
	KeyUpdateError          ErrorCode = 0xe
	AEADLimitReached        ErrorCode = 0xf
	NoViablePath            ErrorCode = 0x10
)

var errorCodeNames = map[ErrorCode]string{
	NoError:                 "NO_ERROR",
	InternalError:           "INTERNAL_ERROR",
	ConnectionRefused:       "CONNECTION_REFUSED",
	FlowControlError:        "FLOW_CONTROL_ERROR",
	StreamLimitError:        "STREAM_LIMIT_ERROR",
	StreamStateError:        "STREAM_STATE_ERROR",
	FinalSizeError:          "FINAL_SIZE_ERROR",
	FrameEncodingError:      "FRAME_ENCODING_ERROR",
	TransportParameterError: "TRANSPORT_PARAMETER_ERROR",
	ConnectionIDLimitError:  "CONNECTION_ID_LIMIT_ERROR",
	ProtocolViolation:       "PROTOCOL_VIOLATION",
	InvalidToken:            "INVALID_TOKEN",
	ApplicationError:        "APPLICATION_ERROR",
	CryptoBufferExceeded:    "CRYPTO_BUFFER_EXCEEDED",
	KeyUpdateError:          "KEY_UPDATE_ERROR",
	AEADLimitReached:        "AEAD_LIMIT_REACHED",
	NoViablePath:            "NO_VIABLE_PATH",
}

func errorCodeString(code uint64) string {
	if name, ok := errorCodeNames[ErrorCode(code)]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(0x%x)", code)
}

// Error is a QUIC protocol error that should result in the connection
// being closed with the carried error code.
type Error struct {
	Code      ErrorCode
	Message   string
	FrameType uint64 // Set when the error was triggered while processing a frame.
}

func newError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return errorCodeString(uint64(e.Code))
	}
	return fmt.Sprintf("%s: %s", errorCodeString(uint64(e.Code)), e.Message)
}

// withFrameType annotates the error with the frame type being processed
// when it occurred, for the CONNECTION_CLOSE frame_type field.
func (e *Error) withFrameType(typ uint64) *Error {
	e.FrameType = typ
	return e
}

// Sentinels for conditions that are always the same error.
var (
	errInvalidToken = newError(InvalidToken, "invalid retry token")
	errFlowControl  = newError(FlowControlError, "flow control limit exceeded")
	errShortBuffer  = newError(InternalError, "short buffer")
)
