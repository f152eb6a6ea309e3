// Package qerr defines the QUIC transport error codes (RFC 9000 section
// 20.1) and the typed connection/stream error values the rest of quic/...
// raises, following the teacher's StreamError/ConnectionError pattern
// (_teacher_ref/server.go) generalized from HTTP/2 to QUIC.
package qerr

import "fmt"

// TransportErrorCode is one of the codes in RFC 9000 section 20.1.
type TransportErrorCode uint64

const (
	NoError                  TransportErrorCode = 0x0
	InternalError            TransportErrorCode = 0x1
	ConnectionRefused        TransportErrorCode = 0x2
	FlowControlError         TransportErrorCode = 0x3
	StreamLimitError         TransportErrorCode = 0x4
	StreamStateError         TransportErrorCode = 0x5
	FinalSizeError           TransportErrorCode = 0x6
	FrameEncodingError       TransportErrorCode = 0x7
	TransportParameterError TransportErrorCode = 0x8
	ConnectionIDLimitError   TransportErrorCode = 0x9
	ProtocolViolation        TransportErrorCode = 0xa
	InvalidToken             TransportErrorCode = 0xb
	ApplicationError         TransportErrorCode = 0xc
	CryptoBufferExceeded     TransportErrorCode = 0xd
	KeyUpdateError           TransportErrorCode = 0xe
	AEADLimitReached         TransportErrorCode = 0xf
	NoViablePath             TransportErrorCode = 0x10
)

func (c TransportErrorCode) String() string {
	switch c {
	case NoError:
		return "NO_ERROR"
	case InternalError:
		return "INTERNAL_ERROR"
	case ConnectionRefused:
		return "CONNECTION_REFUSED"
	case FlowControlError:
		return "FLOW_CONTROL_ERROR"
	case StreamLimitError:
		return "STREAM_LIMIT_ERROR"
	case StreamStateError:
		return "STREAM_STATE_ERROR"
	case FinalSizeError:
		return "FINAL_SIZE_ERROR"
	case FrameEncodingError:
		return "FRAME_ENCODING_ERROR"
	case TransportParameterError:
		return "TRANSPORT_PARAMETER_ERROR"
	case ConnectionIDLimitError:
		return "CONNECTION_ID_LIMIT_ERROR"
	case ProtocolViolation:
		return "PROTOCOL_VIOLATION"
	case InvalidToken:
		return "INVALID_TOKEN"
	case ApplicationError:
		return "APPLICATION_ERROR"
	case CryptoBufferExceeded:
		return "CRYPTO_BUFFER_EXCEEDED"
	case KeyUpdateError:
		return "KEY_UPDATE_ERROR"
	case AEADLimitReached:
		return "AEAD_LIMIT_REACHED"
	case NoViablePath:
		return "NO_VIABLE_PATH"
	default:
		return fmt.Sprintf("UNKNOWN_ERROR(0x%x)", uint64(c))
	}
}

// ConnectionError aborts the whole QUIC connection.
type ConnectionError struct {
	Code    TransportErrorCode
	Msg     string
	RFCRef  string
	FrameNo uint64 // frame type that triggered the error, if applicable
}

func (e ConnectionError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("quic: connection error %s", e.Code)
	}
	return fmt.Sprintf("quic: connection error %s: %s", e.Code, e.Msg)
}

// StreamError is scoped to a single stream (RESET_STREAM / STOP_SENDING
// application-level codes, not transport error codes).
type StreamError struct {
	StreamID uint64
	Code     uint64
}

func (e StreamError) Error() string {
	return fmt.Sprintf("quic: stream %d error 0x%x", e.StreamID, e.Code)
}

// New is a small helper mirroring original_source's QUICError{...} literals:
// it is a ConnectionError constructor that fills in msg/ref/code together.
func New(code TransportErrorCode, rfcRef, msg string) ConnectionError {
	return ConnectionError{Code: code, Msg: msg, RFCRef: rfcRef}
}
