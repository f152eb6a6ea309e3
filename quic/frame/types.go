// Package frame implements the QUIC frame codec (spec.md 4.1, 6), covering
// every frame type defined by RFC 9000. Each frame type reports its own
// encoded Length() without writing, so the stream layer can check fit before
// committing a frame to a packet (spec.md 4.1 "make_fit_size").
package frame

import (
	"fmt"

	"github.com/on-keyday/dnet/internal/varint"
)

// Type is a QUIC frame type tag (RFC 9000 section 19).
type Type uint64

const (
	TypePadding             Type = 0x00
	TypePing                Type = 0x01
	TypeACK                 Type = 0x02 // 0x02-0x03 (ECN variant)
	TypeACKECN              Type = 0x03
	TypeResetStream         Type = 0x04
	TypeStopSending         Type = 0x05
	TypeCrypto              Type = 0x06
	TypeNewToken            Type = 0x07
	TypeStream              Type = 0x08 // 0x08-0x0f, low 3 bits are flags
	TypeMaxData             Type = 0x10
	TypeMaxStreamData       Type = 0x11
	TypeMaxStreamsBidi      Type = 0x12
	TypeMaxStreamsUni       Type = 0x13
	TypeDataBlocked         Type = 0x14
	TypeStreamDataBlocked   Type = 0x15
	TypeStreamsBlockedBidi  Type = 0x16
	TypeStreamsBlockedUni   Type = 0x17
	TypeNewConnectionID     Type = 0x18
	TypeRetireConnectionID  Type = 0x19
	TypePathChallenge       Type = 0x1a
	TypePathResponse        Type = 0x1b
	TypeConnectionCloseQUIC Type = 0x1c
	TypeConnectionCloseApp  Type = 0x1d
	TypeHandshakeDone       Type = 0x1e
)

const (
	streamFlagFin  = 0x01
	streamFlagLen  = 0x02
	streamFlagOff  = 0x04
)

// AckEliciting reports whether receipt of a frame of this type causes the
// peer to schedule an ACK, per the glossary in spec.md.
func (t Type) AckEliciting() bool {
	switch {
	case t == TypePadding, t == TypeACK, t == TypeACKECN, t == TypeConnectionCloseQUIC, t == TypeConnectionCloseApp:
		return false
	default:
		return true
	}
}

// ByteCounted reports whether a frame of this type counts against
// connection-level flow control, per the glossary in spec.md.
func (t Type) ByteCounted() bool {
	return t == TypeStream || (t >= TypeStream && t <= TypeStream+7)
}

// Frame is implemented by every decoded frame value.
type Frame interface {
	Type() Type
	// Length reports the encoded size without encoding, per spec.md 4.1.
	Length() int
	// Encode appends the wire encoding of the frame to dst.
	Encode(dst []byte) ([]byte, bool)
}

// Decode parses a single frame from the front of b. It returns the frame,
// the number of bytes consumed, and an error for malformed input.
func Decode(b []byte) (Frame, int, error) {
	typ, n, ok := varint.Decode(b)
	if !ok {
		return nil, 0, fmt.Errorf("frame: truncated type tag")
	}
	rest := b[n:]
	switch {
	case typ == uint64(TypePadding):
		return decodePadding(rest, n)
	case typ == uint64(TypePing):
		return Ping{}, n, nil
	case typ == uint64(TypeACK) || typ == uint64(TypeACKECN):
		return decodeACK(rest, n, typ == uint64(TypeACKECN))
	case typ == uint64(TypeResetStream):
		return decodeResetStream(rest, n)
	case typ == uint64(TypeStopSending):
		return decodeStopSending(rest, n)
	case typ == uint64(TypeCrypto):
		return decodeCrypto(rest, n)
	case typ == uint64(TypeNewToken):
		return decodeNewToken(rest, n)
	case typ >= uint64(TypeStream) && typ <= uint64(TypeStream)+7:
		return decodeStream(rest, n, byte(typ&0x7))
	case typ == uint64(TypeMaxData):
		return decodeMaxData(rest, n)
	case typ == uint64(TypeMaxStreamData):
		return decodeMaxStreamData(rest, n)
	case typ == uint64(TypeMaxStreamsBidi) || typ == uint64(TypeMaxStreamsUni):
		return decodeMaxStreams(rest, n, typ == uint64(TypeMaxStreamsUni))
	case typ == uint64(TypeDataBlocked):
		return decodeDataBlocked(rest, n)
	case typ == uint64(TypeStreamDataBlocked):
		return decodeStreamDataBlocked(rest, n)
	case typ == uint64(TypeStreamsBlockedBidi) || typ == uint64(TypeStreamsBlockedUni):
		return decodeStreamsBlocked(rest, n, typ == uint64(TypeStreamsBlockedUni))
	case typ == uint64(TypeNewConnectionID):
		return decodeNewConnectionID(rest, n)
	case typ == uint64(TypeRetireConnectionID):
		return decodeRetireConnectionID(rest, n)
	case typ == uint64(TypePathChallenge):
		return decodePathChallenge(rest, n)
	case typ == uint64(TypePathResponse):
		return decodePathResponse(rest, n)
	case typ == uint64(TypeConnectionCloseQUIC) || typ == uint64(TypeConnectionCloseApp):
		return decodeConnectionClose(rest, n, typ == uint64(TypeConnectionCloseApp))
	case typ == uint64(TypeHandshakeDone):
		return HandshakeDone{}, n, nil
	default:
		return nil, 0, fmt.Errorf("frame: unknown frame type 0x%x", typ)
	}
}

func putVarint(dst []byte, v uint64) ([]byte, bool) { return varint.Encode(dst, v) }

func takeVarint(b []byte) (uint64, []byte, bool) {
	v, n, ok := varint.Decode(b)
	if !ok {
		return 0, nil, false
	}
	return v, b[n:], true
}
