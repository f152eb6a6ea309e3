package frame

import (
	"fmt"

	"github.com/on-keyday/dnet/internal/varint"
)

// Padding is one or more consecutive 0x00 bytes.
type Padding struct{ Count int }

func (f Padding) Type() Type   { return TypePadding }
func (f Padding) Length() int  { return f.Count }
func (f Padding) Encode(dst []byte) ([]byte, bool) {
	for i := 0; i < f.Count; i++ {
		dst = append(dst, 0x00)
	}
	return dst, true
}

func decodePadding(rest []byte, consumed int) (Frame, int, error) {
	n := 1 // the first 0x00 already consumed as the type tag
	for n < len(rest)+1 && rest[n-1] == 0x00 {
		n++
	}
	return Padding{Count: n}, consumed + n - 1, nil
}

// Ping carries no payload; its receipt is ack-eliciting.
type Ping struct{}

func (f Ping) Type() Type  { return TypePing }
func (f Ping) Length() int { return varint.Len(uint64(TypePing)) }
func (f Ping) Encode(dst []byte) ([]byte, bool) {
	return putVarint(dst, uint64(TypePing))
}

// ACKRange is one gap-delimited range within an ACK frame, beyond the
// largest-acknowledged/first-range pair.
type ACKRange struct {
	Gap      uint64
	AckRange uint64
}

// ACK acknowledges received packets. ECN carries optional ECN counts when
// Type()==TypeACKECN.
type ACK struct {
	LargestAcknowledged uint64
	AckDelay            uint64
	FirstAckRange       uint64
	Ranges              []ACKRange
	ECN                 bool
	ECT0, ECT1, ECNCE   uint64
}

func (f ACK) Type() Type {
	if f.ECN {
		return TypeACKECN
	}
	return TypeACK
}

func (f ACK) Length() int {
	n := varint.Len(uint64(f.Type())) + varint.Len(f.LargestAcknowledged) +
		varint.Len(f.AckDelay) + varint.Len(uint64(len(f.Ranges))) + varint.Len(f.FirstAckRange)
	for _, r := range f.Ranges {
		n += varint.Len(r.Gap) + varint.Len(r.AckRange)
	}
	if f.ECN {
		n += varint.Len(f.ECT0) + varint.Len(f.ECT1) + varint.Len(f.ECNCE)
	}
	return n
}

func (f ACK) Encode(dst []byte) ([]byte, bool) {
	var ok bool
	dst, ok = putVarint(dst, uint64(f.Type()))
	if !ok {
		return dst, false
	}
	for _, v := range []uint64{f.LargestAcknowledged, f.AckDelay, uint64(len(f.Ranges)), f.FirstAckRange} {
		if dst, ok = putVarint(dst, v); !ok {
			return dst, false
		}
	}
	for _, r := range f.Ranges {
		if dst, ok = putVarint(dst, r.Gap); !ok {
			return dst, false
		}
		if dst, ok = putVarint(dst, r.AckRange); !ok {
			return dst, false
		}
	}
	if f.ECN {
		for _, v := range []uint64{f.ECT0, f.ECT1, f.ECNCE} {
			if dst, ok = putVarint(dst, v); !ok {
				return dst, false
			}
		}
	}
	return dst, true
}

func decodeACK(rest []byte, consumed int, ecn bool) (Frame, int, error) {
	var f ACK
	f.ECN = ecn
	var ok bool
	var rangeCount uint64
	if f.LargestAcknowledged, rest, ok = takeVarint(rest); !ok {
		return nil, 0, fmt.Errorf("frame: truncated ACK")
	}
	if f.AckDelay, rest, ok = takeVarint(rest); !ok {
		return nil, 0, fmt.Errorf("frame: truncated ACK")
	}
	if rangeCount, rest, ok = takeVarint(rest); !ok {
		return nil, 0, fmt.Errorf("frame: truncated ACK")
	}
	if f.FirstAckRange, rest, ok = takeVarint(rest); !ok {
		return nil, 0, fmt.Errorf("frame: truncated ACK")
	}
	for i := uint64(0); i < rangeCount; i++ {
		var r ACKRange
		if r.Gap, rest, ok = takeVarint(rest); !ok {
			return nil, 0, fmt.Errorf("frame: truncated ACK range")
		}
		if r.AckRange, rest, ok = takeVarint(rest); !ok {
			return nil, 0, fmt.Errorf("frame: truncated ACK range")
		}
		f.Ranges = append(f.Ranges, r)
	}
	if ecn {
		if f.ECT0, rest, ok = takeVarint(rest); !ok {
			return nil, 0, fmt.Errorf("frame: truncated ACK ECN")
		}
		if f.ECT1, rest, ok = takeVarint(rest); !ok {
			return nil, 0, fmt.Errorf("frame: truncated ACK ECN")
		}
		if f.ECNCE, rest, ok = takeVarint(rest); !ok {
			return nil, 0, fmt.Errorf("frame: truncated ACK ECN")
		}
	}
	return f, f.Length(), nil
}

// ResetStream abruptly terminates the send side of a stream.
type ResetStream struct {
	StreamID      uint64
	ApplicationErrorCode uint64
	FinalSize     uint64
}

func (f ResetStream) Type() Type { return TypeResetStream }
func (f ResetStream) Length() int {
	return varint.Len(uint64(TypeResetStream)) + varint.Len(f.StreamID) +
		varint.Len(f.ApplicationErrorCode) + varint.Len(f.FinalSize)
}
func (f ResetStream) Encode(dst []byte) ([]byte, bool) {
	var ok bool
	for _, v := range []uint64{uint64(TypeResetStream), f.StreamID, f.ApplicationErrorCode, f.FinalSize} {
		if dst, ok = putVarint(dst, v); !ok {
			return dst, false
		}
	}
	return dst, true
}

func decodeResetStream(rest []byte, consumed int) (Frame, int, error) {
	var f ResetStream
	var ok bool
	if f.StreamID, rest, ok = takeVarint(rest); !ok {
		return nil, 0, fmt.Errorf("frame: truncated RESET_STREAM")
	}
	if f.ApplicationErrorCode, rest, ok = takeVarint(rest); !ok {
		return nil, 0, fmt.Errorf("frame: truncated RESET_STREAM")
	}
	if f.FinalSize, rest, ok = takeVarint(rest); !ok {
		return nil, 0, fmt.Errorf("frame: truncated RESET_STREAM")
	}
	return f, f.Length(), nil
}

// StopSending asks the peer to stop sending on a stream.
type StopSending struct {
	StreamID             uint64
	ApplicationErrorCode uint64
}

func (f StopSending) Type() Type { return TypeStopSending }
func (f StopSending) Length() int {
	return varint.Len(uint64(TypeStopSending)) + varint.Len(f.StreamID) + varint.Len(f.ApplicationErrorCode)
}
func (f StopSending) Encode(dst []byte) ([]byte, bool) {
	var ok bool
	for _, v := range []uint64{uint64(TypeStopSending), f.StreamID, f.ApplicationErrorCode} {
		if dst, ok = putVarint(dst, v); !ok {
			return dst, false
		}
	}
	return dst, true
}

func decodeStopSending(rest []byte, consumed int) (Frame, int, error) {
	var f StopSending
	var ok bool
	if f.StreamID, rest, ok = takeVarint(rest); !ok {
		return nil, 0, fmt.Errorf("frame: truncated STOP_SENDING")
	}
	if f.ApplicationErrorCode, rest, ok = takeVarint(rest); !ok {
		return nil, 0, fmt.Errorf("frame: truncated STOP_SENDING")
	}
	return f, f.Length(), nil
}

// Crypto carries handshake bytes, out of scope for this core beyond
// round-tripping (the TLS engine is an external collaborator per spec.md 1).
type Crypto struct {
	Offset uint64
	Data   []byte
}

func (f Crypto) Type() Type { return TypeCrypto }
func (f Crypto) Length() int {
	return varint.Len(uint64(TypeCrypto)) + varint.Len(f.Offset) + varint.Len(uint64(len(f.Data))) + len(f.Data)
}
func (f Crypto) Encode(dst []byte) ([]byte, bool) {
	var ok bool
	if dst, ok = putVarint(dst, uint64(TypeCrypto)); !ok {
		return dst, false
	}
	if dst, ok = putVarint(dst, f.Offset); !ok {
		return dst, false
	}
	if dst, ok = putVarint(dst, uint64(len(f.Data))); !ok {
		return dst, false
	}
	return append(dst, f.Data...), true
}

func decodeCrypto(rest []byte, consumed int) (Frame, int, error) {
	var f Crypto
	var ok bool
	var length uint64
	if f.Offset, rest, ok = takeVarint(rest); !ok {
		return nil, 0, fmt.Errorf("frame: truncated CRYPTO")
	}
	if length, rest, ok = takeVarint(rest); !ok {
		return nil, 0, fmt.Errorf("frame: truncated CRYPTO")
	}
	if uint64(len(rest)) < length {
		return nil, 0, fmt.Errorf("frame: truncated CRYPTO data")
	}
	f.Data = append([]byte(nil), rest[:length]...)
	return f, f.Length(), nil
}

// NewToken carries an address-validation token for future connections.
type NewToken struct{ Token []byte }

func (f NewToken) Type() Type { return TypeNewToken }
func (f NewToken) Length() int {
	return varint.Len(uint64(TypeNewToken)) + varint.Len(uint64(len(f.Token))) + len(f.Token)
}
func (f NewToken) Encode(dst []byte) ([]byte, bool) {
	var ok bool
	if dst, ok = putVarint(dst, uint64(TypeNewToken)); !ok {
		return dst, false
	}
	if dst, ok = putVarint(dst, uint64(len(f.Token))); !ok {
		return dst, false
	}
	return append(dst, f.Token...), true
}

func decodeNewToken(rest []byte, consumed int) (Frame, int, error) {
	length, rest, ok := takeVarint(rest)
	if !ok || uint64(len(rest)) < length {
		return nil, 0, fmt.Errorf("frame: truncated NEW_TOKEN")
	}
	f := NewToken{Token: append([]byte(nil), rest[:length]...)}
	return f, f.Length(), nil
}

// Stream carries application data for a stream, per spec.md 4.1/4.5.
type Stream struct {
	StreamID   uint64
	Offset     uint64
	Data       []byte
	Fin        bool
	HasOffset  bool // OFF bit; Offset==0 streams may omit it
	HasLength  bool // LEN bit; want_length_field from make_fit_size
}

func (f Stream) Type() Type {
	var t byte
	if f.Fin {
		t |= streamFlagFin
	}
	if f.HasLength {
		t |= streamFlagLen
	}
	if f.HasOffset {
		t |= streamFlagOff
	}
	return Type(uint64(TypeStream) | uint64(t))
}

func (f Stream) Length() int {
	n := varint.Len(uint64(f.Type())) + varint.Len(f.StreamID)
	if f.HasOffset {
		n += varint.Len(f.Offset)
	}
	if f.HasLength {
		n += varint.Len(uint64(len(f.Data)))
	}
	return n + len(f.Data)
}

func (f Stream) Encode(dst []byte) ([]byte, bool) {
	var ok bool
	if dst, ok = putVarint(dst, uint64(f.Type())); !ok {
		return dst, false
	}
	if dst, ok = putVarint(dst, f.StreamID); !ok {
		return dst, false
	}
	if f.HasOffset {
		if dst, ok = putVarint(dst, f.Offset); !ok {
			return dst, false
		}
	}
	if f.HasLength {
		if dst, ok = putVarint(dst, uint64(len(f.Data))); !ok {
			return dst, false
		}
	}
	return append(dst, f.Data...), true
}

// StreamOverhead returns the encoded size of a STREAM frame's header alone
// (type tag + stream ID + optional offset), not counting any length field
// or payload, used by stream_overhead in spec.md 4.5.
func StreamOverhead(streamID uint64, offset uint64, hasOffset bool) int {
	n := varint.Len(uint64(TypeStream)) + varint.Len(streamID)
	if hasOffset {
		n += varint.Len(offset)
	}
	return n
}

func decodeStream(rest []byte, consumed int, flags byte) (Frame, int, error) {
	var f Stream
	f.Fin = flags&streamFlagFin != 0
	f.HasLength = flags&streamFlagLen != 0
	f.HasOffset = flags&streamFlagOff != 0
	var ok bool
	if f.StreamID, rest, ok = takeVarint(rest); !ok {
		return nil, 0, fmt.Errorf("frame: truncated STREAM")
	}
	if f.HasOffset {
		if f.Offset, rest, ok = takeVarint(rest); !ok {
			return nil, 0, fmt.Errorf("frame: truncated STREAM")
		}
	}
	if f.HasLength {
		var length uint64
		if length, rest, ok = takeVarint(rest); !ok {
			return nil, 0, fmt.Errorf("frame: truncated STREAM")
		}
		if uint64(len(rest)) < length {
			return nil, 0, fmt.Errorf("frame: truncated STREAM data")
		}
		f.Data = append([]byte(nil), rest[:length]...)
	} else {
		f.Data = append([]byte(nil), rest...)
	}
	return f, f.Length(), nil
}

// MaxData raises the connection-level flow-control limit.
type MaxData struct{ Maximum uint64 }

func (f MaxData) Type() Type  { return TypeMaxData }
func (f MaxData) Length() int { return varint.Len(uint64(TypeMaxData)) + varint.Len(f.Maximum) }
func (f MaxData) Encode(dst []byte) ([]byte, bool) {
	var ok bool
	if dst, ok = putVarint(dst, uint64(TypeMaxData)); !ok {
		return dst, false
	}
	return putVarint(dst, f.Maximum)
}
func decodeMaxData(rest []byte, consumed int) (Frame, int, error) {
	v, _, ok := takeVarint(rest)
	if !ok {
		return nil, 0, fmt.Errorf("frame: truncated MAX_DATA")
	}
	f := MaxData{Maximum: v}
	return f, f.Length(), nil
}

// MaxStreamData raises a per-stream flow-control limit.
type MaxStreamData struct {
	StreamID uint64
	Maximum  uint64
}

func (f MaxStreamData) Type() Type { return TypeMaxStreamData }
func (f MaxStreamData) Length() int {
	return varint.Len(uint64(TypeMaxStreamData)) + varint.Len(f.StreamID) + varint.Len(f.Maximum)
}
func (f MaxStreamData) Encode(dst []byte) ([]byte, bool) {
	var ok bool
	for _, v := range []uint64{uint64(TypeMaxStreamData), f.StreamID, f.Maximum} {
		if dst, ok = putVarint(dst, v); !ok {
			return dst, false
		}
	}
	return dst, true
}
func decodeMaxStreamData(rest []byte, consumed int) (Frame, int, error) {
	var f MaxStreamData
	var ok bool
	if f.StreamID, rest, ok = takeVarint(rest); !ok {
		return nil, 0, fmt.Errorf("frame: truncated MAX_STREAM_DATA")
	}
	if f.Maximum, rest, ok = takeVarint(rest); !ok {
		return nil, 0, fmt.Errorf("frame: truncated MAX_STREAM_DATA")
	}
	return f, f.Length(), nil
}

// MaxStreams raises the limit on concurrently open streams of one type.
type MaxStreams struct {
	Uni          bool
	MaximumStreams uint64
}

func (f MaxStreams) Type() Type {
	if f.Uni {
		return TypeMaxStreamsUni
	}
	return TypeMaxStreamsBidi
}
func (f MaxStreams) Length() int {
	return varint.Len(uint64(f.Type())) + varint.Len(f.MaximumStreams)
}
func (f MaxStreams) Encode(dst []byte) ([]byte, bool) {
	var ok bool
	if dst, ok = putVarint(dst, uint64(f.Type())); !ok {
		return dst, false
	}
	return putVarint(dst, f.MaximumStreams)
}
func decodeMaxStreams(rest []byte, consumed int, uni bool) (Frame, int, error) {
	v, _, ok := takeVarint(rest)
	if !ok {
		return nil, 0, fmt.Errorf("frame: truncated MAX_STREAMS")
	}
	f := MaxStreams{Uni: uni, MaximumStreams: v}
	return f, f.Length(), nil
}

// DataBlocked signals the sender is blocked on the connection-level limit.
type DataBlocked struct{ Limit uint64 }

func (f DataBlocked) Type() Type  { return TypeDataBlocked }
func (f DataBlocked) Length() int { return varint.Len(uint64(TypeDataBlocked)) + varint.Len(f.Limit) }
func (f DataBlocked) Encode(dst []byte) ([]byte, bool) {
	var ok bool
	if dst, ok = putVarint(dst, uint64(TypeDataBlocked)); !ok {
		return dst, false
	}
	return putVarint(dst, f.Limit)
}
func decodeDataBlocked(rest []byte, consumed int) (Frame, int, error) {
	v, _, ok := takeVarint(rest)
	if !ok {
		return nil, 0, fmt.Errorf("frame: truncated DATA_BLOCKED")
	}
	f := DataBlocked{Limit: v}
	return f, f.Length(), nil
}

// StreamDataBlocked signals the sender is blocked on a stream-level limit.
type StreamDataBlocked struct {
	StreamID uint64
	Limit    uint64
}

func (f StreamDataBlocked) Type() Type { return TypeStreamDataBlocked }
func (f StreamDataBlocked) Length() int {
	return varint.Len(uint64(TypeStreamDataBlocked)) + varint.Len(f.StreamID) + varint.Len(f.Limit)
}
func (f StreamDataBlocked) Encode(dst []byte) ([]byte, bool) {
	var ok bool
	for _, v := range []uint64{uint64(TypeStreamDataBlocked), f.StreamID, f.Limit} {
		if dst, ok = putVarint(dst, v); !ok {
			return dst, false
		}
	}
	return dst, true
}
func decodeStreamDataBlocked(rest []byte, consumed int) (Frame, int, error) {
	var f StreamDataBlocked
	var ok bool
	if f.StreamID, rest, ok = takeVarint(rest); !ok {
		return nil, 0, fmt.Errorf("frame: truncated STREAM_DATA_BLOCKED")
	}
	if f.Limit, rest, ok = takeVarint(rest); !ok {
		return nil, 0, fmt.Errorf("frame: truncated STREAM_DATA_BLOCKED")
	}
	return f, f.Length(), nil
}

// StreamsBlocked signals the sender wanted to open more streams than its
// peer-advertised limit allowed.
type StreamsBlocked struct {
	Uni   bool
	Limit uint64
}

func (f StreamsBlocked) Type() Type {
	if f.Uni {
		return TypeStreamsBlockedUni
	}
	return TypeStreamsBlockedBidi
}
func (f StreamsBlocked) Length() int {
	return varint.Len(uint64(f.Type())) + varint.Len(f.Limit)
}
func (f StreamsBlocked) Encode(dst []byte) ([]byte, bool) {
	var ok bool
	if dst, ok = putVarint(dst, uint64(f.Type())); !ok {
		return dst, false
	}
	return putVarint(dst, f.Limit)
}
func decodeStreamsBlocked(rest []byte, consumed int, uni bool) (Frame, int, error) {
	v, _, ok := takeVarint(rest)
	if !ok {
		return nil, 0, fmt.Errorf("frame: truncated STREAMS_BLOCKED")
	}
	f := StreamsBlocked{Uni: uni, Limit: v}
	return f, f.Length(), nil
}

// NewConnectionID issues a connection ID for future use (spec.md 4.2).
type NewConnectionID struct {
	SequenceNumber      uint64
	RetirePriorTo       uint64
	ConnectionID        []byte
	StatelessResetToken [16]byte
}

func (f NewConnectionID) Type() Type { return TypeNewConnectionID }
func (f NewConnectionID) Length() int {
	return varint.Len(uint64(TypeNewConnectionID)) + varint.Len(f.SequenceNumber) +
		varint.Len(f.RetirePriorTo) + 1 + len(f.ConnectionID) + 16
}
func (f NewConnectionID) Encode(dst []byte) ([]byte, bool) {
	var ok bool
	for _, v := range []uint64{uint64(TypeNewConnectionID), f.SequenceNumber, f.RetirePriorTo} {
		if dst, ok = putVarint(dst, v); !ok {
			return dst, false
		}
	}
	if len(f.ConnectionID) > 255 {
		return dst, false
	}
	dst = append(dst, byte(len(f.ConnectionID)))
	dst = append(dst, f.ConnectionID...)
	dst = append(dst, f.StatelessResetToken[:]...)
	return dst, true
}
func decodeNewConnectionID(rest []byte, consumed int) (Frame, int, error) {
	var f NewConnectionID
	var ok bool
	if f.SequenceNumber, rest, ok = takeVarint(rest); !ok {
		return nil, 0, fmt.Errorf("frame: truncated NEW_CONNECTION_ID")
	}
	if f.RetirePriorTo, rest, ok = takeVarint(rest); !ok {
		return nil, 0, fmt.Errorf("frame: truncated NEW_CONNECTION_ID")
	}
	if len(rest) < 1 {
		return nil, 0, fmt.Errorf("frame: truncated NEW_CONNECTION_ID")
	}
	length := int(rest[0])
	rest = rest[1:]
	if len(rest) < length+16 {
		return nil, 0, fmt.Errorf("frame: truncated NEW_CONNECTION_ID")
	}
	f.ConnectionID = append([]byte(nil), rest[:length]...)
	copy(f.StatelessResetToken[:], rest[length:length+16])
	return f, f.Length(), nil
}

// RetireConnectionID requests the peer stop using a connection ID.
type RetireConnectionID struct{ SequenceNumber uint64 }

func (f RetireConnectionID) Type() Type { return TypeRetireConnectionID }
func (f RetireConnectionID) Length() int {
	return varint.Len(uint64(TypeRetireConnectionID)) + varint.Len(f.SequenceNumber)
}
func (f RetireConnectionID) Encode(dst []byte) ([]byte, bool) {
	var ok bool
	if dst, ok = putVarint(dst, uint64(TypeRetireConnectionID)); !ok {
		return dst, false
	}
	return putVarint(dst, f.SequenceNumber)
}
func decodeRetireConnectionID(rest []byte, consumed int) (Frame, int, error) {
	v, _, ok := takeVarint(rest)
	if !ok {
		return nil, 0, fmt.Errorf("frame: truncated RETIRE_CONNECTION_ID")
	}
	f := RetireConnectionID{SequenceNumber: v}
	return f, f.Length(), nil
}

// PathChallenge probes path liveness/reachability (spec.md 4.4).
type PathChallenge struct{ Data [8]byte }

func (f PathChallenge) Type() Type  { return TypePathChallenge }
func (f PathChallenge) Length() int { return varint.Len(uint64(TypePathChallenge)) + 8 }
func (f PathChallenge) Encode(dst []byte) ([]byte, bool) {
	var ok bool
	if dst, ok = putVarint(dst, uint64(TypePathChallenge)); !ok {
		return dst, false
	}
	return append(dst, f.Data[:]...), true
}
func decodePathChallenge(rest []byte, consumed int) (Frame, int, error) {
	if len(rest) < 8 {
		return nil, 0, fmt.Errorf("frame: truncated PATH_CHALLENGE")
	}
	var f PathChallenge
	copy(f.Data[:], rest[:8])
	return f, f.Length(), nil
}

// PathResponse answers a PathChallenge.
type PathResponse struct{ Data [8]byte }

func (f PathResponse) Type() Type  { return TypePathResponse }
func (f PathResponse) Length() int { return varint.Len(uint64(TypePathResponse)) + 8 }
func (f PathResponse) Encode(dst []byte) ([]byte, bool) {
	var ok bool
	if dst, ok = putVarint(dst, uint64(TypePathResponse)); !ok {
		return dst, false
	}
	return append(dst, f.Data[:]...), true
}
func decodePathResponse(rest []byte, consumed int) (Frame, int, error) {
	if len(rest) < 8 {
		return nil, 0, fmt.Errorf("frame: truncated PATH_RESPONSE")
	}
	var f PathResponse
	copy(f.Data[:], rest[:8])
	return f, f.Length(), nil
}

// ConnectionClose carries a transport- or application-level error that
// ends the connection.
type ConnectionClose struct {
	App          bool
	ErrorCode    uint64
	FrameType    uint64 // only meaningful when App==false
	ReasonPhrase string
}

func (f ConnectionClose) Type() Type {
	if f.App {
		return TypeConnectionCloseApp
	}
	return TypeConnectionCloseQUIC
}
func (f ConnectionClose) Length() int {
	n := varint.Len(uint64(f.Type())) + varint.Len(f.ErrorCode)
	if !f.App {
		n += varint.Len(f.FrameType)
	}
	n += varint.Len(uint64(len(f.ReasonPhrase))) + len(f.ReasonPhrase)
	return n
}
func (f ConnectionClose) Encode(dst []byte) ([]byte, bool) {
	var ok bool
	if dst, ok = putVarint(dst, uint64(f.Type())); !ok {
		return dst, false
	}
	if dst, ok = putVarint(dst, f.ErrorCode); !ok {
		return dst, false
	}
	if !f.App {
		if dst, ok = putVarint(dst, f.FrameType); !ok {
			return dst, false
		}
	}
	if dst, ok = putVarint(dst, uint64(len(f.ReasonPhrase))); !ok {
		return dst, false
	}
	return append(dst, f.ReasonPhrase...), true
}
func decodeConnectionClose(rest []byte, consumed int, app bool) (Frame, int, error) {
	var f ConnectionClose
	f.App = app
	var ok bool
	if f.ErrorCode, rest, ok = takeVarint(rest); !ok {
		return nil, 0, fmt.Errorf("frame: truncated CONNECTION_CLOSE")
	}
	if !app {
		if f.FrameType, rest, ok = takeVarint(rest); !ok {
			return nil, 0, fmt.Errorf("frame: truncated CONNECTION_CLOSE")
		}
	}
	var length uint64
	if length, rest, ok = takeVarint(rest); !ok {
		return nil, 0, fmt.Errorf("frame: truncated CONNECTION_CLOSE")
	}
	if uint64(len(rest)) < length {
		return nil, 0, fmt.Errorf("frame: truncated CONNECTION_CLOSE reason")
	}
	f.ReasonPhrase = string(rest[:length])
	return f, f.Length(), nil
}

// HandshakeDone signals handshake confirmation; server-only in RFC 9000,
// kept here only so the codec round-trips it (spec.md is client-only, but
// the client must still be able to decode a peer HANDSHAKE_DONE).
type HandshakeDone struct{}

func (f HandshakeDone) Type() Type  { return TypeHandshakeDone }
func (f HandshakeDone) Length() int { return varint.Len(uint64(TypeHandshakeDone)) }
func (f HandshakeDone) Encode(dst []byte) ([]byte, bool) {
	return putVarint(dst, uint64(TypeHandshakeDone))
}
