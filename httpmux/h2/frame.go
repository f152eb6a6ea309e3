// Package h2 implements the HTTP/2 framer, stream table, HPACK-backed
// header (de)compression, flow control, settings, and GOAWAY handling used
// by the client multiplex (spec.md 4.8, 6), grounded on the teacher's
// channel-driven serverConn (_teacher_ref/server.go) generalized from an
// HTTP/2 *server* to the *client* half of the same protocol, and on
// golang.org/x/net/http2/hpack for header compression (the modern home of
// the teacher's github.com/bradfitz/http2/hpack import).
package h2

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ClientPreface is the 24-byte connection preface every HTTP/2 client must
// send before its first SETTINGS frame (spec.md 6).
const ClientPreface = "PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n"

// FrameType is the 8-bit HTTP/2 frame type (RFC 9113 section 6).
type FrameType uint8

const (
	FrameData         FrameType = 0x0
	FrameHeaders      FrameType = 0x1
	FramePriority     FrameType = 0x2
	FrameRSTStream    FrameType = 0x3
	FrameSettings     FrameType = 0x4
	FramePushPromise  FrameType = 0x5
	FramePing         FrameType = 0x6
	FrameGoAway       FrameType = 0x7
	FrameWindowUpdate FrameType = 0x8
	FrameContinuation FrameType = 0x9
)

// Flags is the 8-bit per-frame flag set; meaning depends on FrameType.
type Flags uint8

const (
	FlagEndStream  Flags = 0x1
	FlagEndHeaders Flags = 0x4
	FlagPadded     Flags = 0x8
	FlagPriority   Flags = 0x20
	FlagAck        Flags = 0x1 // SETTINGS/PING ack
)

func (f Flags) Has(b Flags) bool { return f&b != 0 }

// FrameHeader is the fixed 9-byte header preceding every HTTP/2 frame
// (spec.md 6).
type FrameHeader struct {
	Length   uint32 // 24 bits
	Type     FrameType
	Flags    Flags
	StreamID uint32 // 31 bits, top bit reserved
}

const frameHeaderLen = 9
const maxFrameLength = 1<<24 - 1

// WriteFrameHeader appends the 9-byte encoding of h to dst.
func WriteFrameHeader(dst []byte, h FrameHeader) []byte {
	var b [frameHeaderLen]byte
	b[0] = byte(h.Length >> 16)
	b[1] = byte(h.Length >> 8)
	b[2] = byte(h.Length)
	b[3] = byte(h.Type)
	b[4] = byte(h.Flags)
	binary.BigEndian.PutUint32(b[5:], h.StreamID&0x7fffffff)
	return append(dst, b[:]...)
}

// ReadFrameHeader parses the 9-byte header from the front of r.
func ReadFrameHeader(r io.Reader) (FrameHeader, error) {
	var b [frameHeaderLen]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return FrameHeader{}, err
	}
	return FrameHeader{
		Length:   uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2]),
		Type:     FrameType(b[3]),
		Flags:    Flags(b[4]),
		StreamID: binary.BigEndian.Uint32(b[5:]) & 0x7fffffff,
	}, nil
}

// Frame is a fully decoded HTTP/2 frame: header plus raw payload. Higher
// level helpers (ParseSettings, headers block accessors, ...) interpret
// Payload according to Header.Type.
type Frame struct {
	Header  FrameHeader
	Payload []byte
}

// ReadFrame reads one frame (header + payload) from r.
func ReadFrame(r io.Reader, maxLength uint32) (Frame, error) {
	h, err := ReadFrameHeader(r)
	if err != nil {
		return Frame{}, err
	}
	if h.Length > maxLength {
		return Frame{}, fmt.Errorf("h2: frame length %d exceeds max %d", h.Length, maxLength)
	}
	payload := make([]byte, h.Length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, err
	}
	return Frame{Header: h, Payload: payload}, nil
}

// WriteFrame appends a complete frame (header + payload) to dst.
func WriteFrame(dst []byte, typ FrameType, flags Flags, streamID uint32, payload []byte) ([]byte, error) {
	if len(payload) > maxFrameLength {
		return dst, errors.New("h2: frame payload too large")
	}
	dst = WriteFrameHeader(dst, FrameHeader{Length: uint32(len(payload)), Type: typ, Flags: flags, StreamID: streamID})
	return append(dst, payload...), nil
}

// Setting is one SETTINGS parameter (id, value) pair.
type Setting struct {
	ID    uint16
	Value uint32
}

const (
	SettingHeaderTableSize      uint16 = 0x1
	SettingEnablePush           uint16 = 0x2
	SettingMaxConcurrentStreams uint16 = 0x3
	SettingInitialWindowSize    uint16 = 0x4
	SettingMaxFrameSize         uint16 = 0x5
	SettingMaxHeaderListSize    uint16 = 0x6
)

// EncodeSettings builds a SETTINGS frame payload from a list of settings.
func EncodeSettings(settings []Setting) []byte {
	buf := make([]byte, 0, len(settings)*6)
	for _, s := range settings {
		var b [6]byte
		binary.BigEndian.PutUint16(b[0:2], s.ID)
		binary.BigEndian.PutUint32(b[2:6], s.Value)
		buf = append(buf, b[:]...)
	}
	return buf
}

// ParseSettings decodes a SETTINGS frame payload.
func ParseSettings(payload []byte) ([]Setting, error) {
	if len(payload)%6 != 0 {
		return nil, errors.New("h2: malformed SETTINGS frame")
	}
	out := make([]Setting, 0, len(payload)/6)
	for i := 0; i < len(payload); i += 6 {
		out = append(out, Setting{
			ID:    binary.BigEndian.Uint16(payload[i : i+2]),
			Value: binary.BigEndian.Uint32(payload[i+2 : i+6]),
		})
	}
	return out, nil
}

// ParseWindowUpdate decodes a WINDOW_UPDATE frame payload.
func ParseWindowUpdate(payload []byte) (increment uint32, err error) {
	if len(payload) != 4 {
		return 0, errors.New("h2: malformed WINDOW_UPDATE frame")
	}
	return binary.BigEndian.Uint32(payload) & 0x7fffffff, nil
}

// EncodeWindowUpdate builds a WINDOW_UPDATE frame payload.
func EncodeWindowUpdate(increment uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], increment&0x7fffffff)
	return b[:]
}

// ParseRSTStream decodes a RST_STREAM frame payload.
func ParseRSTStream(payload []byte) (code uint32, err error) {
	if len(payload) != 4 {
		return 0, errors.New("h2: malformed RST_STREAM frame")
	}
	return binary.BigEndian.Uint32(payload), nil
}

// EncodeRSTStream builds a RST_STREAM frame payload.
func EncodeRSTStream(code uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], code)
	return b[:]
}

// ParseGoAway decodes a GOAWAY frame payload.
func ParseGoAway(payload []byte) (lastStreamID uint32, code uint32, debug []byte, err error) {
	if len(payload) < 8 {
		return 0, 0, nil, errors.New("h2: malformed GOAWAY frame")
	}
	lastStreamID = binary.BigEndian.Uint32(payload[0:4]) & 0x7fffffff
	code = binary.BigEndian.Uint32(payload[4:8])
	debug = payload[8:]
	return
}

// EncodeGoAway builds a GOAWAY frame payload.
func EncodeGoAway(lastStreamID uint32, code uint32, debug []byte) []byte {
	buf := make([]byte, 8+len(debug))
	binary.BigEndian.PutUint32(buf[0:4], lastStreamID&0x7fffffff)
	binary.BigEndian.PutUint32(buf[4:8], code)
	copy(buf[8:], debug)
	return buf
}

// HeadersPayload splits a HEADERS frame's payload into its header-block
// fragment, stripping any padding and priority fields per flags.
func HeadersPayload(h FrameHeader, payload []byte) (frag []byte, err error) {
	p := payload
	if h.Flags.Has(FlagPadded) {
		if len(p) < 1 {
			return nil, errors.New("h2: truncated padded HEADERS")
		}
		padLen := int(p[0])
		p = p[1:]
		if padLen > len(p) {
			return nil, errors.New("h2: pad length exceeds frame")
		}
		p = p[:len(p)-padLen]
	}
	if h.Flags.Has(FlagPriority) {
		if len(p) < 5 {
			return nil, errors.New("h2: truncated HEADERS priority fields")
		}
		p = p[5:]
	}
	return p, nil
}
