package h2

import (
	"sync"

	"golang.org/x/net/http2/hpack"
)

const (
	initialHeaderTableSize = 4096
	initialWindowSize      = 65535
	initialMaxFrameSize    = 16384
)

// RequestApp is implemented by the client package's per-request state and
// lets Handler deliver response events without importing the client
// package (avoiding an import cycle), per spec.md 3 "application_data is an
// opaque pointer to the per-request Response object".
type RequestApp interface {
	// OnResponseHeaders delivers one decoded header field.
	OnResponseHeaders(name, value string)
	// OnResponseHeadersEnd is called once all HEADERS/CONTINUATION frames
	// for the response have been processed.
	OnResponseHeadersEnd()
	// OnData delivers a chunk of response body.
	OnData(p []byte)
	// OnStreamClosed is called once, with the terminal error (nil on a
	// clean END_STREAM).
	OnStreamClosed(err error)
}

// Handler drives one HTTP/2 connection's client-side multiplex: the
// stream table, HPACK, flow control, SETTINGS, and GOAWAY, per spec.md 4.8.
// It mirrors the teacher's serverConn shape (_teacher_ref/server.go)
// generalized from a server accepting streams to a client opening them.
type Handler struct {
	mu sync.Mutex

	table *StreamTable

	connSendFlow *flow // our budget to send the peer DATA
	connRecvFlow *flow // budget we have granted the peer

	hpackEncoder *hpackEncBuf
	hpackDecoder *hpack.Decoder

	nextStreamID uint32 // client streams are odd-numbered

	initialWindowSize int32
	maxFrameSize       uint32

	sentGoAway   bool
	peerGoneAway bool
	lastPeerStreamID uint32

	out []byte // accumulated output bytes the client pump drains

	curHeaderStreamID uint32 // nonzero while reading HEADERS+CONTINUATION
	curHeaderApp      RequestApp
	curHeaderEnd      bool
}

type hpackEncBuf struct {
	buf []byte
	enc *hpack.Encoder
}

func (h *hpackEncBuf) Write(p []byte) (int, error) {
	h.buf = append(h.buf, p...)
	return len(p), nil
}

// NewHandler constructs a client-role Handler and appends the client
// preface + initial SETTINGS (ENABLE_PUSH=0, per spec.md 6) to its output
// buffer.
func NewHandler() *Handler {
	hb := &hpackEncBuf{}
	hb.enc = hpack.NewEncoder(hb)
	h := &Handler{
		table:             newStreamTable(),
		connSendFlow:      newFlow(initialWindowSize),
		connRecvFlow:      newFlow(initialWindowSize),
		hpackEncoder:      hb,
		nextStreamID:      1,
		initialWindowSize: initialWindowSize,
		maxFrameSize:      initialMaxFrameSize,
	}
	h.hpackDecoder = hpack.NewDecoder(initialHeaderTableSize, h.onHeaderField)
	h.out = append(h.out, ClientPreface...)
	settings := EncodeSettings([]Setting{{ID: SettingEnablePush, Value: 0}})
	h.out, _ = WriteFrame(h.out, FrameSettings, 0, 0, settings)
	return h
}

// DrainOutput returns and clears accumulated output bytes, for the client
// pump to write to the socket (spec.md 4.10 "Writer pump... flushes the
// framer's output buffer").
func (h *Handler) DrainOutput() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := h.out
	h.out = nil
	return out
}

// OpenStream allocates the next client stream ID, encodes the given
// pseudo+regular headers with HPACK, and appends a HEADERS frame (with
// END_HEADERS; no CONTINUATION support for request headers since client
// request header sets are bounded and under one SETTINGS_MAX_FRAME_SIZE in
// practice). endStream is true for bodiless requests.
func (h *Handler) OpenStream(headers []hpack.HeaderField, endStream bool, app RequestApp) (streamID uint32, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextStreamID
	h.nextStreamID += 2

	h.hpackEncoder.buf = h.hpackEncoder.buf[:0]
	for _, f := range headers {
		if err := h.hpackEncoder.enc.WriteField(f); err != nil {
			return 0, err
		}
	}
	block := append([]byte(nil), h.hpackEncoder.buf...)

	flags := FlagEndHeaders
	if endStream {
		flags |= FlagEndStream
	}
	var werr error
	h.out, werr = WriteFrame(h.out, FrameHeaders, flags, id, block)
	if werr != nil {
		return 0, werr
	}

	st := h.table.open(id, h.initialWindowSize, initialWindowSize)
	st.Application = app
	if endStream {
		st.state = StateHalfClosedLocal
	}
	return id, nil
}

// WriteData appends a DATA frame for an open stream, respecting both
// stream- and connection-level send windows (spec.md 4.8).
func (h *Handler) WriteData(streamID uint32, p []byte, endStream bool) (n int, blocked bool, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	st, ok := h.table.get(streamID)
	if !ok {
		return 0, false, StreamError{StreamID: streamID, Code: ErrCodeStreamClosed}
	}
	avail := st.sendFlow.available()
	if connAvail := h.connSendFlow.available(); connAvail < avail {
		avail = connAvail
	}
	if avail <= 0 {
		if len(p) == 0 && endStream {
			// zero-length DATA with END_STREAM is exempt from flow control.
		} else {
			return 0, true, nil
		}
	}
	send := len(p)
	if int32(send) > avail {
		send = int(avail)
	}
	flags := Flags(0)
	if endStream && send == len(p) {
		flags |= FlagEndStream
	}
	var werr error
	h.out, werr = WriteFrame(h.out, FrameData, flags, streamID, p[:send])
	if werr != nil {
		return 0, false, werr
	}
	st.sendFlow.take(int32(send))
	h.connSendFlow.take(int32(send))
	if flags.Has(FlagEndStream) {
		if st.state == StateHalfClosedRemote {
			st.state = StateClosed
			h.table.delete(streamID)
		} else {
			st.state = StateHalfClosedLocal
		}
	}
	return send, false, nil
}

// HandleFrame processes one frame read from the connection, dispatching
// to the stream table and updating flow control, per spec.md 4.8.
func (h *Handler) HandleFrame(f Frame) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.curHeaderStreamID != 0 && f.Header.Type != FrameContinuation {
		return ConnectionError(ErrCodeProtocol)
	}

	switch f.Header.Type {
	case FrameSettings:
		return h.processSettings(f)
	case FrameHeaders:
		return h.processHeaders(f)
	case FrameContinuation:
		return h.processContinuation(f)
	case FrameData:
		return h.processData(f)
	case FrameWindowUpdate:
		return h.processWindowUpdate(f)
	case FramePing:
		return h.processPing(f)
	case FrameRSTStream:
		return h.processRSTStream(f)
	case FrameGoAway:
		return h.processGoAway(f)
	default:
		return nil // unknown frames are ignored per RFC 9113 section 4.1
	}
}

func (h *Handler) processSettings(f Frame) error {
	if f.Header.Flags.Has(FlagAck) {
		return nil
	}
	settings, err := ParseSettings(f.Payload)
	if err != nil {
		return ConnectionError(ErrCodeFrameSize)
	}
	for _, s := range settings {
		if s.ID == SettingInitialWindowSize {
			if s.Value > 1<<31-1 {
				return ConnectionError(ErrCodeFlowControl)
			}
			old := h.initialWindowSize
			h.initialWindowSize = int32(s.Value)
			if !h.table.adjustInitialWindow(h.initialWindowSize - old) {
				return ConnectionError(ErrCodeFlowControl)
			}
		}
		if s.ID == SettingMaxFrameSize {
			h.maxFrameSize = s.Value
		}
	}
	h.out, _ = WriteFrame(h.out, FrameSettings, FlagAck, 0, nil)
	return nil
}

func (h *Handler) processHeaders(f Frame) error {
	id := f.Header.StreamID
	if h.sentGoAway {
		return nil
	}
	st, ok := h.table.get(id)
	if !ok {
		return nil // unknown/already-closed stream; ignore per RFC 9113 5.1
	}
	frag, err := HeadersPayload(f.Header, f.Payload)
	if err != nil {
		return ConnectionError(ErrCodeProtocol)
	}
	h.curHeaderStreamID = id
	h.curHeaderApp, _ = st.Application.(RequestApp)
	h.curHeaderEnd = f.Header.Flags.Has(FlagEndHeaders)
	if _, err := h.hpackDecoder.Write(frag); err != nil {
		return ConnectionError(ErrCodeCompression)
	}
	if h.curHeaderEnd {
		return h.finishHeaders(f.Header.Flags.Has(FlagEndStream))
	}
	return nil
}

func (h *Handler) processContinuation(f Frame) error {
	if h.curHeaderStreamID != f.Header.StreamID {
		return ConnectionError(ErrCodeProtocol)
	}
	if _, err := h.hpackDecoder.Write(f.Payload); err != nil {
		return ConnectionError(ErrCodeCompression)
	}
	if f.Header.Flags.Has(FlagEndHeaders) {
		return h.finishHeaders(false)
	}
	return nil
}

func (h *Handler) finishHeaders(endStream bool) error {
	if err := h.hpackDecoder.Close(); err != nil {
		return ConnectionError(ErrCodeCompression)
	}
	app := h.curHeaderApp
	id := h.curHeaderStreamID
	h.curHeaderStreamID = 0
	h.curHeaderApp = nil
	if app != nil {
		app.OnResponseHeadersEnd()
	}
	if endStream {
		h.closeStream(id, nil)
	}
	return nil
}

func (h *Handler) onHeaderField(f hpack.HeaderField) {
	if h.curHeaderApp != nil {
		h.curHeaderApp.OnResponseHeaders(f.Name, f.Value)
	}
}

func (h *Handler) processData(f Frame) error {
	id := f.Header.StreamID
	st, ok := h.table.get(id)
	if !ok || (st.state != StateOpen && st.state != StateHalfClosedLocal) {
		return StreamError{StreamID: id, Code: ErrCodeStreamClosed}
	}
	n := len(f.Payload)
	if !st.recvFlow.add(-int32(n)) {
		return StreamError{StreamID: id, Code: ErrCodeFlowControl}
	}
	if !h.connRecvFlow.add(-int32(n)) {
		return ConnectionError(ErrCodeFlowControl)
	}
	if app, ok := st.Application.(RequestApp); ok && n > 0 {
		app.OnData(f.Payload)
	}
	// grant back window once consumed; a real implementation paces this,
	// here we replenish immediately to keep the client pump simple.
	if n > 0 {
		st.recvFlow.add(int32(n))
		h.connRecvFlow.add(int32(n))
		h.out, _ = WriteFrame(h.out, FrameWindowUpdate, 0, id, EncodeWindowUpdate(uint32(n)))
		h.out, _ = WriteFrame(h.out, FrameWindowUpdate, 0, 0, EncodeWindowUpdate(uint32(n)))
	}
	if f.Header.Flags.Has(FlagEndStream) {
		h.closeStream(id, nil)
	}
	return nil
}

func (h *Handler) processWindowUpdate(f Frame) error {
	inc, err := ParseWindowUpdate(f.Payload)
	if err != nil {
		return ConnectionError(ErrCodeFrameSize)
	}
	if f.Header.StreamID == 0 {
		if !h.connSendFlow.add(int32(inc)) {
			h.sendGoAway(ErrCodeFlowControl)
			return nil
		}
		return nil
	}
	st, ok := h.table.get(f.Header.StreamID)
	if !ok {
		return nil
	}
	if !st.sendFlow.add(int32(inc)) {
		return StreamError{StreamID: f.Header.StreamID, Code: ErrCodeFlowControl}
	}
	return nil
}

func (h *Handler) processPing(f Frame) error {
	if f.Header.Flags.Has(FlagAck) {
		return nil
	}
	var err error
	h.out, err = WriteFrame(h.out, FramePing, FlagAck, 0, f.Payload)
	return err
}

func (h *Handler) processRSTStream(f Frame) error {
	code, err := ParseRSTStream(f.Payload)
	if err != nil {
		return ConnectionError(ErrCodeFrameSize)
	}
	h.closeStream(f.Header.StreamID, StreamError{StreamID: f.Header.StreamID, Code: ErrCode(code)})
	return nil
}

func (h *Handler) processGoAway(f Frame) error {
	last, code, _, err := ParseGoAway(f.Payload)
	if err != nil {
		return ConnectionError(ErrCodeFrameSize)
	}
	h.peerGoneAway = true
	h.lastPeerStreamID = last
	for id, st := range h.table.streams {
		if id > last {
			if app, ok := st.Application.(RequestApp); ok {
				app.OnStreamClosed(ConnectionError(code))
			}
			h.table.delete(id)
		}
	}
	return nil
}

func (h *Handler) closeStream(id uint32, err error) {
	st, ok := h.table.get(id)
	if !ok {
		return
	}
	if app, ok := st.Application.(RequestApp); ok {
		app.OnStreamClosed(err)
	}
	h.table.delete(id)
}

// SendGoAway emits a GOAWAY with the last processed stream ID, per
// spec.md 4.8.
func (h *Handler) SendGoAway(code ErrCode) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sendGoAway(code)
}

func (h *Handler) sendGoAway(code ErrCode) {
	h.sentGoAway = true
	h.out, _ = WriteFrame(h.out, FrameGoAway, 0, 0, EncodeGoAway(h.table.maxSeen, uint32(code), nil))
}

// MaxFrameSize returns the current negotiated max frame size, so the
// client pipeline can size HEADERS/DATA writes.
func (h *Handler) MaxFrameSize() uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.maxFrameSize
}
