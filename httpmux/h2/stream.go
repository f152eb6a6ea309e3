package h2

// StreamState mirrors the HTTP/2 stream lifecycle (RFC 9113 section 5.1),
// per spec.md 4.8 "idle -> open -> half-closed -> closed".
type StreamState int

const (
	StateIdle StreamState = iota
	StateOpen
	StateHalfClosedLocal
	StateHalfClosedRemote
	StateClosed
)

// clientStream is one entry in the stream table: state plus per-direction
// flow windows and the opaque application data pointer (spec.md 3 "HTTP/2
// stream table"), here the RequestApp passed to OpenStream rather than a
// void*.
type clientStream struct {
	id    uint32
	state StreamState

	sendFlow *flow // how much we may still send the peer
	recvFlow *flow // how much we have told the peer we may receive

	// Application is the opaque "application_data" from spec.md's stream
	// table: the RequestApp the client package passed to OpenStream, held
	// as any to avoid an import cycle back into client.
	Application any
}

// StreamTable maps stream IDs to their HTTP/2 state, per spec.md 3/4.8.
type StreamTable struct {
	streams map[uint32]*clientStream
	maxSeen uint32
}

func newStreamTable() *StreamTable {
	return &StreamTable{streams: map[uint32]*clientStream{}}
}

func (t *StreamTable) open(id uint32, initialSendWindow, initialRecvWindow int32) *clientStream {
	s := &clientStream{id: id, state: StateOpen, sendFlow: newFlow(initialSendWindow), recvFlow: newFlow(initialRecvWindow)}
	t.streams[id] = s
	if id > t.maxSeen {
		t.maxSeen = id
	}
	return s
}

func (t *StreamTable) get(id uint32) (*clientStream, bool) {
	s, ok := t.streams[id]
	return s, ok
}

func (t *StreamTable) delete(id uint32) { delete(t.streams, id) }

// adjustInitialWindow applies a SETTINGS_INITIAL_WINDOW_SIZE change to
// every open stream's send window, per RFC 9113 section 6.9.2. It reports
// false (a FLOW_CONTROL_ERROR per spec.md 6) if any window would exceed
// the 31-bit maximum.
func (t *StreamTable) adjustInitialWindow(delta int32) bool {
	for _, s := range t.streams {
		if !s.sendFlow.add(delta) {
			return false
		}
	}
	return true
}
