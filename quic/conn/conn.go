package conn

import (
	"sync"

	"github.com/on-keyday/dnet/quic/connid"
	"github.com/on-keyday/dnet/quic/path"
	"github.com/on-keyday/dnet/quic/stream"
)

// Connection owns one QUIC connection's mutable state: the connection ID
// manager, path MTU/validation state, the accept queues and open-stream
// registry, and connection-level flow control in each direction, per
// spec.md 4.7 "Concurrency primitives for streams".
//
// Lock ordering (spec.md 4.7): a stream-level operation always takes the
// stream's own lock (held inside *stream.SendUniStreamBase /
// RecvUniStreamBase) first; an operation that also consults connection
// flow control takes SendFlowMu/RecvFlowMu nested inside. Never reversed.
type Connection struct {
	IsClient bool

	IDs  *connid.Manager
	MTU  *path.MTUStatus
	Path path.Verifier

	SendFlow *stream.FlowControl
	SendFlowMu sync.Mutex

	RecvFlow *stream.FlowControl
	RecvFlowMu sync.Mutex

	acceptMu   sync.Mutex
	acceptBidi []stream.ID
	acceptUni  []stream.ID

	registryMu sync.Mutex
	sendStreams map[stream.ID]*stream.SendUniStreamBase
	recvStreams map[stream.ID]*stream.RecvUniStreamBase

	Dispatch *Dispatcher

	nextLocalBidi uint64
	nextLocalUni  uint64
}

// New constructs a Connection. initialConnSendLimit/initialConnRecvLimit
// are the connection-level MAX_DATA limits negotiated by transport
// parameters.
func New(isClient bool, initialConnSendLimit, initialConnRecvLimit uint64) *Connection {
	return &Connection{
		IsClient:    isClient,
		IDs:         connid.NewManager(false),
		MTU:         path.NewMTUStatus(),
		SendFlow:    stream.NewFlowControl(initialConnSendLimit),
		RecvFlow:    stream.NewFlowControl(initialConnRecvLimit),
		sendStreams: map[stream.ID]*stream.SendUniStreamBase{},
		recvStreams: map[stream.ID]*stream.RecvUniStreamBase{},
		Dispatch:    NewDispatcher(),
	}
}

func localInitiator(isClient bool) stream.Initiator {
	if isClient {
		return stream.InitiatorClient
	}
	return stream.InitiatorServer
}

// OpenBidiStream allocates the next local bidirectional stream ID and
// registers its send/recv state.
func (c *Connection) OpenBidiStream(peerInitialSendLimit, localInitialRecvLimit uint64) (stream.ID, *stream.SendUniStreamBase, *stream.RecvUniStreamBase) {
	c.registryMu.Lock()
	defer c.registryMu.Unlock()
	id := stream.NewID(c.nextLocalBidi, localInitiator(c.IsClient), stream.Bidirectional)
	c.nextLocalBidi++
	snd := stream.NewSendUniStreamBase(id, peerInitialSendLimit)
	rcv := stream.NewRecvUniStreamBase(id, localInitialRecvLimit)
	c.sendStreams[id] = snd
	c.recvStreams[id] = rcv
	return id, snd, rcv
}

// OpenUniStream allocates the next local unidirectional stream ID and
// registers its send-only state.
func (c *Connection) OpenUniStream(peerInitialSendLimit uint64) (stream.ID, *stream.SendUniStreamBase) {
	c.registryMu.Lock()
	defer c.registryMu.Unlock()
	id := stream.NewID(c.nextLocalUni, localInitiator(c.IsClient), stream.Unidirectional)
	c.nextLocalUni++
	snd := stream.NewSendUniStreamBase(id, peerInitialSendLimit)
	c.sendStreams[id] = snd
	return id, snd
}

// AcceptPeerStream registers state for a peer-initiated stream the first
// time a frame references it, and enqueues it on the matching accept
// queue (spec.md 4.7: "accept queue (bidi)", "accept queue (uni)").
func (c *Connection) AcceptPeerStream(id stream.ID, localInitialRecvLimit, peerInitialSendLimitForLocalReply uint64) *stream.RecvUniStreamBase {
	c.registryMu.Lock()
	if rcv, ok := c.recvStreams[id]; ok {
		c.registryMu.Unlock()
		return rcv
	}
	rcv := stream.NewRecvUniStreamBase(id, localInitialRecvLimit)
	c.recvStreams[id] = rcv
	if id.Directionality() == stream.Bidirectional {
		c.sendStreams[id] = stream.NewSendUniStreamBase(id, peerInitialSendLimitForLocalReply)
	}
	c.registryMu.Unlock()

	c.acceptMu.Lock()
	defer c.acceptMu.Unlock()
	if id.Directionality() == stream.Unidirectional {
		c.acceptUni = append(c.acceptUni, id)
	} else {
		c.acceptBidi = append(c.acceptBidi, id)
	}
	return rcv
}

// AcceptUni pops the next peer-initiated unidirectional stream ID, if any.
func (c *Connection) AcceptUni() (stream.ID, bool) {
	c.acceptMu.Lock()
	defer c.acceptMu.Unlock()
	if len(c.acceptUni) == 0 {
		return 0, false
	}
	id := c.acceptUni[0]
	c.acceptUni = c.acceptUni[1:]
	return id, true
}

// AcceptBidi pops the next peer-initiated bidirectional stream ID, if any.
func (c *Connection) AcceptBidi() (stream.ID, bool) {
	c.acceptMu.Lock()
	defer c.acceptMu.Unlock()
	if len(c.acceptBidi) == 0 {
		return 0, false
	}
	id := c.acceptBidi[0]
	c.acceptBidi = c.acceptBidi[1:]
	return id, true
}

// SendStream looks up a registered send stream.
func (c *Connection) SendStream(id stream.ID) (*stream.SendUniStreamBase, bool) {
	c.registryMu.Lock()
	defer c.registryMu.Unlock()
	s, ok := c.sendStreams[id]
	return s, ok
}

// RecvStream looks up a registered recv stream.
func (c *Connection) RecvStream(id stream.ID) (*stream.RecvUniStreamBase, bool) {
	c.registryMu.Lock()
	defer c.registryMu.Unlock()
	s, ok := c.recvStreams[id]
	return s, ok
}
