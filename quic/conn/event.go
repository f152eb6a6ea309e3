// Package conn ties together the QUIC connection ID manager, path state,
// and stream tables into one per-connection object with the lock
// discipline and event dispatch described in spec.md 4.1 and 4.7, grounded
// on the teacher's serve()-select-loop idiom
// (_teacher_ref/server.go serverConn.serve) generalized from one HTTP/2
// connection to a QUIC connection's four event kinds.
package conn

// EventKind groups send/recv callbacks the way spec.md 4.1 describes:
// "ack, crypto, conn_id, streams".
type EventKind int

const (
	EventAck EventKind = iota
	EventCrypto
	EventConnID
	EventStreams
)

// EventResult is what a handler reports back to the dispatcher.
type EventResult int

const (
	EventOK EventResult = iota
	EventFatal
	EventReorder
)

// SendHandler appends frames for one event kind during a single packet
// build. It returns EventReorder to give up its turn, after which
// DispatchSend goes on to the next kind in its fixed order (nothing is
// remembered for later calls), or EventFatal to abort the packet/connection.
type SendHandler func(remain int) (n int, result EventResult)

// RecvHandler processes one decoded frame belonging to its kind.
type RecvHandler func(payload any) EventResult

// Dispatcher runs the four event kinds in the same fixed order (ack,
// crypto, conn_id, streams) on every call, matching
// spec.md 4.1 "On send, each kind runs once per packet build... On receive,
// each kind runs per decoded frame."
type Dispatcher struct {
	sendHandlers map[EventKind]SendHandler
	recvHandlers map[EventKind]RecvHandler
	order        []EventKind
}

// NewDispatcher constructs a Dispatcher with the canonical event order.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		sendHandlers: map[EventKind]SendHandler{},
		recvHandlers: map[EventKind]RecvHandler{},
		order:        []EventKind{EventAck, EventCrypto, EventConnID, EventStreams},
	}
}

// OnSend registers the send-side callback for kind.
func (d *Dispatcher) OnSend(kind EventKind, h SendHandler) { d.sendHandlers[kind] = h }

// OnRecv registers the recv-side callback for kind.
func (d *Dispatcher) OnRecv(kind EventKind, h RecvHandler) { d.recvHandlers[kind] = h }

// DispatchSend runs every registered send handler once for one packet
// build, in order, stopping early on EventFatal.
func (d *Dispatcher) DispatchSend(remain int) (total int, result EventResult) {
	for _, k := range d.order {
		h, ok := d.sendHandlers[k]
		if !ok {
			continue
		}
		n, res := h(remain)
		total += n
		remain -= n
		switch res {
		case EventFatal:
			return total, EventFatal
		case EventReorder:
			// go on to the next kind; the order is the same on the next call.
			continue
		}
	}
	return total, EventOK
}

// DispatchRecv routes a decoded frame's kind to its handler.
func (d *Dispatcher) DispatchRecv(kind EventKind, payload any) EventResult {
	h, ok := d.recvHandlers[kind]
	if !ok {
		return EventOK
	}
	return h(payload)
}
