// Package stream implements the QUIC per-stream send/recv state machines,
// flow control, and retransmission queue described in spec.md sections 3,
// 4.5-4.7 and 4.11, grounded on
// _examples/original_source/src/include/dnet/quic/stream/stream_base.h and
// the teacher's flow-control struct shape (_teacher_ref/server.go's `flow`
// type, generalized from a single HTTP/2 window to QUIC's separate
// stream-level and connection-level counters).
package stream

import "github.com/on-keyday/dnet/quic/qerr"

// FlowControl tracks one direction's byte counter against its current
// limit, used both at stream level and connection level (spec.md 3
// "Connection flow control").
type FlowControl struct {
	used  uint64
	limit uint64
}

// NewFlowControl constructs a counter starting at zero with the given
// initial limit.
func NewFlowControl(limit uint64) *FlowControl { return &FlowControl{limit: limit} }

// Used reports bytes sent (or received) so far.
func (f *FlowControl) Used() uint64 { return f.used }

// Limit reports the current limit.
func (f *FlowControl) Limit() uint64 { return f.limit }

// Avail reports remaining budget, zero floor.
func (f *FlowControl) Avail() uint64 {
	if f.used >= f.limit {
		return 0
	}
	return f.limit - f.used
}

// Advance consumes n bytes of budget. It reports a FLOW_CONTROL_ERROR if
// doing so would exceed the limit (spec.md 4.6 step 2/3, invariant 2).
func (f *FlowControl) Advance(n uint64) error {
	if f.used+n > f.limit {
		return qerr.New(qerr.FlowControlError, "rfc9000 4.1", "flow control limit exceeded")
	}
	f.used += n
	return nil
}

// AdvanceTo sets used to max(used, to), matching recv_bytes = max(recv_bytes,
// offset+len) in spec.md 4.6 step 2. Returns a FLOW_CONTROL_ERROR if `to`
// exceeds the limit.
func (f *FlowControl) AdvanceTo(to uint64) (delta uint64, err error) {
	if to <= f.used {
		return 0, nil
	}
	if to > f.limit {
		return 0, qerr.New(qerr.FlowControlError, "rfc9000 4.1", "flow control limit exceeded")
	}
	delta = to - f.used
	f.used = to
	return delta, nil
}

// Raise sets a new, strictly larger limit; returns false if newLimit is not
// strictly larger (spec.md 4.6 "Only strictly larger new limits are
// transmitted").
func (f *FlowControl) Raise(newLimit uint64) bool {
	if newLimit <= f.limit {
		return false
	}
	f.limit = newLimit
	return true
}

// UpdateRecvLimit lets the application decide a new receive limit, mirroring
// update_recv_limit(fn) in spec.md 4.6: fn receives the current limit and
// returns (newLimit, emit). Only a strictly larger limit is applied/emitted.
func (f *FlowControl) UpdateRecvLimit(fn func(current uint64) (uint64, bool)) (newLimit uint64, emit bool) {
	newLimit, emit = fn(f.limit)
	if !emit || newLimit <= f.limit {
		return f.limit, false
	}
	f.limit = newLimit
	return newLimit, true
}
