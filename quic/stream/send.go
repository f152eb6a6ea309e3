package stream

import (
	"sync"

	"github.com/on-keyday/dnet/quic/ack"
	"github.com/on-keyday/dnet/quic/frame"
)

// SendResult is the outcome of one Send call, per spec.md 4.5's error
// taxonomy.
type SendResult int

const (
	SendOK SendResult = iota
	SendNoCapacity
	SendNoData
	SendBlockByStream
	SendBlockByConn
	SendNotInIOState
	SendCancel
	SendInvalidData
	SendIDMismatch
	SendFatal
)

// SendUniStreamBase drives the send side of one stream: ready -> send ->
// data_sent -> data_recved, or send|data_sent -> reset_sent -> reset_recved,
// per spec.md 3 and 4.11. It owns its own lock (spec.md 4.7: "Each stream
// holds a lock").
type SendUniStreamBase struct {
	mu sync.Mutex

	id    ID
	state SendState

	writtenOffset uint64 // W in spec.md 4.5
	queued        []byte // user data not yet handed to a frame
	queuedOffset  uint64 // offset queued[0] corresponds to

	finPending bool

	streamFlow *FlowControl // this stream's send-side limit

	fragments []*Fragment

	requireReset     bool
	requireResetCode uint64
	resetCode        uint64
	resetWait        *ack.Record
}

// NewSendUniStreamBase constructs a send stream with the given peer-
// advertised initial MAX_STREAM_DATA limit.
func NewSendUniStreamBase(id ID, initialLimit uint64) *SendUniStreamBase {
	return &SendUniStreamBase{id: id, streamFlow: NewFlowControl(initialLimit)}
}

// Write enqueues application data for later transmission, transitioning
// ready -> send on the first call.
func (s *SendUniStreamBase) Write(data []byte, fin bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == SendReady {
		s.state = SendSending
	}
	s.queued = append(s.queued, data...)
	if fin {
		s.finPending = true
	}
}

// Send runs the per-packet send algorithm from spec.md 4.5. connFlow is the
// connection-level send-side flow control counter, guarded by connMu. Send
// takes the stream lock itself and then takes connMu nested inside it
// (spec.md 4.7 lock ordering: stream then connection-flow, never
// reversed), so the caller must hold neither lock when calling it.
func (s *SendUniStreamBase) Send(remain int, connFlow *FlowControl, connMu *sync.Mutex, w []byte) (out []byte, blockedFrame frame.Frame, result SendResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.requireReset {
		return w, nil, SendCancel // the armed reset is emitted by SendReset
	}

	if s.state != SendSending && s.state != SendReady {
		return w, nil, SendNotInIOState
	}

	hasOffset := s.writtenOffset != 0
	overhead := frame.StreamOverhead(uint64(s.id), s.writtenOffset, hasOffset)
	if remain < overhead {
		return w, nil, SendNoCapacity
	}

	dataRemain := len(s.queued)
	if dataRemain == 0 && !s.finPending {
		return w, nil, SendNoData
	}

	streamAvail := s.streamFlow.Avail()
	if streamAvail == 0 && !(s.finPending && dataRemain == 0) {
		blocked := frame.StreamDataBlocked{StreamID: uint64(s.id), Limit: s.streamFlow.Limit()}
		return w, blocked, SendBlockByStream
	}

	connMu.Lock()
	connAvail := connFlow.Avail()
	flow := dataRemain
	if int(streamAvail) < flow {
		flow = int(streamAvail)
	}
	if int(connAvail) < flow {
		flow = int(connAvail)
	}
	if flow == 0 && !(s.finPending && dataRemain == 0) {
		connMu.Unlock()
		blocked := frame.DataBlocked{Limit: connFlow.Limit()}
		return w, blocked, SendBlockByConn
	}

	fin := s.finPending && flow == dataRemain
	fr, ok := frame.MakeFitSize(remain, uint64(s.id), s.writtenOffset, s.queued[:flow], fin, fin)
	if !ok {
		connMu.Unlock()
		return w, nil, SendNoCapacity
	}
	sent := len(fr.Data)

	if err := connFlow.Advance(uint64(sent)); err != nil {
		connMu.Unlock()
		return w, nil, SendFatal
	}
	connMu.Unlock()
	if err := s.streamFlow.Advance(uint64(sent)); err != nil {
		return w, nil, SendFatal
	}

	enc, ok := fr.Encode(w)
	if !ok {
		return w, nil, SendFatal
	}

	rec := ack.New()
	s.fragments = append(s.fragments, &Fragment{Offset: s.writtenOffset, Bytes: append([]byte(nil), fr.Data...), Fin: fr.Fin, Wait: rec})

	s.writtenOffset += uint64(sent)
	s.queued = s.queued[sent:]
	if fr.Fin {
		s.state = SendDataSent
		s.finPending = false
	}

	return enc, nil, SendOK
}

// SendReset emits a RESET_STREAM, transitioning to reset_sent, per
// spec.md 4.5. In reset_sent it emits again only after OnResetLost has
// re-armed the reset.
func (s *SendUniStreamBase) SendReset(remain int, code uint64, w []byte) (out []byte, result SendResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == SendResetRecved || (s.state == SendResetSent && !s.requireReset) {
		return w, SendCancel
	}
	f := frame.ResetStream{StreamID: uint64(s.id), ApplicationErrorCode: code, FinalSize: s.writtenOffset}
	if remain < f.Length() {
		return w, SendNoCapacity
	}
	enc, ok := f.Encode(w)
	if !ok {
		return w, SendFatal
	}
	s.resetCode = code
	s.resetWait = ack.New()
	s.state = SendResetSent
	s.requireReset = false
	return enc, SendOK
}

// ResetRequired reports whether a peer STOP_SENDING armed a pending reset
// and the code to send, so the caller's per-packet loop can route to
// SendReset instead of Send (spec.md 4.5: "the next send emits the reset").
func (s *SendUniStreamBase) ResetRequired() (code uint64, required bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requireResetCode, s.requireReset
}

// RequireReset arms a reset in response to a peer STOP_SENDING frame, per
// spec.md 4.5. While it is armed, Send returns SendCancel and
// ResetRequired reports the code; SendReset emits the RESET_STREAM.
func (s *SendUniStreamBase) RequireReset(code uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requireReset = true
	s.requireResetCode = code
}

// OnResetAcked transitions reset_sent -> reset_recved.
func (s *SendUniStreamBase) OnResetAcked() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == SendResetSent {
		s.state = SendResetRecved
	}
}

// OnResetLost re-arms the reset for retransmission (spec.md 4.5
// "Retransmit on waiter lost").
func (s *SendUniStreamBase) OnResetLost() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == SendResetSent {
		s.requireReset = true
		s.requireResetCode = s.resetCode
	}
}

// Retransmit walks the fragment list, resending lost fragments and removing
// acked ones. remain is the current packet's writable budget. It may split
// a partially-fitting fragment into a sent prefix and a kept suffix, per
// spec.md 4.5.
func (s *SendUniStreamBase) Retransmit(remain int, w []byte) (out []byte, nSent int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.fragments[:0]
	for _, f := range s.fragments {
		switch {
		case f.Wait == nil || f.Wait.IsAck():
			// dropped: fully acked, remove.
			continue
		case f.Wait.IsLost():
			hasOffset := f.Offset != 0
			overhead := frame.StreamOverhead(uint64(s.id), f.Offset, hasOffset)
			if remain < overhead {
				kept = append(kept, f)
				continue
			}
			fr, ok := frame.MakeFitSize(remain, uint64(s.id), f.Offset, f.Bytes, f.Fin, f.Fin)
			if !ok {
				kept = append(kept, f)
				continue
			}
			enc, ok := fr.Encode(w)
			if !ok {
				kept = append(kept, f)
				continue
			}
			w = enc
			remain -= len(fr.Data) + overhead
			nSent++

			sentLen := len(fr.Data)
			newWait := ack.New()
			if sentLen < len(f.Bytes) {
				// split: sent prefix gets its own fragment+waiter, suffix stays.
				kept = append(kept, &Fragment{Offset: f.Offset, Bytes: f.Bytes[:sentLen], Fin: false, Wait: newWait})
				kept = append(kept, &Fragment{Offset: f.Offset + uint64(sentLen), Bytes: f.Bytes[sentLen:], Fin: f.Fin, Wait: f.Wait})
			} else {
				f.Wait = newWait
				kept = append(kept, f)
			}
		default: // waiting, untouched
			kept = append(kept, f)
		}
	}
	s.fragments = kept
	return w, nSent
}

// State returns the current send-side state.
func (s *SendUniStreamBase) State() SendState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// WrittenOffset returns W, the bytes committed to frames so far.
func (s *SendUniStreamBase) WrittenOffset() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writtenOffset
}

// UnackedBytes returns the sum of bytes attributed to fragments not yet
// acked, for invariant 1 in spec.md section 8.
func (s *SendUniStreamBase) UnackedBytes() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n uint64
	for _, f := range s.fragments {
		if f.Wait == nil || f.Wait.IsAck() {
			continue
		}
		n += uint64(len(f.Bytes))
	}
	return n
}
