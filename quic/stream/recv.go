package stream

import (
	"sync"

	"github.com/on-keyday/dnet/quic/frame"
	"github.com/on-keyday/dnet/quic/qerr"
)

// Deliverer is the application callback that consumes received fragments,
// per spec.md 4.6 step 5. It reports whether all data up to the stream's
// known final size has now been delivered.
type Deliverer func(offset uint64, data []byte, fin bool) (allDelivered bool)

// RecvUniStreamBase drives the receive side of one stream: pre_recv -> recv
// -> size_known -> data_recved -> data_read, or any -> reset_recv ->
// reset_read, per spec.md 3 and 4.11.
type RecvUniStreamBase struct {
	mu sync.Mutex

	id    ID
	state RecvState

	recvFlow *FlowControl // this stream's recv-side limit

	sizeKnown bool
	finalSize uint64

	stopSendingSent bool
}

// NewRecvUniStreamBase constructs a recv stream with the advertised
// initial receive limit this endpoint offers the peer.
func NewRecvUniStreamBase(id ID, initialLimit uint64) *RecvUniStreamBase {
	return &RecvUniStreamBase{id: id, recvFlow: NewFlowControl(initialLimit)}
}

// RecvStreamFrame processes a decoded STREAM frame, per spec.md 4.6.
// connFlow/connMu is the connection-level recv-side counter and its lock.
func (s *RecvUniStreamBase) RecvStreamFrame(f frame.Stream, connFlow *FlowControl, connMu *sync.Mutex, deliver Deliverer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() || s.state == RecvResetRecv {
		return nil // 1. terminal state: ignore
	}
	if s.state == RecvPreRecv {
		s.state = RecvRecv
	}

	end := f.Offset + uint64(len(f.Data))
	if s.sizeKnown && end > s.finalSize {
		return qerr.New(qerr.FinalSizeError, "rfc9000 4.5", "bytes received beyond known final size")
	}

	delta, err := s.recvFlow.AdvanceTo(end)
	if err != nil {
		return err
	}

	if delta > 0 {
		connMu.Lock()
		cerr := connFlow.Advance(delta)
		connMu.Unlock()
		if cerr != nil {
			return cerr
		}
	}

	if f.Fin {
		s.sizeKnown = true
		s.finalSize = end
		s.state = RecvSizeKnown
	}

	allDelivered := false
	if deliver != nil {
		allDelivered = deliver(f.Offset, f.Data, f.Fin)
	}
	if allDelivered && (s.sizeKnown || f.Fin) {
		s.state = RecvDataRecved
	}
	return nil
}

// RecvResetStream processes a RESET_STREAM frame, per spec.md 4.6.
func (s *RecvUniStreamBase) RecvResetStream(f frame.ResetStream, connFlow *FlowControl, connMu *sync.Mutex) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sizeKnown && f.FinalSize != s.finalSize {
		return qerr.New(qerr.FinalSizeError, "rfc9000 4.5", "RESET_STREAM final size disagrees with previously known final size")
	}
	if f.FinalSize < s.recvFlow.Used() {
		return qerr.New(qerr.FinalSizeError, "rfc9000 4.5", "RESET_STREAM final size less than bytes already observed")
	}

	delta, err := s.recvFlow.AdvanceTo(f.FinalSize)
	if err != nil {
		return err
	}
	if delta > 0 {
		connMu.Lock()
		cerr := connFlow.Advance(delta)
		connMu.Unlock()
		if cerr != nil {
			return cerr
		}
	}

	s.sizeKnown = true
	s.finalSize = f.FinalSize
	s.state = RecvResetRecv
	return nil
}

// ApplicationReadsReset transitions reset_recv -> reset_read once the
// application observes the reset.
func (s *RecvUniStreamBase) ApplicationReadsReset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == RecvResetRecv {
		s.state = RecvResetRead
	}
}

// ApplicationReadsAll transitions data_recved -> data_read.
func (s *RecvUniStreamBase) ApplicationReadsAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == RecvDataRecved {
		s.state = RecvDataRead
	}
}

// UpdateRecvLimit drives MAX_STREAM_DATA emission: fn receives the current
// limit and decides the next one, per spec.md 4.6.
func (s *RecvUniStreamBase) UpdateRecvLimit(fn func(current uint64) (uint64, bool)) (frame.MaxStreamData, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	newLimit, emit := s.recvFlow.UpdateRecvLimit(fn)
	if !emit {
		return frame.MaxStreamData{}, false
	}
	return frame.MaxStreamData{StreamID: uint64(s.id), Maximum: newLimit}, true
}

// RequestStopSending arms a STOP_SENDING emission; it is sent at most once
// per state, per spec.md 4.6.
func (s *RecvUniStreamBase) RequestStopSending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopSendingSent {
		return false
	}
	s.stopSendingSent = true
	return true
}

// State returns the current receive-side state.
func (s *RecvUniStreamBase) State() RecvState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
