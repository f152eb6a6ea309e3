package stream

import (
	"sync"
	"testing"

	"github.com/on-keyday/dnet/quic/frame"
	"github.com/stretchr/testify/require"
)

func frameStream(offset uint64, data []byte, fin bool) frame.Stream {
	return frame.Stream{StreamID: 4, Offset: offset, Data: data, Fin: fin, HasOffset: offset != 0, HasLength: true}
}

func TestSendStreamFlowControlScenario(t *testing.T) {
	connFlow := NewFlowControl(1000)
	var connMu sync.Mutex
	s := NewSendUniStreamBase(ID(4), 1000)
	s.Write(make([]byte, 11000), false)

	buf, blocked, res := s.Send(63, connFlow, &connMu, nil)
	require.Equal(t, SendOK, res)
	require.Nil(t, blocked)
	require.Len(t, buf, 63)

	// A follow-up send with 63 bytes of fresh writer budget continues at
	// the new written offset.
	s2 := NewSendUniStreamBase(ID(4), 1000)
	s2.Write(make([]byte, 63), false)
	s2.writtenOffset = 61 // simulate having already sent the first 61 bytes
	buf2, _, res2 := s2.Send(63, connFlow, &connMu, nil)
	require.Equal(t, SendOK, res2)
	require.NotEmpty(t, buf2)
}

func TestSendStreamBlockedByStreamLimit(t *testing.T) {
	connFlow := NewFlowControl(1000)
	var connMu sync.Mutex
	s := NewSendUniStreamBase(ID(4), 0)
	s.Write([]byte("hello"), false)

	_, blocked, res := s.Send(100, connFlow, &connMu, nil)
	require.Equal(t, SendBlockByStream, res)
	require.NotNil(t, blocked)
}

func TestSendStreamBlockedByConnLimit(t *testing.T) {
	connFlow := NewFlowControl(0)
	var connMu sync.Mutex
	s := NewSendUniStreamBase(ID(4), 1000)
	s.Write([]byte("hello"), false)

	_, blocked, res := s.Send(100, connFlow, &connMu, nil)
	require.Equal(t, SendBlockByConn, res)
	require.NotNil(t, blocked)
}

func TestSendStreamFinTransitionsToDataSent(t *testing.T) {
	connFlow := NewFlowControl(1000)
	var connMu sync.Mutex
	s := NewSendUniStreamBase(ID(4), 1000)
	s.Write([]byte("hi"), true)

	_, _, res := s.Send(100, connFlow, &connMu, nil)
	require.Equal(t, SendOK, res)
	require.Equal(t, SendDataSent, s.State())
}

func TestSendStreamNoDataNoFin(t *testing.T) {
	connFlow := NewFlowControl(1000)
	var connMu sync.Mutex
	s := NewSendUniStreamBase(ID(4), 1000)
	_, _, res := s.Send(100, connFlow, &connMu, nil)
	require.Equal(t, SendNoData, res)
}

func TestUnackedBytesInvariant(t *testing.T) {
	connFlow := NewFlowControl(1000)
	var connMu sync.Mutex
	s := NewSendUniStreamBase(ID(4), 1000)
	s.Write([]byte("hello world"), true)
	_, _, res := s.Send(100, connFlow, &connMu, nil)
	require.Equal(t, SendOK, res)

	// unacked == written_offset - acked_prefix_length (acked_prefix=0 here)
	require.Equal(t, s.WrittenOffset(), s.UnackedBytes())

	s.fragments[0].Wait.Ack()
	require.Equal(t, uint64(0), s.UnackedBytes())
}

func TestRecvStreamFlowControlRejectsOverLimit(t *testing.T) {
	connFlow := NewFlowControl(1000)
	var connMu sync.Mutex
	r := NewRecvUniStreamBase(ID(4), 10)

	f := frameStream(0, make([]byte, 20), false)
	err := r.RecvStreamFrame(f, connFlow, &connMu, nil)
	require.Error(t, err)
}

func TestRecvStreamFinalSizeError(t *testing.T) {
	connFlow := NewFlowControl(1000)
	var connMu sync.Mutex
	r := NewRecvUniStreamBase(ID(4), 1000)

	f := frameStream(0, make([]byte, 10), true) // FIN at offset 10
	require.NoError(t, r.RecvStreamFrame(f, connFlow, &connMu, nil))

	late := frameStream(10, make([]byte, 1), false) // one more byte beyond final size
	err := r.RecvStreamFrame(late, connFlow, &connMu, nil)
	require.Error(t, err)
}

func TestRecvStreamDeliversAndCompletes(t *testing.T) {
	connFlow := NewFlowControl(1000)
	var connMu sync.Mutex
	r := NewRecvUniStreamBase(ID(4), 1000)

	delivered := []byte{}
	f := frameStream(0, []byte("done"), true)
	err := r.RecvStreamFrame(f, connFlow, &connMu, func(offset uint64, data []byte, fin bool) bool {
		delivered = append(delivered, data...)
		return true
	})
	require.NoError(t, err)
	require.Equal(t, "done", string(delivered))
	require.Equal(t, RecvDataRecved, r.State())

	r.ApplicationReadsAll()
	require.Equal(t, RecvDataRead, r.State())
}

func TestMaxStreamDataOnlyEmitsOnStrictIncrease(t *testing.T) {
	r := NewRecvUniStreamBase(ID(4), 100)
	_, emit := r.UpdateRecvLimit(func(current uint64) (uint64, bool) { return 100, true })
	require.False(t, emit)

	f, emit := r.UpdateRecvLimit(func(current uint64) (uint64, bool) { return 200, true })
	require.True(t, emit)
	require.EqualValues(t, 200, f.Maximum)
}

func TestStopSendingSentAtMostOnce(t *testing.T) {
	r := NewRecvUniStreamBase(ID(4), 100)
	require.True(t, r.RequestStopSending())
	require.False(t, r.RequestStopSending())
}

func TestStreamIDEncodesInitiatorAndDirection(t *testing.T) {
	id := NewID(0, InitiatorClient, Bidirectional)
	require.Equal(t, InitiatorClient, id.Initiator())
	require.Equal(t, Bidirectional, id.Directionality())

	id2 := NewID(1, InitiatorServer, Unidirectional)
	require.Equal(t, InitiatorServer, id2.Initiator())
	require.Equal(t, Unidirectional, id2.Directionality())
}
