package connid

import (
	"testing"

	"github.com/on-keyday/dnet/quic/qerr"
	"github.com/stretchr/testify/require"
)

func TestIssuerMonotonicSequence(t *testing.T) {
	iss := NewIDIssuer(false)
	a, ok := iss.Issue(8)
	require.True(t, ok)
	b, ok := iss.Issue(8)
	require.True(t, ok)
	require.Less(t, a.ID.Sequence, b.ID.Sequence)
}

func TestIssuerZeroLengthDisabled(t *testing.T) {
	iss := NewIDIssuer(true)
	_, ok := iss.Issue(8)
	require.False(t, ok)
}

func TestRecvNewConnectionIDValidatesLength(t *testing.T) {
	m := NewManager(false)
	err := m.RecvNewConnectionID(1, make([]byte, 21), [16]byte{}, 0)
	var cerr qerr.ConnectionError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, qerr.FrameEncodingError, cerr.Code)
}

func TestRecvNewConnectionIDValidatesRetirePriorTo(t *testing.T) {
	m := NewManager(false)
	err := m.RecvNewConnectionID(1, []byte{1, 2, 3, 4}, [16]byte{}, 5)
	var cerr qerr.ConnectionError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, qerr.FrameEncodingError, cerr.Code)
}

func TestRecvNewConnectionIDZeroLengthModeRejectsFrame(t *testing.T) {
	m := NewManager(true)
	err := m.RecvNewConnectionID(1, []byte{1, 2, 3, 4}, [16]byte{}, 0)
	var cerr qerr.ConnectionError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, qerr.ProtocolViolation, cerr.Code)
}

func TestRetireUnknownSequenceIgnored(t *testing.T) {
	m := NewManager(false)
	require.NotPanics(t, func() { m.RecvRetireConnectionID(999) })
}

func TestAcceptInitialOnlyOnce(t *testing.T) {
	m := NewManager(false)
	require.True(t, m.AcceptInitial([]byte{1, 2, 3, 4}))
	require.False(t, m.AcceptInitial([]byte{5, 6, 7, 8}))
}
