package conn

import (
	"testing"

	"github.com/on-keyday/dnet/quic/stream"
	"github.com/stretchr/testify/require"
)

func TestOpenAndAcceptStreams(t *testing.T) {
	client := New(true, 1<<20, 1<<20)
	id, snd, rcv := client.OpenBidiStream(1000, 1000)
	require.NotNil(t, snd)
	require.NotNil(t, rcv)
	require.Equal(t, stream.InitiatorClient, id.Initiator())
	require.Equal(t, stream.Bidirectional, id.Directionality())

	got, ok := client.SendStream(id)
	require.True(t, ok)
	require.Same(t, snd, got)
}

func TestAcceptPeerStreamEnqueues(t *testing.T) {
	server := New(false, 1<<20, 1<<20)
	peerID := stream.NewID(0, stream.InitiatorClient, stream.Bidirectional)
	server.AcceptPeerStream(peerID, 1000, 1000)

	id, ok := server.AcceptBidi()
	require.True(t, ok)
	require.Equal(t, peerID, id)

	_, ok = server.AcceptBidi()
	require.False(t, ok)
}

func TestDispatcherRunsAllKindsInOrder(t *testing.T) {
	d := NewDispatcher()
	var order []EventKind
	d.OnSend(EventAck, func(remain int) (int, EventResult) {
		order = append(order, EventAck)
		return 0, EventOK
	})
	d.OnSend(EventStreams, func(remain int) (int, EventResult) {
		order = append(order, EventStreams)
		return 1, EventOK
	})
	n, res := d.DispatchSend(100)
	require.Equal(t, EventOK, res)
	require.Equal(t, 1, n)
	require.Equal(t, []EventKind{EventAck, EventStreams}, order)
}

func TestDispatcherStopsOnFatal(t *testing.T) {
	d := NewDispatcher()
	var ran bool
	d.OnSend(EventAck, func(remain int) (int, EventResult) { return 0, EventFatal })
	d.OnSend(EventStreams, func(remain int) (int, EventResult) { ran = true; return 0, EventOK })
	_, res := d.DispatchSend(100)
	require.Equal(t, EventFatal, res)
	require.False(t, ran)
}
