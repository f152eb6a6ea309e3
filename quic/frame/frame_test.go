package frame

import (
	"testing"

	"github.com/on-keyday/dnet/internal/varint"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, f Frame) Frame {
	t.Helper()
	enc, ok := f.Encode(nil)
	require.True(t, ok)
	require.Equal(t, f.Length(), len(enc))
	got, n, err := Decode(enc)
	require.NoError(t, err)
	require.Equal(t, len(enc), n)
	return got
}

func TestRoundTripEveryFrameVariant(t *testing.T) {
	frames := []Frame{
		Padding{Count: 3},
		Ping{},
		ACK{LargestAcknowledged: 10, AckDelay: 2, FirstAckRange: 3, Ranges: []ACKRange{{Gap: 1, AckRange: 2}}},
		ACK{LargestAcknowledged: 10, AckDelay: 2, FirstAckRange: 3, ECN: true, ECT0: 1, ECT1: 2, ECNCE: 3},
		ResetStream{StreamID: 2030, ApplicationErrorCode: 0x40000000, FinalSize: 294928833},
		StopSending{StreamID: 4, ApplicationErrorCode: 1},
		Crypto{Offset: 0, Data: []byte("client hello")},
		NewToken{Token: []byte("token-bytes")},
		Stream{StreamID: 4, Offset: 8, Data: []byte("payload"), Fin: true, HasOffset: true, HasLength: true},
		Stream{StreamID: 4, Data: []byte("payload"), HasLength: true},
		MaxData{Maximum: 65536},
		MaxStreamData{StreamID: 4, Maximum: 65536},
		MaxStreams{Uni: false, MaximumStreams: 100},
		MaxStreams{Uni: true, MaximumStreams: 50},
		DataBlocked{Limit: 1000},
		StreamDataBlocked{StreamID: 4, Limit: 1000},
		StreamsBlocked{Uni: false, Limit: 100},
		NewConnectionID{SequenceNumber: 1, RetirePriorTo: 0, ConnectionID: []byte{1, 2, 3, 4}, StatelessResetToken: [16]byte{1}},
		RetireConnectionID{SequenceNumber: 1},
		PathChallenge{Data: [8]byte{1, 2, 3, 4, 5, 6, 7, 8}},
		PathResponse{Data: [8]byte{1, 2, 3, 4, 5, 6, 7, 8}},
		ConnectionClose{App: false, ErrorCode: 1, FrameType: 8, ReasonPhrase: "boom"},
		ConnectionClose{App: true, ErrorCode: 1, ReasonPhrase: "app boom"},
		HandshakeDone{},
	}
	for _, f := range frames {
		got := roundTrip(t, f)
		require.Equal(t, f, got, "%T", f)
	}
}

func TestResetStreamScenarioUsesExpectedVarintWidths(t *testing.T) {
	f := ResetStream{StreamID: 2030, ApplicationErrorCode: 0x40000000, FinalSize: 294928833}
	enc, ok := f.Encode(nil)
	require.True(t, ok)

	got, n, err := Decode(enc)
	require.NoError(t, err)
	require.Equal(t, len(enc), n)
	require.Equal(t, f, got)

	// type tag (1) + stream_id (2-byte varint) + code (8-byte varint) + final_size (4-byte varint)
	require.Equal(t, 1+2+8+4, len(enc))
	require.Equal(t, 2, varint.Len(f.StreamID))
	require.Equal(t, 8, varint.Len(f.ApplicationErrorCode))
	require.Equal(t, 4, varint.Len(f.FinalSize))
}

func TestMakeFitSizeStreamSendScenario(t *testing.T) {
	data := make([]byte, 11000)
	f, ok := MakeFitSize(63, 4, 0, data, false, false)
	require.True(t, ok)
	require.Len(t, f.Data, 61)
	require.Equal(t, uint64(0), f.Offset)
	require.False(t, f.HasOffset)
	require.False(t, f.HasLength)

	enc, _ := f.Encode(nil)
	require.Len(t, enc, 63)

	f2, ok := MakeFitSize(63, 4, 61, data[:63], false, false)
	require.True(t, ok)
	// Overhead grows by one byte (the offset varint); the frame carries
	// one byte less of the source than the first call to make room for it.
	require.Equal(t, 60, len(f2.Data))
	require.True(t, f2.HasOffset)
	require.Equal(t, uint64(61), f2.Offset)
}
