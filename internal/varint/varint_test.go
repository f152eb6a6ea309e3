package varint

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 63, 64, 16383, 16384, 1073741823, 1073741824, max62}
	for _, v := range cases {
		enc, ok := Encode(nil, v)
		require.True(t, ok, "encode %d", v)
		got, n, ok := Decode(enc)
		require.True(t, ok)
		require.Equal(t, len(enc), n)
		require.Equal(t, v, got)
	}
}

func TestEncodeOverflow(t *testing.T) {
	_, ok := Encode(nil, max62+1)
	require.False(t, ok)
}

func TestReadFromMatchesDecode(t *testing.T) {
	enc, _ := Encode(nil, 2030)
	v, err := ReadFrom(bytes.NewReader(enc))
	require.NoError(t, err)
	require.EqualValues(t, 2030, v)
}

func TestKnownEncodingLengths(t *testing.T) {
	// RESET_STREAM scenario fields from the spec: stream_id 2-byte,
	// code 8-byte, final_size 4-byte varints.
	require.Equal(t, 2, Len(2030))
	require.Equal(t, 8, Len(0x40000000))
	require.Equal(t, 4, Len(294928833))
}
