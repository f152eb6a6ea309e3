package frame

import "github.com/on-keyday/dnet/internal/varint"

// MakeFitSize builds a STREAM frame that fits within writable bytes, per
// spec.md 4.1 "make_fit_size(writable, id, offset, data, fin)". It returns
// ok=false when the frame's fixed overhead alone (type, stream ID and
// offset fields, not counting any length field) exceeds writable, in which case the caller must wait for
// more capacity rather than try a smaller frame.
func MakeFitSize(writable int, streamID uint64, offset uint64, data []byte, fin bool, wantLengthField bool) (Stream, bool) {
	hasOffset := offset != 0
	overhead := StreamOverhead(streamID, offset, hasOffset)
	if writable < overhead {
		return Stream{}, false
	}
	avail := writable - overhead
	n := len(data)
	if wantLengthField {
		// The length field itself eats into avail; converge on its
		// varint size since it depends on n, which depends on avail.
		lenFieldSize := 1
		for {
			room := avail - lenFieldSize
			if room < 0 {
				room = 0
			}
			candidate := n
			if candidate > room {
				candidate = room
			}
			need := varint.Len(uint64(candidate))
			if need == 0 {
				need = 1
			}
			if need == lenFieldSize {
				n = candidate
				avail -= lenFieldSize
				break
			}
			lenFieldSize = need
		}
	} else if n > avail {
		n = avail
	}
	if n < 0 {
		n = 0
	}
	f := Stream{
		StreamID:  streamID,
		Offset:    offset,
		Data:      data[:n],
		Fin:       fin && n == len(data),
		HasOffset: hasOffset,
		HasLength: wantLengthField,
	}
	return f, true
}
