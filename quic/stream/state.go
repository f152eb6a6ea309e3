package stream

import "github.com/on-keyday/dnet/quic/ack"

// SendState is the send-side stream state machine from spec.md 3/4.11.
type SendState int

const (
	SendReady SendState = iota
	SendSending
	SendDataSent
	SendDataRecved
	SendResetSent
	SendResetRecved
)

// RecvState is the receive-side stream state machine from spec.md 3/4.11.
type RecvState int

const (
	RecvPreRecv RecvState = iota
	RecvRecv
	RecvSizeKnown
	RecvDataRecved
	RecvDataRead
	RecvResetRecv
	RecvResetRead
)

// Terminal reports whether s is an absorbing state (spec.md 3 invariant
// "Terminal states are absorbing").
func (s SendState) Terminal() bool { return s == SendDataRecved || s == SendResetRecved }

func (s RecvState) Terminal() bool { return s == RecvDataRead || s == RecvResetRead }

// Fragment is one outstanding (or already-sent) piece of a send stream's
// byte range, per spec.md 3 "Per-stream retransmission queue".
type Fragment struct {
	Offset uint64
	Bytes  []byte
	Fin    bool
	Wait   *ack.Record
}
