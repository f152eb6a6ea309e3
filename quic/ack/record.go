// Package ack implements the three-state ACK/loss record shared between a
// QUIC sender and the connection's ACK processor (spec.md section 3 "ACK/Lost
// record", grounded on
// _examples/original_source/src/include/dnet/quic/ack/ack_lost_record.h).
//
// In the C++ source the record is reference-counted with weak back
// references from senders; in Go it is simply an atomically-updated cell
// that a sender keeps a normal pointer to. "Tolerating a dropped record" in
// Go terms means: nothing special, since the GC keeps the record alive as
// long as a sender holds it. We keep the Wait/IsAck/IsLost/IsWaiting API
// shape from the source so call sites read the same way.
package ack

import "sync/atomic"

type state int32

const (
	stateWait state = iota
	stateAcked
	stateLost
)

// Record is a single ack-eliciting frame's fate: waiting, acked, or lost.
// Safe for concurrent use: the ACK processor transitions it, senders poll it.
type Record struct {
	s atomic.Int32
}

// New returns a record in the waiting state, the equivalent of
// ack::make_ack_wait() in the source.
func New() *Record {
	r := &Record{}
	r.s.Store(int32(stateWait))
	return r
}

// Wait resets the record to the waiting state so it can be reused for a
// retransmitted copy of the same logical data.
func (r *Record) Wait() { r.s.Store(int32(stateWait)) }

// Ack marks the record acknowledged. Called by the ACK processor only.
func (r *Record) Ack() { r.s.Store(int32(stateAcked)) }

// Lost marks the record lost. Called by the ACK processor only.
func (r *Record) Lost() { r.s.Store(int32(stateLost)) }

func (r *Record) IsWaiting() bool { return state(r.s.Load()) == stateWait }
func (r *Record) IsAck() bool     { return state(r.s.Load()) == stateAcked }
func (r *Record) IsLost() bool    { return state(r.s.Load()) == stateLost }
