package path

import (
	"bytes"

	"github.com/on-keyday/dnet/quic/ack"
	"github.com/on-keyday/dnet/quic/qerr"
)

// ChallengeData is the 8-byte opaque payload carried by PATH_CHALLENGE and
// PATH_RESPONSE frames.
type ChallengeData [8]byte

// Verifier drives one path's PATH_CHALLENGE/PATH_RESPONSE exchange, per
// spec.md 4.4, grounded on original_source/path/verify.h.
type Verifier struct {
	data           ChallengeData
	verifyRequired bool
	inFlight       bool
	wait           *ack.Record

	// responseQueue holds PATH_CHALLENGE payloads this endpoint still owes
	// a PATH_RESPONSE for, FIFO. Unbounded, matching original_source (no
	// explicit bound is named there either).
	responseQueue [][]byte
}

// RequestPathVerification arms verification of data, if none is already in
// flight.
func (v *Verifier) RequestPathVerification(data ChallengeData) {
	if v.inFlight {
		return
	}
	v.data = data
	v.verifyRequired = true
	v.inFlight = true
}

// Emit returns (data, true) once to send a PATH_CHALLENGE and attaches a
// fresh wait record; it returns (_, false) when nothing needs sending, and
// re-sends the same data when the prior wait was lost.
func (v *Verifier) Emit() (ChallengeData, bool) {
	if !v.inFlight {
		return ChallengeData{}, false
	}
	if v.wait != nil && !v.wait.IsLost() {
		return ChallengeData{}, false
	}
	if v.wait != nil {
		v.wait.Wait()
	} else {
		v.wait = ack.New()
	}
	v.verifyRequired = false
	return v.data, true
}

// RecvPathResponse clears verification state on a matching response, and
// reports a PROTOCOL_VIOLATION connection error on mismatch or when no
// verification is in flight (spec.md 4.4).
func (v *Verifier) RecvPathResponse(data ChallengeData) error {
	if !v.inFlight {
		return qerr.New(qerr.ProtocolViolation, "rfc9000 8.2.2", "unsolicited PATH_RESPONSE")
	}
	if !bytes.Equal(v.data[:], data[:]) {
		return qerr.New(qerr.ProtocolViolation, "rfc9000 8.2.2", "PATH_RESPONSE data does not match outstanding PATH_CHALLENGE")
	}
	v.inFlight = false
	v.wait = nil
	return nil
}

// Verified reports whether the path is currently validated (no challenge in
// flight and none required).
func (v *Verifier) Verified() bool { return !v.inFlight && !v.verifyRequired }

// RecvPathChallenge enqueues a response to a peer PATH_CHALLENGE.
func (v *Verifier) RecvPathChallenge(data ChallengeData) {
	v.responseQueue = append(v.responseQueue, append([]byte(nil), data[:]...))
}

// SendPathResponse dequeues and returns one PATH_RESPONSE payload per call,
// FIFO, per spec.md 4.4.
func (v *Verifier) SendPathResponse() (ChallengeData, bool) {
	if len(v.responseQueue) == 0 {
		return ChallengeData{}, false
	}
	next := v.responseQueue[0]
	v.responseQueue = v.responseQueue[1:]
	var out ChallengeData
	copy(out[:], next)
	return out, true
}
