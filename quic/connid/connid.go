// Package connid implements QUIC connection ID issuance and acceptance
// (spec.md section 4.2), grounded on
// _examples/original_source/src/include/dnet/quic/conn/{connection_id,id_manage}.h.
package connid

import (
	"crypto/rand"
	"fmt"

	"github.com/on-keyday/dnet/quic/ack"
	"github.com/on-keyday/dnet/quic/qerr"
)

const (
	minLen = 1
	maxLen = 20
)

// ID is a single connection ID with its stateless reset token.
type ID struct {
	Sequence            uint64
	Bytes               []byte
	StatelessResetToken [16]byte
}

// IssuedID is an ID this endpoint generated, plus the ack-wait state of its
// NEW_CONNECTION_ID announcement.
type IssuedID struct {
	ID            ID
	RetirePriorTo uint64
	Wait          *ack.Record // nil until first emission
	NeedlessAck   bool        // true once the peer has acked the announcement
}

// IDIssuer owns the local endpoint's outgoing connection IDs.
type IDIssuer struct {
	seq         uint64
	zeroLength  bool
	idList      map[uint64]*IssuedID
	retireOrder []uint64 // insertion order, for deterministic iteration
}

// NewIDIssuer constructs an issuer. zeroLength disables issuing IDs with
// nonzero length (the endpoint always sends zero-length connection IDs).
func NewIDIssuer(zeroLength bool) *IDIssuer {
	return &IDIssuer{zeroLength: zeroLength, idList: map[uint64]*IssuedID{}}
}

// Issue generates a fresh random connection ID and stateless reset token.
// It returns ok=false if zero-length mode is active or the random source
// fails, per spec.md 4.2.
func (iss *IDIssuer) Issue(length int) (IssuedID, bool) {
	if iss.zeroLength {
		return IssuedID{}, false
	}
	if length < minLen || length > maxLen {
		return IssuedID{}, false
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return IssuedID{}, false
	}
	var token [16]byte
	if _, err := rand.Read(token[:]); err != nil {
		return IssuedID{}, false
	}
	iss.seq++
	issued := IssuedID{
		ID: ID{Sequence: iss.seq, Bytes: buf, StatelessResetToken: token},
	}
	iss.idList[iss.seq] = &issued
	iss.retireOrder = append(iss.retireOrder, iss.seq)
	return issued, true
}

// Retire removes an issued ID by sequence number on receipt of
// RETIRE_CONNECTION_ID. An unknown sequence is silently ignored, per spec.
func (iss *IDIssuer) Retire(seq uint64) {
	delete(iss.idList, seq)
}

// Pending returns issued IDs still needing a NEW_CONNECTION_ID emission or
// re-emission, in issuance order, for the send-side loop in spec 4.2.
func (iss *IDIssuer) Pending() []*IssuedID {
	out := make([]*IssuedID, 0, len(iss.idList))
	for _, seq := range iss.retireOrder {
		id, ok := iss.idList[seq]
		if !ok || id.NeedlessAck || (id.Wait != nil && !id.Wait.IsLost()) {
			continue
		}
		out = append(out, id)
	}
	return out
}

// IDAcceptor owns the peer-issued connection IDs this endpoint may use as
// destination connection IDs.
type IDAcceptor struct {
	useZeroLength bool
	maxSeq        int64 // -1 until the first ID is accepted
	idList        map[uint64]ID
	retireWait    map[uint64]*ack.Record
}

// NewIDAcceptor constructs an acceptor. useZeroLength records that this
// endpoint never expects NEW_CONNECTION_ID frames from the peer.
func NewIDAcceptor(useZeroLength bool) *IDAcceptor {
	return &IDAcceptor{useZeroLength: useZeroLength, maxSeq: -1, idList: map[uint64]ID{}, retireWait: map[uint64]*ack.Record{}}
}

// Accept stores a peer-issued ID and advances max_seq. Length must be
// 1..=20 inclusive; callers validate that separately (recv_new_connection_id
// does it before calling Accept so the error carries frame context).
func (acc *IDAcceptor) Accept(seq uint64, id []byte, token [16]byte) bool {
	acc.idList[seq] = ID{Sequence: seq, Bytes: append([]byte(nil), id...), StatelessResetToken: token}
	if int64(seq) > acc.maxSeq {
		acc.maxSeq = int64(seq)
	}
	return true
}

// Retire marks every accepted ID with sequence < retirePriorTo for
// RETIRE_CONNECTION_ID emission, per NEW_CONNECTION_ID's retire_prior_to.
func (acc *IDAcceptor) Retire(retirePriorTo uint64) {
	for seq := range acc.idList {
		if seq < retirePriorTo {
			if _, ok := acc.retireWait[seq]; !ok {
				acc.retireWait[seq] = nil
			}
			delete(acc.idList, seq)
		}
	}
}

// RetirePending returns sequence numbers awaiting RETIRE_CONNECTION_ID
// emission, with their current ack-wait record (nil if not yet sent).
func (acc *IDAcceptor) RetirePending() map[uint64]*ack.Record {
	return acc.retireWait
}

// ClearRetired drops a sequence once its RETIRE_CONNECTION_ID has been acked.
func (acc *IDAcceptor) ClearRetired(seq uint64) { delete(acc.retireWait, seq) }

// Manager owns both the issuer and acceptor tables for one QUIC connection,
// per spec.md 4.2 "Ownership".
type Manager struct {
	Acceptor *IDAcceptor
	Issuer   *IDIssuer
}

// NewManager constructs a Manager. useZeroLength configures both tables
// symmetrically, matching how a single endpoint decides zero-length use.
func NewManager(useZeroLength bool) *Manager {
	return &Manager{
		Acceptor: NewIDAcceptor(useZeroLength),
		Issuer:   NewIDIssuer(useZeroLength),
	}
}

// RecvNewConnectionID applies retire_prior_to then accepts the new ID,
// enforcing the invariants from spec.md section 3 "Connection ID".
func (m *Manager) RecvNewConnectionID(seq uint64, id []byte, token [16]byte, retirePriorTo uint64) error {
	if m.Acceptor.useZeroLength {
		return qerr.New(qerr.ProtocolViolation, "rfc9000 19.15", "zero-length connection ID is used but NEW_CONNECTION_ID received")
	}
	if len(id) < minLen || len(id) > maxLen {
		return qerr.New(qerr.FrameEncodingError, "rfc9000 19.15", "invalid connection ID length for QUIC version 1")
	}
	if retirePriorTo > seq {
		return qerr.New(qerr.FrameEncodingError, "rfc9000 19.15", "retire_prior_to field is greater than sequence_number")
	}
	m.Acceptor.Retire(retirePriorTo)
	if !m.Acceptor.Accept(seq, id, token) {
		return fmt.Errorf("quic: failed to add remote connection ID")
	}
	return nil
}

// RecvRetireConnectionID handles a RETIRE_CONNECTION_ID frame for the local
// issuer table; an unknown sequence is silently ignored, per spec.
func (m *Manager) RecvRetireConnectionID(seq uint64) { m.Issuer.Retire(seq) }

// AcceptInitial accepts the peer's initial connection ID at sequence 0.
// It is distinct from RecvNewConnectionID because the initial ID never
// arrives in a NEW_CONNECTION_ID frame (original_source id_manage.h).
func (m *Manager) AcceptInitial(id []byte) bool {
	if m.Acceptor.maxSeq != -1 {
		return false
	}
	var zero [16]byte
	return m.Acceptor.Accept(0, id, zero)
}

// AddInitialStatelessResetToken backfills the stateless reset token for the
// initial (sequence 0) connection ID once the transport parameters arrive.
func (m *Manager) AddInitialStatelessResetToken(token [16]byte) {
	if id, ok := m.Acceptor.idList[0]; ok {
		id.StatelessResetToken = token
		m.Acceptor.idList[0] = id
	}
}

// AcceptTransportParam accepts the preferred-address-style connection ID
// carried in transport parameters, at sequence 1.
func (m *Manager) AcceptTransportParam(id []byte, token [16]byte) {
	m.Acceptor.Accept(1, id, token)
}

// DestinationIDLength finds the length of the longest issued connection ID
// that is a prefix of datagram, for short-header packet parsing done by the
// (out-of-scope) datagram layer. Mirrors
// IDManager::get_dstID_len_callback in original_source/id_manage.h.
func (m *Manager) DestinationIDLength(datagram []byte) (int, bool) {
	best, found := 0, false
	for _, id := range m.Issuer.idList {
		n := len(id.ID.Bytes)
		if n > best && len(datagram) >= n && bytesEqual(datagram[:n], id.ID.Bytes) {
			best, found = n, true
		}
	}
	return best, found
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
