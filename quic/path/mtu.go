// Package path implements DPLPMTUD (spec.md 4.3) and QUIC path validation
// (spec.md 4.4), grounded on
// _examples/original_source/src/include/dnet/quic/path/{dplpmtud,verify}.h.
package path

import (
	"time"

	"github.com/on-keyday/dnet/quic/ack"
)

// State is the DPLPMTUD state machine from spec.md 4.3.
type State int

const (
	StateDisabled State = iota
	StateBase
	StateSearching
	StateError
	StateSearchComplete
)

// BinarySearcher performs the probe-size binary search. It mirrors
// original_source/path/dplpmtud.h's BinarySearcher exactly: low/high/mid
// with a trailing "confirm high" step once the window narrows to accuracy.
type BinarySearcher struct {
	high, mid, low, accuracy uint64
	highUpdated              bool
}

func (b *BinarySearcher) internalComplete() bool {
	return b.high-b.low <= b.accuracy
}

func (b *BinarySearcher) updateNext() {
	if b.internalComplete() && !b.highUpdated {
		if b.mid != b.high {
			b.mid = b.high
			return
		}
		b.highUpdated = true
		return
	}
	b.mid = b.low + (b.high-b.low)/2
}

// Set configures the search range [low, high] at the given accuracy
// (default 1 when accuracy==0). Returns false if low > high.
func (b *BinarySearcher) Set(low, high uint64, accuracy ...uint64) bool {
	if low > high {
		return false
	}
	acc := uint64(1)
	if len(accuracy) > 0 && accuracy[0] != 0 {
		acc = accuracy[0]
	}
	b.low, b.high, b.accuracy = low, high, acc
	b.highUpdated = false
	b.updateNext()
	return true
}

// Complete reports whether the search has converged.
func (b *BinarySearcher) Complete() bool { return b.internalComplete() && b.highUpdated }

// GetNext returns the next probe size to try.
func (b *BinarySearcher) GetNext() uint64 { return b.mid }

// Low returns the largest size confirmed acknowledged so far.
func (b *BinarySearcher) Low() uint64 { return b.low }

// OnAck records that the last probe at GetNext() was acknowledged.
func (b *BinarySearcher) OnAck() {
	b.low = b.mid
	b.updateNext()
}

// OnLost records that the last probe at GetNext() was lost.
func (b *BinarySearcher) OnLost() {
	b.high = b.mid
	b.highUpdated = true
	b.updateNext()
}

// Config holds the DPLPMTUD tunables, defaulted per spec.md 4.3.
type Config struct {
	MaxProbes  int
	MinPLPMTU  uint64
	MaxPLPMTU  uint64
	BasePLPMTU uint64

	// ProbeTimeout bounds how long a single probe waits for an ACK before
	// it is declared lost, per RFC 8899 section 5.1.1's PROBE_TIMER (which
	// recommends a value derived from the connection's PTO; absent an RTT
	// estimator here, this is a fixed default).
	ProbeTimeout time.Duration
}

// DefaultConfig matches the QUIC defaults named in spec.md 4.3.
func DefaultConfig() Config {
	return Config{MaxProbes: 3, MinPLPMTU: 1200, MaxPLPMTU: 65535, BasePLPMTU: 1200, ProbeTimeout: time.Second}
}

// Timers holds the three named timer slots from
// original_source/path/dplpmtud.h's Timers struct: probe bounds one
// outstanding probe's wait for an ACK, pmtuRaise re-probes a larger size
// after the search has gone idle at a smaller PLPMTU (RFC 8899 section
// 5.1.2's PMTU_RAISE_TIMER), and confirmation bounds how long a newly
// confirmed PLPMTU is held before the next raise attempt. Only probe is
// used: pmtuRaise and confirmation are unexported and nothing in this
// package arms them, so no periodic re-probing happens.
type Timers struct {
	probe        *time.Timer
	pmtuRaise    *time.Timer
	confirmation *time.Timer
}

// MTUStatus drives one connection's path MTU discovery loop.
type MTUStatus struct {
	State       State
	Config      Config
	PLPMTU      uint64
	ProbedSize  uint64
	ProbeCount  int
	BinSearch   BinarySearcher
	Wait        *ack.Record
	Timers      Timers

	// PeerMaxUDPPayloadSize, if set (>0), additionally caps the active
	// datagram size per spec.md 4.3 "min(path_datagram_size, ...)".
	PeerMaxUDPPayloadSize uint64
	PathDatagramSize      uint64
}

// NewMTUStatus constructs a disabled-state status with default config.
func NewMTUStatus() *MTUStatus {
	return &MTUStatus{State: StateDisabled, Config: DefaultConfig()}
}

// SetHandshakeConfirmed transitions to searching and seeds the binary
// search over [base_plpmtu, max_plpmtu].
func (s *MTUStatus) SetHandshakeConfirmed() {
	s.State = StateSearching
	s.BinSearch.Set(s.Config.BasePLPMTU, s.Config.MaxPLPMTU)
}

// ActiveDatagramSize returns min(path_datagram_size, peer_max_udp_payload_size)
// when the peer limit is known, per spec.md 4.3.
func (s *MTUStatus) ActiveDatagramSize() uint64 {
	size := s.PathDatagramSize
	if s.PeerMaxUDPPayloadSize > 0 && s.PeerMaxUDPPayloadSize < size {
		size = s.PeerMaxUDPPayloadSize
	}
	return size
}

// ProbeRequired drives one step of the probe loop: it consumes the
// previous wait's outcome, advances the search, and reports the next probe
// size to send (if any). Mirrors Status::probe_required in the source.
func (s *MTUStatus) ProbeRequired() (size uint64, ok bool) {
	if s.State != StateSearching {
		return 0, false
	}
	if s.Wait != nil {
		switch {
		case s.Wait.IsLost():
			s.stopProbeTimer()
			s.ProbeCount++
			if s.ProbeCount == s.Config.MaxProbes {
				s.BinSearch.OnLost()
				s.ProbeCount = 0
			}
		case s.Wait.IsAck():
			s.stopProbeTimer()
			s.BinSearch.OnAck()
		default:
			return 0, false // still waiting
		}
	}
	if s.BinSearch.Complete() {
		s.Wait = nil
		s.State = StateSearchComplete
		s.PLPMTU = s.BinSearch.Low()
		return 0, false
	}
	if s.Wait != nil {
		s.Wait.Wait()
	} else {
		s.Wait = ack.New()
	}
	next := s.BinSearch.GetNext()
	s.ProbedSize = next
	s.armProbeTimer()
	return next, true
}

// armProbeTimer (re)starts the probe timeout for the wait record currently
// outstanding, declaring it lost if no ACK/loss notification arrives from
// the connection's ACK processor first (RFC 8899 section 5.1.1).
func (s *MTUStatus) armProbeTimer() {
	s.stopProbeTimer()
	wait := s.Wait
	timeout := s.Config.ProbeTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().ProbeTimeout
	}
	s.Timers.probe = time.AfterFunc(timeout, func() { wait.Lost() })
}

func (s *MTUStatus) stopProbeTimer() {
	if s.Timers.probe != nil {
		s.Timers.probe.Stop()
		s.Timers.probe = nil
	}
}
