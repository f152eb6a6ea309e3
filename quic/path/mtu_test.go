package path

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBinarySearchConverges(t *testing.T) {
	var s BinarySearcher
	search := func(low, high, steps, mtu uint64) {
		s.Set(low, high)
		for i := uint64(0); i < steps && !s.Complete(); i++ {
			if s.GetNext() > mtu {
				s.OnLost()
			} else {
				s.OnAck()
			}
		}
	}
	search(1200, 1500, 8, 1350)
	require.True(t, s.Complete())
	require.EqualValues(t, 1350, s.Low())

	search(1200, 1500, 10, 1500)
	require.True(t, s.Complete())
}

func TestBinarySearchNeverExceedsRange(t *testing.T) {
	var s BinarySearcher
	s.Set(1200, 1500)
	for !s.Complete() {
		next := s.GetNext()
		require.GreaterOrEqual(t, next, uint64(1200))
		require.LessOrEqual(t, next, uint64(1500))
		if next > 1350 {
			s.OnLost()
		} else {
			s.OnAck()
		}
	}
}

func TestMTUStatusProbeLoop(t *testing.T) {
	st := NewMTUStatus()
	st.SetHandshakeConfirmed()
	require.Equal(t, StateSearching, st.State)

	for st.State == StateSearching {
		size, ok := st.ProbeRequired()
		if !ok {
			break
		}
		if size > 1350 {
			st.Wait.Lost()
			for i := 1; i < st.Config.MaxProbes; i++ {
				st.ProbeRequired()
				st.Wait.Lost()
			}
		} else {
			st.Wait.Ack()
		}
	}
	require.Equal(t, StateSearchComplete, st.State)
}

func TestMTUStatusProbeTimerDeclaresLossOnTimeout(t *testing.T) {
	st := NewMTUStatus()
	st.Config.ProbeTimeout = 10 * time.Millisecond
	st.SetHandshakeConfirmed()

	_, ok := st.ProbeRequired()
	require.True(t, ok)
	require.False(t, st.Wait.IsLost())

	require.Eventually(t, func() bool { return st.Wait.IsLost() }, time.Second, time.Millisecond)
}

func TestPathVerifierRoundTrip(t *testing.T) {
	var v Verifier
	data := ChallengeData{1, 2, 3, 4, 5, 6, 7, 8}
	v.RequestPathVerification(data)
	sent, ok := v.Emit()
	require.True(t, ok)
	require.Equal(t, data, sent)

	require.NoError(t, v.RecvPathResponse(data))
	require.True(t, v.Verified())
}

func TestPathVerifierMismatchIsProtocolViolation(t *testing.T) {
	var v Verifier
	v.RequestPathVerification(ChallengeData{1})
	_, _ = v.Emit()
	err := v.RecvPathResponse(ChallengeData{2})
	require.Error(t, err)
}

func TestPathChallengeResponseFIFO(t *testing.T) {
	var v Verifier
	v.RecvPathChallenge(ChallengeData{1})
	v.RecvPathChallenge(ChallengeData{2})
	first, ok := v.SendPathResponse()
	require.True(t, ok)
	require.Equal(t, ChallengeData{1}, first)
	second, ok := v.SendPathResponse()
	require.True(t, ok)
	require.Equal(t, ChallengeData{2}, second)
	_, ok = v.SendPathResponse()
	require.False(t, ok)
}
