package ack

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordLifecycle(t *testing.T) {
	r := New()
	require.True(t, r.IsWaiting())
	require.False(t, r.IsAck())
	require.False(t, r.IsLost())

	r.Lost()
	require.True(t, r.IsLost())

	r.Wait()
	require.True(t, r.IsWaiting())

	r.Ack()
	require.True(t, r.IsAck())
}
