package deferred

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueueRunsCallbacksInOrder(t *testing.T) {
	q := New(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	var order []int
	done := make(chan struct{})
	for i := 0; i < 3; i++ {
		i := i
		q.Push(func() {
			order = append(order, i)
			if i == 2 {
				close(done)
			}
		})
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for callbacks")
	}
	require.Equal(t, []int{0, 1, 2}, order)
}

func TestTryPushReportsFullQueue(t *testing.T) {
	q := New(1)
	require.True(t, q.TryPush(func() {}))
	require.False(t, q.TryPush(func() {}))
}

func TestRecursionGuardBoundsDepth(t *testing.T) {
	g := &RecursionGuard{}
	for i := 0; i < MaxDepth; i++ {
		require.True(t, g.Enter(), "expected Enter to allow depth %d", i)
	}
	require.False(t, g.Enter())
}

func TestRecursionGuardDeferResetsDepth(t *testing.T) {
	q := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)
	g := &RecursionGuard{depth: MaxDepth}
	done := make(chan int, 1)
	g.Defer(q, func(fresh *RecursionGuard) {
		done <- fresh.depth
	})
	select {
	case depth := <-done:
		require.Equal(t, 0, depth)
	case <-time.After(time.Second):
		t.Fatal("Defer callback never ran; call Run to drain it")
	}
}
