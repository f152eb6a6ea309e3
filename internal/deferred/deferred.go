// Package deferred implements the bounded MPSC completion queue that backs
// the client pipeline's single completion thread (spec.md 5), grounded on
// the teacher's buffered-channel select loop (_teacher_ref/server.go's
// serverConn.serve, which multiplexes writeHeaderCh/windowUpdateCh/
// readFrameCh) generalized from "one channel per event kind" to "one
// channel of deferred work items", since the client pipeline's completions
// (connect, DNS, socket read/write, recursion-guard continuations) are more
// numerous and open-ended than HTTP/2's fixed frame types.
package deferred

import "context"

// Callback is one unit of completion-thread work (spec.md 5 "DeferredCallback").
type Callback func()

// Queue is a bounded multi-producer, single-consumer callback queue. Any
// goroutine may Push; only Queue.Run's goroutine executes callbacks, which
// is what lets callbacks freely mutate shared client state (stream tables,
// flow-control counters, HTTP framer buffers) without locking, exactly as
// spec.md 5 describes for the completion thread.
type Queue struct {
	ch chan Callback
}

// New returns a Queue with room for capacity pending callbacks before Push
// blocks its caller.
func New(capacity int) *Queue {
	return &Queue{ch: make(chan Callback, capacity)}
}

// Push enqueues fn to run on the completion thread. It blocks if the queue
// is full, which is the backpressure mechanism: producers (DNS-wait thread,
// socket I/O completions) slow down rather than grow memory unboundedly.
func (q *Queue) Push(fn Callback) {
	q.ch <- fn
}

// TryPush enqueues fn without blocking, reporting false if the queue is
// full.
func (q *Queue) TryPush(fn Callback) bool {
	select {
	case q.ch <- fn:
		return true
	default:
		return false
	}
}

// Run drains and executes callbacks on the calling goroutine until ctx is
// canceled or Close is called. This is the client pipeline's single
// completion thread (spec.md 5).
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case fn, ok := <-q.ch:
			if !ok {
				return
			}
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// Close stops future Push calls from being delivered and causes Run to
// return once the queue drains. Pushing to a closed Queue panics, matching
// the teacher's own use of close-then-send-panics on its channels
// (_teacher_ref/server.go closes readFrameCh and treats it as terminal).
func (q *Queue) Close() {
	close(q.ch)
}

// RecursionGuard implements spec.md 4.10's "every request/read/write step
// checks recursion++ > 10; if so, the step defers itself onto the
// completion queue". Depth is per call-chain, not shared across chains, so
// callers should create one per top-level operation (e.g. once per
// request()) and thread it through synchronous continuations.
type RecursionGuard struct {
	depth int
}

// MaxDepth bounds synchronous recursion before a continuation must be
// deferred onto the completion queue (spec.md 4.10).
const MaxDepth = 10

// Enter increments the guard's depth and reports whether the caller may
// proceed synchronously (true) or must re-enter via q.Push instead (false).
func (g *RecursionGuard) Enter() bool {
	g.depth++
	return g.depth <= MaxDepth
}

// Defer re-enters fn on the queue with depth reset to zero, per spec.md
// 4.10's bound on stack depth across chained synchronous completions.
func (g *RecursionGuard) Defer(q *Queue, fn func(g *RecursionGuard)) {
	q.Push(func() {
		fn(&RecursionGuard{})
	})
}
