package h2

// flow is the teacher's window-credit counter (_teacher_ref/server.go's
// `flow` type): it tracks how many bytes may still be sent before a
// WINDOW_UPDATE is needed, clamped to the 31-bit range HTTP/2 flow control
// uses. Unlike the teacher's type, add also rejects a debit that would
// take the window below zero.
type flow struct {
	n int32
}

func newFlow(n int32) *flow { return &flow{n: n} }

// add applies a WINDOW_UPDATE increment, a negative SETTINGS-driven
// adjustment, or a DATA-frame debit (negative n). It reports false if the
// result would overflow the 31-bit window, or go negative on a debit
// (a FLOW_CONTROL_ERROR per RFC 9113 section 6.9).
func (f *flow) add(n int32) bool {
	sum := f.n + n
	if (n > 0 && sum < f.n) || sum > (1<<31-1) {
		return false
	}
	if n < 0 && sum < 0 {
		return false
	}
	f.n = sum
	return true
}

// available reports the current window.
func (f *flow) available() int32 { return f.n }

// take consumes n bytes of window, asserting it was already checked to fit.
func (f *flow) take(n int32) { f.n -= n }
