package cort

import "time"

// Clock is a cached, thread-owned monotonic millisecond timestamp. It is
// refreshed explicitly — never implicitly on read — so that a chain of
// waiter resumptions within a single Poll Driver pass observes a stable,
// monotonic value instead of paying a syscall per read.
type Clock struct {
	anchor time.Time
	nowMs  uint64
}

// NewClock returns a Clock anchored to the current monotonic time, with
// now_ms initialized to 0.
func NewClock() *Clock {
	return &Clock{anchor: time.Now()}
}

// Refresh queries the OS monotonic clock and updates the cached value,
// returning it. Called after every multiplexer wake, and on explicit
// request (Core.RefreshClock).
func (c *Clock) Refresh() uint64 {
	c.nowMs = uint64(time.Since(c.anchor).Milliseconds())
	return c.nowMs
}

// NowMs returns the cached value without a syscall. Between Refresh calls
// it is stale by design.
func (c *Clock) NowMs() uint64 {
	return c.nowMs
}

// Deadline returns the absolute deadline, in cached clock milliseconds,
// for a timeout of ms milliseconds from now.
func (c *Clock) Deadline(ms uint64) uint64 {
	return c.nowMs + ms
}
