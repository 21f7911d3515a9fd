package cort

import (
	"fmt"
	"time"
)

// Core bundles the Clock, Timer Heap, Poll Driver and lifecycle state
// for one goroutine — the concrete realization of "per-thread instance"
// (§2). Exactly one goroutine may drive a Core; there is no
// cross-thread mutation of its state.
type Core struct {
	clock   *Clock
	heap    *timerHeap
	poller  *pollDriver
	state   lifecycleState
	opts    *coreOptions
	metrics *Metrics
}

// NewCore prepares the per-thread heap and multiplexer (timer_init).
// Returns ErrInitFailed (wrapped) if the Poll Driver cannot be created —
// a FATAL condition: the thread cannot run the loop.
func NewCore(opts ...CoreOption) (*Core, error) {
	cfg, err := resolveCoreOptions(opts)
	if err != nil {
		return nil, err
	}

	poller, err := newPollDriver(cfg.maxEvents)
	if err != nil {
		logPollerInit(cfg.logger, err)
		return nil, WrapError(fmt.Sprintf("poll driver init: %v", err), ErrInitFailed)
	}

	c := &Core{
		clock:  NewClock(),
		heap:   newTimerHeap(),
		poller: poller,
		opts:   cfg,
		state:  stateAwake,
	}
	if cfg.metricsEnabled {
		c.metrics = &Metrics{}
	}
	return c, nil
}

// Init transitions the Core out of Awake and takes its first clock
// reading. Calling Init twice is an InvariantViolation.
func (c *Core) Init() error {
	if c.state != stateAwake {
		invariantViolation("Core.Init called more than once")
	}
	c.clock.Refresh()
	c.state = stateRunning
	return nil
}

// RefreshClock is timer_refresh_clock: an explicit out-of-band clock
// refresh, independent of RunOnce's own post-wake refresh.
func (c *Core) RefreshClock() uint64 {
	return c.clock.Refresh()
}

// NowMs is timer_now_ms: the cached value, no syscall.
func (c *Core) NowMs() uint64 {
	return c.clock.NowMs()
}

// GetPollFD exposes the multiplexer descriptor for embedding in a
// larger host loop.
func (c *Core) GetPollFD() int {
	return c.poller.pollFD()
}

// WaitedFDCountThread returns the count of currently registered fds.
func (c *Core) WaitedFDCountThread() int {
	return c.poller.registeredCount()
}

// Metrics returns the Core's instrumentation, or nil if WithMetrics was
// not set.
func (c *Core) Metrics() *Metrics {
	return c.metrics
}

// NewWaiter constructs a detached waiter owned by this Core.
func (c *Core) NewWaiter(coroutine Coroutine) *Waiter {
	return NewWaiter(c, coroutine)
}

// RunOnce blocks up to maxSleepMs on the multiplexer, then:
//  1. refreshes the Clock;
//  2. for each reported fd event, sets poll_result, clears any pending
//     timeout, and resumes the waiter — readiness preempts timeout
//     because it makes a pending timeout moot;
//  3. drains expired heap entries, flags them TIMEOUT, and resumes
//     each, smallest-deadline first and FIFO within a bucket.
//
// Returns the number of waiters resumed. A resumed coroutine may arm
// new timers or fds before RunOnce returns — the next RunForever
// iteration recomputes its sleep bound from the post-resume heap state.
func (c *Core) RunOnce(maxSleepMs int) (int, error) {
	c.state = stateSleeping
	n, err := c.poller.waitReady(maxSleepMs)
	c.state = stateRunning
	c.clock.Refresh()
	if err != nil {
		return 0, err
	}

	ready := 0
	for i := 0; i < n; i++ {
		w, events, ok := c.poller.readyAt(i)
		if !ok {
			continue // BenignRace: fd was unregistered between wake and dispatch
		}
		w.ClearTimeout()
		w.finishReady(uint32(events))
		ready++
	}

	expired := c.heap.drainExpired(c.clock.NowMs())
	for _, w := range expired {
		lateMs := c.clock.NowMs() - w.GetTimeoutTime() // before resume may re-arm
		w.finishTimeout()
		if c.metrics != nil {
			c.metrics.Latency.Record(time.Duration(lateMs) * time.Millisecond)
		}
	}

	if c.metrics != nil {
		c.metrics.setGauges(c.heap.Len(), c.poller.registeredCount())
	}

	return ready + len(expired), nil
}

// RunForever is timer_loop: repeatedly computes sleep = max(0,
// peek_deadline - now_ms), capped at 10s (or unbounded if the heap is
// empty), and calls RunOnce(sleep). Returns when both the heap is empty and no fd is
// registered.
func (c *Core) RunForever() error {
	for {
		if c.heap.empty() && c.poller.registeredCount() == 0 {
			return nil
		}
		sleep := c.sleepBoundMs()
		if _, err := c.RunOnce(sleep); err != nil {
			return err
		}
	}
}

// sleepBoundMs computes run_forever's blocking bound: -1 (unbounded)
// when the heap is empty, else the clamped-to-zero gap to the earliest
// deadline, capped at 10000 ms.
func (c *Core) sleepBoundMs() int {
	deadline, ok := c.heap.peekDeadline()
	if !ok {
		return -1
	}
	now := c.clock.NowMs()
	if deadline <= now {
		return 0
	}
	gap := deadline - now
	const capMs = 10_000
	if gap > capMs {
		gap = capMs
	}
	return int(gap)
}

// Destroy is timer_destroy: teardown as in §5. Every remaining armed
// waiter transitions to Finished(STOPPED); every fd registration is
// unregistered without closing the fd. Returns once both the heap and
// the multiplexer registration set are empty.
func (c *Core) Destroy() error {
	if c.state == stateTerminated {
		return nil
	}
	c.state = stateTerminating

	stopped := 0
	for {
		expired := c.heap.drainExpired(^uint64(0))
		if len(expired) == 0 {
			break
		}
		for _, w := range expired {
			w.finishStopped()
			stopped++
		}
	}

	unregistered := c.unregisterAllFDs()

	logTeardown(c.opts.logger, stopped, unregistered)

	c.state = stateTerminated
	return c.poller.close()
}

// unregisterAllFDs walks the poll driver's registered-fd table and
// unregisters every active entry without closing the descriptor,
// matching Destroy's "unregistered without closing the fd" contract.
func (c *Core) unregisterAllFDs() int {
	n := 0
	for fd := range c.poller.fds {
		if !c.poller.fds[fd].active {
			continue
		}
		w := c.poller.fds[fd].waiter
		_ = c.poller.unregister(fd)
		n++
		if w != nil {
			w.finishStopped()
		}
	}
	return n
}

// Sleep is the "sleep(ms)" sugar: a detached waiter with a ms timeout.
// No Handle is taken; once the timeout has fired the Core holds no
// reference to the waiter. coroutine is resumed when the timeout
// fires; it is not awaited by any other coroutine (leaf-only).
func Sleep(core *Core, ms uint64, coroutine Coroutine) *Waiter {
	w := NewWaiter(core, coroutine)
	w.SetTimeout(ms)
	return w
}
