// Package cort provides the timer-and-poll core of a cooperative,
// single-goroutine coroutine runtime.
//
// # Architecture
//
// A [Core] bundles three pieces, each owned by exactly one goroutine and
// never locked against itself:
//
//   - [Clock]: a cached monotonic millisecond counter, refreshed once
//     per wake rather than queried per use.
//   - the Timer Heap (internal): a bucket-aggregating min-heap keyed by
//     deadline, so waiters sharing a deadline cost one heap entry.
//   - [Core]'s Poll Driver (internal, platform-specific): epoll on
//     Linux, kqueue on Darwin, registering fd readiness interest on
//     behalf of [Waiter]s.
//
// A [Repeater] runs on top of a Core: a recurring task generator with
// drift compensation, itself driven by a Waiter.
//
// [Waiter] is the unit both the heap and the poll driver operate on: a
// suspended leaf coroutine awaiting a timeout, an fd event, or both. A
// [Handle] wraps a Waiter in a reference count so multiple owners can
// share one without a use-after-free.
//
// # Execution Model
//
// RunOnce blocks on the Poll Driver up to a caller-supplied bound,
// refreshes the Clock as soon as the driver returns, resumes every
// waiter whose fd became ready, then drains and resumes every waiter
// whose deadline has passed — readiness is dispatched first because it
// makes a pending timeout for the same waiter moot. RunForever repeats
// this with a sleep bound recomputed from the earliest pending deadline
// each iteration, and returns once no waiter and no fd registration
// remains.
//
// # Thread Safety
//
// A Core is not safe for concurrent use. Exactly one goroutine may call
// its methods, and only that goroutine may touch Waiters or Handles it
// created — there is no cross-goroutine Submit, no lock-free queue, no
// wake pipe. A host embedding multiple Cores runs each on its own
// goroutine and multiplexes their descriptors ([Core.GetPollFD])
// externally if it needs to.
//
// # Usage
//
//	core, err := cort.NewCore(cort.WithMetrics(true))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := core.Init(); err != nil {
//	    log.Fatal(err)
//	}
//	defer core.Destroy()
//
//	w := core.NewWaiter(myCoroutine)
//	w.SetTimeout(100)
//
//	if err := core.RunForever(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Error Types
//
// [RegistrationError] reports a rejected fd registration without
// aborting the Core. Internal defects (a waiter double-armed, Init
// called twice) panic rather than return an error, since
// they indicate a caller bug rather than a recoverable runtime
// condition.
package cort
