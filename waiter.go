package cort

import (
	"container/list"
	"sync/atomic"
)

// Packed layout of Waiter.elapsedAndFlags: low 30 bits hold the elapsed
// milliseconds observed at Finish (clamped to 2^30-1), the top two bits
// are the TIMEOUT and STOPPED flags. Packing flags and elapsed into one
// word is a size choice, not a correctness one — accessors keep it an
// implementation detail.
const (
	flagTimeout  uint32 = 1 << 31
	flagStopped  uint32 = 1 << 30
	elapsedMask  uint32 = (1 << 30) - 1
	maxElapsedMs uint32 = elapsedMask
)

// Waiter is the state machine of one suspended leaf coroutine awaiting a
// timeout and/or fd readiness. Grounded on gaio's aiocb: a heap
// backlink plus an fd, owned by the Core that created it.
type Waiter struct {
	owner *Core

	startMs         uint64
	deadlineMs      uint64 // valid iff bucket != nil
	elapsedAndFlags uint32

	bucket     *bucket       // non-nil iff armed in the Timer Heap
	bucketElem *list.Element // this waiter's node within bucket.waiters

	fd          int // -1 if none
	pollRequest uint32
	pollResult  uint32

	refCount atomic.Uint32

	coroutine Coroutine
}

// NewWaiter constructs a detached waiter (no deadline, no fd) owned by
// core and resuming into coroutine.
func NewWaiter(core *Core, coroutine Coroutine) *Waiter {
	return &Waiter{
		owner:     core,
		fd:        -1,
		coroutine: coroutine,
	}
}

// SetTimeout arms (or re-arms) the waiter with an absolute deadline of
// now_ms + ms. A waiter already armed is first unlinked from its old
// bucket; ms == 0 is not special-cased — callers wanting "no timeout"
// call ClearTimeout.
func (w *Waiter) SetTimeout(ms uint64) {
	if w.bucket != nil {
		w.owner.heap.remove(w)
	}
	w.startMs = w.owner.clock.NowMs()
	w.deadlineMs = w.startMs + ms
	w.owner.heap.add(w, w.deadlineMs)
}

// ClearTimeout removes the waiter from the Timer Heap if armed.
// Idempotent.
func (w *Waiter) ClearTimeout() {
	w.owner.heap.remove(w)
}

// SetPollRequest registers or modifies multiplexer interest for the
// waiter's fd. Replacing events with 0 unregisters. Returns a
// *RegistrationError (RegistrationFailure) if the multiplexer rejects
// the call; the waiter remains unarmed for the fd in that case.
func (w *Waiter) SetPollRequest(events uint32) error {
	if w.fd < 0 {
		invariantViolation("SetPollRequest: no fd set")
	}
	if events == 0 {
		w.RemovePollRequest()
		return nil
	}
	var err error
	if w.pollRequest == 0 {
		err = w.owner.poller.register(w.fd, IOEvents(events), w)
	} else {
		err = w.owner.poller.modify(w.fd, IOEvents(events))
	}
	if err != nil {
		logRegistrationFailed(w.owner.opts.logger, w.fd, err)
		return &RegistrationError{FD: w.fd, Cause: err}
	}
	w.pollRequest = events
	return nil
}

// RemovePollRequest unregisters the fd from the multiplexer without
// closing it. Idempotent.
func (w *Waiter) RemovePollRequest() {
	if w.pollRequest == 0 {
		return
	}
	_ = w.owner.poller.unregister(w.fd)
	w.pollRequest = 0
}

// CloseCortFD unregisters the fd, closes it, and clears the field —
// matching §4.4's close_cort_fd.
func (w *Waiter) CloseCortFD() {
	if w.fd < 0 {
		return
	}
	fd := w.fd
	w.RemovePollRequest()
	w.fd = -1
	_ = closeFD(fd)
}

// RemoveCortFD unregisters the fd and clears the field without closing
// the underlying descriptor — matching §4.4's remove_cort_fd, for
// callers that want to stop watching an fd but keep it open. Use
// RemovePollRequest directly to unregister without clearing the field.
func (w *Waiter) RemoveCortFD() {
	if w.fd < 0 {
		return
	}
	w.RemovePollRequest()
	w.fd = -1
}

// SetFD assigns the fd this waiter watches. Must be called before
// SetPollRequest.
func (w *Waiter) SetFD(fd int) {
	w.fd = fd
}

// FD returns the watched descriptor, or -1 if none.
func (w *Waiter) FD() int {
	return w.fd
}

// GetTimeCost returns the elapsed milliseconds observed at the last
// Finish (low 30 bits of elapsed_and_flags).
func (w *Waiter) GetTimeCost() uint32 {
	return w.elapsedAndFlags & elapsedMask
}

// GetTimePast returns the elapsed milliseconds since arming, computed at
// call time from the Core's cached clock (unlike GetTimeCost, which is
// fixed at Finish) — valid only while armed.
func (w *Waiter) GetTimePast() uint32 {
	now := w.owner.clock.NowMs()
	if now <= w.startMs {
		return 0
	}
	return uint32(now - w.startMs)
}

// GetTimeoutTime returns the absolute deadline, valid iff IsSetTimeout.
func (w *Waiter) GetTimeoutTime() uint64 {
	return w.deadlineMs
}

// PollResult returns the events the driver last reported ready.
func (w *Waiter) PollResult() uint32 {
	return w.pollResult
}

func (w *Waiter) IsTimeout() bool {
	return w.elapsedAndFlags&flagTimeout != 0
}

func (w *Waiter) IsStopped() bool {
	return w.elapsedAndFlags&flagStopped != 0
}

func (w *Waiter) IsTimeoutOrStopped() bool {
	return w.elapsedAndFlags&(flagTimeout|flagStopped) != 0
}

func (w *Waiter) IsSetTimeout() bool {
	return w.bucket != nil
}

// AddRef wraps w in a new Handle, or adds a reference to its existing
// managed count — see Handle for the ownership protocol.
func (w *Waiter) AddRef() *Handle {
	if w.refCount.Load() == 0 {
		return NewHandle(w)
	}
	w.refCount.Add(1)
	return &Handle{w: w}
}

// finishReady transitions the waiter to Finished(READY): poll_result is
// set, any timeout registration is cleared, and the coroutine resumes.
// Neither TIMEOUT nor STOPPED is set — readiness is distinguished via
// poll_result != 0.
func (w *Waiter) finishReady(result uint32) {
	w.pollResult = result
	w.unlinkForFinish()
	w.packElapsed(0)
	w.resume()
}

// finishTimeout transitions the waiter to Finished(TIMEOUT).
func (w *Waiter) finishTimeout() {
	w.unlinkForFinish()
	w.packElapsed(flagTimeout)
	w.resume()
}

// finishStopped transitions the waiter to Finished(STOPPED), used only
// during Core teardown.
func (w *Waiter) finishStopped() {
	w.unlinkForFinish()
	w.packElapsed(flagStopped)
	w.resume()
}

// unlinkForFinish drops heap linkage and multiplexer registration
// before invoking user code, so a panic escaping the coroutine cannot
// leave the heap or poller holding a stale reference (§7).
func (w *Waiter) unlinkForFinish() {
	if w.bucket != nil {
		w.owner.heap.remove(w)
	}
	if w.pollRequest != 0 {
		w.RemovePollRequest()
	}
}

func (w *Waiter) packElapsed(flags uint32) {
	now := w.owner.clock.NowMs()
	elapsed := uint32(0)
	if now > w.startMs {
		e := now - w.startMs
		if e > uint64(maxElapsedMs) {
			elapsed = maxElapsedMs
		} else {
			elapsed = uint32(e)
		}
	}
	w.elapsedAndFlags = elapsed | flags
}

func (w *Waiter) resume() {
	if w.coroutine == nil {
		return
	}
	next := w.coroutine.OnFinish()
	if next != nil {
		w.coroutine = next
	}
	w.coroutine.Resume()
}

// destroy is invoked by Handle.Release when the strong refcount reaches
// zero. It defensively unlinks the waiter from the heap/poller if it is
// still armed — code that lets this happen has a defect (§3 Ownership),
// but destroy must not leave a dangling bucket/poller entry behind.
func (w *Waiter) destroy() {
	if w.bucket != nil {
		w.owner.heap.remove(w)
	}
	if w.pollRequest != 0 {
		w.RemovePollRequest()
	}
}
