package cort

import (
	"container/heap"
	"container/list"
)

// bucket is a Timer Heap node: every Waiter sharing the exact same
// deadline lives in one bucket, as an intrusive FIFO list member.
// Collapsing identical deadlines into one heap node keeps the heap at
// O(H log H) instead of O(N log N) where H is distinct-deadline count —
// deadlines such as "sleep 5ms" are requested far more often than they
// are distinct.
type bucket struct {
	deadlineMs uint64
	waiters    list.List // intrusive FIFO of *Waiter, via waiter.bucketElem
	index      int       // heap.Interface bookkeeping, maintained by container/heap
}

// timerHeap is a min-heap of buckets ordered by deadlineMs, with an
// index for O(1) bucket lookup by deadline during add/remove.
type timerHeap struct {
	buckets []*bucket
	byDline map[uint64]*bucket
}

func newTimerHeap() *timerHeap {
	return &timerHeap{byDline: make(map[uint64]*bucket)}
}

// heap.Interface

func (h *timerHeap) Len() int { return len(h.buckets) }

func (h *timerHeap) Less(i, j int) bool {
	return h.buckets[i].deadlineMs < h.buckets[j].deadlineMs
}

func (h *timerHeap) Swap(i, j int) {
	h.buckets[i], h.buckets[j] = h.buckets[j], h.buckets[i]
	h.buckets[i].index = i
	h.buckets[j].index = j
}

func (h *timerHeap) Push(x any) {
	b := x.(*bucket)
	b.index = len(h.buckets)
	h.buckets = append(h.buckets, b)
}

func (h *timerHeap) Pop() any {
	old := h.buckets
	n := len(old)
	b := old[n-1]
	old[n-1] = nil
	b.index = -1
	h.buckets = old[:n-1]
	return b
}

// add inserts w into the bucket for deadlineMs, creating one if none
// exists yet. Panics (InvariantViolation) if w is already armed — callers
// must clearTimeout before re-arming, which Waiter.SetTimeout does for
// them.
func (h *timerHeap) add(w *Waiter, deadlineMs uint64) {
	if w.bucket != nil {
		invariantViolation("timerHeap.add: waiter already armed")
	}
	b, ok := h.byDline[deadlineMs]
	if !ok {
		b = &bucket{deadlineMs: deadlineMs}
		h.byDline[deadlineMs] = b
		heap.Push(h, b)
	}
	w.bucketElem = b.waiters.PushBack(w)
	w.bucket = b
}

// remove unlinks w from its bucket. A no-op (BenignRace) if w is not
// currently armed, matching spec's "waiter already removed" policy.
func (h *timerHeap) remove(w *Waiter) {
	b := w.bucket
	if b == nil {
		return
	}
	b.waiters.Remove(w.bucketElem)
	w.bucket = nil
	w.bucketElem = nil
	if b.waiters.Len() == 0 {
		delete(h.byDline, b.deadlineMs)
		heap.Remove(h, b.index)
	}
}

// peekDeadline returns the smallest armed deadline and true, or
// (0, false) if the heap is empty.
func (h *timerHeap) peekDeadline() (uint64, bool) {
	if len(h.buckets) == 0 {
		return 0, false
	}
	return h.buckets[0].deadlineMs, true
}

// drainExpired removes and returns every waiter whose bucket deadline is
// <= nowMs, bucket-order (smallest deadline first) then FIFO within a
// bucket, matching the ordering axioms in §5.
func (h *timerHeap) drainExpired(nowMs uint64) []*Waiter {
	var out []*Waiter
	for len(h.buckets) > 0 && h.buckets[0].deadlineMs <= nowMs {
		b := heap.Pop(h).(*bucket)
		delete(h.byDline, b.deadlineMs)
		for e := b.waiters.Front(); e != nil; e = e.Next() {
			w := e.Value.(*Waiter)
			w.bucket = nil
			w.bucketElem = nil
			out = append(out, w)
		}
	}
	return out
}

// empty reports whether no waiter is currently armed in the heap.
func (h *timerHeap) empty() bool {
	return len(h.buckets) == 0
}
