package cort

// Handle is a strong, reference-counted pointer to a Waiter. Copying a
// Handle (AddRef) increments the count; dropping one (Release)
// decrements it, deleting the Waiter once the count reaches zero.
//
// Waiters hold no pointer back to their Handle — there is no weak
// variant, and no automatic cycle detection. A cyclic ownership graph
// must be broken by the caller nulling a field before the final drop.
//
// The Timer Heap and Poll Driver borrow a Waiter while it is armed; they
// do not hold a Handle or increment ref_count. Code that lets its last
// Handle drop while the waiter is still armed has a defect — the waiter
// is destroyed out from under the heap/poller registration.
type Handle struct {
	w *Waiter
}

// NewHandle wraps w in a Handle with ref_count starting at 1. Per
// spec, ref_count == 0 means "unmanaged, caller is the implicit sole
// owner" — constructing a Handle moves the waiter into the managed
// (ref_count >= 1) category.
func NewHandle(w *Waiter) *Handle {
	w.refCount.Store(1)
	return &Handle{w: w}
}

// Waiter returns the underlying Waiter without affecting ref_count.
func (h *Handle) Waiter() *Waiter {
	return h.w
}

// AddRef returns a new Handle over the same Waiter, incrementing
// ref_count.
func (h *Handle) AddRef() *Handle {
	h.w.refCount.Add(1)
	return &Handle{w: h.w}
}

// Release decrements ref_count. If the result is 0, or if ref_count was
// already 0 or 1 before this call, the Waiter is destroyed (unlinked
// from the heap/poller if still armed) and Release returns 0. Otherwise
// it returns the new count.
func (h *Handle) Release() uint32 {
	prev := h.w.refCount.Load()
	if prev <= 1 {
		h.w.destroy()
		h.w.refCount.Store(0)
		return 0
	}
	return h.w.refCount.Add(^uint32(0))
}

// RefCount returns the current strong reference count.
func (h *Handle) RefCount() uint32 {
	return h.w.refCount.Load()
}
