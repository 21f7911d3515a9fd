// Package cort provides typed errors with cause-chain support, following
// the error taxonomy of the timer-and-poll core.
package cort

import (
	"errors"
	"fmt"
)

// ErrInitFailed is returned (wrapped, via [WrapError]) from NewCore when
// the Clock or Poll Driver fails to initialize. FATAL: the thread cannot
// run the loop.
var ErrInitFailed = errors.New("cort: core init failed")

// ErrPollerClosed is returned by poll-driver operations after Destroy.
var ErrPollerClosed = errors.New("cort: poll driver closed")

// RegistrationError reports that the OS multiplexer rejected an add/mod
// for an fd. Surfaced to the caller of SetPollRequest as a plain error
// return; the waiter remains unarmed for the fd. This is the
// RegistrationFailure entry of the error taxonomy — a caller-visible
// condition, not a panic.
type RegistrationError struct {
	FD    int
	Cause error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("cort: register fd %d: %v", e.FD, e.Cause)
}

func (e *RegistrationError) Unwrap() error {
	return e.Cause
}

// invariantViolation panics on an internal defect — e.g. a waiter handed
// to timerHeap.add while already armed. This is the InvariantViolation
// entry of the error taxonomy: a program defect, not a recoverable
// condition, so it aborts rather than returning an error value.
func invariantViolation(msg string) {
	panic("cort: invariant violation: " + msg)
}

// WrapError wraps an error with a message, preserving the cause chain
// for errors.Is/errors.As.
func WrapError(message string, cause error) error {
	return fmt.Errorf("%s: %w", message, cause)
}
