package cort

import (
	"errors"
	"testing"
)

func TestRegistrationErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &RegistrationError{FD: 5, Cause: cause}

	if !errors.Is(err, cause) {
		t.Error("errors.Is should see through RegistrationError to its Cause")
	}
	if err.Error() == "" {
		t.Error("Error() must not be empty")
	}
}

func TestWrapErrorPreservesCauseChain(t *testing.T) {
	cause := errors.New("root cause")
	wrapped := WrapError("context", cause)

	if !errors.Is(wrapped, cause) {
		t.Error("WrapError must preserve the cause chain for errors.Is")
	}
}

func TestInvariantViolationPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("invariantViolation must panic")
		}
	}()
	invariantViolation("test defect")
}
