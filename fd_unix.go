//go:build linux || darwin

package cort

import (
	"golang.org/x/sys/unix"
)

// closeFD closes a file descriptor, used by Waiter.CloseCortFD.
func closeFD(fd int) error {
	return unix.Close(fd)
}
