//go:build darwin

package cort

import (
	"golang.org/x/sys/unix"
)

// maxFDs is the initial fd-indexed slice size; it grows on demand up to
// maxFDLimit, matching the teacher's dynamic-slice kqueue poller.
const maxFDs = 4096

const maxFDLimit = 100000000

type fdSlot struct {
	waiter *Waiter
	events IOEvents
	active bool
}

// pollDriver manages fd readiness registration via kqueue. Single
// goroutine owned, as in poll_linux.go — no locking required.
type pollDriver struct {
	kq       int
	eventBuf []unix.Kevent_t
	fds      []fdSlot
	count    int
	closed   bool
}

func newPollDriver(maxEvents int) (*pollDriver, error) {
	if maxEvents <= 0 {
		maxEvents = 256
	}
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(kq)
	return &pollDriver{kq: kq, fds: make([]fdSlot, maxFDs), eventBuf: make([]unix.Kevent_t, maxEvents)}, nil
}

func (p *pollDriver) close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return unix.Close(p.kq)
}

func (p *pollDriver) grow(fd int) {
	if fd < len(p.fds) {
		return
	}
	newSize := fd*2 + 1
	if newSize > maxFDLimit {
		newSize = maxFDLimit + 1
	}
	grown := make([]fdSlot, newSize)
	copy(grown, p.fds)
	p.fds = grown
}

func (p *pollDriver) register(fd int, events IOEvents, w *Waiter) error {
	if fd < 0 || fd >= maxFDLimit {
		return ErrFDOutOfRange
	}
	p.grow(fd)
	if p.fds[fd].active {
		return ErrFDAlreadyRegistered
	}
	kevents := eventsToKevents(fd, events, unix.EV_ADD|unix.EV_ENABLE)
	if len(kevents) > 0 {
		if _, err := unix.Kevent(p.kq, kevents, nil, nil); err != nil {
			return err
		}
	}
	p.fds[fd] = fdSlot{waiter: w, events: events, active: true}
	p.count++
	return nil
}

func (p *pollDriver) modify(fd int, events IOEvents) error {
	if fd < 0 || fd >= len(p.fds) || !p.fds[fd].active {
		return ErrFDNotRegistered
	}
	old := p.fds[fd].events
	if old&^events != 0 {
		del := eventsToKevents(fd, old&^events, unix.EV_DELETE)
		if len(del) > 0 {
			_, _ = unix.Kevent(p.kq, del, nil, nil)
		}
	}
	if events&^old != 0 {
		add := eventsToKevents(fd, events&^old, unix.EV_ADD|unix.EV_ENABLE)
		if len(add) > 0 {
			if _, err := unix.Kevent(p.kq, add, nil, nil); err != nil {
				return err
			}
		}
	}
	p.fds[fd].events = events
	return nil
}

func (p *pollDriver) unregister(fd int) error {
	if fd < 0 || fd >= len(p.fds) || !p.fds[fd].active {
		return nil
	}
	events := p.fds[fd].events
	p.fds[fd] = fdSlot{}
	p.count--
	kevents := eventsToKevents(fd, events, unix.EV_DELETE)
	if len(kevents) > 0 {
		_, _ = unix.Kevent(p.kq, kevents, nil, nil)
	}
	return nil
}

func (p *pollDriver) registeredCount() int {
	return p.count
}

func (p *pollDriver) pollFD() int {
	return p.kq
}

// waitReady blocks up to timeoutMs on kqueue and returns the number of
// ready events, populating eventBuf for readyAt. See poll_linux.go's
// waitReady for why clock refresh is left to the caller.
func (p *pollDriver) waitReady(timeoutMs int) (int, error) {
	if p.closed {
		return 0, ErrPollerClosed
	}
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		ts = &unix.Timespec{Sec: int64(timeoutMs / 1000), Nsec: int64((timeoutMs % 1000) * 1000000)}
	}
	n, err := unix.Kevent(p.kq, nil, p.eventBuf[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

func (p *pollDriver) readyAt(i int) (w *Waiter, events IOEvents, ok bool) {
	fd := int(p.eventBuf[i].Ident)
	if fd < 0 || fd >= len(p.fds) {
		return nil, 0, false
	}
	slot := p.fds[fd]
	if !slot.active || slot.waiter == nil {
		return nil, 0, false
	}
	w = slot.waiter
	events = keventToEvents(&p.eventBuf[i])
	_ = p.unregister(fd)
	return w, events, true
}

func eventsToKevents(fd int, events IOEvents, flags uint16) []unix.Kevent_t {
	var kevents []unix.Kevent_t
	if events&EventRead != 0 {
		kevents = append(kevents, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flags})
	}
	if events&EventWrite != 0 {
		kevents = append(kevents, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flags})
	}
	return kevents
}

func keventToEvents(kev *unix.Kevent_t) IOEvents {
	var events IOEvents
	switch kev.Filter {
	case unix.EVFILT_READ:
		events |= EventRead
	case unix.EVFILT_WRITE:
		events |= EventWrite
	}
	if kev.Flags&unix.EV_ERROR != 0 {
		events |= EventError
	}
	if kev.Flags&unix.EV_EOF != 0 {
		events |= EventHangup
	}
	return events
}
