//go:build linux

package cort

import (
	"golang.org/x/sys/unix"
)

// maxFDs bounds direct fd-indexed lookup, matching the teacher's
// epoll-backed poller.
const maxFDs = 65536

// fdSlot stores per-fd registration state. The registered Waiter is
// resumed directly by the Core driving run_once — there is no generic
// callback indirection, since the Poll Driver only ever serves Waiters.
type fdSlot struct {
	waiter *Waiter
	events IOEvents
	active bool
}

// pollDriver manages fd readiness registration via epoll. It is owned
// by exactly one Core, driven from exactly one goroutine — unlike the
// teacher's FastPoller, there is no RWMutex or version counter here: no
// concurrent reader ever races the registration writer.
type pollDriver struct {
	epfd     int
	eventBuf []unix.EpollEvent
	fds      [maxFDs]fdSlot
	count    int
	closed   bool
}

func newPollDriver(maxEvents int) (*pollDriver, error) {
	if maxEvents <= 0 {
		maxEvents = 256
	}
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &pollDriver{epfd: epfd, eventBuf: make([]unix.EpollEvent, maxEvents)}, nil
}

func (p *pollDriver) close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return unix.Close(p.epfd)
}

func (p *pollDriver) register(fd int, events IOEvents, w *Waiter) error {
	if fd < 0 || fd >= maxFDs {
		return ErrFDOutOfRange
	}
	if p.fds[fd].active {
		return ErrFDAlreadyRegistered
	}
	ev := &unix.EpollEvent{Events: eventsToEpoll(events), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		return err
	}
	p.fds[fd] = fdSlot{waiter: w, events: events, active: true}
	p.count++
	return nil
}

func (p *pollDriver) modify(fd int, events IOEvents) error {
	if fd < 0 || fd >= maxFDs || !p.fds[fd].active {
		return ErrFDNotRegistered
	}
	ev := &unix.EpollEvent{Events: eventsToEpoll(events), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, ev); err != nil {
		return err
	}
	p.fds[fd].events = events
	return nil
}

func (p *pollDriver) unregister(fd int) error {
	if fd < 0 || fd >= maxFDs || !p.fds[fd].active {
		return nil // BenignRace: already removed
	}
	_ = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	p.fds[fd] = fdSlot{}
	p.count--
	return nil
}

// registeredCount implements waited_fd_count_thread.
func (p *pollDriver) registeredCount() int {
	return p.count
}

// pollFD implements get_poll_fd.
func (p *pollDriver) pollFD() int {
	return p.epfd
}

// waitReady blocks up to timeoutMs on epoll and returns the number of
// ready events, populating eventBuf for readyAt. It does not touch
// waiter or clock state — Core.RunOnce refreshes the Clock once
// immediately after this returns, before any dispatch, per run_once
// step 1.
func (p *pollDriver) waitReady(timeoutMs int) (int, error) {
	if p.closed {
		return 0, ErrPollerClosed
	}
	n, err := unix.EpollWait(p.epfd, p.eventBuf[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

// readyAt resolves the i'th ready event from the last waitReady call to
// its Waiter, unregistering the fd. Returns ok=false if the fd was
// unregistered between waitReady and this call (a benign race, not an
// error).
func (p *pollDriver) readyAt(i int) (w *Waiter, events IOEvents, ok bool) {
	ev := p.eventBuf[i]
	fd := int(ev.Fd)
	if fd < 0 || fd >= maxFDs {
		return nil, 0, false
	}
	slot := p.fds[fd]
	if !slot.active || slot.waiter == nil {
		return nil, 0, false
	}
	w = slot.waiter
	events = epollToEvents(ev.Events)
	_ = p.unregister(fd)
	return w, events, true
}

func eventsToEpoll(events IOEvents) uint32 {
	var e uint32
	if events&EventRead != 0 {
		e |= unix.EPOLLIN
	}
	if events&EventWrite != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func epollToEvents(epollEvents uint32) IOEvents {
	var events IOEvents
	if epollEvents&unix.EPOLLIN != 0 {
		events |= EventRead
	}
	if epollEvents&unix.EPOLLOUT != 0 {
		events |= EventWrite
	}
	if epollEvents&unix.EPOLLERR != 0 {
		events |= EventError
	}
	if epollEvents&unix.EPOLLHUP != 0 {
		events |= EventHangup
	}
	return events
}
