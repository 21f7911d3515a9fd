package cort

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollDriverRegisterAndWaitReady(t *testing.T) {
	p, err := newPollDriver(64)
	require.NoError(t, err)
	defer p.close()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	waiter := &Waiter{fd: int(r.Fd())}
	require.NoError(t, p.register(int(r.Fd()), EventRead, waiter))
	assert.Equal(t, 1, p.registeredCount())

	_, err = w.Write([]byte("x"))
	require.NoError(t, err)

	n, err := p.waitReady(1000)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, events, ok := p.readyAt(0)
	require.True(t, ok)
	assert.Same(t, waiter, got)
	assert.NotZero(t, events&EventRead)
	assert.Equal(t, 0, p.registeredCount(), "readyAt must unregister the fd it resolved")
}

func TestPollDriverReadyAtAfterUnregisterIsBenign(t *testing.T) {
	p, err := newPollDriver(64)
	require.NoError(t, err)
	defer p.close()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	waiter := &Waiter{fd: int(r.Fd())}
	require.NoError(t, p.register(int(r.Fd()), EventRead, waiter))
	_, _ = w.Write([]byte("x"))

	n, err := p.waitReady(1000)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.NoError(t, p.unregister(int(r.Fd())))

	_, _, ok := p.readyAt(0)
	assert.False(t, ok, "a benign race: fd unregistered between wake and dispatch")
}

func TestPollDriverWaitReadyTimesOutWithNoRegistrations(t *testing.T) {
	p, err := newPollDriver(64)
	require.NoError(t, err)
	defer p.close()

	n, err := p.waitReady(10)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestPollDriverModify(t *testing.T) {
	p, err := newPollDriver(64)
	require.NoError(t, err)
	defer p.close()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	waiter := &Waiter{fd: int(r.Fd())}
	require.NoError(t, p.register(int(r.Fd()), EventRead, waiter))
	require.NoError(t, p.modify(int(r.Fd()), EventRead))

	assert.Error(t, p.register(int(r.Fd()), EventRead, waiter), "registering an already-active fd must fail")
}

func TestPollDriverUnregisterUnknownFDIsBenign(t *testing.T) {
	p, err := newPollDriver(64)
	require.NoError(t, err)
	defer p.close()

	assert.NoError(t, p.unregister(999999))
}
