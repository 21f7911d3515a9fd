package cort

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepeaterSetRateSelectsRegime(t *testing.T) {
	core := newTestCore(t)

	highFreq := NewRepeater(core, func() {})
	highFreq.SetRate(500)
	assert.Equal(t, regimeHighFreq, highFreq.regime)
	assert.Equal(t, uint64(highFreqTickMs), highFreq.interval)

	midFreq := NewRepeater(core, func() {})
	midFreq.SetRate(50)
	assert.Equal(t, regimeMidFreq, midFreq.regime)
	assert.Equal(t, uint64(20), midFreq.interval)

	lowFreq := NewRepeater(core, func() {})
	lowFreq.SetRate(0.5)
	assert.Equal(t, regimeLowFreq, lowFreq.regime)
	assert.Equal(t, uint64(2000), lowFreq.interval)
}

func TestRepeaterHighFreqEmitsRequestedCountPerWindow(t *testing.T) {
	core := newTestCore(t)
	var emitted int
	r := NewRepeater(core, func() { emitted++ })
	r.SetRate(250) // 2 or 3 per 10ms tick, 100 ticks per window

	for i := 0; i < 100; i++ {
		r.tick()
	}

	assert.Equal(t, 250, emitted, "a full HighFreq window must emit exactly req_count instances")
	assert.Equal(t, uint16(0), r.index, "index must wrap back to 0 after a full window")
}

func TestRepeaterMidFreqEmitsOnePerTick(t *testing.T) {
	core := newTestCore(t)
	var emitted int
	r := NewRepeater(core, func() { emitted++ })
	r.SetRate(10)

	for i := 0; i < 10; i++ {
		r.tick()
	}

	assert.Equal(t, 10, emitted)
	assert.Equal(t, uint16(0), r.index)
}

func TestRepeaterStallSkipResetsIndexAndEmitsNothing(t *testing.T) {
	core := newTestCore(t)
	var emitted int
	r := NewRepeater(core, func() { emitted++ })
	r.SetRate(500)

	r.tick() // index 0 -> 1, establishes lastMs
	require.Equal(t, uint16(1), r.index)
	before := emitted

	core.clock.nowMs += stallThresholdMs + 50 // simulate an external stall
	r.tick()

	assert.Equal(t, before, emitted, "a stalled tick must emit nothing")
	assert.Equal(t, uint16(0), r.index, "a stalled tick must reset index to 0")
}

func TestRepeaterStopHaltsFurtherTicks(t *testing.T) {
	core := newTestCore(t)
	var emitted int
	r := NewRepeater(core, func() { emitted++ })
	r.SetRate(10)
	r.Stop()

	assert.Equal(t, regimeStopped, r.regime)
	assert.False(t, r.core.IsSetTimeout())

	r.tick()
	assert.Equal(t, 0, emitted, "tick must no-op once stopped")
}

func TestRepeaterDriftCompensationCatchesUpAfterBlockingGap(t *testing.T) {
	core := newTestCore(t)
	var emitted int
	r := NewRepeater(core, func() { emitted++ })
	r.SetRate(50) // req_count: 50 instances/sec expected across the window

	// Simulate a 1-second window having elapsed while only 30 real
	// emissions happened (e.g. the thread was blocked for part of it):
	// the catch-up must emit exactly the 20-instance shortfall.
	// applyDriftCompensation refreshes the clock itself, so the gap is
	// simulated by moving the clock's anchor back rather than by bumping
	// the cached value.
	r.windowStartMs = core.clock.Refresh()
	r.realCount = 30
	core.clock.anchor = core.clock.anchor.Add(-time.Second)

	r.applyDriftCompensation()

	assert.Equal(t, 20, emitted, "drift compensation must emit exactly expected-real_count catch-up tasks")
	assert.Equal(t, uint64(0), r.realCount, "the window's real_count resets after compensation")
}
