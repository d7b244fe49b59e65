package chrono

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avrhal/hw/hwdefs"
	"avrhal/hw/timer"
	"avrhal/mcu"
)

func TestChrono(t *testing.T) {
	tests := []struct {
		clock     timer.Clock
		step      uint64
		overflows uint16
		cycles    uint16
		elapsed   time.Duration
	}{
		{timer.ClockDiv1, 1000, 3, 232, 62500 * time.Nanosecond},
		{timer.ClockDiv8, 8 * 300, 1, 44, 150 * time.Microsecond},
		{timer.ClockDiv64, 64 * 10, 0, 10, 40 * time.Microsecond},
	}
	for _, tt := range tests {
		m, err := mcu.New("arduino-uno", 0)
		require.NoError(t, err)
		m.IRQ.Enable()
		c := New(m)

		c.Start(tt.clock)
		m.Step(tt.step)
		c.Stop()

		assert.Equal(t, tt.overflows, c.Overflows(), "clock %d", tt.clock)
		assert.Equal(t, tt.cycles, c.Cycles(), "clock %d", tt.clock)
		assert.Equal(t, tt.elapsed, c.Elapsed(), "clock %d", tt.clock)
		assert.Equal(t, tt.overflows > 0, m.IRQ.Stats()[hwdefs.Timer0Ovf] > 0)
	}
}

func TestChronoStopReleasesTimer(t *testing.T) {
	m, err := mcu.New("arduino-uno", 0)
	require.NoError(t, err)
	m.IRQ.Enable()
	c := New(m)

	c.Start(timer.ClockDiv1)
	m.Step(600)
	c.Stop()
	require.EqualValues(t, 2, c.Overflows())

	assert.Zero(t, m.Timer0.ReadCounter())
	assert.False(t, m.Timer0.IsOverflow())
	assert.Zero(t, m.Chip.Timer0.TIMSK.Value, "overflow interrupt left enabled")

	m.Step(1000)
	assert.Zero(t, m.Timer0.ReadCounter(), "timer still running")
	assert.EqualValues(t, 2, c.Overflows())
	assert.True(t, m.IRQ.Enabled())
}

func TestChronoKeepsInterruptState(t *testing.T) {
	m, err := mcu.New("arduino-uno", 0)
	require.NoError(t, err)
	require.False(t, m.IRQ.Enabled())
	c := New(m)

	c.Start(timer.ClockDiv1)
	assert.False(t, m.IRQ.Enabled(), "Start enabled interrupts")
	m.Step(600)
	c.Stop()
	assert.False(t, m.IRQ.Enabled(), "Stop enabled interrupts")

	// Nothing services the overflows, the counter alone is kept.
	assert.Zero(t, c.Overflows())
	assert.EqualValues(t, 600%256, c.Cycles())

	m.IRQ.Enable()
	m.IRQ.Atomic(func() {
		c.Start(timer.ClockDiv1)
		assert.False(t, m.IRQ.Enabled(), "Start enabled interrupts in an atomic region")
		c.Stop()
		assert.False(t, m.IRQ.Enabled(), "Stop enabled interrupts in an atomic region")
	})
	assert.True(t, m.IRQ.Enabled())
}

func TestChronoElapsedLongRuns(t *testing.T) {
	c := &Chrono{hz: 16_000_000, clock: timer.ClockDiv1024, overflows: 0xFFFF, cycles: 0xFF}
	// The longest measurable run: 2^24-1 ticks of 64us each.
	assert.Equal(t, 1073741760*time.Microsecond, c.Elapsed())
}
