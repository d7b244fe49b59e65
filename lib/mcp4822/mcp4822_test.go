package mcp4822

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avrhal/mcu"
)

func setup(t *testing.T) (*mcu.MCU, *DAC, *Model) {
	t.Helper()
	m, err := mcu.New("arduino-uno", 0)
	require.NoError(t, err)

	m.IRQ.Enable()
	latch := m.MustPin("D9")
	model := Attach(m, m.MustPin("SS"), latch)
	d := New(m, latch)
	d.Init()
	return m, d, model
}

func TestCommand(t *testing.T) {
	assert.Equal(t, uint16(0x1800), Command(ChannelA, 0x800))
	assert.Equal(t, uint16(0x9FFF), Command(ChannelB, 0xFFFF))
	assert.Equal(t, uint16(0x1000), Command(ChannelA, 0x7000))
}

func TestInit(t *testing.T) {
	m, _, _ := setup(t)

	assert.Equal(t, uint8(0x5C), m.Chip.SPI.SPCR.Value, "SPCR")
	assert.Equal(t, uint64(2), m.Chip.SPI.Divider())
	assert.True(t, m.Level(m.MustPin("SS")))
	assert.True(t, m.Level(m.MustPin("D9")))
	assert.True(t, m.IRQ.Enabled())
}

func TestWriteChannel(t *testing.T) {
	m, d, model := setup(t)

	d.WriteChannel(ChannelA, 0x800)
	assert.True(t, d.Busy())
	m.Step(100)
	require.False(t, d.Busy())

	assert.Equal(t, []uint16{0x1800}, model.Commands)
	assert.True(t, m.Level(m.MustPin("SS")), "chip select left asserted")
	assert.Zero(t, m.Chip.SPI.SPCR.Value&0x80, "transfer interrupt left enabled")
	assert.Zero(t, model.Code(ChannelA), "output changed before latch")

	d.Latch()
	assert.Equal(t, uint16(0x800), model.Code(ChannelA))
	assert.InDelta(t, 2.048, model.Volts(ChannelA), 1e-9)
	assert.Zero(t, model.Volts(ChannelB))
}

func TestWriteBoth(t *testing.T) {
	m, d, model := setup(t)

	d.WriteBoth(0x123, 0xFFF)
	m.Step(200)
	require.False(t, d.Busy())
	assert.Equal(t, []uint16{0x1123, 0x9FFF}, model.Commands)

	// The next write latches the previous one.
	d.WriteChannel(ChannelB, 0)
	assert.Equal(t, uint16(0x123), model.Code(ChannelA))
	assert.Equal(t, uint16(0xFFF), model.Code(ChannelB))
	assert.InDelta(t, 2*VRef*4095/4096, model.Volts(ChannelB), 1e-9)

	m.Step(100)
	d.Latch()
	assert.Equal(t, uint16(0x123), model.Code(ChannelA))
	assert.Zero(t, model.Code(ChannelB))
	assert.Equal(t, 3, len(model.Commands))
}

func TestInitKeepsInterruptState(t *testing.T) {
	m, err := mcu.New("arduino-uno", 0)
	require.NoError(t, err)
	d := New(m, m.MustPin("D9"))

	d.Init()
	assert.False(t, m.IRQ.Enabled(), "Init enabled interrupts")
	assert.Equal(t, uint8(0x5C), m.Chip.SPI.SPCR.Value, "SPCR")

	m.IRQ.Enable()
	m.IRQ.Atomic(func() {
		d.Init()
		assert.False(t, m.IRQ.Enabled(), "Init enabled interrupts in an atomic region")
	})
	assert.True(t, m.IRQ.Enabled())
}
