package emu

import (
	"bytes"
	"testing"

	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avrhal/hw/gpio"
	"avrhal/hw/timer"
	"avrhal/mcu"
)

type pinState struct {
	mode  string
	level bool
}

type dump struct {
	board     string
	cycles    uint64
	irq       bool
	vectors   map[string]uint64
	registers map[string]string
	pins      map[string]pinState
}

func decodeDump(t *testing.T, buf []byte) dump {
	t.Helper()
	dd := dump{
		vectors:   map[string]uint64{},
		registers: map[string]string{},
		pins:      map[string]pinState{},
	}
	err := jx.DecodeBytes(buf).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "board":
			dd.board, err = d.Str()
		case "cycles":
			dd.cycles, err = d.UInt64()
		case "interrupts":
			dd.irq, err = d.Bool()
		case "vectors":
			err = d.Obj(func(d *jx.Decoder, key string) error {
				n, err := d.UInt64()
				dd.vectors[key] = n
				return err
			})
		case "registers":
			err = d.Obj(func(d *jx.Decoder, key string) error {
				v, err := d.Str()
				dd.registers[key] = v
				return err
			})
		case "pins":
			err = d.Arr(func(d *jx.Decoder) error {
				var name string
				var ps pinState
				err := d.Obj(func(d *jx.Decoder, key string) error {
					var err error
					switch key {
					case "name":
						name, err = d.Str()
					case "mode":
						ps.mode, err = d.Str()
					case "level":
						ps.level, err = d.Bool()
					default:
						err = d.Skip()
					}
					return err
				})
				dd.pins[name] = ps
				return err
			})
		default:
			err = d.Skip()
		}
		return err
	})
	require.NoError(t, err)
	return dd
}

func TestDump(t *testing.T) {
	m, err := mcu.New("arduino-uno", 0)
	require.NoError(t, err)

	led := m.MustPin("Led")
	led.SetMode(gpio.Output)
	led.Write(true)
	m.Timer1.WriteCounter(0x1234)
	m.Timer0.OnOverflow(func(*timer.Timer8) {})
	m.Timer0.SetClock(timer.ClockDiv1)
	m.IRQ.Enable()
	m.Step(1024)

	var buf bytes.Buffer
	require.NoError(t, Dump(&buf, m))
	cycles := m.Chip.Clock.Cycles()

	dd := decodeDump(t, buf.Bytes())
	assert.Equal(t, "arduino-uno", dd.board)
	assert.Equal(t, cycles, dd.cycles, "dump spent cycles")
	assert.True(t, dd.irq)
	assert.Equal(t, map[string]uint64{"TIMER0_OVF": 4}, dd.vectors)

	assert.Equal(t, "0x20", dd.registers["PORTB"])
	assert.Equal(t, "0x20", dd.registers["DDRB"])
	assert.Equal(t, "0x20", dd.registers["PINB"])
	assert.Equal(t, "0x1234", dd.registers["TCNT1"])
	assert.Equal(t, "0x06", dd.registers["UCSR0C"])
	assert.Equal(t, "0x80", dd.registers["SREG"])
	assert.Len(t, dd.registers, 39)

	assert.Equal(t, pinState{"output", true}, dd.pins["D13"])
	assert.Equal(t, pinState{"input", false}, dd.pins["D2"])
	assert.Len(t, dd.pins, 20)
}
