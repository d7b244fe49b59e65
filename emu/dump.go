package emu

import (
	"fmt"
	"io"
	"slices"

	"github.com/go-faster/jx"

	"avrhal/hw/chip"
	"avrhal/hw/hwdefs"
	"avrhal/mcu"
)

// Dump writes the state of m as a JSON object: clock, interrupt state and
// statistics, register values and board pin levels. Registers are peeked,
// so dumping has no effect on the chip.
func Dump(w io.Writer, m *mcu.MCU) error {
	var e jx.Encoder
	e.SetIdent(2)
	encodeState(&e, m)
	if _, err := w.Write(e.Bytes()); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func hex(v uint16, size int) string {
	if size == 2 {
		return fmt.Sprintf("0x%04X", v)
	}
	return fmt.Sprintf("0x%02X", v)
}

func encodeState(e *jx.Encoder, m *mcu.MCU) {
	bus := m.Chip.Bus
	e.Obj(func(e *jx.Encoder) {
		e.Field("board", func(e *jx.Encoder) { e.Str(m.Board.Name) })
		e.Field("hz", func(e *jx.Encoder) { e.UInt32(m.Hz()) })
		e.Field("cycles", func(e *jx.Encoder) { e.UInt64(m.Chip.Clock.Cycles()) })
		e.Field("elapsed", func(e *jx.Encoder) { e.Str(m.Elapsed().String()) })
		e.Field("interrupts", func(e *jx.Encoder) { e.Bool(m.IRQ.Enabled()) })

		e.Field("vectors", func(e *jx.Encoder) {
			stats := m.IRQ.Stats()
			vecs := make([]hwdefs.Vector, 0, len(stats))
			for v := range stats {
				vecs = append(vecs, v)
			}
			slices.Sort(vecs)
			e.Obj(func(e *jx.Encoder) {
				for _, v := range vecs {
					e.Field(v.String(), func(e *jx.Encoder) { e.UInt64(stats[v]) })
				}
			})
		})

		e.Field("registers", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for _, r := range chip.Registers {
					v := uint16(bus.Peek8(r.Addr))
					if r.Size == 2 {
						v |= uint16(bus.Peek8(r.Addr+1)) << 8
					}
					e.Field(r.Name, func(e *jx.Encoder) { e.Str(hex(v, r.Size)) })
				}
			})
		})

		e.Field("pins", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, pd := range m.Board.Pins {
					p := m.PortPin(pd.PortPin())
					e.Obj(func(e *jx.Encoder) {
						e.Field("name", func(e *jx.Encoder) { e.Str(pd.Name) })
						e.Field("pin", func(e *jx.Encoder) { e.Str(pd.PortPin().String()) })
						e.Field("mode", func(e *jx.Encoder) { e.Str(p.Mode().String()) })
						e.Field("level", func(e *jx.Encoder) { e.Bool(m.Level(p)) })
					})
				}
			})
		})
	})
}
