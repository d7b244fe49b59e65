// Package printer writes text to USART0 through a ring buffer drained by
// the write-ready interrupt, so that callers only wait when the buffer is
// full.
package printer

import (
	"strconv"

	"avrhal/emu/log"
	"avrhal/hw/isr"
	"avrhal/hw/usart"
	"avrhal/mcu"
)

// BufferSize is the size of the ring buffer. One slot stays free to tell a
// full buffer from an empty one.
const BufferSize = 50

type Printer struct {
	u    *usart.USART
	irq  *isr.Controller
	idle func()

	buf        [BufferSize]byte
	begin, end int
}

func New(m *mcu.MCU) *Printer {
	return &Printer{u: m.USART0, irq: m.IRQ, idle: m.Idle}
}

// Init configures USART0 for output only, one stop bit and no parity. The
// buffer drains only while interrupts are enabled.
func (p *Printer) Init(baud usart.BaudRate) {
	defer p.irq.Suspend()()
	p.u.SetMode(usart.Write)
	p.u.SetStopBits(usart.Stop1)
	p.u.SetParity(usart.ParityDisable)
	p.u.SetBaudRate(baud)
	p.u.OnWriteReady(nil)
	p.begin, p.end = 0, 0
}

// Buffered returns the number of bytes waiting to be handed to the USART.
func (p *Printer) Buffered() int {
	return (p.end - p.begin + BufferSize) % BufferSize
}

func (p *Printer) full() bool { return (p.end+1)%BufferSize == p.begin }

func (p *Printer) queue(c byte) {
	for p.full() {
		if !p.irq.Enabled() {
			log.ModUSART.ErrorZ("printer buffer full with interrupts disabled, byte dropped").Hex8("c", c).End()
			return
		}
		p.idle()
	}
	p.irq.Atomic(func() {
		if p.begin == p.end {
			p.u.OnWriteReady(p.drain)
		}
		p.buf[p.end] = c
		p.end = (p.end + 1) % BufferSize
	})
}

func (p *Printer) drain(u *usart.USART) {
	if p.begin != p.end {
		u.Write(p.buf[p.begin])
		p.begin = (p.begin + 1) % BufferSize
	}
	if p.begin == p.end {
		u.OnWriteReady(nil)
	}
}

// WriteByte queues c. It never fails.
func (p *Printer) WriteByte(c byte) error {
	p.queue(c)
	return nil
}

// Write queues b, waiting for room in the buffer as needed.
func (p *Printer) Write(b []byte) (int, error) {
	for _, c := range b {
		p.queue(c)
	}
	return len(b), nil
}

func (p *Printer) WriteString(s string) (int, error) {
	for i := range len(s) {
		p.queue(s[i])
	}
	return len(s), nil
}

func (p *Printer) WriteUint(v uint16) {
	var tmp [5]byte
	p.Write(strconv.AppendUint(tmp[:0], uint64(v), 10))
}

func (p *Printer) WriteInt(v int16) {
	var tmp [6]byte
	p.Write(strconv.AppendInt(tmp[:0], int64(v), 10))
}

// WriteBool writes "True" or "False".
func (p *Printer) WriteBool(v bool) {
	if v {
		p.WriteString("True")
	} else {
		p.WriteString("False")
	}
}

// Endl writes a CRLF line ending.
func (p *Printer) Endl() { p.WriteString("\r\n") }

// Flush waits until every queued byte has been handed to the USART. The
// last one may still be shifting out when it returns.
func (p *Printer) Flush() {
	for p.begin != p.end {
		if !p.irq.Enabled() {
			log.ModUSART.ErrorZ("printer flush with interrupts disabled").Int("pending", p.Buffered()).End()
			return
		}
		p.idle()
	}
}
