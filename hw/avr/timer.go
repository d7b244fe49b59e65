package avr

import (
	"avrhal/emu/log"
	"avrhal/hw/hwdefs"
	"avrhal/hw/hwio"
)

// TIFRn / TIMSKn bits, common to both timers.
const (
	ICF  = 5
	OCFB = 2
	OCFA = 1
	TOV  = 0
)

// Clock select (CSn2:0) values.
const (
	csStop = iota
	csDiv1
	csDiv8
	csDiv64
	csDiv256
	csDiv1024
	csExtFalling
	csExtRising
)

var csDividers = [...]uint64{0, 1, 8, 64, 256, 1024, 0, 0}

type waveform uint8

const (
	waveNormal waveform = iota
	waveCTC
	wavePWM
)

func (w waveform) String() string {
	return [...]string{"normal", "ctc", "pwm"}[w]
}

type topSource uint8

const (
	topFixed topSource = iota
	topOCRA
	topICR
)

// wgm is a decoded waveform generation mode.
type wgm struct {
	wave waveform
	src  topSource
	top  uint16 // when src is topFixed
}

// OutputPin is the compare output pin of a channel.
type OutputPin struct {
	Port *Port
	Bit  uint8
}

// counter is the logic shared by the 8 and 16-bit timers. Register fields
// are decoded by the owning timer into the counter state.
type counter struct {
	name string
	max  uint16

	mode wgm
	cs   uint8
	com  [2]uint8
	cnt  uint16
	ocr  [2]uint16
	icr  uint16
	pre  uint64

	flags *hwio.Reg8
	pins  [2]OutputPin
	out   [2]bool
}

func (c *counter) top() uint16 {
	switch c.mode.src {
	case topOCRA:
		return c.ocr[0] & c.max
	case topICR:
		return c.icr & c.max
	}
	return c.mode.top
}

func (c *counter) step(cycles uint64) {
	div := csDividers[c.cs]
	if div == 0 {
		return
	}
	c.pre += cycles
	ticks := c.pre / div
	c.pre %= div
	for range ticks {
		c.tick()
	}
}

// edge counts a transition of the external clock pin.
func (c *counter) edge(rising bool) {
	if (rising && c.cs == csExtRising) || (!rising && c.cs == csExtFalling) {
		c.tick()
	}
}

func (c *counter) tick() {
	top := c.top()
	switch {
	case c.cnt == top:
		c.cnt = 0
		if c.mode.wave != waveCTC || top == c.max {
			hwio.SetBit(&c.flags.Value, TOV)
		}
		if c.mode.wave == wavePWM {
			c.bottom()
		}
	case c.cnt == c.max:
		c.cnt = 0
		hwio.SetBit(&c.flags.Value, TOV)
	default:
		c.cnt++
	}

	if c.cnt == c.ocr[0]&c.max {
		hwio.SetBit(&c.flags.Value, OCFA)
		c.match(0)
	}
	if c.cnt == c.ocr[1]&c.max {
		hwio.SetBit(&c.flags.Value, OCFB)
		c.match(1)
	}
}

// match applies the compare output mode of channel ch on a compare match.
func (c *counter) match(ch int) {
	switch com := c.com[ch]; {
	case com == 0:
		return
	case c.mode.wave == wavePWM:
		switch com {
		case 1:
			// Toggle on match is only available on channel A with TOP=OCRA.
			if ch == 0 && c.mode.src == topOCRA {
				c.setOut(ch, !c.out[ch])
			}
		case 2:
			c.setOut(ch, false)
		case 3:
			c.setOut(ch, true)
		}
	default:
		switch com {
		case 1:
			c.setOut(ch, !c.out[ch])
		case 2:
			c.setOut(ch, false)
		case 3:
			c.setOut(ch, true)
		}
	}
}

// bottom applies the PWM output modes when the counter wraps.
func (c *counter) bottom() {
	for ch := range 2 {
		switch c.com[ch] {
		case 2:
			c.setOut(ch, true)
		case 3:
			c.setOut(ch, false)
		}
	}
}

func (c *counter) setOut(ch int, level bool) {
	c.out[ch] = level
	if p := c.pins[ch]; p.Port != nil {
		p.Port.SetAlt(p.Bit, level)
	}
}

// connect hands the output pins to the counter according to the compare
// output modes.
func (c *counter) connect() {
	for ch := range 2 {
		p := c.pins[ch]
		if p.Port == nil {
			continue
		}
		if c.com[ch] == 0 {
			p.Port.ReleaseAlt(p.Bit)
		} else {
			p.Port.SetAlt(p.Bit, c.out[ch])
		}
	}
}

func (c *counter) logConfig() {
	log.ModSim.DebugZ("timer config").
		String("timer", c.name).
		Stringer("wave", c.mode.wave).
		Hex16("top", c.top()).
		Uint("cs", uint(c.cs)).
		Uint("comA", uint(c.com[0])).
		Uint("comB", uint(c.com[1])).
		End()
}

func (c *counter) reset() {
	*c = counter{name: c.name, max: c.max, flags: c.flags, pins: c.pins, mode: wgm{top: c.max}}
	c.connect()
}

// Timer8 is Timer/Counter0.
type Timer8 struct {
	TCCRA hwio.Reg8 `hwio:"bank=0,offset=0x0,rwmask=0xF3,wcb"`
	TCCRB hwio.Reg8 `hwio:"bank=0,offset=0x1,rwmask=0x0F,wcb"`
	TCNT  hwio.Reg8 `hwio:"bank=0,offset=0x2,rcb,wcb"`
	OCRA  hwio.Reg8 `hwio:"bank=0,offset=0x3,wcb"`
	OCRB  hwio.Reg8 `hwio:"bank=0,offset=0x4,wcb"`
	TIFR  hwio.Reg8 `hwio:"bank=1,offset=0x0,rwmask=0x07,rcb,wcb"`
	TIMSK hwio.Reg8 `hwio:"bank=2,offset=0x0,rwmask=0x07"`

	clk *Clock
	counter
}

func NewTimer8(name string, clk *Clock, pinA, pinB OutputPin) *Timer8 {
	t := &Timer8{clk: clk}
	hwio.MustInitRegs(t)
	t.counter = counter{name: name, max: 0xFF, flags: &t.TIFR, pins: [2]OutputPin{pinA, pinB}}
	t.reset()
	return t
}

func (t *Timer8) decode() {
	a, b := t.TCCRA.Value, t.TCCRB.Value
	mode := hwio.Field(a, 0, 2) | hwio.Field(b, 3, 1)<<2
	switch mode {
	case 0:
		t.mode = wgm{wave: waveNormal, top: 0xFF}
	case 2:
		t.mode = wgm{wave: waveCTC, src: topOCRA}
	case 1, 3:
		t.mode = wgm{wave: wavePWM, top: 0xFF}
	case 5, 7:
		t.mode = wgm{wave: wavePWM, src: topOCRA}
	default:
		log.ModSim.WarnZ("reserved waveform mode").String("timer", t.name).Uint("wgm", uint(mode)).End()
	}
	t.com = [2]uint8{hwio.Field(a, 6, 2), hwio.Field(a, 4, 2)}
	t.cs = hwio.Field(b, 0, 3)
	t.connect()
	t.logConfig()
}

func (t *Timer8) WriteTCCRA(_, _ uint8) { t.decode() }
func (t *Timer8) WriteTCCRB(_, _ uint8) { t.decode() }

func (t *Timer8) ReadTCNT(_ uint8) uint8 {
	t.clk.Poll()
	return t.TCNT.Value
}

func (t *Timer8) WriteTCNT(_, val uint8) { t.cnt = uint16(val) }
func (t *Timer8) WriteOCRA(_, val uint8) { t.ocr[0] = uint16(val) }
func (t *Timer8) WriteOCRB(_, val uint8) { t.ocr[1] = uint16(val) }

func (t *Timer8) ReadTIFR(_ uint8) uint8 {
	t.clk.Poll()
	return t.TIFR.Value
}

func (t *Timer8) WriteTIFR(old, val uint8) {
	t.TIFR.Value = clearW1C(old, val, 0x07)
}

func (t *Timer8) Step(cycles uint64) {
	t.step(cycles)
	t.TCNT.Value = uint8(t.cnt)
}

// Edge counts a transition of the T0 pin.
func (t *Timer8) Edge(rising bool) {
	t.edge(rising)
	t.TCNT.Value = uint8(t.cnt)
}

func (t *Timer8) Sources() []VectorSource {
	return t.sources(&t.TIMSK, hwdefs.Timer0CompA, hwdefs.Timer0CompB, hwdefs.Timer0Ovf)
}

func (t *Timer8) Reset() {
	hwio.ResetRegs(t)
	t.reset()
}

// Timer16 is Timer/Counter1.
type Timer16 struct {
	TCCRA hwio.Reg8  `hwio:"bank=0,offset=0x0,rwmask=0xF3,wcb"`
	TCCRB hwio.Reg8  `hwio:"bank=0,offset=0x1,rwmask=0xDF,wcb"`
	TCCRC hwio.Reg8  `hwio:"bank=0,offset=0x2"`
	TCNT  hwio.Reg16 `hwio:"bank=0,offset=0x4,rcb,wcb"`
	ICR   hwio.Reg16 `hwio:"bank=0,offset=0x6,wcb"`
	OCRA  hwio.Reg16 `hwio:"bank=0,offset=0x8,wcb"`
	OCRB  hwio.Reg16 `hwio:"bank=0,offset=0xA,wcb"`
	TIFR  hwio.Reg8  `hwio:"bank=1,offset=0x0,rwmask=0x27,rcb,wcb"`
	TIMSK hwio.Reg8  `hwio:"bank=2,offset=0x0,rwmask=0x27"`

	clk *Clock
	counter
}

func NewTimer16(name string, clk *Clock, pinA, pinB OutputPin) *Timer16 {
	t := &Timer16{clk: clk}
	hwio.MustInitRegs(t)
	t.counter = counter{name: name, max: 0xFFFF, flags: &t.TIFR, pins: [2]OutputPin{pinA, pinB}}
	t.reset()
	return t
}

var timer16Modes = [16]wgm{
	0:  {wave: waveNormal, top: 0xFFFF},
	1:  {wave: wavePWM, top: 0x00FF},
	2:  {wave: wavePWM, top: 0x01FF},
	3:  {wave: wavePWM, top: 0x03FF},
	4:  {wave: waveCTC, src: topOCRA},
	5:  {wave: wavePWM, top: 0x00FF},
	6:  {wave: wavePWM, top: 0x01FF},
	7:  {wave: wavePWM, top: 0x03FF},
	8:  {wave: wavePWM, src: topICR},
	9:  {wave: wavePWM, src: topOCRA},
	10: {wave: wavePWM, src: topICR},
	11: {wave: wavePWM, src: topOCRA},
	12: {wave: waveCTC, src: topICR},
	13: {wave: waveNormal, top: 0xFFFF},
	14: {wave: wavePWM, src: topICR},
	15: {wave: wavePWM, src: topOCRA},
}

func (t *Timer16) decode() {
	a, b := t.TCCRA.Value, t.TCCRB.Value
	mode := hwio.Field(a, 0, 2) | hwio.Field(b, 3, 2)<<2
	if mode == 13 {
		log.ModSim.WarnZ("reserved waveform mode").String("timer", t.name).Uint("wgm", uint(mode)).End()
	}
	t.mode = timer16Modes[mode]
	t.com = [2]uint8{hwio.Field(a, 6, 2), hwio.Field(a, 4, 2)}
	t.cs = hwio.Field(b, 0, 3)
	t.connect()
	t.logConfig()
}

func (t *Timer16) WriteTCCRA(_, _ uint8) { t.decode() }
func (t *Timer16) WriteTCCRB(_, _ uint8) { t.decode() }

func (t *Timer16) ReadTCNT(_ uint16) uint16 {
	t.clk.Poll()
	return t.TCNT.Value
}

func (t *Timer16) WriteTCNT(_, val uint16) { t.cnt = val }
func (t *Timer16) WriteICR(_, val uint16)  { t.icr = val }
func (t *Timer16) WriteOCRA(_, val uint16) { t.ocr[0] = val }
func (t *Timer16) WriteOCRB(_, val uint16) { t.ocr[1] = val }

func (t *Timer16) ReadTIFR(_ uint8) uint8 {
	t.clk.Poll()
	return t.TIFR.Value
}

func (t *Timer16) WriteTIFR(old, val uint8) {
	t.TIFR.Value = clearW1C(old, val, 0x27)
}

func (t *Timer16) Step(cycles uint64) {
	t.step(cycles)
	t.TCNT.Value = t.cnt
}

// Edge counts a transition of the T1 pin.
func (t *Timer16) Edge(rising bool) {
	t.edge(rising)
	t.TCNT.Value = t.cnt
}

func (t *Timer16) Sources() []VectorSource {
	return t.sources(&t.TIMSK, hwdefs.Timer1CompA, hwdefs.Timer1CompB, hwdefs.Timer1Ovf)
}

func (t *Timer16) Reset() {
	hwio.ResetRegs(t)
	t.reset()
}

func (c *counter) sources(mask *hwio.Reg8, compA, compB, ovf hwdefs.Vector) []VectorSource {
	return []VectorSource{
		{compA, &flagSource{flag: c.flags, fbit: OCFA, mask: mask, mbit: OCFA}},
		{compB, &flagSource{flag: c.flags, fbit: OCFB, mask: mask, mbit: OCFB}},
		{ovf, &flagSource{flag: c.flags, fbit: TOV, mask: mask, mbit: TOV}},
	}
}
