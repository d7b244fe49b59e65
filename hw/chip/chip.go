// Package chip describes the ATmega328P: data space addresses of the
// peripheral registers and the pin tables of the boards built around it.
package chip

// Data space layout.
const (
	DataSize  = 0x900
	SRAMBase  = 0x0100
	SRAMSize  = 0x0800
	RAMEnd    = SRAMBase + SRAMSize - 1
	RegsBase  = 0x0020
	DefaultHz = 16_000_000
)

// Register addresses (data space, not I/O space).
const (
	PINB  = 0x23
	DDRB  = 0x24
	PORTB = 0x25
	PINC  = 0x26
	DDRC  = 0x27
	PORTC = 0x28
	PIND  = 0x29
	DDRD  = 0x2A
	PORTD = 0x2B

	TIFR0 = 0x35
	TIFR1 = 0x36

	TCCR0A = 0x44
	TCCR0B = 0x45
	TCNT0  = 0x46
	OCR0A  = 0x47
	OCR0B  = 0x48

	SPCR = 0x4C
	SPSR = 0x4D
	SPDR = 0x4E

	SREG = 0x5F

	TIMSK0 = 0x6E
	TIMSK1 = 0x6F

	ADCL   = 0x78
	ADCH   = 0x79
	ADCSRA = 0x7A
	ADCSRB = 0x7B
	ADMUX  = 0x7C
	DIDR0  = 0x7E

	TCCR1A = 0x80
	TCCR1B = 0x81
	TCCR1C = 0x82
	TCNT1  = 0x84
	ICR1   = 0x86
	OCR1A  = 0x88
	OCR1B  = 0x8A

	UCSR0A = 0xC0
	UCSR0B = 0xC1
	UCSR0C = 0xC2
	UBRR0  = 0xC4
	UDR0   = 0xC6
)

// RegDef names a register of the data space. Size is 2 for a 16-bit
// register, whose high byte sits at Addr+1.
type RegDef struct {
	Name string
	Addr uint16
	Size int
}

// Registers lists the emulated registers by address.
var Registers = []RegDef{
	{"PINB", PINB, 1}, {"DDRB", DDRB, 1}, {"PORTB", PORTB, 1},
	{"PINC", PINC, 1}, {"DDRC", DDRC, 1}, {"PORTC", PORTC, 1},
	{"PIND", PIND, 1}, {"DDRD", DDRD, 1}, {"PORTD", PORTD, 1},
	{"TIFR0", TIFR0, 1}, {"TIFR1", TIFR1, 1},
	{"TCCR0A", TCCR0A, 1}, {"TCCR0B", TCCR0B, 1}, {"TCNT0", TCNT0, 1},
	{"OCR0A", OCR0A, 1}, {"OCR0B", OCR0B, 1},
	{"SPCR", SPCR, 1}, {"SPSR", SPSR, 1}, {"SPDR", SPDR, 1},
	{"SREG", SREG, 1},
	{"TIMSK0", TIMSK0, 1}, {"TIMSK1", TIMSK1, 1},
	{"ADC", ADCL, 2}, {"ADCSRA", ADCSRA, 1}, {"ADCSRB", ADCSRB, 1},
	{"ADMUX", ADMUX, 1}, {"DIDR0", DIDR0, 1},
	{"TCCR1A", TCCR1A, 1}, {"TCCR1B", TCCR1B, 1}, {"TCCR1C", TCCR1C, 1},
	{"TCNT1", TCNT1, 2}, {"ICR1", ICR1, 2}, {"OCR1A", OCR1A, 2}, {"OCR1B", OCR1B, 2},
	{"UCSR0A", UCSR0A, 1}, {"UCSR0B", UCSR0B, 1}, {"UCSR0C", UCSR0C, 1},
	{"UBRR0", UBRR0, 2}, {"UDR0", UDR0, 1},
}

// Port identifies an I/O port by its letter.
type Port byte

const (
	PortB Port = 'B'
	PortC Port = 'C'
	PortD Port = 'D'
)

// Ports lists the I/O ports of the chip.
var Ports = []Port{PortB, PortC, PortD}

func (p Port) String() string { return "PORT" + string(rune(p)) }

// Base returns the address of the PINx register of the port, followed by
// DDRx and PORTx.
func (p Port) Base() uint16 {
	switch p {
	case PortB:
		return PINB
	case PortC:
		return PINC
	case PortD:
		return PIND
	}
	return 0
}

// Index returns the position of p in Ports, or -1.
func (p Port) Index() int {
	for i, q := range Ports {
		if p == q {
			return i
		}
	}
	return -1
}

// PortPin is a pin of the chip, named after its port and bit.
type PortPin struct {
	Port Port
	Bit  uint8
}

func (pp PortPin) String() string { return "P" + string(rune(pp.Port)) + string(rune('0'+pp.Bit)) }

// Pins hard-wired to peripherals.
var (
	PinRXD  = PortPin{PortD, 0}
	PinTXD  = PortPin{PortD, 1}
	PinT0   = PortPin{PortD, 4}
	PinOC0B = PortPin{PortD, 5}
	PinOC0A = PortPin{PortD, 6}
	PinT1   = PortPin{PortD, 5}
	PinOC1A = PortPin{PortB, 1}
	PinOC1B = PortPin{PortB, 2}
	PinSS   = PortPin{PortB, 2}
	PinMOSI = PortPin{PortB, 3}
	PinMISO = PortPin{PortB, 4}
	PinSCK  = PortPin{PortB, 5}
)

// Analog reference voltages.
const (
	BandgapVolts = 1.1
	// Temperature sensor output at 25°C, and its slope.
	TempSensorVolts   = 0.314
	TempSensorVPerDeg = 0.001
)
