// Package hwdefs holds the interrupt vector numbers of the ATmega328P, in
// avr-libc order (0 is RESET). A lower number has a higher priority.
package hwdefs

import "strconv"

type Vector uint8

const (
	Reset Vector = iota
	Int0
	Int1
	PCInt0
	PCInt1
	PCInt2
	Watchdog
	Timer2CompA
	Timer2CompB
	Timer2Ovf
	Timer1Capt
	Timer1CompA
	Timer1CompB
	Timer1Ovf
	Timer0CompA
	Timer0CompB
	Timer0Ovf
	SPISTC
	USARTRX
	USARTUDRE
	USARTTX
	ADC
	EEReady
	AnalogComp
	TWI
	SPMReady

	NumVectors
)

var vectorNames = [NumVectors]string{
	"RESET",
	"INT0",
	"INT1",
	"PCINT0",
	"PCINT1",
	"PCINT2",
	"WDT",
	"TIMER2_COMPA",
	"TIMER2_COMPB",
	"TIMER2_OVF",
	"TIMER1_CAPT",
	"TIMER1_COMPA",
	"TIMER1_COMPB",
	"TIMER1_OVF",
	"TIMER0_COMPA",
	"TIMER0_COMPB",
	"TIMER0_OVF",
	"SPI_STC",
	"USART_RX",
	"USART_UDRE",
	"USART_TX",
	"ADC",
	"EE_READY",
	"ANALOG_COMP",
	"TWI",
	"SPM_READY",
}

func (v Vector) String() string {
	if v < NumVectors {
		return vectorNames[v]
	}
	return "vector(" + strconv.Itoa(int(v)) + ")"
}

const (
	SoftReset = true
	HardReset = false
)
