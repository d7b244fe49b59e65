package chip

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadBoards(t *testing.T) {
	if diff := cmp.Diff([]string{"arduino-uno", "atmega328p"}, Boards()); diff != "" {
		t.Fatalf("boards mismatch (-want +got):\n%s", diff)
	}
	for _, name := range Boards() {
		b, err := LoadBoard(name)
		if err != nil {
			t.Fatalf("LoadBoard(%s): %v", name, err)
		}
		if b.Frequency != DefaultHz {
			t.Errorf("%s: frequency = %d", name, b.Frequency)
		}
		for _, alias := range []string{"RX", "TX", "Led", "SCK", "MISO", "MOSI", "SS"} {
			if _, err := b.Lookup(alias); err != nil {
				t.Errorf("%s: %v", name, err)
			}
		}
	}
}

func TestLookup(t *testing.T) {
	uno, err := LoadBoard("arduino-uno")
	if err != nil {
		t.Fatal(err)
	}
	dip, err := LoadBoard("atmega328p")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		b    *Board
		name string
		want PortPin
	}{
		{uno, "D13", PinSCK},
		{uno, "Led", PortPin{PortB, 5}},
		{uno, "TX", PinTXD},
		{uno, "a3", PortPin{PortC, 3}},
		{uno, "SS", PinSS},
		{dip, "PD6", PinOC0A},
		{dip, "12", PinOC0A},
		{dip, "MOSI", PinMOSI},
		{dip, "1", PortPin{PortC, 6}},
	}
	for _, tt := range tests {
		pd, err := tt.b.Lookup(tt.name)
		if err != nil {
			t.Errorf("%s: Lookup(%s): %v", tt.b.Name, tt.name, err)
			continue
		}
		if pd.PortPin() != tt.want {
			t.Errorf("%s: Lookup(%s) = %s, want %s", tt.b.Name, tt.name, pd.PortPin(), tt.want)
		}
	}

	if _, err := uno.Lookup("D42"); !errors.Is(err, ErrUnknownPin) {
		t.Errorf("Lookup(D42) error = %v, want ErrUnknownPin", err)
	}

	a0, _ := uno.Lookup("A0")
	if ch, ok := a0.Channel(); !ok || ch != 0 {
		t.Errorf("A0 channel = %d %t", ch, ok)
	}
	if _, ok := func() (int, bool) { d, _ := uno.Lookup("D2"); return d.Channel() }(); ok {
		t.Errorf("D2 has an adc channel")
	}
	if diff := cmp.Diff([]string{"Led", "SCK"}, uno.AliasesOf("D13")); diff != "" {
		t.Errorf("aliases mismatch (-want +got):\n%s", diff)
	}
}

func TestUnknownBoard(t *testing.T) {
	if _, err := LoadBoard("teensy"); !errors.Is(err, ErrUnknownBoard) {
		t.Errorf("err = %v, want ErrUnknownBoard", err)
	}
}

func TestParseBoardErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no name", `frequency = 8000000`},
		{"bad port", "name = \"x\"\n[[pin]]\nname = \"P\"\nport = \"E\"\nbit = 1\n"},
		{"bad bit", "name = \"x\"\n[[pin]]\nname = \"P\"\nport = \"B\"\nbit = 9\n"},
		{"dup", "name = \"x\"\n[[pin]]\nname = \"P\"\nport = \"B\"\nbit = 1\n[[pin]]\nname = \"P\"\nport = \"B\"\nbit = 2\n"},
		{"alias", "name = \"x\"\n[aliases]\nLed = \"Q\"\n"},
		{"unknown key", "name = \"x\"\ncolor = \"blue\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseBoard(tt.doc); err == nil {
				t.Errorf("ParseBoard succeeded")
			}
		})
	}
}

func TestPortBase(t *testing.T) {
	got := []uint16{PortB.Base(), PortC.Base(), PortD.Base()}
	if diff := cmp.Diff([]uint16{PINB, PINC, PIND}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if PortD.String() != "PORTD" || PinOC1A.String() != "PB1" {
		t.Errorf("names: %s %s", PortD, PinOC1A)
	}
}
