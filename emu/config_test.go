package emu

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avrhal/hw/chip"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeFile(t, `
[mcu]
board = "atmega328p"
frequency = 8000000

[adc]
aref = 3.3
inputs = { PC0 = 1.5, "23" = 0.5 }
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	want := DefaultConfig()
	want.MCU = MCUConfig{Board: "atmega328p", Frequency: 8_000_000}
	want.ADC.AREF = 3.3
	want.ADC.Inputs = map[string]float64{"PC0": 1.5, "23": 0.5}
	assert.Equal(t, want, cfg)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown key", "[mcu]\nboard = \"arduino-uno\"\nspeed = 1\n"},
		{"unknown board", "[mcu]\nboard = \"nano\"\n"},
		{"bad baud", "[serial]\nbaud = 0\n"},
		{"bad reference", "[adc]\navcc = -1.0\n"},
		{"syntax", "[mcu\n"},
	}
	for _, tt := range tests {
		_, err := LoadConfig(writeFile(t, tt.content))
		assert.Error(t, err, tt.name)
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err, "explicit missing file")
}

func TestLoadConfigUnknownBoard(t *testing.T) {
	_, err := LoadConfig(writeFile(t, "[mcu]\nboard = \"nano\"\n"))
	assert.ErrorIs(t, err, chip.ErrUnknownBoard)
}

func TestSaveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	cfg := DefaultConfig()
	cfg.Serial = SerialConfig{Port: "/dev/ttyUSB0", Baud: 115200}
	cfg.ADC.Inputs = map[string]float64{"A0": 2.5}

	require.NoError(t, SaveConfig(path, cfg))
	got, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestNewMCU(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MCU.Frequency = 8_000_000
	cfg.ADC.AREF = 3.3
	cfg.ADC.Inputs = map[string]float64{"A2": 1.25, "A5": 4}

	m, err := cfg.NewMCU()
	require.NoError(t, err)
	assert.Equal(t, uint32(8_000_000), m.Hz())
	assert.Equal(t, 3.3, m.Chip.ADC.AREF)
	assert.Equal(t, 1.25, m.Chip.ADC.Voltage(2))
	assert.Equal(t, 4.0, m.Chip.ADC.Voltage(5))

	cfg.ADC.Inputs = map[string]float64{"D3": 1}
	_, err = cfg.NewMCU()
	assert.Error(t, err)

	cfg.ADC.Inputs = map[string]float64{"Z9": 1}
	_, err = cfg.NewMCU()
	assert.ErrorIs(t, err, chip.ErrUnknownPin)
}
