package emu

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avrhal/mcu"
	"avrhal/script"
)

func TestRunBlink(t *testing.T) {
	m, err := mcu.New("arduino-uno", 0)
	require.NoError(t, err)
	src, err := BuiltinScript("blink")
	require.NoError(t, err)

	var trace bytes.Buffer
	require.NoError(t, TracePins(&trace, m, "Led"))

	var serial bytes.Buffer
	err = Run(context.Background(), m, Program{
		Name:    "blink.star",
		Source:  src,
		Options: script.Options{Loops: 4, Stdout: &bytes.Buffer{}},
	}, &serial)
	require.NoError(t, err)

	assert.Equal(t, "led True\r\nled False\r\nled True\r\nled False\r\n", serial.String())
	assert.Equal(t, 4, strings.Count(trace.String(), "D13"))
	assert.GreaterOrEqual(t, m.Elapsed(), 2*time.Second)
	assert.Nil(t, m.Chip.USART.Transmit)
}

func TestRunAnalog(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ADC.Inputs = map[string]float64{"A0": 2.5, "A5": 5}
	m, err := cfg.NewMCU()
	require.NoError(t, err)
	src, err := BuiltinScript("analog")
	require.NoError(t, err)

	var serial bytes.Buffer
	require.NoError(t, Run(context.Background(), m, Program{Name: "analog.star", Source: src}, &serial))
	want := "A0 512\r\nA1 0\r\nA2 0\r\nA3 0\r\nA4 0\r\nA5 1023\r\ntemperature 292\r\nbandgap 225\r\n"
	assert.Equal(t, want, serial.String())
}

type failingWriter struct{}

var errSink = errors.New("sink failure")

func (failingWriter) Write([]byte) (int, error) { return 0, errSink }

func TestRunSinkError(t *testing.T) {
	m, err := mcu.New("arduino-uno", 0)
	require.NoError(t, err)

	err = Run(context.Background(), m, Program{
		Name: "spam.star",
		Source: []byte(`
serial_begin(115200)
while True:
    serial_print("x")
`),
	}, failingWriter{})
	assert.ErrorIs(t, err, errSink)
}

func TestRunCancel(t *testing.T) {
	m, err := mcu.New("arduino-uno", 0)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = Run(ctx, m, Program{
		Name:   "forever.star",
		Source: []byte("while True:\n    delay_ms(1)\n"),
	}, &bytes.Buffer{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBuiltinScriptMissing(t *testing.T) {
	_, err := BuiltinScript("nope")
	assert.Error(t, err)
}
