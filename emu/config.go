package emu

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"avrhal/emu/log"
	"avrhal/hw/chip"
	"avrhal/mcu"
)

type Config struct {
	MCU    MCUConfig    `toml:"mcu"`
	Serial SerialConfig `toml:"serial"`
	ADC    ADCConfig    `toml:"adc"`
}

type MCUConfig struct {
	Board string `toml:"board"`
	// CPU clock in Hz, 0 for the board frequency.
	Frequency uint32 `toml:"frequency"`
}

// SerialConfig selects where the USART output goes.
type SerialConfig struct {
	// Host serial port, empty for stdout.
	Port string `toml:"port"`
	Baud int    `toml:"baud"`
}

type ADCConfig struct {
	AVCC float64 `toml:"avcc"`
	AREF float64 `toml:"aref"`
	// Voltages applied on analog pins, by pin name.
	Inputs map[string]float64 `toml:"inputs"`
}

func DefaultConfig() Config {
	return Config{
		MCU:    MCUConfig{Board: "arduino-uno"},
		Serial: SerialConfig{Baud: 9600},
		ADC:    ADCConfig{AVCC: 5, AREF: 5},
	}
}

const cfgFilename = "config.toml"

// ConfigPath returns the path of the configuration file in the user config
// directory.
func ConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "avrhal", cfgFilename), nil
}

// LoadConfig reads the configuration at path, or at ConfigPath if path is
// empty. Missing settings keep their default value, and a missing file in
// the user config directory gives the default configuration.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	explicit := path != ""
	if !explicit {
		var err error
		if path, err = ConfigPath(); err != nil {
			return cfg, nil
		}
	}

	md, err := toml.DecodeFile(path, &cfg)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		log.ModEmu.DebugZ("no config file").String("path", path).End()
		return DefaultConfig(), nil
	}
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		keys := make([]string, len(undec))
		for i, k := range undec {
			keys[i] = k.String()
		}
		return cfg, fmt.Errorf("config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	log.ModEmu.InfoZ("loaded config").String("path", path).End()
	return cfg, nil
}

func (cfg Config) validate() error {
	if !slices.Contains(chip.Boards(), cfg.MCU.Board) {
		return fmt.Errorf("%w %q", chip.ErrUnknownBoard, cfg.MCU.Board)
	}
	if cfg.Serial.Baud <= 0 {
		return fmt.Errorf("invalid baud rate %d", cfg.Serial.Baud)
	}
	if cfg.ADC.AVCC <= 0 || cfg.ADC.AREF <= 0 {
		return fmt.Errorf("invalid adc references avcc=%g aref=%g", cfg.ADC.AVCC, cfg.ADC.AREF)
	}
	return nil
}

// SaveConfig writes cfg at path, or at ConfigPath if path is empty.
func SaveConfig(path string, cfg Config) error {
	if path == "" {
		var err error
		if path, err = ConfigPath(); err != nil {
			return err
		}
	}
	buf, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0o644)
}

// NewMCU builds the MCU described by cfg, with the configured voltages on
// its analog inputs.
func (cfg Config) NewMCU() (*mcu.MCU, error) {
	m, err := mcu.New(cfg.MCU.Board, cfg.MCU.Frequency)
	if err != nil {
		return nil, err
	}
	a := m.Chip.ADC
	a.AVCC, a.AREF = cfg.ADC.AVCC, cfg.ADC.AREF
	for name, volts := range cfg.ADC.Inputs {
		pd, err := m.Board.Lookup(name)
		if err != nil {
			return nil, fmt.Errorf("adc inputs: %w", err)
		}
		ch, ok := pd.Channel()
		if !ok {
			return nil, fmt.Errorf("adc inputs: pin %s has no analog input", pd.Name)
		}
		a.SetVoltage(ch, volts)
	}
	return m, nil
}
