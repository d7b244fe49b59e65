package chip

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed boards/*.toml
var boardFS embed.FS

var (
	ErrUnknownBoard = errors.New("unknown board")
	ErrUnknownPin   = errors.New("unknown pin")
)

// PinDef describes a pin of a board.
type PinDef struct {
	Name string `toml:"name"`
	Port Port   `toml:"port"`
	Bit  uint8  `toml:"bit"`
	// Physical pin number on the package, 0 when not documented.
	Number int `toml:"number"`
	// ADC channel of the pin, if any.
	Analog *int `toml:"analog"`
}

func (pd PinDef) PortPin() PortPin { return PortPin{pd.Port, pd.Bit} }

// Channel returns the ADC channel of the pin.
func (pd PinDef) Channel() (int, bool) {
	if pd.Analog == nil {
		return 0, false
	}
	return *pd.Analog, true
}

// Board is the pin table of a board.
type Board struct {
	Name        string            `toml:"name"`
	Description string            `toml:"description"`
	Frequency   uint32            `toml:"frequency"`
	Pins        []PinDef          `toml:"pin"`
	Aliases     map[string]string `toml:"aliases"`
}

// UnmarshalText lets TOML documents spell ports as "B", "C" or "D".
func (p *Port) UnmarshalText(text []byte) error {
	s := strings.ToUpper(strings.TrimPrefix(strings.ToUpper(string(text)), "PORT"))
	if len(s) != 1 || Port(s[0]).Index() < 0 {
		return fmt.Errorf("invalid port %q", text)
	}
	*p = Port(s[0])
	return nil
}

func (p Port) MarshalText() ([]byte, error) { return []byte{byte(p)}, nil }

// ParseBoard decodes a board description.
func ParseBoard(data string) (*Board, error) {
	b := &Board{}
	md, err := toml.Decode(data, b)
	if err != nil {
		return nil, err
	}
	if undec := md.Undecoded(); len(undec) != 0 {
		return nil, fmt.Errorf("board %s: unknown keys %v", b.Name, undec)
	}
	if b.Name == "" {
		return nil, errors.New("board without a name")
	}
	if b.Frequency == 0 {
		b.Frequency = DefaultHz
	}

	seen := make(map[string]bool)
	for _, pd := range b.Pins {
		if pd.Port.Index() < 0 || pd.Bit > 7 {
			return nil, fmt.Errorf("board %s: pin %s: invalid port pin %s", b.Name, pd.Name, pd.PortPin())
		}
		if seen[pd.Name] {
			return nil, fmt.Errorf("board %s: duplicate pin %s", b.Name, pd.Name)
		}
		seen[pd.Name] = true
		if ch, ok := pd.Channel(); ok && (ch < 0 || ch > 7) {
			return nil, fmt.Errorf("board %s: pin %s: invalid adc channel %d", b.Name, pd.Name, ch)
		}
	}
	for alias, target := range b.Aliases {
		if !seen[target] {
			return nil, fmt.Errorf("board %s: alias %s: %w %s", b.Name, alias, ErrUnknownPin, target)
		}
	}
	return b, nil
}

// Lookup resolves a pin by name, alias or package pin number.
func (b *Board) Lookup(name string) (PinDef, error) {
	if target, ok := b.Aliases[name]; ok {
		name = target
	}
	for _, pd := range b.Pins {
		if strings.EqualFold(pd.Name, name) {
			return pd, nil
		}
		if pd.Number != 0 && strconv.Itoa(pd.Number) == name {
			return pd, nil
		}
	}
	return PinDef{}, fmt.Errorf("board %s: %w %q", b.Name, ErrUnknownPin, name)
}

// AliasesOf returns the sorted aliases pointing to the pin called name.
func (b *Board) AliasesOf(name string) []string {
	var aliases []string
	for alias, target := range b.Aliases {
		if target == name {
			aliases = append(aliases, alias)
		}
	}
	slices.Sort(aliases)
	return aliases
}

// LoadBoard returns the built-in board called name.
func LoadBoard(name string) (*Board, error) {
	buf, err := boardFS.ReadFile(path.Join("boards", name+".toml"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w %q", ErrUnknownBoard, name)
	}
	if err != nil {
		return nil, err
	}
	b, err := ParseBoard(string(buf))
	if err != nil {
		return nil, fmt.Errorf("board %s: %w", name, err)
	}
	return b, nil
}

// Boards lists the names of the built-in boards.
func Boards() []string {
	entries, err := boardFS.ReadDir("boards")
	if err != nil {
		panic(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".toml"))
	}
	return names
}
