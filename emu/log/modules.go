package log

type ModuleMask uint64
type Module uint

const (
	ModuleMaskAll ModuleMask = 0xFFFFFFFFFFFFFFFF
)

// Standard modules. Debug and info levels of a module are only emitted once
// the module has been enabled with EnableDebugModules; warnings and errors
// are always emitted (unless logging is disabled altogether).
const (
	ModEmu Module = iota + 1
	ModHwIo
	ModSim
	ModISR
	ModGPIO
	ModUSART
	ModSPI
	ModTimer
	ModADC
	ModScript

	endStandardMods
)

var modNames = []string{
	"<error>", "emu", "hwio", "sim", "isr", "gpio", "usart", "spi", "timer", "adc", "script",
}

var (
	modDebugMask ModuleMask = 0
	disabled     bool
)

// ModuleNames returns the names of all log modules.
func ModuleNames() []string {
	return append([]string(nil), modNames[1:endStandardMods]...)
}

func ModuleByName(name string) (Module, bool) {
	for idx, s := range modNames {
		if idx != 0 && s == name {
			return Module(idx), true
		}
	}
	return Module(0xFFFFFFFF), false
}

func (mod Module) String() string {
	if int(mod) < len(modNames) {
		return modNames[mod]
	}
	return modNames[0]
}

func EnableDebugModules(mask ModuleMask) {
	modDebugMask |= mask
}

// Disable turns off all logging, warnings and errors included.
func Disable() {
	disabled = true
}

func (mod Module) Mask() ModuleMask {
	return 1 << ModuleMask(mod)
}

func (mod Module) Enabled(level Level) bool {
	if disabled {
		return false
	}
	return level <= WarnLevel || modDebugMask&mod.Mask() != 0
}

func (mod Module) logz(lvl Level, msg string) *EntryZ {
	if mod.Enabled(lvl) {
		e := NewEntryZ()
		e.lvl = lvl
		e.msg = msg
		e.mod = mod
		return e
	}
	return nil
}

func (mod Module) DebugZ(msg string) *EntryZ { return mod.logz(DebugLevel, msg) }
func (mod Module) InfoZ(msg string) *EntryZ  { return mod.logz(InfoLevel, msg) }
func (mod Module) WarnZ(msg string) *EntryZ  { return mod.logz(WarnLevel, msg) }
func (mod Module) ErrorZ(msg string) *EntryZ { return mod.logz(ErrorLevel, msg) }
