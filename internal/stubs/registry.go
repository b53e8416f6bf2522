// Package stubs hooks the imports of a loaded library with Go handlers.
//
// Stub packages register handlers from init(). Install binds them to the
// import addresses of a library, activates detectors whose symbol patterns
// match, and gives every import left over a fallback that returns 0.
// Handlers read arguments and set results through the abi package, so the
// same stub serves every supported architecture.
package stubs

import (
	"fmt"
	"maps"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/zboralski/jniscope/internal/abi"
	"github.com/zboralski/jniscope/internal/emulator"
	"github.com/zboralski/jniscope/internal/jni"
	glog "github.com/zboralski/jniscope/internal/log"
	"go.uber.org/zap"
)

// HookFunc handles a call to a stubbed symbol. Returning true stops
// emulation.
type HookFunc func(emu *emulator.Emulator) bool

// StubDef binds a symbol and its aliases to a handler.
type StubDef struct {
	Name     string
	Aliases  []string
	Hook     HookFunc
	Category string // libc, android, jni
}

// DetectorFunc installs a subsystem. It returns the number of hooks added.
type DetectorFunc func(emu *emulator.Emulator, imports, symbols map[string]uint64) int

// Detector activates a subsystem once per emulator when any of its
// patterns matches a symbol of the library.
type Detector struct {
	Name        string
	Patterns    []string // globs, or substrings when they hold no wildcard
	Activate    DetectorFunc
	Description string
}

func (d *Detector) matches(symbols map[string]uint64) bool {
	for name := range symbols {
		if slices.ContainsFunc(d.Patterns, func(p string) bool { return matchPattern(name, p) }) {
			return true
		}
	}
	return false
}

// matchPattern reports whether name matches the glob pattern, or contains
// it when pattern has no wildcard.
func matchPattern(name, pattern string) bool {
	if !strings.ContainsAny(pattern, "*?[") {
		return strings.Contains(name, pattern)
	}
	ok, err := path.Match(pattern, name)
	return err == nil && ok
}

// Registry holds stub definitions and detectors.
type Registry struct {
	mu        sync.RWMutex
	byName    map[string]*StubDef
	detectors []*Detector
	active    map[string]bool
	emu       *emulator.Emulator

	// OnCall receives every stub report made through Log.
	OnCall func(category, name, detail string)
}

// DefaultRegistry is filled by the init functions of the stub packages.
var DefaultRegistry = NewRegistry()

func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*StubDef),
		active: make(map[string]bool),
	}
}

// Register adds def under its name and aliases. A later definition of the
// same symbol wins.
func (r *Registry) Register(def StubDef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range append([]string{def.Name}, def.Aliases...) {
		r.byName[name] = &def
	}
	if Debug {
		glog.Or(nil).Debug("registered", zap.String("cat", def.Category), zap.String("fn", def.Name), zap.Strings("aliases", def.Aliases))
	}
}

func (r *Registry) RegisterFunc(category, name string, hook HookFunc, aliases ...string) {
	r.Register(StubDef{Name: name, Aliases: aliases, Hook: hook, Category: category})
}

func (r *Registry) RegisterDetector(d Detector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detectors = append(r.detectors, &d)
	if Debug {
		glog.Or(nil).DetectorRegister(d.Name, d.Description, d.Patterns)
	}
}

// Install hooks the library loaded in emu. imports are PLT addresses and
// receive fallbacks. symbols are extra maps searched for stubbed names and
// detector patterns. It returns the number of hooks installed.
func (r *Registry) Install(emu *emulator.Emulator, imports map[string]uint64, symbols ...map[string]uint64) int {
	r.mu.Lock()
	if r.emu != emu {
		clear(r.active)
		r.emu = emu
	}
	pending := r.pendingDetectors(imports, symbols)
	r.mu.Unlock()

	n := 0
	for _, d := range pending {
		if Debug {
			glog.Or(nil).DetectorActivate(d.Name, d.Description)
		}
		n += d.Activate(emu, imports, merge(imports, symbols))
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	hooked := make(map[uint64]bool)
	n += r.hookKnown(emu, imports, "import", hooked)
	for _, syms := range symbols {
		n += r.hookKnown(emu, syms, "internal", hooked)
	}
	if InstallFallbacks {
		n += hookFallbacks(emu, imports, hooked)
	}
	return n
}

// pendingDetectors marks and returns the detectors that match and have not
// run for the current emulator. Caller holds r.mu.
func (r *Registry) pendingDetectors(imports map[string]uint64, symbols []map[string]uint64) []*Detector {
	all := merge(imports, symbols)
	var out []*Detector
	for _, d := range r.detectors {
		if !r.active[d.Name] && d.matches(all) {
			r.active[d.Name] = true
			out = append(out, d)
		}
	}
	return out
}

// merge overlays symbol maps on imports without replacing import entries.
func merge(imports map[string]uint64, symbols []map[string]uint64) map[string]uint64 {
	all := maps.Clone(imports)
	if all == nil {
		all = make(map[string]uint64)
	}
	for _, syms := range symbols {
		for k, v := range syms {
			if _, ok := all[k]; !ok {
				all[k] = v
			}
		}
	}
	return all
}

// hookKnown hooks every registered stub found in syms. Caller holds r.mu.
func (r *Registry) hookKnown(emu *emulator.Emulator, syms map[string]uint64, source string, hooked map[uint64]bool) int {
	n := 0
	for name, def := range r.byName {
		addr := syms[name]
		if addr == 0 || hooked[addr] {
			continue
		}
		hooked[addr] = true
		emu.HookAddress(addr, emulator.AddressHookFunc(def.Hook))
		n++
		if Debug {
			glog.Or(nil).StubInstall(def.Category, name, addr, source)
		}
	}
	return n
}

// hookFallbacks makes every import not yet hooked return 0.
func hookFallbacks(emu *emulator.Emulator, imports map[string]uint64, hooked map[uint64]bool) int {
	n := 0
	for name, addr := range imports {
		if addr == 0 || hooked[addr] {
			continue
		}
		hooked[addr] = true
		emu.HookAddress(addr, func(e *emulator.Emulator) bool {
			if Debug {
				glog.Or(nil).StubFallback(name)
			}
			SetReturn(e, 0)
			ReturnFromStub(e)
			return false
		})
		n++
	}
	return n
}

// Log reports a stub call to OnCall and to the trace logger.
func (r *Registry) Log(category, name, detail string) {
	r.mu.RLock()
	cb, emu := r.OnCall, r.emu
	r.mu.RUnlock()

	if cb != nil {
		cb(category, name, detail)
	}
	var pc uint64
	if emu != nil {
		pc, _ = strategy(emu).ReturnAddress(emu)
	}
	glog.Or(nil).Trace(pc, category, name, detail)
}

// Lookup returns the definition registered for name or one of its aliases.
func (r *Registry) Lookup(name string) (StubDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.byName[name]
	if !ok {
		return StubDef{}, false
	}
	return *def, true
}

var (
	// Debug logs registration and installation.
	Debug = false
	// InstallFallbacks hooks unstubbed imports with a stub returning 0.
	InstallFallbacks = true
)

func Register(def StubDef) { DefaultRegistry.Register(def) }

func RegisterFunc(category, name string, hook HookFunc, aliases ...string) {
	DefaultRegistry.RegisterFunc(category, name, hook, aliases...)
}

func RegisterDetector(d Detector) { DefaultRegistry.RegisterDetector(d) }

// Install hooks the library with the default registry.
func Install(emu *emulator.Emulator, imports map[string]uint64, symbols ...map[string]uint64) int {
	return DefaultRegistry.Install(emu, imports, symbols...)
}

// Helper functions for stubs

// strategy returns the calling convention of emu. The emulator only runs
// architectures that have one.
func strategy(emu *emulator.Emulator) abi.Strategy {
	s, err := abi.ForArch(emu.Arch())
	if err != nil {
		panic(err)
	}
	return s
}

// ReturnFromStub returns from the current function to its caller.
func ReturnFromStub(emu *emulator.Emulator) {
	strategy(emu).Return(emu)
}

// Arg reads integer or pointer argument i at function entry.
func Arg(emu *emulator.Emulator, i int) uint64 {
	return Args(emu, i+1)[i]
}

// Args reads the first n integer or pointer arguments at function entry.
func Args(emu *emulator.Emulator, n int) []uint64 {
	params := make([]jni.FFIType, n)
	for i := range params {
		params[i] = jni.FFIPointer
	}
	return ReadArgs(emu, params)
}

// ReadArgs reads arguments of the given machine types at function entry.
func ReadArgs(emu *emulator.Emulator, params []jni.FFIType) []uint64 {
	s := strategy(emu)
	out := make([]uint64, len(params))
	for i, loc := range s.Arguments(params) {
		out[i], _ = s.ReadArgument(emu, loc)
	}
	return out
}

// SetReturn sets the integer or pointer result of the current function.
func SetReturn(emu *emulator.Emulator, v uint64) {
	strategy(emu).SetReturnValue(emu, jni.FFIPointer, v)
}

// SetReturnTyped sets a result of machine type t.
func SetReturnTyped(emu *emulator.Emulator, t jni.FFIType, v uint64) {
	if t != jni.FFIVoid {
		strategy(emu).SetReturnValue(emu, t, v)
	}
}

// FormatHex formats a value as hex string.
func FormatHex(v uint64) string {
	if v == 0 {
		return "0"
	}
	return fmt.Sprintf("0x%x", v)
}

// FormatPtr formats name=value pairs.
func FormatPtr(name string, val uint64) string {
	return name + "=" + FormatHex(val)
}

// FormatPtrPair formats two name=value pairs.
func FormatPtrPair(name1 string, val1 uint64, name2 string, val2 uint64) string {
	if name2 == "" {
		return FormatPtr(name1, val1)
	}
	return FormatPtr(name1, val1) + " " + FormatPtr(name2, val2)
}
