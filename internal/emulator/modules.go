package emulator

import (
	"path/filepath"
	"sort"
)

// Module is a loaded image, used to attribute code addresses.
type Module struct {
	Name string
	Path string
	Base uint64
	End  uint64

	// Exec holds the executable ranges as [start, end) pairs.
	Exec [][2]uint64

	symbols []symbol // sorted by address
}

type symbol struct {
	addr uint64
	name string
}

// Contains reports whether addr falls inside the module image.
func (m *Module) Contains(addr uint64) bool {
	return addr >= m.Base && addr < m.End
}

// IsCode reports whether addr falls inside an executable range.
func (m *Module) IsCode(addr uint64) bool {
	for _, r := range m.Exec {
		if addr >= r[0] && addr < r[1] {
			return true
		}
	}
	return false
}

// Symbolize returns the nearest symbol at or below addr and the offset into it.
func (m *Module) Symbolize(addr uint64) (string, uint64) {
	i := sort.Search(len(m.symbols), func(i int) bool { return m.symbols[i].addr > addr })
	if i == 0 {
		return "", addr - m.Base
	}
	s := m.symbols[i-1]
	return s.name, addr - s.addr
}

func newModule(path string, base, end uint64, symbols map[string]uint64) *Module {
	m := &Module{
		Name: filepath.Base(path),
		Path: path,
		Base: base,
		End:  end,
	}
	for name, addr := range symbols {
		if addr >= base && addr < end {
			m.symbols = append(m.symbols, symbol{addr &^ 1, name})
		}
	}
	sort.Slice(m.symbols, func(i, j int) bool {
		if m.symbols[i].addr != m.symbols[j].addr {
			return m.symbols[i].addr < m.symbols[j].addr
		}
		return len(m.symbols[i].name) < len(m.symbols[j].name)
	})
	return m
}

// AddModule registers a loaded image.
func (e *Emulator) AddModule(m *Module) {
	e.modulesMu.Lock()
	defer e.modulesMu.Unlock()
	e.modules = append(e.modules, m)
}

// Modules returns the loaded images in load order.
func (e *Emulator) Modules() []*Module {
	e.modulesMu.RLock()
	defer e.modulesMu.RUnlock()
	return append([]*Module(nil), e.modules...)
}

// ModuleAt returns the module containing addr, or nil.
func (e *Emulator) ModuleAt(addr uint64) *Module {
	e.modulesMu.RLock()
	defer e.modulesMu.RUnlock()
	for _, m := range e.modules {
		if m.Contains(addr) {
			return m
		}
	}
	return nil
}

// Lookup returns the address of a symbol defined by the module.
func (m *Module) Lookup(name string) (uint64, bool) {
	for _, s := range m.symbols {
		if s.name == name {
			return s.addr, true
		}
	}
	return 0, false
}

// ModuleNamed returns the first module whose file name or path is name.
func (e *Emulator) ModuleNamed(name string) *Module {
	e.modulesMu.RLock()
	defer e.modulesMu.RUnlock()
	for _, m := range e.modules {
		if m.Name == name || m.Path == name || m.Name == filepath.Base(name) {
			return m
		}
	}
	return nil
}
