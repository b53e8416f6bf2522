package emulator

import (
	"debug/elf"
	"encoding/binary"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	glog "github.com/zboralski/jniscope/internal/log"
)

// ELFInfo contains parsed ELF metadata
type ELFInfo struct {
	Path     string
	Machine  elf.Machine
	Arch     Arch
	Entry    uint64
	Symbols  map[string]uint64 // symbol name -> virtual address (all symbols)
	Imports  map[string]uint64 // symbol name -> import stub address (external functions only)
	Segments []Segment
	BaseAddr uint64 // Load base address
	EndAddr  uint64 // End of loaded memory
	Module   *Module
}

// Segment represents a loadable ELF segment
type Segment struct {
	VAddr  uint64
	Offset uint64
	Size   uint64 // File size
	MemSz  uint64 // Memory size (may be larger due to .bss)
	Flags  elf.ProgFlag
	Data   []byte
}

// LoadELFBase is the default base address for position-independent libraries.
const LoadELFBase = 0x40000000

// importStubSize is the spacing of import stubs inside their page.
const importStubSize = 16

// ArchForMachine maps an ELF machine to the architecture name. Machines the
// emulator cannot run map to their lower-case ELF name, e.g. "mips".
func ArchForMachine(m elf.Machine) Arch {
	switch m {
	case elf.EM_AARCH64:
		return ARM64
	case elf.EM_ARM:
		return ARM
	case elf.EM_386:
		return X86
	case elf.EM_X86_64:
		return X64
	}
	return Arch(strings.ToLower(strings.TrimPrefix(m.String(), "EM_")))
}

// DetectArch reads the ELF header of path and returns its architecture.
func DetectArch(path string) (Arch, error) {
	f, err := elf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open ELF: %w", err)
	}
	defer f.Close()
	return ArchForMachine(f.Machine), nil
}

// LoadELF loads an ELF file and maps it into the emulator.
// Position-independent shared libraries (base addr 0) are relocated to LoadELFBase.
func (e *Emulator) LoadELF(path string) (*ELFInfo, error) {
	return e.LoadELFAt(path, 0)
}

// LoadELFAt loads an ELF file at a specific base address.
// If loadBase is 0, shared libraries are relocated to LoadELFBase and
// executables keep their link address.
func (e *Emulator) LoadELFAt(path string, loadBase uint64) (*ELFInfo, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ELF: %w", err)
	}
	defer f.Close()

	if arch := ArchForMachine(f.Machine); arch != e.arch {
		return nil, fmt.Errorf("expected %s ELF, got %s (%v)", e.arch, arch, f.Machine)
	}

	fileBase := uint64(0xFFFFFFFFFFFFFFFF)
	fileEnd := uint64(0)
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		if prog.Vaddr < fileBase {
			fileBase = prog.Vaddr
		}
		if end := prog.Vaddr + prog.Memsz; end > fileEnd {
			fileEnd = end
		}
	}
	if fileBase == 0xFFFFFFFFFFFFFFFF {
		return nil, fmt.Errorf("no PT_LOAD segments found")
	}

	var relocOffset uint64
	switch {
	case loadBase != 0:
		relocOffset = loadBase - fileBase
	case fileBase < 0x10000:
		relocOffset = LoadELFBase - fileBase
	}

	info := &ELFInfo{
		Path:     path,
		Machine:  f.Machine,
		Arch:     e.arch,
		Entry:    f.Entry + relocOffset,
		Symbols:  make(map[string]uint64),
		Imports:  make(map[string]uint64),
		BaseAddr: fileBase + relocOffset,
		EndAddr:  fileEnd + relocOffset,
	}

	dynSyms, _ := f.DynamicSymbols()
	for _, sym := range dynSyms {
		if sym.Value != 0 && sym.Name != "" {
			addr := sym.Value + relocOffset
			info.Symbols[sym.Name] = addr
			if base := stripVersion(sym.Name); base != sym.Name {
				info.Symbols[base] = addr
			}
		}
	}
	if syms, err := f.Symbols(); err == nil {
		for _, sym := range syms {
			if sym.Value != 0 && sym.Name != "" && elf.ST_TYPE(sym.Info) == elf.STT_FUNC {
				info.Symbols[sym.Name] = sym.Value + relocOffset
			}
		}
	}

	fileData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var exec [][2]uint64
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}

		loadVAddr := prog.Vaddr + relocOffset
		seg := Segment{
			VAddr:  loadVAddr,
			Offset: prog.Off,
			Size:   prog.Filesz,
			MemSz:  prog.Memsz,
			Flags:  prog.Flags,
		}
		if prog.Filesz > 0 && prog.Off+prog.Filesz <= uint64(len(fileData)) {
			seg.Data = fileData[prog.Off : prog.Off+prog.Filesz]
		}
		info.Segments = append(info.Segments, seg)
		if seg.IsExecutable() {
			exec = append(exec, [2]uint64{loadVAddr, loadVAddr + prog.Memsz})
		}

		alignedAddr := loadVAddr & ^uint64(PageSize-1)
		alignedEnd := (loadVAddr + prog.Memsz + PageSize - 1) & ^uint64(PageSize-1)

		// Segments may share a page; an overlapping map fails and the page is already there.
		_ = e.MapRegion(alignedAddr, alignedEnd-alignedAddr)

		if len(seg.Data) > 0 {
			if err := e.MemWrite(loadVAddr, seg.Data); err != nil {
				return nil, fmt.Errorf("write segment at 0x%x: %w", loadVAddr, err)
			}
		}
		if prog.Memsz > prog.Filesz {
			_ = e.MemWrite(loadVAddr+prog.Filesz, make([]byte, prog.Memsz-prog.Filesz))
		}
	}

	if err := e.bindImports(dynSyms, info); err != nil {
		return nil, err
	}

	if err := e.applyRelocations(f, relocOffset, dynSyms, info.Imports); err != nil {
		return nil, fmt.Errorf("apply relocations: %w", err)
	}

	info.Module = newModule(path, info.BaseAddr, info.EndAddr, info.Symbols)
	info.Module.Exec = exec
	e.AddModule(info.Module)

	return info, nil
}

// bindImports gives every undefined function symbol its own return stub.
// Stubs are packed into pages at importStubSize spacing.
func (e *Emulator) bindImports(dynSyms []elf.Symbol, info *ELFInfo) error {
	var names []string
	seen := make(map[string]bool)
	for _, sym := range dynSyms {
		if sym.Value != 0 || sym.Name == "" || sym.Section != elf.SHN_UNDEF {
			continue
		}
		if t := elf.ST_TYPE(sym.Info); t != elf.STT_FUNC && t != elf.STT_NOTYPE {
			continue
		}
		name := stripVersion(sym.Name)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)

	base, err := e.AllocCode(uint64(len(names)) * importStubSize)
	if err != nil {
		return fmt.Errorf("allocate import stubs: %w", err)
	}
	ret := e.arch.ReturnInstruction()
	for i, name := range names {
		addr := base + uint64(i)*importStubSize
		if err := e.MemWrite(addr, ret); err != nil {
			return fmt.Errorf("write import stub %s: %w", name, err)
		}
		info.Imports[name] = addr
		if _, ok := info.Symbols[name]; !ok {
			info.Symbols[name] = addr
		}
	}

	e.AddModule(&Module{
		Name: "imports",
		Base: base,
		End:  base + uint64(len(names))*importStubSize,
	})
	return nil
}

// relocKind groups the per-machine relocation types by how they resolve.
type relocKind int

const (
	relocIgnore   relocKind = iota
	relocRelative           // B + A
	relocSymbol             // S
	relocAbsolute           // S + A
)

func classifyReloc(m elf.Machine, t uint32) relocKind {
	switch m {
	case elf.EM_AARCH64:
		switch elf.R_AARCH64(t) {
		case elf.R_AARCH64_RELATIVE:
			return relocRelative
		case elf.R_AARCH64_GLOB_DAT, elf.R_AARCH64_JUMP_SLOT:
			return relocSymbol
		case elf.R_AARCH64_ABS64:
			return relocAbsolute
		}
	case elf.EM_X86_64:
		switch elf.R_X86_64(t) {
		case elf.R_X86_64_RELATIVE:
			return relocRelative
		case elf.R_X86_64_GLOB_DAT, elf.R_X86_64_JMP_SLOT:
			return relocSymbol
		case elf.R_X86_64_64:
			return relocAbsolute
		}
	case elf.EM_ARM:
		switch elf.R_ARM(t) {
		case elf.R_ARM_RELATIVE:
			return relocRelative
		case elf.R_ARM_GLOB_DAT, elf.R_ARM_JUMP_SLOT:
			return relocSymbol
		case elf.R_ARM_ABS32:
			return relocAbsolute
		}
	case elf.EM_386:
		switch elf.R_386(t) {
		case elf.R_386_RELATIVE:
			return relocRelative
		case elf.R_386_GLOB_DAT, elf.R_386_JMP_SLOT:
			return relocSymbol
		case elf.R_386_32:
			return relocAbsolute
		}
	}
	return relocIgnore
}

// applyRelocations processes SHT_RELA and SHT_REL sections.
// Go's DynamicSymbols() skips STN_UNDEF, so ELF symbol index i is dynSyms[i-1].
func (e *Emulator) applyRelocations(f *elf.File, relocOffset uint64, dynSyms []elf.Symbol, imports map[string]uint64) error {
	is64 := f.Class == elf.ELFCLASS64
	ptrSize := uint64(4)
	if is64 {
		ptrSize = 8
	}

	for _, sec := range f.Sections {
		if sec.Type != elf.SHT_RELA && sec.Type != elf.SHT_REL {
			continue
		}
		rela := sec.Type == elf.SHT_RELA

		data, err := sec.Data()
		if err != nil {
			continue
		}

		entSize := 2 * ptrSize
		if rela {
			entSize += ptrSize
		}

		for off := uint64(0); off+entSize <= uint64(len(data)); off += entSize {
			var rOffset, rInfo uint64
			var addend int64
			var relType uint32
			var symIdx int
			if is64 {
				rOffset = binary.LittleEndian.Uint64(data[off:])
				rInfo = binary.LittleEndian.Uint64(data[off+8:])
				relType = uint32(rInfo & 0xFFFFFFFF)
				symIdx = int(rInfo >> 32)
				if rela {
					addend = int64(binary.LittleEndian.Uint64(data[off+16:]))
				}
			} else {
				rOffset = uint64(binary.LittleEndian.Uint32(data[off:]))
				rInfo = uint64(binary.LittleEndian.Uint32(data[off+4:]))
				relType = uint32(rInfo & 0xFF)
				symIdx = int(rInfo >> 8)
				if rela {
					addend = int64(int32(binary.LittleEndian.Uint32(data[off+8:])))
				}
			}

			kind := classifyReloc(f.Machine, relType)
			if kind == relocIgnore {
				continue
			}

			target := rOffset + relocOffset
			if !rela && kind != relocSymbol {
				// REL keeps the addend in the target word.
				implicit, err := e.ReadPointer(target)
				if err != nil {
					continue
				}
				if is64 {
					addend = int64(implicit)
				} else {
					addend = int64(int32(uint32(implicit)))
				}
			}

			var value uint64
			switch kind {
			case relocRelative:
				value = relocOffset + uint64(addend)
			case relocSymbol, relocAbsolute:
				s, ok := e.resolveSymbol(dynSyms, symIdx, relocOffset, imports)
				if !ok {
					continue
				}
				value = s
				if kind == relocAbsolute {
					value += uint64(addend)
				}
			}

			if err := e.WritePointer(target, value); err != nil {
				e.log.Debug("relocation write failed", glog.Addr(target), zap.Error(err))
			}
		}
	}

	return nil
}

// resolveSymbol returns S for a relocation's symbol index.
func (e *Emulator) resolveSymbol(dynSyms []elf.Symbol, symIdx int, relocOffset uint64, imports map[string]uint64) (uint64, bool) {
	if symIdx <= 0 || symIdx > len(dynSyms) {
		return 0, false
	}
	sym := dynSyms[symIdx-1]
	if sym.Value != 0 {
		return sym.Value + relocOffset, true
	}
	name := stripVersion(sym.Name)
	if name == "__stack_chk_guard" {
		return TLSBase + 0x28, true
	}
	if addr, ok := imports[name]; ok {
		return addr, true
	}
	if name != "" && elf.ST_TYPE(sym.Info) == elf.STT_OBJECT {
		// Unknown data import: give it zeroed storage so loads do not fault.
		return e.Malloc(64), true
	}
	return 0, false
}

func stripVersion(name string) string {
	if idx := strings.Index(name, "@"); idx != -1 {
		return name[:idx]
	}
	return name
}

// FindSymbol looks up a symbol by name, returns 0 if not found
func (info *ELFInfo) FindSymbol(name string) uint64 {
	return info.Symbols[name]
}

// FindJNIOnLoad returns the address of JNI_OnLoad or 0
func (info *ELFInfo) FindJNIOnLoad() uint64 {
	return info.Symbols["JNI_OnLoad"]
}

// JNIExports returns the statically bound native methods (Java_* exports)
// that are defined in this image, keyed by name.
func (info *ELFInfo) JNIExports() map[string]uint64 {
	return info.FindSymbolsMatching(func(name string) bool {
		addr := info.Symbols[name]
		return strings.HasPrefix(name, "Java_") && addr >= info.BaseAddr && addr < info.EndAddr
	})
}

// FindSymbolsMatching returns all symbols matching a predicate
func (info *ELFInfo) FindSymbolsMatching(predicate func(name string) bool) map[string]uint64 {
	result := make(map[string]uint64)
	for name, addr := range info.Symbols {
		if predicate(name) {
			result[name] = addr
		}
	}
	return result
}

// FindSymbolsBySubstring finds symbols containing the given substring
func (info *ELFInfo) FindSymbolsBySubstring(substr string) map[string]uint64 {
	return info.FindSymbolsMatching(func(name string) bool {
		return strings.Contains(strings.ToLower(name), strings.ToLower(substr))
	})
}

// IsExecutable returns true if the segment is executable
func (s *Segment) IsExecutable() bool {
	return s.Flags&elf.PF_X != 0
}

// IsWritable returns true if the segment is writable
func (s *Segment) IsWritable() bool {
	return s.Flags&elf.PF_W != 0
}
