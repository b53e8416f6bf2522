// Package emulator provides Android native library emulation using Unicorn Engine.
// It supports the four architectures JNI libraries ship for: arm, arm64, ia32 and x64.
package emulator

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"
	"go.uber.org/zap"

	glog "github.com/zboralski/jniscope/internal/log"
)

// Memory layout constants. Every region sits below 4GB so the same layout
// serves 32-bit and 64-bit guests.
const (
	CodeBase  = 0x00010000
	CodeSize  = 0x01000000 // 16MB for code
	StackBase = 0x80000000
	StackSize = 0x00100000 // 1MB stack
	HeapBase  = 0x90000000
	HeapSize  = 0x10000000 // 256MB heap
	TLSBase   = 0xDEAC0000 // Thread Local Storage
	TLSSize   = 0x00010000
	StubBase  = 0xF0000000 // Stub and trampoline pages
	StubSize  = 0x01000000 // 16MB, one page per trampoline
	PageSize  = 0x1000
)

// MainThread is the thread id the emulator starts on.
const MainThread uint64 = 1

// Arch identifies a guest architecture by its runtime name.
type Arch string

const (
	ARM   Arch = "arm"
	ARM64 Arch = "arm64"
	X86   Arch = "ia32"
	X64   Arch = "x64"
)

// ErrUnsupportedArch is returned for architectures the emulator cannot run.
var ErrUnsupportedArch = errors.New("unsupported architecture")

// PointerSize returns the guest pointer width in bytes.
func (a Arch) PointerSize() int {
	switch a {
	case ARM64, X64:
		return 8
	default:
		return 4
	}
}

// String returns the architecture name.
func (a Arch) String() string { return string(a) }

// unicorn returns the unicorn arch/mode pair for a.
func (a Arch) unicorn() (int, int, error) {
	switch a {
	case ARM64:
		return uc.ARCH_ARM64, uc.MODE_ARM, nil
	case ARM:
		return uc.ARCH_ARM, uc.MODE_ARM, nil
	case X86:
		return uc.ARCH_X86, uc.MODE_32, nil
	case X64:
		return uc.ARCH_X86, uc.MODE_64, nil
	}
	return 0, 0, fmt.Errorf("%w: %s", ErrUnsupportedArch, a)
}

// ReturnInstruction is the encoded plain return for a.
func (a Arch) ReturnInstruction() []byte {
	switch a {
	case ARM64:
		return []byte{0xc0, 0x03, 0x5f, 0xd6} // ret
	case ARM:
		return []byte{0x1e, 0xff, 0x2f, 0xe1} // bx lr
	default:
		return []byte{0xc3} // ret
	}
}

// CodeHookFunc is called for each instruction
type CodeHookFunc func(emu *Emulator, addr uint64, size uint32)

// AddressHookFunc is called when execution reaches a specific address
type AddressHookFunc func(emu *Emulator) bool // return true to stop emulation

// Emulator wraps Unicorn for one guest process.
type Emulator struct {
	mu   uc.Unicorn
	arch Arch

	// Memory management
	heapPtr uint64
	stubPtr uint64
	allocMu sync.Mutex

	// Hooks
	codeHooks   []CodeHookFunc
	addrHooks   map[uint64]AddressHookFunc
	addrHooksMu sync.RWMutex

	modules   []*Module
	modulesMu sync.RWMutex

	tid uint64

	stopped bool
	log     *glog.Logger
}

// New creates an emulator for arch.
func New(arch Arch) (*Emulator, error) {
	ucArch, ucMode, err := arch.unicorn()
	if err != nil {
		return nil, err
	}

	mu, err := uc.NewUnicorn(ucArch, ucMode)
	if err != nil {
		return nil, fmt.Errorf("create unicorn: %w", err)
	}

	emu := &Emulator{
		mu:        mu,
		arch:      arch,
		heapPtr:   HeapBase,
		stubPtr:   StubBase + PageSize, // first stub page holds the sentinel
		addrHooks: make(map[uint64]AddressHookFunc),
		tid:       MainThread,
		log:       glog.Or(nil),
	}

	if err := emu.mapMemory(); err != nil {
		mu.Close()
		return nil, err
	}

	if err := emu.setupHooks(); err != nil {
		mu.Close()
		return nil, err
	}

	return emu, nil
}

// mapMemory sets up the memory layout
func (e *Emulator) mapMemory() error {
	regions := []struct {
		base uint64
		size uint64
		name string
	}{
		{CodeBase, CodeSize, "code"},
		{StackBase, StackSize, "stack"},
		{HeapBase, HeapSize, "heap"},
		{TLSBase, TLSSize, "tls"},
		{StubBase, StubSize, "stubs"},
	}

	for _, r := range regions {
		if err := e.mu.MemMap(r.base, r.size); err != nil {
			return fmt.Errorf("map %s (0x%x): %w", r.name, r.base, err)
		}
	}

	if err := e.SetSP(StackBase + StackSize - PageSize); err != nil {
		return fmt.Errorf("set SP: %w", err)
	}

	// Returning into the sentinel page ends a Call.
	if err := e.mu.MemWrite(StubBase, e.arch.ReturnInstruction()); err != nil {
		return fmt.Errorf("write sentinel: %w", err)
	}

	if err := e.mu.MemWrite(TLSBase, make([]byte, 256)); err != nil {
		return fmt.Errorf("init TLS: %w", err)
	}

	// Stack canary, deterministic for reproducible runs.
	canary := make([]byte, 8)
	binary.LittleEndian.PutUint64(canary, 0xDEADBEEFDEADBEEF)
	if err := e.mu.MemWrite(TLSBase+0x28, canary); err != nil {
		return fmt.Errorf("set stack canary: %w", err)
	}

	if e.arch == ARM64 {
		if err := e.mu.RegWrite(uc.ARM64_REG_TPIDR_EL0, TLSBase); err != nil {
			return fmt.Errorf("set TPIDR_EL0: %w", err)
		}
		// Capture shims spill d0-d7, which traps unless FP access is enabled.
		cpacr, err := e.mu.RegRead(uc.ARM64_REG_CPACR_EL1)
		if err != nil {
			return fmt.Errorf("read CPACR_EL1: %w", err)
		}
		if err := e.mu.RegWrite(uc.ARM64_REG_CPACR_EL1, cpacr|0x300000); err != nil {
			return fmt.Errorf("enable FP: %w", err)
		}
	}

	return nil
}

// setupHooks initializes Unicorn hooks
func (e *Emulator) setupHooks() error {
	_, err := e.mu.HookAdd(uc.HOOK_CODE, func(mu uc.Unicorn, addr uint64, size uint32) {
		if e.stopped {
			e.mu.Stop()
			return
		}

		e.addrHooksMu.RLock()
		hook, ok := e.addrHooks[addr]
		e.addrHooksMu.RUnlock()

		if ok {
			if hook(e) {
				e.Stop()
				return
			}
		}

		for _, h := range e.codeHooks {
			h(e, addr, size)
		}
	}, 1, 0)
	if err != nil {
		return err
	}

	_, err = e.mu.HookAdd(uc.HOOK_MEM_READ_UNMAPPED|uc.HOOK_MEM_WRITE_UNMAPPED|uc.HOOK_MEM_FETCH_UNMAPPED,
		func(mu uc.Unicorn, access int, addr uint64, size int, value int64) bool {
			e.log.Debug("unmapped access",
				Access(access),
				glog.Addr(addr),
				zap.Int("size", size),
				glog.Ptr("pc", e.PC()),
			)
			return false
		}, 1, 0)
	return err
}

// Access creates a memory access kind field.
func Access(access int) zap.Field {
	switch access {
	case uc.MEM_READ_UNMAPPED:
		return zap.String("access", "read")
	case uc.MEM_WRITE_UNMAPPED:
		return zap.String("access", "write")
	case uc.MEM_FETCH_UNMAPPED:
		return zap.String("access", "fetch")
	}
	return zap.Int("access", access)
}

// SetLogger replaces the emulator's logger.
func (e *Emulator) SetLogger(l *glog.Logger) {
	e.log = glog.Or(l)
}

// Close releases resources
func (e *Emulator) Close() error {
	return e.mu.Close()
}

// Arch returns the guest architecture.
func (e *Emulator) Arch() Arch {
	return e.arch
}

// PointerSize returns the guest pointer width in bytes.
func (e *Emulator) PointerSize() int {
	return e.arch.PointerSize()
}

// ThreadID returns the id of the thread currently executing.
func (e *Emulator) ThreadID() uint64 {
	return e.tid
}

// SetThread switches the emulated thread identity. The register file is shared;
// callers that model concurrent threads save and restore their own context.
func (e *Emulator) SetThread(tid uint64) {
	e.tid = tid
}

// Sentinel is the return address that ends Call. It holds a return instruction
// and is never reached by guest code on its own.
func (e *Emulator) Sentinel() uint64 {
	return StubBase
}

// LoadCode writes code at the code base
func (e *Emulator) LoadCode(code []byte) error {
	return e.mu.MemWrite(CodeBase, code)
}

// MapRegion maps additional memory
func (e *Emulator) MapRegion(addr, size uint64) error {
	return e.mu.MemMap(addr, size)
}

// MemRead reads bytes from memory
func (e *Emulator) MemRead(addr, size uint64) ([]byte, error) {
	return e.mu.MemRead(addr, size)
}

// MemWrite writes bytes to memory
func (e *Emulator) MemWrite(addr uint64, data []byte) error {
	return e.mu.MemWrite(addr, data)
}

// MemReadU64 reads a uint64 from memory (little endian)
func (e *Emulator) MemReadU64(addr uint64) (uint64, error) {
	data, err := e.mu.MemRead(addr, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(data), nil
}

// MemWriteU64 writes a uint64 to memory (little endian)
func (e *Emulator) MemWriteU64(addr, val uint64) error {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, val)
	return e.mu.MemWrite(addr, data)
}

// MemReadU32 reads a uint32 from memory (little endian)
func (e *Emulator) MemReadU32(addr uint64) (uint32, error) {
	data, err := e.mu.MemRead(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(data), nil
}

// MemWriteU32 writes a uint32 to memory (little endian)
func (e *Emulator) MemWriteU32(addr uint64, val uint32) error {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, val)
	return e.mu.MemWrite(addr, data)
}

// MemReadU8 reads a single byte from memory
func (e *Emulator) MemReadU8(addr uint64) (uint8, error) {
	data, err := e.mu.MemRead(addr, 1)
	if err != nil {
		return 0, err
	}
	return data[0], nil
}

// MemWriteU8 writes a single byte to memory
func (e *Emulator) MemWriteU8(addr uint64, val uint8) error {
	return e.mu.MemWrite(addr, []byte{val})
}

// ReadPointer reads a guest pointer of the architecture's width.
func (e *Emulator) ReadPointer(addr uint64) (uint64, error) {
	if e.arch.PointerSize() == 8 {
		return e.MemReadU64(addr)
	}
	v, err := e.MemReadU32(addr)
	return uint64(v), err
}

// WritePointer writes a guest pointer of the architecture's width.
func (e *Emulator) WritePointer(addr, val uint64) error {
	if e.arch.PointerSize() == 8 {
		return e.MemWriteU64(addr, val)
	}
	return e.MemWriteU32(addr, uint32(val))
}

// MemReadString reads a null-terminated string from memory. Reads stop at the
// first unmapped page.
func (e *Emulator) MemReadString(addr uint64, maxLen int) (string, error) {
	if maxLen <= 0 {
		maxLen = 4096
	}
	var out []byte
	for len(out) < maxLen {
		chunk := uint64(PageSize - (addr+uint64(len(out)))%PageSize)
		if rem := uint64(maxLen - len(out)); chunk > rem {
			chunk = rem
		}
		data, err := e.mu.MemRead(addr+uint64(len(out)), chunk)
		if err != nil {
			if len(out) == 0 {
				return "", err
			}
			break
		}
		for i, b := range data {
			if b == 0 {
				return string(append(out, data[:i]...)), nil
			}
		}
		out = append(out, data...)
	}
	return string(out), nil
}

// MemWriteString writes a null-terminated string to memory
func (e *Emulator) MemWriteString(addr uint64, s string) error {
	data := append([]byte(s), 0)
	return e.mu.MemWrite(addr, data)
}

// RegRead reads a register value
func (e *Emulator) RegRead(reg int) (uint64, error) {
	return e.mu.RegRead(reg)
}

// RegWrite writes a register value
func (e *Emulator) RegWrite(reg int, val uint64) error {
	return e.mu.RegWrite(reg, val)
}

// Malloc allocates memory from the heap (bump allocator).
// Panics if heap is exhausted - this indicates a fundamental emulation problem.
func (e *Emulator) Malloc(size uint64) uint64 {
	e.allocMu.Lock()
	defer e.allocMu.Unlock()

	size = (size + 15) & ^uint64(15)

	addr := e.heapPtr
	e.heapPtr += size

	if e.heapPtr >= HeapBase+HeapSize {
		panic("heap exhausted")
	}

	return addr
}

// AllocPage reserves one executable page in the stub region.
func (e *Emulator) AllocPage() (uint64, error) {
	return e.AllocCode(PageSize)
}

// AllocCode reserves size bytes of executable memory, rounded up to whole pages.
func (e *Emulator) AllocCode(size uint64) (uint64, error) {
	e.allocMu.Lock()
	defer e.allocMu.Unlock()

	size = (size + PageSize - 1) &^ (PageSize - 1)
	if e.stubPtr+size > StubBase+StubSize {
		return 0, fmt.Errorf("stub region exhausted (%d bytes requested)", size)
	}
	addr := e.stubPtr
	e.stubPtr += size
	return addr, nil
}

// HookCode adds a code hook called for every instruction
func (e *Emulator) HookCode(fn CodeHookFunc) {
	e.codeHooks = append(e.codeHooks, fn)
}

// hookKey maps a code address to the address HOOK_CODE reports for it.
// On ARM, bit 0 of a function address only selects Thumb state.
func (e *Emulator) hookKey(addr uint64) uint64 {
	if e.arch == ARM {
		return addr &^ 1
	}
	return addr
}

// HookAddress adds a hook for a specific address
func (e *Emulator) HookAddress(addr uint64, fn AddressHookFunc) {
	e.addrHooksMu.Lock()
	defer e.addrHooksMu.Unlock()
	e.addrHooks[e.hookKey(addr)] = fn
}

// InterceptAddress runs onEnter whenever execution reaches addr and then lets
// the code at addr run. An existing hook at addr still runs after onEnter.
func (e *Emulator) InterceptAddress(addr uint64, onEnter func(emu *Emulator)) {
	e.addrHooksMu.Lock()
	defer e.addrHooksMu.Unlock()
	addr = e.hookKey(addr)
	next := e.addrHooks[addr]
	e.addrHooks[addr] = func(emu *Emulator) bool {
		pc := emu.PC()
		onEnter(emu)
		if next == nil || emu.PC() != pc {
			return false
		}
		return next(emu)
	}
}

// HasAddressHook reports whether addr is hooked.
func (e *Emulator) HasAddressHook(addr uint64) bool {
	e.addrHooksMu.RLock()
	defer e.addrHooksMu.RUnlock()
	_, ok := e.addrHooks[e.hookKey(addr)]
	return ok
}

// RemoveAddressHook removes an address hook
func (e *Emulator) RemoveAddressHook(addr uint64) {
	e.addrHooksMu.Lock()
	defer e.addrHooksMu.Unlock()
	delete(e.addrHooks, e.hookKey(addr))
}

// Run starts emulation from start until end is reached
func (e *Emulator) Run(start, end uint64) error {
	e.stopped = false
	return e.mu.Start(start, end)
}

// RunFrom starts emulation from start and runs until stopped
func (e *Emulator) RunFrom(start uint64) error {
	e.stopped = false
	return e.mu.Start(start, 0)
}

// Stop stops emulation
func (e *Emulator) Stop() {
	e.stopped = true
	e.mu.Stop()
}
