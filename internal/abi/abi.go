// Package abi models the C calling conventions of the four architectures the
// engine supports and emits the small pieces of machine code it needs: hooked
// trampoline stubs and variadic capture shims.
//
// Nothing outside this package touches raw opcodes or argument registers.
package abi

import (
	"encoding/binary"
	"fmt"

	"github.com/zboralski/jniscope/internal/emulator"
	"github.com/zboralski/jniscope/internal/jni"
)

// ErrUnsupportedArch is returned by ForArch for an unknown architecture.
var ErrUnsupportedArch = emulator.ErrUnsupportedArch

// Memory is guest memory.
type Memory interface {
	MemRead(addr, size uint64) ([]byte, error)
	MemWrite(addr uint64, data []byte) error
}

// CPU is guest memory plus the register file.
type CPU interface {
	Memory
	RegRead(reg int) (uint64, error)
	RegWrite(reg int, val uint64) error
}

// LocKind says where an argument lives at function entry.
type LocKind int

const (
	InReg      LocKind = iota // general purpose register
	InRegPair                 // two consecutive core registers, ARM32 64-bit values
	InFloatReg                // floating-point register
	OnStack                   // stack slot relative to the entry stack pointer
)

// Location is the position of one argument at function entry.
type Location struct {
	Kind   LocKind
	Reg    int    // register number within its class
	Offset uint64 // stack offset for OnStack
	Type   jni.FFIType
}

func (l Location) String() string {
	switch l.Kind {
	case InReg:
		return fmt.Sprintf("r%d", l.Reg)
	case InRegPair:
		return fmt.Sprintf("r%d:r%d", l.Reg, l.Reg+1)
	case InFloatReg:
		return fmt.Sprintf("f%d", l.Reg)
	}
	return fmt.Sprintf("[sp+%#x]", l.Offset)
}

// Stub is a hooked placeholder function.
type Stub struct {
	Code  []byte
	Entry uint64 // address callers branch to
	Hook  uint64 // address where Go takes control
}

// Strategy is the per-architecture half of the engine.
type Strategy interface {
	Name() string
	Arch() emulator.Arch
	PointerSize() int

	// CreateTrampolineStub returns the stub to write at page. Each page holds
	// one stub.
	CreateTrampolineStub(page uint64) Stub

	// BuildVariadicCaptureShim returns code for shim that saves the argument
	// registers into buf, calls next, restores them and branches to the
	// address next returned.
	BuildVariadicCaptureShim(shim, buf, next uint64) []byte
	CaptureBufferSize() int
	CapturedReturnAddress(mem Memory, buf uint64) (uint64, error)
	CapturedStackPointer(mem Memory, buf uint64) (uint64, error)

	// BeginCaptureExtraction positions a cursor after the fixed arguments
	// saved by a capture shim.
	BeginCaptureExtraction(mem Memory, buf uint64, fixed int) (*Extraction, error)
	// BeginVariadicExtraction positions a cursor at the start of a va_list.
	BeginVariadicExtraction(mem Memory, vaList uint64) (*Extraction, error)

	Arguments(params []jni.FFIType) []Location
	ReadArgument(cpu CPU, loc Location) (uint64, error)
	WriteArgument(cpu CPU, loc Location, val uint64) error
	ReturnValue(cpu CPU, t jni.FFIType) (uint64, error)
	SetReturnValue(cpu CPU, t jni.FFIType, val uint64) error
	ReturnAddress(cpu CPU) (uint64, error)
	SetReturnAddress(cpu CPU, addr uint64) error

	// Jump continues execution at target with the argument registers as they
	// are now.
	Jump(cpu CPU, target uint64) error
	// Return leaves the current function as if it executed a return.
	Return(cpu CPU) error

	StackPointer(cpu CPU) uint64
	SetStackPointer(cpu CPU, sp uint64) error
	FramePointer(cpu CPU) uint64
	// NextFrame follows one link of the frame-pointer chain.
	NextFrame(mem Memory, fp uint64) (next, ret uint64, err error)
}

// ForArch selects the strategy for an architecture identifier.
func ForArch(name emulator.Arch) (Strategy, error) {
	switch name {
	case emulator.ARM64:
		return arm64Strategy{}, nil
	case emulator.ARM:
		return armStrategy{}, nil
	case emulator.X86:
		return x86Strategy{}, nil
	case emulator.X64:
		return x64Strategy{}, nil
	}
	return nil, fmt.Errorf("%w: %s currently unsupported", ErrUnsupportedArch, name)
}

// FFITypes maps native types to their machine classes.
func FFITypes(types []jni.NativeType) []jni.FFIType {
	out := make([]jni.FFIType, len(types))
	for i, t := range types {
		out[i] = t.FFI()
	}
	return out
}

func readUint(mem Memory, addr uint64, size int) (uint64, error) {
	b, err := mem.MemRead(addr, uint64(size))
	if err != nil {
		return 0, err
	}
	switch size {
	case 1:
		return uint64(b[0]), nil
	case 2:
		return uint64(binary.LittleEndian.Uint16(b)), nil
	case 4:
		return uint64(binary.LittleEndian.Uint32(b)), nil
	}
	return binary.LittleEndian.Uint64(b), nil
}

func writeUint(mem Memory, addr uint64, size int, val uint64) error {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, val)
	return mem.MemWrite(addr, b[:size])
}

// ReadPointer reads a pointer of ptrSize bytes.
func ReadPointer(mem Memory, addr uint64, ptrSize int) (uint64, error) {
	return readUint(mem, addr, ptrSize)
}

// WritePointer writes a pointer of ptrSize bytes.
func WritePointer(mem Memory, addr uint64, ptrSize int, val uint64) error {
	return writeUint(mem, addr, ptrSize, val)
}

// mask truncates v to the storage size of t.
func mask(v uint64, t jni.FFIType, ptrSize int) uint64 {
	switch t.Size(ptrSize) {
	case 1:
		return v & 0xff
	case 2:
		return v & 0xffff
	case 4:
		return v & 0xffffffff
	}
	return v
}

func le32(b []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(b, v)
}

func le64(b []byte, v uint64) []byte {
	return binary.LittleEndian.AppendUint64(b, v)
}

func alignUp(v, a uint64) uint64 {
	return (v + a - 1) &^ (a - 1)
}

func leU32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }
func leU64(b []byte) uint64 { return binary.LittleEndian.Uint64(b) }
