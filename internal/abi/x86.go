package abi

import (
	"github.com/zboralski/jniscope/internal/emulator"
	"github.com/zboralski/jniscope/internal/jni"

	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"
)

// x86Strategy implements cdecl for 32-bit x86. Every argument is on the stack.
type x86Strategy struct{}

// Capture buffer layout: esp at shim entry, so [buf] points at the return
// address and the arguments follow it.
const x86BufLen = 4

func (x86Strategy) Name() string        { return "ia32" }
func (x86Strategy) Arch() emulator.Arch { return emulator.X86 }
func (x86Strategy) PointerSize() int    { return 4 }

func (x86Strategy) CreateTrampolineStub(page uint64) Stub {
	return Stub{Code: []byte{0xC3}, Entry: page, Hook: page}
}

// BuildVariadicCaptureShim leaves the caller's frame in place and enters the
// specialized trampoline with a jump, so it returns straight to the caller.
func (x86Strategy) BuildVariadicCaptureShim(shim, buf, next uint64) []byte {
	code := le32([]byte{0x89, 0x25}, uint32(buf)) // mov [buf], esp
	code = le32(append(code, 0xB8), uint32(next)) // mov eax, next
	return append(code,
		0xFF, 0xD0, // call eax
		0xFF, 0xE0, // jmp eax
	)
}

func (x86Strategy) CaptureBufferSize() int { return x86BufLen }

func (x86Strategy) CapturedReturnAddress(mem Memory, buf uint64) (uint64, error) {
	sp, err := readUint(mem, buf, 4)
	if err != nil {
		return 0, err
	}
	return readUint(mem, sp, 4)
}

func (x86Strategy) CapturedStackPointer(mem Memory, buf uint64) (uint64, error) {
	return readUint(mem, buf, 4)
}

func (x86Strategy) BeginCaptureExtraction(mem Memory, buf uint64, fixed int) (*Extraction, error) {
	sp, err := readUint(mem, buf, 4)
	if err != nil {
		return nil, err
	}
	return x86Flat(sp + 4 + 4*uint64(fixed)), nil
}

// BeginVariadicExtraction treats vaList as the char* cursor itself.
func (x86Strategy) BeginVariadicExtraction(_ Memory, vaList uint64) (*Extraction, error) {
	return x86Flat(vaList), nil
}

func x86Flat(cursor uint64) *Extraction {
	x := &Extraction{flat: true, slot: 4, ptrSize: 4, stack: cursor}
	x.mark()
	return x
}

func (x86Strategy) Arguments(params []jni.FFIType) []Location {
	locs := make([]Location, len(params))
	off := uint64(4)
	for i, t := range params {
		locs[i] = Location{Kind: OnStack, Offset: off, Type: t}
		off += max(uint64(t.Size(4)), 4)
	}
	return locs
}

func (s x86Strategy) ReadArgument(cpu CPU, loc Location) (uint64, error) {
	return readUint(cpu, s.StackPointer(cpu)+loc.Offset, loc.Type.Size(4))
}

func (s x86Strategy) WriteArgument(cpu CPU, loc Location, val uint64) error {
	return writeUint(cpu, s.StackPointer(cpu)+loc.Offset, loc.Type.Size(4), val)
}

// ReturnValue reads eax or edx:eax. Floating-point results live in st0, which
// the register API cannot read, so they come back as zero.
func (x86Strategy) ReturnValue(cpu CPU, t jni.FFIType) (uint64, error) {
	if t.IsFloat() {
		return 0, nil
	}
	lo, err := cpu.RegRead(uc.X86_REG_EAX)
	if err != nil || t.Size(4) < 8 {
		return mask(lo, t, 4), err
	}
	hi, err := cpu.RegRead(uc.X86_REG_EDX)
	return lo&0xffffffff | hi<<32, err
}

func (x86Strategy) SetReturnValue(cpu CPU, t jni.FFIType, val uint64) error {
	if t.IsFloat() {
		return nil
	}
	if err := cpu.RegWrite(uc.X86_REG_EAX, val&0xffffffff); err != nil || t.Size(4) < 8 {
		return err
	}
	return cpu.RegWrite(uc.X86_REG_EDX, val>>32)
}

func (s x86Strategy) ReturnAddress(cpu CPU) (uint64, error) {
	return readUint(cpu, s.StackPointer(cpu), 4)
}

func (s x86Strategy) SetReturnAddress(cpu CPU, addr uint64) error {
	return writeUint(cpu, s.StackPointer(cpu), 4, addr)
}

func (x86Strategy) Jump(cpu CPU, target uint64) error {
	return cpu.RegWrite(uc.X86_REG_EIP, target)
}

func (s x86Strategy) Return(cpu CPU) error {
	ret, err := s.ReturnAddress(cpu)
	if err != nil {
		return err
	}
	if err := s.SetStackPointer(cpu, s.StackPointer(cpu)+4); err != nil {
		return err
	}
	return s.Jump(cpu, ret)
}

func (x86Strategy) StackPointer(cpu CPU) uint64 {
	v, _ := cpu.RegRead(uc.X86_REG_ESP)
	return v
}

func (x86Strategy) SetStackPointer(cpu CPU, sp uint64) error {
	return cpu.RegWrite(uc.X86_REG_ESP, sp)
}

func (x86Strategy) FramePointer(cpu CPU) uint64 {
	v, _ := cpu.RegRead(uc.X86_REG_EBP)
	return v
}

func (x86Strategy) NextFrame(mem Memory, fp uint64) (uint64, uint64, error) {
	return nextFrame(mem, fp, 4)
}
