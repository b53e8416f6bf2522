package emulator

import (
	"fmt"

	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"
)

// regSet names the architecture registers the emulator itself needs.
type regSet struct {
	pc, sp, fp, lr int // lr is -1 where the return address lives on the stack
}

var regSets = map[Arch]regSet{
	ARM64: {uc.ARM64_REG_PC, uc.ARM64_REG_SP, uc.ARM64_REG_X29, uc.ARM64_REG_X30},
	ARM:   {uc.ARM_REG_PC, uc.ARM_REG_SP, uc.ARM_REG_R11, uc.ARM_REG_LR},
	X86:   {uc.X86_REG_EIP, uc.X86_REG_ESP, uc.X86_REG_EBP, -1},
	X64:   {uc.X86_REG_RIP, uc.X86_REG_RSP, uc.X86_REG_RBP, -1},
}

func (e *Emulator) regs() regSet {
	return regSets[e.arch]
}

func (e *Emulator) read(reg int) uint64 {
	v, _ := e.mu.RegRead(reg)
	return v
}

// PC returns the program counter
func (e *Emulator) PC() uint64 {
	return e.read(e.regs().pc)
}

// SetPC sets the program counter
func (e *Emulator) SetPC(val uint64) error {
	return e.mu.RegWrite(e.regs().pc, val)
}

// SP returns the stack pointer
func (e *Emulator) SP() uint64 {
	return e.read(e.regs().sp)
}

// SetSP sets the stack pointer
func (e *Emulator) SetSP(val uint64) error {
	return e.mu.RegWrite(e.regs().sp, val)
}

// FP returns the frame pointer
func (e *Emulator) FP() uint64 {
	return e.read(e.regs().fp)
}

// LR returns the link register. On x86 it returns the word at the top of the
// stack, which holds the return address at function entry.
func (e *Emulator) LR() uint64 {
	if r := e.regs().lr; r >= 0 {
		return e.read(r)
	}
	v, _ := e.ReadPointer(e.SP())
	return v
}

// SetLR sets the link register. On x86 it overwrites the return address slot.
func (e *Emulator) SetLR(val uint64) error {
	if r := e.regs().lr; r >= 0 {
		return e.mu.RegWrite(r, val)
	}
	return e.WritePointer(e.SP(), val)
}

// X reads ARM64 general-purpose register X0-X30
func (e *Emulator) X(n int) uint64 {
	reg, ok := arm64X(n)
	if !ok {
		return 0
	}
	return e.read(reg)
}

// SetX writes ARM64 general-purpose register X0-X30
func (e *Emulator) SetX(n int, val uint64) error {
	reg, ok := arm64X(n)
	if !ok {
		return fmt.Errorf("invalid register X%d", n)
	}
	return e.mu.RegWrite(reg, val)
}

// arm64X maps Xn to its unicorn id. X29 and X30 are not contiguous with X0-X28.
func arm64X(n int) (int, bool) {
	switch {
	case n >= 0 && n <= 28:
		return uc.ARM64_REG_X0 + n, true
	case n == 29:
		return uc.ARM64_REG_X29, true
	case n == 30:
		return uc.ARM64_REG_X30, true
	}
	return 0, false
}

// R reads ARM32 core register R0-R12
func (e *Emulator) R(n int) uint64 {
	if n < 0 || n > 12 {
		return 0
	}
	return e.read(uc.ARM_REG_R0 + n)
}

// SetR writes ARM32 core register R0-R12
func (e *Emulator) SetR(n int, val uint64) error {
	if n < 0 || n > 12 {
		return fmt.Errorf("invalid register R%d", n)
	}
	return e.mu.RegWrite(uc.ARM_REG_R0+n, val)
}

// Push pushes a pointer-sized value onto the guest stack.
func (e *Emulator) Push(val uint64) error {
	sp := e.SP() - uint64(e.arch.PointerSize())
	if err := e.WritePointer(sp, val); err != nil {
		return err
	}
	return e.SetSP(sp)
}

// ARM64 register constants (re-exported for convenience)
const (
	RegX0  = uc.ARM64_REG_X0
	RegX29 = uc.ARM64_REG_X29 // Frame pointer
	RegX30 = uc.ARM64_REG_X30 // Link register (same as LR)
	RegSP  = uc.ARM64_REG_SP
	RegPC  = uc.ARM64_REG_PC
	RegLR  = uc.ARM64_REG_LR
)
