package abi

import (
	"github.com/zboralski/jniscope/internal/emulator"
	"github.com/zboralski/jniscope/internal/jni"

	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"
)

// armStrategy implements the AAPCS base standard (softfp) for ARM32.
// Stubs and shims are ARM-mode code; Thumb targets are reached through the
// low bit of the address.
type armStrategy struct{}

// Capture buffer layout. The shim pushes r0-r3 so they sit directly below
// the caller's stack arguments, which makes the argument area contiguous.
const (
	armBufArgs = 0 // address of the saved r0
	armBufLR   = 4
	armBufLen  = 8
)

const armBxLR = 0xE12FFF1E

func (armStrategy) Name() string        { return "arm" }
func (armStrategy) Arch() emulator.Arch { return emulator.ARM }
func (armStrategy) PointerSize() int    { return 4 }

func (armStrategy) CreateTrampolineStub(page uint64) Stub {
	return Stub{Code: le32(nil, armBxLR), Entry: page, Hook: page}
}

func (armStrategy) BuildVariadicCaptureShim(shim, buf, next uint64) []byte {
	ins := []uint32{
		0xE92D000F, // push {r0-r3}
		0xE59FC020, // ldr ip, [pc, #0x20]   ; buf
		0xE58CD000, // str sp, [ip]
		0xE58CE004, // str lr, [ip, #4]
		0xE59FC018, // ldr ip, [pc, #0x18]   ; next
		0xE12FFF3C, // blx ip
		0xE1A0C000, // mov ip, r0
		0xE8BD000F, // pop {r0-r3}
		0xE59FE004, // ldr lr, [pc, #4]      ; buf
		0xE59EE004, // ldr lr, [lr, #4]
		0xE12FFF1C, // bx ip
	}
	code := make([]byte, 0, len(ins)*4+8)
	for _, w := range ins {
		code = le32(code, w)
	}
	code = le32(code, uint32(buf))
	return le32(code, uint32(next))
}

func (armStrategy) CaptureBufferSize() int { return armBufLen }

func (armStrategy) CapturedReturnAddress(mem Memory, buf uint64) (uint64, error) {
	return readUint(mem, buf+armBufLR, 4)
}

func (armStrategy) CapturedStackPointer(mem Memory, buf uint64) (uint64, error) {
	args, err := readUint(mem, buf+armBufArgs, 4)
	return args + 16, err
}

func (armStrategy) BeginCaptureExtraction(mem Memory, buf uint64, fixed int) (*Extraction, error) {
	args, err := readUint(mem, buf+armBufArgs, 4)
	if err != nil {
		return nil, err
	}
	return armFlat(args + 4*uint64(fixed)), nil
}

// BeginVariadicExtraction treats vaList as the __ap pointer itself.
func (armStrategy) BeginVariadicExtraction(_ Memory, vaList uint64) (*Extraction, error) {
	return armFlat(vaList), nil
}

func armFlat(cursor uint64) *Extraction {
	x := &Extraction{flat: true, align8: true, slot: 4, ptrSize: 4, stack: cursor}
	x.mark()
	return x
}

func (armStrategy) Arguments(params []jni.FFIType) []Location {
	locs := make([]Location, len(params))
	ncrn := 0
	var nsaa uint64
	for i, t := range params {
		if t.Size(4) == 8 {
			ncrn = (ncrn + 1) &^ 1
			if ncrn+2 <= 4 {
				locs[i] = Location{Kind: InRegPair, Reg: ncrn, Type: t}
				ncrn += 2
				continue
			}
			ncrn = 4
			nsaa = alignUp(nsaa, 8)
			locs[i] = Location{Kind: OnStack, Offset: nsaa, Type: t}
			nsaa += 8
			continue
		}
		if ncrn < 4 {
			locs[i] = Location{Kind: InReg, Reg: ncrn, Type: t}
			ncrn++
			continue
		}
		locs[i] = Location{Kind: OnStack, Offset: nsaa, Type: t}
		nsaa += 4
	}
	return locs
}

func (s armStrategy) ReadArgument(cpu CPU, loc Location) (uint64, error) {
	switch loc.Kind {
	case InReg:
		v, err := cpu.RegRead(uc.ARM_REG_R0 + loc.Reg)
		return mask(v, loc.Type, 4), err
	case InRegPair:
		return armPair(cpu, loc.Reg)
	}
	return readUint(cpu, s.StackPointer(cpu)+loc.Offset, loc.Type.Size(4))
}

func (s armStrategy) WriteArgument(cpu CPU, loc Location, val uint64) error {
	switch loc.Kind {
	case InReg:
		return cpu.RegWrite(uc.ARM_REG_R0+loc.Reg, val&0xffffffff)
	case InRegPair:
		return setARMPair(cpu, loc.Reg, val)
	}
	return writeUint(cpu, s.StackPointer(cpu)+loc.Offset, loc.Type.Size(4), val)
}

func armPair(cpu CPU, r int) (uint64, error) {
	lo, err := cpu.RegRead(uc.ARM_REG_R0 + r)
	if err != nil {
		return 0, err
	}
	hi, err := cpu.RegRead(uc.ARM_REG_R0 + r + 1)
	return lo&0xffffffff | hi<<32, err
}

func setARMPair(cpu CPU, r int, val uint64) error {
	if err := cpu.RegWrite(uc.ARM_REG_R0+r, val&0xffffffff); err != nil {
		return err
	}
	return cpu.RegWrite(uc.ARM_REG_R0+r+1, val>>32)
}

func (armStrategy) ReturnValue(cpu CPU, t jni.FFIType) (uint64, error) {
	if t.Size(4) == 8 {
		return armPair(cpu, 0)
	}
	v, err := cpu.RegRead(uc.ARM_REG_R0)
	return mask(v, t, 4), err
}

func (armStrategy) SetReturnValue(cpu CPU, t jni.FFIType, val uint64) error {
	if t.Size(4) == 8 {
		return setARMPair(cpu, 0, val)
	}
	return cpu.RegWrite(uc.ARM_REG_R0, val&0xffffffff)
}

func (armStrategy) ReturnAddress(cpu CPU) (uint64, error) {
	return cpu.RegRead(uc.ARM_REG_LR)
}

func (armStrategy) SetReturnAddress(cpu CPU, addr uint64) error {
	return cpu.RegWrite(uc.ARM_REG_LR, addr)
}

// Jump writes PC directly; bit 0 selects Thumb.
func (armStrategy) Jump(cpu CPU, target uint64) error {
	return cpu.RegWrite(uc.ARM_REG_PC, target)
}

func (s armStrategy) Return(cpu CPU) error {
	lr, err := s.ReturnAddress(cpu)
	if err != nil {
		return err
	}
	return s.Jump(cpu, lr)
}

func (armStrategy) StackPointer(cpu CPU) uint64 {
	v, _ := cpu.RegRead(uc.ARM_REG_SP)
	return v
}

func (armStrategy) SetStackPointer(cpu CPU, sp uint64) error {
	return cpu.RegWrite(uc.ARM_REG_SP, sp)
}

// FramePointer returns r7 for a Thumb caller and r11 otherwise.
func (s armStrategy) FramePointer(cpu CPU) uint64 {
	reg := uc.ARM_REG_R11
	if lr, _ := s.ReturnAddress(cpu); lr&1 != 0 {
		reg = uc.ARM_REG_R7
	}
	v, _ := cpu.RegRead(reg)
	return v
}

func (armStrategy) NextFrame(mem Memory, fp uint64) (uint64, uint64, error) {
	return nextFrame(mem, fp, 4)
}
