package abi

import (
	"github.com/zboralski/jniscope/internal/emulator"
	"github.com/zboralski/jniscope/internal/jni"

	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"
)

// arm64Strategy implements AAPCS64 as used by Android.
type arm64Strategy struct{}

// Capture buffer layout.
const (
	arm64BufX0  = 0   // x0-x7
	arm64BufX8  = 64  // x8, x30
	arm64BufD0  = 80  // d0-d7
	arm64BufSP  = 144 // sp at shim entry
	arm64BufLen = 152
)

const (
	arm64Ret = 0xD65F03C0
	x16      = 16
	x17      = 17
)

func (arm64Strategy) Name() string        { return "arm64" }
func (arm64Strategy) Arch() emulator.Arch { return emulator.ARM64 }
func (arm64Strategy) PointerSize() int    { return 8 }

func (arm64Strategy) CreateTrampolineStub(page uint64) Stub {
	return Stub{Code: le32(nil, arm64Ret), Entry: page, Hook: page}
}

func a64LdrLit(rt int, pc, lit uint64) uint32 {
	imm := uint32(int64(lit-pc)/4) & 0x7FFFF
	return 0x58000000 | imm<<5 | uint32(rt)
}

func a64Pair(op uint32, rt, rt2, rn int, off int) uint32 {
	imm := uint32(off/8) & 0x7F
	return op | imm<<15 | uint32(rt2)<<10 | uint32(rn)<<5 | uint32(rt)
}

const (
	a64StpX = 0xA9000000
	a64LdpX = 0xA9400000
	a64StpD = 0x6D000000
	a64LdpD = 0x6D400000
)

func (arm64Strategy) BuildVariadicCaptureShim(shim, buf, next uint64) []byte {
	const litBuf, litNext = 0x68, 0x70

	var ins []uint32
	emit := func(w uint32) { ins = append(ins, w) }
	pc := func() uint64 { return shim + uint64(len(ins))*4 }

	emit(a64LdrLit(x16, pc(), shim+litBuf))
	for i := 0; i < 8; i += 2 {
		emit(a64Pair(a64StpX, i, i+1, x16, arm64BufX0+8*i))
	}
	emit(a64Pair(a64StpX, 8, 30, x16, arm64BufX8))
	for i := 0; i < 8; i += 2 {
		emit(a64Pair(a64StpD, i, i+1, x16, arm64BufD0+8*i))
	}
	emit(0x910003F1)                                     // add x17, sp, #0
	emit(0xF9000000 | (arm64BufSP/8)<<10 | x16<<5 | x17) // str x17, [x16, #144]
	emit(a64LdrLit(x17, pc(), shim+litNext))
	emit(0xD63F0000 | x17<<5) // blr x17
	emit(0xAA0003F1)          // mov x17, x0
	emit(a64LdrLit(x16, pc(), shim+litBuf))
	for i := 0; i < 8; i += 2 {
		emit(a64Pair(a64LdpX, i, i+1, x16, arm64BufX0+8*i))
	}
	emit(a64Pair(a64LdpX, 8, 30, x16, arm64BufX8))
	for i := 0; i < 8; i += 2 {
		emit(a64Pair(a64LdpD, i, i+1, x16, arm64BufD0+8*i))
	}
	emit(0xD61F0000 | x17<<5) // br x17

	code := make([]byte, 0, litNext+8)
	for _, w := range ins {
		code = le32(code, w)
	}
	code = le64(code, buf)
	return le64(code, next)
}

func (arm64Strategy) CaptureBufferSize() int { return arm64BufLen }

func (arm64Strategy) CapturedReturnAddress(mem Memory, buf uint64) (uint64, error) {
	return readUint(mem, buf+arm64BufX8+8, 8)
}

func (arm64Strategy) CapturedStackPointer(mem Memory, buf uint64) (uint64, error) {
	return readUint(mem, buf+arm64BufSP, 8)
}

func (arm64Strategy) BeginCaptureExtraction(mem Memory, buf uint64, fixed int) (*Extraction, error) {
	sp, err := readUint(mem, buf+arm64BufSP, 8)
	if err != nil {
		return nil, err
	}
	x := &Extraction{
		slot:     8,
		ptrSize:  8,
		gp:       buf + arm64BufX0 + 8*uint64(fixed),
		gpEnd:    buf + arm64BufX0 + 64,
		fp:       buf + arm64BufD0,
		fpEnd:    buf + arm64BufD0 + 64,
		fpStride: 8,
		stack:    sp,
	}
	x.mark()
	return x, nil
}

// BeginVariadicExtraction reads {__stack, __gr_top, __vr_top, __gr_offs, __vr_offs}.
func (arm64Strategy) BeginVariadicExtraction(mem Memory, vaList uint64) (*Extraction, error) {
	b, err := mem.MemRead(vaList, 32)
	if err != nil {
		return nil, err
	}
	stack := leU64(b[0:])
	grTop := leU64(b[8:])
	vrTop := leU64(b[16:])
	grOffs := int32(leU32(b[24:]))
	vrOffs := int32(leU32(b[28:]))

	x := &Extraction{
		slot:     8,
		ptrSize:  8,
		gp:       grTop + uint64(int64(grOffs)),
		gpEnd:    grTop,
		fp:       vrTop + uint64(int64(vrOffs)),
		fpEnd:    vrTop,
		fpStride: 16,
		stack:    stack,
	}
	x.mark()
	return x, nil
}

func (arm64Strategy) Arguments(params []jni.FFIType) []Location {
	locs := make([]Location, len(params))
	ngrn, nsrn := 0, 0
	var nsaa uint64
	for i, t := range params {
		switch {
		case t.IsFloat() && nsrn < 8:
			locs[i] = Location{Kind: InFloatReg, Reg: nsrn, Type: t}
			nsrn++
		case !t.IsFloat() && ngrn < 8:
			locs[i] = Location{Kind: InReg, Reg: ngrn, Type: t}
			ngrn++
		default:
			locs[i] = Location{Kind: OnStack, Offset: nsaa, Type: t}
			nsaa += 8
		}
	}
	return locs
}

func (s arm64Strategy) ReadArgument(cpu CPU, loc Location) (uint64, error) {
	var v uint64
	var err error
	switch loc.Kind {
	case InReg:
		v, err = cpu.RegRead(uc.ARM64_REG_X0 + loc.Reg)
	case InFloatReg:
		v, err = cpu.RegRead(uc.ARM64_REG_D0 + loc.Reg)
	default:
		v, err = readUint(cpu, s.StackPointer(cpu)+loc.Offset, loc.Type.Size(8))
	}
	return mask(v, loc.Type, 8), err
}

func (s arm64Strategy) WriteArgument(cpu CPU, loc Location, val uint64) error {
	switch loc.Kind {
	case InReg:
		return cpu.RegWrite(uc.ARM64_REG_X0+loc.Reg, val)
	case InFloatReg:
		return cpu.RegWrite(uc.ARM64_REG_D0+loc.Reg, val)
	}
	return writeUint(cpu, s.StackPointer(cpu)+loc.Offset, loc.Type.Size(8), val)
}

func (arm64Strategy) ReturnValue(cpu CPU, t jni.FFIType) (uint64, error) {
	reg := uc.ARM64_REG_X0
	if t.IsFloat() {
		reg = uc.ARM64_REG_D0
	}
	v, err := cpu.RegRead(reg)
	return mask(v, t, 8), err
}

func (arm64Strategy) SetReturnValue(cpu CPU, t jni.FFIType, val uint64) error {
	if t.IsFloat() {
		return cpu.RegWrite(uc.ARM64_REG_D0, val)
	}
	return cpu.RegWrite(uc.ARM64_REG_X0, val)
}

func (arm64Strategy) ReturnAddress(cpu CPU) (uint64, error) {
	return cpu.RegRead(uc.ARM64_REG_X30)
}

func (arm64Strategy) SetReturnAddress(cpu CPU, addr uint64) error {
	return cpu.RegWrite(uc.ARM64_REG_X30, addr)
}

func (arm64Strategy) Jump(cpu CPU, target uint64) error {
	return cpu.RegWrite(uc.ARM64_REG_PC, target)
}

func (s arm64Strategy) Return(cpu CPU) error {
	lr, err := s.ReturnAddress(cpu)
	if err != nil {
		return err
	}
	return s.Jump(cpu, lr)
}

func (arm64Strategy) StackPointer(cpu CPU) uint64 {
	v, _ := cpu.RegRead(uc.ARM64_REG_SP)
	return v
}

func (arm64Strategy) SetStackPointer(cpu CPU, sp uint64) error {
	return cpu.RegWrite(uc.ARM64_REG_SP, sp)
}

func (arm64Strategy) FramePointer(cpu CPU) uint64 {
	v, _ := cpu.RegRead(uc.ARM64_REG_X29)
	return v
}

func (arm64Strategy) NextFrame(mem Memory, fp uint64) (uint64, uint64, error) {
	return nextFrame(mem, fp, 8)
}

// nextFrame reads a {saved fp, return address} record at fp.
func nextFrame(mem Memory, fp uint64, ptrSize int) (uint64, uint64, error) {
	b, err := mem.MemRead(fp, uint64(2*ptrSize))
	if err != nil {
		return 0, 0, err
	}
	if ptrSize == 8 {
		return leU64(b), leU64(b[8:]), nil
	}
	return uint64(leU32(b)), uint64(leU32(b[4:])), nil
}
