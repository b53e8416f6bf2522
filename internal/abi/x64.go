package abi

import (
	"bytes"

	"github.com/zboralski/jniscope/internal/emulator"
	"github.com/zboralski/jniscope/internal/jni"

	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"
)

// x64Strategy implements the System V AMD64 convention.
//
// The register API cannot read xmm registers, so every x64 stub spills
// xmm0-xmm7 into a scratch area in its own page before handing control to
// Go, and reloads them on the way out.
type x64Strategy struct{}

// Stub page layout.
const (
	x64Spill      = 0x800 // xmm0-7 scratch, relative to the page
	x64SpillJump  = 0x40  // jump target slot, relative to the scratch
	x64StubHook   = 58    // ret, after movabs + 8 movq stores
	x64StubResume = 59
)

// Capture buffer layout.
const (
	x64BufGP   = 0   // rdi rsi rdx rcx r8 r9
	x64BufRAX  = 48  // al carries the vector register count
	x64BufXMM  = 56  // xmm0-7 low quadwords
	x64BufRet  = 120 // return address
	x64BufRSP  = 128 // rsp at shim entry
	x64BufLen  = 136
	x64GPRegs  = 6
	x64XMMRegs = 8
)

var x64ArgRegs = [x64GPRegs]int{
	uc.X86_REG_RDI, uc.X86_REG_RSI, uc.X86_REG_RDX,
	uc.X86_REG_RCX, uc.X86_REG_R8, uc.X86_REG_R9,
}

func (x64Strategy) Name() string        { return "x64" }
func (x64Strategy) Arch() emulator.Arch { return emulator.X64 }
func (x64Strategy) PointerSize() int    { return 8 }

func movabsR11(b []byte, imm uint64) []byte {
	return le64(append(b, 0x49, 0xBB), imm)
}

// movqStore emits movq [r11+disp8], xmm_i.
func movqStore(b []byte, i int, disp byte) []byte {
	return append(b, 0x66, 0x41, 0x0F, 0xD6, 0x43|byte(i)<<3, disp)
}

// movqLoad emits movq xmm_i, [r11+disp8].
func movqLoad(b []byte, i int, disp byte) []byte {
	return append(b, 0xF3, 0x41, 0x0F, 0x7E, 0x43|byte(i)<<3, disp)
}

func (x64Strategy) CreateTrampolineStub(page uint64) Stub {
	spill := page + x64Spill
	code := movabsR11(nil, spill)
	for i := 0; i < x64XMMRegs; i++ {
		code = movqStore(code, i, byte(8*i))
	}
	code = append(code, 0xC3) // hook: ret
	code = movabsR11(code, spill)
	for i := 0; i < x64XMMRegs; i++ {
		code = movqLoad(code, i, byte(8*i))
	}
	code = append(code, 0x41, 0xFF, 0x63, x64SpillJump) // jmp [r11+0x40]
	return Stub{Code: code, Entry: page, Hook: page + x64StubHook}
}

// spillArea returns the scratch area of the stub page holding pc, or false
// when pc is not inside a spilling stub.
func spillArea(cpu CPU) (uint64, bool) {
	pc, err := cpu.RegRead(uc.X86_REG_RIP)
	if err != nil {
		return 0, false
	}
	page := pc &^ (emulator.PageSize - 1)
	head, err := cpu.MemRead(page, 10)
	if err != nil || !bytes.Equal(head, movabsR11(nil, page+x64Spill)) {
		return 0, false
	}
	return page + x64Spill, true
}

func (x64Strategy) BuildVariadicCaptureShim(shim, buf, next uint64) []byte {
	code := movabsR11(nil, buf)
	code = append(code,
		0x49, 0x89, 0x7B, 0x00, // mov [r11], rdi
		0x49, 0x89, 0x73, 0x08, // mov [r11+8], rsi
		0x49, 0x89, 0x53, 0x10, // mov [r11+16], rdx
		0x49, 0x89, 0x4B, 0x18, // mov [r11+24], rcx
		0x4D, 0x89, 0x43, 0x20, // mov [r11+32], r8
		0x4D, 0x89, 0x4B, 0x28, // mov [r11+40], r9
		0x49, 0x89, 0x43, 0x30, // mov [r11+48], rax
	)
	for i := 0; i < x64XMMRegs; i++ {
		code = movqStore(code, i, byte(x64BufXMM+8*i))
	}
	code = append(code,
		0x48, 0x8B, 0x04, 0x24, // mov rax, [rsp]
		0x49, 0x89, 0x43, 0x78, // mov [r11+120], rax
		0x49, 0x89, 0xA3, 0x80, 0x00, 0x00, 0x00, // mov [r11+128], rsp
		0x48, 0x83, 0xEC, 0x08, // sub rsp, 8
		0x48, 0xB8, // movabs rax, next
	)
	code = le64(code, next)
	code = append(code,
		0xFF, 0xD0, // call rax
		0x48, 0x83, 0xC4, 0x08, // add rsp, 8
		0x49, 0x89, 0xC2, // mov r10, rax
	)
	code = movabsR11(code, buf)
	code = append(code,
		0x49, 0x8B, 0x7B, 0x00, // mov rdi, [r11]
		0x49, 0x8B, 0x73, 0x08,
		0x49, 0x8B, 0x53, 0x10,
		0x49, 0x8B, 0x4B, 0x18,
		0x4D, 0x8B, 0x43, 0x20,
		0x4D, 0x8B, 0x4B, 0x28,
		0x49, 0x8B, 0x43, 0x30, // mov rax, [r11+48]
	)
	for i := 0; i < x64XMMRegs; i++ {
		code = movqLoad(code, i, byte(x64BufXMM+8*i))
	}
	return append(code, 0x41, 0xFF, 0xE2) // jmp r10
}

func (x64Strategy) CaptureBufferSize() int { return x64BufLen }

func (x64Strategy) CapturedReturnAddress(mem Memory, buf uint64) (uint64, error) {
	return readUint(mem, buf+x64BufRet, 8)
}

func (x64Strategy) CapturedStackPointer(mem Memory, buf uint64) (uint64, error) {
	return readUint(mem, buf+x64BufRSP, 8)
}

func (x64Strategy) BeginCaptureExtraction(mem Memory, buf uint64, fixed int) (*Extraction, error) {
	rsp, err := readUint(mem, buf+x64BufRSP, 8)
	if err != nil {
		return nil, err
	}
	x := &Extraction{
		slot:     8,
		ptrSize:  8,
		gp:       buf + x64BufGP + 8*uint64(fixed),
		gpEnd:    buf + x64BufGP + 8*x64GPRegs,
		fp:       buf + x64BufXMM,
		fpEnd:    buf + x64BufXMM + 8*x64XMMRegs,
		fpStride: 8,
		stack:    rsp + 8,
	}
	x.mark()
	return x, nil
}

// BeginVariadicExtraction reads {gp_offset, fp_offset, overflow_arg_area, reg_save_area}.
func (x64Strategy) BeginVariadicExtraction(mem Memory, vaList uint64) (*Extraction, error) {
	b, err := mem.MemRead(vaList, 24)
	if err != nil {
		return nil, err
	}
	gpOff := uint64(leU32(b[0:]))
	fpOff := uint64(leU32(b[4:]))
	overflow := leU64(b[8:])
	save := leU64(b[16:])

	x := &Extraction{
		slot:     8,
		ptrSize:  8,
		gp:       save + gpOff,
		gpEnd:    save + 48,
		fp:       save + fpOff,
		fpEnd:    save + 176,
		fpStride: 16,
		stack:    overflow,
	}
	x.mark()
	return x, nil
}

func (x64Strategy) Arguments(params []jni.FFIType) []Location {
	locs := make([]Location, len(params))
	gp, fp := 0, 0
	off := uint64(8)
	for i, t := range params {
		switch {
		case t.IsFloat() && fp < x64XMMRegs:
			locs[i] = Location{Kind: InFloatReg, Reg: fp, Type: t}
			fp++
		case !t.IsFloat() && gp < x64GPRegs:
			locs[i] = Location{Kind: InReg, Reg: gp, Type: t}
			gp++
		default:
			locs[i] = Location{Kind: OnStack, Offset: off, Type: t}
			off += 8
		}
	}
	return locs
}

func (s x64Strategy) ReadArgument(cpu CPU, loc Location) (uint64, error) {
	switch loc.Kind {
	case InReg:
		v, err := cpu.RegRead(x64ArgRegs[loc.Reg])
		return mask(v, loc.Type, 8), err
	case InFloatReg:
		spill, ok := spillArea(cpu)
		if !ok {
			return 0, nil
		}
		return readUint(cpu, spill+8*uint64(loc.Reg), loc.Type.Size(8))
	}
	return readUint(cpu, s.StackPointer(cpu)+loc.Offset, loc.Type.Size(8))
}

func (s x64Strategy) WriteArgument(cpu CPU, loc Location, val uint64) error {
	switch loc.Kind {
	case InReg:
		return cpu.RegWrite(x64ArgRegs[loc.Reg], val)
	case InFloatReg:
		spill, ok := spillArea(cpu)
		if !ok {
			return nil
		}
		return writeUint(cpu, spill+8*uint64(loc.Reg), 8, val)
	}
	return writeUint(cpu, s.StackPointer(cpu)+loc.Offset, loc.Type.Size(8), val)
}

func (x64Strategy) ReturnValue(cpu CPU, t jni.FFIType) (uint64, error) {
	if t.IsFloat() {
		spill, ok := spillArea(cpu)
		if !ok {
			return 0, nil
		}
		return readUint(cpu, spill, t.Size(8))
	}
	v, err := cpu.RegRead(uc.X86_REG_RAX)
	return mask(v, t, 8), err
}

func (x64Strategy) SetReturnValue(cpu CPU, t jni.FFIType, val uint64) error {
	if t.IsFloat() {
		spill, ok := spillArea(cpu)
		if !ok {
			return nil
		}
		return writeUint(cpu, spill, 8, val)
	}
	return cpu.RegWrite(uc.X86_REG_RAX, val)
}

func (s x64Strategy) ReturnAddress(cpu CPU) (uint64, error) {
	return readUint(cpu, s.StackPointer(cpu), 8)
}

func (s x64Strategy) SetReturnAddress(cpu CPU, addr uint64) error {
	return writeUint(cpu, s.StackPointer(cpu), 8, addr)
}

// Jump goes through the stub's resume tail when called from a stub hook, so
// the spilled vector registers are reloaded first.
func (x64Strategy) Jump(cpu CPU, target uint64) error {
	spill, ok := spillArea(cpu)
	if !ok {
		return cpu.RegWrite(uc.X86_REG_RIP, target)
	}
	if err := writeUint(cpu, spill+x64SpillJump, 8, target); err != nil {
		return err
	}
	return cpu.RegWrite(uc.X86_REG_RIP, spill-x64Spill+x64StubResume)
}

func (s x64Strategy) Return(cpu CPU) error {
	ret, err := s.ReturnAddress(cpu)
	if err != nil {
		return err
	}
	if err := s.SetStackPointer(cpu, s.StackPointer(cpu)+8); err != nil {
		return err
	}
	return s.Jump(cpu, ret)
}

func (x64Strategy) StackPointer(cpu CPU) uint64 {
	v, _ := cpu.RegRead(uc.X86_REG_RSP)
	return v
}

func (x64Strategy) SetStackPointer(cpu CPU, sp uint64) error {
	return cpu.RegWrite(uc.X86_REG_RSP, sp)
}

func (x64Strategy) FramePointer(cpu CPU) uint64 {
	v, _ := cpu.RegRead(uc.X86_REG_RBP)
	return v
}

func (x64Strategy) NextFrame(mem Memory, fp uint64) (uint64, uint64, error) {
	return nextFrame(mem, fp, 8)
}
