package abi

import (
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/zboralski/jniscope/internal/emulator"
	"github.com/zboralski/jniscope/internal/jni"
)

// fakeMem is sparse guest memory for fixtures.
type fakeMem map[uint64]byte

func (m fakeMem) MemRead(addr, size uint64) ([]byte, error) {
	b := make([]byte, size)
	for i := range b {
		b[i] = m[addr+uint64(i)]
	}
	return b, nil
}

func (m fakeMem) MemWrite(addr uint64, data []byte) error {
	for i, c := range data {
		m[addr+uint64(i)] = c
	}
	return nil
}

func (m fakeMem) put64(addr, v uint64) {
	m.MemWrite(addr, binary.LittleEndian.AppendUint64(nil, v))
}

func (m fakeMem) put32(addr uint64, v uint32) {
	m.MemWrite(addr, binary.LittleEndian.AppendUint32(nil, v))
}

const (
	i32 = jni.FFIInt32
	i64 = jni.FFIInt64
	ptr = jni.FFIPointer
	f32 = jni.FFIFloat
	f64 = jni.FFIDouble
)

func mustArch(t *testing.T, a emulator.Arch) Strategy {
	t.Helper()
	s, err := ForArch(a)
	if err != nil {
		t.Fatalf("ForArch(%s): %v", a, err)
	}
	return s
}

func checkAddrs(t *testing.T, x *Extraction, sig []jni.FFIType, want []uint64) {
	t.Helper()
	for i := range sig {
		got, err := x.ExtractNextArgumentAddress(sig, i)
		if err != nil {
			t.Fatalf("arg %d: %v", i, err)
		}
		if got != want[i] {
			t.Errorf("arg %d (%s) at 0x%x, want 0x%x", i, sig[i], got, want[i])
		}
	}
}

func TestForArch(t *testing.T) {
	for _, a := range []emulator.Arch{emulator.ARM, emulator.ARM64, emulator.X86, emulator.X64} {
		s := mustArch(t, a)
		if s.Name() != string(a) || s.PointerSize() != a.PointerSize() {
			t.Errorf("%s: name %s, pointer size %d", a, s.Name(), s.PointerSize())
		}
	}

	_, err := ForArch("mips")
	if !errors.Is(err, ErrUnsupportedArch) {
		t.Fatalf("ForArch(mips) = %v, want ErrUnsupportedArch", err)
	}
	if !strings.Contains(err.Error(), "mips") {
		t.Errorf("error %q does not name the architecture", err)
	}
}

func TestARM64CaptureExtraction(t *testing.T) {
	s := mustArch(t, emulator.ARM64)
	m := fakeMem{}
	const buf = 0x1000
	m.put64(buf+8*3, 42)
	m.put64(buf+8*4, 1<<40)
	m.put64(buf+8*5, 0xdead)
	m.put64(buf+8*6, 7)
	m.put64(buf+8*7, 8)
	m.put64(buf+80, math.Float64bits(2.5))
	m.put64(buf+88, math.Float64bits(1.5))
	m.put64(buf+144, 0x2000)
	m.put64(0x2000, 9)

	sig := []jni.FFIType{i32, f64, i64, f32, ptr, i32, i32, i32}
	x, err := s.BeginCaptureExtraction(m, buf, 3)
	if err != nil {
		t.Fatal(err)
	}
	checkAddrs(t, x, sig, []uint64{buf + 24, buf + 80, buf + 32, buf + 88, buf + 40, buf + 48, buf + 56, 0x2000})

	vals, err := ReadVariadicArgs(m, x, sig, 8)
	if err != nil {
		t.Fatal(err)
	}
	want := []uint64{42, math.Float64bits(2.5), 1 << 40, uint64(math.Float32bits(1.5)), 0xdead, 7, 8, 9}
	for i := range want {
		if vals[i] != want[i] {
			t.Errorf("value %d = 0x%x, want 0x%x", i, vals[i], want[i])
		}
	}
}

func TestARM64VaListExtraction(t *testing.T) {
	s := mustArch(t, emulator.ARM64)
	m := fakeMem{}
	const va = 0x3000
	m.put64(va, 0x5000)   // __stack
	m.put64(va+8, 0x4040) // __gr_top
	m.put64(va+16, 0x4200)
	m.put32(va+24, uint32(0xFFFFFFF0)) // __gr_offs = -16
	m.put32(va+28, uint32(0xFFFFFFE0)) // __vr_offs = -32

	x, err := s.BeginVariadicExtraction(m, va)
	if err != nil {
		t.Fatal(err)
	}
	sig := []jni.FFIType{i32, f64, i32, f64, i32, f64}
	checkAddrs(t, x, sig, []uint64{0x4030, 0x41E0, 0x4038, 0x41F0, 0x5000, 0x5008})
}

func TestX64Extraction(t *testing.T) {
	s := mustArch(t, emulator.X64)
	m := fakeMem{}

	const va = 0x3000
	m.put32(va, 40)    // gp_offset
	m.put32(va+4, 160) // fp_offset
	m.put64(va+8, 0x7000)
	m.put64(va+16, 0x6000)
	x, err := s.BeginVariadicExtraction(m, va)
	if err != nil {
		t.Fatal(err)
	}
	checkAddrs(t, x, []jni.FFIType{i32, i32, f64, f64}, []uint64{0x6028, 0x7000, 0x60A0, 0x7008})

	const buf = 0x1000
	m.put64(buf+128, 0x2000)
	x, err = s.BeginCaptureExtraction(m, buf, 3)
	if err != nil {
		t.Fatal(err)
	}
	checkAddrs(t, x, []jni.FFIType{i64, f32, i32, i32, i32}, []uint64{buf + 24, buf + 56, buf + 32, buf + 40, 0x2008})
}

func TestFlatExtraction(t *testing.T) {
	m := fakeMem{}
	const buf = 0x1000
	m.put32(buf, 0x2000)

	arm := mustArch(t, emulator.ARM)
	x, err := arm.BeginCaptureExtraction(m, buf, 3)
	if err != nil {
		t.Fatal(err)
	}
	checkAddrs(t, x, []jni.FFIType{i64, i32, f64, f32}, []uint64{0x2010, 0x2018, 0x2020, 0x2028})

	x, _ = arm.BeginVariadicExtraction(m, 0x3004)
	checkAddrs(t, x, []jni.FFIType{i32, i64}, []uint64{0x3004, 0x3008})

	x86 := mustArch(t, emulator.X86)
	x, err = x86.BeginCaptureExtraction(m, buf, 3)
	if err != nil {
		t.Fatal(err)
	}
	checkAddrs(t, x, []jni.FFIType{i64, i32, f32}, []uint64{0x2010, 0x2018, 0x201C})
}

func TestExtractionRewind(t *testing.T) {
	s := mustArch(t, emulator.X86)
	x, _ := s.BeginVariadicExtraction(fakeMem{}, 0x100)
	sig := []jni.FFIType{i32, i64, i32}

	if a, _ := x.ExtractNextArgumentAddress(sig, 2); a != 0x10C {
		t.Errorf("arg 2 at 0x%x, want 0x10c", a)
	}
	if a, _ := x.ExtractNextArgumentAddress(sig, 0); a != 0x100 {
		t.Errorf("arg 0 after rewind at 0x%x, want 0x100", a)
	}
	x.EndVariadicExtraction()
	if a, _ := x.ExtractNextArgumentAddress(sig, 1); a != 0x104 {
		t.Errorf("arg 1 after end at 0x%x, want 0x104", a)
	}
	if _, err := x.ExtractNextArgumentAddress(sig, 3); err == nil {
		t.Error("out of range index accepted")
	}
}

func TestArguments(t *testing.T) {
	tests := []struct {
		arch emulator.Arch
		sig  []jni.FFIType
		want []string
	}{
		{emulator.ARM64, []jni.FFIType{ptr, f32, i32, f64}, []string{"r0", "f0", "r1", "f1"}},
		{emulator.ARM64, []jni.FFIType{ptr, ptr, ptr, ptr, ptr, ptr, ptr, ptr, i32, i64}, []string{"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7", "[sp+0x0]", "[sp+0x8]"}},
		{emulator.X64, []jni.FFIType{ptr, ptr, ptr, ptr, ptr, ptr, f64, ptr}, []string{"r0", "r1", "r2", "r3", "r4", "r5", "f0", "[sp+0x8]"}},
		{emulator.ARM, []jni.FFIType{ptr, i64, i32}, []string{"r0", "r2:r3", "[sp+0x0]"}},
		{emulator.ARM, []jni.FFIType{ptr, ptr, ptr, f64, i32}, []string{"r0", "r1", "r2", "[sp+0x0]", "[sp+0x8]"}},
		{emulator.X86, []jni.FFIType{ptr, i64, f32}, []string{"[sp+0x4]", "[sp+0x8]", "[sp+0x10]"}},
	}
	for _, tt := range tests {
		locs := mustArch(t, tt.arch).Arguments(tt.sig)
		for i, l := range locs {
			if l.String() != tt.want[i] {
				t.Errorf("%s %v: arg %d at %s, want %s", tt.arch, tt.sig, i, l, tt.want[i])
			}
		}
	}
}

// addCode returns a function computing arg0 + arg1.
var addCode = map[emulator.Arch][]byte{
	emulator.ARM64: {0x00, 0x00, 0x01, 0x8B, 0xC0, 0x03, 0x5F, 0xD6},
	emulator.ARM:   {0x01, 0x00, 0x80, 0xE0, 0x1E, 0xFF, 0x2F, 0xE1},
	emulator.X86:   {0x8B, 0x44, 0x24, 0x04, 0x03, 0x44, 0x24, 0x08, 0xC3},
	emulator.X64:   {0x48, 0x8D, 0x04, 0x37, 0xC3},
}

func TestCaptureShim(t *testing.T) {
	for arch, target := range addCode {
		t.Run(string(arch), func(t *testing.T) {
			emu, err := emulator.New(arch)
			if err != nil {
				t.Fatalf("Failed to create emulator: %v", err)
			}
			defer emu.Close()
			s := mustArch(t, arch)

			fn, _ := emu.AllocCode(uint64(len(target)))
			if err := emu.MemWrite(fn, target); err != nil {
				t.Fatal(err)
			}

			page, _ := emu.AllocPage()
			next := s.CreateTrampolineStub(page)
			emu.MemWrite(page, next.Code)
			calls := 0
			emu.HookAddress(next.Hook, func(e *emulator.Emulator) bool {
				calls++
				s.SetReturnValue(e, jni.FFIPointer, fn)
				return false
			})

			buf := emu.Malloc(uint64(s.CaptureBufferSize()))
			shim, _ := emu.AllocPage()
			if err := emu.MemWrite(shim, s.BuildVariadicCaptureShim(shim, buf, next.Entry)); err != nil {
				t.Fatal(err)
			}

			got, err := Call(emu, s, shim, 5, 7, 42, 99)
			if err != nil {
				t.Fatalf("Call: %v", err)
			}
			if got != 12 {
				t.Errorf("result = %d, want 12", got)
			}
			if calls != 1 {
				t.Errorf("next stage ran %d times", calls)
			}

			ret, _ := s.CapturedReturnAddress(emu, buf)
			if ret != emu.Sentinel() {
				t.Errorf("captured return address 0x%x, want sentinel 0x%x", ret, emu.Sentinel())
			}

			x, err := s.BeginCaptureExtraction(emu, buf, 2)
			if err != nil {
				t.Fatal(err)
			}
			vals, err := ReadVariadicArgs(emu, x, []jni.FFIType{i32, i32}, s.PointerSize())
			if err != nil {
				t.Fatal(err)
			}
			if vals[0] != 42 || vals[1] != 99 {
				t.Errorf("captured varargs = %v, want [42 99]", vals)
			}
		})
	}
}

func TestX64StubPreservesVectorArgs(t *testing.T) {
	emu, err := emulator.New(emulator.X64)
	if err != nil {
		t.Fatalf("Failed to create emulator: %v", err)
	}
	defer emu.Close()
	s := mustArch(t, emulator.X64)

	// movq rax, xmm0; ret
	fn, _ := emu.AllocCode(16)
	emu.MemWrite(fn, []byte{0x66, 0x48, 0x0F, 0x7E, 0xC0, 0xC3})

	page, _ := emu.AllocPage()
	stub := s.CreateTrampolineStub(page)
	emu.MemWrite(page, stub.Code)

	want := math.Float64bits(42.5)
	emu.HookAddress(stub.Hook, func(e *emulator.Emulator) bool {
		loc := s.Arguments([]jni.FFIType{f64})[0]
		if err := s.WriteArgument(e, loc, want); err != nil {
			t.Errorf("WriteArgument: %v", err)
		}
		s.Jump(e, fn)
		return false
	})

	got, err := Call(emu, s, stub.Entry)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got != want {
		t.Errorf("xmm0 = 0x%x, want 0x%x", got, want)
	}
}

func TestStubReturnsWhenUnhooked(t *testing.T) {
	for _, arch := range []emulator.Arch{emulator.ARM, emulator.ARM64, emulator.X86, emulator.X64} {
		emu, err := emulator.New(arch)
		if err != nil {
			t.Fatalf("Failed to create emulator: %v", err)
		}
		s := mustArch(t, arch)
		page, _ := emu.AllocPage()
		stub := s.CreateTrampolineStub(page)
		emu.MemWrite(page, stub.Code)
		if _, err := Call(emu, s, stub.Entry, 1, 2); err != nil {
			t.Errorf("%s: bare stub did not return: %v", arch, err)
		}
		emu.Close()
	}
}
