package emulator

import (
	"debug/elf"
	"errors"
	"testing"

	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"
)

// ARM64 test code: MOV X0, #5; MOV X1, #3; ADD X2, X0, X1; RET
var addTestCode = []byte{
	0xa0, 0x00, 0x80, 0xd2, // MOV X0, #5
	0x61, 0x00, 0x80, 0xd2, // MOV X1, #3
	0x02, 0x00, 0x01, 0x8b, // ADD X2, X0, X1
	0xc0, 0x03, 0x5f, 0xd6, // RET
}

func TestEmulatorBasic(t *testing.T) {
	emu, err := New(ARM64)
	if err != nil {
		t.Fatalf("Failed to create emulator: %v", err)
	}
	defer emu.Close()

	if err := emu.LoadCode(addTestCode); err != nil {
		t.Fatalf("Failed to load code: %v", err)
	}
	if err := emu.SetLR(emu.Sentinel()); err != nil {
		t.Fatalf("Failed to set LR: %v", err)
	}

	if err := emu.Run(CodeBase, emu.Sentinel()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if x2 := emu.X(2); x2 != 8 {
		t.Errorf("Expected X2=8, got X2=%d", x2)
	}
	if emu.X(0) != 5 {
		t.Errorf("Expected X0=5, got X0=%d", emu.X(0))
	}
	if emu.X(1) != 3 {
		t.Errorf("Expected X1=3, got X1=%d", emu.X(1))
	}
}

func TestEmulatorArchitectures(t *testing.T) {
	tests := []struct {
		arch Arch
		code []byte
		reg  int
	}{
		{ARM, []byte{
			0x05, 0x00, 0xa0, 0xe3, // mov r0, #5
			0x03, 0x10, 0xa0, 0xe3, // mov r1, #3
			0x01, 0x20, 0x80, 0xe0, // add r2, r0, r1
		}, uc.ARM_REG_R2},
		{X86, []byte{
			0xb8, 0x05, 0x00, 0x00, 0x00, // mov eax, 5
			0xb9, 0x03, 0x00, 0x00, 0x00, // mov ecx, 3
			0x01, 0xc8, // add eax, ecx
		}, uc.X86_REG_EAX},
		{X64, []byte{
			0x48, 0xc7, 0xc0, 0x05, 0x00, 0x00, 0x00, // mov rax, 5
			0x48, 0xc7, 0xc1, 0x03, 0x00, 0x00, 0x00, // mov rcx, 3
			0x48, 0x01, 0xc8, // add rax, rcx
		}, uc.X86_REG_RAX},
	}

	for _, tt := range tests {
		t.Run(tt.arch.String(), func(t *testing.T) {
			emu, err := New(tt.arch)
			if err != nil {
				t.Fatalf("Failed to create emulator: %v", err)
			}
			defer emu.Close()

			if err := emu.LoadCode(tt.code); err != nil {
				t.Fatalf("Failed to load code: %v", err)
			}
			if err := emu.Run(CodeBase, CodeBase+uint64(len(tt.code))); err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			got, err := emu.RegRead(tt.reg)
			if err != nil {
				t.Fatalf("RegRead: %v", err)
			}
			if got != 8 {
				t.Errorf("result = %d, want 8", got)
			}
		})
	}
}

func TestUnsupportedArch(t *testing.T) {
	_, err := New(Arch("mips"))
	if err == nil {
		t.Fatal("expected error for mips")
	}
	if !errors.Is(err, ErrUnsupportedArch) {
		t.Errorf("error %v does not wrap ErrUnsupportedArch", err)
	}
}

func TestArchForMachine(t *testing.T) {
	tests := map[elf.Machine]Arch{
		elf.EM_AARCH64: ARM64,
		elf.EM_ARM:     ARM,
		elf.EM_386:     X86,
		elf.EM_X86_64:  X64,
		elf.EM_MIPS:    Arch("mips"),
	}
	for m, want := range tests {
		if got := ArchForMachine(m); got != want {
			t.Errorf("ArchForMachine(%v) = %q, want %q", m, got, want)
		}
	}
}

func TestMemoryOperations(t *testing.T) {
	emu, err := New(ARM64)
	if err != nil {
		t.Fatalf("Failed to create emulator: %v", err)
	}
	defer emu.Close()

	addr := uint64(HeapBase)
	val := uint64(0x123456789ABCDEF0)

	if err := emu.MemWriteU64(addr, val); err != nil {
		t.Fatalf("Failed to write U64: %v", err)
	}
	readVal, err := emu.MemReadU64(addr)
	if err != nil {
		t.Fatalf("Failed to read U64: %v", err)
	}
	if readVal != val {
		t.Errorf("U64 mismatch: wrote 0x%x, read 0x%x", val, readVal)
	}

	strAddr := emu.Malloc(64)
	testStr := "com/example/Native"
	if err := emu.MemWriteString(strAddr, testStr); err != nil {
		t.Fatalf("Failed to write string: %v", err)
	}
	readStr, err := emu.MemReadString(strAddr, 64)
	if err != nil {
		t.Fatalf("Failed to read string: %v", err)
	}
	if readStr != testStr {
		t.Errorf("String mismatch: wrote %q, read %q", testStr, readStr)
	}
}

func TestMemReadStringCrossesPage(t *testing.T) {
	emu, err := New(X86)
	if err != nil {
		t.Fatalf("Failed to create emulator: %v", err)
	}
	defer emu.Close()

	addr := uint64(HeapBase + PageSize - 3)
	if err := emu.MemWriteString(addr, "abcdef"); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := emu.MemReadString(addr, 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != "abcdef" {
		t.Errorf("got %q, want %q", got, "abcdef")
	}
}

func TestPointerWidth(t *testing.T) {
	emu, err := New(ARM)
	if err != nil {
		t.Fatalf("Failed to create emulator: %v", err)
	}
	defer emu.Close()

	addr := emu.Malloc(16)
	if err := emu.MemWriteU64(addr, 0xFFFFFFFFFFFFFFFF); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := emu.WritePointer(addr, 0x1234); err != nil {
		t.Fatalf("WritePointer: %v", err)
	}
	v, _ := emu.MemReadU64(addr)
	if v != 0xFFFFFFFF00001234 {
		t.Errorf("32-bit pointer write touched 0x%x", v)
	}
}

func TestMalloc(t *testing.T) {
	emu, err := New(ARM64)
	if err != nil {
		t.Fatalf("Failed to create emulator: %v", err)
	}
	defer emu.Close()

	addr1 := emu.Malloc(100)
	addr2 := emu.Malloc(200)
	addr3 := emu.Malloc(50)

	for i, a := range []uint64{addr1, addr2, addr3} {
		if a%16 != 0 {
			t.Errorf("addr%d not 16-byte aligned: 0x%x", i+1, a)
		}
	}
	if addr2 < addr1+112 {
		t.Errorf("addr2 overlaps addr1")
	}
	if addr3 < addr2+208 {
		t.Errorf("addr3 overlaps addr2")
	}
}

func TestAllocPage(t *testing.T) {
	emu, err := New(X64)
	if err != nil {
		t.Fatalf("Failed to create emulator: %v", err)
	}
	defer emu.Close()

	p1, err := emu.AllocPage()
	if err != nil {
		t.Fatalf("AllocPage: %v", err)
	}
	p2, err := emu.AllocPage()
	if err != nil {
		t.Fatalf("AllocPage: %v", err)
	}
	if p1%PageSize != 0 || p2%PageSize != 0 {
		t.Errorf("pages not aligned: 0x%x 0x%x", p1, p2)
	}
	if p2 != p1+PageSize {
		t.Errorf("expected consecutive pages, got 0x%x then 0x%x", p1, p2)
	}
	if p1 == emu.Sentinel() {
		t.Error("page allocator handed out the sentinel page")
	}
}

func TestAddressHook(t *testing.T) {
	emu, err := New(ARM64)
	if err != nil {
		t.Fatalf("Failed to create emulator: %v", err)
	}
	defer emu.Close()

	if err := emu.LoadCode(addTestCode); err != nil {
		t.Fatalf("Failed to load code: %v", err)
	}

	// Skip MOV X1, #3 by moving PC past it.
	hookCalled := false
	emu.HookAddress(CodeBase+4, func(e *Emulator) bool {
		hookCalled = true
		e.SetX(1, 10)
		e.SetPC(CodeBase + 8)
		return false
	})

	emu.SetLR(emu.Sentinel())
	_ = emu.Run(CodeBase, emu.Sentinel())

	if !hookCalled {
		t.Error("Address hook was not called")
	}
	if x2 := emu.X(2); x2 != 15 {
		t.Errorf("Expected X2=15 after skipping MOV, got %d", x2)
	}
}

func TestInterceptAddressChains(t *testing.T) {
	emu, err := New(ARM64)
	if err != nil {
		t.Fatalf("Failed to create emulator: %v", err)
	}
	defer emu.Close()

	if err := emu.LoadCode(addTestCode); err != nil {
		t.Fatalf("Failed to load code: %v", err)
	}

	var order []string
	emu.HookAddress(CodeBase, func(e *Emulator) bool {
		order = append(order, "hook")
		return false
	})
	emu.InterceptAddress(CodeBase, func(e *Emulator) {
		order = append(order, "intercept")
	})

	emu.SetLR(emu.Sentinel())
	_ = emu.Run(CodeBase, emu.Sentinel())

	if len(order) != 2 || order[0] != "intercept" || order[1] != "hook" {
		t.Errorf("hook order = %v, want [intercept hook]", order)
	}
	if emu.X(2) != 8 {
		t.Errorf("intercepted code did not run, X2=%d", emu.X(2))
	}
}

func TestInterceptThumbAddress(t *testing.T) {
	emu, err := New(ARM)
	if err != nil {
		t.Fatalf("Failed to create emulator: %v", err)
	}
	defer emu.Close()

	// BX LR in Thumb state
	if err := emu.LoadCode([]byte{0x70, 0x47}); err != nil {
		t.Fatalf("Failed to load code: %v", err)
	}

	entered := false
	emu.InterceptAddress(CodeBase|1, func(e *Emulator) { entered = true })
	if !emu.HasAddressHook(CodeBase) {
		t.Error("hook not registered at the instruction address")
	}

	emu.SetLR(emu.Sentinel())
	if err := emu.Run(CodeBase|1, emu.Sentinel()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !entered {
		t.Error("Thumb function entry was not intercepted")
	}
}

func TestCodeHook(t *testing.T) {
	emu, err := New(ARM64)
	if err != nil {
		t.Fatalf("Failed to create emulator: %v", err)
	}
	defer emu.Close()

	if err := emu.LoadCode(addTestCode); err != nil {
		t.Fatalf("Failed to load code: %v", err)
	}

	instrCount := 0
	emu.HookCode(func(e *Emulator, addr uint64, size uint32) {
		instrCount++
	})

	emu.SetLR(emu.Sentinel())
	_ = emu.Run(CodeBase, emu.Sentinel())

	if instrCount != 4 {
		t.Errorf("Expected 4 instructions, got %d", instrCount)
	}
}

func TestThreadID(t *testing.T) {
	emu, err := New(ARM64)
	if err != nil {
		t.Fatalf("Failed to create emulator: %v", err)
	}
	defer emu.Close()

	if emu.ThreadID() != MainThread {
		t.Errorf("initial thread = %d, want %d", emu.ThreadID(), MainThread)
	}
	emu.SetThread(7)
	if emu.ThreadID() != 7 {
		t.Errorf("thread = %d, want 7", emu.ThreadID())
	}
}

func TestModuleSymbolize(t *testing.T) {
	emu, err := New(ARM64)
	if err != nil {
		t.Fatalf("Failed to create emulator: %v", err)
	}
	defer emu.Close()

	m := newModule("/data/app/lib/arm64/libnative.so", 0x40000000, 0x40010000, map[string]uint64{
		"JNI_OnLoad":                0x40001000,
		"Java_com_example_App_init": 0x40002000,
		"outside":                   0x50000000,
	})
	m.Exec = [][2]uint64{{0x40000000, 0x40008000}}
	emu.AddModule(m)

	got := emu.ModuleAt(0x40002010)
	if got == nil || got.Name != "libnative.so" {
		t.Fatalf("ModuleAt = %+v", got)
	}
	name, off := got.Symbolize(0x40002010)
	if name != "Java_com_example_App_init" || off != 0x10 {
		t.Errorf("Symbolize = %s+0x%x", name, off)
	}
	if !got.IsCode(0x40001000) || got.IsCode(0x40009000) {
		t.Error("IsCode does not follow executable ranges")
	}
	if emu.ModuleAt(0x50000000) != nil {
		t.Error("address outside every module resolved")
	}
}
