package emulator

import (
	"debug/elf"
	"os"
	"testing"
)

// TestELFLoader loads a real Android library when one is available.
func TestELFLoader(t *testing.T) {
	testPath := os.Getenv("JNISCOPE_TEST_SO")
	if testPath == "" {
		t.Skip("JNISCOPE_TEST_SO not set, skipping ELF loader test")
	}

	arch, err := DetectArch(testPath)
	if err != nil {
		t.Fatalf("DetectArch: %v", err)
	}

	emu, err := New(arch)
	if err != nil {
		t.Fatalf("Failed to create emulator: %v", err)
	}
	defer emu.Close()

	info, err := emu.LoadELF(testPath)
	if err != nil {
		t.Fatalf("Failed to load ELF: %v", err)
	}

	t.Logf("  Arch:         %s", info.Arch)
	t.Logf("  Base address: 0x%x", info.BaseAddr)
	t.Logf("  Symbols:      %d", len(info.Symbols))
	t.Logf("  Imports:      %d", len(info.Imports))
	t.Logf("  JNI exports:  %d", len(info.JNIExports()))

	if len(info.Segments) == 0 {
		t.Error("No segments loaded")
	}
	data, err := emu.MemRead(info.BaseAddr, 4)
	if err != nil {
		t.Fatalf("Failed to read memory at base: %v", err)
	}
	if data[0] != 0x7f || data[1] != 'E' || data[2] != 'L' || data[3] != 'F' {
		t.Logf("  Data at base: %x (may not be ELF header)", data)
	}
	if emu.ModuleAt(info.BaseAddr) == nil {
		t.Error("loaded image not registered as a module")
	}
}

func TestClassifyReloc(t *testing.T) {
	tests := []struct {
		m    elf.Machine
		t    uint32
		want relocKind
	}{
		{elf.EM_AARCH64, uint32(elf.R_AARCH64_RELATIVE), relocRelative},
		{elf.EM_AARCH64, uint32(elf.R_AARCH64_JUMP_SLOT), relocSymbol},
		{elf.EM_AARCH64, uint32(elf.R_AARCH64_ABS64), relocAbsolute},
		{elf.EM_X86_64, uint32(elf.R_X86_64_RELATIVE), relocRelative},
		{elf.EM_X86_64, uint32(elf.R_X86_64_GLOB_DAT), relocSymbol},
		{elf.EM_X86_64, uint32(elf.R_X86_64_64), relocAbsolute},
		{elf.EM_ARM, uint32(elf.R_ARM_RELATIVE), relocRelative},
		{elf.EM_ARM, uint32(elf.R_ARM_JUMP_SLOT), relocSymbol},
		{elf.EM_ARM, uint32(elf.R_ARM_ABS32), relocAbsolute},
		{elf.EM_386, uint32(elf.R_386_RELATIVE), relocRelative},
		{elf.EM_386, uint32(elf.R_386_JMP_SLOT), relocSymbol},
		{elf.EM_386, uint32(elf.R_386_32), relocAbsolute},
		{elf.EM_386, uint32(elf.R_386_PC32), relocIgnore},
		{elf.EM_MIPS, 3, relocIgnore},
	}
	for _, tt := range tests {
		if got := classifyReloc(tt.m, tt.t); got != tt.want {
			t.Errorf("classifyReloc(%v, %d) = %d, want %d", tt.m, tt.t, got, tt.want)
		}
	}
}

func TestJNIExports(t *testing.T) {
	info := &ELFInfo{
		BaseAddr: 0x40000000,
		EndAddr:  0x40100000,
		Symbols: map[string]uint64{
			"JNI_OnLoad":                   0x40001000,
			"Java_com_example_App_init":    0x40002000,
			"Java_com_example_App_stringy": 0x40003000,
			"Java_imported":                0xF0001000,
			"malloc":                       0xF0001010,
		},
	}

	got := info.JNIExports()
	if len(got) != 2 {
		t.Fatalf("JNIExports = %v, want the two local Java_ symbols", got)
	}
	if got["Java_com_example_App_init"] != 0x40002000 {
		t.Errorf("missing Java_com_example_App_init: %v", got)
	}
}

func TestStripVersion(t *testing.T) {
	for in, want := range map[string]string{
		"malloc@LIBC":       "malloc",
		"memcpy@@GLIBC_2.2": "memcpy",
		"strlen":            "strlen",
	} {
		if got := stripVersion(in); got != want {
			t.Errorf("stripVersion(%q) = %q, want %q", in, got, want)
		}
	}
}
