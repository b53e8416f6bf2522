package disasm

import (
	"errors"
	"strings"
	"testing"

	"github.com/zboralski/jniscope/internal/abi"
	"github.com/zboralski/jniscope/internal/emulator"
	"github.com/zboralski/jniscope/internal/trace"
)

func TestDecodeReturn(t *testing.T) {
	for _, arch := range []emulator.Arch{emulator.ARM64, emulator.ARM, emulator.X86, emulator.X64} {
		t.Run(string(arch), func(t *testing.T) {
			in, err := Decode(arch, 0x1000, arch.ReturnInstruction())
			if err != nil {
				t.Fatal(err)
			}
			if in.Len() != len(arch.ReturnInstruction()) {
				t.Errorf("len = %d", in.Len())
			}
			if !IsBlockEnd(in) {
				t.Errorf("%q should end a block", in.Text)
			}
			tags := Tags(in)
			if len(tags) == 0 || tags[0] != "#ret" {
				t.Errorf("%q tags = %v, want #ret", in.Text, tags)
			}
		})
	}
}

func TestDecodeTruncated(t *testing.T) {
	if _, err := Decode(emulator.ARM64, 0, []byte{0xC0, 0x03}); !errors.Is(err, ErrTruncated) {
		t.Errorf("arm64: err = %v", err)
	}
	if _, err := Decode(emulator.X64, 0, []byte{0x48, 0xB8, 0x01}); !errors.Is(err, ErrTruncated) {
		t.Errorf("x64: err = %v", err)
	}
}

func TestUnsupportedArch(t *testing.T) {
	if _, err := Disassemble("mips", 0, []byte{0, 0, 0, 0}); !errors.Is(err, emulator.ErrUnsupportedArch) {
		t.Errorf("err = %v", err)
	}
}

func TestARM64Shim(t *testing.T) {
	s, err := abi.ForArch(emulator.ARM64)
	if err != nil {
		t.Fatal(err)
	}
	code := s.BuildVariadicCaptureShim(0x10000, 0x20000, 0x30000)
	insts, err := Disassemble(emulator.ARM64, 0x10000, code[:len(code)-16])
	if err != nil {
		t.Fatal(err)
	}
	if got := insts[0].Mnemonic(); got != "LDR" {
		t.Errorf("first = %q", insts[0].Text)
	}
	last := insts[len(insts)-1]
	if last.Mnemonic() != "BR" || !IsBlockEnd(last) {
		t.Errorf("last = %q", last.Text)
	}
	calls := 0
	for _, in := range insts {
		if in.Mnemonic() == "BLR" {
			calls++
		}
	}
	if calls != 1 {
		t.Errorf("shim makes %d calls, want 1", calls)
	}
}

func TestX64Stub(t *testing.T) {
	s, err := abi.ForArch(emulator.X64)
	if err != nil {
		t.Fatal(err)
	}
	stub := s.CreateTrampolineStub(0x40000)
	insts, err := Disassemble(emulator.X64, stub.Entry, stub.Code)
	if err != nil {
		t.Fatal(err)
	}
	var hook *Inst
	for i := range insts {
		if insts[i].Addr == stub.Hook {
			hook = &insts[i]
		}
		if strings.HasPrefix(insts[i].Text, ".byte") {
			t.Errorf("undecoded byte at 0x%x", insts[i].Addr)
		}
	}
	if hook == nil {
		t.Fatalf("no instruction starts at hook 0x%x", stub.Hook)
	}
	if hook.Mnemonic() != "RET" {
		t.Errorf("hook instruction = %q", hook.Text)
	}
	if last := insts[len(insts)-1]; last.Mnemonic() != "JMP" {
		t.Errorf("last = %q", last.Text)
	}
}

func TestData(t *testing.T) {
	if got := Data(0, []byte{0x78, 0x56, 0x34, 0x12}).Text; got != ".word 0x12345678" {
		t.Errorf("word = %q", got)
	}
	if got := Data(0, []byte{1, 0, 0, 0, 0, 0, 0, 0}).Text; got != ".quad 0x0000000000000001" {
		t.Errorf("quad = %q", got)
	}
	if got := Data(0, []byte{0xff}).Text; got != ".byte 0xff" {
		t.Errorf("byte = %q", got)
	}
}

func TestFormatLine(t *testing.T) {
	t.Setenv("JNISCOPE_NO_COLOR", "1")
	in, err := Decode(emulator.ARM64, 0x40001000, emulator.ARM64.ReturnInstruction())
	if err != nil {
		t.Fatal(err)
	}
	e := trace.NewEvent(0x40001000, "libc", "malloc", "size=0x10")
	trace.DefaultEnricher(e)
	line := FormatLine(in, "JNI_OnLoad", []*trace.Event{e})

	for _, want := range []string{"40001000", "D65F03C0", "RET", "#ret #libc #malloc size=0x10", "JNI_OnLoad malloc"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
}
