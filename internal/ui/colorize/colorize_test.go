package colorize

import (
	"strings"
	"testing"
)

func TestDisabled(t *testing.T) {
	t.Setenv("JNISCOPE_NO_COLOR", "1")
	if got := Address(0x1234); got != "00001234" {
		t.Errorf("Address = %q", got)
	}
	if got := Instruction("arm64", "RET"); got != "RET" {
		t.Errorf("Instruction = %q", got)
	}
	if got := Error("boom"); got != "boom" {
		t.Errorf("Error = %q", got)
	}
}

func TestEnabled(t *testing.T) {
	t.Setenv("JNISCOPE_NO_COLOR", "")
	t.Setenv("NO_COLOR", "")
	got := FuncName("JNI_OnLoad")
	if !strings.HasPrefix(got, "\033[38;2;255;200;0m") || !strings.HasSuffix(got, "JNI_OnLoad\033[0m") {
		t.Errorf("FuncName = %q", got)
	}
	if in := Instruction("x64", "ret"); !strings.Contains(in, "ret") {
		t.Errorf("Instruction dropped text: %q", in)
	}
}

func TestLexerCached(t *testing.T) {
	a, b := lexerFor("arm64"), lexerFor("arm64")
	if a != b {
		t.Error("lexer not cached")
	}
}
