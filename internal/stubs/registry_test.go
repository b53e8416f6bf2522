package stubs

import (
	"testing"

	"github.com/zboralski/jniscope/internal/emulator"
)

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		name, pattern string
		want          bool
	}{
		{"Java_com_example_Foo_bar", "Java_", true},
		{"JNI_OnLoad", "JNI_OnLoad", true},
		{"JNI_OnLoad", "Java_*", false},
		{"Java_a_B_c", "Java_*", true},
		{"__android_log_print", "*log_print", true},
		{"malloc", "free", false},
	}
	for _, tt := range tests {
		if got := matchPattern(tt.name, tt.pattern); got != tt.want {
			t.Errorf("matchPattern(%q, %q) = %v, want %v", tt.name, tt.pattern, got, tt.want)
		}
	}
}

func TestLookupAlias(t *testing.T) {
	r := NewRegistry()
	r.RegisterFunc("libc", "malloc", func(*emulator.Emulator) bool { return false }, "_Znwm")

	def, ok := r.Lookup("_Znwm")
	if !ok || def.Name != "malloc" || def.Category != "libc" {
		t.Errorf("Lookup(_Znwm) = %+v, %v", def, ok)
	}
	if _, ok := r.Lookup("free"); ok {
		t.Error("Lookup(free) found an unregistered stub")
	}
}

func TestInstall(t *testing.T) {
	emu, err := emulator.New(emulator.ARM64)
	if err != nil {
		t.Fatalf("Failed to create emulator: %v", err)
	}
	defer emu.Close()

	r := NewRegistry()
	r.RegisterFunc("libc", "malloc", func(*emulator.Emulator) bool { return false })
	activations := 0
	r.RegisterDetector(Detector{
		Name:     "jni",
		Patterns: []string{"Java_"},
		Activate: func(_ *emulator.Emulator, _, symbols map[string]uint64) int {
			activations++
			if _, ok := symbols["Java_a_B_c"]; !ok {
				t.Error("detector did not see internal symbols")
			}
			return 1
		},
	})

	imports := map[string]uint64{
		"malloc": emulator.StubBase + 0x100,
		"fopen":  emulator.StubBase + 0x200,
		"unused": 0,
	}
	symbols := map[string]uint64{"Java_a_B_c": emulator.CodeBase}

	// detector + malloc + fallback for fopen
	if n := r.Install(emu, imports, symbols); n != 3 {
		t.Errorf("Install = %d, want 3", n)
	}
	if n := r.Install(emu, imports, symbols); n != 2 {
		t.Errorf("second Install = %d, want 2 without the detector", n)
	}
	if activations != 1 {
		t.Errorf("detector activated %d times, want 1", activations)
	}
}
