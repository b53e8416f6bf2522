package config

import (
	"strings"
	"testing"
)

func TestDefaults(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if c.Backtrace != BacktraceAccurate || !c.Env || !c.VM {
		t.Errorf("unexpected defaults: %+v", c)
	}
	if !c.MatchesLibrary("/data/app/lib/arm64/libnative.so") {
		t.Error("\"*\" should match every library")
	}
}

func TestLoadReader(t *testing.T) {
	c, err := LoadReader(strings.NewReader(`
libraries: [libgame.so]
backtrace: fuzzy
include_exports: [Java_com_example]
exclude_exports: [Java_com_example_Ads]
include_methods: ["^Call.*Method$", "FindClass"]
exclude_methods: ["Void"]
vm: false
output: [json, yaml]
max_frames: 8
`))
	if err != nil {
		t.Fatalf("LoadReader: %v", err)
	}

	if c.Backtrace != BacktraceFuzzy || c.MaxFrames != 8 {
		t.Errorf("backtrace=%s max_frames=%d", c.Backtrace, c.MaxFrames)
	}
	if !c.Env {
		t.Error("env should keep its default")
	}
	if c.VM {
		t.Error("vm should be disabled")
	}
	if !c.HasOutput(OutputJSON) || c.HasOutput(OutputConsole) {
		t.Errorf("output = %v", c.Output)
	}
	if c.MatchesLibrary("libc.so") || !c.MatchesLibrary("/lib/libgame.so") {
		t.Error("library filter")
	}

	tests := []struct {
		name string
		want bool
	}{
		{"Java_com_example_App_init", true},
		{"Java_com_example_Ads_show", false},
		{"Java_org_other_App_init", false},
	}
	for _, tt := range tests {
		if got := c.MatchesExport(tt.name); got != tt.want {
			t.Errorf("MatchesExport(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}

	for name, want := range map[string]bool{
		"CallIntMethod":  true,
		"CallVoidMethod": false,
		"FindClass":      true,
		"GetMethodID":    false,
	} {
		if got := c.MatchesMethod(name); got != want {
			t.Errorf("MatchesMethod(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestEmptyExportMatchIsSilent(t *testing.T) {
	c := Default()
	c.IncludeExports = []string{"nothing_matches_this"}
	if err := c.Validate(); err != nil {
		t.Fatal(err)
	}
	if c.MatchesExport("Java_com_example_App_init") {
		t.Error("export should be filtered out")
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"backtrace", "backtrace: precise", "accurate, fuzzy, none"},
		{"regex", "include_methods: ['(']", "include_methods"},
		{"output", "output: [pigeon]", "invalid output"},
		{"collector", "output: [collector]", "collector_url"},
	}
	for _, tt := range tests {
		_, err := LoadReader(strings.NewReader(tt.yaml))
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s: error = %v, want it to mention %q", tt.name, err, tt.want)
		}
	}
}
