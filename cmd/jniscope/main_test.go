package main

import (
	"bytes"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zboralski/jniscope/internal/config"
	"github.com/zboralski/jniscope/internal/emulator"
	"github.com/zboralski/jniscope/internal/jni"
	"github.com/zboralski/jniscope/internal/stubs/art"
	"github.com/zboralski/jniscope/internal/transport"
)

func TestExportClass(t *testing.T) {
	tests := map[string]string{
		"Java_com_example_Foo_bar":         "com/example/Foo",
		"Java_com_my_1app_Main_run":        "com/my_app/Main",
		"Java_com_example_Foo_bar__ILjava": "com/example/Foo",
		"Java_Main_run":                    "Main",
		"Java_run":                         "java/lang/Object",
	}
	for name, want := range tests {
		if got := exportClass(name); got != want {
			t.Errorf("exportClass(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestNativeCalls(t *testing.T) {
	cfg := config.Default()
	cfg.ExcludeExports = []string{"skip"}
	exports := map[string]uint64{
		"Java_a_B_run":  0x1000,
		"Java_a_B_skip": 0x2000,
	}
	registered := []art.Native{{Class: "a/B", Name: "add", Sig: "(IJ)I", Fn: 0x3000}}

	calls := nativeCalls(cfg, exports, registered)
	if len(calls) != 2 {
		t.Fatalf("calls = %+v", calls)
	}
	if calls[0].name != "Java_a_B_run" || calls[0].class != "a/B" || calls[0].args != 0 {
		t.Errorf("export call = %+v", calls[0])
	}
	if calls[1].name != "a/B.add(IJ)I" || calls[1].fn != 0x3000 || calls[1].args != 2 {
		t.Errorf("registered call = %+v", calls[1])
	}
}

func TestPrintShim(t *testing.T) {
	t.Setenv("JNISCOPE_NO_COLOR", "1")
	for _, arch := range []emulator.Arch{emulator.ARM, emulator.ARM64, emulator.X86, emulator.X64} {
		t.Run(string(arch), func(t *testing.T) {
			var buf bytes.Buffer
			if err := printShim(&buf, arch); err != nil {
				t.Fatal(err)
			}
			out := buf.String()
			if !strings.Contains(out, "<- hook") {
				t.Errorf("hook not marked:\n%s", out)
			}
			if !strings.Contains(out, "variadic capture shim") {
				t.Errorf("shim missing:\n%s", out)
			}
		})
	}
	if err := printShim(&bytes.Buffer{}, "mips"); err == nil {
		t.Error("mips should be rejected")
	}
}

func TestPrintMethods(t *testing.T) {
	t.Setenv("JNISCOPE_NO_COLOR", "1")
	cmd := newMethodsCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	printMethods(cmd, jni.EnvTable)

	out := buf.String()
	for _, want := range []string{"  0  reserved", "FindClass(", "CallIntMethod(", "variadic", "register-natives"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestLoadConfigFlags(t *testing.T) {
	opts := &traceOptions{}
	cmd := traceCmd(opts)
	for k, v := range map[string]string{
		"output":          "json,yaml",
		"backtrace":       "fuzzy",
		"include-methods": "^Call",
		"natives":         "true",
	} {
		if err := cmd.Flags().Set(k, v); err != nil {
			t.Fatal(err)
		}
	}
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.HasOutput(config.OutputJSON) || !cfg.HasOutput(config.OutputYAML) || cfg.HasOutput(config.OutputConsole) {
		t.Errorf("outputs = %v", cfg.Output)
	}
	if cfg.Backtrace != config.BacktraceFuzzy || !cfg.RunNatives {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.MatchesMethod("FindClass") || !cfg.MatchesMethod("CallIntMethod") {
		t.Error("include-methods not applied")
	}

	bad := traceCmd(&traceOptions{})
	if err := bad.Flags().Set("backtrace", "sideways"); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(bad, &traceOptions{backtrace: "sideways"}); err == nil {
		t.Error("invalid backtrace accepted")
	}
}

type lockedBuffer struct {
	mu sync.Mutex
	bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Buffer.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Buffer.String()
}

func TestServeCollector(t *testing.T) {
	t.Setenv("JNISCOPE_NO_COLOR", "1")
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	var out lockedBuffer
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serveCollector(ctx, ln, transport.NewConsoleSink(&out)) }()

	remote := transport.NewRemoteSink("http://" + ln.Addr().String())
	msg := &transport.Message{
		CallType: "JNIEnv",
		ThreadID: 1,
		Method:   transport.MethodInfo{Name: "GetVersion", Ret: "jint"},
		Ret:      transport.Arg{Type: "jint", Value: "65542"},
	}
	if err := remote.Write(msg); err != nil {
		t.Fatal(err)
	}
	if got := out.String(); !strings.Contains(got, "JNIEnv->GetVersion() = 65542") {
		t.Errorf("collector printed %q", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("collector did not shut down")
	}
}
