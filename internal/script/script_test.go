package script

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/zboralski/jniscope/internal/engine"
	"github.com/zboralski/jniscope/internal/jni"
)

type fakeMem map[uint64]string

func (m fakeMem) MemRead(addr, size uint64) ([]byte, error) {
	s, ok := m[addr]
	if !ok {
		return nil, errors.New("unmapped")
	}
	b := []byte(s)
	if uint64(len(b)) > size {
		b = b[:size]
	}
	return b, nil
}

func (m fakeMem) MemReadString(addr uint64, maxLen int) (string, error) {
	s, ok := m[addr]
	if !ok {
		return "", errors.New("unmapped")
	}
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return s, nil
}

func newRuntime(t *testing.T) (*Runtime, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	r := New(Host{
		Arch:    "arm64",
		Memory:  fakeMem{0x1000: "java/lang/String"},
		Console: &out,
	})
	t.Cleanup(r.Close)
	return r, &out
}

func invocation(t *testing.T, name string) *engine.Invocation {
	t.Helper()
	m, ok := jni.Lookup(name)
	if !ok {
		t.Fatalf("no method %s", name)
	}
	return &engine.Invocation{Method: m, ThreadID: 7, Caller: 0x4000}
}

func TestOnEnterReadsAndRewritesArgs(t *testing.T) {
	r, out := newRuntime(t)
	err := r.Load("find.js", `
		Interceptor.attach("FindClass", {
			onEnter(args) {
				console.log(this.method, this.threadId, Memory.readCString(args[1]));
				args[1] = 0x2000;
			},
		});
	`)
	if err != nil {
		t.Fatal(err)
	}

	args := []uint64{0x9000, 0x1000}
	r.Callbacks().RunBefore("FindClass", invocation(t, "FindClass"), args)

	if args[1] != 0x2000 {
		t.Errorf("args[1] = 0x%x, want 0x2000", args[1])
	}
	if args[0] != 0x9000 {
		t.Errorf("args[0] changed to 0x%x", args[0])
	}
	if got := strings.TrimSpace(out.String()); got != "FindClass 7 java/lang/String" {
		t.Errorf("console = %q", got)
	}
}

func TestOnLeaveReplacesResult(t *testing.T) {
	r, _ := newRuntime(t)
	err := r.Load("ret.js", `
		Interceptor.attach("GetVersion", {
			onLeave(retval) {
				if (retval.value === 0x10006) retval.replace(0x10008);
			},
		});
	`)
	if err != nil {
		t.Fatal(err)
	}

	got := r.Callbacks().RunAfter("GetVersion", invocation(t, "GetVersion"), 0x10006)
	if got != 0x10008 {
		t.Errorf("ret = 0x%x, want 0x10008", got)
	}
	got = r.Callbacks().RunAfter("GetVersion", invocation(t, "GetVersion"), 0x10004)
	if got != 0x10004 {
		t.Errorf("untouched ret = 0x%x", got)
	}
}

func TestDetachFromScript(t *testing.T) {
	r, _ := newRuntime(t)
	err := r.Load("detach.js", `
		var l = Interceptor.attach("ExceptionCheck", { onLeave(rv) { rv.replace(1) } });
		l.detach();
	`)
	if err != nil {
		t.Fatal(err)
	}
	if r.Callbacks().Attached("ExceptionCheck") {
		t.Error("still attached after detach()")
	}
}

func TestAttachErrorsSurfaceAsExceptions(t *testing.T) {
	r, _ := newRuntime(t)

	err := r.Load("bad.js", `Interceptor.attach("NotAJNIMethod", { onEnter() {} })`)
	if err == nil || !strings.Contains(err.Error(), "not a valid JNI method") {
		t.Errorf("unknown method: err = %v", err)
	}

	err = r.Load("twice.js", `
		Interceptor.attach("GetVersion", { onEnter() {} });
		Interceptor.attach("GetVersion", { onEnter() {} });
	`)
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("double attach: err = %v", err)
	}

	err = r.Load("empty.js", `Interceptor.attach("FindClass", {})`)
	if err == nil {
		t.Error("attach without callbacks should fail")
	}
}

func TestCloseDetachesAll(t *testing.T) {
	r, _ := newRuntime(t)
	if err := r.Load("two.js", `
		Interceptor.attach("FindClass", { onEnter() {} });
		Interceptor.attach("GetEnv", { onLeave() {} });
	`); err != nil {
		t.Fatal(err)
	}
	r.Close()
	for _, name := range []string{"FindClass", "GetEnv"} {
		if r.Callbacks().Attached(name) {
			t.Errorf("%s still attached", name)
		}
	}
}

func TestHookExceptionKeepsArgs(t *testing.T) {
	r, _ := newRuntime(t)
	if err := r.Load("throw.js", `
		Interceptor.attach("FindClass", { onEnter(args) { args[1] = 1; throw new Error("boom") } });
	`); err != nil {
		t.Fatal(err)
	}
	args := []uint64{0, 0x1000}
	r.Callbacks().RunBefore("FindClass", invocation(t, "FindClass"), args)
	if args[1] != 0x1000 {
		t.Errorf("args rewritten by a failing hook: 0x%x", args[1])
	}
}

func TestProcessArch(t *testing.T) {
	r, out := newRuntime(t)
	if err := r.Load("arch.js", `console.log(Process.arch)`); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out.String()) != "arm64" {
		t.Errorf("arch = %q", out.String())
	}
}
