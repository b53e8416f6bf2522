package engine

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/zboralski/jniscope/internal/jni"
)

func TestCallbacksAttachTwice(t *testing.T) {
	cb := NewCallbacks()
	if _, err := cb.Attach("FindClass", Hooks{}); err != nil {
		t.Fatalf("first Attach: %v", err)
	}
	_, err := cb.Attach("FindClass", Hooks{})
	if !errors.Is(err, ErrAlreadyAttached) {
		t.Fatalf("second Attach = %v, want ErrAlreadyAttached", err)
	}
	if !strings.Contains(err.Error(), "Callback already exists for FindClass please detach first.") {
		t.Errorf("message = %q", err)
	}
}

func TestCallbacksDetachThenReattach(t *testing.T) {
	cb := NewCallbacks()
	l1, err := cb.Attach("GetEnv", Hooks{})
	if err != nil {
		t.Fatal(err)
	}
	l1.Detach()
	if cb.Attached("GetEnv") {
		t.Fatal("still attached after Detach")
	}

	l2, err := cb.Attach("GetEnv", Hooks{})
	if err != nil {
		t.Fatalf("reattach: %v", err)
	}
	// A stale listener must not remove its successor.
	l1.Detach()
	if !cb.Attached("GetEnv") {
		t.Error("stale Detach removed the new listener")
	}
	l2.Detach()
	l2.Detach()
	if cb.Attached("GetEnv") {
		t.Error("still attached")
	}
}

func TestCallbacksUnknownMethod(t *testing.T) {
	_, err := NewCallbacks().Attach("CallFooMethod", Hooks{})
	if !errors.Is(err, ErrUnknownMethod) {
		t.Fatalf("Attach = %v, want ErrUnknownMethod", err)
	}
	if !strings.Contains(err.Error(), "Method name (CallFooMethod) is not a valid JNI method.") {
		t.Errorf("message = %q", err)
	}
}

func TestCallbacksRun(t *testing.T) {
	cb := NewCallbacks()
	cb.Attach("GetVersion", Hooks{
		Before: func(_ *Invocation, args []uint64) { args[0] = 7 },
		After:  func(_ *Invocation, ret *ReturnValue) { ret.Replace(ret.Get() + 1) },
	})

	args := []uint64{1}
	cb.RunBefore("GetVersion", &Invocation{}, args)
	if args[0] != 7 {
		t.Errorf("before hook did not rewrite args: %v", args)
	}
	if got := cb.RunAfter("GetVersion", &Invocation{}, 41); got != 42 {
		t.Errorf("RunAfter = %d", got)
	}
	if got := cb.RunAfter("FindClass", &Invocation{}, 5); got != 5 {
		t.Errorf("RunAfter without hooks = %d", got)
	}
}

func TestThreadsIsolation(t *testing.T) {
	th := NewThreads()
	var wg sync.WaitGroup
	for tid := uint64(1); tid <= 8; tid++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			th.SetJNIEnv(tid, 0x1000*tid)
		}()
	}
	wg.Wait()

	for tid := uint64(1); tid <= 8; tid++ {
		if got := th.GetJNIEnv(tid); got != 0x1000*tid {
			t.Errorf("GetJNIEnv(%d) = 0x%x", tid, got)
		}
	}
	if th.HasJNIEnv(9) || th.GetJNIEnv(9) != 0 {
		t.Error("thread 9 has an env")
	}
	if !th.NeedsJNIEnvUpdate(1, 0x5000) || th.NeedsJNIEnvUpdate(1, 0x1000) {
		t.Error("NeedsJNIEnvUpdate")
	}
}

func TestThreadsJavaVMFirstWins(t *testing.T) {
	th := NewThreads()
	if th.HasJavaVM() {
		t.Fatal("fresh registry has a VM")
	}
	th.SetJavaVM(0xa000)
	th.SetJavaVM(0xb000)
	if got := th.GetJavaVM(); got != 0xa000 {
		t.Errorf("GetJavaVM = 0x%x, want first value", got)
	}
}

func TestRefs(t *testing.T) {
	r := NewRefs()
	r.Add(Allocation{Addr: 0x1000, Size: 0x1000, Kind: AllocStub})
	r.Add(Allocation{Addr: 0x2000, Size: 16, Kind: AllocBuffer})
	if r.Len() != 2 {
		t.Fatalf("Len = %d", r.Len())
	}
	a, ok := r.Get(0x1000)
	if !ok || a.Kind != AllocStub || a.Kind.String() != "stub" {
		t.Errorf("Get = %+v %v", a, ok)
	}
	r.Release(0x1000)
	if _, ok := r.Get(0x1000); ok || r.Len() != 1 {
		t.Error("Release did not drop the allocation")
	}
}

func TestValueFormatting(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{Value{Type: jni.Jint, Raw: 0xffffffff}, "-1"},
		{Value{Type: jni.Jboolean, Raw: 1}, "1"},
		{Value{Type: jni.Jbyte, Raw: 0xfe}, "-2"},
		{Value{Type: jni.Jstring, Raw: 0x70000010}, "0x70000010"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("%v.String() = %q, want %q", tt.v.Type, got, tt.want)
		}
	}
}

func TestCallRecordJavaParamTypes(t *testing.T) {
	rec := &CallRecord{}
	if rec.JavaParamTypes() != nil {
		t.Error("unresolved record has Java parameter types")
	}
	jm, err := jni.NewJavaMethod("m", "(ILjava/lang/String;)V")
	if err != nil {
		t.Fatal(err)
	}
	rec.JavaMethod = jm
	got := rec.JavaParamTypes()
	if len(got) != 2 || got[0] != jni.Jint || got[1] != jni.Jstring {
		t.Errorf("JavaParamTypes = %v", got)
	}
}
