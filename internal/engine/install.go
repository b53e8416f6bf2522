package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zboralski/jniscope/internal/abi"
	"github.com/zboralski/jniscope/internal/emulator"
	"github.com/zboralski/jniscope/internal/jni"
	glog "github.com/zboralski/jniscope/internal/log"
	"go.uber.org/zap"
)

// Export names the engine installs on.
const (
	OnLoadSymbol = "JNI_OnLoad"
	NativePrefix = "Java_"
)

// Install hooks an exported entry point. JNI_OnLoad receives the shadow VM
// and Java_* natives receive the shadow env. Exports rejected by the
// include/exclude filters are skipped silently; installed reports whether a
// hook was placed.
func (c *Context) Install(name string, addr uint64) (installed bool, err error) {
	if addr == 0 {
		return false, fmt.Errorf("install %s: null address", name)
	}
	switch {
	case name == OnLoadSymbol:
		c.InstallOnLoad(addr)
	case strings.HasPrefix(name, NativePrefix):
		if !c.Config.MatchesExport(name) {
			return false, nil
		}
		c.InstallNative(name, addr)
	default:
		return false, fmt.Errorf("install %s: not a JNI entry point", name)
	}
	return true, nil
}

// InstallExports installs every JNI entry point in exports and returns how
// many were hooked.
func (c *Context) InstallExports(exports map[string]uint64) int {
	names := make([]string, 0, len(exports))
	for name := range exports {
		if name == OnLoadSymbol || strings.HasPrefix(name, NativePrefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	n := 0
	for _, name := range names {
		ok, err := c.Install(name, exports[name])
		if err != nil {
			c.Log.Warn("install failed", glog.Fn(name), zap.Error(err))
			continue
		}
		if ok {
			n++
		}
	}
	return n
}

// InstallOnLoad hooks JNI_OnLoad. The first JavaVM seen becomes the real VM
// and the function runs with the shadow VM in argument 0.
func (c *Context) InstallOnLoad(addr uint64) {
	c.proc.InterceptAddress(addr, func(_ *emulator.Emulator) {
		s, p := c.abi, c.proc
		loc := s.Arguments([]jni.FFIType{jni.FFIPointer})[0]
		vm, err := s.ReadArgument(p, loc)
		if err != nil || vm == 0 || c.vm.IsShadow(vm) {
			return
		}
		if !c.Threads.HasJavaVM() {
			c.Threads.SetJavaVM(vm)
		}
		shadow, err := c.vm.GetOrCreate(vm)
		if err != nil {
			c.report(fmt.Errorf("%s: %w", OnLoadSymbol, err))
			return
		}
		if err := s.WriteArgument(p, loc, shadow); err != nil {
			c.report(fmt.Errorf("%s: substitute JavaVM: %w", OnLoadSymbol, err))
			return
		}
		c.Log.Debug("JNI_OnLoad", glog.Ptr("vm", vm), glog.Ptr("shadow", shadow))
	})
	c.Log.Debug("installed", glog.Fn(OnLoadSymbol), glog.Addr(addr))
}

// InstallNative hooks a native method implementation so it runs with the
// shadow env.
func (c *Context) InstallNative(name string, addr uint64) {
	c.proc.InterceptAddress(addr, func(_ *emulator.Emulator) {
		c.env.enterWithEnv(name)
	})
	c.Log.Debug("installed", glog.Fn(name), glog.Addr(addr))
}

// wrapNative returns a stub that enters fn with the shadow env.
func (c *Context) wrapNative(name string, fn uint64) (uint64, error) {
	stub, err := c.newStub(func(_ *emulator.Emulator) bool {
		c.env.enterWithEnv(name)
		if err := c.abi.Jump(c.proc, fn); err != nil {
			c.Log.Error("jump to native failed", glog.Fn(name), glog.Addr(fn), zap.Error(err))
			return true
		}
		return false
	}, name)
	if err != nil {
		return 0, err
	}
	if a, ok := c.Refs.Get(stub.Entry); ok {
		a.Kind = AllocClosure
		c.Refs.Add(a)
	}
	return stub.Entry, nil
}

// wrapNatives forwards a copy of the JNINativeMethod array in which every
// function accepted by the filters is wrapped. args holds the call's
// arguments; the record keeps the caller's array.
func (t *trampoline) wrapNatives(args []uint64) {
	c, p := t.ctx, t.ctx.proc
	ptr := c.abi.PointerSize()
	methods, n := args[2], int(int32(args[3]))
	if methods == 0 || n <= 0 {
		return
	}

	entry := uint64(jni.JNINativeMethodSize(ptr))
	size := entry * uint64(n)
	raw, err := p.MemRead(methods, size)
	if err != nil {
		c.report(fmt.Errorf("%s: read methods: %w", t.method, err))
		return
	}
	dup := p.Malloc(size)
	if err := p.MemWrite(dup, raw); err != nil {
		c.report(fmt.Errorf("%s: copy methods: %w", t.method, err))
		return
	}
	c.Refs.Add(Allocation{Addr: dup, Size: size, Kind: AllocBuffer})

	wrapped := 0
	for i := 0; i < n; i++ {
		e := dup + uint64(i)*entry
		namePtr, _ := abi.ReadPointer(p, e, ptr)
		sigPtr, _ := abi.ReadPointer(p, e+uint64(ptr), ptr)
		fn, _ := abi.ReadPointer(p, e+2*uint64(ptr), ptr)
		name, sig, err := c.nameAndSig(namePtr, sigPtr)
		if err != nil || fn == 0 {
			continue
		}
		if !c.Config.MatchesExport(name + sig) {
			continue
		}
		w, err := c.wrapNative(name+sig, fn)
		if err != nil {
			c.report(fmt.Errorf("%s: wrap %s: %w", t.method, name, err))
			continue
		}
		if err := abi.WritePointer(p, e+2*uint64(ptr), ptr, w); err != nil {
			c.report(err)
			continue
		}
		wrapped++
	}

	if err := c.abi.WriteArgument(p, t.locs[2], dup); err != nil {
		c.report(fmt.Errorf("%s: forward methods: %w", t.method, err))
		return
	}
	c.Log.Debug("natives wrapped", zap.Int("count", n), zap.Int("wrapped", wrapped))
}
