// Package script runs user hook scripts against the callback registry.
//
// Scripts see a small API modelled on common dynamic instrumentation tools:
//
//	Interceptor.attach("FindClass", {
//	    onEnter(args) { console.log(Memory.readCString(args[1])) },
//	    onLeave(retval) { retval.replace(0) },
//	})
//
// Arguments are numbers. onEnter may assign to args[i] to change what the
// real function receives.
package script

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/dop251/goja"
	"github.com/zboralski/jniscope/internal/engine"
	glog "github.com/zboralski/jniscope/internal/log"
	"go.uber.org/zap"
)

// Memory reads the instrumented process.
type Memory interface {
	MemRead(addr, size uint64) ([]byte, error)
	MemReadString(addr uint64, maxLen int) (string, error)
}

// Host is what a script can reach.
type Host struct {
	Arch      string
	Memory    Memory
	Callbacks *engine.Callbacks
	Console   io.Writer // defaults to stdout
	Log       *glog.Logger
}

// Runtime is one script environment. Hooks from every loaded script share
// it and are serialized.
type Runtime struct {
	host Host
	log  *glog.Logger

	mu        sync.Mutex
	vm        *goja.Runtime
	listeners []*engine.Listener
}

// New builds a runtime bound to h.
func New(h Host) *Runtime {
	if h.Console == nil {
		h.Console = os.Stdout
	}
	if h.Callbacks == nil {
		h.Callbacks = engine.NewCallbacks()
	}
	r := &Runtime{
		host: h,
		log:  glog.Or(h.Log).WithCategory("script"),
		vm:   goja.New(),
	}
	r.vm.SetFieldNameMapper(goja.UncapFieldNameMapper())
	r.install()
	return r
}

// Callbacks returns the registry scripts attach to.
func (r *Runtime) Callbacks() *engine.Callbacks { return r.host.Callbacks }

// Load runs src. name is used in error positions.
func (r *Runtime) Load(name, src string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.vm.RunScript(name, src); err != nil {
		return fmt.Errorf("script %s: %w", name, err)
	}
	return nil
}

// LoadFile reads and runs a script file.
func (r *Runtime) LoadFile(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	return r.Load(path, string(src))
}

// Close detaches every listener the scripts created.
func (r *Runtime) Close() {
	r.mu.Lock()
	ls := r.listeners
	r.listeners = nil
	r.mu.Unlock()
	for _, l := range ls {
		l.Detach()
	}
}

func (r *Runtime) install() {
	vm := r.vm

	interceptor := vm.NewObject()
	interceptor.Set("attach", r.attach)
	vm.Set("Interceptor", interceptor)

	memory := vm.NewObject()
	memory.Set("readCString", r.readCString)
	memory.Set("readByteArray", r.readByteArray)
	vm.Set("Memory", memory)

	console := vm.NewObject()
	console.Set("log", r.consoleLog)
	vm.Set("console", console)

	process := vm.NewObject()
	process.Set("arch", r.host.Arch)
	vm.Set("Process", process)
}

// throw raises err as a JS exception. Used only inside functions called
// from JS.
func (r *Runtime) throw(err error) {
	panic(r.vm.NewGoError(err))
}

func (r *Runtime) attach(call goja.FunctionCall) goja.Value {
	vm := r.vm
	name := call.Argument(0).String()
	opts := call.Argument(1).ToObject(vm)

	var hooks engine.Hooks
	if fn, ok := goja.AssertFunction(opts.Get("onEnter")); ok {
		hooks.Before = func(inv *engine.Invocation, args []uint64) { r.onEnter(name, fn, inv, args) }
	}
	if fn, ok := goja.AssertFunction(opts.Get("onLeave")); ok {
		hooks.After = func(inv *engine.Invocation, ret *engine.ReturnValue) { r.onLeave(name, fn, inv, ret) }
	}
	if hooks.Before == nil && hooks.After == nil {
		r.throw(errors.New("Interceptor.attach: onEnter or onLeave required"))
	}

	l, err := r.host.Callbacks.Attach(name, hooks)
	if err != nil {
		r.throw(err)
	}
	r.listeners = append(r.listeners, l)

	handle := vm.NewObject()
	handle.Set("detach", func() { l.Detach() })
	return handle
}

// context is the `this` of a hook.
func (r *Runtime) context(inv *engine.Invocation) *goja.Object {
	o := r.vm.NewObject()
	if inv == nil {
		return o
	}
	if inv.Method != nil {
		o.Set("method", inv.Method.Name)
	}
	if inv.JavaMethod != nil {
		o.Set("javaMethod", inv.JavaMethod.String())
	}
	o.Set("threadId", inv.ThreadID)
	o.Set("returnAddress", inv.Caller)
	return o
}

func (r *Runtime) onEnter(name string, fn goja.Callable, inv *engine.Invocation, args []uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	vals := make([]any, len(args))
	for i, a := range args {
		vals[i] = int64(a)
	}
	arr := r.vm.NewArray(vals...)
	if _, err := fn(r.context(inv), arr); err != nil {
		r.log.Warn("onEnter failed", glog.Method(name), zap.Error(err))
		return
	}
	for i := range args {
		if v := arr.Get(fmt.Sprint(i)); v != nil && !goja.IsUndefined(v) {
			args[i] = uint64(v.ToInteger())
		}
	}
}

func (r *Runtime) onLeave(name string, fn goja.Callable, inv *engine.Invocation, ret *engine.ReturnValue) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rv := r.vm.NewObject()
	rv.Set("value", int64(ret.Get()))
	rv.Set("toInt32", func() int32 { return int32(ret.Get()) })
	rv.Set("replace", func(v goja.Value) { ret.Replace(uint64(v.ToInteger())) })
	if _, err := fn(r.context(inv), rv); err != nil {
		r.log.Warn("onLeave failed", glog.Method(name), zap.Error(err))
	}
}

func (r *Runtime) readCString(call goja.FunctionCall) goja.Value {
	addr := uint64(call.Argument(0).ToInteger())
	if addr == 0 || r.host.Memory == nil {
		return goja.Null()
	}
	max := 4096
	if a := call.Argument(1); !goja.IsUndefined(a) {
		max = int(a.ToInteger())
	}
	s, err := r.host.Memory.MemReadString(addr, max)
	if err != nil {
		r.throw(fmt.Errorf("readCString(0x%x): %w", addr, err))
	}
	return r.vm.ToValue(s)
}

func (r *Runtime) readByteArray(call goja.FunctionCall) goja.Value {
	addr := uint64(call.Argument(0).ToInteger())
	n := uint64(call.Argument(1).ToInteger())
	if addr == 0 || r.host.Memory == nil {
		return goja.Null()
	}
	b, err := r.host.Memory.MemRead(addr, n)
	if err != nil {
		r.throw(fmt.Errorf("readByteArray(0x%x, %d): %w", addr, n, err))
	}
	return r.vm.ToValue(r.vm.NewArrayBuffer(b))
}

func (r *Runtime) consoleLog(call goja.FunctionCall) goja.Value {
	parts := make([]string, len(call.Arguments))
	for i, a := range call.Arguments {
		parts[i] = a.String()
	}
	line := strings.Join(parts, " ")
	fmt.Fprintln(r.host.Console, line)
	r.log.Debug("console.log", zap.String("line", line))
	return goja.Undefined()
}
