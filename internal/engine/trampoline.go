package engine

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"github.com/zboralski/jniscope/internal/abi"
	"github.com/zboralski/jniscope/internal/emulator"
	"github.com/zboralski/jniscope/internal/jni"
	glog "github.com/zboralski/jniscope/internal/log"
	"go.uber.org/zap"
)

// maxStringLen bounds C strings read during bookkeeping.
const maxStringLen = 4096

// trampoline is a hooked stub standing in for one real table function.
//
// On entry it reads the arguments, swaps the real env or VM into argument 0,
// runs the before-hook and jumps to the real function with the return address
// pointed at the engine's return stub. The return stub completes the call.
type trampoline struct {
	ctx    *Context
	method *jni.MethodDescriptor
	real   uint64
	stub   abi.Stub

	// types holds the declared fixed parameters, followed by the Java
	// parameters when the trampoline is specialized for a jmethodID.
	types  []jni.NativeType
	locs   []abi.Location
	nFixed int

	java     *jni.JavaMethod
	variadic bool // entered through a capture shim
}

// frame is a call between trampoline entry and return.
type frame struct {
	t    *trampoline
	rec  *CallRecord
	inv  *Invocation
	args []uint64 // as forwarded
	ret  uint64   // caller's return address
}

// javaArg is a Java argument that lives in memory: a jvalue slot or a
// va_list entry.
type javaArg struct {
	addr     uint64
	typ      jni.NativeType
	promoted bool
	val      uint64
}

// newStub writes a trampoline stub into a fresh page and hooks it.
func (c *Context) newStub(hook emulator.AddressHookFunc, owner any) (abi.Stub, error) {
	page, err := c.proc.AllocPage()
	if err != nil {
		return abi.Stub{}, err
	}
	stub := c.abi.CreateTrampolineStub(page)
	if err := c.proc.MemWrite(page, stub.Code); err != nil {
		return abi.Stub{}, fmt.Errorf("write stub at 0x%x: %w", page, err)
	}
	c.proc.HookAddress(stub.Hook, hook)
	c.Refs.Add(Allocation{Addr: page, Size: emulator.PageSize, Kind: AllocStub, Owner: owner})
	return stub, nil
}

func (c *Context) installReturnStub() error {
	stub, err := c.newStub(c.leave, nil)
	if err != nil {
		return err
	}
	c.returnStub = stub
	return nil
}

func (c *Context) newTrampoline(m *jni.MethodDescriptor, real uint64, java *jni.JavaMethod, variadic bool) (*trampoline, error) {
	t := &trampoline{
		ctx:      c,
		method:   m,
		real:     real,
		java:     java,
		variadic: variadic,
		types:    slices.Clone(m.FixedParams()),
	}
	t.nFixed = len(t.types)
	ffi := abi.FFITypes(t.types)
	if variadic && java != nil {
		for _, p := range java.NativeParams() {
			t.types = append(t.types, p)
			ffi = append(ffi, p.FFI().Promote())
		}
	}
	t.locs = c.abi.Arguments(ffi)

	stub, err := c.newStub(t.enter, t)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m, err)
	}
	t.stub = stub
	return t, nil
}

// realSelf returns the real env or VM to forward as argument 0.
func (t *trampoline) realSelf(tid uint64) uint64 {
	c := t.ctx
	if t.method.Table == jni.VMTable {
		if vm := c.Threads.GetJavaVM(); vm != 0 {
			return vm
		}
		return c.vm.primary()
	}
	if env := c.Threads.GetJNIEnv(tid); env != 0 {
		return env
	}
	return c.env.primary()
}

func (t *trampoline) enter(_ *emulator.Emulator) bool {
	c, s, p, m := t.ctx, t.ctx.abi, t.ctx.proc, t.method
	tid := p.ThreadID()

	args := make([]uint64, len(t.locs))
	for i, loc := range t.locs {
		v, err := s.ReadArgument(p, loc)
		if err != nil {
			c.report(fmt.Errorf("%s: read argument %d: %w", m, i, err))
		}
		if i >= t.nFixed {
			v = demote(t.types[i], v)
		}
		args[i] = v
	}
	args[0] = t.realSelf(tid)
	caller, _ := s.ReturnAddress(p)

	rec := &CallRecord{
		CallType:   m.Table,
		Method:     m,
		JavaMethod: t.java,
		ThreadID:   tid,
		Timestamp:  c.millis(),
		Caller:     caller,
	}

	var extra []javaArg
	switch m.Tail {
	case jni.TailJValues, jni.TailVaList:
		rec.JavaMethod, extra = t.tailArgs(args)
	case jni.TailVariadic:
		if t.java == nil {
			c.report(unknownMethodID(m))
		}
	}

	all := make([]uint64, 0, len(args)+len(extra))
	all = append(all, args...)
	for _, a := range extra {
		all = append(all, a.val)
	}
	orig := slices.Clone(all)

	inv := &Invocation{
		Method:     m,
		JavaMethod: rec.JavaMethod,
		ThreadID:   tid,
		Caller:     caller,
		Memory:     p,
	}
	c.Callbacks.RunBefore(m.Name, inv, all)

	for i, v := range all {
		if i != 0 && v == orig[i] {
			continue
		}
		var err error
		if i < len(t.locs) {
			if i >= t.nFixed {
				v = promote(t.types[i], v)
			}
			err = s.WriteArgument(p, t.locs[i], v)
		} else {
			err = extra[i-len(t.locs)].write(p, s.PointerSize(), v)
		}
		if err != nil {
			c.report(fmt.Errorf("%s: write argument %d: %w", m, i, err))
		}
	}

	for i := 0; i < t.nFixed; i++ {
		rec.Args = append(rec.Args, Value{Type: t.types[i], Raw: all[i]})
	}
	for i := t.nFixed; i < len(t.locs); i++ {
		rec.JavaArgs = append(rec.JavaArgs, Value{Type: t.types[i], Raw: all[i]})
	}
	for i, a := range extra {
		rec.JavaArgs = append(rec.JavaArgs, Value{Type: a.typ, Raw: all[len(t.locs)+i]})
	}

	if t.variadic {
		if bt, ok := c.takePendingBacktrace(tid); ok {
			rec.Backtrace = bt
		} else {
			rec.Backtrace = c.backtrace(caller)
		}
	} else {
		rec.Backtrace = c.backtrace(caller)
	}

	if m.Bookkeeping == jni.BookRegisterNatives {
		t.wrapNatives(all)
	}

	c.pushFrame(tid, &frame{t: t, rec: rec, inv: inv, args: all, ret: caller})
	if err := s.SetReturnAddress(p, c.returnStub.Entry); err != nil {
		c.popFrame(tid)
		c.report(fmt.Errorf("%s: redirect return: %w", m, err))
	}
	if err := s.Jump(p, t.real); err != nil {
		c.Log.Error("jump to real function failed", glog.Method(m.Name), glog.Addr(t.real), zap.Error(err))
		return true
	}
	return false
}

// tailArgs reads the Java arguments passed through a jvalue array or a
// va_list. It returns nil when the jmethodID was never resolved.
func (t *trampoline) tailArgs(args []uint64) (*jni.JavaMethod, []javaArg) {
	c, s, p, m := t.ctx, t.ctx.abi, t.ctx.proc, t.method
	jm, ok := c.env.MethodSignature(args[m.MethodIDArg])
	if !ok {
		c.report(unknownMethodID(m))
		return nil, nil
	}

	params := jm.NativeParams()
	base := args[t.nFixed-1]
	ptr := s.PointerSize()
	out := make([]javaArg, 0, len(params))

	switch m.Tail {
	case jni.TailJValues:
		for i, pt := range params {
			v, err := abi.ReadJValue(p, base, i, pt.FFI(), ptr)
			if err != nil {
				c.report(fmt.Errorf("%s: read jvalue %d: %w", m, i, err))
				return jm, out
			}
			out = append(out, javaArg{addr: base + uint64(i)*jni.JValueSize, typ: pt, val: v})
		}
	case jni.TailVaList:
		x, err := s.BeginVariadicExtraction(p, base)
		if err != nil {
			c.report(fmt.Errorf("%s: va_list at 0x%x: %w", m, base, err))
			return jm, out
		}
		defer x.EndVariadicExtraction()
		sig := abi.FFITypes(params)
		for i, pt := range params {
			addr, err := x.ExtractNextArgumentAddress(sig, i)
			if err != nil {
				c.report(fmt.Errorf("%s: %w", m, err))
				return jm, out
			}
			v, err := abi.ReadVariadicValue(p, addr, pt.FFI(), ptr)
			if err != nil {
				c.report(fmt.Errorf("%s: %w", m, err))
				return jm, out
			}
			out = append(out, javaArg{addr: addr, typ: pt, promoted: true, val: v})
		}
	}
	return jm, out
}

func (a javaArg) write(mem abi.Memory, ptrSize int, v uint64) error {
	t := a.typ.FFI()
	if a.promoted {
		t = t.Promote()
		v = promote(a.typ, v)
	}
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return mem.MemWrite(a.addr, b[:t.Size(ptrSize)])
}

// promote converts a value of type t to its default argument promotion.
func promote(t jni.NativeType, v uint64) uint64 {
	switch t.FFI() {
	case jni.FFIFloat:
		return math.Float64bits(float64(math.Float32frombits(uint32(v))))
	case jni.FFIInt8, jni.FFIInt16:
		return uint64(Value{Type: t, Raw: v}.Int())
	}
	return v
}

// demote reverses promote.
func demote(t jni.NativeType, v uint64) uint64 {
	switch t.FFI() {
	case jni.FFIFloat:
		return uint64(math.Float32bits(float32(math.Float64frombits(v))))
	case jni.FFIInt8, jni.FFIUInt8:
		return v & 0xff
	case jni.FFIInt16, jni.FFIUInt16:
		return v & 0xffff
	case jni.FFIInt32:
		return v & 0xffffffff
	}
	return v
}

func unknownMethodID(m *jni.MethodDescriptor) error {
	return fmt.Errorf("%w: Failed to find corresponding method ID for method %q call.", ErrUnknownMethodID, m.Name)
}

// leave is the return stub hook. It completes the innermost pending call of
// the current thread and resumes its caller.
func (c *Context) leave(_ *emulator.Emulator) bool {
	tid := c.proc.ThreadID()
	f := c.popFrame(tid)
	if f == nil {
		c.Log.Error("return stub reached without a pending call", glog.Thread(tid))
		return true
	}

	s, m := c.abi, f.t.method
	rt := m.Return.FFI()
	var ret uint64
	if rt != jni.FFIVoid {
		v, err := s.ReturnValue(c.proc, rt)
		if err != nil {
			c.report(fmt.Errorf("%s: read return value: %w", m, err))
		}
		ret = v
	}

	final := c.Callbacks.RunAfter(m.Name, f.inv, ret)
	if final != ret && rt != jni.FFIVoid {
		if err := s.SetReturnValue(c.proc, rt, final); err != nil {
			c.report(fmt.Errorf("%s: replace return value: %w", m, err))
		}
	}

	f.t.bookkeep(f, ret)

	f.rec.Return = Value{Type: m.Return, Raw: final}
	if c.captures(m.Table) {
		c.emit(f.rec)
	} else {
		c.track(f.rec)
	}

	if err := s.Jump(c.proc, f.ret); err != nil {
		c.Log.Error("return to caller failed", glog.Method(m.Name), glog.Addr(f.ret), zap.Error(err))
		return true
	}
	return false
}

// bookkeep runs the side effects of a completed call. ret is the value the
// real function returned.
func (t *trampoline) bookkeep(f *frame, ret uint64) {
	c, m, args := t.ctx, t.method, f.args
	switch m.Bookkeeping {
	case jni.BookMethodID:
		if ret == 0 {
			return
		}
		name, sig, err := c.nameAndSig(args[2], args[3])
		if err != nil {
			c.report(fmt.Errorf("%s: %w", m, err))
			return
		}
		jm, err := jni.NewJavaMethod(name, sig)
		if err != nil {
			c.report(fmt.Errorf("%s: %w", m, err))
			return
		}
		c.env.RecordMethodID(ret, jm)
	case jni.BookFieldID:
		if ret == 0 {
			return
		}
		name, sig, err := c.nameAndSig(args[2], args[3])
		if err != nil {
			c.report(fmt.Errorf("%s: %w", m, err))
			return
		}
		c.env.RecordFieldID(ret, name+":"+sig)
	case jni.BookJavaVM:
		if int32(ret) == jni.JNI_OK {
			if err := c.vm.adoptOut(args[1]); err != nil {
				c.report(fmt.Errorf("%s: %w", m, err))
			}
		}
	case jni.BookEnvOut:
		if int32(ret) == jni.JNI_OK {
			if err := c.env.adoptOut(f.rec.ThreadID, args[1]); err != nil {
				c.report(fmt.Errorf("%s: %w", m, err))
			}
		}
	}
}

func (c *Context) nameAndSig(namePtr, sigPtr uint64) (string, string, error) {
	name, err := c.proc.MemReadString(namePtr, maxStringLen)
	if err != nil {
		return "", "", fmt.Errorf("read name at 0x%x: %w", namePtr, err)
	}
	sig, err := c.proc.MemReadString(sigPtr, maxStringLen)
	if err != nil {
		return "", "", fmt.Errorf("read signature at 0x%x: %w", sigPtr, err)
	}
	return name, sig, nil
}

// captures reports whether records of table k are emitted.
func (c *Context) captures(k jni.TableKind) bool {
	if k == jni.VMTable {
		return c.Config.VM
	}
	return c.Config.Env
}

func (c *Context) pushFrame(tid uint64, f *frame) {
	c.framesMu.Lock()
	defer c.framesMu.Unlock()
	c.frames[tid] = append(c.frames[tid], f)
}

func (c *Context) popFrame(tid uint64) *frame {
	c.framesMu.Lock()
	defer c.framesMu.Unlock()
	stack := c.frames[tid]
	if len(stack) == 0 {
		return nil
	}
	f := stack[len(stack)-1]
	c.frames[tid] = stack[:len(stack)-1]
	return f
}

// Pending returns the number of calls of tid that have not returned yet.
func (c *Context) Pending(tid uint64) int {
	c.framesMu.Lock()
	defer c.framesMu.Unlock()
	return len(c.frames[tid])
}
